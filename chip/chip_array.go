package chip

import (
	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/bsim/context"
	"github.com/sarchlab/bsim/identity"
)

// ChipArray is a collection of Chips sharing one Context, fanned out the
// same way Chip fans out across its Cores.
type ChipArray struct {
	ID    identity.ID
	Chips []*Chip
}

// Execute runs every chip in the array to completion.
func (a *ChipArray) Execute(ctx *context.Context) error {
	if len(a.Chips) <= 1 || ctx.Config.PinSingleThread {
		for _, c := range a.Chips {
			if err := c.Execute(ctx); err != nil {
				return err
			}
		}
		return nil
	}

	var g errgroup.Group
	for _, c := range a.Chips {
		c := c
		g.Go(func() error { return c.Execute(ctx) })
	}
	return g.Wait()
}
