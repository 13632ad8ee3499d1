// Package chip fans a simulation out across its cores, then across its
// chips: one goroutine per child by default, joined with errgroup, or a
// single inline pass when Config.PinSingleThread asks for a deterministic
// execution order.
package chip

import (
	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/bsim/context"
	"github.com/sarchlab/bsim/core"
	"github.com/sarchlab/bsim/identity"
)

// Chip is a rectangle of cores sharing one Context's NoC and VMem.
type Chip struct {
	ID    identity.ID
	Cores []*core.Core
}

// Execute runs every core in Chip to completion. Cores cooperatively yield
// by returning madeProgress=false from Tick when their Router PI is waiting
// on a packet another goroutine hasn't sent yet; Execute simply keeps
// re-ticking until every core reports Done.
func (c *Chip) Execute(ctx *context.Context) error {
	if len(c.Cores) <= 1 || ctx.Config.PinSingleThread {
		for _, co := range c.Cores {
			if err := runToCompletion(co); err != nil {
				return err
			}
		}
		return nil
	}

	var g errgroup.Group
	for _, co := range c.Cores {
		co := co
		g.Go(func() error { return runToCompletion(co) })
	}
	return g.Wait()
}

func runToCompletion(co *core.Core) error {
	for !co.Done() {
		if !co.Tick(0) {
			if err := co.Err(); err != nil {
				return err
			}
		}
	}
	return nil
}
