// Package context wires a VMem, a NoC, and a registry of cores together and
// provides the single dispatch path every PI slot executes through.
package context

import (
	"fmt"
	"sync"

	"github.com/sarchlab/bsim/config"
	"github.com/sarchlab/bsim/errs"
	"github.com/sarchlab/bsim/identity"
	"github.com/sarchlab/bsim/memory"
	"github.com/sarchlab/bsim/noc"
	"github.com/sarchlab/bsim/primitive"
)

// CoreHandle is an index-style reference to a core. Context itself keeps no
// list of cores and holds no pointer to one: it records core identities in
// its registry, and each core holds the *Context, so ownership never cycles
// back through a shared pointer graph.
type CoreHandle int

// Context is the shared state every core's Tick operates against.
type Context struct {
	VMem *memory.VMem
	NoC  *noc.NoC

	Config config.Config
	NStep  int
	Seed   uint32

	identMu    sync.RWMutex
	identities map[identity.ID]struct{}
}

// New returns an empty Context wired with its own VMem and NoC.
func New(cfg config.Config) *Context {
	return &Context{
		VMem:       memory.NewVMem(),
		NoC:        noc.New(),
		Config:     cfg,
		identities: make(map[identity.ID]struct{}),
	}
}

// Register records id in the context's identity arena, so later lookups can
// confirm it was constructed by this simulation rather than fabricated.
func (c *Context) Register(id identity.ID) {
	c.identMu.Lock()
	defer c.identMu.Unlock()
	c.identities[id] = struct{}{}
}

// Known reports whether id was previously Register-ed.
func (c *Context) Known(id identity.ID) bool {
	c.identMu.RLock()
	defer c.identMu.RUnlock()
	_, ok := c.identities[id]
	return ok
}

// ErrRouterPending is returned by Execute to signal "the router PI isn't
// ready yet"; it is not a failure, and Core.Tick turns it into
// madeProgress=false rather than aborting the phase.
var ErrRouterPending = errs.New("context.Execute", errs.ErrInvariant, fmt.Errorf("router not ready"))

// Execute is the single dispatch path for one PI slot: it resolves each
// input identity.ID to its current memory.Block (materializing pipeline
// reads as needed), runs the PI (or, for Router kinds, advances the NoC's
// router state machine one step), and writes every output block back to
// VMem.
func (c *Context) Execute(coreID identity.ID, p *primitive.Primitive, phase uint32) error {
	inputs := make([]memory.Block, 0, len(p.Inputs))
	for _, id := range p.Inputs {
		b, err := c.VMem.ReadMemoryBlock(id)
		if err != nil {
			return err
		}
		inputs = append(inputs, b)
	}

	if p.Kind == primitive.Router {
		rp, ok := p.Params.(primitive.RouterParams)
		if !ok {
			return errs.New("context.Execute", errs.ErrInvariant, fmt.Errorf("router PI with non-router params %T", p.Params))
		}
		state, outBlocks, err := c.NoC.Route(coreID, rp.RouterParams, inputs, phase)
		if err != nil {
			return err
		}
		if !state.Done() {
			return ErrRouterPending
		}
		return c.writeOutputs(p, outBlocks)
	}

	outputs, err := p.Execute(inputs)
	if err != nil {
		return err
	}
	return c.writeOutputs(p, outputs)
}

func (c *Context) writeOutputs(p *primitive.Primitive, blocks []memory.Block) error {
	for i, b := range blocks {
		if i < len(p.Outputs) {
			b.ID = p.Outputs[i]
		}
		if err := c.VMem.WriteMemoryBlock(b); err != nil {
			return err
		}
	}
	return nil
}
