// Package core implements the per-core ticking component: each phase's
// four-slot PI group (Axon, Soma1, Router, Soma2) is dispatched in order
// through a shared Context, with a pending Router PI yielding by returning
// madeProgress=false rather than blocking.
package core

import (
	"log/slog"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/bsim/config"
	"github.com/sarchlab/bsim/context"
	"github.com/sarchlab/bsim/identity"
	"github.com/sarchlab/bsim/primitive"
)

// LevelTrace is a custom log level between Info and Warn for per-cycle PI
// dispatch tracing, mirroring core/util.go's LevelTrace in the teacher.
const LevelTrace = slog.LevelInfo + 1

// slotIndex names the four dispatch positions within a phase group.
type slotIndex int

const (
	slotAxon slotIndex = iota
	slotSoma1
	slotRouter
	slotSoma2
	slotDone
)

// IORequester is the subset of ioclient.Client a Core needs: the first-step
// dynamic-input pull and the post-phase output push.
type IORequester interface {
	DoIRequest(phase int) error
	DoORequest(phase int) error
	Close() error
}

// Visitor is the subset of memvisitor.Visitor a Core needs for its
// compare-mode post-phase dump.
type Visitor interface {
	Serialize(ctx *context.Context, coreID identity.ID, phase uint32) error
}

// Core is one tile's ticking component: an ordered sequence of phase
// groups driven by a shared Context.
type Core struct {
	*sim.TickingComponent
	sim.HookableBase

	ID     identity.ID
	Ctx    *context.Context
	Groups []primitive.Group

	IOClient IORequester
	Visitor  Visitor

	phase     int
	slot      slotIndex
	firstTick bool
	err       error
}

// Err returns the error that most recently stopped this core from making
// progress, or nil if it is merely waiting on the NoC.
func (c *Core) Err() error { return c.err }

// HookPosPIDispatch marks a hook invoked immediately before a PI slot runs.
var HookPosPIDispatch = &sim.HookPos{Name: "Core PI Dispatch"}

// Build constructs a Core bound to engine/freq, with the given ID and phase
// groups, wired to ctx.
func Build(name string, engine sim.Engine, freq sim.Freq, id identity.ID, ctx *context.Context, groups []primitive.Group) *Core {
	c := &Core{
		ID:        id,
		Ctx:       ctx,
		Groups:    groups,
		firstTick: true,
	}
	c.TickingComponent = sim.NewTickingComponent(name, engine, freq, c)
	return c
}

// Tick dispatches the current phase's next non-nil PI slot. A Router slot
// that isn't ready yet returns madeProgress=false without advancing the
// slot cursor, so the same core is re-ticked until the NoC makes progress.
func (c *Core) Tick(now sim.VTimeInSec) (madeProgress bool) {
	if c.firstTick {
		c.firstTick = false
		if c.IOClient != nil {
			if err := c.IOClient.DoIRequest(0); err != nil {
				c.err = err
				c.Ctx.Config.Console.Error("initial input request failed", "core", c.ID.String(), "err", err)
				return false
			}
		}
	}

	if c.phase >= len(c.Groups) {
		return false
	}

	group := c.Groups[c.phase]
	slots := [...]*primitive.Primitive{group.Axon, group.Soma1, group.Router, group.Soma2}

	for c.slot < slotDone {
		p := slots[c.slot]
		if p == nil {
			c.slot++
			continue
		}

		c.InvokeHook(sim.HookCtx{Domain: c, Pos: HookPosPIDispatch, Item: p})

		err := c.Ctx.Execute(c.ID, p, uint32(c.phase))
		if err == context.ErrRouterPending {
			return false
		}
		if err != nil {
			c.err = err
			c.Ctx.Config.Console.Error("PI execution failed", "core", c.ID.String(), "phase", c.phase, "err", err)
			return false
		}

		c.Ctx.Config.Logger.Log(nil, LevelTrace, "PI dispatched", "core", c.ID.String(), "phase", c.phase, "slot", c.slot, "op", p.Op)

		c.slot++
		return true
	}

	if err := c.finishPhase(); err != nil {
		c.err = err
		c.Ctx.Config.Console.Error("post-phase dispatch failed", "core", c.ID.String(), "phase", c.phase, "err", err)
		return false
	}

	c.slot = slotAxon
	c.phase++
	return true
}

// finishPhase runs the compare-mode memory-visitor dump or the live IO
// client's output push, chosen by Config.Mode. A phase with no registered
// visitor writes no file rather than failing.
func (c *Core) finishPhase() error {
	switch c.Ctx.Config.Mode {
	case config.LiveMode:
		if c.IOClient != nil {
			return c.IOClient.DoORequest(c.phase)
		}
	case config.CompareMode:
		if c.Visitor != nil {
			return c.Visitor.Serialize(c.Ctx, c.ID, uint32(c.phase))
		}
	}
	return nil
}

// Done reports whether the core has dispatched every phase group.
func (c *Core) Done() bool { return c.phase >= len(c.Groups) }
