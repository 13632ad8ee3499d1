// Package primitive defines the four-slot phase-group instruction model: an
// axon primitive feeds a soma primitive, a router primitive exchanges blocks
// across the NoC, and a second soma primitive finishes the phase.
package primitive

import (
	"github.com/sarchlab/bsim/errs"
	"github.com/sarchlab/bsim/identity"
	"github.com/sarchlab/bsim/memory"
	"github.com/sarchlab/bsim/noc"
)

// Kind is the PI family a Primitive belongs to.
type Kind int

const (
	Axon Kind = iota
	Soma
	Router
)

func (k Kind) String() string {
	switch k {
	case Axon:
		return "Axon"
	case Soma:
		return "Soma"
	case Router:
		return "Router"
	default:
		return "Unknown"
	}
}

// Params is the sum type of every PI's decoded parameter set. The marker
// method confines implementations to this package, the same closed-set
// discipline identity.ID's hierarchy constructors use.
type Params interface {
	isParams()
}

// AxonParams covers the dense/conv/MAC family of input-side primitives.
type AxonParams struct {
	Op       string // "Dense", "Conv", "MAC", ...
	Bias     int32
	Stride   int
	KernelHW [2]int
	Prec     Precision
}

func (AxonParams) isParams() {}

// SomaParams covers activation/pooling/LUT/neuron output-side primitives.
type SomaParams struct {
	Op        string // "MaxPool", "AvgPool", "LUT", "Threshold", ...
	WindowHW  [2]int
	Threshold int32
	LUT       []byte
	Prec      Precision
}

func (SomaParams) isParams() {}

// RouterParams wraps noc.RouterParams so it can satisfy Params without
// giving the noc package a dependency on this one.
type RouterParams struct {
	noc.RouterParams
}

func (RouterParams) isParams() {}

// Primitive is an immutable descriptor for one slot of a phase group: which
// opcode family it belongs to, its decoded parameters, and the ordered
// input/output data-block identities it reads and writes.
type Primitive struct {
	Kind    Kind
	Op      string
	Params  Params
	Inputs  []identity.ID
	Outputs []identity.ID
}

// ErrNotImplemented is returned by Execute for an opcode that has no entry
// in the dispatch table.
var ErrNotImplemented = errs.New("primitive.Execute", errs.ErrInvariant, nil)

type execFunc func(Params, []memory.Block) ([]memory.Block, error)

// dispatch mirrors core/emu.go's instFuncs: a flat map from opcode name to
// implementation, looked up once per Execute call.
var dispatch = map[string]execFunc{
	"AddBias":   execAddBias,
	"MaxPool":   execMaxPool,
	"AvgPool":   execAvgPool,
	"LUT":       execLUT,
	"Threshold": execThreshold,
}

// Execute runs a non-Router Primitive's numeric kernel over inputs,
// returning its output blocks. Router kinds are never executed directly;
// context.Context.Execute routes them through NoC.Route instead.
func (p *Primitive) Execute(inputs []memory.Block) ([]memory.Block, error) {
	if p.Kind == Router {
		return nil, errs.New("primitive.Execute", errs.ErrInvariant, nil)
	}
	fn, ok := dispatch[p.Op]
	if !ok {
		return nil, ErrNotImplemented
	}
	return fn(p.Params, inputs)
}

// Group is one phase's four PI slots; a nil slot is silently skipped by the
// core's Tick.
type Group struct {
	Axon   *Primitive
	Soma1  *Primitive
	Router *Primitive
	Soma2  *Primitive
}

// Slots returns the group's primitives in dispatch order, omitting nils.
func (g Group) Slots() []*Primitive {
	var out []*Primitive
	for _, p := range []*Primitive{g.Axon, g.Soma1, g.Router, g.Soma2} {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}
