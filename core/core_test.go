package core

import (
	"testing"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/bsim/config"
	"github.com/sarchlab/bsim/context"
	"github.com/sarchlab/bsim/identity"
	"github.com/sarchlab/bsim/memory"
	"github.com/sarchlab/bsim/primitive"
)

func TestCoreRunsEchoProgram(t *testing.T) {
	cfg := config.New(config.CompareMode, t.TempDir(), -100)
	ctx := context.New(cfg)

	array := identity.NewChipArray("array")
	chip := array.NewChip(0, 0)
	coreID := chip.NewCore(0, 0)
	ctx.Register(coreID)

	in := coreID.NewDataBlock("in")
	out := coreID.NewDataBlock("out")
	if err := ctx.VMem.InitMemoryBlock(memory.Block{
		ID: in, Core: coreID, Data: []byte{1, 2, 3, 4}, Start: 0, Length: 4, Size: 4,
	}); err != nil {
		t.Fatalf("InitMemoryBlock: %v", err)
	}

	groups := []primitive.Group{
		{
			Soma1: &primitive.Primitive{
				Kind:    primitive.Axon,
				Op:      "AddBias",
				Params:  primitive.AxonParams{Bias: 1, Prec: primitive.Int8},
				Inputs:  []identity.ID{in},
				Outputs: []identity.ID{out},
			},
		},
	}

	engine := sim.NewSerialEngine()
	c := Build("core", engine, 1, coreID, ctx, groups)

	for !c.Done() {
		c.Tick(0)
	}

	got, err := ctx.VMem.ReadMemoryBlock(out)
	if err != nil {
		t.Fatalf("ReadMemoryBlock: %v", err)
	}
	want := []byte{2, 3, 4, 5}
	for i := range want {
		if got.Data[i] != want[i] {
			t.Fatalf("got %v want %v", got.Data, want)
		}
	}
}
