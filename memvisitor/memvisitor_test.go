package memvisitor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sarchlab/bsim/config"
	"github.com/sarchlab/bsim/context"
	"github.com/sarchlab/bsim/identity"
	"github.com/sarchlab/bsim/memory"
)

func buildCtx(t *testing.T, mode config.Mode) (*context.Context, identity.ID) {
	t.Helper()
	cfg := config.New(mode, t.TempDir(), -100)
	cfg.OutputReadable = mode == config.LiveMode
	ctx := context.New(cfg)
	array := identity.NewChipArray("array")
	chip := array.NewChip(0, 0)
	core := chip.NewCore(0, 0)
	ctx.Register(core)
	if err := ctx.VMem.InitMemoryBlock(memory.Block{
		Core: core, Data: []byte{1, 2, 3, 4}, Start: 0, Length: 4, Size: 4,
	}); err != nil {
		t.Fatalf("init block: %v", err)
	}
	return ctx, core
}

func TestSerializeSkipsUnregisteredPhase(t *testing.T) {
	ctx, core := buildCtx(t, config.CompareMode)
	v := New()
	if err := v.Serialize(ctx, core, 0); err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	entries, _ := os.ReadDir(ctx.Config.OutputDir)
	if len(entries) != 0 {
		t.Fatalf("expected no files, got %v", entries)
	}
}

func TestSerializeConsolidatedCompareMode(t *testing.T) {
	ctx, core := buildCtx(t, config.CompareMode)
	v := New()
	v.AddSegment(core, 0, 0, 4, "")

	if err := v.Serialize(ctx, core, 0); err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	entries, err := os.ReadDir(ctx.Config.OutputDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one dump file, got %v", entries)
	}

	contents, err := os.ReadFile(filepath.Join(ctx.Config.OutputDir, entries[0].Name()))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	want := "00000000\n00000001\n04030201\n"
	if string(contents) != want {
		t.Fatalf("got %q want %q", string(contents), want)
	}
}

func TestSerializeSkipsMetaRegionSegment(t *testing.T) {
	ctx, core := buildCtx(t, config.CompareMode)
	v := New()
	v.AddSegment(core, 0, memory.MemSize, 4, "")

	if err := v.Serialize(ctx, core, 0); err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	entries, _ := os.ReadDir(ctx.Config.OutputDir)
	if len(entries) != 0 {
		t.Fatalf("expected no files for a meta-region segment, got %v", entries)
	}
}

func TestSerializeReadableModeNamesFileBySegment(t *testing.T) {
	ctx, core := buildCtx(t, config.LiveMode)
	v := New()
	v.AddSegment(core, 2, 0, 4, "weights")

	if err := v.Serialize(ctx, core, 2); err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	path := filepath.Join(ctx.Config.OutputDir, "weights.hex")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected %s to exist: %v", path, err)
	}
}
