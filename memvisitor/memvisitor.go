// Package memvisitor dumps a core's physical memory to disk in
// compare-mode, so a run can be diffed against a golden reference instead
// of trusting the live IO client's socket. Grounded on the original
// simulator's MemoryVisitor/MemoryVisitorMaster.
package memvisitor

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sarchlab/bsim/context"
	"github.com/sarchlab/bsim/identity"
	"github.com/sarchlab/bsim/memory"
)

// rowSize is the chunk width the original recurses over: a segment that
// spans a 0x4000-byte boundary is dumped in separate row blocks, each
// carrying its own start/length header line in compare mode.
const rowSize = 0x4000

// segment is one (start, length) span registered against a core and phase,
// optionally carrying a name for readable-mode output.
type segment struct {
	Start  int
	Length int
	Name   string
}

// Visitor accumulates, per core and per phase, the set of memory segments a
// compiled program wants dumped after that phase runs.
type Visitor struct {
	mu       sync.RWMutex
	segments map[identity.ID]map[uint32][]segment
}

// New returns an empty Visitor.
func New() *Visitor {
	return &Visitor{segments: make(map[identity.ID]map[uint32][]segment)}
}

// AddSegment registers a (start, length) span for core/phase. A segment
// whose start lies in the meta-region (at or past memory.MemSize) is
// skipped: it has no physical bytes to dump.
func (v *Visitor) AddSegment(core identity.ID, phase uint32, start, length int, name string) {
	if start >= memory.MemSize {
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.segments[core] == nil {
		v.segments[core] = make(map[uint32][]segment)
	}
	v.segments[core][phase] = append(v.segments[core][phase], segment{Start: start, Length: length, Name: name})
}

// Serialize writes every segment registered for coreID/phase to disk. A
// core/phase pair with no registered segments writes nothing and returns
// nil: a core that never requested an output dump for a phase is not an
// error.
func (v *Visitor) Serialize(ctx *context.Context, coreID identity.ID, phase uint32) error {
	v.mu.RLock()
	byPhase, ok := v.segments[coreID]
	if !ok {
		v.mu.RUnlock()
		return nil
	}
	segs, ok := byPhase[phase]
	v.mu.RUnlock()
	if !ok || len(segs) == 0 {
		return nil
	}

	sorted := make([]segment, len(segs))
	copy(sorted, segs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	if ctx.Config.OutputReadable {
		return v.serializeReadable(ctx, coreID, sorted)
	}
	return v.serializeConsolidated(ctx, coreID, phase, sorted)
}

func (v *Visitor) serializeConsolidated(ctx *context.Context, coreID identity.ID, phase uint32, segs []segment) error {
	name := fmt.Sprintf("cmp_out_%s_%d.txt", sanitize(coreID.String()), phase)
	path := filepath.Join(ctx.Config.OutputDir, name)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("memvisitor: create %s: %w", path, err)
	}
	defer f.Close()

	var b strings.Builder
	for _, s := range segs {
		if s.Length == 0 {
			fmt.Fprintf(&b, "%08x\n%08x\n", s.Start/4, 0)
			continue
		}
		data, err := ctx.VMem.ReadPhysical(coreID, s.Start, s.Length)
		if err != nil {
			return err
		}
		if err := writeSegmentRows(&b, s.Start/4, s.Length/4, data, true); err != nil {
			return err
		}
	}
	_, err = f.WriteString(b.String())
	return err
}

func (v *Visitor) serializeReadable(ctx *context.Context, coreID identity.ID, segs []segment) error {
	for _, s := range segs {
		if s.Length == 0 {
			continue
		}
		name := s.Name
		if name == "" {
			name = fmt.Sprintf("seg_%x", s.Start)
		}
		path := filepath.Join(ctx.Config.OutputDir, name+".hex")

		data, err := ctx.VMem.ReadPhysical(coreID, s.Start, s.Length)
		if err != nil {
			return err
		}

		var b strings.Builder
		if err := writeSegmentRows(&b, s.Start/4, s.Length/4, data, false); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
			return fmt.Errorf("memvisitor: write %s: %w", path, err)
		}
	}
	return nil
}

// writeSegmentRows walks data 4 bytes at a time, recursing across rowSize
// word-aligned chunks exactly like the original's segment_output, emitting a
// start/length header line per chunk when withHeader is set.
func writeSegmentRows(b *strings.Builder, startWords, lengthWords int, data []byte, withHeader bool) error {
	if lengthWords == 0 {
		return nil
	}

	remain := rowSize/4 - startWords%(rowSize/4)
	if remain > lengthWords {
		remain = lengthWords
	}

	if withHeader {
		fmt.Fprintf(b, "%08x\n%08x\n", startWords, remain)
	}

	for n := 0; n < remain; n++ {
		off := n * 4
		if off+4 > len(data) {
			return fmt.Errorf("memvisitor: segment data shorter than declared length")
		}
		word := uint32(data[off]) | uint32(data[off+1])<<8 | uint32(data[off+2])<<16 | uint32(data[off+3])<<24
		fmt.Fprintf(b, "%08x\n", word)
	}

	if lengthWords-remain == 0 {
		return nil
	}
	return writeSegmentRows(b, startWords+remain, lengthWords-remain, data[remain*4:], withHeader)
}

// sanitize replaces path separators in an identity string so it is safe to
// use as part of a filename.
func sanitize(s string) string {
	return strings.ReplaceAll(s, string(filepath.Separator), "_")
}
