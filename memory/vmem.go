package memory

import (
	"fmt"
	"sync"

	"github.com/sarchlab/bsim/errs"
	"github.com/sarchlab/bsim/identity"
)

// Block is a named, addressed span of a core's memory. It doubles as the
// payload carried by packets in the noc package and as the unit the IO
// client reads and writes.
//
// Start/Length describe where the block lives in the owning core's physical
// memory; Size is the logical byte count of Data, which for a pipelined
// transfer can be a multiple of Length. InputSource, when valid, names
// another block this one should materialize its bytes from on read instead
// of reading its own backing memory (the "pipeline" producer/consumer
// pattern of scenario S5).
type Block struct {
	ID          identity.ID
	Core        identity.ID
	Data        []byte
	Start       int
	Length      int
	Size        int
	InputSource identity.ID
}

// VMem is the data-block-addressed view over a set of per-core Memory
// objects. Two independently-locked maps back it: one core-id keyed Memory
// table, one block-id keyed Block table, matching the original's separate
// `_memory_rwlock`/`_blocks_rwlock` pair so that a block lookup never blocks
// a concurrent memory read on an unrelated core.
type VMem struct {
	memMu sync.RWMutex
	mem   map[identity.ID]*Memory

	blockMu sync.RWMutex
	blocks  map[identity.ID]Block
}

// NewVMem returns an empty VMem.
func NewVMem() *VMem {
	return &VMem{
		mem:    make(map[identity.ID]*Memory),
		blocks: make(map[identity.ID]Block),
	}
}

func (v *VMem) memoryFor(core identity.ID) *Memory {
	v.memMu.RLock()
	m, ok := v.mem[core]
	v.memMu.RUnlock()
	if ok {
		return m
	}

	v.memMu.Lock()
	defer v.memMu.Unlock()
	if m, ok = v.mem[core]; ok {
		return m
	}
	m = New()
	v.mem[core] = m
	return m
}

func (v *VMem) insertBlock(b Block) {
	v.blockMu.Lock()
	defer v.blockMu.Unlock()
	v.blocks[b.ID] = b
}

func (v *VMem) getBlock(id identity.ID) (Block, bool) {
	v.blockMu.RLock()
	defer v.blockMu.RUnlock()
	b, ok := v.blocks[id]
	return b, ok
}

// GetMemoryBlockRef returns the current stored value of a block by id, for
// callers (such as the IO client) that need to inspect a block's
// bookkeeping without going through the pipeline materialization in
// ReadMemoryBlock.
func (v *VMem) GetMemoryBlockRef(id identity.ID) (Block, error) {
	b, ok := v.getBlock(id)
	if !ok {
		return Block{}, errs.New("memory.GetMemoryBlockRef", errs.ErrNotFound,
			fmt.Errorf("block %s", id))
	}
	return b, nil
}

// InitMemoryBlock creates the owning core's Memory on first use and then
// behaves exactly like WriteMemoryBlock; it exists as a distinct method
// because it is only ever called during a context's initialization phase,
// before any PI has run.
func (v *VMem) InitMemoryBlock(b Block) error {
	v.memoryFor(b.Core)
	return v.WriteMemoryBlock(b)
}

// WriteMemoryBlock stores b's bookkeeping and, if it carries data, writes it
// through to the owning core's physical memory. When b.Size is larger than
// b.Length the block describes a pipelined transfer whose producer wrote
// more rows than the bank holds; the bytes are folded down to the last full
// row before the physical write, ported bit-for-bit from the original
// simulator's write_memory_block.
func (v *VMem) WriteMemoryBlock(b Block) error {
	v.insertBlock(b)

	if b.Start >= MemSize {
		return nil
	}
	if b.Data == nil {
		return nil
	}

	data := b.Data
	if b.Size > b.Length {
		totalLen := b.Size
		goalLen := b.Length

		remaindLen := totalLen % goalLen
		remaindOffset := totalLen / goalLen * goalLen
		lastBankRemainLen := goalLen - remaindLen
		lastBankRemainOffset := remaindOffset - lastBankRemainLen

		rebuilt := make([]byte, goalLen)
		copy(rebuilt, data[remaindOffset:remaindOffset+remaindLen])
		copy(rebuilt[remaindLen:], data[lastBankRemainOffset:lastBankRemainOffset+lastBankRemainLen])
		data = rebuilt
	}

	return v.memoryFor(b.Core).Write(b.Start, b.Length, data)
}

// ReadPhysical reads length bytes starting at address straight out of core's
// physical memory, bypassing the block bookkeeping entirely. The memory
// visitor uses this to dump arbitrary (start, length) segments that were
// never registered as a named block.
func (v *VMem) ReadPhysical(core identity.ID, address, length int) ([]byte, error) {
	return v.memoryFor(core).Read(address, length)
}

// ReadMemoryBlock looks up a block by id and materializes its bytes: if the
// block has no InputSource, the bytes come straight from the owning core's
// physical memory; if it does, the bytes are copied out of the source
// block's own data at this block's Start offset (the pipeline read path of
// scenario S5). An unknown id is a NotFound error, never a zero-value Block.
func (v *VMem) ReadMemoryBlock(id identity.ID) (Block, error) {
	b, ok := v.getBlock(id)
	if !ok {
		return Block{}, errs.New("memory.ReadMemoryBlock", errs.ErrNotFound,
			fmt.Errorf("block %s", id))
	}
	if b.Start == MemSize {
		return b, nil
	}

	if b.InputSource.Valid() {
		src, ok := v.getBlock(b.InputSource)
		if !ok {
			return Block{}, errs.New("memory.ReadMemoryBlock", errs.ErrNotFound,
				fmt.Errorf("input source block %s", b.InputSource))
		}
		if b.Start+b.Size > len(src.Data) {
			return Block{}, errs.New("memory.ReadMemoryBlock", errs.ErrOutOfRange,
				fmt.Errorf("block %s reads past input source %s", b.ID, b.InputSource))
		}
		out := make([]byte, b.Size)
		copy(out, src.Data[b.Start:b.Start+b.Size])
		b.Data = out
		return b, nil
	}

	data, err := v.memoryFor(b.Core).Read(b.Start, b.Length)
	if err != nil {
		return Block{}, err
	}
	b.Data = data
	return b, nil
}
