// Package memory implements the per-core byte-addressable memory and the
// data-block-level virtual memory that sits on top of it: the producer side
// of a pipelined transfer writes a block whose size may be a multiple of the
// physical bank length, and write_memory_block folds the overrun down to the
// last full row before it ever touches the underlying bytes.
package memory

import (
	"fmt"
	"sync"

	"github.com/sarchlab/bsim/errs"
)

// MemSize is the physical byte size of a single core's memory, mirroring the
// original simulator's `0x9000 * sizeof(uint32_t)` constant.
const MemSize = 0x9000 * 4

// Memory is a single core's flat physical memory.
type Memory struct {
	mu   sync.Mutex
	data [MemSize]byte
}

// New returns a zeroed Memory.
func New() *Memory {
	return &Memory{}
}

// Write copies length bytes from data into the memory starting at address.
// data may be nil or longer than length; only the first length bytes are
// used, matching the original's memcpy(dst, data, length) call.
func (m *Memory) Write(address, length int, data []byte) error {
	if address < 0 || length < 0 || address+length > MemSize {
		return errs.New("memory.Write", errs.ErrOutOfRange,
			fmt.Errorf("address %d length %d exceeds size %d", address, length, MemSize))
	}
	if data == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy(m.data[address:address+length], data)
	return nil
}

// Read returns a copy of length bytes starting at address.
func (m *Memory) Read(address, length int) ([]byte, error) {
	if address < 0 || length < 0 || address+length > MemSize {
		return nil, errs.New("memory.Read", errs.ErrOutOfRange,
			fmt.Errorf("address %d length %d exceeds size %d", address, length, MemSize))
	}
	out := make([]byte, length)
	m.mu.Lock()
	defer m.mu.Unlock()
	copy(out, m.data[address:address+length])
	return out, nil
}
