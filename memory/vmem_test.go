package memory

import (
	"bytes"
	"errors"
	"testing"

	"github.com/sarchlab/bsim/errs"
	"github.com/sarchlab/bsim/identity"
)

func testCore() identity.ID {
	return identity.NewChipArray("array").NewChip(0, 0).NewCore(0, 0)
}

func TestWriteThenReadMemoryBlock(t *testing.T) {
	v := NewVMem()
	core := testCore()
	id := core.NewDataBlock("in0")
	data := []byte{9, 8, 7, 6}

	if err := v.InitMemoryBlock(Block{ID: id, Core: core, Data: data, Start: 0, Length: 4, Size: 4}); err != nil {
		t.Fatalf("InitMemoryBlock: %v", err)
	}

	got, err := v.ReadMemoryBlock(id)
	if err != nil {
		t.Fatalf("ReadMemoryBlock: %v", err)
	}
	if !bytes.Equal(got.Data, data) {
		t.Fatalf("got %v want %v", got.Data, data)
	}
}

func TestReadMemoryBlockUnknownIDIsNotFound(t *testing.T) {
	v := NewVMem()
	core := testCore()
	_, err := v.ReadMemoryBlock(core.NewDataBlock("missing"))
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestWriteMemoryBlockPipelineRowRotation(t *testing.T) {
	v := NewVMem()
	core := testCore()
	id := core.NewDataBlock("pipeline")

	goalLen := 4
	totalLen := 10
	data := make([]byte, totalLen)
	for i := range data {
		data[i] = byte(i + 1)
	}

	if err := v.WriteMemoryBlock(Block{ID: id, Core: core, Data: data, Start: 0, Length: goalLen, Size: totalLen}); err != nil {
		t.Fatalf("WriteMemoryBlock: %v", err)
	}

	remaindLen := totalLen % goalLen
	remaindOffset := totalLen / goalLen * goalLen
	lastBankRemainLen := goalLen - remaindLen
	lastBankRemainOffset := remaindOffset - lastBankRemainLen

	want := make([]byte, goalLen)
	copy(want, data[remaindOffset:remaindOffset+remaindLen])
	copy(want[remaindLen:], data[lastBankRemainOffset:lastBankRemainOffset+lastBankRemainLen])

	got, err := v.memoryFor(core).Read(0, goalLen)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestReadMemoryBlockWithInputSource(t *testing.T) {
	v := NewVMem()
	core := testCore()
	producerID := core.NewDataBlock("producer")
	consumerID := core.NewDataBlock("consumer")

	producerData := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	if err := v.InitMemoryBlock(Block{
		ID: producerID, Core: core, Data: producerData, Start: 0, Length: 8, Size: 8,
	}); err != nil {
		t.Fatalf("InitMemoryBlock producer: %v", err)
	}

	if err := v.WriteMemoryBlock(Block{
		ID: consumerID, Core: core, Start: 2, Length: 4, Size: 4, InputSource: producerID,
	}); err != nil {
		t.Fatalf("WriteMemoryBlock consumer: %v", err)
	}

	got, err := v.ReadMemoryBlock(consumerID)
	if err != nil {
		t.Fatalf("ReadMemoryBlock: %v", err)
	}
	want := producerData[2:6]
	if !bytes.Equal(got.Data, want) {
		t.Fatalf("got %v want %v", got.Data, want)
	}
}

func TestGetMemoryBlockRef(t *testing.T) {
	v := NewVMem()
	core := testCore()
	id := core.NewDataBlock("in0")
	if err := v.InitMemoryBlock(Block{ID: id, Core: core, Start: 0, Length: 4, Size: 4}); err != nil {
		t.Fatalf("InitMemoryBlock: %v", err)
	}
	b, err := v.GetMemoryBlockRef(id)
	if err != nil {
		t.Fatalf("GetMemoryBlockRef: %v", err)
	}
	if b.ID != id {
		t.Fatalf("got id %v want %v", b.ID, id)
	}
}
