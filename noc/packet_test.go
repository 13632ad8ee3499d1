package noc

import (
	"testing"

	"github.com/sarchlab/bsim/identity"
	"github.com/sarchlab/bsim/memory"
)

func testNocCore() identity.ID {
	return identity.NewChipArray("array").NewChip(0, 0).NewCore(1, 1)
}

func TestCalcAddress(t *testing.T) {
	// const_num=0, offset=0 collapses to a straight start+packetNum sequence.
	for i := 0; i < 4; i++ {
		got := CalcAddress(i, 10, 0, 0)
		want := 10 + i
		if got != want {
			t.Fatalf("packet %d: got %d want %d", i, got, want)
		}
	}
}

func TestPackSinglePack(t *testing.T) {
	core := testNocCore()
	header := HeadBase{S: 0, T: 0, P: 0, Q: 0, X: 1, Y: 0, A: 5}
	headerBlock := memory.Block{Core: core, Data: HeadBaseBytes(header), Length: 4}
	payload := memory.Block{Core: core, Data: []byte{1, 2, 3, 4}, Length: 4}

	packets, err := Pack([]memory.Block{headerBlock, payload}, RouterParams{HeaderMultipack: SinglePack})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if len(packets) != 1 {
		t.Fatalf("got %d packets, want 1", len(packets))
	}
	p := packets[0]
	if p.Header.Offset != 5 {
		t.Fatalf("got offset %d want 5", p.Header.Offset)
	}
	if !p.Header.Stop {
		t.Fatal("expected single packet to be Stop")
	}
	wantDest := identity.OffsetCore(core, 1, 0)
	if p.Header.Destination.String() != wantDest.String() {
		t.Fatalf("got destination %s want %s", p.Header.Destination, wantDest)
	}
}

func TestPackMultiPack(t *testing.T) {
	core := testNocCore()
	adv := HeadAdvanced{
		Base:         HeadBase{X: 0, Y: 1, A: 0},
		PackPerRhead: 2, // 3 packets
		AOffset:      0,
		Const:        0,
		EN:           1,
	}
	headerBlock := memory.Block{Core: core, Data: HeadAdvancedBytes(adv), Length: 8}
	p1 := memory.Block{Core: core, Data: []byte{1}, Length: 1}
	p2 := memory.Block{Core: core, Data: []byte{2}, Length: 1}
	p3 := memory.Block{Core: core, Data: []byte{3}, Length: 1}

	packets, err := Pack([]memory.Block{headerBlock, p1, p2, p3}, RouterParams{HeaderMultipack: MultiPack})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if len(packets) != 3 {
		t.Fatalf("got %d packets, want 3", len(packets))
	}
	for i, p := range packets {
		if p.Header.Offset != i {
			t.Fatalf("packet %d: got offset %d want %d", i, p.Header.Offset, i)
		}
	}
	if !packets[2].Header.Stop || packets[0].Header.Stop || packets[1].Header.Stop {
		t.Fatal("expected only the last multi-pack packet to be Stop")
	}
}

func TestRepackRetargets(t *testing.T) {
	core := testNocCore()
	dest := identity.OffsetCore(core, 1, 0)
	packets := []Packet{{Header: PacketHeader{Source: core, Destination: dest}}}

	repacked := Repack(packets, 0, 1)
	if repacked[0].Header.Source.String() != dest.String() {
		t.Fatalf("got source %s want %s", repacked[0].Header.Source, dest)
	}
	wantDest := identity.OffsetCore(dest, 0, 1)
	if repacked[0].Header.Destination.String() != wantDest.String() {
		t.Fatalf("got destination %s want %s", repacked[0].Header.Destination, wantDest)
	}
}

func TestUnpackWrapsOffsetIntoDinLength(t *testing.T) {
	dest := testNocCore()
	packets := []Packet{
		{Header: PacketHeader{Destination: dest, Type: SinglePack, Offset: 5}, Data: memory.Block{Data: []byte{9}}},
	}
	out := Unpack(packets, 100, 4)
	if len(out) != 1 {
		t.Fatalf("got %d blocks, want 1", len(out))
	}
	if out[0].Start != 100+5%4 {
		t.Fatalf("got start %d want %d", out[0].Start, 100+5%4)
	}
}
