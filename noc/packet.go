package noc

import (
	"fmt"
	"sort"

	"github.com/sarchlab/bsim/errs"
	"github.com/sarchlab/bsim/identity"
	"github.com/sarchlab/bsim/memory"
)

// PacketType distinguishes a one-to-one wire packet from a one-to-many
// (multi-pack) wire packet; it is the router PI's T bit.
type PacketType int

const (
	SinglePack PacketType = iota
	MultiPack
)

// BroadcastKind selects the router's send-side fan-out behavior: a normal
// unicast send, a multicast (peek without consuming the source pool), or a
// relay (consume and resend to a new destination).
type BroadcastKind int

const (
	Normal BroadcastKind = iota
	Multicast
	Relay
)

// RouterParams is the decoded form of a router PI's parameters: enough to
// drive NoC.Route through its send/multicast-or-relay/receive stages.
type RouterParams struct {
	SendEn bool
	RecvEn bool

	MulticastRelayOrNot BroadcastKind
	MulticastRelayNum   int

	ReceivedStopNum int

	// Dx, Dy re-target a multicast/relay packet's destination relative to
	// its current destination, per identity.OffsetCore.
	Dx, Dy int32

	RecvAddress     int
	DinLength       int
	RecvEndPhase    uint32
	HeaderMultipack PacketType
}

// PacketHeader is a packet's routing metadata, independent of its payload.
type PacketHeader struct {
	Source, Destination identity.ID
	BroadcastOrRelay     bool
	Type                 PacketType
	Offset               int
	Stop                 bool
	RecvEndPhase         uint32
	BlockID              int
}

// Packet is a header plus the memory.Block it carries.
type Packet struct {
	Header PacketHeader
	Data   memory.Block
}

// CalcAddress computes the receive-side offset (the A field) for the
// packetNum-th packet produced from a one-to-many header, per
// original_source's DataPacketUtil::calc_address.
func CalcAddress(packetNum, start, constNum, offset int) int {
	return start + (packetNum/(constNum+1))*(offset+1+constNum) + packetNum%(constNum+1)
}

// Pack turns a flat stream of blocks - alternating header blocks (length 4
// or 8, carrying an encoded HeadBase/HeadAdvanced) and their payload blocks -
// into wire Packets. It mirrors original_source's DataPacketUtil::pack.
func Pack(blocks []memory.Block, params RouterParams) ([]Packet, error) {
	var packets []Packet

	totalPackNum := 0
	remain := 0
	var addrFn func(packetNum int) int
	var destination identity.ID
	var broadcastOrRelay bool
	var blockID int

	i := 0
	for i < len(blocks) {
		b := blocks[i]

		if remain == 0 {
			switch b.Length {
			case 4:
				if len(b.Data) < 4 {
					return nil, errs.New("noc.Pack", errs.ErrInvariant,
						fmt.Errorf("header block %s too short", b.ID))
				}
				h := ParseHeadBase(b.Data)
				start := int(h.A)
				addrFn = func(packetNum int) int { return CalcAddress(packetNum, start, 0, 0) }
				remain = 1
				totalPackNum = 1
				core := b.Core
				destination = identity.OffsetCore(core, h.X, h.Y)
				broadcastOrRelay = h.Q == 1
				blockID = int(h.A)
			case 8:
				if len(b.Data) < 8 {
					return nil, errs.New("noc.Pack", errs.ErrInvariant,
						fmt.Errorf("header block %s too short", b.ID))
				}
				ha := ParseHeadAdvanced(b.Data)
				if ha.EN == 0 {
					i += int(ha.PackPerRhead) + 2
					continue
				}
				start := int(ha.Base.A)
				constNum := int(ha.Const)
				offset := int(ha.AOffset)
				addrFn = func(packetNum int) int { return CalcAddress(packetNum, start, constNum, offset) }
				remain = int(ha.PackPerRhead) + 1
				totalPackNum = remain
				core := b.Core
				destination = identity.OffsetCore(core, ha.Base.X, ha.Base.Y)
				broadcastOrRelay = ha.Base.Q == 1
				blockID = int(ha.Base.A)
			default:
				return nil, errs.New("noc.Pack", errs.ErrInvariant,
					fmt.Errorf("header block %s has unsupported length %d", b.ID, b.Length))
			}
			i++
			continue
		}

		header := PacketHeader{
			Source:           b.Core,
			Destination:      destination,
			BroadcastOrRelay: broadcastOrRelay,
			Type:             params.HeaderMultipack,
			Offset:           addrFn(totalPackNum - remain),
			BlockID:          blockID,
			RecvEndPhase:     params.RecvEndPhase,
		}
		remain--
		header.Stop = remain == 0

		packets = append(packets, Packet{Header: header, Data: b})
		i++
	}

	return packets, nil
}

// Repack re-targets a set of packets for multicast/relay resend: the
// previous destination becomes the new source, and the destination moves by
// (dx, dy) via identity.OffsetCore. Mirrors DataPacketUtil::repack.
func Repack(packets []Packet, dx, dy int32) []Packet {
	out := make([]Packet, len(packets))
	for i, p := range packets {
		h := p.Header
		h.Source = h.Destination
		h.Destination = identity.OffsetCore(h.Destination, dx, dy)
		out[i] = Packet{Header: h, Data: p.Data}
	}
	return out
}

// Unpack turns received packets back into memory.Blocks addressed at the
// receiver's recvAddress, wrapping offsets into [0, dinLength). Mirrors
// DataPacketUtil::unpack.
func Unpack(packets []Packet, recvAddress, dinLength int) []memory.Block {
	out := make([]memory.Block, 0, len(packets))
	for _, p := range packets {
		var addr int
		switch p.Header.Type {
		case MultiPack:
			addr = recvAddress + (p.Header.Offset*8)%dinLength
		case SinglePack:
			addr = recvAddress + p.Header.Offset%dinLength
		}
		b := p.Data
		b.Core = p.Header.Destination
		b.Start = addr
		out = append(out, b)
	}
	return out
}

// sortByOffset sorts packets in place by their header's Offset field,
// matching Extract's ordering before reassembling bytes.
func sortByOffset(packets []Packet) {
	sort.Slice(packets, func(i, j int) bool {
		return packets[i].Header.Offset < packets[j].Header.Offset
	})
}
