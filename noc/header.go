// Package noc implements the statically-scheduled, packet-switched
// network-on-chip: wire header encoding, packet packing/unpacking, and the
// per-core router state machine that drives send/multicast/relay/receive.
package noc

import "encoding/binary"

// HeadBase is the one-to-one packet header: 32 bits laid out
// S:1 | T:1 | P:1 | Q:1 | X:8 | Y:8 | A:12, least-significant field first.
// A field of zero in the A_offset/Const/pack_per_Rhead sense elsewhere means
// "one"; HeadBase itself carries no such fields.
type HeadBase struct {
	S uint32 // start-of-send
	T uint32 // packet type: 0 single, 1 multi
	P uint32 // stop
	Q uint32 // broadcast/relay
	X int32  // destination x offset, 8-bit signed
	Y int32  // destination y offset, 8-bit signed
	A uint32 // address/offset field, 12 bits
}

// EncodeHeadBase packs h into its 32-bit wire form.
func EncodeHeadBase(h HeadBase) uint32 {
	var v uint32
	v |= h.S & 0x1
	v |= (h.T & 0x1) << 1
	v |= (h.P & 0x1) << 2
	v |= (h.Q & 0x1) << 3
	v |= uint32(uint8(int8(h.X))) << 4
	v |= uint32(uint8(int8(h.Y))) << 12
	v |= (h.A & 0xFFF) << 20
	return v
}

// DecodeHeadBase is the inverse of EncodeHeadBase.
func DecodeHeadBase(v uint32) HeadBase {
	return HeadBase{
		S: v & 0x1,
		T: (v >> 1) & 0x1,
		P: (v >> 2) & 0x1,
		Q: (v >> 3) & 0x1,
		X: int32(int8(uint8((v >> 4) & 0xFF))),
		Y: int32(int8(uint8((v >> 12) & 0xFF))),
		A: (v >> 20) & 0xFFF,
	}
}

// HeadBaseBytes returns the little-endian 4-byte wire encoding of h, the
// form a DataBlock's backing bytes carry when length() == 4.
func HeadBaseBytes(h HeadBase) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, EncodeHeadBase(h))
	return b
}

// ParseHeadBase decodes a 4-byte little-endian wire header.
func ParseHeadBase(b []byte) HeadBase {
	return DecodeHeadBase(binary.LittleEndian.Uint32(b))
}

// HeadAdvanced is the one-to-many packet header: HeadBase followed by 32
// more bits, pack_per_Rhead:12 | A_offset:12 | Const:7 | EN:1. A value of
// zero in pack_per_Rhead, A_offset, or Const encodes "one" at the call
// site (see CalcAddress); EN gates whether this header actually fires.
type HeadAdvanced struct {
	Base         HeadBase
	PackPerRhead uint32
	AOffset      uint32
	Const        uint32
	EN           uint32
}

// EncodeHeadAdvanced packs h into its 64-bit wire form.
func EncodeHeadAdvanced(h HeadAdvanced) uint64 {
	lo := uint64(EncodeHeadBase(h.Base))
	var hi uint32
	hi |= h.PackPerRhead & 0xFFF
	hi |= (h.AOffset & 0xFFF) << 12
	hi |= (h.Const & 0x7F) << 24
	hi |= (h.EN & 0x1) << 31
	return lo | uint64(hi)<<32
}

// DecodeHeadAdvanced is the inverse of EncodeHeadAdvanced.
func DecodeHeadAdvanced(v uint64) HeadAdvanced {
	lo := uint32(v)
	hi := uint32(v >> 32)
	return HeadAdvanced{
		Base:         DecodeHeadBase(lo),
		PackPerRhead: hi & 0xFFF,
		AOffset:      (hi >> 12) & 0xFFF,
		Const:        (hi >> 24) & 0x7F,
		EN:           (hi >> 31) & 0x1,
	}
}

// HeadAdvancedBytes returns the little-endian 8-byte wire encoding of h.
func HeadAdvancedBytes(h HeadAdvanced) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, EncodeHeadAdvanced(h))
	return b
}

// ParseHeadAdvanced decodes an 8-byte little-endian wire header.
func ParseHeadAdvanced(b []byte) HeadAdvanced {
	return DecodeHeadAdvanced(binary.LittleEndian.Uint64(b))
}
