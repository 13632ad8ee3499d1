package primitive

import "encoding/binary"

// Precision names the numeric encoding a block's bytes are packed in. The
// values and ordering mirror the four precisions the original kernels
// dispatch on; the zero value is Int32, the word-native width.
type Precision int

const (
	Int32 Precision = iota
	Int8
	UInt8
	Ternary
)

// ElementsPerWord is how many values of p pack into one 4-byte word.
func (p Precision) ElementsPerWord() int {
	switch p {
	case Int32:
		return 1
	case Int8, UInt8:
		return 4
	case Ternary:
		return 16
	default:
		return 1
	}
}

// BytesPerElement is the packed byte width of one value at p, derived from
// how many of p's elements share a 4-byte word. Ternary packs four values
// into a single byte and has no whole-byte element width, so it returns 0;
// callers go through DecodeTernary/EncodeTernary instead.
func (p Precision) BytesPerElement() int {
	if p == Ternary {
		return 0
	}
	return 4 / p.ElementsPerWord()
}

// Saturate clamps a 64-bit accumulation result into the int32 range, the one
// saturation rule every PI kernel applies at its accumulation sites
// regardless of the operands' declared precision.
func Saturate(v int64) int32 {
	const lo, hi = int64(-2147483648), int64(2147483647)
	if v < lo {
		return int32(lo)
	}
	if v > hi {
		return int32(hi)
	}
	return int32(v)
}

// DecodeTernary unpacks a ternary-encoded byte into four values, two bits
// each, per the encoding {0->0, 1->1, 3->-1} (bit pattern 2 is unused and
// decodes as 0).
func DecodeTernary(b byte) [4]int8 {
	var out [4]int8
	for i := 0; i < 4; i++ {
		bits := (b >> uint(i*2)) & 0x3
		switch bits {
		case 1:
			out[i] = 1
		case 3:
			out[i] = -1
		default:
			out[i] = 0
		}
	}
	return out
}

// EncodeTernary is the inverse of DecodeTernary.
func EncodeTernary(v [4]int8) byte {
	var b byte
	for i, x := range v {
		var bits byte
		switch {
		case x > 0:
			bits = 1
		case x < 0:
			bits = 3
		default:
			bits = 0
		}
		b |= bits << uint(i*2)
	}
	return b
}

// decodeOne reads one precision-sized element starting at b's front.
func decodeOne(b []byte, p Precision) int32 {
	switch p {
	case Int32:
		return int32(binary.LittleEndian.Uint32(b))
	case Int8:
		return int32(int8(b[0]))
	case UInt8:
		return int32(b[0])
	default:
		return 0
	}
}

// encodeOne is the inverse of decodeOne.
func encodeOne(b []byte, v int32, p Precision) {
	switch p {
	case Int32:
		binary.LittleEndian.PutUint32(b, uint32(v))
	case Int8, UInt8:
		b[0] = byte(v)
	}
}

// decodeElements unpacks data into int32-widened elements at precision p, the
// shared element-grouping step every dispatch kernel runs through before
// applying its per-element arithmetic. Ternary packs 4 elements per byte;
// every other precision packs BytesPerElement() bytes per element.
func decodeElements(data []byte, p Precision) []int32 {
	if p == Ternary {
		out := make([]int32, 0, len(data)*4)
		for _, b := range data {
			for _, v := range DecodeTernary(b) {
				out = append(out, int32(v))
			}
		}
		return out
	}
	width := p.BytesPerElement()
	n := len(data) / width
	out := make([]int32, n)
	for i := 0; i < n; i++ {
		out[i] = decodeOne(data[i*width:i*width+width], p)
	}
	return out
}

// encodeElements is the inverse of decodeElements.
func encodeElements(values []int32, p Precision) []byte {
	if p == Ternary {
		out := make([]byte, 0, (len(values)+3)/4)
		for i := 0; i < len(values); i += 4 {
			var quad [4]int8
			for j := 0; j < 4 && i+j < len(values); j++ {
				quad[j] = int8(values[i+j])
			}
			out = append(out, EncodeTernary(quad))
		}
		return out
	}
	width := p.BytesPerElement()
	out := make([]byte, len(values)*width)
	for i, v := range values {
		encodeOne(out[i*width:i*width+width], v, p)
	}
	return out
}
