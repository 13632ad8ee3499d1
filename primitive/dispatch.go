package primitive

import (
	"fmt"

	"github.com/sarchlab/bsim/errs"
	"github.com/sarchlab/bsim/memory"
)

// execAddBias is the axon-side representative kernel: adds a constant bias
// to every precision-sized element of the single input block, saturating
// the accumulation at the int32 range.
func execAddBias(params Params, inputs []memory.Block) ([]memory.Block, error) {
	ap, ok := params.(AxonParams)
	if !ok {
		return nil, errs.New("primitive.AddBias", errs.ErrInvariant, fmt.Errorf("wrong params type %T", params))
	}
	if len(inputs) != 1 {
		return nil, errs.New("primitive.AddBias", errs.ErrInvariant, fmt.Errorf("want 1 input, got %d", len(inputs)))
	}
	in := inputs[0]
	elems := decodeElements(in.Data, ap.Prec)
	for i, v := range elems {
		elems[i] = Saturate(int64(v) + int64(ap.Bias))
	}
	result := in
	result.Data = encodeElements(elems, ap.Prec)
	return []memory.Block{result}, nil
}

// execMaxPool and execAvgPool are the soma-side representative pooling
// kernels: a flat, non-overlapping window reduction over the input block's
// precision-sized elements, in window-sized groups.
func execMaxPool(params Params, inputs []memory.Block) ([]memory.Block, error) {
	return pool(params, inputs, func(window []int32) int32 {
		max := window[0]
		for _, v := range window[1:] {
			if v > max {
				max = v
			}
		}
		return max
	})
}

func execAvgPool(params Params, inputs []memory.Block) ([]memory.Block, error) {
	return pool(params, inputs, func(window []int32) int32 {
		var sum int64
		for _, v := range window {
			sum += int64(v)
		}
		return Saturate(sum / int64(len(window)))
	})
}

func pool(params Params, inputs []memory.Block, reduce func([]int32) int32) ([]memory.Block, error) {
	sp, ok := params.(SomaParams)
	if !ok {
		return nil, errs.New("primitive.pool", errs.ErrInvariant, fmt.Errorf("wrong params type %T", params))
	}
	if len(inputs) != 1 {
		return nil, errs.New("primitive.pool", errs.ErrInvariant, fmt.Errorf("want 1 input, got %d", len(inputs)))
	}
	window := sp.WindowHW[0] * sp.WindowHW[1]
	if window <= 0 {
		window = 1
	}
	in := inputs[0]
	elems := decodeElements(in.Data, sp.Prec)
	var out []int32
	for i := 0; i+window <= len(elems); i += window {
		out = append(out, reduce(elems[i:i+window]))
	}
	data := encodeElements(out, sp.Prec)
	result := in
	result.Data = data
	result.Length = len(data)
	result.Size = len(data)
	return []memory.Block{result}, nil
}

// execLUT applies a byte-indexed lookup table to every precision-sized
// element of the input, keeping only the low byte of each element as the
// table index.
func execLUT(params Params, inputs []memory.Block) ([]memory.Block, error) {
	sp, ok := params.(SomaParams)
	if !ok {
		return nil, errs.New("primitive.LUT", errs.ErrInvariant, fmt.Errorf("wrong params type %T", params))
	}
	if len(sp.LUT) != 256 {
		return nil, errs.New("primitive.LUT", errs.ErrInvariant, fmt.Errorf("want a 256-entry table, got %d", len(sp.LUT)))
	}
	if len(inputs) != 1 {
		return nil, errs.New("primitive.LUT", errs.ErrInvariant, fmt.Errorf("want 1 input, got %d", len(inputs)))
	}
	in := inputs[0]
	elems := decodeElements(in.Data, sp.Prec)
	for i, v := range elems {
		looked := sp.LUT[byte(v)]
		if sp.Prec == UInt8 {
			elems[i] = int32(looked)
		} else {
			elems[i] = int32(int8(looked))
		}
	}
	result := in
	result.Data = encodeElements(elems, sp.Prec)
	return []memory.Block{result}, nil
}

// execThreshold is a LIF-style neuron stand-in: each element that exceeds
// the threshold fires (output 1), everything else is silent (output 0).
func execThreshold(params Params, inputs []memory.Block) ([]memory.Block, error) {
	sp, ok := params.(SomaParams)
	if !ok {
		return nil, errs.New("primitive.Threshold", errs.ErrInvariant, fmt.Errorf("wrong params type %T", params))
	}
	if len(inputs) != 1 {
		return nil, errs.New("primitive.Threshold", errs.ErrInvariant, fmt.Errorf("want 1 input, got %d", len(inputs)))
	}
	in := inputs[0]
	elems := decodeElements(in.Data, sp.Prec)
	for i, v := range elems {
		if v > sp.Threshold {
			elems[i] = 1
		} else {
			elems[i] = 0
		}
	}
	result := in
	result.Data = encodeElements(elems, sp.Prec)
	return []memory.Block{result}, nil
}
