package gguf

import (
	"encoding/binary"
	"fmt"
	"math"
)

// BlockSizeQ8_0 is the number of weights per Q8_0 block (f16 scale + 32 int8).
const (
	BlockSizeQ8_0  = 32
	blockBytesQ8_0 = 34
)

// Decode converts a whole tensor to float32.
func Decode(t *TensorInfo) ([]float32, error) {
	n := int(t.NumElements())
	return decodeRange(t, 0, n)
}

// DecodeRow converts row i of a 2D tensor whose rows have width elements.
func DecodeRow(t *TensorInfo, i, width int) ([]float32, error) {
	if i < 0 || uint64((i+1)*width) > t.NumElements() {
		return nil, fmt.Errorf("row %d out of range for tensor %s", i, t.Name)
	}
	return decodeRange(t, i*width, width)
}

func decodeRange(t *TensorInfo, start, n int) ([]float32, error) {
	out := make([]float32, n)
	switch t.Type {
	case GGMLTypeF32:
		src := t.Data[4*start:]
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[4*i:]))
		}
	case GGMLTypeF16:
		src := t.Data[2*start:]
		for i := range out {
			out[i] = Float16ToFloat32(binary.LittleEndian.Uint16(src[2*i:]))
		}
	case GGMLTypeQ8_0:
		if start%BlockSizeQ8_0 != 0 || n%BlockSizeQ8_0 != 0 {
			return nil, fmt.Errorf("Q8_0 range %d+%d not block aligned", start, n)
		}
		off := (start / BlockSizeQ8_0) * blockBytesQ8_0
		DequantizeQ8_0(t.Data[off:], out)
	default:
		return nil, fmt.Errorf("unsupported tensor type %s for %s", t.Type, t.Name)
	}
	return out, nil
}

// DequantizeQ8_0 fills out from consecutive Q8_0 blocks in data.
// Layout per block: d (f16) followed by 32 signed quants.
func DequantizeQ8_0(data []byte, out []float32) {
	for b := 0; b*BlockSizeQ8_0 < len(out); b++ {
		block := data[b*blockBytesQ8_0 : (b+1)*blockBytesQ8_0]
		d := Float16ToFloat32(binary.LittleEndian.Uint16(block[0:2]))
		for j := 0; j < BlockSizeQ8_0; j++ {
			out[b*BlockSizeQ8_0+j] = d * float32(int8(block[2+j]))
		}
	}
}

func Float16ToFloat32(b uint16) float32 {
	sign := uint32(b&0x8000) << 16
	exp := uint32(b&0x7C00) >> 10
	frac := uint32(b&0x03FF) << 13

	switch exp {
	case 0:
		if frac == 0 {
			return math.Float32frombits(sign)
		}
		// subnormal
		f := float64(b&0x03FF) * math.Pow(2, -24)
		if sign != 0 {
			f = -f
		}
		return float32(f)
	case 0x1F:
		if frac == 0 {
			return math.Float32frombits(sign | 0x7F800000)
		}
		return float32(math.NaN())
	}
	return math.Float32frombits(sign | ((exp + 112) << 23) | frac)
}

// Float32ToFloat16 rounds to nearest half; out-of-range values saturate to Inf.
func Float32ToFloat16(f float32) uint16 {
	bits := math.Float32bits(f)
	sign := uint16(bits>>16) & 0x8000
	exp := int32((bits>>23)&0xFF) - 127 + 15
	frac := bits & 0x7FFFFF

	switch {
	case (bits>>23)&0xFF == 0xFF:
		if frac != 0 {
			return sign | 0x7E00
		}
		return sign | 0x7C00
	case exp >= 0x1F:
		return sign | 0x7C00
	case exp <= 0:
		if exp < -10 {
			return sign
		}
		frac |= 0x800000
		shift := uint32(14 - exp)
		half := uint16(frac >> shift)
		if frac>>(shift-1)&1 != 0 {
			half++
		}
		return sign | half
	}
	half := sign | uint16(exp)<<10 | uint16(frac>>13)
	if frac&0x1000 != 0 {
		half++
	}
	return half
}
