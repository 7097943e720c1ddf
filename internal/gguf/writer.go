package gguf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// Writer assembles a GGUF v3 file in memory. It is used for fixtures and tests;
// keys and tensors are emitted in insertion order.
type Writer struct {
	kv      []writerKV
	tensors []writerTensor
}

type writerKV struct {
	key   string
	typ   GGUFMetadataValueType
	write func(*bytes.Buffer)
}

type writerTensor struct {
	name string
	dims []uint64
	typ  GGMLType
	data []byte
}

func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) add(key string, typ GGUFMetadataValueType, fn func(*bytes.Buffer)) *Writer {
	w.kv = append(w.kv, writerKV{key: key, typ: typ, write: fn})
	return w
}

func (w *Writer) SetString(key, v string) *Writer {
	return w.add(key, GGUFMetadataValueTypeString, func(b *bytes.Buffer) { putString(b, v) })
}

func (w *Writer) SetUint32(key string, v uint32) *Writer {
	return w.add(key, GGUFMetadataValueTypeUint32, func(b *bytes.Buffer) { putLE(b, v) })
}

func (w *Writer) SetFloat32(key string, v float32) *Writer {
	return w.add(key, GGUFMetadataValueTypeFloat32, func(b *bytes.Buffer) { putLE(b, math.Float32bits(v)) })
}

func (w *Writer) SetBool(key string, v bool) *Writer {
	return w.add(key, GGUFMetadataValueTypeBool, func(b *bytes.Buffer) {
		if v {
			b.WriteByte(1)
		} else {
			b.WriteByte(0)
		}
	})
}

func (w *Writer) SetStrings(key string, vs []string) *Writer {
	return w.add(key, GGUFMetadataValueTypeArray, func(b *bytes.Buffer) {
		putLE(b, uint32(GGUFMetadataValueTypeString))
		putLE(b, uint64(len(vs)))
		for _, v := range vs {
			putString(b, v)
		}
	})
}

func (w *Writer) SetFloat32s(key string, vs []float32) *Writer {
	return w.add(key, GGUFMetadataValueTypeArray, func(b *bytes.Buffer) {
		putLE(b, uint32(GGUFMetadataValueTypeFloat32))
		putLE(b, uint64(len(vs)))
		for _, v := range vs {
			putLE(b, math.Float32bits(v))
		}
	})
}

func (w *Writer) SetInt32s(key string, vs []int32) *Writer {
	return w.add(key, GGUFMetadataValueTypeArray, func(b *bytes.Buffer) {
		putLE(b, uint32(GGUFMetadataValueTypeInt32))
		putLE(b, uint64(len(vs)))
		for _, v := range vs {
			putLE(b, v)
		}
	})
}

// AddTensorF32 appends an F32 tensor. dims follow GGUF order (fastest first).
func (w *Writer) AddTensorF32(name string, dims []uint64, data []float32) *Writer {
	raw := make([]byte, 4*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint32(raw[4*i:], math.Float32bits(v))
	}
	w.tensors = append(w.tensors, writerTensor{name: name, dims: dims, typ: GGMLTypeF32, data: raw})
	return w
}

// AddTensorF16 appends an F16 tensor, rounding data to half precision.
func (w *Writer) AddTensorF16(name string, dims []uint64, data []float32) *Writer {
	raw := make([]byte, 2*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint16(raw[2*i:], Float32ToFloat16(v))
	}
	w.tensors = append(w.tensors, writerTensor{name: name, dims: dims, typ: GGMLTypeF16, data: raw})
	return w
}

// WriteTo encodes the file.
func (w *Writer) WriteTo(out io.Writer) (int64, error) {
	var b bytes.Buffer
	putLE(&b, uint32(GGUFMagic))
	putLE(&b, uint32(GGUFVersion))
	putLE(&b, uint64(len(w.tensors)))
	putLE(&b, uint64(len(w.kv)))

	for _, kv := range w.kv {
		putString(&b, kv.key)
		putLE(&b, uint32(kv.typ))
		kv.write(&b)
	}

	offsets := make([]uint64, len(w.tensors))
	var next uint64
	for i, t := range w.tensors {
		offsets[i] = next
		next = alignUp(next+uint64(len(t.data)), DefaultAlignment)
	}
	for i, t := range w.tensors {
		putString(&b, t.name)
		putLE(&b, uint32(len(t.dims)))
		for _, d := range t.dims {
			putLE(&b, d)
		}
		putLE(&b, uint32(t.typ))
		putLE(&b, offsets[i])
	}

	b.Write(make([]byte, alignUp(uint64(b.Len()), DefaultAlignment)-uint64(b.Len())))
	dataStart := uint64(b.Len())
	for i, t := range w.tensors {
		if pad := dataStart + offsets[i] - uint64(b.Len()); pad > 0 {
			b.Write(make([]byte, pad))
		}
		b.Write(t.data)
	}

	n, err := out.Write(b.Bytes())
	return int64(n), err
}

// WriteFile encodes the file to path.
func (w *Writer) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := w.WriteTo(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func alignUp(n, a uint64) uint64 {
	if r := n % a; r != 0 {
		return n + a - r
	}
	return n
}

func putLE(b *bytes.Buffer, v interface{}) {
	_ = binary.Write(b, binary.LittleEndian, v)
}

func putString(b *bytes.Buffer, s string) {
	putLE(b, uint64(len(s)))
	b.WriteString(s)
}
