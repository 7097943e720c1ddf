package gguf

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/edsrzf/mmap-go"

	"github.com/23skdu/longbow-bench/internal/logger"
)

// LoadOptions controls how the file contents are brought into memory.
type LoadOptions struct {
	// PreferMmap maps the file read-only instead of reading it onto the heap.
	PreferMmap bool
}

// LoadFile maps a GGUF file into memory and parses headers/metadata.
func LoadFile(path string) (*GGUFFile, error) {
	return Open(path, LoadOptions{PreferMmap: true})
}

// Open reads the GGUF header, metadata and tensor index of path.
func Open(path string, opts LoadOptions) (*GGUFFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() < 24 { // magic + version + counts
		return nil, io.ErrUnexpectedEOF
	}

	file := &GGUFFile{
		Path: path,
		KV:   make(map[string]interface{}),
	}

	if opts.PreferMmap {
		m, err := mmap.Map(f, mmap.RDONLY, 0)
		if err != nil {
			return nil, fmt.Errorf("mmap failed: %w", err)
		}
		file.Data = m
		file.release = m.Unmap
	} else {
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("read failed: %w", err)
		}
		file.Data = data
	}

	if err := file.parse(); err != nil {
		_ = file.Close()
		return nil, err
	}
	return file, nil
}

func (f *GGUFFile) parse() error {
	c := &cursor{data: f.Data}

	var err error
	if f.Header.Magic, err = c.u32(); err != nil {
		return err
	}
	if f.Header.Magic != GGUFMagic {
		return ErrInvalidMagic{Magic: f.Header.Magic}
	}
	if f.Header.Version, err = c.u32(); err != nil {
		return err
	}
	// Versions 2 and 3 share the 64-bit count layout.
	if f.Header.Version < 2 || f.Header.Version > 3 {
		return ErrUnsupportedVersion{Version: f.Header.Version}
	}
	if f.Header.TensorCount, err = c.u64(); err != nil {
		return err
	}
	if f.Header.KVCount, err = c.u64(); err != nil {
		return err
	}

	logger.Log.Debug("GGUF header", "path", f.Path, "version", f.Header.Version,
		"tensors", f.Header.TensorCount, "kv", f.Header.KVCount)

	for i := uint64(0); i < f.Header.KVCount; i++ {
		key, err := c.str()
		if err != nil {
			return fmt.Errorf("kv %d key: %w", i, err)
		}
		typ, err := c.u32()
		if err != nil {
			return fmt.Errorf("kv %q type: %w", key, err)
		}
		val, err := c.value(GGUFMetadataValueType(typ))
		if err != nil {
			return fmt.Errorf("kv %q value: %w", key, err)
		}
		f.KV[key] = val
	}

	for i := uint64(0); i < f.Header.TensorCount; i++ {
		name, err := c.str()
		if err != nil {
			return fmt.Errorf("tensor %d name: %w", i, err)
		}
		dims, err := c.u32()
		if err != nil {
			return err
		}
		dimArr := make([]uint64, dims)
		for j := range dimArr {
			if dimArr[j], err = c.u64(); err != nil {
				return err
			}
		}
		typ, err := c.u32()
		if err != nil {
			return err
		}
		off, err := c.u64()
		if err != nil {
			return err
		}
		f.Tensors = append(f.Tensors, &TensorInfo{
			Name:       name,
			Dimensions: dimArr,
			Type:       GGMLType(typ),
			Offset:     off,
		})
	}

	alignment := uint64(DefaultAlignment)
	switch v := f.KV[KeyAlignment].(type) {
	case uint32:
		alignment = uint64(v)
	case uint64:
		alignment = v
	}
	if alignment == 0 {
		return fmt.Errorf("invalid alignment 0")
	}

	offset := c.off
	if pad := offset % alignment; pad != 0 {
		offset += alignment - pad
	}
	f.DataOffset = offset

	for _, t := range f.Tensors {
		start := offset + t.Offset
		end := start + t.SizeBytes()
		if start > uint64(len(f.Data)) || end > uint64(len(f.Data)) {
			return fmt.Errorf("tensor %s out of bounds (%d..%d of %d)", t.Name, start, end, len(f.Data))
		}
		t.Data = f.Data[start:end]
	}
	return nil
}

// Close releases the mapping, if any.
func (f *GGUFFile) Close() error {
	if f.release == nil {
		return nil
	}
	release := f.release
	f.release = nil
	return release()
}

// Tensor looks a tensor up by name.
func (f *GGUFFile) Tensor(name string) (*TensorInfo, bool) {
	for _, t := range f.Tensors {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

type cursor struct {
	data []byte
	off  uint64
}

func (c *cursor) need(n uint64) error {
	if c.off+n > uint64(len(c.data)) || c.off+n < c.off {
		return io.ErrUnexpectedEOF
	}
	return nil
}

func (c *cursor) u8() (uint8, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	v := c.data[c.off]
	c.off++
	return v, nil
}

func (c *cursor) u16() (uint16, error) {
	if err := c.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(c.data[c.off:])
	c.off += 2
	return v, nil
}

func (c *cursor) u32() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(c.data[c.off:])
	c.off += 4
	return v, nil
}

func (c *cursor) u64() (uint64, error) {
	if err := c.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(c.data[c.off:])
	c.off += 8
	return v, nil
}

func (c *cursor) str() (string, error) {
	n, err := c.u64()
	if err != nil {
		return "", err
	}
	if err := c.need(n); err != nil {
		return "", err
	}
	s := string(c.data[c.off : c.off+n])
	c.off += n
	return s, nil
}

func (c *cursor) value(typ GGUFMetadataValueType) (interface{}, error) {
	switch typ {
	case GGUFMetadataValueTypeUint8:
		return c.u8()
	case GGUFMetadataValueTypeInt8:
		v, err := c.u8()
		return int8(v), err
	case GGUFMetadataValueTypeUint16:
		return c.u16()
	case GGUFMetadataValueTypeInt16:
		v, err := c.u16()
		return int16(v), err
	case GGUFMetadataValueTypeUint32:
		return c.u32()
	case GGUFMetadataValueTypeInt32:
		v, err := c.u32()
		return int32(v), err
	case GGUFMetadataValueTypeFloat32:
		v, err := c.u32()
		return math.Float32frombits(v), err
	case GGUFMetadataValueTypeBool:
		v, err := c.u8()
		return v != 0, err
	case GGUFMetadataValueTypeString:
		return c.str()
	case GGUFMetadataValueTypeArray:
		elemType, err := c.u32()
		if err != nil {
			return nil, err
		}
		n, err := c.u64()
		if err != nil {
			return nil, err
		}
		if n > uint64(len(c.data)) {
			return nil, fmt.Errorf("array length %d exceeds file size", n)
		}
		arr := make([]interface{}, 0, n)
		for i := uint64(0); i < n; i++ {
			v, err := c.value(GGUFMetadataValueType(elemType))
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, nil
	case GGUFMetadataValueTypeUint64:
		return c.u64()
	case GGUFMetadataValueTypeInt64:
		v, err := c.u64()
		return int64(v), err
	case GGUFMetadataValueTypeFloat64:
		v, err := c.u64()
		return math.Float64frombits(v), err
	default:
		return nil, fmt.Errorf("unsupported metadata type: %d", typ)
	}
}
