package reference

import (
	"github.com/23skdu/longbow-bench/internal/config"
	"github.com/23skdu/longbow-bench/internal/gguf"
	"github.com/23skdu/longbow-bench/internal/metrics"
)

// kvBuffer stores cache rows as f32 or f16 depending on the session's
// memory type.
type kvBuffer struct {
	f32 []float32
	f16 []uint16
}

func newKVBuffer(t config.MemoryType, n int) kvBuffer {
	if t == config.MemoryF32 {
		return kvBuffer{f32: make([]float32, n)}
	}
	return kvBuffer{f16: make([]uint16, n)}
}

func (b *kvBuffer) write(off int, src []float32) {
	if b.f32 != nil {
		copy(b.f32[off:], src)
		return
	}
	for i, v := range src {
		b.f16[off+i] = gguf.Float32ToFloat16(v)
	}
}

func (b *kvBuffer) read(off int, dst []float32) {
	if b.f32 != nil {
		copy(dst, b.f32[off:off+len(dst)])
		return
	}
	for i := range dst {
		dst[i] = gguf.Float16ToFloat32(b.f16[off+i])
	}
}

// kvCache is the per-session attention cache, [layer][position][dim].
type kvCache struct {
	layers     int
	contextLen int
	dim        int
	k, v       []kvBuffer
	bytesPer   int
}

func newKVCache(cfg config.SessionConfig, layers, dim int) *kvCache {
	c := &kvCache{
		layers:     layers,
		contextLen: cfg.ContextSize,
		dim:        dim,
		k:          make([]kvBuffer, layers),
		v:          make([]kvBuffer, layers),
		bytesPer:   cfg.MemoryKType.Bytes() + cfg.MemoryVType.Bytes(),
	}
	for l := 0; l < layers; l++ {
		c.k[l] = newKVBuffer(cfg.MemoryKType, c.contextLen*dim)
		c.v[l] = newKVBuffer(cfg.MemoryVType, c.contextLen*dim)
	}
	metrics.RecordKVCacheStats(c.capacityBytes(), 0)
	return c
}

func (c *kvCache) capacityBytes() int64 {
	return int64(c.layers) * int64(c.contextLen) * int64(c.dim) * int64(c.bytesPer)
}

func (c *kvCache) usedBytes(positions int) int64 {
	return int64(c.layers) * int64(positions) * int64(c.dim) * int64(c.bytesPer)
}

func (c *kvCache) store(layer, pos int, k, v []float32) {
	c.k[layer].write(pos*c.dim, k)
	c.v[layer].write(pos*c.dim, v)
}

func (c *kvCache) key(layer, pos int, dst []float32) {
	c.k[layer].read(pos*c.dim, dst)
}

func (c *kvCache) value(layer, pos int, dst []float32) {
	c.v[layer].read(pos*c.dim, dst)
}
