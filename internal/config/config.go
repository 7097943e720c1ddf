package config

import (
	"fmt"
	"runtime"
	"strings"
)

type MemoryType string

const (
	MemoryF16 MemoryType = "f16"
	MemoryF32 MemoryType = "f32"
)

// Bytes is the storage size of one cached element.
func (m MemoryType) Bytes() int {
	if m == MemoryF32 {
		return 4
	}
	return 2
}

// SessionConfig configures a single inference session. Zero values are
// replaced by DefaultSession values in WithDefaults.
type SessionConfig struct {
	ContextSize            int        `mapstructure:"context_size"`
	BatchSize              int        `mapstructure:"batch_size"`
	Threads                int        `mapstructure:"threads"`
	RepetitionPenaltyLastN int        `mapstructure:"repetition_penalty_last_n"`
	MemoryKType            MemoryType `mapstructure:"memory_k_type"`
	MemoryVType            MemoryType `mapstructure:"memory_v_type"`
}

func DefaultSession() SessionConfig {
	return SessionConfig{
		ContextSize:            2048,
		BatchSize:              8,
		Threads:                runtime.NumCPU(),
		RepetitionPenaltyLastN: 512,
		MemoryKType:            MemoryF16,
		MemoryVType:            MemoryF16,
	}
}

func (c SessionConfig) WithDefaults() SessionConfig {
	d := DefaultSession()
	if c.ContextSize == 0 {
		c.ContextSize = d.ContextSize
	}
	if c.BatchSize == 0 {
		c.BatchSize = d.BatchSize
	}
	if c.Threads == 0 {
		c.Threads = d.Threads
	}
	if c.RepetitionPenaltyLastN == 0 {
		c.RepetitionPenaltyLastN = d.RepetitionPenaltyLastN
	}
	if c.MemoryKType == "" {
		c.MemoryKType = d.MemoryKType
	}
	if c.MemoryVType == "" {
		c.MemoryVType = d.MemoryVType
	}
	return c
}

func (c SessionConfig) Validate() error {
	if c.ContextSize <= 0 {
		return fmt.Errorf("invalid context_size: %d (must be positive)", c.ContextSize)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("invalid batch_size: %d (must be positive)", c.BatchSize)
	}
	if c.Threads <= 0 {
		return fmt.Errorf("invalid threads: %d (must be positive)", c.Threads)
	}
	if c.RepetitionPenaltyLastN < 0 {
		return fmt.Errorf("invalid repetition_penalty_last_n: %d (must be non-negative)", c.RepetitionPenaltyLastN)
	}
	for name, m := range map[string]MemoryType{"memory_k_type": c.MemoryKType, "memory_v_type": c.MemoryVType} {
		if m != MemoryF16 && m != MemoryF32 {
			return fmt.Errorf("invalid %s: %q (want f16 or f32)", name, m)
		}
	}
	return nil
}

// ModelParameters are passed to the loader.
type ModelParameters struct {
	PreferMmap  bool `mapstructure:"prefer_mmap"`
	ContextSize int  `mapstructure:"context_size"`
	UseGPU      bool `mapstructure:"use_gpu"`
	GPULayers   int  `mapstructure:"gpu_layers"`
}

func DefaultModelParameters() ModelParameters {
	return ModelParameters{
		PreferMmap:  true,
		ContextSize: 2048,
	}
}

func (p ModelParameters) Validate() error {
	if p.ContextSize <= 0 {
		return fmt.Errorf("invalid context_size: %d (must be positive)", p.ContextSize)
	}
	if p.GPULayers < 0 {
		return fmt.Errorf("invalid gpu_layers: %d (must be non-negative)", p.GPULayers)
	}
	if p.GPULayers > 0 && !p.UseGPU {
		return fmt.Errorf("gpu_layers=%d requires use_gpu", p.GPULayers)
	}
	return nil
}

// Hyperparameters describe a loaded model's shape.
type Hyperparameters struct {
	Architecture    string
	EmbeddingLength int
	VocabSize       int
	ContextLength   int
	BlockCount      int
	AttentionHeads  int
	Eps             float32
}

func (h *Hyperparameters) Validate() error {
	if h.EmbeddingLength <= 0 {
		return fmt.Errorf("invalid embedding_length: %d (must be positive)", h.EmbeddingLength)
	}
	if h.VocabSize <= 0 {
		return fmt.Errorf("invalid vocab_size: %d (must be positive)", h.VocabSize)
	}
	if h.ContextLength <= 0 {
		return fmt.Errorf("invalid context_length: %d (must be positive)", h.ContextLength)
	}
	if h.BlockCount < 0 {
		return fmt.Errorf("invalid block_count: %d (must be non-negative)", h.BlockCount)
	}
	if h.AttentionHeads <= 0 || h.EmbeddingLength%h.AttentionHeads != 0 {
		return fmt.Errorf("invalid attention heads: %d (must divide embedding_length %d)", h.AttentionHeads, h.EmbeddingLength)
	}
	if h.Eps <= 0 {
		return fmt.Errorf("invalid eps: %f (must be positive)", h.Eps)
	}
	return nil
}

func (h *Hyperparameters) GetArchitecture() string {
	return strings.ToLower(h.Architecture)
}

// Bench configures the benchmark driver.
type Bench struct {
	MaxQueryBytes int  `mapstructure:"max_query_bytes"`
	PrependBOS    bool `mapstructure:"prepend_bos"`
	Runs          int  `mapstructure:"runs"`
	Concurrency   int  `mapstructure:"concurrency"`
}

func DefaultBench() Bench {
	return Bench{
		MaxQueryBytes: 400,
		PrependBOS:    true,
		Runs:          1,
		Concurrency:   1,
	}
}

func (b Bench) Validate() error {
	if b.MaxQueryBytes < 0 {
		return fmt.Errorf("invalid max_query_bytes: %d (0 disables truncation)", b.MaxQueryBytes)
	}
	if b.Runs <= 0 {
		return fmt.Errorf("invalid runs: %d (must be positive)", b.Runs)
	}
	if b.Concurrency <= 0 {
		return fmt.Errorf("invalid concurrency: %d (must be positive)", b.Concurrency)
	}
	if b.Concurrency > b.Runs {
		return fmt.Errorf("concurrency (%d) > runs (%d)", b.Concurrency, b.Runs)
	}
	return nil
}
