package config

import (
	"runtime"
	"strings"
	"testing"
)

func TestDefaultSession(t *testing.T) {
	cfg := DefaultSession()

	if cfg.ContextSize != 2048 {
		t.Errorf("expected ContextSize 2048, got %d", cfg.ContextSize)
	}
	if cfg.BatchSize != 8 {
		t.Errorf("expected BatchSize 8, got %d", cfg.BatchSize)
	}
	if cfg.Threads != runtime.NumCPU() {
		t.Errorf("expected Threads %d, got %d", runtime.NumCPU(), cfg.Threads)
	}
	if cfg.RepetitionPenaltyLastN != 512 {
		t.Errorf("expected RepetitionPenaltyLastN 512, got %d", cfg.RepetitionPenaltyLastN)
	}
	if cfg.MemoryKType != MemoryF16 || cfg.MemoryVType != MemoryF16 {
		t.Errorf("expected f16 memory, got %s/%s", cfg.MemoryKType, cfg.MemoryVType)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default session invalid: %v", err)
	}
}

func TestSessionWithDefaults(t *testing.T) {
	cfg := SessionConfig{ContextSize: 64, MemoryKType: MemoryF32}.WithDefaults()
	if cfg.ContextSize != 64 {
		t.Errorf("explicit ContextSize overwritten: %d", cfg.ContextSize)
	}
	if cfg.MemoryKType != MemoryF32 {
		t.Errorf("explicit MemoryKType overwritten: %s", cfg.MemoryKType)
	}
	if cfg.BatchSize != 8 || cfg.MemoryVType != MemoryF16 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestSessionValidate(t *testing.T) {
	valid := DefaultSession()
	tests := []struct {
		name    string
		mutate  func(*SessionConfig)
		wantErr string
	}{
		{"valid", func(*SessionConfig) {}, ""},
		{"zero context", func(c *SessionConfig) { c.ContextSize = 0 }, "context_size"},
		{"zero batch", func(c *SessionConfig) { c.BatchSize = 0 }, "batch_size"},
		{"negative threads", func(c *SessionConfig) { c.Threads = -1 }, "threads"},
		{"negative last n", func(c *SessionConfig) { c.RepetitionPenaltyLastN = -1 }, "repetition_penalty_last_n"},
		{"bad memory type", func(c *SessionConfig) { c.MemoryVType = "q8" }, "memory_v_type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestMemoryTypeBytes(t *testing.T) {
	if MemoryF16.Bytes() != 2 || MemoryF32.Bytes() != 4 {
		t.Errorf("bytes = %d/%d", MemoryF16.Bytes(), MemoryF32.Bytes())
	}
}

func TestModelParametersValidate(t *testing.T) {
	p := DefaultModelParameters()
	if !p.PreferMmap || p.UseGPU {
		t.Errorf("unexpected defaults: %+v", p)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("defaults invalid: %v", err)
	}

	p.GPULayers = 4
	if err := p.Validate(); err == nil {
		t.Error("expected error for gpu_layers without use_gpu")
	}
	p.UseGPU = true
	if err := p.Validate(); err != nil {
		t.Errorf("gpu config invalid: %v", err)
	}
	p.ContextSize = 0
	if err := p.Validate(); err == nil {
		t.Error("expected error for zero context size")
	}
}

func TestHyperparametersValidate(t *testing.T) {
	tests := []struct {
		name    string
		h       Hyperparameters
		wantErr bool
	}{
		{"valid", Hyperparameters{EmbeddingLength: 8, VocabSize: 3, ContextLength: 16, AttentionHeads: 2, Eps: 1e-5}, false},
		{"heads do not divide", Hyperparameters{EmbeddingLength: 8, VocabSize: 3, ContextLength: 16, AttentionHeads: 3, Eps: 1e-5}, true},
		{"no embedding", Hyperparameters{VocabSize: 3, ContextLength: 16, Eps: 1e-5}, true},
		{"no vocab", Hyperparameters{EmbeddingLength: 8, ContextLength: 16, Eps: 1e-5}, true},
		{"no context", Hyperparameters{EmbeddingLength: 8, VocabSize: 3, Eps: 1e-5}, true},
		{"negative blocks", Hyperparameters{EmbeddingLength: 8, VocabSize: 3, ContextLength: 16, BlockCount: -1, AttentionHeads: 1, Eps: 1e-5}, true},
		{"no eps", Hyperparameters{EmbeddingLength: 8, VocabSize: 3, ContextLength: 16, AttentionHeads: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.h.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	h := Hyperparameters{Architecture: "LLaMA"}
	if h.GetArchitecture() != "llama" {
		t.Errorf("GetArchitecture() = %q", h.GetArchitecture())
	}
}

func TestBenchValidate(t *testing.T) {
	b := DefaultBench()
	if b.MaxQueryBytes != 400 || !b.PrependBOS || b.Runs != 1 || b.Concurrency != 1 {
		t.Errorf("unexpected defaults: %+v", b)
	}
	if err := b.Validate(); err != nil {
		t.Errorf("defaults invalid: %v", err)
	}

	b.Concurrency = 2
	if err := b.Validate(); err == nil {
		t.Error("expected error for concurrency > runs")
	}
	b.Runs = 4
	if err := b.Validate(); err != nil {
		t.Errorf("runs=4 concurrency=2 invalid: %v", err)
	}
	b.MaxQueryBytes = -1
	if err := b.Validate(); err == nil {
		t.Error("expected error for negative max query bytes")
	}
}
