package gguf

import (
	"strings"
	"testing"
)

func TestMetadataAnalyzerBasic(t *testing.T) {
	file := &GGUFFile{
		KV: map[string]interface{}{
			KeyArchitecture:              "llama",
			KeyName:                      "test-model",
			"llama.context_length":       uint64(4096),
			"llama.embedding_length":     uint32(64),
			"llama.block_count":          uint32(2),
			"llama.attention.head_count": uint32(4),
			KeyTokens:                    []interface{}{"<s>", "a"},
		},
		Tensors: []*TensorInfo{
			{Name: "token_embd.weight", Dimensions: []uint64{64, 2}, Type: GGMLTypeF32},
			{Name: "output_norm.weight", Dimensions: []uint64{64}, Type: GGMLTypeF16},
		},
	}

	report, err := NewMetadataAnalyzer(file).Analyze()
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if report.Architecture != "llama" || report.ModelName != "test-model" {
		t.Errorf("identity = %q/%q", report.Architecture, report.ModelName)
	}
	if report.ContextLength != 4096 || report.EmbeddingLength != 64 || report.BlockCount != 2 {
		t.Errorf("hyperparameters = %+v", report)
	}
	if report.VocabSize != 2 {
		t.Errorf("vocab size = %d", report.VocabSize)
	}
	if report.TotalParameters != 192 {
		t.Errorf("parameters = %d, want 192", report.TotalParameters)
	}
	if report.MemoryEstimate != 64*2*4+64*2 {
		t.Errorf("memory = %d", report.MemoryEstimate)
	}
	if !strings.Contains(report.String(), "Architecture:     llama") {
		t.Errorf("report string:\n%s", report)
	}
}

func TestMetadataAnalyzerDefaults(t *testing.T) {
	file := &GGUFFile{KV: map[string]interface{}{KeyArchitecture: "gpt2"}}
	report, err := NewMetadataAnalyzer(file).Analyze()
	if err != nil {
		t.Fatal(err)
	}
	if report.ContextLength != 2048 {
		t.Errorf("default context length = %d", report.ContextLength)
	}

	if _, err := NewMetadataAnalyzer(&GGUFFile{KV: map[string]interface{}{}}).Analyze(); err == nil {
		t.Error("expected error without architecture")
	}
}

func TestFindMissingTensors(t *testing.T) {
	file := &GGUFFile{Tensors: []*TensorInfo{{Name: "token_embd.weight"}}}
	missing := NewMetadataAnalyzer(file).FindMissingTensors([]string{"token_embd.weight", "output_norm.weight"})
	if len(missing) != 1 || missing[0] != "output_norm.weight" {
		t.Errorf("missing = %v", missing)
	}
}
