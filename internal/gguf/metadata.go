package gguf

import (
	"fmt"
)

type MetadataAnalyzer struct {
	file *GGUFFile
}

func NewMetadataAnalyzer(file *GGUFFile) *MetadataAnalyzer {
	return &MetadataAnalyzer{file: file}
}

type AnalysisReport struct {
	Architecture    string
	ModelName       string
	ContextLength   int
	EmbeddingLength int
	BlockCount      int
	AttentionHeads  int
	VocabSize       int
	TotalParameters int64
	TensorCount     int
	MemoryEstimate  int64
}

func (a *MetadataAnalyzer) Analyze() (*AnalysisReport, error) {
	report := &AnalysisReport{
		TensorCount: len(a.file.Tensors),
	}

	report.Architecture = a.file.GetString(KeyArchitecture)
	if report.Architecture == "" {
		return nil, fmt.Errorf("missing %s", KeyArchitecture)
	}
	report.ModelName = a.file.GetString(KeyName)

	arch := report.Architecture
	report.ContextLength = int(getKVInt(a.file.KV, arch+".context_length", "general.context_length"))
	if report.ContextLength == 0 {
		report.ContextLength = 2048
	}
	report.EmbeddingLength = int(getKVInt(a.file.KV, arch+".embedding_length", arch+".hidden_size"))
	report.BlockCount = int(getKVInt(a.file.KV, arch+".block_count"))
	report.AttentionHeads = int(getKVInt(a.file.KV, arch+".attention.head_count"))
	report.VocabSize = len(a.file.GetStrings(KeyTokens))

	for _, t := range a.file.Tensors {
		report.TotalParameters += int64(t.NumElements())
		report.MemoryEstimate += int64(t.SizeBytes())
	}

	return report, nil
}

func (r *AnalysisReport) String() string {
	return fmt.Sprintf(`GGUF Model Analysis Report
============================
Architecture:     %s
Model Name:       %s
Context Length:   %d
Embedding Length: %d
Blocks:           %d
Attention Heads:  %d
Vocab Size:       %d
Total Tensors:    %d
Total Parameters: %d (%.2fB)
Memory Estimate:  %.2f GB
`,
		r.Architecture,
		r.ModelName,
		r.ContextLength,
		r.EmbeddingLength,
		r.BlockCount,
		r.AttentionHeads,
		r.VocabSize,
		r.TensorCount,
		r.TotalParameters,
		float64(r.TotalParameters)/1e9,
		float64(r.MemoryEstimate)/1e9,
	)
}

func (a *MetadataAnalyzer) FindMissingTensors(required []string) []string {
	existing := make(map[string]bool, len(a.file.Tensors))
	for _, t := range a.file.Tensors {
		existing[t.Name] = true
	}

	var missing []string
	for _, name := range required {
		if !existing[name] {
			missing = append(missing, name)
		}
	}
	return missing
}

// GetString returns the string value at key, or "".
func (f *GGUFFile) GetString(key string) string {
	s, _ := f.KV[key].(string)
	return s
}

// GetUint returns an integer value at key and whether it was present.
func (f *GGUFFile) GetUint(key string) (uint64, bool) {
	if _, ok := f.KV[key]; !ok {
		return 0, false
	}
	return getKVInt(f.KV, key), true
}

// GetStrings returns a string array value at key.
func (f *GGUFFile) GetStrings(key string) []string {
	arr, _ := f.KV[key].([]interface{})
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		s, ok := v.(string)
		if !ok {
			return nil
		}
		out = append(out, s)
	}
	return out
}

// GetFloat32s returns a float32 array value at key.
func (f *GGUFFile) GetFloat32s(key string) []float32 {
	arr, _ := f.KV[key].([]interface{})
	out := make([]float32, 0, len(arr))
	for _, v := range arr {
		x, ok := v.(float32)
		if !ok {
			return nil
		}
		out = append(out, x)
	}
	return out
}

// GetInt32s returns an int32 array value at key.
func (f *GGUFFile) GetInt32s(key string) []int32 {
	arr, _ := f.KV[key].([]interface{})
	out := make([]int32, 0, len(arr))
	for _, v := range arr {
		x, ok := v.(int32)
		if !ok {
			return nil
		}
		out = append(out, x)
	}
	return out
}

func getKVInt(kv map[string]interface{}, keys ...string) uint64 {
	for _, key := range keys {
		if val, ok := kv[key]; ok {
			switch v := val.(type) {
			case uint64:
				return v
			case int64:
				return uint64(v)
			case uint32:
				return uint64(v)
			case int32:
				return uint64(v)
			case uint16:
				return uint64(v)
			case uint8:
				return uint64(v)
			}
		}
	}
	return 0
}
