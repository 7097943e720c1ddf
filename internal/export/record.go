package export

import (
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/23skdu/longbow-bench/internal/bench"
)

// Column order of exported records.
const (
	colRun = iota
	colArchitecture
	colModelPath
	colTokens
	colElapsed
	colRate
	colVector
)

var ErrNoEmbeddings = errors.New("export: no embeddings")

// Batch is the set of runs exported together. All runs share a model, so
// every embedding has the same dimension.
type Batch struct {
	Architecture string
	ModelPath    string
	Results      []*bench.Result
}

// Row is one exported run, decoded from a record.
type Row struct {
	Run          int
	Architecture string
	ModelPath    string
	Tokens       int
	ElapsedMS    float64
	Rate         float64
	Embedding    []float32
}

// Schema returns the record schema for embeddings of size dim.
func Schema(dim int) *arrow.Schema {
	md := arrow.NewMetadata([]string{"producer", "dimension"}, []string{"longbow-bench", fmt.Sprint(dim)})
	return arrow.NewSchema([]arrow.Field{
		{Name: "run", Type: arrow.PrimitiveTypes.Int32},
		{Name: "architecture", Type: arrow.BinaryTypes.String},
		{Name: "model_path", Type: arrow.BinaryTypes.String},
		{Name: "tokens", Type: arrow.PrimitiveTypes.Int32},
		{Name: "elapsed_ms", Type: arrow.PrimitiveTypes.Float64},
		{Name: "rate", Type: arrow.PrimitiveTypes.Float64},
		{Name: "vector", Type: arrow.FixedSizeListOf(int32(dim), arrow.PrimitiveTypes.Float32)},
	}, &md)
}

// Dim is the embedding size of the batch.
func (b *Batch) Dim() (int, error) {
	if len(b.Results) == 0 || len(b.Results[0].Embeddings) == 0 {
		return 0, ErrNoEmbeddings
	}
	dim := len(b.Results[0].Embeddings)
	for _, r := range b.Results {
		if len(r.Embeddings) != dim {
			return 0, fmt.Errorf("export: run %d has %d dimensions, want %d", r.Run, len(r.Embeddings), dim)
		}
	}
	return dim, nil
}

// Record builds an arrow record with one row per run. The caller releases it.
func (b *Batch) Record(mem memory.Allocator) (arrow.Record, error) {
	dim, err := b.Dim()
	if err != nil {
		return nil, err
	}
	if mem == nil {
		mem = memory.DefaultAllocator
	}

	rb := array.NewRecordBuilder(mem, Schema(dim))
	defer rb.Release()

	runs := rb.Field(colRun).(*array.Int32Builder)
	archs := rb.Field(colArchitecture).(*array.StringBuilder)
	paths := rb.Field(colModelPath).(*array.StringBuilder)
	tokens := rb.Field(colTokens).(*array.Int32Builder)
	elapsed := rb.Field(colElapsed).(*array.Float64Builder)
	rates := rb.Field(colRate).(*array.Float64Builder)
	vectors := rb.Field(colVector).(*array.FixedSizeListBuilder)
	values := vectors.ValueBuilder().(*array.Float32Builder)

	for _, r := range b.Results {
		runs.Append(int32(r.Run))
		archs.Append(b.Architecture)
		paths.Append(b.ModelPath)
		tokens.Append(int32(r.Length))
		elapsed.Append(bench.Milliseconds(r.Elapsed))
		rates.Append(r.Rate)
		vectors.Append(true)
		values.AppendValues(r.Embeddings, nil)
	}
	return rb.NewRecord(), nil
}

// DecodeRecord reads the rows of a record built by Batch.Record. Embeddings
// are copied out, so rec may be released afterwards.
func DecodeRecord(rec arrow.Record) ([]Row, error) {
	if int(rec.NumCols()) != colVector+1 {
		return nil, fmt.Errorf("export: record has %d columns, want %d", rec.NumCols(), colVector+1)
	}
	runs, ok1 := rec.Column(colRun).(*array.Int32)
	archs, ok2 := rec.Column(colArchitecture).(*array.String)
	paths, ok3 := rec.Column(colModelPath).(*array.String)
	tokens, ok4 := rec.Column(colTokens).(*array.Int32)
	elapsed, ok5 := rec.Column(colElapsed).(*array.Float64)
	rates, ok6 := rec.Column(colRate).(*array.Float64)
	vectors, ok7 := rec.Column(colVector).(*array.FixedSizeList)
	if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6 && ok7) {
		return nil, fmt.Errorf("export: unexpected schema %s", rec.Schema())
	}
	values, ok := vectors.ListValues().(*array.Float32)
	if !ok {
		return nil, fmt.Errorf("export: vector values are %s, want float32", vectors.ListValues().DataType())
	}
	dim := int(vectors.DataType().(*arrow.FixedSizeListType).Len())

	rows := make([]Row, rec.NumRows())
	for i := range rows {
		start := (vectors.Offset() + i) * dim
		emb := make([]float32, dim)
		for j := range emb {
			emb[j] = values.Value(start + j)
		}
		rows[i] = Row{
			Run:          int(runs.Value(i)),
			Architecture: archs.Value(i),
			ModelPath:    paths.Value(i),
			Tokens:       int(tokens.Value(i)),
			ElapsedMS:    elapsed.Value(i),
			Rate:         rates.Value(i),
			Embedding:    emb,
		}
	}
	return rows, nil
}
