package export

import (
	"context"
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/23skdu/longbow-bench/internal/logger"
)

// FileExporter writes batches to an Arrow IPC file. The file is created on
// the first export and finalized by Close.
type FileExporter struct {
	path string
	dim  int
	f    *os.File
	w    *ipc.FileWriter
}

func NewFileExporter(path string) *FileExporter {
	return &FileExporter{path: path}
}

func (e *FileExporter) Export(_ context.Context, b *Batch) error {
	rec, err := b.Record(memory.DefaultAllocator)
	if err != nil {
		return err
	}
	defer rec.Release()

	if e.w == nil {
		f, err := os.Create(e.path)
		if err != nil {
			return fmt.Errorf("create arrow file: %w", err)
		}
		w, err := ipc.NewFileWriter(f, ipc.WithSchema(rec.Schema()), ipc.WithAllocator(memory.DefaultAllocator))
		if err != nil {
			_ = f.Close()
			return fmt.Errorf("arrow file writer: %w", err)
		}
		e.f, e.w, e.dim = f, w, len(b.Results[0].Embeddings)
	} else if d := len(b.Results[0].Embeddings); d != e.dim {
		return fmt.Errorf("export: %s holds %d-dimensional embeddings, got %d", e.path, e.dim, d)
	}

	if err := e.w.Write(rec); err != nil {
		return fmt.Errorf("write arrow record: %w", err)
	}
	logger.Log.Info("Wrote embeddings", "path", e.path, "rows", rec.NumRows())
	return nil
}

func (e *FileExporter) Close() error {
	if e.w == nil {
		return nil
	}
	werr := e.w.Close()
	ferr := e.f.Close()
	e.w, e.f = nil, nil
	if werr != nil {
		return fmt.Errorf("close arrow writer: %w", werr)
	}
	return ferr
}
