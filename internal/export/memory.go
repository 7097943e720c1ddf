package export

import (
	"context"
	"sync"

	"github.com/apache/arrow-go/v18/arrow/memory"
)

// MemoryExporter keeps exported rows in memory, grouped by architecture.
// Batches go through the same arrow encoding as the other exporters.
type MemoryExporter struct {
	mu   sync.RWMutex
	rows map[string][]Row
	mem  memory.Allocator
}

func NewMemoryExporter() *MemoryExporter {
	return &MemoryExporter{
		rows: make(map[string][]Row),
		mem:  memory.NewGoAllocator(),
	}
}

func (m *MemoryExporter) Export(_ context.Context, b *Batch) error {
	rec, err := b.Record(m.mem)
	if err != nil {
		return err
	}
	defer rec.Release()
	rows, err := DecodeRecord(rec)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[b.Architecture] = append(m.rows[b.Architecture], rows...)
	return nil
}

// Rows returns the rows stored for architecture.
func (m *MemoryExporter) Rows(architecture string) []Row {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Row(nil), m.rows[architecture]...)
}

// Reset drops all stored rows.
func (m *MemoryExporter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = make(map[string][]Row)
}

func (m *MemoryExporter) Close() error { return nil }
