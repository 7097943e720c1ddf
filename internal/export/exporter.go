package export

import (
	"context"
	"errors"
)

// Exporter ships benchmark embeddings somewhere.
type Exporter interface {
	Export(ctx context.Context, b *Batch) error
	Close() error
}

type multi []Exporter

// Multi exports to every exporter in turn, stopping at the first error.
func Multi(exporters ...Exporter) Exporter {
	return multi(exporters)
}

func (m multi) Export(ctx context.Context, b *Batch) error {
	for _, e := range m {
		if err := e.Export(ctx, b); err != nil {
			return err
		}
	}
	return nil
}

func (m multi) Close() error {
	var errs []error
	for _, e := range m {
		errs = append(errs, e.Close())
	}
	return errors.Join(errs...)
}
