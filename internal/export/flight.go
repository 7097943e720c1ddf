package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/23skdu/longbow-bench/internal/logger"
)

// DefaultFlightPath is the descriptor path batches are put under.
var DefaultFlightPath = []string{"embeddings"}

// FlightExporter sends batches to an Arrow Flight server with DoPut.
type FlightExporter struct {
	client  flight.Client
	addr    string
	path    []string
	timeout time.Duration
}

// DialFlight connects to the Flight server at addr (host:port).
func DialFlight(addr string) (*FlightExporter, error) {
	client, err := flight.NewClientWithMiddleware(addr, nil, nil,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create Flight client: %w", err)
	}
	return &FlightExporter{
		client:  client,
		addr:    addr,
		path:    DefaultFlightPath,
		timeout: 30 * time.Second,
	}, nil
}

func (e *FlightExporter) Export(ctx context.Context, b *Batch) error {
	if e.client == nil {
		return errors.New("export: flight client closed")
	}
	rec, err := b.Record(memory.DefaultAllocator)
	if err != nil {
		return err
	}
	defer rec.Release()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	stream, err := e.client.DoPut(ctx)
	if err != nil {
		return fmt.Errorf("failed to create DoPut stream: %w", err)
	}

	w := flight.NewRecordWriter(stream, ipc.WithSchema(rec.Schema()))
	w.SetFlightDescriptor(&flight.FlightDescriptor{
		Type: flight.DescriptorPATH,
		Path: e.path,
	})
	if err := w.Write(rec); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write record: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return fmt.Errorf("failed to close stream: %w", err)
	}
	for {
		if _, err := stream.Recv(); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("DoPut failed: %w", err)
		}
	}

	logger.Log.Info("Sent embeddings", "addr", e.addr, "rows", rec.NumRows(),
		"architecture", b.Architecture)
	return nil
}

func (e *FlightExporter) Close() error {
	if e.client == nil {
		return nil
	}
	err := e.client.Close()
	e.client = nil
	return err
}
