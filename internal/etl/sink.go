package etl

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/osm-versailles/internal/queries"
	"github.com/osm-versailles/internal/shape"
)

// Sink receives cleaned documents. Flush is called once at the end of a
// run.
type Sink interface {
	Write(ctx context.Context, runID string, doc shape.Document) error
	Flush(ctx context.Context) error
}

// JSONLinesSink writes one JSON document per line, or indented documents
// separated by newlines when pretty is set.
type JSONLinesSink struct {
	w   *bufio.Writer
	enc *json.Encoder
}

// NewJSONLinesSink creates a JSON sink on w. The caller owns w.
func NewJSONLinesSink(w io.Writer, pretty bool) *JSONLinesSink {
	bw := bufio.NewWriterSize(w, 256*1024)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return &JSONLinesSink{w: bw, enc: enc}
}

func (s *JSONLinesSink) Write(_ context.Context, _ string, doc shape.Document) error {
	return s.enc.Encode(doc)
}

func (s *JSONLinesSink) Flush(context.Context) error {
	return s.w.Flush()
}

// RunFinisher is implemented by sinks that keep runs outside the process.
// Complete is called once a run succeeded and every sink was flushed.
// Abort is called instead when the run failed.
type RunFinisher interface {
	Complete(ctx context.Context, runID string) error
	Abort(ctx context.Context, runID string) error
}

// DocumentWriter stores batches of documents tagged with the run that
// produced them. Documents of a run that was never completed must not be
// visible to readers.
type DocumentWriter interface {
	InsertDocuments(ctx context.Context, runID string, docs []shape.Document) error
	CompleteRun(ctx context.Context, runID string) error
	DeleteRun(ctx context.Context, runID string) error
}

// DefaultBatchSize is the number of documents per DocumentWriter call.
const DefaultBatchSize = 500

// StoreSink batches documents into a DocumentWriter such as the Postgres
// store.
type StoreSink struct {
	store     DocumentWriter
	batchSize int
	runID     string
	batch     []shape.Document
}

// NewStoreSink creates a batching sink. batchSize <= 0 means
// DefaultBatchSize.
func NewStoreSink(store DocumentWriter, batchSize int) *StoreSink {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &StoreSink{store: store, batchSize: batchSize}
}

func (s *StoreSink) Write(ctx context.Context, runID string, doc shape.Document) error {
	if s.runID != runID && len(s.batch) > 0 {
		if err := s.Flush(ctx); err != nil {
			return err
		}
	}
	s.runID = runID
	s.batch = append(s.batch, doc)
	if len(s.batch) >= s.batchSize {
		return s.Flush(ctx)
	}
	return nil
}

func (s *StoreSink) Flush(ctx context.Context) error {
	if len(s.batch) == 0 {
		return nil
	}
	if err := s.store.InsertDocuments(ctx, s.runID, s.batch); err != nil {
		return fmt.Errorf("failed to insert %d documents: %w", len(s.batch), err)
	}
	s.batch = nil
	return nil
}

func (s *StoreSink) Complete(ctx context.Context, runID string) error {
	return s.store.CompleteRun(ctx, runID)
}

// Abort drops the pending batch and deletes what was already stored.
func (s *StoreSink) Abort(ctx context.Context, runID string) error {
	s.batch = nil
	return s.store.DeleteRun(ctx, runID)
}

// MemorySink collects documents into an in-memory query store.
type MemorySink struct {
	Store *queries.Memory
}

// NewMemorySink creates a sink feeding store.
func NewMemorySink(store *queries.Memory) *MemorySink {
	return &MemorySink{Store: store}
}

func (s *MemorySink) Write(_ context.Context, _ string, doc shape.Document) error {
	s.Store.Add(doc)
	return nil
}

func (s *MemorySink) Flush(context.Context) error { return nil }
