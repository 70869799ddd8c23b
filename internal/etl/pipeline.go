package etl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/osm-versailles/internal/audit"
	"github.com/osm-versailles/internal/debug"
	"github.com/osm-versailles/internal/logging"
	"github.com/osm-versailles/internal/metrics"
	"github.com/osm-versailles/internal/osm"
	"github.com/osm-versailles/internal/reconcile"
	"github.com/osm-versailles/internal/shape"
)

const abortTimeout = 30 * time.Second

// Options tune a Pipeline. The zero value aborts on the first
// unresolvable city, records no metrics and logs to the default logger.
type Options struct {
	// SkipUnresolvable drops documents whose city has no known postcode
	// instead of failing the run.
	SkipUnresolvable bool

	Metrics *metrics.Metrics
	Logger  *zerolog.Logger
	Debug   bool
}

// Pipeline shapes OSM elements into documents, cleans their address
// fields and hands them to sinks.
type Pipeline struct {
	reconciler *reconcile.Reconciler
	streets    *audit.StreetMapper
	sinks      []Sink
	opts       Options
	logger     zerolog.Logger
}

// NewPipeline creates a new cleaning pipeline.
func NewPipeline(r *reconcile.Reconciler, streets *audit.StreetMapper, opts Options, sinks ...Sink) *Pipeline {
	logger := logging.Default()
	if opts.Logger != nil {
		logger = opts.Logger
	}
	return &Pipeline{
		reconciler: r,
		streets:    streets,
		sinks:      sinks,
		opts:       opts,
		logger:     *logger,
	}
}

// Summary describes a finished run.
type Summary struct {
	RunID            string         `json:"run_id"`
	Documents        map[string]int `json:"documents"`
	Reconciled       int            `json:"reconciled"`
	Changed          int            `json:"changed"`
	Skipped          int            `json:"skipped"`
	StreetsCorrected int            `json:"streets_corrected"`
	Duration         time.Duration  `json:"duration"`
}

// Total is the number of documents written.
func (s *Summary) Total() int {
	n := 0
	for _, c := range s.Documents {
		n += c
	}
	return n
}

// ProcessMap cleans the OSM file at osmPath.
func (p *Pipeline) ProcessMap(ctx context.Context, osmPath string) (*Summary, error) {
	file, err := os.Open(osmPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open OSM file: %w", err)
	}
	defer file.Close()

	return p.Process(ctx, file)
}

// Process cleans an OSM document read from r. Documents are written in
// stream order and sinks are flushed before returning, also on error. A
// run is completed on RunFinisher sinks only when it succeeded; a failed
// run is aborted on them, so no reader sees a partial run.
func (p *Pipeline) Process(ctx context.Context, r io.Reader) (summary *Summary, err error) {
	debug.DebugHeader(p.opts.Debug)
	defer debug.DebugFooter(p.opts.Debug)

	start := time.Now()
	summary = &Summary{
		RunID:     uuid.NewString(),
		Documents: make(map[string]int),
	}
	logger := p.logger.With().Str("run_id", summary.RunID).Logger()
	logger.Info().Msg("processing map")

	defer func() {
		summary.Duration = time.Since(start)
		p.opts.Metrics.ObserveProcessDuration(summary.Duration)
	}()

	if err = p.scan(ctx, r, summary, logger); err == nil {
		err = p.flush(ctx)
	}
	if err != nil {
		p.abort(ctx, summary.RunID, logger)
		if flushErr := p.flush(ctx); flushErr != nil {
			logger.Warn().Err(flushErr).Msg("failed to flush after error")
		}
		return summary, err
	}
	if err = p.complete(ctx, summary.RunID); err != nil {
		p.abort(ctx, summary.RunID, logger)
		return summary, err
	}

	logger.Info().
		Int("documents", summary.Total()).
		Int("reconciled", summary.Reconciled).
		Int("changed", summary.Changed).
		Int("skipped", summary.Skipped).
		Msg("map processed")
	return summary, nil
}

func (p *Pipeline) scan(ctx context.Context, r io.Reader, summary *Summary, logger zerolog.Logger) error {
	return osm.Scan(ctx, r, func(el *osm.Element) error {
		doc := shape.Shape(el)
		if doc == nil {
			return nil
		}

		if cleanErr := p.clean(doc, summary); cleanErr != nil {
			if p.opts.SkipUnresolvable && errors.Is(cleanErr, reconcile.ErrUnresolvableCity) {
				summary.Skipped++
				logger.Warn().Err(cleanErr).Str("id", doc.ID()).Msg("skipping document")
				return nil
			}
			return fmt.Errorf("%s %s: %w", doc.Type(), doc.ID(), cleanErr)
		}

		for _, sink := range p.sinks {
			if writeErr := sink.Write(ctx, summary.RunID, doc); writeErr != nil {
				return fmt.Errorf("failed to write %s %s: %w", doc.Type(), doc.ID(), writeErr)
			}
		}
		summary.Documents[doc.Type()]++
		p.opts.Metrics.IncrementDocument(doc.Type())

		if total := summary.Total(); total%10000 == 0 {
			debug.DebugOutput(p.opts.Debug, "Processed %d documents", total)
		}
		return nil
	})
}

// clean fixes the street name, then the postcode/city pair. Documents
// carrying neither a postcode nor a city are not reconciled.
func (p *Pipeline) clean(doc shape.Document, summary *Summary) error {
	if street, ok := doc.Street(); ok && p.streets != nil {
		if better := p.streets.Update(street); better != street {
			doc.SetStreet(better)
			summary.StreetsCorrected++
			p.opts.Metrics.IncrementStreetCorrection()
		}
	}

	raw, ok := doc.AddressPair()
	if !ok {
		return nil
	}

	corrected, err := p.reconciler.ReconcilePair(raw)
	if err != nil {
		p.opts.Metrics.IncrementReconciliation(metrics.OutcomeUnresolvable)
		return err
	}

	doc.SetAddressPair(corrected)
	summary.Reconciled++
	if corrected != raw {
		summary.Changed++
		p.opts.Metrics.IncrementReconciliation(metrics.OutcomeChanged)
	} else {
		p.opts.Metrics.IncrementReconciliation(metrics.OutcomeUnchanged)
	}
	return nil
}

func (p *Pipeline) flush(ctx context.Context) error {
	var errs []error
	for _, sink := range p.sinks {
		if err := sink.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Pipeline) complete(ctx context.Context, runID string) error {
	for _, sink := range p.sinks {
		if f, ok := sink.(RunFinisher); ok {
			if err := f.Complete(ctx, runID); err != nil {
				return err
			}
		}
	}
	return nil
}

// abort runs even when ctx is already cancelled.
func (p *Pipeline) abort(ctx context.Context, runID string, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), abortTimeout)
	defer cancel()

	for _, sink := range p.sinks {
		if f, ok := sink.(RunFinisher); ok {
			if err := f.Abort(ctx, runID); err != nil {
				logger.Warn().Err(err).Msg("failed to abort run")
			}
		}
	}
}
