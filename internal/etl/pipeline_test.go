package etl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osm-versailles/internal/audit"
	"github.com/osm-versailles/internal/metrics"
	"github.com/osm-versailles/internal/overrides"
	"github.com/osm-versailles/internal/queries"
	"github.com/osm-versailles/internal/reconcile"
	"github.com/osm-versailles/internal/reference"
	"github.com/osm-versailles/internal/shape"
)

const referenceCSV = `Code_commune_INSEE;Nom_commune;Code_postal;Libelle_acheminement;Ligne_5
78646;VERSAILLES;78000;VERSAILLES;
78158;LE CHESNAY;78150;LE CHESNAY;
78524;ROCQUENCOURT;78150;ROCQUENCOURT;
`

const pipelineOSM = `<osm>
 <node id="1" lat="48.80" lon="2.12" user="alice" uid="1">
  <tag k="addr:postcode" v="78000"/>
  <tag k="addr:city" v="versailles"/>
  <tag k="addr:street" v="allee des Pins"/>
 </node>
 <node id="2" lat="48.81" lon="2.13">
  <tag k="addr:city" v="Le Chesnay"/>
 </node>
 <node id="3" lat="48.82" lon="2.10">
  <tag k="amenity" v="fountain"/>
  <tag k="addr:housenumber" v="3"/>
 </node>
 <way id="10">
  <nd ref="1"/>
  <nd ref="2"/>
  <tag k="addr:postcode" v="78103"/>
  <tag k="addr:city" v="Saint-Germain"/>
 </way>
 <way id="11">
  <tag k="addr:postcode" v="78000"/>
  <tag k="addr:city" v="Versailles"/>
 </way>
 <relation id="20">
  <tag k="addr:city" v="Atlantis"/>
 </relation>
</osm>`

const unresolvableOSM = `<osm>
 <node id="1"><tag k="addr:city" v="Versailles"/></node>
 <node id="2"><tag k="addr:city" v="Atlantis"/></node>
 <node id="3"><tag k="addr:postcode" v="78000"/></node>
</osm>`

func testReconciler(t *testing.T) *reconcile.Reconciler {
	t.Helper()
	table, err := reference.Load(strings.NewReader(referenceCSV))
	require.NoError(t, err)
	return reconcile.New(table, overrides.Default())
}

func quietOptions() Options {
	nop := zerolog.Nop()
	return Options{Logger: &nop}
}

func TestProcess(t *testing.T) {
	var out bytes.Buffer
	jsonSink := NewJSONLinesSink(&out, false)
	mem := queries.NewMemory()
	reg := prometheus.NewRegistry()

	opts := quietOptions()
	opts.Metrics = metrics.NewWithRegistry(reg)

	p := NewPipeline(testReconciler(t), audit.NewStreetMapper(audit.DefaultStreetReplacements), opts,
		jsonSink, NewMemorySink(mem))

	summary, err := p.Process(context.Background(), strings.NewReader(pipelineOSM))
	require.NoError(t, err)

	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, map[string]int{"node": 3, "way": 2}, summary.Documents)
	assert.Equal(t, 5, summary.Total())
	assert.Equal(t, 4, summary.Reconciled)
	assert.Equal(t, 3, summary.Changed)
	assert.Equal(t, 0, summary.Skipped)
	assert.Equal(t, 1, summary.StreetsCorrected)

	assert.Equal(t, 3.0, testutil.ToFloat64(opts.Metrics.Documents.WithLabelValues("node")))
	assert.Equal(t, 3.0, testutil.ToFloat64(opts.Metrics.Reconciliations.WithLabelValues(metrics.OutcomeChanged)))
	assert.Equal(t, 1.0, testutil.ToFloat64(opts.Metrics.Reconciliations.WithLabelValues(metrics.OutcomeUnchanged)))

	written, err := queries.LoadJSONLines(&out)
	require.NoError(t, err)
	require.Equal(t, 5, written.Len())
	assert.Equal(t, 5, mem.Len())

	ids, err := written.Values(context.Background(), queries.Filter{}, "id")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3", "10", "11"}, ids, "stream order")

	cities, err := written.Values(context.Background(), queries.Filter{}, "address.city")
	require.NoError(t, err)
	assert.Equal(t, []string{"Versailles", "Le Chesnay", "", "St Germain En Laye", "Versailles"}, cities)

	streets, err := written.Values(context.Background(), queries.Filter{Exists: []string{"address.street"}}, "address.street")
	require.NoError(t, err)
	assert.Equal(t, []string{"Allée des Pins"}, streets)

	postcodes, err := written.Values(context.Background(), queries.Filter{Type: "node", Exists: []string{"address.postcode"}}, "address.postcode")
	require.NoError(t, err)
	assert.Equal(t, []string{"78000", "78150"}, postcodes, "documents without a pair are not reconciled")
}

func TestProcessPretty(t *testing.T) {
	var out bytes.Buffer
	p := NewPipeline(testReconciler(t), nil, quietOptions(), NewJSONLinesSink(&out, true))

	_, err := p.Process(context.Background(), strings.NewReader(pipelineOSM))
	require.NoError(t, err)
	assert.Contains(t, out.String(), "{\n  \"address\": {\n")

	written, err := queries.LoadJSONLines(&out)
	require.NoError(t, err)
	assert.Equal(t, 5, written.Len())
}

func TestProcessUnresolvableAborts(t *testing.T) {
	mem := queries.NewMemory()
	p := NewPipeline(testReconciler(t), nil, quietOptions(), NewMemorySink(mem))

	_, err := p.Process(context.Background(), strings.NewReader(unresolvableOSM))
	require.Error(t, err)
	assert.ErrorIs(t, err, reconcile.ErrUnresolvableCity)

	var unresolvable *reconcile.UnresolvableCityError
	require.True(t, errors.As(err, &unresolvable))
	assert.Equal(t, "Atlantis", unresolvable.City)
	assert.Equal(t, 1, mem.Len(), "documents before the failure are kept")
}

func TestProcessSkipUnresolvable(t *testing.T) {
	mem := queries.NewMemory()
	opts := quietOptions()
	opts.SkipUnresolvable = true
	p := NewPipeline(testReconciler(t), nil, opts, NewMemorySink(mem))

	summary, err := p.Process(context.Background(), strings.NewReader(unresolvableOSM))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 2, summary.Total())
	assert.Equal(t, 2, mem.Len())
}

func TestProcessCancelled(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("<osm>")
	for i := 0; i < 2500; i++ {
		sb.WriteString(`<node id="1" lat="48.8" lon="2.1"/>`)
	}
	sb.WriteString("</osm>")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPipeline(testReconciler(t), nil, quietOptions())
	_, err := p.Process(ctx, strings.NewReader(sb.String()))
	assert.ErrorIs(t, err, context.Canceled)
}

type recordingWriter struct {
	runIDs    []string
	batches   [][]shape.Document
	stored    map[string]int
	completed []string
	deleted   []string
	err       error
}

func (w *recordingWriter) InsertDocuments(_ context.Context, runID string, docs []shape.Document) error {
	if w.err != nil {
		return w.err
	}
	if w.stored == nil {
		w.stored = make(map[string]int)
	}
	w.runIDs = append(w.runIDs, runID)
	w.batches = append(w.batches, docs)
	w.stored[runID] += len(docs)
	return nil
}

func (w *recordingWriter) CompleteRun(_ context.Context, runID string) error {
	w.completed = append(w.completed, runID)
	return nil
}

func (w *recordingWriter) DeleteRun(_ context.Context, runID string) error {
	w.deleted = append(w.deleted, runID)
	delete(w.stored, runID)
	return nil
}

func TestStoreSinkBatches(t *testing.T) {
	w := &recordingWriter{}
	p := NewPipeline(testReconciler(t), nil, quietOptions(), NewStoreSink(w, 2))

	summary, err := p.Process(context.Background(), strings.NewReader(pipelineOSM))
	require.NoError(t, err)

	require.Len(t, w.batches, 3)
	assert.Len(t, w.batches[0], 2)
	assert.Len(t, w.batches[1], 2)
	assert.Len(t, w.batches[2], 1, "the last partial batch is flushed")
	for _, id := range w.runIDs {
		assert.Equal(t, summary.RunID, id)
	}
	assert.Equal(t, []string{summary.RunID}, w.completed)
	assert.Empty(t, w.deleted)
}

func TestStoreSinkRunNotCompletedOnFailure(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("<osm>")
	for i := 1; i <= 5; i++ {
		fmt.Fprintf(&sb, `<node id="%d"><tag k="addr:city" v="Versailles"/></node>`, i)
	}
	sb.WriteString(`<node id="99"><tag k="addr:city" v="Atlantis"/></node></osm>`)

	tests := []struct {
		name      string
		batchSize int
	}{
		{name: "batches already stored", batchSize: 2},
		{name: "nothing stored yet", batchSize: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &recordingWriter{}
			p := NewPipeline(testReconciler(t), nil, quietOptions(), NewStoreSink(w, tt.batchSize))

			summary, err := p.Process(context.Background(), strings.NewReader(sb.String()))
			require.ErrorIs(t, err, reconcile.ErrUnresolvableCity)

			assert.Empty(t, w.completed, "a failed run is never completed")
			assert.Equal(t, []string{summary.RunID}, w.deleted)
			assert.Empty(t, w.stored, "no documents of the failed run remain")
		})
	}
}

func TestStoreSinkError(t *testing.T) {
	w := &recordingWriter{err: errors.New("connection refused")}
	p := NewPipeline(testReconciler(t), nil, quietOptions(), NewStoreSink(w, 0))

	summary, err := p.Process(context.Background(), strings.NewReader(pipelineOSM))
	assert.ErrorContains(t, err, "connection refused")
	assert.Empty(t, w.completed)
	assert.Equal(t, []string{summary.RunID}, w.deleted)
}

func TestProcessMapMissingFile(t *testing.T) {
	p := NewPipeline(testReconciler(t), nil, quietOptions())
	_, err := p.ProcessMap(context.Background(), filepath.Join(t.TempDir(), "missing.osm"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadReconciler(t *testing.T) {
	dir := t.TempDir()
	refPath := filepath.Join(dir, "laposte.csv")
	require.NoError(t, os.WriteFile(refPath, []byte(referenceCSV), 0o644))

	overridesPath := filepath.Join(dir, "overrides.yaml")
	require.NoError(t, os.WriteFile(overridesPath, []byte("city_to_postcode:\n  Trianon: \"78000\"\n"), 0o644))

	t.Run("built-in overrides", func(t *testing.T) {
		r, table, err := LoadReconciler(context.Background(), refPath, "")
		require.NoError(t, err)
		assert.Equal(t, 2, table.Len())

		got, err := r.Reconcile("", "Le Chesnay")
		require.NoError(t, err)
		assert.Equal(t, reconcile.Pair{Postcode: "78150", City: "Le Chesnay"}, got)
	})

	t.Run("override file", func(t *testing.T) {
		r, _, err := LoadReconciler(context.Background(), refPath, overridesPath)
		require.NoError(t, err)

		got, err := r.Reconcile("", "Trianon")
		require.NoError(t, err)
		assert.Equal(t, reconcile.Pair{Postcode: "78000", City: "Versailles"}, got)

		_, err = r.Reconcile("", "Le Chesnay")
		assert.ErrorIs(t, err, reconcile.ErrUnresolvableCity, "a present section replaces the default")
	})

	t.Run("missing reference", func(t *testing.T) {
		_, _, err := LoadReconciler(context.Background(), filepath.Join(dir, "missing.csv"), "")
		assert.ErrorIs(t, err, reference.ErrLoad)
	})

	t.Run("bad override file", func(t *testing.T) {
		_, _, err := LoadReconciler(context.Background(), refPath, filepath.Join(dir, "missing.yaml"))
		assert.Error(t, err)
	})
}
