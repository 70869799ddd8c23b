package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/osm-versailles/internal/queries"
	"github.com/osm-versailles/internal/shape"
)

// Schema creates the document tables. Each processing run gets a row in
// osm_runs; its documents are stored as JSONB. A run without completed_at
// was aborted or is still being written and is never queried implicitly.
const Schema = `
CREATE TABLE IF NOT EXISTS osm_runs (
	run_id       UUID PRIMARY KEY,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ
);

ALTER TABLE osm_runs ADD COLUMN IF NOT EXISTS completed_at TIMESTAMPTZ;

CREATE TABLE IF NOT EXISTS osm_documents (
	id       BIGSERIAL PRIMARY KEY,
	run_id   UUID NOT NULL REFERENCES osm_runs(run_id) ON DELETE CASCADE,
	osm_id   TEXT,
	osm_type TEXT,
	doc      JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_osm_documents_run ON osm_documents(run_id);
CREATE INDEX IF NOT EXISTS idx_osm_documents_doc ON osm_documents USING GIN (doc);
`

// latestRunSQL selects the most recently completed run.
const latestRunSQL = `SELECT run_id FROM osm_runs WHERE completed_at IS NOT NULL ORDER BY completed_at DESC, run_id DESC LIMIT 1`

// Store keeps cleaned documents in Postgres and answers queries over one
// run, the most recent one unless ForRun was used.
type Store struct {
	db    *sql.DB
	runID string
}

// NewStore creates a store on db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ForRun returns a store whose queries only see runID's documents.
func (s *Store) ForRun(runID string) *Store {
	return &Store{db: s.db, runID: runID}
}

// Migrate creates the schema if needed.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// InsertDocuments stores docs under runID in one transaction using COPY.
func (s *Store) InsertDocuments(ctx context.Context, runID string, docs []shape.Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO osm_runs (run_id) VALUES ($1) ON CONFLICT (run_id) DO NOTHING`, runID); err != nil {
		return fmt.Errorf("failed to register run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("osm_documents", "run_id", "osm_id", "osm_type", "doc"))
	if err != nil {
		return fmt.Errorf("failed to prepare copy: %w", err)
	}

	for _, doc := range docs {
		data, err := json.Marshal(doc)
		if err != nil {
			stmt.Close()
			return fmt.Errorf("failed to encode %s %s: %w", doc.Type(), doc.ID(), err)
		}
		if _, err := stmt.ExecContext(ctx, runID, doc.ID(), doc.Type(), string(data)); err != nil {
			stmt.Close()
			return fmt.Errorf("failed to copy %s %s: %w", doc.Type(), doc.ID(), err)
		}
	}

	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("failed to flush copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("failed to close copy: %w", err)
	}

	return tx.Commit()
}

// CompleteRun marks runID as finished, which makes it visible to LatestRun
// and to queries on a store not pinned with ForRun. A run with no
// documents is registered here.
func (s *Store) CompleteRun(ctx context.Context, runID string) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO osm_runs (run_id, completed_at) VALUES ($1, now())
		 ON CONFLICT (run_id) DO UPDATE SET completed_at = now()`, runID); err != nil {
		return fmt.Errorf("failed to complete run %s: %w", runID, err)
	}
	return nil
}

// DeleteRun removes runID and its documents.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM osm_runs WHERE run_id = $1`, runID); err != nil {
		return fmt.Errorf("failed to delete run %s: %w", runID, err)
	}
	return nil
}

// LatestRun returns the id of the most recently completed run, "" when
// there is none.
func (s *Store) LatestRun(ctx context.Context) (string, error) {
	var runID string
	err := s.db.QueryRowContext(ctx, latestRunSQL).Scan(&runID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read latest run: %w", err)
	}
	return runID, nil
}

func (s *Store) Count(ctx context.Context, f queries.Filter) (int, error) {
	query, args := s.countQuery(f)
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

func (s *Store) Group(ctx context.Context, f queries.Filter, paths []string, limit int) ([]queries.Group, error) {
	query, args := s.groupQuery(f, paths, limit)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to group documents: %w", err)
	}
	defer rows.Close()

	out := make([]queries.Group, 0)
	for rows.Next() {
		key := make([]string, len(paths))
		dest := make([]any, 0, len(paths)+1)
		for i := range key {
			dest = append(dest, &key[i])
		}
		g := queries.Group{Key: key}
		dest = append(dest, &g.Count)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *Store) Values(ctx context.Context, f queries.Filter, path string) ([]string, error) {
	query, args := s.valuesQuery(f, path)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read values: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan value: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// scope restricts a query to one run.
func (s *Store) scope(w *where) {
	if s.runID != "" {
		w.add(fmt.Sprintf("run_id = %s", w.arg(s.runID)))
		return
	}
	w.add("run_id = (" + latestRunSQL + ")")
}

func (s *Store) countQuery(f queries.Filter) (string, []any) {
	w := &where{}
	s.scope(w)
	buildWhere(w, f)
	return "SELECT COUNT(*) FROM osm_documents WHERE " + w.sql(), w.args
}

func (s *Store) groupQuery(f queries.Filter, paths []string, limit int) (string, []any) {
	w := &where{}

	cols := make([]string, len(paths))
	groupBy := make([]string, len(paths))
	order := []string{"COUNT(*) DESC"}
	for i, p := range paths {
		cols[i] = fmt.Sprintf(`COALESCE(doc #>> %s, '') COLLATE "C" AS k%d`, w.arg(jsonPath(p)), i)
		groupBy[i] = fmt.Sprintf("k%d", i)
	}
	order = append(order, groupBy...)

	s.scope(w)
	buildWhere(w, f)

	query := fmt.Sprintf("SELECT %s, COUNT(*) FROM osm_documents WHERE %s GROUP BY %s ORDER BY %s",
		strings.Join(cols, ", "), w.sql(), strings.Join(groupBy, ", "), strings.Join(order, ", "))
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	return query, w.args
}

func (s *Store) valuesQuery(f queries.Filter, path string) (string, []any) {
	w := &where{}
	col := fmt.Sprintf("COALESCE(doc #>> %s, '')", w.arg(jsonPath(path)))
	s.scope(w)
	buildWhere(w, f)
	return fmt.Sprintf("SELECT %s FROM osm_documents WHERE %s ORDER BY id", col, w.sql()), w.args
}
