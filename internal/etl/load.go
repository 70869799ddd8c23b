package etl

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/osm-versailles/internal/overrides"
	"github.com/osm-versailles/internal/reconcile"
	"github.com/osm-versailles/internal/reference"
)

// LoadReconciler loads the reference table and the override tables
// concurrently and builds a Reconciler from them. An empty overridesPath
// uses the built-in override tables.
func LoadReconciler(ctx context.Context, referencePath, overridesPath string) (*reconcile.Reconciler, *reference.Table, error) {
	var (
		table  *reference.Table
		tables = overrides.Default()
	)

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := reference.LoadFile(referencePath)
		if err != nil {
			return err
		}
		table = t
		return nil
	})
	if overridesPath != "" {
		g.Go(func() error {
			t, err := overrides.LoadFile(overridesPath)
			if err != nil {
				return fmt.Errorf("failed to load overrides: %w", err)
			}
			tables = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	return reconcile.New(table, tables), table, nil
}
