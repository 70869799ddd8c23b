package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/osm-versailles/internal/db"
	"github.com/osm-versailles/internal/logging"
	"github.com/osm-versailles/internal/queries"
)

// storeHandle is an opened query store. ping is nil for file stores.
type storeHandle struct {
	queries.Store
	ping  func(ctx context.Context) error
	close func()
}

// openStore returns the JSON lines file store when fromJSON is set, the
// Postgres store otherwise.
func openStore(ctx context.Context, fromJSON string) (*storeHandle, error) {
	if fromJSON != "" {
		mem, err := queries.LoadJSONLinesFile(fromJSON)
		if err != nil {
			return nil, err
		}
		logging.Default().Info().Str("file", fromJSON).Int("documents", mem.Len()).Msg("documents loaded")
		return &storeHandle{Store: mem, close: func() {}}, nil
	}

	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return &storeHandle{
		Store: db.NewStore(conn.DB),
		ping:  conn.Ping,
		close: func() { conn.Close() },
	}, nil
}

// createQueryCmd creates the analytical query command
func createQueryCmd() *cobra.Command {
	var (
		fromJSON string
		list     bool
	)

	cmd := &cobra.Command{
		Use:   "query [name...]",
		Short: "Run analytical queries over the cleaned documents",
		Long:  `Run one or more named queries, or all of them when no name is given, against Postgres or a JSON lines export`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if list {
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				for _, q := range queries.All() {
					fmt.Fprintf(w, "%s\t%s\n", q.Name, q.Description)
				}
				return w.Flush()
			}

			names := args
			if len(names) == 0 {
				names = queries.Names()
			}
			// fail on a typo before connecting
			for _, name := range names {
				if _, err := queries.Lookup(name); err != nil {
					return err
				}
			}

			store, err := openStore(cmd.Context(), fromJSON)
			if err != nil {
				return err
			}
			defer store.close()

			results := make([]*queries.Result, 0, len(names))
			for _, name := range names {
				res, err := queries.Run(cmd.Context(), store, name)
				if err != nil {
					return err
				}
				results = append(results, res)
			}
			if len(results) == 1 {
				return printJSON(cmd, results[0])
			}
			return printJSON(cmd, results)
		},
	}

	cmd.Flags().StringVar(&fromJSON, "from-json", "", "query a JSON lines export instead of Postgres")
	cmd.Flags().BoolVar(&list, "list", false, "list the available queries")

	return cmd
}
