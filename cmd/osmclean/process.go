package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/osm-versailles/internal/audit"
	"github.com/osm-versailles/internal/cache"
	"github.com/osm-versailles/internal/db"
	"github.com/osm-versailles/internal/etl"
	"github.com/osm-versailles/internal/logging"
)

// createProcessCmd creates the cleaning and export command
func createProcessCmd() *cobra.Command {
	var (
		output           string
		pretty           bool
		skipUnresolvable bool
		toDB             bool
		batchSize        int
	)

	cmd := &cobra.Command{
		Use:   "process [osm-file]",
		Short: "Clean the extract and export it as JSON documents",
		Long:  `Shape every node and way into a document, fix street names, reconcile postcode and city, and write the documents as JSON lines and optionally to Postgres`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := logging.Default()

			if cmd.Flags().Changed("pretty") {
				cfg.Pretty = pretty
			}
			if cmd.Flags().Changed("skip-unresolvable") {
				cfg.SkipUnresolvable = skipUnresolvable
			}
			if len(args) > 0 && !cmd.Flags().Changed("output") {
				output = args[0] + ".json"
			}
			if output == "" {
				output = cfg.OutputFile
			}

			r, table, err := etl.LoadReconciler(ctx, cfg.ReferenceFile, cfg.OverridesFile)
			if err != nil {
				return err
			}
			logger.Info().Int("postcodes", table.Len()).Int("rows", table.Rows()).Msg("reference table loaded")

			replacements := audit.DefaultStreetReplacements
			if cfg.StreetsFile != "" {
				if replacements, err = audit.LoadStreetReplacements(cfg.StreetsFile); err != nil {
					return err
				}
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer f.Close()
			sinks := []etl.Sink{etl.NewJSONLinesSink(f, cfg.Pretty)}

			if toDB {
				conn, err := db.NewConnection(ctx, cfg.Database)
				if err != nil {
					return err
				}
				defer conn.Close()

				store := db.NewStore(conn.DB)
				if err := store.Migrate(ctx); err != nil {
					return err
				}
				sinks = append(sinks, etl.NewStoreSink(store, batchSize))
			}

			pipeline := etl.NewPipeline(r, audit.NewStreetMapper(replacements), etl.Options{
				SkipUnresolvable: cfg.SkipUnresolvable,
				Metrics:          appMetrics(),
				Debug:            cfg.Debug,
			}, sinks...)

			summary, err := pipeline.ProcessMap(ctx, osmPath(args))
			if err != nil {
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to close output file: %w", err)
			}

			if toDB {
				invalidateCache(cmd)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s finished in %s\n", summary.RunID, summary.Duration.Round(time.Millisecond))
			fmt.Fprintf(out, "  nodes:             %d\n", summary.Documents["node"])
			fmt.Fprintf(out, "  ways:              %d\n", summary.Documents["way"])
			fmt.Fprintf(out, "  reconciled:        %d (%d changed)\n", summary.Reconciled, summary.Changed)
			fmt.Fprintf(out, "  streets corrected: %d\n", summary.StreetsCorrected)
			fmt.Fprintf(out, "  skipped:           %d\n", summary.Skipped)
			fmt.Fprintf(out, "  output:            %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default <osm-file>.json)")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent the JSON documents")
	cmd.Flags().BoolVar(&skipUnresolvable, "skip-unresolvable", false, "skip records whose city has no known postcode")
	cmd.Flags().BoolVar(&toDB, "db", false, "also store the documents in Postgres")
	cmd.Flags().IntVar(&batchSize, "batch-size", etl.DefaultBatchSize, "documents per database batch")

	return cmd
}

// invalidateCache drops cached query results after new documents were stored.
func invalidateCache(cmd *cobra.Command) {
	logger := logging.Default()

	client, err := cache.New(cmd.Context(), cfg.RedisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("query cache not invalidated")
		return
	}
	if client == nil {
		return
	}
	defer client.Close()

	if err := cache.NewQueryCache(client, cfg.Web.CacheTTL).Invalidate(cmd.Context()); err != nil {
		logger.Warn().Err(err).Msg("query cache not invalidated")
	}
}

// createDBCmd creates the database management command
func createDBCmd() *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database management",
	}

	dbCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create the document tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := db.NewConnection(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := db.NewStore(conn.DB).Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema up to date")
			return nil
		},
	})

	return dbCmd
}
