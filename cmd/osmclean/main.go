package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/osm-versailles/internal/cache"
	"github.com/osm-versailles/internal/config"
	"github.com/osm-versailles/internal/db"
	"github.com/osm-versailles/internal/etl"
	"github.com/osm-versailles/internal/logging"
	"github.com/osm-versailles/internal/metrics"
	"github.com/osm-versailles/internal/normalize"
	"github.com/osm-versailles/internal/queries"
	"github.com/osm-versailles/internal/reconcile"
)

var (
	// Global configuration, loaded before every command
	cfg *config.Config

	configFile string
	localDebug bool
	logLevel   string
	osmFile    string

	// Registered once with the default Prometheus registry
	appMetrics = sync.OnceValue(metrics.New)
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "osmclean",
		Short:         "OSM Versailles address audit and cleaning",
		Long:          `Audits an OpenStreetMap extract of Versailles, reconciles its postcodes and city names against the La Poste reference, and exports and queries the cleaned documents`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ./osmclean.yaml if present)")
	rootCmd.PersistentFlags().BoolVar(&localDebug, "debug", false, "enable debug output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&osmFile, "osm-file", "", "OSM XML extract (overrides OSM_FILE)")

	rootCmd.AddCommand(createAuditCmd())
	rootCmd.AddCommand(createReconcileCmd())
	rootCmd.AddCommand(createProcessCmd())
	rootCmd.AddCommand(createQueryCmd())
	rootCmd.AddCommand(createServeCmd())
	rootCmd.AddCommand(createPingCmd())
	rootCmd.AddCommand(createDBCmd())

	return rootCmd
}

func setup(cmd *cobra.Command) error {
	loaded, err := config.Load(configFile)
	if err != nil {
		return err
	}
	cfg = loaded

	if cmd.Flags().Changed("osm-file") {
		if cfg.OutputFile == cfg.OSMFile+".json" {
			cfg.OutputFile = osmFile + ".json"
		}
		cfg.OSMFile = osmFile
	}
	if cmd.Flags().Changed("debug") {
		cfg.Debug = localDebug
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if cfg.Debug {
		cfg.Log.Level = "debug"
	}
	logging.Configure(cfg.Log)
	return nil
}

// osmPath returns the file argument if given, else the configured extract.
func osmPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return cfg.OSMFile
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// createReconcileCmd creates a command that reconciles a single pair
func createReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <postcode> <city>",
		Short: "Reconcile one postcode/city pair",
		Long:  `Reconcile one postcode/city pair against the reference table. Pass "" for a missing value.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := reconcile.Pair{
				Postcode: normalize.Text(args[0]),
				City:     normalize.Text(args[1]),
			}
			if raw.IsEmpty() {
				return fmt.Errorf("postcode or city is required")
			}

			r, _, err := etl.LoadReconciler(cmd.Context(), cfg.ReferenceFile, cfg.OverridesFile)
			if err != nil {
				return err
			}

			corrected, err := r.ReconcilePair(raw)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]reconcile.Pair{"raw": raw, "corrected": corrected})
		},
	}
}

// createPingCmd creates a command to test database and Redis connectivity
func createPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Test database and Redis connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			conn, err := db.NewConnection(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer conn.Close()
			fmt.Fprintln(out, "Database connection successful!")

			store := db.NewStore(conn.DB)
			if runID, err := store.LatestRun(ctx); err != nil {
				fmt.Fprintf(out, "No processing runs found: %v\n", err)
			} else if runID != "" {
				n, err := store.Count(ctx, queries.Filter{})
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Latest run %s: %d documents\n", runID, n)
			}

			client, err := cache.New(ctx, cfg.RedisURL)
			if err != nil {
				return err
			}
			if client == nil {
				fmt.Fprintln(out, "Redis not configured")
				return nil
			}
			defer client.Close()
			fmt.Fprintln(out, "Redis connection successful!")
			return nil
		},
	}
}
