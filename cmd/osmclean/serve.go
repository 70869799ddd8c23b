package main

import (
	"github.com/spf13/cobra"

	"github.com/osm-versailles/internal/cache"
	"github.com/osm-versailles/internal/etl"
	"github.com/osm-versailles/internal/web"
	"github.com/osm-versailles/internal/web/handlers"
)

// createServeCmd creates the web API command
func createServeCmd() *cobra.Command {
	var (
		fromJSON string
		addr     string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the query and reconciliation API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			r, _, err := etl.LoadReconciler(ctx, cfg.ReferenceFile, cfg.OverridesFile)
			if err != nil {
				return err
			}

			store, err := openStore(ctx, fromJSON)
			if err != nil {
				return err
			}
			defer store.close()

			checks := map[string]handlers.HealthCheck{}
			if store.ping != nil {
				checks["database"] = store.ping
			}

			client, err := cache.New(ctx, cfg.RedisURL)
			if err != nil {
				return err
			}
			var queryCache *cache.QueryCache
			if client != nil {
				defer client.Close()
				checks["redis"] = client.Health
				// cached results are shared by every server on the database
				if fromJSON == "" {
					queryCache = cache.NewQueryCache(client, cfg.Web.CacheTTL)
				}
			}

			webCfg := web.ConfigFrom(cfg.Web)
			if addr != "" {
				webCfg.Addr = addr
			}

			server := web.NewServer(webCfg, web.Dependencies{
				Store:      store.Store,
				Reconciler: r,
				Cache:      queryCache,
				Metrics:    appMetrics(),
				Checks:     checks,
			})
			return server.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&fromJSON, "from-json", "", "serve a JSON lines export instead of Postgres")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from WEB_HOST and WEB_PORT)")

	return cmd
}
