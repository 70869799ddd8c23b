package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/osm-versailles/internal/audit"
	"github.com/osm-versailles/internal/etl"
	"github.com/osm-versailles/internal/osm"
)

// createAuditCmd creates the audit subcommand
func createAuditCmd() *cobra.Command {
	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Audit the raw OSM extract",
		Long:  `Check tag counts, coordinates, postcode formats, street types and postcode/city pairs before cleaning`,
	}

	auditCmd.AddCommand(createAuditTagsCmd())
	auditCmd.AddCommand(createAuditPositionsCmd())
	auditCmd.AddCommand(createAuditPostcodesCmd())
	auditCmd.AddCommand(createAuditStreetsCmd())
	auditCmd.AddCommand(createAuditPairsCmd())

	return auditCmd
}

// runCollectors streams the extract once through collectors.
func runCollectors(cmd *cobra.Command, path string, collectors ...audit.Collector) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open OSM file: %w", err)
	}
	defer f.Close()
	return audit.Run(cmd.Context(), cfg.Debug, f, collectors...)
}

func createAuditTagsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tags [osm-file]",
		Short: "Count XML elements by name",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(osmPath(args))
			if err != nil {
				return fmt.Errorf("failed to open OSM file: %w", err)
			}
			defer f.Close()

			counts, err := osm.CountTags(cmd.Context(), f)
			if err != nil {
				return err
			}

			names := make([]string, 0, len(counts))
			for name := range counts {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "%-10s %d\n", name, counts[name])
			}
			return nil
		},
	}
}

func createAuditPositionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "positions [osm-file]",
		Short: "Classify node coordinates against the configured bounds",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			positions := audit.NewPositions(cfg.Bounds)
			if err := runCollectors(cmd, osmPath(args), positions); err != nil {
				return err
			}
			return printJSON(cmd, positions.Counts)
		},
	}
}

func createAuditPostcodesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "postcodes [osm-file]",
		Short: "Check that node postcodes have five digits",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			postcodes := audit.NewPostcodes()
			if err := runCollectors(cmd, osmPath(args), postcodes); err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{
				"counts":  postcodes.Counts,
				"invalid": postcodes.Invalid,
			})
		},
	}
}

func createAuditStreetsCmd() *cobra.Command {
	var (
		useLibpostal bool
		suggest      bool
	)

	cmd := &cobra.Command{
		Use:   "streets [osm-file]",
		Short: "List street names with an unexpected street type",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if useLibpostal && !audit.LibpostalAvailable {
				_, err := audit.ParseStreet("")
				return err
			}

			streets := audit.NewStreetTypes(audit.ExpectedStreetTypes)
			if err := runCollectors(cmd, osmPath(args), streets); err != nil {
				return err
			}

			unexpected := streets.Unexpected()
			if suggest {
				type streetType struct {
					Suggestion string   `json:"suggestion,omitempty"`
					Streets    []string `json:"streets"`
				}
				suggestions := streets.Suggestions()
				out := make(map[string]streetType, len(unexpected))
				for t, names := range unexpected {
					out[t] = streetType{Suggestion: suggestions[t], Streets: names}
				}
				return printJSON(cmd, out)
			}
			if !useLibpostal {
				return printJSON(cmd, unexpected)
			}

			parsed := make(map[string]map[string]string)
			for _, names := range unexpected {
				for _, name := range names {
					components, err := audit.ParseStreet(name)
					if err != nil {
						return fmt.Errorf("failed to parse %q: %w", name, err)
					}
					parsed[name] = components
				}
			}
			return printJSON(cmd, parsed)
		},
	}

	cmd.Flags().BoolVar(&useLibpostal, "libpostal", false, "parse unexpected street names with libpostal")
	cmd.Flags().BoolVar(&suggest, "suggest", false, "suggest the closest expected street type")
	return cmd
}

func createAuditPairsCmd() *cobra.Command {
	var corrected bool

	cmd := &cobra.Command{
		Use:   "pairs [osm-file]",
		Short: "List distinct postcode/city pairs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pairs := audit.NewPairs()
			if err := runCollectors(cmd, osmPath(args), pairs); err != nil {
				return err
			}

			if !corrected {
				type pairCount struct {
					Postcode string `json:"postcode"`
					City     string `json:"city"`
					Count    int    `json:"count"`
				}
				list := pairs.List()
				out := make([]pairCount, 0, len(list))
				for _, p := range list {
					out = append(out, pairCount{Postcode: p.Postcode, City: p.City, Count: pairs.Count(p)})
				}
				return printJSON(cmd, out)
			}

			r, _, err := etl.LoadReconciler(cmd.Context(), cfg.ReferenceFile, cfg.OverridesFile)
			if err != nil {
				return err
			}

			type correction struct {
				audit.Correction
				Error string `json:"error,omitempty"`
			}
			corrections := pairs.Correct(r)
			out := make([]correction, 0, len(corrections))
			failed := 0
			for _, c := range corrections {
				entry := correction{Correction: c}
				if c.Err != nil {
					entry.Error = c.Err.Error()
					failed++
				}
				out = append(out, entry)
			}
			if err := printJSON(cmd, map[string]any{
				"corrections": out,
				"distinct":    audit.Distinct(corrections),
			}); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d pairs could not be reconciled", failed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&corrected, "corrected", false, "reconcile each pair against the reference table")
	return cmd
}
