package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"photoagent/internal/bootstrap"
	"photoagent/internal/config"
	"photoagent/internal/dedupe"
	"photoagent/internal/embedding"
	"photoagent/internal/similarity"
	"photoagent/internal/storage"
)

// withLibrary loads config, opens the offline library and runs fn.
func withLibrary(cmd *cobra.Command, opts *rootOptions, adjust func(*config.Config), fn func(*bootstrap.Library) error) error {
	cfg, closer, err := opts.load(false)
	if err != nil {
		return err
	}
	defer closer.Close()
	if adjust != nil {
		adjust(&cfg)
	}
	lib, err := bootstrap.OpenLibrary(cfg)
	if err != nil {
		return err
	}
	defer lib.Close()
	return fn(lib)
}

func newIndexCmd(opts *rootOptions) *cobra.Command {
	var (
		watch bool
		force bool
	)
	cmd := &cobra.Command{
		Use:   "index [dir]",
		Short: "Encode the photos under the library root",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			adjust := func(cfg *config.Config) {
				if len(args) == 1 {
					cfg.Library.Root = args[0]
				}
			}
			return withLibrary(cmd, opts, adjust, func(lib *bootstrap.Library) error {
				ctx := cmd.Context()
				lib.Indexer.Force = force
				stats, err := lib.Indexer.Index(ctx)
				if err != nil {
					return fmt.Errorf("index %s: %w", lib.Root.Root(), err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "indexed %d, skipped %d, failed %d of %d photo(s) in %s\n",
					stats.Indexed, stats.Skipped, stats.Failed, stats.Total, lib.Root.Root())
				if !watch {
					return nil
				}
				log.Info().Str("root", lib.Root.Root()).Msg("watching library for changes")
				return embedding.NewWatcher(lib.Indexer).Run(ctx)
			})
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "Keep running and index new or changed photos")
	cmd.Flags().BoolVar(&force, "force", false, "Re-encode photos already in the database")
	return cmd
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <manifest.json>",
		Short: "Load precomputed embeddings and metadata from a JSON manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLibrary(cmd, opts, nil, func(lib *bootstrap.Library) error {
				n, err := storage.ImportJSON(cmd.Context(), args[0], lib.Store)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d photo(s)\n", n)
				return nil
			})
		},
	}
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var (
		filters similarity.Filters
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Rank photos against a text query",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return withLibrary(cmd, opts, nil, func(lib *bootstrap.Library) error {
				res, err := lib.Search.Search(cmd.Context(), query, filters)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asJSON {
					return writeJSON(out, res.Hits)
				}
				fmt.Fprintf(out, "%s: %d of %d candidate(s)\n", res.Outcome, len(res.Hits), res.Candidates)
				for _, h := range res.Hits {
					fmt.Fprintf(out, "%.4f  %s\n", h.Score, h.URI)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&filters.StartDate, "from", "", "Earliest capture date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&filters.EndDate, "to", "", "Latest capture date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&filters.Location, "location", "", "Location substring")
	cmd.Flags().StringSliceVar(&filters.People, "person", nil, "Person id, repeatable")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print hits as JSON")
	return cmd
}

func newDedupeCmd(opts *rootOptions) *cobra.Command {
	var (
		threshold float64
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "dedupe",
		Short: "List near-duplicate photo sets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withLibrary(cmd, opts, nil, func(lib *bootstrap.Library) error {
				t := threshold
				if t <= 0 {
					t = lib.Config.Cleanup.DuplicateThreshold
				}
				groups, err := dedupe.Scan(cmd.Context(), lib.Store, t)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asJSON {
					return writeJSON(out, groups)
				}
				fmt.Fprintf(out, "%d duplicate set(s), %d photo(s) removable\n", len(groups), len(dedupe.DuplicateURIs(groups)))
				for _, g := range groups {
					fmt.Fprintf(out, "keep %s\n", g.Primary)
					for _, d := range g.Duplicates {
						fmt.Fprintf(out, "  dup %s\n", d)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Similarity above which photos are duplicates (default cleanup.duplicate_threshold)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print sets as JSON")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
