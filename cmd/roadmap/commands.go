package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tbourn/go-roadmap-replica/internal/domain"
	"github.com/tbourn/go-roadmap-replica/internal/repo"
	"github.com/tbourn/go-roadmap-replica/internal/search"
	"github.com/tbourn/go-roadmap-replica/internal/services"
	"github.com/tbourn/go-roadmap-replica/internal/sysutil"
)

func (c *cli) syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one replication pass and print its outcome",
		Long: `Fetch every record modified since the last successful pass and apply
the batch atomically. Exits non-zero when the pass fails; prints
"skipped": true when another pass holds the lock.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := sysutil.ShutdownContext(cmd.Context())
			defer stop()

			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			res, runErr := a.syncer.Run(ctx)
			if err := c.print(res); err != nil {
				return err
			}
			return runErr
		},
	}
}

// statusView is the output of the status command.
type statusView struct {
	Checkpoint *domain.SyncCheckpoint `json:"checkpoint"`
	Runs       []domain.SyncRun       `json:"runs"`
}

func (c *cli) statusCmd() *cobra.Command {
	var runs int
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the sync checkpoint and recent passes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			cp, err := a.catalog.SyncStatus(cmd.Context())
			if err != nil {
				return err
			}
			history, err := a.catalog.SyncRuns(cmd.Context(), runs)
			if err != nil {
				return err
			}
			return c.print(statusView{Checkpoint: cp, Runs: history})
		},
	}
	cmd.Flags().IntVar(&runs, "runs", 5, "number of recent passes to show")
	return cmd
}

func (c *cli) searchCmd() *cobra.Command {
	var req search.Request
	cmd := &cobra.Command{
		Use:   "search [query...]",
		Short: "Search the local replica",
		Long: `Search records. Words match as prefixes, "quoted phrases" match
exactly, and every filter must hold. List filters take repeated flags or
comma-separated values.`,
		Example: `  roadmap search teams rooms --ring "General Availability"
  roadmap search '"microsoft teams"' --sort relevance:desc
  roadmap search --tag Retirements --sort retirementDate:asc --limit 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Query = strings.Join(args, " ")

			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.catalog.Search(cmd.Context(), req)
			if err != nil {
				return err
			}
			return c.print(res)
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.Filters.Status, "status", "", "status (case-insensitive)")
	f.StringVar(&req.Filters.AvailabilityRing, "ring", "", "availability ring")
	f.StringSliceVar(&req.Filters.Tags, "tag", nil, "tag (all must match)")
	f.StringSliceVar(&req.Filters.Products, "product", nil, "product (all must match)")
	f.StringSliceVar(&req.Filters.ProductCategories, "category", nil, "product category (all must match)")
	f.StringVar(&req.Filters.DateFrom, "from", "", "modified on or after (YYYY-MM-DD)")
	f.StringVar(&req.Filters.DateTo, "to", "", "modified on or before (YYYY-MM-DD)")
	f.StringVar(&req.Filters.RetirementDateFrom, "retirement-from", "", "retirement date on or after (YYYY-MM-DD)")
	f.StringVar(&req.Filters.RetirementDateTo, "retirement-to", "", "retirement date on or before (YYYY-MM-DD)")
	f.StringVar(&req.Sort, "sort", "", "field:direction (modified, created, retirementDate, relevance)")
	f.IntVar(&req.Limit, "limit", search.DefaultLimit, "page size")
	f.IntVar(&req.Offset, "offset", 0, "results to skip")
	return cmd
}

func (c *cli) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print one full record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			rec, err := a.catalog.GetByID(cmd.Context(), args[0])
			if errors.Is(err, services.ErrRecordNotFound) {
				return fmt.Errorf("record %q not found", args[0])
			}
			if err != nil {
				return err
			}
			return c.print(rec)
		},
	}
}

func (c *cli) vocabCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vocab",
		Short: "List the filter values present in the replica",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			v, err := a.catalog.Vocabulary(cmd.Context())
			if err != nil {
				return err
			}
			return c.print(v)
		},
	}
}

func (c *cli) reindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the full-text index from stored records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if err := repo.RebuildSearchIndex(cmd.Context(), a.db); err != nil {
				return err
			}
			n, err := repo.CountRecords(cmd.Context(), a.db)
			if err != nil {
				return err
			}
			c.log.Info().Int64("records", n).Msg("search index rebuilt")
			return c.print(map[string]int64{"indexed": n})
		},
	}
}

// versionInfo is the output of the version command.
type versionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

func (c *cli) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Args:  cobra.NoArgs,
		// Needs no configuration.
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return checkFormat(c.output)
		},
		RunE: func(*cobra.Command, []string) error {
			return c.print(versionInfo{Version: version, Commit: commit, Date: buildDate})
		},
	}
}
