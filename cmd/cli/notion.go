package main

import (
	"fmt"
	"time"

	"github.com/dvloznov/bankdata-pipeline/internal/notionsync"
	"github.com/dvloznov/bankdata-pipeline/internal/warehouse"
	"github.com/spf13/cobra"
)

func syncNotionCmd() *cobra.Command {
	var (
		since  string
		until  string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "sync-notion",
		Short: "Mirror trend rows from BigQuery into the Notion trend database",
		Long: `Read category trend rows in a date range from the trend table and upsert
them into the configured Notion database. Useful to backfill a new database
or to repair it after a failed publish.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			for _, d := range []string{since, until} {
				if d == "" {
					continue
				}
				if _, err := time.Parse(time.DateOnly, d); err != nil {
					return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", d)
				}
			}
			if since != "" && until != "" && until < since {
				return fmt.Errorf("--until must not be before --since")
			}
			if !cfg.NotionEnabled() {
				return fmt.Errorf("notion.token and notion.trend_database_id are required")
			}
			if cfg.GCP.Project == "" || cfg.Warehouse.Dataset == "" {
				return fmt.Errorf("gcp.project and warehouse.dataset are required")
			}

			loader, err := warehouse.NewBigQueryLoader(ctx, cfg.GCP.Project, cfg.Warehouse.Dataset)
			if err != nil {
				return err
			}
			defer loader.Close()

			rows, err := loader.QueryTrend(ctx, cfg.Warehouse.TrendTable, since, until)
			if err != nil {
				return err
			}
			log.Info().Int("rows", len(rows)).Str("since", since).Str("until", until).Msg("Read trend rows")

			publisher := notionsync.NewPublisher(
				notionsync.NewNotionClient(cfg.Notion.Token),
				cfg.Notion.TrendDatabaseID,
				dryRun || cfg.Notion.DryRun,
			)
			n, err := publisher.PublishTrend(ctx, rows)
			if err != nil {
				return err
			}

			fmt.Printf("Synced %d of %d trend rows to Notion\n", n, len(rows))
			return nil
		},
	}

	cmd.Flags().StringVar(&since, "since", "", "first date_time to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&until, "until", "", "last date_time to include (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "preview changes without writing to Notion")
	return cmd
}
