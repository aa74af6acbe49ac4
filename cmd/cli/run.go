package main

import (
	"encoding/json"
	"os"

	"github.com/dvloznov/bankdata-pipeline/internal/app"
	"github.com/spf13/cobra"
)

func runCmd() *cobra.Command {
	var sources []string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once",
		Long: `Fetch the source exports, categorize them, reload the main table and
refresh the trend table when the gate allows.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			rt, err := app.NewRuntime(ctx, cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			report, err := rt.Run(ctx, sources)
			if report != nil {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				_ = enc.Encode(report)
			}
			return err
		},
	}

	cmd.Flags().StringSliceVar(&sources, "sources", nil, "object names overriding storage.source_files")
	return cmd
}
