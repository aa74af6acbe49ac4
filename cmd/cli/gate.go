package main

import (
	"fmt"
	"time"

	"github.com/dvloznov/bankdata-pipeline/internal/app"
	"github.com/dvloznov/bankdata-pipeline/internal/pipeline"
	"github.com/dvloznov/bankdata-pipeline/internal/trend"
	"github.com/spf13/cobra"
)

func gateCmd() *cobra.Command {
	var sources []string

	cmd := &cobra.Command{
		Use:   "gate",
		Short: "Show whether the next run would refresh the trend table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			rt, err := app.NewRuntime(ctx, cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			if len(sources) == 0 {
				sources = cfg.Storage.SourceFiles
			}
			state := &pipeline.PipelineState{Sources: sources}
			for _, name := range sources {
				info, err := rt.Storage.Stat(ctx, name)
				if err != nil {
					return fmt.Errorf("stat %s: %w", name, err)
				}
				state.Files = append(state.Files, pipeline.SourceFile{
					Name:       name,
					Updated:    info.Updated,
					Generation: info.Generation,
				})
			}

			gate, err := trend.NewGate(cfg.Trend.Timezone)
			if err != nil {
				return err
			}
			step := &pipeline.TrendGateStep{
				Loader: rt.Loader,
				Table:  cfg.Warehouse.TrendTable,
				Gate:   gate,
				Now:    time.Now,
			}
			if err := pipeline.NewPipeline(step).Execute(ctx, state); err != nil {
				return err
			}

			for _, f := range state.Files {
				fmt.Printf("%-40s updated %s\n", f.Name, f.Updated.In(gate.Location).Format(time.RFC3339))
			}
			fmt.Printf("refresh=%t reason=%s\n", state.TrendDecision.Refresh, state.TrendDecision.Reason)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&sources, "sources", nil, "object names overriding storage.source_files")
	return cmd
}
