package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/dvloznov/bankdata-pipeline/internal/categorize"
	"github.com/dvloznov/bankdata-pipeline/internal/classifier"
	"github.com/dvloznov/bankdata-pipeline/internal/domain"
	"github.com/dvloznov/bankdata-pipeline/internal/openbanking"
	"github.com/dvloznov/bankdata-pipeline/internal/pipeline"
	"github.com/spf13/cobra"
)

func categorizeCmd() *cobra.Command {
	var (
		strategyName string
		artifactPath string
		asJSON       bool
	)

	cmd := &cobra.Command{
		Use:   "categorize FILE...",
		Short: "Categorize local export files without touching the warehouse",
		Long: `Flatten and categorize one or more local export files and print the
resulting rows. Nothing is uploaded or loaded.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if strategyName == "" {
				strategyName = cfg.Categorize.Strategy
			}
			strategy, err := localStrategy(strategyName, cfg.Categorize.Rules, artifactPath)
			if err != nil {
				return err
			}

			files := make([]pipeline.SourceFile, 0, len(args))
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("reading %s: %w", path, err)
				}
				files = append(files, pipeline.SourceFile{Name: filepath.Base(path), Data: data})
			}

			flattener := openbanking.NewFlattener(
				openbanking.NewInstitutionRegistry(cfg.Institutions.Known, cfg.Institutions.Fallback),
			)
			state, err := categorizeFiles(ctx, files, flattener, strategy)
			if err != nil {
				return err
			}

			if asJSON {
				return writeRowsJSON(os.Stdout, state.Merged)
			}
			writeRowsTable(os.Stdout, state.Merged)
			fmt.Printf("\n%d rows (%d flattened, %d rejected) using %s strategy\n",
				len(state.Merged), state.RowsFlattened, state.RowsRejected, strategy.Name())
			return nil
		},
	}

	cmd.Flags().StringVar(&strategyName, "strategy", "", "rules or model (default: categorize.strategy)")
	cmd.Flags().StringVar(&artifactPath, "artifact", "", "local naive-Bayes artifact for the model strategy")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print rows as JSON")
	return cmd
}

// localStrategy builds a strategy without cloud access; the model strategy
// reads its artifact from disk.
func localStrategy(name string, rules []categorize.Rule, artifactPath string) (categorize.Strategy, error) {
	if !strings.EqualFold(name, categorize.StrategyModel) {
		return categorize.Select(name, rules, nil)
	}
	if artifactPath == "" {
		return nil, fmt.Errorf("--artifact is required for the %s strategy", categorize.StrategyModel)
	}
	data, err := os.ReadFile(artifactPath)
	if err != nil {
		return nil, fmt.Errorf("reading artifact: %w", err)
	}
	model, err := classifier.LoadNaiveBayes(data)
	if err != nil {
		return nil, err
	}
	return categorize.Select(categorize.StrategyModel, nil, model)
}

// categorizeFiles runs the flatten/categorize/merge part of the pipeline over
// already loaded files.
func categorizeFiles(ctx context.Context, files []pipeline.SourceFile, flattener *openbanking.Flattener, strategy categorize.Strategy) (*pipeline.PipelineState, error) {
	state := &pipeline.PipelineState{Files: files}
	p := pipeline.NewPipeline(
		&pipeline.FlattenAndCategorizeStep{Flattener: flattener, Strategy: strategy},
		&pipeline.MergeStep{},
	)
	if err := p.Execute(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

func writeRowsTable(out io.Writer, rows []domain.CategorizedRow) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "DATE\tAMOUNT\tCURRENCY\tINSTITUTION\tLABEL\tDESCRIPTION")
	for _, r := range rows {
		amount := ""
		if r.Amount.Valid {
			amount = r.Amount.Decimal.StringFixed(2)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.DateTime, amount, domain.StringValue(r.Currency), r.Institution,
			r.Label, domain.StringValue(r.Description))
	}
}

type rowJSON struct {
	DateTime    string  `json:"date_time"`
	Amount      *string `json:"amount"`
	Currency    *string `json:"currency"`
	Institution string  `json:"institution"`
	Description *string `json:"description"`
	Label       string  `json:"label"`
}

func writeRowsJSON(out io.Writer, rows []domain.CategorizedRow) error {
	encoded := make([]rowJSON, len(rows))
	for i, r := range rows {
		encoded[i] = rowJSON{
			DateTime:    r.DateTime.String(),
			Currency:    r.Currency,
			Institution: r.Institution.String(),
			Description: r.Description,
			Label:       r.Label,
		}
		if r.Amount.Valid {
			s := r.Amount.Decimal.String()
			encoded[i].Amount = &s
		}
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(encoded)
}
