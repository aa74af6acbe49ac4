package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dvloznov/bankdata-pipeline/internal/categorize"
	"github.com/dvloznov/bankdata-pipeline/internal/classifier"
	"github.com/dvloznov/bankdata-pipeline/internal/domain"
	"github.com/dvloznov/bankdata-pipeline/internal/enrich"
	"github.com/dvloznov/bankdata-pipeline/internal/gcs"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// Required columns of a training CSV; order is free.
const (
	colDate        = "date_time"
	colDescription = "description"
	colAmount      = "amount"
	colLabel       = "label"
)

func trainCmd() *cobra.Command {
	var (
		output string
		object string
		alpha  float64
	)

	cmd := &cobra.Command{
		Use:   "train CSV",
		Short: "Train a naive-Bayes classifier artifact from labelled transactions",
		Long: `Train a naive-Bayes artifact from a CSV with date_time, description,
amount and label columns. Labels are category names or ids 0-17.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			examples, err := readTrainingCSV(f)
			if err != nil {
				return err
			}

			model, err := classifier.TrainNaiveBayes(examples, alpha)
			if err != nil {
				return err
			}
			data, err := model.Marshal()
			if err != nil {
				return err
			}

			if output != "" {
				if err := os.WriteFile(output, data, 0o644); err != nil {
					return fmt.Errorf("writing %s: %w", output, err)
				}
				log.Info().Str("path", output).Int("examples", len(examples)).Msg("Wrote classifier artifact")
			}

			if object != "" {
				storage, err := gcs.NewGCSStorage(ctx, cfg.Storage.Bucket)
				if err != nil {
					return err
				}
				defer storage.Close()
				if err := storage.Write(ctx, object, data, "application/json"); err != nil {
					return err
				}
				log.Info().Str("object", gcs.ObjectURI(cfg.Storage.Bucket, object)).Msg("Uploaded classifier artifact")
			}

			if output == "" && object == "" {
				_, err = os.Stdout.Write(data)
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the artifact to this local path")
	cmd.Flags().StringVar(&object, "object", "", "upload the artifact to this object in storage.bucket")
	cmd.Flags().Float64Var(&alpha, "alpha", classifier.DefaultAlpha, "additive smoothing")
	return cmd
}

// readTrainingCSV turns labelled CSV rows into training examples. Rows with an
// unparseable date are errors; the trainer has no use for undated rows.
func readTrainingCSV(r io.Reader) ([]classifier.Example, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("readTrainingCSV: reading header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range []string{colDate, colDescription, colAmount, colLabel} {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("readTrainingCSV: missing column %q", c)
		}
	}

	validator := categorize.NewCategoryValidator()
	var examples []classifier.Example
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("readTrainingCSV: line %d: %w", line, err)
		}

		label, err := parseLabel(validator, record[cols[colLabel]])
		if err != nil {
			return nil, fmt.Errorf("readTrainingCSV: line %d: %w", line, err)
		}

		dateText := strings.TrimSpace(record[cols[colDate]])
		date, err := enrich.ParseBookingDate(dateText)
		if err != nil {
			return nil, fmt.Errorf("readTrainingCSV: line %d: %w", line, err)
		}
		day, month, year, dow := enrich.CalendarParts(date)

		row := domain.EnrichedRow{Date: date, Day: day, Month: month, Year: year, DayOfWeek: dow}
		if desc := strings.TrimSpace(record[cols[colDescription]]); desc != "" {
			row.Description = &desc
		}
		if amt, err := decimal.NewFromString(strings.TrimSpace(record[cols[colAmount]])); err == nil {
			row.Amount = decimal.NullDecimal{Decimal: amt, Valid: true}
		}

		examples = append(examples, classifier.Example{
			Features: categorize.BuildFeatures(row),
			Label:    label,
		})
	}

	return examples, nil
}

// parseLabel accepts a category id or a category name.
func parseLabel(validator *categorize.CategoryValidator, text string) (int, error) {
	text = strings.TrimSpace(text)
	if id, err := strconv.Atoi(text); err == nil {
		if !domain.CategoryID(id).Valid() {
			return 0, fmt.Errorf("category id %d out of range", id)
		}
		return id, nil
	}

	name, err := validator.Canonical(text)
	if err != nil {
		return 0, err
	}
	id, _ := domain.CategoryByName(name)
	return int(id), nil
}
