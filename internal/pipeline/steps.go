package pipeline

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/dvloznov/bankdata-pipeline/internal/categorize"
	"github.com/dvloznov/bankdata-pipeline/internal/domain"
	"github.com/dvloznov/bankdata-pipeline/internal/enrich"
	"github.com/dvloznov/bankdata-pipeline/internal/gcs"
	"github.com/dvloznov/bankdata-pipeline/internal/logger"
	"github.com/dvloznov/bankdata-pipeline/internal/metrics"
	"github.com/dvloznov/bankdata-pipeline/internal/openbanking"
	"github.com/dvloznov/bankdata-pipeline/internal/trend"
	"github.com/dvloznov/bankdata-pipeline/internal/warehouse"
)

// PipelineStep represents a single step in a pipeline run.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// SourceFile is one downloaded export.
type SourceFile struct {
	Name       string
	Data       []byte
	Updated    time.Time
	Generation int64
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	RunID   string
	Sources []string

	Files   []SourceFile
	PerFile [][]domain.CategorizedRow
	Merged  []domain.CategorizedRow

	RowsFlattened int
	RowsRejected  int

	MainRowsLoaded  int64
	ProcessedObject string

	TrendDecision   trend.Decision
	TrendRows       []domain.TrendRow
	TrendRowsLoaded int64
	TrendPublished  int
}

// FetchSourcesStep downloads every source export together with its
// modification time.
type FetchSourcesStep struct {
	Storage gcs.Storage
}

func (s *FetchSourcesStep) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)

	files := make([]SourceFile, 0, len(state.Sources))
	for _, name := range state.Sources {
		info, err := s.Storage.Stat(ctx, name)
		if err != nil {
			return fmt.Errorf("FetchSourcesStep: stat %s: %w", name, err)
		}

		data, err := s.Storage.Read(ctx, name)
		if err != nil {
			return fmt.Errorf("FetchSourcesStep: reading %s: %w", name, err)
		}

		log.Info().
			Str("file", name).
			Time("updated", info.Updated).
			Int("bytes", len(data)).
			Msg("Fetched source export")

		files = append(files, SourceFile{
			Name:       name,
			Data:       data,
			Updated:    info.Updated,
			Generation: info.Generation,
		})
	}

	state.Files = files
	return nil
}

// FlattenAndCategorizeStep turns each file into categorized rows:
// flatten, enrich, then assign labels.
type FlattenAndCategorizeStep struct {
	Flattener *openbanking.Flattener
	Strategy  categorize.Strategy
}

func (s *FlattenAndCategorizeStep) Execute(ctx context.Context, state *PipelineState) error {
	perFile := make([][]domain.CategorizedRow, 0, len(state.Files))

	for _, f := range state.Files {
		fileCtx := logger.WithContext(ctx, logger.FromContext(ctx).With().Str("file", f.Name).Logger())
		log := logger.FromContext(fileCtx)

		exports, err := openbanking.DecodeExports(f.Data)
		if err != nil {
			return fmt.Errorf("FlattenAndCategorizeStep: decoding %s: %w", f.Name, err)
		}

		var flat []domain.FlatRow
		for _, export := range exports {
			flat = append(flat, s.Flattener.Flatten(fileCtx, export)...)
		}

		enriched, rejected := enrich.Enrich(flat)
		for _, r := range rejected {
			log.Warn().
				Int("row", r.Index).
				Err(r.Err).
				Msg("Dropping row with unusable booking date")
		}

		rows, err := s.Strategy.Assign(fileCtx, enriched)
		if err != nil {
			return fmt.Errorf("FlattenAndCategorizeStep: categorizing %s: %w", f.Name, err)
		}

		log.Info().
			Int("flattened", len(flat)).
			Int("rejected", len(rejected)).
			Int("rows", len(rows)).
			Str("strategy", s.Strategy.Name()).
			Msg("Categorized source export")

		state.RowsFlattened += len(flat)
		state.RowsRejected += len(rejected)
		perFile = append(perFile, rows)
	}

	metrics.AddRows("flattened", state.RowsFlattened)
	metrics.AddRows("rejected", state.RowsRejected)

	state.PerFile = perFile
	return nil
}

// MergeStep combines the per-file batches once every file has been processed.
type MergeStep struct{}

func (s *MergeStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Merged = Merge(state.PerFile)
	metrics.AddRows("categorized", len(state.Merged))
	return nil
}

// LoadMainStep writes the merged batch to the main table.
type LoadMainStep struct {
	Loader      warehouse.Loader
	Table       string
	Disposition warehouse.WriteDisposition
}

func (s *LoadMainStep) Execute(ctx context.Context, state *PipelineState) error {
	n, err := s.Loader.Load(ctx, s.Table, warehouse.TransactionBatch(state.Merged), s.Disposition)
	if err != nil {
		return fmt.Errorf("LoadMainStep: loading %s: %w", s.Table, err)
	}
	state.MainRowsLoaded = n
	metrics.AddLoaded(s.Table, s.Disposition.String(), n)
	return nil
}

// StoreProcessedArtifactStep keeps a Parquet copy of the merged batch in
// object storage. An empty Prefix disables the step.
type StoreProcessedArtifactStep struct {
	Storage gcs.Storage
	Prefix  string
}

func (s *StoreProcessedArtifactStep) Execute(ctx context.Context, state *PipelineState) error {
	if s.Prefix == "" {
		return nil
	}

	payload, err := warehouse.EncodeParquet(warehouse.TransactionBatch(state.Merged))
	if err != nil {
		return fmt.Errorf("StoreProcessedArtifactStep: encoding: %w", err)
	}

	name := path.Join(s.Prefix, state.RunID+".parquet")
	if err := s.Storage.Write(ctx, name, payload, "application/vnd.apache.parquet"); err != nil {
		return fmt.Errorf("StoreProcessedArtifactStep: writing %s: %w", name, err)
	}

	state.ProcessedObject = name
	log := logger.FromContext(ctx)
	log.Info().Str("object", name).Msg("Stored processed batch")
	return nil
}

// TrendGateStep decides whether the trend table is refreshed in this run.
type TrendGateStep struct {
	Loader warehouse.Loader
	Table  string
	Gate   *trend.Gate
	Now    func() time.Time
}

func (s *TrendGateStep) Execute(ctx context.Context, state *PipelineState) error {
	last, loaded, err := s.Loader.LastModified(ctx, s.Table)
	if err != nil {
		return fmt.Errorf("TrendGateStep: reading %s modification time: %w", s.Table, err)
	}

	updated := make([]time.Time, len(state.Files))
	for i, f := range state.Files {
		updated[i] = f.Updated
	}

	decision := s.Gate.Decide(s.Now(), last, loaded, updated)
	state.TrendDecision = decision
	metrics.ObserveTrendDecision(decision.Refresh, decision.Reason)

	log := logger.FromContext(ctx)
	ev := log.Info().
		Bool("refresh", decision.Refresh).
		Str("reason", decision.Reason)
	if loaded {
		ev = ev.Time("trend_last_modified", last)
	}
	ev.Msg("Trend gate evaluated")

	return nil
}

// LoadTrendStep aggregates the merged batch and loads it when the gate allows.
type LoadTrendStep struct {
	Loader      warehouse.Loader
	Table       string
	Disposition warehouse.WriteDisposition
}

func (s *LoadTrendStep) Execute(ctx context.Context, state *PipelineState) error {
	if !state.TrendDecision.Refresh {
		return nil
	}

	state.TrendRows = trend.Aggregate(state.Merged)

	n, err := s.Loader.Load(ctx, s.Table, warehouse.TrendBatch(state.TrendRows), s.Disposition)
	if err != nil {
		return fmt.Errorf("LoadTrendStep: loading %s: %w", s.Table, err)
	}
	state.TrendRowsLoaded = n
	metrics.AddLoaded(s.Table, s.Disposition.String(), n)
	return nil
}

// TrendPublisher mirrors appended trend rows to an external destination.
type TrendPublisher interface {
	PublishTrend(ctx context.Context, rows []domain.TrendRow) (int, error)
}

// PublishTrendStep forwards freshly loaded trend rows to the publisher.
type PublishTrendStep struct {
	Publisher TrendPublisher
}

func (s *PublishTrendStep) Execute(ctx context.Context, state *PipelineState) error {
	if s.Publisher == nil || !state.TrendDecision.Refresh || len(state.TrendRows) == 0 {
		return nil
	}

	n, err := s.Publisher.PublishTrend(ctx, state.TrendRows)
	if err != nil {
		return fmt.Errorf("PublishTrendStep: %w", err)
	}
	state.TrendPublished = n
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps sequentially and stops at the first failure.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}
