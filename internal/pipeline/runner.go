// Package pipeline orchestrates one run: fetch, flatten, enrich, categorize,
// merge, load, and the gated trend refresh.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/bankdata-pipeline/internal/categorize"
	"github.com/dvloznov/bankdata-pipeline/internal/gcs"
	"github.com/dvloznov/bankdata-pipeline/internal/logger"
	"github.com/dvloznov/bankdata-pipeline/internal/metrics"
	"github.com/dvloznov/bankdata-pipeline/internal/openbanking"
	"github.com/dvloznov/bankdata-pipeline/internal/trend"
	"github.com/dvloznov/bankdata-pipeline/internal/warehouse"
	"github.com/google/uuid"
)

// ErrNoSources is returned when a run is started without source files.
var ErrNoSources = errors.New("no source files")

// Default table names.
const (
	DefaultMainTable  = "bank_data"
	DefaultTrendTable = "category_trend"
)

// Options configures a single run.
type Options struct {
	RunID            string // generated when empty
	Sources          []string
	MainTable        string
	TrendTable       string
	MainDisposition  warehouse.WriteDisposition
	TrendDisposition warehouse.WriteDisposition
	ProcessedPrefix  string
}

// RunReport summarizes a run. On failure it holds whatever completed.
type RunReport struct {
	RunID           string    `json:"run_id"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	Strategy        string    `json:"strategy"`
	Files           []string  `json:"files"`
	RowsFlattened   int       `json:"rows_flattened"`
	RowsRejected    int       `json:"rows_rejected"`
	RowsCategorized int       `json:"rows_categorized"`
	MainRowsLoaded  int64     `json:"main_rows_loaded"`
	ProcessedObject string    `json:"processed_object,omitempty"`
	TrendRefreshed  bool      `json:"trend_refreshed"`
	TrendReason     string    `json:"trend_reason"`
	TrendRows       int       `json:"trend_rows"`
	TrendRowsLoaded int64     `json:"trend_rows_loaded"`
	TrendPublished  int       `json:"trend_published"`
}

// Runner holds the collaborators of a run.
type Runner struct {
	storage   gcs.Storage
	loader    warehouse.Loader
	strategy  categorize.Strategy
	flattener *openbanking.Flattener
	gate      *trend.Gate
	publisher TrendPublisher
	now       func() time.Time
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithFlattener overrides the default flattener.
func WithFlattener(f *openbanking.Flattener) RunnerOption {
	return func(r *Runner) { r.flattener = f }
}

// WithGate overrides the default Europe/Warsaw trend gate.
func WithGate(g *trend.Gate) RunnerOption {
	return func(r *Runner) { r.gate = g }
}

// WithPublisher mirrors refreshed trend rows through p.
func WithPublisher(p TrendPublisher) RunnerOption {
	return func(r *Runner) { r.publisher = p }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

// NewRunner creates a Runner.
func NewRunner(storage gcs.Storage, loader warehouse.Loader, strategy categorize.Strategy, opts ...RunnerOption) *Runner {
	r := &Runner{
		storage:  storage,
		loader:   loader,
		strategy: strategy,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.flattener == nil {
		r.flattener = openbanking.NewFlattener(nil)
	}
	if r.gate == nil {
		loc, err := time.LoadLocation(trend.DefaultTimezone)
		if err != nil {
			loc = time.UTC
		}
		r.gate = &trend.Gate{Location: loc}
	}
	return r
}

// NewRunPipeline creates the standard step chain for opts.
func (r *Runner) NewRunPipeline(opts Options) *Pipeline {
	steps := []PipelineStep{
		&FetchSourcesStep{Storage: r.storage},
		&FlattenAndCategorizeStep{Flattener: r.flattener, Strategy: r.strategy},
		&MergeStep{},
		&LoadMainStep{Loader: r.loader, Table: opts.MainTable, Disposition: opts.MainDisposition},
		&StoreProcessedArtifactStep{Storage: r.storage, Prefix: opts.ProcessedPrefix},
		&TrendGateStep{Loader: r.loader, Table: opts.TrendTable, Gate: r.gate, Now: r.now},
		&LoadTrendStep{Loader: r.loader, Table: opts.TrendTable, Disposition: opts.TrendDisposition},
	}
	if r.publisher != nil {
		steps = append(steps, &PublishTrendStep{Publisher: r.publisher})
	}
	return NewPipeline(steps...)
}

func (o *Options) normalize() error {
	if len(o.Sources) == 0 {
		return ErrNoSources
	}
	if o.MainTable == "" {
		o.MainTable = DefaultMainTable
	}
	if o.TrendTable == "" {
		o.TrendTable = DefaultTrendTable
	}
	if o.MainDisposition == "" {
		o.MainDisposition = warehouse.Truncate
	}
	if o.TrendDisposition == "" {
		o.TrendDisposition = warehouse.Append
	}
	if err := o.MainDisposition.Validate(); err != nil {
		return err
	}
	if err := o.TrendDisposition.Validate(); err != nil {
		return err
	}
	if o.RunID == "" {
		o.RunID = uuid.New().String()
	}
	return nil
}

// Run executes one pipeline run. Configuration errors are reported before any
// storage or warehouse I/O. A failure after the main load leaves the main
// table loaded; the report reflects what completed.
func (r *Runner) Run(ctx context.Context, opts Options) (*RunReport, error) {
	if err := opts.normalize(); err != nil {
		return nil, fmt.Errorf("Run: %w", err)
	}

	ctx = logger.WithRun(ctx, opts.RunID)
	log := logger.FromContext(ctx)

	report := &RunReport{
		RunID:     opts.RunID,
		StartedAt: r.now(),
		Strategy:  r.strategy.Name(),
		Files:     opts.Sources,
	}

	log.Info().
		Strs("files", opts.Sources).
		Str("strategy", report.Strategy).
		Msg("Pipeline run started")

	state := &PipelineState{RunID: opts.RunID, Sources: opts.Sources}
	err := r.NewRunPipeline(opts).Execute(ctx, state)

	report.FinishedAt = r.now()
	report.RowsFlattened = state.RowsFlattened
	report.RowsRejected = state.RowsRejected
	report.RowsCategorized = len(state.Merged)
	report.MainRowsLoaded = state.MainRowsLoaded
	report.ProcessedObject = state.ProcessedObject
	report.TrendRefreshed = state.TrendDecision.Refresh
	report.TrendReason = state.TrendDecision.Reason
	report.TrendRows = len(state.TrendRows)
	report.TrendRowsLoaded = state.TrendRowsLoaded
	report.TrendPublished = state.TrendPublished

	duration := report.FinishedAt.Sub(report.StartedAt)
	if err != nil {
		metrics.ObserveRun(metrics.OutcomeFailure, duration)
		log.Error().Err(err).Dur("duration", duration).Msg("Pipeline run failed")
		return report, fmt.Errorf("Run: %w", err)
	}

	metrics.ObserveRun(metrics.OutcomeSuccess, duration)
	log.Info().
		Int64("main_rows_loaded", report.MainRowsLoaded).
		Bool("trend_refreshed", report.TrendRefreshed).
		Dur("duration", duration).
		Msg("Pipeline run finished")

	return report, nil
}
