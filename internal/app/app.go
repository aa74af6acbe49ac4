// Package app wires configuration into the pipeline's collaborators.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dvloznov/bankdata-pipeline/internal/categorize"
	"github.com/dvloznov/bankdata-pipeline/internal/classifier"
	"github.com/dvloznov/bankdata-pipeline/internal/config"
	"github.com/dvloznov/bankdata-pipeline/internal/gcs"
	"github.com/dvloznov/bankdata-pipeline/internal/jobs"
	"github.com/dvloznov/bankdata-pipeline/internal/notionsync"
	"github.com/dvloznov/bankdata-pipeline/internal/openbanking"
	"github.com/dvloznov/bankdata-pipeline/internal/pipeline"
	"github.com/dvloznov/bankdata-pipeline/internal/trend"
	"github.com/dvloznov/bankdata-pipeline/internal/warehouse"
)

// ArtifactSource loads naive-Bayes artifacts by object name.
type ArtifactSource interface {
	Load(ctx context.Context, name string) (*classifier.NaiveBayes, error)
}

// NewStrategy builds the categorization strategy named in cfg. The model
// strategy loads its classifier here, once per run.
func NewStrategy(ctx context.Context, cfg *config.Config, artifacts ArtifactSource) (categorize.Strategy, error) {
	switch strings.ToLower(cfg.Categorize.Strategy) {
	case categorize.StrategyRules:
		return categorize.Select(categorize.StrategyRules, cfg.Categorize.Rules, nil)

	case categorize.StrategyModel:
		var c categorize.Classifier
		switch cfg.Classifier.Kind {
		case config.ClassifierGemini:
			g, err := classifier.NewGeminiClassifier(ctx, cfg.Classifier.GeminiModel)
			if err != nil {
				return nil, fmt.Errorf("NewStrategy: %w", err)
			}
			c = g
		case config.ClassifierNaiveBayes:
			if artifacts == nil {
				return nil, fmt.Errorf("NewStrategy: %w: no artifact source", classifier.ErrArtifactUnavailable)
			}
			m, err := artifacts.Load(ctx, cfg.Classifier.Artifact)
			if err != nil {
				return nil, fmt.Errorf("NewStrategy: %w", err)
			}
			c = m
		default:
			return nil, fmt.Errorf("NewStrategy: %w: unknown classifier.kind %q", config.ErrInvalidConfig, cfg.Classifier.Kind)
		}
		return categorize.Select(categorize.StrategyModel, nil, c)

	default:
		return nil, fmt.Errorf("NewStrategy: %w: %w", config.ErrInvalidConfig, categorize.ErrUnknownStrategy)
	}
}

// RunOptions builds pipeline options from cfg. Non-empty sources override
// storage.source_files.
func RunOptions(cfg *config.Config, sources []string) (pipeline.Options, error) {
	mainDisp, err := cfg.MainDisposition()
	if err != nil {
		return pipeline.Options{}, fmt.Errorf("RunOptions: %w", err)
	}
	trendDisp, err := cfg.TrendDisposition()
	if err != nil {
		return pipeline.Options{}, fmt.Errorf("RunOptions: %w", err)
	}
	if len(sources) == 0 {
		sources = cfg.Storage.SourceFiles
	}

	return pipeline.Options{
		Sources:          sources,
		MainTable:        cfg.Warehouse.MainTable,
		TrendTable:       cfg.Warehouse.TrendTable,
		MainDisposition:  mainDisp,
		TrendDisposition: trendDisp,
		ProcessedPrefix:  cfg.Storage.ProcessedPrefix,
	}, nil
}

// Runtime holds the long-lived clients shared by runs.
type Runtime struct {
	Config    *config.Config
	Storage   gcs.Storage
	Loader    warehouse.Loader
	Artifacts ArtifactSource
	Publisher pipeline.TrendPublisher

	closers []func() error
}

// NewRuntime validates cfg and opens the storage and warehouse clients.
func NewRuntime(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	storage, err := gcs.NewGCSStorage(ctx, cfg.Storage.Bucket)
	if err != nil {
		return nil, fmt.Errorf("NewRuntime: %w", err)
	}

	loader, err := warehouse.NewBigQueryLoader(ctx, cfg.GCP.Project, cfg.Warehouse.Dataset)
	if err != nil {
		_ = storage.Close()
		return nil, fmt.Errorf("NewRuntime: %w", err)
	}

	rt := &Runtime{
		Config:    cfg,
		Storage:   storage,
		Loader:    loader,
		Artifacts: classifier.NewArtifactLoader(storage, cfg.Classifier.CacheTTL),
		closers:   []func() error{loader.Close, storage.Close},
	}
	if cfg.NotionEnabled() {
		rt.Publisher = notionsync.NewPublisher(
			notionsync.NewNotionClient(cfg.Notion.Token),
			cfg.Notion.TrendDatabaseID,
			cfg.Notion.DryRun,
		)
	}
	return rt, nil
}

// Close releases every client.
func (rt *Runtime) Close() error {
	var errs []error
	for _, c := range rt.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// NewRunner builds a runner for one run.
func (rt *Runtime) NewRunner(ctx context.Context) (*pipeline.Runner, error) {
	strategy, err := NewStrategy(ctx, rt.Config, rt.Artifacts)
	if err != nil {
		return nil, err
	}

	gate, err := trend.NewGate(rt.Config.Trend.Timezone)
	if err != nil {
		return nil, fmt.Errorf("NewRunner: %w: trend.timezone: %v", config.ErrInvalidConfig, err)
	}

	opts := []pipeline.RunnerOption{
		pipeline.WithGate(gate),
		pipeline.WithFlattener(openbanking.NewFlattener(
			openbanking.NewInstitutionRegistry(rt.Config.Institutions.Known, rt.Config.Institutions.Fallback),
		)),
	}
	if rt.Publisher != nil {
		opts = append(opts, pipeline.WithPublisher(rt.Publisher))
	}

	return pipeline.NewRunner(rt.Storage, rt.Loader, strategy, opts...), nil
}

// Run executes one pipeline run over sources (or the configured files).
func (rt *Runtime) Run(ctx context.Context, sources []string) (*pipeline.RunReport, error) {
	opts, err := RunOptions(rt.Config, sources)
	if err != nil {
		return nil, err
	}
	runner, err := rt.NewRunner(ctx)
	if err != nil {
		return nil, err
	}
	return runner.Run(ctx, opts)
}

// HandleRunJob is the jobs.JobHandler of the API server's run queue. The
// report is attached even when the run fails part way.
func (rt *Runtime) HandleRunJob(ctx context.Context, job *jobs.PipelineRunJob) error {
	report, err := rt.Run(ctx, job.Sources)
	job.Report = report
	return err
}
