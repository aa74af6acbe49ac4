package warehouse

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/bankdata-pipeline/internal/logger"
	"google.golang.org/api/googleapi"
)

// BigQueryLoader is the concrete implementation of Loader that submits
// Parquet load jobs to BigQuery. It holds a shared client.
type BigQueryLoader struct {
	client  *bigquery.Client
	dataset string
}

// NewBigQueryLoader creates a loader with a new BigQuery client.
func NewBigQueryLoader(ctx context.Context, projectID, dataset string) (*BigQueryLoader, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryLoader: creating client: %w", err)
	}
	return NewBigQueryLoaderWithClient(client, dataset), nil
}

// NewBigQueryLoaderWithClient creates a loader over an existing client.
func NewBigQueryLoaderWithClient(client *bigquery.Client, dataset string) *BigQueryLoader {
	return &BigQueryLoader{client: client, dataset: dataset}
}

// Close closes the BigQuery client connection.
func (l *BigQueryLoader) Close() error {
	if l.client != nil {
		return l.client.Close()
	}
	return nil
}

// Load implements Loader. A truncate of an empty batch clears the table; an
// append of an empty batch is skipped without contacting BigQuery.
func (l *BigQueryLoader) Load(ctx context.Context, table string, batch Batch, disposition WriteDisposition) (int64, error) {
	if err := disposition.Validate(); err != nil {
		return 0, fmt.Errorf("Load: %w", err)
	}

	log := logger.FromContext(ctx).With().
		Str("table", table).
		Str("disposition", disposition.String()).
		Int("rows", batch.Len()).
		Logger()

	if batch.Len() == 0 && disposition == Append {
		log.Info().Msg("Skipping append of empty batch")
		return 0, nil
	}

	payload, err := EncodeParquet(batch)
	if err != nil {
		return 0, fmt.Errorf("Load: encoding %s batch: %w", table, err)
	}

	src := bigquery.NewReaderSource(bytes.NewReader(payload))
	src.SourceFormat = bigquery.Parquet

	loader := l.client.Dataset(l.dataset).Table(table).LoaderFrom(src)
	loader.WriteDisposition = disposition.bigQuery()
	loader.CreateDisposition = bigquery.CreateIfNeeded

	job, err := loader.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("Load: starting load job for %s: %w", table, err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("Load: waiting for job %s: %w", job.ID(), err)
	}
	if err := status.Err(); err != nil {
		return 0, fmt.Errorf("Load: job %s failed: %w", job.ID(), err)
	}

	var written int64
	if stats, ok := status.Statistics.Details.(*bigquery.LoadStatistics); ok {
		written = stats.OutputRows
	}

	log.Info().
		Str("job_id", job.ID()).
		Int64("output_rows", written).
		Int("payload_bytes", len(payload)).
		Msg("Load job finished")

	return written, nil
}

// LastModified implements Loader.
func (l *BigQueryLoader) LastModified(ctx context.Context, table string) (time.Time, bool, error) {
	md, err := l.client.Dataset(l.dataset).Table(table).Metadata(ctx)
	if err != nil {
		if isNotFound(err) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("LastModified: fetching %s metadata: %w", table, err)
	}
	return md.LastModifiedTime, true, nil
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
