// Package notionsync mirrors category trend rows into a Notion database.
package notionsync

import (
	"context"
	"fmt"

	"github.com/dvloznov/bankdata-pipeline/internal/domain"
	"github.com/dvloznov/bankdata-pipeline/internal/logger"
	"github.com/jomei/notionapi"
)

// PublishTrend creates or updates one Notion page per trend row, keyed by
// TrendKey. Failures on individual rows are logged and skipped; the number of
// rows written (or that would be written in dry-run mode) is returned.
func PublishTrend(ctx context.Context, notionClient NotionService, notionDBID string, rows []domain.TrendRow, dryRun bool) (int, error) {
	log := logger.FromContext(ctx)

	log.Info().
		Int("rows", len(rows)).
		Bool("dry_run", dryRun).
		Msg("Starting trend sync to Notion")

	pages, err := queryAllNotionPages(ctx, notionClient, notionDBID)
	if err != nil {
		return 0, fmt.Errorf("PublishTrend: %w", err)
	}

	existing := make(map[string]string, len(pages))
	for _, page := range pages {
		if key := extractTrendKey(page); key != "" {
			existing[key] = string(page.ID)
		}
	}

	var created, updated int
	for _, row := range rows {
		key := TrendKey(row)
		pageID, found := existing[key]

		if dryRun {
			log.Info().
				Str("key", key).
				Bool("exists", found).
				Msg("[DRY RUN] Would write trend page")
			if found {
				updated++
			} else {
				created++
			}
			continue
		}

		props := TrendToNotionProperties(row)
		if found {
			if _, err := notionClient.UpdatePage(ctx, pageID, props); err != nil {
				log.Warn().Err(err).Str("key", key).Str("page_id", pageID).Msg("Failed to update trend page")
				continue
			}
			updated++
			continue
		}

		page, err := notionClient.CreatePage(ctx, notionDBID, props)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to create trend page")
			continue
		}
		existing[key] = string(page.ID)
		created++
	}

	log.Info().
		Int("created", created).
		Int("updated", updated).
		Int("total", len(rows)).
		Msg("Trend sync completed")

	return created + updated, nil
}

// Publisher adapts PublishTrend to the pipeline's trend publisher.
type Publisher struct {
	client     NotionService
	databaseID string
	dryRun     bool
}

// NewPublisher creates a Publisher writing to databaseID.
func NewPublisher(client NotionService, databaseID string, dryRun bool) *Publisher {
	return &Publisher{client: client, databaseID: databaseID, dryRun: dryRun}
}

// PublishTrend mirrors rows to the configured database.
func (p *Publisher) PublishTrend(ctx context.Context, rows []domain.TrendRow) (int, error) {
	return PublishTrend(ctx, p.client, p.databaseID, rows, p.dryRun)
}

// queryAllNotionPages queries all pages from a Notion database and returns them.
// Handles pagination automatically.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: 100,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}
