package notionsync

import (
	"context"

	"github.com/jomei/notionapi"
)

// NotionService is the slice of the Notion API the trend publisher upserts
// through. NotionClient implements it; tests pass a MockNotionService.
type NotionService interface {
	// QueryDatabase returns one page of results; callers follow NextCursor.
	QueryDatabase(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)

	// UpdatePage rewrites the trend properties of a page found by TrendKey.
	UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error)

	CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)
}
