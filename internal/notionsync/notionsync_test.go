package notionsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/bankdata-pipeline/internal/domain"
	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockNotionService is a mock implementation of NotionService for testing.
type MockNotionService struct {
	Pages   []notionapi.Page
	Created []notionapi.Properties
	Updated map[string]notionapi.Properties

	CreatePageFunc func(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)
	QueryErr       error
}

func (m *MockNotionService) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	if m.CreatePageFunc != nil {
		return m.CreatePageFunc(ctx, databaseID, properties)
	}
	m.Created = append(m.Created, properties)
	return &notionapi.Page{ID: notionapi.ObjectID("new-page")}, nil
}

func (m *MockNotionService) UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error) {
	if m.Updated == nil {
		m.Updated = make(map[string]notionapi.Properties)
	}
	m.Updated[pageID] = properties
	return &notionapi.Page{ID: notionapi.ObjectID(pageID)}, nil
}

func (m *MockNotionService) QueryDatabase(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	return &notionapi.DatabaseQueryResponse{Results: m.Pages}, nil
}

func pageWithKey(id, key string) notionapi.Page {
	return notionapi.Page{
		ID: notionapi.ObjectID(id),
		Properties: notionapi.Properties{
			PropKey: &notionapi.TitleProperty{
				Title: []notionapi.RichText{{PlainText: key}},
			},
		},
	}
}

var (
	_ NotionService = (*NotionClient)(nil)
	_ NotionService = (*MockNotionService)(nil)
)

func trendRows() []domain.TrendRow {
	return []domain.TrendRow{
		{Label: "Food and drinks", Amount: decimal.RequireFromString("-120.40"), DateTime: "2024-03-17"},
		{Label: "Income", Amount: decimal.RequireFromString("8500"), DateTime: "2024-03-10"},
	}
}

func TestTrendToNotionProperties(t *testing.T) {
	props := TrendToNotionProperties(trendRows()[0])

	title, ok := props[PropKey].(notionapi.TitleProperty)
	require.True(t, ok)
	assert.Equal(t, "Food and drinks @ 2024-03-17", title.Title[0].Text.Content)

	sel, ok := props[PropCategory].(notionapi.SelectProperty)
	require.True(t, ok)
	assert.Equal(t, "Food and drinks", sel.Select.Name)

	num, ok := props[PropAmount].(notionapi.NumberProperty)
	require.True(t, ok)
	assert.InDelta(t, -120.40, num.Number, 1e-9)

	date, ok := props[PropDate].(notionapi.DateProperty)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 17, 0, 0, 0, 0, time.UTC), time.Time(*date.Date.Start))
}

func TestTrendToNotionProperties_BadDate(t *testing.T) {
	props := TrendToNotionProperties(domain.TrendRow{Label: "Other", DateTime: "not a date"})
	_, ok := props[PropDate]
	assert.False(t, ok)
}

func TestPublishTrend_CreatesAndUpdates(t *testing.T) {
	svc := &MockNotionService{
		Pages: []notionapi.Page{pageWithKey("page-income", "Income @ 2024-03-10")},
	}

	n, err := PublishTrend(context.Background(), svc, "db", trendRows(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, svc.Created, 1)
	assert.Contains(t, svc.Updated, "page-income")
}

func TestPublishTrend_DryRun(t *testing.T) {
	svc := &MockNotionService{}

	n, err := NewPublisher(svc, "db", true).PublishTrend(context.Background(), trendRows())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Empty(t, svc.Created)
	assert.Empty(t, svc.Updated)
}

func TestPublishTrend_SkipsFailedRows(t *testing.T) {
	calls := 0
	svc := &MockNotionService{
		CreatePageFunc: func(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("rate limited")
			}
			return &notionapi.Page{ID: "p2"}, nil
		},
	}

	n, err := PublishTrend(context.Background(), svc, "db", trendRows(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPublishTrend_QueryFailure(t *testing.T) {
	svc := &MockNotionService{QueryErr: errors.New("unauthorized")}
	_, err := PublishTrend(context.Background(), svc, "db", trendRows(), false)
	assert.Error(t, err)
}
