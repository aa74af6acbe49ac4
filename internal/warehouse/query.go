package warehouse

import (
	"context"
	"fmt"
	"math/big"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/bankdata-pipeline/internal/domain"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"
)

// TrendReader reads back appended trend rows.
type TrendReader interface {
	QueryTrend(ctx context.Context, table, since, until string) ([]domain.TrendRow, error)
}

type trendQueryRow struct {
	Label    bigquery.NullString `bigquery:"label"`
	Amount   *big.Rat            `bigquery:"amount"`
	DateTime bigquery.NullString `bigquery:"date_time"`
}

// QueryTrend returns trend rows whose date_time lies in [since, until]. Both
// bounds are YYYY-MM-DD text, matching the column; an empty bound is open.
func (l *BigQueryLoader) QueryTrend(ctx context.Context, table, since, until string) ([]domain.TrendRow, error) {
	q := l.client.Query(fmt.Sprintf(`
		SELECT label, amount, date_time
		FROM `+"`%s.%s`"+`
		WHERE (@since = '' OR date_time >= @since)
		  AND (@until = '' OR date_time <= @until)
		ORDER BY date_time, label
	`, l.dataset, table))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "since", Value: since},
		{Name: "until", Value: until},
	}

	it, err := q.Read(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("QueryTrend: query read: %w", err)
	}

	var rows []domain.TrendRow
	for {
		var r trendQueryRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryTrend: iter next: %w", err)
		}
		rows = append(rows, trendRowFromQuery(r))
	}

	return rows, nil
}

func trendRowFromQuery(r trendQueryRow) domain.TrendRow {
	row := domain.TrendRow{
		Label:    r.Label.StringVal,
		DateTime: r.DateTime.StringVal,
	}
	if r.Amount != nil {
		if d, err := decimal.NewFromString(r.Amount.FloatString(numericScale)); err == nil {
			row.Amount = d
		}
	}
	return row
}

var _ TrendReader = (*BigQueryLoader)(nil)
