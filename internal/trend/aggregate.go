package trend

import (
	"cloud.google.com/go/civil"
	"github.com/dvloznov/bankdata-pipeline/internal/domain"
	"github.com/shopspring/decimal"
)

// Aggregate groups rows by label, summing amounts (absent amounts count as
// zero) and keeping the latest booking date. Labels appear in the order they
// are first seen.
func Aggregate(rows []domain.CategorizedRow) []domain.TrendRow {
	type acc struct {
		sum    decimal.Decimal
		maxDay civil.Date
	}

	order := make([]string, 0)
	byLabel := make(map[string]*acc)

	for _, row := range rows {
		a, ok := byLabel[row.Label]
		if !ok {
			a = &acc{sum: decimal.Zero}
			byLabel[row.Label] = a
			order = append(order, row.Label)
		}
		if row.Amount.Valid {
			a.sum = a.sum.Add(row.Amount.Decimal)
		}
		if a.maxDay.IsZero() || row.DateTime.After(a.maxDay) {
			a.maxDay = row.DateTime
		}
	}

	out := make([]domain.TrendRow, 0, len(order))
	for _, label := range order {
		a := byLabel[label]
		out = append(out, domain.TrendRow{
			Label:    label,
			Amount:   a.sum,
			DateTime: a.maxDay.String(),
		})
	}
	return out
}
