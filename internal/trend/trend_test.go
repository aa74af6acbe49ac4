package trend

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/bankdata-pipeline/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func warsawGate(t *testing.T) *Gate {
	t.Helper()
	g, err := NewGate("")
	require.NoError(t, err)
	return g
}

func TestGate_Decide(t *testing.T) {
	g := warsawGate(t)
	now := time.Date(2024, 3, 15, 14, 0, 0, 0, g.Location)

	tests := []struct {
		name     string
		lastLoad time.Time
		loaded   bool
		sources  []time.Time
		want     Decision
	}{
		{
			name:     "stale trend and fresh source",
			lastLoad: now.Add(-48 * time.Hour),
			loaded:   true,
			sources:  []time.Time{now.Add(-30 * time.Minute)},
			want:     Decision{Refresh: true, Reason: ReasonIntervalPassed},
		},
		{
			name:     "trend loaded an hour ago",
			lastLoad: now.Add(-time.Hour),
			loaded:   true,
			sources:  []time.Time{now.Add(-10 * time.Minute)},
			want:     Decision{Reason: ReasonTooRecent},
		},
		{
			name:    "trend table missing",
			sources: []time.Time{now},
			want:    Decision{Refresh: true, Reason: ReasonFirstLoad},
		},
		{
			name:     "no source updated today",
			lastLoad: now.Add(-72 * time.Hour),
			loaded:   true,
			sources:  []time.Time{now.Add(-25 * time.Hour)},
			want:     Decision{Reason: ReasonNoFreshSource},
		},
		{
			name:     "exactly 24 hours",
			lastLoad: now.Add(-24 * time.Hour),
			loaded:   true,
			sources:  []time.Time{now},
			want:     Decision{Refresh: true, Reason: ReasonIntervalPassed},
		},
		{
			name:     "one of several sources fresh",
			lastLoad: now.Add(-30 * time.Hour),
			loaded:   true,
			sources:  []time.Time{now.Add(-100 * time.Hour), now.Add(-2 * time.Hour)},
			want:     Decision{Refresh: true, Reason: ReasonIntervalPassed},
		},
		{
			name:   "no sources",
			loaded: false,
			want:   Decision{Reason: ReasonNoFreshSource},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.Decide(now, tt.lastLoad, tt.loaded, tt.sources))
		})
	}
}

func TestGate_SameDayUsesLocation(t *testing.T) {
	g := warsawGate(t)

	// 23:30 UTC on the 14th is already the 15th in Warsaw (UTC+1 in March).
	source := time.Date(2024, 3, 14, 23, 30, 0, 0, time.UTC)
	now := time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)

	d := g.Decide(now, time.Time{}, false, []time.Time{source})
	assert.True(t, d.Refresh)

	utc := &Gate{Location: time.UTC}
	d = utc.Decide(now, time.Time{}, false, []time.Time{source})
	assert.False(t, d.Refresh)
}

func TestNewGate_InvalidZone(t *testing.T) {
	_, err := NewGate("Mars/Olympus")
	assert.Error(t, err)
}

func row(label, amount string, day int) domain.CategorizedRow {
	r := domain.CategorizedRow{
		DateTime: civil.Date{Year: 2024, Month: 3, Day: day},
		Label:    label,
	}
	if amount != "" {
		r.Amount = decimal.NewNullDecimal(decimal.RequireFromString(amount))
	}
	return r
}

func TestAggregate(t *testing.T) {
	rows := []domain.CategorizedRow{
		row("Food and drinks", "-42.50", 15),
		row("Income", "8500", 10),
		row("Food and drinks", "-17.90", 17),
		row("Other", "", 12),
		row("Food and drinks", "-60.00", 11),
		row("Other", "-1.10", 3),
	}

	got := Aggregate(rows)
	require.Len(t, got, 3)

	assert.Equal(t, "Food and drinks", got[0].Label)
	assert.True(t, got[0].Amount.Equal(decimal.RequireFromString("-120.40")), got[0].Amount.String())
	assert.Equal(t, "2024-03-17", got[0].DateTime)

	assert.Equal(t, "Income", got[1].Label)
	assert.True(t, got[1].Amount.Equal(decimal.RequireFromString("8500")))
	assert.Equal(t, "2024-03-10", got[1].DateTime)

	assert.Equal(t, "Other", got[2].Label)
	assert.True(t, got[2].Amount.Equal(decimal.RequireFromString("-1.10")))
	assert.Equal(t, "2024-03-12", got[2].DateTime)
}

func TestAggregate_SumMatchesPerLabelTotal(t *testing.T) {
	rows := []domain.CategorizedRow{
		row("Travel", "-100", 1),
		row("Travel", "-0.01", 2),
		row("Travel", "50.005", 3),
	}
	got := Aggregate(rows)
	require.Len(t, got, 1)
	assert.Equal(t, "-50.005", got[0].Amount.String())
}

func TestAggregate_Empty(t *testing.T) {
	assert.Empty(t, Aggregate(nil))
}
