package enrich

import (
	"testing"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/bankdata-pipeline/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestCalendarParts_KnownDate(t *testing.T) {
	day, month, year, dow := CalendarParts(civil.Date{Year: 2024, Month: 3, Day: 15})

	assert.Equal(t, 15, day)
	assert.Equal(t, 3, month)
	assert.Equal(t, 2024, year)
	assert.Equal(t, 4, dow, "2024-03-15 is a Friday")
}

func TestCalendarParts_WeekBoundaries(t *testing.T) {
	_, _, _, monday := CalendarParts(civil.Date{Year: 2024, Month: 3, Day: 11})
	_, _, _, sunday := CalendarParts(civil.Date{Year: 2024, Month: 3, Day: 17})

	assert.Equal(t, 0, monday)
	assert.Equal(t, 6, sunday)
}

func TestEnrich_RoundTripFromFlatRow(t *testing.T) {
	rows := []domain.FlatRow{{DateTime: strPtr("2024-03-15"), Institution: domain.InstitutionPKO}}

	enriched, rejected := Enrich(rows)

	require.Empty(t, rejected)
	require.Len(t, enriched, 1)
	got := enriched[0]
	assert.Equal(t, civil.Date{Year: 2024, Month: 3, Day: 15}, got.Date)
	assert.Equal(t, []int{15, 3, 2024, 4}, []int{got.Day, got.Month, got.Year, got.DayOfWeek})
	assert.Equal(t, domain.InstitutionPKO, got.Institution)
}

func TestEnrich_RejectsUnusableDates(t *testing.T) {
	rows := []domain.FlatRow{
		{DateTime: strPtr("2024-03-15")},
		{DateTime: nil},
		{DateTime: strPtr("15.03.2024")},
		{DateTime: strPtr("2024-02-30")},
		{DateTime: strPtr("2024-03-16T08:00:00Z")},
	}

	enriched, rejected := Enrich(rows)

	require.Len(t, enriched, 2)
	assert.Equal(t, 15, enriched[0].Day)
	assert.Equal(t, 16, enriched[1].Day)

	require.Len(t, rejected, 3)
	assert.Equal(t, 1, rejected[0].Index)
	assert.ErrorIs(t, rejected[0].Err, ErrMissingDate)
	assert.Equal(t, 2, rejected[1].Index)
	assert.Equal(t, 3, rejected[2].Index)
}
