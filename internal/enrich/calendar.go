// Package enrich derives calendar features from flattened transaction rows.
package enrich

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/bankdata-pipeline/internal/domain"
)

// ErrMissingDate is the rejection cause for rows without a booking date.
var ErrMissingDate = errors.New("booking date missing")

// Rejection records a row dropped because its date could not be used.
type Rejection struct {
	Index int // position in the input sequence
	Err   error
}

// Enrich parses every row's booking date and attaches its calendar parts.
// Rows whose date is absent or unparseable are returned as rejections instead
// of being passed on with a null date; the remaining rows keep their order.
func Enrich(rows []domain.FlatRow) ([]domain.EnrichedRow, []Rejection) {
	enriched := make([]domain.EnrichedRow, 0, len(rows))
	var rejected []Rejection

	for i, row := range rows {
		if row.DateTime == nil {
			rejected = append(rejected, Rejection{Index: i, Err: ErrMissingDate})
			continue
		}

		date, err := ParseBookingDate(*row.DateTime)
		if err != nil {
			rejected = append(rejected, Rejection{Index: i, Err: err})
			continue
		}

		day, month, year, dow := CalendarParts(date)
		enriched = append(enriched, domain.EnrichedRow{
			FlatRow:   row,
			Date:      date,
			Day:       day,
			Month:     month,
			Year:      year,
			DayOfWeek: dow,
		})
	}

	return enriched, rejected
}

// ParseBookingDate accepts an ISO date, or a timestamp whose date part is ISO
// ("2024-03-15T10:22:00Z", "2024-03-15 10:22:00").
func ParseBookingDate(s string) (civil.Date, error) {
	s = strings.TrimSpace(s)
	if len(s) > 10 && (s[10] == 'T' || s[10] == ' ') {
		s = s[:10]
	}

	d, err := civil.ParseDate(s)
	if err != nil {
		return civil.Date{}, fmt.Errorf("invalid booking date %q: %w", s, err)
	}
	if !d.IsValid() {
		return civil.Date{}, fmt.Errorf("invalid booking date %q", s)
	}
	return d, nil
}

// CalendarParts returns day of month, month, year and ISO day of week
// (Monday=0 .. Sunday=6).
func CalendarParts(d civil.Date) (day, month, year, dayOfWeek int) {
	wd := d.In(time.UTC).Weekday()
	return d.Day, int(d.Month), d.Year, (int(wd) + 6) % 7
}
