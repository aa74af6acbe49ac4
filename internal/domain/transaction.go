package domain

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// FlatRow is one booked transaction flattened out of an institution export.
// A nil pointer or invalid decimal means the field was missing or malformed
// in the source record; it is never replaced by an empty string or zero.
type FlatRow struct {
	DateTime    *string             // from "bookingDate"
	Currency    *string             // from "transactionAmount.currency"
	Amount      decimal.NullDecimal // from "transactionAmount.amount"
	Description *string             // from "remittanceInformationUnstructured"
	Institution Institution         // from the file's "metadata.institution_id"
}

// EnrichedRow is a FlatRow whose booking date parsed, plus the calendar parts
// derived from it.
type EnrichedRow struct {
	FlatRow

	Date      civil.Date
	Day       int
	Month     int
	Year      int
	DayOfWeek int // Monday=0 .. Sunday=6
}

// CategorizedRow is the persisted shape of a transaction in the main table.
// Calendar parts are intermediate and are not carried over.
type CategorizedRow struct {
	DateTime    civil.Date
	Amount      decimal.NullDecimal
	Currency    *string
	Institution Institution
	Description *string
	Label       string
}

// TrendRow is one per-label aggregate appended to the trend table.
type TrendRow struct {
	Label    string
	Amount   decimal.Decimal
	DateTime string // max booking date, stored as text
}

// NewCategorizedRow drops the calendar parts of an enriched row and attaches the label.
func NewCategorizedRow(row EnrichedRow, label string) CategorizedRow {
	return CategorizedRow{
		DateTime:    row.Date,
		Amount:      row.Amount,
		Currency:    row.Currency,
		Institution: row.Institution,
		Description: row.Description,
		Label:       label,
	}
}

// StringValue returns the pointed-to string or "" when absent.
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
