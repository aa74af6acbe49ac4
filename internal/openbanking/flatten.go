package openbanking

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/dvloznov/bankdata-pipeline/internal/domain"
	"github.com/dvloznov/bankdata-pipeline/internal/logger"
	"github.com/shopspring/decimal"
)

// Field names of a booked entry.
const (
	fieldBookingDate             = "bookingDate"
	fieldTransactionAmount       = "transactionAmount"
	fieldAmount                  = "amount"
	fieldCurrency                = "currency"
	fieldRemittanceUnstructured  = "remittanceInformationUnstructured"
	fieldRemittanceUnstructuredA = "remittanceInformationUnstructuredArray"
)

// Flattener turns export documents into FlatRow sequences.
type Flattener struct {
	registry *InstitutionRegistry
}

// NewFlattener creates a Flattener resolving institutions through registry.
// A nil registry uses DefaultInstitutionRegistry.
func NewFlattener(registry *InstitutionRegistry) *Flattener {
	if registry == nil {
		registry = DefaultInstitutionRegistry()
	}
	return &Flattener{registry: registry}
}

// Flatten returns one row per booked entry, in source order. The institution
// is resolved once from the document metadata and applied to every row.
func (f *Flattener) Flatten(ctx context.Context, export *Export) []domain.FlatRow {
	log := logger.FromContext(ctx)

	institution, known := f.registry.Resolve(export.Metadata.InstitutionID)
	if !known {
		log.Warn().
			Str("institution_id", export.Metadata.InstitutionID).
			Str("tag", institution.String()).
			Msg("Unrecognized institution id")
	}

	booked := export.Booked()
	rows := make([]domain.FlatRow, 0, len(booked))
	for _, raw := range booked {
		row := flattenEntry(raw)
		row.Institution = institution
		rows = append(rows, row)
	}

	log.Debug().
		Str("institution", institution.String()).
		Int("rows", len(rows)).
		Msg("Flattened booked transactions")

	return rows
}

// flattenEntry extracts each field independently; a failure leaves only that
// field absent.
func flattenEntry(raw json.RawMessage) domain.FlatRow {
	var row domain.FlatRow

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return row
	}

	row.DateTime = stringField(obj, fieldBookingDate)
	row.Description = stringField(obj, fieldRemittanceUnstructured)
	if row.Description == nil {
		row.Description = joinedStringField(obj, fieldRemittanceUnstructuredA)
	}

	if amtRaw, ok := obj[fieldTransactionAmount]; ok {
		var amt map[string]json.RawMessage
		if err := json.Unmarshal(amtRaw, &amt); err == nil && amt != nil {
			row.Amount = decimalField(amt, fieldAmount)
			row.Currency = stringField(amt, fieldCurrency)
		}
	}

	return row
}

// stringField returns nil when the value is absent or not a string. A
// blank string stays present as "".
func stringField(obj map[string]json.RawMessage, key string) *string {
	raw, ok := obj[key]
	if !ok || isJSONNull(raw) {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	s = strings.TrimSpace(s)
	return &s
}

func joinedStringField(obj map[string]json.RawMessage, key string) *string {
	raw, ok := obj[key]
	if !ok || isJSONNull(raw) {
		return nil
	}
	var parts []string
	if err := json.Unmarshal(raw, &parts); err != nil {
		return nil
	}
	s := strings.TrimSpace(strings.Join(parts, " "))
	return &s
}

func isJSONNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// decimalField accepts both "-12.30" and -12.30.
func decimalField(obj map[string]json.RawMessage, key string) decimal.NullDecimal {
	raw, ok := obj[key]
	if !ok {
		return decimal.NullDecimal{}
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		var num json.Number
		if err := json.Unmarshal(raw, &num); err != nil {
			return decimal.NullDecimal{}
		}
		text = num.String()
	}

	d, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
