// Package openbanking decodes institution transaction exports produced by the
// bank-aggregation client and flattens them into fixed-column rows.
package openbanking

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrEmptyExport is returned when a blob holds an empty array of exports.
var ErrEmptyExport = errors.New("export contains no account documents")

// Export is one account document of an aggregation bundle. Only the parts the
// pipeline reads are decoded; booked entries stay raw so that a malformed
// field cannot fail the whole document.
type Export struct {
	Metadata     Metadata     `json:"metadata"`
	Transactions Transactions `json:"transactions"`
}

// Metadata carries the account's institution.
type Metadata struct {
	InstitutionID string `json:"institution_id"`
}

// Transactions mirrors the aggregation API envelope:
// {"transactions": {"booked": [...], "pending": [...]}}.
type Transactions struct {
	Transactions struct {
		Booked  []json.RawMessage `json:"booked"`
		Pending []json.RawMessage `json:"pending"`
	} `json:"transactions"`
}

// Booked returns the raw booked entries in source order.
func (e *Export) Booked() []json.RawMessage {
	return e.Transactions.Transactions.Booked
}

// DecodeExports decodes a blob. The bundle writer stores either a single
// account document or an array of them (one per account of the requisition);
// both shapes are accepted and returned in order.
func DecodeExports(data []byte) ([]*Export, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("DecodeExports: empty document")
	}

	if trimmed[0] == '[' {
		var docs []*Export
		if err := json.Unmarshal(trimmed, &docs); err != nil {
			return nil, fmt.Errorf("DecodeExports: unmarshal array: %w", err)
		}
		if len(docs) == 0 {
			return nil, ErrEmptyExport
		}
		for i, d := range docs {
			if d == nil {
				return nil, fmt.Errorf("DecodeExports: element %d is null", i)
			}
		}
		return docs, nil
	}

	var doc Export
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("DecodeExports: unmarshal object: %w", err)
	}
	return []*Export{&doc}, nil
}
