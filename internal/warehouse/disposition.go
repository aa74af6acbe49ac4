package warehouse

import (
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
)

// ErrInvalidWriteDisposition is returned for any disposition other than
// truncate or append. It is raised before any warehouse I/O.
var ErrInvalidWriteDisposition = errors.New("invalid write disposition")

// WriteDisposition selects how a load treats existing table contents.
type WriteDisposition string

const (
	// Truncate replaces the table contents atomically with the batch.
	Truncate WriteDisposition = "truncate"
	// Append adds the batch to the existing contents.
	Append WriteDisposition = "append"
)

// ParseWriteDisposition accepts "truncate"/"append" and the BigQuery
// spellings "WRITE_TRUNCATE"/"WRITE_APPEND", case-insensitively.
func ParseWriteDisposition(s string) (WriteDisposition, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "truncate", "write_truncate":
		return Truncate, nil
	case "append", "write_append":
		return Append, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidWriteDisposition, s)
	}
}

// Validate reports whether d is one of the known dispositions.
func (d WriteDisposition) Validate() error {
	if d != Truncate && d != Append {
		return fmt.Errorf("%w: %q", ErrInvalidWriteDisposition, string(d))
	}
	return nil
}

func (d WriteDisposition) String() string { return string(d) }

func (d WriteDisposition) bigQuery() bigquery.TableWriteDisposition {
	if d == Append {
		return bigquery.WriteAppend
	}
	return bigquery.WriteTruncate
}
