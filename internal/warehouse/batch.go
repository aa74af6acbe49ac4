package warehouse

import (
	"bytes"
	"fmt"
	"time"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/apache/arrow/go/v15/arrow/array"
	"github.com/apache/arrow/go/v15/arrow/decimal128"
	"github.com/apache/arrow/go/v15/arrow/memory"
	"github.com/apache/arrow/go/v15/parquet"
	"github.com/apache/arrow/go/v15/parquet/compress"
	"github.com/apache/arrow/go/v15/parquet/pqarrow"
	"github.com/dvloznov/bankdata-pipeline/internal/domain"
	"github.com/shopspring/decimal"
)

// Warehouse NUMERIC precision and scale.
const (
	numericPrecision = 38
	numericScale     = 9
)

var numericType = &arrow.Decimal128Type{Precision: numericPrecision, Scale: numericScale}

// Batch is a set of rows that can be encoded as a Parquet payload.
type Batch interface {
	Len() int
	Schema() *arrow.Schema
	appendTo(b *array.RecordBuilder)
}

var transactionSchema = arrow.NewSchema([]arrow.Field{
	{Name: "date_time", Type: arrow.FixedWidthTypes.Date32, Nullable: true},
	{Name: "amount", Type: numericType, Nullable: true},
	{Name: "currency", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "institution", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "description", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "label", Type: arrow.BinaryTypes.String, Nullable: true},
}, nil)

var trendSchema = arrow.NewSchema([]arrow.Field{
	{Name: "label", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "amount", Type: numericType, Nullable: true},
	{Name: "date_time", Type: arrow.BinaryTypes.String, Nullable: true},
}, nil)

// TransactionBatch is the main-table payload.
type TransactionBatch []domain.CategorizedRow

// Len implements Batch.
func (b TransactionBatch) Len() int { return len(b) }

// Schema implements Batch.
func (b TransactionBatch) Schema() *arrow.Schema { return transactionSchema }

func (b TransactionBatch) appendTo(rb *array.RecordBuilder) {
	dates := rb.Field(0).(*array.Date32Builder)
	amounts := rb.Field(1).(*array.Decimal128Builder)
	currencies := rb.Field(2).(*array.StringBuilder)
	institutions := rb.Field(3).(*array.StringBuilder)
	descriptions := rb.Field(4).(*array.StringBuilder)
	labels := rb.Field(5).(*array.StringBuilder)

	for _, row := range b {
		if row.DateTime.IsValid() {
			dates.Append(arrow.Date32FromTime(row.DateTime.In(time.UTC)))
		} else {
			dates.AppendNull()
		}
		appendDecimal(amounts, row.Amount)
		appendString(currencies, row.Currency)
		if row.Institution != "" {
			institutions.Append(row.Institution.String())
		} else {
			institutions.AppendNull()
		}
		appendString(descriptions, row.Description)
		labels.Append(row.Label)
	}
}

// TrendBatch is the trend-table payload.
type TrendBatch []domain.TrendRow

// Len implements Batch.
func (b TrendBatch) Len() int { return len(b) }

// Schema implements Batch.
func (b TrendBatch) Schema() *arrow.Schema { return trendSchema }

func (b TrendBatch) appendTo(rb *array.RecordBuilder) {
	labels := rb.Field(0).(*array.StringBuilder)
	amounts := rb.Field(1).(*array.Decimal128Builder)
	dates := rb.Field(2).(*array.StringBuilder)

	for _, row := range b {
		labels.Append(row.Label)
		appendDecimal(amounts, decimal.NewNullDecimal(row.Amount))
		dates.Append(row.DateTime)
	}
}

// EncodeParquet renders batch as a single-row-group Parquet file.
func EncodeParquet(batch Batch) ([]byte, error) {
	mem := memory.NewGoAllocator()

	rb := array.NewRecordBuilder(mem, batch.Schema())
	defer rb.Release()

	batch.appendTo(rb)

	rec := rb.NewRecord()
	defer rec.Release()

	var buf bytes.Buffer
	props := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Snappy),
		parquet.WithAllocator(mem),
	)
	fw, err := pqarrow.NewFileWriter(batch.Schema(), &buf, props, pqarrow.DefaultWriterProps())
	if err != nil {
		return nil, fmt.Errorf("EncodeParquet: creating writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("EncodeParquet: writing record: %w", err)
	}
	if err := fw.Close(); err != nil {
		return nil, fmt.Errorf("EncodeParquet: closing writer: %w", err)
	}

	return buf.Bytes(), nil
}

// ToNumeric converts d to the warehouse NUMERIC representation, rounding to
// nine fractional digits.
func ToNumeric(d decimal.Decimal) decimal128.Num {
	return decimal128.FromBigInt(d.Round(numericScale).Shift(numericScale).BigInt())
}

func appendDecimal(b *array.Decimal128Builder, d decimal.NullDecimal) {
	if !d.Valid {
		b.AppendNull()
		return
	}
	b.Append(ToNumeric(d.Decimal))
}

func appendString(b *array.StringBuilder, s *string) {
	if s == nil {
		b.AppendNull()
		return
	}
	b.Append(*s)
}
