package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/bankdata-pipeline/internal/categorize"
	"github.com/dvloznov/bankdata-pipeline/internal/domain"
	"github.com/dvloznov/bankdata-pipeline/internal/gcs"
	"github.com/dvloznov/bankdata-pipeline/internal/trend"
	"github.com/dvloznov/bankdata-pipeline/internal/warehouse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockStorage is a mock implementation of gcs.Storage for testing.
type MockStorage struct {
	Objects map[string][]byte
	Updated map[string]time.Time
	Written map[string][]byte

	ReadFunc func(ctx context.Context, name string) ([]byte, error)
	Calls    int
}

func (m *MockStorage) Read(ctx context.Context, name string) ([]byte, error) {
	m.Calls++
	if m.ReadFunc != nil {
		return m.ReadFunc(ctx, name)
	}
	data, ok := m.Objects[name]
	if !ok {
		return nil, gcs.ErrObjectNotFound
	}
	return data, nil
}

func (m *MockStorage) Stat(ctx context.Context, name string) (gcs.ObjectInfo, error) {
	m.Calls++
	if _, ok := m.Objects[name]; !ok {
		return gcs.ObjectInfo{}, gcs.ErrObjectNotFound
	}
	return gcs.ObjectInfo{Name: name, Updated: m.Updated[name], Generation: 1}, nil
}

func (m *MockStorage) Write(ctx context.Context, name string, data []byte, contentType string) error {
	m.Calls++
	if m.Written == nil {
		m.Written = make(map[string][]byte)
	}
	m.Written[name] = data
	return nil
}

type loadCall struct {
	Table       string
	Batch       warehouse.Batch
	Disposition warehouse.WriteDisposition
}

// MockLoader is a mock implementation of warehouse.Loader for testing.
type MockLoader struct {
	LoadFunc         func(ctx context.Context, table string, batch warehouse.Batch, d warehouse.WriteDisposition) (int64, error)
	LastModifiedFunc func(ctx context.Context, table string) (time.Time, bool, error)

	Loads []loadCall
}

func (m *MockLoader) Load(ctx context.Context, table string, batch warehouse.Batch, d warehouse.WriteDisposition) (int64, error) {
	m.Loads = append(m.Loads, loadCall{Table: table, Batch: batch, Disposition: d})
	if m.LoadFunc != nil {
		return m.LoadFunc(ctx, table, batch, d)
	}
	return int64(batch.Len()), nil
}

func (m *MockLoader) LastModified(ctx context.Context, table string) (time.Time, bool, error) {
	if m.LastModifiedFunc != nil {
		return m.LastModifiedFunc(ctx, table)
	}
	return time.Time{}, false, nil
}

// MockPublisher is a mock implementation of TrendPublisher for testing.
type MockPublisher struct {
	Rows []domain.TrendRow
}

func (m *MockPublisher) PublishTrend(ctx context.Context, rows []domain.TrendRow) (int, error) {
	m.Rows = append(m.Rows, rows...)
	return len(rows), nil
}

func exportJSON(institution string, entries ...string) []byte {
	return []byte(fmt.Sprintf(`{
		"metadata": {"institution_id": %q},
		"transactions": {"transactions": {"booked": [%s], "pending": []}}
	}`, institution, strings.Join(entries, ",")))
}

func entry(date, amount, description string) string {
	return fmt.Sprintf(`{
		"bookingDate": %q,
		"transactionAmount": {"amount": %q, "currency": "PLN"},
		"remittanceInformationUnstructured": %q
	}`, date, amount, description)
}

var testNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) (*MockStorage, *MockLoader) {
	t.Helper()
	storage := &MockStorage{
		Objects: map[string][]byte{
			"exports/pko.json": exportJSON("PKO_BPKOPLPW",
				entry("2024-03-13", "-42.50", "PIZZA HUT WARSZAWA"),
				entry("2024-03-14", "-19.99", "NETFLIX.COM"),
				entry("2024-03-15", "-120.00", "LIDL SKLEP 123"),
			),
			"exports/mbank.json": exportJSON("MBANK_RETAIL_BREXPLPW",
				entry("2024-03-10", "8500.00", "Wynagrodzenie"),
				entry("2024-03-11", "-23.40", "BOLT.EU"),
				entry("2024-03-12", "-15.00", "APTEKA DOZ"),
			),
		},
		Updated: map[string]time.Time{
			"exports/pko.json":   testNow.Add(-2 * time.Hour),
			"exports/mbank.json": testNow.Add(-50 * time.Hour),
		},
	}
	return storage, &MockLoader{}
}

func newRunner(t *testing.T, storage gcs.Storage, loader warehouse.Loader, opts ...RunnerOption) *Runner {
	t.Helper()
	strategy, err := categorize.NewRuleStrategy(categorize.DefaultRules())
	require.NoError(t, err)
	gate := &trend.Gate{Location: time.UTC}
	opts = append([]RunnerOption{WithGate(gate), WithClock(func() time.Time { return testNow })}, opts...)
	return NewRunner(storage, loader, strategy, opts...)
}

func runOptions() Options {
	return Options{
		RunID:   "run-1",
		Sources: []string{"exports/pko.json", "exports/mbank.json"},
	}
}

func TestRun_TwoFilesSingleTruncateLoad(t *testing.T) {
	storage, loader := newFixture(t)
	loader.LastModifiedFunc = func(ctx context.Context, table string) (time.Time, bool, error) {
		return testNow.Add(-time.Hour), true, nil
	}

	report, err := newRunner(t, storage, loader).Run(context.Background(), runOptions())
	require.NoError(t, err)

	require.Len(t, loader.Loads, 1)
	call := loader.Loads[0]
	assert.Equal(t, DefaultMainTable, call.Table)
	assert.Equal(t, warehouse.Truncate, call.Disposition)
	require.Equal(t, 6, call.Batch.Len())

	rows := call.Batch.(warehouse.TransactionBatch)
	for i, row := range rows {
		assert.NotEmpty(t, row.Label, "row %d", i)
	}
	for _, row := range rows[:3] {
		assert.Equal(t, domain.InstitutionPKO, row.Institution)
	}
	for _, row := range rows[3:] {
		assert.Equal(t, domain.InstitutionMBank, row.Institution)
	}
	assert.Equal(t, civil.Date{Year: 2024, Month: 3, Day: 13}, rows[0].DateTime)
	assert.Equal(t, "Food and drinks", rows[0].Label)
	assert.Equal(t, "Transportation", rows[4].Label)

	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, 6, report.RowsFlattened)
	assert.Equal(t, 0, report.RowsRejected)
	assert.Equal(t, int64(6), report.MainRowsLoaded)
	assert.False(t, report.TrendRefreshed)
	assert.Equal(t, trend.ReasonTooRecent, report.TrendReason)
	assert.Equal(t, categorize.StrategyRules, report.Strategy)
}

func TestRun_TrendRefreshAppendsAndPublishes(t *testing.T) {
	storage, loader := newFixture(t)
	loader.LastModifiedFunc = func(ctx context.Context, table string) (time.Time, bool, error) {
		return testNow.Add(-48 * time.Hour), true, nil
	}
	publisher := &MockPublisher{}

	report, err := newRunner(t, storage, loader, WithPublisher(publisher)).Run(context.Background(), runOptions())
	require.NoError(t, err)

	require.Len(t, loader.Loads, 2)
	trendCall := loader.Loads[1]
	assert.Equal(t, DefaultTrendTable, trendCall.Table)
	assert.Equal(t, warehouse.Append, trendCall.Disposition)

	trendRows := trendCall.Batch.(warehouse.TrendBatch)
	byLabel := make(map[string]domain.TrendRow)
	for _, r := range trendRows {
		byLabel[r.Label] = r
	}
	assert.Equal(t, "-42.5", byLabel["Food and drinks"].Amount.String())
	assert.Equal(t, "2024-03-13", byLabel["Food and drinks"].DateTime)
	assert.Equal(t, len(trendRows), report.TrendRows)
	assert.True(t, report.TrendRefreshed)
	assert.Equal(t, len(trendRows), report.TrendPublished)
	assert.Len(t, publisher.Rows, len(trendRows))
}

func TestRun_FirstTrendLoad(t *testing.T) {
	storage, loader := newFixture(t)

	report, err := newRunner(t, storage, loader).Run(context.Background(), runOptions())
	require.NoError(t, err)
	assert.True(t, report.TrendRefreshed)
	assert.Equal(t, trend.ReasonFirstLoad, report.TrendReason)
	assert.Len(t, loader.Loads, 2)
}

func TestRun_NoFreshSourceSkipsTrend(t *testing.T) {
	storage, loader := newFixture(t)
	storage.Updated["exports/pko.json"] = testNow.Add(-30 * time.Hour)

	report, err := newRunner(t, storage, loader).Run(context.Background(), runOptions())
	require.NoError(t, err)
	assert.False(t, report.TrendRefreshed)
	assert.Len(t, loader.Loads, 1)
}

func TestRun_InvalidDispositionFailsBeforeIO(t *testing.T) {
	storage, loader := newFixture(t)
	opts := runOptions()
	opts.MainDisposition = "merge"

	report, err := newRunner(t, storage, loader).Run(context.Background(), opts)
	assert.ErrorIs(t, err, warehouse.ErrInvalidWriteDisposition)
	assert.Nil(t, report)
	assert.Zero(t, storage.Calls)
	assert.Empty(t, loader.Loads)
}

func TestRun_NoSources(t *testing.T) {
	storage, loader := newFixture(t)
	_, err := newRunner(t, storage, loader).Run(context.Background(), Options{})
	assert.ErrorIs(t, err, ErrNoSources)
	assert.Zero(t, storage.Calls)
}

func TestRun_StorageFailureIsFatal(t *testing.T) {
	storage, loader := newFixture(t)
	boom := errors.New("storage unreachable")
	storage.ReadFunc = func(ctx context.Context, name string) ([]byte, error) {
		return nil, boom
	}

	_, err := newRunner(t, storage, loader).Run(context.Background(), runOptions())
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, loader.Loads)
}

func TestRun_IncompatibleClassifierIsFatal(t *testing.T) {
	storage, loader := newFixture(t)
	strategy := categorize.NewModelStrategy(categorize.ClassifierFunc(
		func(ctx context.Context, rows []categorize.Features) ([]int, error) {
			ids := make([]int, len(rows))
			ids[0] = 42
			return ids, nil
		}))

	r := NewRunner(storage, loader, strategy, WithClock(func() time.Time { return testNow }))
	_, err := r.Run(context.Background(), runOptions())
	assert.ErrorIs(t, err, categorize.ErrIncompatibleClassifier)
	assert.Empty(t, loader.Loads)
}

func TestRun_ModelPredictsOncePerFile(t *testing.T) {
	storage, loader := newFixture(t)
	var batches [][]categorize.Features
	strategy := categorize.NewModelStrategy(categorize.ClassifierFunc(
		func(ctx context.Context, rows []categorize.Features) ([]int, error) {
			batches = append(batches, rows)
			return make([]int, len(rows)), nil
		}))

	r := NewRunner(storage, loader, strategy, WithClock(func() time.Time { return testNow }))
	_, err := r.Run(context.Background(), runOptions())
	require.NoError(t, err)

	require.Len(t, batches, 2)
	assert.Len(t, batches[0], 3)
	assert.Len(t, batches[1], 3)
	assert.Contains(t, strings.ToLower(batches[0][0].Description), "pizza")
	assert.Contains(t, strings.ToLower(batches[1][0].Description), "wynagrodzenie")

	require.Len(t, loader.Loads, 1)
	assert.Equal(t, 6, loader.Loads[0].Batch.Len())
}

func TestRun_TrendFailureKeepsMainLoad(t *testing.T) {
	storage, loader := newFixture(t)
	boom := errors.New("quota exceeded")
	loader.LoadFunc = func(ctx context.Context, table string, batch warehouse.Batch, d warehouse.WriteDisposition) (int64, error) {
		if table == DefaultTrendTable {
			return 0, boom
		}
		return int64(batch.Len()), nil
	}

	report, err := newRunner(t, storage, loader).Run(context.Background(), runOptions())
	assert.ErrorIs(t, err, boom)
	require.NotNil(t, report)
	assert.Equal(t, int64(6), report.MainRowsLoaded)
	assert.Zero(t, report.TrendRowsLoaded)
}

func TestRun_RejectsUnparseableDates(t *testing.T) {
	storage, loader := newFixture(t)
	storage.Objects["exports/pko.json"] = exportJSON("PKO_BPKOPLPW",
		entry("2024-03-13", "-1.00", "A"),
		entry("13.03.2024", "-2.00", "B"),
		`{"transactionAmount": {"amount": "-3.00", "currency": "PLN"}}`,
	)

	report, err := newRunner(t, storage, loader).Run(context.Background(), runOptions())
	require.NoError(t, err)
	assert.Equal(t, 6, report.RowsFlattened)
	assert.Equal(t, 2, report.RowsRejected)
	assert.Equal(t, 4, loader.Loads[0].Batch.Len())
}

func TestRun_StoresProcessedArtifact(t *testing.T) {
	storage, loader := newFixture(t)
	opts := runOptions()
	opts.ProcessedPrefix = "processed"

	report, err := newRunner(t, storage, loader).Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, "processed/run-1.parquet", report.ProcessedObject)
	assert.NotEmpty(t, storage.Written["processed/run-1.parquet"])
}

func TestRun_GeneratesRunID(t *testing.T) {
	storage, loader := newFixture(t)
	opts := runOptions()
	opts.RunID = ""

	report, err := newRunner(t, storage, loader).Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Len(t, report.RunID, 36)
}

func TestMerge(t *testing.T) {
	a := []domain.CategorizedRow{{Label: "a1"}, {Label: "a2"}}
	b := []domain.CategorizedRow{{Label: "b1"}}

	merged := Merge([][]domain.CategorizedRow{a, nil, b, a})
	labels := make([]string, len(merged))
	for i, r := range merged {
		labels[i] = r.Label
	}
	assert.Equal(t, []string{"a1", "a2", "b1", "a1", "a2"}, labels)
	assert.Empty(t, Merge(nil))
}

func TestPipeline_StopsAtFirstFailure(t *testing.T) {
	var ran []int
	step := func(i int, err error) PipelineStep {
		return stepFunc(func(ctx context.Context, s *PipelineState) error {
			ran = append(ran, i)
			return err
		})
	}

	boom := errors.New("boom")
	err := NewPipeline(step(1, nil), step(2, boom), step(3, nil)).Execute(context.Background(), &PipelineState{})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "pipeline step 2 failed")
	assert.Equal(t, []int{1, 2}, ran)
}

type stepFunc func(ctx context.Context, s *PipelineState) error

func (f stepFunc) Execute(ctx context.Context, s *PipelineState) error { return f(ctx, s) }
