package arrowscan

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/hugr-lab/autofilter-go"
	"github.com/hugr-lab/autofilter-go/query"
)

func ptr[T any](v T) *T { return &v }

type reading struct {
	Sensor string
	Value  float64
	At     time.Time
	Flags  []string
	Note   *string
}

type readingFilter struct {
	Sensor *string
	Value  autofilter.RangeFilter[float64]
	Flags  []string
	After  *time.Time `autofilter:"At,lt"`
}

var (
	readingSchema = arrow.NewSchema([]arrow.Field{
		{Name: "sensor", Type: arrow.BinaryTypes.String},
		{Name: "value", Type: arrow.PrimitiveTypes.Float64},
		{Name: "at", Type: &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}},
		{Name: "flags", Type: arrow.ListOf(arrow.BinaryTypes.String)},
		{Name: "note", Type: arrow.BinaryTypes.String, Nullable: true},
	}, nil)
	t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
)

func buildReadings(t *testing.T, mem memory.Allocator) arrow.RecordBatch {
	t.Helper()
	b := array.NewRecordBuilder(mem, readingSchema)
	defer b.Release()

	rows := []struct {
		sensor string
		value  float64
		flags  []string
		note   *string
	}{
		{"a", 1.5, []string{"hot"}, nil},
		{"b", 7.0, nil, ptr("check")},
		{"a", 9.0, []string{"hot", "wet"}, nil},
		{"c", 3.0, []string{"wet"}, nil},
	}
	lb := b.Field(3).(*array.ListBuilder)
	vb := lb.ValueBuilder().(*array.StringBuilder)
	for i, r := range rows {
		b.Field(0).(*array.StringBuilder).Append(r.sensor)
		b.Field(1).(*array.Float64Builder).Append(r.value)
		b.Field(2).(*array.TimestampBuilder).Append(arrow.Timestamp(t0.Add(time.Duration(i) * time.Hour).UnixMicro()))
		lb.Append(true)
		for _, f := range r.flags {
			vb.Append(f)
		}
		if r.note == nil {
			b.Field(4).(*array.StringBuilder).AppendNull()
		} else {
			b.Field(4).(*array.StringBuilder).Append(*r.note)
		}
	}
	return b.NewRecordBatch()
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setup(t *testing.T) (*Handler[reading], *autofilter.Engine, arrow.RecordBatch) {
	t.Helper()
	mem := memory.NewGoAllocator()
	rec := buildReadings(t, mem)
	t.Cleanup(rec.Release)

	h, err := New[reading](Config{
		Scan: func(context.Context) (array.RecordReader, error) {
			return array.NewRecordReader(readingSchema, []arrow.RecordBatch{rec})
		},
		Logger: quietLogger(),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	c := autofilter.NewConfiguration(autofilter.Config{Logger: quietLogger()})
	if _, err := autofilter.CreateFilter[readingFilter, reading](c); err != nil {
		t.Fatalf("CreateFilter failed: %v", err)
	}
	return h, autofilter.NewEngine(c), rec
}

func TestExecute(t *testing.T) {
	h, eng, _ := setup(t)
	after := t0.Add(90 * time.Minute)

	tests := []struct {
		name     string
		filter   readingFilter
		expected []float64
	}{
		{"all", readingFilter{}, []float64{1.5, 7.0, 9.0, 3.0}},
		{"sensor", readingFilter{Sensor: ptr("a")}, []float64{1.5, 9.0}},
		{"range", readingFilter{Value: autofilter.Between(2.0, 8.0)}, []float64{7.0, 3.0}},
		{"flags", readingFilter{Flags: []string{"wet"}}, []float64{9.0, 3.0}},
		{"timestamp", readingFilter{After: &after}, []float64{9.0, 3.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := query.Find[readingFilter, reading](context.Background(), eng, h, &tt.filter)
			if err != nil {
				t.Fatalf("Find failed: %v", err)
			}
			var got []float64
			for _, r := range rows {
				got = append(got, r.Value)
			}
			if !slices.Equal(got, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	h, _, rec := setup(t)
	rows, err := h.Decode(rec)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	if rows[1].Note == nil || *rows[1].Note != "check" || rows[0].Note != nil {
		t.Errorf("unexpected notes: %v, %v", rows[0].Note, rows[1].Note)
	}
	if !slices.Equal(rows[2].Flags, []string{"hot", "wet"}) {
		t.Errorf("expected [hot wet], got %v", rows[2].Flags)
	}
	if len(rows[1].Flags) != 0 {
		t.Errorf("expected no flags, got %v", rows[1].Flags)
	}
	if !rows[3].At.Equal(t0.Add(3 * time.Hour)) {
		t.Errorf("expected %s, got %s", t0.Add(3*time.Hour), rows[3].At)
	}

	renamed, err := New[reading](Config{
		Scan:          h.scan,
		ColumnMapping: map[string]string{"sensor": "device"},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := renamed.Decode(rec); err == nil {
		t.Error("expected an error for a missing column")
	}
}

func TestFilterRecords(t *testing.T) {
	h, eng, rec := setup(t)

	tests := []struct {
		name    string
		filter  readingFilter
		batches int
		rows    int64
	}{
		{"split runs", readingFilter{Sensor: ptr("a")}, 2, 2},
		{"single run", readingFilter{Value: autofilter.NewRange(ptr(5.0), nil)}, 1, 2},
		{"everything", readingFilter{}, 1, 4},
		{"nothing", readingFilter{Sensor: ptr("z")}, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond, err := autofilter.BuildExpression[readingFilter, reading](eng, &tt.filter)
			if err != nil {
				t.Fatalf("BuildExpression failed: %v", err)
			}
			in, err := array.NewRecordReader(readingSchema, []arrow.RecordBatch{rec})
			if err != nil {
				t.Fatalf("NewRecordReader failed: %v", err)
			}
			defer in.Release()

			out, err := h.FilterRecords(context.Background(), in, cond)
			if err != nil {
				t.Fatalf("FilterRecords failed: %v", err)
			}
			defer out.Release()

			batches, rows := 0, int64(0)
			for out.Next() {
				batches++
				rows += out.RecordBatch().NumRows()
			}
			if batches != tt.batches || rows != tt.rows {
				t.Errorf("expected %d batches with %d rows, got %d with %d", tt.batches, tt.rows, batches, rows)
			}
		})
	}
}

func TestFilterRecordsCancelled(t *testing.T) {
	h, _, rec := setup(t)
	in, _ := array.NewRecordReader(readingSchema, []arrow.RecordBatch{rec})
	defer in.Release()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := h.FilterRecords(ctx, in, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestNewRequiresScan(t *testing.T) {
	if _, err := New[reading](Config{}); err == nil {
		t.Error("expected an error without Scan")
	}
}
