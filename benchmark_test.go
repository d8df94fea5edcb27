package autofilter_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/hugr-lab/autofilter-go"
	"github.com/hugr-lab/autofilter-go/encode"
	"github.com/hugr-lab/autofilter-go/expr"
	"github.com/hugr-lab/autofilter-go/query"
	"github.com/hugr-lab/autofilter-go/wire"
)

type benchItem struct {
	ID       int64
	Name     string
	Category string
	Price    float64
	Labels   []string
	Owner    *string
}

type benchFilter struct {
	Name     *string
	Category []string
	Price    autofilter.RangeFilter[float64]
	Label    *string `autofilter:"Labels"`
	Owner    *string
}

func benchBuilder(b *testing.B) *autofilter.Builder[benchFilter, benchItem] {
	b.Helper()
	fb, err := autofilter.NewBuilder[benchFilter, benchItem](autofilter.Config{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		b.Fatalf("NewBuilder failed: %v", err)
	}
	return fb
}

func benchFilterValue() *benchFilter {
	name := "item"
	label := "sale"
	return &benchFilter{
		Name:     &name,
		Category: []string{"a", "b", "c"},
		Price:    autofilter.Between(10.0, 100.0),
		Label:    &label,
	}
}

// BenchmarkBuildExpression benchmarks building a condition from a filter.
func BenchmarkBuildExpression(b *testing.B) {
	fb := benchBuilder(b)
	filter := benchFilterValue()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := fb.BuildExpression(filter); err != nil {
			b.Fatalf("BuildExpression failed: %v", err)
		}
	}
}

// BenchmarkFilter benchmarks evaluating a condition over row sets of
// varying size.
func BenchmarkFilter(b *testing.B) {
	fb := benchBuilder(b)
	cond, err := fb.BuildExpression(benchFilterValue())
	if err != nil {
		b.Fatalf("BuildExpression failed: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	for _, rows := range []int{100, 1000, 10000} {
		b.Run(fmt.Sprintf("rows_%d", rows), func(b *testing.B) {
			items := make([]benchItem, rows)
			for i := range items {
				items[i] = benchItem{
					ID:       int64(i),
					Name:     "item",
					Category: string(rune('a' + i%5)),
					Price:    float64(i%200) * 1.5,
					Labels:   []string{"sale"},
				}
			}
			ctx := context.Background()

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				if _, err := query.Filter(ctx, logger, items, cond); err != nil {
					b.Fatalf("Filter failed: %v", err)
				}
			}

			b.StopTimer()
			b.ReportMetric(float64(rows), "rows/filter")
		})
	}
}

// BenchmarkEncode benchmarks rendering a condition as SQL.
func BenchmarkEncode(b *testing.B) {
	fb := benchBuilder(b)
	cond, err := fb.BuildExpression(benchFilterValue())
	if err != nil {
		b.Fatalf("BuildExpression failed: %v", err)
	}
	encoders := map[string]encode.Encoder{
		"duckdb":   encode.NewDuckDBEncoder(nil),
		"postgres": encode.NewPostgresEncoder(nil),
	}
	for name, enc := range encoders {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if sql, _ := enc.EncodeCondition(cond); sql == "" {
					b.Fatal("expected SQL")
				}
			}
		})
	}
}

// BenchmarkWire benchmarks the portable form of a condition.
func BenchmarkWire(b *testing.B) {
	fb := benchBuilder(b)
	cond, err := fb.BuildExpression(benchFilterValue())
	if err != nil {
		b.Fatalf("BuildExpression failed: %v", err)
	}
	reg := wire.NewTypeRegistry()
	if err := wire.Register[benchItem](reg); err != nil {
		b.Fatalf("Register failed: %v", err)
	}

	b.Run("Marshal", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			if _, err := wire.Marshal(cond); err != nil {
				b.Fatalf("Marshal failed: %v", err)
			}
		}
		b.StopTimer()
		data, _ := wire.Marshal(cond)
		b.ReportMetric(float64(len(data)), "bytes")
	})

	b.Run("Unmarshal", func(b *testing.B) {
		data, err := wire.Marshal(cond)
		if err != nil {
			b.Fatalf("Marshal failed: %v", err)
		}
		b.ResetTimer()
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			var l *expr.LambdaExpression
			if l, err = wire.Unmarshal(data, reg); err != nil || l == nil {
				b.Fatalf("Unmarshal failed: %v", err)
			}
		}
	})
}
