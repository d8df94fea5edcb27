package mapping

import (
	"fmt"
	"reflect"

	"github.com/hugr-lab/autofilter-go"
	"github.com/hugr-lab/autofilter-go/errs"
	"github.com/hugr-lab/autofilter-go/expr"
	"github.com/hugr-lab/autofilter-go/predicate"
)

// Apply configures b from the section of doc naming F and E. Ignored
// properties are applied first, then property maps in document order.
func Apply[F, E any](doc *Document, b *autofilter.Builder[F, E]) error {
	if doc == nil {
		return errs.Missing(pkg, "document")
	}
	if b == nil {
		return errs.Missing(pkg, "builder")
	}
	s, ok := find(doc, reflect.TypeFor[F](), reflect.TypeFor[E]())
	if !ok {
		return errs.Invalid(pkg, "no section maps %s to %s", reflect.TypeFor[F](), reflect.TypeFor[E]())
	}

	for _, name := range s.Ignore {
		f, err := expr.PropertyOf[F](name)
		if err != nil {
			return fmt.Errorf("mapping: ignore %s: %w", name, err)
		}
		if err := b.Ignore(f); err != nil {
			return fmt.Errorf("mapping: ignore %s: %w", name, err)
		}
	}
	for _, p := range s.Properties {
		if err := applyProperty(b, p); err != nil {
			return fmt.Errorf("mapping: property %s: %w", p.Filter, err)
		}
	}
	return nil
}

// ApplyTo creates the builder for (F, E) in c and applies doc to it.
func ApplyTo[F, E any](doc *Document, c *autofilter.Configuration) (*autofilter.Builder[F, E], error) {
	b, err := autofilter.CreateFilter[F, E](c)
	if err != nil {
		return nil, err
	}
	if err := Apply(doc, b); err != nil {
		return nil, err
	}
	return b, nil
}

func find(doc *Document, ft, et reflect.Type) (*Section, bool) {
	for _, fn := range []string{ft.Name(), ft.String()} {
		for _, en := range []string{et.Name(), et.String()} {
			if s, ok := doc.Section(fn, en); ok {
				return s, true
			}
		}
	}
	return nil, false
}

func applyProperty[F, E any](b *autofilter.Builder[F, E], p Property) error {
	f, err := expr.PropertyOf[F](p.Filter)
	if err != nil {
		return err
	}
	e, err := expr.PropertyOf[E](p.Entity)
	if err != nil {
		return err
	}
	c, err := predicate.ParseComparison(p.Compare)
	if err != nil {
		return err
	}
	m, err := b.MapComparison(f, e, c)
	if err != nil {
		return err
	}

	if p.Predicate != "" {
		pred, err := ParsePredicate(p.Predicate, f.Body().Type(), e.Body().Type())
		if err != nil {
			return err
		}
		if err := m.UsePredicate(pred); err != nil {
			return err
		}
	}

	switch p.WhenNull {
	case "filter":
		m.WhenNull().FilterByNull()
	case "ignore":
		m.WhenNull().IgnoreProperty()
	}
	return nil
}
