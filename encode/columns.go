package encode

import (
	"reflect"
	"strings"
)

// Column is a leaf field of an entity type and the column it maps to.
type Column struct {
	// Name is the derived column name, e.g. address_city for
	// Address.City.
	Name string

	// Field is the leaf field. Its Index is the full path from the
	// entity type, usable with reflect.Value.FieldByIndex.
	Field reflect.StructField
}

// Columns lists the columns of entity type t in field order. Nested structs
// are flattened the way the encoders name them; time.Time and decimal
// structs are single columns. Fields tagged `db:"-"` are skipped.
func Columns(t reflect.Type) []Column {
	if t == nil {
		return nil
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	return appendColumns(nil, t, nil, "")
}

func appendColumns(out []Column, t reflect.Type, index []int, prefix string) []Column {
	for _, sf := range reflect.VisibleFields(t) {
		if sf.Anonymous || !sf.IsExported() || sf.Tag.Get("db") == "-" {
			continue
		}
		name := ColumnName(sf)
		if prefix != "" {
			name = prefix + "_" + name
		}
		sf.Index = append(append([]int(nil), index...), sf.Index...)
		if IsNested(sf.Type) {
			out = appendColumns(out, sf.Type, sf.Index, name)
			continue
		}
		out = append(out, Column{Name: name, Field: sf})
	}
	return out
}

// IsNested reports whether Columns flattens fields of type t into several
// columns.
func IsNested(t reflect.Type) bool {
	if t.Kind() != reflect.Struct || t == timeType {
		return false
	}
	_, hasCmp := t.MethodByName("Cmp")
	return !hasCmp
}

// QuoteIdentifier quotes name when it is not a plain lower case identifier
// or is a reserved word.
func QuoteIdentifier(name string) string {
	return quoteIdentifier(name)
}

// ColumnSQL returns the SQL reading the derived column name: its entry in
// ColumnExpressions, else its ColumnMapping target, quoted as needed.
func (o *EncoderOptions) ColumnSQL(name string) string {
	if o == nil {
		return quoteIdentifier(name)
	}
	if ex, ok := o.ColumnExpressions[name]; ok {
		return ex
	}
	if mapped, ok := o.ColumnMapping[name]; ok {
		name = mapped
	}
	return quoteIdentifier(name)
}

// SelectList renders the select list for cols, aliasing computed and
// mapped columns back to their derived names.
func (o *EncoderOptions) SelectList(cols []Column) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		src := o.ColumnSQL(c.Name)
		if name := quoteIdentifier(c.Name); src != name {
			src += " AS " + name
		}
		parts[i] = src
	}
	return strings.Join(parts, ", ")
}
