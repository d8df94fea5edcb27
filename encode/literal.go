package encode

import (
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	timeType     = reflect.TypeFor[time.Time]()
	durationType = reflect.TypeFor[time.Duration]()
	uuidType     = reflect.TypeFor[uuid.UUID]()
	stringerType = reflect.TypeFor[fmt.Stringer]()
)

// literalFormat holds the dialect hooks used by formatLiteral.
type literalFormat struct {
	timestamp func(t time.Time) string
	blob      func(b []byte) string
	list      func(items []string) string
}

// formatLiteral formats a non-null, dereferenced value as a SQL literal.
// Returns empty string if the value has no SQL form.
func formatLiteral(v reflect.Value, f literalFormat) string {
	switch v.Type() {
	case timeType:
		if !v.CanInterface() {
			return ""
		}
		return f.timestamp(v.Interface().(time.Time))
	case durationType:
		return "INTERVAL '" + strconv.FormatInt(time.Duration(v.Int()).Microseconds(), 10) + " microseconds'"
	case uuidType:
		if !v.CanInterface() {
			return ""
		}
		return quoteLiteral(v.Interface().(uuid.UUID).String()) + "::UUID"
	}

	switch v.Kind() {
	case reflect.Bool:
		if v.Bool() {
			return "TRUE"
		}
		return "FALSE"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		x := v.Float()
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return ""
		}
		return strconv.FormatFloat(x, 'g', -1, v.Type().Bits())
	case reflect.String:
		return quoteLiteral(v.String())
	case reflect.Slice, reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 && v.Kind() == reflect.Slice {
			return f.blob(v.Bytes())
		}
		items := make([]string, v.Len())
		for i := range v.Len() {
			item := v.Index(i)
			if item.Kind() == reflect.Pointer {
				if item.IsNil() {
					items[i] = "NULL"
					continue
				}
				item = item.Elem()
			}
			items[i] = formatLiteral(item, f)
			if items[i] == "" {
				return ""
			}
		}
		return f.list(items)
	case reflect.Struct:
		return decimalLiteral(v)
	}
	return ""
}

// decimalLiteral formats decimal types: values with a Cmp method whose
// String form is a plain number.
func decimalLiteral(v reflect.Value) string {
	if _, ok := v.Type().MethodByName("Cmp"); !ok || !v.Type().Implements(stringerType) || !v.CanInterface() {
		return ""
	}
	s := v.Interface().(fmt.Stringer).String()
	if _, ok := new(big.Float).SetString(s); !ok {
		return ""
	}
	return s
}

// hexBytes renders b as \x followed by hex digits.
func hexBytes(b []byte) string {
	var sb strings.Builder
	sb.WriteString("'\\x")
	for _, c := range b {
		sb.WriteString(fmt.Sprintf("%02x", c))
	}
	sb.WriteString("'")
	return sb.String()
}
