package typeutil

import (
	"errors"
	"fmt"
	"iter"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hugr-lab/autofilter-go/errs"
)

func TestItemTypeIfEnumerable(t *testing.T) {
	tests := []struct {
		name     string
		typ      reflect.Type
		expected reflect.Type
	}{
		{"slice", reflect.TypeFor[[]int](), reflect.TypeFor[int]()},
		{"slice of pointers", reflect.TypeFor[[]*string](), reflect.TypeFor[*string]()},
		{"seq", reflect.TypeFor[iter.Seq[time.Time]](), reflect.TypeFor[time.Time]()},
		{"string", reflect.TypeFor[string](), nil},
		{"bytes", reflect.TypeFor[[]byte](), nil},
		{"array", reflect.TypeFor[[3]int](), nil},
		{"uuid", reflect.TypeFor[uuid.UUID](), nil},
		{"map", reflect.TypeFor[map[string]int](), nil},
		{"plain func", reflect.TypeFor[func(int) bool](), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ItemTypeIfEnumerable(tt.typ)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestItemTypeIfCollection(t *testing.T) {
	got, err := ItemTypeIfCollection(reflect.TypeFor[[]string]())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != reflect.TypeFor[string]() {
		t.Errorf("expected string, got %v", got)
	}

	got, err = ItemTypeIfCollection(reflect.TypeFor[iter.Seq[string]]())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected a sequence not to be a collection, got %v", got)
	}
}

func TestNilTypeArguments(t *testing.T) {
	calls := map[string]func() error{
		"ItemTypeIfEnumerable": func() error { _, err := ItemTypeIfEnumerable(nil); return err },
		"ItemTypeIfCollection": func() error { _, err := ItemTypeIfCollection(nil); return err },
		"StripNullable":        func() error { _, err := StripNullable(nil); return err },
		"WrapNullable":         func() error { _, err := WrapNullable(nil); return err },
		"ClosestInheritedForm": func() error { _, err := ClosestInheritedForm(nil, NullableForm); return err },
		"ClosestInheritedFormNilBase": func() error {
			_, err := ClosestInheritedForm(reflect.TypeFor[int](), nil)
			return err
		},
		"IsSubtypeOf": func() error { _, err := IsSubtypeOf(nil, NullableForm); return err },
	}

	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			if err := call(); !errors.Is(err, errs.ErrArgumentMissing) {
				t.Errorf("expected ErrArgumentMissing, got %v", err)
			}
		})
	}
}

func TestNullable(t *testing.T) {
	intType := reflect.TypeFor[int]()
	ptrInt := reflect.TypeFor[*int]()

	if got, _ := StripNullable(ptrInt); got != intType {
		t.Errorf("expected int, got %v", got)
	}
	if got, _ := StripNullable(intType); got != intType {
		t.Errorf("expected stripping int to be a no-op, got %v", got)
	}
	slice := reflect.TypeFor[[]int]()
	if got, _ := StripNullable(slice); got != slice {
		t.Errorf("expected stripping a slice to be a no-op, got %v", got)
	}

	if got, _ := WrapNullable(intType); got != ptrInt {
		t.Errorf("expected *int, got %v", got)
	}
	if got, _ := WrapNullable(ptrInt); got != ptrInt {
		t.Errorf("expected wrapping *int to return *int, got %v", got)
	}
	if _, err := WrapNullable(slice); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument wrapping a slice, got %v", err)
	}
	if _, err := WrapNullable(reflect.TypeFor[map[string]int]()); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument wrapping a map, got %v", err)
	}

	if !IsNullable(reflect.TypeFor[*time.Time]()) {
		t.Error("expected *time.Time to be nullable")
	}
	if IsNullable(reflect.TypeFor[*[]int]()) {
		t.Error("expected *[]int not to be nullable")
	}
}

type pair[A, B any] struct {
	First  A
	Second B
}

type base struct {
	ID int
}

type middle struct {
	base
	Name string
}

type leaf struct {
	*middle
	Extra bool
}

type stringer struct{}

func (stringer) String() string { return "s" }

func TestClosestInheritedForm(t *testing.T) {
	pairs := NewGenericForm("pair", 2)
	if err := pairs.Register(reflect.TypeFor[pair[int, string]](), reflect.TypeFor[int](), reflect.TypeFor[string]()); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	type withPair struct {
		pair[int, string]
		Note string
	}

	tests := []struct {
		name     string
		typ      reflect.Type
		form     Form
		expected reflect.Type
	}{
		{"closed self", reflect.TypeFor[base](), Closed(reflect.TypeFor[base]()), reflect.TypeFor[base]()},
		{"closed embedded", reflect.TypeFor[middle](), Closed(reflect.TypeFor[base]()), reflect.TypeFor[base]()},
		{"closed through pointer embed", reflect.TypeFor[leaf](), Closed(reflect.TypeFor[base]()), reflect.TypeFor[base]()},
		{"interface", reflect.TypeFor[stringer](), Closed(reflect.TypeFor[fmt.Stringer]()), reflect.TypeFor[fmt.Stringer]()},
		{"generic self", reflect.TypeFor[pair[int, string]](), pairs, reflect.TypeFor[pair[int, string]]()},
		{"generic embedded", reflect.TypeFor[withPair](), pairs, reflect.TypeFor[pair[int, string]]()},
		{"enumerable", reflect.TypeFor[[]int](), EnumerableForm, reflect.TypeFor[[]int]()},
		{"no match", reflect.TypeFor[middle](), pairs, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ClosestInheritedForm(tt.typ, tt.form)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestGenericFormInstantiate(t *testing.T) {
	pairs := NewGenericForm("pair", 2)
	intType, strType := reflect.TypeFor[int](), reflect.TypeFor[string]()
	if err := pairs.Register(reflect.TypeFor[pair[int, string]](), intType, strType); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	got, err := pairs.Instantiate(intType, strType)
	if err != nil {
		t.Fatalf("Instantiate failed: %v", err)
	}
	if got != reflect.TypeFor[pair[int, string]]() {
		t.Errorf("expected pair[int,string], got %v", got)
	}

	if _, err := pairs.Instantiate(intType); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for wrong arity, got %v", err)
	}
	if _, err := pairs.Instantiate(strType, intType); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for unregistered instantiation, got %v", err)
	}
	if _, err := Closed(intType).Instantiate(strType); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument instantiating a closed type, got %v", err)
	}

	got, err = CollectionForm.Instantiate(strType)
	if err != nil || got != reflect.TypeFor[[]string]() {
		t.Errorf("expected []string, got %v (%v)", got, err)
	}
	got, err = EnumerableForm.Instantiate(strType)
	if err != nil || got != reflect.TypeFor[iter.Seq[string]]() {
		t.Errorf("expected iter.Seq[string], got %v (%v)", got, err)
	}
}

func TestIsSubtypeOf(t *testing.T) {
	ok, err := IsSubtypeOf(reflect.TypeFor[*int](), NullableForm)
	if err != nil || !ok {
		t.Errorf("expected *int to be nullable, got %v (%v)", ok, err)
	}
	ok, err = IsSubtypeOf(reflect.TypeFor[string](), CollectionForm)
	if err != nil || ok {
		t.Errorf("expected string not to be a collection, got %v (%v)", ok, err)
	}

	args, err := FormArgs(reflect.TypeFor[[]uuid.UUID](), CollectionForm)
	if err != nil {
		t.Fatalf("FormArgs failed: %v", err)
	}
	if len(args) != 1 || args[0] != reflect.TypeFor[uuid.UUID]() {
		t.Errorf("expected [uuid.UUID], got %v", args)
	}
}

func TestClone(t *testing.T) {
	type bounds struct {
		Min *int
		Max *int
	}
	type sample struct {
		Name   *string
		Tags   []string
		Range  bounds
		Counts map[string][]int
		When   time.Time
		ID     uuid.UUID
	}

	lo, hi, name := 1, 9, "ann"
	src := &sample{
		Name:   &name,
		Tags:   []string{"go"},
		Range:  bounds{Min: &lo, Max: &hi},
		Counts: map[string][]int{"a": {1}},
		When:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		ID:     uuid.MustParse("6f1c2f9e-8f0e-4b8e-9d7a-3c2b1a0f9e8d"),
	}
	got, ok := Clone(src).(*sample)
	if !ok {
		t.Fatalf("expected *sample, got %T", Clone(src))
	}

	name, lo = "bob", 5
	src.Tags[0] = "rust"
	src.Counts["a"][0] = 2
	src.ID[0] = 0

	if *got.Name != "ann" {
		t.Errorf("expected name ann, got %s", *got.Name)
	}
	if got.Tags[0] != "go" {
		t.Errorf("expected tag go, got %s", got.Tags[0])
	}
	if *got.Range.Min != 1 || *got.Range.Max != 9 {
		t.Errorf("expected range [1, 9], got [%d, %d]", *got.Range.Min, *got.Range.Max)
	}
	if got.Counts["a"][0] != 1 {
		t.Errorf("expected count 1, got %d", got.Counts["a"][0])
	}
	if !got.When.Equal(src.When) {
		t.Errorf("expected %s, got %s", src.When, got.When)
	}
	if got.ID.String() != "6f1c2f9e-8f0e-4b8e-9d7a-3c2b1a0f9e8d" {
		t.Errorf("expected the original id, got %s", got.ID)
	}

	if Clone(nil) != nil {
		t.Error("expected nil to clone to nil")
	}
	var nilTags []string
	if c := Clone(nilTags).([]string); c != nil {
		t.Errorf("expected a nil slice, got %v", c)
	}

	shared := &lo
	pair := [2]*int{shared, shared}
	cp := Clone(pair).([2]*int)
	if cp[0] != cp[1] || cp[0] == shared {
		t.Error("expected shared pointers to stay shared in a fresh copy")
	}
}
