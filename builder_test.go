package autofilter

import (
	"bytes"
	"errors"
	"io"
	"iter"
	"log/slog"
	"reflect"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hugr-lab/autofilter-go/errs"
	"github.com/hugr-lab/autofilter-go/expr"
)

func ptr[T any](v T) *T { return &v }

type status int

const (
	statusActive status = iota + 1
	statusBanned
)

func (s status) String() string {
	switch s {
	case statusActive:
		return "active"
	case statusBanned:
		return "banned"
	}
	return "unknown"
}

type address struct {
	City string
}

type user struct {
	ID      int
	Name    string
	Nick    *string
	Age     int
	Score   *float64
	Status  status
	Tags    []string
	Created time.Time
	Address address
}

type paging struct {
	Page int
	Size int
}

type userFilter struct {
	Name   *string
	Age    RangeFilter[int]
	Nick   *string
	Status []status
	Tags   []string
}

type paged struct {
	paging
	Name *string
}

func quietConfig() Config {
	return Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func newUserBuilder(t *testing.T) *Builder[userFilter, user] {
	t.Helper()
	b, err := CreateFilter[userFilter, user](NewConfiguration(quietConfig()))
	if err != nil {
		t.Fatalf("CreateFilter failed: %v", err)
	}
	return b
}

func matches(t *testing.T, l *expr.LambdaExpression, rows []user) []int {
	t.Helper()
	pred, err := expr.CompilePredicate[*user](l)
	if err != nil {
		t.Fatalf("CompilePredicate(%s) failed: %v", l, err)
	}
	var ids []int
	for i := range rows {
		ok, err := pred(&rows[i])
		if err != nil {
			t.Fatalf("predicate failed on %d: %v", rows[i].ID, err)
		}
		if ok {
			ids = append(ids, rows[i].ID)
		}
	}
	return ids
}

var users = []user{
	{ID: 1, Name: "ann", Nick: ptr("a"), Age: 17, Status: statusActive, Tags: []string{"go"}},
	{ID: 2, Name: "bob", Age: 30, Status: statusBanned, Tags: []string{"rust", "go"}},
	{ID: 3, Name: "cid", Nick: ptr("c"), Age: 45, Status: statusActive},
}

func TestCreateFilterIdempotent(t *testing.T) {
	c := NewConfiguration(quietConfig())
	a, err := CreateFilter[userFilter, user](c)
	if err != nil {
		t.Fatalf("CreateFilter failed: %v", err)
	}
	b, _ := CreateFilter[userFilter, user](c)
	if a != b {
		t.Error("expected the same builder for repeated CreateFilter calls")
	}
	got, ok := GetFilter[userFilter, user](c)
	if !ok || got != a {
		t.Error("expected GetFilter to return the created builder")
	}
	if len(c.Filters()) != 1 {
		t.Errorf("expected 1 filter, got %d", len(c.Filters()))
	}
	if _, err := CreateFilter[int, user](c); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for a non-struct filter, got %v", err)
	}
}

func TestAutoMapping(t *testing.T) {
	b := newUserBuilder(t)
	maps, err := b.Properties()
	if err != nil {
		t.Fatalf("Properties failed: %v", err)
	}
	var keys []string
	for _, m := range maps {
		keys = append(keys, m.Key())
	}
	expected := []string{"Name", "Age", "Nick", "Status", "Tags"}
	if !slices.Equal(keys, expected) {
		t.Errorf("expected %v, got %v", expected, keys)
	}
	for _, m := range maps {
		if m.Predicate() == nil {
			t.Errorf("expected a predicate for %s", m.Key())
		}
		if !m.IgnoresNullValues() {
			t.Errorf("expected %s to ignore null values by default", m.Key())
		}
	}
	if err := b.AssertConfigurationIsValid(); err != nil {
		t.Errorf("expected a valid configuration, got %v", err)
	}
}

func TestBuildExpression(t *testing.T) {
	b := newUserBuilder(t)
	tests := []struct {
		name     string
		filter   userFilter
		expected []int
	}{
		{"empty", userFilter{}, []int{1, 2, 3}},
		{"name", userFilter{Name: ptr("bob")}, []int{2}},
		{"empty name ignored", userFilter{Name: ptr("")}, []int{1, 2, 3}},
		{"range", userFilter{Age: Between(18, 40)}, []int{2}},
		{"open range", userFilter{Age: NewRange[int](nil, ptr(30))}, []int{1, 2}},
		{"exact", userFilter{Age: Exact(45)}, []int{3}},
		{"enum containment", userFilter{Status: []status{statusActive}}, []int{1, 3}},
		{"empty slice ignored", userFilter{Status: []status{}}, []int{1, 2, 3}},
		{"entity collection", userFilter{Tags: []string{"rust"}}, []int{2}},
		{"nullable entity", userFilter{Nick: ptr("c")}, []int{3}},
		{"combined", userFilter{Status: []status{statusActive}, Age: NewRange(ptr(18), nil)}, []int{3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := b.BuildExpression(&tt.filter)
			if err != nil {
				t.Fatalf("BuildExpression failed: %v", err)
			}
			got := matches(t, l, users)
			if !slices.Equal(got, tt.expected) {
				t.Errorf("expected %v, got %v (%s)", tt.expected, got, l)
			}
		})
	}

	if _, err := b.BuildExpression(nil); !errors.Is(err, ErrArgumentMissing) {
		t.Errorf("expected ErrArgumentMissing, got %v", err)
	}
}

func TestEmptyFallback(t *testing.T) {
	b := newUserBuilder(t)
	l, err := b.BuildExpression(&userFilter{})
	if err != nil {
		t.Fatalf("BuildExpression failed: %v", err)
	}
	if l.String() != "e => true" {
		t.Errorf("expected 'e => true', got '%s'", l)
	}

	b.SetEmptyExpressionHandler(func() *expr.LambdaExpression {
		e, _ := expr.Parameter(reflect.TypeFor[user](), "u")
		no, _ := expr.Constant(false)
		l, _ := expr.Lambda(no, e)
		return l
	})
	l, err = b.BuildExpression(&userFilter{})
	if err != nil {
		t.Fatalf("BuildExpression failed: %v", err)
	}
	if got := matches(t, l, users); len(got) != 0 {
		t.Errorf("expected no matches, got %v", got)
	}

	b.SetEmptyExpressionHandler(func() *expr.LambdaExpression { return nil })
	if _, err := b.BuildExpression(&userFilter{}); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("expected ErrInvalidOperation, got %v", err)
	}
}

func TestFilterByNull(t *testing.T) {
	b := newUserBuilder(t)
	m, err := b.Property("Nick")
	if err != nil {
		t.Fatalf("expected Nick to be mapped: %v", err)
	}
	if m.WhenNull().FilterByNull() != b {
		t.Error("expected FilterByNull to return the owning builder")
	}
	l, err := b.BuildExpression(&userFilter{})
	if err != nil {
		t.Fatalf("BuildExpression failed: %v", err)
	}
	if got := matches(t, l, users); !slices.Equal(got, []int{2}) {
		t.Errorf("expected [2], got %v (%s)", got, l)
	}

	m.WhenNull().IgnoreProperty()
	l, _ = b.BuildExpression(&userFilter{})
	if got := matches(t, l, users); len(got) != 3 {
		t.Errorf("expected all rows after IgnoreProperty, got %v", got)
	}
}

func TestPropertyMapCondition(t *testing.T) {
	b := newUserBuilder(t)
	m, _ := b.Property("Name")

	if m.CanBuildConditionExpression(&userFilter{}) {
		t.Error("expected no condition for a null value")
	}
	if _, err := m.BuildConditionExpression(&userFilter{}); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("expected ErrInvalidOperation, got %v", err)
	}
	if m.CanBuildConditionExpression(nil) {
		t.Error("expected no condition for a nil filter")
	}

	l, err := m.BuildConditionExpression(&userFilter{Name: ptr("ann")})
	if err != nil {
		t.Fatalf("BuildConditionExpression failed: %v", err)
	}
	if l.NumParameters() != 1 || l.Parameter(0).Type() != reflect.TypeFor[user]() {
		t.Errorf("expected a predicate over user, got %s", l)
	}
	if got := matches(t, l, users); !slices.Equal(got, []int{1}) {
		t.Errorf("expected [1], got %v", got)
	}

	m.Ignore()
	if m.CanBuildConditionExpression(&userFilter{Name: ptr("ann")}) {
		t.Error("expected no condition without a predicate")
	}
}

func TestExplicitMappingReplacesInPlace(t *testing.T) {
	b := newUserBuilder(t)
	m, err := MapField(b,
		func(f *userFilter) **string { return &f.Nick },
		func(u *user) *string { return &u.Name })
	if err != nil {
		t.Fatalf("MapField failed: %v", err)
	}
	if m.Key() != "Nick" {
		t.Errorf("expected key Nick, got %s", m.Key())
	}
	maps, _ := b.Properties()
	if len(maps) != 5 || maps[2] != m {
		t.Errorf("expected Nick to keep its position, got %d maps", len(maps))
	}

	l, _ := b.BuildExpression(&userFilter{Nick: ptr("cid")})
	if got := matches(t, l, users); !slices.Equal(got, []int{3}) {
		t.Errorf("expected [3], got %v", got)
	}

	// different parameter names address the same key
	f, _ := expr.Property(reflect.TypeFor[userFilter](), "Nick")
	e, _ := expr.Property(reflect.TypeFor[user](), "Nick")
	again, err := m.Map(f, e)
	if err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	if got, _ := b.Property("Nick"); got != again {
		t.Error("expected Map to replace the Nick entry")
	}
}

func TestMapComparison(t *testing.T) {
	type ageFilter struct {
		MinAge *int
	}
	b, _ := CreateFilter[ageFilter, user](NewConfiguration(quietConfig()))
	_, err := MapField(b,
		func(f *ageFilter) **int { return &f.MinAge },
		func(u *user) *int { return &u.Age },
		LessThanOrEqual)
	if err != nil {
		t.Fatalf("MapField failed: %v", err)
	}
	if err := b.AssertConfigurationIsValid(); err != nil {
		t.Errorf("expected a valid configuration, got %v", err)
	}
	l, _ := b.BuildExpression(&ageFilter{MinAge: ptr(30)})
	if got := matches(t, l, users); !slices.Equal(got, []int{2, 3}) {
		t.Errorf("expected [2 3], got %v (%s)", got, l)
	}
}

func TestMapWithoutPredicate(t *testing.T) {
	type nameFilter struct {
		After *string
	}
	b, _ := CreateFilter[nameFilter, user](NewConfiguration(quietConfig()))
	m, err := MapField(b,
		func(f *nameFilter) **string { return &f.After },
		func(u *user) *string { return &u.Name },
		GreaterThan)
	if err != nil {
		t.Fatalf("MapField failed: %v", err)
	}
	if m.Predicate() != nil {
		t.Fatal("expected no predicate for ordered strings")
	}
	l, _ := b.BuildExpression(&nameFilter{After: ptr("b")})
	if l.String() != "e => true" {
		t.Errorf("expected the empty fallback, got %s", l)
	}

	// supply a predicate by hand: f < e
	fp, _ := expr.Parameter(reflect.TypeFor[*string](), "f")
	ep, _ := expr.Parameter(reflect.TypeFor[string](), "e")
	lifted, _ := expr.Convert(ep, reflect.TypeFor[*string]())
	lt, _ := expr.LessThan(fp, lifted)
	tmpl, _ := expr.Lambda(lt, fp, ep)
	if err := m.UsePredicate(tmpl); err != nil {
		t.Fatalf("UsePredicate failed: %v", err)
	}
	l, _ = b.BuildExpression(&nameFilter{After: ptr("b")})
	if got := matches(t, l, users); !slices.Equal(got, []int{2, 3}) {
		t.Errorf("expected [2 3], got %v", got)
	}

	swapped, _ := expr.Lambda(lt, ep, fp)
	if err := m.UsePredicate(swapped); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for swapped parameters, got %v", err)
	}
}

func TestAccessorValidation(t *testing.T) {
	b := newUserBuilder(t)
	e, _ := expr.Property(reflect.TypeFor[user](), "Name")
	if _, err := b.Map(nil, e); !errors.Is(err, ErrArgumentMissing) {
		t.Errorf("expected ErrArgumentMissing, got %v", err)
	}

	x, _ := expr.Parameter(reflect.TypeFor[userFilter](), "x")
	name, _ := expr.Field(x, "Name")
	isNull, _ := expr.IsNull(name)
	computed, _ := expr.Lambda(isNull, x)
	if _, err := b.Map(computed, e); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for a computed accessor, got %v", err)
	}

	wrongRoot, _ := expr.Property(reflect.TypeFor[user](), "Name")
	if _, err := b.Map(wrongRoot, e); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for an accessor over the entity, got %v", err)
	}
	if err := b.Ignore(nil); !errors.Is(err, ErrArgumentMissing) {
		t.Errorf("expected ErrArgumentMissing, got %v", err)
	}
}

type orphanFilter struct {
	Name    *string
	Missing *int
	Other   []string
	Debug   bool
}

func TestAssertConfigurationIsValid(t *testing.T) {
	c := NewConfiguration(quietConfig())
	b, _ := CreateFilter[orphanFilter, user](c)
	err := b.AssertConfigurationIsValid()
	var missing *errs.FilterPropertyMissingMappingError
	if !errors.As(err, &missing) {
		t.Fatalf("expected FilterPropertyMissingMappingError, got %v", err)
	}
	if !errors.Is(err, ErrFilterPropertyMissingMapping) {
		t.Errorf("expected ErrFilterPropertyMissingMapping, got %v", err)
	}
	expected := []string{"Missing", "Other", "Debug"}
	if !slices.Equal(missing.Properties, expected) {
		t.Errorf("expected %v, got %v", expected, missing.Properties)
	}

	_ = IgnoreField(b, func(f *orphanFilter) **int { return &f.Missing })
	_ = IgnoreField(b, func(f *orphanFilter) *[]string { return &f.Other })
	_ = IgnoreField(b, func(f *orphanFilter) *bool { return &f.Debug })
	if err := c.AssertConfigurationIsValid(); err != nil {
		t.Errorf("expected a valid configuration, got %v", err)
	}
	if !b.IsIgnored("Debug") {
		t.Error("expected Debug to be ignored")
	}
}

type taggedFilter struct {
	Who     *string `autofilter:"Name"`
	MaxAge  *int    `autofilter:"Age,gte"`
	Nick    *string `autofilter:",null"`
	Verbose bool    `autofilter:"-"`
}

func TestStructTags(t *testing.T) {
	b, _ := CreateFilter[taggedFilter, user](NewConfiguration(quietConfig()))
	if err := b.AssertConfigurationIsValid(); err != nil {
		t.Fatalf("expected a valid configuration, got %v", err)
	}
	l, err := b.BuildExpression(&taggedFilter{MaxAge: ptr(30)})
	if err != nil {
		t.Fatalf("BuildExpression failed: %v", err)
	}
	// null Nick filters by null
	if got := matches(t, l, users); !slices.Equal(got, []int{2}) {
		t.Errorf("expected [2], got %v (%s)", got, l)
	}
	l, _ = b.BuildExpression(&taggedFilter{Who: ptr("ann"), Nick: ptr("a")})
	if got := matches(t, l, users); !slices.Equal(got, []int{1}) {
		t.Errorf("expected [1], got %v", got)
	}

	type badTag struct {
		Name *string `autofilter:"Nope"`
	}
	bad, _ := CreateFilter[badTag, user](NewConfiguration(quietConfig()))
	if err := bad.AssertConfigurationIsValid(); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for an unknown entity path, got %v", err)
	}
}

func TestPromotedFields(t *testing.T) {
	type row struct {
		Page int
		Name string
	}
	b, _ := CreateFilter[paged, row](NewConfiguration(quietConfig()))
	err := b.AssertConfigurationIsValid()
	if err == nil || !strings.Contains(err.Error(), "paging.Size") {
		t.Fatalf("expected paging.Size to be reported, got %v", err)
	}
	if _, err := b.Property("paging.Page"); err != nil {
		t.Errorf("expected the promoted Page field to be keyed by its embedding path, got %v", err)
	}
}

func TestEngine(t *testing.T) {
	c := NewConfiguration(quietConfig())
	if _, err := CreateFilter[userFilter, user](c); err != nil {
		t.Fatalf("CreateFilter failed: %v", err)
	}
	eng := NewEngine(c)

	l, err := BuildExpression[userFilter, user](eng, &userFilter{Name: ptr("ann")})
	if err != nil {
		t.Fatalf("BuildExpression failed: %v", err)
	}
	if got := matches(t, l, users); !slices.Equal(got, []int{1}) {
		t.Errorf("expected [1], got %v", got)
	}

	l, err = eng.Build(userFilter{Name: ptr("cid")}, reflect.TypeFor[user]())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if got := matches(t, l, users); !slices.Equal(got, []int{3}) {
		t.Errorf("expected [3], got %v", got)
	}

	_, err = BuildExpression[userFilter, address](eng, &userFilter{})
	if !errors.Is(err, ErrFilterNotMapped) {
		t.Fatalf("expected ErrFilterNotMapped, got %v", err)
	}
	if !strings.Contains(err.Error(), "autofilter.userFilter") || !strings.Contains(err.Error(), "autofilter.address") {
		t.Errorf("expected both type names in %q", err)
	}
	if _, err := eng.Build(orphanFilter{}, reflect.TypeFor[user]()); !errors.Is(err, ErrFilterNotMapped) {
		t.Errorf("expected ErrFilterNotMapped, got %v", err)
	}
}

func TestEngineRecoversHandlerPanic(t *testing.T) {
	c := NewConfiguration(quietConfig())
	b, _ := CreateFilter[userFilter, user](c)
	b.SetEmptyExpressionHandler(func() *expr.LambdaExpression { panic("broken handler") })
	_, err := BuildExpression[userFilter, user](NewEngine(c), &userFilter{})
	if err == nil || !strings.Contains(err.Error(), "broken handler") {
		t.Errorf("expected recovered panic, got %v", err)
	}
}

func TestConcurrentBuild(t *testing.T) {
	b := newUserBuilder(t)
	var wg sync.WaitGroup
	errc := make(chan error, 16)
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := users[i%len(users)].Name
			l, err := b.BuildExpression(&userFilter{Name: &name})
			if err != nil {
				errc <- err
				return
			}
			pred, err := expr.CompilePredicate[user](l)
			if err != nil {
				errc <- err
				return
			}
			if ok, _ := pred(users[i%len(users)]); !ok {
				errc <- errors.New("expected own row to match")
			}
		}()
	}
	wg.Wait()
	close(errc)
	for err := range errc {
		t.Error(err)
	}
}

type userInit struct{}

func (userInit) CreateFilter(c *Configuration) error {
	_, err := CreateFilter[userFilter, user](c)
	return err
}

type failingInit struct{}

func (failingInit) CreateFilter(*Configuration) error { return errors.New("no luck") }

func TestInitializeFilters(t *testing.T) {
	c := NewConfiguration(quietConfig())
	err := InitializeFilters(c).
		Add(userInit{}, userInit{}, failingInit{}).
		Exclude(failingInit{}).
		Apply()
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if _, ok := GetFilter[userFilter, user](c); !ok {
		t.Error("expected userFilter to be registered")
	}

	err = InitializeFilters(c).Add(failingInit{}, InitializerFunc(func(*Configuration) error {
		panic("init panic")
	})).Apply()
	if err == nil || !strings.Contains(err.Error(), "no luck") || !strings.Contains(err.Error(), "init panic") {
		t.Errorf("expected both failures to be joined, got %v", err)
	}
}

func TestRegister(t *testing.T) {
	before := len(Registered())
	Register(userInit{})
	Register(nil)
	if len(Registered()) != before+1 {
		t.Fatalf("expected %d registered initializers, got %d", before+1, len(Registered()))
	}
	c := NewConfiguration(quietConfig())
	if err := InitializeFilters(c).AddRegistered().Apply(); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if _, ok := c.Lookup(reflect.TypeFor[userFilter](), reflect.TypeFor[user]()); !ok {
		t.Error("expected the registered initializer to run")
	}
}

func TestBuiltExpressionKeepsFilterValues(t *testing.T) {
	b := newUserBuilder(t)
	name, minAge := "ann", 10
	f := userFilter{Name: &name, Tags: []string{"go"}, Age: NewRange(&minAge, nil)}
	l, err := b.BuildExpression(&f)
	if err != nil {
		t.Fatalf("BuildExpression failed: %v", err)
	}
	before := l.String()
	if got := matches(t, l, users); !slices.Equal(got, []int{1}) {
		t.Fatalf("expected [1], got %v (%s)", got, l)
	}

	name, minAge = "bob", 40
	f.Tags[0] = "rust"
	if l.String() != before {
		t.Errorf("expected %s, got %s", before, l)
	}
	if got := matches(t, l, users); !slices.Equal(got, []int{1}) {
		t.Errorf("expected [1] after changing the filter, got %v", got)
	}

	m, _ := b.Property("Name")
	name = "cid"
	cond, err := m.BuildConditionExpression(&f)
	if err != nil {
		t.Fatalf("BuildConditionExpression failed: %v", err)
	}
	name = "ann"
	if got := matches(t, cond, users); !slices.Equal(got, []int{3}) {
		t.Errorf("expected [3], got %v (%s)", got, cond)
	}
}

func TestPropertyMapIgnoreFilter(t *testing.T) {
	b := newUserBuilder(t)
	m, err := b.Property("Name")
	if err != nil {
		t.Fatalf("Property failed: %v", err)
	}
	tags, _ := expr.Property(reflect.TypeFor[userFilter](), "Tags")
	if err := m.IgnoreFilter(tags); err != nil {
		t.Fatalf("IgnoreFilter failed: %v", err)
	}
	if !b.IsIgnored("Tags") {
		t.Error("expected Tags to be ignored through the returned map")
	}
	l, err := b.BuildExpression(&userFilter{Name: ptr("bob"), Tags: []string{"none"}})
	if err != nil {
		t.Fatalf("BuildExpression failed: %v", err)
	}
	if got := matches(t, l, users); !slices.Equal(got, []int{2}) {
		t.Errorf("expected [2], got %v (%s)", got, l)
	}
	if err := m.IgnoreFilter(nil); !errors.Is(err, ErrArgumentMissing) {
		t.Errorf("expected ErrArgumentMissing, got %v", err)
	}
}

func TestPropertyErrors(t *testing.T) {
	b := newUserBuilder(t)
	if _, err := b.Property("Nope"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for an unknown key, got %v", err)
	}
	tags, _ := expr.Property(reflect.TypeFor[userFilter](), "Tags")
	if err := b.Ignore(tags); err != nil {
		t.Fatalf("Ignore failed: %v", err)
	}
	if _, err := b.Property("Tags"); err == nil || !strings.Contains(err.Error(), "ignored") {
		t.Errorf("expected an ignored property error, got %v", err)
	}

	type badTag struct {
		Name *string `autofilter:"Nope"`
	}
	bad, _ := CreateFilter[badTag, user](NewConfiguration(quietConfig()))
	_, err := bad.Property("Name")
	if !errors.Is(err, ErrInvalidArgument) || !strings.Contains(err.Error(), "Nope") {
		t.Errorf("expected the discovery error, got %v", err)
	}
}

func TestPanickingSequence(t *testing.T) {
	type seqFilter struct {
		Tags iter.Seq[string]
	}
	b, err := CreateFilter[seqFilter, user](NewConfiguration(quietConfig()))
	if err != nil {
		t.Fatalf("CreateFilter failed: %v", err)
	}
	f := seqFilter{Tags: func(func(string) bool) { panic("boom") }}
	_, err = b.BuildExpression(&f)
	if !errors.Is(err, ErrInvalidOperation) || !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected the panic as ErrInvalidOperation, got %v", err)
	}
}

func TestFilterByNullOnValueProperty(t *testing.T) {
	var buf bytes.Buffer
	c := NewConfiguration(Config{Logger: slog.New(slog.NewTextHandler(&buf, nil))})
	b, _ := CreateFilter[userFilter, user](c)

	nick, _ := b.Property("Nick")
	nick.WhenNull().FilterByNull()
	if buf.Len() != 0 {
		t.Errorf("expected no warning for a nullable property, got %s", buf.String())
	}

	name, err := b.Property("Name")
	if err != nil {
		t.Fatalf("Property failed: %v", err)
	}
	name.WhenNull().FilterByNull()
	if !strings.Contains(buf.String(), "never null") || !strings.Contains(buf.String(), "property=Name") {
		t.Errorf("expected a warning naming Name, got %s", buf.String())
	}
}
