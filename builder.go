package autofilter

import (
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"

	"github.com/hugr-lab/autofilter-go/errs"
	"github.com/hugr-lab/autofilter-go/expr"
	"github.com/hugr-lab/autofilter-go/predicate"
)

const pkg = "autofilter"

// tagName is the struct tag read from filter fields during discovery:
//
//	MinAge *int `autofilter:"Age,lte"`
//	Nick   *string `autofilter:"Name,null"`
//	Debug  bool `autofilter:"-"`
const tagName = "autofilter"

// Builder turns filter values of type F into predicates over entities of
// type E. It owns one PropertyMap per mapped filter property, keyed by the
// property's member path.
//
// The mapping table is filled lazily on first use: every exported field of
// F is paired with the same-named exported field of E. Explicit Map, Ignore
// and struct tag overrides replace discovered entries in place.
//
// Configure a builder before building expressions with it. BuildExpression
// is safe for concurrent use once configuration is done.
type Builder[F, E any] struct {
	mu       sync.RWMutex
	provider predicate.Provider
	logger   *slog.Logger

	entries    []*entry[F, E]
	index      map[string]int
	discovered bool
	discErr    error

	emptyHandler func() *expr.LambdaExpression
}

type entry[F, E any] struct {
	key     string
	m       *PropertyMap[F, E]
	ignored bool
}

// NewBuilder creates a standalone builder. Most callers obtain builders
// through CreateFilter instead.
func NewBuilder[F, E any](cfg Config) (*Builder[F, E], error) {
	if err := checkPair(reflect.TypeFor[F](), reflect.TypeFor[E]()); err != nil {
		return nil, err
	}
	return newBuilder[F, E](cfg.provider(), cfg.logger()), nil
}

func newBuilder[F, E any](provider predicate.Provider, logger *slog.Logger) *Builder[F, E] {
	return &Builder[F, E]{
		provider: provider,
		logger:   logger.With("filter", reflect.TypeFor[F]().String(), "entity", reflect.TypeFor[E]().String()),
		index:    make(map[string]int),
	}
}

func checkPair(ft, et reflect.Type) error {
	if ft.Kind() != reflect.Struct {
		return errs.Invalid(pkg, "filter type %s is not a struct", ft)
	}
	if et.Kind() != reflect.Struct {
		return errs.Invalid(pkg, "entity type %s is not a struct", et)
	}
	return nil
}

// FilterType returns F.
func (b *Builder[F, E]) FilterType() reflect.Type { return reflect.TypeFor[F]() }

// EntityType returns E.
func (b *Builder[F, E]) EntityType() reflect.Type { return reflect.TypeFor[E]() }

// Map maps a filter property to an entity property with Equal.
func (b *Builder[F, E]) Map(f, e *expr.LambdaExpression) (*PropertyMap[F, E], error) {
	return b.MapComparison(f, e, predicate.Equal)
}

// MapComparison maps a filter property to an entity property. When the
// provider cannot compare the two property types the map is stored with no
// predicate; supply one with UsePredicate.
func (b *Builder[F, E]) MapComparison(f, e *expr.LambdaExpression, c predicate.Comparison) (*PropertyMap[F, E], error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.discover(); err != nil {
		return nil, err
	}
	return b.mapLocked(f, e, c)
}

func (b *Builder[F, E]) mapLocked(f, e *expr.LambdaExpression, c predicate.Comparison) (*PropertyMap[F, E], error) {
	if err := validateAccessor[F](f, "filter accessor"); err != nil {
		return nil, err
	}
	path, err := expr.MemberPath(f)
	if err != nil {
		return nil, err
	}
	key := expr.PathString(path)
	m, err := newPropertyMap(b, key, f, e)
	if err != nil {
		return nil, err
	}
	m.comparison = c

	ft, et := f.Body().Type(), e.Body().Type()
	ok, err := b.provider.CanBuild(ft, et, c)
	if err != nil {
		return nil, err
	}
	if ok {
		pred, err := b.provider.Build(ft, et, c)
		if err != nil {
			return nil, err
		}
		m.pred = pred
	} else {
		b.logger.Debug("No predicate for property", "property", key, "comparison", c.String(),
			"filter_type", ft.String(), "entity_type", et.String())
	}
	b.put(&entry[F, E]{key: key, m: m})
	return m, nil
}

// Ignore marks a filter property as intentionally unmapped.
func (b *Builder[F, E]) Ignore(f *expr.LambdaExpression) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.discover(); err != nil {
		return err
	}
	if err := validateAccessor[F](f, "filter accessor"); err != nil {
		return err
	}
	path, err := expr.MemberPath(f)
	if err != nil {
		return err
	}
	b.put(&entry[F, E]{key: expr.PathString(path), ignored: true})
	return nil
}

// put inserts or replaces an entry, keeping the table position of a
// replaced key.
func (b *Builder[F, E]) put(en *entry[F, E]) {
	if i, ok := b.index[en.key]; ok {
		b.entries[i] = en
		return
	}
	b.index[en.key] = len(b.entries)
	b.entries = append(b.entries, en)
}

// Property returns the map for a canonical key such as "Address.City".
// Unknown and ignored keys are reported as ErrInvalidArgument; discovery
// errors are returned as is.
func (b *Builder[F, E]) Property(key string) (*PropertyMap[F, E], error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.discover(); err != nil {
		return nil, err
	}
	i, ok := b.index[key]
	if !ok {
		return nil, errs.Invalid(pkg, "property %q is not mapped", key)
	}
	if b.entries[i].ignored {
		return nil, errs.Invalid(pkg, "property %q is ignored", key)
	}
	return b.entries[i].m, nil
}

// Properties returns the property maps in table order.
func (b *Builder[F, E]) Properties() ([]*PropertyMap[F, E], error) {
	entries, err := b.snapshot()
	if err != nil {
		return nil, err
	}
	maps := make([]*PropertyMap[F, E], 0, len(entries))
	for _, en := range entries {
		if !en.ignored {
			maps = append(maps, en.m)
		}
	}
	return maps, nil
}

// IsIgnored reports whether key was explicitly ignored.
func (b *Builder[F, E]) IsIgnored(key string) bool {
	entries, err := b.snapshot()
	if err != nil {
		return false
	}
	for _, en := range entries {
		if en.key == key {
			return en.ignored
		}
	}
	return false
}

func (b *Builder[F, E]) snapshot() ([]*entry[F, E], error) {
	b.mu.RLock()
	if b.discovered {
		entries, err := b.entries, b.discErr
		b.mu.RUnlock()
		return entries[:len(entries):len(entries)], err
	}
	b.mu.RUnlock()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.discover(); err != nil {
		return nil, err
	}
	return b.entries[:len(b.entries):len(b.entries)], nil
}

// discover pairs same-named fields of F and E and applies struct tags. It
// runs once; the caller holds the write lock.
func (b *Builder[F, E]) discover() error {
	if b.discovered {
		return b.discErr
	}
	b.discovered = true

	ft, et := reflect.TypeFor[F](), reflect.TypeFor[E]()
	var problems []string
	for _, sf := range filterFields(ft) {
		tag, err := parseTag(sf.Tag.Get(tagName))
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", sf.Name, err))
			continue
		}
		f, err := expr.Property(ft, sf.Name)
		if err != nil {
			problems = append(problems, err.Error())
			continue
		}
		if tag.ignore {
			path, _ := expr.MemberPath(f)
			b.put(&entry[F, E]{key: expr.PathString(path), ignored: true})
			continue
		}

		target := tag.path
		if target == "" {
			target = sf.Name
		}
		e, err := expr.Property(et, target)
		if err != nil {
			if tag.path != "" {
				problems = append(problems, fmt.Sprintf("%s: entity %s has no property %s", sf.Name, et, tag.path))
			}
			continue
		}
		m, err := b.mapLocked(f, e, tag.comparison)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", sf.Name, err))
			continue
		}
		if tag.filterByNull {
			m.ignoreNullValues = false
		}
		b.logger.Debug("Auto-mapped property", "property", m.key, "entity_property", target,
			"comparison", tag.comparison.String(), "has_predicate", m.pred != nil)
	}
	if len(problems) > 0 {
		b.discErr = errs.Invalid(pkg, "invalid %s tags on %s:\n %s", tagName, ft, strings.Join(problems, "\n "))
	}
	return b.discErr
}

// filterFields returns the exported fields of t including promoted ones,
// without the embedded structs themselves.
func filterFields(t reflect.Type) []reflect.StructField {
	var fields []reflect.StructField
	for _, sf := range reflect.VisibleFields(t) {
		if sf.Anonymous || !sf.IsExported() {
			continue
		}
		fields = append(fields, sf)
	}
	return fields
}

type fieldTag struct {
	ignore       bool
	path         string
	comparison   predicate.Comparison
	filterByNull bool
}

func parseTag(s string) (fieldTag, error) {
	var tag fieldTag
	if s == "" {
		return tag, nil
	}
	if s == "-" {
		tag.ignore = true
		return tag, nil
	}
	parts := strings.Split(s, ",")
	tag.path = strings.TrimSpace(parts[0])
	for _, opt := range parts[1:] {
		opt = strings.TrimSpace(opt)
		if opt == "null" {
			tag.filterByNull = true
			continue
		}
		c, err := predicate.ParseComparison(opt)
		if err != nil {
			return tag, err
		}
		tag.comparison = c
	}
	return tag, nil
}

// SetEmptyExpressionHandler overrides the expression returned when a filter
// yields no condition. fn must return a lambda over E returning bool.
func (b *Builder[F, E]) SetEmptyExpressionHandler(fn func() *expr.LambdaExpression) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.emptyHandler = fn
}

// HandleEmptyExpression returns the expression used when a filter yields no
// condition. The default matches every entity: e => true.
func (b *Builder[F, E]) HandleEmptyExpression() (*expr.LambdaExpression, error) {
	b.mu.RLock()
	fn := b.emptyHandler
	b.mu.RUnlock()
	if fn == nil {
		return matchAll[E]()
	}
	l := fn()
	if l == nil {
		return nil, errs.Operation(pkg, "empty expression handler returned nil")
	}
	if l.NumParameters() != 1 || l.Parameter(0).Type() != reflect.TypeFor[E]() || l.Body().Type() != reflect.TypeFor[bool]() {
		return nil, errs.Invalid(pkg, "empty expression handler must return a predicate over %s, got %s", reflect.TypeFor[E](), l)
	}
	return l, nil
}

func matchAll[E any]() (*expr.LambdaExpression, error) {
	e, err := expr.Parameter(reflect.TypeFor[E](), "e")
	if err != nil {
		return nil, err
	}
	yes, err := expr.Constant(true)
	if err != nil {
		return nil, err
	}
	return expr.Lambda(yes, e)
}

// BuildExpression combines the conditions of every mapped property with a
// usable filter value into one predicate over E. Properties are visited in
// table order and joined with AndAlso.
func (b *Builder[F, E]) BuildExpression(filter *F) (*expr.LambdaExpression, error) {
	if filter == nil {
		return nil, errs.Missing(pkg, "filter")
	}
	entries, err := b.snapshot()
	if err != nil {
		return nil, err
	}

	param, err := expr.Parameter(reflect.TypeFor[E](), "e")
	if err != nil {
		return nil, err
	}
	var body expr.Expression
	for _, en := range entries {
		if en.ignored {
			continue
		}
		v, err := en.m.readValue(filter)
		if err != nil {
			return nil, fmt.Errorf("%s: read %s: %w", pkg, en.key, err)
		}
		if !en.m.canBuild(v) {
			continue
		}
		cond, err := en.m.buildCondition(v)
		if err != nil {
			return nil, fmt.Errorf("%s: condition %s: %w", pkg, en.key, err)
		}
		part, err := expr.Replace(cond.Body(), cond.Parameter(0), param)
		if err != nil {
			return nil, err
		}
		if body == nil {
			body = part
			continue
		}
		if body, err = expr.AndAlso(body, part); err != nil {
			return nil, err
		}
	}

	if body == nil {
		return b.HandleEmptyExpression()
	}
	l, err := expr.Lambda(body, param)
	if err != nil {
		return nil, err
	}
	b.logger.Debug("Built expression", "expression", l.String())
	return l, nil
}

// Build is BuildExpression for a filter given as F or *F.
func (b *Builder[F, E]) Build(filter any) (*expr.LambdaExpression, error) {
	switch f := filter.(type) {
	case *F:
		return b.BuildExpression(f)
	case F:
		return b.BuildExpression(&f)
	case nil:
		return nil, errs.Missing(pkg, "filter")
	}
	return nil, errs.Invalid(pkg, "filter of type %T is not a %s", filter, reflect.TypeFor[F]())
}

// AssertConfigurationIsValid reports every filter property that is neither
// mapped nor ignored, in one error.
func (b *Builder[F, E]) AssertConfigurationIsValid() error {
	entries, err := b.snapshot()
	if err != nil {
		return err
	}
	keys := make([]string, len(entries))
	for i, en := range entries {
		keys[i] = en.key
	}

	ft := reflect.TypeFor[F]()
	var missing []string
	for _, sf := range filterFields(ft) {
		key := fieldKey(ft, sf.Index)
		if !covered(keys, key) {
			missing = append(missing, key)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &errs.FilterPropertyMissingMappingError{FilterType: ft, Properties: missing}
}

func covered(keys []string, key string) bool {
	for _, k := range keys {
		if k == key || strings.HasPrefix(k, key+".") {
			return true
		}
	}
	return false
}

func fieldKey(t reflect.Type, index []int) string {
	names := make([]string, 0, len(index))
	for _, i := range index {
		if t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		sf := t.Field(i)
		names = append(names, sf.Name)
		t = sf.Type
	}
	return strings.Join(names, ".")
}

// MapField maps the filter field addressed by fsel to the entity field
// addressed by esel:
//
//	autofilter.MapField(b,
//	    func(f *UserFilter) **int { return &f.MinAge },
//	    func(u *User) *int { return &u.Age },
//	    autofilter.LessThanOrEqual)
func MapField[F, E, FV, EV any](b *Builder[F, E], fsel func(*F) *FV, esel func(*E) *EV, c ...predicate.Comparison) (*PropertyMap[F, E], error) {
	f, err := expr.FieldOf(fsel)
	if err != nil {
		return nil, err
	}
	e, err := expr.FieldOf(esel)
	if err != nil {
		return nil, err
	}
	cmp := predicate.Equal
	if len(c) > 0 {
		cmp = c[0]
	}
	return b.MapComparison(f, e, cmp)
}

// IgnoreField ignores the filter field addressed by fsel.
func IgnoreField[F, E, V any](b *Builder[F, E], fsel func(*F) *V) error {
	f, err := expr.FieldOf(fsel)
	if err != nil {
		return err
	}
	return b.Ignore(f)
}
