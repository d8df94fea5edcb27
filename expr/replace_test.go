package expr

import (
	"errors"
	"reflect"
	"testing"

	"github.com/hugr-lab/autofilter-go/errs"
)

type address struct {
	City string
	Zip  *string
}

type person struct {
	Name    string
	Age     int
	Score   *int
	Tags    []string
	Address address
	Home    *address
}

func mustProperty(t *testing.T, typ reflect.Type, path string) *LambdaExpression {
	t.Helper()
	l, err := Property(typ, path)
	if err != nil {
		t.Fatalf("Property(%s) failed: %v", path, err)
	}
	return l
}

func TestReplaceIdentityPreserved(t *testing.T) {
	l := mustProperty(t, reflect.TypeFor[person](), "Address.City")
	unrelated, _ := Constant("x")
	other, _ := Parameter(reflect.TypeFor[person](), "p")

	res, err := Replace(l, unrelated, other)
	if err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	if res != Expression(l) {
		t.Errorf("expected original lambda to be returned, got %s", res)
	}
}

func TestReplaceParameter(t *testing.T) {
	l := mustProperty(t, reflect.TypeFor[person](), "Address.City")
	p, _ := Parameter(reflect.TypeFor[person](), "p")

	res, err := Replace(l, l.Parameter(0), p)
	if err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	got := res.(*LambdaExpression)
	if got == l {
		t.Fatal("expected a rebuilt lambda")
	}
	if got.String() != "p => p.Address.City" {
		t.Errorf("expected 'p => p.Address.City', got '%s'", got)
	}
	if got.Parameter(0) != p {
		t.Error("expected the parameter list to follow the replacement")
	}
	// the original is untouched
	if l.String() != "x => x.Address.City" {
		t.Errorf("expected original to stay 'x => x.Address.City', got '%s'", l)
	}
}

func TestReplaceRebuildsOnlyAncestors(t *testing.T) {
	x, _ := Parameter(reflect.TypeFor[person](), "x")
	name, _ := Field(x, "Name")
	age, _ := Field(x, "Age")
	bob, _ := Constant("bob")
	ten, _ := Constant(10)
	left, _ := Equal(name, bob)
	right, _ := GreaterThan(age, ten)
	and, _ := AndAlso(left, right)

	eleven, _ := Constant(11)
	res, err := Replace(and, ten, eleven)
	if err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	got := res.(*BinaryExpression)
	if got == and {
		t.Fatal("expected a new root")
	}
	if got.Left() != Expression(left) {
		t.Error("expected the unchanged left branch to be shared")
	}
	if got.Right() == Expression(right) {
		t.Error("expected the right branch to be rebuilt")
	}
	if got.String() != `((x.Name == "bob") && (x.Age > 11))` {
		t.Errorf("unexpected result: %s", got)
	}
}

func TestReplaceArguments(t *testing.T) {
	x, _ := Parameter(reflect.TypeFor[person](), "x")
	c, _ := Constant("a")

	if _, err := Replace(x, nil, c); !errors.Is(err, errs.ErrArgumentMissing) {
		t.Errorf("expected ErrArgumentMissing for nil node, got %v", err)
	}
	if _, err := Replace(x, x, nil); !errors.Is(err, errs.ErrArgumentMissing) {
		t.Errorf("expected ErrArgumentMissing for nil replacement, got %v", err)
	}
	res, err := Replace(nil, x, c)
	if err != nil || res != nil {
		t.Errorf("expected nil tree to yield nil, got %v (%v)", res, err)
	}
}

func TestReplaceTypedFallsBack(t *testing.T) {
	x, _ := Parameter(reflect.TypeFor[person](), "x")
	name, _ := Field(x, "Name")
	c, _ := Constant("bob")

	got, err := ReplaceTyped(name, name, c)
	if err != nil {
		t.Fatalf("ReplaceTyped failed: %v", err)
	}
	if got != name {
		t.Errorf("expected the original member access, got %s", got)
	}

	y, _ := Parameter(reflect.TypeFor[person](), "y")
	got, err = ReplaceTyped(name, x, y)
	if err != nil {
		t.Fatalf("ReplaceTyped failed: %v", err)
	}
	if got.String() != "y.Name" {
		t.Errorf("expected 'y.Name', got '%s'", got)
	}

	var missing *MemberExpression
	got, err = ReplaceTyped(missing, x, y)
	if err != nil || got != nil {
		t.Errorf("expected nil to pass through, got %v (%v)", got, err)
	}
}

func TestReplaceAllReturnsFreshSlice(t *testing.T) {
	x, _ := Parameter(reflect.TypeFor[person](), "x")
	y, _ := Parameter(reflect.TypeFor[person](), "y")
	name, _ := Field(x, "Name")
	c, _ := Constant(1)
	list := []Expression{name, c}

	out, err := ReplaceAll(list, y, x)
	if err != nil {
		t.Fatalf("ReplaceAll failed: %v", err)
	}
	if &out[0] == &list[0] {
		t.Error("expected a new slice")
	}
	if out[0] != list[0] || out[1] != list[1] {
		t.Error("expected unchanged elements to keep their identity")
	}
}

func TestReplaceInsideCallAndConditional(t *testing.T) {
	x, _ := Parameter(reflect.TypeFor[person](), "x")
	tags, _ := Field(x, "Tags")
	item, _ := Parameter(reflect.TypeFor[string](), "t")
	a, _ := Constant("a")
	eq, _ := Equal(a, item)
	pred, _ := Lambda(eq, item)
	anyMethod, err := Any.Instantiate(reflect.TypeFor[[]string]())
	if err != nil {
		t.Fatalf("Instantiate failed: %v", err)
	}
	call, err := Call(nil, anyMethod, tags, pred)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	f, _ := Constant(false)
	cond, err := Condition(call, call, f)
	if err != nil {
		t.Fatalf("Condition failed: %v", err)
	}

	b, _ := Constant("b")
	res, err := Replace(cond, a, b)
	if err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	expected := `(Any(x.Tags, t => ("b" == t)) ? Any(x.Tags, t => ("b" == t)) : false)`
	if res.String() != expected {
		t.Errorf("expected '%s', got '%s'", expected, res)
	}
}
