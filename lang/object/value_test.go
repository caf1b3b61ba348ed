package object_test

import (
	"testing"

	"github.com/loxlang/loxvm/lang/object"
)

func TestTruthiness(t *testing.T) {
	cases := []struct {
		v    object.Value
		want bool
	}{
		{object.NilValue, false},
		{object.False, false},
		{object.True, true},
		{object.Number(0), true}, // only nil and false are falsy; 0 is truthy
		{object.Number(-1), true},
		{object.Number(42), true},
	}
	for _, c := range cases {
		if got := c.v.Truth(); got != c.want {
			t.Errorf("%v.Truth() = %v, want %v", c.v, got, c.want)
		}
	}
}

func TestValuesEqualStructural(t *testing.T) {
	if !object.ValuesEqual(object.Number(1), object.Number(1)) {
		t.Error("equal numbers should compare equal")
	}
	if object.ValuesEqual(object.Number(1), object.Number(2)) {
		t.Error("different numbers should not compare equal")
	}
	if !object.ValuesEqual(object.True, object.True) {
		t.Error("equal bools should compare equal")
	}
	if object.ValuesEqual(object.True, object.False) {
		t.Error("different bools should not compare equal")
	}
	if !object.ValuesEqual(object.NilValue, object.NilValue) {
		t.Error("nil should equal nil")
	}
	if object.ValuesEqual(object.Number(0), object.False) {
		t.Error("values of different types should never compare equal")
	}
}

func TestValuesEqualInternedStringsByIdentity(t *testing.T) {
	h := object.NewHeap()
	a := h.InternString("same")
	b := h.InternString("same")
	c := h.InternString("different")

	if !object.ValuesEqual(a, b) {
		t.Error("two interned strings with equal bytes must compare equal")
	}
	if object.ValuesEqual(a, c) {
		t.Error("interned strings with different bytes must not compare equal")
	}
}

func TestNumberStringFormatting(t *testing.T) {
	cases := []struct {
		n    object.Number
		want string
	}{
		{0, "0"},
		{1, "1"},
		{1.5, "1.5"},
		{-3, "-3"},
		{100, "100"},
	}
	for _, c := range cases {
		if got := c.n.String(); got != c.want {
			t.Errorf("Number(%v).String() = %q, want %q", float64(c.n), got, c.want)
		}
	}
}

func TestBoolValueReusesSingletons(t *testing.T) {
	if object.BoolValue(true) != object.True {
		t.Error("BoolValue(true) should be True")
	}
	if object.BoolValue(false) != object.False {
		t.Error("BoolValue(false) should be False")
	}
}
