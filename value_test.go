package formula

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestValueOf(t *testing.T) {
	when := time.Date(2020, time.May, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		in   any
		want Value
	}{
		{"nil", nil, Null()},
		{"int", 42, Number(42)},
		{"int64", int64(-7), Number(-7)},
		{"uint8", uint8(200), Number(200)},
		{"float32", float32(0.5), Number(0.5)},
		{"string", "abc", Text("abc")},
		{"bytes", []byte("raw"), Text("raw")},
		{"bool", true, Boolean(true)},
		{"time", when, DateTime(when)},
		{"time pointer", &when, DateTime(when)},
		{"nil time pointer", (*time.Time)(nil), Null()},
		{"value", Text("kept"), Text("kept")},
		{"formula error", NewFormulaError(ErrorCodeNA, ""), ErrorValue(NewFormulaError(ErrorCodeNA, ""))},
		{"plain error", errors.New("bad"), ErrorValue(NewFormulaError(ErrorCodeOther, "bad"))},
		{"other", []int{1, 2}, Text("[1 2]")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValueOf(tt.in); !got.Equal(tt.want) {
				t.Errorf("ValueOf(%v) = %v (%s), want %v (%s)", tt.in, got, got.Kind(), tt.want, tt.want.Kind())
			}
		})
	}
}

func TestValueCoercion(t *testing.T) {
	numbers := []struct {
		in   Value
		want float64
		ok   bool
	}{
		{Number(2.5), 2.5, true},
		{Text(" 12 "), 12, true},
		{Text(""), 0, true},
		{Text("abc"), 0, false},
		{Boolean(true), 1, true},
		{Null(), 0, true},
		{DateTime(time.UnixMilli(1500)), 1500, true},
		{ErrorValue(NewFormulaError(ErrorCodeRef, "")), 0, false},
	}
	for _, tt := range numbers {
		got, ok := toNumber(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("toNumber(%v) = %v, %v, want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}

	texts := []struct {
		in   Value
		want string
	}{
		{Number(3), "3"},
		{Number(0.1), "0.1"},
		{Number(math.Inf(1)), "Infinity"},
		{Boolean(false), "FALSE"},
		{Null(), ""},
		{ErrorValue(NewFormulaError(ErrorCodeName, "x")), "#NAME?"},
	}
	for _, tt := range texts {
		if got := tt.in.String(); got != tt.want {
			t.Errorf("String(%v) = %q, want %q", tt.in.Kind(), got, tt.want)
		}
	}
}

func TestCompareValues(t *testing.T) {
	tests := []struct {
		left, right Value
		want        int
		ok          bool
	}{
		{Number(1), Number(2), -1, true},
		{Text("5"), Number(5), 0, true},
		{Text("b"), Text("a"), 1, true},
		{Text("10"), Text("9"), -1, true},
		{Boolean(false), Boolean(true), -1, true},
		{Null(), Null(), 0, true},
		{Null(), Number(0), 0, true},
		{Number(math.NaN()), Number(1), 0, false},
		{ErrorValue(NewFormulaError(ErrorCodeNA, "")), Text("x"), 0, false},
	}
	for _, tt := range tests {
		got, ok := compareValues(tt.left, tt.right)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("compareValues(%v, %v) = %d, %v, want %d, %v", tt.left, tt.right, got, ok, tt.want, tt.ok)
		}
	}
}

func TestValueAccessors(t *testing.T) {
	if _, ok := Text("1").Float(); ok {
		t.Error("Float() on text should fail")
	}
	if b, ok := Boolean(true).Bool(); !ok || !b {
		t.Error("Bool() on true failed")
	}
	when := time.Now()
	if got, ok := DateTime(when).Time(); !ok || !got.Equal(when) {
		t.Error("Time() lost the instant")
	}
	if Number(1).Interface() != 1.0 || Null().Interface() != nil {
		t.Error("Interface() did not unwrap")
	}
	if Number(math.NaN()).Equal(Number(math.NaN())) {
		t.Error("NaN should not equal itself")
	}
	if isTruthy(Number(math.NaN())) || !isTruthy(Text("x")) || isTruthy(Null()) {
		t.Error("isTruthy mismatch")
	}
}
