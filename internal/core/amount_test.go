package core

import (
	"errors"
	"math"
	"testing"
)

func TestParseLenientFloat(t *testing.T) {
	cases := []struct {
		in  string
		out float64
		ok  bool
	}{
		{"3.5", 3.5, true},
		{"12", 12, true},
		{" 42abc", 42, true},
		{" \t7", 7, true},
		{"+3", 3, true},
		{".5", 0.5, true},
		{"5.", 5, true},
		{"-.5e-3x", -0.0005, true},
		{"1e", 1, true},
		{"1e+", 1, true},
		{"2E2", 200, true},
		{"0x10", 0, true},
		{"1.2.3", 1.2, true},
		{"abc", 0, false},
		{"", 0, false},
		{".", 0, false},
		{"-", 0, false},
		{"e5", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseLenientFloat(tc.in)
		if ok != tc.ok {
			t.Fatalf("%q expected ok=%v, got %v (value=%v)", tc.in, tc.ok, ok, got)
		}
		if !tc.ok {
			if !math.IsNaN(got) {
				t.Fatalf("%q expected NaN, got %v", tc.in, got)
			}
			continue
		}
		if got != tc.out {
			t.Fatalf("%q expected %v, got %v", tc.in, tc.out, got)
		}
	}
}

func TestParseLenientFloatInfinity(t *testing.T) {
	for in, sign := range map[string]int{"Infinity": 1, "-Infinity": -1, "+Infinityx": 1, "1e400": 1, "-1e400": -1} {
		got, ok := ParseLenientFloat(in)
		if !ok || !math.IsInf(got, sign) {
			t.Fatalf("%q expected Inf(%d), got %v ok=%v", in, sign, got, ok)
		}
	}
}

func TestParseAmount(t *testing.T) {
	if v, err := ParseAmount("5"); err != nil || v != 5 {
		t.Fatalf("expected 5, got %v (err=%v)", v, err)
	}
	if v, err := ParseAmount("-2.25"); err != nil || v != -2.25 {
		t.Fatalf("expected -2.25, got %v (err=%v)", v, err)
	}
	for _, in := range []string{"abc", "", "Infinity", "1e999", "  "} {
		if _, err := ParseAmount(in); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("%q expected ErrInvalidAmount, got %v", in, err)
		}
	}
}

func TestFormatFixed2(t *testing.T) {
	cases := []struct {
		in  float64
		out string
	}{
		{3.5, "3.50"},
		{12, "12.00"},
		{15.5, "15.50"},
		{0.1 + 0.2, "0.30"},
		{0.125, "0.13"},
		{0.375, "0.38"},
		{2.875, "2.88"},
		{-0.125, "-0.13"},
		{1.005, "1.00"},
		{2.675, "2.67"},
		{-3.5, "-3.50"},
		{math.Copysign(0, -1), "0.00"},
		{-0.001, "-0.00"},
		{99567682858187.125, "99567682858187.13"},
		{-349388956735148.375, "-349388956735148.38"},
		{1125899906842623.875, "1125899906842623.88"},
		{1e21, "1e+21"},
		{math.NaN(), "NaN"},
		{math.Inf(1), "Infinity"},
		{math.Inf(-1), "-Infinity"},
	}
	for _, tc := range cases {
		if got := FormatFixed2(tc.in); got != tc.out {
			t.Fatalf("FormatFixed2(%v) = %q, want %q", tc.in, got, tc.out)
		}
	}
}

func TestNewExpense(t *testing.T) {
	e, err := NewExpense("  Coffee ", 3.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Name != "Coffee" || e.Amount != 3.5 {
		t.Fatalf("unexpected expense: %+v", e)
	}
	if _, err := NewExpense("   ", 5); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	if _, err := NewExpense("\ufeff \u00a0", 5); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName for BOM and no-break space, got %v", err)
	}
	if _, err := NewExpense("Snack", math.NaN()); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestParseLenientInt(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"0", 0, true},
		{" 2", 2, true},
		{"1abc", 1, true},
		{"1.9", 1, true},
		{"+3", 3, true},
		{"-1", -1, true},
		{"-0", 0, true},
		{"\ufeff4", 4, true},
		{"99999999999999999999", math.MaxInt, true},
		{"", 0, false},
		{"x1", 0, false},
		{"-", 0, false},
		{".5", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseLenientInt(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ParseLenientInt(%q) = %d, %v, want %d, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestTrimSpace(t *testing.T) {
	cases := []struct {
		in, out string
	}{
		{"  Coffee ", "Coffee"},
		{"\ufeff", ""},
		{"\ufeffTea\u2028", "Tea"},
		{"\u0085Tea\u0085", "\u0085Tea\u0085"},
		{"\u3000\t\n", ""},
	}
	for _, tc := range cases {
		if got := TrimSpace(tc.in); got != tc.out {
			t.Errorf("TrimSpace(%q) = %q, want %q", tc.in, got, tc.out)
		}
	}
}
