package core

import (
	"errors"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"49.00", "49", true},
		{"1,234", "1234", true},
		{"1,234.50", "1234.5", true},
		{"12,345,678.9", "12345678.9", true},
		{"1,23", "", false},
		{"12,34", "", false},
		{"1234,567", "", false},
		{"1,2345", "", false},
		{",123", "", false},
		{"1,234.5,0", "", false},
		{"-1,234", "", false},
		{" 2.50 ", "2.5", true},
		{"+3", "3", true},
		{"0", "0", true},
		{"0.00", "0", true},
		{"-1", "", false},
		{"-0.01", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"12 EUR", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got.String() != tc.out {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got.String(), err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
			if !errors.Is(err, ErrInvalidAmount) {
				t.Fatalf("%q expected ErrInvalidAmount, got %v", tc.in, err)
			}
		}
	}
}

func TestFormatAmount(t *testing.T) {
	d, err := ParseAmount("588")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := FormatAmount(d); got != "588.00" {
		t.Fatalf("FormatAmount = %q, want 588.00", got)
	}
	third, _ := ParseAmount("0.125")
	if got := FormatAmount(RoundCents(third)); got != "0.13" {
		t.Fatalf("RoundCents(0.125) = %q, want 0.13", got)
	}
}
