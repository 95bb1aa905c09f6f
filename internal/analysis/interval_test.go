package analysis

import (
	"testing"

	"spendlens/internal/core"
)

func w(y1, m1, d1, y2, m2, d2 int) core.Window {
	return core.Window{Start: core.NewDate(y1, m1, d1), End: core.NewDate(y2, m2, d2)}
}

func equalWindows(a, b []core.Window) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Start.Equal(b[i].Start) || !a[i].End.Equal(b[i].End) {
			return false
		}
	}
	return true
}

func TestMergeWindows(t *testing.T) {
	tests := []struct {
		name string
		in   []core.Window
		want []core.Window
	}{
		{"empty", nil, nil},
		{
			name: "adjacent months merge",
			in:   []core.Window{w(2025, 2, 1, 2025, 2, 28), w(2025, 1, 1, 2025, 1, 31)},
			want: []core.Window{w(2025, 1, 1, 2025, 2, 28)},
		},
		{
			name: "overlapping merge",
			in:   []core.Window{w(2025, 1, 1, 2025, 1, 20), w(2025, 1, 10, 2025, 2, 5)},
			want: []core.Window{w(2025, 1, 1, 2025, 2, 5)},
		},
		{
			name: "contained window absorbed",
			in:   []core.Window{w(2025, 1, 1, 2025, 3, 31), w(2025, 2, 1, 2025, 2, 10)},
			want: []core.Window{w(2025, 1, 1, 2025, 3, 31)},
		},
		{
			name: "gap keeps windows apart",
			in:   []core.Window{w(2025, 1, 1, 2025, 1, 31), w(2025, 3, 1, 2025, 3, 31)},
			want: []core.Window{w(2025, 1, 1, 2025, 1, 31), w(2025, 3, 1, 2025, 3, 31)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MergeWindows(tt.in); !equalWindows(got, tt.want) {
				t.Errorf("MergeWindows() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIntersections(t *testing.T) {
	a := []core.Window{w(2025, 1, 1, 2025, 1, 31), w(2025, 3, 1, 2025, 3, 31)}
	b := []core.Window{w(2025, 1, 15, 2025, 3, 10)}

	got := Intersections(a, b)
	want := []core.Window{w(2025, 1, 15, 2025, 1, 31), w(2025, 3, 1, 2025, 3, 10)}
	if !equalWindows(got, want) {
		t.Fatalf("Intersections() = %v, want %v", got, want)
	}

	env, ok := Envelope(got)
	if !ok || !equalWindows([]core.Window{env}, []core.Window{w(2025, 1, 15, 2025, 3, 10)}) {
		t.Errorf("Envelope() = %v, %v", env, ok)
	}
	if _, ok := Envelope(nil); ok {
		t.Errorf("Envelope(nil) should report false")
	}
}
