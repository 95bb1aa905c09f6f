package analysis

import (
	"sort"

	"spendlens/internal/core"
)

// MergeWindows returns the windows sorted by start with overlapping or
// touching spans (next start no later than the day after the previous end)
// merged. The input is not modified.
func MergeWindows(ws []core.Window) []core.Window {
	if len(ws) == 0 {
		return nil
	}
	sorted := append([]core.Window(nil), ws...)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].Start.Equal(sorted[j].Start) {
			return sorted[i].Start.Before(sorted[j].Start)
		}
		return sorted[i].End.Before(sorted[j].End)
	})

	merged := []core.Window{sorted[0]}
	for _, w := range sorted[1:] {
		last := &merged[len(merged)-1]
		if last.Touches(w) {
			if w.End.After(last.End) {
				last.End = w.End
			}
			continue
		}
		merged = append(merged, w)
	}
	return merged
}

// Intersections tests every window of a against every window of b and
// returns the shared spans merged into maximal, ordered intervals.
func Intersections(a, b []core.Window) []core.Window {
	var spans []core.Window
	for _, wa := range a {
		for _, wb := range b {
			if span, ok := wa.Intersect(wb); ok {
				spans = append(spans, span)
			}
		}
	}
	return MergeWindows(spans)
}

// Envelope returns the earliest start and latest end across ws.
func Envelope(ws []core.Window) (core.Window, bool) {
	if len(ws) == 0 {
		return core.Window{}, false
	}
	env := ws[0]
	for _, w := range ws[1:] {
		if w.Start.Before(env.Start) {
			env.Start = w.Start
		}
		if w.End.After(env.End) {
			env.End = w.End
		}
	}
	return env, true
}
