package upgrade

import "slices"

// HasApplied reports whether the row carries the marker for name.
func HasApplied(row Row, name string) bool {
	return slices.Contains(row.AppliedUpgrades, name)
}

// AddApplied returns list unchanged when name is already present,
// otherwise a new slice with name appended. The input is never mutated.
func AddApplied(list []string, name string) []string {
	if slices.Contains(list, name) {
		return list
	}
	out := make([]string, 0, len(list)+1)
	out = append(out, list...)
	return append(out, name)
}

// RemoveApplied returns a new slice without any of the given names.
// The result is never nil so it persists as an empty list.
func RemoveApplied(list []string, names ...string) []string {
	out := make([]string, 0, len(list))
	for _, n := range list {
		if !slices.Contains(names, n) {
			out = append(out, n)
		}
	}
	return out
}
