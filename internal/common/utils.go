package common

import "strings"

// HasAny reports whether s contains any of the substrings.
func HasAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// FirstMatch returns the index of the first candidate containing any of the
// substrings, or -1.
func FirstMatch(candidates []string, subs ...string) int {
	for i, c := range candidates {
		if HasAny(c, subs...) {
			return i
		}
	}
	return -1
}
