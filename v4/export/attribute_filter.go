// Copyright 2021 PingCAP, Inc. Licensed under Apache-2.0.

package export

import "strings"

// excludeSet holds normalized attribute names left out of the output.
type excludeSet map[string]struct{}

func normalizeAttributeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func newExcludeSet(names []string) excludeSet {
	s := make(excludeSet, len(names))
	for _, name := range names {
		if n := normalizeAttributeName(name); n != "" {
			s[n] = struct{}{}
		}
	}
	return s
}

func (s excludeSet) excluded(name string) bool {
	_, ok := s[normalizeAttributeName(name)]
	return ok
}

// filterAttributes keeps the order of attrs and drops excluded ones.
func filterAttributes(attrs []Attribute, exclude excludeSet) []Attribute {
	if len(exclude) == 0 {
		return attrs
	}
	kept := make([]Attribute, 0, len(attrs))
	for _, a := range attrs {
		if !exclude.excluded(a.Name) {
			kept = append(kept, a)
		}
	}
	return kept
}

func filterAttributeNames(names []string, exclude excludeSet) []string {
	kept := make([]string, 0, len(names))
	for _, name := range names {
		if !exclude.excluded(name) {
			kept = append(kept, name)
		}
	}
	return kept
}
