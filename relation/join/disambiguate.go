package join

import (
	"fmt"
	"strings"
)

// maxDisambiguationSteps bounds how often a caller-supplied disambiguator is
// applied to a single name before the numeric fallback takes over.
const maxDisambiguationSteps = 64

// DefaultDisambiguator appends " (#1)" to a name.
func DefaultDisambiguator(name string) string {
	return name + " (#1)"
}

// SuffixDisambiguator returns a disambiguator appending suffix.
func SuffixDisambiguator(suffix string) func(string) string {
	return func(name string) string { return name + suffix }
}

// disambiguate returns name, or a variant of it that taken rejects. The
// disambiguator is applied repeatedly; when it stops producing new names
// (identity, whitespace only, or cycling) or the step budget is spent, a
// numeric " (#n)" suffix is used instead.
func disambiguate(name string, taken func(string) bool, disambiguator func(string) string) string {
	if !taken(name) {
		return name
	}

	tried := map[string]bool{name: true}
	current := name
	for step := 0; step < maxDisambiguationSteps && disambiguator != nil; step++ {
		next := strings.TrimSpace(disambiguator(current))
		if next == "" || tried[next] {
			break
		}
		if !taken(next) {
			return next
		}
		tried[next] = true
		current = next
	}

	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s (#%d)", name, n)
		if !taken(candidate) {
			return candidate
		}
	}
}

// nameSet tracks output column names that are already in use.
type nameSet map[string]bool

func (s nameSet) taken(name string) bool { return s[name] }

// claim disambiguates name against the set and records the result.
func (s nameSet) claim(name string, disambiguator func(string) string) string {
	name = disambiguate(name, s.taken, disambiguator)
	s[name] = true
	return name
}
