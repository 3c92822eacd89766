// Package normalize derives the normalized table/column names the Config
// Store and every downstream artefact (datapackage fields, DDL, TSV paths)
// key off of: lower-cased, diacritics folded, non-alphanumeric runs
// collapsed to an underscore, and capped at 30 characters. Collisions within
// a scope (tables within a project, columns within a table) are
// disambiguated with an ordinal suffix so the function stays total and
// injective over any input set.
package normalize

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxLength is the hard cap spec.md §3 places on a normalized name.
const MaxLength = 30

var diacriticFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Name folds s into its normalized form: diacritics stripped, lower-cased,
// anything other than ASCII a-z, 0-9 or underscore collapsed to a single
// underscore, leading/trailing underscores trimmed, and the result capped
// at MaxLength. Name is idempotent: Name(Name(x)) == Name(x).
func Name(s string) string {
	folded, _, err := transform.String(diacriticFold, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	lastWasUnderscore := false
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastWasUnderscore = false
		case r == '_':
			if !lastWasUnderscore {
				b.WriteRune('_')
			}
			lastWasUnderscore = true
		default:
			if !lastWasUnderscore && b.Len() > 0 {
				b.WriteRune('_')
				lastWasUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		out = "col"
	}
	if len(out) > MaxLength {
		out = strings.TrimRight(out[:MaxLength], "_")
	}
	return out
}

// Scope disambiguates normalized names that collide within one naming
// scope (a project's tables, or one table's columns): the first occurrence
// of a normalized name is left unsuffixed, every later occurrence gets a
// "_N" ordinal suffix (N starting at 2), trimmed back under MaxLength so
// the suffix is never truncated away.
type Scope struct {
	seen map[string]int
}

// NewScope returns an empty disambiguation scope.
func NewScope() *Scope {
	return &Scope{seen: map[string]int{}}
}

// Resolve normalizes raw and, if that normalized form was already returned
// by this Scope, appends a disambiguating ordinal suffix.
func (s *Scope) Resolve(raw string) string {
	base := Name(raw)
	n := s.seen[base]
	s.seen[base] = n + 1
	if n == 0 {
		return base
	}
	suffix := "_" + strconv.Itoa(n+1)
	if len(base)+len(suffix) > MaxLength {
		base = base[:MaxLength-len(suffix)]
	}
	return base + suffix
}
