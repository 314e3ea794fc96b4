package graph

import (
	"regexp"
	"strings"
)

var ws = regexp.MustCompile(`\s+`)

var relTypePattern = regexp.MustCompile(`^[A-Z0-9_]+$`)

// NormalizePredicate turns a free-text predicate into a relationship type:
// trim, collapse whitespace into underscores, uppercase.
// "has trait", "Has Trait" and "has_trait" all become HAS_TRAIT.
func NormalizePredicate(p string) string {
	p = strings.TrimSpace(p)
	p = ws.ReplaceAllString(p, "_")
	return strings.ToUpper(p)
}

// IsPlainRelType reports whether a normalized relationship type can be used
// as a bare identifier in a query language without quoting.
func IsPlainRelType(t string) bool {
	return relTypePattern.MatchString(t)
}

// NormalizeTriple trims the triple's fields and reports whether all three are present.
// Names are otherwise kept verbatim: entity identity is exact string equality.
func NormalizeTriple(t Triple) (Triple, bool) {
	t.Subject = strings.TrimSpace(t.Subject)
	t.Predicate = strings.TrimSpace(t.Predicate)
	t.Object = strings.TrimSpace(t.Object)
	if t.Subject == "" || t.Predicate == "" || t.Object == "" {
		return Triple{}, false
	}
	if c, ok := t.Properties[PropConfidence].(float64); ok {
		if c < 0 {
			t.Properties[PropConfidence] = 0.0
		}
		if c > 1 {
			t.Properties[PropConfidence] = 1.0
		}
	}
	return t, true
}

// Names returns the distinct subject and object names in first-seen order.
func Names(triples []Triple) []string {
	seen := make(map[string]struct{}, len(triples)*2)
	out := make([]string, 0, len(triples)*2)
	for _, t := range triples {
		for _, n := range [2]string{t.Subject, t.Object} {
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	return out
}

// MergeProperties copies src into dst, overwriting existing keys.
func MergeProperties(dst, src map[string]any) map[string]any {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
