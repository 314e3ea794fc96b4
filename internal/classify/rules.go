package classify

import (
	"regexp"
	"strings"
	"unicode"

	"maizekg/internal/graph"
)

// NameMatcher reports whether an entity name satisfies a rule.
type NameMatcher func(name string) bool

// Rule is one row of the ordered classification table.
type Rule struct {
	Name  string
	Match NameMatcher
	Type  graph.EntityType
}

var (
	chrPattern       = regexp.MustCompile(`(?i)^chr\d+$`)
	trialLinePattern = regexp.MustCompile(`^(CML|PH|LH|NC|Tx|Oh|Ki|Mo)\d{1,4}[A-Za-z]?$`)
	qtlPattern       = regexp.MustCompile(`^q[A-Za-z]+\d+\.\d+$`)
	geneSymbol       = regexp.MustCompile(`^[A-Z][A-Z0-9-]{0,9}$`)
)

// BuildRules returns the name rules in priority order. The context fallback is
// not part of the table; it depends on the triples, not on the name.
func BuildRules(v Vocabulary) []Rule {
	genotypes := toSet(v.GenotypeCodes)
	locations := toSet(v.Locations)
	traitNouns := toLowerSet(v.TraitNouns)
	weather := toLowerSet(v.WeatherKeywords)
	pathway := lowerAll(v.PathwayKeywords)

	return []Rule{
		{Name: "chromosome", Type: graph.EntityChromosome, Match: func(name string) bool {
			return strings.HasPrefix(strings.ToLower(name), "chromosome") || chrPattern.MatchString(name)
		}},
		{Name: "genotype", Type: graph.EntityGenotype, Match: func(name string) bool {
			_, ok := genotypes[name]
			return ok || trialLinePattern.MatchString(name)
		}},
		{Name: "marker", Type: graph.EntityMarker, Match: func(name string) bool {
			return hasAnyPrefix(name, v.MarkerPrefixes)
		}},
		{Name: "qtl", Type: graph.EntityQTL, Match: qtlPattern.MatchString},
		{Name: "trial", Type: graph.EntityTrial, Match: func(name string) bool {
			return strings.Contains(strings.ToLower(name), "trial")
		}},
		{Name: "pathway", Type: graph.EntityPathway, Match: func(name string) bool {
			lower := strings.ToLower(name)
			for _, kw := range pathway {
				if strings.Contains(lower, kw) {
					return true
				}
			}
			return false
		}},
		{Name: "trait-vocabulary", Type: graph.EntityTrait, Match: func(name string) bool {
			w := words(name)
			if len(w) == 0 {
				return false
			}
			_, ok := traitNouns[w[len(w)-1]]
			return ok
		}},
		{Name: "weather", Type: graph.EntityWeather, Match: func(name string) bool {
			for _, w := range words(name) {
				if _, ok := weather[w]; ok {
					return true
				}
			}
			return false
		}},
		{Name: "location", Type: graph.EntityLocation, Match: func(name string) bool {
			_, ok := locations[name]
			return ok
		}},
		{Name: "gene", Type: graph.EntityGene, Match: func(name string) bool {
			return hasAnyPrefix(name, v.GenePrefixes) || geneSymbol.MatchString(name)
		}},
	}
}

// words splits a name on anything that is not a letter or digit and lowercases
// the parts. "Heat_Stress" and "heat stress" both yield [heat stress].
func words(name string) []string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, p := range parts {
		parts[i] = strings.ToLower(p)
	}
	return parts
}

func hasAnyPrefix(name string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

func toSet(list []string) map[string]struct{} {
	out := make(map[string]struct{}, len(list))
	for _, s := range list {
		out[s] = struct{}{}
	}
	return out
}

func toLowerSet(list []string) map[string]struct{} {
	return toSet(lowerAll(list))
}

func lowerAll(list []string) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = strings.ToLower(s)
	}
	return out
}
