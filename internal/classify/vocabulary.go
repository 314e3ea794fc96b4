package classify

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Vocabulary holds the word lists behind the name rules. Extending a vocabulary
// only adds entries; rule order is fixed by the classifier.
type Vocabulary struct {
	GenotypeCodes          []string `yaml:"genotype_codes"`
	MarkerPrefixes         []string `yaml:"marker_prefixes"`
	PathwayKeywords        []string `yaml:"pathway_keywords"`
	TraitNouns             []string `yaml:"trait_nouns"`
	WeatherKeywords        []string `yaml:"weather_keywords"`
	Locations              []string `yaml:"locations"`
	GenePrefixes           []string `yaml:"gene_prefixes"`
	TraitContextPredicates []string `yaml:"trait_context_predicates"`
}

func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		GenotypeCodes: []string{
			"B73", "Mo17", "W22", "CML247", "Oh43", "PH207", "Ki3", "A632",
			"Tx303", "NC350", "F7", "B37", "B97", "Ky21", "Oh7B", "P39", "Il14H", "M37W",
		},
		MarkerPrefixes:  []string{"SNP_", "SSR_", "INDEL_"},
		PathwayKeywords: []string{"pathway", "signaling", "signalling", "biosynthesis", "metabolism", "cycle"},
		TraitNouns: []string{
			"tolerance", "resistance", "yield", "height", "color", "colour", "efficiency",
			"flowering", "architecture", "senescence", "size", "depth", "content", "weight",
			"maturity", "quality", "vigor", "lodging",
		},
		WeatherKeywords: []string{
			"drought", "stress", "temperature", "rainfall", "heat", "cold", "frost",
			"humidity", "precipitation", "wind",
		},
		Locations: []string{
			"Ames", "Iowa", "Nebraska", "Illinois", "Kansas", "Minnesota", "Indiana",
			"Wisconsin", "Missouri", "Ohio", "Mexico", "Lincoln", "Urbana",
		},
		GenePrefixes:           []string{"Zm"},
		TraitContextPredicates: []string{"has_trait", "regulates"},
	}
}

// Extend returns v with every entry of other appended, skipping duplicates.
func (v Vocabulary) Extend(other Vocabulary) Vocabulary {
	return Vocabulary{
		GenotypeCodes:          appendUnique(v.GenotypeCodes, other.GenotypeCodes),
		MarkerPrefixes:         appendUnique(v.MarkerPrefixes, other.MarkerPrefixes),
		PathwayKeywords:        appendUnique(v.PathwayKeywords, other.PathwayKeywords),
		TraitNouns:             appendUnique(v.TraitNouns, other.TraitNouns),
		WeatherKeywords:        appendUnique(v.WeatherKeywords, other.WeatherKeywords),
		Locations:              appendUnique(v.Locations, other.Locations),
		GenePrefixes:           appendUnique(v.GenePrefixes, other.GenePrefixes),
		TraitContextPredicates: appendUnique(v.TraitContextPredicates, other.TraitContextPredicates),
	}
}

// LoadVocabulary reads a YAML extension file and applies it on top of the defaults.
// Unknown keys are rejected so a typo does not silently drop a list.
func LoadVocabulary(path string) (Vocabulary, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("read vocabulary: %w", err)
	}
	var ext Vocabulary
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&ext); err != nil && !errors.Is(err, io.EOF) {
		return Vocabulary{}, fmt.Errorf("decode vocabulary %s: %w", path, err)
	}
	return DefaultVocabulary().Extend(ext), nil
}

func appendUnique(base, extra []string) []string {
	out := make([]string, 0, len(base)+len(extra))
	seen := make(map[string]struct{}, len(base)+len(extra))
	for _, list := range [2][]string{base, extra} {
		for _, s := range list {
			if _, ok := seen[s]; ok || s == "" {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
