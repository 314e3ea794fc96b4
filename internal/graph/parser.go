package graph

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseTriplesJSON decodes mining output in either {"triples":[...]} or bare
// array form. Markdown code fences around the payload are tolerated.
// Entries missing a field are dropped and counted.
func ParseTriplesJSON(raw string) ([]Triple, int, error) {
	raw = stripCodeFence(strings.TrimSpace(raw))
	if raw == "" {
		return nil, 0, nil
	}
	var items []Triple
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			return nil, 0, fmt.Errorf("decode triples array: %w", err)
		}
	} else {
		var payload struct {
			Triples []Triple `json:"triples"`
		}
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return nil, 0, fmt.Errorf("decode triples object: %w", err)
		}
		items = payload.Triples
	}
	out := make([]Triple, 0, len(items))
	dropped := 0
	for _, t := range items {
		n, ok := NormalizeTriple(t)
		if !ok {
			dropped++
			continue
		}
		out = append(out, n)
	}
	return out, dropped, nil
}

func stripCodeFence(s string) string {
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}
