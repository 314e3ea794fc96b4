// Package summary computes read-only statistics over a graph snapshot.
package summary

import (
	"fmt"
	"sort"
	"strings"

	"maizekg/internal/graph"
)

// CoverageMetric asks what fraction of From nodes have at least one outgoing
// Rel edge to a To node.
type CoverageMetric struct {
	Name  string
	Label string
	Rel   string
	From  graph.EntityType
	To    graph.EntityType
}

var DefaultCoverage = []CoverageMetric{
	{Name: "genes_with_traits", Label: "Genes with Traits", Rel: graph.RelRegulates, From: graph.EntityGene, To: graph.EntityTrait},
	{Name: "traits_with_qtls", Label: "Traits with QTLs", Rel: graph.RelAssociatedWith, From: graph.EntityTrait, To: graph.EntityQTL},
	{Name: "genotypes_with_trials", Label: "Genotypes with Trials", Rel: graph.RelTestedIn, From: graph.EntityGenotype, To: graph.EntityTrial},
}

func CountsByType(s graph.Snapshot) map[graph.EntityType]int {
	out := make(map[graph.EntityType]int)
	for _, n := range s.Nodes {
		out[n.Type]++
	}
	return out
}

func RelationshipCounts(s graph.Snapshot) map[string]int {
	out := make(map[string]int)
	for _, r := range s.Relationships {
		out[r.Type]++
	}
	return out
}

// CoverageCounts returns how many from-typed nodes exist and how many of them
// have a rel edge to a to-typed node.
func CoverageCounts(s graph.Snapshot, rel string, from, to graph.EntityType) (covered, total int) {
	covering := make(map[string]struct{})
	for _, r := range s.Relationships {
		if r.Type == rel && r.From.Type == from && r.To.Type == to {
			covering[r.From.Name] = struct{}{}
		}
	}
	for _, n := range s.Nodes {
		if n.Type != from {
			continue
		}
		total++
		if _, ok := covering[n.Name]; ok {
			covered++
		}
	}
	return covered, total
}

// Coverage is CoverageCounts as a fraction in [0,1]; 0 when there are no from nodes.
func Coverage(s graph.Snapshot, rel string, from, to graph.EntityType) float64 {
	covered, total := CoverageCounts(s, rel, from, to)
	if total == 0 {
		return 0
	}
	return float64(covered) / float64(total)
}

// Density is relationships / (n*(n-1)); 0 below two nodes.
func Density(s graph.Snapshot) float64 {
	n := len(s.Nodes)
	if n < 2 {
		return 0
	}
	return float64(len(s.Relationships)) / (float64(n) * float64(n-1))
}

type CoverageCount struct {
	Covered int
	Total   int
}

type Report struct {
	TotalNodes          int                      `json:"total_nodes"`
	TotalRelationships  int                      `json:"total_relationships"`
	Density             float64                  `json:"density"`
	ByType              map[graph.EntityType]int `json:"by_type"`
	RelationshipsByType map[string]int           `json:"relationships_by_type"`
	// Coverage holds percentages in [0,100] keyed by metric name.
	Coverage map[string]float64 `json:"coverage"`

	coverageCounts map[string]CoverageCount
}

// AverageDegree is 2*relationships/nodes.
func (r Report) AverageDegree() float64 {
	if r.TotalNodes == 0 {
		return 0
	}
	return 2 * float64(r.TotalRelationships) / float64(r.TotalNodes)
}

// CoverageDetail returns the raw counts behind a coverage percentage. Counts
// are not serialized.
func (r Report) CoverageDetail(name string) (CoverageCount, bool) {
	c, ok := r.coverageCounts[name]
	return c, ok
}

func Build(s graph.Snapshot) Report {
	return BuildWith(s, DefaultCoverage)
}

func BuildWith(s graph.Snapshot, metrics []CoverageMetric) Report {
	r := Report{
		TotalNodes:          len(s.Nodes),
		TotalRelationships:  len(s.Relationships),
		Density:             Density(s),
		ByType:              CountsByType(s),
		RelationshipsByType: RelationshipCounts(s),
		Coverage:            make(map[string]float64, len(metrics)),
		coverageCounts:      make(map[string]CoverageCount, len(metrics)),
	}
	for _, m := range metrics {
		covered, total := CoverageCounts(s, m.Rel, m.From, m.To)
		pct := 0.0
		if total > 0 {
			pct = float64(covered) / float64(total) * 100
		}
		r.Coverage[m.Name] = pct
		r.coverageCounts[m.Name] = CoverageCount{Covered: covered, Total: total}
	}
	return r
}

// Text renders the report for terminals.
func (r Report) Text() string {
	var b strings.Builder
	b.WriteString("GRAPH SIZE\n")
	fmt.Fprintf(&b, "  Total Nodes: %d\n", r.TotalNodes)
	fmt.Fprintf(&b, "  Total Relationships: %d\n", r.TotalRelationships)
	fmt.Fprintf(&b, "  Graph Density: %.6f\n", r.Density)
	fmt.Fprintf(&b, "  Average Degree: %.2f\n", r.AverageDegree())

	b.WriteString("\nNODES BY TYPE\n")
	for _, t := range graph.EntityTypes {
		if n := r.ByType[t]; n > 0 {
			fmt.Fprintf(&b, "  %-12s %d\n", t, n)
		}
	}

	b.WriteString("\nRELATIONSHIPS BY TYPE\n")
	rels := make([]string, 0, len(r.RelationshipsByType))
	for k := range r.RelationshipsByType {
		rels = append(rels, k)
	}
	sort.Slice(rels, func(i, j int) bool {
		ci, cj := r.RelationshipsByType[rels[i]], r.RelationshipsByType[rels[j]]
		if ci != cj {
			return ci > cj
		}
		return rels[i] < rels[j]
	})
	for _, k := range rels {
		fmt.Fprintf(&b, "  %-20s %d\n", k, r.RelationshipsByType[k])
	}

	b.WriteString("\nCOVERAGE\n")
	for _, m := range DefaultCoverage {
		pct, ok := r.Coverage[m.Name]
		if !ok {
			continue
		}
		if c, ok := r.coverageCounts[m.Name]; ok {
			fmt.Fprintf(&b, "  %s: %.1f%% (%d/%d)\n", m.Label, pct, c.Covered, c.Total)
			continue
		}
		fmt.Fprintf(&b, "  %s: %.1f%%\n", m.Label, pct)
	}
	return b.String()
}
