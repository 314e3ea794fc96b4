package summary

import (
	"path/filepath"

	"maizekg/internal/graph"
	"maizekg/internal/util"
)

const (
	NodesFile         = "graph_nodes.csv"
	RelationshipsFile = "graph_relationships.csv"
)

// ExportCSV writes the snapshot as two CSV files for external visualization
// tools and returns their paths.
func ExportCSV(s graph.Snapshot, dir string) (string, string, error) {
	nodeRows := make([][]string, 0, len(s.Nodes))
	for _, n := range s.Nodes {
		nodeRows = append(nodeRows, []string{string(n.Type), n.Name})
	}
	relRows := make([][]string, 0, len(s.Relationships))
	for _, r := range s.Relationships {
		relRows = append(relRows, []string{r.From.Name, r.Type, r.To.Name})
	}

	nodesPath := filepath.Join(dir, NodesFile)
	relsPath := filepath.Join(dir, RelationshipsFile)
	if err := util.WriteCSVAtomic(nodesPath, []string{"node_type", "name"}, nodeRows); err != nil {
		return "", "", err
	}
	if err := util.WriteCSVAtomic(relsPath, []string{"source", "relationship", "target"}, relRows); err != nil {
		return "", "", err
	}
	return nodesPath, relsPath, nil
}
