package util

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteJSONAtomicCreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "run1", "summary.json")
	require.NoError(t, WriteJSONAtomic(path, map[string]int{"total_nodes": 3}))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var got map[string]int
	require.NoError(t, json.Unmarshal(b, &got))
	require.Equal(t, 3, got["total_nodes"])
}

func TestWriteJSONLinesAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failures.jsonl")
	require.NoError(t, WriteJSONLinesAtomic(path, []any{map[string]string{"a": "1"}, map[string]string{"b": "2"}}))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, strings.Split(strings.TrimSpace(string(b)), "\n"), 2)
}

func TestSHA256FileStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "maize.csv")
	require.NoError(t, WriteTextAtomic(path, "subject,predicate,object\n"))
	a, err := SHA256File(path)
	require.NoError(t, err)
	b, err := SHA256File(path)
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Equal(t, SHA256Hex([]byte("subject,predicate,object\n")), a)
}

func TestWriteCSVAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph_nodes.csv")
	require.NoError(t, WriteCSVAtomic(path, []string{"node_type", "name"}, [][]string{{"Gene", "DREB2A"}, {"Trait", "Drought, Tolerance"}}))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "node_type,name\nGene,DREB2A\nTrait,\"Drought, Tolerance\"\n", string(b))
}
