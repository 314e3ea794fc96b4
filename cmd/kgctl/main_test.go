package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const input = "subject,predicate,object\n" +
	"DREB2A,regulates,Drought Tolerance\n" +
	"B73,has_trait,Drought Tolerance\n" +
	",has_trait,Plant Height\n"

func writeInput(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "traits.csv")
	require.NoError(t, os.WriteFile(p, []byte(input), 0o644))
	return p
}

func TestBuildThenReport(t *testing.T) {
	graphURL := "memory://kgctl-" + uuid.NewString()
	path := writeInput(t)
	var stdout, stderr bytes.Buffer

	code := run([]string{"build", "-graph", graphURL, path}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())
	assert.Contains(t, stdout.String(), "rows_skipped=1")

	stdout.Reset()
	code = run([]string{"report", "-graph", graphURL, "-format", "json"}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())
	var report map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &report))
	assert.EqualValues(t, 3, report["total_nodes"])
	assert.EqualValues(t, 2, report["total_relationships"])

	out := filepath.Join(t.TempDir(), "report.txt")
	code = run([]string{"report", "-graph", graphURL, "-out", out}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())
	assert.FileExists(t, out)
}

func TestExportWritesCSVs(t *testing.T) {
	graphURL := "memory://kgctl-" + uuid.NewString()
	var stdout, stderr bytes.Buffer
	require.Equal(t, exitOK, run([]string{"build", "-graph", graphURL, writeInput(t)}, &stdout, &stderr))

	dir := t.TempDir()
	code := run([]string{"export", "-graph", graphURL, "-dir", dir}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())
	assert.FileExists(t, filepath.Join(dir, "graph_nodes.csv"))
	assert.FileExists(t, filepath.Join(dir, "graph_relationships.csv"))
}

func TestClassifyPrintsTypes(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"classify", writeInput(t)}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())
	assert.Contains(t, stdout.String(), "B73")
	assert.Contains(t, stdout.String(), "Genotype")
	assert.Contains(t, stdout.String(), "2 triples, 3 names, 1 rows skipped")
}

func TestUsageErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, exitUsage, run(nil, &stdout, &stderr))
	assert.Equal(t, exitUsage, run([]string{"frobnicate"}, &stdout, &stderr))
	assert.Equal(t, exitUsage, run([]string{"build"}, &stdout, &stderr))
	assert.Equal(t, exitUsage, run([]string{"report", "-format", "xml"}, &stdout, &stderr))
	assert.Equal(t, exitUsage, run([]string{"export"}, &stdout, &stderr))
}

func TestBuildReportsMissingInput(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"build", "-graph", "memory://kgctl-" + uuid.NewString(), "/no/such/file.csv"}, &stdout, &stderr)
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr.String(), "file.csv")
}

func TestBuildClassifiesAcrossInputs(t *testing.T) {
	graphURL := "memory://kgctl-" + uuid.NewString()
	dir := t.TempDir()
	a := filepath.Join(dir, "a.csv")
	b := filepath.Join(dir, "b.csv")
	require.NoError(t, os.WriteFile(a, []byte("subject,predicate,object\nB73,has_trait,kernel hardness\n"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("subject,predicate,object\nkernel hardness,measured_at,Ames\n"), 0o644))
	var stdout, stderr bytes.Buffer

	require.Equal(t, exitOK, run([]string{"build", "-graph", graphURL, a, b}, &stdout, &stderr), stderr.String())

	stdout.Reset()
	require.Equal(t, exitOK, run([]string{"report", "-graph", graphURL, "-format", "json"}, &stdout, &stderr))
	var report struct {
		TotalNodes int            `json:"total_nodes"`
		ByType     map[string]int `json:"by_type"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &report))
	assert.Equal(t, 3, report.TotalNodes)
	assert.Equal(t, map[string]int{"Genotype": 1, "Trait": 1, "Location": 1}, report.ByType)
}
