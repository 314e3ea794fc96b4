package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maizekg/internal/graph"
	"maizekg/internal/util"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestCSVSkipsEmptySubject(t *testing.T) {
	p := writeFile(t, "triples.csv", "subject,predicate,object\n"+
		"DREB2A,regulates,Drought Tolerance\n"+
		",has_trait,Plant Height\n"+
		"B73,has_trait,Drought Tolerance\n")

	triples, stats, err := Collect(context.Background(), NewCSV(p))
	require.NoError(t, err)
	assert.Len(t, triples, 2)
	assert.Equal(t, 3, stats.Rows)
	assert.Equal(t, 2, stats.Emitted)
	require.Equal(t, 1, stats.SkippedCount())
	assert.Equal(t, 3, stats.Skipped[0].Row)
}

func TestCSVHeaderAliasesAndBOM(t *testing.T) {
	p := writeFile(t, "edges.csv", "\ufeffSource, Relation ,Target,Score,Provenance,evidence\n"+
		"ZmCCT,Regulates,Flowering Time,0.9,maizegdb,\"ZmCCT delays flowering, per GWAS\"\n")

	triples, _, err := Collect(context.Background(), NewCSV(p))
	require.NoError(t, err)
	require.Len(t, triples, 1)
	got := triples[0]
	assert.Equal(t, "ZmCCT", got.Subject)
	assert.Equal(t, "Regulates", got.Predicate)
	assert.Equal(t, "Flowering Time", got.Object)
	assert.Equal(t, 0.9, got.Properties[graph.PropConfidence])
	assert.Equal(t, "maizegdb", got.Properties[graph.PropSource])
	assert.Equal(t, "ZmCCT delays flowering, per GWAS", got.Properties[graph.PropEvidence])
}

func TestCSVMissingColumns(t *testing.T) {
	p := writeFile(t, "bad.csv", "subject,object\nB73,Ames\n")
	_, _, err := Collect(context.Background(), NewCSV(p))

	var se *SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, []string{"predicate"}, se.Missing)
	assert.ErrorIs(t, err, util.ErrMissingColumns)
}

func TestCSVEmptyFileIsSchemaError(t *testing.T) {
	p := writeFile(t, "empty.csv", "")
	_, _, err := Collect(context.Background(), NewCSV(p))
	assert.ErrorIs(t, err, util.ErrMissingColumns)
}

func TestCSVWrongFieldCountAndBadQuote(t *testing.T) {
	p := writeFile(t, "mixed.csv", "subject,predicate,object\n"+
		"B73,tested_in\n"+
		"Mo17,te\"sted_in,Ames Trial\n"+
		"W22,tested_in,Ames Trial\n")

	triples, stats, err := Collect(context.Background(), NewCSV(p))
	require.NoError(t, err)
	require.Len(t, triples, 1)
	assert.Equal(t, "W22", triples[0].Subject)
	assert.Equal(t, 2, stats.SkippedCount())
}

func TestCSVIsRestartableAndStopsEarly(t *testing.T) {
	p := writeFile(t, "triples.csv", "subject,predicate,object\na,r,b\nc,r,d\ne,r,f\n")
	src := NewCSV(p)

	first, _, err := Collect(context.Background(), src)
	require.NoError(t, err)
	second, _, err := Collect(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	n := 0
	stats, err := src.Read(context.Background(), func(graph.Triple) bool {
		n++
		return n < 2
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, stats.Emitted)
}

func TestCSVHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := readCSV(ctx, "mem", strings.NewReader("subject,predicate,object\na,r,b\n"), func(graph.Triple) bool { return true })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenByExtension(t *testing.T) {
	for path, want := range map[string]any{
		"a.csv": &CSVSource{}, "b.JSON": &JSONSource{}, "c.pdf": &PDFSource{}, "d.txt": &TextSource{},
	} {
		src, err := Open(path)
		require.NoError(t, err)
		assert.IsType(t, want, src)
		assert.Equal(t, path, src.Name())
	}
	_, err := Open("e.vcf")
	assert.ErrorIs(t, err, util.ErrUnsupportedSource)
}
