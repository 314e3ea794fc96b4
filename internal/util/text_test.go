package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitSentencesKeepsDottedIdentifiers(t *testing.T) {
	got := SplitSentences("QTL analysis mapped drought tolerance to qDT1.1. Genotype B73 performed better!  Trailing")
	require.Equal(t, []string{
		"QTL analysis mapped drought tolerance to qDT1.1.",
		"Genotype B73 performed better!",
		"Trailing",
	}, got)
}

func TestNormalizeWhitespace(t *testing.T) {
	require.Equal(t, "a b c", NormalizeWhitespace(" a\n\tb   c "))
}
