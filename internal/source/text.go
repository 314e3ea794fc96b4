package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"maizekg/internal/graph"
	"maizekg/internal/util"
)

// maxEntityWords bounds how much of a clause can be taken as an entity name.
const maxEntityWords = 6

const maxEvidenceLen = 300

type sentencePattern struct {
	re  *regexp.Regexp
	rel string
}

// Patterns are tried in order; the first match per sentence wins.
var sentencePatterns = []sentencePattern{
	{regexp.MustCompile(`(?i)^(.+?)\s+(?:is|was|are|were)\s+located\s+on\s+(.+)$`), graph.RelLocatedOn},
	{regexp.MustCompile(`(?i)^(.+?)\s+(?:is|was|are|were)\s+(?:significantly\s+)?associated\s+with\s+(.+)$`), graph.RelAssociatedWith},
	{regexp.MustCompile(`(?i)^(.+?)\s+(?:is|was|are|were)\s+tested\s+in\s+(.+)$`), graph.RelTestedIn},
	{regexp.MustCompile(`(?i)^(.+?)\s+(?:is|was|are|were)\s+conducted\s+in\s+(.+)$`), graph.RelConductedIn},
	{regexp.MustCompile(`(?i)^(.+?)\s+(?:participates|participate)\s+in\s+(.+)$`), graph.RelParticipatesIn},
	{regexp.MustCompile(`(?i)^(.+?)\s+(?:carries|carry|contains|contain|has|have)\s+(?:the\s+)?marker\s+(.+)$`), graph.RelHasMarker},
	{regexp.MustCompile(`(?i)^(.+?)\s+(?:has|have)\s+(?:the\s+)?trait\s+(.+)$`), graph.RelHasTrait},
	{regexp.MustCompile(`(?i)^(.+?)\s+(?:exhibits|exhibit|shows|show)\s+(?:enhanced\s+|improved\s+|increased\s+)?(.+)$`), graph.RelHasTrait},
	{regexp.MustCompile(`(?i)^(.+?)\s+(?:positively\s+|negatively\s+)?(?:regulates|regulate|controls|control)\s+(.+)$`), graph.RelRegulates},
}

var leadingArticle = regexp.MustCompile(`(?i)^(the|a|an)\s+`)

// ExtractTriples finds explicit relation statements in free text. Each sentence
// yields at most one triple. Sentences whose clauses are too long to be entity
// names are ignored.
func ExtractTriples(text, sourceTag string) []graph.Triple {
	var out []graph.Triple
	for _, sentence := range util.SplitSentences(util.NormalizeWhitespace(text)) {
		body := strings.TrimRight(sentence, ".!?;: ")
		for _, p := range sentencePatterns {
			m := p.re.FindStringSubmatch(body)
			if m == nil {
				continue
			}
			subj, obj := cleanEntity(m[1]), cleanEntity(m[2])
			if subj == "" || obj == "" {
				break
			}
			props := map[string]any{graph.PropEvidence: truncate(sentence, maxEvidenceLen)}
			if sourceTag != "" {
				props[graph.PropSource] = sourceTag
			}
			out = append(out, graph.Triple{Subject: subj, Predicate: p.rel, Object: obj, Properties: props})
			break
		}
	}
	return out
}

func cleanEntity(s string) string {
	s = strings.Trim(strings.TrimSpace(s), ",;:()\"'")
	s = leadingArticle.ReplaceAllString(s, "")
	if s == "" || len(strings.Fields(s)) > maxEntityWords {
		return ""
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// TextSource applies the sentence patterns to a plain-text file.
type TextSource struct {
	path string
}

func NewText(path string) *TextSource {
	return &TextSource{path: path}
}

func (s *TextSource) Name() string { return s.path }

func (s *TextSource) Read(ctx context.Context, yield Yield) (ReadStats, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return ReadStats{}, fmt.Errorf("read text: %w", err)
	}
	return readText(ctx, util.SanitizeText(string(b)), filepath.Base(s.path), yield)
}

func readText(ctx context.Context, text, tag string, yield Yield) (ReadStats, error) {
	triples := ExtractTriples(text, tag)
	stats := ReadStats{Rows: len(util.SplitSentences(util.NormalizeWhitespace(text)))}
	return emitAll(ctx, triples, stats, yield)
}
