package classify

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"maizekg/internal/graph"
)

// Classification maps every distinct entity name of a batch to its type.
type Classification map[string]graph.EntityType

// TypeOf returns the assigned type, or Entity for names that were never classified.
func (c Classification) TypeOf(name string) graph.EntityType {
	if t, ok := c[name]; ok {
		return t
	}
	return graph.EntityGeneric
}

// Counts tallies names per type.
func (c Classification) Counts() map[graph.EntityType]int {
	out := make(map[graph.EntityType]int, len(graph.EntityTypes))
	for _, t := range c {
		out[t]++
	}
	return out
}

// SortedNames returns the classified names in lexical order.
// Restrict returns the entries of c for the names appearing in triples.
func (c Classification) Restrict(triples []graph.Triple) Classification {
	out := make(Classification)
	for _, n := range graph.Names(triples) {
		if t, ok := c[n]; ok {
			out[n] = t
		}
	}
	return out
}

func (c Classification) SortedNames() []string {
	names := make([]string, 0, len(c))
	for n := range c {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type Classifier struct {
	rules        []Rule
	contextPreds map[string]struct{}
	workers      int
}

type Option func(*Classifier)

// WithWorkers bounds the number of goroutines used by Classify. Values below 1
// mean sequential.
func WithWorkers(n int) Option {
	return func(c *Classifier) { c.workers = n }
}

func New(v Vocabulary, opts ...Option) *Classifier {
	preds := make(map[string]struct{}, len(v.TraitContextPredicates))
	for _, p := range v.TraitContextPredicates {
		preds[graph.NormalizePredicate(p)] = struct{}{}
	}
	c := &Classifier{rules: BuildRules(v), contextPreds: preds, workers: 1}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func NewDefault(opts ...Option) *Classifier {
	return New(DefaultVocabulary(), opts...)
}

// MatchName applies the name rules in order and reports the first hit.
func (c *Classifier) MatchName(name string) (graph.EntityType, string, bool) {
	for _, r := range c.rules {
		if r.Match(name) {
			return r.Type, r.Name, true
		}
	}
	return "", "", false
}

// Explain lists every rule that matches name, in table order. Only the first
// one decides the type.
func (c *Classifier) Explain(name string) []string {
	var hits []string
	for _, r := range c.rules {
		if r.Match(name) {
			hits = append(hits, r.Name)
		}
	}
	return hits
}

// TraitContext collects the objects of trait-bearing predicates across the batch.
func (c *Classifier) TraitContext(triples []graph.Triple) map[string]struct{} {
	out := make(map[string]struct{})
	for _, t := range triples {
		if _, ok := c.contextPreds[graph.NormalizePredicate(t.Predicate)]; ok {
			out[t.Object] = struct{}{}
		}
	}
	return out
}

// ClassifyName resolves a single name given the batch's trait context.
func (c *Classifier) ClassifyName(name string, traitCtx map[string]struct{}) graph.EntityType {
	if t, _, ok := c.MatchName(name); ok {
		return t
	}
	if _, ok := traitCtx[name]; ok {
		return graph.EntityTrait
	}
	return graph.EntityGeneric
}

// Classify assigns exactly one type to every distinct subject and object.
// The result does not depend on the worker count.
func (c *Classifier) Classify(ctx context.Context, triples []graph.Triple) (Classification, error) {
	traitCtx := c.TraitContext(triples)
	names := graph.Names(triples)
	types := make([]graph.EntityType, len(names))

	workers := c.workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(names) {
		workers = len(names)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	chunk := 256
	for start := 0; start < len(names); start += chunk {
		lo, hi := start, min(start+chunk, len(names))
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				types[i] = c.ClassifyName(names[i], traitCtx)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(Classification, len(names))
	for i, n := range names {
		out[n] = types[i]
	}
	return out, nil
}
