// Package upsert writes classified triples into a graph store.
package upsert

import (
	"context"
	"fmt"
	"time"

	"maizekg/internal/classify"
	"maizekg/internal/graph"
	"maizekg/internal/logger"
	"maizekg/internal/retry"
	"maizekg/internal/storage"
)

// Outcomes reported to an Observer.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

// Observer receives one call per attempted triple.
type Observer interface {
	ObserveTriple(outcome string, attempts int, elapsed time.Duration)
}

type Config struct {
	Retry retry.Config
	// StoreTimeout bounds each store call. Zero means no per-call deadline.
	StoreTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{Retry: retry.DefaultConfig(), StoreTimeout: 30 * time.Second}
}

// Failure is a triple that could not be written after all attempts.
type Failure struct {
	Index    int          `json:"index"`
	Triple   graph.Triple `json:"triple"`
	Attempts int          `json:"attempts"`
	Error    string       `json:"error"`
	Err      error        `json:"-"`
}

type Result struct {
	Processed     int       `json:"processed"`
	NodesCreated  int       `json:"nodes_created"`
	NodesExisting int       `json:"nodes_existing"`
	RelsCreated   int       `json:"relationships_created"`
	RelsExisting  int       `json:"relationships_existing"`
	Failures      []Failure `json:"failures,omitempty"`
	// Canceled is set when the context ended before every triple was attempted.
	Canceled  bool `json:"canceled,omitempty"`
	Remaining int  `json:"remaining,omitempty"`
}

// Add folds another batch result into r. Failure indexes of other are shifted by offset.
func (r *Result) Add(other Result, offset int) {
	r.Processed += other.Processed
	r.NodesCreated += other.NodesCreated
	r.NodesExisting += other.NodesExisting
	r.RelsCreated += other.RelsCreated
	r.RelsExisting += other.RelsExisting
	for _, f := range other.Failures {
		f.Index += offset
		r.Failures = append(r.Failures, f)
	}
	r.Canceled = r.Canceled || other.Canceled
	r.Remaining += other.Remaining
}

type Upserter struct {
	store    storage.GraphStore
	cfg      Config
	observer Observer
}

type Option func(*Upserter)

func WithObserver(o Observer) Option {
	return func(u *Upserter) { u.observer = o }
}

func New(store storage.GraphStore, cfg Config, opts ...Option) *Upserter {
	u := &Upserter{store: store, cfg: cfg}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *Upserter) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if u.cfg.StoreTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, u.cfg.StoreTimeout)
}

// UpsertNode creates the node (t, name) if absent.
func (u *Upserter) UpsertNode(ctx context.Context, t graph.EntityType, name string) (string, bool, error) {
	cctx, cancel := u.callCtx(ctx)
	defer cancel()
	return u.store.UpsertNode(cctx, t, name)
}

// UpsertRelationship upserts both endpoints and the edge typed by the
// normalized predicate. An existing edge gets props merged last-write-wins.
func (u *Upserter) UpsertRelationship(ctx context.Context, subjectType graph.EntityType, subjectName, predicate string,
	objectType graph.EntityType, objectName string, props map[string]any) (bool, error) {
	cctx, cancel := u.callCtx(ctx)
	defer cancel()
	return u.store.UpsertRelationship(cctx, graph.Relationship{
		From:       graph.Node{Type: subjectType, Name: subjectName},
		Type:       graph.NormalizePredicate(predicate),
		To:         graph.Node{Type: objectType, Name: objectName},
		Properties: props,
	})
}

type tripleOutcome struct {
	subjectCreated bool
	objectCreated  bool
	relCreated     bool
}

// writeTriple performs one attempt. Created flags accumulate across attempts
// so a retry does not report a node made by an earlier attempt as existing.
func (u *Upserter) writeTriple(ctx context.Context, t graph.Triple, cls classify.Classification, out *tripleOutcome) error {
	st, ot := cls.TypeOf(t.Subject), cls.TypeOf(t.Object)
	_, created, err := u.UpsertNode(ctx, st, t.Subject)
	if err != nil {
		return err
	}
	out.subjectCreated = out.subjectCreated || created
	_, created, err = u.UpsertNode(ctx, ot, t.Object)
	if err != nil {
		return err
	}
	out.objectCreated = out.objectCreated || created
	created, err = u.UpsertRelationship(ctx, st, t.Subject, t.Predicate, ot, t.Object, t.Properties)
	if err != nil {
		return err
	}
	out.relCreated = out.relCreated || created
	return nil
}

// Run writes triples in input order. Transient store errors are retried with
// backoff; other errors fail the triple at once. A failed triple is recorded
// and the batch continues. When ctx ends, the remaining triples are left
// unattempted and reported.
func (u *Upserter) Run(ctx context.Context, triples []graph.Triple, cls classify.Classification) Result {
	var res Result
	for i, t := range triples {
		if ctx.Err() != nil {
			res.Canceled = true
			res.Remaining = len(triples) - i
			logger.Warn("upsert canceled", "remaining", res.Remaining)
			return res
		}

		var out tripleOutcome
		start := time.Now()
		attempts, err := retry.Do(ctx, u.cfg.Retry, func() error {
			err := u.writeTriple(ctx, t, cls, &out)
			if err != nil && !storage.IsTransient(err) {
				return retry.Permanent(err)
			}
			return err
		}, func(err error, wait time.Duration) {
			logger.Warn("transient store error, retrying", "subject", t.Subject, "object", t.Object, "wait", wait, "err", err)
		})

		if err != nil && ctx.Err() != nil {
			res.Canceled = true
			res.Remaining = len(triples) - i
			logger.Warn("upsert canceled", "remaining", res.Remaining)
			return res
		}

		res.Processed++
		if err != nil {
			res.Failures = append(res.Failures, Failure{
				Index:    i,
				Triple:   t,
				Attempts: attempts,
				Error:    err.Error(),
				Err:      err,
			})
			logger.Error("triple failed", "index", i, "subject", t.Subject, "predicate", t.Predicate,
				"object", t.Object, "attempts", attempts, "err", err)
			u.observe(OutcomeFailed, attempts, time.Since(start))
			continue
		}
		tally(&res.NodesCreated, &res.NodesExisting, out.subjectCreated)
		tally(&res.NodesCreated, &res.NodesExisting, out.objectCreated)
		tally(&res.RelsCreated, &res.RelsExisting, out.relCreated)
		u.observe(OutcomeOK, attempts, time.Since(start))
	}
	return res
}

func (u *Upserter) observe(outcome string, attempts int, d time.Duration) {
	if u.observer != nil {
		u.observer.ObserveTriple(outcome, attempts, d)
	}
}

func tally(created, existing *int, wasCreated bool) {
	if wasCreated {
		*created++
		return
	}
	*existing++
}

// Summary renders the run line printed by the CLI.
func (r Result) Summary() string {
	s := fmt.Sprintf("processed=%d nodes_created=%d nodes_existing=%d relationships_created=%d relationships_existing=%d failed=%d",
		r.Processed, r.NodesCreated, r.NodesExisting, r.RelsCreated, r.RelsExisting, len(r.Failures))
	if r.Canceled {
		s += fmt.Sprintf(" canceled remaining=%d", r.Remaining)
	}
	return s
}
