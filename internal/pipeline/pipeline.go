// Package pipeline runs one graph build: read, classify, upsert, summarize.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"maizekg/internal/classify"
	"maizekg/internal/config"
	"maizekg/internal/graph"
	"maizekg/internal/logger"
	"maizekg/internal/metrics"
	"maizekg/internal/retry"
	"maizekg/internal/source"
	"maizekg/internal/storage"
	"maizekg/internal/summary"
	"maizekg/internal/upsert"
	"maizekg/internal/util"
)

// NewClassifier builds the classifier from config, applying the vocabulary file if set.
func NewClassifier(cfg config.Config) (*classify.Classifier, error) {
	vocab := classify.DefaultVocabulary()
	if cfg.VocabularyFile != "" {
		v, err := classify.LoadVocabulary(cfg.VocabularyFile)
		if err != nil {
			return nil, err
		}
		vocab = v
	}
	return classify.New(vocab, classify.WithWorkers(cfg.ClassifyWorkers)), nil
}

func UpsertConfig(cfg config.Config) upsert.Config {
	return upsert.Config{
		Retry: retry.Config{
			MaxAttempts:  cfg.MaxAttempts,
			InitialDelay: cfg.RetryInitial,
			MaxDelay:     cfg.RetryMax,
			Multiplier:   2.0,
		},
		StoreTimeout: cfg.StoreTimeout,
	}
}

func StoreOptions(cfg config.Config) storage.Options {
	return storage.Options{
		Neo4jUser:     cfg.Neo4jUser,
		Neo4jPassword: cfg.Neo4jPassword,
		Neo4jDatabase: cfg.Neo4jDatabase,
	}
}

type Pipeline struct {
	store      storage.GraphStore
	classifier *classify.Classifier
	upserter   *upsert.Upserter
	metrics    *metrics.Metrics
}

// New wires a pipeline over store. m may be nil.
func New(store storage.GraphStore, c *classify.Classifier, ucfg upsert.Config, m *metrics.Metrics) *Pipeline {
	var opts []upsert.Option
	if m != nil {
		opts = append(opts, upsert.WithObserver(m))
	}
	return &Pipeline{
		store:      store,
		classifier: c,
		upserter:   upsert.New(store, ucfg, opts...),
		metrics:    m,
	}
}

type BuildResult struct {
	RunID          string                   `json:"run_id"`
	Input          string                   `json:"input"`
	Status         string                   `json:"status"`
	Read           source.ReadStats         `json:"read"`
	Classification map[graph.EntityType]int `json:"classification"`
	Upsert         upsert.Result            `json:"upsert"`
	Report         summary.Report           `json:"report"`
	Duration       time.Duration            `json:"duration"`
}

// Summary is the one-line run summary printed after a build.
func (b BuildResult) Summary() string {
	return fmt.Sprintf("%s rows_skipped=%d", b.Upsert.Summary(), b.Read.SkippedCount())
}

// Build reads src to the end, classifies every name, upserts the triples and
// reports on the resulting graph. Malformed rows and failed triples are
// counted; only schema, read, classification and snapshot errors abort.
func (p *Pipeline) Build(ctx context.Context, src source.Source) (BuildResult, error) {
	results, err := p.BuildAll(ctx, []source.Source{src})
	return results[0], err
}

// BuildAll builds several inputs as one run of the classifier: every source is
// read first and the union of their triples is classified once, so a name
// gets the same type whichever input it appears in. Each input keeps its own
// build run. Results are in input order; failed inputs carry their run ID.
func (p *Pipeline) BuildAll(ctx context.Context, srcs []source.Source) ([]BuildResult, error) {
	builds := make([]*build, len(srcs))
	var errs []error
	var union []graph.Triple
	for i, src := range srcs {
		b := p.begin(ctx, src)
		builds[i] = b
		triples, stats, err := source.Collect(ctx, src)
		b.res.Read = stats
		b.run.RowsSkipped = stats.SkippedCount()
		if p.metrics != nil {
			p.metrics.RecordRowsSkipped(stats.SkippedCount())
		}
		if err != nil {
			errs = append(errs, b.fail(ctx, fmt.Errorf("read %s: %w", src.Name(), err)))
			continue
		}
		b.triples = triples
		union = append(union, triples...)
	}

	live := make([]*build, 0, len(builds))
	for _, b := range builds {
		if !b.done {
			live = append(live, b)
		}
	}
	if len(live) > 0 {
		cls, err := p.classifier.Classify(ctx, union)
		if err != nil {
			for _, b := range live {
				errs = append(errs, b.fail(ctx, fmt.Errorf("classify: %w", err)))
			}
		} else {
			logger.Debug("classified names", "inputs", len(live), "names", len(cls))
			for _, b := range live {
				if err := p.upsert(ctx, b, cls); err != nil {
					errs = append(errs, err)
				}
			}
		}
	}

	results := make([]BuildResult, len(builds))
	for i, b := range builds {
		results[i] = b.res
	}
	return results, errors.Join(errs...)
}

type build struct {
	p       *Pipeline
	start   time.Time
	res     BuildResult
	run     storage.BuildRun
	triples []graph.Triple
	done    bool
}

func (p *Pipeline) begin(ctx context.Context, src source.Source) *build {
	b := &build{p: p, start: time.Now(), res: BuildResult{RunID: uuid.NewString(), Input: src.Name(), Status: storage.RunStatusRunning}}
	b.run = storage.BuildRun{RunID: b.res.RunID, InputPath: src.Name(), Status: storage.RunStatusRunning}
	if sum, err := util.SHA256File(src.Name()); err == nil {
		b.run.InputSHA256 = sum
	}
	p.recordRun(ctx, b.run)
	logger.Info("build started", "run_id", b.res.RunID, "input", src.Name())
	return b
}

func (b *build) fail(ctx context.Context, err error) error {
	b.done = true
	b.res.Status = storage.RunStatusFailed
	b.run.Status = storage.RunStatusFailed
	b.run.LastError = err.Error()
	b.p.recordRun(context.WithoutCancel(ctx), b.run)
	b.p.recordBuild(storage.RunStatusFailed)
	logger.Error("build failed", "run_id", b.res.RunID, "err", err)
	return fmt.Errorf("%s: %w", b.res.Input, err)
}

func (p *Pipeline) upsert(ctx context.Context, b *build, cls classify.Classification) error {
	if ctx.Err() != nil {
		return b.fail(ctx, fmt.Errorf("build canceled before upsert: %w", ctx.Err()))
	}
	b.res.Classification = cls.Restrict(b.triples).Counts()
	b.res.Upsert = p.upserter.Run(ctx, b.triples, cls)
	b.run.Processed = b.res.Upsert.Processed
	b.run.NodesCreated, b.run.NodesExisting = b.res.Upsert.NodesCreated, b.res.Upsert.NodesExisting
	b.run.RelsCreated, b.run.RelsExisting = b.res.Upsert.RelsCreated, b.res.Upsert.RelsExisting
	b.run.Failures = len(b.res.Upsert.Failures)
	if b.res.Upsert.Canceled {
		return b.fail(ctx, fmt.Errorf("upsert canceled with %d triples remaining: %w", b.res.Upsert.Remaining, ctx.Err()))
	}

	report, err := p.Report(ctx)
	if err != nil {
		return b.fail(ctx, err)
	}
	b.res.Report = report
	b.res.Duration = time.Since(b.start)

	b.done = true
	b.res.Status = storage.RunStatusCompleted
	b.run.Status = storage.RunStatusCompleted
	p.recordRun(ctx, b.run)
	p.recordBuild(storage.RunStatusCompleted)
	logger.Info("build finished", "run_id", b.res.RunID, "summary", b.res.Summary(), "duration", b.res.Duration)
	return nil
}

// Report summarizes the store's current graph.
func (p *Pipeline) Report(ctx context.Context) (summary.Report, error) {
	snap, err := p.store.Snapshot(ctx)
	if err != nil {
		return summary.Report{}, fmt.Errorf("snapshot graph: %w", err)
	}
	r := summary.Build(snap)
	if p.metrics != nil {
		p.metrics.RecordReport(r)
	}
	return r, nil
}

// Export writes the graph CSV files into dir.
func (p *Pipeline) Export(ctx context.Context, dir string) (string, string, error) {
	snap, err := p.store.Snapshot(ctx)
	if err != nil {
		return "", "", fmt.Errorf("snapshot graph: %w", err)
	}
	return summary.ExportCSV(snap, dir)
}

func (p *Pipeline) recordRun(ctx context.Context, run storage.BuildRun) {
	rec, ok := p.store.(storage.RunRecorder)
	if !ok {
		return
	}
	if err := rec.UpsertBuildRun(ctx, run); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("record build run", "run_id", run.RunID, "err", err)
	}
}

func (p *Pipeline) recordBuild(status string) {
	if p.metrics != nil {
		p.metrics.RecordBuild(status)
	}
}
