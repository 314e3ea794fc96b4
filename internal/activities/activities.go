package activities

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.temporal.io/sdk/temporal"

	"maizekg/internal/classify"
	"maizekg/internal/config"
	"maizekg/internal/graph"
	"maizekg/internal/logger"
	"maizekg/internal/metrics"
	"maizekg/internal/pipeline"
	"maizekg/internal/source"
	"maizekg/internal/storage"
	"maizekg/internal/summary"
	"maizekg/internal/upsert"
	"maizekg/internal/util"
)

const (
	triplesArtifact        = "triples.jsonl"
	classificationArtifact = "classification.json"
	reportArtifact         = "report.json"
	reportTextArtifact     = "report.txt"
	upsertArtifact         = "upsert.json"
)

type Activities struct {
	cfg        config.Config
	classifier *classify.Classifier
	metrics    *metrics.Metrics

	mu     sync.Mutex
	stores map[string]storage.GraphStore
}

// New builds the activity set. store serves cfg.GraphURL; other graph URLs
// named by workflow inputs are opened on first use.
func New(cfg config.Config, store storage.GraphStore, m *metrics.Metrics) (*Activities, error) {
	c, err := pipeline.NewClassifier(cfg)
	if err != nil {
		return nil, err
	}
	return &Activities{
		cfg:        cfg,
		classifier: c,
		metrics:    m,
		stores:     map[string]storage.GraphStore{cfg.GraphURL: store},
	}, nil
}

func (a *Activities) storeFor(ctx context.Context, url string) (storage.GraphStore, error) {
	if url == "" {
		url = a.cfg.GraphURL
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.stores[url]; ok {
		return s, nil
	}
	s, err := storage.Open(ctx, url, pipeline.StoreOptions(a.cfg))
	if err != nil {
		return nil, err
	}
	a.stores[url] = s
	return s, nil
}

// Close releases every store opened by the activities.
func (a *Activities) Close(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for url, s := range a.stores {
		if err := s.Close(ctx); err != nil {
			logger.Warn("close graph store", "graph", storage.Redact(url), "err", err)
		}
	}
}

func (a *Activities) runDir(runID string) string {
	return filepath.Join(a.cfg.DataOutRoot, "runs", runID)
}

func (a *Activities) ListInputsActivity(_ context.Context, in ListInputsInput) (ListInputsOutput, error) {
	entries, err := os.ReadDir(in.InputDir)
	if err != nil {
		return ListInputsOutput{}, fmt.Errorf("read input dir: %w", err)
	}
	paths := make([]string, 0)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".csv", ".json", ".pdf", ".txt":
			paths = append(paths, filepath.Join(in.InputDir, e.Name()))
		}
	}
	sort.Strings(paths)
	return ListInputsOutput{Paths: paths}, nil
}

func (a *Activities) ReadTriplesActivity(ctx context.Context, in ReadTriplesInput) (ReadTriplesOutput, error) {
	src, err := source.Open(in.Path)
	if err != nil {
		return ReadTriplesOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), "UnsupportedSource", err)
	}
	triples, stats, err := source.Collect(ctx, src)
	if err != nil {
		var se *source.SchemaError
		if errors.As(err, &se) || errors.Is(err, util.ErrNoExtractableText) {
			return ReadTriplesOutput{Stats: stats}, temporal.NewNonRetryableApplicationError(err.Error(), "SchemaError", err)
		}
		return ReadTriplesOutput{Stats: stats}, err
	}
	if a.metrics != nil {
		a.metrics.RecordRowsSkipped(stats.SkippedCount())
	}
	rows := make([]any, len(triples))
	for i, t := range triples {
		rows[i] = t
	}
	path := filepath.Join(a.runDir(in.RunID), triplesArtifact)
	if err := util.WriteJSONLinesAtomic(path, rows); err != nil {
		return ReadTriplesOutput{}, err
	}
	sum, err := util.SHA256File(in.Path)
	if err != nil {
		return ReadTriplesOutput{}, err
	}
	return ReadTriplesOutput{ArtifactPath: path, InputSHA256: sum, Count: len(triples), Stats: stats}, nil
}

func (a *Activities) ClassifyTriplesActivity(ctx context.Context, in ClassifyTriplesInput) (ClassifyTriplesOutput, error) {
	triples, err := readTriples(in.ArtifactPath)
	if err != nil {
		return ClassifyTriplesOutput{}, err
	}
	var cls classify.Classification
	if in.Base != "" {
		base, err := readClassification(in.Base)
		if err != nil {
			return ClassifyTriplesOutput{}, err
		}
		cls = base.Restrict(triples)
		if len(cls) != len(graph.Names(triples)) {
			return ClassifyTriplesOutput{}, temporal.NewNonRetryableApplicationError(
				"base classification does not cover every name of the input", "ClassificationMismatch", nil)
		}
	} else {
		cls, err = a.classifier.Classify(ctx, triples)
		if err != nil {
			return ClassifyTriplesOutput{}, err
		}
	}
	path := filepath.Join(a.runDir(in.RunID), classificationArtifact)
	if err := util.WriteJSONAtomic(path, cls); err != nil {
		return ClassifyTriplesOutput{}, err
	}
	return ClassifyTriplesOutput{ClassificationPath: path, Counts: cls.Counts()}, nil
}

// ClassifyInputsActivity classifies the union of several inputs so that a
// directory build assigns each name one type across all of its files.
// Inputs that cannot be read are left to fail in their own build.
func (a *Activities) ClassifyInputsActivity(ctx context.Context, in ClassifyInputsInput) (ClassifyInputsOutput, error) {
	var union []graph.Triple
	out := ClassifyInputsOutput{}
	for _, path := range in.Paths {
		src, err := source.Open(path)
		if err != nil {
			out.Unreadable++
			logger.Warn("classify inputs: skip", "path", path, "err", err)
			continue
		}
		triples, _, err := source.Collect(ctx, src)
		if err != nil {
			if ctx.Err() != nil {
				return ClassifyInputsOutput{}, ctx.Err()
			}
			out.Unreadable++
			logger.Warn("classify inputs: skip", "path", path, "err", err)
			continue
		}
		union = append(union, triples...)
	}
	cls, err := a.classifier.Classify(ctx, union)
	if err != nil {
		return ClassifyInputsOutput{}, err
	}
	out.ClassificationPath = filepath.Join(a.runDir(in.RunID), classificationArtifact)
	out.Names = len(cls)
	if err := util.WriteJSONAtomic(out.ClassificationPath, cls); err != nil {
		return ClassifyInputsOutput{}, err
	}
	return out, nil
}

func (a *Activities) UpsertBatchActivity(ctx context.Context, in UpsertBatchInput) (UpsertBatchOutput, error) {
	store, err := a.storeFor(ctx, in.Graph)
	if err != nil {
		return UpsertBatchOutput{}, err
	}
	triples, err := readTriples(in.ArtifactPath)
	if err != nil {
		return UpsertBatchOutput{}, err
	}
	cls, err := readClassification(in.ClassificationPath)
	if err != nil {
		return UpsertBatchOutput{}, err
	}
	lo := min(max(in.Offset, 0), len(triples))
	hi := len(triples)
	if in.Limit > 0 {
		hi = min(lo+in.Limit, len(triples))
	}

	var opts []upsert.Option
	if a.metrics != nil {
		opts = append(opts, upsert.WithObserver(a.metrics))
	}
	res := upsert.New(store, pipeline.UpsertConfig(a.cfg), opts...).Run(ctx, triples[lo:hi], cls)
	if res.Canceled {
		return UpsertBatchOutput{Result: res}, ctx.Err()
	}
	return UpsertBatchOutput{Result: res}, nil
}

func (a *Activities) SummarizeGraphActivity(ctx context.Context, in SummarizeGraphInput) (SummarizeGraphOutput, error) {
	store, err := a.storeFor(ctx, in.Graph)
	if err != nil {
		return SummarizeGraphOutput{}, err
	}
	snap, err := store.Snapshot(ctx)
	if err != nil {
		return SummarizeGraphOutput{}, fmt.Errorf("snapshot graph: %w", err)
	}
	r := summary.Build(snap)
	if a.metrics != nil {
		a.metrics.RecordReport(r)
	}
	return SummarizeGraphOutput{Report: r, Text: r.Text()}, nil
}

func (a *Activities) WriteReportActivity(_ context.Context, in WriteReportInput) (WriteReportOutput, error) {
	dir := a.runDir(in.RunID)
	out := WriteReportOutput{
		ReportPath: filepath.Join(dir, reportArtifact),
		TextPath:   filepath.Join(dir, reportTextArtifact),
	}
	if err := util.WriteJSONAtomic(out.ReportPath, in.Report); err != nil {
		return WriteReportOutput{}, err
	}
	if err := util.WriteTextAtomic(out.TextPath, in.Text); err != nil {
		return WriteReportOutput{}, err
	}
	if err := util.WriteJSONAtomic(filepath.Join(dir, upsertArtifact), in.Upsert); err != nil {
		return WriteReportOutput{}, err
	}
	return out, nil
}

func (a *Activities) MarkBuildRunActivity(ctx context.Context, in MarkBuildRunInput) error {
	store, err := a.storeFor(ctx, in.Graph)
	if err != nil {
		return err
	}
	if in.Run.Status == storage.RunStatusCompleted || in.Run.Status == storage.RunStatusFailed {
		if a.metrics != nil {
			a.metrics.RecordBuild(in.Run.Status)
		}
	}
	rec, ok := store.(storage.RunRecorder)
	if !ok {
		logger.Debug("build run not recorded", "run_id", in.Run.RunID, "reason", util.ErrBuildRunNotTracked)
		return nil
	}
	return rec.UpsertBuildRun(ctx, in.Run)
}

func readTriples(path string) ([]graph.Triple, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open triples artifact: %w", err)
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	out := make([]graph.Triple, 0, 256)
	for {
		var t graph.Triple
		err := dec.Decode(&t)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode triples artifact: %w", err)
		}
		out = append(out, t)
	}
}

func readClassification(path string) (classify.Classification, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read classification artifact: %w", err)
	}
	var cls classify.Classification
	if err := json.Unmarshal(b, &cls); err != nil {
		return nil, fmt.Errorf("decode classification artifact: %w", err)
	}
	return cls, nil
}
