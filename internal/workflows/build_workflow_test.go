package workflows

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"maizekg/internal/activities"
	"maizekg/internal/graph"
	"maizekg/internal/storage"
	"maizekg/internal/summary"
	"maizekg/internal/upsert"
)

func registerActivityName[T any](env *testsuite.TestWorkflowEnvironment, name string, fn T) {
	env.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
}

type runLog struct {
	mu       sync.Mutex
	statuses []string
	last     storage.BuildRun
}

func (l *runLog) mark(_ context.Context, in activities.MarkBuildRunInput) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.statuses = append(l.statuses, in.Run.Status)
	l.last = in.Run
	return nil
}

func registerBuildActivities(env *testsuite.TestWorkflowEnvironment) {
	registerActivityName(env, "ReadTriplesActivity", func(context.Context, activities.ReadTriplesInput) (activities.ReadTriplesOutput, error) {
		return activities.ReadTriplesOutput{}, nil
	})
	registerActivityName(env, "ClassifyTriplesActivity", func(context.Context, activities.ClassifyTriplesInput) (activities.ClassifyTriplesOutput, error) {
		return activities.ClassifyTriplesOutput{}, nil
	})
	registerActivityName(env, "UpsertBatchActivity", func(context.Context, activities.UpsertBatchInput) (activities.UpsertBatchOutput, error) {
		return activities.UpsertBatchOutput{}, nil
	})
	registerActivityName(env, "SummarizeGraphActivity", func(context.Context, activities.SummarizeGraphInput) (activities.SummarizeGraphOutput, error) {
		return activities.SummarizeGraphOutput{}, nil
	})
	registerActivityName(env, "WriteReportActivity", func(context.Context, activities.WriteReportInput) (activities.WriteReportOutput, error) {
		return activities.WriteReportOutput{}, nil
	})
	registerActivityName(env, "MarkBuildRunActivity", func(context.Context, activities.MarkBuildRunInput) error { return nil })
}

func registerDirectoryActivities(env *testsuite.TestWorkflowEnvironment) {
	registerActivityName(env, "ListInputsActivity", func(context.Context, activities.ListInputsInput) (activities.ListInputsOutput, error) {
		return activities.ListInputsOutput{}, nil
	})
	registerActivityName(env, "ClassifyInputsActivity", func(context.Context, activities.ClassifyInputsInput) (activities.ClassifyInputsOutput, error) {
		return activities.ClassifyInputsOutput{}, nil
	})
}

func batchAt(offset int) any {
	return mock.MatchedBy(func(in activities.UpsertBatchInput) bool { return in.Offset == offset })
}

func TestBuildGraphWorkflowBatchesUpserts(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(BuildGraphWorkflow)
	registerBuildActivities(env)
	runs := &runLog{}

	env.OnActivity("MarkBuildRunActivity", mock.Anything, mock.Anything).Return(runs.mark)
	env.OnActivity("ReadTriplesActivity", mock.Anything, activities.ReadTriplesInput{RunID: "run-1", Path: "/in/triples.csv"}).
		Return(activities.ReadTriplesOutput{ArtifactPath: "/out/triples.jsonl", InputSHA256: "abc", Count: 3}, nil)
	env.OnActivity("ClassifyTriplesActivity", mock.Anything, mock.Anything).
		Return(activities.ClassifyTriplesOutput{ClassificationPath: "/out/classification.json", Counts: map[graph.EntityType]int{graph.EntityGene: 1, graph.EntityTrait: 1}}, nil)
	env.OnActivity("UpsertBatchActivity", mock.Anything, batchAt(0)).
		Return(activities.UpsertBatchOutput{Result: upsert.Result{Processed: 2, NodesCreated: 3, NodesExisting: 1, RelsCreated: 2}}, nil).Once()
	env.OnActivity("UpsertBatchActivity", mock.Anything, batchAt(2)).
		Return(activities.UpsertBatchOutput{Result: upsert.Result{Failures: []upsert.Failure{{Index: 0, Attempts: 3, Error: "down"}}}}, nil).Once()
	env.OnActivity("SummarizeGraphActivity", mock.Anything, mock.Anything).
		Return(activities.SummarizeGraphOutput{Report: summary.Report{TotalNodes: 3, TotalRelationships: 2}, Text: "ok"}, nil)
	env.OnActivity("WriteReportActivity", mock.Anything, mock.Anything).Return(activities.WriteReportOutput{}, nil)

	env.ExecuteWorkflow(BuildGraphWorkflow, BuildGraphInput{RunID: "run-1", Path: "/in/triples.csv", BatchSize: 2})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, storage.RunStatusCompleted, out)

	v, err := env.QueryWorkflow(QueryGetBuildProgress)
	require.NoError(t, err)
	var p BuildProgress
	require.NoError(t, v.Get(&p))
	require.Equal(t, 3, p.Total)
	require.Equal(t, 2, p.Upsert.Processed)
	require.Len(t, p.Upsert.Failures, 1)
	require.Equal(t, 2, p.Upsert.Failures[0].Index)
	require.Equal(t, "done", p.Steps["write_report"])
	require.NotNil(t, p.Report)
	require.Equal(t, 3, p.Report.TotalNodes)

	require.Equal(t, []string{storage.RunStatusRunning, storage.RunStatusCompleted}, runs.statuses)
	require.Equal(t, "abc", runs.last.InputSHA256)
	require.Equal(t, 3, runs.last.NodesCreated)
	require.Equal(t, 1, runs.last.Failures)
	env.AssertExpectations(t)
}

func TestBuildGraphWorkflowSchemaErrorFailsGracefully(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(BuildGraphWorkflow)
	registerBuildActivities(env)
	runs := &runLog{}

	env.OnActivity("MarkBuildRunActivity", mock.Anything, mock.Anything).Return(runs.mark)
	env.OnActivity("ReadTriplesActivity", mock.Anything, mock.Anything).
		Return(activities.ReadTriplesOutput{}, temporal.NewNonRetryableApplicationError("missing columns [object]", "SchemaError", nil))

	env.ExecuteWorkflow(BuildGraphWorkflow, BuildGraphInput{RunID: "run-2", Path: "/in/bad.csv"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, storage.RunStatusFailed, out)
	require.Equal(t, []string{storage.RunStatusRunning, storage.RunStatusFailed}, runs.statuses)
	require.Contains(t, runs.last.LastError, "missing columns")

	v, err := env.QueryWorkflow(QueryGetBuildProgress)
	require.NoError(t, err)
	var p BuildProgress
	require.NoError(t, v.Get(&p))
	require.Equal(t, "failed", p.Steps["read_triples"])
	require.Empty(t, p.Steps["upsert"])
}

func TestBuildGraphWorkflowEmptySourceSkipsUpsert(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(BuildGraphWorkflow)
	registerBuildActivities(env)

	upserted := false
	env.OnActivity("MarkBuildRunActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("ReadTriplesActivity", mock.Anything, mock.Anything).Return(activities.ReadTriplesOutput{ArtifactPath: "/out/t.jsonl"}, nil)
	env.OnActivity("UpsertBatchActivity", mock.Anything, mock.Anything).Return(func(context.Context, activities.UpsertBatchInput) (activities.UpsertBatchOutput, error) {
		upserted = true
		return activities.UpsertBatchOutput{}, nil
	})
	env.OnActivity("ClassifyTriplesActivity", mock.Anything, mock.Anything).Return(activities.ClassifyTriplesOutput{}, nil)
	env.OnActivity("SummarizeGraphActivity", mock.Anything, mock.Anything).Return(activities.SummarizeGraphOutput{}, nil)
	env.OnActivity("WriteReportActivity", mock.Anything, mock.Anything).Return(activities.WriteReportOutput{}, nil)

	env.ExecuteWorkflow(BuildGraphWorkflow, BuildGraphInput{Path: "/in/empty.csv"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, storage.RunStatusCompleted, out)
	require.False(t, upserted)
}

func TestBuildGraphWorkflowUpsertErrorMarksFailed(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(BuildGraphWorkflow)
	registerBuildActivities(env)
	runs := &runLog{}

	env.OnActivity("MarkBuildRunActivity", mock.Anything, mock.Anything).Return(runs.mark)
	env.OnActivity("ReadTriplesActivity", mock.Anything, mock.Anything).Return(activities.ReadTriplesOutput{ArtifactPath: "/out/t.jsonl", Count: 1}, nil)
	env.OnActivity("ClassifyTriplesActivity", mock.Anything, mock.Anything).Return(activities.ClassifyTriplesOutput{}, nil)
	env.OnActivity("UpsertBatchActivity", mock.Anything, mock.Anything).
		Return(activities.UpsertBatchOutput{}, temporal.NewNonRetryableApplicationError("store unreachable", "StoreError", errors.New("dial")))

	env.ExecuteWorkflow(BuildGraphWorkflow, BuildGraphInput{RunID: "run-3", Path: "/in/t.csv"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, storage.RunStatusFailed, out)
	require.Equal(t, storage.RunStatusFailed, runs.last.Status)
	require.Contains(t, runs.last.LastError, "upsert batch at 0")
}

func TestBuildDirectoryWorkflowRunsChildrenInOrder(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(BuildDirectoryWorkflow)
	env.RegisterWorkflow(BuildGraphWorkflow)
	registerDirectoryActivities(env)

	shared := "/out/runs/dir/classification.json"
	env.OnActivity("ListInputsActivity", mock.Anything, activities.ListInputsInput{InputDir: "/in"}).
		Return(activities.ListInputsOutput{Paths: []string{"/in/a.csv", "/in/b.pdf"}}, nil)
	env.OnActivity("ClassifyInputsActivity", mock.Anything, mock.MatchedBy(func(in activities.ClassifyInputsInput) bool {
		return len(in.Paths) == 2
	})).Return(activities.ClassifyInputsOutput{ClassificationPath: shared, Names: 5}, nil).Once()
	env.OnWorkflow(BuildGraphWorkflow, mock.Anything, mock.MatchedBy(func(in BuildGraphInput) bool {
		return in.Path == "/in/a.csv" && in.ClassificationPath == shared
	})).Return(storage.RunStatusCompleted, nil)
	env.OnWorkflow(BuildGraphWorkflow, mock.Anything, mock.MatchedBy(func(in BuildGraphInput) bool {
		return in.Path == "/in/b.pdf" && in.ClassificationPath == shared
	})).Return(storage.RunStatusFailed, nil)

	env.ExecuteWorkflow(BuildDirectoryWorkflow, BuildDirectoryInput{InputDir: "/in"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	v, err := env.QueryWorkflow(QueryGetDirectoryProgress)
	require.NoError(t, err)
	var p DirectoryProgress
	require.NoError(t, v.Get(&p))
	require.Equal(t, 2, p.Total)
	require.Equal(t, 2, p.Done)
	require.Equal(t, 1, p.Failed)
	require.Equal(t, storage.RunStatusCompleted, p.PerFile["/in/a.csv"])
	require.Equal(t, storage.RunStatusFailed, p.PerFile["/in/b.pdf"])
	require.Contains(t, p.Children["/in/b.pdf"], "b-pdf")
	env.AssertExpectations(t)
}

func TestBuildDirectoryWorkflowEmptyDirectory(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(BuildDirectoryWorkflow)
	env.RegisterWorkflow(BuildGraphWorkflow)
	registerDirectoryActivities(env)
	classified := false

	env.OnActivity("ListInputsActivity", mock.Anything, mock.Anything).Return(activities.ListInputsOutput{}, nil)
	env.OnActivity("ClassifyInputsActivity", mock.Anything, mock.Anything).Return(func(context.Context, activities.ClassifyInputsInput) (activities.ClassifyInputsOutput, error) {
		classified = true
		return activities.ClassifyInputsOutput{}, nil
	})

	env.ExecuteWorkflow(BuildDirectoryWorkflow, BuildDirectoryInput{InputDir: "/empty"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, storage.RunStatusCompleted, out)
	require.False(t, classified)
}

func TestBuildGraphWorkflowPassesSharedClassification(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(BuildGraphWorkflow)
	registerBuildActivities(env)

	env.OnActivity("MarkBuildRunActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("ReadTriplesActivity", mock.Anything, mock.Anything).Return(activities.ReadTriplesOutput{ArtifactPath: "/out/t.jsonl"}, nil)
	env.OnActivity("ClassifyTriplesActivity", mock.Anything, activities.ClassifyTriplesInput{RunID: "run-6", ArtifactPath: "/out/t.jsonl", Base: "/out/shared.json"}).
		Return(activities.ClassifyTriplesOutput{}, nil).Once()
	env.OnActivity("SummarizeGraphActivity", mock.Anything, mock.Anything).Return(activities.SummarizeGraphOutput{}, nil)
	env.OnActivity("WriteReportActivity", mock.Anything, mock.Anything).Return(activities.WriteReportOutput{}, nil)

	env.ExecuteWorkflow(BuildGraphWorkflow, BuildGraphInput{RunID: "run-6", Path: "/in/t.csv", ClassificationPath: "/out/shared.json"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	env.AssertExpectations(t)
}

func TestBuildGraphWorkflowCompletesWhenRunRecordFails(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(BuildGraphWorkflow)
	registerBuildActivities(env)

	env.OnActivity("MarkBuildRunActivity", mock.Anything, mock.Anything).
		Return(temporal.NewNonRetryableApplicationError("invalid input syntax", "StoreError", nil))
	env.OnActivity("ReadTriplesActivity", mock.Anything, mock.Anything).Return(activities.ReadTriplesOutput{ArtifactPath: "/out/t.jsonl"}, nil)
	env.OnActivity("ClassifyTriplesActivity", mock.Anything, mock.Anything).Return(activities.ClassifyTriplesOutput{}, nil)
	env.OnActivity("SummarizeGraphActivity", mock.Anything, mock.Anything).Return(activities.SummarizeGraphOutput{}, nil)
	env.OnActivity("WriteReportActivity", mock.Anything, mock.Anything).Return(activities.WriteReportOutput{}, nil)

	env.ExecuteWorkflow(BuildGraphWorkflow, BuildGraphInput{RunID: "run-7", Path: "/in/t.csv"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, storage.RunStatusCompleted, out)
}

func TestSanitizeID(t *testing.T) {
	require.Equal(t, "maize-traits-csv", sanitizeID(" Maize Traits.csv "))
	require.Equal(t, "input", sanitizeID("..."))
}
