package workflows

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"maizekg/internal/activities"
	"maizekg/internal/storage"
)

const (
	QueryGetBuildProgress     = "GetBuildProgress"
	QueryGetDirectoryProgress = "GetDirectoryProgress"

	defaultBatchSize = 500
)

// BuildGraphWorkflow reads one triple source, classifies its entities and
// upserts the triples in batches, then summarizes the graph. Failures mark
// the build run failed and end the workflow with status "failed".
func BuildGraphWorkflow(ctx workflow.Context, input BuildGraphInput) (string, error) {
	runID := input.RunID
	if runID == "" {
		runID = workflow.GetInfo(ctx).WorkflowExecution.ID
	}
	progress := BuildProgress{
		RunID:  runID,
		Path:   input.Path,
		Status: storage.RunStatusRunning,
		Steps:  map[string]string{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetBuildProgress, func() (BuildProgress, error) {
		return progress, nil
	}); err != nil {
		return "", err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	run := storage.BuildRun{
		RunID:     runID,
		InputPath: input.Path,
		Status:    storage.RunStatusRunning,
		StartedAt: workflow.Now(ctx),
	}
	markRun := func() {
		err := workflow.ExecuteActivity(ctx, "MarkBuildRunActivity", activities.MarkBuildRunInput{Graph: input.Graph, Run: run}).Get(ctx, nil)
		if err != nil {
			workflow.GetLogger(ctx).Warn("record build run failed", "run_id", runID, "status", run.Status, "err", err)
		}
	}
	fail := func(err error) (string, error) {
		progress.Status = storage.RunStatusFailed
		progress.FailReason = err.Error()
		progress.Steps[progress.CurrentStep] = "failed"
		run.Status = storage.RunStatusFailed
		run.LastError = err.Error()
		markRun()
		workflow.GetLogger(ctx).Error("build failed", "run_id", runID, "step", progress.CurrentStep, "err", err)
		return progress.Status, nil
	}
	step := func(name string) {
		if progress.CurrentStep != "" {
			progress.Steps[progress.CurrentStep] = "done"
		}
		progress.CurrentStep = name
		progress.Steps[name] = "processing"
	}
	markRun()

	step("read_triples")
	var readOut activities.ReadTriplesOutput
	if err := workflow.ExecuteActivity(ctx, "ReadTriplesActivity", activities.ReadTriplesInput{RunID: runID, Path: input.Path}).Get(ctx, &readOut); err != nil {
		return fail(err)
	}
	progress.Total = readOut.Count
	progress.RowsSkipped = readOut.Stats.SkippedCount()
	run.InputSHA256 = readOut.InputSHA256
	run.RowsSkipped = progress.RowsSkipped

	step("classify")
	var clsOut activities.ClassifyTriplesOutput
	if err := workflow.ExecuteActivity(ctx, "ClassifyTriplesActivity", activities.ClassifyTriplesInput{RunID: runID, ArtifactPath: readOut.ArtifactPath, Base: input.ClassificationPath}).Get(ctx, &clsOut); err != nil {
		return fail(err)
	}
	progress.Classification = clsOut.Counts

	step("upsert")
	batch := input.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	for offset := 0; offset < readOut.Count; offset += batch {
		var out activities.UpsertBatchOutput
		err := workflow.ExecuteActivity(ctx, "UpsertBatchActivity", activities.UpsertBatchInput{
			RunID:              runID,
			Graph:              input.Graph,
			ArtifactPath:       readOut.ArtifactPath,
			ClassificationPath: clsOut.ClassificationPath,
			Offset:             offset,
			Limit:              batch,
		}).Get(ctx, &out)
		if err != nil {
			return fail(fmt.Errorf("upsert batch at %d: %w", offset, err))
		}
		progress.Upsert.Add(out.Result, offset)
	}
	run.Processed = progress.Upsert.Processed
	run.NodesCreated, run.NodesExisting = progress.Upsert.NodesCreated, progress.Upsert.NodesExisting
	run.RelsCreated, run.RelsExisting = progress.Upsert.RelsCreated, progress.Upsert.RelsExisting
	run.Failures = len(progress.Upsert.Failures)

	step("summarize")
	var sumOut activities.SummarizeGraphOutput
	if err := workflow.ExecuteActivity(ctx, "SummarizeGraphActivity", activities.SummarizeGraphInput{Graph: input.Graph}).Get(ctx, &sumOut); err != nil {
		return fail(err)
	}
	progress.Report = &sumOut.Report

	step("write_report")
	if err := workflow.ExecuteActivity(ctx, "WriteReportActivity", activities.WriteReportInput{
		RunID:  runID,
		Report: sumOut.Report,
		Text:   sumOut.Text,
		Upsert: progress.Upsert,
	}).Get(ctx, nil); err != nil {
		return fail(err)
	}
	progress.Steps[progress.CurrentStep] = "done"

	progress.Status = storage.RunStatusCompleted
	run.Status = storage.RunStatusCompleted
	markRun()
	return progress.Status, nil
}

// BuildDirectoryWorkflow classifies the union of every source file in
// InputDir, then runs one BuildGraphWorkflow per file against that shared
// classification. Children run one at a time so upserts into the shared graph
// stay sequential.
func BuildDirectoryWorkflow(ctx workflow.Context, input BuildDirectoryInput) (string, error) {
	progress := DirectoryProgress{
		InputDir: input.InputDir,
		PerFile:  map[string]string{},
		Children: map[string]string{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetDirectoryProgress, func() (DirectoryProgress, error) {
		return progress, nil
	}); err != nil {
		return "", err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	var listOut activities.ListInputsOutput
	if err := workflow.ExecuteActivity(ctx, "ListInputsActivity", activities.ListInputsInput{InputDir: input.InputDir}).Get(ctx, &listOut); err != nil {
		return "", err
	}
	progress.Total = len(listOut.Paths)
	parentID := workflow.GetInfo(ctx).WorkflowExecution.ID
	if len(listOut.Paths) == 0 {
		return storage.RunStatusCompleted, nil
	}

	var clsOut activities.ClassifyInputsOutput
	if err := workflow.ExecuteActivity(ctx, "ClassifyInputsActivity", activities.ClassifyInputsInput{RunID: parentID, Paths: listOut.Paths}).Get(ctx, &clsOut); err != nil {
		return "", err
	}

	for i, path := range listOut.Paths {
		progress.PerFile[path] = "processing"
		childID := fmt.Sprintf("%s-%03d-%s", parentID, i, sanitizeID(filepath.Base(path)))
		progress.Children[path] = childID
		childCtx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{WorkflowID: childID})
		var status string
		err := workflow.ExecuteChildWorkflow(childCtx, BuildGraphWorkflow, BuildGraphInput{
			RunID:              childID,
			Path:               path,
			Graph:              input.Graph,
			BatchSize:          input.BatchSize,
			ClassificationPath: clsOut.ClassificationPath,
		}).Get(ctx, &status)
		if err != nil {
			progress.Failed++
			progress.PerFile[path] = storage.RunStatusFailed
			continue
		}
		if status == storage.RunStatusFailed {
			progress.Failed++
		}
		progress.Done++
		progress.PerFile[path] = status
	}
	return storage.RunStatusCompleted, nil
}

func sanitizeID(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "input"
	}
	return out
}
