package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.ListInputsActivity)
	w.RegisterActivity(a.ReadTriplesActivity)
	w.RegisterActivity(a.ClassifyTriplesActivity)
	w.RegisterActivity(a.ClassifyInputsActivity)
	w.RegisterActivity(a.UpsertBatchActivity)
	w.RegisterActivity(a.SummarizeGraphActivity)
	w.RegisterActivity(a.WriteReportActivity)
	w.RegisterActivity(a.MarkBuildRunActivity)
}
