package workflows

import (
	"maizekg/internal/graph"
	"maizekg/internal/summary"
	"maizekg/internal/upsert"
)

type BuildGraphInput struct {
	RunID     string `json:"run_id,omitempty"`
	Path      string `json:"path"`
	Graph     string `json:"graph,omitempty"`
	BatchSize int    `json:"batch_size,omitempty"`
	// ClassificationPath points at a classification shared by a directory build.
	ClassificationPath string `json:"classification_path,omitempty"`
}

type BuildDirectoryInput struct {
	InputDir  string `json:"input_dir"`
	Graph     string `json:"graph,omitempty"`
	BatchSize int    `json:"batch_size,omitempty"`
}

type BuildProgress struct {
	RunID          string                   `json:"run_id"`
	Path           string                   `json:"path"`
	CurrentStep    string                   `json:"current_step"`
	Status         string                   `json:"status"`
	FailReason     string                   `json:"fail_reason,omitempty"`
	Total          int                      `json:"total"`
	RowsSkipped    int                      `json:"rows_skipped"`
	Classification map[graph.EntityType]int `json:"classification,omitempty"`
	Upsert         upsert.Result            `json:"upsert"`
	Report         *summary.Report          `json:"report,omitempty"`
	Steps          map[string]string        `json:"steps"`
}

type DirectoryProgress struct {
	InputDir string            `json:"input_dir"`
	Total    int               `json:"total"`
	Done     int               `json:"done"`
	Failed   int               `json:"failed"`
	PerFile  map[string]string `json:"per_file_status"`
	Children map[string]string `json:"child_workflow_ids,omitempty"`
}
