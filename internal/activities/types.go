package activities

import (
	"maizekg/internal/graph"
	"maizekg/internal/source"
	"maizekg/internal/storage"
	"maizekg/internal/summary"
	"maizekg/internal/upsert"
)

type ListInputsInput struct {
	InputDir string `json:"input_dir"`
}

type ListInputsOutput struct {
	Paths []string `json:"paths"`
}

type ReadTriplesInput struct {
	RunID string `json:"run_id"`
	Path  string `json:"path"`
}

type ReadTriplesOutput struct {
	ArtifactPath string           `json:"artifact_path"`
	InputSHA256  string           `json:"input_sha256"`
	Count        int              `json:"count"`
	Stats        source.ReadStats `json:"stats"`
}

type ClassifyTriplesInput struct {
	RunID        string `json:"run_id"`
	ArtifactPath string `json:"artifact_path"`
	// Base is a classification written by ClassifyInputsActivity; when set
	// the triples take their types from it instead of a fresh classification.
	Base string `json:"base,omitempty"`
}

type ClassifyInputsInput struct {
	RunID string   `json:"run_id"`
	Paths []string `json:"paths"`
}

type ClassifyInputsOutput struct {
	ClassificationPath string `json:"classification_path"`
	Names              int    `json:"names"`
	Unreadable         int    `json:"unreadable"`
}

type ClassifyTriplesOutput struct {
	ClassificationPath string                   `json:"classification_path"`
	Counts             map[graph.EntityType]int `json:"counts"`
}

type UpsertBatchInput struct {
	RunID              string `json:"run_id"`
	Graph              string `json:"graph,omitempty"`
	ArtifactPath       string `json:"artifact_path"`
	ClassificationPath string `json:"classification_path"`
	Offset             int    `json:"offset"`
	Limit              int    `json:"limit"`
}

type UpsertBatchOutput struct {
	Result upsert.Result `json:"result"`
}

type SummarizeGraphInput struct {
	Graph string `json:"graph,omitempty"`
}

type SummarizeGraphOutput struct {
	Report summary.Report `json:"report"`
	Text   string         `json:"text"`
}

type WriteReportInput struct {
	RunID  string         `json:"run_id"`
	Report summary.Report `json:"report"`
	Text   string         `json:"text"`
	Upsert upsert.Result  `json:"upsert"`
}

type WriteReportOutput struct {
	ReportPath string `json:"report_path"`
	TextPath   string `json:"text_path"`
}

type MarkBuildRunInput struct {
	Graph string           `json:"graph,omitempty"`
	Run   storage.BuildRun `json:"run"`
}
