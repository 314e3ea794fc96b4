package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	tclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"

	"maizekg/internal/classify"
	"maizekg/internal/config"
	"maizekg/internal/logger"
	"maizekg/internal/metrics"
	"maizekg/internal/storage"
	"maizekg/internal/summary"
	"maizekg/internal/util"
	"maizekg/internal/workflows"
)

// WorkflowClient is the part of the Temporal client the server uses.
type WorkflowClient interface {
	ExecuteWorkflow(ctx context.Context, options tclient.StartWorkflowOptions, workflow interface{}, args ...interface{}) (tclient.WorkflowRun, error)
	QueryWorkflow(ctx context.Context, workflowID string, runID string, queryType string, args ...interface{}) (converter.EncodedValue, error)
}

type Server struct {
	cfg        config.Config
	store      storage.GraphStore
	classifier *classify.Classifier
	temporal   WorkflowClient
	metrics    *metrics.Metrics
}

func NewServer(cfg config.Config, store storage.GraphStore, c *classify.Classifier, tc WorkflowClient, m *metrics.Metrics) *Server {
	return &Server{cfg: cfg, store: store, classifier: c, temporal: tc, metrics: m}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/report", s.handleReport)
	mux.HandleFunc("/classify", s.handleClassify)
	mux.HandleFunc("/builds", s.handleBuilds)
	mux.HandleFunc("/builds/", s.handleBuildsScoped)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	return withCORS(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	snap, err := s.store.Snapshot(r.Context())
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	report := summary.Build(snap)
	if s.metrics != nil {
		s.metrics.RecordReport(report)
	}
	switch r.URL.Query().Get("format") {
	case "", "json":
		writeJSON(w, http.StatusOK, report)
	case "text":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(report.Text()))
	default:
		writeErr(w, http.StatusBadRequest, fmt.Errorf("unknown report format"))
	}
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("name is required"))
		return
	}
	t, rule, _ := s.classifier.MatchName(name)
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    name,
		"type":    t,
		"rule":    rule,
		"matches": s.classifier.Explain(name),
	})
}

type buildRequest struct {
	Path      string `json:"path"`
	Graph     string `json:"graph,omitempty"`
	BatchSize int    `json:"batch_size,omitempty"`
}

func (s *Server) handleBuilds(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req buildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	req.Path = strings.TrimSpace(req.Path)
	if req.Path == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("path is required"))
		return
	}
	info, err := os.Stat(req.Path)
	if err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("input not found: %w", err))
		return
	}
	batch := req.BatchSize
	if batch <= 0 {
		batch = s.cfg.BatchSize
	}

	opts := tclient.StartWorkflowOptions{
		TaskQueue:                                s.cfg.TemporalTaskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}
	var we tclient.WorkflowRun
	if info.IsDir() {
		opts.ID = "build-dir-" + uuid.NewString()
		we, err = s.temporal.ExecuteWorkflow(r.Context(), opts, workflows.BuildDirectoryWorkflow, workflows.BuildDirectoryInput{
			InputDir:  req.Path,
			Graph:     req.Graph,
			BatchSize: batch,
		})
	} else {
		opts.ID = "build-" + uuid.NewString()
		we, err = s.temporal.ExecuteWorkflow(r.Context(), opts, workflows.BuildGraphWorkflow, workflows.BuildGraphInput{
			RunID:     opts.ID,
			Path:      req.Path,
			Graph:     req.Graph,
			BatchSize: batch,
		})
	}
	if err != nil {
		writeErr(w, http.StatusConflict, err)
		return
	}
	logger.Info("build started", "workflow_id", we.GetID(), "path", req.Path)
	writeJSON(w, http.StatusAccepted, map[string]any{"build_id": we.GetID(), "workflow_id": we.GetID(), "run_id": we.GetRunID()})
}

func (s *Server) handleBuildsScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/builds/"), "/"), "/")
	if len(parts) != 1 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	buildID := parts[0]

	if strings.HasPrefix(buildID, "build-dir-") {
		var prog workflows.DirectoryProgress
		resp, err := s.temporal.QueryWorkflow(r.Context(), buildID, "", workflows.QueryGetDirectoryProgress)
		if err != nil {
			writeErr(w, http.StatusNotFound, err)
			return
		}
		if err := resp.Get(&prog); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, prog)
		return
	}

	var prog workflows.BuildProgress
	resp, err := s.temporal.QueryWorkflow(r.Context(), buildID, "", workflows.QueryGetBuildProgress)
	if err != nil {
		// Closed or unknown workflows fall back to the stored build run.
		rec, ok := s.store.(storage.RunRecorder)
		if !ok {
			writeErr(w, http.StatusNotFound, err)
			return
		}
		run, rErr := rec.GetBuildRun(r.Context(), buildID)
		if errors.Is(rErr, util.ErrBuildRunNotFound) {
			writeErr(w, http.StatusNotFound, rErr)
			return
		}
		if rErr != nil {
			writeErr(w, http.StatusInternalServerError, rErr)
			return
		}
		writeJSON(w, http.StatusOK, run)
		return
	}
	if err := resp.Get(&prog); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, prog)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

type apiError struct {
	Code    string
	Message string
}

func toAPIError(status int, err error) apiError {
	msg := "Request failed."
	code := "KG-API-4000"
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	switch {
	case status >= 500:
		switch {
		case errors.Is(err, util.ErrTransientStore),
			strings.Contains(raw, "connect"), strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return apiError{
				Code:    "KG-STORE-5002",
				Message: "Graph store is unavailable. Check local services and retry.",
			}
		case strings.Contains(raw, "relation") && strings.Contains(raw, "does not exist"):
			return apiError{
				Code:    "KG-STORE-5001",
				Message: "Graph schema is not initialized. Run migrations and retry.",
			}
		default:
			return apiError{
				Code:    "KG-API-5000",
				Message: "Internal server error. Please retry or check service logs.",
			}
		}
	case status == http.StatusBadRequest:
		code = "KG-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case status == http.StatusNotFound:
		code = "KG-API-4004"
		msg = "Requested resource was not found."
	case status == http.StatusConflict:
		code = "KG-API-4009"
		msg = "Operation conflicts with current state. Retry after checking status."
	case status == http.StatusMethodNotAllowed:
		code = "KG-API-4005"
		msg = "This endpoint does not support the requested method."
	}

	if status >= 400 && status < 500 && err != nil {
		switch {
		case strings.Contains(raw, "path is required"):
			msg = "Input path is required."
		case strings.Contains(raw, "name is required"):
			msg = "Entity name is required."
		case strings.Contains(raw, "input not found"):
			msg = "Input path does not exist."
		case strings.Contains(raw, "unknown report format"):
			msg = "Report format must be json or text."
		case strings.Contains(raw, "invalid json"):
			msg = "Malformed JSON request body."
		}
	}

	return apiError{Code: code, Message: msg}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
