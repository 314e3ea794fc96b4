package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"maizekg/internal/graph"
	"maizekg/internal/util"
)

// GraphStore persists typed nodes and relationships. Implementations enforce
// uniqueness on (type, name) for nodes and on (from, type, to) for
// relationships, so concurrent writers cannot create duplicates.
type GraphStore interface {
	// UpsertNode creates the node if absent and reports whether it was created.
	UpsertNode(ctx context.Context, t graph.EntityType, name string) (id string, created bool, err error)
	// UpsertRelationship ensures both endpoints exist, then creates the edge or
	// merges its properties last-write-wins.
	UpsertRelationship(ctx context.Context, rel graph.Relationship) (created bool, err error)
	// Snapshot reads the whole graph in one consistent view.
	Snapshot(ctx context.Context) (graph.Snapshot, error)
	Close(ctx context.Context) error
}

// RunRecorder is implemented by stores that keep build run records.
type RunRecorder interface {
	UpsertBuildRun(ctx context.Context, run BuildRun) error
	GetBuildRun(ctx context.Context, runID string) (BuildRun, error)
}

const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

type BuildRun struct {
	RunID         string    `json:"run_id"`
	InputPath     string    `json:"input_path"`
	InputSHA256   string    `json:"input_sha256,omitempty"`
	Status        string    `json:"status"`
	Processed     int       `json:"processed"`
	NodesCreated  int       `json:"nodes_created"`
	NodesExisting int       `json:"nodes_existing"`
	RelsCreated   int       `json:"relationships_created"`
	RelsExisting  int       `json:"relationships_existing"`
	RowsSkipped   int       `json:"rows_skipped"`
	Failures      int       `json:"failures"`
	LastError     string    `json:"last_error,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type Options struct {
	Neo4jUser     string
	Neo4jPassword string
	Neo4jDatabase string
}

// Open connects to the store named by rawURL:
// postgres:// or postgresql:// (pgx), bolt:// or neo4j:// and their +s/+ssc
// variants (Neo4j), memory://<name> (process-local; one store per name).
func Open(ctx context.Context, rawURL string, opts Options) (GraphStore, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse graph url: %w", err)
	}
	switch scheme := strings.ToLower(u.Scheme); {
	case scheme == "postgres" || scheme == "postgresql":
		db, err := NewDB(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		return NewGraphRepo(db), nil
	case strings.HasPrefix(scheme, "bolt") || strings.HasPrefix(scheme, "neo4j"):
		return NewNeo4jStore(ctx, rawURL, opts)
	case scheme == "memory":
		return sharedMemoryStore(u.Host + u.Path), nil
	default:
		return nil, fmt.Errorf("%q: %w", u.Scheme, util.ErrUnsupportedStore)
	}
}

// Redact hides the password of a connection string for logs and run records.
func Redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.User == nil {
		return rawURL
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}

var (
	memoryMu     sync.Mutex
	memoryStores = map[string]*MemoryStore{}
)

func sharedMemoryStore(name string) *MemoryStore {
	memoryMu.Lock()
	defer memoryMu.Unlock()
	if m, ok := memoryStores[name]; ok {
		return m
	}
	m := NewMemoryStore()
	memoryStores[name] = m
	return m
}

func validate(t graph.EntityType, name string) error {
	if !graph.IsEntityType(t) {
		return fmt.Errorf("%q: %w", t, util.ErrInvalidEntityType)
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("empty %s name: %w", t, util.ErrInvalidEntityType)
	}
	return nil
}

func validateRel(rel graph.Relationship) error {
	if err := validate(rel.From.Type, rel.From.Name); err != nil {
		return err
	}
	if err := validate(rel.To.Type, rel.To.Name); err != nil {
		return err
	}
	if strings.TrimSpace(rel.Type) == "" {
		return fmt.Errorf("empty relationship type: %w", util.ErrInvalidRelation)
	}
	return nil
}
