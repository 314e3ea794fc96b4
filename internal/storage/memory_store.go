package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"maizekg/internal/graph"
	"maizekg/internal/util"
)

// MemoryStore is a process-local GraphStore for tests and dry runs.
type MemoryStore struct {
	mu    sync.RWMutex
	nodes map[string]graph.Node
	rels  map[string]graph.Relationship
	runs  map[string]BuildRun
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes: make(map[string]graph.Node),
		rels:  make(map[string]graph.Relationship),
		runs:  make(map[string]BuildRun),
	}
}

func (m *MemoryStore) UpsertNode(ctx context.Context, t graph.EntityType, name string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	if err := validate(t, name); err != nil {
		return "", false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id, created := m.ensureNode(graph.Node{Type: t, Name: name})
	return id, created, nil
}

func (m *MemoryStore) ensureNode(n graph.Node) (string, bool) {
	id := n.ID()
	if _, ok := m.nodes[id]; ok {
		return id, false
	}
	m.nodes[id] = n
	return id, true
}

func (m *MemoryStore) UpsertRelationship(ctx context.Context, rel graph.Relationship) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := validateRel(rel); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureNode(rel.From)
	m.ensureNode(rel.To)

	key := rel.Key()
	existing, ok := m.rels[key]
	if ok {
		existing.Properties = graph.MergeProperties(existing.Properties, rel.Properties)
		m.rels[key] = existing
		return false, nil
	}
	rel.Properties = graph.MergeProperties(nil, rel.Properties)
	m.rels[key] = rel
	return true, nil
}

// Snapshot copies the graph under a read lock. Output is sorted by node ID and
// relationship key.
func (m *MemoryStore) Snapshot(ctx context.Context) (graph.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return graph.Snapshot{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := graph.Snapshot{
		Nodes:         make([]graph.Node, 0, len(m.nodes)),
		Relationships: make([]graph.Relationship, 0, len(m.rels)),
	}
	for _, n := range m.nodes {
		snap.Nodes = append(snap.Nodes, n)
	}
	for _, r := range m.rels {
		r.Properties = graph.MergeProperties(nil, r.Properties)
		snap.Relationships = append(snap.Relationships, r)
	}
	sort.Slice(snap.Nodes, func(i, j int) bool { return snap.Nodes[i].ID() < snap.Nodes[j].ID() })
	sort.Slice(snap.Relationships, func(i, j int) bool {
		return snap.Relationships[i].Key() < snap.Relationships[j].Key()
	})
	return snap, nil
}

func (m *MemoryStore) UpsertBuildRun(_ context.Context, run BuildRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	if prev, ok := m.runs[run.RunID]; ok && run.StartedAt.IsZero() {
		run.StartedAt = prev.StartedAt
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = now
	}
	run.UpdatedAt = now
	m.runs[run.RunID] = run
	return nil
}

func (m *MemoryStore) GetBuildRun(_ context.Context, runID string) (BuildRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[runID]
	if !ok {
		return BuildRun{}, util.ErrBuildRunNotFound
	}
	return run, nil
}

func (m *MemoryStore) Close(context.Context) error { return nil }
