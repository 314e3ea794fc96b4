package storage

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maizekg/internal/graph"
	"maizekg/internal/util"
)

func rel(from graph.Node, typ string, to graph.Node, props map[string]any) graph.Relationship {
	return graph.Relationship{From: from, Type: typ, To: to, Properties: props}
}

func TestMemoryStoreUpsertNodeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	id, created, err := m.UpsertNode(ctx, graph.EntityGene, "DREB2A")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Gene:DREB2A", id)

	_, created, err = m.UpsertNode(ctx, graph.EntityGene, "DREB2A")
	require.NoError(t, err)
	assert.False(t, created)

	_, created, err = m.UpsertNode(ctx, graph.EntityGene, "dreb2a")
	require.NoError(t, err)
	assert.True(t, created, "names are exact strings")
}

func TestMemoryStoreRelationshipMergesProperties(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	gene := graph.Node{Type: graph.EntityGene, Name: "DREB2A"}
	trait := graph.Node{Type: graph.EntityTrait, Name: "Drought Tolerance"}

	created, err := m.UpsertRelationship(ctx, rel(gene, graph.RelRegulates, trait, map[string]any{"source": "a", "confidence": 0.4}))
	require.NoError(t, err)
	assert.True(t, created)

	created, err = m.UpsertRelationship(ctx, rel(gene, graph.RelRegulates, trait, map[string]any{"confidence": 0.9}))
	require.NoError(t, err)
	assert.False(t, created)

	created, err = m.UpsertRelationship(ctx, rel(gene, graph.RelAssociatedWith, trait, nil))
	require.NoError(t, err)
	assert.True(t, created, "distinct predicates are distinct edges")

	snap, err := m.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Nodes, 2)
	require.Len(t, snap.Relationships, 2)
	for _, r := range snap.Relationships {
		if r.Type == graph.RelRegulates {
			assert.Equal(t, map[string]any{"source": "a", "confidence": 0.9}, r.Properties)
		}
	}
}

func TestMemoryStoreRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	_, _, err := m.UpsertNode(ctx, graph.EntityType("Protein"), "x")
	assert.ErrorIs(t, err, util.ErrInvalidEntityType)

	_, err = m.UpsertRelationship(ctx, rel(graph.Node{Type: graph.EntityGene, Name: "a"}, " ", graph.Node{Type: graph.EntityGene, Name: "b"}, nil))
	assert.ErrorIs(t, err, util.ErrInvalidRelation)
}

func TestMemoryStoreConcurrentWritersDoNotDuplicate(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	var wg sync.WaitGroup
	createdCount := make(chan bool, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, created, err := m.UpsertNode(ctx, graph.EntityGenotype, "B73")
			assert.NoError(t, err)
			createdCount <- created
		}()
	}
	wg.Wait()
	close(createdCount)
	n := 0
	for c := range createdCount {
		if c {
			n++
		}
	}
	assert.Equal(t, 1, n)
}

func TestMemoryStoreSnapshotIsACopy(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	a := graph.Node{Type: graph.EntityGene, Name: "a"}
	b := graph.Node{Type: graph.EntityTrait, Name: "b"}
	_, err := m.UpsertRelationship(ctx, rel(a, "REGULATES", b, map[string]any{"k": "v"}))
	require.NoError(t, err)

	snap, err := m.Snapshot(ctx)
	require.NoError(t, err)
	snap.Relationships[0].Properties["k"] = "changed"

	again, err := m.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v", again.Relationships[0].Properties["k"])
}

func TestMemoryStoreBuildRuns(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	require.NoError(t, m.UpsertBuildRun(ctx, BuildRun{RunID: "r1", Status: RunStatusRunning}))
	first, err := m.GetBuildRun(ctx, "r1")
	require.NoError(t, err)

	require.NoError(t, m.UpsertBuildRun(ctx, BuildRun{RunID: "r1", Status: RunStatusCompleted, Processed: 4}))
	got, err := m.GetBuildRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, got.Status)
	assert.Equal(t, first.StartedAt, got.StartedAt)

	_, err = m.GetBuildRun(ctx, "missing")
	assert.ErrorIs(t, err, util.ErrBuildRunNotFound)
}
