package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"

	"maizekg/internal/graph"
)

// GraphRepo is the Postgres GraphStore. Nodes live in graph_nodes keyed by
// "<Type>:<name>"; relationships in graph_edges keyed by (source, type, target).
type GraphRepo struct {
	db *DB

	kgSchemaMu       sync.Mutex
	kgSchemaPrepared bool
}

func NewGraphRepo(db *DB) *GraphRepo {
	return &GraphRepo{db: db}
}

const upsertNodeSQL = `
INSERT INTO graph_nodes(node_id, node_type, name)
VALUES ($1, $2, $3)
ON CONFLICT (node_id) DO NOTHING
RETURNING node_id`

func (r *GraphRepo) UpsertNode(ctx context.Context, t graph.EntityType, name string) (string, bool, error) {
	if err := validate(t, name); err != nil {
		return "", false, err
	}
	if err := r.ensureKGSchema(ctx); err != nil {
		return "", false, err
	}
	id := graph.NodeID(t, name)
	var got string
	err := r.db.Pool.QueryRow(ctx, upsertNodeSQL, id, string(t), name).Scan(&got)
	if errors.Is(err, pgx.ErrNoRows) {
		return id, false, nil
	}
	if err != nil {
		return "", false, storeErr("upsert node", err)
	}
	return id, true, nil
}

func (r *GraphRepo) UpsertRelationship(ctx context.Context, rel graph.Relationship) (bool, error) {
	if err := validateRel(rel); err != nil {
		return false, err
	}
	if err := r.ensureKGSchema(ctx); err != nil {
		return false, err
	}
	props := []byte("{}")
	if len(rel.Properties) > 0 {
		b, err := json.Marshal(rel.Properties)
		if err != nil {
			return false, fmt.Errorf("encode relationship properties: %w", err)
		}
		props = b
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return false, storeErr("begin relationship tx", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	for _, n := range [2]graph.Node{rel.From, rel.To} {
		if _, err := tx.Exec(ctx, `
INSERT INTO graph_nodes(node_id, node_type, name)
VALUES ($1, $2, $3)
ON CONFLICT (node_id) DO NOTHING`, n.ID(), string(n.Type), n.Name); err != nil {
			return false, storeErr("upsert endpoint node", err)
		}
	}

	var created bool
	err = tx.QueryRow(ctx, `
INSERT INTO graph_edges(source_node_id, edge_type, target_node_id, properties)
VALUES ($1, $2, $3, $4::jsonb)
ON CONFLICT (source_node_id, edge_type, target_node_id)
DO UPDATE SET properties = graph_edges.properties || EXCLUDED.properties, updated_at = NOW()
RETURNING (xmax = 0)`, rel.From.ID(), rel.Type, rel.To.ID(), string(props)).Scan(&created)
	if err != nil {
		return false, storeErr("upsert graph edge", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, storeErr("commit relationship tx", err)
	}
	return created, nil
}

// Snapshot reads nodes and edges inside one REPEATABLE READ, read-only transaction.
func (r *GraphRepo) Snapshot(ctx context.Context) (graph.Snapshot, error) {
	if err := r.ensureKGSchema(ctx); err != nil {
		return graph.Snapshot{}, err
	}
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return graph.Snapshot{}, storeErr("begin snapshot tx", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	nodeRows, err := tx.Query(ctx, `SELECT node_type, name FROM graph_nodes ORDER BY node_id`)
	if err != nil {
		return graph.Snapshot{}, storeErr("query graph nodes", err)
	}
	nodes, err := pgx.CollectRows(nodeRows, func(row pgx.CollectableRow) (graph.Node, error) {
		var n graph.Node
		var t string
		err := row.Scan(&t, &n.Name)
		n.Type = graph.EntityType(t)
		return n, err
	})
	if err != nil {
		return graph.Snapshot{}, storeErr("scan graph nodes", err)
	}

	edgeRows, err := tx.Query(ctx, `
SELECT s.node_type, s.name, e.edge_type, t.node_type, t.name, e.properties
FROM graph_edges e
JOIN graph_nodes s ON s.node_id = e.source_node_id
JOIN graph_nodes t ON t.node_id = e.target_node_id
ORDER BY e.source_node_id, e.edge_type, e.target_node_id`)
	if err != nil {
		return graph.Snapshot{}, storeErr("query graph edges", err)
	}
	rels, err := pgx.CollectRows(edgeRows, func(row pgx.CollectableRow) (graph.Relationship, error) {
		var rel graph.Relationship
		var st, tt string
		var props map[string]any
		err := row.Scan(&st, &rel.From.Name, &rel.Type, &tt, &rel.To.Name, &props)
		rel.From.Type = graph.EntityType(st)
		rel.To.Type = graph.EntityType(tt)
		if len(props) > 0 {
			rel.Properties = props
		}
		return rel, err
	})
	if err != nil {
		return graph.Snapshot{}, storeErr("scan graph edges", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return graph.Snapshot{}, storeErr("commit snapshot tx", err)
	}
	return graph.Snapshot{Nodes: nodes, Relationships: rels}, nil
}

func (r *GraphRepo) Close(context.Context) error {
	r.db.Close()
	return nil
}
