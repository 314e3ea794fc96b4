package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"maizekg/internal/graph"
	"maizekg/internal/util"
)

// Run ids are workflow ids such as "build-<uuid>" or "build-dir-<uuid>-000-a-csv",
// so kg_build_runs keys them as TEXT.
const upsertBuildRunSQL = `
INSERT INTO kg_build_runs(run_id, input_path, input_sha256, status, processed, nodes_created, nodes_existing,
  rels_created, rels_existing, rows_skipped, failures, last_error, started_at, updated_at)
VALUES ($1, $2, NULLIF($3,''), $4, $5, $6, $7, $8, $9, $10, $11, NULLIF($12,''), NOW(), NOW())
ON CONFLICT (run_id)
DO UPDATE SET status = EXCLUDED.status, processed = EXCLUDED.processed, nodes_created = EXCLUDED.nodes_created,
  nodes_existing = EXCLUDED.nodes_existing, rels_created = EXCLUDED.rels_created, rels_existing = EXCLUDED.rels_existing,
  rows_skipped = EXCLUDED.rows_skipped, failures = EXCLUDED.failures, last_error = EXCLUDED.last_error,
  input_sha256 = COALESCE(EXCLUDED.input_sha256, kg_build_runs.input_sha256), updated_at = NOW()`

const getBuildRunSQL = `
SELECT run_id, input_path, COALESCE(input_sha256,''), status, processed, nodes_created, nodes_existing,
  rels_created, rels_existing, rows_skipped, failures, COALESCE(last_error,''), started_at, updated_at
FROM kg_build_runs WHERE run_id = $1`

func (r *GraphRepo) UpsertBuildRun(ctx context.Context, in BuildRun) error {
	if err := r.ensureKGSchema(ctx); err != nil {
		return err
	}
	_, err := r.db.Pool.Exec(ctx, upsertBuildRunSQL,
		in.RunID, in.InputPath, in.InputSHA256, in.Status, in.Processed, in.NodesCreated, in.NodesExisting,
		in.RelsCreated, in.RelsExisting, in.RowsSkipped, in.Failures, in.LastError)
	if err != nil {
		return storeErr("upsert build run", err)
	}
	return nil
}

func (r *GraphRepo) GetBuildRun(ctx context.Context, runID string) (BuildRun, error) {
	if err := r.ensureKGSchema(ctx); err != nil {
		return BuildRun{}, err
	}
	var b BuildRun
	err := r.db.Pool.QueryRow(ctx, getBuildRunSQL, runID).Scan(
		&b.RunID, &b.InputPath, &b.InputSHA256, &b.Status, &b.Processed, &b.NodesCreated, &b.NodesExisting,
		&b.RelsCreated, &b.RelsExisting, &b.RowsSkipped, &b.Failures, &b.LastError, &b.StartedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return BuildRun{}, util.ErrBuildRunNotFound
	}
	if err != nil {
		return BuildRun{}, storeErr("get build run", err)
	}
	return b, nil
}

func nodeTypeCheck() string {
	quoted := make([]string, len(graph.EntityTypes))
	for i, t := range graph.EntityTypes {
		quoted[i] = "'" + string(t) + "'"
	}
	return strings.Join(quoted, ",")
}

// kgSchemaDDL is safe to run concurrently from several processes: every
// statement is idempotent and the node type constraint is only added when
// missing.
func kgSchemaDDL() string {
	return `
CREATE TABLE IF NOT EXISTS graph_nodes (
  node_id TEXT PRIMARY KEY,
  node_type TEXT NOT NULL,
  name TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  UNIQUE (node_type, name)
);

CREATE TABLE IF NOT EXISTS graph_edges (
  source_node_id TEXT NOT NULL REFERENCES graph_nodes(node_id) ON DELETE CASCADE,
  edge_type TEXT NOT NULL,
  target_node_id TEXT NOT NULL REFERENCES graph_nodes(node_id) ON DELETE CASCADE,
  properties JSONB NOT NULL DEFAULT '{}'::jsonb,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  PRIMARY KEY (source_node_id, edge_type, target_node_id)
);

CREATE TABLE IF NOT EXISTS kg_build_runs (
  run_id TEXT PRIMARY KEY,
  input_path TEXT NOT NULL,
  input_sha256 TEXT,
  status TEXT NOT NULL CHECK (status IN ('running','completed','failed')),
  processed INT NOT NULL DEFAULT 0,
  nodes_created INT NOT NULL DEFAULT 0,
  nodes_existing INT NOT NULL DEFAULT 0,
  rels_created INT NOT NULL DEFAULT 0,
  rels_existing INT NOT NULL DEFAULT 0,
  rows_skipped INT NOT NULL DEFAULT 0,
  failures INT NOT NULL DEFAULT 0,
  last_error TEXT,
  started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

DO $$
BEGIN
  IF EXISTS (
    SELECT 1 FROM information_schema.columns
    WHERE table_name = 'kg_build_runs' AND column_name = 'run_id' AND data_type = 'uuid'
  ) THEN
    ALTER TABLE kg_build_runs ALTER COLUMN run_id TYPE TEXT USING run_id::text;
  END IF;
END $$;

CREATE INDEX IF NOT EXISTS idx_graph_edges_type ON graph_edges(edge_type);
CREATE INDEX IF NOT EXISTS idx_graph_edges_target ON graph_edges(target_node_id);
CREATE INDEX IF NOT EXISTS idx_graph_nodes_type ON graph_nodes(node_type);
CREATE INDEX IF NOT EXISTS idx_kg_build_runs_updated ON kg_build_runs(updated_at DESC);

DO $$
BEGIN
  IF NOT EXISTS (
    SELECT 1 FROM pg_constraint WHERE conname = 'graph_nodes_node_type_check'
  ) THEN
    ALTER TABLE graph_nodes
      ADD CONSTRAINT graph_nodes_node_type_check
      CHECK (node_type IN (` + nodeTypeCheck() + `));
  END IF;
END $$;
`
}

func (r *GraphRepo) ensureKGSchema(ctx context.Context) error {
	r.kgSchemaMu.Lock()
	defer r.kgSchemaMu.Unlock()

	if r.kgSchemaPrepared {
		return nil
	}
	if _, err := r.db.Pool.Exec(ctx, kgSchemaDDL()); err != nil {
		return storeErr("ensure kg schema", err)
	}
	r.kgSchemaPrepared = true
	return nil
}
