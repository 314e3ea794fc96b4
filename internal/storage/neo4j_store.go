package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"maizekg/internal/graph"
)

// Neo4jStore keeps each EntityType as a node label with a unique name and
// each relationship type as a Neo4j relationship type.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string

	constraintsMu       sync.Mutex
	constraintsPrepared bool
}

func NewNeo4jStore(ctx context.Context, uri string, opts Options) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(opts.Neo4jUser, opts.Neo4jPassword, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, storeErr("connect neo4j", err)
	}
	return &Neo4jStore{driver: driver, database: opts.Neo4jDatabase}, nil
}

func (s *Neo4jStore) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: s.database})
}

// quoteIdent backtick-quotes a label or relationship type for Cypher.
func quoteIdent(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

func constraintQuery(t graph.EntityType) string {
	return fmt.Sprintf("CREATE CONSTRAINT %s IF NOT EXISTS FOR (n:%s) REQUIRE n.name IS UNIQUE",
		quoteIdent(strings.ToLower(string(t))+"_name_unique"), quoteIdent(string(t)))
}

func mergeNodeQuery(t graph.EntityType) string {
	return fmt.Sprintf("MERGE (n:%s {name: $name}) ON CREATE SET n.created_at = datetime()", quoteIdent(string(t)))
}

func mergeRelationshipQuery(rel graph.Relationship) string {
	return fmt.Sprintf(`MERGE (s:%s {name: $subject})
MERGE (o:%s {name: $object})
MERGE (s)-[r:%s]->(o)
ON CREATE SET r.created_at = datetime()
SET r += $props`, quoteIdent(string(rel.From.Type)), quoteIdent(string(rel.To.Type)), relIdent(rel.Type))
}

func relIdent(t string) string {
	if graph.IsPlainRelType(t) {
		return t
	}
	return quoteIdent(t)
}

func (s *Neo4jStore) ensureConstraints(ctx context.Context) error {
	s.constraintsMu.Lock()
	defer s.constraintsMu.Unlock()
	if s.constraintsPrepared {
		return nil
	}
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)
	for _, t := range graph.EntityTypes {
		res, err := session.Run(ctx, constraintQuery(t), nil)
		if err != nil {
			return storeErr("create neo4j constraint", err)
		}
		if _, err := res.Consume(ctx); err != nil {
			return storeErr("create neo4j constraint", err)
		}
	}
	s.constraintsPrepared = true
	return nil
}

func (s *Neo4jStore) UpsertNode(ctx context.Context, t graph.EntityType, name string) (string, bool, error) {
	if err := validate(t, name); err != nil {
		return "", false, err
	}
	if err := s.ensureConstraints(ctx); err != nil {
		return "", false, err
	}
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	res, err := session.Run(ctx, mergeNodeQuery(t), map[string]any{"name": name})
	if err != nil {
		return "", false, storeErr("merge node", err)
	}
	summary, err := res.Consume(ctx)
	if err != nil {
		return "", false, storeErr("merge node", err)
	}
	return graph.NodeID(t, name), summary.Counters().NodesCreated() > 0, nil
}

func (s *Neo4jStore) UpsertRelationship(ctx context.Context, rel graph.Relationship) (bool, error) {
	if err := validateRel(rel); err != nil {
		return false, err
	}
	if err := s.ensureConstraints(ctx); err != nil {
		return false, err
	}
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	props := rel.Properties
	if props == nil {
		props = map[string]any{}
	}
	res, err := session.Run(ctx, mergeRelationshipQuery(rel), map[string]any{
		"subject": rel.From.Name,
		"object":  rel.To.Name,
		"props":   props,
	})
	if err != nil {
		return false, storeErr("merge relationship", err)
	}
	summary, err := res.Consume(ctx)
	if err != nil {
		return false, storeErr("merge relationship", err)
	}
	return summary.Counters().RelationshipsCreated() > 0, nil
}

// Snapshot reads nodes and relationships in a single read transaction.
func (s *Neo4jStore) Snapshot(ctx context.Context) (graph.Snapshot, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	tx, err := session.BeginTransaction(ctx)
	if err != nil {
		return graph.Snapshot{}, storeErr("begin neo4j read", err)
	}
	defer tx.Close(ctx)

	res, err := tx.Run(ctx, `MATCH (n) WHERE n.name IS NOT NULL RETURN labels(n) AS labels, n.name AS name ORDER BY name`, nil)
	if err != nil {
		return graph.Snapshot{}, storeErr("read neo4j nodes", err)
	}
	records, err := res.Collect(ctx)
	if err != nil {
		return graph.Snapshot{}, storeErr("read neo4j nodes", err)
	}
	snap := graph.Snapshot{Nodes: make([]graph.Node, 0, len(records))}
	for _, rec := range records {
		if n, ok := nodeFromRecord(rec, "labels", "name"); ok {
			snap.Nodes = append(snap.Nodes, n)
		}
	}

	res, err = tx.Run(ctx, `MATCH (s)-[r]->(o)
WHERE s.name IS NOT NULL AND o.name IS NOT NULL
RETURN labels(s) AS s_labels, s.name AS s_name, type(r) AS rel, labels(o) AS o_labels, o.name AS o_name, properties(r) AS props`, nil)
	if err != nil {
		return graph.Snapshot{}, storeErr("read neo4j relationships", err)
	}
	records, err = res.Collect(ctx)
	if err != nil {
		return graph.Snapshot{}, storeErr("read neo4j relationships", err)
	}
	snap.Relationships = make([]graph.Relationship, 0, len(records))
	for _, rec := range records {
		from, ok1 := nodeFromRecord(rec, "s_labels", "s_name")
		to, ok2 := nodeFromRecord(rec, "o_labels", "o_name")
		if !ok1 || !ok2 {
			continue
		}
		rel := graph.Relationship{From: from, To: to, Type: getString(rec, "rel")}
		if p, ok := rec.Get("props"); ok {
			if m, ok := p.(map[string]any); ok {
				delete(m, "created_at")
				if len(m) > 0 {
					rel.Properties = m
				}
			}
		}
		snap.Relationships = append(snap.Relationships, rel)
	}
	if err := tx.Commit(ctx); err != nil {
		return graph.Snapshot{}, storeErr("commit neo4j read", err)
	}
	return snap, nil
}

func nodeFromRecord(rec *neo4j.Record, labelsKey, nameKey string) (graph.Node, bool) {
	name := getString(rec, nameKey)
	raw, ok := rec.Get(labelsKey)
	if !ok || name == "" {
		return graph.Node{}, false
	}
	labels, _ := raw.([]any)
	for _, l := range labels {
		if s, ok := l.(string); ok && graph.IsEntityType(graph.EntityType(s)) {
			return graph.Node{Type: graph.EntityType(s), Name: name}, true
		}
	}
	return graph.Node{}, false
}

func getString(rec *neo4j.Record, key string) string {
	if v, ok := rec.Get(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}
