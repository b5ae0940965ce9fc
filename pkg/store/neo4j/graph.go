package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/OFFIS-RIT/casegraph/pkg/common"
	"github.com/OFFIS-RIT/casegraph/pkg/store"
)

func (s *Neo4jStorage) InsertVertex(ctx context.Context, v common.Vertex) (string, error) {
	name := v.Collection()
	if err := store.CheckVertexCollection(name); err != nil {
		return "", fmt.Errorf("%w: %w", store.ErrGraphWrite, err)
	}
	key, err := store.NewKey()
	if err != nil {
		return "", fmt.Errorf("%w: key: %w", store.ErrGraphWrite, err)
	}

	props := v.Properties()
	props["key"] = key

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, fmt.Sprintf(`CREATE (n:%s) SET n = $props`, labels[name]), map[string]any{
			"props": props,
		})
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	if err != nil {
		return "", fmt.Errorf("%w: create %s: %w", store.ErrGraphWrite, labels[name], err)
	}
	return key, nil
}

func (s *Neo4jStorage) GetVertex(ctx context.Context, name string, key string) (map[string]any, error) {
	if err := store.CheckVertexCollection(name); err != nil {
		return nil, err
	}
	res, err := s.execute(ctx,
		fmt.Sprintf(`MATCH (n:%s {key: $key}) RETURN properties(n) AS doc`, labels[name]),
		map[string]any{"key": key},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrGraphQuery, err)
	}
	if len(res.Records) == 0 {
		return nil, store.ErrNotFound
	}
	raw, _ := res.Records[0].Get("doc")
	props, _ := raw.(map[string]any)
	return fromNode(props), nil
}

type edgeStatement struct {
	fromLabel string
	toLabel   string
	params    map[string]any
}

func prepareEdge(name string, edge common.Edge) (edgeStatement, error) {
	if err := store.CheckEdgeCollection(name); err != nil {
		return edgeStatement{}, err
	}
	if !relationshipTypes[edge.RelationshipType] {
		return edgeStatement{}, fmt.Errorf("unsupported relationship type %q", edge.RelationshipType)
	}
	fromLabel, fromKey, err := labelFor(edge.From)
	if err != nil {
		return edgeStatement{}, err
	}
	toLabel, toKey, err := labelFor(edge.To)
	if err != nil {
		return edgeStatement{}, err
	}
	key, err := store.NewKey()
	if err != nil {
		return edgeStatement{}, err
	}
	return edgeStatement{
		fromLabel: fromLabel,
		toLabel:   toLabel,
		params: map[string]any{
			"fromKey":    fromKey,
			"toKey":      toKey,
			"key":        key,
			"from":       edge.From,
			"to":         edge.To,
			"relType":    edge.RelationshipType,
			"role":       edge.Role,
			"collection": name,
		},
	}, nil
}

// SaveEdge creates the relationship inside a managed write transaction with
// the properties passed as one map.
func (s *Neo4jStorage) SaveEdge(ctx context.Context, name string, edge common.Edge) (string, error) {
	stmt, err := prepareEdge(name, edge)
	if err != nil {
		return "", fmt.Errorf("%w: %w", store.ErrGraphWrite, err)
	}

	props := map[string]any{
		"key":              stmt.params["key"],
		"from":             edge.From,
		"to":               edge.To,
		"relationshipType": edge.RelationshipType,
		"collection":       name,
	}
	if edge.Role != "" {
		props["role"] = edge.Role
	}

	q := fmt.Sprintf(`
MATCH (a:%s {key: $fromKey}), (b:%s {key: $toKey})
CREATE (a)-[r:%s]->(b)
SET r = $props
RETURN r.key AS key`, stmt.fromLabel, stmt.toLabel, edge.RelationshipType)

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	out, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, q, map[string]any{
			"fromKey": stmt.params["fromKey"],
			"toKey":   stmt.params["toKey"],
			"props":   props,
		})
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		key, _ := rec.Get("key")
		return key, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s edge: %w", store.ErrGraphWrite, name, err)
	}
	key, _ := out.(string)
	return key, nil
}

// InsertEdgeQuery creates the relationship with a single auto-committed
// query setting every property individually.
func (s *Neo4jStorage) InsertEdgeQuery(ctx context.Context, name string, edge common.Edge) (string, error) {
	stmt, err := prepareEdge(name, edge)
	if err != nil {
		return "", fmt.Errorf("%w: %w", store.ErrGraphWrite, err)
	}

	q := fmt.Sprintf(`
MATCH (a:%s {key: $fromKey}), (b:%s {key: $toKey})
CREATE (a)-[r:%s]->(b)
SET r.key = $key, r.from = $from, r.to = $to, r.relationshipType = $relType, r.collection = $collection
FOREACH (_ IN CASE WHEN $role <> '' THEN [1] ELSE [] END | SET r.role = $role)
RETURN r.key AS key`, stmt.fromLabel, stmt.toLabel, edge.RelationshipType)

	res, err := s.execute(ctx, q, stmt.params)
	if err != nil {
		return "", fmt.Errorf("%w: %s edge: %w", store.ErrGraphWrite, name, err)
	}
	if len(res.Records) == 0 {
		return "", fmt.Errorf("%w: %s edge: endpoints not found", store.ErrGraphWrite, name)
	}
	key, _ := res.Records[0].Get("key")
	k, _ := key.(string)
	return k, nil
}
