package pgx

import (
	"context"
	"encoding/json"
	"fmt"

	pgxv5 "github.com/jackc/pgx/v5"

	"github.com/OFFIS-RIT/casegraph/internal/util"
	"github.com/OFFIS-RIT/casegraph/pkg/common"
	"github.com/OFFIS-RIT/casegraph/pkg/store"
)

func nullableRole(role string) any {
	if role == "" {
		return nil
	}
	return role
}

// SaveEdge writes an edge with positional parameters inside a transaction,
// encoding the document on the client.
func (s *GraphDBStorage) SaveEdge(ctx context.Context, name string, edge common.Edge) (string, error) {
	if err := store.CheckEdgeCollection(name); err != nil {
		return "", fmt.Errorf("%w: %w", store.ErrGraphWrite, err)
	}

	key, err := store.NewKey()
	if err != nil {
		return "", fmt.Errorf("%w: key: %w", store.ErrGraphWrite, err)
	}

	doc := util.SanitizePostgresDoc(edge.Properties())
	doc["_key"] = key
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("%w: encode: %w", store.ErrGraphWrite, err)
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: begin: %w", store.ErrGraphWrite, err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %s (_key, _from, _to, relationship_type, role, doc) VALUES ($1, $2, $3, $4, $5, $6)`,
		name,
	), key, edge.From, edge.To, edge.RelationshipType, nullableRole(edge.Role), raw)
	if err != nil {
		return "", fmt.Errorf("%w: insert into %s: %w", store.ErrGraphWrite, name, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("%w: commit: %w", store.ErrGraphWrite, err)
	}
	return key, nil
}

// InsertEdgeQuery writes an edge with a single named-argument statement that
// builds the document on the server. The resulting row is identical to the
// one written by SaveEdge.
func (s *GraphDBStorage) InsertEdgeQuery(ctx context.Context, name string, edge common.Edge) (string, error) {
	if err := store.CheckEdgeCollection(name); err != nil {
		return "", fmt.Errorf("%w: %w", store.ErrGraphWrite, err)
	}

	key, err := store.NewKey()
	if err != nil {
		return "", fmt.Errorf("%w: key: %w", store.ErrGraphWrite, err)
	}

	query := fmt.Sprintf(`
INSERT INTO %s (_key, _from, _to, relationship_type, role, doc)
VALUES (
	@key, @from, @to, @rel, NULLIF(@role::text, ''),
	jsonb_build_object('_key', @key::text, '_from', @from::text, '_to', @to::text, 'relationshipType', @rel::text)
	|| CASE WHEN @role::text <> '' THEN jsonb_build_object('role', @role::text) ELSE '{}'::jsonb END
)`, name)

	_, err = s.conn.Exec(ctx, query, pgxv5.NamedArgs{
		"key":  key,
		"from": edge.From,
		"to":   edge.To,
		"rel":  edge.RelationshipType,
		"role": edge.Role,
	})
	if err != nil {
		return "", fmt.Errorf("%w: insert into %s: %w", store.ErrGraphWrite, name, err)
	}
	return key, nil
}
