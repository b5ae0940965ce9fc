package pgx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pgxv5 "github.com/jackc/pgx/v5"

	"github.com/OFFIS-RIT/casegraph/internal/util"
	"github.com/OFFIS-RIT/casegraph/pkg/common"
	"github.com/OFFIS-RIT/casegraph/pkg/store"
)

// InsertVertex stores a new vertex document. No lookup for an existing equal
// document is made.
func (s *GraphDBStorage) InsertVertex(ctx context.Context, v common.Vertex) (string, error) {
	name := v.Collection()
	if err := store.CheckVertexCollection(name); err != nil {
		return "", fmt.Errorf("%w: %w", store.ErrGraphWrite, err)
	}

	key, err := store.NewKey()
	if err != nil {
		return "", fmt.Errorf("%w: key: %w", store.ErrGraphWrite, err)
	}

	doc := util.SanitizePostgresDoc(v.Properties())
	doc["_key"] = key
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("%w: encode: %w", store.ErrGraphWrite, err)
	}

	_, err = s.conn.Exec(ctx, fmt.Sprintf(`INSERT INTO %s (_key, doc) VALUES ($1, $2)`, name), key, raw)
	if err != nil {
		return "", fmt.Errorf("%w: insert into %s: %w", store.ErrGraphWrite, name, err)
	}

	return key, nil
}

func (s *GraphDBStorage) GetVertex(ctx context.Context, name string, key string) (map[string]any, error) {
	if err := store.CheckVertexCollection(name); err != nil {
		return nil, err
	}

	var raw []byte
	err := s.conn.QueryRow(ctx, fmt.Sprintf(`SELECT doc FROM %s WHERE _key = $1`, name), key).Scan(&raw)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrGraphQuery, err)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", store.ErrGraphQuery, err)
	}
	return doc, nil
}
