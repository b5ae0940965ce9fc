package store

import (
	"context"
	"errors"

	"github.com/OFFIS-RIT/casegraph/pkg/common"
)

var (
	// ErrGraphWrite wraps any failure to persist a vertex or an edge.
	ErrGraphWrite = errors.New("graph write failed")
	// ErrGraphQuery wraps any failure of a read or correlation query.
	ErrGraphQuery = errors.New("graph query failed")
	// ErrNotFound is returned when a vertex lookup has no result.
	ErrNotFound = errors.New("vertex not found")
	// ErrUnknownCollection is returned for collection names the store does
	// not manage.
	ErrUnknownCollection = errors.New("unknown collection")
)

// GraphStorage defines the interface for persisting case graphs and running
// the correlation queries on them.
//
// Vertices are insert-only: every InsertVertex call creates a new document
// with a store-assigned key, even if an equal document already exists.
// Edges can be written through two independent paths, SaveEdge and
// InsertEdgeQuery, which must produce identical edge documents.
type GraphStorage interface {
	// EnsureCollections creates every vertex and edge collection that does
	// not exist yet.
	EnsureCollections(ctx context.Context) error
	CollectionExists(ctx context.Context, name string) (bool, error)

	InsertVertex(ctx context.Context, v common.Vertex) (string, error)
	GetVertex(ctx context.Context, collection string, key string) (map[string]any, error)

	// SaveEdge is the structured insert path.
	SaveEdge(ctx context.Context, collection string, edge common.Edge) (string, error)
	// InsertEdgeQuery is the raw query insert path used as fallback.
	InsertEdgeQuery(ctx context.Context, collection string, edge common.Edge) (string, error)

	// Query runs an ad-hoc query in the native language of the backend.
	Query(ctx context.Context, query string, args map[string]any) ([]map[string]any, error)
	// Count runs an ad-hoc query that returns a single number.
	Count(ctx context.Context, query string, args map[string]any) (int64, error)

	SimilarCases(ctx context.Context, caseType string, excludeCaseID string) ([]map[string]any, error)
	RecurringPersons(ctx context.Context, caseKey string) ([]common.RecurringPerson, error)
	LocationHotspots(ctx context.Context, minCases int) ([]common.Hotspot, error)

	Close(ctx context.Context) error
}
