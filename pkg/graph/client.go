package graph

import (
	"context"
	"errors"
	"time"

	"github.com/OFFIS-RIT/casegraph/pkg/common"
	"github.com/OFFIS-RIT/casegraph/pkg/logger"
	"github.com/OFFIS-RIT/casegraph/pkg/metrics"
	"github.com/OFFIS-RIT/casegraph/pkg/store"
)

// DefaultTimeout bounds every single call into the graph store.
const DefaultTimeout = 10 * time.Second

// GraphClient wraps a graph store and applies the per-call timeout. It is
// shared by the Projector and the Detector and is safe for concurrent use
// as long as the underlying store is.
//
// A GraphClient should be created using NewGraphClient.
type GraphClient struct {
	storage store.GraphStorage
	timeout time.Duration
}

// NewGraphClientParams defines the configuration parameters for creating
// a new GraphClient.
//
// Storage is the backend all reads and writes go to.
// Timeout bounds each store call; zero selects DefaultTimeout.
type NewGraphClientParams struct {
	Storage store.GraphStorage
	Timeout time.Duration
}

// NewGraphClient creates and returns a new GraphClient configured with
// the provided parameters.
//
// Example:
//
//	client, err := graph.NewGraphClient(graph.NewGraphClientParams{
//		Storage: pgx.NewGraphDBStorageWithConnection(pool),
//		Timeout: 5 * time.Second,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
func NewGraphClient(params NewGraphClientParams) (*GraphClient, error) {
	if params.Storage == nil {
		return nil, errors.New("graph storage is required")
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &GraphClient{
		storage: params.Storage,
		timeout: timeout,
	}, nil
}

// Storage returns the underlying store.
func (c *GraphClient) Storage() store.GraphStorage {
	return c.storage
}

func (c *GraphClient) call(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

// InsertVertex stores v under the client timeout and returns its key.
func (c *GraphClient) InsertVertex(ctx context.Context, v common.Vertex) (string, error) {
	cctx, cancel := c.call(ctx)
	defer cancel()

	key, err := c.storage.InsertVertex(cctx, v)
	metrics.GraphWrites.WithLabelValues(v.Collection(), metrics.Outcome(err)).Inc()
	if err != nil {
		if !errors.Is(err, store.ErrGraphWrite) {
			err = errors.Join(store.ErrGraphWrite, err)
		}
		return "", err
	}
	logger.Debug("[Graph] Inserted vertex", "collection", v.Collection(), "key", key)
	return key, nil
}

func (c *GraphClient) saveEdge(ctx context.Context, collection string, edge common.Edge) (string, error) {
	cctx, cancel := c.call(ctx)
	defer cancel()
	return c.storage.SaveEdge(cctx, collection, edge)
}

func (c *GraphClient) insertEdgeQuery(ctx context.Context, collection string, edge common.Edge) (string, error) {
	cctx, cancel := c.call(ctx)
	defer cancel()
	return c.storage.InsertEdgeQuery(cctx, collection, edge)
}

// EnsureCollections creates missing collections under the client timeout.
// The store is left untouched when every collection already exists.
func (c *GraphClient) EnsureCollections(ctx context.Context) error {
	cctx, cancel := c.call(ctx)
	defer cancel()

	missing, err := c.missingCollections(cctx)
	switch {
	case err != nil:
		logger.Warn("[Graph] Could not check collections", "err", err)
	case len(missing) == 0:
		logger.Debug("[Graph] All collections present")
		return nil
	default:
		logger.Info("[Graph] Creating collections", "missing", missing)
	}
	return c.storage.EnsureCollections(cctx)
}

func (c *GraphClient) missingCollections(ctx context.Context) ([]string, error) {
	var missing []string
	for _, names := range [][]string{common.VertexCollections, common.EdgeCollections} {
		for _, name := range names {
			ok, err := c.storage.CollectionExists(ctx, name)
			if err != nil {
				return nil, err
			}
			if !ok {
				missing = append(missing, name)
			}
		}
	}
	return missing, nil
}

// Query runs an ad-hoc query in the native language of the store under the
// client timeout.
func (c *GraphClient) Query(ctx context.Context, query string, args map[string]any) ([]map[string]any, error) {
	cctx, cancel := c.call(ctx)
	defer cancel()

	rows, err := c.storage.Query(cctx, query, args)
	if err != nil && !errors.Is(err, store.ErrGraphQuery) {
		err = errors.Join(store.ErrGraphQuery, err)
	}
	return rows, err
}

// Count runs an ad-hoc query returning a single number under the client
// timeout.
func (c *GraphClient) Count(ctx context.Context, query string, args map[string]any) (int64, error) {
	cctx, cancel := c.call(ctx)
	defer cancel()

	n, err := c.storage.Count(cctx, query, args)
	if err != nil && !errors.Is(err, store.ErrGraphQuery) {
		err = errors.Join(store.ErrGraphQuery, err)
	}
	return n, err
}
