package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/OFFIS-RIT/casegraph/pkg/common"
	"github.com/OFFIS-RIT/casegraph/pkg/logger"
	"github.com/OFFIS-RIT/casegraph/pkg/store"
)

// Each vertex collection maps to a node label. Edge collections are kept as
// a property on the relationship, its type is the relationship type.
var labels = map[string]string{
	common.CollectionCases:     "Case",
	common.CollectionPersons:   "Person",
	common.CollectionLocations: "Location",
	common.CollectionEvidence:  "Evidence",
}

var relationshipTypes = map[string]bool{
	common.RelInvolvedIn:  true,
	common.RelOccurredAt:  true,
	common.RelHasEvidence: true,
	common.RelLocatedAt:   true,
}

// Neo4jStorage implements store.GraphStorage on a Neo4j database. Document
// keys are stored in the "key" property and surface as "_key" on reads.
type Neo4jStorage struct {
	driver   neo4j.DriverWithContext
	database string
	owned    bool
}

type Neo4jStorageParams struct {
	URI            string
	Username       string
	Password       string
	Database       string
	MaxPoolSize    int
	ConnectTimeout time.Duration
}

// NewNeo4jStorage connects to Neo4j and verifies connectivity.
func NewNeo4jStorage(ctx context.Context, params Neo4jStorageParams) (*Neo4jStorage, error) {
	if params.URI == "" {
		return nil, fmt.Errorf("neo4j uri is required")
	}
	if params.Username == "" {
		params.Username = "neo4j"
	}
	if params.MaxPoolSize <= 0 {
		params.MaxPoolSize = 50
	}
	if params.ConnectTimeout <= 0 {
		params.ConnectTimeout = 10 * time.Second
	}

	auth := neo4j.BasicAuth(params.Username, params.Password, "")
	driver, err := neo4j.NewDriverWithContext(params.URI, auth, func(cfg *neo4j.Config) {
		cfg.MaxConnectionPoolSize = params.MaxPoolSize
		cfg.SocketConnectTimeout = params.ConnectTimeout
	})
	if err != nil {
		return nil, fmt.Errorf("init neo4j driver: %w", err)
	}

	vctx, cancel := context.WithTimeout(ctx, params.ConnectTimeout)
	defer cancel()
	if err := driver.VerifyConnectivity(vctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}

	s := NewNeo4jStorageWithDriver(driver, params.Database)
	s.owned = true
	return s, nil
}

// NewNeo4jStorageWithDriver wraps an existing driver. The caller keeps
// ownership of the driver.
func NewNeo4jStorageWithDriver(driver neo4j.DriverWithContext, database string) *Neo4jStorage {
	return &Neo4jStorage{driver: driver, database: database}
}

func (s *Neo4jStorage) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: s.database,
	})
}

func (s *Neo4jStorage) execute(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	return neo4j.ExecuteQuery(ctx, s.driver, query, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database),
	)
}

func constraintName(label string) string {
	return "casegraph_" + label + "_key_unique"
}

// EnsureCollections creates a key uniqueness constraint per vertex label.
// Relationship collections need no schema.
func (s *Neo4jStorage) EnsureCollections(ctx context.Context) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	for _, name := range common.VertexCollections {
		label := labels[name]
		q := fmt.Sprintf(
			`CREATE CONSTRAINT %s IF NOT EXISTS FOR (n:%s) REQUIRE n.key IS UNIQUE`,
			constraintName(label), label,
		)
		res, err := session.Run(ctx, q, nil)
		if err != nil {
			return fmt.Errorf("%w: constraint for %s: %w", store.ErrGraphWrite, label, err)
		}
		if _, err := res.Consume(ctx); err != nil {
			return fmt.Errorf("%w: constraint for %s: %w", store.ErrGraphWrite, label, err)
		}
	}

	logger.Debug("[Graph][Neo4j] Constraints ready", "labels", len(labels))
	return nil
}

func (s *Neo4jStorage) CollectionExists(ctx context.Context, name string) (bool, error) {
	if store.IsEdgeCollection(name) {
		return true, nil
	}
	label, ok := labels[name]
	if !ok {
		return false, nil
	}
	res, err := s.execute(ctx,
		`SHOW CONSTRAINTS YIELD name WHERE name = $name RETURN count(*) AS n`,
		map[string]any{"name": constraintName(label)},
	)
	if err != nil {
		return false, fmt.Errorf("%w: %w", store.ErrGraphQuery, err)
	}
	if len(res.Records) == 0 {
		return false, nil
	}
	n, _ := res.Records[0].Get("n")
	return store.ToInt(n) > 0, nil
}

func (s *Neo4jStorage) Close(ctx context.Context) error {
	if !s.owned || s.driver == nil {
		return nil
	}
	return s.driver.Close(ctx)
}

// fromNode turns node properties into a document with "_key".
func fromNode(props map[string]any) map[string]any {
	doc := make(map[string]any, len(props))
	for k, v := range props {
		if k == "key" {
			doc["_key"] = v
			continue
		}
		doc[k] = v
	}
	return doc
}

func labelFor(handle string) (label string, key string, err error) {
	coll, key, ok := common.SplitHandle(handle)
	if !ok {
		return "", "", fmt.Errorf("invalid handle %q", handle)
	}
	if err := store.CheckVertexCollection(coll); err != nil {
		return "", "", err
	}
	return labels[coll], key, nil
}
