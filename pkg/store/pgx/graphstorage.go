package pgx

import (
	"context"
	"fmt"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/OFFIS-RIT/casegraph/pkg/common"
	"github.com/OFFIS-RIT/casegraph/pkg/logger"
	"github.com/OFFIS-RIT/casegraph/pkg/store"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// defaultSchemaLockID guards concurrent collection creation across processes.
const defaultSchemaLockID int64 = 7311505

// GraphDBStorage implements store.GraphStorage on PostgreSQL. Every
// collection is a table keyed by _key holding the document as JSONB; edge
// tables additionally carry _from, _to, relationship type and role columns.
type GraphDBStorage struct {
	conn         pgxIConn
	schemaLockID int64
}

type GraphDBStorageOption func(*GraphDBStorage)

// WithSchemaLockID overrides the advisory lock id taken while collections
// are created.
func WithSchemaLockID(id int64) GraphDBStorageOption {
	return func(s *GraphDBStorage) {
		s.schemaLockID = id
	}
}

// NewGraphDBStorageWithConnection creates a new GraphDBStorage using an
// existing connection or pool. The caller owns the connection and closes it.
func NewGraphDBStorageWithConnection(
	conn pgxIConn,
	opts ...GraphDBStorageOption,
) *GraphDBStorage {
	s := &GraphDBStorage{
		conn:         conn,
		schemaLockID: defaultSchemaLockID,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s
}

func vertexTableDDL(name string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	_key TEXT PRIMARY KEY,
	doc JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, name),
	}
}

func edgeTableDDL(name string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	_key TEXT PRIMARY KEY,
	_from TEXT NOT NULL,
	_to TEXT NOT NULL,
	relationship_type TEXT NOT NULL,
	role TEXT,
	doc JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, name),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_from_idx ON %s (_from)`, name, name),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_to_idx ON %s (_to)`, name, name),
	}
}

// EnsureCollections creates all vertex and edge tables that do not exist yet.
// Creation runs in one transaction under an advisory lock so several
// processes can start at the same time.
func (s *GraphDBStorage) EnsureCollections(ctx context.Context) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", store.ErrGraphWrite, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, s.schemaLockID); err != nil {
		return fmt.Errorf("%w: schema lock: %w", store.ErrGraphWrite, err)
	}

	var stmts []string
	for _, name := range common.VertexCollections {
		stmts = append(stmts, vertexTableDDL(name)...)
	}
	for _, name := range common.EdgeCollections {
		stmts = append(stmts, edgeTableDDL(name)...)
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%w: create collection: %w", store.ErrGraphWrite, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %w", store.ErrGraphWrite, err)
	}

	logger.Debug("[Graph][Postgres] Collections ready", "vertex", len(common.VertexCollections), "edge", len(common.EdgeCollections))
	return nil
}

func (s *GraphDBStorage) CollectionExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.conn.QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1 FROM information_schema.tables
	WHERE table_schema = current_schema() AND table_name = $1
)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: %w", store.ErrGraphQuery, err)
	}
	return exists, nil
}

// Close is a no-op; the connection is owned by the caller.
func (s *GraphDBStorage) Close(ctx context.Context) error {
	return nil
}
