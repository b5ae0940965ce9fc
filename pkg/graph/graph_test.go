package graph

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OFFIS-RIT/casegraph/pkg/common"
	"github.com/OFFIS-RIT/casegraph/pkg/store"
	"github.com/OFFIS-RIT/casegraph/pkg/store/memory"
)

var errInjected = errors.New("injected failure")

// faultyStore wraps the in-memory store and fails selected calls.
type faultyStore struct {
	*memory.GraphMemStorage

	mu              sync.Mutex
	saveEdgeCalls   int
	failSaveEdgeAt  map[int]bool
	failAllSaveEdge bool
	failQueryEdge   bool
	failVertex      map[string]bool
	failSimilar     bool
	failRecurring   bool
	failHotspots    bool
	failExists      bool
	queryEdgeCalls  int
	ensureCalls     int
}

func newFaultyStore() *faultyStore {
	return &faultyStore{
		GraphMemStorage: memory.NewGraphMemStorage(),
		failSaveEdgeAt:  map[int]bool{},
		failVertex:      map[string]bool{},
	}
}

func (s *faultyStore) EnsureCollections(ctx context.Context) error {
	s.mu.Lock()
	s.ensureCalls++
	s.mu.Unlock()
	return s.GraphMemStorage.EnsureCollections(ctx)
}

func (s *faultyStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	if s.failExists {
		return false, errInjected
	}
	return s.GraphMemStorage.CollectionExists(ctx, name)
}

func (s *faultyStore) InsertVertex(ctx context.Context, v common.Vertex) (string, error) {
	if s.failVertex[v.Collection()] {
		return "", errInjected
	}
	return s.GraphMemStorage.InsertVertex(ctx, v)
}

func (s *faultyStore) SaveEdge(ctx context.Context, name string, edge common.Edge) (string, error) {
	s.mu.Lock()
	s.saveEdgeCalls++
	fail := s.failAllSaveEdge || s.failSaveEdgeAt[s.saveEdgeCalls]
	s.mu.Unlock()
	if fail {
		return "", errInjected
	}
	return s.GraphMemStorage.SaveEdge(ctx, name, edge)
}

func (s *faultyStore) InsertEdgeQuery(ctx context.Context, name string, edge common.Edge) (string, error) {
	s.mu.Lock()
	s.queryEdgeCalls++
	s.mu.Unlock()
	if s.failQueryEdge {
		return "", errInjected
	}
	return s.GraphMemStorage.InsertEdgeQuery(ctx, name, edge)
}

func (s *faultyStore) SimilarCases(ctx context.Context, caseType, exclude string) ([]map[string]any, error) {
	if s.failSimilar {
		return nil, errInjected
	}
	return s.GraphMemStorage.SimilarCases(ctx, caseType, exclude)
}

func (s *faultyStore) RecurringPersons(ctx context.Context, caseKey string) ([]common.RecurringPerson, error) {
	if s.failRecurring {
		return nil, errInjected
	}
	return s.GraphMemStorage.RecurringPersons(ctx, caseKey)
}

func (s *faultyStore) LocationHotspots(ctx context.Context, minCases int) ([]common.Hotspot, error) {
	if s.failHotspots {
		return nil, errInjected
	}
	return s.GraphMemStorage.LocationHotspots(ctx, minCases)
}

func newTestClient(t *testing.T, s *faultyStore) *GraphClient {
	t.Helper()
	c, err := NewGraphClient(NewGraphClientParams{Storage: s})
	require.NoError(t, err)
	return c
}

func TestNewGraphClientRequiresStorage(t *testing.T) {
	_, err := NewGraphClient(NewGraphClientParams{})
	require.Error(t, err)
}

func TestEnsureCollectionsSkipsExistingSchema(t *testing.T) {
	s := newFaultyStore()
	c := newTestClient(t, s)
	ctx := context.Background()

	require.NoError(t, c.EnsureCollections(ctx))
	assert.Equal(t, 1, s.ensureCalls)

	require.NoError(t, c.EnsureCollections(ctx))
	assert.Equal(t, 1, s.ensureCalls)
}

func TestEnsureCollectionsWhenCheckFails(t *testing.T) {
	s := newFaultyStore()
	s.failExists = true
	c := newTestClient(t, s)

	require.NoError(t, c.EnsureCollections(context.Background()))
	require.NoError(t, c.EnsureCollections(context.Background()))
	assert.Equal(t, 2, s.ensureCalls)
}

func TestClientQueryAndCount(t *testing.T) {
	s := newFaultyStore()
	c := newTestClient(t, s)
	ctx := context.Background()

	_, err := c.InsertVertex(ctx, common.NewCaseVertex(common.CaseRecord{CaseID: "C-1", CaseType: "FRAUD", Status: "OPEN"}))
	require.NoError(t, err)

	rows, err := c.Query(ctx, common.CollectionCases, map[string]any{"caseId": "C-1"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "FRAUD", rows[0]["caseType"])

	n, err := c.Count(ctx, common.CollectionCases, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = c.Query(ctx, "MATCH (n) RETURN n", nil)
	assert.ErrorIs(t, err, store.ErrGraphQuery)
}
