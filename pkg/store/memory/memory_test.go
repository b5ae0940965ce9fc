package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OFFIS-RIT/casegraph/pkg/common"
	"github.com/OFFIS-RIT/casegraph/pkg/store"
)

var _ store.GraphStorage = (*GraphMemStorage)(nil)

func insertCase(t *testing.T, s *GraphMemStorage, id, caseType string) string {
	t.Helper()
	key, err := s.InsertVertex(context.Background(), common.NewCaseVertex(common.CaseRecord{
		CaseID:   id,
		CaseType: caseType,
		Status:   "OPEN",
	}))
	require.NoError(t, err)
	return key
}

func TestEnsureCollections(t *testing.T) {
	s := NewGraphMemStorage()
	ctx := context.Background()
	require.NoError(t, s.EnsureCollections(ctx))

	for _, name := range append(append([]string{}, common.VertexCollections...), common.EdgeCollections...) {
		ok, err := s.CollectionExists(ctx, name)
		require.NoError(t, err)
		assert.True(t, ok, name)
	}
	ok, err := s.CollectionExists(ctx, "suspects")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInsertVertexIsInsertOnly(t *testing.T) {
	s := NewGraphMemStorage()
	ctx := context.Background()
	p := common.NewPersonVertex(common.Person{FirstName: "John", LastName: "Doe"})

	k1, err := s.InsertVertex(ctx, p)
	require.NoError(t, err)
	k2, err := s.InsertVertex(ctx, p)
	require.NoError(t, err)

	assert.NotEqual(t, k1, k2)
	assert.Len(t, s.Documents(common.CollectionPersons), 2)

	doc, err := s.GetVertex(ctx, common.CollectionPersons, k1)
	require.NoError(t, err)
	assert.Equal(t, "John", doc["firstName"])
	assert.Equal(t, k1, doc["_key"])
}

func TestGetVertexNotFound(t *testing.T) {
	s := NewGraphMemStorage()
	ctx := context.Background()
	insertCase(t, s, "C-1", "THEFT")

	_, err := s.GetVertex(ctx, common.CollectionCases, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetVertex(ctx, common.CollectionPersons, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUnknownCollection(t *testing.T) {
	s := NewGraphMemStorage()
	ctx := context.Background()

	_, err := s.GetVertex(ctx, "suspects", "x")
	assert.ErrorIs(t, err, store.ErrUnknownCollection)

	_, err = s.SaveEdge(ctx, "case_suspect", common.Edge{From: "cases/a", To: "persons/b"})
	assert.ErrorIs(t, err, store.ErrGraphWrite)
	assert.ErrorIs(t, err, store.ErrUnknownCollection)
}

func TestEdgePathsProduceSameDocument(t *testing.T) {
	s := NewGraphMemStorage()
	ctx := context.Background()
	edge := common.Edge{
		From:             "cases/a",
		To:               "persons/b",
		RelationshipType: common.RelInvolvedIn,
		Role:             "WITNESS",
	}

	k1, err := s.SaveEdge(ctx, common.EdgeCasePerson, edge)
	require.NoError(t, err)
	k2, err := s.InsertEdgeQuery(ctx, common.EdgeCasePerson, edge)
	require.NoError(t, err)

	docs := s.Documents(common.EdgeCasePerson)
	require.Len(t, docs, 2)
	assert.Equal(t, k1, docs[0]["_key"])
	assert.Equal(t, k2, docs[1]["_key"])
	delete(docs[0], "_key")
	delete(docs[1], "_key")
	assert.Equal(t, docs[0], docs[1])
	assert.Equal(t, "WITNESS", docs[0]["role"])
}

func TestCanceledContextFailsWrite(t *testing.T) {
	s := NewGraphMemStorage()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.InsertVertex(ctx, common.NewCaseVertex(common.CaseRecord{CaseID: "C-1"}))
	assert.ErrorIs(t, err, store.ErrGraphWrite)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSimilarCasesExcludesSelf(t *testing.T) {
	s := NewGraphMemStorage()
	insertCase(t, s, "C-1", "THEFT")
	insertCase(t, s, "C-2", "THEFT")
	insertCase(t, s, "C-3", "ASSAULT")

	docs, err := s.SimilarCases(context.Background(), "THEFT", "C-1")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "C-2", docs[0]["caseId"])

	docs, err = s.SimilarCases(context.Background(), "FRAUD", "C-1")
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestLocationHotspots(t *testing.T) {
	s := NewGraphMemStorage()
	ctx := context.Background()

	link := func(district string, n int) {
		for i := range n {
			caseKey := insertCase(t, s, fmt.Sprintf("%s-%d", district, i), "THEFT")
			locKey, err := s.InsertVertex(ctx, common.NewLocationVertex(common.Location{District: district}))
			require.NoError(t, err)
			_, err = s.SaveEdge(ctx, common.EdgeCaseLocation, common.Edge{
				From:             common.Handle(common.CollectionCases, caseKey),
				To:               common.Handle(common.CollectionLocations, locKey),
				RelationshipType: common.RelOccurredAt,
			})
			require.NoError(t, err)
		}
	}
	link("North", 6)
	link("South", 8)
	link("East", 5)

	spots, err := s.LocationHotspots(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, []common.Hotspot{
		{District: "South", CaseCount: 8},
		{District: "North", CaseCount: 6},
	}, spots)
}

func TestRecurringPersonsTwoHops(t *testing.T) {
	s := NewGraphMemStorage()
	ctx := context.Background()
	caseKey := insertCase(t, s, "C-1", "THEFT")

	mid1, err := s.InsertVertex(ctx, common.NewPersonVertex(common.Person{FirstName: "A"}))
	require.NoError(t, err)
	mid2, err := s.InsertVertex(ctx, common.NewPersonVertex(common.Person{FirstName: "B"}))
	require.NoError(t, err)
	target, err := s.InsertVertex(ctx, common.NewPersonVertex(common.Person{FirstName: "Target"}))
	require.NoError(t, err)

	edge := func(from, to string) {
		_, err := s.SaveEdge(ctx, common.EdgeCasePerson, common.Edge{From: from, To: to, RelationshipType: common.RelInvolvedIn})
		require.NoError(t, err)
	}
	caseH := common.Handle(common.CollectionCases, caseKey)
	edge(caseH, common.Handle(common.CollectionPersons, mid1))
	edge(caseH, common.Handle(common.CollectionPersons, mid2))
	edge(common.Handle(common.CollectionPersons, mid1), common.Handle(common.CollectionPersons, target))
	edge(common.Handle(common.CollectionPersons, mid2), common.Handle(common.CollectionPersons, target))

	got, err := s.RecurringPersons(ctx, caseKey)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].CaseCount)
	assert.Equal(t, "Target", got[0].Person["firstName"])
	assert.Equal(t, common.Handle(common.CollectionPersons, target), got[0].Person["_id"])
}

func TestRecurringPersonsEmptyForIngestShape(t *testing.T) {
	s := NewGraphMemStorage()
	ctx := context.Background()
	caseKey := insertCase(t, s, "C-1", "THEFT")
	personKey, err := s.InsertVertex(ctx, common.NewPersonVertex(common.Person{FirstName: "A"}))
	require.NoError(t, err)
	_, err = s.SaveEdge(ctx, common.EdgeCasePerson, common.Edge{
		From:             common.Handle(common.CollectionCases, caseKey),
		To:               common.Handle(common.CollectionPersons, personKey),
		RelationshipType: common.RelInvolvedIn,
	})
	require.NoError(t, err)

	got, err := s.RecurringPersons(ctx, caseKey)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestQueryFiltersCollection(t *testing.T) {
	s := NewGraphMemStorage()
	ctx := context.Background()
	insertCase(t, s, "C-1", "THEFT")
	insertCase(t, s, "C-2", "FRAUD")
	insertCase(t, s, "C-3", "THEFT")

	docs, err := s.Query(ctx, "cases", map[string]any{"caseType": "THEFT"})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "C-1", docs[0]["caseId"])
	assert.Equal(t, "C-3", docs[1]["caseId"])

	all, err := s.Query(ctx, " cases ", nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	n, err := s.Count(ctx, "cases", map[string]any{"caseType": "FRAUD"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	none, err := s.Query(ctx, "persons", map[string]any{"firstName": "Jane"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestQueryUnknownCollection(t *testing.T) {
	s := NewGraphMemStorage()
	_, err := s.Query(context.Background(), "SELECT 1", nil)
	assert.ErrorIs(t, err, store.ErrGraphQuery)
	assert.ErrorIs(t, err, store.ErrUnknownCollection)

	_, err = s.Count(context.Background(), "suspects", nil)
	assert.ErrorIs(t, err, store.ErrGraphQuery)
}
