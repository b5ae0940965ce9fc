package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OFFIS-RIT/casegraph/pkg/common"
	"github.com/OFFIS-RIT/casegraph/pkg/store"
)

func sampleCase() common.CaseRecord {
	return common.CaseRecord{
		CaseID:   "C-100",
		CaseType: "THEFT",
		Status:   "OPEN",
		InvolvedPersons: []common.Person{
			{FirstName: "Ann", LastName: "Lee", Role: "VICTIM"},
			{FirstName: "Bob", LastName: "Ray", Role: "SUSPECT"},
		},
		Location: &common.Location{Address: "1 Main St", City: "Springfield", District: "North"},
		Evidence: []common.Evidence{{EvidenceID: "E-1", Type: "PHOTO"}},
	}
}

func TestProjectWritesVerticesAndEdges(t *testing.T) {
	s := newFaultyStore()
	p := NewProjector(newTestClient(t, s))

	proj, err := p.ProjectDetailed(context.Background(), sampleCase())
	require.NoError(t, err)

	assert.NotEmpty(t, proj.CaseKey)
	assert.Len(t, proj.PersonKeys, 2)
	assert.NotEmpty(t, proj.LocationKey)
	assert.Len(t, proj.EvidenceKeys, 1)
	assert.Zero(t, proj.Failures)

	edges := s.Documents(common.EdgeCasePerson)
	require.Len(t, edges, 2)
	assert.Equal(t, common.Handle(common.CollectionCases, proj.CaseKey), edges[0]["_from"])
	assert.Equal(t, common.Handle(common.CollectionPersons, proj.PersonKeys[0]), edges[0]["_to"])
	assert.Equal(t, common.RelInvolvedIn, edges[0]["relationshipType"])
	assert.Equal(t, "VICTIM", edges[0]["role"])
	assert.Equal(t, "SUSPECT", edges[1]["role"])

	assert.Len(t, s.Documents(common.EdgeCaseEvidence), 1)
	assert.Empty(t, s.Documents(common.EdgeCaseLocation), "location is projected as vertex only")
}

func TestProjectSecondPersonEdgeFailureKeepsFirst(t *testing.T) {
	s := newFaultyStore()
	s.failSaveEdgeAt[2] = true
	s.failQueryEdge = true
	p := NewProjector(newTestClient(t, s))

	proj, err := p.ProjectDetailed(context.Background(), sampleCase())
	require.NoError(t, err)
	assert.NotEmpty(t, proj.CaseKey)

	edges := s.Documents(common.EdgeCasePerson)
	require.Len(t, edges, 1)
	assert.Equal(t, common.Handle(common.CollectionPersons, proj.PersonKeys[0]), edges[0]["_to"])
	assert.Equal(t, 1, proj.Failures)
	assert.Len(t, s.Documents(common.CollectionPersons), 2)
}

func TestProjectCaseVertexFailureIsFatal(t *testing.T) {
	s := newFaultyStore()
	s.failVertex[common.CollectionCases] = true
	p := NewProjector(newTestClient(t, s))

	key, err := p.Project(context.Background(), sampleCase())
	assert.Empty(t, key)
	assert.ErrorIs(t, err, store.ErrGraphWrite)
	assert.Empty(t, s.Documents(common.CollectionPersons))
}

func TestProjectPersonVertexFailureContinues(t *testing.T) {
	s := newFaultyStore()
	s.failVertex[common.CollectionPersons] = true
	p := NewProjector(newTestClient(t, s))

	proj, err := p.ProjectDetailed(context.Background(), sampleCase())
	require.NoError(t, err)
	assert.Equal(t, 2, proj.Failures)
	assert.Len(t, proj.EvidenceKeys, 1)
	assert.NotEmpty(t, proj.LocationKey)
}

func TestProjectDuplicatePersonsCreateTwoVertices(t *testing.T) {
	s := newFaultyStore()
	p := NewProjector(newTestClient(t, s))
	rec := sampleCase()
	rec.InvolvedPersons = []common.Person{{FirstName: "Ann", LastName: "Lee"}}

	_, err := p.Project(context.Background(), rec)
	require.NoError(t, err)
	rec.CaseID = "C-101"
	_, err = p.Project(context.Background(), rec)
	require.NoError(t, err)

	assert.Len(t, s.Documents(common.CollectionPersons), 2)
	assert.Len(t, s.Documents(common.CollectionLocations), 2)
}

func TestProjectWithoutLocation(t *testing.T) {
	s := newFaultyStore()
	p := NewProjector(newTestClient(t, s))
	rec := sampleCase()
	rec.Location = nil

	proj, err := p.ProjectDetailed(context.Background(), rec)
	require.NoError(t, err)
	assert.Empty(t, proj.LocationKey)
	assert.Empty(t, s.Documents(common.CollectionLocations))
}
