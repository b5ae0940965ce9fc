package graph

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/casegraph/pkg/common"
	"github.com/OFFIS-RIT/casegraph/pkg/logger"
)

// Projector turns case records into vertices and edges.
type Projector struct {
	client *GraphClient
}

func NewProjector(client *GraphClient) *Projector {
	return &Projector{client: client}
}

// Projection holds everything written for one case record. Failed person or
// evidence items are counted in Failures and have no key entry.
type Projection struct {
	CaseKey      string
	CaseVertex   common.CaseVertex
	PersonKeys   []string
	LocationKey  string
	EvidenceKeys []string
	Edges        []EdgeResult
	Failures     int
}

// Project writes rec into the graph and returns the key of the case vertex.
// Only a failure of the case vertex itself is returned.
func (p *Projector) Project(ctx context.Context, rec common.CaseRecord) (string, error) {
	proj, err := p.ProjectDetailed(ctx, rec)
	return proj.CaseKey, err
}

// ProjectDetailed is Project returning the full Projection.
//
// Steps:
//  1. insert the case vertex; failure aborts the projection
//  2. per person: insert the person vertex and an INVOLVED_IN edge carrying
//     the role; failures are logged and the loop continues
//  3. if a location is present: insert the location vertex only, see
//     GraphClient.CreateCaseLocationEdge
//  4. per evidence item: insert the evidence vertex and a HAS_EVIDENCE edge,
//     with the same failure handling as persons
func (p *Projector) ProjectDetailed(ctx context.Context, rec common.CaseRecord) (Projection, error) {
	proj := Projection{CaseVertex: common.NewCaseVertex(rec)}

	caseKey, err := p.client.InsertVertex(ctx, proj.CaseVertex)
	if err != nil {
		logger.Error("[Graph] Failed to create case vertex", "caseId", rec.CaseID, "err", err)
		return proj, fmt.Errorf("case vertex for %s: %w", rec.CaseID, err)
	}
	proj.CaseKey = caseKey
	proj.CaseVertex.Key = caseKey

	for i, person := range rec.InvolvedPersons {
		personKey, err := p.client.InsertVertex(ctx, common.NewPersonVertex(person))
		if err != nil {
			proj.Failures++
			logger.Error("[Graph] Failed to create person vertex", "caseId", rec.CaseID, "person", i, "err", err)
			continue
		}
		proj.PersonKeys = append(proj.PersonKeys, personKey)

		res := p.client.CreateCasePersonEdge(ctx, caseKey, personKey, person.Role)
		proj.Edges = append(proj.Edges, res)
		if !res.OK() {
			proj.Failures++
			logger.Error("[Graph] Failed to link person", "caseId", rec.CaseID, "person", personKey, "err", res.Err())
		}
	}

	if rec.Location != nil {
		locKey, err := p.client.InsertVertex(ctx, common.NewLocationVertex(*rec.Location))
		if err != nil {
			proj.Failures++
			logger.Error("[Graph] Failed to create location vertex", "caseId", rec.CaseID, "err", err)
		} else {
			proj.LocationKey = locKey
		}
	}

	for i, ev := range rec.Evidence {
		evKey, err := p.client.InsertVertex(ctx, common.NewEvidenceVertex(ev))
		if err != nil {
			proj.Failures++
			logger.Error("[Graph] Failed to create evidence vertex", "caseId", rec.CaseID, "evidence", i, "err", err)
			continue
		}
		proj.EvidenceKeys = append(proj.EvidenceKeys, evKey)

		res := p.client.CreateCaseEvidenceEdge(ctx, caseKey, evKey)
		proj.Edges = append(proj.Edges, res)
		if !res.OK() {
			proj.Failures++
			logger.Error("[Graph] Failed to link evidence", "caseId", rec.CaseID, "evidence", evKey, "err", res.Err())
		}
	}

	logger.Info("[Graph] Projected case",
		"caseId", rec.CaseID,
		"key", caseKey,
		"persons", len(proj.PersonKeys),
		"evidence", len(proj.EvidenceKeys),
		"failures", proj.Failures,
	)
	return proj, nil
}
