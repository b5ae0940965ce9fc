package graph

import (
	"context"
	"errors"

	"github.com/OFFIS-RIT/casegraph/pkg/common"
	"github.com/OFFIS-RIT/casegraph/pkg/logger"
	"github.com/OFFIS-RIT/casegraph/pkg/metrics"
	"github.com/OFFIS-RIT/casegraph/pkg/store"
)

// EdgeTier names one of the two write paths used for edges.
type EdgeTier string

const (
	// TierRepository is the structured insert through the store's edge API.
	TierRepository EdgeTier = "repository"
	// TierQuery is the raw query insert, used when TierRepository fails.
	TierQuery EdgeTier = "query"
)

// EdgeAttempt records the outcome of one tier.
type EdgeAttempt struct {
	Tier EdgeTier
	Err  error
}

// EdgeResult is the tagged outcome of CreateEdge. Tier is the tier that
// wrote the edge and is empty when both failed.
type EdgeResult struct {
	Collection string
	Edge       common.Edge
	Key        string
	Tier       EdgeTier
	Attempts   []EdgeAttempt
}

// OK reports whether the edge was written by either tier.
func (r EdgeResult) OK() bool {
	return r.Tier != ""
}

// FellBack reports whether the query tier was needed.
func (r EdgeResult) FellBack() bool {
	return len(r.Attempts) > 1
}

// Err returns nil on success, otherwise the joined errors of all attempts
// wrapped in store.ErrGraphWrite.
func (r EdgeResult) Err() error {
	if r.OK() {
		return nil
	}
	errs := []error{store.ErrGraphWrite}
	for _, a := range r.Attempts {
		if a.Err != nil {
			errs = append(errs, a.Err)
		}
	}
	return errors.Join(errs...)
}

// CreateEdge writes edge into collection. The repository tier runs first;
// the query tier runs exactly when the repository tier failed. Both tiers
// write the same _from, _to, relationship type and role.
func (c *GraphClient) CreateEdge(ctx context.Context, collection string, edge common.Edge) EdgeResult {
	res := EdgeResult{Collection: collection, Edge: edge}

	key, err := c.saveEdge(ctx, collection, edge)
	res.Attempts = append(res.Attempts, EdgeAttempt{Tier: TierRepository, Err: err})
	if err == nil {
		res.Key = key
		res.Tier = TierRepository
		metrics.GraphWrites.WithLabelValues(collection, metrics.OutcomeOK).Inc()
		return res
	}

	logger.Warn("[Graph] Structured edge insert failed, falling back to query",
		"collection", collection, "from", edge.From, "to", edge.To, "err", err)
	metrics.EdgeFallbacks.WithLabelValues(collection).Inc()

	key, err = c.insertEdgeQuery(ctx, collection, edge)
	res.Attempts = append(res.Attempts, EdgeAttempt{Tier: TierQuery, Err: err})
	metrics.GraphWrites.WithLabelValues(collection, metrics.Outcome(err)).Inc()
	if err != nil {
		logger.Error("[Graph] Edge insert failed", "collection", collection, "from", edge.From, "to", edge.To, "err", err)
		return res
	}
	res.Key = key
	res.Tier = TierQuery
	return res
}

// CreateCaseLocationEdge links a case to a location with OCCURRED_AT. The
// projector never calls this; callers that need the edge invoke it.
func (c *GraphClient) CreateCaseLocationEdge(ctx context.Context, caseKey, locationKey string) EdgeResult {
	return c.CreateEdge(ctx, common.EdgeCaseLocation, common.Edge{
		From:             common.Handle(common.CollectionCases, caseKey),
		To:               common.Handle(common.CollectionLocations, locationKey),
		RelationshipType: common.RelOccurredAt,
	})
}

// CreateCaseEvidenceEdge links a case to an evidence item with HAS_EVIDENCE.
func (c *GraphClient) CreateCaseEvidenceEdge(ctx context.Context, caseKey, evidenceKey string) EdgeResult {
	return c.CreateEdge(ctx, common.EdgeCaseEvidence, common.Edge{
		From:             common.Handle(common.CollectionCases, caseKey),
		To:               common.Handle(common.CollectionEvidence, evidenceKey),
		RelationshipType: common.RelHasEvidence,
	})
}

// CreateCasePersonEdge links a case to a person with INVOLVED_IN and the
// person's role.
func (c *GraphClient) CreateCasePersonEdge(ctx context.Context, caseKey, personKey, role string) EdgeResult {
	return c.CreateEdge(ctx, common.EdgeCasePerson, common.Edge{
		From:             common.Handle(common.CollectionCases, caseKey),
		To:               common.Handle(common.CollectionPersons, personKey),
		RelationshipType: common.RelInvolvedIn,
		Role:             role,
	})
}

// CreatePersonLocationEdge links a person to a location with LOCATED_AT.
func (c *GraphClient) CreatePersonLocationEdge(ctx context.Context, personKey, locationKey string) EdgeResult {
	return c.CreateEdge(ctx, common.EdgePersonLocation, common.Edge{
		From:             common.Handle(common.CollectionPersons, personKey),
		To:               common.Handle(common.CollectionLocations, locationKey),
		RelationshipType: common.RelLocatedAt,
	})
}
