package neo4j

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/casegraph/pkg/common"
	"github.com/OFFIS-RIT/casegraph/pkg/store"
)

const similarCasesCypher = `
MATCH (c:Case {caseType: $caseType})
WHERE c.caseId <> $caseId
RETURN properties(c) AS doc`

const recurringPersonsCypher = `
MATCH (c:Case {key: $key})-[r1]->()-[r2]->(p)
WHERE r1.collection = 'case_person' AND r2.collection = 'case_person'
WITH r2.to AS handle, p, count(*) AS n
WHERE n > 1
RETURN handle, properties(p) AS person, n
ORDER BY n DESC, handle`

const locationHotspotsCypher = `
MATCH (c:Case)-[r]->(l:Location)
WHERE r.collection = 'case_location'
WITH l.district AS district, count(*) AS n
WHERE n > $min
RETURN district, n
ORDER BY n DESC, district`

// Query runs an ad-hoc Cypher statement and returns every record as a map.
func (s *Neo4jStorage) Query(ctx context.Context, query string, args map[string]any) ([]map[string]any, error) {
	res, err := s.execute(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrGraphQuery, err)
	}
	out := make([]map[string]any, 0, len(res.Records))
	for _, rec := range res.Records {
		out = append(out, rec.AsMap())
	}
	return out, nil
}

// Count runs an ad-hoc Cypher statement and returns the first value of the
// first record.
func (s *Neo4jStorage) Count(ctx context.Context, query string, args map[string]any) (int64, error) {
	res, err := s.execute(ctx, query, args)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", store.ErrGraphQuery, err)
	}
	if len(res.Records) == 0 || len(res.Records[0].Values) == 0 {
		return 0, nil
	}
	return int64(store.ToInt(res.Records[0].Values[0])), nil
}

func (s *Neo4jStorage) SimilarCases(ctx context.Context, caseType string, excludeCaseID string) ([]map[string]any, error) {
	res, err := s.execute(ctx, similarCasesCypher, map[string]any{
		"caseType": caseType,
		"caseId":   excludeCaseID,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: similar cases: %w", store.ErrGraphQuery, err)
	}
	out := make([]map[string]any, 0, len(res.Records))
	for _, rec := range res.Records {
		raw, _ := rec.Get("doc")
		props, _ := raw.(map[string]any)
		out = append(out, fromNode(props))
	}
	return out, nil
}

func (s *Neo4jStorage) RecurringPersons(ctx context.Context, caseKey string) ([]common.RecurringPerson, error) {
	res, err := s.execute(ctx, recurringPersonsCypher, map[string]any{"key": caseKey})
	if err != nil {
		return nil, fmt.Errorf("%w: recurring persons: %w", store.ErrGraphQuery, err)
	}
	out := make([]common.RecurringPerson, 0, len(res.Records))
	for _, rec := range res.Records {
		raw, _ := rec.Get("person")
		props, _ := raw.(map[string]any)
		doc := fromNode(props)
		if handle, ok := rec.Get("handle"); ok && handle != nil {
			doc["_id"] = handle
		}
		n, _ := rec.Get("n")
		out = append(out, common.RecurringPerson{Person: doc, CaseCount: store.ToInt(n)})
	}
	return out, nil
}

func (s *Neo4jStorage) LocationHotspots(ctx context.Context, minCases int) ([]common.Hotspot, error) {
	res, err := s.execute(ctx, locationHotspotsCypher, map[string]any{"min": minCases})
	if err != nil {
		return nil, fmt.Errorf("%w: location hotspots: %w", store.ErrGraphQuery, err)
	}
	out := make([]common.Hotspot, 0, len(res.Records))
	for _, rec := range res.Records {
		district, _ := rec.Get("district")
		d, _ := district.(string)
		n, _ := rec.Get("n")
		out = append(out, common.Hotspot{District: d, CaseCount: store.ToInt(n)})
	}
	return out, nil
}
