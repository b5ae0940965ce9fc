package pgx

import (
	"context"
	"encoding/json"
	"fmt"

	pgxv5 "github.com/jackc/pgx/v5"

	"github.com/OFFIS-RIT/casegraph/pkg/common"
	"github.com/OFFIS-RIT/casegraph/pkg/store"
)

const similarCasesSQL = `
SELECT doc FROM cases
WHERE doc->>'caseType' = @caseType AND doc->>'caseId' <> @caseId
ORDER BY created_at`

// Persons exactly two outbound case_person hops away from the start vertex.
const recurringPersonsSQL = `
SELECT e2._to AS handle, count(*) AS n, p.doc
FROM case_person e1
JOIN case_person e2 ON e2._from = e1._to
LEFT JOIN persons p ON 'persons/' || p._key = e2._to
WHERE e1._from = @start
GROUP BY e2._to, p.doc
HAVING count(*) > 1
ORDER BY n DESC, handle`

const locationHotspotsSQL = `
SELECT l.doc->>'district' AS district, count(*) AS n
FROM case_location e
JOIN cases c ON e._from = 'cases/' || c._key
JOIN locations l ON e._to = 'locations/' || l._key
GROUP BY 1
HAVING count(*) > @min
ORDER BY n DESC, district`

func namedArgs(args map[string]any) []any {
	if len(args) == 0 {
		return nil
	}
	return []any{pgxv5.NamedArgs(args)}
}

// Query runs an ad-hoc SQL statement. Named arguments use the @name syntax.
func (s *GraphDBStorage) Query(ctx context.Context, query string, args map[string]any) ([]map[string]any, error) {
	rows, err := s.conn.Query(ctx, query, namedArgs(args)...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrGraphQuery, err)
	}
	result, err := pgxv5.CollectRows(rows, pgxv5.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrGraphQuery, err)
	}
	return result, nil
}

// Count runs an ad-hoc SQL statement returning a single number.
func (s *GraphDBStorage) Count(ctx context.Context, query string, args map[string]any) (int64, error) {
	var n int64
	if err := s.conn.QueryRow(ctx, query, namedArgs(args)...).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: %w", store.ErrGraphQuery, err)
	}
	return n, nil
}

func (s *GraphDBStorage) SimilarCases(ctx context.Context, caseType string, excludeCaseID string) ([]map[string]any, error) {
	rows, err := s.conn.Query(ctx, similarCasesSQL, pgxv5.NamedArgs{
		"caseType": caseType,
		"caseId":   excludeCaseID,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: similar cases: %w", store.ErrGraphQuery, err)
	}

	docs, err := pgxv5.CollectRows(rows, func(row pgxv5.CollectableRow) (map[string]any, error) {
		var raw []byte
		if err := row.Scan(&raw); err != nil {
			return nil, err
		}
		var doc map[string]any
		err := json.Unmarshal(raw, &doc)
		return doc, err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: similar cases: %w", store.ErrGraphQuery, err)
	}
	return docs, nil
}

func (s *GraphDBStorage) RecurringPersons(ctx context.Context, caseKey string) ([]common.RecurringPerson, error) {
	rows, err := s.conn.Query(ctx, recurringPersonsSQL, pgxv5.NamedArgs{
		"start": common.Handle(common.CollectionCases, caseKey),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: recurring persons: %w", store.ErrGraphQuery, err)
	}

	result, err := pgxv5.CollectRows(rows, func(row pgxv5.CollectableRow) (common.RecurringPerson, error) {
		var (
			handle string
			n      int64
			raw    []byte
		)
		if err := row.Scan(&handle, &n, &raw); err != nil {
			return common.RecurringPerson{}, err
		}
		doc := map[string]any{}
		if raw != nil {
			if err := json.Unmarshal(raw, &doc); err != nil {
				return common.RecurringPerson{}, err
			}
		}
		doc["_id"] = handle
		return common.RecurringPerson{Person: doc, CaseCount: int(n)}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: recurring persons: %w", store.ErrGraphQuery, err)
	}
	return result, nil
}

func (s *GraphDBStorage) LocationHotspots(ctx context.Context, minCases int) ([]common.Hotspot, error) {
	rows, err := s.conn.Query(ctx, locationHotspotsSQL, pgxv5.NamedArgs{"min": minCases})
	if err != nil {
		return nil, fmt.Errorf("%w: location hotspots: %w", store.ErrGraphQuery, err)
	}

	result, err := pgxv5.CollectRows(rows, func(row pgxv5.CollectableRow) (common.Hotspot, error) {
		var (
			district *string
			n        int64
		)
		if err := row.Scan(&district, &n); err != nil {
			return common.Hotspot{}, err
		}
		h := common.Hotspot{CaseCount: int(n)}
		if district != nil {
			h.District = *district
		}
		return h, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: location hotspots: %w", store.ErrGraphQuery, err)
	}
	return result, nil
}
