package memory

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"

	"github.com/OFFIS-RIT/casegraph/pkg/common"
	"github.com/OFFIS-RIT/casegraph/pkg/store"
)

type collection struct {
	order []string
	docs  map[string]map[string]any
}

func newCollection() *collection {
	return &collection{docs: make(map[string]map[string]any)}
}

// GraphMemStorage is an in-process implementation of store.GraphStorage.
// It keeps documents in insertion order and evaluates the correlation
// queries directly on the maps. Ad-hoc queries are collection scans with
// equality filters, see Query.
type GraphMemStorage struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

// NewGraphMemStorage creates an empty in-memory graph store.
func NewGraphMemStorage() *GraphMemStorage {
	return &GraphMemStorage{collections: make(map[string]*collection)}
}

func (s *GraphMemStorage) EnsureCollections(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range common.VertexCollections {
		s.ensure(name)
	}
	for _, name := range common.EdgeCollections {
		s.ensure(name)
	}
	return nil
}

func (s *GraphMemStorage) CollectionExists(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[name]
	return ok, nil
}

func (s *GraphMemStorage) ensure(name string) *collection {
	c, ok := s.collections[name]
	if !ok {
		c = newCollection()
		s.collections[name] = c
	}
	return c
}

func (s *GraphMemStorage) insert(name string, doc map[string]any) (string, error) {
	key, err := store.NewKey()
	if err != nil {
		return "", err
	}
	doc["_key"] = key

	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.ensure(name)
	c.docs[key] = doc
	c.order = append(c.order, key)
	return key, nil
}

func (s *GraphMemStorage) InsertVertex(ctx context.Context, v common.Vertex) (string, error) {
	if err := store.CheckVertexCollection(v.Collection()); err != nil {
		return "", fmt.Errorf("%w: %w", store.ErrGraphWrite, err)
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", store.ErrGraphWrite, err)
	}
	return s.insert(v.Collection(), v.Properties())
}

func (s *GraphMemStorage) GetVertex(ctx context.Context, name string, key string) (map[string]any, error) {
	if err := store.CheckVertexCollection(name); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, store.ErrNotFound
	}
	doc, ok := c.docs[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return maps.Clone(doc), nil
}

func (s *GraphMemStorage) SaveEdge(ctx context.Context, name string, edge common.Edge) (string, error) {
	return s.insertEdge(ctx, name, edge)
}

func (s *GraphMemStorage) InsertEdgeQuery(ctx context.Context, name string, edge common.Edge) (string, error) {
	return s.insertEdge(ctx, name, edge)
}

func (s *GraphMemStorage) insertEdge(ctx context.Context, name string, edge common.Edge) (string, error) {
	if err := store.CheckEdgeCollection(name); err != nil {
		return "", fmt.Errorf("%w: %w", store.ErrGraphWrite, err)
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", store.ErrGraphWrite, err)
	}
	return s.insert(name, edge.Properties())
}

// Query takes the name of a collection as query and returns its documents
// whose fields equal every entry of args, in insertion order. Values are
// compared by their string form.
func (s *GraphMemStorage) Query(ctx context.Context, query string, args map[string]any) ([]map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrGraphQuery, err)
	}
	name := strings.TrimSpace(query)
	if !store.IsVertexCollection(name) && !store.IsEdgeCollection(name) {
		return nil, fmt.Errorf("%w: %w: %q", store.ErrGraphQuery, store.ErrUnknownCollection, name)
	}

	out := []map[string]any{}
	for _, doc := range s.Documents(name) {
		if matches(doc, args) {
			out = append(out, doc)
		}
	}
	return out, nil
}

// Count returns the number of documents Query would return.
func (s *GraphMemStorage) Count(ctx context.Context, query string, args map[string]any) (int64, error) {
	docs, err := s.Query(ctx, query, args)
	if err != nil {
		return 0, err
	}
	return int64(len(docs)), nil
}

func matches(doc map[string]any, filter map[string]any) bool {
	for k, want := range filter {
		got, ok := doc[k]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

// Documents returns copies of all documents of a collection in insertion
// order.
func (s *GraphMemStorage) Documents(name string) []map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, maps.Clone(c.docs[k]))
	}
	return out
}

func (s *GraphMemStorage) SimilarCases(ctx context.Context, caseType string, excludeCaseID string) ([]map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrGraphQuery, err)
	}
	var out []map[string]any
	for _, doc := range s.Documents(common.CollectionCases) {
		if doc["caseType"] == caseType && doc["caseId"] != excludeCaseID {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (s *GraphMemStorage) RecurringPersons(ctx context.Context, caseKey string) ([]common.RecurringPerson, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrGraphQuery, err)
	}

	edges := s.Documents(common.EdgeCasePerson)
	start := common.Handle(common.CollectionCases, caseKey)

	counts := map[string]int{}
	for _, e1 := range edges {
		if e1["_from"] != start {
			continue
		}
		for _, e2 := range edges {
			if e2["_from"] == e1["_to"] {
				counts[e2["_to"].(string)]++
			}
		}
	}

	var out []common.RecurringPerson
	for handle, n := range counts {
		if n <= 1 {
			continue
		}
		doc := map[string]any{"_id": handle}
		if coll, key, ok := common.SplitHandle(handle); ok {
			if v, err := s.GetVertex(ctx, coll, key); err == nil {
				doc = v
				doc["_id"] = handle
			}
		}
		out = append(out, common.RecurringPerson{Person: doc, CaseCount: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CaseCount != out[j].CaseCount {
			return out[i].CaseCount > out[j].CaseCount
		}
		return out[i].Person["_id"].(string) < out[j].Person["_id"].(string)
	})
	return out, nil
}

func (s *GraphMemStorage) LocationHotspots(ctx context.Context, minCases int) ([]common.Hotspot, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrGraphQuery, err)
	}

	counts := map[string]int{}
	for _, e := range s.Documents(common.EdgeCaseLocation) {
		fromColl, fromKey, ok := common.SplitHandle(e["_from"].(string))
		if !ok || fromColl != common.CollectionCases {
			continue
		}
		if _, err := s.GetVertex(ctx, fromColl, fromKey); err != nil {
			continue
		}
		toColl, toKey, ok := common.SplitHandle(e["_to"].(string))
		if !ok || toColl != common.CollectionLocations {
			continue
		}
		loc, err := s.GetVertex(ctx, toColl, toKey)
		if err != nil {
			continue
		}
		district, _ := loc["district"].(string)
		counts[district]++
	}

	var out []common.Hotspot
	for district, n := range counts {
		if n > minCases {
			out = append(out, common.Hotspot{District: district, CaseCount: n})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CaseCount != out[j].CaseCount {
			return out[i].CaseCount > out[j].CaseCount
		}
		return out[i].District < out[j].District
	})
	return out, nil
}

func (s *GraphMemStorage) Close(ctx context.Context) error {
	return nil
}
