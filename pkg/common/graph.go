package common

import "strings"

// Vertex collection names.
const (
	CollectionCases     = "cases"
	CollectionPersons   = "persons"
	CollectionLocations = "locations"
	CollectionEvidence  = "evidence"
)

// Edge collection names.
const (
	EdgeCasePerson     = "case_person"
	EdgeCaseLocation   = "case_location"
	EdgeCaseEvidence   = "case_evidence"
	EdgePersonLocation = "person_location"
)

// Relationship types carried on edges.
const (
	RelInvolvedIn  = "INVOLVED_IN"
	RelOccurredAt  = "OCCURRED_AT"
	RelHasEvidence = "HAS_EVIDENCE"
	RelLocatedAt   = "LOCATED_AT"
)

// VertexCollections lists every vertex collection the graph store manages.
var VertexCollections = []string{
	CollectionCases,
	CollectionPersons,
	CollectionLocations,
	CollectionEvidence,
}

// EdgeCollections lists every edge collection the graph store manages.
var EdgeCollections = []string{
	EdgeCasePerson,
	EdgeCaseLocation,
	EdgeCaseEvidence,
	EdgePersonLocation,
}

// Vertex is a document that can be stored in a vertex collection. The store
// assigns the key; Properties returns the stored subset of the source entity.
type Vertex interface {
	Collection() string
	Properties() map[string]any
}

// CaseVertex is the subset of a CaseRecord kept in the graph.
type CaseVertex struct {
	Key              string `json:"_key,omitempty"`
	CaseID           string `json:"caseId"`
	CaseType         string `json:"caseType"`
	Status           string `json:"status"`
	ReportedAt       string `json:"reportedAt"`
	Description      string `json:"description"`
	ReportingOfficer string `json:"reportingOfficer"`
}

// NewCaseVertex projects a record onto its graph vertex.
func NewCaseVertex(rec CaseRecord) CaseVertex {
	return CaseVertex{
		CaseID:           rec.CaseID,
		CaseType:         rec.CaseType,
		Status:           rec.Status,
		ReportedAt:       rec.ReportedAt,
		Description:      rec.Description,
		ReportingOfficer: rec.ReportingOfficer,
	}
}

func (v CaseVertex) Collection() string { return CollectionCases }

func (v CaseVertex) Properties() map[string]any {
	return map[string]any{
		"caseId":           v.CaseID,
		"caseType":         v.CaseType,
		"status":           v.Status,
		"reportedAt":       v.ReportedAt,
		"description":      v.Description,
		"reportingOfficer": v.ReportingOfficer,
	}
}

// PersonVertex is the subset of a Person kept in the graph.
type PersonVertex struct {
	Key           string `json:"_key,omitempty"`
	PersonID      string `json:"personId"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	Role          string `json:"role"`
	ContactNumber string `json:"contactNumber"`
	Address       string `json:"address"`
}

func NewPersonVertex(p Person) PersonVertex {
	return PersonVertex{
		PersonID:      p.PersonID,
		FirstName:     p.FirstName,
		LastName:      p.LastName,
		Role:          p.Role,
		ContactNumber: p.ContactNumber,
		Address:       p.Address,
	}
}

func (v PersonVertex) Collection() string { return CollectionPersons }

func (v PersonVertex) Properties() map[string]any {
	return map[string]any{
		"personId":      v.PersonID,
		"firstName":     v.FirstName,
		"lastName":      v.LastName,
		"role":          v.Role,
		"contactNumber": v.ContactNumber,
		"address":       v.Address,
	}
}

// LocationVertex is the subset of a Location kept in the graph.
type LocationVertex struct {
	Key        string `json:"_key,omitempty"`
	Address    string `json:"address"`
	PostalCode string `json:"postalCode"`
	City       string `json:"city"`
	State      string `json:"state"`
	Country    string `json:"country"`
	District   string `json:"district"`
}

func NewLocationVertex(l Location) LocationVertex {
	return LocationVertex{
		Address:    l.Address,
		PostalCode: l.PostalCode,
		City:       l.City,
		State:      l.State,
		Country:    l.Country,
		District:   l.District,
	}
}

func (v LocationVertex) Collection() string { return CollectionLocations }

func (v LocationVertex) Properties() map[string]any {
	return map[string]any{
		"address":    v.Address,
		"postalCode": v.PostalCode,
		"city":       v.City,
		"state":      v.State,
		"country":    v.Country,
		"district":   v.District,
	}
}

// EvidenceVertex is the subset of an Evidence item kept in the graph.
type EvidenceVertex struct {
	Key         string `json:"_key,omitempty"`
	EvidenceID  string `json:"evidenceId"`
	Type        string `json:"type"`
	Description string `json:"description"`
	CollectedBy string `json:"collectedBy"`
	CollectedAt string `json:"collectedAt"`
}

func NewEvidenceVertex(e Evidence) EvidenceVertex {
	return EvidenceVertex{
		EvidenceID:  e.EvidenceID,
		Type:        e.Type,
		Description: e.Description,
		CollectedBy: e.CollectedBy,
		CollectedAt: e.CollectedAt,
	}
}

func (v EvidenceVertex) Collection() string { return CollectionEvidence }

func (v EvidenceVertex) Properties() map[string]any {
	return map[string]any{
		"evidenceId":  v.EvidenceID,
		"type":        v.Type,
		"description": v.Description,
		"collectedBy": v.CollectedBy,
		"collectedAt": v.CollectedAt,
	}
}

// Edge is a directed relationship between two vertices. From and To hold
// document handles in the form "<collection>/<key>".
type Edge struct {
	Key              string `json:"_key,omitempty"`
	From             string `json:"_from"`
	To               string `json:"_to"`
	RelationshipType string `json:"relationshipType"`
	Role             string `json:"role,omitempty"`
}

// Properties returns the edge document without its key.
func (e Edge) Properties() map[string]any {
	props := map[string]any{
		"_from":            e.From,
		"_to":              e.To,
		"relationshipType": e.RelationshipType,
	}
	if e.Role != "" {
		props["role"] = e.Role
	}
	return props
}

// Handle builds a document handle for a vertex key.
func Handle(collection, key string) string {
	return collection + "/" + key
}

// SplitHandle splits a document handle into its collection and key.
func SplitHandle(handle string) (collection string, key string, ok bool) {
	return strings.Cut(handle, "/")
}

// RecurringPerson is a person vertex reached from a case together with the
// number of paths that led to it.
type RecurringPerson struct {
	Person    map[string]any `json:"person"`
	CaseCount int            `json:"caseCount"`
}

// Hotspot is a district together with the number of cases linked to it.
type Hotspot struct {
	District  string `json:"district"`
	CaseCount int    `json:"caseCount"`
}
