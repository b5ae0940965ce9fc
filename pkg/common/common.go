package common

// CaseRecord is the canonical representation of an incident report after it
// has been extracted from any supported source format. It is the payload that
// travels through the ingestion pipeline and over the message bus.
//
// A case record contains:
//   - Identity and classification (CaseID, CaseType, Status, Priority)
//   - Narrative and ownership (Description, officers, Department)
//   - Involved entities (Location, InvolvedPersons, Evidence, Contacts)
//   - Provenance stamped during normalization (SourceFile, ProcessedBy, ProcessedAt)
//
// Timestamps are kept as free-form strings because the upstream sources do
// not agree on a single format.
type CaseRecord struct {
	CaseID           string     `json:"caseId"`
	CaseType         string     `json:"caseType" validate:"required"`
	Status           string     `json:"status" validate:"required"`
	Priority         string     `json:"priority,omitempty"`
	ReportedAt       string     `json:"reportedAt,omitempty"`
	IncidentDate     string     `json:"incidentDate,omitempty"`
	Description      string     `json:"description,omitempty"`
	ReportingOfficer string     `json:"reportingOfficer,omitempty"`
	AssignedOfficer  string     `json:"assignedOfficer,omitempty"`
	Department       string     `json:"department,omitempty"`
	Precinct         string     `json:"precinct,omitempty"`
	Location         *Location  `json:"location,omitempty"`
	InvolvedPersons  []Person   `json:"involvedPersons,omitempty"`
	Evidence         []Evidence `json:"evidence,omitempty"`
	Contacts         []Contact  `json:"contacts,omitempty"`

	SourceFile  string `json:"sourceFile,omitempty"`
	ProcessedBy string `json:"processedBy,omitempty"`
	ProcessedAt string `json:"processedAt,omitempty"`

	AdditionalAttributes map[string]any `json:"additionalAttributes,omitempty"`
}

// Clone returns a copy of the record that shares no mutable state with the
// original. Pipeline stages operate on clones so that a caller's record is
// never modified behind its back.
func (c CaseRecord) Clone() CaseRecord {
	out := c
	if c.Location != nil {
		loc := *c.Location
		out.Location = &loc
	}
	if c.InvolvedPersons != nil {
		out.InvolvedPersons = make([]Person, len(c.InvolvedPersons))
		for i, p := range c.InvolvedPersons {
			p.Aliases = append([]string(nil), p.Aliases...)
			out.InvolvedPersons[i] = p
		}
	}
	if c.Evidence != nil {
		out.Evidence = make([]Evidence, len(c.Evidence))
		for i, e := range c.Evidence {
			e.Metadata = cloneMap(e.Metadata)
			out.Evidence[i] = e
		}
	}
	if c.Contacts != nil {
		out.Contacts = append([]Contact(nil), c.Contacts...)
	}
	out.AdditionalAttributes = cloneMap(c.AdditionalAttributes)
	return out
}

// SetAttribute stores an extension attribute, allocating the bag on first use.
func (c *CaseRecord) SetAttribute(key string, value any) {
	if c.AdditionalAttributes == nil {
		c.AdditionalAttributes = make(map[string]any)
	}
	c.AdditionalAttributes[key] = value
}

// Person is an individual involved in a case.
type Person struct {
	PersonID      string   `json:"personId,omitempty"`
	FirstName     string   `json:"firstName,omitempty"`
	MiddleName    string   `json:"middleName,omitempty"`
	LastName      string   `json:"lastName,omitempty"`
	Role          string   `json:"role,omitempty"`
	ContactNumber string   `json:"contactNumber,omitempty"`
	Email         string   `json:"email,omitempty"`
	Address       string   `json:"address,omitempty"`
	IDDocument    string   `json:"idDocument,omitempty"`
	Aliases       []string `json:"aliases,omitempty"`
	Relationship  string   `json:"relationship,omitempty"`
}

// Location is where an incident took place.
type Location struct {
	Address      string   `json:"address,omitempty"`
	PostalCode   string   `json:"postalCode,omitempty"`
	City         string   `json:"city,omitempty"`
	State        string   `json:"state,omitempty"`
	Country      string   `json:"country,omitempty"`
	District     string   `json:"district,omitempty"`
	Precinct     string   `json:"precinct,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	Landmark     string   `json:"landmark,omitempty"`
	LocationType string   `json:"locationType,omitempty"`
}

// Evidence is an item collected for a case.
type Evidence struct {
	EvidenceID  string         `json:"evidenceId,omitempty"`
	Type        string         `json:"type,omitempty"`
	Description string         `json:"description,omitempty"`
	CollectedBy string         `json:"collectedBy,omitempty"`
	CollectedAt string         `json:"collectedAt,omitempty"`
	Custodian   string         `json:"custodian,omitempty"`
	Sealed      bool           `json:"sealed,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Contact is a point of contact attached to a case that is not necessarily a
// participant in the incident itself.
type Contact struct {
	ContactID    string `json:"contactId,omitempty"`
	Name         string `json:"name,omitempty"`
	Relationship string `json:"relationship,omitempty"`
	PhoneNumber  string `json:"phoneNumber,omitempty"`
	Email        string `json:"email,omitempty"`
	Address      string `json:"address,omitempty"`
	ContactType  string `json:"contactType,omitempty"`
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
