package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/OFFIS-RIT/casegraph/pkg/common"
	"github.com/OFFIS-RIT/casegraph/pkg/loader"
)

const (
	// DefaultIDPrefix is used when a record without identifier carries no
	// source-specific prefix.
	DefaultIDPrefix = "CASE"
	// DefaultStatus is assigned to records that arrive without a status.
	DefaultStatus = "OPEN"
	// DefaultProcessedBy is stamped as provenance on every record.
	DefaultProcessedBy = "FILE_PROCESSOR"
)

const suffixAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Normalizer maps extracted items onto canonical case records and applies
// the default and provenance rules. It holds no per-call state and is safe
// for concurrent use.
type Normalizer struct {
	now         func() time.Time
	suffix      func() (string, error)
	processedBy string
}

// NormalizerOption configures a Normalizer.
type NormalizerOption func(*Normalizer)

// WithClock replaces the wall clock used for synthetic ids and timestamps.
func WithClock(now func() time.Time) NormalizerOption {
	return func(n *Normalizer) {
		n.now = now
	}
}

// WithSuffix replaces the random suffix appended to synthetic ids.
func WithSuffix(suffix func() (string, error)) NormalizerOption {
	return func(n *Normalizer) {
		n.suffix = suffix
	}
}

// WithProcessedBy sets the processor name stamped as provenance.
func WithProcessedBy(name string) NormalizerOption {
	return func(n *Normalizer) {
		if name != "" {
			n.processedBy = name
		}
	}
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{
		now: time.Now,
		suffix: func() (string, error) {
			return gonanoid.Generate(suffixAlphabet, 6)
		},
		processedBy: DefaultProcessedBy,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(n)
	}
	return n
}

// Normalize turns one extractor item into a case record with defaults and
// provenance applied.
func (n *Normalizer) Normalize(item loader.Record, source string) (common.CaseRecord, error) {
	var rec common.CaseRecord
	switch {
	case item.Case != nil:
		rec = item.Case.Clone()
	case item.Fields != nil:
		rec = n.FromFields(item.Fields)
	default:
		return common.CaseRecord{}, fmt.Errorf("%w: empty item", loader.ErrMalformedRecord)
	}

	n.ApplyDefaults(&rec, item.IDPrefix)
	n.Stamp(&rec, source)
	return rec, nil
}

// FromFields maps a canonical field map onto a case record. A location is
// only created when at least one location field is present. Non-canonical
// fields end up in the attribute bag.
func (n *Normalizer) FromFields(fields loader.FieldMap) common.CaseRecord {
	rec := common.CaseRecord{
		CaseID:           fields[loader.FieldCaseID],
		CaseType:         fields[loader.FieldCaseType],
		Status:           fields[loader.FieldStatus],
		Priority:         fields[loader.FieldPriority],
		Description:      fields[loader.FieldDescription],
		ReportingOfficer: fields[loader.FieldReportingOfficer],
		AssignedOfficer:  fields[loader.FieldAssignedOfficer],
		Department:       fields[loader.FieldDepartment],
		IncidentDate:     fields[loader.FieldIncidentDate],
		ReportedAt:       fields[loader.FieldReportedAt],
		Precinct:         fields[loader.FieldPrecinct],
	}

	loc := common.Location{
		Address:    fields[loader.FieldAddress],
		City:       fields[loader.FieldCity],
		State:      fields[loader.FieldState],
		PostalCode: fields[loader.FieldPostalCode],
		Country:    fields[loader.FieldCountry],
		District:   fields[loader.FieldDistrict],
		Precinct:   fields[loader.FieldPrecinct],
		Latitude:   parseCoordinate(fields[loader.FieldLatitude]),
		Longitude:  parseCoordinate(fields[loader.FieldLongitude]),
	}
	if loc.Address != "" || loc.City != "" || loc.State != "" || loc.PostalCode != "" ||
		loc.Country != "" || loc.District != "" || loc.Latitude != nil || loc.Longitude != nil {
		rec.Location = &loc
	}

	for k, v := range fields {
		if name, ok := strings.CutPrefix(k, loader.AttributePrefix); ok {
			rec.SetAttribute(name, v)
		}
	}

	return rec
}

// ApplyDefaults fills the identifier, status and reported timestamp when they
// are missing. Applying it twice has the same effect as applying it once.
func (n *Normalizer) ApplyDefaults(rec *common.CaseRecord, idPrefix string) {
	now := n.now()
	if strings.TrimSpace(rec.CaseID) == "" {
		rec.CaseID = n.syntheticID(idPrefix, now)
	}
	if strings.TrimSpace(rec.Status) == "" {
		rec.Status = DefaultStatus
	}
	if strings.TrimSpace(rec.ReportedAt) == "" {
		rec.ReportedAt = now.Format(time.RFC3339)
	}
}

// Stamp records where the case came from and when it was processed.
func (n *Normalizer) Stamp(rec *common.CaseRecord, source string) {
	rec.SourceFile = source
	rec.ProcessedBy = n.processedBy
	rec.ProcessedAt = n.now().Format(time.RFC3339)
}

func (n *Normalizer) syntheticID(prefix string, now time.Time) string {
	if prefix == "" {
		prefix = DefaultIDPrefix
	}
	id := prefix + "-" + strconv.FormatInt(now.UnixMilli(), 10)
	if suffix, err := n.suffix(); err == nil && suffix != "" {
		id += "-" + suffix
	}
	return id
}

func parseCoordinate(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
