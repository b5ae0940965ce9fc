package loader

import (
	"fmt"
	"iter"
	"strings"
)

// Canonical field names shared by the tabular extractors and the normalizer.
const (
	FieldCaseID           = "caseId"
	FieldCaseType         = "caseType"
	FieldStatus           = "status"
	FieldPriority         = "priority"
	FieldDescription      = "description"
	FieldReportingOfficer = "reportingOfficer"
	FieldAssignedOfficer  = "assignedOfficer"
	FieldDepartment       = "department"
	FieldIncidentDate     = "incidentDate"
	FieldReportedAt       = "reportedAt"
	FieldPrecinct         = "precinct"
	FieldAddress          = "address"
	FieldCity             = "city"
	FieldState            = "state"
	FieldPostalCode       = "postalCode"
	FieldCountry          = "country"
	FieldDistrict         = "district"
	FieldLatitude         = "latitude"
	FieldLongitude        = "longitude"
)

// AttributePrefix marks field map keys that did not match a canonical field.
// The normalizer moves them into the record's attribute bag.
const AttributePrefix = "attr:"

// FieldMap maps canonical field names to raw string values.
type FieldMap map[string]string

var headerAliases = map[string]string{
	"caseid":            FieldCaseID,
	"case_id":           FieldCaseID,
	"case id":           FieldCaseID,
	"casenumber":        FieldCaseID,
	"case_number":       FieldCaseID,
	"casetype":          FieldCaseType,
	"case_type":         FieldCaseType,
	"case type":         FieldCaseType,
	"type":              FieldCaseType,
	"status":            FieldStatus,
	"priority":          FieldPriority,
	"description":       FieldDescription,
	"reportingofficer":  FieldReportingOfficer,
	"reporting_officer": FieldReportingOfficer,
	"assignedofficer":   FieldAssignedOfficer,
	"assigned_officer":  FieldAssignedOfficer,
	"department":        FieldDepartment,
	"incidentdate":      FieldIncidentDate,
	"incident_date":     FieldIncidentDate,
	"reportedat":        FieldReportedAt,
	"reported_at":       FieldReportedAt,
	"precinct":          FieldPrecinct,
	"address":           FieldAddress,
	"city":              FieldCity,
	"state":             FieldState,
	"postalcode":        FieldPostalCode,
	"postal_code":       FieldPostalCode,
	"zip":               FieldPostalCode,
	"country":           FieldCountry,
	"district":          FieldDistrict,
	"latitude":          FieldLatitude,
	"longitude":         FieldLongitude,
}

// CanonicalField resolves a raw header cell to its canonical field name.
// Unknown headers resolve to an attribute key; empty headers resolve to "".
func CanonicalField(header string) string {
	h := strings.ToLower(strings.TrimSpace(header))
	if h == "" {
		return ""
	}
	if f, ok := headerAliases[h]; ok {
		return f
	}
	return AttributePrefix + h
}

// CanonicalHeaders resolves a whole header row.
func CanonicalHeaders(headers []string) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		out[i] = CanonicalField(h)
	}
	return out
}

// MapRow pairs a data row with the canonical header. Rows shorter than the
// header are rejected with ErrMalformedRecord; blank cells are skipped.
func MapRow(headers []string, row []string, line int) (FieldMap, error) {
	if len(row) < len(headers) {
		return nil, fmt.Errorf("%w: line %d has %d cells, header has %d", ErrMalformedRecord, line, len(row), len(headers))
	}

	fields := make(FieldMap, len(headers))
	for i, field := range headers {
		if field == "" {
			continue
		}
		value := strings.TrimSpace(row[i])
		if value == "" {
			continue
		}
		fields[field] = value
	}
	return fields, nil
}

// MapRows turns a sequence of raw rows into field maps. Blank rows are
// ignored, the first remaining row is the header. Row errors are passed
// through unchanged so the caller can decide whether to continue.
func MapRows(rows iter.Seq2[[]string, error]) iter.Seq2[FieldMap, error] {
	return func(yield func(FieldMap, error) bool) {
		var headers []string
		line := 0
		for row, err := range rows {
			line++
			if err != nil {
				if !yield(nil, err) {
					return
				}
				continue
			}
			if IsBlankRow(row) {
				continue
			}
			if headers == nil {
				headers = CanonicalHeaders(row)
				continue
			}
			fields, err := MapRow(headers, row, line)
			if !yield(fields, err) {
				return
			}
		}
	}
}

// IsBlankRow reports whether every cell of a row is empty after trimming.
func IsBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
