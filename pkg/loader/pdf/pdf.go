package pdf

import (
	"context"
	"fmt"
	"iter"
	"regexp"
	"strings"

	"github.com/OFFIS-RIT/casegraph/pkg/common"
	"github.com/OFFIS-RIT/casegraph/pkg/loader"
)

// IDPrefix is used for identifiers synthesized for PDF sections.
const IDPrefix = "PDF-CASE"

var sectionMarker = regexp.MustCompile(`(?i)case\s+(?:id|number):`)

// Labeled field patterns. Each applies to one section and the first match wins.
var (
	reCaseID           = regexp.MustCompile(`(?i)case\s+(?:id|number):[ \t]*([\w-]+)`)
	reCaseType         = regexp.MustCompile(`(?i)case\s+type:[ \t]*([\w \t]+)`)
	reStatus           = regexp.MustCompile(`(?i)status:[ \t]*(\w+)`)
	reDescription      = regexp.MustCompile(`(?i)description:[ \t]*([^\n]+)`)
	reReportingOfficer = regexp.MustCompile(`(?i)reporting\s+officer:[ \t]*([\w \t]+)`)
	reAssignedOfficer  = regexp.MustCompile(`(?i)assigned\s+officer:[ \t]*([\w \t]+)`)
	rePriority         = regexp.MustCompile(`(?i)priority:[ \t]*(\w+)`)
	reDepartment       = regexp.MustCompile(`(?i)department:[ \t]*([^\n]+)`)
	reIncidentDate     = regexp.MustCompile(`(?i)incident\s+date:[ \t]*([^\n]+)`)
)

// PDFExtractor segments report text into one record per case marker.
type PDFExtractor struct {
	text TextExtractor
}

// NewPDFExtractor creates a PDFExtractor. A nil TextExtractor selects
// pdftotext.
func NewPDFExtractor(text TextExtractor) *PDFExtractor {
	if text == nil {
		text = PdftotextExtractor{}
	}
	return &PDFExtractor{text: text}
}

// Extract implements loader.Extractor. Sections always produce a record;
// missing fields are left empty for the normalizer to default.
func (e *PDFExtractor) Extract(ctx context.Context, content []byte) iter.Seq2[loader.Record, error] {
	return func(yield func(loader.Record, error) bool) {
		text, err := e.text.ExtractText(ctx, content)
		if err != nil {
			yield(loader.Record{}, fmt.Errorf("extract pdf text: %w", err))
			return
		}

		for _, section := range Sections(text) {
			rec := ParseSection(section)
			if !yield(loader.Record{Case: &rec, IDPrefix: IDPrefix}, nil) {
				return
			}
		}
	}
}

// Sections splits report text at every case marker. Text before the first
// marker is discarded and each section starts with its marker.
func Sections(text string) []string {
	idx := sectionMarker.FindAllStringIndex(text, -1)
	if len(idx) == 0 {
		return nil
	}

	sections := make([]string, 0, len(idx))
	for i, loc := range idx {
		end := len(text)
		if i+1 < len(idx) {
			end = idx[i+1][0]
		}
		section := strings.TrimSpace(text[loc[0]:end])
		if section == "" {
			continue
		}
		sections = append(sections, section)
	}
	return sections
}

// ParseSection applies the labeled field patterns to one section.
func ParseSection(section string) common.CaseRecord {
	return common.CaseRecord{
		CaseID:           match(reCaseID, section),
		CaseType:         match(reCaseType, section),
		Status:           match(reStatus, section),
		Description:      match(reDescription, section),
		ReportingOfficer: match(reReportingOfficer, section),
		AssignedOfficer:  match(reAssignedOfficer, section),
		Priority:         match(rePriority, section),
		Department:       match(reDepartment, section),
		IncidentDate:     match(reIncidentDate, section),
	}
}

func match(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}
