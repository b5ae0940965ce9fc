package xml

import (
	"context"
	"fmt"
	"html"
	"iter"
	"regexp"
	"strings"

	"github.com/OFFIS-RIT/casegraph/pkg/common"
	"github.com/OFFIS-RIT/casegraph/pkg/loader"
)

var caseBlock = regexp.MustCompile(`(?s)<case(?:\s[^>]*)?>(.*?)</case>`)

func leaf(tag string) *regexp.Regexp {
	return regexp.MustCompile(`(?s)<` + tag + `(?:\s[^>]*)?>(.*?)</` + tag + `>`)
}

var (
	reCaseID           = leaf("caseId")
	reCaseType         = leaf("caseType")
	reStatus           = leaf("status")
	reDescription      = leaf("description")
	rePriority         = leaf("priority")
	reReportingOfficer = leaf("reportingOfficer")
	reAssignedOfficer  = leaf("assignedOfficer")
	reDepartment       = leaf("department")
	reIncidentDate     = leaf("incidentDate")
	reReportedAt       = leaf("reportedAt")
)

// XMLExtractor scans a document for <case> blocks and reads a fixed set of
// leaf tags from each. It does not validate the document as a whole.
type XMLExtractor struct{}

// NewXMLExtractor creates a new XMLExtractor.
func NewXMLExtractor() *XMLExtractor {
	return &XMLExtractor{}
}

// Extract implements loader.Extractor. Blocks without a caseId are reported
// as malformed and skipped.
func (e *XMLExtractor) Extract(ctx context.Context, content []byte) iter.Seq2[loader.Record, error] {
	return func(yield func(loader.Record, error) bool) {
		blocks := caseBlock.FindAllSubmatch(content, -1)
		for i, m := range blocks {
			if ctx.Err() != nil {
				yield(loader.Record{}, ctx.Err())
				return
			}

			rec, ok := ParseBlock(string(m[1]))
			if !ok {
				if !yield(loader.Record{}, fmt.Errorf("%w: case block %d has no caseId", loader.ErrMalformedRecord, i+1)) {
					return
				}
				continue
			}
			if !yield(loader.Record{Case: &rec}, nil) {
				return
			}
		}
	}
}

// ParseBlock reads the leaf tags of one case block. ok is false when the
// block has no caseId.
func ParseBlock(block string) (common.CaseRecord, bool) {
	rec := common.CaseRecord{
		CaseID:           tagValue(reCaseID, block),
		CaseType:         tagValue(reCaseType, block),
		Status:           tagValue(reStatus, block),
		Description:      tagValue(reDescription, block),
		Priority:         tagValue(rePriority, block),
		ReportingOfficer: tagValue(reReportingOfficer, block),
		AssignedOfficer:  tagValue(reAssignedOfficer, block),
		Department:       tagValue(reDepartment, block),
		IncidentDate:     tagValue(reIncidentDate, block),
		ReportedAt:       tagValue(reReportedAt, block),
	}
	return rec, rec.CaseID != ""
}

func tagValue(re *regexp.Regexp, block string) string {
	m := re.FindStringSubmatch(block)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(m[1]))
}
