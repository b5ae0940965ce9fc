package json

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"

	"github.com/OFFIS-RIT/casegraph/pkg/common"
	"github.com/OFFIS-RIT/casegraph/pkg/loader"
)

// JSONExtractor decodes case records from a JSON document. The document is
// read as an array of records first and, failing that, as a single record.
type JSONExtractor struct{}

// NewJSONExtractor creates a new JSONExtractor.
func NewJSONExtractor() *JSONExtractor {
	return &JSONExtractor{}
}

// Extract implements loader.Extractor. A document that is neither an array
// nor a single record yields one malformed-record error and nothing else.
func (e *JSONExtractor) Extract(ctx context.Context, content []byte) iter.Seq2[loader.Record, error] {
	return func(yield func(loader.Record, error) bool) {
		records, err := Decode(content)
		if err != nil {
			yield(loader.Record{}, err)
			return
		}
		for i := range records {
			if ctx.Err() != nil {
				yield(loader.Record{}, ctx.Err())
				return
			}
			if !yield(loader.Record{Case: &records[i]}, nil) {
				return
			}
		}
	}
}

// Decode applies the two-attempt policy and returns the decoded records.
// A null document is malformed.
func Decode(content []byte) ([]common.CaseRecord, error) {
	var records []common.CaseRecord
	arrErr := json.Unmarshal(content, &records)
	if arrErr == nil {
		if records == nil {
			return nil, fmt.Errorf("%w: document is null", loader.ErrMalformedRecord)
		}
		return records, nil
	}

	var single common.CaseRecord
	if err := json.Unmarshal(content, &single); err != nil {
		return nil, fmt.Errorf("%w: not a case array (%v) nor a single case (%v)", loader.ErrMalformedRecord, arrErr, err)
	}
	return []common.CaseRecord{single}, nil
}
