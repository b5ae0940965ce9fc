package csv

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/OFFIS-RIT/casegraph/pkg/loader"
)

// CSVExtractor turns delimited text into field maps. The first non-blank row
// is the header; every following row becomes one record.
type CSVExtractor struct {
	comma rune
}

// CSVExtractorOption configures a CSVExtractor.
type CSVExtractorOption func(*CSVExtractor)

// WithComma sets the field delimiter. The default is ','.
func WithComma(r rune) CSVExtractorOption {
	return func(e *CSVExtractor) {
		e.comma = r
	}
}

// NewCSVExtractor creates a new CSVExtractor.
func NewCSVExtractor(opts ...CSVExtractorOption) *CSVExtractor {
	e := &CSVExtractor{comma: ','}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(e)
	}
	return e
}

// Extract implements loader.Extractor.
func (e *CSVExtractor) Extract(ctx context.Context, content []byte) iter.Seq2[loader.Record, error] {
	return func(yield func(loader.Record, error) bool) {
		rows := ReadRows(content, e.comma)
		for fields, err := range loader.MapRows(rows) {
			if ctx.Err() != nil {
				yield(loader.Record{}, ctx.Err())
				return
			}
			if !yield(loader.Record{Fields: fields}, err) {
				return
			}
		}
	}
}

// ReadRows lazily reads raw rows from CSV content. Quotes are handled
// leniently and rows may have varying field counts. A line that cannot be
// parsed is yielded as an ErrMalformedRecord and reading continues.
func ReadRows(content []byte, comma rune) iter.Seq2[[]string, error] {
	return func(yield func([]string, error) bool) {
		reader := csv.NewReader(bytes.NewReader(content))
		reader.FieldsPerRecord = -1
		reader.LazyQuotes = true
		reader.Comma = comma

		for {
			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				var perr *csv.ParseError
				if errors.As(err, &perr) {
					if !yield(nil, fmt.Errorf("%w: %v", loader.ErrMalformedRecord, err)) {
						return
					}
					continue
				}
				yield(nil, err)
				return
			}
			if !yield(record, nil) {
				return
			}
		}
	}
}
