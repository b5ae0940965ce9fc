// Package ingest turns uploaded files and direct submissions into published
// case records.
//
// A file goes through format detection, the extractor registered for its
// format, the normalizer and finally the shared pipeline. Malformed records
// are skipped, an unsupported format fails the whole file, and a record that
// fails a pipeline stage never stops the others.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/OFFIS-RIT/casegraph/pkg/common"
	"github.com/OFFIS-RIT/casegraph/pkg/loader"
	"github.com/OFFIS-RIT/casegraph/pkg/loader/csv"
	"github.com/OFFIS-RIT/casegraph/pkg/loader/excel"
	"github.com/OFFIS-RIT/casegraph/pkg/loader/json"
	"github.com/OFFIS-RIT/casegraph/pkg/loader/pdf"
	"github.com/OFFIS-RIT/casegraph/pkg/loader/xml"
	"github.com/OFFIS-RIT/casegraph/pkg/logger"
	"github.com/OFFIS-RIT/casegraph/pkg/metrics"
	"github.com/OFFIS-RIT/casegraph/pkg/normalize"
	"github.com/OFFIS-RIT/casegraph/pkg/pipeline"
)

// ExtractorFactory returns the extractor for a file. Factories may inspect
// the file, e.g. to pick the spreadsheet container from its extension.
type ExtractorFactory func(file loader.SourceFile) loader.Extractor

// DefaultExtractors returns the extractor registry for all supported formats.
func DefaultExtractors() map[loader.Format]ExtractorFactory {
	return map[loader.Format]ExtractorFactory{
		loader.FormatCSV: func(loader.SourceFile) loader.Extractor {
			return csv.NewCSVExtractor()
		},
		loader.FormatExcel: func(f loader.SourceFile) loader.Extractor {
			return excel.NewExcelExtractor(nil, filepath.Ext(f.FilePath))
		},
		loader.FormatPDF: func(loader.SourceFile) loader.Extractor {
			return pdf.NewPDFExtractor(nil)
		},
		loader.FormatJSON: func(loader.SourceFile) loader.Extractor {
			return json.NewJSONExtractor()
		},
		loader.FormatXML: func(loader.SourceFile) loader.Extractor {
			return xml.NewXMLExtractor()
		},
	}
}

// DefaultParallelFiles bounds how many files of a bulk upload are processed
// at the same time.
const DefaultParallelFiles = 4

// Service is the ingestion entry point shared by the HTTP server and the CLI.
type Service struct {
	extractors    map[loader.Format]ExtractorFactory
	normalizer    *normalize.Normalizer
	pipeline      *pipeline.Pipeline
	parallelFiles int
}

// NewServiceParams configures a Service. Extractors defaults to
// DefaultExtractors and Normalizer to a Normalizer with default options.
type NewServiceParams struct {
	Pipeline      *pipeline.Pipeline
	Normalizer    *normalize.Normalizer
	Extractors    map[loader.Format]ExtractorFactory
	ParallelFiles int
}

func NewService(params NewServiceParams) (*Service, error) {
	if params.Pipeline == nil {
		return nil, errors.New("pipeline is required")
	}
	s := &Service{
		extractors:    params.Extractors,
		normalizer:    params.Normalizer,
		pipeline:      params.Pipeline,
		parallelFiles: params.ParallelFiles,
	}
	if s.extractors == nil {
		s.extractors = DefaultExtractors()
	}
	if s.normalizer == nil {
		s.normalizer = normalize.NewNormalizer()
	}
	if s.parallelFiles <= 0 {
		s.parallelFiles = DefaultParallelFiles
	}
	return s, nil
}

// FileResult summarizes the ingestion of one file. Processed counts the
// records that were extracted and normalized, Skipped the malformed ones.
type FileResult struct {
	FileName  string
	Format    loader.Format
	Processed int
	Skipped   int
	Accepted  int
	Failed    int
	CaseIDs   []string
	Failures  []pipeline.Failure
}

// Extract detects the format of file, reads it and returns the normalized
// case records together with the number of skipped malformed records.
func (s *Service) Extract(ctx context.Context, file loader.SourceFile) ([]common.CaseRecord, int, error) {
	format, err := file.Format()
	if err != nil {
		return nil, 0, err
	}
	factory, ok := s.extractors[format]
	if !ok {
		return nil, 0, fmt.Errorf("%w: no extractor for %s", loader.ErrUnsupportedFormat, format)
	}

	content, err := file.GetContent(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", file.Name(), err)
	}

	var (
		records []common.CaseRecord
		skipped int
	)
	for item, err := range factory(file).Extract(ctx, content) {
		if err != nil {
			if errors.Is(err, loader.ErrMalformedRecord) {
				skipped++
				metrics.RecordsSkipped.WithLabelValues(string(format)).Inc()
				logger.Debug("[Ingest] Skipping malformed record", "file", file.Name(), "err", err)
				continue
			}
			return nil, skipped, fmt.Errorf("extract %s: %w", file.Name(), err)
		}

		rec, err := s.normalizer.Normalize(item, file.Name())
		if err != nil {
			skipped++
			metrics.RecordsSkipped.WithLabelValues(string(format)).Inc()
			continue
		}
		records = append(records, rec)
	}

	metrics.RecordsIngested.WithLabelValues(string(format)).Add(float64(len(records)))
	return records, skipped, nil
}

// ProcessFile extracts all records of file and runs them through the
// pipeline. The returned error is only set when the file as a whole could
// not be processed.
func (s *Service) ProcessFile(ctx context.Context, file loader.SourceFile) (FileResult, error) {
	res := FileResult{FileName: file.Name()}
	if format, err := file.Format(); err == nil {
		res.Format = format
	}

	records, skipped, err := s.Extract(ctx, file)
	res.Skipped = skipped
	if err != nil {
		logger.Error("[Ingest] Failed to process file", "file", res.FileName, "err", err)
		return res, err
	}
	res.Processed = len(records)

	run := s.pipeline.RunAll(ctx, records)
	res.Accepted = run.AcceptedCount()
	res.Failed = run.FailedCount()
	res.Failures = run.Failures
	for _, rec := range run.Accepted {
		res.CaseIDs = append(res.CaseIDs, rec.CaseID)
	}

	logger.Info("[Ingest] File processed",
		"file", res.FileName,
		"format", res.Format,
		"processed", res.Processed,
		"accepted", res.Accepted,
		"failed", res.Failed,
		"skipped", res.Skipped,
	)
	return res, nil
}

// BulkResult summarizes a bulk upload. Errors holds the files that failed
// as a whole, keyed by their index in Files. Uploads may share a name.
type BulkResult struct {
	Files          []FileResult
	FilesProcessed int
	FilesFailed    int
	TotalProcessed int
	TotalAccepted  int
	Errors         map[int]error
}

// ProcessBulk processes files concurrently. A failing file is reported in
// the result and does not affect the other files. Results keep the order of
// files.
func (s *Service) ProcessBulk(ctx context.Context, files []loader.SourceFile) BulkResult {
	results := make([]FileResult, len(files))
	errs := make([]error, len(files))

	var g errgroup.Group
	g.SetLimit(s.parallelFiles)
	for i, file := range files {
		g.Go(func() error {
			results[i], errs[i] = s.ProcessFile(ctx, file)
			return nil
		})
	}
	_ = g.Wait()

	bulk := BulkResult{Files: results, Errors: map[int]error{}}
	for i, res := range results {
		bulk.FilesProcessed++
		if errs[i] != nil {
			bulk.FilesFailed++
			bulk.Errors[i] = errs[i]
		}
		bulk.TotalProcessed += res.Processed
		bulk.TotalAccepted += res.Accepted
	}
	return bulk
}

// SubmitCase runs a single, already structured record through the pipeline.
// No defaults are applied before validation, so a record without case type
// or status is rejected.
func (s *Service) SubmitCase(ctx context.Context, rec common.CaseRecord) (common.CaseRecord, error) {
	return s.pipeline.Run(ctx, rec)
}
