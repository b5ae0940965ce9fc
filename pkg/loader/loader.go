package loader

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"path/filepath"
	"strings"

	"github.com/OFFIS-RIT/casegraph/pkg/common"
)

var (
	// ErrUnsupportedFormat is returned when neither the format hint nor the
	// file extension maps to a known extractor. It fails the whole file.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrMalformedRecord marks a single row, section or block that could not
	// be turned into a record. Extractors yield it and keep going.
	ErrMalformedRecord = errors.New("malformed record")
)

// Format identifies the source format of an input file.
type Format string

const (
	FormatCSV   Format = "CSV"
	FormatExcel Format = "EXCEL"
	FormatPDF   Format = "PDF"
	FormatJSON  Format = "JSON"
	FormatXML   Format = "XML"
)

var hintFormats = map[string]Format{
	"CSV":   FormatCSV,
	"EXCEL": FormatExcel,
	"XLS":   FormatExcel,
	"XLSX":  FormatExcel,
	"PDF":   FormatPDF,
	"JSON":  FormatJSON,
	"XML":   FormatXML,
}

var extensionFormats = map[string]Format{
	"csv":  FormatCSV,
	"xls":  FormatExcel,
	"xlsx": FormatExcel,
	"pdf":  FormatPDF,
	"json": FormatJSON,
	"xml":  FormatXML,
}

// DetectFormat resolves the format of an input. A non-empty hint always wins
// over the filename; otherwise the lower-cased extension is used. Content is
// never inspected.
func DetectFormat(hint string, filename string) (Format, error) {
	if h := strings.TrimSpace(hint); h != "" {
		f, ok := hintFormats[strings.ToUpper(h)]
		if !ok {
			return "", fmt.Errorf("%w: hint %q", ErrUnsupportedFormat, hint)
		}
		return f, nil
	}

	if strings.TrimSpace(filename) == "" {
		return "", fmt.Errorf("%w: no filename and no hint", ErrUnsupportedFormat)
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	f, ok := extensionFormats[ext]
	if !ok {
		return "", fmt.Errorf("%w: extension %q", ErrUnsupportedFormat, ext)
	}
	return f, nil
}

// Record is a single item produced by an extractor. Tabular sources fill
// Fields with canonical field names; structured sources fill Case directly.
// IDPrefix overrides the prefix used when an identifier has to be synthesized.
type Record struct {
	Fields   FieldMap
	Case     *common.CaseRecord
	IDPrefix string
}

// Extractor turns raw file content into a lazy sequence of records.
//
// A yielded error wrapping ErrMalformedRecord means the current item was
// skipped and iteration continues. Any other yielded error aborts the file.
type Extractor interface {
	Extract(ctx context.Context, content []byte) iter.Seq2[Record, error]
}

// SourceFile represents an input file submitted for ingestion. The actual
// content is retrieved through the associated FileLoader so the same file
// description works for local paths, object storage and in-memory uploads.
type SourceFile struct {
	ID         string
	FilePath   string
	FormatHint string
	Loader     FileLoader
}

// NewSourceFileParams defines the input parameters for creating a SourceFile.
type NewSourceFileParams struct {
	ID         string
	FilePath   string
	FormatHint string
	Loader     FileLoader
}

// NewSourceFile creates a SourceFile from the given parameters.
func NewSourceFile(params NewSourceFileParams) SourceFile {
	return SourceFile{
		ID:         params.ID,
		FilePath:   params.FilePath,
		FormatHint: params.FormatHint,
		Loader:     params.Loader,
	}
}

// Name returns the base name of the file, used as provenance.
func (f SourceFile) Name() string {
	return filepath.Base(f.FilePath)
}

// Format resolves the format of the file from its hint and path.
func (f SourceFile) Format() (Format, error) {
	return DetectFormat(f.FormatHint, f.FilePath)
}

// GetContent retrieves the raw bytes of the file using its Loader.
//
// Example:
//
//	content, err := file.GetContent(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
func (f SourceFile) GetContent(ctx context.Context) ([]byte, error) {
	if f.Loader == nil {
		return nil, fmt.Errorf("no loader configured for %s", f.FilePath)
	}
	return f.Loader.GetFileBytes(ctx, f)
}

// FileLoader defines the interface for loading the contents of a SourceFile.
// Implementations may load files from disk, cloud storage, or memory.
type FileLoader interface {
	GetFileBytes(ctx context.Context, file SourceFile) ([]byte, error)
}

// BytesLoader serves content that is already held in memory, such as a
// multipart upload.
type BytesLoader struct {
	content []byte
}

// NewBytesLoader wraps the given content in a FileLoader.
func NewBytesLoader(content []byte) *BytesLoader {
	return &BytesLoader{content: content}
}

func (l *BytesLoader) GetFileBytes(ctx context.Context, file SourceFile) ([]byte, error) {
	return l.content, nil
}
