package excel

import (
	"context"
	"fmt"
	"iter"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/OFFIS-RIT/casegraph/pkg/loader"
	"github.com/OFFIS-RIT/casegraph/pkg/loader/csv"
)

// CellKind is the type of a spreadsheet cell as reported by the decoder.
type CellKind int

const (
	CellBlank CellKind = iota
	CellString
	CellNumeric
	CellBoolean
	CellFormula
	CellDate
)

// DateLayout is used when a date cell is turned into text.
const DateLayout = "2006-01-02T15:04:05"

// Cell is a single typed spreadsheet cell.
type Cell struct {
	Kind    CellKind
	Text    string
	Number  float64
	Bool    bool
	Time    time.Time
	Formula string
}

// String renders the cell the way it is handed to the row mapper.
// Integral numbers drop their decimals, dates use DateLayout and formulas
// yield their expression rather than the cached value.
func (c Cell) String() string {
	switch c.Kind {
	case CellString:
		return c.Text
	case CellNumeric:
		if c.Number == math.Trunc(c.Number) && math.Abs(c.Number) < 1e15 {
			return strconv.FormatInt(int64(c.Number), 10)
		}
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	case CellBoolean:
		return strconv.FormatBool(c.Bool)
	case CellFormula:
		return c.Formula
	case CellDate:
		if c.Time.IsZero() {
			return ""
		}
		return c.Time.Format(DateLayout)
	default:
		return ""
	}
}

// SheetReader decodes the first sheet of a workbook into rows of cells.
type SheetReader interface {
	ReadSheet(ctx context.Context, content []byte, ext string) ([][]Cell, error)
}

// ExcelExtractor turns a workbook into field maps using the same header and
// row rules as the CSV extractor.
type ExcelExtractor struct {
	reader SheetReader
	ext    string
}

// NewExcelExtractor creates an ExcelExtractor. ext is the file extension
// without the leading dot and tells the reader which container to expect.
// A nil reader selects the unoconv based reader.
func NewExcelExtractor(reader SheetReader, ext string) *ExcelExtractor {
	if reader == nil {
		reader = UnoconvSheetReader{}
	}
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" {
		ext = "xlsx"
	}
	return &ExcelExtractor{reader: reader, ext: ext}
}

// Extract implements loader.Extractor.
func (e *ExcelExtractor) Extract(ctx context.Context, content []byte) iter.Seq2[loader.Record, error] {
	return func(yield func(loader.Record, error) bool) {
		rows, err := e.reader.ReadSheet(ctx, content, e.ext)
		if err != nil {
			yield(loader.Record{}, fmt.Errorf("read sheet: %w", err))
			return
		}

		for fields, err := range loader.MapRows(stringRows(rows)) {
			if !yield(loader.Record{Fields: fields}, err) {
				return
			}
		}
	}
}

func stringRows(rows [][]Cell) iter.Seq2[[]string, error] {
	return func(yield func([]string, error) bool) {
		for _, row := range rows {
			values := make([]string, len(row))
			for i, c := range row {
				values[i] = c.String()
			}
			if !yield(values, nil) {
				return
			}
		}
	}
}

// UnoconvSheetReader converts the workbook to CSV with unoconv and reports
// every cell as text. Only the first sheet is read.
type UnoconvSheetReader struct{}

func (UnoconvSheetReader) ReadSheet(ctx context.Context, content []byte, ext string) ([][]Cell, error) {
	sheets, err := loader.TransformExcelToCsv(ctx, content, ext)
	if err != nil {
		return nil, err
	}
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	var rows [][]Cell
	for row, err := range csv.ReadRows(sheets[0].Content, ',') {
		if err != nil {
			continue
		}
		cells := make([]Cell, len(row))
		for i, v := range row {
			if v == "" {
				cells[i] = Cell{Kind: CellBlank}
				continue
			}
			cells[i] = Cell{Kind: CellString, Text: v}
		}
		rows = append(rows, cells)
	}
	return rows, nil
}
