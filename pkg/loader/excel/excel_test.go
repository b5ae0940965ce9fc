package excel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OFFIS-RIT/casegraph/pkg/loader"
)

type staticSheet struct {
	rows [][]Cell
	err  error
	ext  string
}

func (s *staticSheet) ReadSheet(ctx context.Context, content []byte, ext string) ([][]Cell, error) {
	s.ext = ext
	return s.rows, s.err
}

func str(v string) Cell { return Cell{Kind: CellString, Text: v} }

func TestCellString(t *testing.T) {
	tests := []struct {
		name string
		cell Cell
		want string
	}{
		{name: "string", cell: str("THEFT"), want: "THEFT"},
		{name: "integral number", cell: Cell{Kind: CellNumeric, Number: 42}, want: "42"},
		{name: "fractional number", cell: Cell{Kind: CellNumeric, Number: 3.25}, want: "3.25"},
		{name: "boolean", cell: Cell{Kind: CellBoolean, Bool: true}, want: "true"},
		{name: "formula", cell: Cell{Kind: CellFormula, Formula: "A1+B1"}, want: "A1+B1"},
		{name: "date", cell: Cell{Kind: CellDate, Time: time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)}, want: "2024-03-01T09:30:00"},
		{name: "blank", cell: Cell{Kind: CellBlank}, want: ""},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.want, test.cell.String())
		})
	}
}

func TestExcelExtractor(t *testing.T) {
	reader := &staticSheet{rows: [][]Cell{
		{str("Case_ID"), str("CaseType"), str("Status"), str("Incident_Date")},
		{Cell{Kind: CellNumeric, Number: 1001}, str("ASSAULT"), str("OPEN"), Cell{Kind: CellDate, Time: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}},
		{str("C-2"), str("THEFT")},
		{str("C-3"), str("FRAUD"), Cell{Kind: CellBlank}, Cell{Kind: CellFormula, Formula: "TODAY()"}},
	}}

	e := NewExcelExtractor(reader, ".XLSX")

	var got []loader.FieldMap
	skipped := 0
	for rec, err := range e.Extract(context.Background(), []byte("binary")) {
		if err != nil {
			require.True(t, errors.Is(err, loader.ErrMalformedRecord))
			skipped++
			continue
		}
		got = append(got, rec.Fields)
	}

	assert.Equal(t, "xlsx", reader.ext)
	assert.Equal(t, 1, skipped)
	require.Len(t, got, 2)
	assert.Equal(t, loader.FieldMap{
		loader.FieldCaseID:       "1001",
		loader.FieldCaseType:     "ASSAULT",
		loader.FieldStatus:       "OPEN",
		loader.FieldIncidentDate: "2024-01-02T00:00:00",
	}, got[0])
	assert.Equal(t, loader.FieldMap{
		loader.FieldCaseID:       "C-3",
		loader.FieldCaseType:     "FRAUD",
		loader.FieldIncidentDate: "TODAY()",
	}, got[1])
}

func TestExcelExtractorReaderFailure(t *testing.T) {
	e := NewExcelExtractor(&staticSheet{err: errors.New("corrupt workbook")}, "xls")

	var errs []error
	for _, err := range e.Extract(context.Background(), nil) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.False(t, errors.Is(errs[0], loader.ErrMalformedRecord))
}
