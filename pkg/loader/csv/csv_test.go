package csv

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OFFIS-RIT/casegraph/pkg/loader"
)

func collect(t *testing.T, e loader.Extractor, content string) ([]loader.FieldMap, int) {
	t.Helper()
	var out []loader.FieldMap
	skipped := 0
	for rec, err := range e.Extract(context.Background(), []byte(content)) {
		if err != nil {
			require.True(t, errors.Is(err, loader.ErrMalformedRecord), "unexpected error: %v", err)
			skipped++
			continue
		}
		out = append(out, rec.Fields)
	}
	return out, skipped
}

func TestCSVExtractor(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []loader.FieldMap
		skipped int
	}{
		{
			name:    "aliases and trimming",
			content: "CaseId, Case_Type ,status\nC-1, THEFT ,OPEN\n",
			want: []loader.FieldMap{
				{loader.FieldCaseID: "C-1", loader.FieldCaseType: "THEFT", loader.FieldStatus: "OPEN"},
			},
		},
		{
			name:    "short rows are dropped",
			content: "caseId,caseType,status\nC-1,THEFT\nC-2,FRAUD,CLOSED\n",
			want: []loader.FieldMap{
				{loader.FieldCaseID: "C-2", loader.FieldCaseType: "FRAUD", loader.FieldStatus: "CLOSED"},
			},
			skipped: 1,
		},
		{
			name:    "blank cells are skipped",
			content: "caseId,caseType,description\nC-1,,\n",
			want: []loader.FieldMap{
				{loader.FieldCaseID: "C-1"},
			},
		},
		{
			name:    "quoted values keep commas",
			content: "caseId,description\nC-1,\"broken window, rear door\"\n",
			want: []loader.FieldMap{
				{loader.FieldCaseID: "C-1", loader.FieldDescription: "broken window, rear door"},
			},
		},
		{
			name:    "blank lines before header",
			content: "\n,,\ncaseId,status\nC-9,PENDING\n",
			want: []loader.FieldMap{
				{loader.FieldCaseID: "C-9", loader.FieldStatus: "PENDING"},
			},
		},
		{
			name:    "unknown headers become attributes",
			content: "caseId,Weapon\nC-1,knife\n",
			want: []loader.FieldMap{
				{loader.FieldCaseID: "C-1", loader.AttributePrefix + "weapon": "knife"},
			},
		},
		{
			name:    "header only",
			content: "caseId,caseType\n",
			want:    nil,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, skipped := collect(t, NewCSVExtractor(), test.content)
			assert.Equal(t, test.want, got)
			assert.Equal(t, test.skipped, skipped)
		})
	}
}

func TestCSVExtractorSemicolon(t *testing.T) {
	got, _ := collect(t, NewCSVExtractor(WithComma(';')), "caseId;status\nC-1;OPEN\n")
	require.Len(t, got, 1)
	assert.Equal(t, "OPEN", got[0][loader.FieldStatus])
}

func TestCSVExtractorStopsEarly(t *testing.T) {
	seen := 0
	for range NewCSVExtractor().Extract(context.Background(), []byte("caseId\nA\nB\nC\n")) {
		seen++
		if seen == 2 {
			break
		}
	}
	assert.Equal(t, 2, seen)
}

func TestCSVExtractorCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var gotErr error
	for _, err := range NewCSVExtractor().Extract(ctx, []byte("caseId\nA\n")) {
		gotErr = err
	}
	assert.ErrorIs(t, gotErr, context.Canceled)
}
