package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OFFIS-RIT/casegraph/pkg/ingest"
	"github.com/OFFIS-RIT/casegraph/pkg/pipeline"
)

type countingPublisher struct {
	mu    sync.Mutex
	count int
	fail  bool
}

func (p *countingPublisher) Publish(ctx context.Context, topic string, body []byte) error {
	if p.fail {
		return errors.New("broker down")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count++
	return nil
}

func newTestServer(t *testing.T, pub pipeline.Publisher) *echo.Echo {
	t.Helper()
	svc, err := ingest.NewService(ingest.NewServiceParams{
		Pipeline: pipeline.NewDefaultPipeline(pipeline.NewDefaultPipelineParams{
			Publisher:      pub,
			Topic:          "case-events",
			PublishRetries: 1,
		}),
	})
	require.NoError(t, err)
	return New(NewServerParams{Ingest: svc})
}

type part struct {
	field, name, content string
}

func multipartBody(t *testing.T, fields map[string]string, parts ...part) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, p := range parts {
		fw, err := w.CreateFormFile(p.field, p.name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(p.content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func do(e *echo.Echo, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func TestHealth(t *testing.T) {
	e := newTestServer(t, &countingPublisher{})

	rec, _ := do(e, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec, _ = do(e, httptest.NewRequest(http.MethodGet, "/api/cases/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "running")
}

func TestMetricsEndpoint(t *testing.T) {
	e := newTestServer(t, &countingPublisher{})

	rec, _ := do(e, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "casegraph_")
}

func TestSubmitCase(t *testing.T) {
	pub := &countingPublisher{}
	e := newTestServer(t, pub)

	req := httptest.NewRequest(http.MethodPost, "/api/cases/submit",
		strings.NewReader(`{"caseId":"C-9","caseType":"THEFT","status":"OPEN"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	rec, out := do(e, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Case submitted successfully", out["message"])
	assert.Equal(t, "C-9", out["caseId"])
	assert.Equal(t, 1, pub.count)
}

func TestSubmitCaseMissingStatus(t *testing.T) {
	pub := &countingPublisher{}
	e := newTestServer(t, pub)

	req := httptest.NewRequest(http.MethodPost, "/api/cases/submit",
		strings.NewReader(`{"caseId":"C-9","caseType":"THEFT"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	rec, out := do(e, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, out["message"], "status")
	assert.Zero(t, pub.count)
}

func TestSubmitCasePublishFailure(t *testing.T) {
	e := newTestServer(t, &countingPublisher{fail: true})

	req := httptest.NewRequest(http.MethodPost, "/api/cases/submit",
		strings.NewReader(`{"caseId":"C-9","caseType":"THEFT","status":"OPEN"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	rec, _ := do(e, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSubmitCaseInvalidJSON(t *testing.T) {
	e := newTestServer(t, &countingPublisher{})

	req := httptest.NewRequest(http.MethodPost, "/api/cases/submit", strings.NewReader(`{"caseId":`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	rec, out := do(e, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request body", out["message"])
}

func TestUploadFile(t *testing.T) {
	pub := &countingPublisher{}
	e := newTestServer(t, pub)

	body, contentType := multipartBody(t, nil, part{
		field:   "file",
		name:    "cases.csv",
		content: "caseId,caseType,status\nC-1,THEFT,OPEN\nC-2,,OPEN\nC-3\n",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/cases/upload", body)
	req.Header.Set(echo.HeaderContentType, contentType)

	rec, out := do(e, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "File processed successfully", out["message"])
	assert.Equal(t, "cases.csv", out["fileName"])
	assert.EqualValues(t, 2, out["casesProcessed"])
	assert.EqualValues(t, 1, out["casesAccepted"])
	assert.EqualValues(t, 1, out["casesFailed"])
	assert.EqualValues(t, 1, out["casesSkipped"])
	assert.Equal(t, 1, pub.count)
}

func TestUploadFileTypeHint(t *testing.T) {
	e := newTestServer(t, &countingPublisher{})

	body, contentType := multipartBody(t, map[string]string{"fileType": "JSON"}, part{
		field:   "file",
		name:    "export.dat",
		content: `{"caseId":"J-1","caseType":"FRAUD"}`,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/cases/upload", body)
	req.Header.Set(echo.HeaderContentType, contentType)

	rec, out := do(e, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 1, out["casesAccepted"])
}

func TestUploadUnsupportedFile(t *testing.T) {
	e := newTestServer(t, &countingPublisher{})

	body, contentType := multipartBody(t, nil, part{field: "file", name: "notes.txt", content: "hello"})
	req := httptest.NewRequest(http.MethodPost, "/api/cases/upload", body)
	req.Header.Set(echo.HeaderContentType, contentType)

	rec, out := do(e, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, out["message"], "unsupported format")
}

func TestUploadEmptyFile(t *testing.T) {
	e := newTestServer(t, &countingPublisher{})

	body, contentType := multipartBody(t, nil, part{field: "file", name: "cases.csv"})
	req := httptest.NewRequest(http.MethodPost, "/api/cases/upload", body)
	req.Header.Set(echo.HeaderContentType, contentType)

	rec, out := do(e, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "File is empty", out["message"])
}

func TestUploadMissingFile(t *testing.T) {
	e := newTestServer(t, &countingPublisher{})

	body, contentType := multipartBody(t, map[string]string{"fileType": "CSV"})
	req := httptest.NewRequest(http.MethodPost, "/api/cases/upload", body)
	req.Header.Set(echo.HeaderContentType, contentType)

	rec, out := do(e, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing file", out["message"])
}

func TestBulkUpload(t *testing.T) {
	pub := &countingPublisher{}
	e := newTestServer(t, pub)

	body, contentType := multipartBody(t, nil,
		part{field: "files", name: "a.csv", content: "caseId,caseType,status\nA-1,THEFT,OPEN\n"},
		part{field: "files", name: "b.xml", content: "<cases><case><caseId>B-1</caseId><caseType>ASSAULT</caseType></case></cases>"},
		part{field: "files", name: "c.txt", content: "nope"},
		part{field: "files", name: "d.csv"},
	)
	req := httptest.NewRequest(http.MethodPost, "/api/cases/bulk-upload", body)
	req.Header.Set(echo.HeaderContentType, contentType)

	rec, out := do(e, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 3, out["filesProcessed"])
	assert.EqualValues(t, 1, out["filesFailed"])
	assert.EqualValues(t, 2, out["totalCasesProcessed"])
	assert.EqualValues(t, 2, out["totalCasesAccepted"])
	errs, ok := out["errors"].([]any)
	require.True(t, ok)
	require.Len(t, errs, 1)
	assert.Equal(t, "c.txt", errs[0].(map[string]any)["fileName"])
	assert.Equal(t, 2, pub.count)
}

func TestBulkUploadSameFileName(t *testing.T) {
	e := newTestServer(t, &countingPublisher{})

	body, contentType := multipartBody(t, nil,
		part{field: "files", name: "notes.txt", content: "one"},
		part{field: "files", name: "notes.txt", content: "two"},
	)
	req := httptest.NewRequest(http.MethodPost, "/api/cases/bulk-upload", body)
	req.Header.Set(echo.HeaderContentType, contentType)

	rec, out := do(e, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 2, out["filesFailed"])
	errs, ok := out["errors"].([]any)
	require.True(t, ok)
	assert.Len(t, errs, 2)
}

func TestBulkUploadWithoutFiles(t *testing.T) {
	e := newTestServer(t, &countingPublisher{})

	body, contentType := multipartBody(t, map[string]string{"note": "x"})
	req := httptest.NewRequest(http.MethodPost, "/api/cases/bulk-upload", body)
	req.Header.Set(echo.HeaderContentType, contentType)

	rec, _ := do(e, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
