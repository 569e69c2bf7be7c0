package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"finman/internal/core"
	"finman/internal/ingest"
)

type fakeService struct {
	fileResult ingest.BatchResult
	textResult ingest.BatchResult
	listResult []core.Expense
	deleted    int64
	err        error

	lastFilename string
	lastText     string
}

func (f *fakeService) IngestFile(_ context.Context, _ []byte, filename string) (ingest.BatchResult, error) {
	f.lastFilename = filename
	if f.err != nil {
		return ingest.BatchResult{}, f.err
	}
	return f.fileResult, nil
}

func (f *fakeService) IngestText(_ context.Context, text string) (ingest.BatchResult, error) {
	f.lastText = text
	if f.err != nil {
		return ingest.BatchResult{}, f.err
	}
	return f.textResult, nil
}

func (f *fakeService) ListAll(_ context.Context) ([]core.Expense, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.listResult, nil
}

func (f *fakeService) ClearAll(_ context.Context) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.deleted, nil
}

func newTestServer(svc IngestService) *Server {
	return NewServer(":0", svc)
}

func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestGetExpenses(t *testing.T) {
	d, _ := core.ParseDate("2024-01-05")
	v, _ := core.NewAmount("-4.50")
	svc := &fakeService{listResult: []core.Expense{
		{ID: 1, Date: d, Description: "Coffee", Value: v, InOut: core.DirectionOut},
	}}
	srv := newTestServer(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/expenses", nil)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got []core.Expense
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(got) != 1 || got[0].Description != "Coffee" {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestGetExpensesEmptyStoreIsArray(t *testing.T) {
	srv := newTestServer(&fakeService{})

	req := httptest.NewRequest(http.MethodGet, "/api/expenses", nil)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("body = %q, want []", body)
	}
}

func TestGetExpensesMethodNotAllowed(t *testing.T) {
	srv := newTestServer(&fakeService{})

	req := httptest.NewRequest(http.MethodPut, "/api/expenses", nil)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestUploadFileStatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   ingest.Status
		wantCode int
	}{
		{"success", ingest.StatusSuccess, http.StatusOK},
		{"partial success", ingest.StatusPartialSuccess, http.StatusMultiStatus},
		{"error", ingest.StatusError, http.StatusBadRequest},
		{"no data", ingest.StatusNoData, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{fileResult: ingest.BatchResult{
				Status: tt.status,
				Errors: []string{},
			}}
			srv := newTestServer(svc)

			body, contentType := multipartBody(t, "expenses.csv", "date,description,value\n2024-01-05,Coffee,-4.50\n")
			req := httptest.NewRequest(http.MethodPost, "/api/upload-file", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()
			srv.Handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			if svc.lastFilename != "expenses.csv" {
				t.Errorf("filename = %q", svc.lastFilename)
			}
		})
	}
}

func TestUploadFileEmpty(t *testing.T) {
	srv := newTestServer(&fakeService{})

	body, contentType := multipartBody(t, "expenses.csv", "")
	req := httptest.NewRequest(http.MethodPost, "/api/upload-file", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestUploadFileMissingField(t *testing.T) {
	srv := newTestServer(&fakeService{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("other", "value")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/upload-file", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestUploadFileUnsupportedType(t *testing.T) {
	svc := &fakeService{err: fmt.Errorf("%w: %q", ingest.ErrUnsupportedFile, "data.pdf")}
	srv := newTestServer(svc)

	body, contentType := multipartBody(t, "data.pdf", "binary")
	req := httptest.NewRequest(http.MethodPost, "/api/upload-file", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "unsupported file type") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestProcessText(t *testing.T) {
	svc := &fakeService{textResult: ingest.BatchResult{
		Status:         ingest.StatusSuccess,
		ProcessedCount: 1,
		AddedCount:     1,
		Errors:         []string{},
	}}
	srv := newTestServer(svc)

	body := strings.NewReader(`{"text_input": "spent $45 on groceries"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/process-text", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	if svc.lastText != "spent $45 on groceries" {
		t.Errorf("text = %q", svc.lastText)
	}

	var result ingest.BatchResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if result.Status != ingest.StatusSuccess || result.AddedCount != 1 {
		t.Errorf("result = %+v", result)
	}
}

func TestProcessTextBlank(t *testing.T) {
	srv := newTestServer(&fakeService{})

	body := strings.NewReader(`{"text_input": "   "}`)
	req := httptest.NewRequest(http.MethodPost, "/api/process-text", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestProcessTextInvalidJSON(t *testing.T) {
	srv := newTestServer(&fakeService{})

	req := httptest.NewRequest(http.MethodPost, "/api/process-text", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestProcessTextExtractorUnavailable(t *testing.T) {
	svc := &fakeService{err: fmt.Errorf("%w: connection refused", ingest.ErrExtractorUnavailable)}
	srv := newTestServer(svc)

	body := strings.NewReader(`{"text_input": "lunch 12.50"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/process-text", body)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 (body %s)", rec.Code, rec.Body.String())
	}
}

func TestClearExpenses(t *testing.T) {
	svc := &fakeService{deleted: 7}
	srv := newTestServer(svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/expenses/all", nil)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp clearResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Status != "success" || resp.DeletedCount != 7 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestInternalErrorsReturn500(t *testing.T) {
	svc := &fakeService{err: errors.New("db locked")}
	srv := newTestServer(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/expenses", nil)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(&fakeService{})

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rec.Code)
		}
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(&fakeService{})

	req := httptest.NewRequest(http.MethodGet, "/api/expenses", nil)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	rl := newRateLimiter()
	defer rl.stop()

	for i := 0; i < 60; i++ {
		if !rl.allow("10.0.0.1") {
			t.Fatalf("request %d unexpectedly blocked", i+1)
		}
	}
	if rl.allow("10.0.0.1") {
		t.Error("request 61 should be blocked")
	}
	if !rl.allow("10.0.0.2") {
		t.Error("other client should not be affected")
	}
}
