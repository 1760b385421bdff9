package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docscan/internal/domain"
	healthuc "github.com/kailas-cloud/docscan/internal/usecase/health"
	"github.com/kailas-cloud/docscan/internal/usecase/pipeline"
	"github.com/kailas-cloud/docscan/internal/usecase/scan"
)

// --- Mocks ---

type mockExtractor struct {
	report    domain.Report
	err       error
	panicMsg  string
	got       pipeline.Request
	existed   []bool // whether each document existed during Run
	callCount int
}

func (m *mockExtractor) Run(ctx context.Context, req pipeline.Request) (domain.Report, error) {
	m.callCount++
	m.got = req
	if m.panicMsg != "" {
		panic(m.panicMsg)
	}
	for _, d := range req.Documents {
		_, err := os.Stat(d)
		m.existed = append(m.existed, err == nil)
	}
	domain.UsageFromContext(ctx).Record(domain.Generation{PromptTokens: 7, CompletionTokens: 3})
	return m.report, m.err
}

type mockDetector struct {
	result    scan.Result
	err       error
	gotRef    string
	callCount int
}

func (m *mockDetector) Detect(_ context.Context, ref string) (scan.Result, error) {
	m.callCount++
	m.gotRef = ref
	return m.result, m.err
}

type mockBackendChecker struct{ err error }

func (m *mockBackendChecker) HealthCheck(context.Context) error { return m.err }

func sampleReport() domain.Report {
	return domain.Report{
		RunID:     "run-42",
		Timestamp: "2024-05-06 07:08:09",
		Mode:      domain.ModeAPI,
		Documents: []domain.DocumentResult{{
			Document:        "invoice.pdf",
			ExtractedValues: []domain.ExtractedValue{{Section: "Total", Value: domain.Text("42"), Confidence: 0.9, Page: 1}},
		}},
		Stats: domain.RunStats{Documents: 1, Pages: 1, Extracted: 1},
	}
}

type testEnv struct {
	handler   http.Handler
	extractor *mockExtractor
	detector  *mockDetector
	backend   *mockBackendChecker
}

func newTestEnv(t *testing.T, opts Options, apiKeys ...string) *testEnv {
	t.Helper()
	if opts.UploadDir == "" {
		opts.UploadDir = t.TempDir()
	}
	env := &testEnv{
		extractor: &mockExtractor{report: sampleReport()},
		detector:  &mockDetector{},
		backend:   &mockBackendChecker{},
	}
	srv := NewServer(
		env.extractor,
		env.detector,
		healthuc.New(env.backend, nil),
		ModeInfo{Mode: domain.ModeAPI, Backend: "api", Model: "mistral-small-latest", PoolSize: 5, APIKeyPreview: "sk-1...wxyz"},
		opts,
		zap.NewNop(),
	)
	env.handler = NewRouter(srv, apiKeys, zap.NewNop())
	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func multipartRequest(t *testing.T, path string, files map[string][]string, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, names := range files {
		for _, name := range names {
			fw, err := mw.CreateFormFile(field, name)
			if err != nil {
				t.Fatalf("create form file: %v", err)
			}
			_, _ = fw.Write([]byte("content of " + name))
		}
	}
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// --- /v1/extract ---

func TestExtract_JSON(t *testing.T) {
	inputDir := t.TempDir()
	env := newTestEnv(t, Options{InputDir: inputDir})
	pool := 7

	rr := env.do(jsonRequest(t, http.MethodPost, "/v1/extract", map[string]any{
		"documents":      []string{"invoices/invoice.pdf", "https://files.example.com/b.png"},
		"sections":       []string{"Total, Date", "Name (Level: 1, Type: section, Page: 2)"},
		"expert_prompt":  "dates as ISO",
		"include_filter": "invoices",
		"pool_size":      pool,
	}))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	got := env.extractor.got
	wantDoc := filepath.Join(inputDir, "invoices", "invoice.pdf")
	if resolved, err := filepath.EvalSymlinks(inputDir); err == nil {
		wantDoc = filepath.Join(resolved, "invoices", "invoice.pdf")
	}
	if len(got.Documents) != 2 || got.Documents[0] != wantDoc || got.Documents[1] != "https://files.example.com/b.png" {
		t.Errorf("unexpected documents %v", got.Documents)
	}
	if strings.Join(got.Sections, "|") != "Total|Date|Name" {
		t.Errorf("unexpected sections %v", got.Sections)
	}
	if got.ExpertPrompt != "dates as ISO" || got.IncludeFilter != "invoices" || got.PoolSize == nil || *got.PoolSize != 7 {
		t.Errorf("unexpected request %+v", got)
	}

	var resp ExtractResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Report.RunID != "run-42" {
		t.Errorf("unexpected report %+v", resp.Report)
	}
	if !strings.Contains(resp.Summary, "Total (p.1): 42 (confidence: 90%)") {
		t.Errorf("unexpected summary %q", resp.Summary)
	}
	if resp.ReportPath != "" {
		t.Error("report must not be written without a report dir")
	}
	if rr.Header().Get("X-Model-Calls") != "1" || rr.Header().Get("X-Model-Tokens") != "10" {
		t.Errorf("unexpected usage headers %v", rr.Header())
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestExtract_Multipart(t *testing.T) {
	uploadDir := t.TempDir()
	env := newTestEnv(t, Options{UploadDir: uploadDir})

	rr := env.do(multipartRequest(t, "/v1/extract",
		map[string][]string{"files": {"a.pdf", "a.pdf", "../../etc/b.png"}},
		map[string]string{"sections": "Total\nDate", "exclude_filter": "covers", "pool_size": "3"},
	))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	got := env.extractor.got
	if len(got.Documents) != 3 {
		t.Fatalf("expected 3 staged documents, got %v", got.Documents)
	}
	for i, want := range []string{"a.pdf", "a.pdf", "b.png"} {
		if filepath.Base(got.Documents[i]) != want {
			t.Errorf("document %d = %s, want base %s", i, got.Documents[i], want)
		}
		if !strings.HasPrefix(got.Documents[i], uploadDir) {
			t.Errorf("document %s escaped the upload dir", got.Documents[i])
		}
		if !env.extractor.existed[i] {
			t.Errorf("document %s missing during run", got.Documents[i])
		}
	}
	if strings.Join(got.Sections, "|") != "Total|Date" || got.ExcludeFilter != "covers" || *got.PoolSize != 3 {
		t.Errorf("unexpected request %+v", got)
	}

	entries, _ := os.ReadDir(uploadDir)
	if len(entries) != 0 {
		t.Errorf("upload dir not cleaned: %v", entries)
	}
}

func TestExtract_MultipartNoFiles(t *testing.T) {
	env := newTestEnv(t, Options{})
	rr := env.do(multipartRequest(t, "/v1/extract", nil, map[string]string{"sections": "Total"}))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if env.extractor.callCount != 0 {
		t.Error("pipeline must not run without files")
	}
}

func TestExtract_InvalidPoolSize(t *testing.T) {
	env := newTestEnv(t, Options{})
	rr := env.do(multipartRequest(t, "/v1/extract",
		map[string][]string{"files": {"a.png"}},
		map[string]string{"sections": "Total", "pool_size": "many"},
	))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestExtract_InvalidJSON(t *testing.T) {
	env := newTestEnv(t, Options{})
	req := httptest.NewRequest(http.MethodPost, "/v1/extract", strings.NewReader("{"))
	rr := env.do(req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestExtract_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   ErrorCode
		wantMsg    string
	}{
		{"invalid input", fmt.Errorf("%w: no sections selected", domain.ErrInvalidInput),
			http.StatusBadRequest, CodeValidationFailed, "invalid input: no sections selected"},
		{"unsupported", fmt.Errorf("%w: .docx", domain.ErrUnsupportedFormat),
			http.StatusBadRequest, CodeUnsupportedFormat, "unsupported document format: .docx"},
		{"configuration", fmt.Errorf("%w: model unavailable: secret detail", domain.ErrConfiguration),
			http.StatusServiceUnavailable, CodeBackendUnavailable, "backend configuration error"},
		{"unknown", errors.New("disk on fire"),
			http.StatusInternalServerError, CodeInternalError, "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, Options{})
			env.extractor.err = tt.err

			rr := env.do(jsonRequest(t, http.MethodPost, "/v1/extract", map[string]any{
				"documents": []string{"https://files.example.com/x.png"}, "sections": []string{"A"},
			}))
			if rr.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rr.Code)
			}
			var resp ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Code != tt.wantCode || resp.Message != tt.wantMsg {
				t.Errorf("got %+v, want code %s message %q", resp, tt.wantCode, tt.wantMsg)
			}
		})
	}
}

func TestExtract_PersistsReport(t *testing.T) {
	reportDir := t.TempDir()
	env := newTestEnv(t, Options{ReportDir: reportDir, XLSX: true})

	rr := env.do(jsonRequest(t, http.MethodPost, "/v1/extract", map[string]any{
		"documents": []string{"https://files.example.com/x.png"}, "sections": []string{"A"},
	}))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var resp ExtractResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if filepath.Base(resp.ReportPath) != "multi_doc_extracted_values_run-42.json" {
		t.Errorf("unexpected report path %q", resp.ReportPath)
	}
	for _, p := range []string{resp.ReportPath, resp.XLSXPath} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("report file %q missing: %v", p, err)
		}
	}
}

func TestExtract_PanicReturnsJSON(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.extractor.panicMsg = "boom"

	rr := env.do(jsonRequest(t, http.MethodPost, "/v1/extract", map[string]any{
		"documents": []string{"https://files.example.com/x.png"}, "sections": []string{"A"},
	}))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil || resp.Code != CodeInternalError {
		t.Errorf("expected JSON internal_error, got %s", rr.Body.String())
	}
}

func TestExtract_DocumentReferences(t *testing.T) {
	inputDir := t.TempDir()
	outside := t.TempDir()
	secret := filepath.Join(outside, "secret.png")
	if err := os.WriteFile(secret, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(secret, filepath.Join(inputDir, "link.png")); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		inputDir string
		doc      string
		want     int
	}{
		{"url without input dir", "", "https://files.example.com/a.pdf", http.StatusOK},
		{"local path without input dir", "", "/etc/passwd", http.StatusBadRequest},
		{"relative path without input dir", "", "a.png", http.StatusBadRequest},
		{"inside input dir", inputDir, "scans/a.png", http.StatusOK},
		{"absolute outside input dir", inputDir, secret, http.StatusBadRequest},
		{"dot-dot escape", inputDir, "../" + filepath.Base(outside) + "/secret.png", http.StatusBadRequest},
		{"symlink escape", inputDir, "link.png", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, Options{InputDir: tt.inputDir})
			rr := env.do(jsonRequest(t, http.MethodPost, "/v1/extract", map[string]any{
				"documents": []string{tt.doc}, "sections": []string{"A"},
			}))
			if rr.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rr.Code, rr.Body.String())
			}
			if tt.want != http.StatusOK {
				var resp ErrorResponse
				if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil || resp.Code != CodeValidationFailed {
					t.Errorf("expected validation_failed, got %s", rr.Body.String())
				}
				if env.extractor.callCount != 0 {
					t.Error("extractor must not run")
				}
			}
		})
	}
}

func TestSections_LocalPathRefused(t *testing.T) {
	env := newTestEnv(t, Options{})
	rr := env.do(jsonRequest(t, http.MethodPost, "/v1/sections", map[string]any{"document": "/var/lib/secret.pdf"}))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if env.detector.callCount != 0 {
		t.Error("detector must not run")
	}
}

func TestExtract_OversizedJSONBody(t *testing.T) {
	env := newTestEnv(t, Options{})
	big := strings.Repeat("a", maxJSONBodyBytes)
	rr := env.do(jsonRequest(t, http.MethodPost, "/v1/extract", map[string]any{
		"documents": []string{"https://files.example.com/x.png"}, "expert_prompt": big,
	}))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if env.extractor.callCount != 0 {
		t.Error("extractor must not run")
	}
}

// --- /v1/sections ---

func TestSections_JSON(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.detector.result = scan.Result{
		Sections: []domain.Section{{Title: "Total", Level: 1, Type: "section", Page: 1}},
		Labels:   []string{"Total (Level: 1, Type: section, Page: 1)"},
	}

	rr := env.do(jsonRequest(t, http.MethodPost, "/v1/sections", map[string]any{
		"document": "https://example.com/doc.pdf",
		"sections": []string{"Date, Total"},
	}))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if env.detector.gotRef != "https://example.com/doc.pdf" {
		t.Errorf("unexpected ref %q", env.detector.gotRef)
	}

	var resp SectionsResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Sections) != 1 || len(resp.Labels) != 1 {
		t.Errorf("unexpected detection %+v", resp)
	}
	if strings.Join(resp.Titles, "|") != "Total|Date" {
		t.Errorf("manual titles should merge without duplicates, got %v", resp.Titles)
	}
}

func TestSections_Multipart(t *testing.T) {
	env := newTestEnv(t, Options{})
	rr := env.do(multipartRequest(t, "/v1/sections", map[string][]string{"file": {"scan.png"}}, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if filepath.Base(env.detector.gotRef) != "scan.png" {
		t.Errorf("unexpected ref %q", env.detector.gotRef)
	}

	var resp SectionsResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Sections == nil || resp.Labels == nil || resp.Titles == nil {
		t.Error("empty detection must serialize as empty lists")
	}
}

func TestSections_MissingDocument(t *testing.T) {
	env := newTestEnv(t, Options{})
	rr := env.do(jsonRequest(t, http.MethodPost, "/v1/sections", map[string]any{"document": " "}))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if env.detector.callCount != 0 {
		t.Error("detector must not run")
	}
}

func TestSections_DownloadError(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.detector.err = fmt.Errorf("expand document: %w: status 404", domain.ErrDownload)

	rr := env.do(jsonRequest(t, http.MethodPost, "/v1/sections", map[string]any{"document": "https://x/y.pdf"}))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

// --- /v1/mode, /health, auth ---

func TestMode(t *testing.T) {
	env := newTestEnv(t, Options{})
	rr := env.do(httptest.NewRequest(http.MethodGet, "/v1/mode", http.NoBody))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp ModeInfo
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Mode != domain.ModeAPI || resp.PoolSize != 5 || resp.APIKeyPreview != "sk-1...wxyz" {
		t.Errorf("unexpected mode %+v", resp)
	}
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t, Options{})
	rr := env.do(httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	env.backend.err = errors.New("down")
	rr = env.do(httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != healthuc.Unhealthy || resp.Checks["backend"] != healthuc.CheckError {
		t.Errorf("unexpected health %+v", resp)
	}
}

func TestRouter_Auth(t *testing.T) {
	env := newTestEnv(t, Options{}, "secret")

	rr := env.do(httptest.NewRequest(http.MethodGet, "/v1/mode", http.NoBody))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without key, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/mode", http.NoBody)
	req.Header.Set("Authorization", "Bearer secret")
	if rr := env.do(req); rr.Code != http.StatusOK {
		t.Errorf("expected 200 with key, got %d", rr.Code)
	}

	if rr := env.do(httptest.NewRequest(http.MethodGet, "/health", http.NoBody)); rr.Code != http.StatusOK {
		t.Errorf("health must be exempt, got %d", rr.Code)
	}
}

func TestRouter_NotFound(t *testing.T) {
	env := newTestEnv(t, Options{})
	rr := env.do(httptest.NewRequest(http.MethodGet, "/v1/unknown", http.NoBody))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("Content-Type"), "application/json") {
		t.Error("expected JSON error body")
	}
}

func TestFormSections(t *testing.T) {
	got := formSections([]string{
		"A, B\nC",
		"Total (Level: 2, Type: header, Page: 3)\nD",
		`"title": "E"`,
	})
	if strings.Join(got, "|") != "A|B|C|Total|D|E" {
		t.Errorf("unexpected titles %v", got)
	}
}
