package chi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docscan/internal/domain"
	logpkg "github.com/kailas-cloud/docscan/internal/logger"
	"github.com/kailas-cloud/docscan/internal/report"
	healthuc "github.com/kailas-cloud/docscan/internal/usecase/health"
	"github.com/kailas-cloud/docscan/internal/usecase/pipeline"
	"github.com/kailas-cloud/docscan/internal/usecase/scan"
)

const defaultMaxUploadBytes = 64 << 20

// Extractor runs the page pipeline.
type Extractor interface {
	Run(ctx context.Context, req pipeline.Request) (domain.Report, error)
}

// SectionDetector detects the sections of one document.
type SectionDetector interface {
	Detect(ctx context.Context, ref string) (scan.Result, error)
}

// ModeInfo describes the active backend for GET /v1/mode.
type ModeInfo struct {
	Mode          domain.Mode `json:"mode"`
	Backend       string      `json:"backend"`
	Server        string      `json:"server,omitempty"`
	Model         string      `json:"model"`
	PoolSize      int         `json:"pool_size"`
	APIKeyPreview string      `json:"api_key_preview,omitempty"`
	Version       string      `json:"version"`
}

// Options tune request handling and report persistence.
type Options struct {
	UploadDir      string // multipart uploads are staged here
	MaxUploadBytes int64
	InputDir       string // JSON bodies may name local files only under it; empty = URLs only
	ReportDir      string // empty disables report files
	XLSX           bool
}

// Server serves the docscan HTTP API.
type Server struct {
	extractor     Extractor
	detector      SectionDetector
	health        *healthuc.Service
	mode          ModeInfo
	opts          Options
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	extractor Extractor,
	detector SectionDetector,
	health *healthuc.Service,
	mode ModeInfo,
	opts Options,
	logger *zap.Logger,
) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	return &Server{
		extractor:     extractor,
		detector:      detector,
		health:        health,
		mode:          mode,
		opts:          opts,
		logger:        logger,
		errorHandlers: defaultErrorHandlers(),
	}
}

// Routes registers API handlers on r.
func (s *Server) Routes(r chi.Router) {
	r.Post("/v1/extract", s.Extract)
	r.Post("/v1/sections", s.Sections)
	r.Get("/v1/mode", s.Mode)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// extractRequest is the JSON body of POST /v1/extract.
type extractRequest struct {
	Documents     []string `json:"documents"`
	Sections      []string `json:"sections"`
	ExpertPrompt  string   `json:"expert_prompt"`
	IncludeFilter string   `json:"include_filter"`
	ExcludeFilter string   `json:"exclude_filter"`
	PoolSize      *int     `json:"pool_size"`
}

// ExtractResponse is the body of a successful POST /v1/extract.
type ExtractResponse struct {
	Report     domain.Report `json:"report"`
	Summary    string        `json:"summary"`
	ReportPath string        `json:"report_path,omitempty"`
	XLSXPath   string        `json:"xlsx_path,omitempty"`
}

// Extract handles POST /v1/extract.
func (s *Server) Extract(w http.ResponseWriter, r *http.Request) {
	var req pipeline.Request

	if isMultipart(r) {
		up, err := s.receiveUpload(w, r, "files", "files[]")
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
			return
		}
		defer up.cleanup()

		poolSize, err := optionalInt(r.FormValue("pool_size"))
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeValidationFailed, "pool_size must be an integer")
			return
		}
		req = pipeline.Request{
			Documents:     up.paths,
			Sections:      formSections(r.MultipartForm.Value["sections"]),
			ExpertPrompt:  r.FormValue("expert_prompt"),
			IncludeFilter: r.FormValue("include_filter"),
			ExcludeFilter: r.FormValue("exclude_filter"),
			PoolSize:      poolSize,
		}
	} else {
		var body extractRequest
		if err := decodeJSON(w, r, &body); err != nil {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
			return
		}
		docs, err := documentRefs(s.opts.InputDir, body.Documents)
		if err != nil {
			s.handleDomainError(r.Context(), w, err)
			return
		}
		req = pipeline.Request{
			Documents:     docs,
			Sections:      formSections(body.Sections),
			ExpertPrompt:  body.ExpertPrompt,
			IncludeFilter: body.IncludeFilter,
			ExcludeFilter: body.ExcludeFilter,
			PoolSize:      body.PoolSize,
		}
	}

	rep, err := s.extractor.Run(r.Context(), req)
	setUsageHeaders(w, domain.UsageFromContext(r.Context()))
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	resp := ExtractResponse{Report: rep, Summary: report.Summary(rep)}
	resp.ReportPath, resp.XLSXPath = s.persist(r.Context(), rep)
	writeJSON(w, http.StatusOK, resp)
}

// sectionsRequest is the JSON body of POST /v1/sections.
type sectionsRequest struct {
	Document string   `json:"document"`
	Sections []string `json:"sections"` // manual titles merged after detected ones
}

// SectionsResponse is the body of a successful POST /v1/sections.
type SectionsResponse struct {
	Sections []domain.Section `json:"sections"`
	Labels   []string         `json:"labels"`
	Titles   []string         `json:"titles"`
}

// Sections handles POST /v1/sections.
func (s *Server) Sections(w http.ResponseWriter, r *http.Request) {
	var body sectionsRequest

	if isMultipart(r) {
		up, err := s.receiveUpload(w, r, "file")
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
			return
		}
		defer up.cleanup()
		body.Document = up.paths[0]
		body.Sections = r.MultipartForm.Value["sections"]
	} else {
		if err := decodeJSON(w, r, &body); err != nil {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
			return
		}
		if strings.TrimSpace(body.Document) == "" {
			writeError(w, http.StatusBadRequest, CodeValidationFailed, "document is required")
			return
		}
		docs, err := documentRefs(s.opts.InputDir, []string{body.Document})
		if err != nil {
			s.handleDomainError(r.Context(), w, err)
			return
		}
		body.Document = docs[0]
	}

	res, err := s.detector.Detect(r.Context(), body.Document)
	setUsageHeaders(w, domain.UsageFromContext(r.Context()))
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	titles := domain.NewSectionRequest(res.Titles()...).Merge(formSections(body.Sections)...)
	writeJSON(w, http.StatusOK, SectionsResponse{
		Sections: nonNil(res.Sections),
		Labels:   nonNil(res.Labels),
		Titles:   titles.Titles(),
	})
}

// Mode handles GET /v1/mode.
func (s *Server) Mode(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.mode)
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status healthuc.Status                 `json:"status"`
	Checks map[string]healthuc.CheckResult `json:"checks"`
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	rep := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if rep.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: rep.Status,
		Checks: rep.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// persist writes report files when a report dir is configured.
// Failures are logged; the response still carries the report.
func (s *Server) persist(ctx context.Context, rep domain.Report) (jsonPath, xlsxPath string) {
	if s.opts.ReportDir == "" {
		return "", ""
	}
	log := logpkg.FromContextOr(ctx, s.logger)

	jsonPath, err := report.WriteJSON(s.opts.ReportDir, rep)
	if err != nil {
		log.Error("Failed to write report", zap.Error(err))
		jsonPath = ""
	}
	if s.opts.XLSX {
		if xlsxPath, err = report.WriteXLSX(s.opts.ReportDir, rep); err != nil {
			log.Error("Failed to write xlsx report", zap.Error(err))
			xlsxPath = ""
		}
	}
	return jsonPath, xlsxPath
}

func (s *Server) handleDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	log := logpkg.FromContextOr(ctx, s.logger)
	log.Warn("domain error", zap.Error(err))
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)).Decode(v) //nolint:wrapcheck // echoed to client
}

func setUsageHeaders(w http.ResponseWriter, usage *domain.ModelUsage) {
	calls, hits, tokens := usage.Snapshot()
	if calls == 0 {
		return
	}
	w.Header().Set("X-Model-Calls", strconv.Itoa(calls))
	w.Header().Set("X-Model-Cache-Hits", strconv.Itoa(hits))
	w.Header().Set("X-Model-Tokens", strconv.Itoa(tokens))
}

// formSections flattens repeated and comma/newline separated titles.
// A line holding a detection label is taken whole and stripped to its title.
func formSections(values []string) []string {
	var out []string
	for _, v := range values {
		for _, line := range strings.Split(v, "\n") {
			if strings.Contains(line, " (Level:") {
				out = append(out, domain.TitleFromLabel(line))
				continue
			}
			for _, t := range domain.SplitTitles(line) {
				out = append(out, domain.TitleFromLabel(t))
			}
		}
	}
	return out
}

func optionalInt(raw string) (*int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("parse int: %w", err)
	}
	return &n, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}
