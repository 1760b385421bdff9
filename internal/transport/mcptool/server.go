// Package mcptool exposes section detection and value extraction as MCP tools.
package mcptool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docscan/internal/domain"
	"github.com/kailas-cloud/docscan/internal/usecase/aggregate"
	"github.com/kailas-cloud/docscan/internal/usecase/pipeline"
	"github.com/kailas-cloud/docscan/internal/usecase/scan"
)

// Tool names.
const (
	ToolAnalyzeDocument = "analyze_document"
	ToolExtractValues   = "extract_values"
)

// PDFMinConfidence drops weak values from multi-page PDF results.
const PDFMinConfidence = 0.2

// Extractor runs the page pipeline.
type Extractor interface {
	Run(ctx context.Context, req pipeline.Request) (domain.Report, error)
}

// SectionDetector detects the sections of one document.
type SectionDetector interface {
	Detect(ctx context.Context, ref string) (scan.Result, error)
}

// Tools registers docscan tools on an MCP server.
type Tools struct {
	detector  SectionDetector
	extractor Extractor
	logger    *zap.Logger
}

// New creates the tool set.
func New(detector SectionDetector, extractor Extractor, logger *zap.Logger) *Tools {
	return &Tools{detector: detector, extractor: extractor, logger: logger}
}

// Register adds all tools to srv.
func (t *Tools) Register(srv *mcp.Server) {
	t.registerAnalyze(srv)
	t.registerExtract(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// --- analyze_document ---

type analyzeReq struct {
	ImageURL string `json:"image_url"`
}

// AnalyzeResult is the payload of analyze_document.
type AnalyzeResult struct {
	Sections []domain.Section `json:"sections"`
	Total    int              `json:"total"`
}

func (t *Tools) registerAnalyze(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        ToolAnalyzeDocument,
		Description: "Detect the section titles of a document image or PDF (path or http(s) URL).",
		InputSchema: inputSchema(map[string]any{
			"image_url": map[string]any{"type": "string", "description": "Local path or http(s) URL of the document"},
		}, []string{"image_url"}),
	}

	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var r analyzeReq
		if err := decodeArgs(req, &r); err != nil {
			return toolError(err, map[string]any{"sections": []domain.Section{}, "total": 0}), nil
		}

		res, err := t.detector.Detect(ctx, r.ImageURL)
		if err != nil {
			t.logger.Warn("analyze_document failed", zap.String("document", r.ImageURL), zap.Error(err))
			return toolError(err, map[string]any{"sections": []domain.Section{}, "total": 0}), nil
		}

		sections := res.Sections
		if sections == nil {
			sections = []domain.Section{}
		}
		return toolResult(AnalyzeResult{Sections: sections, Total: len(sections)})
	})
}

// --- extract_values ---

type extractReq struct {
	ImageURL           string   `json:"image_url"`
	Sections           []string `json:"sections"`
	ExpertInstructions string   `json:"expert_instructions"`
}

// ExtractResult is the payload of extract_values.
type ExtractResult struct {
	ExtractedValues []domain.ExtractedValue    `json:"extracted_values"`
	Results         map[string]aggregate.Entry `json:"results"`
}

func (t *Tools) registerExtract(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        ToolExtractValues,
		Description: "Extract the values of the given sections from a document image or PDF (path or http(s) URL).",
		InputSchema: inputSchema(map[string]any{
			"image_url": map[string]any{"type": "string", "description": "Local path or http(s) URL of the document"},
			"sections": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Section titles to extract",
			},
			"expert_instructions": map[string]any{"type": "string", "description": "Optional extra extraction guidance"},
		}, []string{"image_url", "sections"}),
	}

	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		empty := map[string]any{"extracted_values": []domain.ExtractedValue{}}

		var r extractReq
		if err := decodeArgs(req, &r); err != nil {
			return toolError(err, empty), nil
		}

		rep, err := t.extractor.Run(ctx, pipeline.Request{
			Documents:    []string{r.ImageURL},
			Sections:     r.Sections,
			ExpertPrompt: r.ExpertInstructions,
		})
		if err != nil {
			t.logger.Warn("extract_values failed", zap.String("document", r.ImageURL), zap.Error(err))
			return toolError(err, empty), nil
		}

		values := []domain.ExtractedValue{}
		if len(rep.Documents) > 0 {
			doc := rep.Documents[0]
			values = doc.ExtractedValues
			if domain.IsPDF(doc.Document) {
				values = aggregate.FilterMinConfidence(values, PDFMinConfidence)
			}
		}
		return toolResult(ExtractResult{ExtractedValues: values, Results: aggregate.AsMap(values)})
	})
}

func decodeArgs(req *mcp.CallToolRequest, v any) error {
	if len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, v); err != nil {
			return fmt.Errorf("invalid arguments: %w", err)
		}
	}
	switch r := v.(type) {
	case *analyzeReq:
		if strings.TrimSpace(r.ImageURL) == "" {
			return errors.New("image_url is required")
		}
	case *extractReq:
		if strings.TrimSpace(r.ImageURL) == "" {
			return errors.New("image_url is required")
		}
	}
	return nil
}

func toolResult(payload any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		var res mcp.CallToolResult
		res.SetError(fmt.Errorf("marshal: %w", err))
		return &res, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil
}

// toolError reports err as a JSON object {"error": ..., <fields>}.
func toolError(err error, fields map[string]any) *mcp.CallToolResult {
	body := map[string]any{"error": err.Error()}
	for k, v := range fields {
		body[k] = v
	}
	data, mErr := json.Marshal(body)
	if mErr != nil {
		data = []byte(err.Error())
	}
	var res mcp.CallToolResult
	res.SetError(errors.New(string(data)))
	return &res
}
