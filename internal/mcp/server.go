package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/a3tai/faithful-pdf/internal/config"
	"github.com/a3tai/faithful-pdf/internal/descriptions"
	"github.com/a3tai/faithful-pdf/internal/pdf/extraction"
	"github.com/a3tai/faithful-pdf/internal/pdf/model"
	"github.com/a3tai/faithful-pdf/internal/pdf/render"
)

// Tool names
const (
	ToolExtractFaithful = "pdf_extract_faithful"
	ToolExtractHTML     = "pdf_extract_html"
	ToolExtractMarkdown = "pdf_extract_markdown"
	ToolCapabilities    = "pdf_capabilities"
	ToolSearchDirectory = "pdf_search_directory"
)

// searchLimit caps the files listed by one directory search
const searchLimit = 500

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	engine    *extraction.Engine
	mcpServer *server.MCPServer
	limiter   *rate.Limiter
	logger    *zap.Logger
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, engine *extraction.Engine, logger *zap.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s := &Server{
		config:    cfg,
		engine:    engine,
		mcpServer: mcpServer,
		logger:    logger,
	}
	if cfg.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(1, int(math.Ceil(cfg.RateLimit))))
	}
	s.registerTools()
	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	pathParam := mcp.WithString("path",
		mcp.Required(),
		mcp.Description("Path to the PDF file, absolute or relative to the PDF directory"),
	)

	s.mcpServer.AddTool(mcp.NewTool(ToolExtractFaithful,
		mcp.WithDescription(descriptions.PDFExtractFaithfulDescription),
		pathParam,
		mcp.WithBoolean("reprocess",
			mcp.Description("Ignore any cached result and extract again"),
		),
	), s.handleExtractFaithful)

	s.mcpServer.AddTool(mcp.NewTool(ToolExtractHTML,
		mcp.WithDescription(descriptions.PDFExtractHTMLDescription),
		pathParam,
		mcp.WithNumber("page",
			mcp.Description("1-based page to return as a fragment; omit for the whole document"),
		),
	), s.handleExtractHTML)

	s.mcpServer.AddTool(mcp.NewTool(ToolExtractMarkdown,
		mcp.WithDescription(descriptions.PDFExtractMarkdownDescription),
		pathParam,
	), s.handleExtractMarkdown)

	s.mcpServer.AddTool(mcp.NewTool(ToolCapabilities,
		mcp.WithDescription(descriptions.PDFCapabilitiesDescription),
	), s.handleCapabilities)

	s.mcpServer.AddTool(mcp.NewTool(ToolSearchDirectory,
		mcp.WithDescription(descriptions.PDFSearchDirectoryDescription),
		mcp.WithString("directory",
			mcp.Description("Directory to search (uses the PDF directory if empty)"),
		),
		mcp.WithString("query",
			mcp.Description("Optional search query for fuzzy matching"),
		),
	), s.handleSearchDirectory)
}

// resolve makes path absolute against the PDF directory
func (s *Server) resolve(path string) string {
	if filepath.IsAbs(path) || s.config.PDFDirectory == "" {
		return path
	}
	return filepath.Join(s.config.PDFDirectory, path)
}

func (s *Server) extract(ctx context.Context, request mcp.CallToolRequest) (*model.ExtractionResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return nil, err
	}
	path = s.resolve(path)
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}
	if request.GetBool("reprocess", false) {
		return s.engine.ReprocessFile(ctx, path)
	}
	return s.engine.ExtractFile(ctx, path)
}

// Handler functions
func (s *Server) handleExtractFaithful(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.extract(ctx, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleExtractHTML(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.extract(ctx, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	page := request.GetInt("page", 0)
	if page <= 0 {
		return mcp.NewToolResultText(result.HTML), nil
	}
	if page > len(result.Pages) {
		return mcp.NewToolResultError(fmt.Sprintf("page %d out of range (document has %d pages)", page, len(result.Pages))), nil
	}
	fragment, err := render.PageFragment(result.HTML, page)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fragment), nil
}

func (s *Server) handleExtractMarkdown(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.extract(ctx, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !result.Extracted {
		return mcp.NewToolResultError("document could not be extracted: " + joinErrors(result.Errors)), nil
	}
	text, err := s.engine.Renderer().Markdown(result.Pages)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(text), nil
}

// CapabilitiesInfo is the pdf_capabilities response
type CapabilitiesInfo struct {
	ServerName   string            `json:"server_name"`
	Version      string            `json:"version"`
	PDFDirectory string            `json:"pdf_directory"`
	MaxFileSize  int64             `json:"max_file_size"`
	Consensus    bool              `json:"consensus"`
	OCREnabled   bool              `json:"ocr_enabled"`
	Capabilities extraction.Report `json:"capabilities"`
	Tools        []string          `json:"tools"`
}

func (s *Server) handleCapabilities(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	info := CapabilitiesInfo{
		ServerName:   s.config.ServerName,
		Version:      s.config.Version,
		PDFDirectory: s.config.PDFDirectory,
		MaxFileSize:  s.config.MaxFileSize,
		Consensus:    s.config.Extraction.Consensus,
		OCREnabled:   s.config.Extraction.OCREnabled,
		Capabilities: s.engine.Capabilities().Report(),
		Tools: []string{
			ToolExtractFaithful, ToolExtractHTML, ToolExtractMarkdown,
			ToolCapabilities, ToolSearchDirectory,
		},
	}
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleSearchDirectory(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	directory := request.GetString("directory", "")
	if directory == "" {
		directory = s.config.PDFDirectory
	}
	result, err := searchDirectory(s.config.PDFDirectory, s.resolve(directory),
		request.GetString("query", ""), s.config.MaxFileSize, searchLimit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func joinErrors(errs []string) string {
	if len(errs) == 0 {
		return "unknown error"
	}
	out := errs[0]
	for _, e := range errs[1:] {
		out += "; " + e
	}
	return out
}

// Run starts the MCP server in the configured mode and stops when ctx is
// done
func (s *Server) Run(ctx context.Context) error {
	switch s.config.Mode {
	case config.ModeServer:
		return s.runServerMode(ctx)
	case config.ModeStdio:
		return s.runStdioMode(ctx)
	default:
		return fmt.Errorf("unknown mode: %s", s.config.Mode)
	}
}

// runStdioMode serves MCP over stdin and stdout
func (s *Server) runStdioMode(ctx context.Context) error {
	s.logger.Info("starting MCP server",
		zap.String("transport", "stdio"),
		zap.String("dir", s.config.PDFDirectory))

	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(zap.NewStdLog(s.logger))
	err := stdio.Listen(ctx, os.Stdin, os.Stdout)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// runServerMode serves MCP over SSE on the configured address
func (s *Server) runServerMode(ctx context.Context) error {
	addr := s.config.Address()
	sse := server.NewSSEServer(s.mcpServer, server.WithBaseURL("http://"+addr))

	s.logger.Info("starting MCP server",
		zap.String("transport", "sse"),
		zap.String("addr", addr),
		zap.String("dir", s.config.PDFDirectory))

	errCh := make(chan error, 1)
	go func() { errCh <- sse.Start(addr) }()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve sse: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("stopping MCP server", zap.String("addr", addr))
		return sse.Shutdown(shutdownCtx)
	}
}
