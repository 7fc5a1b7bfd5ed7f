package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/codescan-mcp/internal/analyzer"
	"github.com/dshills/codescan-mcp/internal/config"
	"github.com/dshills/codescan-mcp/internal/progress"
	"github.com/dshills/codescan-mcp/internal/scanner"
	"github.com/dshills/codescan-mcp/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "codescan-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	storage  storage.Storage
	analyzer analyzer.Client
	cfg      *config.Config
	prog     *progress.Log
	log      *slog.Logger

	// Guards against overlapping scan_tree invocations; the per-run lock
	// inside Scanner cannot help because each invocation builds its own.
	scanning scanner.ScanLock
}

// NewServer creates a new MCP server instance from loaded configuration
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(cfg.Storage.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	prog, err := progress.Open(cfg.Storage.ProgressLogPath, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to open progress log: %w", err)
	}

	client := analyzer.New(analyzer.Config{
		BaseURL:     cfg.Endpoint.BaseURL,
		APIKey:      cfg.Endpoint.APIKey,
		Model:       cfg.Model.Name,
		Temperature: cfg.Model.Temperature,
		MaxTokens:   cfg.Model.MaxTokens,
		TopP:        cfg.Model.TopP,
		RetryBudget: cfg.Endpoint.RetryCount,
		RetryDelay:  cfg.Endpoint.RetryDelay(),
		Logger:      logger,
	})

	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
	)

	s := &Server{
		mcp:      mcpServer,
		storage:  store,
		analyzer: client,
		cfg:      cfg,
		prog:     prog,
		log:      logger,
	}

	s.registerTools()
	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() {
		_ = s.analyzer.Close()
		_ = s.prog.Close()
		_ = s.storage.Close()
	}()
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(scanTreeTool(), s.handleScanTree)
	s.mcp.AddTool(scanStatusTool(), s.handleScanStatus)
	s.mcp.AddTool(findingsReportTool(), s.handleFindingsReport)
}
