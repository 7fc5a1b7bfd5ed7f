package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/codescan-mcp/internal/report"
	"github.com/dshills/codescan-mcp/internal/scanner"
)

// MCP error codes
const (
	ErrorCodeInvalidParams  = -32602 // Invalid method parameters
	ErrorCodeInternalError  = -32603 // Internal JSON-RPC error
	ErrorCodeScanInProgress = -32001 // Another scan is already running
)

// handleScanTree handles the scan_tree tool invocation
func (s *Server) handleScanTree(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		args = map[string]interface{}{}
	}

	root := getStringDefault(args, "path", s.cfg.Scan.RootDirectory)
	if err := validatePath(root); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	workers := getIntDefault(args, "workers", s.cfg.Scan.Workers)
	if workers < 1 || workers > 16 {
		return nil, newMCPError(ErrorCodeInvalidParams, "workers must be between 1 and 16", map[string]interface{}{
			"param": "workers",
			"value": workers,
		})
	}

	if !s.scanning.TryAcquire() {
		return nil, newMCPError(ErrorCodeScanInProgress, "a scan is already running", nil)
	}
	defer s.scanning.Release()

	scan := scanner.New(s.storage, s.analyzer, scanner.Options{
		Root:              root,
		Extensions:        s.cfg.Scan.Extensions,
		ExcludeDirs:       s.cfg.Scan.ExcludeDirs,
		GeneratedPatterns: s.cfg.Scan.GeneratedPatterns,
		SaveInterval:      s.cfg.Scan.SaveInterval,
		MaxChunkSize:      s.cfg.Scan.MaxChunkSize,
		Workers:           workers,
		Model:             s.cfg.Model.Name,
		Progress:          s.prog,
		Logger:            s.log,
	})

	stats, err := scan.Run(ctx)
	if errors.Is(err, scanner.ErrScanInProgress) {
		return nil, newMCPError(ErrorCodeScanInProgress, "a scan is already running", nil)
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "scan failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"root":          root,
		"files_scanned": stats.FilesScanned,
		"files_skipped": stats.FilesSkipped,
		"files_failed":  stats.FilesFailed,
		"issues_found":  stats.IssuesFound,
		"interrupted":   stats.Interrupted,
		"duration_ms":   stats.Duration.Milliseconds(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleScanStatus handles the scan_status tool invocation
func (s *Server) handleScanStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state, err := s.storage.LoadState(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to load scan state", map[string]interface{}{
			"error": err.Error(),
		})
	}
	stats, err := s.storage.Stats(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to load findings statistics", map[string]interface{}{
			"error": err.Error(),
		})
	}

	severities := map[string]int{}
	for severity, count := range stats.IssuesBySeverity {
		severities[string(severity)] = count
	}
	issueTypes := map[string]int{}
	for issueType, count := range stats.IssuesByType {
		issueTypes[string(issueType)] = count
	}

	response := map[string]interface{}{
		"scan": map[string]interface{}{
			"run_id":              state.RunID,
			"last_scanned_folder": state.LastScannedFolder,
			"last_scanned_file":   state.LastScannedFile,
			"completed_folders":   len(state.CompletedFolders),
			"total_files_scanned": state.TotalFilesScanned,
			"total_files_skipped": state.TotalFilesSkipped,
			"in_progress":         state.LastRun.IsZero() && state.LastScannedFolder != "",
			"last_run":            formatTime(state.LastRun),
			"scan_start_time":     formatTime(state.ScanStartTime),
		},
		"findings": map[string]interface{}{
			"files_recorded":     stats.FilesRecorded,
			"files_with_issues":  stats.FilesWithIssues,
			"files_failed":       stats.FilesFailed,
			"total_issues":       stats.TotalIssues,
			"issues_by_severity": severities,
			"issues_by_type":     issueTypes,
		},
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleFindingsReport handles the findings_report tool invocation
func (s *Server) handleFindingsReport(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	records, err := s.storage.ListFindings(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to list findings", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return mcp.NewToolResultText(report.Generate(records, time.Now())), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validatePath checks if a path exists and is a readable directory
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()
	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok && val != "" {
		return val
	}
	return defaultValue
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)
