package mcp

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codescan-mcp/internal/config"
)

func newTestServer(t *testing.T, root string) *Server {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Scan.RootDirectory = root
	cfg.Model.Name = "test-model"
	cfg.Storage.DatabasePath = filepath.Join(dir, "scan.db")
	cfg.Storage.ProgressLogPath = filepath.Join(dir, "progress.log")

	srv, err := NewServer(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = srv.analyzer.Close()
		_ = srv.prog.Close()
		_ = srv.storage.Close()
	})
	return srv
}

func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func TestNewServer_Initializes(t *testing.T) {
	srv := newTestServer(t, t.TempDir())

	assert.NotNil(t, srv.mcp)
	assert.NotNil(t, srv.storage)
	assert.NotNil(t, srv.analyzer)
	assert.NotNil(t, srv.prog)
}

func TestHandleScanTree_InvalidPath(t *testing.T) {
	srv := newTestServer(t, t.TempDir())

	_, err := srv.handleScanTree(context.Background(), callRequest(map[string]interface{}{
		"path": "relative/path",
	}))

	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
}

func TestHandleScanTree_InvalidWorkers(t *testing.T) {
	srv := newTestServer(t, t.TempDir())

	_, err := srv.handleScanTree(context.Background(), callRequest(map[string]interface{}{
		"workers": float64(99),
	}))

	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
}

func TestHandleScanTree_EmptyTree(t *testing.T) {
	srv := newTestServer(t, t.TempDir())

	result, err := srv.handleScanTree(context.Background(), callRequest(nil))

	require.NoError(t, err)
	require.NotNil(t, result)
	text := toolText(t, result)
	assert.Contains(t, text, `"files_scanned": 0`)
	assert.Contains(t, text, `"interrupted": false`)
}

func TestHandleScanTree_RejectsConcurrentScan(t *testing.T) {
	srv := newTestServer(t, t.TempDir())

	require.True(t, srv.scanning.TryAcquire())
	defer srv.scanning.Release()

	_, err := srv.handleScanTree(context.Background(), callRequest(nil))

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeScanInProgress, mcpErr.Code)
}

func TestHandleScanStatus_EmptyStore(t *testing.T) {
	srv := newTestServer(t, t.TempDir())

	result, err := srv.handleScanStatus(context.Background(), callRequest(nil))

	require.NoError(t, err)
	text := toolText(t, result)
	assert.Contains(t, text, `"files_recorded": 0`)
	assert.Contains(t, text, `"total_issues": 0`)
	assert.Contains(t, text, `"in_progress": false`)
}

func TestHandleFindingsReport_EmptyStore(t *testing.T) {
	srv := newTestServer(t, t.TempDir())

	result, err := srv.handleFindingsReport(context.Background(), callRequest(nil))

	require.NoError(t, err)
	assert.Contains(t, toolText(t, result), "# Code Scan Report")
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}
