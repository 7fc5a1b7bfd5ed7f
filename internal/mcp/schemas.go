package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// scanTreeTool returns the tool definition for scan_tree
func scanTreeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "scan_tree",
		Description: "Scan a source tree for security, pattern, and regression issues; resumes from the last checkpoint and skips unchanged files",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the tree to scan (defaults to the configured root directory)",
				},
				"workers": map[string]interface{}{
					"type":        "integer",
					"description": "Concurrent analyses per folder (1-16)",
					"default":     1,
					"minimum":     1,
					"maximum":     16,
				},
			},
		},
	}
}

// scanStatusTool returns the tool definition for scan_status
func scanStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "scan_status",
		Description: "Query scan progress and findings statistics",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// findingsReportTool returns the tool definition for findings_report
func findingsReportTool() mcp.Tool {
	return mcp.Tool{
		Name:        "findings_report",
		Description: "Generate a markdown report of all recorded findings, grouped by severity with cross-file deduplication",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
