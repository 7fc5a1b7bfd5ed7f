package storage

import (
	"context"

	"github.com/dshills/codescan-mcp/pkg/types"
)

// Storage defines the interface for persisting scan state and findings
type Storage interface {
	// Findings operations
	UpsertFinding(ctx context.Context, record *types.FindingsRecord) error
	GetFinding(ctx context.Context, filePath string) (*types.FindingsRecord, error)
	ListFindings(ctx context.Context) ([]*types.FindingsRecord, error)
	DeleteFinding(ctx context.Context, filePath string) error

	// State operations
	LoadState(ctx context.Context) (*types.ScanState, error)
	SaveState(ctx context.Context, state *types.ScanState) error

	// Status operations
	Stats(ctx context.Context) (*Stats, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// Stats contains aggregate counts over the findings store
type Stats struct {
	FilesRecorded    int
	FilesWithIssues  int
	FilesFailed      int
	TotalIssues      int
	IssuesBySeverity map[types.Severity]int
	IssuesByType     map[types.IssueType]int
}
