package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codescan-mcp/pkg/types"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestLoadState_FreshDatabase(t *testing.T) {
	store := newTestStorage(t)

	state, err := store.LoadState(context.Background())

	require.NoError(t, err)
	assert.Empty(t, state.LastScannedFolder)
	assert.Empty(t, state.CompletedFolders)
	assert.Zero(t, state.TotalFilesScanned)
	assert.True(t, state.ScanStartTime.IsZero())
}

func TestSaveState_RoundTrip(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	start := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	in := &types.ScanState{
		RunID:             "run-123",
		LastScannedFolder: "/repo/b",
		LastScannedFile:   "/repo/b/main.go",
		CompletedFolders:  []string{"/repo/a", "/repo/a/sub"},
		TotalFilesScanned: 7,
		TotalFilesSkipped: 3,
		ScanStartTime:     start,
	}
	require.NoError(t, store.SaveState(ctx, in))

	out, err := store.LoadState(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-123", out.RunID)
	assert.Equal(t, "/repo/b", out.LastScannedFolder)
	assert.Equal(t, "/repo/b/main.go", out.LastScannedFile)
	// Completion order must survive persistence.
	assert.Equal(t, []string{"/repo/a", "/repo/a/sub"}, out.CompletedFolders)
	assert.Equal(t, 7, out.TotalFilesScanned)
	assert.Equal(t, 3, out.TotalFilesSkipped)
	assert.True(t, out.ScanStartTime.Equal(start))
	assert.True(t, out.LastRun.IsZero())
}

func TestSaveState_OverwritesSingleton(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.SaveState(ctx, &types.ScanState{
		RunID:            "first",
		CompletedFolders: []string{"/repo/a", "/repo/b"},
	}))
	require.NoError(t, store.SaveState(ctx, &types.ScanState{
		RunID:            "second",
		CompletedFolders: []string{"/repo/c"},
	}))

	out, err := store.LoadState(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", out.RunID)
	assert.Equal(t, []string{"/repo/c"}, out.CompletedFolders)
}

func TestUpsertFinding_RoundTrip(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	scanned := time.Date(2026, 8, 24, 11, 30, 0, 0, time.UTC)
	record := &types.FindingsRecord{
		FilePath:    "/repo/a/db.go",
		ContentHash: "abc123",
		ScannedAt:   scanned,
		FileSize:    512,
		Model:       "test-model",
		Issues: []types.Issue{
			{Type: types.IssueSecurity, Severity: types.SeverityHigh, Description: "sql injection", LineHint: "db.Exec(q)", CWE: "CWE-89"},
			{Type: types.IssuePattern, Severity: types.SeverityLow, Description: "ignored error", LineHint: "_ = f()"},
		},
	}
	require.NoError(t, store.UpsertFinding(ctx, record))

	got, err := store.GetFinding(ctx, "/repo/a/db.go")
	require.NoError(t, err)
	assert.Equal(t, "abc123", got.ContentHash)
	assert.Equal(t, int64(512), got.FileSize)
	assert.Equal(t, "test-model", got.Model)
	assert.True(t, got.ScannedAt.Equal(scanned))
	assert.Nil(t, got.ScanError)
	require.Len(t, got.Issues, 2)
	assert.Equal(t, "sql injection", got.Issues[0].Description)
	assert.Equal(t, "CWE-89", got.Issues[0].CWE)
	assert.Equal(t, types.SeverityLow, got.Issues[1].Severity)
}

func TestUpsertFinding_ReplacesNotMerges(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertFinding(ctx, &types.FindingsRecord{
		FilePath:    "/repo/a.go",
		ContentHash: "v1",
		Issues: []types.Issue{
			{Type: types.IssueSecurity, Severity: types.SeverityHigh, Description: "old issue"},
			{Type: types.IssuePattern, Severity: types.SeverityLow, Description: "also old"},
		},
	}))
	require.NoError(t, store.UpsertFinding(ctx, &types.FindingsRecord{
		FilePath:    "/repo/a.go",
		ContentHash: "v2",
		Issues: []types.Issue{
			{Type: types.IssueRegression, Severity: types.SeverityMedium, Description: "new issue"},
		},
	}))

	got, err := store.GetFinding(ctx, "/repo/a.go")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.ContentHash)
	require.Len(t, got.Issues, 1)
	assert.Equal(t, "new issue", got.Issues[0].Description)
}

func TestUpsertFinding_FailedScanKeepsNoIssues(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertFinding(ctx, &types.FindingsRecord{
		FilePath:    "/repo/broken.go",
		ContentHash: "h",
		ScanError:   &types.Failure{Kind: types.FailTimeout, Message: "deadline exceeded"},
	}))

	got, err := store.GetFinding(ctx, "/repo/broken.go")
	require.NoError(t, err)
	require.NotNil(t, got.ScanError)
	assert.Equal(t, types.FailTimeout, got.ScanError.Kind)
	assert.Equal(t, "deadline exceeded", got.ScanError.Message)
	assert.Empty(t, got.Issues)
	assert.True(t, got.Failed())
}

func TestGetFinding_NotFound(t *testing.T) {
	store := newTestStorage(t)

	_, err := store.GetFinding(context.Background(), "/repo/missing.go")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListFindings_OrderedWithIssues(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertFinding(ctx, &types.FindingsRecord{
		FilePath: "/repo/z.go", ContentHash: "hz",
		Issues: []types.Issue{{Type: types.IssuePattern, Severity: types.SeverityLow, Description: "z issue"}},
	}))
	require.NoError(t, store.UpsertFinding(ctx, &types.FindingsRecord{
		FilePath: "/repo/a.go", ContentHash: "ha",
	}))

	records, err := store.ListFindings(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "/repo/a.go", records[0].FilePath)
	assert.Equal(t, "/repo/z.go", records[1].FilePath)
	assert.Empty(t, records[0].Issues)
	require.Len(t, records[1].Issues, 1)
}

func TestDeleteFinding_CascadesIssues(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertFinding(ctx, &types.FindingsRecord{
		FilePath: "/repo/a.go", ContentHash: "h",
		Issues: []types.Issue{{Type: types.IssueSecurity, Severity: types.SeverityHigh, Description: "d"}},
	}))
	require.NoError(t, store.DeleteFinding(ctx, "/repo/a.go"))

	_, err := store.GetFinding(ctx, "/repo/a.go")
	assert.ErrorIs(t, err, ErrNotFound)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalIssues)
}

func TestDeleteFinding_NotFound(t *testing.T) {
	store := newTestStorage(t)

	err := store.DeleteFinding(context.Background(), "/repo/missing.go")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStats_Aggregates(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertFinding(ctx, &types.FindingsRecord{
		FilePath: "/repo/a.go", ContentHash: "ha",
		Issues: []types.Issue{
			{Type: types.IssueSecurity, Severity: types.SeverityHigh, Description: "a1"},
			{Type: types.IssueSecurity, Severity: types.SeverityMedium, Description: "a2"},
		},
	}))
	require.NoError(t, store.UpsertFinding(ctx, &types.FindingsRecord{
		FilePath: "/repo/b.go", ContentHash: "hb",
		Issues: []types.Issue{
			{Type: types.IssuePattern, Severity: types.SeverityHigh, Description: "b1"},
		},
	}))
	require.NoError(t, store.UpsertFinding(ctx, &types.FindingsRecord{
		FilePath: "/repo/c.go", ContentHash: "hc",
		ScanError: &types.Failure{Kind: types.FailConnection, Message: "refused"},
	}))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.FilesRecorded)
	assert.Equal(t, 2, stats.FilesWithIssues)
	assert.Equal(t, 1, stats.FilesFailed)
	assert.Equal(t, 3, stats.TotalIssues)
	assert.Equal(t, 2, stats.IssuesBySeverity[types.SeverityHigh])
	assert.Equal(t, 1, stats.IssuesBySeverity[types.SeverityMedium])
	assert.Equal(t, 2, stats.IssuesByType[types.IssueSecurity])
	assert.Equal(t, 1, stats.IssuesByType[types.IssuePattern])
}

func TestTransaction_RollbackDiscardsWrites(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.UpsertFinding(ctx, &types.FindingsRecord{
		FilePath: "/repo/a.go", ContentHash: "h",
	}))
	require.NoError(t, tx.Rollback())

	_, err = store.GetFinding(ctx, "/repo/a.go")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransaction_CommitAppliesWrites(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.UpsertFinding(ctx, &types.FindingsRecord{
		FilePath: "/repo/a.go", ContentHash: "h",
	}))
	require.NoError(t, tx.SaveState(ctx, &types.ScanState{RunID: "tx-run"}))
	require.NoError(t, tx.Commit())

	got, err := store.GetFinding(ctx, "/repo/a.go")
	require.NoError(t, err)
	assert.Equal(t, "h", got.ContentHash)

	state, err := store.LoadState(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tx-run", state.RunID)
}
