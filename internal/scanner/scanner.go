// Package scanner coordinates the scanning pipeline: walk -> fingerprint ->
// chunk -> analyze -> dedup -> store. Traversal order is deterministic
// (lexicographic by path) so that persisted state identifies an exact resume
// point after an interruption.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/codescan-mcp/internal/analyzer"
	"github.com/dshills/codescan-mcp/internal/chunker"
	"github.com/dshills/codescan-mcp/internal/dedup"
	"github.com/dshills/codescan-mcp/internal/fingerprint"
	"github.com/dshills/codescan-mcp/internal/progress"
	"github.com/dshills/codescan-mcp/internal/storage"
	"github.com/dshills/codescan-mcp/pkg/types"
)

// ErrScanInProgress is returned when Run is called while another scan holds
// the lock.
var ErrScanInProgress = errors.New("scan already in progress")

// Options contains configuration for a scan run
type Options struct {
	Root              string
	Extensions        []string
	ExcludeDirs       []string
	GeneratedPatterns []string
	SaveInterval      int // Files between state checkpoints (default: 10)
	MaxChunkSize      int
	Workers           int // Concurrent analyses within a folder (default: 1)
	Model             string

	Progress *progress.Log
	Logger   *slog.Logger
	Binary   Predicate
}

// Statistics summarizes a completed (or interrupted) scan run
type Statistics struct {
	FilesScanned int
	FilesSkipped int
	FilesFailed  int
	IssuesFound  int
	Interrupted  bool
	Duration     time.Duration
}

// Scanner drives incremental scans over a directory tree
type Scanner struct {
	store    storage.Storage
	client   analyzer.Client
	chunker  *chunker.Chunker
	prog     *progress.Log
	log      *slog.Logger
	opts     Options
	isBinary Predicate
	lock     ScanLock

	// Mutable per-run state, owned by the traversal goroutine.
	state        *types.ScanState
	resumeFolder string
	resumeFile   string
	sinceSave    int
	stats        *Statistics
	extensions   map[string]bool
	excluded     map[string]bool
}

// New creates a Scanner, filling option defaults
func New(store storage.Storage, client analyzer.Client, opts Options) *Scanner {
	if opts.SaveInterval <= 0 {
		opts.SaveInterval = 10
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Binary == nil {
		opts.Binary = LooksBinary
	}

	extensions := make(map[string]bool, len(opts.Extensions))
	for _, ext := range opts.Extensions {
		extensions[strings.ToLower(ext)] = true
	}
	excluded := make(map[string]bool, len(opts.ExcludeDirs))
	for _, dir := range opts.ExcludeDirs {
		excluded[dir] = true
	}

	return &Scanner{
		store:      store,
		client:     client,
		chunker:    chunker.New(opts.MaxChunkSize),
		prog:       opts.Progress,
		log:        opts.Logger,
		opts:       opts,
		isBinary:   opts.Binary,
		extensions: extensions,
		excluded:   excluded,
	}
}

// Run executes one scan over the configured root. It loads persisted state,
// resumes from the recorded position, and checkpoints as it goes. Context
// cancellation is not an error: state is flushed and the returned Statistics
// carry Interrupted=true.
func (s *Scanner) Run(ctx context.Context) (*Statistics, error) {
	if !s.lock.TryAcquire() {
		return nil, ErrScanInProgress
	}
	defer s.lock.Release()

	root := filepath.Clean(s.opts.Root)
	if info, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("scan root %s: %w", root, err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("scan root %s is not a directory", root)
	}

	state, err := s.store.LoadState(ctx)
	if err != nil {
		return nil, fmt.Errorf("load scan state: %w", err)
	}
	// A recorded LastRun means the previous session finished the whole tree.
	// This invocation starts a new session: traversal state is reset and the
	// stored fingerprints take over as the incremental skip mechanism. An
	// interrupted session (no LastRun) resumes instead.
	if !state.LastRun.IsZero() {
		state.LastScannedFolder = ""
		state.LastScannedFile = ""
		state.CompletedFolders = nil
		state.LastRun = time.Time{}
	}

	s.state = state
	s.resumeFolder = state.LastScannedFolder
	s.resumeFile = state.LastScannedFile
	s.sinceSave = 0
	s.stats = &Statistics{}

	state.RunID = uuid.NewString()
	state.ScanStartTime = time.Now()

	if s.resumeFolder != "" {
		s.prog.Printf("Resuming scan from %s", s.resumeFolder)
	} else {
		s.prog.Printf("Starting scan of %s", root)
	}

	start := time.Now()
	err = s.walkFolder(ctx, root)
	s.stats.Duration = time.Since(start)

	if err != nil && errors.Is(err, ctx.Err()) {
		s.stats.Interrupted = true
		if saveErr := s.store.SaveState(context.WithoutCancel(ctx), state); saveErr != nil {
			s.log.Error("failed to save state on interrupt", "error", saveErr)
		}
		s.prog.Printf("Scan interrupted: %d scanned, %d skipped", s.stats.FilesScanned, s.stats.FilesSkipped)
		return s.stats, nil
	}
	if err != nil {
		return nil, err
	}

	state.LastRun = time.Now()
	if err := s.store.SaveState(ctx, state); err != nil {
		return nil, fmt.Errorf("save scan state: %w", err)
	}
	s.prog.Printf("Scan complete: %d scanned, %d skipped, %d failed, %d issues",
		s.stats.FilesScanned, s.stats.FilesSkipped, s.stats.FilesFailed, s.stats.IssuesFound)
	return s.stats, nil
}

// walkFolder visits folder and its subtree in lexicographic order. Completed
// folders skip their own files but their subdirectories are still visited;
// only excluded directory names prune a whole subtree.
func (s *Scanner) walkFolder(ctx context.Context, folder string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entries, err := os.ReadDir(folder)
	if err != nil {
		s.log.Warn("cannot read directory", "dir", folder, "error", err)
		return nil
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var files []string
	var subdirs []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			if !s.excluded[name] {
				subdirs = append(subdirs, filepath.Join(folder, name))
			}
			continue
		}
		if entry.Type().IsRegular() {
			files = append(files, filepath.Join(folder, name))
		}
	}

	if s.shouldScanFiles(folder) {
		if err := s.scanFolder(ctx, folder, files); err != nil {
			return err
		}
		s.completeFolder(ctx, folder)
	}

	for _, sub := range subdirs {
		if err := s.walkFolder(ctx, sub); err != nil {
			return err
		}
	}
	return nil
}

// shouldScanFiles decides whether a folder's own files are processed this
// run: completed folders and folders sorting strictly before the resume
// folder were already handled by the interrupted session. The resume folder
// itself is re-entered; its file-level skip picks up where it stopped.
func (s *Scanner) shouldScanFiles(folder string) bool {
	if s.state.FolderCompleted(folder) {
		return false
	}
	if s.resumeFolder == "" {
		return true
	}
	return folder >= s.resumeFolder
}

// scanFolder analyzes the eligible files of one folder in sorted order
func (s *Scanner) scanFolder(ctx context.Context, folder string, files []string) error {
	candidates, err := s.collectCandidates(ctx, folder, files)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return nil
	}

	s.prog.Printf("Scanning folder %s (%d files)", folder, len(candidates))

	if s.opts.Workers <= 1 {
		for _, cand := range candidates {
			record, err := s.scanOne(ctx, cand)
			if err != nil {
				return err
			}
			if err := s.commit(ctx, folder, record); err != nil {
				return err
			}
		}
		return nil
	}

	// Analyses run concurrently; commits stay sequential and in sorted file
	// order so the resume point is always a contiguous prefix of the folder.
	records := make([]*types.FindingsRecord, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i, cand := range candidates {
		g.Go(func() error {
			record, err := s.scanOne(gctx, cand)
			if err != nil {
				return err
			}
			records[i] = record
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, record := range records {
		if err := s.commit(ctx, folder, record); err != nil {
			return err
		}
	}
	return nil
}

// candidate is a file that passed every skip check and needs analysis
type candidate struct {
	path    string
	content []byte
	hash    string
}

// collectCandidates applies the skip pipeline: extension, generated-name
// patterns, resume position, binary sniff, and unchanged fingerprint. Files
// skipped here never reach the analyzer.
func (s *Scanner) collectCandidates(ctx context.Context, folder string, files []string) ([]candidate, error) {
	var candidates []candidate
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		base := filepath.Base(path)
		if !s.extensions[strings.ToLower(filepath.Ext(base))] {
			continue
		}
		if s.matchesGenerated(base) {
			s.skip(folder, path, "generated")
			continue
		}
		// Within the folder the previous run stopped in, files at or before
		// the recorded position were already committed.
		if folder == s.resumeFolder && s.resumeFile != "" && path <= s.resumeFile {
			s.stats.FilesSkipped++
			s.state.TotalFilesSkipped++
			continue
		}

		content, err := os.ReadFile(path)
		if err != nil {
			s.log.Warn("cannot read file", "file", path, "error", err)
			s.stats.FilesFailed++
			continue
		}
		if s.isBinary(content) {
			s.skip(folder, path, "binary")
			continue
		}

		hash := fingerprint.Sum(content)
		existing, err := s.store.GetFinding(ctx, path)
		if err == nil && existing.ContentHash == hash && !existing.Failed() {
			s.skip(folder, path, "unchanged")
			continue
		}
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("lookup finding %s: %w", path, err)
		}

		candidates = append(candidates, candidate{path: path, content: content, hash: hash})
	}
	return candidates, nil
}

// scanOne chunks a file, analyzes each chunk, and folds the outcomes into
// one findings record. A failed chunk taints the whole file: its issues from
// other chunks are kept but the record carries the first failure so the file
// is retried next run.
func (s *Scanner) scanOne(ctx context.Context, cand candidate) (*types.FindingsRecord, error) {
	chunks := s.chunker.Split(string(cand.content))

	outcomes := make([]types.Outcome, 0, len(chunks))
	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		outcomes = append(outcomes, s.client.Analyze(ctx, analyzer.Request{
			FilePath:      cand.path,
			ChunkText:     chunk.Text,
			ContextHeader: chunk.ContextHeader,
			ChunkIndex:    chunk.Index,
			ChunkTotal:    chunk.Total,
		}))
	}

	record := &types.FindingsRecord{
		FilePath:    cand.path,
		ContentHash: cand.hash,
		ScannedAt:   time.Now(),
		FileSize:    int64(len(cand.content)),
		Model:       s.opts.Model,
		Issues:      dedup.Merge(outcomes),
	}
	for _, out := range outcomes {
		if !out.OK() {
			record.ScanError = out.Failure
			break
		}
	}
	return record, nil
}

// commit persists one finding and advances the scan position. Persistence is
// detached from cancellation: a finished analysis is always committed so an
// interrupt cannot leave a torn record, and the traversal stops at the next
// file boundary instead.
func (s *Scanner) commit(ctx context.Context, folder string, record *types.FindingsRecord) error {
	ctx = context.WithoutCancel(ctx)
	if err := s.store.UpsertFinding(ctx, record); err != nil {
		return fmt.Errorf("store finding %s: %w", record.FilePath, err)
	}

	s.stats.FilesScanned++
	s.state.TotalFilesScanned++
	s.state.LastScannedFolder = folder
	s.state.LastScannedFile = record.FilePath

	if record.Failed() {
		s.stats.FilesFailed++
		s.prog.Printf("Failed %s: %s", record.FilePath, record.ScanError)
	} else {
		s.stats.IssuesFound += len(record.Issues)
		if len(record.Issues) > 0 {
			s.prog.Printf("Scanned %s: %d issues", record.FilePath, len(record.Issues))
		}
	}

	s.sinceSave++
	if s.sinceSave >= s.opts.SaveInterval {
		s.sinceSave = 0
		if err := s.store.SaveState(ctx, s.state); err != nil {
			return fmt.Errorf("checkpoint scan state: %w", err)
		}
	}
	return nil
}

// completeFolder records that every file in folder has been committed
func (s *Scanner) completeFolder(ctx context.Context, folder string) {
	if s.state.FolderCompleted(folder) {
		return
	}
	s.state.CompletedFolders = append(s.state.CompletedFolders, folder)
	if err := s.store.SaveState(context.WithoutCancel(ctx), s.state); err != nil {
		s.log.Error("failed to save state after folder", "folder", folder, "error", err)
	}
}

func (s *Scanner) skip(folder, path, reason string) {
	s.stats.FilesSkipped++
	s.state.TotalFilesSkipped++
	s.log.Debug("skipping file", "file", path, "reason", reason, "folder", folder)
}

func (s *Scanner) matchesGenerated(base string) bool {
	for _, pattern := range s.opts.GeneratedPatterns {
		if ok, err := filepath.Match(pattern, base); err == nil && ok {
			return true
		}
	}
	return false
}
