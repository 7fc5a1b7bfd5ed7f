package types

import "time"

// FindingsRecord is the persisted scan result for one file. ContentHash
// always matches the content that produced Issues: when content changes the
// whole record is replaced, never merged.
type FindingsRecord struct {
	FilePath    string    `json:"file_path"`
	ContentHash string    `json:"content_hash"`
	ScannedAt   time.Time `json:"scanned_at"`
	FileSize    int64     `json:"file_size"`
	Model       string    `json:"model,omitempty"`
	Issues      []Issue   `json:"issues"`
	ScanError   *Failure  `json:"scan_error,omitempty"`
}

// Failed reports whether the file's last scan ended in a classified failure.
// Failed records are kept distinct so a later run (or deleting the entry)
// can force a rescan.
func (r *FindingsRecord) Failed() bool {
	return r.ScanError != nil
}

// ScanState tracks traversal progress across process restarts. It is created
// empty on first run, mutated at every file and folder boundary, and never
// deleted automatically; surviving interruption is the resumability contract.
type ScanState struct {
	RunID             string    `json:"run_id,omitempty"`
	LastScannedFolder string    `json:"last_scanned_folder,omitempty"`
	LastScannedFile   string    `json:"last_scanned_file,omitempty"`
	CompletedFolders  []string  `json:"completed_folders"`
	TotalFilesScanned int       `json:"total_files_scanned"`
	TotalFilesSkipped int       `json:"total_files_skipped"`
	ScanStartTime     time.Time `json:"scan_start_time,omitzero"`
	LastRun           time.Time `json:"last_run,omitzero"`
}

// FolderCompleted reports whether a folder was fully processed in a prior
// run. Completed folders are skipped on resume.
func (s *ScanState) FolderCompleted(path string) bool {
	for _, f := range s.CompletedFolders {
		if f == path {
			return true
		}
	}
	return false
}
