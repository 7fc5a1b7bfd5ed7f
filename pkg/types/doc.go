// Package types contains the shared data model for the scan pipeline:
// issues reported by the remote analyzer, tagged analysis outcomes, the
// persisted findings record for a file, and the resumable scan state.
package types
