// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Ingestion paths.
const (
	SourceSingle = "single"
	SourceBulk   = "bulk"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Form registry
	AddFormsSynced(n int)
	AddFormsDiscovered(n int)

	// Ingestion
	AddSubmissionsIngested(source string, n int) // source: "single" or "bulk"
	AddSubmissionsRefreshed(n int)

	// Bulk sync runs
	IncBulkSyncRun(status string) // status: "success" or "failed"
	ObserveBulkSyncDuration(duration time.Duration)
	IncUpstreamFailure(kind string) // kind: "status", "timeout" or "transport"

	// Access control
	IncAuthFailure(kind string) // kind: "api_key", "session" or "missing"
	IncLoginRateLimited()
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
