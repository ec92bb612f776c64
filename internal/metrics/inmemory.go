package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	FormsSynced               uint64
	FormsDiscovered           uint64
	SubmissionsIngestedSingle uint64
	SubmissionsIngestedBulk   uint64
	SubmissionsRefreshed      uint64
	BulkSyncSuccess           uint64
	BulkSyncFailed            uint64
	BulkSyncDurationCount     uint64
	BulkSyncDurationTotalNs   int64
	UpstreamStatusFailures    uint64
	UpstreamTimeouts          uint64
	UpstreamTransportFailures uint64
	AuthFailuresAPIKey        uint64
	AuthFailuresSession       uint64
	AuthFailuresMissing       uint64
	LoginRateLimited          uint64
}

// InMemoryRecorder stores metrics in memory. It backs GET /metrics and is
// inspected directly by tests.
type InMemoryRecorder struct {
	formsSynced               uint64
	formsDiscovered           uint64
	submissionsIngestedSingle uint64
	submissionsIngestedBulk   uint64
	submissionsRefreshed      uint64
	bulkSyncSuccess           uint64
	bulkSyncFailed            uint64
	bulkSyncDurationCount     uint64
	bulkSyncDurationTotalNs   int64
	upstreamStatusFailures    uint64
	upstreamTimeouts          uint64
	upstreamTransportFailures uint64
	authFailuresAPIKey        uint64
	authFailuresSession       uint64
	authFailuresMissing       uint64
	loginRateLimited          uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		FormsSynced:               atomic.LoadUint64(&m.formsSynced),
		FormsDiscovered:           atomic.LoadUint64(&m.formsDiscovered),
		SubmissionsIngestedSingle: atomic.LoadUint64(&m.submissionsIngestedSingle),
		SubmissionsIngestedBulk:   atomic.LoadUint64(&m.submissionsIngestedBulk),
		SubmissionsRefreshed:      atomic.LoadUint64(&m.submissionsRefreshed),
		BulkSyncSuccess:           atomic.LoadUint64(&m.bulkSyncSuccess),
		BulkSyncFailed:            atomic.LoadUint64(&m.bulkSyncFailed),
		BulkSyncDurationCount:     atomic.LoadUint64(&m.bulkSyncDurationCount),
		BulkSyncDurationTotalNs:   atomic.LoadInt64(&m.bulkSyncDurationTotalNs),
		UpstreamStatusFailures:    atomic.LoadUint64(&m.upstreamStatusFailures),
		UpstreamTimeouts:          atomic.LoadUint64(&m.upstreamTimeouts),
		UpstreamTransportFailures: atomic.LoadUint64(&m.upstreamTransportFailures),
		AuthFailuresAPIKey:        atomic.LoadUint64(&m.authFailuresAPIKey),
		AuthFailuresSession:       atomic.LoadUint64(&m.authFailuresSession),
		AuthFailuresMissing:       atomic.LoadUint64(&m.authFailuresMissing),
		LoginRateLimited:          atomic.LoadUint64(&m.loginRateLimited),
	}
}

// AddFormsSynced adds to the forms synced counter.
func (m *InMemoryRecorder) AddFormsSynced(n int) {
	atomic.AddUint64(&m.formsSynced, uint64(n))
}

// AddFormsDiscovered adds to the forms discovered counter.
func (m *InMemoryRecorder) AddFormsDiscovered(n int) {
	atomic.AddUint64(&m.formsDiscovered, uint64(n))
}

// AddSubmissionsIngested adds newly stored submissions by source.
func (m *InMemoryRecorder) AddSubmissionsIngested(source string, n int) {
	if source == SourceBulk {
		atomic.AddUint64(&m.submissionsIngestedBulk, uint64(n))
		return
	}
	atomic.AddUint64(&m.submissionsIngestedSingle, uint64(n))
}

// AddSubmissionsRefreshed adds bulk entries that updated an existing row.
func (m *InMemoryRecorder) AddSubmissionsRefreshed(n int) {
	atomic.AddUint64(&m.submissionsRefreshed, uint64(n))
}

// IncBulkSyncRun counts a finished bulk sync.
func (m *InMemoryRecorder) IncBulkSyncRun(status string) {
	if status == "success" {
		atomic.AddUint64(&m.bulkSyncSuccess, 1)
		return
	}
	atomic.AddUint64(&m.bulkSyncFailed, 1)
}

// ObserveBulkSyncDuration records bulk sync duration.
func (m *InMemoryRecorder) ObserveBulkSyncDuration(duration time.Duration) {
	atomic.AddUint64(&m.bulkSyncDurationCount, 1)
	atomic.AddInt64(&m.bulkSyncDurationTotalNs, duration.Nanoseconds())
}

// IncUpstreamFailure counts a failed call to a client site.
func (m *InMemoryRecorder) IncUpstreamFailure(kind string) {
	switch kind {
	case "timeout":
		atomic.AddUint64(&m.upstreamTimeouts, 1)
	case "status":
		atomic.AddUint64(&m.upstreamStatusFailures, 1)
	default:
		atomic.AddUint64(&m.upstreamTransportFailures, 1)
	}
}

// IncAuthFailure counts a rejected credential.
func (m *InMemoryRecorder) IncAuthFailure(kind string) {
	switch kind {
	case "api_key":
		atomic.AddUint64(&m.authFailuresAPIKey, 1)
	case "session":
		atomic.AddUint64(&m.authFailuresSession, 1)
	default:
		atomic.AddUint64(&m.authFailuresMissing, 1)
	}
}

// IncLoginRateLimited counts a throttled login attempt.
func (m *InMemoryRecorder) IncLoginRateLimited() {
	atomic.AddUint64(&m.loginRateLimited, 1)
}
