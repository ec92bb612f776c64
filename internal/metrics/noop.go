package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) AddFormsSynced(int) {}
func (n *NoopRecorder) AddFormsDiscovered(int) {}
func (n *NoopRecorder) AddSubmissionsIngested(string, int) {}
func (n *NoopRecorder) AddSubmissionsRefreshed(int) {}
func (n *NoopRecorder) IncBulkSyncRun(string) {}
func (n *NoopRecorder) ObserveBulkSyncDuration(time.Duration) {}
func (n *NoopRecorder) IncUpstreamFailure(string) {}
func (n *NoopRecorder) IncAuthFailure(string) {}
func (n *NoopRecorder) IncLoginRateLimited() {}
