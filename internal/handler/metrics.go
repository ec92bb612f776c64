package handler

import (
	"fmt"
	"net/http"

	"github.com/fdcollector/fdc/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "fdc_forms_synced_total %d\n", snap.FormsSynced)
	writeMetric(w, "fdc_forms_discovered_total %d\n", snap.FormsDiscovered)

	writeMetric(w, "fdc_submissions_ingested_total{source=\"single\"} %d\n", snap.SubmissionsIngestedSingle)
	writeMetric(w, "fdc_submissions_ingested_total{source=\"bulk\"} %d\n", snap.SubmissionsIngestedBulk)
	writeMetric(w, "fdc_submissions_refreshed_total %d\n", snap.SubmissionsRefreshed)

	writeMetric(w, "fdc_bulk_sync_runs_total{status=\"success\"} %d\n", snap.BulkSyncSuccess)
	writeMetric(w, "fdc_bulk_sync_runs_total{status=\"failed\"} %d\n", snap.BulkSyncFailed)
	writeMetric(w, "fdc_bulk_sync_duration_seconds_count %d\n", snap.BulkSyncDurationCount)
	writeMetric(w, "fdc_bulk_sync_duration_seconds_sum %.6f\n", float64(snap.BulkSyncDurationTotalNs)/1e9)

	writeMetric(w, "fdc_upstream_failures_total{kind=\"status\"} %d\n", snap.UpstreamStatusFailures)
	writeMetric(w, "fdc_upstream_failures_total{kind=\"timeout\"} %d\n", snap.UpstreamTimeouts)
	writeMetric(w, "fdc_upstream_failures_total{kind=\"transport\"} %d\n", snap.UpstreamTransportFailures)

	writeMetric(w, "fdc_auth_failures_total{kind=\"api_key\"} %d\n", snap.AuthFailuresAPIKey)
	writeMetric(w, "fdc_auth_failures_total{kind=\"session\"} %d\n", snap.AuthFailuresSession)
	writeMetric(w, "fdc_auth_failures_total{kind=\"missing\"} %d\n", snap.AuthFailuresMissing)
	writeMetric(w, "fdc_login_rate_limited_total %d\n", snap.LoginRateLimited)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
