package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordJobFinished(t *testing.T) {
	m := New()
	m.RecordJobStarted()
	if got := testutil.ToFloat64(m.JobsInProgress); got != 1 {
		t.Fatalf("in progress = %v, want 1", got)
	}

	m.RecordJobFinished("failed", "probe_failed", 2.5)
	m.RecordJobStarted()
	m.RecordJobFinished("done", "", 10)

	if got := testutil.ToFloat64(m.JobsInProgress); got != 0 {
		t.Fatalf("in progress = %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.JobsTotal.WithLabelValues("failed")); got != 1 {
		t.Fatalf("failed total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.JobErrors.WithLabelValues("probe_failed")); got != 1 {
		t.Fatalf("probe_failed errors = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.JobErrors); got != 1 {
		t.Fatalf("expected only one error series, got %d", got)
	}
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.SetQueueDepth(4)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "ytdlp_queue_jobs_queue_depth 4") {
		t.Fatalf("queue depth not exposed:\n%s", body)
	}

	// a second instance must not panic on registration
	_ = New()
}
