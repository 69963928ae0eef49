package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSetServiceStateExclusivity(t *testing.T) {
	SetServiceState("web", "starting")
	if got := testutil.ToFloat64(ServiceState.WithLabelValues("web", "starting")); got != 1 {
		t.Fatalf("expected starting=1, got %v", got)
	}

	SetServiceState("web", "running")
	if got := testutil.ToFloat64(ServiceState.WithLabelValues("web", "running")); got != 1 {
		t.Fatalf("expected running=1, got %v", got)
	}
	if got := testutil.ToFloat64(ServiceState.WithLabelValues("web", "starting")); got != 0 {
		t.Fatalf("expected starting=0 after transition, got %v", got)
	}
}

func TestRecordRestart(t *testing.T) {
	before := testutil.ToFloat64(ServiceRestartsTotal.WithLabelValues("db"))
	RecordRestart("db")
	after := testutil.ToFloat64(ServiceRestartsTotal.WithLabelValues("db"))
	if after != before+1 {
		t.Fatalf("expected restart counter to increment by 1, got %v -> %v", before, after)
	}
}

func TestSetGeneration(t *testing.T) {
	SetGeneration("api", 7)
	if got := testutil.ToFloat64(ServiceGeneration.WithLabelValues("api")); got != 7 {
		t.Fatalf("expected generation 7, got %v", got)
	}
}

func TestRecordProbeOutcome(t *testing.T) {
	before := testutil.ToFloat64(ProbeOutcomesTotal.WithLabelValues("web", "healthy"))
	RecordProbeOutcome("web", "healthy")
	after := testutil.ToFloat64(ProbeOutcomesTotal.WithLabelValues("web", "healthy"))
	if after != before+1 {
		t.Fatalf("expected probe outcome counter to increment by 1, got %v -> %v", before, after)
	}
}

func TestRecordProxyRequest(t *testing.T) {
	before := testutil.ToFloat64(ProxyRequestsTotal.WithLabelValues("web", "ok"))
	RecordProxyRequest("web", "ok", 15*time.Millisecond)
	after := testutil.ToFloat64(ProxyRequestsTotal.WithLabelValues("web", "ok"))
	if after != before+1 {
		t.Fatalf("expected proxy request counter to increment by 1, got %v -> %v", before, after)
	}
}

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/status", "200"))
	RecordAPIRequest("GET", "/api/status", "200", 2*time.Millisecond)
	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/status", "200"))
	if after != before+1 {
		t.Fatalf("expected API request counter to increment by 1, got %v -> %v", before, after)
	}
}

func TestTrackActiveRequest(t *testing.T) {
	before := testutil.ToFloat64(APIActiveRequests)
	TrackActiveRequest(true)
	if got := testutil.ToFloat64(APIActiveRequests); got != before+1 {
		t.Fatalf("expected active requests to increment, got %v -> %v", before, got)
	}
	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests); got != before {
		t.Fatalf("expected active requests to return to baseline, got %v -> %v", before, got)
	}
}

func TestSetBuildInfo(t *testing.T) {
	SetBuildInfo("v1.2.3")
	if got := testutil.ToFloat64(AppInfo.WithLabelValues("v1.2.3")); got != 1 {
		t.Fatalf("expected build info gauge 1, got %v", got)
	}
}

func TestStatusCodeLabel(t *testing.T) {
	cases := map[int]string{200: "200", 404: "404", 500: "500"}
	for code, want := range cases {
		if got := StatusCodeLabel(code); got != want {
			t.Fatalf("StatusCodeLabel(%d) = %q, want %q", code, got, want)
		}
	}
}
