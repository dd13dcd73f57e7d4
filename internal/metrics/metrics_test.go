package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_ImplementsRecorder(t *testing.T) {
	var _ Recorder = (*Collector)(nil)
	var _ Recorder = Nop{}
}

func TestCollector_CountsByLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFetch("students", 10*time.Millisecond, nil)
	c.RecordFetch("students", 20*time.Millisecond, errors.New("boom"))
	c.RecordFetch("student", time.Millisecond, nil)
	c.RecordDedup("students")
	c.RecordDedup("students")
	c.RecordInvalidation("students", 3)
	c.RecordEviction("student")
	c.RecordMutation("create", nil)
	c.RecordMutation("delete", errors.New("boom"))

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"fetch success", testutil.ToFloat64(c.fetches.WithLabelValues("students", "success")), 1},
		{"fetch error", testutil.ToFloat64(c.fetches.WithLabelValues("students", "error")), 1},
		{"fetch other family", testutil.ToFloat64(c.fetches.WithLabelValues("student", "success")), 1},
		{"dedup", testutil.ToFloat64(c.dedup.WithLabelValues("students")), 2},
		{"invalidations", testutil.ToFloat64(c.invalidations.WithLabelValues("students")), 3},
		{"evictions", testutil.ToFloat64(c.evictions.WithLabelValues("student")), 1},
		{"create ok", testutil.ToFloat64(c.mutations.WithLabelValues("create", "success")), 1},
		{"delete failed", testutil.ToFloat64(c.mutations.WithLabelValues("delete", "error")), 1},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestSetupMetricsRoute_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordMutation("update", nil)

	srv := httptest.NewServer(SetupMetricsRoute(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(string(body), `students_mutations_total{op="update",result="success"} 1`) {
		t.Errorf("metrics body missing mutation counter:\n%s", body)
	}
}
