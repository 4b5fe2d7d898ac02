package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordLoginInitiated_IncrementsCounter はログイン開始カウンタが増加することを検証する。
func TestRecordLoginInitiated_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLoginInitiated()
	c.RecordLoginInitiated()

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "vidnote_login_initiated_total" {
			found = true
			val := mf.GetMetric()[0].GetCounter().GetValue()
			if val != 2 {
				t.Errorf("login_initiated_total = %v, want 2", val)
			}
		}
	}
	if !found {
		t.Error("vidnote_login_initiated_total metric not found")
	}
}

// TestRecordCallbackResult_LabelsByResult は結果ラベル別に集計されることを検証する。
func TestRecordCallbackResult_LabelsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCallbackResult("success")
	c.RecordCallbackResult("success")
	c.RecordCallbackResult("invalid_state")

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	for _, mf := range metrics {
		if mf.GetName() == "vidnote_callback_total" {
			if len(mf.GetMetric()) != 2 {
				t.Errorf("expected 2 labeled series, got %d", len(mf.GetMetric()))
			}
			return
		}
	}
	t.Error("vidnote_callback_total metric not found")
}

// TestRecordRegistration_KindAndResult は種別と結果の組で集計されることを検証する。
func TestRecordRegistration_KindAndResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRegistration("content", "success")
	c.RecordRegistration("content", "conflict")
	c.RecordRegistration("link", "success")

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	for _, mf := range metrics {
		if mf.GetName() == "vidnote_registration_total" {
			if len(mf.GetMetric()) != 3 {
				t.Errorf("expected 3 labeled series, got %d", len(mf.GetMetric()))
			}
			return
		}
	}
	t.Error("vidnote_registration_total metric not found")
}

// TestRecordUpstreamLatency_ObservesHistogram はレイテンシヒストグラムが記録されることを検証する。
func TestRecordUpstreamLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordUpstreamLatency("notion", 150*time.Millisecond)
	c.RecordUpstreamLatency("notion", 300*time.Millisecond)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	for _, mf := range metrics {
		if mf.GetName() == "vidnote_upstream_latency_seconds" {
			count := mf.GetMetric()[0].GetHistogram().GetSampleCount()
			if count != 2 {
				t.Errorf("sample count = %d, want 2", count)
			}
			return
		}
	}
	t.Error("vidnote_upstream_latency_seconds metric not found")
}

// TestSetupMetricsRoute_ServesPrometheusFormat は/metricsがスクレイプ可能な形式で応答することを検証する。
func TestSetupMetricsRoute_ServesPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordHTTPStatus(http.StatusOK)

	srv := httptest.NewServer(SetupMetricsRoute(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("failed to scrape metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	if !strings.Contains(string(body), "vidnote_http_status_total") {
		t.Error("expected vidnote_http_status_total in scrape output")
	}
}
