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

func gatherValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		if len(mf.GetMetric()) != 1 {
			t.Fatalf("expected 1 metric for %s, got %d", name, len(mf.GetMetric()))
		}
		m := mf.GetMetric()[0]
		if m.GetCounter() != nil {
			return m.GetCounter().GetValue()
		}
		return m.GetGauge().GetValue()
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	if NewCollector(reg) == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordCheckoutSession_IncrementsCounter はチェックアウトカウンタが増加することを検証する。
func TestRecordCheckoutSession_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCheckoutSession()
	c.RecordCheckoutSession()

	if val := gatherValue(t, reg, "marketman_checkout_sessions_total"); val != 2 {
		t.Errorf("checkout_sessions_total = %v, want 2", val)
	}
}

// TestRecordTransfer_CountsAndSums は送金件数と送金額が記録されることを検証する。
func TestRecordTransfer_CountsAndSums(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordTransfer(1600)
	c.RecordTransfer(475)

	if val := gatherValue(t, reg, "marketman_transfers_total"); val != 2 {
		t.Errorf("transfers_total = %v, want 2", val)
	}
	if val := gatherValue(t, reg, "marketman_transfer_amount_total"); val != 2075 {
		t.Errorf("transfer_amount_total = %v, want 2075", val)
	}
}

// TestRecordWebhookEvent_LabelsByTypeAndOutcome は種別・結果ラベル付きで記録されることを検証する。
func TestRecordWebhookEvent_LabelsByTypeAndOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordWebhookEvent("checkout.session.completed", "processed")
	c.RecordWebhookEvent("checkout.session.completed", "duplicate")
	c.RecordWebhookEvent("account.updated", "processed")

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	for _, mf := range metrics {
		if mf.GetName() == "marketman_webhook_events_total" {
			if len(mf.GetMetric()) != 3 {
				t.Errorf("expected 3 labeled series, got %d", len(mf.GetMetric()))
			}
			return
		}
	}
	t.Error("marketman_webhook_events_total metric not found")
}

// TestSetWebsocketConnections_SetsGauge は接続数ゲージが設定されることを検証する。
func TestSetWebsocketConnections_SetsGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.SetWebsocketConnections(5)
	if val := gatherValue(t, reg, "marketman_websocket_connections"); val != 5 {
		t.Errorf("websocket_connections = %v, want 5", val)
	}

	c.SetWebsocketConnections(2)
	if val := gatherValue(t, reg, "marketman_websocket_connections"); val != 2 {
		t.Errorf("websocket_connections = %v, want 2", val)
	}
}

// TestRecordRequestLatency_ObservesHistogram はレイテンシが記録されることを検証する。
func TestRecordRequestLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRequestLatency(150 * time.Millisecond)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() == "marketman_request_latency_seconds" {
			if count := mf.GetMetric()[0].GetHistogram().GetSampleCount(); count != 1 {
				t.Errorf("sample count = %d, want 1", count)
			}
			return
		}
	}
	t.Error("marketman_request_latency_seconds metric not found")
}

// TestHandler_ServesPrometheusFormat は/metricsがPrometheus形式で応答することを検証する。
func TestHandler_ServesPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordHTTPStatus(200)

	server := httptest.NewServer(Handler(reg))
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("failed to GET metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	if !strings.Contains(string(body), "marketman_http_status_total") {
		t.Error("response does not contain marketman_http_status_total")
	}
}
