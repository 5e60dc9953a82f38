package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"alertcore/internal/domain"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNotificationAttemptCountsByLabels(t *testing.T) {
	t.Parallel()

	m := New(false)
	m.NotificationAttempt(domain.ChannelSlack, domain.SeverityCritical, "delivered")
	m.NotificationAttempt(domain.ChannelSlack, domain.SeverityCritical, "delivered")
	m.NotificationAttempt(domain.ChannelPagerDuty, domain.SeverityCritical, "retry")

	if got := testutil.ToFloat64(m.NotificationsSent.WithLabelValues("slack", "CRITICAL", "delivered")); got != 2 {
		t.Fatalf("expected 2 slack deliveries, got %v", got)
	}
	if got := testutil.ToFloat64(m.NotificationsSent.WithLabelValues("pagerduty", "CRITICAL", "retry")); got != 1 {
		t.Fatalf("expected 1 pagerduty retry, got %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.ObserveAttempt("op")
	m.ObserveOutcome("op", "success")
	m.NotificationAttempt(domain.ChannelEmail, domain.SeverityLow, "sent")
	m.SampleIngested("http", "accepted")
	m.ExportStatistics(domain.Statistics{}, nil, 0)
}

func TestExportStatisticsSetsGauges(t *testing.T) {
	t.Parallel()

	m := New(false)
	byStatus := map[domain.AlertStatus]map[domain.Severity]int{
		domain.AlertStatusFiring: {domain.SeverityHigh: 3},
	}
	m.ExportStatistics(domain.Statistics{AvgResolutionTime: 90 * time.Second}, byStatus, 2)

	if got := testutil.ToFloat64(m.ActiveAlerts.WithLabelValues("HIGH", "FIRING")); got != 3 {
		t.Fatalf("expected 3 firing HIGH alerts, got %v", got)
	}
	if got := testutil.ToFloat64(m.SuppressionsLive); got != 2 {
		t.Fatalf("expected 2 suppressions, got %v", got)
	}
	if got := testutil.ToFloat64(m.ResolutionSeconds); got != 90 {
		t.Fatalf("expected 90s MTTR, got %v", got)
	}
}

func TestHandlerServesRegistry(t *testing.T) {
	t.Parallel()

	m := New(false)
	m.ObserveAttempt("deliver")
	server := httptest.NewServer(m.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `alertcore_retry_attempts_total{operation="deliver"} 1`) {
		t.Fatalf("metrics body missing retry counter:\n%s", body)
	}
}
