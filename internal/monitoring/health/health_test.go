package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vietddude/nodewatch/internal/core/domain"
)

// =============================================================================
// Stubs
// =============================================================================

type stubSource struct {
	snaps []domain.NodeSnapshot
}

func (s *stubSource) Snapshots() []domain.NodeSnapshot { return s.snaps }

type stubPinger struct {
	err error
}

func (p *stubPinger) Health(context.Context) error { return p.err }

// =============================================================================
// Tests
// =============================================================================

func TestMonitor_WorstNodeWins(t *testing.T) {
	src := &stubSource{snaps: []domain.NodeSnapshot{
		{NodeID: "a", Status: domain.StatusUp},
		{NodeID: "b", Status: domain.StatusStalled},
	}}
	m := NewMonitor(src, nil)

	report := m.CheckHealth(context.Background())
	if report.SystemStatus != StatusDegraded {
		t.Errorf("expected degraded, got %s", report.SystemStatus)
	}
	if report.Nodes["b"].Health != StatusDegraded {
		t.Errorf("expected node b degraded, got %s", report.Nodes["b"].Health)
	}

	// Cached within the window
	src.snaps = append(src.snaps, domain.NodeSnapshot{NodeID: "c", Status: domain.StatusDown})
	if got := m.CheckHealth(context.Background()); len(got.Nodes) != 2 {
		t.Errorf("expected cached report with 2 nodes, got %d", len(got.Nodes))
	}

	now := time.Now()
	m.now = func() time.Time { return now.Add(time.Minute) }
	if got := m.CheckHealth(context.Background()); got.SystemStatus != StatusCritical {
		t.Errorf("expected critical after refresh, got %s", got.SystemStatus)
	}
}

func TestServer_Health(t *testing.T) {
	src := &stubSource{snaps: []domain.NodeSnapshot{{NodeID: "a", Status: domain.StatusDown}}}
	srv := NewServer(NewMonitor(src, &stubPinger{}), 0)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with a down node, got %d", rec.Code)
	}
	var body map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["status"] != string(StatusCritical) {
		t.Errorf("expected critical, got %q", body["status"])
	}
}

func TestServer_HealthStoreDown(t *testing.T) {
	srv := NewServer(NewMonitor(&stubSource{}, &stubPinger{err: errors.New("refused")}), 0)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestServer_Detailed(t *testing.T) {
	src := &stubSource{snaps: []domain.NodeSnapshot{
		{NodeID: "val1", Status: domain.StatusCatchingUp, LastHeight: 42},
	}}
	srv := NewServer(NewMonitor(src, nil), 0)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/detailed", nil))

	var report HealthReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	n, ok := report.Nodes["val1"]
	if !ok {
		t.Fatal("missing node val1")
	}
	if n.LastHeight != 42 || n.Status != "CATCHING_UP" {
		t.Errorf("unexpected node entry %+v", n)
	}
}
