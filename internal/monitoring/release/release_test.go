package release

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/nodewatch/internal/alerting/gate"
	"github.com/vietddude/nodewatch/internal/core/domain"
)

// gatedAlerter runs alerts through a real gate and records what would be sent.
// failNext makes the next delivery fail.
type gatedAlerter struct {
	mu       sync.Mutex
	g        *gate.Gate
	sent     []string
	failNext bool
}

func (a *gatedAlerter) Alert(key domain.AlertKey, transition bool, cooldown time.Duration, text string, now time.Time) {
	if a.g.NotifyIfDue(key, transition, cooldown, now) != gate.Send {
		return
	}
	if a.failNext {
		a.failNext = false
		a.g.MarkFailed(key)
		return
	}
	a.g.MarkSent(key, now)
	a.mu.Lock()
	a.sent = append(a.sent, text)
	a.mu.Unlock()
}

type feed struct {
	mu     sync.Mutex
	tag    string
	status int
}

func (f *feed) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/cosmos/gaia/releases/latest" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.status != 0 {
			w.WriteHeader(f.status)
			return
		}
		_, _ = w.Write([]byte(`{"tag_name": "` + f.tag + `", "name": "Gaia ` + f.tag + `", "html_url": "https://github.com/cosmos/gaia/releases/tag/` + f.tag + `"}`))
	}
}

func (f *feed) set(tag string, status int) {
	f.mu.Lock()
	f.tag, f.status = tag, status
	f.mu.Unlock()
}

func newTestMonitor(t *testing.T, f *feed) (*Monitor, *gatedAlerter, *time.Time) {
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)

	g := gate.New(nil, nil)
	a := &gatedAlerter{g: g}
	m := NewMonitor(Config{Repo: "cosmos/gaia", APIURL: srv.URL, ErrorInterval: time.Hour}, a, g, nil)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }
	return m, a, &clock
}

func TestMonitor_AlertsOncePerNewTag(t *testing.T) {
	f := &feed{tag: "v15.0.0"}
	m, a, _ := newTestMonitor(t, f)
	ctx := context.Background()

	m.Check(ctx) // baseline
	m.Check(ctx)
	if len(a.sent) != 0 {
		t.Fatalf("expected no alert for the baseline tag, got %v", a.sent)
	}

	f.set("v15.1.0", 0)
	m.Check(ctx)
	m.Check(ctx)
	if len(a.sent) != 1 {
		t.Fatalf("expected exactly one release alert, got %d", len(a.sent))
	}
	if !strings.Contains(a.sent[0], "v15.1.0") {
		t.Errorf("unexpected text %q", a.sent[0])
	}
}

func TestMonitor_UndeliveredReleaseIsRetried(t *testing.T) {
	f := &feed{tag: "v15.0.0"}
	m, a, _ := newTestMonitor(t, f)
	ctx := context.Background()

	m.Check(ctx) // baseline

	f.set("v15.1.0", 0)
	a.failNext = true
	m.Check(ctx)
	if len(a.sent) != 0 {
		t.Fatalf("expected failed delivery, got %v", a.sent)
	}

	m.Check(ctx)
	if len(a.sent) != 1 || !strings.Contains(a.sent[0], "v15.1.0") {
		t.Fatalf("expected the release to be announced on the next poll, got %v", a.sent)
	}

	m.Check(ctx)
	if len(a.sent) != 1 {
		t.Errorf("expected no further announcements, got %d", len(a.sent))
	}
}

func TestMonitor_ErrorAlertsThrottled(t *testing.T) {
	f := &feed{tag: "v1.0.0", status: http.StatusForbidden}
	m, a, clock := newTestMonitor(t, f)
	ctx := context.Background()

	m.Check(ctx)
	*clock = clock.Add(10 * time.Minute)
	m.Check(ctx)
	if len(a.sent) != 1 {
		t.Fatalf("expected a single error alert inside the interval, got %d", len(a.sent))
	}

	*clock = clock.Add(time.Hour)
	m.Check(ctx)
	if len(a.sent) != 2 {
		t.Fatalf("expected a second error alert after the interval, got %d", len(a.sent))
	}

	// Success resets the limiter: the next failure alerts immediately.
	f.set("v1.0.0", 0)
	*clock = clock.Add(time.Minute)
	m.Check(ctx)
	f.set("v1.0.0", http.StatusBadGateway)
	*clock = clock.Add(time.Minute)
	m.Check(ctx)
	if len(a.sent) != 3 {
		t.Fatalf("expected error alert right after reset, got %d", len(a.sent))
	}
}
