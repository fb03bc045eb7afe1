// Package release watches a GitHub repository for new releases of the node
// software.
package release

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vietddude/nodewatch/internal/alerting/message"
	"github.com/vietddude/nodewatch/internal/core/domain"
)

const defaultAPIURL = "https://api.github.com"

// Config holds release monitor settings. An empty Repo disables it.
type Config struct {
	Repo          string        `yaml:"repo"` // owner/name
	Interval      time.Duration `yaml:"interval"`
	ErrorInterval time.Duration `yaml:"error_interval"`
	APIURL        string        `yaml:"api_url"`
	Token         string        `yaml:"token"`
}

// WithDefaults fills zero fields.
func (c Config) WithDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = time.Hour
	}
	if c.ErrorInterval <= 0 {
		c.ErrorInterval = time.Hour
	}
	if c.APIURL == "" {
		c.APIURL = defaultAPIURL
	}
	return c
}

// Enabled reports whether a repository is configured.
func (c Config) Enabled() bool {
	return c.Repo != ""
}

// Alerter routes an alert through dedup and delivery.
type Alerter interface {
	Alert(key domain.AlertKey, transition bool, cooldown time.Duration, text string, now time.Time)
}

// Resolver is the throttle state the monitor reads and clears directly.
type Resolver interface {
	Resolve(node domain.NodeID)
	Pending(key domain.AlertKey) bool
}

type latestRelease struct {
	TagName string `json:"tag_name"`
	Name    string `json:"name"`
	HTMLURL string `json:"html_url"`
}

// Monitor polls the latest release and alerts once per new tag.
type Monitor struct {
	cfg      Config
	client   *http.Client
	alerter  Alerter
	resolver Resolver
	log      *slog.Logger
	now      func() time.Time

	lastTag string
	// announced is the text of the last new-release alert, kept until it
	// is delivered.
	announced string
	failing   bool
}

// NewMonitor creates a release monitor.
func NewMonitor(cfg Config, alerter Alerter, resolver Resolver, log *slog.Logger) *Monitor {
	if log == nil {
		log = slog.Default()
	}
	return &Monitor{
		cfg:      cfg.WithDefaults(),
		client:   &http.Client{Timeout: 15 * time.Second},
		alerter:  alerter,
		resolver: resolver,
		log:      log.With("component", "release", "repo", cfg.Repo),
		now:      time.Now,
	}
}

// Key is the alert key used for feed access errors.
func (m *Monitor) Key() domain.AlertKey {
	return domain.AlertKey{NodeID: m.source(), Status: domain.StatusUnreachable}
}

func (m *Monitor) source() domain.NodeID {
	return domain.NodeID("github:" + m.cfg.Repo)
}

// Run checks immediately and then on every interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		m.Check(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Check performs one poll. The first successful poll only records the
// current tag. Access errors are alerted at most once per ErrorInterval
// until a poll succeeds again.
func (m *Monitor) Check(ctx context.Context) {
	now := m.now()
	rel, err := m.fetchLatest(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		m.log.Warn("Failed to read releases", "error", err)
		m.failing = true
		m.alerter.Alert(m.Key(), false, m.cfg.ErrorInterval, message.ReleaseError(m.cfg.Repo, err), now)
		return
	}

	if m.failing {
		m.failing = false
		m.resolver.Resolve(m.source())
	}

	key := m.releaseKey()
	switch {
	case m.lastTag == "":
		m.log.Info("Tracking releases", "tag", rel.TagName)
	case rel.TagName != m.lastTag:
		m.log.Info("New release", "tag", rel.TagName, "previous", m.lastTag)
		m.announced = message.Release(m.cfg.Repo, rel.TagName, rel.Name, rel.HTMLURL)
		m.alerter.Alert(key, true, 0, m.announced, now)
	case m.announced != "" && m.resolver.Pending(key):
		m.log.Info("Retrying release announcement", "tag", rel.TagName)
		m.alerter.Alert(key, false, 0, m.announced, now)
	}
	m.lastTag = rel.TagName
}

func (m *Monitor) releaseKey() domain.AlertKey {
	return domain.AlertKey{NodeID: m.source(), Status: domain.StatusUp}
}

func (m *Monitor) fetchLatest(ctx context.Context) (*latestRelease, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/releases/latest", strings.TrimRight(m.cfg.APIURL, "/"), m.cfg.Repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if m.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+m.cfg.Token)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", endpoint, resp.StatusCode)
	}

	var rel latestRelease
	if err := json.Unmarshal(body, &rel); err != nil {
		return nil, fmt.Errorf("parse release: %w", err)
	}
	if rel.TagName == "" {
		return nil, fmt.Errorf("release without tag_name")
	}
	return &rel, nil
}
