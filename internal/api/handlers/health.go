package handlers

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to the Pinger interface.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// HealthHandler serves the liveness and readiness probes. Liveness only
// confirms the process is up; readiness checks the backing stores.
type HealthHandler struct {
	DB      Pinger
	Cache   Pinger
	Version string
	Commit  string
}

func NewHealthHandler(db, cache Pinger, version, commit string) *HealthHandler {
	return &HealthHandler{DB: db, Cache: cache, Version: version, Commit: commit}
}

type healthStatus struct {
	Status    string            `json:"status"`
	Version   string            `json:"version,omitempty"`
	GitCommit string            `json:"git_commit,omitempty"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp string            `json:"timestamp"`
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthStatus{
		Status:    "ok",
		Version:   h.Version,
		GitCommit: h.Commit,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{
		"database": h.check(ctx, h.DB),
		"cache":    h.check(ctx, h.Cache),
	}

	status := http.StatusOK
	overall := "ready"
	for _, result := range checks {
		if result != "pass" && result != "skipped" {
			status = http.StatusServiceUnavailable
			overall = "not_ready"
			break
		}
	}

	writeJSON(w, status, healthStatus{
		Status:    overall,
		Version:   h.Version,
		GitCommit: h.Commit,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) check(ctx context.Context, p Pinger) string {
	if p == nil {
		return "skipped"
	}
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := p.Ping(checkCtx); err != nil {
		return "fail: " + err.Error()
	}
	return "pass"
}
