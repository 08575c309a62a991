package api

import (
	"context"
	"net/http"
	"time"
)

// HealthCheck probes one dependency for readiness.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type checkResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type healthReport struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]checkResult `json:"checks,omitempty"`
}

type HealthHandlers struct {
	checks  []HealthCheck
	timeout time.Duration
}

func NewHealthHandlers(checks ...HealthCheck) *HealthHandlers {
	return &HealthHandlers{checks: checks, timeout: 3 * time.Second}
}

// Live handles GET /health/live
func (h *HealthHandlers) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthReport{Status: "up", Timestamp: time.Now().UTC()})
}

// Ready handles GET /health/ready. Any failing check makes the response 503.
func (h *HealthHandlers) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	report := healthReport{
		Status:    "up",
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]checkResult, len(h.checks)),
	}
	for _, c := range h.checks {
		if err := c.Check(ctx); err != nil {
			report.Checks[c.Name] = checkResult{Status: "down", Error: err.Error()}
			report.Status = "down"
			continue
		}
		report.Checks[c.Name] = checkResult{Status: "up"}
	}

	status := http.StatusOK
	if report.Status != "up" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}
