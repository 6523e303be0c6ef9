package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/eldtechnologies/tweets/internal/metrics"
)

const version = "0.1.0"

// Check represents the status of a health check.
type Check struct {
	Status  string `json:"status"`            // "pass" or "fail"
	Latency string `json:"latency,omitempty"` // e.g., "2ms"
	Message string `json:"message,omitempty"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string           `json:"status"` // "healthy" or "degraded"
	Version   string           `json:"version"`
	Checks    map[string]Check `json:"checks"`
	Timestamp string           `json:"timestamp"`
}

// Health handles the health check endpoint.
// Redis is only checked when configured; the service runs without it.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]Check)
	allHealthy := true

	storeStart := time.Now()
	count := h.tweets.Len()
	checks["store"] = Check{
		Status:  "pass",
		Latency: time.Since(storeStart).String(),
		Message: strconv.Itoa(count) + " tweets",
	}

	if h.redis != nil {
		latency, err := h.redis.Latency(ctx)
		if err != nil {
			checks["redis"] = Check{Status: "fail", Message: "connection failed"}
			allHealthy = false
		} else {
			metrics.RedisLatency.Observe(latency.Seconds())
			checks["redis"] = Check{Status: "pass", Latency: latency.String()}
		}
	}

	status := "healthy"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	h.JSON(w, statusCode, HealthResponse{
		Status:    status,
		Version:   version,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// RootResponse represents the root endpoint response.
type RootResponse struct {
	Name    string   `json:"name"`
	Version string   `json:"version"`
	Routes  []string `json:"routes"`
}

// Root handles the API info endpoint. Routes lists every "METHOD /path"
// the server answers.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	routes := h.routes
	if routes == nil {
		routes = []string{}
	}
	h.JSON(w, http.StatusOK, RootResponse{
		Name:    "tweets",
		Version: version,
		Routes:  routes,
	})
}
