package api

import (
	"context"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-device/internal/platform"
)

// healthCheckTimeout bounds the storage and telemetry probes together.
const healthCheckTimeout = 2 * time.Second

// handleHealth returns 200 when storage answers, 503 otherwise. Telemetry
// is reported but does not affect the status code; the device runs
// without it.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":     "ok",
		"version":    s.version,
		"registered": s.registration().Registered,
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if s.telemetry != nil {
		body["telemetry"] = "ok"
		if err := s.telemetry.HealthCheck(ctx); err != nil {
			s.logger.Warn("telemetry health check failed", "error", err)
			body["telemetry"] = err.Error()
		}
	}

	if s.db != nil {
		if err := s.db.HealthCheck(ctx); err != nil {
			s.logger.Warn("health check failed", "error", err)
			body["status"] = "degraded"
			body["storage"] = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, body)
			return
		}
	}

	writeJSON(w, http.StatusOK, body)
}

// deviceInfo is the body of GET /device.
type deviceInfo struct {
	EndpointName   string              `json:"endpoint_name,omitempty"`
	ServerURI      string              `json:"server_uri,omitempty"`
	BootstrappedAt *time.Time          `json:"bootstrapped_at,omitempty"`
	Registered     bool                `json:"registered"`
	Build          *platform.BuildInfo `json:"build,omitempty"`
}

func (s *Server) handleDevice(w http.ResponseWriter, _ *http.Request) {
	info := deviceInfo{Registered: s.registration().Registered}
	if s.identity != nil {
		info.EndpointName = s.identity.EndpointName
		info.ServerURI = s.identity.ServerURI
		at := s.identity.BootstrappedAt
		info.BootstrappedAt = &at
	}
	if s.platform != nil {
		build := s.platform.BuildInfo()
		info.Build = &build
	}
	writeJSON(w, http.StatusOK, info)
}

// handleButtonPress simulates a press of the user button. The application
// loop picks it up on its next button tick.
func (s *Server) handleButtonPress(w http.ResponseWriter, _ *http.Request) {
	if s.platform == nil {
		writeUnavailable(w, "platform not available")
		return
	}
	s.platform.PressButton()
	s.logger.Debug("button press simulated")
	w.WriteHeader(http.StatusAccepted)
}
