package api

import (
	"net/http"
	"strconv"
)

func (s *Server) handleListDeliveries(w http.ResponseWriter, r *http.Request) {
	if s.deliveries == nil {
		writeUnavailable(w, "delivery log not available")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	records, err := s.deliveries.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("listing deliveries", "error", err)
		writeInternalError(w, "failed to list deliveries")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"deliveries": records,
		"count":      len(records),
	})
}
