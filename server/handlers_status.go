package server

import (
	"net/http"
)

// StatusHandler reports connection state for the dashboard, without exposing
// any token material.
func (s *Server) StatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := s.coordinator.Status(r.Context())
		if err != nil {
			s.log.Error().Err(err).Msg("status lookup failed")
			writeJSONError(w, http.StatusServiceUnavailable, "token store unavailable")
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}
