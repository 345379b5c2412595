package server

import (
	"net/http"
)

// CallbackHandler receives the provider redirect after the admin approves
// access. On success the owner token has been persisted and the browser is
// sent back to the dashboard.
func (s *Server) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		if denial := query.Get("error"); denial != "" {
			s.log.Warn().Str("reason", denial).Msg("authorization denied at provider")
			writeJSONError(w, http.StatusBadRequest, "authorization denied")
			return
		}

		code := query.Get("code")
		state := query.Get("state")
		if code == "" || state == "" {
			writeJSONError(w, http.StatusBadRequest, "missing code or state")
			return
		}

		if err := s.gate.CompleteConnect(r.Context(), code, state); err != nil {
			s.log.Error().Err(err).Msg("connect failed")
			status, message := statusFromError(err)
			writeJSONError(w, status, message)
			return
		}

		http.Redirect(w, r, "/", http.StatusFound)
	}
}
