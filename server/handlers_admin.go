package server

import (
	"net/http"

	errs "github.com/euterpe-music/euterpe/internal/errors"
)

// adminSessionCookieName is the cookie carrying the signed admin session
const adminSessionCookieName = "euterpe_admin_session"

func (s *Server) setAdminSessionCookie(w http.ResponseWriter, r *http.Request, session string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     adminSessionCookieName,
		Value:    session,
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

// LoginHandler exchanges the admin password for a session cookie.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid form")
			return
		}

		session, err := s.gate.Authenticate(r.PostForm.Get("password"))
		if err != nil {
			writeJSONError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		s.setAdminSessionCookie(w, r, session, int(s.config.GetMaxSessionAge().Seconds()))
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.setAdminSessionCookie(w, r, "", -1)
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

// ConnectHandler starts a connect (or reconnect) flow and hands back the
// provider authorization URL for the browser to follow.
func (s *Server) ConnectHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authURL, err := s.gate.InitiateConnect(r.Context())
		if err != nil {
			s.log.Error().Err(err).Msg("initiate connect failed")
			writeJSONError(w, http.StatusInternalServerError, "could not start authorization")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"authorize_url": authURL})
	}
}

// statusFromError distinguishes "redo the provider authorization" from
// "re-enter the password" for the operator.
func statusFromError(err error) (int, string) {
	switch {
	case errs.Is(err, errs.ErrInvalidState):
		return http.StatusBadRequest, "invalid or expired authorization state"
	case errs.Is(err, errs.ErrInvalidGrant):
		return http.StatusBadGateway, "oauth exchange failed: authorization code rejected"
	case errs.Is(err, errs.ErrInvalidClient):
		return http.StatusBadGateway, "oauth exchange failed: client credentials rejected"
	case errs.Is(err, errs.ErrUpstreamUnavailable):
		return http.StatusBadGateway, "authorization server unavailable"
	case errs.Is(err, errs.ErrMalformedResponse):
		return http.StatusBadGateway, "oauth exchange failed: malformed token response"
	case errs.Is(err, errs.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "token store unavailable"
	case errs.Is(err, errs.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
