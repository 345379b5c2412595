// Package server exposes the owner-token core over HTTP: the admin
// login/connect/reconnect endpoints, the OAuth redirect callback, and the
// read-only status endpoint consumed by the dashboard front end.
package server

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/euterpe-music/euterpe/admin"
	"github.com/euterpe-music/euterpe/internal/config"
	"github.com/euterpe-music/euterpe/token/refresh"
)

type Server struct {
	env         string
	mux         *http.ServeMux
	routes      []string
	config      config.Config
	gate        *admin.Gate
	coordinator *refresh.Coordinator
	log         zerolog.Logger
}

func New(cfg config.Config, gate *admin.Gate, coordinator *refresh.Coordinator, log zerolog.Logger) *Server {
	s := &Server{
		env:         cfg.GetEnv(),
		mux:         http.NewServeMux(),
		config:      cfg,
		gate:        gate,
		coordinator: coordinator,
		log:         log,
	}

	s.initRoutes()
	s.logRoutes()

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		s.log.Info().Str("route", route).Msg("registered")
	}
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
