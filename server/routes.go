package server

const (
	RouteStatus         = "/status"
	RouteAdminLogin     = "/admin/login"
	RouteAdminLogout    = "/admin/logout"
	RouteAdminConnect   = "/admin/connect"
	RouteAdminReconnect = "/admin/reconnect"
	RouteCallback       = "/callback"
)

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET "+RouteStatus, ChainMiddleware(s.StatusHandler(), s.BaseMiddleware()...))

	s.RegisterRouteFunc("POST "+RouteAdminLogin, ChainMiddleware(s.LoginHandler(), s.BaseMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteAdminLogout, ChainMiddleware(s.LogoutHandler(), s.BaseMiddleware()...))

	// Privileged: only these entry points may create or replace the owner token.
	s.RegisterRouteFunc("POST "+RouteAdminConnect, ChainMiddleware(s.ConnectHandler(), s.AdminMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteAdminReconnect, ChainMiddleware(s.ConnectHandler(), s.AdminMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteCallback, ChainMiddleware(s.CallbackHandler(), s.AdminMiddleware()...))
}
