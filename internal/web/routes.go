package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/face-attendance/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	session := s.services.Processor.Session()

	configHandler := handlers.NewConfigHandler(s.config)
	studentsHandler := handlers.NewStudentsHandler(s.config, s.services.Roster, s.services.References)
	sessionHandler := handlers.NewSessionHandler(s.services.Controller, session)
	attendanceHandler := handlers.NewAttendanceHandler(s.config, session)
	identifyHandler := handlers.NewIdentifyHandler(s.services.Processor)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handlers.HealthCheck)

		// Event stream is not subject to the request timeout
		r.Get("/attendance/events", attendanceHandler.Events)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(2 * time.Minute))

			r.Get("/config", configHandler.Get)

			// Roster
			r.Get("/students", studentsHandler.List)
			r.Post("/students", studentsHandler.Create)
			r.Delete("/students/{name}", studentsHandler.Delete)

			// Session
			r.Get("/session", sessionHandler.Status)
			r.Post("/session/start", sessionHandler.Start)
			r.Post("/session/stop", sessionHandler.Stop)

			// Attendance log
			r.Get("/attendance", attendanceHandler.List)
			r.Delete("/attendance", attendanceHandler.Reset)
			r.Post("/attendance/export", attendanceHandler.Export)

			r.Post("/identify", identifyHandler.Identify)
		})
	})

	s.router.Get("/", s.serveIndex)
}

// serveIndex serves a small landing page pointing at the API
func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>Face Attendance</title>
    <style>
        body { font-family: system-ui, sans-serif; display: flex; justify-content: center; align-items: center; height: 100vh; margin: 0; background: #1a1a2e; color: #eee; }
        .container { text-align: center; }
        h1 { color: #00d9ff; }
        a { color: #00d9ff; }
        code { background: #2a2a3e; padding: 2px 8px; border-radius: 4px; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Face Attendance</h1>
        <p>Start a session with <code>POST /api/v1/session/start</code>.</p>
        <p>Live records: <a href="/api/v1/attendance/events">/api/v1/attendance/events</a></p>
        <p>Health: <a href="/api/v1/health">/api/v1/health</a></p>
    </div>
</body>
</html>`))
}
