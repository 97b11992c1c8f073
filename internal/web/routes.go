package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/holelung/Face-recognition-attendance-check/internal/web/handlers"
	"github.com/holelung/Face-recognition-attendance-check/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	engine := s.deps.Sessions.Engine()

	studentsHandler := handlers.NewStudentsHandler(s.deps.Identities, s.deps.Registrar, engine, s.deps.Recorder, s.validate, s.log)
	sessionsHandler := handlers.NewSessionsHandler(s.deps.Sessions, s.validate, s.log)
	attendanceHandler := handlers.NewAttendanceHandler(s.deps.Recorder, s.validate, s.log)
	configHandler := handlers.NewConfigHandler(s.config, engine.Matcher())

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Config
		r.Get("/config", configHandler.Get)

		// Students
		r.Get("/students", studentsHandler.List)
		r.Post("/students", studentsHandler.Create)
		r.Get("/students/{studentId}", studentsHandler.Get)
		r.Put("/students/{studentId}/descriptors", studentsHandler.AppendDescriptor)
		r.Put("/students/{studentId}/update", studentsHandler.AppendDescriptor)
		r.Get("/students/{studentId}/attendance", studentsHandler.Attendance)

		// Capture sessions
		r.Post("/sessions", sessionsHandler.Open)
		r.Delete("/sessions/{id}", sessionsHandler.Close)
		r.With(sessionsHandler.RequireSession, middleware.LimitByURLParam(s.captureLimit, "id", s.log)).
			Post("/sessions/{id}/captures", sessionsHandler.Capture)
		r.Get("/sessions/{id}/pending", sessionsHandler.Pending)
		r.Post("/sessions/{id}/pending/{key}/resolve", sessionsHandler.Resolve)

		// Attendance
		r.Post("/attendance", attendanceHandler.Record)
		r.Get("/attendance", attendanceHandler.List)
	})
}
