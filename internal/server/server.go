package server

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"soutenance/internal/app"
	"soutenance/internal/ratelimit"
	"soutenance/internal/util"
	"soutenance/pkg/domain"
)

const (
	serviceName      = "soutenance"
	maxJSONBody      = 1 << 20
	rateLimitTimeout = 2 * time.Second
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App             *app.App
	LoginLimiter    *ratelimit.FixedWindowLimiter
	RegisterLimiter *ratelimit.FixedWindowLimiter
	TrustedProxies  *util.TrustedProxies
	CORS            util.CORSConfig
}

// Server exposes the defense workflow over HTTP.
type Server struct {
	app             *app.App
	mux             *http.ServeMux
	loginLimiter    *ratelimit.FixedWindowLimiter
	registerLimiter *ratelimit.FixedWindowLimiter
	trusted         *util.TrustedProxies
	cors            util.CORSConfig
	validator       *requestValidator
}

// New constructs the server with routes configured. Nil limiters disable
// rate limiting.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app required")
	}
	rv, err := newRequestValidator()
	if err != nil {
		return nil, err
	}
	s := &Server{
		app:             cfg.App,
		mux:             http.NewServeMux(),
		loginLimiter:    cfg.LoginLimiter,
		registerLimiter: cfg.RegisterLimiter,
		trusted:         cfg.TrustedProxies,
		cors:            cfg.CORS,
		validator:       rv,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler with the middleware chain applied.
func (s *Server) Router() http.Handler {
	var h http.Handler = s.mux
	h = util.WithCORS(s.cors, h)
	h = util.WithSecurityHeaders(h)
	h = util.WithRecover(h)
	h = util.WithRequestLog(serviceName, h)
	return util.WithRequestID(h)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	// accounts
	s.mux.HandleFunc("POST /auth/login", s.handleLogin)
	s.mux.HandleFunc("POST /auth/register/student", s.handleRegisterStudent)
	s.mux.Handle("POST /auth/logout", s.authenticated(s.handleLogout))
	s.mux.Handle("GET /users/me", s.authenticated(s.handleMe))
	s.mux.Handle("GET /notifications", s.authenticated(s.handleNotifications))
	s.mux.Handle("PATCH /notifications/{id}/read", s.authenticated(s.handleMarkNotificationRead))

	// manager
	s.mux.Handle("GET /manager/pending-students", s.managerOnly(s.handlePendingStudents))
	s.mux.Handle("PATCH /manager/pending-students/{id}/approve", s.managerOnly(s.handleApproveStudent))
	s.mux.Handle("DELETE /manager/pending-students/{id}/reject", s.managerOnly(s.handleRejectStudent))
	s.mux.Handle("POST /manager/professors", s.managerOnly(s.handleCreateProfessor))
	s.mux.Handle("GET /professors/{$}", s.managerOnly(s.handleProfessors))
	s.mux.Handle("GET /defenses/{$}", s.managerOnly(s.handleListDefenses))
	s.mux.Handle("PATCH /defenses/{id}", s.managerOnly(s.handleUpdateDefense))
	s.mux.Handle("GET /defenses/{id}/jury", s.managerOnly(s.handleListJury))
	s.mux.Handle("POST /defenses/{id}/jury", s.managerOnly(s.handleAssignJury))
	s.mux.Handle("PUT /defenses/{id}/jury/{professorId}", s.managerOnly(s.handleUpdateJuryMember))
	s.mux.Handle("GET /defenses/{id}/jury-suggestions", s.managerOnly(s.handleJurySuggestions))
	s.mux.Handle("GET /defenses/{id}/report-access", s.managerOnly(s.handleReportAccess))
	s.mux.Handle("GET /defenses/{id}/evaluations", s.managerOnly(s.handleDefenseEvaluations))
	s.mux.Handle("GET /stats/{$}", s.managerOnly(s.handleStats))

	// students
	s.mux.Handle("POST /students/soutenance-requests", s.studentOnly(s.handleSubmitDefense))
	s.mux.Handle("GET /students/soutenance-requests", s.studentOnly(s.handleStudentDefenses))
	s.mux.Handle("GET /students/dashboard", s.studentOnly(s.handleStudentDashboard))
	s.mux.Handle("GET /students/requests/{id}", s.studentOnly(s.handleStudentDefense))

	// professors
	s.mux.Handle("GET /professors/assigned-soutenances", s.professorOnly(s.handleAssignedDefenses))
	s.mux.Handle("GET /professors/soutenances/{id}", s.professorOnly(s.handleJurorDefense))
	s.mux.Handle("GET /professors/soutenances/{id}/report/download", s.professorOnly(s.handleDownloadReport))
	s.mux.Handle("POST /professors/soutenances/{id}/evaluation", s.professorOnly(s.handleSubmitEvaluation))
	s.mux.Handle("GET /professors/evaluations", s.professorOnly(s.handleProfessorEvaluations))
	s.mux.Handle("GET /professors/notifications", s.professorOnly(s.handleNotifications))
	s.mux.Handle("PATCH /professors/notifications/{id}/read", s.professorOnly(s.handleMarkNotificationRead))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return s.requireRole("authorize", nil, next)
}

func (s *Server) managerOnly(next authHandler) http.Handler {
	return s.requireRole("manager.authorize", domain.UserRole.CanManage, next)
}

func (s *Server) studentOnly(next authHandler) http.Handler {
	return s.requireRole("student.authorize", func(r domain.UserRole) bool { return r == domain.RoleStudent }, next)
}

func (s *Server) professorOnly(next authHandler) http.Handler {
	return s.requireRole("professor.authorize", func(r domain.UserRole) bool { return r == domain.RoleProfessor }, next)
}

func (s *Server) requireRole(event string, allowed func(domain.UserRole) bool, next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			s.audit(r, event, "fail", "reason", "missing_token")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		user, err := s.app.Authenticate(token)
		if err != nil {
			if app.KindOf(err) == app.KindInternal {
				s.writeAppError(w, r, err)
				return
			}
			s.audit(r, event, "fail", "reason", "invalid_token")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if allowed != nil && !allowed(user.Role) {
			s.audit(r, event, "fail", "user_id", user.ID, "reason", "forbidden")
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		logger := util.LoggerFromContext(r.Context()).With("user_id", user.ID)
		next(w, r.WithContext(util.ContextWithLogger(r.Context(), logger)), user)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if len(authHeader) < len("Bearer ") || !strings.EqualFold(authHeader[:len("Bearer ")], "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(authHeader[len("Bearer "):])
	if token == "" {
		return "", false
	}
	return token, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeAppError maps an application error to its status code. Internal
// failures are logged and answered with a generic message.
func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch app.KindOf(err) {
	case app.KindUnauthorized:
		status = http.StatusUnauthorized
	case app.KindForbidden:
		status = http.StatusForbidden
	case app.KindNotFound:
		status = http.StatusNotFound
	case app.KindConflict:
		status = http.StatusConflict
	case app.KindBadRequest:
		status = http.StatusBadRequest
	case app.KindUploadFailed:
		if errors.Is(err, app.ErrFileTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
	}
	if status == http.StatusInternalServerError {
		util.LoggerFromContext(r.Context()).Error("request failed", "path", r.URL.Path, "err", err)
	}
	writeError(w, status, app.Message(err))
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", util.ClientIP(r, s.trusted),
	}
	logAttrs = append(logAttrs, attrs...)
	logger := util.LoggerFromContext(r.Context())
	if outcome == "success" {
		logger.Info("security_event", logAttrs...)
		return
	}
	logger.Warn("security_event", logAttrs...)
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	if limiter == nil {
		return true
	}
	key := r.URL.Path + "|" + util.ClientIP(r, s.trusted)
	ctx, cancel := context.WithTimeout(r.Context(), rateLimitTimeout)
	defer cancel()
	decision := limiter.Check(ctx, key)
	if decision.Allowed {
		return true
	}
	retry := int(math.Ceil(decision.RetryAfter.Seconds()))
	if retry < 1 {
		retry = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retry))
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

// queryInt reads an optional integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}
