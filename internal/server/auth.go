package server

import (
	"mime"
	"net/http"
	"time"

	"soutenance/internal/app"
	"soutenance/pkg/domain"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,notblank"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   int64       `json:"expires_in"`
	User        domain.User `json:"user"`
}

type registerStudentRequest struct {
	FirstName string `json:"first_name" validate:"required,notblank"`
	LastName  string `json:"last_name" validate:"required,notblank"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	CNI       string `json:"cni" validate:"required,notblank"`
	Phone     string `json:"phone"`
	CNE       string `json:"cne" validate:"required,notblank"`
	Major     string `json:"major" validate:"required,notblank"`
	Year      int    `json:"year" validate:"required,min=1,max=10"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.allowRate(w, r, s.loginLimiter, "too many login attempts") {
		s.audit(r, "user.login", "rate_limited")
		return
	}
	var req loginRequest
	if isFormRequest(r) {
		r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid form")
			return
		}
		req = loginRequest{Email: r.PostForm.Get("username"), Password: r.PostForm.Get("password")}
		if fields := s.validator.check(req); fields != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "validation failed", "fields": fields})
			return
		}
	} else if !s.decodeJSON(w, r, &req) {
		return
	}

	sess, err := s.app.Login(req.Email, req.Password)
	if err != nil {
		s.audit(r, "user.login", "fail", "reason", app.KindOf(err).String())
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "user.login", "success", "user_id", sess.User.ID, "role", string(sess.User.Role))
	expiresIn := int64(time.Until(sess.ExpiresAt).Seconds())
	if expiresIn < 0 {
		expiresIn = 0
	}
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: sess.Token,
		TokenType:   "bearer",
		ExpiresIn:   expiresIn,
		User:        sess.User,
	})
}

func isFormRequest(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/x-www-form-urlencoded"
}

func (s *Server) handleRegisterStudent(w http.ResponseWriter, r *http.Request) {
	if !s.allowRate(w, r, s.registerLimiter, "too many registration attempts") {
		s.audit(r, "user.register", "rate_limited")
		return
	}
	var req registerStudentRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	user, err := s.app.RegisterStudent(app.StudentRegistration{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		CNI:       req.CNI,
		Phone:     req.Phone,
		CNE:       req.CNE,
		Major:     req.Major,
		Year:      req.Year,
	})
	if err != nil {
		s.audit(r, "user.register", "fail", "reason", app.KindOf(err).String())
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "user.register", "success", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, user domain.User) {
	token, _ := bearerToken(r)
	if err := s.app.Logout(token); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "user.logout", "success", "user_id", user.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, _ *http.Request, user domain.User) {
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request, user domain.User) {
	list, err := s.app.Notifications(user)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request, user domain.User) {
	n, err := s.app.MarkNotificationRead(user, r.PathValue("id"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}
