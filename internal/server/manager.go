package server

import (
	"net/http"

	"soutenance/internal/app"
	"soutenance/pkg/domain"
)

const defaultPageLimit = 100

type createProfessorRequest struct {
	FirstName string `json:"first_name" validate:"required,notblank"`
	LastName  string `json:"last_name" validate:"required,notblank"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	CNI       string `json:"cni" validate:"required,notblank"`
	Phone     string `json:"phone"`
	Specialty string `json:"specialty" validate:"required,notblank"`
}

type updateDefenseRequest struct {
	Title       *string               `json:"title" validate:"omitempty,notblank"`
	Description *string               `json:"description"`
	Status      *domain.DefenseStatus `json:"status"`
	DefenseDate *string               `json:"defense_date"`
	DefenseTime *string               `json:"defense_time"`
}

type assignJuryRequest struct {
	ProfessorID string          `json:"professor_id" validate:"required,notblank"`
	Role        domain.JuryRole `json:"role" validate:"required"`
	DefenseID   string          `json:"thesis_defense_id"`
}

type updateJuryRequest struct {
	Role        *domain.JuryRole `json:"role"`
	ProfessorID *string          `json:"professor_id" validate:"omitempty,notblank"`
}

func (s *Server) handlePendingStudents(w http.ResponseWriter, r *http.Request, _ domain.User) {
	users, err := s.app.PendingStudents()
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleApproveStudent(w http.ResponseWriter, r *http.Request, manager domain.User) {
	id := r.PathValue("id")
	user, err := s.app.Approve(r.Context(), id)
	if err != nil {
		s.audit(r, "student.approve", "fail", "manager_id", manager.ID, "student_id", id, "reason", app.KindOf(err).String())
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "student.approve", "success", "manager_id", manager.ID, "student_id", id)
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleRejectStudent(w http.ResponseWriter, r *http.Request, manager domain.User) {
	id := r.PathValue("id")
	if err := s.app.Reject(id); err != nil {
		s.audit(r, "student.reject", "fail", "manager_id", manager.ID, "student_id", id, "reason", app.KindOf(err).String())
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "student.reject", "success", "manager_id", manager.ID, "student_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateProfessor(w http.ResponseWriter, r *http.Request, manager domain.User) {
	var req createProfessorRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	user, err := s.app.AddProfessor(app.ProfessorAccount{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		CNI:       req.CNI,
		Phone:     req.Phone,
		Specialty: req.Specialty,
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "professor.create", "success", "manager_id", manager.ID, "professor_id", user.ID)
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleProfessors(w http.ResponseWriter, r *http.Request, _ domain.User) {
	users, err := s.app.Professors()
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleListDefenses(w http.ResponseWriter, r *http.Request, _ domain.User) {
	skip, ok := queryInt(r, "skip", 0)
	if !ok || skip < 0 {
		writeError(w, http.StatusBadRequest, "invalid skip")
		return
	}
	limit, ok := queryInt(r, "limit", defaultPageLimit)
	if !ok || limit < 1 {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	list, err := s.app.ListDefenses(skip, limit)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleUpdateDefense(w http.ResponseWriter, r *http.Request, manager domain.User) {
	var req updateDefenseRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	id := r.PathValue("id")
	d, err := s.app.UpdateDefense(r.Context(), id, app.DefensePatch{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		DefenseDate: req.DefenseDate,
		DefenseTime: req.DefenseTime,
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if req.Status != nil {
		s.audit(r, "defense.status", "success", "manager_id", manager.ID, "defense_id", id, "status", string(d.Status))
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleListJury(w http.ResponseWriter, r *http.Request, _ domain.User) {
	jury, err := s.app.Jury(r.PathValue("id"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jury)
}

func (s *Server) handleAssignJury(w http.ResponseWriter, r *http.Request, manager domain.User) {
	var req assignJuryRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	id := r.PathValue("id")
	if req.DefenseID != "" && req.DefenseID != id {
		s.writeAppError(w, r, app.ErrDefenseIDMismatch)
		return
	}
	seat, err := s.app.AssignJury(r.Context(), id, req.ProfessorID, req.Role)
	if err != nil {
		s.audit(r, "jury.assign", "fail", "manager_id", manager.ID, "defense_id", id, "reason", app.KindOf(err).String())
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "jury.assign", "success", "manager_id", manager.ID, "defense_id", id, "professor_id", seat.ProfessorID)
	writeJSON(w, http.StatusCreated, seat)
}

func (s *Server) handleUpdateJuryMember(w http.ResponseWriter, r *http.Request, manager domain.User) {
	var req updateJuryRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Role == nil && req.ProfessorID == nil {
		writeError(w, http.StatusBadRequest, "role or professor_id required")
		return
	}
	id := r.PathValue("id")
	seat, err := s.app.UpdateJuryMember(r.Context(), id, r.PathValue("professorId"), app.JuryPatch{
		Role:        req.Role,
		ProfessorID: req.ProfessorID,
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "jury.update", "success", "manager_id", manager.ID, "defense_id", id, "professor_id", seat.ProfessorID)
	writeJSON(w, http.StatusOK, seat)
}

func (s *Server) handleJurySuggestions(w http.ResponseWriter, r *http.Request, _ domain.User) {
	n, ok := queryInt(r, "n", 3)
	if !ok {
		s.writeAppError(w, r, app.ErrInvalidSuggestCount)
		return
	}
	suggestions, err := s.app.SuggestJury(r.Context(), r.PathValue("id"), n)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, suggestions)
}

func (s *Server) handleReportAccess(w http.ResponseWriter, r *http.Request, _ domain.User) {
	entries, err := s.app.ReportAccessLog(r.PathValue("id"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleDefenseEvaluations(w http.ResponseWriter, r *http.Request, _ domain.User) {
	evals, err := s.app.Evaluations(r.PathValue("id"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, evals)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request, _ domain.User) {
	stats, err := s.app.Stats()
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
