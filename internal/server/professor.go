package server

import (
	"io"
	"net/http"
	"time"

	"soutenance/internal/app"
	"soutenance/internal/util"
	"soutenance/pkg/domain"
)

type evaluationRequest struct {
	Score    *float64 `json:"score" validate:"required"`
	Comments string   `json:"comments"`
}

type evaluationBody struct {
	SoutenanceID string    `json:"soutenanceId"`
	Score        float64   `json:"score"`
	Comments     string    `json:"comments"`
	SubmittedAt  time.Time `json:"submittedAt"`
}

type evaluationResponse struct {
	Success    bool           `json:"success"`
	Message    string         `json:"message"`
	Evaluation evaluationBody `json:"evaluation"`
}

func (s *Server) handleAssignedDefenses(w http.ResponseWriter, r *http.Request, professor domain.User) {
	list, err := s.app.AssignedDefenses(professor)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleJurorDefense(w http.ResponseWriter, r *http.Request, professor domain.User) {
	detail, err := s.app.JurorDefenseDetail(r.Context(), professor, r.PathValue("id"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleDownloadReport(w http.ResponseWriter, r *http.Request, professor domain.User) {
	id := r.PathValue("id")
	file, err := s.app.DownloadReport(r.Context(), professor, id)
	if err != nil {
		s.audit(r, "report.download", "fail", "defense_id", id, "reason", app.KindOf(err).String())
		s.writeAppError(w, r, err)
		return
	}
	defer file.Body.Close()
	s.audit(r, "report.download", "success", "defense_id", id)

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+file.Name+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, file.Body); err != nil {
		util.LoggerFromContext(r.Context()).Warn("report stream interrupted", "defense_id", id, "err", err)
	}
}

func (s *Server) handleSubmitEvaluation(w http.ResponseWriter, r *http.Request, professor domain.User) {
	var req evaluationRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	ev, err := s.app.SubmitEvaluation(professor, r.PathValue("id"), *req.Score, req.Comments)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, evaluationResponse{
		Success: true,
		Message: "Evaluation submitted successfully",
		Evaluation: evaluationBody{
			SoutenanceID: ev.DefenseID,
			Score:        ev.Score,
			Comments:     ev.Comments,
			SubmittedAt:  ev.SubmittedAt,
		},
	})
}

func (s *Server) handleProfessorEvaluations(w http.ResponseWriter, r *http.Request, professor domain.User) {
	evals, err := s.app.ProfessorEvaluations(professor)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, evals)
}
