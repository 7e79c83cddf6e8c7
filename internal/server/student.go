package server

import (
	"errors"
	"net/http"

	"soutenance/internal/app"
	"soutenance/pkg/domain"
)

// multipartMemory is how much of a submission is buffered in memory before
// the multipart reader spills to temporary files.
const multipartMemory = 1 << 20

func (s *Server) handleSubmitDefense(w http.ResponseWriter, r *http.Request, student domain.User) {
	r.Body = http.MaxBytesReader(w, r.Body, s.app.MaxUploadBytes()+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeAppError(w, r, app.ErrFileTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("pdf")
	if err != nil {
		writeError(w, http.StatusBadRequest, "pdf file required")
		return
	}
	defer file.Close()

	d, err := s.app.SubmitDefense(r.Context(), student, app.Submission{
		Title:       r.FormValue("title"),
		Domain:      r.FormValue("domain"),
		Description: r.FormValue("description"),
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		File:        file,
	})
	if err != nil {
		s.audit(r, "defense.submit", "fail", "reason", app.KindOf(err).String())
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "defense.submit", "success", "defense_id", d.ID, "size", header.Size)
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) handleStudentDefenses(w http.ResponseWriter, r *http.Request, student domain.User) {
	list, err := s.app.StudentDefenses(student)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleStudentDashboard(w http.ResponseWriter, r *http.Request, student domain.User) {
	dash, err := s.app.StudentDashboard(student)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

func (s *Server) handleStudentDefense(w http.ResponseWriter, r *http.Request, student domain.User) {
	detail, err := s.app.StudentDefense(student, r.PathValue("id"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}
