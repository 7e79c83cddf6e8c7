package app

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"soutenance/internal/util"
	"soutenance/pkg/ai"
	"soutenance/pkg/domain"
	"soutenance/pkg/pdftext"
	"soutenance/pkg/storage"
	"soutenance/pkg/store"
)

const (
	excerptRunes     = 8000
	priorReportLimit = 5
	pdfMagic         = "%PDF-"
)

// Submission is a student's defense request with its report file.
type Submission struct {
	Title       string
	Domain      string
	Description string
	FileName    string
	ContentType string
	File        io.Reader
}

// SubmitDefense stores the report, asks the advisor for an analysis and
// records the report and a pending defense in one unit of work.
func (a *App) SubmitDefense(ctx context.Context, student domain.User, sub Submission) (domain.ThesisDefense, error) {
	if student.Role != domain.RoleStudent {
		return domain.ThesisDefense{}, ErrForbidden
	}
	title := strings.TrimSpace(sub.Title)
	declared := strings.TrimSpace(sub.Domain)
	if title == "" {
		return domain.ThesisDefense{}, ErrTitleRequired
	}
	if declared == "" {
		return domain.ThesisDefense{}, ErrDomainRequired
	}
	if sub.File == nil || !isPDF(sub.FileName, sub.ContentType) {
		return domain.ThesisDefense{}, ErrNotPDF
	}
	body := bufio.NewReader(sub.File)
	magic, err := body.Peek(len(pdfMagic))
	if err != nil || string(magic) != pdfMagic {
		return domain.ThesisDefense{}, ErrNotPDF
	}

	obj, err := a.reports.Save(ctx, body, a.maxUploadBytes)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return domain.ThesisDefense{}, ErrFileTooLarge
		}
		return domain.ThesisDefense{}, uploadFailed(err)
	}
	logger := util.LoggerFromContext(ctx)

	text := a.reportText(ctx, obj)
	prior, err := a.store.ListRecentReports(student.ID, priorReportLimit)
	if err != nil {
		logger.Warn("list prior reports failed", "err", err)
		prior = nil
	}
	input := ai.ReportInput{Title: title, DeclaredDomain: declared, Text: text}
	for _, r := range prior {
		input.Prior = append(input.Prior, ai.PriorReport{ID: r.ID, Text: r.Excerpt})
	}
	analysis := a.advisor.AnalyzeReport(ctx, input)

	now := a.now()
	report := domain.Report{
		ID:                a.newID(),
		StudentID:         student.ID,
		StorageKey:        obj.Key,
		FileName:          safeFileName(sub.FileName),
		SizeBytes:         obj.Size,
		AISummary:         analysis.Summary,
		AIDomain:          analysis.Domains,
		AISimilarityScore: analysis.Similarity,
		SimilarTo:         analysis.SimilarTo,
		Excerpt:           text,
		SubmittedAt:       now,
	}
	defense := domain.ThesisDefense{
		ID:          a.newID(),
		StudentID:   student.ID,
		Title:       title,
		Description: strings.TrimSpace(sub.Description),
		Status:      domain.DefensePending,
		ReportID:    report.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = a.store.WithinTx(func(tx store.Store) error {
		if err := tx.CreateReport(report); err != nil {
			return fmt.Errorf("create report: %w", err)
		}
		if err := tx.CreateDefense(defense); err != nil {
			return fmt.Errorf("create defense: %w", err)
		}
		return a.recordMajor(tx, student.ID, declared)
	})
	if err != nil {
		if delErr := a.reports.Delete(context.WithoutCancel(ctx), obj.Key); delErr != nil {
			logger.Error("remove orphaned report failed", "key", obj.Key, "err", delErr)
		}
		return domain.ThesisDefense{}, err
	}
	return defense, nil
}

// recordMajor stores the declared domain as the student's major when none is set.
func (a *App) recordMajor(tx store.Store, studentID, declared string) error {
	u, ok, err := tx.GetUserByID(studentID)
	if err != nil {
		return fmt.Errorf("fetch student: %w", err)
	}
	if !ok {
		return ErrUserNotFound
	}
	profile, isStudent := u.Student()
	if !isStudent || profile.Major != "" {
		return nil
	}
	profile.Major = declared
	u.Profile = profile
	u.UpdatedAt = a.now()
	if err := tx.UpdateUser(u); err != nil {
		return fmt.Errorf("update student major: %w", err)
	}
	return nil
}

// reportText extracts a text excerpt from a stored report. An empty result
// makes the advisor fall back to the title.
func (a *App) reportText(ctx context.Context, obj storage.Object) string {
	logger := util.LoggerFromContext(ctx)
	rc, err := a.reports.Open(ctx, obj.Key)
	if err != nil {
		logger.Warn("open stored report failed", "key", obj.Key, "err", err)
		return ""
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, a.maxUploadBytes))
	if err != nil {
		logger.Warn("read stored report failed", "key", obj.Key, "err", err)
		return ""
	}
	text, err := pdftext.Extract(bytes.NewReader(data), int64(len(data)), excerptRunes)
	if err != nil {
		logger.Info("report text extraction failed", "key", obj.Key, "err", err)
		return ""
	}
	return text
}

func isPDF(fileName, contentType string) bool {
	if !strings.EqualFold(filepath.Ext(fileName), ".pdf") {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	switch strings.ToLower(mediaType) {
	case storage.PDFContentType, "application/x-pdf":
		return true
	}
	return false
}

// safeFileName keeps only the base name of a client-supplied file name for display.
func safeFileName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == "/" || name == "" {
		return "report.pdf"
	}
	return name
}
