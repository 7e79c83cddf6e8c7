package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"soutenance/internal/util"
	"soutenance/pkg/domain"
	"soutenance/pkg/storage"
	"soutenance/pkg/store"
)

// AssignedDefense is a defense as seen by one of its jurors.
type AssignedDefense struct {
	domain.ThesisDefense
	StudentName  string             `json:"student_name"`
	StudentEmail string             `json:"student_email,omitempty"`
	JuryRole     domain.JuryRole    `json:"jury_role"`
	Report       *domain.Report     `json:"report"`
	Evaluation   *domain.Evaluation `json:"my_evaluation"`
}

// JurorDefense is the detail view of a defense for a juror.
type JurorDefense struct {
	AssignedDefense
	Jury []JurySeat `json:"jury"`
}

// ReportFile is an open report download. The caller closes Body.
type ReportFile struct {
	Name string
	Body io.ReadCloser
}

// AssignedDefenses lists every defense the professor sits on.
func (a *App) AssignedDefenses(professor domain.User) ([]AssignedDefense, error) {
	seats, err := a.store.ListJuryByProfessor(professor.ID)
	if err != nil {
		return nil, fmt.Errorf("list jury seats: %w", err)
	}
	mine, err := a.evaluationsBy(professor.ID)
	if err != nil {
		return nil, err
	}
	out := make([]AssignedDefense, 0, len(seats))
	for _, seat := range seats {
		d, ok, err := a.store.GetDefense(seat.DefenseID)
		if err != nil {
			return nil, fmt.Errorf("fetch defense: %w", err)
		}
		if !ok {
			continue
		}
		view, err := a.assignedView(d, seat, mine)
		if err != nil {
			return nil, err
		}
		out = append(out, view)
	}
	return out, nil
}

// JurorDefenseDetail returns a defense to one of its jurors and records the
// report view.
func (a *App) JurorDefenseDetail(ctx context.Context, professor domain.User, defenseID string) (JurorDefense, error) {
	d, seat, err := a.jurorAccess(a.store, professor, defenseID)
	if err != nil {
		return JurorDefense{}, err
	}
	mine, err := a.evaluationsBy(professor.ID)
	if err != nil {
		return JurorDefense{}, err
	}
	view, err := a.assignedView(d, seat, mine)
	if err != nil {
		return JurorDefense{}, err
	}
	jury, err := a.juryOf(d.ID)
	if err != nil {
		return JurorDefense{}, err
	}
	if view.Report != nil {
		a.logAccess(ctx, view.Report.ID, professor.ID, domain.AccessView)
	}
	return JurorDefense{AssignedDefense: view, Jury: jury}, nil
}

// DownloadReport opens the defense report for a juror and records the download.
func (a *App) DownloadReport(ctx context.Context, professor domain.User, defenseID string) (ReportFile, error) {
	d, _, err := a.jurorAccess(a.store, professor, defenseID)
	if err != nil {
		return ReportFile{}, err
	}
	report, err := a.reportOf(d)
	if err != nil {
		return ReportFile{}, err
	}
	if report == nil {
		return ReportFile{}, ErrReportNotFound
	}
	if err := storage.ValidateKey(report.StorageKey); err != nil {
		return ReportFile{}, ErrReportFileMissing
	}
	body, err := a.reports.Open(ctx, report.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ReportFile{}, ErrReportFileMissing
		}
		return ReportFile{}, fmt.Errorf("open report: %w", err)
	}
	a.logAccess(ctx, report.ID, professor.ID, domain.AccessDownload)
	return ReportFile{Name: fmt.Sprintf("report-defense-%s.pdf", d.ID), Body: body}, nil
}

// SubmitEvaluation records the juror's score, updating their earlier
// evaluation if any, and marks the defense evaluated.
func (a *App) SubmitEvaluation(professor domain.User, defenseID string, score float64, comments string) (domain.Evaluation, error) {
	if _, _, err := a.jurorAccess(a.store, professor, defenseID); err != nil {
		return domain.Evaluation{}, err
	}
	if math.IsNaN(score) || score < domain.MinScore || score > domain.MaxScore {
		return domain.Evaluation{}, ErrScoreOutOfRange
	}
	var saved domain.Evaluation
	err := a.store.WithinTx(func(tx store.Store) error {
		// The seat may have moved since the first check.
		d, _, err := a.jurorAccess(tx, professor, defenseID)
		if err != nil {
			return err
		}
		now := a.now()
		saved, err = tx.UpsertEvaluation(domain.Evaluation{
			ID:          a.newID(),
			DefenseID:   defenseID,
			ProfessorID: professor.ID,
			Score:       score,
			Comments:    strings.TrimSpace(comments),
			SubmittedAt: now,
			UpdatedAt:   now,
		})
		if err != nil {
			return fmt.Errorf("save evaluation: %w", err)
		}
		if d.Status != domain.DefenseEvaluated {
			d.Status = domain.DefenseEvaluated
			d.UpdatedAt = now
			if err := tx.UpdateDefense(d); err != nil {
				return fmt.Errorf("mark defense evaluated: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return domain.Evaluation{}, err
	}
	return saved, nil
}

// ProfessorEvaluations lists the professor's evaluations, newest first.
func (a *App) ProfessorEvaluations(professor domain.User) ([]domain.Evaluation, error) {
	evals, err := a.store.ListEvaluationsByProfessor(professor.ID)
	if err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	return evals, nil
}

// Evaluations lists every evaluation of a defense.
func (a *App) Evaluations(defenseID string) ([]domain.Evaluation, error) {
	if _, err := a.getDefense(defenseID); err != nil {
		return nil, err
	}
	evals, err := a.store.ListEvaluations(defenseID)
	if err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	return evals, nil
}

// jurorAccess loads a defense and the caller's seat on its jury from s.
func (a *App) jurorAccess(s store.Store, professor domain.User, defenseID string) (domain.ThesisDefense, domain.JuryMember, error) {
	d, ok, err := s.GetDefense(defenseID)
	if err != nil {
		return domain.ThesisDefense{}, domain.JuryMember{}, fmt.Errorf("fetch defense: %w", err)
	}
	if !ok {
		return domain.ThesisDefense{}, domain.JuryMember{}, ErrDefenseNotFound
	}
	seat, ok, err := s.GetJuryMember(defenseID, professor.ID)
	if err != nil {
		return domain.ThesisDefense{}, domain.JuryMember{}, fmt.Errorf("fetch jury member: %w", err)
	}
	if !ok {
		return domain.ThesisDefense{}, domain.JuryMember{}, ErrNotJuryMember
	}
	return d, seat, nil
}

func (a *App) evaluationsBy(professorID string) (map[string]domain.Evaluation, error) {
	evals, err := a.store.ListEvaluationsByProfessor(professorID)
	if err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	byDefense := make(map[string]domain.Evaluation, len(evals))
	for _, e := range evals {
		byDefense[e.DefenseID] = e
	}
	return byDefense, nil
}

func (a *App) assignedView(d domain.ThesisDefense, seat domain.JuryMember, mine map[string]domain.Evaluation) (AssignedDefense, error) {
	report, err := a.reportOf(d)
	if err != nil {
		return AssignedDefense{}, err
	}
	student, _, err := a.store.GetUserByID(d.StudentID)
	if err != nil {
		return AssignedDefense{}, fmt.Errorf("fetch student: %w", err)
	}
	view := AssignedDefense{
		ThesisDefense: d,
		StudentName:   student.FullName(),
		StudentEmail:  student.Email,
		JuryRole:      seat.Role,
		Report:        report,
	}
	if e, ok := mine[d.ID]; ok {
		view.Evaluation = &e
	}
	return view, nil
}

// logAccess appends to the report access log. Failures are logged only.
func (a *App) logAccess(ctx context.Context, reportID, professorID string, action domain.ReportAccessAction) {
	entry := domain.ReportAccess{
		ID:          a.newID(),
		ReportID:    reportID,
		ProfessorID: professorID,
		Action:      action,
		CreatedAt:   a.now(),
	}
	if err := a.store.AppendReportAccess(entry); err != nil {
		util.LoggerFromContext(ctx).Warn("report access log failed", "report_id", reportID, "action", action, "err", err)
	}
}
