package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"soutenance/pkg/ai"
	"soutenance/pkg/domain"
	"soutenance/pkg/store"
)

const maxSuggestions = 10

// JuryPatch changes a seat's role and/or moves it to another professor.
type JuryPatch struct {
	Role        *domain.JuryRole
	ProfessorID *string
}

func (a *App) getProfessor(tx store.Store, id string) (domain.User, error) {
	u, ok, err := tx.GetUserByID(id)
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch professor: %w", err)
	}
	if !ok || u.Role != domain.RoleProfessor {
		return domain.User{}, ErrProfessorNotFound
	}
	return u, nil
}

// AssignJury seats a professor on a defense jury and notifies them.
func (a *App) AssignJury(ctx context.Context, defenseID, professorID string, role domain.JuryRole) (JurySeat, error) {
	if !role.Valid() {
		return JurySeat{}, ErrInvalidJuryRole
	}
	var (
		seat JurySeat
		note domain.Notification
	)
	err := a.store.WithinTx(func(tx store.Store) error {
		d, ok, err := tx.GetDefense(defenseID)
		if err != nil {
			return fmt.Errorf("fetch defense: %w", err)
		}
		if !ok {
			return ErrDefenseNotFound
		}
		prof, err := a.getProfessor(tx, professorID)
		if err != nil {
			return err
		}
		if _, seated, err := tx.GetJuryMember(defenseID, professorID); err != nil {
			return fmt.Errorf("fetch jury member: %w", err)
		} else if seated {
			return ErrAlreadyOnJury
		}
		m := domain.JuryMember{DefenseID: defenseID, ProfessorID: professorID, Role: role, AssignedAt: a.now()}
		if err := tx.AddJuryMember(m); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return ErrAlreadyOnJury
			}
			return fmt.Errorf("add jury member: %w", err)
		}
		note = a.juryNotification(prof.ID, d, role)
		if err := tx.AppendNotification(note); err != nil {
			return fmt.Errorf("append notification: %w", err)
		}
		seat = seatOf(m, prof)
		return nil
	})
	if err != nil {
		return JurySeat{}, err
	}
	a.publish(ctx, note)
	return seat, nil
}

// UpdateJuryMember rewrites an existing seat. Moving the seat notifies the
// new professor.
func (a *App) UpdateJuryMember(ctx context.Context, defenseID, professorID string, patch JuryPatch) (JurySeat, error) {
	if patch.Role != nil && !patch.Role.Valid() {
		return JurySeat{}, ErrInvalidJuryRole
	}
	var (
		seat  JurySeat
		notes []domain.Notification
	)
	err := a.store.WithinTx(func(tx store.Store) error {
		d, ok, err := tx.GetDefense(defenseID)
		if err != nil {
			return fmt.Errorf("fetch defense: %w", err)
		}
		if !ok {
			return ErrDefenseNotFound
		}
		current, ok, err := tx.GetJuryMember(defenseID, professorID)
		if err != nil {
			return fmt.Errorf("fetch jury member: %w", err)
		}
		if !ok {
			return ErrJuryMemberNotFound
		}
		next := current
		if patch.Role != nil {
			next.Role = *patch.Role
		}
		moved := false
		if patch.ProfessorID != nil {
			target := strings.TrimSpace(*patch.ProfessorID)
			if target != "" && target != current.ProfessorID {
				next.ProfessorID = target
				next.AssignedAt = a.now()
				moved = true
			}
		}
		prof, err := a.getProfessor(tx, next.ProfessorID)
		if err != nil {
			return err
		}
		if err := tx.ReplaceJuryMember(defenseID, professorID, next); err != nil {
			switch {
			case errors.Is(err, store.ErrConflict):
				return ErrAlreadyOnJury
			case errors.Is(err, store.ErrNotFound):
				return ErrJuryMemberNotFound
			}
			return fmt.Errorf("update jury member: %w", err)
		}
		if moved {
			n := a.juryNotification(prof.ID, d, next.Role)
			if err := tx.AppendNotification(n); err != nil {
				return fmt.Errorf("append notification: %w", err)
			}
			notes = append(notes, n)
		}
		seat = seatOf(next, prof)
		return nil
	})
	if err != nil {
		return JurySeat{}, err
	}
	a.publish(ctx, notes...)
	return seat, nil
}

// Jury lists the seats of a defense in assignment order.
func (a *App) Jury(defenseID string) ([]JurySeat, error) {
	if _, err := a.getDefense(defenseID); err != nil {
		return nil, err
	}
	return a.juryOf(defenseID)
}

func (a *App) juryOf(defenseID string) ([]JurySeat, error) {
	members, err := a.store.ListJury(defenseID)
	if err != nil {
		return nil, fmt.Errorf("list jury: %w", err)
	}
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ProfessorID)
	}
	users, err := a.userNames(ids...)
	if err != nil {
		return nil, err
	}
	out := make([]JurySeat, 0, len(members))
	for _, m := range members {
		out = append(out, seatOf(m, users[m.ProfessorID]))
	}
	return out, nil
}

// SuggestJury proposes up to n professors for a defense.
func (a *App) SuggestJury(ctx context.Context, defenseID string, n int) ([]ai.JurySuggestion, error) {
	if n < 1 || n > maxSuggestions {
		return nil, ErrInvalidSuggestCount
	}
	d, err := a.getDefense(defenseID)
	if err != nil {
		return nil, err
	}
	report, err := a.reportOf(d)
	if err != nil {
		return nil, err
	}
	var domains map[string]float64
	if report != nil {
		domains = report.AIDomain
	}
	professors, err := a.Professors()
	if err != nil {
		return nil, err
	}
	roster := make([]ai.Professor, 0, len(professors))
	for _, p := range professors {
		profile, _ := p.Professor()
		roster = append(roster, ai.Professor{ID: p.ID, Name: p.FullName(), Specialty: profile.Specialty})
	}
	return a.advisor.SuggestJury(ctx, ai.JuryRequest{
		Title:      d.Title,
		Domains:    domains,
		Professors: roster,
		N:          n,
	}), nil
}

// ReportAccessLog returns who viewed or downloaded the defense report, newest first.
func (a *App) ReportAccessLog(defenseID string) ([]domain.ReportAccess, error) {
	d, err := a.getDefense(defenseID)
	if err != nil {
		return nil, err
	}
	if d.ReportID == "" {
		return []domain.ReportAccess{}, nil
	}
	entries, err := a.store.ListReportAccess(d.ReportID)
	if err != nil {
		return nil, fmt.Errorf("list report access: %w", err)
	}
	return entries, nil
}

func (a *App) juryNotification(professorID string, d domain.ThesisDefense, role domain.JuryRole) domain.Notification {
	return a.newNotification(professorID, "Jury assignment",
		fmt.Sprintf("You have been assigned as %s of the jury for '%s'.", role, d.Title),
		domain.ActionJuryAssignment)
}

func seatOf(m domain.JuryMember, prof domain.User) JurySeat {
	profile, _ := prof.Professor()
	return JurySeat{JuryMember: m, Name: prof.FullName(), Email: prof.Email, Specialty: profile.Specialty}
}
