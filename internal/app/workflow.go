package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"soutenance/pkg/domain"
	"soutenance/pkg/store"
)

// DefenseView is a defense joined with its student's identity.
type DefenseView struct {
	domain.ThesisDefense
	StudentName  string `json:"student_name"`
	StudentEmail string `json:"student_email,omitempty"`
}

// DefensePatch carries the manager-editable fields. Nil fields are left as is;
// an empty date or time clears the schedule.
type DefensePatch struct {
	Title       *string
	Description *string
	Status      *domain.DefenseStatus
	DefenseDate *string
	DefenseTime *string
}

// ListDefenses returns a page of defenses, newest first.
func (a *App) ListDefenses(skip, limit int) ([]DefenseView, error) {
	if skip < 0 {
		skip = 0
	}
	defenses, err := a.store.ListDefenses(skip, limit)
	if err != nil {
		return nil, fmt.Errorf("list defenses: %w", err)
	}
	ids := make([]string, 0, len(defenses))
	for _, d := range defenses {
		ids = append(ids, d.StudentID)
	}
	users, err := a.userNames(ids...)
	if err != nil {
		return nil, err
	}
	out := make([]DefenseView, 0, len(defenses))
	for _, d := range defenses {
		student := users[d.StudentID]
		out = append(out, DefenseView{ThesisDefense: d, StudentName: student.FullName(), StudentEmail: student.Email})
	}
	return out, nil
}

// UpdateDefense applies a manager patch. Status changes follow the
// transition table unless free-form transitions are enabled, and notify
// the student.
func (a *App) UpdateDefense(ctx context.Context, id string, patch DefensePatch) (domain.ThesisDefense, error) {
	var (
		updated domain.ThesisDefense
		notes   []domain.Notification
	)
	err := a.store.WithinTx(func(tx store.Store) error {
		d, ok, err := tx.GetDefense(id)
		if err != nil {
			return fmt.Errorf("fetch defense: %w", err)
		}
		if !ok {
			return ErrDefenseNotFound
		}
		previous := d.Status
		if err := a.applyPatch(&d, patch); err != nil {
			return err
		}
		d.UpdatedAt = a.now()
		if err := tx.UpdateDefense(d); err != nil {
			return fmt.Errorf("update defense: %w", err)
		}
		if d.Status != previous {
			n := a.newNotification(d.StudentID, "Defense request updated",
				fmt.Sprintf("Your defense request '%s' is now %s.", d.Title, d.Status),
				domain.ActionStatusChange)
			if err := tx.AppendNotification(n); err != nil {
				return fmt.Errorf("append notification: %w", err)
			}
			notes = append(notes, n)
		}
		updated = d
		return nil
	})
	if err != nil {
		return domain.ThesisDefense{}, err
	}
	a.publish(ctx, notes...)
	return updated, nil
}

func (a *App) applyPatch(d *domain.ThesisDefense, patch DefensePatch) error {
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return ErrTitleRequired
		}
		d.Title = title
	}
	if patch.Description != nil {
		d.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.DefenseDate != nil {
		date := strings.TrimSpace(*patch.DefenseDate)
		if date != "" {
			if _, err := time.Parse(domain.DateLayout, date); err != nil {
				return ErrInvalidDate
			}
		}
		d.DefenseDate = date
	}
	if patch.DefenseTime != nil {
		clock := strings.TrimSpace(*patch.DefenseTime)
		if clock != "" {
			if _, err := time.Parse(domain.TimeLayout, clock); err != nil {
				return ErrInvalidTime
			}
		}
		d.DefenseTime = clock
	}
	if patch.Status != nil {
		next := *patch.Status
		if !next.Valid() {
			return ErrInvalidStatus
		}
		if !a.anyTransition && !d.Status.CanTransition(next) {
			return &Error{
				Kind: KindBadRequest,
				Msg:  fmt.Sprintf("cannot move a defense from %s to %s", d.Status, next),
				Err:  ErrInvalidTransition,
			}
		}
		d.Status = next
	}
	return nil
}

// StudentDefenses returns the student's own requests, newest first.
func (a *App) StudentDefenses(student domain.User) ([]domain.ThesisDefense, error) {
	defenses, err := a.store.ListDefensesByStudent(student.ID)
	if err != nil {
		return nil, fmt.Errorf("list student defenses: %w", err)
	}
	return defenses, nil
}

// Dashboard summarizes a student's requests.
type Dashboard struct {
	Total    int                    `json:"total"`
	Pending  int                    `json:"pending"`
	Accepted int                    `json:"accepted"`
	Refused  int                    `json:"refused"`
	Recent   []domain.ThesisDefense `json:"recent"`
	Upcoming []domain.ThesisDefense `json:"upcoming"`
}

const dashboardRecent = 5

// StudentDashboard counts the student's requests by status and lists the
// most recent ones and the scheduled defenses still ahead.
func (a *App) StudentDashboard(student domain.User) (Dashboard, error) {
	defenses, err := a.StudentDefenses(student)
	if err != nil {
		return Dashboard{}, err
	}
	today := a.now().Format(domain.DateLayout)
	dash := Dashboard{
		Total:    len(defenses),
		Recent:   []domain.ThesisDefense{},
		Upcoming: []domain.ThesisDefense{},
	}
	for i, d := range defenses {
		switch d.Status {
		case domain.DefensePending:
			dash.Pending++
		case domain.DefenseAccepted:
			dash.Accepted++
		case domain.DefenseRefused:
			dash.Refused++
		}
		if i < dashboardRecent {
			dash.Recent = append(dash.Recent, d)
		}
		// DateLayout sorts lexically.
		if d.Status == domain.DefenseScheduled && d.DefenseDate != "" && d.DefenseDate >= today {
			dash.Upcoming = append(dash.Upcoming, d)
		}
	}
	sort.SliceStable(dash.Upcoming, func(i, j int) bool {
		x, y := dash.Upcoming[i], dash.Upcoming[j]
		if x.DefenseDate != y.DefenseDate {
			return x.DefenseDate < y.DefenseDate
		}
		return x.DefenseTime < y.DefenseTime
	})
	return dash, nil
}

// JurySeat is a jury member with the professor's identity.
type JurySeat struct {
	domain.JuryMember
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Specialty string `json:"specialty,omitempty"`
}

// DefenseDetail is a defense with its report and jury.
type DefenseDetail struct {
	domain.ThesisDefense
	StudentName string         `json:"student_name"`
	Report      *domain.Report `json:"report"`
	Jury        []JurySeat     `json:"jury"`
}

// StudentDefense returns one of the student's own requests.
func (a *App) StudentDefense(student domain.User, id string) (DefenseDetail, error) {
	d, err := a.getDefense(id)
	if err != nil {
		return DefenseDetail{}, err
	}
	if d.StudentID != student.ID {
		return DefenseDetail{}, ErrNotOwner
	}
	return a.defenseDetail(d, student)
}

func (a *App) defenseDetail(d domain.ThesisDefense, student domain.User) (DefenseDetail, error) {
	report, err := a.reportOf(d)
	if err != nil {
		return DefenseDetail{}, err
	}
	jury, err := a.juryOf(d.ID)
	if err != nil {
		return DefenseDetail{}, err
	}
	return DefenseDetail{ThesisDefense: d, StudentName: student.FullName(), Report: report, Jury: jury}, nil
}

// Stats is the manager overview.
type Stats struct {
	TotalDefenses   int                          `json:"total_defenses"`
	TotalStudents   int                          `json:"total_students"`
	TotalProfessors int                          `json:"total_professors"`
	ByStatus        map[domain.DefenseStatus]int `json:"by_status"`
	Monthly         map[string]int               `json:"monthly"`
}

// Stats counts defenses per status and per month of their defense date.
func (a *App) Stats() (Stats, error) {
	defenses, err := a.store.ListDefenses(0, 0)
	if err != nil {
		return Stats{}, fmt.Errorf("list defenses: %w", err)
	}
	students, err := a.store.CountUsers(domain.RoleStudent)
	if err != nil {
		return Stats{}, fmt.Errorf("count students: %w", err)
	}
	professors, err := a.store.CountUsers(domain.RoleProfessor)
	if err != nil {
		return Stats{}, fmt.Errorf("count professors: %w", err)
	}
	stats := Stats{
		TotalDefenses:   len(defenses),
		TotalStudents:   students,
		TotalProfessors: professors,
		ByStatus:        make(map[domain.DefenseStatus]int, len(domain.DefenseStatuses)),
		Monthly:         map[string]int{},
	}
	for _, s := range domain.DefenseStatuses {
		stats.ByStatus[s] = 0
	}
	for _, d := range defenses {
		stats.ByStatus[d.Status]++
		if len(d.DefenseDate) >= len("2006-01") {
			stats.Monthly[d.DefenseDate[:len("2006-01")]]++
		}
	}
	return stats, nil
}
