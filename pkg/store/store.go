package store

import (
	"errors"
	"time"

	"soutenance/pkg/domain"
)

var (
	// ErrConflict reports a uniqueness violation.
	ErrConflict = errors.New("store: unique constraint violated")
	// ErrNotFound reports an update against a missing row.
	ErrNotFound = errors.New("store: record not found")
)

// UserFilter narrows ListUsers. Nil fields match everything.
type UserFilter struct {
	Role   *domain.UserRole
	Active *bool
}

// Store defines persistence operations for the defense workflow.
type Store interface {
	// WithinTx runs fn against a transactional view of the store. Any error
	// returned by fn rolls back every write made through that view.
	WithinTx(fn func(Store) error) error

	// users
	CreateUser(domain.User) error
	UpdateUser(domain.User) error
	DeleteUser(id string) error
	GetUserByID(id string) (domain.User, bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	HasUserEmail(email string) (bool, error)
	HasCNI(cni string) (bool, error)
	HasCNE(cne string) (bool, error)
	ListUsers(filter UserFilter) ([]domain.User, error)
	CountUsers(role domain.UserRole) (int, error)

	// reports
	CreateReport(domain.Report) error
	GetReport(id string) (domain.Report, bool, error)
	ListRecentReports(excludeStudentID string, limit int) ([]domain.Report, error)

	// defenses
	CreateDefense(domain.ThesisDefense) error
	UpdateDefense(domain.ThesisDefense) error
	GetDefense(id string) (domain.ThesisDefense, bool, error)
	ListDefenses(skip, limit int) ([]domain.ThesisDefense, error)
	ListDefensesByStudent(studentID string) ([]domain.ThesisDefense, error)

	// jury
	AddJuryMember(domain.JuryMember) error
	GetJuryMember(defenseID, professorID string) (domain.JuryMember, bool, error)
	ReplaceJuryMember(defenseID, professorID string, m domain.JuryMember) error
	ListJury(defenseID string) ([]domain.JuryMember, error)
	ListJuryByProfessor(professorID string) ([]domain.JuryMember, error)

	// evaluations
	UpsertEvaluation(domain.Evaluation) (domain.Evaluation, error)
	ListEvaluations(defenseID string) ([]domain.Evaluation, error)
	ListEvaluationsByProfessor(professorID string) ([]domain.Evaluation, error)

	// notifications
	AppendNotification(domain.Notification) error
	GetNotification(id string) (domain.Notification, bool, error)
	ListNotifications(userID string) ([]domain.Notification, error)
	MarkNotificationRead(id string) error

	// report access log
	AppendReportAccess(domain.ReportAccess) error
	ListReportAccess(reportID string) ([]domain.ReportAccess, error)
}

// Claims is the verified content of a bearer token.
type Claims struct {
	TokenID   string
	UserID    string
	Email     string
	Role      domain.UserRole
	ExpiresAt time.Time
}

// SessionStore issues and verifies bearer tokens.
type SessionStore interface {
	NewSession(domain.User) (token string, expiresAt time.Time, err error)
	ParseToken(token string) (Claims, error)
	DeleteSession(token string) error
}
