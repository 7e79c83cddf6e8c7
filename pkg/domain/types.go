package domain

import "time"

type UserRole string

const (
	RoleStudent   UserRole = "student"
	RoleProfessor UserRole = "professor"
	RoleManager   UserRole = "manager"
	RoleAdmin     UserRole = "admin"
)

func (r UserRole) Valid() bool {
	switch r {
	case RoleStudent, RoleProfessor, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// CanManage reports whether the role may run manager operations.
func (r UserRole) CanManage() bool {
	return r == RoleManager || r == RoleAdmin
}

type User struct {
	ID           string      `json:"id"`
	Email        string      `json:"email"`
	PasswordHash string      `json:"-"`
	FirstName    string      `json:"first_name"`
	LastName     string      `json:"last_name"`
	CNI          string      `json:"cni,omitempty"`
	Phone        string      `json:"phone,omitempty"`
	Role         UserRole    `json:"role"`
	Active       bool        `json:"is_active"`
	Profile      RoleProfile `json:"profile,omitempty"`
	CreatedAt    time.Time   `json:"creation_date"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Student returns the student profile when the user is a student.
func (u User) Student() (StudentProfile, bool) {
	p, ok := u.Profile.(StudentProfile)
	return p, ok && u.Role == RoleStudent
}

// Professor returns the professor profile when the user is a professor.
func (u User) Professor() (ProfessorProfile, bool) {
	p, ok := u.Profile.(ProfessorProfile)
	return p, ok && u.Role == RoleProfessor
}

// RoleProfile is the role-specific record owned by a user.
// Students, professors and managers carry exactly one variant matching
// their role; admins carry none.
type RoleProfile interface {
	ProfileRole() UserRole
}

type StudentProfile struct {
	Major string `json:"major"`
	CNE   string `json:"cne"`
	Year  int    `json:"year"`
}

func (StudentProfile) ProfileRole() UserRole { return RoleStudent }

type ProfessorProfile struct {
	Specialty string `json:"specialty"`
}

func (ProfessorProfile) ProfileRole() UserRole { return RoleProfessor }

type ManagerProfile struct{}

func (ManagerProfile) ProfileRole() UserRole { return RoleManager }

type Report struct {
	ID                string             `json:"id"`
	StudentID         string             `json:"student_id"`
	StorageKey        string             `json:"-"`
	FileName          string             `json:"file_name"`
	SizeBytes         int64              `json:"size_bytes"`
	AISummary         string             `json:"ai_summary"`
	AIDomain          map[string]float64 `json:"ai_domain"`
	AISimilarityScore *float64           `json:"ai_similarity_score"`
	SimilarTo         string             `json:"similar_to,omitempty"`
	Excerpt           string             `json:"-"`
	SubmittedAt       time.Time          `json:"submission_date"`
}

type DefenseStatus string

const (
	DefensePending   DefenseStatus = "pending"
	DefenseAccepted  DefenseStatus = "accepted"
	DefenseRefused   DefenseStatus = "refused"
	DefenseScheduled DefenseStatus = "scheduled"
	DefenseEvaluated DefenseStatus = "evaluated"
)

var DefenseStatuses = []DefenseStatus{
	DefensePending,
	DefenseAccepted,
	DefenseRefused,
	DefenseScheduled,
	DefenseEvaluated,
}

var defenseTransitions = map[DefenseStatus][]DefenseStatus{
	DefensePending:   {DefenseAccepted, DefenseRefused},
	DefenseAccepted:  {DefenseScheduled, DefenseRefused},
	DefenseScheduled: {DefenseEvaluated},
}

func (s DefenseStatus) Valid() bool {
	for _, known := range DefenseStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// CanTransition reports whether a manager may move a defense from s to next.
// Keeping the current status is always allowed.
func (s DefenseStatus) CanTransition(next DefenseStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range defenseTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type ThesisDefense struct {
	ID          string        `json:"id"`
	StudentID   string        `json:"student_id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Status      DefenseStatus `json:"status"`
	DefenseDate string        `json:"defense_date,omitempty"`
	DefenseTime string        `json:"defense_time,omitempty"`
	ReportID    string        `json:"report_id,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

type JuryRole string

const (
	JuryPresident  JuryRole = "president"
	JuryMemberRole JuryRole = "member"
	JurySecretary  JuryRole = "secretary"
	JuryExaminer   JuryRole = "examiner"
)

func (r JuryRole) Valid() bool {
	switch r {
	case JuryPresident, JuryMemberRole, JurySecretary, JuryExaminer:
		return true
	}
	return false
}

type JuryMember struct {
	DefenseID   string    `json:"thesis_defense_id"`
	ProfessorID string    `json:"professor_id"`
	Role        JuryRole  `json:"role"`
	AssignedAt  time.Time `json:"assigned_at"`
}

const (
	MinScore = 0.0
	MaxScore = 20.0
)

type Evaluation struct {
	ID          string    `json:"id"`
	DefenseID   string    `json:"thesis_defense_id"`
	ProfessorID string    `json:"professor_id"`
	Score       float64   `json:"score"`
	Comments    string    `json:"comments"`
	SubmittedAt time.Time `json:"submission_date"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Notification struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	ActionType string    `json:"action_type"`
	IsRead     bool      `json:"is_read"`
	CreatedAt  time.Time `json:"creation_date"`
}

const (
	ActionJuryAssignment = "jury_assignment"
	ActionStatusChange   = "status_change"
	ActionAccountActive  = "account_approved"
)

type ReportAccessAction string

const (
	AccessView     ReportAccessAction = "view"
	AccessDownload ReportAccessAction = "download"
)

type ReportAccess struct {
	ID          string             `json:"id"`
	ReportID    string             `json:"report_id"`
	ProfessorID string             `json:"professor_id"`
	Action      ReportAccessAction `json:"action"`
	CreatedAt   time.Time          `json:"action_date"`
}
