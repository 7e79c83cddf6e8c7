package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string  `gorm:"primaryKey"`
	Email        string  `gorm:"uniqueIndex;not null"`
	PasswordHash string  `gorm:"not null"`
	FirstName    string  `gorm:"not null"`
	LastName     string  `gorm:"not null"`
	CNI          *string `gorm:"uniqueIndex"`
	Phone        string
	Role         string          `gorm:"not null;index"`
	Active       bool            `gorm:"not null"`
	Student      *StudentModel   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Professor    *ProfessorModel `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Manager      *ManagerModel   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time       `gorm:"not null"`
	UpdatedAt    time.Time
}

type StudentModel struct {
	UserID string `gorm:"primaryKey"`
	Major  string
	CNE    string `gorm:"uniqueIndex;not null"`
	Year   int
}

type ProfessorModel struct {
	UserID    string `gorm:"primaryKey"`
	Specialty string
}

type ManagerModel struct {
	UserID string `gorm:"primaryKey"`
}

type ReportModel struct {
	ID                string            `gorm:"primaryKey"`
	StudentID         string            `gorm:"not null;index"`
	StorageKey        string            `gorm:"not null"`
	FileName          string            `gorm:"not null"`
	SizeBytes         int64             `gorm:"not null"`
	AISummary         string            `gorm:"type:text"`
	AIDomain          datatypes.JSONMap `gorm:"type:jsonb"`
	AISimilarityScore *float64
	SimilarTo         string
	Excerpt           string    `gorm:"type:text"`
	SubmittedAt       time.Time `gorm:"not null;index"`
}

type DefenseModel struct {
	ID          string    `gorm:"primaryKey"`
	StudentID   string    `gorm:"not null;index"`
	Title       string    `gorm:"not null"`
	Description string    `gorm:"type:text"`
	Status      string    `gorm:"not null;index"`
	DefenseDate string    `gorm:"size:10"`
	DefenseTime string    `gorm:"size:5"`
	ReportID    *string   `gorm:"uniqueIndex"`
	CreatedAt   time.Time `gorm:"not null;index"`
	UpdatedAt   time.Time `gorm:"not null"`
}

type JuryMemberModel struct {
	DefenseID   string    `gorm:"primaryKey"`
	ProfessorID string    `gorm:"primaryKey;index"`
	Role        string    `gorm:"not null"`
	AssignedAt  time.Time `gorm:"not null"`
}

type EvaluationModel struct {
	ID          string    `gorm:"primaryKey"`
	DefenseID   string    `gorm:"not null;uniqueIndex:idx_evaluation_defense_professor"`
	ProfessorID string    `gorm:"not null;uniqueIndex:idx_evaluation_defense_professor;index"`
	Score       float64   `gorm:"not null"`
	Comments    string    `gorm:"type:text"`
	SubmittedAt time.Time `gorm:"not null;index"`
	UpdatedAt   time.Time `gorm:"not null"`
}

type NotificationModel struct {
	ID         string `gorm:"primaryKey"`
	UserID     string `gorm:"not null;index"`
	Title      string `gorm:"not null"`
	Message    string `gorm:"type:text"`
	ActionType string
	IsRead     bool      `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null;index"`
}

type ReportAccessModel struct {
	ID          string    `gorm:"primaryKey"`
	ReportID    string    `gorm:"not null;index"`
	ProfessorID string    `gorm:"not null;index"`
	Action      string    `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null;index"`
}
