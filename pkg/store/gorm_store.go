package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	"soutenance/pkg/domain"
)

const migrateLockID int64 = 51727301

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
	tx bool
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog, TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&UserModel{},
			&StudentModel{},
			&ProfessorModel{},
			&ManagerModel{},
			&ReportModel{},
			&DefenseModel{},
			&JuryMemberModel{},
			&EvaluationModel{},
			&NotificationModel{},
			&ReportAccessModel{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		if err := tx.Exec(`
			DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'defense_models'
					AND constraint_name = 'defense_models_report_id_fkey'
				) THEN
					ALTER TABLE defense_models
					ADD CONSTRAINT defense_models_report_id_fkey
					FOREIGN KEY (report_id) REFERENCES report_models(id);
				END IF;
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'jury_member_models'
					AND constraint_name = 'jury_member_models_defense_id_fkey'
				) THEN
					ALTER TABLE jury_member_models
					ADD CONSTRAINT jury_member_models_defense_id_fkey
					FOREIGN KEY (defense_id) REFERENCES defense_models(id) ON DELETE CASCADE;
				END IF;
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'evaluation_models'
					AND constraint_name = 'evaluation_models_defense_id_fkey'
				) THEN
					ALTER TABLE evaluation_models
					ADD CONSTRAINT evaluation_models_defense_id_fkey
					FOREIGN KEY (defense_id) REFERENCES defense_models(id) ON DELETE CASCADE;
				END IF;
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'notification_models'
					AND constraint_name = 'notification_models_user_id_fkey'
				) THEN
					ALTER TABLE notification_models
					ADD CONSTRAINT notification_models_user_id_fkey
					FOREIGN KEY (user_id) REFERENCES user_models(id) ON DELETE CASCADE;
				END IF;
			END $$;
		`).Error; err != nil {
			return fmt.Errorf("ensure defense foreign keys: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

// WithinTx runs fn inside a database transaction.
func (s *GormStore) WithinTx(fn func(Store) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx, tx: true})
	})
}

// lockRows takes row locks on reads made inside WithinTx so the checks an
// operation runs before writing hold until commit.
func (s *GormStore) lockRows(db *gorm.DB) *gorm.DB {
	if !s.tx {
		return db
	}
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

func (s *GormStore) users() *gorm.DB {
	return s.db.Preload("Student").Preload("Professor").Preload("Manager")
}

// CreateUser inserts a user together with its role profile.
func (s *GormStore) CreateUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&model).Error; err != nil {
			return translateError(err)
		}
		switch {
		case model.Student != nil:
			return translateError(tx.Create(model.Student).Error)
		case model.Professor != nil:
			return translateError(tx.Create(model.Professor).Error)
		case model.Manager != nil:
			return translateError(tx.Create(model.Manager).Error)
		}
		return nil
	})
}

// UpdateUser updates account fields and the role profile.
func (s *GormStore) UpdateUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&UserModel{}).Where("id = ?", u.ID).Updates(map[string]any{
			"first_name": model.FirstName,
			"last_name":  model.LastName,
			"phone":      model.Phone,
			"active":     model.Active,
			"updated_at": time.Now().UTC(),
		})
		if res.Error != nil {
			return translateError(res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		switch {
		case model.Student != nil:
			return translateError(tx.Model(&StudentModel{}).Where("user_id = ?", u.ID).Updates(map[string]any{
				"major": model.Student.Major,
				"year":  model.Student.Year,
			}).Error)
		case model.Professor != nil:
			return tx.Model(&ProfessorModel{}).Where("user_id = ?", u.ID).
				Update("specialty", model.Professor.Specialty).Error
		}
		return nil
	})
}

// DeleteUser removes a user and its role profile.
func (s *GormStore) DeleteUser(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&StudentModel{}, "user_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&ProfessorModel{}, "user_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&ManagerModel{}, "user_id = ?", id).Error; err != nil {
			return err
		}
		res := tx.Delete(&UserModel{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.lockRows(s.users()).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.users().Where("email = ?", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	return s.exists(&UserModel{}, "email = ?", email)
}

// HasCNI checks if a national identity number is taken.
func (s *GormStore) HasCNI(cni string) (bool, error) {
	return s.exists(&UserModel{}, "cni = ?", cni)
}

// HasCNE checks if a student number is taken.
func (s *GormStore) HasCNE(cne string) (bool, error) {
	return s.exists(&StudentModel{}, "cne = ?", cne)
}

func (s *GormStore) exists(model any, query string, args ...any) (bool, error) {
	var count int64
	if err := s.db.Model(model).Where(query, args...).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListUsers returns users matching filter ordered by created_at.
func (s *GormStore) ListUsers(filter UserFilter) ([]domain.User, error) {
	tx := s.users().Order("created_at ASC")
	if filter.Role != nil {
		tx = tx.Where("role = ?", string(*filter.Role))
	}
	if filter.Active != nil {
		tx = tx.Where("active = ?", *filter.Active)
	}
	var models []UserModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		res = append(res, userFromModel(m))
	}
	return res, nil
}

// CountUsers returns the number of users with role.
func (s *GormStore) CountUsers(role domain.UserRole) (int, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("role = ?", string(role)).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// CreateReport stores a report record.
func (s *GormStore) CreateReport(r domain.Report) error {
	model := reportToModel(r)
	return translateError(s.db.Create(&model).Error)
}

// GetReport retrieves a report.
func (s *GormStore) GetReport(id string) (domain.Report, bool, error) {
	var model ReportModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Report{}, false, nil
		}
		return domain.Report{}, false, err
	}
	return reportFromModel(model), true, nil
}

// ListRecentReports returns the latest reports not owned by excludeStudentID.
func (s *GormStore) ListRecentReports(excludeStudentID string, limit int) ([]domain.Report, error) {
	if limit <= 0 {
		limit = 5
	}
	var models []ReportModel
	if err := s.db.Where("student_id <> ?", excludeStudentID).
		Order("submitted_at DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Report, 0, len(models))
	for _, m := range models {
		res = append(res, reportFromModel(m))
	}
	return res, nil
}

// CreateDefense stores a new defense.
func (s *GormStore) CreateDefense(d domain.ThesisDefense) error {
	model := defenseToModel(d)
	return translateError(s.db.Create(&model).Error)
}

// UpdateDefense saves the mutable fields of a defense.
func (s *GormStore) UpdateDefense(d domain.ThesisDefense) error {
	res := s.db.Model(&DefenseModel{}).Where("id = ?", d.ID).Updates(map[string]any{
		"title":        d.Title,
		"description":  d.Description,
		"status":       string(d.Status),
		"defense_date": d.DefenseDate,
		"defense_time": d.DefenseTime,
		"updated_at":   time.Now().UTC(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetDefense retrieves a defense.
func (s *GormStore) GetDefense(id string) (domain.ThesisDefense, bool, error) {
	var model DefenseModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ThesisDefense{}, false, nil
		}
		return domain.ThesisDefense{}, false, err
	}
	return defenseFromModel(model), true, nil
}

// ListDefenses returns defenses newest first. A non-positive limit returns all rows after skip.
func (s *GormStore) ListDefenses(skip, limit int) ([]domain.ThesisDefense, error) {
	tx := s.db.Order("created_at DESC").Order("id DESC")
	if skip > 0 {
		tx = tx.Offset(skip)
	}
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	return s.findDefenses(tx)
}

// ListDefensesByStudent returns the student's defenses newest first.
func (s *GormStore) ListDefensesByStudent(studentID string) ([]domain.ThesisDefense, error) {
	return s.findDefenses(s.db.Where("student_id = ?", studentID).Order("created_at DESC").Order("id DESC"))
}

func (s *GormStore) findDefenses(tx *gorm.DB) ([]domain.ThesisDefense, error) {
	var models []DefenseModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.ThesisDefense, 0, len(models))
	for _, m := range models {
		res = append(res, defenseFromModel(m))
	}
	return res, nil
}

// AddJuryMember seats a professor on a defense jury.
func (s *GormStore) AddJuryMember(m domain.JuryMember) error {
	model := juryToModel(m)
	return translateError(s.db.Create(&model).Error)
}

// GetJuryMember returns the seat of professorID on defenseID.
func (s *GormStore) GetJuryMember(defenseID, professorID string) (domain.JuryMember, bool, error) {
	var model JuryMemberModel
	if err := s.lockRows(s.db).First(&model, "defense_id = ? AND professor_id = ?", defenseID, professorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.JuryMember{}, false, nil
		}
		return domain.JuryMember{}, false, err
	}
	return juryFromModel(model), true, nil
}

// ReplaceJuryMember rewrites a seat, possibly moving it to another professor.
func (s *GormStore) ReplaceJuryMember(defenseID, professorID string, m domain.JuryMember) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&JuryMemberModel{}, "defense_id = ? AND professor_id = ?", defenseID, professorID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		model := juryToModel(m)
		return translateError(tx.Create(&model).Error)
	})
}

// ListJury returns the jury of a defense in assignment order.
func (s *GormStore) ListJury(defenseID string) ([]domain.JuryMember, error) {
	return s.findJury(s.db.Where("defense_id = ?", defenseID))
}

// ListJuryByProfessor returns every seat held by a professor.
func (s *GormStore) ListJuryByProfessor(professorID string) ([]domain.JuryMember, error) {
	return s.findJury(s.db.Where("professor_id = ?", professorID))
}

func (s *GormStore) findJury(tx *gorm.DB) ([]domain.JuryMember, error) {
	var models []JuryMemberModel
	if err := tx.Order("assigned_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.JuryMember, 0, len(models))
	for _, m := range models {
		res = append(res, juryFromModel(m))
	}
	return res, nil
}

// UpsertEvaluation inserts or updates the evaluation of (defense, professor).
// An existing row keeps its ID and submission date.
func (s *GormStore) UpsertEvaluation(e domain.Evaluation) (domain.Evaluation, error) {
	model := evaluationToModel(e)
	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "defense_id"}, {Name: "professor_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"score", "comments", "updated_at"}),
	}).Create(&model).Error; err != nil {
		return domain.Evaluation{}, err
	}
	var stored EvaluationModel
	if err := s.db.First(&stored, "defense_id = ? AND professor_id = ?", e.DefenseID, e.ProfessorID).Error; err != nil {
		return domain.Evaluation{}, err
	}
	return evaluationFromModel(stored), nil
}

// ListEvaluations returns evaluations of a defense.
func (s *GormStore) ListEvaluations(defenseID string) ([]domain.Evaluation, error) {
	return s.findEvaluations(s.db.Where("defense_id = ?", defenseID).Order("submitted_at ASC"))
}

// ListEvaluationsByProfessor returns a professor's evaluations newest first.
func (s *GormStore) ListEvaluationsByProfessor(professorID string) ([]domain.Evaluation, error) {
	return s.findEvaluations(s.db.Where("professor_id = ?", professorID).Order("updated_at DESC"))
}

func (s *GormStore) findEvaluations(tx *gorm.DB) ([]domain.Evaluation, error) {
	var models []EvaluationModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Evaluation, 0, len(models))
	for _, m := range models {
		res = append(res, evaluationFromModel(m))
	}
	return res, nil
}

// AppendNotification records a notification.
func (s *GormStore) AppendNotification(n domain.Notification) error {
	model := notificationToModel(n)
	return s.db.Create(&model).Error
}

// GetNotification returns a notification by ID.
func (s *GormStore) GetNotification(id string) (domain.Notification, bool, error) {
	var model NotificationModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Notification{}, false, nil
		}
		return domain.Notification{}, false, err
	}
	return notificationFromModel(model), true, nil
}

// ListNotifications returns a user's notifications newest first.
func (s *GormStore) ListNotifications(userID string) ([]domain.Notification, error) {
	var models []NotificationModel
	if err := s.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Notification, 0, len(models))
	for _, m := range models {
		res = append(res, notificationFromModel(m))
	}
	return res, nil
}

// MarkNotificationRead sets is_read on a notification.
func (s *GormStore) MarkNotificationRead(id string) error {
	res := s.db.Model(&NotificationModel{}).Where("id = ?", id).Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendReportAccess records a juror reading or downloading a report.
func (s *GormStore) AppendReportAccess(a domain.ReportAccess) error {
	model := ReportAccessModel{
		ID:          a.ID,
		ReportID:    a.ReportID,
		ProfessorID: a.ProfessorID,
		Action:      string(a.Action),
		CreatedAt:   a.CreatedAt,
	}
	return s.db.Create(&model).Error
}

// ListReportAccess returns the access log of a report newest first.
func (s *GormStore) ListReportAccess(reportID string) ([]domain.ReportAccess, error) {
	var models []ReportAccessModel
	if err := s.db.Where("report_id = ?", reportID).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.ReportAccess, 0, len(models))
	for _, m := range models {
		res = append(res, domain.ReportAccess{
			ID:          m.ID,
			ReportID:    m.ReportID,
			ProfessorID: m.ProfessorID,
			Action:      domain.ReportAccessAction(m.Action),
			CreatedAt:   m.CreatedAt,
		})
	}
	return res, nil
}

// helpers to map between domain and models.
func userToModel(u domain.User) UserModel {
	model := UserModel{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Phone:        u.Phone,
		Role:         string(u.Role),
		Active:       u.Active,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
	if cni := strings.TrimSpace(u.CNI); cni != "" {
		model.CNI = &cni
	}
	switch p := u.Profile.(type) {
	case domain.StudentProfile:
		model.Student = &StudentModel{UserID: u.ID, Major: p.Major, CNE: p.CNE, Year: p.Year}
	case domain.ProfessorProfile:
		model.Professor = &ProfessorModel{UserID: u.ID, Specialty: p.Specialty}
	case domain.ManagerProfile:
		model.Manager = &ManagerModel{UserID: u.ID}
	}
	return model
}

func userFromModel(m UserModel) domain.User {
	u := domain.User{
		ID:           m.ID,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		FirstName:    m.FirstName,
		LastName:     m.LastName,
		Phone:        m.Phone,
		Role:         domain.UserRole(m.Role),
		Active:       m.Active,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	if m.CNI != nil {
		u.CNI = *m.CNI
	}
	switch {
	case m.Student != nil:
		u.Profile = domain.StudentProfile{Major: m.Student.Major, CNE: m.Student.CNE, Year: m.Student.Year}
	case m.Professor != nil:
		u.Profile = domain.ProfessorProfile{Specialty: m.Professor.Specialty}
	case m.Manager != nil:
		u.Profile = domain.ManagerProfile{}
	}
	return u
}

func reportToModel(r domain.Report) ReportModel {
	var aiDomain datatypes.JSONMap
	if len(r.AIDomain) > 0 {
		aiDomain = make(datatypes.JSONMap, len(r.AIDomain))
		for k, v := range r.AIDomain {
			aiDomain[k] = v
		}
	}
	return ReportModel{
		ID:                r.ID,
		StudentID:         r.StudentID,
		StorageKey:        r.StorageKey,
		FileName:          r.FileName,
		SizeBytes:         r.SizeBytes,
		AISummary:         r.AISummary,
		AIDomain:          aiDomain,
		AISimilarityScore: r.AISimilarityScore,
		SimilarTo:         r.SimilarTo,
		Excerpt:           r.Excerpt,
		SubmittedAt:       r.SubmittedAt,
	}
}

func reportFromModel(m ReportModel) domain.Report {
	var aiDomain map[string]float64
	if len(m.AIDomain) > 0 {
		aiDomain = make(map[string]float64, len(m.AIDomain))
		for k, v := range m.AIDomain {
			if f, ok := v.(float64); ok {
				aiDomain[k] = f
			}
		}
	}
	return domain.Report{
		ID:                m.ID,
		StudentID:         m.StudentID,
		StorageKey:        m.StorageKey,
		FileName:          m.FileName,
		SizeBytes:         m.SizeBytes,
		AISummary:         m.AISummary,
		AIDomain:          aiDomain,
		AISimilarityScore: m.AISimilarityScore,
		SimilarTo:         m.SimilarTo,
		Excerpt:           m.Excerpt,
		SubmittedAt:       m.SubmittedAt,
	}
}

func defenseToModel(d domain.ThesisDefense) DefenseModel {
	model := DefenseModel{
		ID:          d.ID,
		StudentID:   d.StudentID,
		Title:       d.Title,
		Description: d.Description,
		Status:      string(d.Status),
		DefenseDate: d.DefenseDate,
		DefenseTime: d.DefenseTime,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	if d.ReportID != "" {
		reportID := d.ReportID
		model.ReportID = &reportID
	}
	return model
}

func defenseFromModel(m DefenseModel) domain.ThesisDefense {
	d := domain.ThesisDefense{
		ID:          m.ID,
		StudentID:   m.StudentID,
		Title:       m.Title,
		Description: m.Description,
		Status:      domain.DefenseStatus(m.Status),
		DefenseDate: m.DefenseDate,
		DefenseTime: m.DefenseTime,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if m.ReportID != nil {
		d.ReportID = *m.ReportID
	}
	return d
}

func juryToModel(m domain.JuryMember) JuryMemberModel {
	return JuryMemberModel{
		DefenseID:   m.DefenseID,
		ProfessorID: m.ProfessorID,
		Role:        string(m.Role),
		AssignedAt:  m.AssignedAt,
	}
}

func juryFromModel(m JuryMemberModel) domain.JuryMember {
	return domain.JuryMember{
		DefenseID:   m.DefenseID,
		ProfessorID: m.ProfessorID,
		Role:        domain.JuryRole(m.Role),
		AssignedAt:  m.AssignedAt,
	}
}

func evaluationToModel(e domain.Evaluation) EvaluationModel {
	return EvaluationModel{
		ID:          e.ID,
		DefenseID:   e.DefenseID,
		ProfessorID: e.ProfessorID,
		Score:       e.Score,
		Comments:    e.Comments,
		SubmittedAt: e.SubmittedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func evaluationFromModel(m EvaluationModel) domain.Evaluation {
	return domain.Evaluation{
		ID:          m.ID,
		DefenseID:   m.DefenseID,
		ProfessorID: m.ProfessorID,
		Score:       m.Score,
		Comments:    m.Comments,
		SubmittedAt: m.SubmittedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func notificationToModel(n domain.Notification) NotificationModel {
	return NotificationModel{
		ID:         n.ID,
		UserID:     n.UserID,
		Title:      n.Title,
		Message:    n.Message,
		ActionType: n.ActionType,
		IsRead:     n.IsRead,
		CreatedAt:  n.CreatedAt,
	}
}

func notificationFromModel(m NotificationModel) domain.Notification {
	return domain.Notification{
		ID:         m.ID,
		UserID:     m.UserID,
		Title:      m.Title,
		Message:    m.Message,
		ActionType: m.ActionType,
		IsRead:     m.IsRead,
		CreatedAt:  m.CreatedAt,
	}
}
