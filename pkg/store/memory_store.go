package store

import (
	"slices"
	"sort"
	"sync"
	"time"

	"soutenance/pkg/domain"
)

// MemoryStore keeps workflow state in-process. It is used by tests and by
// single-instance development runs without Postgres.
type MemoryStore struct {
	txMu  sync.Mutex
	mu    sync.RWMutex
	state memoryState
}

type memoryState struct {
	users         map[string]domain.User
	userOrder     []string
	reports       map[string]domain.Report
	reportOrder   []string
	defenses      map[string]domain.ThesisDefense
	defenseOrder  []string
	jury          []domain.JuryMember
	evaluations   []domain.Evaluation
	notifications []domain.Notification
	access        []domain.ReportAccess
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: memoryState{
			users:    make(map[string]domain.User),
			reports:  make(map[string]domain.Report),
			defenses: make(map[string]domain.ThesisDefense),
		},
	}
}

func (s memoryState) clone() memoryState {
	out := memoryState{
		users:         make(map[string]domain.User, len(s.users)),
		userOrder:     slices.Clone(s.userOrder),
		reports:       make(map[string]domain.Report, len(s.reports)),
		reportOrder:   slices.Clone(s.reportOrder),
		defenses:      make(map[string]domain.ThesisDefense, len(s.defenses)),
		defenseOrder:  slices.Clone(s.defenseOrder),
		jury:          slices.Clone(s.jury),
		evaluations:   slices.Clone(s.evaluations),
		notifications: slices.Clone(s.notifications),
		access:        slices.Clone(s.access),
	}
	for k, v := range s.users {
		out.users[k] = v
	}
	for k, v := range s.reports {
		out.reports[k] = v
	}
	for k, v := range s.defenses {
		out.defenses[k] = v
	}
	return out
}

// WithinTx serializes transactions and restores the previous state when fn fails.
func (m *MemoryStore) WithinTx(fn func(Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	m.mu.RLock()
	snapshot := m.state.clone()
	m.mu.RUnlock()
	if err := fn(m); err != nil {
		m.mu.Lock()
		m.state = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

// CreateUser registers a user, enforcing unique email, CNI and CNE.
func (m *MemoryStore) CreateUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.state.users[u.ID]; exists {
		return ErrConflict
	}
	student, isStudent := u.Profile.(domain.StudentProfile)
	for _, other := range m.state.users {
		if other.Email == u.Email {
			return ErrConflict
		}
		if u.CNI != "" && other.CNI == u.CNI {
			return ErrConflict
		}
		if p, ok := other.Profile.(domain.StudentProfile); ok && isStudent && p.CNE == student.CNE {
			return ErrConflict
		}
	}
	m.state.users[u.ID] = u
	m.state.userOrder = append(m.state.userOrder, u.ID)
	return nil
}

// UpdateUser replaces the mutable fields of a user.
func (m *MemoryStore) UpdateUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.state.users[u.ID]
	if !ok {
		return ErrNotFound
	}
	current.FirstName = u.FirstName
	current.LastName = u.LastName
	current.Phone = u.Phone
	current.Active = u.Active
	if u.Profile != nil {
		current.Profile = u.Profile
	}
	current.UpdatedAt = time.Now().UTC()
	m.state.users[u.ID] = current
	return nil
}

// DeleteUser removes a user and its profile.
func (m *MemoryStore) DeleteUser(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.users[id]; !ok {
		return ErrNotFound
	}
	delete(m.state.users, id)
	m.state.userOrder = slices.DeleteFunc(m.state.userOrder, func(item string) bool { return item == id })
	return nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.state.users[id]
	return u, ok, nil
}

// GetUserByEmail looks up a user by email.
func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.state.users {
		if u.Email == email {
			return u, true, nil
		}
	}
	return domain.User{}, false, nil
}

// HasUserEmail checks if email exists.
func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	_, ok, err := m.GetUserByEmail(email)
	return ok, err
}

// HasCNI checks if a national identity number is taken.
func (m *MemoryStore) HasCNI(cni string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.state.users {
		if u.CNI != "" && u.CNI == cni {
			return true, nil
		}
	}
	return false, nil
}

// HasCNE checks if a student number is taken.
func (m *MemoryStore) HasCNE(cne string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.state.users {
		if p, ok := u.Profile.(domain.StudentProfile); ok && p.CNE == cne {
			return true, nil
		}
	}
	return false, nil
}

// ListUsers returns users matching filter in creation order.
func (m *MemoryStore) ListUsers(filter UserFilter) ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.User, 0, len(m.state.userOrder))
	for _, id := range m.state.userOrder {
		u := m.state.users[id]
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		if filter.Active != nil && u.Active != *filter.Active {
			continue
		}
		res = append(res, u)
	}
	return res, nil
}

// CountUsers returns the number of users with role.
func (m *MemoryStore) CountUsers(role domain.UserRole) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, u := range m.state.users {
		if u.Role == role {
			count++
		}
	}
	return count, nil
}

// CreateReport stores a report.
func (m *MemoryStore) CreateReport(r domain.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.state.reports[r.ID]; exists {
		return ErrConflict
	}
	m.state.reports[r.ID] = r
	m.state.reportOrder = append(m.state.reportOrder, r.ID)
	return nil
}

// GetReport retrieves a report.
func (m *MemoryStore) GetReport(id string) (domain.Report, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.state.reports[id]
	return r, ok, nil
}

// ListRecentReports returns the latest reports not owned by excludeStudentID.
func (m *MemoryStore) ListRecentReports(excludeStudentID string, limit int) ([]domain.Report, error) {
	if limit <= 0 {
		limit = 5
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Report, 0, limit)
	for i := len(m.state.reportOrder) - 1; i >= 0 && len(res) < limit; i-- {
		r := m.state.reports[m.state.reportOrder[i]]
		if r.StudentID == excludeStudentID {
			continue
		}
		res = append(res, r)
	}
	return res, nil
}

// CreateDefense stores a defense. A report backs at most one defense.
func (m *MemoryStore) CreateDefense(d domain.ThesisDefense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.state.defenses[d.ID]; exists {
		return ErrConflict
	}
	if d.ReportID != "" {
		for _, other := range m.state.defenses {
			if other.ReportID == d.ReportID {
				return ErrConflict
			}
		}
	}
	m.state.defenses[d.ID] = d
	m.state.defenseOrder = append(m.state.defenseOrder, d.ID)
	return nil
}

// UpdateDefense saves the mutable fields of a defense.
func (m *MemoryStore) UpdateDefense(d domain.ThesisDefense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.state.defenses[d.ID]
	if !ok {
		return ErrNotFound
	}
	current.Title = d.Title
	current.Description = d.Description
	current.Status = d.Status
	current.DefenseDate = d.DefenseDate
	current.DefenseTime = d.DefenseTime
	current.UpdatedAt = time.Now().UTC()
	m.state.defenses[d.ID] = current
	return nil
}

// GetDefense retrieves a defense.
func (m *MemoryStore) GetDefense(id string) (domain.ThesisDefense, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.state.defenses[id]
	return d, ok, nil
}

// ListDefenses returns defenses newest first. A non-positive limit returns all rows after skip.
func (m *MemoryStore) ListDefenses(skip, limit int) ([]domain.ThesisDefense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.ThesisDefense, 0, len(m.state.defenseOrder))
	for i := len(m.state.defenseOrder) - 1; i >= 0; i-- {
		res = append(res, m.state.defenses[m.state.defenseOrder[i]])
	}
	if skip > 0 {
		if skip >= len(res) {
			return []domain.ThesisDefense{}, nil
		}
		res = res[skip:]
	}
	if limit > 0 && limit < len(res) {
		res = res[:limit]
	}
	return res, nil
}

// ListDefensesByStudent returns the student's defenses newest first.
func (m *MemoryStore) ListDefensesByStudent(studentID string) ([]domain.ThesisDefense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.ThesisDefense, 0)
	for i := len(m.state.defenseOrder) - 1; i >= 0; i-- {
		d := m.state.defenses[m.state.defenseOrder[i]]
		if d.StudentID == studentID {
			res = append(res, d)
		}
	}
	return res, nil
}

func (m *MemoryStore) juryIndex(defenseID, professorID string) int {
	return slices.IndexFunc(m.state.jury, func(j domain.JuryMember) bool {
		return j.DefenseID == defenseID && j.ProfessorID == professorID
	})
}

// AddJuryMember seats a professor on a defense jury.
func (m *MemoryStore) AddJuryMember(j domain.JuryMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.juryIndex(j.DefenseID, j.ProfessorID) >= 0 {
		return ErrConflict
	}
	m.state.jury = append(m.state.jury, j)
	return nil
}

// GetJuryMember returns the seat of professorID on defenseID.
func (m *MemoryStore) GetJuryMember(defenseID, professorID string) (domain.JuryMember, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx := m.juryIndex(defenseID, professorID)
	if idx < 0 {
		return domain.JuryMember{}, false, nil
	}
	return m.state.jury[idx], true, nil
}

// ReplaceJuryMember rewrites a seat, possibly moving it to another professor.
func (m *MemoryStore) ReplaceJuryMember(defenseID, professorID string, j domain.JuryMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.juryIndex(defenseID, professorID)
	if idx < 0 {
		return ErrNotFound
	}
	if j.ProfessorID != professorID && m.juryIndex(j.DefenseID, j.ProfessorID) >= 0 {
		return ErrConflict
	}
	m.state.jury[idx] = j
	return nil
}

// ListJury returns the jury of a defense in assignment order.
func (m *MemoryStore) ListJury(defenseID string) ([]domain.JuryMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.JuryMember, 0)
	for _, j := range m.state.jury {
		if j.DefenseID == defenseID {
			res = append(res, j)
		}
	}
	return res, nil
}

// ListJuryByProfessor returns every seat held by a professor.
func (m *MemoryStore) ListJuryByProfessor(professorID string) ([]domain.JuryMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.JuryMember, 0)
	for _, j := range m.state.jury {
		if j.ProfessorID == professorID {
			res = append(res, j)
		}
	}
	return res, nil
}

// UpsertEvaluation inserts or updates the evaluation of (defense, professor).
// An existing row keeps its ID and submission date.
func (m *MemoryStore) UpsertEvaluation(e domain.Evaluation) (domain.Evaluation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.state.evaluations {
		if existing.DefenseID == e.DefenseID && existing.ProfessorID == e.ProfessorID {
			existing.Score = e.Score
			existing.Comments = e.Comments
			existing.UpdatedAt = e.UpdatedAt
			m.state.evaluations[i] = existing
			return existing, nil
		}
	}
	m.state.evaluations = append(m.state.evaluations, e)
	return e, nil
}

// ListEvaluations returns evaluations of a defense.
func (m *MemoryStore) ListEvaluations(defenseID string) ([]domain.Evaluation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Evaluation, 0)
	for _, e := range m.state.evaluations {
		if e.DefenseID == defenseID {
			res = append(res, e)
		}
	}
	return res, nil
}

// ListEvaluationsByProfessor returns a professor's evaluations newest first.
func (m *MemoryStore) ListEvaluationsByProfessor(professorID string) ([]domain.Evaluation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Evaluation, 0)
	for i := len(m.state.evaluations) - 1; i >= 0; i-- {
		if e := m.state.evaluations[i]; e.ProfessorID == professorID {
			res = append(res, e)
		}
	}
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].UpdatedAt.After(res[j].UpdatedAt)
	})
	return res, nil
}

// AppendNotification records a notification.
func (m *MemoryStore) AppendNotification(n domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.notifications = append(m.state.notifications, n)
	return nil
}

// GetNotification returns a notification by ID.
func (m *MemoryStore) GetNotification(id string) (domain.Notification, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, n := range m.state.notifications {
		if n.ID == id {
			return n, true, nil
		}
	}
	return domain.Notification{}, false, nil
}

// ListNotifications returns a user's notifications newest first.
func (m *MemoryStore) ListNotifications(userID string) ([]domain.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Notification, 0)
	for i := len(m.state.notifications) - 1; i >= 0; i-- {
		if n := m.state.notifications[i]; n.UserID == userID {
			res = append(res, n)
		}
	}
	return res, nil
}

// MarkNotificationRead sets is_read on a notification.
func (m *MemoryStore) MarkNotificationRead(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.state.notifications {
		if m.state.notifications[i].ID == id {
			m.state.notifications[i].IsRead = true
			return nil
		}
	}
	return ErrNotFound
}

// AppendReportAccess records a juror reading or downloading a report.
func (m *MemoryStore) AppendReportAccess(a domain.ReportAccess) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.access = append(m.state.access, a)
	return nil
}

// ListReportAccess returns the access log of a report newest first.
func (m *MemoryStore) ListReportAccess(reportID string) ([]domain.ReportAccess, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.ReportAccess, 0)
	for i := len(m.state.access) - 1; i >= 0; i-- {
		if a := m.state.access[i]; a.ReportID == reportID {
			res = append(res, a)
		}
	}
	return res, nil
}
