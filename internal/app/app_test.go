package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"soutenance/pkg/domain"
	"soutenance/pkg/storage"
	"soutenance/pkg/store"
)

const testSecret = "0123456789abcdef0123456789abcdef"

var samplePDF = []byte("%PDF-1.4\n1 0 obj << /Type /Catalog >> endobj\ntrailer << /Root 1 0 R >>\n%%EOF\n")

type recordingPublisher struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (p *recordingPublisher) Publish(_ context.Context, n domain.Notification, _ domain.User) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, n)
	return nil
}

type harness struct {
	app       *App
	store     *store.MemoryStore
	dataDir   string
	publisher *recordingPublisher
}

type harnessOption func(*Config)

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	mem := store.NewMemoryStore()
	sessions, err := store.NewJWTSessionStore(testSecret, time.Hour, store.NewMemoryTokenRevoker(), store.JWTOptions{})
	if err != nil {
		t.Fatalf("session store: %v", err)
	}
	dir := t.TempDir()
	files, err := storage.NewFileStore(dir)
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	var tick int64
	var mu sync.Mutex
	pub := &recordingPublisher{}
	cfg := Config{
		Store:     mem,
		Sessions:  sessions,
		Reports:   files,
		Publisher: pub,
		Now: func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			tick++
			return base.Add(time.Duration(tick) * time.Second)
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return &harness{app: a, store: mem, dataDir: dir, publisher: pub}
}

func (h *harness) student(t *testing.T, email, cne string) domain.User {
	t.Helper()
	u, err := h.app.RegisterStudent(StudentRegistration{
		FirstName: "Alice",
		LastName:  cne,
		Email:     email,
		Password:  "secret123",
		CNI:       "CNI-" + cne,
		CNE:       cne,
		Year:      5,
	})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	u, err = h.app.Approve(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("approve %s: %v", email, err)
	}
	return u
}

func (h *harness) professor(t *testing.T, email, specialty string) domain.User {
	t.Helper()
	u, err := h.app.AddProfessor(ProfessorAccount{
		FirstName: "Prof",
		LastName:  email,
		Email:     email,
		Password:  "secret123",
		Specialty: specialty,
	})
	if err != nil {
		t.Fatalf("add professor %s: %v", email, err)
	}
	return u
}

func (h *harness) submit(t *testing.T, student domain.User, title, domainName string) domain.ThesisDefense {
	t.Helper()
	d, err := h.app.SubmitDefense(context.Background(), student, Submission{
		Title:       title,
		Domain:      domainName,
		FileName:    "thesis.pdf",
		ContentType: "application/pdf",
		File:        bytes.NewReader(samplePDF),
	})
	if err != nil {
		t.Fatalf("submit %q: %v", title, err)
	}
	return d
}

func (h *harness) storedFiles(t *testing.T) []string {
	t.Helper()
	var files []string
	err := filepath.WalkDir(h.dataDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk data dir: %v", err)
	}
	return files
}

func wantKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := KindOf(err); got != kind {
		t.Fatalf("expected %s error, got %s (%v)", kind, got, err)
	}
}

func TestDefenseLifecycleScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	reg, err := h.app.RegisterStudent(StudentRegistration{
		FirstName: "Alice", LastName: "Martin", Email: "alice@example.com",
		Password: "secret123", CNI: "AB1", CNE: "C1", Year: 5,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if reg.Active {
		t.Fatalf("new student must be inactive")
	}
	pending, _ := h.app.PendingStudents()
	if len(pending) != 1 || pending[0].ID != reg.ID {
		t.Fatalf("expected alice pending, got %+v", pending)
	}
	alice, err := h.app.Approve(ctx, reg.ID)
	if err != nil || !alice.Active {
		t.Fatalf("approve: %+v %v", alice, err)
	}

	defense := h.submit(t, alice, "Thesis A", "AI")
	if defense.Status != domain.DefensePending || defense.StudentID != alice.ID || defense.ReportID == "" {
		t.Fatalf("unexpected defense: %+v", defense)
	}
	report, ok, _ := h.store.GetReport(defense.ReportID)
	if !ok || report.StudentID != alice.ID {
		t.Fatalf("report not created for alice: %+v", report)
	}
	if report.AIDomain["AI"] != 1.0 || report.AISimilarityScore != nil {
		t.Fatalf("expected deterministic fallback analysis, got %+v", report)
	}
	if report.AISummary != "Auto-generated summary placeholder for 'Thesis A'. AI module will replace this text." {
		t.Fatalf("unexpected summary %q", report.AISummary)
	}

	p1 := h.professor(t, "p1@example.com", "AI")
	p2 := h.professor(t, "p2@example.com", "Networks")
	p3 := h.professor(t, "p3@example.com", "Security")
	if _, err := h.app.AssignJury(ctx, defense.ID, p1.ID, domain.JuryPresident); err != nil {
		t.Fatalf("assign p1: %v", err)
	}
	if _, err := h.app.AssignJury(ctx, defense.ID, p2.ID, domain.JuryMemberRole); err != nil {
		t.Fatalf("assign p2: %v", err)
	}
	jury, _ := h.app.Jury(defense.ID)
	if len(jury) != 2 {
		t.Fatalf("expected two jury rows, got %d", len(jury))
	}

	if _, err := h.app.SubmitEvaluation(p1, defense.ID, 15, "Good"); err != nil {
		t.Fatalf("p1 evaluation: %v", err)
	}
	d, _, _ := h.store.GetDefense(defense.ID)
	if d.Status != domain.DefenseEvaluated {
		t.Fatalf("expected evaluated after first evaluation, got %s", d.Status)
	}
	if _, err := h.app.SubmitEvaluation(p2, defense.ID, 12, ""); err != nil {
		t.Fatalf("p2 evaluation: %v", err)
	}
	d, _, _ = h.store.GetDefense(defense.ID)
	if d.Status != domain.DefenseEvaluated {
		t.Fatalf("status should stay evaluated, got %s", d.Status)
	}
	evals, _ := h.app.Evaluations(defense.ID)
	if len(evals) != 2 {
		t.Fatalf("expected two independent evaluations, got %d", len(evals))
	}
	scores := map[string]float64{}
	for _, e := range evals {
		scores[e.ProfessorID] = e.Score
	}
	if scores[p1.ID] != 15 || scores[p2.ID] != 12 {
		t.Fatalf("unexpected scores %v", scores)
	}

	_, err = h.app.JurorDefenseDetail(ctx, p3, defense.ID)
	if !errors.Is(err, ErrNotJuryMember) {
		t.Fatalf("expected p3 forbidden, got %v", err)
	}
}

func TestNonJurorIsForbiddenEverywhere(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.student(t, "alice@example.com", "C1")
	defense := h.submit(t, alice, "Thesis A", "AI")
	outsider := h.professor(t, "out@example.com", "AI")

	if _, err := h.app.JurorDefenseDetail(ctx, outsider, defense.ID); !errors.Is(err, ErrNotJuryMember) {
		t.Fatalf("detail: expected forbidden, got %v", err)
	}
	if _, err := h.app.DownloadReport(ctx, outsider, defense.ID); !errors.Is(err, ErrNotJuryMember) {
		t.Fatalf("download: expected forbidden, got %v", err)
	}
	if _, err := h.app.SubmitEvaluation(outsider, defense.ID, 10, ""); !errors.Is(err, ErrNotJuryMember) {
		t.Fatalf("evaluate: expected forbidden, got %v", err)
	}
	if _, err := h.app.JurorDefenseDetail(ctx, outsider, "missing"); !errors.Is(err, ErrDefenseNotFound) {
		t.Fatalf("expected not found for unknown defense, got %v", err)
	}
	if evals, _ := h.store.ListEvaluations(defense.ID); len(evals) != 0 {
		t.Fatalf("no evaluation should be stored")
	}
}

func TestSubmitEvaluationUpdatesInPlace(t *testing.T) {
	h := newHarness(t)
	alice := h.student(t, "alice@example.com", "C1")
	defense := h.submit(t, alice, "Thesis A", "AI")
	p1 := h.professor(t, "p1@example.com", "AI")
	if _, err := h.app.AssignJury(context.Background(), defense.ID, p1.ID, domain.JuryExaminer); err != nil {
		t.Fatalf("assign: %v", err)
	}

	first, err := h.app.SubmitEvaluation(p1, defense.ID, 11, "first pass")
	if err != nil {
		t.Fatalf("first evaluation: %v", err)
	}
	second, err := h.app.SubmitEvaluation(p1, defense.ID, 16.5, "revised")
	if err != nil {
		t.Fatalf("second evaluation: %v", err)
	}
	if second.ID != first.ID || !second.SubmittedAt.Equal(first.SubmittedAt) {
		t.Fatalf("re-evaluation must keep id and submission date: %+v vs %+v", first, second)
	}
	if !second.UpdatedAt.After(first.UpdatedAt) || second.Score != 16.5 || second.Comments != "revised" {
		t.Fatalf("re-evaluation not applied: %+v", second)
	}
	if evals, _ := h.store.ListEvaluations(defense.ID); len(evals) != 1 {
		t.Fatalf("expected exactly one row, got %d", len(evals))
	}

	for _, score := range []float64{-0.5, 20.01} {
		if _, err := h.app.SubmitEvaluation(p1, defense.ID, score, ""); !errors.Is(err, ErrScoreOutOfRange) {
			t.Fatalf("score %v: expected out of range, got %v", score, err)
		}
	}
	for _, score := range []float64{0, 20} {
		if _, err := h.app.SubmitEvaluation(p1, defense.ID, score, ""); err != nil {
			t.Fatalf("score %v should be accepted: %v", score, err)
		}
	}
}

func TestRegisterStudentUniqueness(t *testing.T) {
	h := newHarness(t)
	base := StudentRegistration{FirstName: "A", LastName: "B", Email: "a@example.com", Password: "secret123", CNI: "X1", CNE: "C1"}
	if _, err := h.app.RegisterStudent(base); err != nil {
		t.Fatalf("first registration: %v", err)
	}

	tests := []struct {
		name string
		mod  func(*StudentRegistration)
		want error
	}{
		{"same cne", func(r *StudentRegistration) { r.Email = "b@example.com"; r.CNI = "X2" }, ErrCNETaken},
		{"same email", func(r *StudentRegistration) { r.Email = " A@Example.com "; r.CNI = "X3"; r.CNE = "C3" }, ErrEmailTaken},
		{"same cni", func(r *StudentRegistration) { r.Email = "c@example.com"; r.CNE = "C4" }, ErrCNITaken},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			reg := base
			tc.mod(&reg)
			if _, err := h.app.RegisterStudent(reg); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if n, _ := h.store.CountUsers(domain.RoleStudent); n != 1 {
		t.Fatalf("no extra user may be created, got %d", n)
	}

	weak := base
	weak.Email, weak.CNI, weak.CNE, weak.Password = "w@example.com", "X9", "C9", "password"
	_, err := h.app.RegisterStudent(weak)
	wantKind(t, err, KindBadRequest)
}

func TestApproveAndReject(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	pendingUser, err := h.app.RegisterStudent(StudentRegistration{FirstName: "A", LastName: "B", Email: "a@example.com", Password: "secret123", CNE: "C1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := h.app.Reject(pendingUser.ID); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if _, ok, _ := h.store.GetUserByID(pendingUser.ID); ok {
		t.Fatalf("rejected user must be deleted")
	}
	if taken, _ := h.store.HasCNE("C1"); taken {
		t.Fatalf("student detail must be deleted with the user")
	}
	if err := h.app.Reject(pendingUser.ID); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	active := h.student(t, "b@example.com", "C2")
	err = h.app.Reject(active.ID)
	wantKind(t, err, KindBadRequest)
	if _, err := h.app.Approve(ctx, active.ID); !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("expected already active, got %v", err)
	}
	if _, err := h.app.Approve(ctx, "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	notes, _ := h.app.Notifications(active)
	if len(notes) != 1 || notes[0].ActionType != domain.ActionAccountActive {
		t.Fatalf("approval should notify the student, got %+v", notes)
	}
}

func TestLoginMessages(t *testing.T) {
	tests := []struct {
		name          string
		reveal        bool
		email         string
		password      string
		want          error
		wantForbidden bool
	}{
		{"unknown generic", false, "nobody@example.com", "secret123", ErrInvalidCredentials, false},
		{"wrong password generic", false, "alice@example.com", "wrong123", ErrInvalidCredentials, false},
		{"unknown revealed", true, "nobody@example.com", "secret123", ErrUnknownAccount, false},
		{"wrong password revealed", true, "alice@example.com", "wrong123", ErrWrongPassword, false},
		{"pending account", false, "pending@example.com", "secret123", ErrAccountPending, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, func(c *Config) { c.RevealAccountExistence = tc.reveal })
			h.student(t, "alice@example.com", "C1")
			if _, err := h.app.RegisterStudent(StudentRegistration{FirstName: "P", LastName: "Q", Email: "pending@example.com", Password: "secret123", CNE: "C2"}); err != nil {
				t.Fatalf("register pending: %v", err)
			}
			_, err := h.app.Login(tc.email, tc.password)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if tc.wantForbidden {
				wantKind(t, err, KindForbidden)
			} else {
				wantKind(t, err, KindUnauthorized)
			}
		})
	}
}

func TestLoginAuthenticateLogout(t *testing.T) {
	h := newHarness(t)
	alice := h.student(t, "alice@example.com", "C1")
	sess, err := h.app.Login("  ALICE@example.com", "secret123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	got, err := h.app.Authenticate(sess.Token)
	if err != nil || got.ID != alice.ID {
		t.Fatalf("authenticate: %+v %v", got, err)
	}
	if err := h.app.Logout(sess.Token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	_, err = h.app.Authenticate(sess.Token)
	wantKind(t, err, KindUnauthorized)
}

func TestSubmitDefenseValidation(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MaxUploadBytes = 64 })
	alice := h.student(t, "alice@example.com", "C1")
	ctx := context.Background()

	tests := []struct {
		name string
		sub  Submission
		want error
	}{
		{"missing title", Submission{Domain: "AI", FileName: "a.pdf", ContentType: "application/pdf", File: bytes.NewReader(samplePDF)}, ErrTitleRequired},
		{"wrong extension", Submission{Title: "T", Domain: "AI", FileName: "a.docx", ContentType: "application/pdf", File: bytes.NewReader(samplePDF)}, ErrNotPDF},
		{"wrong content type", Submission{Title: "T", Domain: "AI", FileName: "a.pdf", ContentType: "text/plain", File: bytes.NewReader(samplePDF)}, ErrNotPDF},
		{"not a pdf body", Submission{Title: "T", Domain: "AI", FileName: "a.pdf", ContentType: "application/pdf", File: bytes.NewReader([]byte("hello world"))}, ErrNotPDF},
		{"too large", Submission{Title: "T", Domain: "AI", FileName: "a.pdf", ContentType: "application/pdf", File: bytes.NewReader(append(append([]byte{}, samplePDF...), bytes.Repeat([]byte("x"), 64)...))}, ErrFileTooLarge},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := h.app.SubmitDefense(ctx, alice, tc.sub); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if files := h.storedFiles(t); len(files) != 0 {
		t.Fatalf("rejected uploads must leave no files, found %v", files)
	}
	if all, _ := h.store.ListDefenses(0, 0); len(all) != 0 {
		t.Fatalf("no defense may be created")
	}

	prof := h.professor(t, "p@example.com", "AI")
	_, err := h.app.SubmitDefense(ctx, prof, Submission{Title: "T", Domain: "AI", FileName: "a.pdf", ContentType: "application/pdf", File: bytes.NewReader(samplePDF)})
	wantKind(t, err, KindForbidden)
}

type failingReportStore struct {
	storage.ReportStore
}

func (failingReportStore) Save(context.Context, io.Reader, int64) (storage.Object, error) {
	return storage.Object{}, errors.New("disk full")
}

func TestSubmitDefenseStorageFailure(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Reports = failingReportStore{} })
	alice := h.student(t, "alice@example.com", "C1")
	_, err := h.app.SubmitDefense(context.Background(), alice, Submission{
		Title: "T", Domain: "AI", FileName: "a.pdf", ContentType: "application/pdf", File: bytes.NewReader(samplePDF),
	})
	wantKind(t, err, KindUploadFailed)
	if Message(err) != "failed to store report" {
		t.Fatalf("unexpected message %q", Message(err))
	}
}

func TestSubmitDefenseRecordsMajorAndStoresFile(t *testing.T) {
	h := newHarness(t)
	alice := h.student(t, "alice@example.com", "C1")
	d := h.submit(t, alice, "Thesis A", "Security")

	u, _, _ := h.store.GetUserByID(alice.ID)
	if p, _ := u.Student(); p.Major != "Security" {
		t.Fatalf("expected declared domain recorded as major, got %q", p.Major)
	}
	if files := h.storedFiles(t); len(files) != 1 {
		t.Fatalf("expected one stored report, got %v", files)
	}
	r, _, _ := h.store.GetReport(d.ReportID)
	if storage.ValidateKey(r.StorageKey) != nil || r.FileName != "thesis.pdf" || r.SizeBytes != int64(len(samplePDF)) {
		t.Fatalf("unexpected report: %+v", r)
	}
}

func TestUpdateDefenseTransitions(t *testing.T) {
	status := func(s domain.DefenseStatus) *domain.DefenseStatus { return &s }
	tests := []struct {
		name    string
		any     bool
		path    []domain.DefenseStatus
		wantErr bool
	}{
		{"accept then schedule", false, []domain.DefenseStatus{domain.DefenseAccepted, domain.DefenseScheduled}, false},
		{"refuse pending", false, []domain.DefenseStatus{domain.DefenseRefused}, false},
		{"same status is a no-op", false, []domain.DefenseStatus{domain.DefensePending}, false},
		{"skip acceptance", false, []domain.DefenseStatus{domain.DefenseScheduled}, true},
		{"reopen refused", false, []domain.DefenseStatus{domain.DefenseRefused, domain.DefensePending}, true},
		{"free-form allowed", true, []domain.DefenseStatus{domain.DefenseScheduled, domain.DefensePending}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, func(c *Config) { c.AllowAnyStatusTransition = tc.any })
			alice := h.student(t, "alice@example.com", "C1")
			d := h.submit(t, alice, "Thesis A", "AI")
			var err error
			for _, next := range tc.path {
				if _, err = h.app.UpdateDefense(context.Background(), d.ID, DefensePatch{Status: status(next)}); err != nil {
					break
				}
			}
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Fatalf("expected invalid transition, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got, _, _ := h.store.GetDefense(d.ID)
			if got.Status != tc.path[len(tc.path)-1] {
				t.Fatalf("status = %s", got.Status)
			}
		})
	}
}

func TestUpdateDefenseFieldsAndNotifications(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.student(t, "alice@example.com", "C1")
	d := h.submit(t, alice, "Thesis A", "AI")
	str := func(s string) *string { return &s }
	accepted := domain.DefenseAccepted

	if _, err := h.app.UpdateDefense(ctx, "missing", DefensePatch{Title: str("x")}); !errors.Is(err, ErrDefenseNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := h.app.UpdateDefense(ctx, d.ID, DefensePatch{DefenseDate: str("01/06/2026")}); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected invalid date, got %v", err)
	}
	if _, err := h.app.UpdateDefense(ctx, d.ID, DefensePatch{DefenseTime: str("25:00")}); !errors.Is(err, ErrInvalidTime) {
		t.Fatalf("expected invalid time, got %v", err)
	}
	bogus := domain.DefenseStatus("archived")
	if _, err := h.app.UpdateDefense(ctx, d.ID, DefensePatch{Status: &bogus}); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected invalid status, got %v", err)
	}

	updated, err := h.app.UpdateDefense(ctx, d.ID, DefensePatch{
		Title:       str("  Thesis B "),
		Status:      &accepted,
		DefenseDate: str("2026-06-15"),
		DefenseTime: str("10:30"),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "Thesis B" || updated.DefenseDate != "2026-06-15" || updated.DefenseTime != "10:30" || updated.StudentID != alice.ID {
		t.Fatalf("unexpected update: %+v", updated)
	}
	notes, _ := h.app.Notifications(alice)
	if len(notes) != 2 || notes[0].ActionType != domain.ActionStatusChange {
		t.Fatalf("expected status change notification first, got %+v", notes)
	}
	if len(h.publisher.sent) != 2 {
		t.Fatalf("expected approval and status change published, got %d", len(h.publisher.sent))
	}
}

func TestJuryAssignmentRules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.student(t, "alice@example.com", "C1")
	d := h.submit(t, alice, "Thesis A", "AI")
	p1 := h.professor(t, "p1@example.com", "AI")
	p2 := h.professor(t, "p2@example.com", "Networks")
	p3 := h.professor(t, "p3@example.com", "Security")

	if _, err := h.app.AssignJury(ctx, "missing", p1.ID, domain.JuryPresident); !errors.Is(err, ErrDefenseNotFound) {
		t.Fatalf("expected defense not found, got %v", err)
	}
	if _, err := h.app.AssignJury(ctx, d.ID, alice.ID, domain.JuryPresident); !errors.Is(err, ErrProfessorNotFound) {
		t.Fatalf("a student cannot sit on a jury, got %v", err)
	}
	if _, err := h.app.AssignJury(ctx, d.ID, p1.ID, "chair"); !errors.Is(err, ErrInvalidJuryRole) {
		t.Fatalf("expected invalid role, got %v", err)
	}
	seat, err := h.app.AssignJury(ctx, d.ID, p1.ID, domain.JuryPresident)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if seat.Name == "" || seat.Specialty != "AI" {
		t.Fatalf("seat should carry professor identity: %+v", seat)
	}
	if _, err := h.app.AssignJury(ctx, d.ID, p1.ID, domain.JuryExaminer); !errors.Is(err, ErrAlreadyOnJury) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := h.app.AssignJury(ctx, d.ID, p2.ID, domain.JuryMemberRole); err != nil {
		t.Fatalf("assign p2: %v", err)
	}
	notes, _ := h.app.Notifications(p1)
	if len(notes) != 1 || notes[0].ActionType != domain.ActionJuryAssignment {
		t.Fatalf("expected jury notification, got %+v", notes)
	}

	secretary := domain.JuryRole("secretary")
	if _, err := h.app.UpdateJuryMember(ctx, d.ID, p3.ID, JuryPatch{Role: &secretary}); !errors.Is(err, ErrJuryMemberNotFound) {
		t.Fatalf("expected jury member not found, got %v", err)
	}
	p2ID := p2.ID
	if _, err := h.app.UpdateJuryMember(ctx, d.ID, p1.ID, JuryPatch{ProfessorID: &p2ID}); !errors.Is(err, ErrAlreadyOnJury) {
		t.Fatalf("expected conflict moving onto a seated professor, got %v", err)
	}
	unknown := "ghost"
	if _, err := h.app.UpdateJuryMember(ctx, d.ID, p1.ID, JuryPatch{ProfessorID: &unknown}); !errors.Is(err, ErrProfessorNotFound) {
		t.Fatalf("expected professor not found, got %v", err)
	}
	p3ID := p3.ID
	moved, err := h.app.UpdateJuryMember(ctx, d.ID, p1.ID, JuryPatch{Role: &secretary, ProfessorID: &p3ID})
	if err != nil {
		t.Fatalf("move seat: %v", err)
	}
	if moved.ProfessorID != p3.ID || moved.Role != domain.JurySecretary {
		t.Fatalf("unexpected seat: %+v", moved)
	}
	if notes, _ := h.app.Notifications(p3); len(notes) != 1 {
		t.Fatalf("new juror should be notified")
	}
	assigned, _ := h.app.AssignedDefenses(p3)
	if len(assigned) != 1 || assigned[0].JuryRole != domain.JurySecretary || assigned[0].StudentName == "" {
		t.Fatalf("unexpected assigned list: %+v", assigned)
	}
	if mine, _ := h.app.AssignedDefenses(p1); len(mine) != 0 {
		t.Fatalf("p1 no longer sits on the jury")
	}
}

func TestSuggestJuryFallsBackToSpecialties(t *testing.T) {
	h := newHarness(t)
	alice := h.student(t, "alice@example.com", "C1")
	d := h.submit(t, alice, "Thesis A", "Security")
	h.professor(t, "net@example.com", "Networks")
	sec := h.professor(t, "sec@example.com", "Security")
	h.professor(t, "none@example.com", "")

	for _, n := range []int{0, 11} {
		if _, err := h.app.SuggestJury(context.Background(), d.ID, n); !errors.Is(err, ErrInvalidSuggestCount) {
			t.Fatalf("n=%d: expected bad request, got %v", n, err)
		}
	}
	got, err := h.app.SuggestJury(context.Background(), d.ID, 2)
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if len(got) != 2 || got[0].ProfessorID != sec.ID || got[0].Reason != "Specialty match: Security" {
		t.Fatalf("unexpected suggestions: %+v", got)
	}
	if _, err := h.app.SuggestJury(context.Background(), "missing", 3); !errors.Is(err, ErrDefenseNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDownloadReportLogsAccess(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.student(t, "alice@example.com", "C1")
	d := h.submit(t, alice, "Thesis A", "AI")
	p1 := h.professor(t, "p1@example.com", "AI")
	if _, err := h.app.AssignJury(ctx, d.ID, p1.ID, domain.JuryPresident); err != nil {
		t.Fatalf("assign: %v", err)
	}

	detail, err := h.app.JurorDefenseDetail(ctx, p1, d.ID)
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if detail.Report == nil || detail.JuryRole != domain.JuryPresident || len(detail.Jury) != 1 {
		t.Fatalf("unexpected detail: %+v", detail)
	}
	file, err := h.app.DownloadReport(ctx, p1, d.ID)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	body, _ := io.ReadAll(file.Body)
	file.Body.Close()
	if !bytes.Equal(body, samplePDF) {
		t.Fatalf("downloaded bytes differ")
	}
	if file.Name != fmt.Sprintf("report-defense-%s.pdf", d.ID) {
		t.Fatalf("unexpected file name %q", file.Name)
	}
	log, _ := h.app.ReportAccessLog(d.ID)
	if len(log) != 2 || log[0].Action != domain.AccessDownload || log[1].Action != domain.AccessView {
		t.Fatalf("unexpected access log: %+v", log)
	}

	report, _, _ := h.store.GetReport(d.ReportID)
	for _, f := range h.storedFiles(t) {
		_ = os.Remove(f)
	}
	if _, err := h.app.DownloadReport(ctx, p1, d.ID); !errors.Is(err, ErrReportFileMissing) {
		t.Fatalf("expected missing file, got %v (key %s)", err, report.StorageKey)
	}
}

func TestMarkNotificationRead(t *testing.T) {
	h := newHarness(t)
	alice := h.student(t, "alice@example.com", "C1")
	bob := h.student(t, "bob@example.com", "C2")
	notes, _ := h.app.Notifications(alice)
	if len(notes) != 1 {
		t.Fatalf("expected approval notification")
	}
	id := notes[0].ID

	if _, err := h.app.MarkNotificationRead(bob, id); !errors.Is(err, ErrNotificationOwner) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := h.app.MarkNotificationRead(alice, "missing"); !errors.Is(err, ErrNotificationNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	for i := 0; i < 2; i++ {
		n, err := h.app.MarkNotificationRead(alice, id)
		if err != nil || !n.IsRead {
			t.Fatalf("mark read #%d: %+v %v", i, n, err)
		}
	}
}

func TestStudentViewsAndStats(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.student(t, "alice@example.com", "C1")
	bob := h.student(t, "bob@example.com", "C2")
	h.professor(t, "p1@example.com", "AI")

	accepted, scheduled, refused := domain.DefenseAccepted, domain.DefenseScheduled, domain.DefenseRefused
	past, future := "2026-04-01", "2026-06-15"

	d1 := h.submit(t, alice, "First", "AI")
	d2 := h.submit(t, alice, "Second", "AI")
	d3 := h.submit(t, alice, "Third", "AI")
	h.submit(t, bob, "Bob thesis", "Web")

	if _, err := h.app.UpdateDefense(ctx, d1.ID, DefensePatch{Status: &refused}); err != nil {
		t.Fatalf("refuse: %v", err)
	}
	if _, err := h.app.UpdateDefense(ctx, d2.ID, DefensePatch{Status: &accepted}); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := h.app.UpdateDefense(ctx, d2.ID, DefensePatch{Status: &scheduled, DefenseDate: &future}); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if _, err := h.app.UpdateDefense(ctx, d3.ID, DefensePatch{DefenseDate: &past}); err != nil {
		t.Fatalf("date: %v", err)
	}

	dash, err := h.app.StudentDashboard(alice)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if dash.Total != 3 || dash.Pending != 1 || dash.Refused != 1 || dash.Accepted != 0 {
		t.Fatalf("unexpected counts: %+v", dash)
	}
	if len(dash.Recent) != 3 || dash.Recent[0].ID != d3.ID {
		t.Fatalf("recent should be newest first: %+v", dash.Recent)
	}
	if len(dash.Upcoming) != 1 || dash.Upcoming[0].ID != d2.ID {
		t.Fatalf("unexpected upcoming: %+v", dash.Upcoming)
	}

	if _, err := h.app.StudentDefense(bob, d1.ID); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected forbidden for other student, got %v", err)
	}
	detail, err := h.app.StudentDefense(alice, d1.ID)
	if err != nil || detail.Report == nil || detail.StudentName == "" {
		t.Fatalf("own detail: %+v %v", detail, err)
	}

	page, _ := h.app.ListDefenses(1, 2)
	if len(page) != 2 || page[0].ID != d3.ID || page[0].StudentEmail != "alice@example.com" {
		t.Fatalf("unexpected page: %+v", page)
	}

	stats, err := h.app.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalDefenses != 4 || stats.TotalStudents != 2 || stats.TotalProfessors != 1 {
		t.Fatalf("unexpected totals: %+v", stats)
	}
	if stats.ByStatus[domain.DefensePending] != 2 || stats.ByStatus[domain.DefenseEvaluated] != 0 {
		t.Fatalf("unexpected status counts: %+v", stats.ByStatus)
	}
	if stats.Monthly["2026-06"] != 1 || stats.Monthly["2026-04"] != 1 {
		t.Fatalf("unexpected monthly counts: %+v", stats.Monthly)
	}
}

func TestEnsureManager(t *testing.T) {
	h := newHarness(t)
	created, err := h.app.EnsureManager("Boss@uni.test", "secret123")
	if err != nil || !created {
		t.Fatalf("first ensure: %v %v", created, err)
	}
	created, err = h.app.EnsureManager("boss@uni.test", "secret123")
	if err != nil || created {
		t.Fatalf("second ensure should be a no-op: %v %v", created, err)
	}
	if _, err := h.app.Login("boss@uni.test", "secret123"); err != nil {
		t.Fatalf("manager login: %v", err)
	}
	h.professor(t, "p@uni.test", "AI")
	if _, err := h.app.EnsureManager("p@uni.test", "secret123"); !errors.Is(err, ErrBootstrapRole) {
		t.Fatalf("expected bootstrap conflict, got %v", err)
	}
}

// racingStore runs a hook once right before the next transaction opens,
// standing in for a concurrent writer that lands between a read and a write.
type racingStore struct {
	*store.MemoryStore
	mu     sync.Mutex
	before func()
}

func (s *racingStore) race(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.before = fn
}

func (s *racingStore) WithinTx(fn func(store.Store) error) error {
	s.mu.Lock()
	hook := s.before
	s.before = nil
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return s.MemoryStore.WithinTx(fn)
}

func withRacingStore(rs **racingStore) harnessOption {
	return func(cfg *Config) {
		mem := cfg.Store.(*store.MemoryStore)
		*rs = &racingStore{MemoryStore: mem}
		cfg.Store = *rs
	}
}

func TestSubmitEvaluationRechecksSeatInsideTx(t *testing.T) {
	var rs *racingStore
	h := newHarness(t, withRacingStore(&rs))
	alice := h.student(t, "alice@example.com", "C1")
	defense := h.submit(t, alice, "Thesis A", "AI")
	p1 := h.professor(t, "p1@example.com", "AI")
	p2 := h.professor(t, "p2@example.com", "AI")
	if _, err := h.app.AssignJury(context.Background(), defense.ID, p1.ID, domain.JuryExaminer); err != nil {
		t.Fatalf("assign: %v", err)
	}

	rs.race(func() {
		err := h.store.ReplaceJuryMember(defense.ID, p1.ID, domain.JuryMember{
			DefenseID:   defense.ID,
			ProfessorID: p2.ID,
			Role:        domain.JuryExaminer,
			AssignedAt:  time.Now(),
		})
		if err != nil {
			t.Errorf("move seat: %v", err)
		}
	})
	_, err := h.app.SubmitEvaluation(p1, defense.ID, 14, "late")
	if !errors.Is(err, ErrNotJuryMember) {
		t.Fatalf("expected forbidden after the seat moved, got %v", err)
	}
	if evals, _ := h.store.ListEvaluations(defense.ID); len(evals) != 0 {
		t.Fatalf("no evaluation should be stored, got %+v", evals)
	}
	if d, _, _ := h.store.GetDefense(defense.ID); d.Status == domain.DefenseEvaluated {
		t.Fatalf("defense must not be marked evaluated")
	}
}

func TestRejectRechecksStatusInsideTx(t *testing.T) {
	var rs *racingStore
	h := newHarness(t, withRacingStore(&rs))
	u, err := h.app.RegisterStudent(StudentRegistration{FirstName: "A", LastName: "B", Email: "a@example.com", Password: "secret123", CNE: "C1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	rs.race(func() {
		cur, _, _ := h.store.GetUserByID(u.ID)
		cur.Active = true
		if err := h.store.UpdateUser(cur); err != nil {
			t.Errorf("activate: %v", err)
		}
	})
	err = h.app.Reject(u.ID)
	if !errors.Is(err, ErrRejectActive) {
		t.Fatalf("expected reject of active account to fail, got %v", err)
	}
	wantKind(t, err, KindBadRequest)
	if _, ok, _ := h.store.GetUserByID(u.ID); !ok {
		t.Fatalf("approved account must survive a racing reject")
	}
}

// stallingPublisher blocks every delivery until its context ends.
type stallingPublisher struct {
	mu       sync.Mutex
	attempts int
	deadline bool
}

func (p *stallingPublisher) Publish(ctx context.Context, _ domain.Notification, _ domain.User) error {
	p.mu.Lock()
	p.attempts++
	_, p.deadline = ctx.Deadline()
	p.mu.Unlock()
	<-ctx.Done()
	return ctx.Err()
}

func TestPublishIsBoundedByDeadline(t *testing.T) {
	pub := &stallingPublisher{}
	h := newHarness(t, func(cfg *Config) {
		cfg.Publisher = pub
		cfg.PublishTimeout = 50 * time.Millisecond
	})
	u, err := h.app.RegisterStudent(StudentRegistration{FirstName: "A", LastName: "B", Email: "a@example.com", Password: "secret123", CNE: "C1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	// A caller that already went away still gets its delivery attempt.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	approved, err := h.app.Approve(ctx, u.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("approve waited %v on a stalled publisher", elapsed)
	}
	if !approved.Active {
		t.Fatalf("approval must commit regardless of delivery")
	}
	pub.mu.Lock()
	defer pub.mu.Unlock()
	if pub.attempts != 1 || !pub.deadline {
		t.Fatalf("expected one bounded delivery attempt, got attempts=%d deadline=%v", pub.attempts, pub.deadline)
	}
	if notes, _ := h.app.Notifications(approved); len(notes) != 1 {
		t.Fatalf("stored notification must survive a failed delivery, got %d", len(notes))
	}
}
