package store

import (
	"errors"
	"testing"
	"time"

	"soutenance/pkg/domain"
)

func seedStudent(t *testing.T, s *MemoryStore, id, email, cne string) domain.User {
	t.Helper()
	u := domain.User{
		ID:        id,
		Email:     email,
		FirstName: "Student",
		LastName:  id,
		CNI:       "CNI-" + id,
		Role:      domain.RoleStudent,
		Profile:   domain.StudentProfile{Major: "CS", CNE: cne, Year: 5},
		CreatedAt: time.Now().UTC(),
	}
	if err := s.CreateUser(u); err != nil {
		t.Fatalf("create user %s: %v", id, err)
	}
	return u
}

func TestMemoryStoreUserUniqueness(t *testing.T) {
	s := NewMemoryStore()
	seedStudent(t, s, "u1", "a@uni.test", "CNE1")

	cases := []struct {
		name string
		user domain.User
	}{
		{"email", domain.User{ID: "u2", Email: "a@uni.test", Role: domain.RoleProfessor}},
		{"cni", domain.User{ID: "u3", Email: "b@uni.test", CNI: "CNI-u1", Role: domain.RoleProfessor}},
		{"cne", domain.User{ID: "u4", Email: "c@uni.test", Role: domain.RoleStudent, Profile: domain.StudentProfile{CNE: "CNE1"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := s.CreateUser(tc.user); !errors.Is(err, ErrConflict) {
				t.Fatalf("expected conflict, got %v", err)
			}
		})
	}

	if ok, _ := s.HasCNE("CNE1"); !ok {
		t.Fatalf("expected CNE1 taken")
	}
	if ok, _ := s.HasCNI("CNI-u1"); !ok {
		t.Fatalf("expected CNI taken")
	}
	if ok, _ := s.HasUserEmail("nobody@uni.test"); ok {
		t.Fatalf("unexpected email hit")
	}
}

func TestMemoryStoreListUsersFilter(t *testing.T) {
	s := NewMemoryStore()
	seedStudent(t, s, "u1", "a@uni.test", "CNE1")
	seedStudent(t, s, "u2", "b@uni.test", "CNE2")
	prof := domain.User{ID: "p1", Email: "p@uni.test", Role: domain.RoleProfessor, Active: true}
	if err := s.CreateUser(prof); err != nil {
		t.Fatalf("create professor: %v", err)
	}

	role := domain.RoleStudent
	inactive := false
	pending, err := s.ListUsers(UserFilter{Role: &role, Active: &inactive})
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != "u1" || pending[1].ID != "u2" {
		t.Fatalf("unexpected pending list: %+v", pending)
	}
	if n, _ := s.CountUsers(domain.RoleProfessor); n != 1 {
		t.Fatalf("expected one professor, got %d", n)
	}

	if err := s.DeleteUser("u1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteUser("u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
	all, _ := s.ListUsers(UserFilter{})
	if len(all) != 2 {
		t.Fatalf("expected 2 users left, got %d", len(all))
	}
}

func TestMemoryStoreDefensesNewestFirstAndPaged(t *testing.T) {
	s := NewMemoryStore()
	for _, id := range []string{"d1", "d2", "d3"} {
		if err := s.CreateDefense(domain.ThesisDefense{ID: id, StudentID: "u1", ReportID: "r-" + id, Status: domain.DefensePending}); err != nil {
			t.Fatalf("create defense: %v", err)
		}
	}
	if err := s.CreateDefense(domain.ThesisDefense{ID: "d4", StudentID: "u2", ReportID: "r-d1"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected report reuse conflict, got %v", err)
	}

	page, _ := s.ListDefenses(1, 1)
	if len(page) != 1 || page[0].ID != "d2" {
		t.Fatalf("unexpected page: %+v", page)
	}
	all, _ := s.ListDefenses(0, 0)
	if len(all) != 3 || all[0].ID != "d3" {
		t.Fatalf("unexpected ordering: %+v", all)
	}
	if empty, _ := s.ListDefenses(10, 5); len(empty) != 0 {
		t.Fatalf("expected empty page past the end")
	}

	d := all[0]
	d.Status = domain.DefenseAccepted
	if err := s.UpdateDefense(d); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, ok, _ := s.GetDefense("d3")
	if !ok || got.Status != domain.DefenseAccepted {
		t.Fatalf("update not persisted: %+v", got)
	}
	if err := s.UpdateDefense(domain.ThesisDefense{ID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryStoreJurySeats(t *testing.T) {
	s := NewMemoryStore()
	seat := domain.JuryMember{DefenseID: "d1", ProfessorID: "p1", Role: domain.JuryPresident}
	if err := s.AddJuryMember(seat); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.AddJuryMember(seat); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected duplicate seat conflict, got %v", err)
	}
	if err := s.AddJuryMember(domain.JuryMember{DefenseID: "d1", ProfessorID: "p2", Role: domain.JuryExaminer}); err != nil {
		t.Fatalf("add second: %v", err)
	}

	moved := domain.JuryMember{DefenseID: "d1", ProfessorID: "p2", Role: domain.JurySecretary}
	if err := s.ReplaceJuryMember("d1", "p1", moved); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected move onto taken seat to conflict, got %v", err)
	}
	moved.ProfessorID = "p3"
	if err := s.ReplaceJuryMember("d1", "p1", moved); err != nil {
		t.Fatalf("move seat: %v", err)
	}
	if err := s.ReplaceJuryMember("d1", "p1", moved); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected old seat gone, got %v", err)
	}
	jury, _ := s.ListJury("d1")
	if len(jury) != 2 || jury[0].ProfessorID != "p3" || jury[0].Role != domain.JurySecretary {
		t.Fatalf("unexpected jury: %+v", jury)
	}
	if seats, _ := s.ListJuryByProfessor("p2"); len(seats) != 1 {
		t.Fatalf("expected one seat for p2, got %d", len(seats))
	}
}

func TestMemoryStoreUpsertEvaluationKeepsOneRow(t *testing.T) {
	s := NewMemoryStore()
	first := time.Now().UTC().Add(-time.Hour)
	e, err := s.UpsertEvaluation(domain.Evaluation{ID: "e1", DefenseID: "d1", ProfessorID: "p1", Score: 12, SubmittedAt: first, UpdatedAt: first})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	later := time.Now().UTC()
	e2, err := s.UpsertEvaluation(domain.Evaluation{ID: "e2", DefenseID: "d1", ProfessorID: "p1", Score: 17.5, Comments: "solid", SubmittedAt: later, UpdatedAt: later})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if e2.ID != e.ID || !e2.SubmittedAt.Equal(first) || e2.Score != 17.5 || !e2.UpdatedAt.Equal(later) {
		t.Fatalf("unexpected upsert result: %+v", e2)
	}
	all, _ := s.ListEvaluations("d1")
	if len(all) != 1 {
		t.Fatalf("expected one evaluation row, got %d", len(all))
	}
}

func TestMemoryStoreNotifications(t *testing.T) {
	s := NewMemoryStore()
	_ = s.AppendNotification(domain.Notification{ID: "n1", UserID: "u1", Title: "first"})
	_ = s.AppendNotification(domain.Notification{ID: "n2", UserID: "u1", Title: "second"})
	_ = s.AppendNotification(domain.Notification{ID: "n3", UserID: "u2", Title: "other"})

	list, _ := s.ListNotifications("u1")
	if len(list) != 2 || list[0].ID != "n2" {
		t.Fatalf("expected newest first, got %+v", list)
	}
	if err := s.MarkNotificationRead("n1"); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	n, _, _ := s.GetNotification("n1")
	if !n.IsRead {
		t.Fatalf("expected n1 read")
	}
	if err := s.MarkNotificationRead("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryStoreWithinTxRollsBack(t *testing.T) {
	s := NewMemoryStore()
	boom := errors.New("boom")
	err := s.WithinTx(func(tx Store) error {
		if err := tx.CreateReport(domain.Report{ID: "r1", StudentID: "u1"}); err != nil {
			return err
		}
		if err := tx.CreateDefense(domain.ThesisDefense{ID: "d1", StudentID: "u1", ReportID: "r1"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected tx error, got %v", err)
	}
	if _, ok, _ := s.GetReport("r1"); ok {
		t.Fatalf("report should be rolled back")
	}
	if all, _ := s.ListDefenses(0, 0); len(all) != 0 {
		t.Fatalf("defense should be rolled back")
	}

	err = s.WithinTx(func(tx Store) error {
		return tx.CreateReport(domain.Report{ID: "r1", StudentID: "u1"})
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, ok, _ := s.GetReport("r1"); !ok {
		t.Fatalf("report should be committed")
	}
}

func TestMemoryStoreRecentReportsExcludesOwner(t *testing.T) {
	s := NewMemoryStore()
	_ = s.CreateReport(domain.Report{ID: "r1", StudentID: "u1"})
	_ = s.CreateReport(domain.Report{ID: "r2", StudentID: "u2"})
	_ = s.CreateReport(domain.Report{ID: "r3", StudentID: "u3"})

	recent, _ := s.ListRecentReports("u3", 5)
	if len(recent) != 2 || recent[0].ID != "r2" || recent[1].ID != "r1" {
		t.Fatalf("unexpected recent reports: %+v", recent)
	}
}
