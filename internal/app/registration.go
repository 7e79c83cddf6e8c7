package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"soutenance/pkg/auth"
	"soutenance/pkg/domain"
	"soutenance/pkg/store"
)

// StudentRegistration is the self-service sign-up form of a student.
type StudentRegistration struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	CNI       string
	Phone     string
	CNE       string
	Major     string
	Year      int
}

// ProfessorAccount is what a manager supplies to create a professor.
type ProfessorAccount struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	CNI       string
	Phone     string
	Specialty string
}

// Session is an issued bearer token.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      domain.User
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RegisterStudent creates an inactive student awaiting manager approval.
func (a *App) RegisterStudent(in StudentRegistration) (domain.User, error) {
	email := normalizeEmail(in.Email)
	cni := strings.TrimSpace(in.CNI)
	cne := strings.TrimSpace(in.CNE)
	if email == "" || in.Password == "" || strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "" {
		return domain.User{}, ErrMissingIdentity
	}
	if cne == "" {
		return domain.User{}, badRequest("cne is required")
	}
	if err := validatePassword(in.Password); err != nil {
		return domain.User{}, err
	}
	if err := a.checkUnique(email, cni); err != nil {
		return domain.User{}, err
	}
	taken, err := a.store.HasCNE(cne)
	if err != nil {
		return domain.User{}, fmt.Errorf("check cne: %w", err)
	}
	if taken {
		return domain.User{}, ErrCNETaken
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	now := a.now()
	user := domain.User{
		ID:           a.newID(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		CNI:          cni,
		Phone:        strings.TrimSpace(in.Phone),
		Role:         domain.RoleStudent,
		Active:       false,
		Profile: domain.StudentProfile{
			Major: strings.TrimSpace(in.Major),
			CNE:   cne,
			Year:  in.Year,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.createUser(user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// AddProfessor creates an active professor account.
func (a *App) AddProfessor(in ProfessorAccount) (domain.User, error) {
	email := normalizeEmail(in.Email)
	cni := strings.TrimSpace(in.CNI)
	if email == "" || in.Password == "" || strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "" {
		return domain.User{}, ErrMissingIdentity
	}
	if err := validatePassword(in.Password); err != nil {
		return domain.User{}, err
	}
	if err := a.checkUnique(email, cni); err != nil {
		return domain.User{}, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	now := a.now()
	user := domain.User{
		ID:           a.newID(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		CNI:          cni,
		Phone:        strings.TrimSpace(in.Phone),
		Role:         domain.RoleProfessor,
		Active:       true,
		Profile:      domain.ProfessorProfile{Specialty: strings.TrimSpace(in.Specialty)},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.createUser(user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// EnsureManager creates an active manager with the given credentials unless
// an account with that email already exists. It reports whether it created one.
func (a *App) EnsureManager(email, password string) (bool, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return false, ErrMissingIdentity
	}
	existing, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return false, fmt.Errorf("fetch user: %w", err)
	}
	if ok {
		if !existing.Role.CanManage() {
			return false, ErrBootstrapRole
		}
		return false, nil
	}
	if err := validatePassword(password); err != nil {
		return false, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}
	now := a.now()
	user := domain.User{
		ID:           a.newID(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Manager",
		Role:         domain.RoleManager,
		Active:       true,
		Profile:      domain.ManagerProfile{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.createUser(user); err != nil {
		return false, err
	}
	return true, nil
}

// PendingStudents lists inactive students, oldest registration first.
func (a *App) PendingStudents() ([]domain.User, error) {
	role := domain.RoleStudent
	inactive := false
	users, err := a.store.ListUsers(store.UserFilter{Role: &role, Active: &inactive})
	if err != nil {
		return nil, fmt.Errorf("list pending students: %w", err)
	}
	sort.SliceStable(users, func(i, j int) bool {
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

// Professors returns the professor roster in registration order.
func (a *App) Professors() ([]domain.User, error) {
	role := domain.RoleProfessor
	users, err := a.store.ListUsers(store.UserFilter{Role: &role})
	if err != nil {
		return nil, fmt.Errorf("list professors: %w", err)
	}
	return users, nil
}

// Approve activates a pending account and notifies its owner.
func (a *App) Approve(ctx context.Context, userID string) (domain.User, error) {
	var (
		user domain.User
		note domain.Notification
	)
	err := a.store.WithinTx(func(tx store.Store) error {
		u, ok, err := tx.GetUserByID(userID)
		if err != nil {
			return fmt.Errorf("fetch user: %w", err)
		}
		if !ok {
			return ErrUserNotFound
		}
		if u.Active {
			return ErrAlreadyActive
		}
		u.Active = true
		u.UpdatedAt = a.now()
		if err := tx.UpdateUser(u); err != nil {
			return fmt.Errorf("activate user: %w", err)
		}
		note = a.newNotification(u.ID, "Account approved",
			"Your account has been approved. You can now sign in and submit your defense request.",
			domain.ActionAccountActive)
		if err := tx.AppendNotification(note); err != nil {
			return fmt.Errorf("append notification: %w", err)
		}
		user = u
		return nil
	})
	if err != nil {
		return domain.User{}, err
	}
	a.publish(ctx, note)
	return user, nil
}

// Reject deletes a pending account together with its role detail.
func (a *App) Reject(userID string) error {
	return a.store.WithinTx(func(tx store.Store) error {
		u, ok, err := tx.GetUserByID(userID)
		if err != nil {
			return fmt.Errorf("fetch user: %w", err)
		}
		if !ok {
			return ErrUserNotFound
		}
		if u.Active {
			return ErrRejectActive
		}
		if err := tx.DeleteUser(userID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("delete user: %w", err)
		}
		return nil
	})
}

// Login verifies credentials and issues a bearer token.
func (a *App) Login(email, password string) (Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return Session{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		if a.revealAccounts {
			return Session{}, ErrUnknownAccount
		}
		return Session{}, ErrInvalidCredentials
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		if a.revealAccounts {
			return Session{}, ErrWrongPassword
		}
		return Session{}, ErrInvalidCredentials
	}
	if !user.Active {
		return Session{}, ErrAccountPending
	}
	token, expiresAt, err := a.sessions.NewSession(user)
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	return Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Authenticate resolves the active user behind a bearer token.
func (a *App) Authenticate(token string) (domain.User, error) {
	claims, err := a.sessions.ParseToken(token)
	if err != nil {
		return domain.User{}, &Error{Kind: KindUnauthorized, Msg: "unauthorized", Err: err}
	}
	user, ok, err := a.store.GetUserByID(claims.UserID)
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok || !user.Active {
		return domain.User{}, ErrUnauthorized
	}
	return user, nil
}

// Logout revokes the token until it expires.
func (a *App) Logout(token string) error {
	if err := a.sessions.DeleteSession(token); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (a *App) checkUnique(email, cni string) error {
	taken, err := a.store.HasUserEmail(email)
	if err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if taken {
		return ErrEmailTaken
	}
	if cni == "" {
		return nil
	}
	taken, err = a.store.HasCNI(cni)
	if err != nil {
		return fmt.Errorf("check cni: %w", err)
	}
	if taken {
		return ErrCNITaken
	}
	return nil
}

func (a *App) createUser(u domain.User) error {
	if err := a.store.CreateUser(u); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return newError(KindConflict, "email, CNI or CNE already registered")
		}
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func validatePassword(password string) error {
	if err := auth.ValidatePassword(password); err != nil {
		return &Error{Kind: KindBadRequest, Msg: err.Error()}
	}
	return nil
}
