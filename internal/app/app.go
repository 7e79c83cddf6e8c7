package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"soutenance/internal/util"
	"soutenance/pkg/ai"
	"soutenance/pkg/domain"
	"soutenance/pkg/notify"
	"soutenance/pkg/storage"
	"soutenance/pkg/store"
)

// DefaultMaxUploadBytes is the report size ceiling when none is configured.
const DefaultMaxUploadBytes int64 = 10 << 20

// DefaultPublishTimeout bounds how long a request waits on external
// notification delivery after its transaction commits.
const DefaultPublishTimeout = 3 * time.Second

// Config holds runtime configuration for the core application.
type Config struct {
	Store     store.Store
	Sessions  store.SessionStore
	Reports   storage.ReportStore
	Advisor   *ai.Advisor
	Publisher notify.Publisher

	MaxUploadBytes           int64
	PublishTimeout           time.Duration
	AllowAnyStatusTransition bool
	RevealAccountExistence   bool

	// Now and NewID are overridable for tests.
	Now   func() time.Time
	NewID func() string
}

// App is the defense workflow core.
type App struct {
	store     store.Store
	sessions  store.SessionStore
	reports   storage.ReportStore
	advisor   *ai.Advisor
	publisher notify.Publisher

	maxUploadBytes int64
	publishTimeout time.Duration
	anyTransition  bool
	revealAccounts bool
	now            func() time.Time
	newID          func() string
}

// New constructs the application. Store, Sessions and Reports are required.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, errors.New("store required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("session store required")
	}
	if cfg.Reports == nil {
		return nil, errors.New("report store required")
	}
	a := &App{
		store:          cfg.Store,
		sessions:       cfg.Sessions,
		reports:        cfg.Reports,
		advisor:        cfg.Advisor,
		publisher:      cfg.Publisher,
		maxUploadBytes: cfg.MaxUploadBytes,
		publishTimeout: cfg.PublishTimeout,
		anyTransition:  cfg.AllowAnyStatusTransition,
		revealAccounts: cfg.RevealAccountExistence,
		now:            cfg.Now,
		newID:          cfg.NewID,
	}
	if a.advisor == nil {
		a.advisor = ai.NewAdvisor(nil, nil, 0)
	}
	if a.publisher == nil {
		a.publisher = notify.Nop{}
	}
	if a.maxUploadBytes <= 0 {
		a.maxUploadBytes = DefaultMaxUploadBytes
	}
	if a.publishTimeout <= 0 {
		a.publishTimeout = DefaultPublishTimeout
	}
	if a.now == nil {
		a.now = func() time.Time { return time.Now().UTC() }
	}
	if a.newID == nil {
		a.newID = util.NewID
	}
	return a, nil
}

// MaxUploadBytes is the report size ceiling.
func (a *App) MaxUploadBytes() int64 {
	return a.maxUploadBytes
}

func (a *App) getDefense(id string) (domain.ThesisDefense, error) {
	d, ok, err := a.store.GetDefense(id)
	if err != nil {
		return domain.ThesisDefense{}, fmt.Errorf("fetch defense: %w", err)
	}
	if !ok {
		return domain.ThesisDefense{}, ErrDefenseNotFound
	}
	return d, nil
}

// reportOf returns the report attached to d, if any.
func (a *App) reportOf(d domain.ThesisDefense) (*domain.Report, error) {
	if d.ReportID == "" {
		return nil, nil
	}
	r, ok, err := a.store.GetReport(d.ReportID)
	if err != nil {
		return nil, fmt.Errorf("fetch report: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return &r, nil
}

// userNames resolves display names for ids, skipping unknown users.
func (a *App) userNames(ids ...string) (map[string]domain.User, error) {
	users := make(map[string]domain.User, len(ids))
	for _, id := range ids {
		if _, seen := users[id]; seen || id == "" {
			continue
		}
		u, ok, err := a.store.GetUserByID(id)
		if err != nil {
			return nil, fmt.Errorf("fetch user: %w", err)
		}
		if ok {
			users[id] = u
		}
	}
	return users, nil
}

func (a *App) newNotification(userID, title, message, action string) domain.Notification {
	return domain.Notification{
		ID:         a.newID(),
		UserID:     userID,
		Title:      title,
		Message:    message,
		ActionType: action,
		CreatedAt:  a.now(),
	}
}

// publish forwards committed notifications to external channels. Delivery
// failures are logged and never fail the request. All notes share one
// deadline of publishTimeout; a client disconnect does not cut it short.
func (a *App) publish(ctx context.Context, notes ...domain.Notification) {
	if len(notes) == 0 {
		return
	}
	logger := util.LoggerFromContext(ctx)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.publishTimeout)
	defer cancel()
	for _, n := range notes {
		if ctx.Err() != nil {
			logger.Warn("notification delivery skipped", "notification_id", n.ID, "action_type", n.ActionType, "err", ctx.Err())
			continue
		}
		recipient, ok, err := a.store.GetUserByID(n.UserID)
		if err != nil || !ok {
			logger.Warn("notification recipient lookup failed", "notification_id", n.ID, "user_id", n.UserID, "err", err)
			continue
		}
		if err := a.publisher.Publish(ctx, n, recipient); err != nil {
			logger.Warn("notification delivery failed", "notification_id", n.ID, "action_type", n.ActionType, "err", err)
			continue
		}
		logger.Debug("notification delivered", slog.String("notification_id", n.ID))
	}
}
