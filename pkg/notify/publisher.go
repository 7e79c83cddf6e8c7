package notify

import (
	"context"
	"errors"

	"soutenance/pkg/domain"
)

// Publisher delivers a stored notification outside the database.
type Publisher interface {
	Publish(ctx context.Context, n domain.Notification, recipient domain.User) error
}

// Multi fans a notification out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, n domain.Notification, recipient domain.User) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, n, recipient); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop drops every notification.
type Nop struct{}

func (Nop) Publish(context.Context, domain.Notification, domain.User) error { return nil }
