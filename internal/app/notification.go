package app

import (
	"errors"
	"fmt"

	"soutenance/pkg/domain"
	"soutenance/pkg/store"
)

// Notifications returns the user's notifications, newest first.
func (a *App) Notifications(user domain.User) ([]domain.Notification, error) {
	notes, err := a.store.ListNotifications(user.ID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notes, nil
}

// MarkNotificationRead flags one of the user's notifications as read.
// Marking an already read notification succeeds.
func (a *App) MarkNotificationRead(user domain.User, id string) (domain.Notification, error) {
	n, ok, err := a.store.GetNotification(id)
	if err != nil {
		return domain.Notification{}, fmt.Errorf("fetch notification: %w", err)
	}
	if !ok {
		return domain.Notification{}, ErrNotificationNotFound
	}
	if n.UserID != user.ID {
		return domain.Notification{}, ErrNotificationOwner
	}
	if n.IsRead {
		return n, nil
	}
	if err := a.store.MarkNotificationRead(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Notification{}, ErrNotificationNotFound
		}
		return domain.Notification{}, fmt.Errorf("mark notification read: %w", err)
	}
	n.IsRead = true
	return n, nil
}
