package market

import (
	"context"

	"flip-earn/internal/repo"
	"flip-earn/internal/usersync"
)

// HandleUserEvent applies an identity-provider webhook event to the users
// table. Create and update both upsert; delete removes the user only when
// no listing, chat or order references it and retires it otherwise.
func (s *Service) HandleUserEvent(ctx context.Context, event usersync.Event) error {
	switch event.Type {
	case usersync.UserCreated, usersync.UserUpdated:
		_, err := s.store.UpsertUser(ctx, repo.UserProfile{
			ID:    event.UserID,
			Email: event.Email,
			Name:  event.Name,
			Image: event.Image,
		})
		if err != nil {
			s.countWebhook(string(event.Type), "error")
			return Wrap(CodeInternal, "error syncing user", err)
		}
		s.countWebhook(string(event.Type), "ok")
		s.logger.Info("user synced", "user_id", event.UserID, "event", event.Type)
		return nil
	case usersync.UserDeleted:
		deleted, err := s.store.DeleteUserIfUnreferenced(ctx, event.UserID)
		if err != nil {
			s.countWebhook(string(event.Type), "error")
			return Wrap(CodeInternal, "error deleting user", err)
		}
		s.countWebhook(string(event.Type), "ok")
		s.logger.Info("user delete handled", "user_id", event.UserID, "hard_delete", deleted)
		return nil
	default:
		s.countWebhook(string(event.Type), "ignored")
		s.logger.Debug("ignoring webhook event", "event", event.Type)
		return nil
	}
}

func (s *Service) countWebhook(event, status string) {
	if s.metrics != nil {
		s.metrics.WebhookEvents.WithLabelValues(event, status).Inc()
	}
}
