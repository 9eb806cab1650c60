package market

import (
	"context"
	"errors"
	"strings"

	"flip-earn/internal/auth"
	"flip-earn/internal/repo"
)

// GetOrCreateChat resolves a chat thread for the actor. With chatID set it
// loads that thread (participants only). With listingID set it finds the
// actor's thread for that listing, creating one on first contact; the owner
// cannot open a thread against their own listing. Loading a thread whose
// last message was sent by the other side marks it read.
func (s *Service) GetOrCreateChat(ctx context.Context, actor auth.Identity, chatID, listingID string) (*repo.ChatWithMessages, error) {
	var (
		chat *repo.ChatWithMessages
		err  error
	)
	switch {
	case chatID != "":
		chat, err = s.store.GetChatForUser(ctx, chatID, actor.UserID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, E(CodeNotFound, "chat not found")
			}
			return nil, Wrap(CodeInternal, "error fetching chat", err)
		}
	case listingID != "":
		listing, lerr := s.store.GetListingByID(ctx, listingID)
		if lerr != nil {
			if errors.Is(lerr, repo.ErrNotFound) {
				return nil, E(CodeNotFound, "listing not found")
			}
			return nil, Wrap(CodeInternal, "error fetching chat", lerr)
		}
		if listing.OwnerID == actor.UserID {
			return nil, E(CodeValidation, "you cannot start a chat on your own listing")
		}
		chat, err = s.store.FindChat(ctx, listingID, actor.UserID)
		if errors.Is(err, repo.ErrNotFound) {
			chat, err = s.store.CreateChat(ctx, listingID, listing.OwnerID, actor.UserID)
		}
		if err != nil {
			return nil, Wrap(CodeInternal, "error fetching chat", err)
		}
	default:
		return nil, E(CodeValidation, "chat id or listing id is required")
	}

	if !chat.IsLastMessageRead && chat.LastMessageSenderID != "" && chat.LastMessageSenderID != actor.UserID {
		if err := s.store.MarkChatRead(ctx, chat.ID); err != nil {
			s.logger.Warn("mark chat read failed", "chat_id", chat.ID, "error", err)
		} else {
			chat.IsLastMessageRead = true
		}
	}
	return chat, nil
}

// SendMessage appends a message to a thread the actor participates in. The
// listing must still be active; threads on sold, banned or delisted
// listings are read-only.
func (s *Service) SendMessage(ctx context.Context, actor auth.Identity, chatID, body string) (*repo.Message, error) {
	body = strings.TrimSpace(body)
	if chatID == "" || body == "" {
		return nil, E(CodeValidation, "chat id and message text are required")
	}

	chat, err := s.store.GetChatForUser(ctx, chatID, actor.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, E(CodeNotFound, "chat not found")
		}
		return nil, Wrap(CodeInternal, "error sending message", err)
	}
	if chat.Listing.Status != repo.StatusActive {
		if s.metrics != nil {
			s.metrics.ChatMessages.WithLabelValues("rejected").Inc()
		}
		return nil, E(CodeInactiveListing, "listing is no longer active")
	}

	msg, err := s.store.AppendMessage(ctx, chatID, actor.UserID, body)
	if err != nil {
		return nil, Wrap(CodeInternal, "error sending message", err)
	}
	if s.metrics != nil {
		s.metrics.ChatMessages.WithLabelValues("ok").Inc()
	}
	return msg, nil
}

// UserChats lists the actor's threads, most recently touched first.
func (s *Service) UserChats(ctx context.Context, actor auth.Identity) ([]repo.Chat, error) {
	chats, err := s.store.ListUserChats(ctx, actor.UserID)
	if err != nil {
		return nil, Wrap(CodeInternal, "error fetching chats", err)
	}
	return chats, nil
}
