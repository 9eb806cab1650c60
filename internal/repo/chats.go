package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const chatColumns = `id, listing_id, owner_user_id, chat_user_id, last_message,
last_message_at, last_message_sender_id, is_last_message_read, created_at, updated_at`

func scanChat(row pgx.Row) (*Chat, error) {
	var c Chat
	if err := row.Scan(
		&c.ID, &c.ListingID, &c.OwnerUserID, &c.ChatUserID, &c.LastMessage,
		&c.LastMessageAt, &c.LastMessageSenderID, &c.IsLastMessageRead, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetChatForUser loads a chat by id where userID participates, with its
// listing and ordered message log.
func (r *Postgres) GetChatForUser(ctx context.Context, chatID, userID string) (*ChatWithMessages, error) {
	q := `SELECT ` + chatColumns + ` FROM chats WHERE id = $1 AND (owner_user_id = $2 OR chat_user_id = $2) LIMIT 1;`
	chat, err := scanChat(r.pool.QueryRow(ctx, q, chatID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get chat for user: %w", err)
	}
	return r.hydrateChat(ctx, chat)
}

// FindChat looks up the conversation a given user opened on a listing.
func (r *Postgres) FindChat(ctx context.Context, listingID, chatUserID string) (*ChatWithMessages, error) {
	q := `SELECT ` + chatColumns + ` FROM chats WHERE listing_id = $1 AND chat_user_id = $2 LIMIT 1;`
	chat, err := scanChat(r.pool.QueryRow(ctx, q, listingID, chatUserID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find chat: %w", err)
	}
	return r.hydrateChat(ctx, chat)
}

// CreateChat opens the conversation for (listing, chat user). The unique
// constraint keeps the pair single even under concurrent creation.
func (r *Postgres) CreateChat(ctx context.Context, listingID, ownerUserID, chatUserID string) (*ChatWithMessages, error) {
	q := `
INSERT INTO chats (listing_id, owner_user_id, chat_user_id)
VALUES ($1, $2, $3)
ON CONFLICT (listing_id, chat_user_id) DO UPDATE SET updated_at = chats.updated_at
RETURNING ` + chatColumns + `;`
	chat, err := scanChat(r.pool.QueryRow(ctx, q, listingID, ownerUserID, chatUserID))
	if err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}
	return r.hydrateChat(ctx, chat)
}

// MarkChatRead clears the unread flag on the thread.
func (r *Postgres) MarkChatRead(ctx context.Context, chatID string) error {
	const q = `UPDATE chats SET is_last_message_read = TRUE WHERE id = $1;`
	ct, err := r.pool.Exec(ctx, q, chatID)
	if err != nil {
		return fmt.Errorf("mark chat read: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendMessage inserts the message with the next per-chat seq and refreshes
// the thread's denormalized last-message fields in one transaction.
func (r *Postgres) AppendMessage(ctx context.Context, chatID, senderID, body string) (*Message, error) {
	var msg *Message
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		const insertQ = `
INSERT INTO messages (chat_id, sender_id, body, seq)
SELECT $1, $2, $3, COALESCE(MAX(seq), 0) + 1 FROM messages WHERE chat_id = $1
RETURNING id, chat_id, sender_id, body, seq, created_at;
`
		var m Message
		if err := tx.QueryRow(ctx, insertQ, chatID, senderID, body).Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Body, &m.Seq, &m.CreatedAt); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}

		const updateQ = `
UPDATE chats
SET last_message = $2, last_message_at = $3, last_message_sender_id = $4,
    is_last_message_read = FALSE, updated_at = NOW()
WHERE id = $1;
`
		ct, err := tx.Exec(ctx, updateQ, chatID, m.Body, m.CreatedAt, m.SenderID)
		if err != nil {
			return fmt.Errorf("update chat last message: %w", err)
		}
		if ct.RowsAffected() == 0 {
			return ErrNotFound
		}

		msg = &m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// ListUserChats returns every conversation the user participates in, most
// recently updated first.
func (r *Postgres) ListUserChats(ctx context.Context, userID string) ([]Chat, error) {
	q := `SELECT ` + chatColumns + ` FROM chats WHERE owner_user_id = $1 OR chat_user_id = $1 ORDER BY updated_at DESC;`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list user chats: %w", err)
	}
	defer rows.Close()

	var chats []Chat
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chats = append(chats, *chat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chats: %w", err)
	}
	return chats, nil
}

func (r *Postgres) hydrateChat(ctx context.Context, chat *Chat) (*ChatWithMessages, error) {
	listing, err := r.GetListingByID(ctx, chat.ListingID)
	if err != nil {
		return nil, fmt.Errorf("hydrate chat listing: %w", err)
	}

	const q = `
SELECT id, chat_id, sender_id, body, seq, created_at
FROM messages
WHERE chat_id = $1
ORDER BY seq ASC;
`
	rows, err := r.pool.Query(ctx, q, chat.ID)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Body, &m.Seq, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return &ChatWithMessages{Chat: *chat, Listing: *listing, Messages: messages}, nil
}
