package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// -- Users --

func (r *SQLite) UpsertUser(ctx context.Context, profile UserProfile) (*User, error) {
	now := time.Now().UTC()
	const q = `
INSERT INTO users (id, email, name, image, status, created_at, updated_at)
VALUES (?, ?, ?, ?, 'active', ?, ?)
ON CONFLICT (id) DO UPDATE SET
    email = excluded.email,
    name = excluded.name,
    image = excluded.image,
    updated_at = excluded.updated_at
RETURNING id, email, name, image, earned, withdrawn, status, created_at, updated_at;
`
	row := r.db.QueryRowContext(ctx, q, profile.ID, profile.Email, profile.Name, profile.Image, now, now)
	u, err := sqliteScanUser(row)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return u, nil
}

func sqliteScanUser(row *sql.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Image, &u.Earned, &u.Withdrawn, &u.Status, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *SQLite) GetUserByID(ctx context.Context, id string) (*User, error) {
	const q = `
SELECT id, email, name, image, earned, withdrawn, status, created_at, updated_at
FROM users
WHERE id = ?
LIMIT 1;
`
	u, err := sqliteScanUser(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

func (r *SQLite) DeleteUserIfUnreferenced(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		const countQ = `
SELECT
    (SELECT COUNT(*) FROM listings WHERE owner_id = ?) +
    (SELECT COUNT(*) FROM chats WHERE owner_user_id = ? OR chat_user_id = ?) +
    (SELECT COUNT(*) FROM orders WHERE user_id = ?);
`
		var refs int64
		if err := tx.QueryRowContext(ctx, countQ, id, id, id, id).Scan(&refs); err != nil {
			return fmt.Errorf("count user references: %w", err)
		}

		if refs == 0 {
			res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?;`, id)
			if err != nil {
				return fmt.Errorf("delete user: %w", err)
			}
			n, _ := res.RowsAffected()
			deleted = n > 0
			return nil
		}

		if _, err := tx.ExecContext(ctx, `UPDATE users SET status = 'inactive', updated_at = ? WHERE id = ?;`, time.Now().UTC(), id); err != nil {
			return fmt.Errorf("deactivate user: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

func (r *SQLite) Withdraw(ctx context.Context, userID string, amount int64) (*User, error) {
	const q = `
UPDATE users
SET withdrawn = withdrawn + ?, updated_at = ?
WHERE id = ? AND earned - withdrawn >= ?
RETURNING id, email, name, image, earned, withdrawn, status, created_at, updated_at;
`
	u, err := sqliteScanUser(r.db.QueryRowContext(ctx, q, amount, time.Now().UTC(), userID, amount))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInsufficientBalance
		}
		return nil, fmt.Errorf("withdraw: %w", err)
	}
	return u, nil
}

// -- Listings --

const sqliteListingColumns = `id, owner_id, title, platform, username, niche,
followers_count, engagement_rate, monthly_views, price, country, age_range,
verified, monetized, images, status, is_featured,
is_credential_submitted, is_credential_verified, is_credential_changed,
created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func sqliteScanListing(row rowScanner) (*Listing, error) {
	var l Listing
	var images []byte
	var verified, monetized, featured, submitted, verifiedCred, changed int
	if err := row.Scan(
		&l.ID, &l.OwnerID, &l.Title, &l.Platform, &l.Username, &l.Niche,
		&l.FollowersCount, &l.EngagementRate, &l.MonthlyViews, &l.Price, &l.Country, &l.AgeRange,
		&verified, &monetized, &images, &l.Status, &featured,
		&submitted, &verifiedCred, &changed,
		&l.CreatedAt, &l.UpdatedAt,
	); err != nil {
		return nil, err
	}
	l.Verified = verified != 0
	l.Monetized = monetized != 0
	l.IsFeatured = featured != 0
	l.IsCredentialSubmitted = submitted != 0
	l.IsCredentialVerified = verifiedCred != 0
	l.IsCredentialChanged = changed != 0

	urls, err := unmarshalImages(images)
	if err != nil {
		return nil, err
	}
	l.Images = urls
	return &l, nil
}

func (r *SQLite) InsertListing(ctx context.Context, listing Listing) (*Listing, error) {
	images, err := marshalJSON(listing.Images)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	q := `
INSERT INTO listings (id, owner_id, title, platform, username, niche,
    followers_count, engagement_rate, monthly_views, price, country, age_range,
    verified, monetized, images, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + sqliteListingColumns + `;`

	row := r.db.QueryRowContext(ctx, q,
		uuid.NewString(), listing.OwnerID, listing.Title, listing.Platform, listing.Username, listing.Niche,
		listing.FollowersCount, listing.EngagementRate, listing.MonthlyViews, listing.Price,
		listing.Country, listing.AgeRange, boolInt(listing.Verified), boolInt(listing.Monetized),
		string(images), string(listing.Status), now, now,
	)
	inserted, err := sqliteScanListing(row)
	if err != nil {
		return nil, fmt.Errorf("insert listing: %w", err)
	}
	return inserted, nil
}

func (r *SQLite) GetListingByID(ctx context.Context, id string) (*Listing, error) {
	return sqliteGetListing(ctx, r.db, id)
}

func sqliteGetListing(ctx context.Context, q querier, id string) (*Listing, error) {
	query := `SELECT ` + sqliteListingColumns + ` FROM listings WHERE id = ? LIMIT 1;`
	listing, err := sqliteScanListing(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get listing by id: %w", err)
	}
	return listing, nil
}

func (r *SQLite) ListPublicListings(ctx context.Context) ([]Listing, error) {
	q := `SELECT ` + sqliteListingColumns + ` FROM listings WHERE status = ? ORDER BY created_at DESC, rowid DESC;`
	return r.queryListings(ctx, q, string(StatusActive))
}

func (r *SQLite) ListOwnerListings(ctx context.Context, ownerID string) ([]Listing, error) {
	q := `SELECT ` + sqliteListingColumns + ` FROM listings WHERE owner_id = ? AND status <> ? ORDER BY created_at DESC, rowid DESC;`
	return r.queryListings(ctx, q, ownerID, string(StatusDeleted))
}

func (r *SQLite) CountOwnerListings(ctx context.Context, ownerID string) (int, error) {
	const q = `SELECT COUNT(*) FROM listings WHERE owner_id = ? AND status <> ?;`
	var count int
	if err := r.db.QueryRowContext(ctx, q, ownerID, string(StatusDeleted)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count owner listings: %w", err)
	}
	return count, nil
}

func (r *SQLite) UpdateListing(ctx context.Context, listing Listing) (*Listing, error) {
	images, err := marshalJSON(listing.Images)
	if err != nil {
		return nil, err
	}
	q := `
UPDATE listings
SET title = ?, platform = ?, username = ?, niche = ?,
    followers_count = ?, engagement_rate = ?, monthly_views = ?, price = ?,
    country = ?, age_range = ?, verified = ?, monetized = ?,
    images = ?, updated_at = ?
WHERE id = ?
RETURNING ` + sqliteListingColumns + `;`

	row := r.db.QueryRowContext(ctx, q,
		listing.Title, listing.Platform, listing.Username, listing.Niche,
		listing.FollowersCount, listing.EngagementRate, listing.MonthlyViews, listing.Price,
		listing.Country, listing.AgeRange, boolInt(listing.Verified), boolInt(listing.Monetized),
		string(images), time.Now().UTC(), listing.ID,
	)
	updated, err := sqliteScanListing(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update listing: %w", err)
	}
	return updated, nil
}

func (r *SQLite) SwitchListingStatus(ctx context.Context, id string, from, to ListingStatus) error {
	const q = `UPDATE listings SET status = ?, updated_at = ? WHERE id = ? AND status = ?;`
	res, err := r.db.ExecContext(ctx, q, string(to), time.Now().UTC(), id, string(from))
	if err != nil {
		return fmt.Errorf("switch listing status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStale
	}
	return nil
}

func (r *SQLite) SoftDeleteListing(ctx context.Context, id string) error {
	const q = `
UPDATE listings
SET status = ?, updated_at = ?
WHERE id = ? AND status <> ? AND is_credential_changed = 0;
`
	res, err := r.db.ExecContext(ctx, q, string(StatusDeleted), time.Now().UTC(), id, string(StatusSold))
	if err != nil {
		return fmt.Errorf("soft delete listing: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStale
	}
	return nil
}

func (r *SQLite) SetFeatured(ctx context.Context, id string, featured bool) error {
	const q = `UPDATE listings SET is_featured = ?, updated_at = ? WHERE id = ?;`
	res, err := r.db.ExecContext(ctx, q, boolInt(featured), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set featured: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLite) queryListings(ctx context.Context, q string, args ...any) ([]Listing, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}
	defer rows.Close()

	var listings []Listing
	for rows.Next() {
		listing, err := sqliteScanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		listings = append(listings, *listing)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listings: %w", err)
	}
	return listings, nil
}

// -- Credentials --

func sqliteScanCredential(row rowScanner) (*Credential, error) {
	var c Credential
	var original, updated []byte
	if err := row.Scan(&c.ID, &c.ListingID, &original, &updated, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if c.Original, err = unmarshalFields(original); err != nil {
		return nil, err
	}
	if c.Updated, err = unmarshalFields(updated); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *SQLite) InsertCredential(ctx context.Context, listingID string, fields []CredentialField) (*Credential, error) {
	payload, err := marshalJSON(fields)
	if err != nil {
		return nil, err
	}

	var cred *Credential
	err = r.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM credentials WHERE listing_id = ?);`, listingID).Scan(&exists); err != nil {
			return fmt.Errorf("check credential exists: %w", err)
		}
		if exists != 0 {
			return ErrAlreadyExists
		}

		now := time.Now().UTC()
		const insertQ = `
INSERT INTO credentials (id, listing_id, original, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
RETURNING id, listing_id, original, updated, created_at, updated_at;
`
		c, err := sqliteScanCredential(tx.QueryRowContext(ctx, insertQ, uuid.NewString(), listingID, string(payload), now, now))
		if err != nil {
			return fmt.Errorf("insert credential: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `UPDATE listings SET is_credential_submitted = 1, updated_at = ? WHERE id = ?;`, now, listingID); err != nil {
			return fmt.Errorf("mark credential submitted: %w", err)
		}

		cred = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cred, nil
}

func (r *SQLite) GetCredentialByListingID(ctx context.Context, listingID string) (*Credential, error) {
	const q = `
SELECT id, listing_id, original, updated, created_at, updated_at
FROM credentials
WHERE listing_id = ?
LIMIT 1;
`
	cred, err := sqliteScanCredential(r.db.QueryRowContext(ctx, q, listingID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return cred, nil
}

func (r *SQLite) SetCredentialVerified(ctx context.Context, listingID string) error {
	const q = `
UPDATE listings
SET is_credential_verified = 1, updated_at = ?
WHERE id = ? AND is_credential_submitted = 1;
`
	res, err := r.db.ExecContext(ctx, q, time.Now().UTC(), listingID)
	if err != nil {
		return fmt.Errorf("set credential verified: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStale
	}
	return nil
}

func (r *SQLite) RotateCredential(ctx context.Context, listingID string, fields []CredentialField) error {
	payload, err := marshalJSON(fields)
	if err != nil {
		return err
	}

	return r.withTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		res, err := tx.ExecContext(ctx, `UPDATE credentials SET updated = ?, updated_at = ? WHERE listing_id = ?;`, string(payload), now, listingID)
		if err != nil {
			return fmt.Errorf("rotate credential: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		if _, err := tx.ExecContext(ctx, `UPDATE listings SET is_credential_changed = 1, updated_at = ? WHERE id = ?;`, now, listingID); err != nil {
			return fmt.Errorf("mark credential changed: %w", err)
		}
		return nil
	})
}

// -- Orders --

func (r *SQLite) Purchase(ctx context.Context, listingID, buyerID string) (*Order, error) {
	var order *Order
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		const sellQ = `
UPDATE listings
SET status = ?, updated_at = ?
WHERE id = ? AND status = ?
RETURNING owner_id, price;
`
		var ownerID string
		var price int64
		if err := tx.QueryRowContext(ctx, sellQ, string(StatusSold), now, listingID, string(StatusActive)).Scan(&ownerID, &price); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotAvailable
			}
			return fmt.Errorf("mark listing sold: %w", err)
		}

		const orderQ = `
INSERT INTO orders (id, user_id, listing_id, amount, is_paid, created_at)
VALUES (?, ?, ?, ?, 1, ?)
RETURNING id, user_id, listing_id, amount, is_paid, created_at;
`
		var o Order
		var paid int
		if err := tx.QueryRowContext(ctx, orderQ, uuid.NewString(), buyerID, listingID, price, now).Scan(&o.ID, &o.UserID, &o.ListingID, &o.Amount, &paid, &o.CreatedAt); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		o.IsPaid = paid != 0

		res, err := tx.ExecContext(ctx, `UPDATE users SET earned = earned + ?, updated_at = ? WHERE id = ?;`, price, now, ownerID)
		if err != nil {
			return fmt.Errorf("credit seller: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("credit seller: owner %s missing", ownerID)
		}

		order = &o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *SQLite) ListUserOrders(ctx context.Context, userID string) ([]OrderWithListing, error) {
	const q = `
SELECT o.id, o.user_id, o.listing_id, o.amount, o.is_paid, o.created_at
FROM orders o
WHERE o.user_id = ? AND o.is_paid = 1
ORDER BY o.created_at DESC, o.rowid DESC;
`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list user orders: %w", err)
	}
	defer rows.Close()

	var orders []OrderWithListing
	for rows.Next() {
		var ow OrderWithListing
		var paid int
		if err := rows.Scan(&ow.ID, &ow.UserID, &ow.ListingID, &ow.Amount, &paid, &ow.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user order: %w", err)
		}
		ow.IsPaid = paid != 0
		orders = append(orders, ow)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user orders: %w", err)
	}

	for i := range orders {
		listing, err := sqliteGetListing(ctx, r.db, orders[i].ListingID)
		if err != nil {
			return nil, fmt.Errorf("load order listing: %w", err)
		}
		orders[i].Listing = *listing

		cred, err := r.GetCredentialByListingID(ctx, orders[i].ListingID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		orders[i].Credential = cred
	}
	return orders, nil
}

// -- Chats --

const sqliteChatColumns = `id, listing_id, owner_user_id, chat_user_id, last_message,
last_message_at, last_message_sender_id, is_last_message_read, created_at, updated_at`

func sqliteScanChat(row rowScanner) (*Chat, error) {
	var c Chat
	var lastAt sql.NullTime
	var read int
	if err := row.Scan(
		&c.ID, &c.ListingID, &c.OwnerUserID, &c.ChatUserID, &c.LastMessage,
		&lastAt, &c.LastMessageSenderID, &read, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if lastAt.Valid {
		t := lastAt.Time
		c.LastMessageAt = &t
	}
	c.IsLastMessageRead = read != 0
	return &c, nil
}

func (r *SQLite) GetChatForUser(ctx context.Context, chatID, userID string) (*ChatWithMessages, error) {
	q := `SELECT ` + sqliteChatColumns + ` FROM chats WHERE id = ? AND (owner_user_id = ? OR chat_user_id = ?) LIMIT 1;`
	chat, err := sqliteScanChat(r.db.QueryRowContext(ctx, q, chatID, userID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get chat for user: %w", err)
	}
	return r.hydrateChat(ctx, chat)
}

func (r *SQLite) FindChat(ctx context.Context, listingID, chatUserID string) (*ChatWithMessages, error) {
	q := `SELECT ` + sqliteChatColumns + ` FROM chats WHERE listing_id = ? AND chat_user_id = ? LIMIT 1;`
	chat, err := sqliteScanChat(r.db.QueryRowContext(ctx, q, listingID, chatUserID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find chat: %w", err)
	}
	return r.hydrateChat(ctx, chat)
}

func (r *SQLite) CreateChat(ctx context.Context, listingID, ownerUserID, chatUserID string) (*ChatWithMessages, error) {
	now := time.Now().UTC()
	const insertQ = `
INSERT INTO chats (id, listing_id, owner_user_id, chat_user_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (listing_id, chat_user_id) DO NOTHING;
`
	if _, err := r.db.ExecContext(ctx, insertQ, uuid.NewString(), listingID, ownerUserID, chatUserID, now, now); err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}
	return r.FindChat(ctx, listingID, chatUserID)
}

func (r *SQLite) MarkChatRead(ctx context.Context, chatID string) error {
	const q = `UPDATE chats SET is_last_message_read = 1 WHERE id = ?;`
	res, err := r.db.ExecContext(ctx, q, chatID)
	if err != nil {
		return fmt.Errorf("mark chat read: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLite) AppendMessage(ctx context.Context, chatID, senderID, body string) (*Message, error) {
	var msg *Message
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		const insertQ = `
INSERT INTO messages (id, chat_id, sender_id, body, seq, created_at)
SELECT ?, ?, ?, ?, COALESCE(MAX(seq), 0) + 1, ? FROM messages WHERE chat_id = ?
RETURNING id, chat_id, sender_id, body, seq, created_at;
`
		var m Message
		if err := tx.QueryRowContext(ctx, insertQ, uuid.NewString(), chatID, senderID, body, now, chatID).Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Body, &m.Seq, &m.CreatedAt); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}

		const updateQ = `
UPDATE chats
SET last_message = ?, last_message_at = ?, last_message_sender_id = ?,
    is_last_message_read = 0, updated_at = ?
WHERE id = ?;
`
		res, err := tx.ExecContext(ctx, updateQ, m.Body, m.CreatedAt, m.SenderID, now, chatID)
		if err != nil {
			return fmt.Errorf("update chat last message: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
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

func (r *SQLite) ListUserChats(ctx context.Context, userID string) ([]Chat, error) {
	q := `SELECT ` + sqliteChatColumns + ` FROM chats WHERE owner_user_id = ? OR chat_user_id = ? ORDER BY updated_at DESC, rowid DESC;`
	rows, err := r.db.QueryContext(ctx, q, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("list user chats: %w", err)
	}
	defer rows.Close()

	var chats []Chat
	for rows.Next() {
		chat, err := sqliteScanChat(rows)
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

func (r *SQLite) hydrateChat(ctx context.Context, chat *Chat) (*ChatWithMessages, error) {
	listing, err := sqliteGetListing(ctx, r.db, chat.ListingID)
	if err != nil {
		return nil, fmt.Errorf("hydrate chat listing: %w", err)
	}

	const q = `
SELECT id, chat_id, sender_id, body, seq, created_at
FROM messages
WHERE chat_id = ?
ORDER BY seq ASC;
`
	rows, err := r.db.QueryContext(ctx, q, chat.ID)
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
