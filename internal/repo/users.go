package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// UpsertUser stores or refreshes the user profile delivered by the identity
// provider. Earned/withdrawn are never touched here.
func (r *Postgres) UpsertUser(ctx context.Context, profile UserProfile) (*User, error) {
	const q = `
INSERT INTO users (id, email, name, image, status, updated_at)
VALUES ($1, $2, $3, $4, 'active', NOW())
ON CONFLICT (id) DO UPDATE SET
    email = EXCLUDED.email,
    name = EXCLUDED.name,
    image = EXCLUDED.image,
    updated_at = NOW()
RETURNING id, email, name, image, earned, withdrawn, status, created_at, updated_at;
`
	row := r.pool.QueryRow(ctx, q, profile.ID, profile.Email, profile.Name, profile.Image)

	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Image, &u.Earned, &u.Withdrawn, &u.Status, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return &u, nil
}

// GetUserByID returns the user by identity-provider id.
func (r *Postgres) GetUserByID(ctx context.Context, id string) (*User, error) {
	const q = `
SELECT id, email, name, image, earned, withdrawn, status, created_at, updated_at
FROM users
WHERE id = $1
LIMIT 1;
`
	row := r.pool.QueryRow(ctx, q, id)
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Image, &u.Earned, &u.Withdrawn, &u.Status, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return &u, nil
}

// DeleteUserIfUnreferenced hard-deletes the user only when nothing points at
// it; otherwise the row is kept with status inactive so listings, chats and
// orders stay resolvable.
func (r *Postgres) DeleteUserIfUnreferenced(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		const countQ = `
SELECT
    (SELECT COUNT(*) FROM listings WHERE owner_id = $1) +
    (SELECT COUNT(*) FROM chats WHERE owner_user_id = $1 OR chat_user_id = $1) +
    (SELECT COUNT(*) FROM orders WHERE user_id = $1);
`
		var refs int64
		if err := tx.QueryRow(ctx, countQ, id).Scan(&refs); err != nil {
			return fmt.Errorf("count user references: %w", err)
		}

		if refs == 0 {
			ct, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1;`, id)
			if err != nil {
				return fmt.Errorf("delete user: %w", err)
			}
			deleted = ct.RowsAffected() > 0
			return nil
		}

		if _, err := tx.Exec(ctx, `UPDATE users SET status = 'inactive', updated_at = NOW() WHERE id = $1;`, id); err != nil {
			return fmt.Errorf("deactivate user: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

// Withdraw moves amount from available to withdrawn. The balance guard sits
// in the WHERE clause so two concurrent withdrawals cannot jointly overdraw.
func (r *Postgres) Withdraw(ctx context.Context, userID string, amount int64) (*User, error) {
	const q = `
UPDATE users
SET withdrawn = withdrawn + $2, updated_at = NOW()
WHERE id = $1 AND earned - withdrawn >= $2
RETURNING id, email, name, image, earned, withdrawn, status, created_at, updated_at;
`
	row := r.pool.QueryRow(ctx, q, userID, amount)
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Image, &u.Earned, &u.Withdrawn, &u.Status, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInsufficientBalance
		}
		return nil, fmt.Errorf("withdraw: %w", err)
	}
	return &u, nil
}
