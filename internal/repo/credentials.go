package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

func scanCredential(row pgx.Row) (*Credential, error) {
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

// InsertCredential stores the original credential payload and flips the
// listing's submitted flag in one transaction. A second submission for the
// same listing returns ErrAlreadyExists.
func (r *Postgres) InsertCredential(ctx context.Context, listingID string, fields []CredentialField) (*Credential, error) {
	payload, err := marshalJSON(fields)
	if err != nil {
		return nil, err
	}

	var cred *Credential
	err = r.WithTx(ctx, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM credentials WHERE listing_id = $1);`, listingID).Scan(&exists); err != nil {
			return fmt.Errorf("check credential exists: %w", err)
		}
		if exists {
			return ErrAlreadyExists
		}

		const insertQ = `
INSERT INTO credentials (listing_id, original)
VALUES ($1, $2)
RETURNING id, listing_id, original, updated, created_at, updated_at;
`
		c, err := scanCredential(tx.QueryRow(ctx, insertQ, listingID, string(payload)))
		if err != nil {
			return fmt.Errorf("insert credential: %w", err)
		}

		if _, err := tx.Exec(ctx, `UPDATE listings SET is_credential_submitted = TRUE, updated_at = NOW() WHERE id = $1;`, listingID); err != nil {
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

// GetCredentialByListingID loads the credential record for a listing.
func (r *Postgres) GetCredentialByListingID(ctx context.Context, listingID string) (*Credential, error) {
	const q = `
SELECT id, listing_id, original, updated, created_at, updated_at
FROM credentials
WHERE listing_id = $1
LIMIT 1;
`
	cred, err := scanCredential(r.pool.QueryRow(ctx, q, listingID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return cred, nil
}

// SetCredentialVerified marks the listing's submitted credential verified.
func (r *Postgres) SetCredentialVerified(ctx context.Context, listingID string) error {
	const q = `
UPDATE listings
SET is_credential_verified = TRUE, updated_at = NOW()
WHERE id = $1 AND is_credential_submitted = TRUE;
`
	ct, err := r.pool.Exec(ctx, q, listingID)
	if err != nil {
		return fmt.Errorf("set credential verified: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrStale
	}
	return nil
}

// RotateCredential stores the post-sale payload and flags the listing as
// changed, in one transaction.
func (r *Postgres) RotateCredential(ctx context.Context, listingID string, fields []CredentialField) error {
	payload, err := marshalJSON(fields)
	if err != nil {
		return err
	}

	return r.WithTx(ctx, func(tx pgx.Tx) error {
		ct, err := tx.Exec(ctx, `UPDATE credentials SET updated = $2, updated_at = NOW() WHERE listing_id = $1;`, listingID, string(payload))
		if err != nil {
			return fmt.Errorf("rotate credential: %w", err)
		}
		if ct.RowsAffected() == 0 {
			return ErrNotFound
		}
		if _, err := tx.Exec(ctx, `UPDATE listings SET is_credential_changed = TRUE, updated_at = NOW() WHERE id = $1;`, listingID); err != nil {
			return fmt.Errorf("mark credential changed: %w", err)
		}
		return nil
	})
}
