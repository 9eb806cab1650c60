package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Purchase executes the purchase transaction: flip the listing to sold,
// insert the paid order with the price snapshot and credit the seller, all
// or nothing. The active->sold conditional update is the double-sale guard;
// a zero-rows result aborts with ErrNotAvailable before anything else runs.
func (r *Postgres) Purchase(ctx context.Context, listingID, buyerID string) (*Order, error) {
	var order *Order
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		const sellQ = `
UPDATE listings
SET status = $2, updated_at = NOW()
WHERE id = $1 AND status = $3
RETURNING owner_id, price;
`
		var ownerID string
		var price int64
		if err := tx.QueryRow(ctx, sellQ, listingID, StatusSold, StatusActive).Scan(&ownerID, &price); err != nil {
			if err == pgx.ErrNoRows {
				return ErrNotAvailable
			}
			return fmt.Errorf("mark listing sold: %w", err)
		}

		const orderQ = `
INSERT INTO orders (user_id, listing_id, amount, is_paid)
VALUES ($1, $2, $3, TRUE)
RETURNING id, user_id, listing_id, amount, is_paid, created_at;
`
		var o Order
		if err := tx.QueryRow(ctx, orderQ, buyerID, listingID, price).Scan(&o.ID, &o.UserID, &o.ListingID, &o.Amount, &o.IsPaid, &o.CreatedAt); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		ct, err := tx.Exec(ctx, `UPDATE users SET earned = earned + $2, updated_at = NOW() WHERE id = $1;`, ownerID, price)
		if err != nil {
			return fmt.Errorf("credit seller: %w", err)
		}
		if ct.RowsAffected() == 0 {
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

// ListUserOrders returns the buyer's paid orders, newest first, joined with
// their listings and credentials where submitted.
func (r *Postgres) ListUserOrders(ctx context.Context, userID string) ([]OrderWithListing, error) {
	q := `
SELECT o.id, o.user_id, o.listing_id, o.amount, o.is_paid, o.created_at, ` + prefixedListingColumns("l") + `
FROM orders o
JOIN listings l ON l.id = o.listing_id
WHERE o.user_id = $1 AND o.is_paid = TRUE
ORDER BY o.created_at DESC;
`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list user orders: %w", err)
	}
	defer rows.Close()

	var orders []OrderWithListing
	for rows.Next() {
		var ow OrderWithListing
		var images []byte
		l := &ow.Listing
		if err := rows.Scan(
			&ow.ID, &ow.UserID, &ow.ListingID, &ow.Amount, &ow.IsPaid, &ow.CreatedAt,
			&l.ID, &l.OwnerID, &l.Title, &l.Platform, &l.Username, &l.Niche,
			&l.FollowersCount, &l.EngagementRate, &l.MonthlyViews, &l.Price, &l.Country, &l.AgeRange,
			&l.Verified, &l.Monetized, &images, &l.Status, &l.IsFeatured,
			&l.IsCredentialSubmitted, &l.IsCredentialVerified, &l.IsCredentialChanged,
			&l.CreatedAt, &l.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan user order: %w", err)
		}
		urls, err := unmarshalImages(images)
		if err != nil {
			return nil, err
		}
		l.Images = urls
		orders = append(orders, ow)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user orders: %w", err)
	}

	if err := r.attachCredentials(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *Postgres) attachCredentials(ctx context.Context, orders []OrderWithListing) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ListingID)
	}

	const q = `
SELECT id, listing_id, original, updated, created_at, updated_at
FROM credentials
WHERE listing_id = ANY($1);
`
	rows, err := r.pool.Query(ctx, q, ids)
	if err != nil {
		return fmt.Errorf("list order credentials: %w", err)
	}
	defer rows.Close()

	byListing := map[string]*Credential{}
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return fmt.Errorf("scan order credential: %w", err)
		}
		byListing[cred.ListingID] = cred
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate order credentials: %w", err)
	}

	for i := range orders {
		orders[i].Credential = byListing[orders[i].ListingID]
	}
	return nil
}

func prefixedListingColumns(alias string) string {
	return alias + `.id, ` + alias + `.owner_id, ` + alias + `.title, ` + alias + `.platform, ` + alias + `.username, ` + alias + `.niche,
` + alias + `.followers_count, ` + alias + `.engagement_rate, ` + alias + `.monthly_views, ` + alias + `.price, ` + alias + `.country, ` + alias + `.age_range,
` + alias + `.verified, ` + alias + `.monetized, ` + alias + `.images, ` + alias + `.status, ` + alias + `.is_featured,
` + alias + `.is_credential_submitted, ` + alias + `.is_credential_verified, ` + alias + `.is_credential_changed,
` + alias + `.created_at, ` + alias + `.updated_at`
}
