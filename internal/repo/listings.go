package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const listingColumns = `id, owner_id, title, platform, username, niche,
followers_count, engagement_rate, monthly_views, price, country, age_range,
verified, monetized, images, status, is_featured,
is_credential_submitted, is_credential_verified, is_credential_changed,
created_at, updated_at`

func scanListing(row pgx.Row) (*Listing, error) {
	var l Listing
	var images []byte
	if err := row.Scan(
		&l.ID, &l.OwnerID, &l.Title, &l.Platform, &l.Username, &l.Niche,
		&l.FollowersCount, &l.EngagementRate, &l.MonthlyViews, &l.Price, &l.Country, &l.AgeRange,
		&l.Verified, &l.Monetized, &images, &l.Status, &l.IsFeatured,
		&l.IsCredentialSubmitted, &l.IsCredentialVerified, &l.IsCredentialChanged,
		&l.CreatedAt, &l.UpdatedAt,
	); err != nil {
		return nil, err
	}
	urls, err := unmarshalImages(images)
	if err != nil {
		return nil, err
	}
	l.Images = urls
	return &l, nil
}

// InsertListing persists a new listing and returns the stored row.
func (r *Postgres) InsertListing(ctx context.Context, listing Listing) (*Listing, error) {
	images, err := marshalJSON(listing.Images)
	if err != nil {
		return nil, err
	}
	q := `
INSERT INTO listings (owner_id, title, platform, username, niche,
    followers_count, engagement_rate, monthly_views, price, country, age_range,
    verified, monetized, images, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
RETURNING ` + listingColumns + `;`

	row := r.pool.QueryRow(ctx, q,
		listing.OwnerID, listing.Title, listing.Platform, listing.Username, listing.Niche,
		listing.FollowersCount, listing.EngagementRate, listing.MonthlyViews, listing.Price,
		listing.Country, listing.AgeRange, listing.Verified, listing.Monetized,
		string(images), listing.Status,
	)
	inserted, err := scanListing(row)
	if err != nil {
		return nil, fmt.Errorf("insert listing: %w", err)
	}
	return inserted, nil
}

// GetListingByID retrieves a listing regardless of status.
func (r *Postgres) GetListingByID(ctx context.Context, id string) (*Listing, error) {
	q := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1 LIMIT 1;`
	listing, err := scanListing(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get listing by id: %w", err)
	}
	return listing, nil
}

// ListPublicListings returns active listings, newest first.
func (r *Postgres) ListPublicListings(ctx context.Context) ([]Listing, error) {
	q := `SELECT ` + listingColumns + ` FROM listings WHERE status = $1 ORDER BY created_at DESC;`
	return r.queryListings(ctx, q, StatusActive)
}

// ListOwnerListings returns the owner's non-deleted listings, newest first.
func (r *Postgres) ListOwnerListings(ctx context.Context, ownerID string) ([]Listing, error) {
	q := `SELECT ` + listingColumns + ` FROM listings WHERE owner_id = $1 AND status <> $2 ORDER BY created_at DESC;`
	return r.queryListings(ctx, q, ownerID, StatusDeleted)
}

// CountOwnerListings counts the owner's non-deleted listings. Sold listings
// count; this is the quota's single source of truth.
func (r *Postgres) CountOwnerListings(ctx context.Context, ownerID string) (int, error) {
	const q = `SELECT COUNT(*) FROM listings WHERE owner_id = $1 AND status <> $2;`
	var count int
	if err := r.pool.QueryRow(ctx, q, ownerID, StatusDeleted).Scan(&count); err != nil {
		return 0, fmt.Errorf("count owner listings: %w", err)
	}
	return count, nil
}

// UpdateListing overwrites the mutable listing fields. Status and credential
// flags are owned by their dedicated transitions and stay untouched.
func (r *Postgres) UpdateListing(ctx context.Context, listing Listing) (*Listing, error) {
	images, err := marshalJSON(listing.Images)
	if err != nil {
		return nil, err
	}
	q := `
UPDATE listings
SET title = $2, platform = $3, username = $4, niche = $5,
    followers_count = $6, engagement_rate = $7, monthly_views = $8, price = $9,
    country = $10, age_range = $11, verified = $12, monetized = $13,
    images = $14, updated_at = NOW()
WHERE id = $1
RETURNING ` + listingColumns + `;`

	row := r.pool.QueryRow(ctx, q,
		listing.ID, listing.Title, listing.Platform, listing.Username, listing.Niche,
		listing.FollowersCount, listing.EngagementRate, listing.MonthlyViews, listing.Price,
		listing.Country, listing.AgeRange, listing.Verified, listing.Monetized,
		string(images),
	)
	updated, err := scanListing(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update listing: %w", err)
	}
	return updated, nil
}

// SwitchListingStatus flips from -> to, conditional on the listing still
// being in from.
func (r *Postgres) SwitchListingStatus(ctx context.Context, id string, from, to ListingStatus) error {
	const q = `UPDATE listings SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2;`
	ct, err := r.pool.Exec(ctx, q, id, from, to)
	if err != nil {
		return fmt.Errorf("switch listing status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrStale
	}
	return nil
}

// SoftDeleteListing marks the listing deleted. The sold and compliance-hold
// guards live in the WHERE clause so a racing purchase or rotation wins.
func (r *Postgres) SoftDeleteListing(ctx context.Context, id string) error {
	const q = `
UPDATE listings
SET status = $2, updated_at = NOW()
WHERE id = $1 AND status <> $3 AND is_credential_changed = FALSE;
`
	ct, err := r.pool.Exec(ctx, q, id, StatusDeleted, StatusSold)
	if err != nil {
		return fmt.Errorf("soft delete listing: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrStale
	}
	return nil
}

// SetFeatured toggles the featured flag.
func (r *Postgres) SetFeatured(ctx context.Context, id string, featured bool) error {
	const q = `UPDATE listings SET is_featured = $2, updated_at = NOW() WHERE id = $1;`
	ct, err := r.pool.Exec(ctx, q, id, featured)
	if err != nil {
		return fmt.Errorf("set featured: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Postgres) queryListings(ctx context.Context, q string, args ...any) ([]Listing, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}
	defer rows.Close()

	var listings []Listing
	for rows.Next() {
		listing, err := scanListing(rows)
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
