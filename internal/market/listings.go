package market

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"flip-earn/internal/auth"
	"flip-earn/internal/cache"
	"flip-earn/internal/imagestore"
	"flip-earn/internal/repo"
)

// ListingInput carries the seller-editable listing fields.
type ListingInput struct {
	Title          string  `json:"title"`
	Platform       string  `json:"platform"`
	Username       string  `json:"username"`
	Niche          string  `json:"niche"`
	FollowersCount int64   `json:"followers_count"`
	EngagementRate float64 `json:"engagement_rate"`
	MonthlyViews   int64   `json:"monthly_views"`
	Price          int64   `json:"price"`
	Country        string  `json:"country"`
	AgeRange       string  `json:"age_range"`
	Verified       bool    `json:"verified"`
	Monetized      bool    `json:"monetized"`
}

// ListingUpdate is an update payload: the target listing, new field values
// and the image URLs the seller chose to keep.
type ListingUpdate struct {
	ID     string   `json:"id"`
	Images []string `json:"images"`
	ListingInput
}

// Balance is the wallet view returned alongside the owner feed.
type Balance struct {
	Earned    int64 `json:"earned"`
	Withdrawn int64 `json:"withdrawn"`
	Available int64 `json:"available"`
}

func (in *ListingInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Platform = strings.ToLower(strings.TrimSpace(in.Platform))
	in.Niche = strings.ToLower(strings.TrimSpace(in.Niche))
	in.Username = strings.TrimSpace(in.Username)
	in.Username = strings.TrimPrefix(in.Username, "@")
	if in.FollowersCount < 0 {
		in.FollowersCount = 0
	}
	if in.EngagementRate < 0 {
		in.EngagementRate = 0
	}
	if in.MonthlyViews < 0 {
		in.MonthlyViews = 0
	}
}

func (in *ListingInput) validate() error {
	if in.Title == "" {
		return E(CodeValidation, "title is required")
	}
	if in.Price < 0 {
		return E(CodeValidation, "price cannot be negative")
	}
	return nil
}

// CreateListing lists a new account for sale. Free-plan sellers are capped
// at FreePlanListingLimit non-deleted listings. Image uploads are
// all-or-nothing; the listing is persisted only after every upload landed.
func (s *Service) CreateListing(ctx context.Context, actor auth.Identity, input ListingInput, files []imagestore.File) (*repo.Listing, error) {
	if !actor.Premium() {
		count, err := s.store.CountOwnerListings(ctx, actor.UserID)
		if err != nil {
			return nil, Wrap(CodeInternal, "error adding listing", err)
		}
		if count >= s.cfg.FreePlanListingLimit {
			s.countMutation("create", "quota_exceeded")
			return nil, E(CodeQuotaExceeded, fmt.Sprintf(
				"you have reached the limit of %d listings for the free plan, upgrade to premium to add more", s.cfg.FreePlanListingLimit))
		}
	}

	if len(files) > maxListingImages {
		return nil, E(CodeLimitExceeded, fmt.Sprintf("you can upload a maximum of %d images per listing", maxListingImages))
	}

	input.normalize()
	if err := input.validate(); err != nil {
		return nil, err
	}

	images, err := s.uploadImages(ctx, files)
	if err != nil {
		s.countMutation("create", "upload_failed")
		return nil, err
	}

	listing, err := s.store.InsertListing(ctx, repo.Listing{
		OwnerID:        actor.UserID,
		Title:          input.Title,
		Platform:       input.Platform,
		Username:       input.Username,
		Niche:          input.Niche,
		FollowersCount: input.FollowersCount,
		EngagementRate: input.EngagementRate,
		MonthlyViews:   input.MonthlyViews,
		Price:          input.Price,
		Country:        input.Country,
		AgeRange:       input.AgeRange,
		Verified:       input.Verified,
		Monetized:      input.Monetized,
		Images:         images,
		Status:         repo.StatusActive,
	})
	if err != nil {
		return nil, Wrap(CodeInternal, "error adding listing", err)
	}

	s.invalidatePublicFeed(ctx)
	s.countMutation("create", "ok")
	s.logger.Info("listing created", "listing_id", listing.ID, "owner_id", actor.UserID)
	return listing, nil
}

// UpdateListing edits a listing the actor owns. Sold listings are immutable.
// The final image set is the retained URLs plus any new uploads, capped at
// maxListingImages; order is preserved.
func (s *Service) UpdateListing(ctx context.Context, actor auth.Identity, update ListingUpdate, files []imagestore.File) (*repo.Listing, error) {
	if update.ID == "" {
		return nil, E(CodeValidation, "listing id is required")
	}

	listing, err := s.loadOwnedListing(ctx, actor, update.ID, "update")
	if err != nil {
		return nil, err
	}
	if listing.Status == repo.StatusSold {
		return nil, E(CodeImmutable, "sold listing cannot be updated")
	}

	if len(files)+len(update.Images) > maxListingImages {
		return nil, E(CodeLimitExceeded, fmt.Sprintf("you can upload a maximum of %d images per listing", maxListingImages))
	}

	update.normalize()
	if err := update.validate(); err != nil {
		return nil, err
	}

	newImages, err := s.uploadImages(ctx, files)
	if err != nil {
		s.countMutation("update", "upload_failed")
		return nil, err
	}

	merged := make([]string, 0, len(update.Images)+len(newImages))
	merged = append(merged, update.Images...)
	merged = append(merged, newImages...)

	updated, err := s.store.UpdateListing(ctx, repo.Listing{
		ID:             update.ID,
		Title:          update.Title,
		Platform:       update.Platform,
		Username:       update.Username,
		Niche:          update.Niche,
		FollowersCount: update.FollowersCount,
		EngagementRate: update.EngagementRate,
		MonthlyViews:   update.MonthlyViews,
		Price:          update.Price,
		Country:        update.Country,
		AgeRange:       update.AgeRange,
		Verified:       update.Verified,
		Monetized:      update.Monetized,
		Images:         merged,
	})
	if err != nil {
		return nil, Wrap(CodeInternal, "error updating listing", err)
	}

	s.invalidatePublicFeed(ctx)
	s.countMutation("update", "ok")
	return updated, nil
}

// ToggleStatus flips a listing between active and inactive. Banned and sold
// are terminal for the owner.
func (s *Service) ToggleStatus(ctx context.Context, actor auth.Identity, listingID string) (*repo.Listing, error) {
	listing, err := s.loadOwnedListing(ctx, actor, listingID, "toggle")
	if err != nil {
		return nil, err
	}

	var target repo.ListingStatus
	switch listing.Status {
	case repo.StatusActive:
		target = repo.StatusInactive
	case repo.StatusInactive:
		target = repo.StatusActive
	case repo.StatusBanned:
		return nil, E(CodeInvalidTransition, "cannot change status of a banned listing")
	case repo.StatusSold:
		return nil, E(CodeInvalidTransition, "cannot change status of a sold listing")
	case repo.StatusPending, repo.StatusDeleted:
		return nil, E(CodeInvalidTransition, "invalid listing status")
	default:
		return nil, E(CodeInvalidTransition, "invalid listing status")
	}

	if err := s.store.SwitchListingStatus(ctx, listingID, listing.Status, target); err != nil {
		if errors.Is(err, repo.ErrStale) {
			return nil, E(CodeInvalidTransition, "listing status changed, reload and retry")
		}
		return nil, Wrap(CodeInternal, "error toggling listing status", err)
	}

	s.invalidatePublicFeed(ctx)
	s.countMutation("toggle", "ok")
	listing.Status = target
	return listing, nil
}

// DeleteListing soft-deletes a listing the actor owns. Rotated credentials
// put the listing on a compliance hold pending manual resolution.
func (s *Service) DeleteListing(ctx context.Context, actor auth.Identity, listingID string) error {
	listing, err := s.loadOwnedListing(ctx, actor, listingID, "delete")
	if err != nil {
		return err
	}
	if listing.IsCredentialChanged {
		return E(CodeComplianceHold, "cannot delete listing with changed credentials, please contact support")
	}
	if listing.Status == repo.StatusSold {
		return E(CodeInvalidTransition, "sold listing cannot be deleted")
	}

	if err := s.store.SoftDeleteListing(ctx, listingID); err != nil {
		if errors.Is(err, repo.ErrStale) {
			return E(CodeInvalidTransition, "listing changed, reload and retry")
		}
		return Wrap(CodeInternal, "error deleting listing", err)
	}

	s.invalidatePublicFeed(ctx)
	s.countMutation("delete", "ok")
	return nil
}

// MarkFeatured toggles the featured flag; no status dependency.
func (s *Service) MarkFeatured(ctx context.Context, actor auth.Identity, listingID string) (bool, error) {
	listing, err := s.loadOwnedListing(ctx, actor, listingID, "feature")
	if err != nil {
		return false, err
	}

	featured := !listing.IsFeatured
	if err := s.store.SetFeatured(ctx, listingID, featured); err != nil {
		return false, Wrap(CodeInternal, "error marking featured", err)
	}
	s.countMutation("feature", "ok")
	return featured, nil
}

// BanListing takes an active listing off the marketplace. Admin only.
func (s *Service) BanListing(ctx context.Context, actor auth.Identity, listingID string) error {
	if !actor.Admin() {
		return E(CodeForbidden, "admin role required")
	}
	if err := s.store.SwitchListingStatus(ctx, listingID, repo.StatusActive, repo.StatusBanned); err != nil {
		if errors.Is(err, repo.ErrStale) {
			return E(CodeInvalidTransition, "only active listings can be banned")
		}
		return Wrap(CodeInternal, "error banning listing", err)
	}
	s.invalidatePublicFeed(ctx)
	s.countMutation("ban", "ok")
	return nil
}

// ApproveListing moves a pending listing to active. Admin only.
func (s *Service) ApproveListing(ctx context.Context, actor auth.Identity, listingID string) error {
	if !actor.Admin() {
		return E(CodeForbidden, "admin role required")
	}
	if err := s.store.SwitchListingStatus(ctx, listingID, repo.StatusPending, repo.StatusActive); err != nil {
		if errors.Is(err, repo.ErrStale) {
			return E(CodeInvalidTransition, "only pending listings can be approved")
		}
		return Wrap(CodeInternal, "error approving listing", err)
	}
	s.invalidatePublicFeed(ctx)
	s.countMutation("approve", "ok")
	return nil
}

// PublicListings returns the active listings, newest first, via the cache
// when available.
func (s *Service) PublicListings(ctx context.Context) ([]repo.Listing, error) {
	if s.cache != nil {
		var cached []repo.Listing
		ok, err := s.cache.GetJSON(ctx, cache.PublicListingsKey, &cached)
		if err != nil {
			s.logger.Warn("read public feed cache failed", "error", err)
		} else if ok {
			return cached, nil
		}
	}

	listings, err := s.store.ListPublicListings(ctx)
	if err != nil {
		return nil, Wrap(CodeInternal, "error fetching listings", err)
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, cache.PublicListingsKey, listings, s.cfg.PublicCacheTTL); err != nil {
			s.logger.Warn("write public feed cache failed", "error", err)
		}
	}
	return listings, nil
}

// UserListings returns the actor's non-deleted listings plus the wallet
// balance view.
func (s *Service) UserListings(ctx context.Context, actor auth.Identity) ([]repo.Listing, Balance, error) {
	listings, err := s.store.ListOwnerListings(ctx, actor.UserID)
	if err != nil {
		return nil, Balance{}, Wrap(CodeInternal, "error fetching listings", err)
	}

	user, err := s.store.GetUserByID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, Balance{}, E(CodeNotFound, "user not found")
		}
		return nil, Balance{}, Wrap(CodeInternal, "error fetching balance", err)
	}

	return listings, Balance{
		Earned:    user.Earned,
		Withdrawn: user.Withdrawn,
		Available: user.Available(),
	}, nil
}

// loadOwnedListing fetches the listing and enforces ownership.
func (s *Service) loadOwnedListing(ctx context.Context, actor auth.Identity, listingID, operation string) (*repo.Listing, error) {
	listing, err := s.store.GetListingByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, E(CodeNotFound, "listing not found")
		}
		return nil, Wrap(CodeInternal, "error loading listing", err)
	}
	if listing.OwnerID != actor.UserID {
		s.countMutation(operation, "forbidden")
		return nil, E(CodeForbidden, "unauthorized to modify this listing")
	}
	return listing, nil
}

func (s *Service) uploadImages(ctx context.Context, files []imagestore.File) ([]string, error) {
	if len(files) == 0 {
		return []string{}, nil
	}
	if s.images == nil {
		return nil, E(CodeDependency, "image store unavailable")
	}
	uploaded, err := s.images.UploadAll(ctx, files)
	if err != nil {
		return nil, Wrap(CodeDependency, "error uploading images", err)
	}
	urls := make([]string, 0, len(uploaded))
	for _, u := range uploaded {
		urls = append(urls, u.URL)
	}
	return urls, nil
}
