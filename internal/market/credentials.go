package market

import (
	"context"
	"errors"

	"flip-earn/internal/auth"
	"flip-earn/internal/repo"
)

// CredentialStatus is the derived display state of a listing's credential
// handoff. Precedence: changed > verified > submitted > not submitted.
type CredentialStatus string

const (
	CredentialNotSubmitted CredentialStatus = "not_submitted"
	CredentialSubmitted    CredentialStatus = "submitted"
	CredentialVerified     CredentialStatus = "verified"
	CredentialChanged      CredentialStatus = "changed"
)

// CredentialStatusOf derives the display state from the listing flags.
func CredentialStatusOf(l *repo.Listing) CredentialStatus {
	switch {
	case l.IsCredentialChanged:
		return CredentialChanged
	case l.IsCredentialVerified:
		return CredentialVerified
	case l.IsCredentialSubmitted:
		return CredentialSubmitted
	default:
		return CredentialNotSubmitted
	}
}

func validateCredentialFields(fields []repo.CredentialField) error {
	if len(fields) == 0 {
		return E(CodeValidation, "credential fields are required")
	}
	for i := range fields {
		if fields[i].Name == "" {
			return E(CodeValidation, "credential field name is required")
		}
		if fields[i].Kind == "" {
			fields[i].Kind = repo.FieldText
		}
		if !fields[i].Kind.Valid() {
			return E(CodeValidation, "unknown credential field kind")
		}
	}
	return nil
}

// AddCredential attaches the original credential payload to a listing the
// actor owns. A listing holds at most one credential record; a repeat
// submission is rejected rather than upserted.
func (s *Service) AddCredential(ctx context.Context, actor auth.Identity, listingID string, fields []repo.CredentialField) (*repo.Credential, error) {
	if listingID == "" {
		return nil, E(CodeValidation, "listing id and credential are required")
	}
	if err := validateCredentialFields(fields); err != nil {
		return nil, err
	}

	listing, err := s.store.GetListingByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, E(CodeNotFound, "listing not found")
		}
		return nil, Wrap(CodeInternal, "error adding credential", err)
	}
	if listing.OwnerID != actor.UserID {
		return nil, E(CodeForbidden, "you are not the owner of this listing")
	}

	cred, err := s.store.InsertCredential(ctx, listingID, fields)
	if err != nil {
		if errors.Is(err, repo.ErrAlreadyExists) {
			return nil, E(CodeConflict, "credential already submitted for this listing")
		}
		return nil, Wrap(CodeInternal, "error adding credential", err)
	}
	return cred, nil
}

// VerifyCredential marks a submitted credential verified. Admin only; the
// seller cannot verify their own submission.
func (s *Service) VerifyCredential(ctx context.Context, actor auth.Identity, listingID string) error {
	if !actor.Admin() {
		return E(CodeForbidden, "admin role required")
	}

	if _, err := s.store.GetListingByID(ctx, listingID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return E(CodeNotFound, "listing not found")
		}
		return Wrap(CodeInternal, "error verifying credential", err)
	}

	if err := s.store.SetCredentialVerified(ctx, listingID); err != nil {
		if errors.Is(err, repo.ErrStale) {
			return E(CodeInvalidTransition, "credential has not been submitted")
		}
		return Wrap(CodeInternal, "error verifying credential", err)
	}
	return nil
}

// RotateCredential stores the post-sale updated payload. Owner only, and
// only once the listing is sold; the rotation flags the listing as changed,
// which in turn blocks deletion (compliance hold).
func (s *Service) RotateCredential(ctx context.Context, actor auth.Identity, listingID string, fields []repo.CredentialField) error {
	if listingID == "" {
		return E(CodeValidation, "listing id and credential are required")
	}
	if err := validateCredentialFields(fields); err != nil {
		return err
	}

	listing, err := s.store.GetListingByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return E(CodeNotFound, "listing not found")
		}
		return Wrap(CodeInternal, "error rotating credential", err)
	}
	if listing.OwnerID != actor.UserID {
		return E(CodeForbidden, "you are not the owner of this listing")
	}
	if listing.Status != repo.StatusSold {
		return E(CodeInvalidTransition, "credentials can be rotated only after the listing is sold")
	}

	if err := s.store.RotateCredential(ctx, listingID, fields); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return E(CodeInvalidTransition, "credential has not been submitted")
		}
		return Wrap(CodeInternal, "error rotating credential", err)
	}
	return nil
}
