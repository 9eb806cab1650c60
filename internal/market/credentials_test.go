package market

import (
	"context"
	"testing"

	"flip-earn/internal/auth"
	"flip-earn/internal/repo"
)

var adminIdentity = auth.Identity{UserID: "admin", Role: auth.RoleAdmin}

func TestAddCredential(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	seller := seedUser(t, store, "seller")
	other := seedUser(t, store, "other")
	listing := seedListing(t, svc, seller, 100)

	fields := []repo.CredentialField{
		{Name: "email", Kind: repo.FieldEmail, Value: "acc@example.com"},
		{Name: "password", Kind: repo.FieldPassword, Value: "hunter2"},
	}

	_, err := svc.AddCredential(ctx, other, listing.ID, fields)
	wantCode(t, err, CodeForbidden)

	cred, err := svc.AddCredential(ctx, seller, listing.ID, fields)
	if err != nil {
		t.Fatalf("add credential: %v", err)
	}
	if len(cred.Original) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(cred.Original))
	}

	reloaded, err := store.GetListingByID(ctx, listing.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !reloaded.IsCredentialSubmitted {
		t.Fatal("expected submitted flag set")
	}
	if got := CredentialStatusOf(reloaded); got != CredentialSubmitted {
		t.Fatalf("expected status submitted, got %s", got)
	}

	// One credential record per listing.
	_, err = svc.AddCredential(ctx, seller, listing.ID, fields)
	wantCode(t, err, CodeConflict)
}

func TestAddCredentialValidation(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	seller := seedUser(t, store, "seller")
	listing := seedListing(t, svc, seller, 100)

	_, err := svc.AddCredential(ctx, seller, listing.ID, nil)
	wantCode(t, err, CodeValidation)

	_, err = svc.AddCredential(ctx, seller, listing.ID, []repo.CredentialField{
		{Name: "token", Kind: "certificate", Value: "x"},
	})
	wantCode(t, err, CodeValidation)
}

func TestVerifyCredential(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	seller := seedUser(t, store, "seller")
	listing := seedListing(t, svc, seller, 100)

	err := svc.VerifyCredential(ctx, adminIdentity, listing.ID)
	wantCode(t, err, CodeInvalidTransition)

	if _, err := svc.AddCredential(ctx, seller, listing.ID, []repo.CredentialField{
		{Name: "email", Kind: repo.FieldEmail, Value: "acc@example.com"},
	}); err != nil {
		t.Fatalf("add credential: %v", err)
	}

	if err := svc.VerifyCredential(ctx, adminIdentity, listing.ID); err != nil {
		t.Fatalf("verify: %v", err)
	}

	reloaded, err := store.GetListingByID(ctx, listing.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := CredentialStatusOf(reloaded); got != CredentialVerified {
		t.Fatalf("expected status verified, got %s", got)
	}
}

func TestRotateCredentialLifecycle(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	seller := seedUser(t, store, "seller")
	buyer := seedUser(t, store, "buyer")
	listing := seedListing(t, svc, seller, 100)

	rotated := []repo.CredentialField{
		{Name: "password", Kind: repo.FieldPassword, Value: "fresh"},
	}

	// Rotation requires the listing to be sold.
	err := svc.RotateCredential(ctx, seller, listing.ID, rotated)
	wantCode(t, err, CodeInvalidTransition)

	if _, err := svc.AddCredential(ctx, seller, listing.ID, []repo.CredentialField{
		{Name: "password", Kind: repo.FieldPassword, Value: "stale"},
	}); err != nil {
		t.Fatalf("add credential: %v", err)
	}
	if _, err := svc.PurchaseAccount(ctx, buyer, listing.ID); err != nil {
		t.Fatalf("purchase: %v", err)
	}

	if err := svc.RotateCredential(ctx, seller, listing.ID, rotated); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	cred, err := store.GetCredentialByListingID(ctx, listing.ID)
	if err != nil {
		t.Fatalf("load credential: %v", err)
	}
	if len(cred.Updated) != 1 || cred.Updated[0].Value != "fresh" {
		t.Fatalf("expected rotated payload stored, got %+v", cred.Updated)
	}
	if cred.Original[0].Value != "stale" {
		t.Fatal("rotation must not overwrite the original payload")
	}

	reloaded, err := store.GetListingByID(ctx, listing.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := CredentialStatusOf(reloaded); got != CredentialChanged {
		t.Fatalf("expected status changed, got %s", got)
	}
}

func TestRotateWithoutSubmission(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	seller := seedUser(t, store, "seller")
	buyer := seedUser(t, store, "buyer")
	listing := seedListing(t, svc, seller, 100)

	if _, err := svc.PurchaseAccount(ctx, buyer, listing.ID); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	err := svc.RotateCredential(ctx, seller, listing.ID, []repo.CredentialField{
		{Name: "password", Kind: repo.FieldPassword, Value: "fresh"},
	})
	wantCode(t, err, CodeInvalidTransition)
}

func TestDeleteAfterRotationBlocked(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	seller := seedUser(t, store, "seller")
	buyer := seedUser(t, store, "buyer")
	listing := seedListing(t, svc, seller, 100)

	if _, err := svc.AddCredential(ctx, seller, listing.ID, []repo.CredentialField{
		{Name: "password", Kind: repo.FieldPassword, Value: "stale"},
	}); err != nil {
		t.Fatalf("add credential: %v", err)
	}
	if _, err := svc.PurchaseAccount(ctx, buyer, listing.ID); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if err := svc.RotateCredential(ctx, seller, listing.ID, []repo.CredentialField{
		{Name: "password", Kind: repo.FieldPassword, Value: "fresh"},
	}); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	err := svc.DeleteListing(ctx, seller, listing.ID)
	wantCode(t, err, CodeComplianceHold)
}
