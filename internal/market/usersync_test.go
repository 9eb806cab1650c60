package market

import (
	"context"
	"errors"
	"testing"

	"flip-earn/internal/repo"
	"flip-earn/internal/usersync"
)

func TestHandleUserEventCreateAndUpdate(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	err := svc.HandleUserEvent(ctx, usersync.Event{
		Type:   usersync.UserCreated,
		UserID: "u1",
		Email:  "u1@example.com",
		Name:   "User One",
	})
	if err != nil {
		t.Fatalf("created event: %v", err)
	}

	user, err := store.GetUserByID(ctx, "u1")
	if err != nil {
		t.Fatalf("load user: %v", err)
	}
	if user.Email != "u1@example.com" || user.Name != "User One" {
		t.Fatalf("user not synced: %+v", user)
	}

	err = svc.HandleUserEvent(ctx, usersync.Event{
		Type:   usersync.UserUpdated,
		UserID: "u1",
		Email:  "new@example.com",
		Name:   "User One",
	})
	if err != nil {
		t.Fatalf("updated event: %v", err)
	}
	user, err = store.GetUserByID(ctx, "u1")
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if user.Email != "new@example.com" {
		t.Fatalf("expected email updated, got %s", user.Email)
	}
}

func TestHandleUserEventUpdatePreservesBalance(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	seller := seedUser(t, store, "seller")
	buyer := seedUser(t, store, "buyer")
	listing := seedListing(t, svc, seller, 100)

	if _, err := svc.PurchaseAccount(ctx, buyer, listing.ID); err != nil {
		t.Fatalf("purchase: %v", err)
	}

	err := svc.HandleUserEvent(ctx, usersync.Event{
		Type:   usersync.UserUpdated,
		UserID: seller.UserID,
		Email:  "renamed@example.com",
		Name:   "Renamed",
	})
	if err != nil {
		t.Fatalf("updated event: %v", err)
	}

	user, err := store.GetUserByID(ctx, seller.UserID)
	if err != nil {
		t.Fatalf("load seller: %v", err)
	}
	if user.Earned != 100 {
		t.Fatalf("profile sync must not touch the ledger, earned=%d", user.Earned)
	}
}

func TestHandleUserEventDelete(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	// Unreferenced user is hard-deleted.
	seedUser(t, store, "ghost")
	if err := svc.HandleUserEvent(ctx, usersync.Event{Type: usersync.UserDeleted, UserID: "ghost"}); err != nil {
		t.Fatalf("delete event: %v", err)
	}
	if _, err := store.GetUserByID(ctx, "ghost"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ghost gone, got %v", err)
	}

	// A seller with listings is retired instead.
	seller := seedUser(t, store, "seller")
	seedListing(t, svc, seller, 100)
	if err := svc.HandleUserEvent(ctx, usersync.Event{Type: usersync.UserDeleted, UserID: seller.UserID}); err != nil {
		t.Fatalf("delete event: %v", err)
	}
	user, err := store.GetUserByID(ctx, seller.UserID)
	if err != nil {
		t.Fatalf("load seller: %v", err)
	}
	if user.Status != repo.UserInactive {
		t.Fatalf("expected seller retired, got %s", user.Status)
	}
}

func TestHandleUserEventIgnoresUnknownType(t *testing.T) {
	svc, _, _ := newTestService(t)
	err := svc.HandleUserEvent(context.Background(), usersync.Event{Type: "session.created", UserID: "u1"})
	if err != nil {
		t.Fatalf("unknown event should be ignored: %v", err)
	}
}
