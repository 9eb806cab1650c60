package market

import (
	"context"
	"testing"

	"flip-earn/internal/repo"
)

func TestPurchaseCreditsSellerAndFlipsListing(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	seller := seedUser(t, store, "seller")
	buyer := seedUser(t, store, "buyer")
	listing := seedListing(t, svc, seller, 500)

	order, err := svc.PurchaseAccount(ctx, buyer, listing.ID)
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if order.Amount != 500 {
		t.Fatalf("expected price snapshot 500, got %d", order.Amount)
	}
	if !order.IsPaid {
		t.Fatal("expected order marked paid")
	}
	if order.UserID != buyer.UserID || order.ListingID != listing.ID {
		t.Fatalf("order references wrong, got user=%s listing=%s", order.UserID, order.ListingID)
	}

	reloaded, err := store.GetListingByID(ctx, listing.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != repo.StatusSold {
		t.Fatalf("expected listing sold, got %s", reloaded.Status)
	}

	sellerUser, err := store.GetUserByID(ctx, seller.UserID)
	if err != nil {
		t.Fatalf("load seller: %v", err)
	}
	if sellerUser.Earned != 500 {
		t.Fatalf("expected seller credited 500, got %d", sellerUser.Earned)
	}
}

func TestPurchaseSameListingTwice(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	seller := seedUser(t, store, "seller")
	first := seedUser(t, store, "first")
	second := seedUser(t, store, "second")
	listing := seedListing(t, svc, seller, 100)

	if _, err := svc.PurchaseAccount(ctx, first, listing.ID); err != nil {
		t.Fatalf("first purchase: %v", err)
	}

	_, err := svc.PurchaseAccount(ctx, second, listing.ID)
	wantCode(t, err, CodeNotAvailable)

	// Exactly one order exists and the seller was credited once.
	sellerUser, err := store.GetUserByID(ctx, seller.UserID)
	if err != nil {
		t.Fatalf("load seller: %v", err)
	}
	if sellerUser.Earned != 100 {
		t.Fatalf("expected single credit of 100, got %d", sellerUser.Earned)
	}
	orders, err := store.ListUserOrders(ctx, second.UserID)
	if err != nil {
		t.Fatalf("orders: %v", err)
	}
	if len(orders) != 0 {
		t.Fatalf("losing buyer must have no order, got %d", len(orders))
	}
}

func TestPurchaseOwnListingRejected(t *testing.T) {
	svc, store, _ := newTestService(t)
	seller := seedUser(t, store, "seller")
	listing := seedListing(t, svc, seller, 100)

	_, err := svc.PurchaseAccount(context.Background(), seller, listing.ID)
	wantCode(t, err, CodeSelfPurchase)
}

func TestPurchaseInactiveListingRejected(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	seller := seedUser(t, store, "seller")
	buyer := seedUser(t, store, "buyer")
	listing := seedListing(t, svc, seller, 100)

	if _, err := svc.ToggleStatus(ctx, seller, listing.ID); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	_, err := svc.PurchaseAccount(ctx, buyer, listing.ID)
	wantCode(t, err, CodeNotAvailable)
}

func TestPurchaseUnknownListing(t *testing.T) {
	svc, store, _ := newTestService(t)
	buyer := seedUser(t, store, "buyer")

	_, err := svc.PurchaseAccount(context.Background(), buyer, "missing")
	wantCode(t, err, CodeNotFound)
}

func TestUserOrdersIncludesCredentials(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	seller := seedUser(t, store, "seller")
	buyer := seedUser(t, store, "buyer")
	listing := seedListing(t, svc, seller, 100)

	if _, err := svc.AddCredential(ctx, seller, listing.ID, []repo.CredentialField{
		{Name: "email", Kind: repo.FieldEmail, Value: "acc@example.com"},
	}); err != nil {
		t.Fatalf("add credential: %v", err)
	}
	if _, err := svc.PurchaseAccount(ctx, buyer, listing.ID); err != nil {
		t.Fatalf("purchase: %v", err)
	}

	orders, err := svc.UserOrders(ctx, buyer)
	if err != nil {
		t.Fatalf("orders: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("expected one order, got %d", len(orders))
	}
	if orders[0].Listing.ID != listing.ID {
		t.Fatalf("expected listing attached, got %s", orders[0].Listing.ID)
	}
	if orders[0].Credential == nil || len(orders[0].Credential.Original) != 1 {
		t.Fatal("expected credential attached to the order")
	}
}
