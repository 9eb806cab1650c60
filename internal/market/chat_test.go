package market

import (
	"context"
	"testing"
)

func TestGetOrCreateChatByListing(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	seller := seedUser(t, store, "seller")
	buyer := seedUser(t, store, "buyer")
	listing := seedListing(t, svc, seller, 100)

	chat, err := svc.GetOrCreateChat(ctx, buyer, "", listing.ID)
	if err != nil {
		t.Fatalf("open chat: %v", err)
	}
	if chat.ListingID != listing.ID || chat.ChatUserID != buyer.UserID || chat.OwnerUserID != seller.UserID {
		t.Fatalf("chat participants wrong: %+v", chat.Chat)
	}

	// Re-opening resolves to the same thread.
	again, err := svc.GetOrCreateChat(ctx, buyer, "", listing.ID)
	if err != nil {
		t.Fatalf("reopen chat: %v", err)
	}
	if again.ID != chat.ID {
		t.Fatalf("expected same chat, got %s and %s", chat.ID, again.ID)
	}
}

func TestOwnerCannotChatOwnListing(t *testing.T) {
	svc, store, _ := newTestService(t)
	seller := seedUser(t, store, "seller")
	listing := seedListing(t, svc, seller, 100)

	_, err := svc.GetOrCreateChat(context.Background(), seller, "", listing.ID)
	wantCode(t, err, CodeValidation)
}

func TestSendMessageOrdering(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	seller := seedUser(t, store, "seller")
	buyer := seedUser(t, store, "buyer")
	listing := seedListing(t, svc, seller, 100)

	chat, err := svc.GetOrCreateChat(ctx, buyer, "", listing.ID)
	if err != nil {
		t.Fatalf("open chat: %v", err)
	}

	first, err := svc.SendMessage(ctx, buyer, chat.ID, "is this still available?")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	second, err := svc.SendMessage(ctx, seller, chat.ID, "yes it is")
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if second.Seq != first.Seq+1 {
		t.Fatalf("expected consecutive seq, got %d then %d", first.Seq, second.Seq)
	}

	loaded, err := svc.GetOrCreateChat(ctx, buyer, chat.ID, "")
	if err != nil {
		t.Fatalf("load chat: %v", err)
	}
	if len(loaded.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(loaded.Messages))
	}
	if loaded.Messages[0].Body != "is this still available?" || loaded.Messages[1].Body != "yes it is" {
		t.Fatalf("messages out of order: %+v", loaded.Messages)
	}
	if loaded.LastMessage != "yes it is" || loaded.LastMessageSenderID != seller.UserID {
		t.Fatalf("chat summary stale: %+v", loaded.Chat)
	}
}

func TestChatReadTracking(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	seller := seedUser(t, store, "seller")
	buyer := seedUser(t, store, "buyer")
	listing := seedListing(t, svc, seller, 100)

	chat, err := svc.GetOrCreateChat(ctx, buyer, "", listing.ID)
	if err != nil {
		t.Fatalf("open chat: %v", err)
	}
	if _, err := svc.SendMessage(ctx, buyer, chat.ID, "hello"); err != nil {
		t.Fatalf("send: %v", err)
	}

	// The sender loading their own thread does not mark it read.
	mine, err := svc.GetOrCreateChat(ctx, buyer, chat.ID, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if mine.IsLastMessageRead {
		t.Fatal("sender load must not mark the thread read")
	}

	theirs, err := svc.GetOrCreateChat(ctx, seller, chat.ID, "")
	if err != nil {
		t.Fatalf("load as recipient: %v", err)
	}
	if !theirs.IsLastMessageRead {
		t.Fatal("recipient load should mark the thread read")
	}
}

func TestSendMessageOnInactiveListing(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	seller := seedUser(t, store, "seller")
	buyer := seedUser(t, store, "buyer")
	listing := seedListing(t, svc, seller, 100)

	chat, err := svc.GetOrCreateChat(ctx, buyer, "", listing.ID)
	if err != nil {
		t.Fatalf("open chat: %v", err)
	}
	if _, err := svc.SendMessage(ctx, buyer, chat.ID, "hello"); err != nil {
		t.Fatalf("send: %v", err)
	}

	if _, err := svc.ToggleStatus(ctx, seller, listing.ID); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	_, err = svc.SendMessage(ctx, buyer, chat.ID, "still there?")
	wantCode(t, err, CodeInactiveListing)

	// The rejected message left the thread untouched.
	loaded, err := svc.GetOrCreateChat(ctx, buyer, chat.ID, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded.Messages) != 1 {
		t.Fatalf("expected thread unchanged, got %d messages", len(loaded.Messages))
	}
}

func TestChatAccessControl(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	seller := seedUser(t, store, "seller")
	buyer := seedUser(t, store, "buyer")
	outsider := seedUser(t, store, "outsider")
	listing := seedListing(t, svc, seller, 100)

	chat, err := svc.GetOrCreateChat(ctx, buyer, "", listing.ID)
	if err != nil {
		t.Fatalf("open chat: %v", err)
	}

	_, err = svc.GetOrCreateChat(ctx, outsider, chat.ID, "")
	wantCode(t, err, CodeNotFound)

	_, err = svc.SendMessage(ctx, outsider, chat.ID, "let me in")
	wantCode(t, err, CodeNotFound)
}

func TestUserChats(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	seller := seedUser(t, store, "seller")
	buyer := seedUser(t, store, "buyer")

	first := seedListing(t, svc, seller, 100)
	second := seedListing(t, svc, seller, 200)

	if _, err := svc.GetOrCreateChat(ctx, buyer, "", first.ID); err != nil {
		t.Fatalf("chat one: %v", err)
	}
	if _, err := svc.GetOrCreateChat(ctx, buyer, "", second.ID); err != nil {
		t.Fatalf("chat two: %v", err)
	}

	buyerChats, err := svc.UserChats(ctx, buyer)
	if err != nil {
		t.Fatalf("buyer chats: %v", err)
	}
	if len(buyerChats) != 2 {
		t.Fatalf("expected 2 chats for buyer, got %d", len(buyerChats))
	}

	sellerChats, err := svc.UserChats(ctx, seller)
	if err != nil {
		t.Fatalf("seller chats: %v", err)
	}
	if len(sellerChats) != 2 {
		t.Fatalf("expected 2 chats for seller, got %d", len(sellerChats))
	}
}
