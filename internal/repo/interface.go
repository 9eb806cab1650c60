package repo

import (
	"context"
	"io/fs"
)

// Store defines the interface for data persistence. Two implementations
// exist: Postgres (production) and SQLite (local development and tests).
//
// Multi-entity mutations (Purchase, AppendMessage, InsertCredential,
// RotateCredential, DeleteUserIfUnreferenced) run inside a single database
// transaction in both implementations. Conditional updates surface a
// zero-rows result as the typed errors in errors.go rather than succeeding
// silently; this is what serializes concurrent purchases and withdrawals.
type Store interface {
	// Lifecycle
	Close()
	Ping(ctx context.Context) error
	RunMigrations(ctx context.Context, filesystem fs.FS) error

	// Users
	UpsertUser(ctx context.Context, profile UserProfile) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
	// DeleteUserIfUnreferenced hard-deletes the user when it owns no
	// listings, chats or orders, otherwise marks it inactive. The returned
	// bool reports whether a hard delete happened.
	DeleteUserIfUnreferenced(ctx context.Context, id string) (bool, error)
	// Withdraw increments withdrawn by amount only while
	// earned - withdrawn >= amount still holds; ErrInsufficientBalance
	// otherwise.
	Withdraw(ctx context.Context, userID string, amount int64) (*User, error)

	// Listings
	InsertListing(ctx context.Context, listing Listing) (*Listing, error)
	GetListingByID(ctx context.Context, id string) (*Listing, error)
	ListPublicListings(ctx context.Context) ([]Listing, error)
	ListOwnerListings(ctx context.Context, ownerID string) ([]Listing, error)
	// CountOwnerListings counts the owner's non-deleted listings; the
	// free-plan quota check and the owner feed share this definition.
	CountOwnerListings(ctx context.Context, ownerID string) (int, error)
	UpdateListing(ctx context.Context, listing Listing) (*Listing, error)
	// SwitchListingStatus flips from -> to only while the listing is still
	// in from; ErrStale when the observed state raced away.
	SwitchListingStatus(ctx context.Context, id string, from, to ListingStatus) error
	// SoftDeleteListing marks the listing deleted unless it is sold or its
	// credentials were rotated; ErrStale when the guard rejects.
	SoftDeleteListing(ctx context.Context, id string) error
	SetFeatured(ctx context.Context, id string, featured bool) error

	// Credentials
	InsertCredential(ctx context.Context, listingID string, fields []CredentialField) (*Credential, error)
	GetCredentialByListingID(ctx context.Context, listingID string) (*Credential, error)
	SetCredentialVerified(ctx context.Context, listingID string) error
	RotateCredential(ctx context.Context, listingID string, fields []CredentialField) error

	// Orders
	// Purchase atomically flips the listing active -> sold, inserts the
	// paid order with the price snapshot and credits the seller. Exactly
	// one concurrent caller wins; the rest get ErrNotAvailable.
	Purchase(ctx context.Context, listingID, buyerID string) (*Order, error)
	ListUserOrders(ctx context.Context, userID string) ([]OrderWithListing, error)

	// Chats
	GetChatForUser(ctx context.Context, chatID, userID string) (*ChatWithMessages, error)
	FindChat(ctx context.Context, listingID, chatUserID string) (*ChatWithMessages, error)
	CreateChat(ctx context.Context, listingID, ownerUserID, chatUserID string) (*ChatWithMessages, error)
	MarkChatRead(ctx context.Context, chatID string) error
	AppendMessage(ctx context.Context, chatID, senderID, body string) (*Message, error)
	ListUserChats(ctx context.Context, userID string) ([]Chat, error)
}
