package repo

import "time"

// ListingStatus enumerates the listing lifecycle states.
type ListingStatus string

const (
	StatusPending  ListingStatus = "pending"
	StatusActive   ListingStatus = "active"
	StatusInactive ListingStatus = "inactive"
	StatusBanned   ListingStatus = "banned"
	StatusSold     ListingStatus = "sold"
	StatusDeleted  ListingStatus = "deleted"
)

// Valid reports whether s is one of the known lifecycle states.
func (s ListingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusInactive, StatusBanned, StatusSold, StatusDeleted:
		return true
	}
	return false
}

// Terminal reports whether owner-driven edits are closed for this state.
func (s ListingStatus) Terminal() bool {
	return s == StatusBanned || s == StatusSold
}

// UserStatus marks whether an account is live or retired by the identity sync.
type UserStatus string

const (
	UserActive   UserStatus = "active"
	UserInactive UserStatus = "inactive"
)

// User represents the users table row. IDs come from the identity provider.
type User struct {
	ID        string
	Email     string
	Name      string
	Image     string
	Earned    int64
	Withdrawn int64
	Status    UserStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Available returns the withdrawable balance.
func (u *User) Available() int64 {
	return u.Earned - u.Withdrawn
}

// UserProfile carries identity-provider data used to upsert a user.
type UserProfile struct {
	ID    string
	Email string
	Name  string
	Image string
}

// Listing represents a for-sale social-media account.
type Listing struct {
	ID                    string
	OwnerID               string
	Title                 string
	Platform              string
	Username              string
	Niche                 string
	FollowersCount        int64
	EngagementRate        float64
	MonthlyViews          int64
	Price                 int64
	Country               string
	AgeRange              string
	Verified              bool
	Monetized             bool
	Images                []string
	Status                ListingStatus
	IsFeatured            bool
	IsCredentialSubmitted bool
	IsCredentialVerified  bool
	IsCredentialChanged   bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// FieldKind tags a credential field so clients can render it safely.
type FieldKind string

const (
	FieldEmail    FieldKind = "email"
	FieldPassword FieldKind = "password"
	FieldText     FieldKind = "text"
)

// Valid reports whether k is a known field kind.
func (k FieldKind) Valid() bool {
	return k == FieldEmail || k == FieldPassword || k == FieldText
}

// CredentialField is one secret entry of a credential payload.
type CredentialField struct {
	Name  string    `json:"name"`
	Kind  FieldKind `json:"kind"`
	Value string    `json:"value"`
}

// Credential holds the account secrets tied to exactly one listing.
// Original is the payload submitted before sale, Updated the rotated
// payload after sale (empty until the seller rotates).
type Credential struct {
	ID        string
	ListingID string
	Original  []CredentialField
	Updated   []CredentialField
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Order is an immutable record of a completed purchase. Amount snapshots
// the listing price at purchase time and is never recomputed.
type Order struct {
	ID        string
	UserID    string
	ListingID string
	Amount    int64
	IsPaid    bool
	CreatedAt time.Time
}

// OrderWithListing joins an order with its listing and, when present, the
// listing credential for the buyer's handoff view.
type OrderWithListing struct {
	Order
	Listing    Listing
	Credential *Credential
}

// Chat is a conversation between a listing owner and one prospective buyer,
// unique per (listing, chat user) pair.
type Chat struct {
	ID                  string
	ListingID           string
	OwnerUserID         string
	ChatUserID          string
	LastMessage         string
	LastMessageAt       *time.Time
	LastMessageSenderID string
	IsLastMessageRead   bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// ChatWithMessages is a chat plus its ordered message log and listing.
type ChatWithMessages struct {
	Chat
	Listing  Listing
	Messages []Message
}

// Message is one chat entry. Seq is monotonic within a chat and fixes the
// per-thread ordering regardless of clock skew.
type Message struct {
	ID        string
	ChatID    string
	SenderID  string
	Body      string
	Seq       int64
	CreatedAt time.Time
}
