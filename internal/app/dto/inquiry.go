package dto

import "time"

// Message is one transcript entry.
type Message struct {
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Inquiry is the full conversation shape returned to participants.
type Inquiry struct {
	ID         string    `json:"id"`
	ListingID  string    `json:"listing_id"`
	BuyerID    string    `json:"buyer_id"`
	OwnerID    string    `json:"owner_id"`
	BuyerPhone string    `json:"buyer_phone,omitempty"`
	BuyerEmail string    `json:"buyer_email,omitempty"`
	Messages   []Message `json:"messages"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// InboxItem joins an inquiry with listing and buyer display fields for the
// owner's inbox, so the client renders without extra round trips.
type InboxItem struct {
	Inquiry Inquiry        `json:"inquiry"`
	Listing ListingSummary `json:"listing"`
	Buyer   BuyerSummary   `json:"buyer"`
}

type BuyerSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}
