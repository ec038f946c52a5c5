package dto

import "time"

type Listing struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	PriceCents  int64     `json:"price_cents"`
	Currency    string    `json:"currency"`
	City        string    `json:"city"`
	Country     string    `json:"country"`
	Photos      []string  `json:"photos,omitempty"`
	State       string    `json:"state"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ListingSummary is the card-sized projection embedded in inbox items.
type ListingSummary struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	PriceCents   int64  `json:"price_cents"`
	Currency     string `json:"currency"`
	City         string `json:"city"`
	Country      string `json:"country"`
	PrimaryImage string `json:"primary_image,omitempty"`
}
