package listing

import (
	"context"
	"errors"
	"strings"
	"time"

	"propnest/internal/domain/user"
)

var (
	ErrTitleRequired    = errors.New("listing: title is required")
	ErrLocationRequired = errors.New("listing: city and country are required")
	ErrInvalidPrice     = errors.New("listing: price must be non-negative")
	ErrInvalidState     = errors.New("listing: invalid state transition")
	ErrNotFound         = errors.New("listing: not found")
)

type ID string

type State string

const (
	StateDraft  State = "DRAFT"
	StateActive State = "ACTIVE"
	StateSold   State = "SOLD"
)

type Location struct {
	City    string
	Country string
}

func (l Location) Valid() bool {
	return strings.TrimSpace(l.City) != "" && strings.TrimSpace(l.Country) != ""
}

type Listing struct {
	ID          ID
	Owner       user.ID
	Title       string
	Description string
	PriceCents  int64
	Currency    string
	Location    Location
	Photos      []string
	State       State
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Summary is the read projection other components consume: enough to
// resolve the owner and render a listing card, nothing more.
type Summary struct {
	ID           ID
	Owner        user.ID
	Title        string
	PriceCents   int64
	Currency     string
	Location     Location
	PrimaryPhoto string
}

type BrowseParams struct {
	City       string
	OnlyActive bool
	Limit      int
}

type Repository interface {
	ByID(ctx context.Context, id ID) (*Listing, error)
	Save(ctx context.Context, listing *Listing) error
	Browse(ctx context.Context, params BrowseParams) ([]*Listing, error)
}

type CreateParams struct {
	ID          ID
	Owner       user.ID
	Title       string
	Description string
	PriceCents  int64
	Currency    string
	Location    Location
	CreatedAt   time.Time
}

func NewListing(params CreateParams) (*Listing, error) {
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	if !params.Location.Valid() {
		return nil, ErrLocationRequired
	}
	if params.PriceCents < 0 {
		return nil, ErrInvalidPrice
	}
	currency := strings.ToUpper(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = "USD"
	}
	now := params.CreatedAt
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	return &Listing{
		ID:          params.ID,
		Owner:       params.Owner,
		Title:       title,
		Description: strings.TrimSpace(params.Description),
		PriceCents:  params.PriceCents,
		Currency:    currency,
		Location:    params.Location,
		State:       StateActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (l *Listing) MarkSold(now time.Time) error {
	if l.State != StateActive {
		return ErrInvalidState
	}
	l.State = StateSold
	l.touch(now)
	return nil
}

func (l *Listing) AttachPhoto(url string, now time.Time) {
	url = strings.TrimSpace(url)
	if url == "" {
		return
	}
	l.Photos = append(l.Photos, url)
	l.touch(now)
}

// PrimaryPhoto returns the first attached photo, the one listing cards show.
func (l *Listing) PrimaryPhoto() string {
	if len(l.Photos) == 0 {
		return ""
	}
	return l.Photos[0]
}

func (l *Listing) Summary() Summary {
	return Summary{
		ID:           l.ID,
		Owner:        l.Owner,
		Title:        l.Title,
		PriceCents:   l.PriceCents,
		Currency:     l.Currency,
		Location:     l.Location,
		PrimaryPhoto: l.PrimaryPhoto(),
	}
}

func (l *Listing) touch(now time.Time) {
	if now.IsZero() {
		now = time.Now()
	}
	l.UpdatedAt = now.UTC()
}
