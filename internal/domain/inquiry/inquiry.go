package inquiry

import (
	"context"
	"errors"
	"strings"
	"time"

	"propnest/internal/domain/listing"
	"propnest/internal/domain/user"
)

var (
	ErrIDRequired     = errors.New("inquiry: id is required")
	ErrBuyerRequired  = errors.New("inquiry: buyer is required")
	ErrOwnerRequired  = errors.New("inquiry: owner is required")
	ErrSelfInquiry    = errors.New("inquiry: buyer and owner must differ")
	ErrEmptyMessage   = errors.New("inquiry: message text is required")
	ErrNotParticipant = errors.New("inquiry: author is not a participant")
	ErrNotFound       = errors.New("inquiry: not found")
)

type ID string

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusContacted Status = "CONTACTED"
)

// Message is one entry of an inquiry's transcript. The log is append-only
// and its insertion order is the conversation order.
type Message struct {
	Sender user.ID
	Text   string
	SentAt time.Time
}

// Inquiry is one buyer/owner conversation scoped to a single listing. The
// listing/buyer/owner triple is fixed at creation; the owner is a snapshot
// of the listing's owner at that moment and is never re-derived, so a later
// ownership transfer cannot shift who may read the thread.
type Inquiry struct {
	ID         ID
	ListingID  listing.ID
	BuyerID    user.ID
	OwnerID    user.ID
	BuyerPhone string
	BuyerEmail string
	Messages   []Message
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Repository interface {
	Insert(ctx context.Context, inq *Inquiry) error
	ByID(ctx context.Context, id ID) (*Inquiry, error)
	// ByOwner returns the owner's inquiries newest-created-first.
	ByOwner(ctx context.Context, ownerID user.ID) ([]*Inquiry, error)
	// AppendMessage atomically appends msg to the log; concurrent appends
	// must all be retained, in store arrival order. When markContacted is
	// set the status is moved to CONTACTED in the same write (idempotent).
	// Returns the updated inquiry.
	AppendMessage(ctx context.Context, id ID, msg Message, markContacted bool) (*Inquiry, error)
	// DeleteByParticipant removes every inquiry where the user is buyer or
	// owner. Invoked by the account-deletion workflow.
	DeleteByParticipant(ctx context.Context, userID user.ID) (int64, error)
}

type CreateParams struct {
	ID         ID
	ListingID  listing.ID
	BuyerID    user.ID
	OwnerID    user.ID
	Text       string
	BuyerPhone string
	BuyerEmail string
	CreatedAt  time.Time
}

func NewInquiry(params CreateParams) (*Inquiry, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, ErrIDRequired
	}
	if strings.TrimSpace(string(params.BuyerID)) == "" {
		return nil, ErrBuyerRequired
	}
	if strings.TrimSpace(string(params.OwnerID)) == "" {
		return nil, ErrOwnerRequired
	}
	if params.BuyerID == params.OwnerID {
		return nil, ErrSelfInquiry
	}
	text := strings.TrimSpace(params.Text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	now := params.CreatedAt
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	return &Inquiry{
		ID:         params.ID,
		ListingID:  params.ListingID,
		BuyerID:    params.BuyerID,
		OwnerID:    params.OwnerID,
		BuyerPhone: strings.TrimSpace(params.BuyerPhone),
		BuyerEmail: strings.TrimSpace(params.BuyerEmail),
		Messages:   []Message{{Sender: params.BuyerID, Text: text, SentAt: now}},
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func (i *Inquiry) IsParticipant(id user.ID) bool {
	return id == i.BuyerID || id == i.OwnerID
}

// Counterpart returns the other participant, the one a new message from
// the given author should be delivered to.
func (i *Inquiry) Counterpart(author user.ID) user.ID {
	if author == i.BuyerID {
		return i.OwnerID
	}
	return i.BuyerID
}
