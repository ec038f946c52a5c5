package inquiry

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	domaininquiry "propnest/internal/domain/inquiry"
	domainlisting "propnest/internal/domain/listing"
	domainuser "propnest/internal/domain/user"
)

const (
	EventNewInquiry     = "new_inquiry"
	EventReceiveMessage = "receive_message"

	topicInquiryCreated = "inquiry.created"
	topicInquiryReplied = "inquiry.replied"
)

// Notifier delivers an event to every live connection of one user. Delivery
// is best effort: no connection means the event is dropped, and Publish must
// never block the write path that triggered it.
type Notifier interface {
	Publish(userID domainuser.ID, event string, data any)
}

// EventPublisher hands inquiry lifecycle events to the broker.
type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, payload []byte, headers map[string]string) error
}

// ListingResolver is the listing-store collaborator contract: existence
// check plus owner resolution, or listing.ErrNotFound.
type ListingResolver interface {
	Resolve(ctx context.Context, id domainlisting.ID) (domainlisting.Summary, error)
}

// Service is the single authority for creating inquiries and appending
// replies. It enforces participant authorization and referential validity;
// the store below it only guarantees atomic appends.
type Service struct {
	Inquiries domaininquiry.Repository
	Listings  ListingResolver
	Users     domainuser.Repository
	Notifier  Notifier
	Events    EventPublisher
	Logger    *slog.Logger
	Now       func() time.Time
}

type CreateParams struct {
	ListingID  domainlisting.ID
	BuyerID    domainuser.ID
	Text       string
	BuyerPhone string
	BuyerEmail string
}

// MessageEvent is the realtime payload a reply produces: enough for the
// recipient's client to append the message without a full refetch.
type MessageEvent struct {
	InquiryID string         `json:"inquiryId"`
	Message   MessagePayload `json:"message"`
}

type MessagePayload struct {
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// InquiryEvent announces a freshly created inquiry to the owner's room.
type InquiryEvent struct {
	InquiryID  string         `json:"inquiryId"`
	ListingID  string         `json:"listingId"`
	BuyerID    string         `json:"buyerId"`
	BuyerEmail string         `json:"buyerEmail,omitempty"`
	Message    MessagePayload `json:"message"`
}

// InboxItem is the read-optimized projection the owner inbox returns:
// the inquiry joined with listing and buyer display fields.
type InboxItem struct {
	Inquiry *domaininquiry.Inquiry
	Listing domainlisting.Summary
	Buyer   BuyerSummary
}

type BuyerSummary struct {
	ID    domainuser.ID
	Name  string
	Email string
}

// Create validates the referenced listing, snapshots its owner, and persists
// a new inquiry whose log holds the buyer's opening message. Each submission
// creates a fresh inquiry; repeat contacts are not threaded together.
func (s *Service) Create(ctx context.Context, params CreateParams) (*domaininquiry.Inquiry, error) {
	text := strings.TrimSpace(params.Text)
	if text == "" {
		return nil, domaininquiry.ErrEmptyMessage
	}
	summary, err := s.Listings.Resolve(ctx, params.ListingID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	inq, err := domaininquiry.NewInquiry(domaininquiry.CreateParams{
		ID:         domaininquiry.ID(uuid.NewString()),
		ListingID:  params.ListingID,
		BuyerID:    params.BuyerID,
		OwnerID:    summary.Owner,
		Text:       text,
		BuyerPhone: params.BuyerPhone,
		BuyerEmail: params.BuyerEmail,
		CreatedAt:  now,
	})
	if err != nil {
		return nil, err
	}
	if err := s.Inquiries.Insert(ctx, inq); err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("inquiry created", "inquiry_id", inq.ID, "listing_id", inq.ListingID, "buyer_id", inq.BuyerID, "owner_id", inq.OwnerID)
	}
	s.notify(inq.OwnerID, EventNewInquiry, newInquiryEvent(inq))
	s.emit(topicInquiryCreated, string(inq.ID), inq)
	return inq, nil
}

// Reply appends a message authored by a participant. The first owner-authored
// reply moves the inquiry to CONTACTED; buyer replies never touch status.
func (s *Service) Reply(ctx context.Context, id domaininquiry.ID, author domainuser.ID, text string) (*domaininquiry.Inquiry, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domaininquiry.ErrEmptyMessage
	}
	inq, err := s.Inquiries.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !inq.IsParticipant(author) {
		if s.Logger != nil {
			s.Logger.Warn("reply rejected: not a participant", "inquiry_id", id, "author_id", author)
		}
		return nil, domaininquiry.ErrNotParticipant
	}
	msg := domaininquiry.Message{Sender: author, Text: text, SentAt: s.now()}
	// Marking CONTACTED is keyed on authorship, not on the status read
	// above: setting it again on an already-contacted inquiry is a no-op,
	// so racing replies cannot corrupt the state machine.
	updated, err := s.Inquiries.AppendMessage(ctx, id, msg, author == inq.OwnerID)
	if err != nil {
		return nil, err
	}
	recipient := updated.Counterpart(author)
	s.notify(recipient, EventReceiveMessage, MessageEvent{
		InquiryID: string(updated.ID),
		Message:   newMessagePayload(msg),
	})
	s.emit(topicInquiryReplied, string(updated.ID), msg)
	return updated, nil
}

// Get returns a single inquiry to one of its participants.
func (s *Service) Get(ctx context.Context, id domaininquiry.ID, caller domainuser.ID) (*domaininquiry.Inquiry, error) {
	inq, err := s.Inquiries.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !inq.IsParticipant(caller) {
		if s.Logger != nil {
			s.Logger.Warn("read rejected: not a participant", "inquiry_id", id, "caller_id", caller)
		}
		return nil, domaininquiry.ErrNotParticipant
	}
	return inq, nil
}

// OwnerInbox returns the owner's inquiries newest-created-first, each joined
// with listing and buyer summaries for display.
func (s *Service) OwnerInbox(ctx context.Context, ownerID domainuser.ID) ([]InboxItem, error) {
	inquiries, err := s.Inquiries.ByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(inquiries, func(i, j int) bool {
		return inquiries[i].CreatedAt.After(inquiries[j].CreatedAt)
	})
	items := make([]InboxItem, 0, len(inquiries))
	for _, inq := range inquiries {
		item := InboxItem{Inquiry: inq}
		if summary, err := s.Listings.Resolve(ctx, inq.ListingID); err == nil {
			item.Listing = summary
		}
		item.Buyer = BuyerSummary{ID: inq.BuyerID, Email: inq.BuyerEmail}
		if buyer, err := s.Users.ByID(ctx, inq.BuyerID); err == nil {
			item.Buyer.Name = buyer.Name
			if item.Buyer.Email == "" {
				item.Buyer.Email = buyer.Email
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// PurgeUser deletes every inquiry the user participates in. Called by the
// account-deletion workflow; satisfies the auth service's AccountPurger.
func (s *Service) PurgeUser(ctx context.Context, userID domainuser.ID) (int64, error) {
	return s.Inquiries.DeleteByParticipant(ctx, userID)
}

func (s *Service) notify(recipient domainuser.ID, event string, data any) {
	if s.Notifier == nil {
		return
	}
	s.Notifier.Publish(recipient, event, data)
}

// emit pushes a broker event off the request path. Broker trouble is logged
// and swallowed; it must never downgrade a committed write into a failure.
func (s *Service) emit(topic, key string, payload any) {
	if s.Events == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Error("event encode failed", "topic", topic, "error", err)
		}
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Events.Publish(ctx, topic, key, body, nil); err != nil && s.Logger != nil {
			s.Logger.Error("event publish failed", "topic", topic, "key", key, "error", err)
		}
	}()
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func newMessagePayload(msg domaininquiry.Message) MessagePayload {
	return MessagePayload{Sender: string(msg.Sender), Text: msg.Text, Timestamp: msg.SentAt}
}

func newInquiryEvent(inq *domaininquiry.Inquiry) InquiryEvent {
	return InquiryEvent{
		InquiryID:  string(inq.ID),
		ListingID:  string(inq.ListingID),
		BuyerID:    string(inq.BuyerID),
		BuyerEmail: inq.BuyerEmail,
		Message:    newMessagePayload(inq.Messages[0]),
	}
}
