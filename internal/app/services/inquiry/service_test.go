package inquiry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	listingsvc "propnest/internal/app/services/listing"
	domaininquiry "propnest/internal/domain/inquiry"
	domainlisting "propnest/internal/domain/listing"
	domainuser "propnest/internal/domain/user"
	"propnest/internal/infra/storage/memory"
)

type capturedEvent struct {
	Recipient domainuser.ID
	Event     string
	Data      any
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []capturedEvent
}

func (n *fakeNotifier) Publish(userID domainuser.ID, event string, data any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, capturedEvent{Recipient: userID, Event: event, Data: data})
}

func (n *fakeNotifier) captured() []capturedEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]capturedEvent(nil), n.events...)
}

type fixture struct {
	svc      *Service
	notifier *fakeNotifier
	users    *memory.UserRepository
	listings *memory.ListingRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	users := memory.NewUserRepository()
	listings := memory.NewListingRepository()
	notifier := &fakeNotifier{}
	svc := &Service{
		Inquiries: memory.NewInquiryRepository(),
		Listings:  &listingsvc.Service{Listings: listings},
		Users:     users,
		Notifier:  notifier,
	}
	return &fixture{svc: svc, notifier: notifier, users: users, listings: listings}
}

func (f *fixture) addUser(t *testing.T, id domainuser.ID, name, email string) {
	t.Helper()
	u, err := domainuser.NewUser(domainuser.CreateParams{
		ID:           id,
		Email:        email,
		Name:         name,
		PasswordHash: "x",
	})
	require.NoError(t, err)
	require.NoError(t, f.users.Save(context.Background(), u))
}

func (f *fixture) addListing(t *testing.T, id domainlisting.ID, owner domainuser.ID, title string) {
	t.Helper()
	lst, err := domainlisting.NewListing(domainlisting.CreateParams{
		ID:         id,
		Owner:      owner,
		Title:      title,
		PriceCents: 25_000_000,
		Location:   domainlisting.Location{City: "Lisbon", Country: "PT"},
	})
	require.NoError(t, err)
	require.NoError(t, f.listings.Save(context.Background(), lst))
}

func TestService_Create(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser(t, "owner-1", "Olive Owner", "olive@example.com")
	f.addUser(t, "buyer-1", "Bram Buyer", "bram@example.com")
	f.addListing(t, "lst-1", "owner-1", "Sunny flat")

	inq, err := f.svc.Create(ctx, CreateParams{
		ListingID:  "lst-1",
		BuyerID:    "buyer-1",
		Text:       "Interested",
		BuyerPhone: "+351 555 0100",
		BuyerEmail: "bram@example.com",
	})
	require.NoError(t, err)

	assert.EqualValues(t, "lst-1", inq.ListingID)
	assert.EqualValues(t, "buyer-1", inq.BuyerID)
	assert.EqualValues(t, "owner-1", inq.OwnerID)
	assert.Equal(t, domaininquiry.StatusPending, inq.Status)
	require.Len(t, inq.Messages, 1)
	assert.EqualValues(t, "buyer-1", inq.Messages[0].Sender)
	assert.Equal(t, "Interested", inq.Messages[0].Text)

	events := f.notifier.captured()
	require.Len(t, events, 1)
	assert.EqualValues(t, "owner-1", events[0].Recipient)
	assert.Equal(t, EventNewInquiry, events[0].Event)
}

func TestService_Create_MissingListing(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "buyer-1", "Bram Buyer", "bram@example.com")

	_, err := f.svc.Create(context.Background(), CreateParams{
		ListingID: "ghost",
		BuyerID:   "buyer-1",
		Text:      "Hello?",
	})
	assert.ErrorIs(t, err, domainlisting.ErrNotFound)
	assert.Empty(t, f.notifier.captured())
}

func TestService_Create_Validation(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "owner-1", "Olive Owner", "olive@example.com")
	f.addListing(t, "lst-1", "owner-1", "Sunny flat")

	t.Run("empty message", func(t *testing.T) {
		_, err := f.svc.Create(context.Background(), CreateParams{
			ListingID: "lst-1",
			BuyerID:   "buyer-1",
			Text:      "   ",
		})
		assert.ErrorIs(t, err, domaininquiry.ErrEmptyMessage)
	})

	t.Run("owner contacting own listing", func(t *testing.T) {
		_, err := f.svc.Create(context.Background(), CreateParams{
			ListingID: "lst-1",
			BuyerID:   "owner-1",
			Text:      "Nice place I own",
		})
		assert.ErrorIs(t, err, domaininquiry.ErrSelfInquiry)
	})
}

func TestService_Reply_NonParticipant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser(t, "owner-1", "Olive Owner", "olive@example.com")
	f.addUser(t, "buyer-1", "Bram Buyer", "bram@example.com")
	f.addListing(t, "lst-1", "owner-1", "Sunny flat")

	inq, err := f.svc.Create(ctx, CreateParams{ListingID: "lst-1", BuyerID: "buyer-1", Text: "Interested"})
	require.NoError(t, err)

	_, err = f.svc.Reply(ctx, inq.ID, "stranger", "let me in")
	assert.ErrorIs(t, err, domaininquiry.ErrNotParticipant)

	// The log must be untouched and no event delivered for the rejection.
	current, err := f.svc.Get(ctx, inq.ID, "buyer-1")
	require.NoError(t, err)
	assert.Len(t, current.Messages, 1)
	assert.Len(t, f.notifier.captured(), 1) // only the create event
}

func TestService_Reply_StatusMachine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser(t, "owner-1", "Olive Owner", "olive@example.com")
	f.addUser(t, "buyer-1", "Bram Buyer", "bram@example.com")
	f.addListing(t, "lst-1", "owner-1", "Sunny flat")

	inq, err := f.svc.Create(ctx, CreateParams{ListingID: "lst-1", BuyerID: "buyer-1", Text: "Interested"})
	require.NoError(t, err)

	// Buyer replies never move the status.
	updated, err := f.svc.Reply(ctx, inq.ID, "buyer-1", "Still interested")
	require.NoError(t, err)
	assert.Equal(t, domaininquiry.StatusPending, updated.Status)

	// First owner reply flips pending to contacted.
	updated, err = f.svc.Reply(ctx, inq.ID, "owner-1", "Sure, call me")
	require.NoError(t, err)
	assert.Equal(t, domaininquiry.StatusContacted, updated.Status)

	// Contacted is terminal; later replies leave it alone.
	updated, err = f.svc.Reply(ctx, inq.ID, "buyer-1", "Will do")
	require.NoError(t, err)
	assert.Equal(t, domaininquiry.StatusContacted, updated.Status)
	updated, err = f.svc.Reply(ctx, inq.ID, "owner-1", "Great")
	require.NoError(t, err)
	assert.Equal(t, domaininquiry.StatusContacted, updated.Status)

	assert.Len(t, updated.Messages, 5)
}

func TestService_Reply_NotifiesCounterpart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser(t, "owner-1", "Olive Owner", "olive@example.com")
	f.addUser(t, "buyer-1", "Bram Buyer", "bram@example.com")
	f.addListing(t, "lst-1", "owner-1", "Sunny flat")

	inq, err := f.svc.Create(ctx, CreateParams{ListingID: "lst-1", BuyerID: "buyer-1", Text: "Interested"})
	require.NoError(t, err)

	_, err = f.svc.Reply(ctx, inq.ID, "owner-1", "Sure, call me")
	require.NoError(t, err)
	_, err = f.svc.Reply(ctx, inq.ID, "buyer-1", "Calling now")
	require.NoError(t, err)

	events := f.notifier.captured()
	require.Len(t, events, 3)

	// Owner reply goes to the buyer's room, buyer reply to the owner's.
	assert.Equal(t, EventReceiveMessage, events[1].Event)
	assert.EqualValues(t, "buyer-1", events[1].Recipient)
	payload, ok := events[1].Data.(MessageEvent)
	require.True(t, ok)
	assert.Equal(t, string(inq.ID), payload.InquiryID)
	assert.Equal(t, "Sure, call me", payload.Message.Text)
	assert.Equal(t, "owner-1", payload.Message.Sender)

	assert.Equal(t, EventReceiveMessage, events[2].Event)
	assert.EqualValues(t, "owner-1", events[2].Recipient)
}

func TestService_Reply_ConcurrentAppends(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser(t, "owner-1", "Olive Owner", "olive@example.com")
	f.addUser(t, "buyer-1", "Bram Buyer", "bram@example.com")
	f.addListing(t, "lst-1", "owner-1", "Sunny flat")

	inq, err := f.svc.Create(ctx, CreateParams{ListingID: "lst-1", BuyerID: "buyer-1", Text: "Interested"})
	require.NoError(t, err)

	const replies = 50
	var wg sync.WaitGroup
	wg.Add(replies)
	for i := 0; i < replies; i++ {
		author := domainuser.ID("buyer-1")
		if i%2 == 0 {
			author = "owner-1"
		}
		go func(author domainuser.ID) {
			defer wg.Done()
			_, err := f.svc.Reply(ctx, inq.ID, author, "ping")
			assert.NoError(t, err)
		}(author)
	}
	wg.Wait()

	final, err := f.svc.Get(ctx, inq.ID, "owner-1")
	require.NoError(t, err)
	assert.Len(t, final.Messages, replies+1, "no reply may be lost under concurrency")
	assert.Equal(t, domaininquiry.StatusContacted, final.Status)
}

func TestService_OwnerInbox(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser(t, "owner-1", "Olive Owner", "olive@example.com")
	f.addUser(t, "owner-2", "Oscar Other", "oscar@example.com")
	f.addUser(t, "buyer-1", "Bram Buyer", "bram@example.com")
	f.addListing(t, "lst-1", "owner-1", "Sunny flat")
	f.addListing(t, "lst-2", "owner-1", "Harbor loft")
	f.addListing(t, "lst-3", "owner-2", "Hillside villa")

	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	clock := base
	f.svc.Now = func() time.Time { return clock }

	first, err := f.svc.Create(ctx, CreateParams{ListingID: "lst-1", BuyerID: "buyer-1", Text: "First", BuyerEmail: "bram@example.com"})
	require.NoError(t, err)
	clock = base.Add(time.Minute)
	second, err := f.svc.Create(ctx, CreateParams{ListingID: "lst-2", BuyerID: "buyer-1", Text: "Second"})
	require.NoError(t, err)
	// Same buyer, different owner: must never leak into owner-1's inbox.
	clock = base.Add(2 * time.Minute)
	_, err = f.svc.Create(ctx, CreateParams{ListingID: "lst-3", BuyerID: "buyer-1", Text: "Third"})
	require.NoError(t, err)

	items, err := f.svc.OwnerInbox(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, items, 2)

	// Newest first.
	assert.Equal(t, second.ID, items[0].Inquiry.ID)
	assert.Equal(t, first.ID, items[1].Inquiry.ID)

	// Joined projection fields.
	assert.Equal(t, "Harbor loft", items[0].Listing.Title)
	assert.Equal(t, "Bram Buyer", items[0].Buyer.Name)
	assert.Equal(t, "bram@example.com", items[1].Buyer.Email)

	other, err := f.svc.OwnerInbox(ctx, "owner-2")
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, "Hillside villa", other[0].Listing.Title)
}

func TestService_PurgeUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser(t, "owner-1", "Olive Owner", "olive@example.com")
	f.addUser(t, "buyer-1", "Bram Buyer", "bram@example.com")
	f.addUser(t, "buyer-2", "Bea Buyer", "bea@example.com")
	f.addListing(t, "lst-1", "owner-1", "Sunny flat")

	_, err := f.svc.Create(ctx, CreateParams{ListingID: "lst-1", BuyerID: "buyer-1", Text: "One"})
	require.NoError(t, err)
	kept, err := f.svc.Create(ctx, CreateParams{ListingID: "lst-1", BuyerID: "buyer-2", Text: "Two"})
	require.NoError(t, err)

	purged, err := f.svc.PurgeUser(ctx, "buyer-1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, purged)

	items, err := f.svc.OwnerInbox(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, kept.ID, items[0].Inquiry.ID)

	// Deleting the owner removes everything they participate in.
	purged, err = f.svc.PurgeUser(ctx, "owner-1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, purged)
}
