package memory

import (
	"context"
	"sync"

	domaininquiry "propnest/internal/domain/inquiry"
	domainuser "propnest/internal/domain/user"
)

// InquiryRepository is an in-memory implementation for tests and demo mode.
// AppendMessage serializes appends behind the write lock, which is the same
// guarantee the Mongo $push gives: racing replies are all retained, in
// arrival order at the store.
type InquiryRepository struct {
	mu    sync.RWMutex
	items map[domaininquiry.ID]*domaininquiry.Inquiry
}

func NewInquiryRepository() *InquiryRepository {
	return &InquiryRepository{items: make(map[domaininquiry.ID]*domaininquiry.Inquiry)}
}

func (r *InquiryRepository) Insert(ctx context.Context, inq *domaininquiry.Inquiry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[inq.ID] = cloneInquiry(inq)
	return nil
}

func (r *InquiryRepository) ByID(ctx context.Context, id domaininquiry.ID) (*domaininquiry.Inquiry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inq, ok := r.items[id]
	if !ok {
		return nil, domaininquiry.ErrNotFound
	}
	return cloneInquiry(inq), nil
}

func (r *InquiryRepository) ByOwner(ctx context.Context, ownerID domainuser.ID) ([]*domaininquiry.Inquiry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*domaininquiry.Inquiry
	for _, inq := range r.items {
		if inq.OwnerID == ownerID {
			result = append(result, cloneInquiry(inq))
		}
	}
	return result, nil
}

func (r *InquiryRepository) AppendMessage(ctx context.Context, id domaininquiry.ID, msg domaininquiry.Message, markContacted bool) (*domaininquiry.Inquiry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inq, ok := r.items[id]
	if !ok {
		return nil, domaininquiry.ErrNotFound
	}
	inq.Messages = append(inq.Messages, msg)
	if markContacted {
		inq.Status = domaininquiry.StatusContacted
	}
	inq.UpdatedAt = msg.SentAt
	return cloneInquiry(inq), nil
}

func (r *InquiryRepository) DeleteByParticipant(ctx context.Context, userID domainuser.ID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for id, inq := range r.items {
		if inq.BuyerID == userID || inq.OwnerID == userID {
			delete(r.items, id)
			deleted++
		}
	}
	return deleted, nil
}

func cloneInquiry(inq *domaininquiry.Inquiry) *domaininquiry.Inquiry {
	clone := *inq
	clone.Messages = append([]domaininquiry.Message(nil), inq.Messages...)
	return &clone
}
