package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	domainlisting "propnest/internal/domain/listing"
)

// ListingRepository is an in-memory implementation for tests and demo mode.
type ListingRepository struct {
	mu    sync.RWMutex
	items map[domainlisting.ID]*domainlisting.Listing
}

func NewListingRepository() *ListingRepository {
	return &ListingRepository{items: make(map[domainlisting.ID]*domainlisting.Listing)}
}

func (r *ListingRepository) ByID(ctx context.Context, id domainlisting.ID) (*domainlisting.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lst, ok := r.items[id]
	if !ok {
		return nil, domainlisting.ErrNotFound
	}
	return cloneListing(lst), nil
}

func (r *ListingRepository) Save(ctx context.Context, lst *domainlisting.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[lst.ID] = cloneListing(lst)
	return nil
}

func (r *ListingRepository) Browse(ctx context.Context, params domainlisting.BrowseParams) ([]*domainlisting.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matches := make([]*domainlisting.Listing, 0, len(r.items))
	for _, lst := range r.items {
		if params.OnlyActive && lst.State != domainlisting.StateActive {
			continue
		}
		if params.City != "" && !strings.EqualFold(lst.Location.City, params.City) {
			continue
		}
		matches = append(matches, cloneListing(lst))
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	if params.Limit > 0 && len(matches) > params.Limit {
		matches = matches[:params.Limit]
	}
	return matches, nil
}

func cloneListing(lst *domainlisting.Listing) *domainlisting.Listing {
	clone := *lst
	clone.Photos = append([]string(nil), lst.Photos...)
	return &clone
}
