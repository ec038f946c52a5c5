package listing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"

	domainlisting "propnest/internal/domain/listing"
	domainuser "propnest/internal/domain/user"
)

var ErrNotOwner = errors.New("listing: caller does not own the listing")

// PhotoStore persists listing photos in an object store and returns a public URL.
type PhotoStore interface {
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) (string, error)
}

type Service struct {
	Listings domainlisting.Repository
	Photos   PhotoStore
	Logger   *slog.Logger
}

type CreateParams struct {
	Title       string
	Description string
	PriceCents  int64
	Currency    string
	City        string
	Country     string
}

func (s *Service) Create(ctx context.Context, owner domainuser.ID, params CreateParams) (*domainlisting.Listing, error) {
	lst, err := domainlisting.NewListing(domainlisting.CreateParams{
		ID:          domainlisting.ID(uuid.NewString()),
		Owner:       owner,
		Title:       params.Title,
		Description: params.Description,
		PriceCents:  params.PriceCents,
		Currency:    params.Currency,
		Location:    domainlisting.Location{City: params.City, Country: params.Country},
		CreatedAt:   time.Now(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.Listings.Save(ctx, lst); err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("listing created", "listing_id", lst.ID, "owner_id", owner)
	}
	return lst, nil
}

func (s *Service) ByID(ctx context.Context, id domainlisting.ID) (*domainlisting.Listing, error) {
	return s.Listings.ByID(ctx, id)
}

// Resolve is the listing-store contract the inquiry core consumes: enough
// to validate existence and identify the owner, or ErrNotFound.
func (s *Service) Resolve(ctx context.Context, id domainlisting.ID) (domainlisting.Summary, error) {
	lst, err := s.Listings.ByID(ctx, id)
	if err != nil {
		return domainlisting.Summary{}, err
	}
	return lst.Summary(), nil
}

func (s *Service) Browse(ctx context.Context, params domainlisting.BrowseParams) ([]*domainlisting.Listing, error) {
	params.OnlyActive = true
	return s.Listings.Browse(ctx, params)
}

func (s *Service) AttachPhoto(ctx context.Context, id domainlisting.ID, caller domainuser.ID, filename string, reader io.Reader, contentType string) (string, error) {
	lst, err := s.Listings.ByID(ctx, id)
	if err != nil {
		return "", err
	}
	if lst.Owner != caller {
		return "", ErrNotOwner
	}
	if s.Photos == nil {
		return "", errors.New("listing: photo store is not configured")
	}
	key := path.Join("listings", string(id), uuid.NewString()+path.Ext(filename))
	url, err := s.Photos.Upload(ctx, key, reader, contentType)
	if err != nil {
		return "", err
	}
	lst.AttachPhoto(url, time.Now())
	if err := s.Listings.Save(ctx, lst); err != nil {
		return "", err
	}
	return url, nil
}

func (s *Service) MarkSold(ctx context.Context, id domainlisting.ID, caller domainuser.ID) (*domainlisting.Listing, error) {
	lst, err := s.Listings.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if lst.Owner != caller {
		return nil, ErrNotOwner
	}
	if err := lst.MarkSold(time.Now()); err != nil {
		return nil, err
	}
	if err := s.Listings.Save(ctx, lst); err != nil {
		return nil, err
	}
	return lst, nil
}
