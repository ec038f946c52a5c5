package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainlisting "propnest/internal/domain/listing"
	domainuser "propnest/internal/domain/user"
)

type ListingRepository struct {
	col *mongo.Collection
}

func NewListingRepository(db *mongo.Database) *ListingRepository {
	return &ListingRepository{col: db.Collection("listings")}
}

func (r *ListingRepository) ByID(ctx context.Context, id domainlisting.ID) (*domainlisting.Listing, error) {
	var doc listingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainlisting.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *ListingRepository) Save(ctx context.Context, lst *domainlisting.Listing) error {
	doc := newListingDocument(lst)
	opts := options.Update().SetUpsert(true)
	_, err := r.col.UpdateOne(ctx, bson.M{"_id": doc.ID}, bson.M{"$set": doc}, opts)
	return err
}

func (r *ListingRepository) Browse(ctx context.Context, params domainlisting.BrowseParams) ([]*domainlisting.Listing, error) {
	filter := bson.M{}
	if params.OnlyActive {
		filter["state"] = string(domainlisting.StateActive)
	}
	if params.City != "" {
		filter["location.city"] = bson.M{"$regex": "^" + params.City + "$", "$options": "i"}
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if params.Limit > 0 {
		opts = opts.SetLimit(int64(params.Limit))
	}
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var result []*domainlisting.Listing
	for cursor.Next(ctx) {
		var doc listingDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		result = append(result, doc.toAggregate())
	}
	return result, cursor.Err()
}

type listingDocument struct {
	ID          string           `bson:"_id"`
	OwnerID     string           `bson:"owner_id"`
	Title       string           `bson:"title"`
	Description string           `bson:"description,omitempty"`
	PriceCents  int64            `bson:"price_cents"`
	Currency    string           `bson:"currency"`
	Location    locationDocument `bson:"location"`
	Photos      []string         `bson:"photos,omitempty"`
	State       string           `bson:"state"`
	CreatedAt   int64            `bson:"created_at"`
	UpdatedAt   int64            `bson:"updated_at"`
}

type locationDocument struct {
	City    string `bson:"city"`
	Country string `bson:"country"`
}

func newListingDocument(lst *domainlisting.Listing) listingDocument {
	return listingDocument{
		ID:          string(lst.ID),
		OwnerID:     string(lst.Owner),
		Title:       lst.Title,
		Description: lst.Description,
		PriceCents:  lst.PriceCents,
		Currency:    lst.Currency,
		Location:    locationDocument{City: lst.Location.City, Country: lst.Location.Country},
		Photos:      lst.Photos,
		State:       string(lst.State),
		CreatedAt:   lst.CreatedAt.UnixMilli(),
		UpdatedAt:   lst.UpdatedAt.UnixMilli(),
	}
}

func (d listingDocument) toAggregate() *domainlisting.Listing {
	return &domainlisting.Listing{
		ID:          domainlisting.ID(d.ID),
		Owner:       domainuser.ID(d.OwnerID),
		Title:       d.Title,
		Description: d.Description,
		PriceCents:  d.PriceCents,
		Currency:    d.Currency,
		Location:    domainlisting.Location{City: d.Location.City, Country: d.Location.Country},
		Photos:      d.Photos,
		State:       domainlisting.State(d.State),
		CreatedAt:   timestampToTime(d.CreatedAt),
		UpdatedAt:   timestampToTime(d.UpdatedAt),
	}
}
