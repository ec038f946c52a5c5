package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domaininquiry "propnest/internal/domain/inquiry"
	domainlisting "propnest/internal/domain/listing"
	domainuser "propnest/internal/domain/user"
)

type InquiryRepository struct {
	col *mongo.Collection
}

func NewInquiryRepository(db *mongo.Database) *InquiryRepository {
	return &InquiryRepository{col: db.Collection("inquiries")}
}

func (r *InquiryRepository) Insert(ctx context.Context, inq *domaininquiry.Inquiry) error {
	_, err := r.col.InsertOne(ctx, newInquiryDocument(inq))
	return err
}

func (r *InquiryRepository) ByID(ctx context.Context, id domaininquiry.ID) (*domaininquiry.Inquiry, error) {
	var doc inquiryDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domaininquiry.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *InquiryRepository) ByOwner(ctx context.Context, ownerID domainuser.ID) ([]*domaininquiry.Inquiry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.col.Find(ctx, bson.M{"owner_id": string(ownerID)}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var result []*domaininquiry.Inquiry
	for cursor.Next(ctx) {
		var doc inquiryDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		result = append(result, doc.toAggregate())
	}
	return result, cursor.Err()
}

// AppendMessage pushes the message in a single atomic update, so two replies
// racing for the same inquiry are both retained in arrival order. The
// CONTACTED flip rides in the same write; re-setting it is a no-op.
func (r *InquiryRepository) AppendMessage(ctx context.Context, id domaininquiry.ID, msg domaininquiry.Message, markContacted bool) (*domaininquiry.Inquiry, error) {
	set := bson.M{"updated_at": msg.SentAt.UnixMilli()}
	if markContacted {
		set["status"] = string(domaininquiry.StatusContacted)
	}
	update := bson.M{
		"$push": bson.M{"messages": newMessageDocument(msg)},
		"$set":  set,
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc inquiryDocument
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": string(id)}, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domaininquiry.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *InquiryRepository) DeleteByParticipant(ctx context.Context, userID domainuser.ID) (int64, error) {
	res, err := r.col.DeleteMany(ctx, bson.M{"$or": bson.A{
		bson.M{"buyer_id": string(userID)},
		bson.M{"owner_id": string(userID)},
	}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

type inquiryDocument struct {
	ID         string            `bson:"_id"`
	ListingID  string            `bson:"listing_id"`
	BuyerID    string            `bson:"buyer_id"`
	OwnerID    string            `bson:"owner_id"`
	BuyerPhone string            `bson:"buyer_phone,omitempty"`
	BuyerEmail string            `bson:"buyer_email,omitempty"`
	Messages   []messageDocument `bson:"messages"`
	Status     string            `bson:"status"`
	CreatedAt  int64             `bson:"created_at"`
	UpdatedAt  int64             `bson:"updated_at"`
}

type messageDocument struct {
	Sender string `bson:"sender"`
	Text   string `bson:"text"`
	SentAt int64  `bson:"sent_at"`
}

func newInquiryDocument(inq *domaininquiry.Inquiry) inquiryDocument {
	messages := make([]messageDocument, 0, len(inq.Messages))
	for _, msg := range inq.Messages {
		messages = append(messages, newMessageDocument(msg))
	}
	return inquiryDocument{
		ID:         string(inq.ID),
		ListingID:  string(inq.ListingID),
		BuyerID:    string(inq.BuyerID),
		OwnerID:    string(inq.OwnerID),
		BuyerPhone: inq.BuyerPhone,
		BuyerEmail: inq.BuyerEmail,
		Messages:   messages,
		Status:     string(inq.Status),
		CreatedAt:  inq.CreatedAt.UnixMilli(),
		UpdatedAt:  inq.UpdatedAt.UnixMilli(),
	}
}

func newMessageDocument(msg domaininquiry.Message) messageDocument {
	return messageDocument{
		Sender: string(msg.Sender),
		Text:   msg.Text,
		SentAt: msg.SentAt.UnixMilli(),
	}
}

func (d inquiryDocument) toAggregate() *domaininquiry.Inquiry {
	messages := make([]domaininquiry.Message, 0, len(d.Messages))
	for _, msg := range d.Messages {
		messages = append(messages, domaininquiry.Message{
			Sender: domainuser.ID(msg.Sender),
			Text:   msg.Text,
			SentAt: timestampToTime(msg.SentAt),
		})
	}
	return &domaininquiry.Inquiry{
		ID:         domaininquiry.ID(d.ID),
		ListingID:  domainlisting.ID(d.ListingID),
		BuyerID:    domainuser.ID(d.BuyerID),
		OwnerID:    domainuser.ID(d.OwnerID),
		BuyerPhone: d.BuyerPhone,
		BuyerEmail: d.BuyerEmail,
		Messages:   messages,
		Status:     domaininquiry.Status(d.Status),
		CreatedAt:  timestampToTime(d.CreatedAt),
		UpdatedAt:  timestampToTime(d.UpdatedAt),
	}
}

func timestampToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
