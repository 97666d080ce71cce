// Package mongo stores activity documents in a MongoDB collection keyed by activity name.
package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"example.com/mergington/internal/domain"
)

// Store is a domain.Store backed by a single collection whose _id is the activity name.
type Store struct {
	collection *mongo.Collection
}

// NewStore wraps an existing collection.
func NewStore(collection *mongo.Collection) *Store {
	return &Store{collection: collection}
}

// Connect dials uri and returns a Store over database.collection together with the client,
// which the caller must disconnect.
func Connect(ctx context.Context, uri, database, collection string) (*Store, *mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, err
	}
	return NewStore(client.Database(database).Collection(collection)), client, nil
}

type activityDocument struct {
	Name            string   `bson:"_id"`
	Description     string   `bson:"description"`
	Schedule        string   `bson:"schedule"`
	MaxParticipants int      `bson:"max_participants"`
	Participants    []string `bson:"participants"`
}

func toDocument(a domain.Activity) activityDocument {
	participants := a.Participants
	if participants == nil {
		participants = []string{}
	}
	return activityDocument{
		Name:            a.Name,
		Description:     a.Description,
		Schedule:        a.Schedule,
		MaxParticipants: a.MaxParticipants,
		Participants:    participants,
	}
}

func (d activityDocument) toDomain() domain.Activity {
	participants := d.Participants
	if participants == nil {
		participants = []string{}
	}
	return domain.Activity{
		Name:            d.Name,
		Description:     d.Description,
		Schedule:        d.Schedule,
		MaxParticipants: d.MaxParticipants,
		Participants:    participants,
	}
}

// Count implements domain.Store.
func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.collection.CountDocuments(ctx, bson.D{})
}

// InsertMissing implements domain.Store. Duplicate keys from a concurrent seeder are
// skipped rather than reported.
func (s *Store) InsertMissing(ctx context.Context, activities []domain.Activity) (int, error) {
	if len(activities) == 0 {
		return 0, nil
	}
	docs := make([]interface{}, 0, len(activities))
	for _, activity := range activities {
		docs = append(docs, toDocument(activity))
	}

	_, err := s.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err == nil {
		return len(docs), nil
	}

	var bulkErr mongo.BulkWriteException
	if !errors.As(err, &bulkErr) || bulkErr.WriteConcernError != nil {
		return 0, err
	}
	for _, writeErr := range bulkErr.WriteErrors {
		if writeErr.Code != duplicateKeyCode {
			return 0, err
		}
	}
	return len(docs) - len(bulkErr.WriteErrors), nil
}

const duplicateKeyCode = 11000

// List implements domain.Store in natural (insertion) order.
func (s *Store) List(ctx context.Context) ([]domain.Activity, error) {
	cursor, err := s.collection.Find(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	var docs []activityDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]domain.Activity, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toDomain())
	}
	return out, nil
}

// Get implements domain.Store.
func (s *Store) Get(ctx context.Context, name string) (*domain.Activity, error) {
	var doc activityDocument
	if err := s.collection.FindOne(ctx, bson.M{"_id": name}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	activity := doc.toDomain()
	return &activity, nil
}

// AddParticipant implements domain.Store with a filter that only matches when the email
// is absent, so the check and the $push are one atomic document update.
func (s *Store) AddParticipant(ctx context.Context, name, email string, enforceCapacity bool) (bool, error) {
	filter := bson.M{
		"_id":          name,
		"participants": bson.M{"$ne": email},
	}
	if enforceCapacity {
		filter["$expr"] = bson.M{"$lt": bson.A{bson.M{"$size": "$participants"}, "$max_participants"}}
	}

	res, err := s.collection.UpdateOne(ctx, filter, bson.M{"$push": bson.M{"participants": email}})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// RemoveParticipant implements domain.Store.
func (s *Store) RemoveParticipant(ctx context.Context, name, email string) (bool, error) {
	filter := bson.M{
		"_id":          name,
		"participants": email,
	}
	res, err := s.collection.UpdateOne(ctx, filter, bson.M{"$pull": bson.M{"participants": email}})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}
