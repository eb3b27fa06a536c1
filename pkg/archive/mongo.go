package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Default MongoDB names.
const (
	DefaultMongoDatabase   = "modgraph"
	DefaultMongoCollection = "archives"
)

// mongoArchive is the stored document. The state is kept as a JSON string
// so that arbitrary values round-trip without BSON conversion.
type mongoArchive struct {
	DocumentID string    `bson:"_id"`
	ID         string    `bson:"archive_id"`
	State      string    `bson:"state"`
	SavedAt    time.Time `bson:"saved_at"`
	ExpiresAt  time.Time `bson:"expires_at,omitempty"`
}

// MongoStore keeps archives in a MongoDB collection, one document per
// preview document.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoStore connects to uri and prepares the archive collection.
// Empty database or collection names use the defaults.
func NewMongoStore(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	if database == "" {
		database = DefaultMongoDatabase
	}
	if collection == "" {
		collection = DefaultMongoCollection
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	s := &MongoStore{client: client, coll: client.Database(database).Collection(collection)}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// ensureIndexes creates a TTL index so MongoDB removes expired archives.
func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		return fmt.Errorf("create archive index: %w", err)
	}
	return nil
}

func (s *MongoStore) Load(ctx context.Context, docID string) (*Archive, error) {
	var doc mongoArchive
	err := s.coll.FindOne(ctx, bson.M{"_id": docID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find archive: %w", err)
	}
	a := &Archive{
		ID:         doc.ID,
		DocumentID: doc.DocumentID,
		State:      []byte(doc.State),
		SavedAt:    doc.SavedAt.UTC(),
		ExpiresAt:  doc.ExpiresAt.UTC(),
	}
	if a.IsExpired() {
		return nil, nil
	}
	return a, nil
}

func (s *MongoStore) Save(ctx context.Context, a *Archive) error {
	doc := mongoArchive{
		DocumentID: a.DocumentID,
		ID:         a.ID,
		State:      string(a.State),
		SavedAt:    a.SavedAt,
		ExpiresAt:  a.ExpiresAt,
	}
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": a.DocumentID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save archive: %w", err)
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, docID string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": docID}); err != nil {
		return fmt.Errorf("delete archive: %w", err)
	}
	return nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

var _ Store = (*MongoStore)(nil)
