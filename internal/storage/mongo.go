package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConnectMongoDB dials uri and returns the named database. The client is
// disconnected again when the server does not answer a ping.
func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetAppName("tienda").
		SetConnectTimeout(10*time.Second).
		SetServerSelectionTimeout(5*time.Second).
		SetMaxPoolSize(20))
	if err != nil {
		return nil, fmt.Errorf("mongo connect failed: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping failed: %w", err)
	}

	return client.Database(database), nil
}

type stateDocument struct {
	Key       string    `bson:"_id"`
	Value     []byte    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoStore keeps one document per key in the "state" collection.
type MongoStore struct {
	collection *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{collection: db.Collection("state")}
}

func (m *MongoStore) Get(ctx context.Context, key string) ([]byte, error) {
	var doc stateDocument
	err := m.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return doc.Value, nil
}

func (m *MongoStore) Set(ctx context.Context, key string, value []byte) error {
	update := bson.M{
		"$set": bson.M{
			"value":      value,
			"updated_at": time.Now(),
		},
	}
	_, err := m.collection.UpdateOne(ctx, bson.M{"_id": key}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert %s: %w", key, err)
	}
	return nil
}

func (m *MongoStore) Delete(ctx context.Context, key string) error {
	_, err := m.collection.DeleteOne(ctx, bson.M{"_id": key})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

const stateTTLSeconds = 90 * 24 * 60 * 60

// CreateIndexes expires state documents that have not been written for 90 days.
func (m *MongoStore) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{{
		Keys:    bson.D{{Key: "updated_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(stateTTLSeconds),
	}}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("state index creation failed: %w", err)
	}
	return nil
}
