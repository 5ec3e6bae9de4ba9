package activity

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "activities"

// MongoRecorder is a Recorder backed by a MongoDB collection.
type MongoRecorder struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoRecorder creates a new instance of MongoRecorder.
// This function doesn't establish a connection to the MongoDB server.
// To connect to the server, use the Connect method of the returned MongoRecorder instance.
func NewMongoRecorder() *MongoRecorder {
	return &MongoRecorder{}
}

// Connect establishes a connection to the MongoDB server at the given URI and database name.
// Sets up the indexes of the activities collection.
// Returns an error if any issues are encountered.
func (m *MongoRecorder) Connect(ctx context.Context, dbName, uri string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return fmt.Errorf("error connecting to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("error pinging MongoDB: %w", err)
	}

	m.client = client
	m.collection = client.Database(dbName).Collection(collectionName)

	// Feeds are read per user, newest first.
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	}
	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("error creating activity indexes: %w", err)
	}
	return nil
}

// Disconnect closes the connection to the MongoDB server.
func (m *MongoRecorder) Disconnect(ctx context.Context) error {
	if m.client == nil {
		return nil
	}
	return m.client.Disconnect(ctx)
}

// Record inserts event, stamping its creation time when unset.
func (m *MongoRecorder) Record(ctx context.Context, event *Event) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	_, err := m.collection.InsertOne(ctx, event)
	if err != nil {
		return fmt.Errorf("error recording activity: %w", err)
	}
	return nil
}

// ListForUser returns at most limit events of the user, newest first.
func (m *MongoRecorder) ListForUser(ctx context.Context, userID string, limit int64) ([]*Event, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(limit)
	cursor, err := m.collection.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing activity: %w", err)
	}
	defer cursor.Close(ctx)

	events := []*Event{}
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("error decoding activity: %w", err)
	}
	return events, nil
}
