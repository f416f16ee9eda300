package db

import (
	"context"
	"errors"
	"fmt"

	"tubenote/pkg/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Client wraps the MongoDB client and the transcripts collection
type Client struct {
	mongoClient *mongo.Client
	database    *mongo.Database
	collection  *mongo.Collection
}

// NewClient creates a new database client. No I/O happens until Connect.
func NewClient(connectionString, databaseName, collectionName string) (*Client, error) {
	clientOptions := options.Client().ApplyURI(connectionString)
	mongoClient, err := mongo.Connect(context.Background(), clientOptions)
	if err != nil {
		return nil, fmt.Errorf("create mongo client: %w", err)
	}

	database := mongoClient.Database(databaseName)
	collection := database.Collection(collectionName)

	return &Client{
		mongoClient: mongoClient,
		database:    database,
		collection:  collection,
	}, nil
}

// Connect verifies the connection to MongoDB and makes sure the unique
// video_id index exists
func (c *Client) Connect(ctx context.Context) error {
	if c.mongoClient == nil {
		return fmt.Errorf("mongo client not initialized")
	}
	if err := c.mongoClient.Ping(ctx, nil); err != nil {
		return fmt.Errorf("ping mongo: %w", err)
	}
	return c.EnsureIndexes(ctx)
}

// Close closes the MongoDB connection
func (c *Client) Close(ctx context.Context) error {
	if c.mongoClient == nil {
		return nil
	}
	return c.mongoClient.Disconnect(ctx)
}

// EnsureIndexes creates the unique index on video_id. It is idempotent.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	if c.collection == nil {
		return fmt.Errorf("collection not initialized")
	}

	_, err := c.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "video_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("video_id_unique"),
	})
	if err != nil {
		return fmt.Errorf("create video_id index: %w", err)
	}
	return nil
}

// FindTranscript returns the stored transcript for videoID or ErrTranscriptNotFound
func (c *Client) FindTranscript(ctx context.Context, videoID string) (*domain.Transcript, error) {
	if c.collection == nil {
		return nil, fmt.Errorf("collection not initialized")
	}

	var t domain.Transcript
	err := c.collection.FindOne(ctx, bson.M{"video_id": videoID}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrTranscriptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find transcript %s: %w", videoID, err)
	}
	return &t, nil
}

// SaveTranscript inserts a new transcript. Records are never overwritten: a
// second insert for the same video id returns ErrDuplicateTranscript.
func (c *Client) SaveTranscript(ctx context.Context, t *domain.Transcript) error {
	if c.collection == nil {
		return fmt.Errorf("collection not initialized")
	}

	_, err := c.collection.InsertOne(ctx, t)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateTranscript
	}
	if err != nil {
		return fmt.Errorf("insert transcript %s: %w", t.VideoID, err)
	}
	return nil
}

// GetAllVideoIDs fetches all stored video ids and returns them as a set
func (c *Client) GetAllVideoIDs(ctx context.Context) (map[string]bool, error) {
	if c.collection == nil {
		return nil, fmt.Errorf("collection not initialized")
	}

	// Query to get only the video_id field from all documents
	cursor, err := c.collection.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"video_id": 1, "_id": 0}))
	if err != nil {
		return nil, fmt.Errorf("failed to query video ids: %w", err)
	}
	defer cursor.Close(ctx)

	ids := make(map[string]bool)
	for cursor.Next(ctx) {
		var result struct {
			VideoID string `bson:"video_id"`
		}
		if err := cursor.Decode(&result); err != nil {
			continue // Skip invalid documents
		}
		if result.VideoID != "" {
			ids[result.VideoID] = true
		}
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return ids, nil
}

// GetAllTranscripts loads every stored transcript
func (c *Client) GetAllTranscripts(ctx context.Context) ([]domain.Transcript, error) {
	if c.collection == nil {
		return nil, fmt.Errorf("collection not initialized")
	}

	cursor, err := c.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "fetched_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query transcripts: %w", err)
	}
	defer cursor.Close(ctx)

	var transcripts []domain.Transcript
	if err := cursor.All(ctx, &transcripts); err != nil {
		return nil, fmt.Errorf("decode transcripts: %w", err)
	}
	return transcripts, nil
}
