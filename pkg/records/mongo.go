// Package records persists students and events.
package records

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xhad/campus/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrInvalidID = errors.New("invalid record id")
)

type MongoConfig struct {
	URL               string
	StudentDatabase   string
	StudentCollection string
	EventDatabase     string
	EventCollection   string
	Timeout           time.Duration
}

// Connect opens a client and pings the server before returning it.
func Connect(ctx context.Context, cfg MongoConfig) (*mongo.Client, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(cfg.URL).
		SetTimeout(cfg.Timeout))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	log.Info().Msg("connected to mongodb")
	return client, nil
}

type MongoStudents struct {
	collection *mongo.Collection
}

func NewMongoStudents(client *mongo.Client, cfg MongoConfig) *MongoStudents {
	return &MongoStudents{
		collection: client.Database(cfg.StudentDatabase).Collection(cfg.StudentCollection),
	}
}

// All returns every student in insertion order.
func (s *MongoStudents) All(ctx context.Context) ([]models.Student, error) {
	cursor, err := s.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer cursor.Close(ctx)

	students := []models.Student{}
	if err := cursor.All(ctx, &students); err != nil {
		return nil, fmt.Errorf("failed to decode students: %w", err)
	}
	return students, nil
}

func (s *MongoStudents) Add(ctx context.Context, student models.Student) error {
	student.ID = primitive.NilObjectID
	if _, err := s.collection.InsertOne(ctx, student); err != nil {
		return fmt.Errorf("failed to add student: %w", err)
	}
	return nil
}

type MongoEvents struct {
	collection *mongo.Collection
}

func NewMongoEvents(client *mongo.Client, cfg MongoConfig) *MongoEvents {
	return &MongoEvents{
		collection: client.Database(cfg.EventDatabase).Collection(cfg.EventCollection),
	}
}

func (s *MongoEvents) All(ctx context.Context) ([]models.Event, error) {
	cursor, err := s.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer cursor.Close(ctx)

	events := []models.Event{}
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode events: %w", err)
	}
	return events, nil
}

// Add stores event and returns its new id.
func (s *MongoEvents) Add(ctx context.Context, event models.Event) (string, error) {
	event.ID = primitive.NilObjectID
	result, err := s.collection.InsertOne(ctx, event)
	if err != nil {
		return "", fmt.Errorf("failed to add event: %w", err)
	}
	id, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected id type %T", result.InsertedID)
	}
	return id.Hex(), nil
}

func (s *MongoEvents) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrInvalidID
	}

	result, err := s.collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
