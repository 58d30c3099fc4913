package records

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/campus/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestMemoryStudents(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStudents(models.Student{Name: "Alice"})
	require.NoError(t, s.Add(ctx, models.Student{Name: "Bob"}))

	all, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Alice", all[0].Name)
	assert.Equal(t, "Bob", all[1].Name)
	assert.False(t, all[0].ID.IsZero())

	// callers get a copy
	all[0].Name = "Mallory"
	again, _ := s.All(ctx)
	assert.Equal(t, "Alice", again[0].Name)
}

func TestMemoryEvents(t *testing.T) {
	ctx := context.Background()
	e := NewMemoryEvents()

	late, err := e.Add(ctx, models.Event{Title: "Sports day", Date: "2025-03-10"})
	require.NoError(t, err)
	_, err = e.Add(ctx, models.Event{Title: "Science fair", Date: "2025-01-20"})
	require.NoError(t, err)

	all, err := e.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Science fair", all[0].Title)

	require.NoError(t, e.Delete(ctx, late))
	assert.ErrorIs(t, e.Delete(ctx, late), ErrNotFound)
	assert.ErrorIs(t, e.Delete(ctx, "not-an-id"), ErrInvalidID)

	all, _ = e.All(ctx)
	assert.Len(t, all, 1)
}

func TestMongoRecords(t *testing.T) {
	url := os.Getenv("MONGO_URL")
	if url == "" {
		t.Skip("MONGO_URL not set")
	}
	ctx := context.Background()

	cfg := MongoConfig{
		URL:               url,
		StudentDatabase:   "campus_test",
		StudentCollection: "students_" + primitive.NewObjectID().Hex(),
		EventDatabase:     "campus_test",
		EventCollection:   "events_" + primitive.NewObjectID().Hex(),
	}
	client, err := Connect(ctx, cfg)
	require.NoError(t, err)
	defer client.Disconnect(ctx)
	defer client.Database("campus_test").Drop(ctx)

	students := NewMongoStudents(client, cfg)
	require.NoError(t, students.Add(ctx, models.Student{Name: "Alice", Marks: 88}))
	require.NoError(t, students.Add(ctx, models.Student{Name: "Bob", Marks: 72.5}))

	all, err := students.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Alice", all[0].Name)
	assert.Equal(t, 72.5, all[1].Marks)

	events := NewMongoEvents(client, cfg)
	id, err := events.Add(ctx, models.Event{Title: "Open day", Date: "2025-05-01"})
	require.NoError(t, err)
	require.NoError(t, events.Delete(ctx, id))
	assert.ErrorIs(t, events.Delete(ctx, id), ErrNotFound)
}
