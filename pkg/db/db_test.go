package db

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestMongo connects to the MongoDB named by TUBENOTE_TEST_MONGO_URI and
// uses a throwaway database.
func newTestMongo(t *testing.T) *Client {
	t.Helper()
	uri := os.Getenv("TUBENOTE_TEST_MONGO_URI")
	if testing.Short() || uri == "" {
		t.Skip("set TUBENOTE_TEST_MONGO_URI to run MongoDB integration tests")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbName := fmt.Sprintf("tubenote_test_%d", time.Now().UnixNano())
	c, err := NewClient(uri, dbName, "transcripts")
	require.NoError(t, err)
	require.NoError(t, c.Connect(ctx))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = c.database.Drop(ctx)
		_ = c.Close(ctx)
	})
	return c
}

func TestClient_SaveAndFind(t *testing.T) {
	c := newTestMongo(t)
	ctx := context.Background()

	_, err := c.FindTranscript(ctx, "abc123")
	assert.ErrorIs(t, err, ErrTranscriptNotFound)

	require.NoError(t, c.SaveTranscript(ctx, sampleTranscript("abc123")))
	assert.ErrorIs(t, c.SaveTranscript(ctx, sampleTranscript("abc123")), ErrDuplicateTranscript)

	got, err := c.FindTranscript(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "Hi", got.Transcript)
	assert.Equal(t, sampleTranscript("abc123").FetchedAt, got.FetchedAt.UTC())

	ids, err := c.GetAllVideoIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"abc123": true}, ids)

	all, err := c.GetAllTranscripts(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
