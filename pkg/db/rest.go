package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	supabase "github.com/supabase-community/supabase-go"

	"tubenote/pkg/domain"
)

// uniqueViolation is the Postgres error code PostgREST reports for a
// primary key conflict.
const uniqueViolation = "(23505)"

// SupabaseRESTStore is a TranscriptStore over Supabase's PostgREST API, for
// deployments that only have a project URL and key. The table must exist;
// see SQLStore.EnsureSchema for its layout.
//
// The REST client takes no context, so ctx is only checked before each call.
type SupabaseRESTStore struct {
	client *supabase.Client
	table  string
}

// NewSupabaseRESTStore wraps a connected REST client.
func NewSupabaseRESTStore(client *supabase.Client) *SupabaseRESTStore {
	return &SupabaseRESTStore{client: client, table: TranscriptTable}
}

// FindTranscript returns the stored transcript for videoID or ErrTranscriptNotFound.
func (s *SupabaseRESTStore) FindTranscript(ctx context.Context, videoID string) (*domain.Transcript, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	body, _, err := s.client.From(s.table).
		Select("*", "", false).
		Eq("video_id", videoID).
		Limit(1, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("select transcript %s: %w", videoID, err)
	}

	var rows []domain.Transcript
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode transcript %s: %w", videoID, err)
	}
	if len(rows) == 0 {
		return nil, ErrTranscriptNotFound
	}
	t := rows[0]
	t.FetchedAt = t.FetchedAt.UTC()
	return &t, nil
}

// SaveTranscript inserts t, returning ErrDuplicateTranscript if the id is taken.
func (s *SupabaseRESTStore) SaveTranscript(ctx context.Context, t *domain.Transcript) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, _, err := s.client.From(s.table).
		Insert(t, false, "", "minimal", "").
		Execute()
	if err != nil {
		if strings.HasPrefix(err.Error(), uniqueViolation) {
			return ErrDuplicateTranscript
		}
		return fmt.Errorf("insert transcript %s: %w", t.VideoID, err)
	}
	return nil
}
