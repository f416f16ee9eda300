package db

import (
	"context"
	"database/sql"
	"errors"

	"tubenote/pkg/domain"
)

var (
	// ErrTranscriptNotFound is returned by FindTranscript on a cache miss.
	ErrTranscriptNotFound = errors.New("transcript not found")

	// ErrDuplicateTranscript is returned by SaveTranscript when a record for
	// the same video id already exists.
	ErrDuplicateTranscript = errors.New("transcript already stored")
)

// TranscriptStore is the keyed lookup/insert the transcript service caches through.
// video_id is the natural key: at most one record exists per id.
type TranscriptStore interface {
	FindTranscript(ctx context.Context, videoID string) (*domain.Transcript, error)
	SaveTranscript(ctx context.Context, t *domain.Transcript) error
}

// DBProvider is an interface for database clients that provide access to a sql.DB handle.
// This allows both PostgresClient and SupabaseClient to be used interchangeably.
type DBProvider interface {
	DB() *sql.DB
}
