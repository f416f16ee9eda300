package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"tubenote/pkg/domain"
)

// TranscriptTable is the table SQL and Supabase backends store transcripts in.
const TranscriptTable = "transcript"

// video_id is the primary key, which also gives us uniqueness.
const transcriptDDL = `
CREATE TABLE IF NOT EXISTS transcript (
  video_id TEXT PRIMARY KEY,
  language TEXT NOT NULL DEFAULT '',
  transcript TEXT NOT NULL DEFAULT '',
  transcript_with_timestamps TEXT NOT NULL DEFAULT '',
  segments JSONB,
  metadata JSONB,
  source TEXT NOT NULL DEFAULT '',
  fetched_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

const insertTranscriptQuery = `
INSERT INTO transcript (video_id, language, transcript, transcript_with_timestamps, segments, metadata, source, fetched_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (video_id) DO NOTHING`

// SQLStore is a TranscriptStore over any DBProvider (Postgres or a direct
// Supabase connection).
type SQLStore struct {
	p DBProvider
}

// NewSQLStore wraps a connected provider.
func NewSQLStore(p DBProvider) *SQLStore {
	return &SQLStore{p: p}
}

func (s *SQLStore) db() (*sql.DB, error) {
	if s.p == nil || s.p.DB() == nil {
		return nil, fmt.Errorf("postgres DB not connected")
	}
	return s.p.DB(), nil
}

// EnsureSchema creates the transcript table if it does not exist.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	db, err := s.db()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, transcriptDDL); err != nil {
		return fmt.Errorf("create transcript table: %w", err)
	}
	return nil
}

// FindTranscript returns the stored transcript for videoID or ErrTranscriptNotFound.
func (s *SQLStore) FindTranscript(ctx context.Context, videoID string) (*domain.Transcript, error) {
	db, err := s.db()
	if err != nil {
		return nil, err
	}

	const q = `
SELECT video_id, language, transcript, transcript_with_timestamps, segments, metadata, source, fetched_at
FROM transcript WHERE video_id = $1`

	var (
		t        domain.Transcript
		source   string
		segments sql.NullString
		metadata sql.NullString
	)
	err = db.QueryRowContext(ctx, q, videoID).Scan(
		&t.VideoID, &t.Language, &t.Transcript, &t.TranscriptWithTimestamps,
		&segments, &metadata, &source, &t.FetchedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTranscriptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query transcript %s: %w", videoID, err)
	}

	t.Source = domain.Source(source)
	t.FetchedAt = t.FetchedAt.UTC()
	if segments.Valid {
		if err := json.Unmarshal([]byte(segments.String), &t.Segments); err != nil {
			return nil, fmt.Errorf("decode segments of %s: %w", videoID, err)
		}
	}
	if metadata.Valid {
		if err := json.Unmarshal([]byte(metadata.String), &t.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata of %s: %w", videoID, err)
		}
	}
	return &t, nil
}

// SaveTranscript inserts t, returning ErrDuplicateTranscript if the id is taken.
func (s *SQLStore) SaveTranscript(ctx context.Context, t *domain.Transcript) error {
	db, err := s.db()
	if err != nil {
		return err
	}

	args, err := insertArgs(t)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, insertTranscriptQuery, args...)
	if err != nil {
		return fmt.Errorf("insert transcript %s: %w", t.VideoID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert transcript %s: %w", t.VideoID, err)
	}
	if n == 0 {
		return ErrDuplicateTranscript
	}
	return nil
}

// ExistingVideoIDs reports which of ids are already stored.
func (s *SQLStore) ExistingVideoIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	set := make(map[string]bool)
	if len(ids) == 0 {
		return set, nil
	}
	db, err := s.db()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT video_id FROM transcript WHERE video_id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("query existing video ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan video id: %w", err)
		}
		set[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return set, nil
}

// InsertBatch inserts transcripts in one transaction, skipping ids that are
// already stored. It returns the number of rows inserted.
func (s *SQLStore) InsertBatch(ctx context.Context, batch []domain.Transcript) (int, error) {
	db, err := s.db()
	if err != nil {
		return 0, err
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertTranscriptQuery)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for i := range batch {
		t := &batch[i]
		if t.VideoID == "" {
			continue
		}
		args, err := insertArgs(t)
		if err != nil {
			return 0, err
		}
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return 0, fmt.Errorf("insert transcript video_id=%q: %w", t.VideoID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

// insertArgs flattens t into the positional arguments of insertTranscriptQuery.
func insertArgs(t *domain.Transcript) ([]any, error) {
	segments, err := jsonColumn(t.Segments, len(t.Segments) > 0)
	if err != nil {
		return nil, fmt.Errorf("encode segments of %s: %w", t.VideoID, err)
	}
	metadata, err := jsonColumn(t.Metadata, t.Metadata != nil)
	if err != nil {
		return nil, fmt.Errorf("encode metadata of %s: %w", t.VideoID, err)
	}
	return []any{
		t.VideoID, t.Language, t.Transcript, t.TranscriptWithTimestamps,
		segments, metadata, string(t.Source), t.FetchedAt,
	}, nil
}

func jsonColumn(v any, present bool) (sql.NullString, error) {
	if !present {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
