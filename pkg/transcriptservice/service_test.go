package transcriptservice

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tubenote/pkg/captions"
	"tubenote/pkg/db"
	"tubenote/pkg/domain"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type countingFetcher struct {
	source domain.Source
	calls  atomic.Int32
	result *domain.Result
	err    error
	block  bool
	seen   Request
}

func (f *countingFetcher) Source() domain.Source { return f.source }

func (f *countingFetcher) Fetch(ctx context.Context, req Request) (*domain.Result, error) {
	f.calls.Add(1)
	f.seen = req
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newTestService(store db.TranscriptStore, api, captions Fetcher, opts ...Option) *Service {
	opts = append([]Option{
		WithClock(func() time.Time { return fixedNow }),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)
	return New(store, api, captions, opts...)
}

func apiFetcher() *countingFetcher {
	return &countingFetcher{
		source: domain.SourceAPI,
		result: &domain.Result{
			Transcript:               "Hi",
			TranscriptWithTimestamps: "1\n00:00:00,000 --> 00:00:01,000\nHi",
			Segments:                 []domain.Segment{{Text: "Hi", Start: 0, Duration: 1}},
		},
	}
}

func captionFetcher() *countingFetcher {
	return &countingFetcher{
		source: domain.SourceCaptionDownload,
		result: &domain.Result{Transcript: "Hello", TranscriptWithTimestamps: "WEBVTT\n\n00:00.000 --> 00:01.000\nHello"},
	}
}

func TestService_Transcript_FetchesWithoutStoring(t *testing.T) {
	store := db.NewMemoryStore()
	api := apiFetcher()
	svc := newTestService(store, api, nil)
	ctx := context.Background()

	got, err := svc.Transcript(ctx, Request{VideoID: "abc123"})
	require.NoError(t, err)

	assert.Equal(t, "abc123", got.VideoID)
	assert.Equal(t, "en", got.Language)
	assert.Equal(t, "Hi", got.Transcript)
	assert.Equal(t, domain.SourceAPI, got.Source)
	assert.Equal(t, fixedNow, got.FetchedAt)

	// Every call is live and honours its own language and clean policy.
	got, err = svc.Transcript(ctx, Request{VideoID: "abc123", Language: "de", Clean: "strict"})
	require.NoError(t, err)
	assert.Equal(t, "de", got.Language)
	assert.Equal(t, "de", api.seen.Language)
	assert.Equal(t, "strict", string(api.seen.Clean))

	assert.EqualValues(t, 2, api.calls.Load())
	assert.Equal(t, 0, store.Len())
}

func TestService_FallbackTranscript_CacheHitSkipsFetcher(t *testing.T) {
	store := db.NewMemoryStore()
	fallback := captionFetcher()
	svc := newTestService(store, nil, fallback)
	ctx := context.Background()

	first, err := svc.FallbackTranscript(ctx, Request{VideoID: "abc123", Language: "en"})
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())

	// A different language still hits: stored records are keyed by video id.
	second, err := svc.FallbackTranscript(ctx, Request{VideoID: "abc123", Language: "de"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, fallback.calls.Load())
}

func TestService_FallbackTranscript_RepeatedCallsAreIdentical(t *testing.T) {
	downloader := &fakeDownloader{content: "WEBVTT\n\n00:00:00.000 --> 00:00:01.000\nHello\n"}
	svc := newTestService(db.NewMemoryStore(), nil, NewCaptionFetcher(downloader))
	ctx := context.Background()
	req := Request{VideoID: "abc123", Language: "en", Format: captions.FormatVTT}

	first, err := svc.FallbackTranscript(ctx, req)
	require.NoError(t, err)
	second, err := svc.FallbackTranscript(ctx, req)
	require.NoError(t, err)

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, firstJSON, secondJSON)

	assert.Equal(t, 1, downloader.calls, "caption download runs once")
	assert.Equal(t, 1, downloader.metaCalls, "metadata lookup runs once")
}

func TestService_StrategiesDoNotShareRecords(t *testing.T) {
	store := db.NewMemoryStore()
	api := apiFetcher()
	fallback := captionFetcher()
	svc := newTestService(store, api, fallback)
	ctx := context.Background()

	_, err := svc.Transcript(ctx, Request{VideoID: "abc123"})
	require.NoError(t, err)

	got, err := svc.FallbackTranscript(ctx, Request{VideoID: "abc123"})
	require.NoError(t, err)
	assert.Equal(t, domain.SourceCaptionDownload, got.Source)
	assert.Equal(t, "Hello", got.Transcript)
	assert.NotNil(t, got.Metadata)
	assert.EqualValues(t, 1, fallback.calls.Load())

	// The stored caption-download record never answers the query-client path.
	got, err = svc.Transcript(ctx, Request{VideoID: "abc123", Language: "de"})
	require.NoError(t, err)
	assert.Equal(t, domain.SourceAPI, got.Source)
	assert.Equal(t, "de", got.Language)
	assert.EqualValues(t, 2, api.calls.Load())
}

func TestService_FallbackTranscript_DefaultsAndMetadata(t *testing.T) {
	store := db.NewMemoryStore()
	fallback := captionFetcher()
	svc := newTestService(store, nil, fallback)

	got, err := svc.FallbackTranscript(context.Background(), Request{VideoID: "abc123"})
	require.NoError(t, err)

	assert.Equal(t, "vtt", string(fallback.seen.Format))
	assert.Equal(t, "en", fallback.seen.Language)
	assert.Equal(t, domain.SourceCaptionDownload, got.Source)
	require.NotNil(t, got.Metadata)
	assert.True(t, got.Metadata.IsEmpty())
}

func TestService_InvalidRequests(t *testing.T) {
	svc := newTestService(db.NewMemoryStore(), apiFetcher(), apiFetcher())

	tests := []struct {
		name string
		req  Request
	}{
		{"empty id", Request{}},
		{"bad id chars", Request{VideoID: "abc/../x"}},
		{"bad language", Request{VideoID: "abc123", Language: "en us"}},
		{"bad format", Request{VideoID: "abc123", Format: "ass"}},
		{"bad clean", Request{VideoID: "abc123", Clean: "aggressive"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.FallbackTranscript(context.Background(), tt.req)
			assert.ErrorIs(t, err, domain.ErrInvalidRequest)
		})
	}
}

func TestService_FetchErrorIsNotStored(t *testing.T) {
	store := db.NewMemoryStore()
	fallback := &countingFetcher{source: domain.SourceCaptionDownload, err: domain.NotFoundError("no transcript file found")}
	svc := newTestService(store, nil, fallback)

	_, err := svc.FallbackTranscript(context.Background(), Request{VideoID: "abc123"})
	assert.ErrorIs(t, err, domain.ErrRetrieval)
	assert.Equal(t, 0, store.Len())
}

func TestService_FetchTimeout(t *testing.T) {
	api := &countingFetcher{source: domain.SourceAPI, block: true}
	svc := newTestService(db.NewMemoryStore(), api, nil, WithFetchTimeout(10*time.Millisecond))

	_, err := svc.Transcript(context.Background(), Request{VideoID: "abc123"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// racingStore pretends a concurrent request stored the video between the
// lookup and the insert.
type racingStore struct {
	winner *domain.Transcript
	finds  int
}

func (s *racingStore) FindTranscript(ctx context.Context, id string) (*domain.Transcript, error) {
	s.finds++
	if s.finds == 1 {
		return nil, db.ErrTranscriptNotFound
	}
	return s.winner, nil
}

func (s *racingStore) SaveTranscript(context.Context, *domain.Transcript) error {
	return db.ErrDuplicateTranscript
}

func TestService_DuplicateReturnsStoredWinner(t *testing.T) {
	winner := &domain.Transcript{VideoID: "abc123", Transcript: "winner", Source: domain.SourceCaptionDownload}
	store := &racingStore{winner: winner}
	svc := newTestService(store, nil, captionFetcher())

	got, err := svc.FallbackTranscript(context.Background(), Request{VideoID: "abc123"})
	require.NoError(t, err)
	assert.Same(t, winner, got)
}

type failingStore struct{ err error }

func (s failingStore) FindTranscript(context.Context, string) (*domain.Transcript, error) {
	return nil, s.err
}

func (s failingStore) SaveTranscript(context.Context, *domain.Transcript) error { return s.err }

func TestService_StoreFailure(t *testing.T) {
	fallback := captionFetcher()
	svc := newTestService(failingStore{err: errors.New("connection refused")}, nil, fallback)

	_, err := svc.FallbackTranscript(context.Background(), Request{VideoID: "abc123"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lookup transcript")
	assert.False(t, errors.Is(err, domain.ErrRetrieval))
	assert.EqualValues(t, 0, fallback.calls.Load())
}
