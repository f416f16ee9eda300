// Package transcriptservice fetches transcripts. Caption downloads go through
// a read-through cache; query-client fetches are always live.
package transcriptservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tubenote/pkg/db"
	"tubenote/pkg/domain"
)

// DefaultFetchTimeout bounds a single fetch when no timeout is configured.
const DefaultFetchTimeout = 60 * time.Second

// Service serves both strategies. The query-client strategy fetches on every
// call and never touches the store. The caption-download strategy looks the
// video up in the store first and, on a miss, fetches, stores and returns the
// record. Stored records are returned verbatim and never refreshed.
type Service struct {
	store    db.TranscriptStore
	api      Fetcher
	captions Fetcher

	now     func() time.Time
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock used for fetched_at.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithFetchTimeout bounds each strategy call. d <= 0 disables the bound.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a Service. api serves Transcript, captions serves
// FallbackTranscript; either may be nil if that path is not offered.
func New(store db.TranscriptStore, api, captions Fetcher, opts ...Option) *Service {
	s := &Service{
		store:    store,
		api:      api,
		captions: captions,
		now:      time.Now,
		timeout:  DefaultFetchTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Transcript fetches the transcript of req.VideoID with the query-client
// strategy. The result honours the request's language and clean policy and is
// not stored.
func (s *Service) Transcript(ctx context.Context, req Request) (*domain.Transcript, error) {
	req, err := req.withDefaults()
	if err != nil {
		return nil, err
	}
	if s.api == nil {
		return nil, fmt.Errorf("no fetcher configured")
	}

	res, err := s.callFetcher(ctx, s.api, req)
	if err != nil {
		s.logger.WarnContext(ctx, "transcript fetch failed",
			"video_id", req.VideoID, "source", s.api.Source(), "language", req.Language, "error", err)
		return nil, err
	}
	return domain.FormatPayload(req.VideoID, req.Language, res, s.api.Source(), s.now()), nil
}

// FallbackTranscript returns the stored transcript of req.VideoID or, on a
// miss, downloads it with the caption-download strategy and stores it.
func (s *Service) FallbackTranscript(ctx context.Context, req Request) (*domain.Transcript, error) {
	req, err := req.withDefaults()
	if err != nil {
		return nil, err
	}
	f := s.captions
	if f == nil {
		return nil, fmt.Errorf("no fetcher configured")
	}
	log := s.logger.With("video_id", req.VideoID, "source", f.Source())

	stored, err := s.store.FindTranscript(ctx, req.VideoID)
	switch {
	case err == nil:
		log.DebugContext(ctx, "transcript cache hit")
		return stored, nil
	case !errors.Is(err, db.ErrTranscriptNotFound):
		return nil, fmt.Errorf("lookup transcript: %w", err)
	}

	res, err := s.callFetcher(ctx, f, req)
	if err != nil {
		log.WarnContext(ctx, "transcript fetch failed", "language", req.Language, "error", err)
		return nil, err
	}

	t := domain.FormatPayload(req.VideoID, req.Language, res, f.Source(), s.now())

	err = s.store.SaveTranscript(ctx, t)
	switch {
	case err == nil:
		log.InfoContext(ctx, "transcript stored", "language", req.Language)
		return t, nil
	case errors.Is(err, db.ErrDuplicateTranscript):
		// Another request stored this video first; its record wins.
		winner, findErr := s.store.FindTranscript(ctx, req.VideoID)
		if findErr != nil {
			return nil, fmt.Errorf("reload transcript after duplicate: %w", findErr)
		}
		log.InfoContext(ctx, "transcript already stored by a concurrent request")
		return winner, nil
	default:
		return nil, fmt.Errorf("save transcript: %w", err)
	}
}

func (s *Service) callFetcher(ctx context.Context, f Fetcher, req Request) (*domain.Result, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return f.Fetch(ctx, req)
}
