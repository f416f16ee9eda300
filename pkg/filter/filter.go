// Package filter drops video ids that do not need a prefetch.
package filter

import (
	"context"
	"errors"
	"fmt"

	"tubenote/pkg/db"
)

// Filter decides whether a video id is kept
type Filter interface {
	ShouldKeep(ctx context.Context, videoID string) (bool, error)
}

// FilterVideoIDs applies all filters to a list of video ids
func FilterVideoIDs(ctx context.Context, ids []string, filters ...Filter) ([]string, error) {
	filtered := make([]string, 0, len(ids))

	for _, id := range ids {
		keep := true
		for _, f := range filters {
			shouldKeep, err := f.ShouldKeep(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("filter error for video %s: %w", id, err)
			}
			if !shouldKeep {
				keep = false
				break
			}
		}
		if keep {
			filtered = append(filtered, id)
		}
	}

	return filtered, nil
}

// AlreadyFetchedFilter filters out ids that exist in the provided set,
// e.g. the result of (*db.Client).GetAllVideoIDs
type AlreadyFetchedFilter struct {
	fetched map[string]bool
}

// NewAlreadyFetchedFilter creates a new already-fetched filter
func NewAlreadyFetchedFilter(fetched map[string]bool) *AlreadyFetchedFilter {
	return &AlreadyFetchedFilter{
		fetched: fetched,
	}
}

// ShouldKeep returns false if the id is already in the fetched set
func (f *AlreadyFetchedFilter) ShouldKeep(_ context.Context, videoID string) (bool, error) {
	return !f.fetched[videoID], nil
}

// StoredFilter filters out ids that the store already holds, one lookup per id.
// Use it for backends that cannot list their ids cheaply.
type StoredFilter struct {
	store db.TranscriptStore
}

func NewStoredFilter(store db.TranscriptStore) *StoredFilter {
	return &StoredFilter{store: store}
}

func (f *StoredFilter) ShouldKeep(ctx context.Context, videoID string) (bool, error) {
	_, err := f.store.FindTranscript(ctx, videoID)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, db.ErrTranscriptNotFound):
		return true, nil
	default:
		return false, err
	}
}

// SeenFilter keeps only the first occurrence of each id. It is not safe for
// concurrent use.
type SeenFilter struct {
	seen map[string]bool
}

func NewSeenFilter() *SeenFilter {
	return &SeenFilter{seen: make(map[string]bool)}
}

func (f *SeenFilter) ShouldKeep(_ context.Context, videoID string) (bool, error) {
	if f.seen[videoID] {
		return false, nil
	}
	f.seen[videoID] = true
	return true, nil
}
