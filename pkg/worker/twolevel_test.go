package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tubenote/pkg/domain"
	"tubenote/pkg/feeds"
	"tubenote/pkg/filter"
	"tubenote/pkg/transcriptservice"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingService remembers every request and fails ids listed in fail.
type recordingService struct {
	mu   sync.Mutex
	reqs []transcriptservice.Request
	fail map[string]bool
}

func (s *recordingService) FallbackTranscript(_ context.Context, req transcriptservice.Request) (*domain.Transcript, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs = append(s.reqs, req)
	if s.fail[req.VideoID] {
		return nil, domain.NotFoundError("no transcript file found")
	}
	return &domain.Transcript{VideoID: req.VideoID}, nil
}

func (s *recordingService) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, len(s.reqs))
	for i, r := range s.reqs {
		ids[i] = r.VideoID
	}
	sort.Strings(ids)
	return ids
}

type staticLister map[string][]feeds.Video

func (l staticLister) Videos(_ context.Context, channel string) ([]feeds.Video, error) {
	v, ok := l[channel]
	if !ok {
		return nil, errors.New("feed not found")
	}
	return v, nil
}

func videos(ids ...string) []feeds.Video {
	out := make([]feeds.Video, len(ids))
	for i, id := range ids {
		out[i] = feeds.Video{ID: id}
	}
	return out
}

func TestWorker_ProcessVideo(t *testing.T) {
	svc := &recordingService{}
	template := transcriptservice.Request{Language: "de", Format: "srt"}

	w := NewWorker(svc, template)
	require.NoError(t, w.ProcessVideo(context.Background(), "abc123"))
	require.NoError(t, w.ProcessVideo(context.Background(), "def456"))

	require.Len(t, svc.reqs, 2)
	assert.Equal(t, transcriptservice.Request{VideoID: "abc123", Language: "de", Format: "srt"}, svc.reqs[0])
	assert.Equal(t, "def456", svc.reqs[1].VideoID)
	assert.Equal(t, "de", svc.reqs[1].Language, "template is not mutated")
}

func TestManager_ProcessVideos(t *testing.T) {
	svc := &recordingService{fail: map[string]bool{"bad": true}}
	m := NewManager(3, NewWorker(svc, transcriptservice.Request{}), quietLogger())

	stats, err := m.ProcessVideos(context.Background(), []string{"a", "b", "bad", "c"})
	require.NoError(t, err)

	assert.Equal(t, Stats{Succeeded: 3, Failed: 1}, stats)
	assert.Equal(t, []string{"a", "b", "bad", "c"}, svc.ids())
}

func TestManager_AllFailed(t *testing.T) {
	svc := &recordingService{fail: map[string]bool{"x": true, "y": true}}
	m := NewManager(2, NewWorker(svc, transcriptservice.Request{}), quietLogger())

	stats, err := m.ProcessVideos(context.Background(), []string{"x", "y"})
	assert.Error(t, err)
	assert.Equal(t, 2, stats.Failed)
}

func TestTwoLevelManager_ProcessChannels(t *testing.T) {
	svc := &recordingService{}
	lister := staticLister{
		"UC1": videos("a", "b", "c"),
		"UC2": videos("c", "d"),
	}
	m := NewTwoLevelManager(Config{
		FeedWorkers:  2,
		VideoWorkers: 3,
		Lister:       lister,
		Worker:       NewWorker(svc, transcriptservice.Request{}),
		Logger:       quietLogger(),
	})

	stats, err := m.ProcessChannels(context.Background(), []string{"UC1", "UC2", "missing"})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c", "d"}, svc.ids(), "shared videos are fetched once")
	assert.Equal(t, 4, stats.Succeeded)
	assert.Equal(t, 1, stats.Failed, "the missing feed counts as a failure")
}

func TestTwoLevelManager_MaxPerFeed(t *testing.T) {
	svc := &recordingService{}
	m := NewTwoLevelManager(Config{
		Lister:     staticLister{"UC1": videos("new", "older", "oldest")},
		Worker:     NewWorker(svc, transcriptservice.Request{}),
		MaxPerFeed: 2,
		Logger:     quietLogger(),
	})

	_, err := m.ProcessChannels(context.Background(), []string{"UC1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "older"}, svc.ids())
}

func TestTwoLevelManager_SkipsFiltered(t *testing.T) {
	svc := &recordingService{}
	m := NewTwoLevelManager(Config{
		Lister:  staticLister{"UC1": videos("a", "stored", "b")},
		Worker:  NewWorker(svc, transcriptservice.Request{}),
		Filters: []filter.Filter{filter.NewAlreadyFetchedFilter(map[string]bool{"stored": true})},
		Logger:  quietLogger(),
	})

	stats, err := m.ProcessChannels(context.Background(), []string{"UC1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, svc.ids())
	assert.Equal(t, 2, stats.Succeeded)
}

func TestTwoLevelManager_AllFeedsFail(t *testing.T) {
	m := NewTwoLevelManager(Config{
		Lister: staticLister{},
		Worker: NewWorker(&recordingService{}, transcriptservice.Request{}),
		Logger: quietLogger(),
	})

	_, err := m.ProcessChannels(context.Background(), []string{"UC1"})
	assert.Error(t, err)
}
