package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"tubenote/pkg/feeds"
	"tubenote/pkg/filter"
)

// VideoLister lists the videos of a channel. *feeds.ChannelFeed implements it.
type VideoLister interface {
	Videos(ctx context.Context, channel string) ([]feeds.Video, error)
}

// TwoLevelManager manages two levels of workers:
// Level 1: feed workers that list the videos of each channel
// Level 2: video workers that fetch and store each transcript
type TwoLevelManager struct {
	feedWorkers  int
	videoWorkers int
	lister       VideoLister
	worker       *Worker
	maxPerFeed   int
	filters      []filter.Filter
	logger       *slog.Logger
}

// Config holds configuration for TwoLevelManager
type Config struct {
	FeedWorkers  int
	VideoWorkers int
	Lister       VideoLister
	Worker       *Worker
	MaxPerFeed   int             // Videos taken from each channel, newest first (0 = all)
	Filters      []filter.Filter // Must be safe for concurrent use
	Logger       *slog.Logger
}

// NewTwoLevelManager creates a new two-level worker manager
func NewTwoLevelManager(config Config) *TwoLevelManager {
	m := &TwoLevelManager{
		feedWorkers:  max(config.FeedWorkers, 1),
		videoWorkers: max(config.VideoWorkers, 1),
		lister:       config.Lister,
		worker:       config.Worker,
		maxPerFeed:   config.MaxPerFeed,
		filters:      config.Filters,
		logger:       config.Logger,
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// ProcessChannels warms the cache for the videos of every channel:
// 1. the manager sends channels to the feed workers
// 2. feed workers list videos and send their ids on
// 3. video workers fetch each transcript through the service
//
// A video that appears in several channels is processed once. It fails only
// when nothing succeeded and something failed.
func (m *TwoLevelManager) ProcessChannels(ctx context.Context, channels []string) (Stats, error) {
	channelChan := make(chan string, len(channels))
	videoChan := make(chan string, m.videoWorkers*2)

	var (
		mu    sync.Mutex
		stats Stats
		seen  = make(map[string]bool)
	)
	record := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			stats.Failed++
			return
		}
		stats.Succeeded++
	}

	// Start Level 2 workers first
	var videoWg sync.WaitGroup
	for i := 0; i < m.videoWorkers; i++ {
		videoWg.Add(1)
		go func(workerID int) {
			defer videoWg.Done()
			for id := range videoChan {
				err := m.worker.ProcessVideo(ctx, id)
				if err != nil {
					m.logger.Warn("prefetch failed", "worker", workerID, "video_id", id, "error", err)
				}
				record(err)
			}
		}(i)
	}

	// Start Level 1 workers
	var feedWg sync.WaitGroup
	for i := 0; i < m.feedWorkers; i++ {
		feedWg.Add(1)
		go func(workerID int) {
			defer feedWg.Done()
			for channel := range channelChan {
				if err := m.processChannel(ctx, channel, videoChan, &mu, seen); err != nil {
					m.logger.Warn("channel feed failed", "worker", workerID, "channel", channel, "error", err)
					record(err)
				}
			}
		}(i)
	}

	for _, c := range channels {
		channelChan <- c
	}
	close(channelChan)

	feedWg.Wait()
	close(videoChan) // all ids are queued once every feed is read
	videoWg.Wait()

	m.logger.Info("channel prefetch completed", "channels", len(channels), "succeeded", stats.Succeeded, "failed", stats.Failed)

	if err := ctx.Err(); err != nil {
		return stats, err
	}
	if stats.Failed > 0 && stats.Succeeded == 0 {
		return stats, fmt.Errorf("all %d prefetch jobs failed", stats.Failed)
	}
	return stats, nil
}

// processChannel lists one channel and queues its unseen video ids.
func (m *TwoLevelManager) processChannel(ctx context.Context, channel string, videoChan chan<- string, mu *sync.Mutex, seen map[string]bool) error {
	videos, err := m.lister.Videos(ctx, channel)
	if err != nil {
		return fmt.Errorf("list channel %s: %w", channel, err)
	}
	if m.maxPerFeed > 0 && len(videos) > m.maxPerFeed {
		videos = videos[:m.maxPerFeed]
	}

	ids := make([]string, 0, len(videos))
	mu.Lock()
	for _, v := range videos {
		if !seen[v.ID] {
			seen[v.ID] = true
			ids = append(ids, v.ID)
		}
	}
	mu.Unlock()

	if len(m.filters) > 0 {
		ids, err = filter.FilterVideoIDs(ctx, ids, m.filters...)
		if err != nil {
			return err
		}
	}

	queued := 0
	for _, id := range ids {
		select {
		case videoChan <- id:
			queued++
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.logger.Info("channel listed", "channel", channel, "videos", len(videos), "queued", queued)
	return nil
}
