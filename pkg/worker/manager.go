package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Stats counts the outcome of a batch.
type Stats struct {
	Succeeded int
	Failed    int
}

// Manager manages workers and distributes video ids to them
type Manager struct {
	workerCount int
	worker      *Worker
	logger      *slog.Logger
}

// NewManager creates a new manager. Worker holds no per-video state and
// is shared by all goroutines.
func NewManager(workerCount int, worker *Worker, logger *slog.Logger) *Manager {
	if workerCount < 1 {
		workerCount = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		workerCount: workerCount,
		worker:      worker,
		logger:      logger,
	}
}

// ProcessVideos distributes video ids to workers and processes them concurrently.
// It fails only when every video failed.
func (m *Manager) ProcessVideos(ctx context.Context, videoIDs []string) (Stats, error) {
	jobChan := make(chan string, len(videoIDs))
	for _, id := range videoIDs {
		jobChan <- id
	}
	close(jobChan)

	var wg sync.WaitGroup

	// Results channel to collect success/error from workers (no contention)
	type result struct {
		videoID  string
		workerID int
		err      error
	}
	resultsChan := make(chan result, len(videoIDs))

	for i := 0; i < m.workerCount; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for id := range jobChan {
				if ctx.Err() != nil {
					resultsChan <- result{videoID: id, workerID: workerID, err: ctx.Err()}
					continue
				}
				resultsChan <- result{videoID: id, workerID: workerID, err: m.worker.ProcessVideo(ctx, id)}
			}
		}(i)
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	var stats Stats
	for res := range resultsChan {
		if res.err == nil {
			stats.Succeeded++
			if stats.Succeeded%100 == 0 {
				m.logger.Info("prefetch progress", "succeeded", stats.Succeeded, "failed", stats.Failed)
			}
			continue
		}
		stats.Failed++
		m.logger.Warn("prefetch failed", "worker", res.workerID, "video_id", res.videoID, "error", res.err)
	}

	m.logger.Info("prefetch completed", "succeeded", stats.Succeeded, "failed", stats.Failed, "total", len(videoIDs))

	if stats.Failed > 0 && stats.Succeeded == 0 {
		return stats, fmt.Errorf("all %d videos failed to process", stats.Failed)
	}
	return stats, nil
}
