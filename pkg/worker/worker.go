package worker

import (
	"context"
	"fmt"

	"tubenote/pkg/domain"
	"tubenote/pkg/transcriptservice"
)

// TranscriptFetcher is implemented by *transcriptservice.Service. Only the
// caption-download path stores records, so it is the one a prefetch warms.
type TranscriptFetcher interface {
	FallbackTranscript(ctx context.Context, req transcriptservice.Request) (*domain.Transcript, error)
}

// Worker warms the transcript cache for single videos
type Worker struct {
	service  TranscriptFetcher
	template transcriptservice.Request
}

// NewWorker creates a worker. template supplies language and caption format
// for every video.
func NewWorker(service TranscriptFetcher, template transcriptservice.Request) *Worker {
	return &Worker{
		service:  service,
		template: template,
	}
}

// ProcessVideo downloads (or finds stored) the transcript of videoID
func (w *Worker) ProcessVideo(ctx context.Context, videoID string) error {
	req := w.template
	req.VideoID = videoID

	if _, err := w.service.FallbackTranscript(ctx, req); err != nil {
		return fmt.Errorf("video %s: %w", videoID, err)
	}
	return nil
}
