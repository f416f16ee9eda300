package transcriptservice

import (
	"context"

	"tubenote/pkg/captions"
	"tubenote/pkg/domain"
)

// Fetcher is a transcript retrieval strategy.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (*domain.Result, error)
	Source() domain.Source
}

// TranscriptClient returns timed caption entries for a video.
// *youtube.Client implements it.
type TranscriptClient interface {
	Fetch(ctx context.Context, videoID, language string) ([]domain.Segment, error)
}

// CaptionDownloader downloads caption files and metadata.
// *ytdlp.Downloader implements it.
type CaptionDownloader interface {
	DownloadCaptions(ctx context.Context, videoID, lang string, format captions.Format) (string, error)
	Metadata(ctx context.Context, videoID string) (*domain.Metadata, error)
}

// APIFetcher is the query-client strategy: it reads caption entries and
// derives both text forms from them. It has no access to video metadata.
type APIFetcher struct {
	client TranscriptClient
}

func NewAPIFetcher(client TranscriptClient) *APIFetcher {
	return &APIFetcher{client: client}
}

func (f *APIFetcher) Source() domain.Source { return domain.SourceAPI }

func (f *APIFetcher) Fetch(ctx context.Context, req Request) (*domain.Result, error) {
	segments, err := f.client.Fetch(ctx, req.VideoID, req.Language)
	if err != nil {
		return nil, err
	}

	return &domain.Result{
		Transcript:               captions.JoinSegments(segments, req.Clean),
		TranscriptWithTimestamps: captions.BuildCues(segments),
		Segments:                 segments,
	}, nil
}

// CaptionFetcher is the caption-download strategy: it downloads the caption
// file, normalizes it to prose and attaches video metadata. The request's
// clean policy does not apply.
type CaptionFetcher struct {
	downloader CaptionDownloader
}

func NewCaptionFetcher(downloader CaptionDownloader) *CaptionFetcher {
	return &CaptionFetcher{downloader: downloader}
}

func (f *CaptionFetcher) Source() domain.Source { return domain.SourceCaptionDownload }

func (f *CaptionFetcher) Fetch(ctx context.Context, req Request) (*domain.Result, error) {
	content, err := f.downloader.DownloadCaptions(ctx, req.VideoID, req.Language, req.Format)
	if err != nil {
		return nil, err
	}

	meta, err := f.downloader.Metadata(ctx, req.VideoID)
	if err != nil {
		return nil, err
	}

	return &domain.Result{
		Transcript:               captions.Normalize(content, req.Format),
		TranscriptWithTimestamps: content,
		Metadata:                 meta,
	}, nil
}
