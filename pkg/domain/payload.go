package domain

import "time"

// FormatPayload assembles the record persisted for a freshly fetched
// transcript. Caption-download records always carry a metadata object, {}
// when the tool reported nothing.
func FormatPayload(videoID, language string, res *Result, source Source, now time.Time) *Transcript {
	t := &Transcript{
		VideoID:                  videoID,
		Language:                 language,
		Transcript:               res.Transcript,
		TranscriptWithTimestamps: res.TranscriptWithTimestamps,
		Segments:                 res.Segments,
		Metadata:                 res.Metadata,
		Source:                   source,
		FetchedAt:                now.UTC(),
	}
	if t.Metadata == nil && source == SourceCaptionDownload {
		t.Metadata = &Metadata{}
	}
	return t
}
