package domain

import (
	"encoding/json"
	"time"
)

// Source tags which fetch strategy produced a stored transcript.
type Source string

const (
	// SourceAPI marks transcripts read from the platform's timed-text captions.
	SourceAPI Source = "api"

	// SourceCaptionDownload marks transcripts produced from a caption file
	// downloaded with yt-dlp.
	SourceCaptionDownload Source = "caption-download"
)

// Segment is one timed caption entry as returned by the transcript query client.
type Segment struct {
	Text     string  `bson:"text" json:"text"`
	Start    float64 `bson:"start" json:"start"`
	Duration float64 `bson:"duration" json:"duration"`
}

// Metadata describes the video a caption-download transcript belongs to.
// Fields the download tool did not report stay nil and render as null.
type Metadata struct {
	VideoID string `bson:"video_id" json:"video_id"`

	Title    *string `bson:"title" json:"title"`
	Uploader *string `bson:"uploader" json:"uploader"`

	// DurationSeconds is the video length in seconds.
	DurationSeconds *float64 `bson:"duration" json:"duration"`

	ThumbnailURL *string `bson:"thumbnail" json:"thumbnail"`
}

// IsEmpty reports whether nothing is known about the video.
func (m Metadata) IsEmpty() bool {
	return m == Metadata{}
}

// MarshalJSON renders empty metadata as {}.
func (m Metadata) MarshalJSON() ([]byte, error) {
	if m.IsEmpty() {
		return []byte("{}"), nil
	}
	type plain Metadata
	return json.Marshal(plain(m))
}

// Transcript is the persisted transcript record. VideoID is the natural key:
// the store holds at most one Transcript per video.
type Transcript struct {
	VideoID  string `bson:"video_id" json:"video_id"`
	Language string `bson:"language" json:"language"`

	// Transcript is the plain-text transcript.
	Transcript string `bson:"transcript" json:"transcript"`

	// TranscriptWithTimestamps is SRT-style cue text for SourceAPI records and
	// the raw downloaded caption file for SourceCaptionDownload records.
	TranscriptWithTimestamps string `bson:"transcript_with_timestamps" json:"transcript_with_timestamps"`

	// Segments holds the structured entries behind TranscriptWithTimestamps.
	// Only SourceAPI records carry them.
	Segments []Segment `bson:"segments,omitempty" json:"segments,omitempty"`

	Metadata *Metadata `bson:"metadata,omitempty" json:"metadata,omitempty"`

	Source    Source    `bson:"source" json:"source"`
	FetchedAt time.Time `bson:"fetched_at" json:"fetched_at"`
}

// Result is what a fetch strategy hands back before it is formatted into a
// Transcript record.
type Result struct {
	Transcript               string
	TranscriptWithTimestamps string
	Segments                 []Segment
	Metadata                 *Metadata
}
