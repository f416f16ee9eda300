// Package ytdlp downloads caption files and video metadata with the yt-dlp
// command line tool.
package ytdlp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"tubenote/pkg/captions"
	"tubenote/pkg/domain"
)

// DefaultBinary is looked up on PATH when no binary is configured.
const DefaultBinary = "yt-dlp"

const watchURL = "https://www.youtube.com/watch?v="

// Downloader wraps the yt-dlp binary. Each call works in its own temporary
// directory, so concurrent calls never share files.
type Downloader struct {
	binary     string
	cookieFile string
	scratchDir string
	runner     Runner
}

// NewDownloader validates the configuration and returns a Downloader.
// An empty cookieFile disables cookies; a configured but missing one is an
// error. An empty scratchDir means os.TempDir().
func NewDownloader(binary, cookieFile, scratchDir string, runner Runner) (*Downloader, error) {
	if binary == "" {
		binary = DefaultBinary
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if cookieFile != "" {
		info, err := os.Stat(cookieFile)
		if err != nil {
			return nil, fmt.Errorf("cookie file: %w", err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("cookie file %s is a directory", cookieFile)
		}
	}
	if scratchDir == "" {
		scratchDir = os.TempDir()
	}
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return nil, fmt.Errorf("scratch dir: %w", err)
	}

	return &Downloader{
		binary:     binary,
		cookieFile: cookieFile,
		scratchDir: scratchDir,
		runner:     runner,
	}, nil
}

// DownloadCaptions fetches the auto-generated captions of videoID in lang
// and returns the caption file content unchanged.
func (d *Downloader) DownloadCaptions(ctx context.Context, videoID, lang string, format captions.Format) (string, error) {
	dir, err := os.MkdirTemp(d.scratchDir, "captions-")
	if err != nil {
		return "", fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	args := []string{
		"--quiet",
		"--no-warnings",
		"--skip-download",
		"--write-auto-subs",
		"--sub-langs", lang,
		"--sub-format", string(format),
	}
	if format == captions.FormatSRT {
		args = append(args, "--convert-subs", "srt")
	}
	args = append(args, d.cookieArgs()...)
	args = append(args, "-o", filepath.Join(dir, videoID+".%(ext)s"), watchURL+videoID)

	if _, err := d.runner.Run(ctx, d.binary, args...); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("download captions: %w", ctx.Err())
		}
		return "", domain.ToolError(err, "yt-dlp error")
	}

	path := filepath.Join(dir, fmt.Sprintf("%s.%s.%s", videoID, lang, format))
	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", domain.NotFoundError("no transcript file found for language '%s' in format '%s'", lang, format)
	}
	if err != nil {
		return "", fmt.Errorf("read caption file: %w", err)
	}
	return string(content), nil
}

// videoInfo is the subset of yt-dlp's info JSON we keep.
type videoInfo struct {
	Title     *string  `json:"title"`
	Uploader  *string  `json:"uploader"`
	Duration  *float64 `json:"duration"`
	Thumbnail *string  `json:"thumbnail"`
}

// Metadata returns descriptive information about videoID. Fields yt-dlp does
// not report stay nil.
func (d *Downloader) Metadata(ctx context.Context, videoID string) (*domain.Metadata, error) {
	args := []string{"--quiet", "--no-warnings", "--dump-single-json", "--skip-download"}
	args = append(args, d.cookieArgs()...)
	args = append(args, watchURL+videoID)

	out, err := d.runner.Run(ctx, d.binary, args...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("video metadata: %w", ctx.Err())
		}
		return nil, domain.ToolError(err, "yt-dlp metadata error")
	}

	var info videoInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, domain.ToolError(err, "yt-dlp metadata error")
	}

	return &domain.Metadata{
		VideoID:         videoID,
		Title:           info.Title,
		Uploader:        info.Uploader,
		DurationSeconds: info.Duration,
		ThumbnailURL:    info.Thumbnail,
	}, nil
}

func (d *Downloader) cookieArgs() []string {
	if d.cookieFile == "" {
		return nil
	}
	return []string{"--cookies", d.cookieFile}
}
