// Package youtube queries YouTube's timed-text captions for a video.
package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"tubenote/pkg/domain"
	"tubenote/pkg/httpclient"
)

// DefaultBaseURL is the origin watch pages are fetched from.
const DefaultBaseURL = "https://www.youtube.com"

const (
	playerResponseMarker = "ytInitialPlayerResponse = "

	maxWatchPageBytes = 6 << 20
	maxTimedTextBytes = 2 << 20
)

var tagRe = regexp.MustCompile(`<[^>]*>`)

// Client fetches caption entries for a video in a requested language.
// It holds no per-request state and is safe for concurrent use.
type Client struct {
	http    *httpclient.HTTPClient
	baseURL string
}

// NewClient creates a client. An empty baseURL means DefaultBaseURL.
func NewClient(hc *httpclient.HTTPClient, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if hc == nil {
		hc = httpclient.NewClient(httpclient.BrowserClient)
	}
	return &Client{
		http:    hc,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Fetch returns the caption entries of videoID in language, in playback order.
// Every failure to supply a transcript is reported as a domain.ErrRetrieval error.
func (c *Client) Fetch(ctx context.Context, videoID, language string) ([]domain.Segment, error) {
	player, err := c.playerResponse(ctx, videoID)
	if err != nil {
		return nil, err
	}

	if player.Captions == nil {
		if player.PlayabilityStatus != nil && player.PlayabilityStatus.Reason != "" {
			return nil, domain.RetrievalError(nil, "no transcript available for video %q: %s", videoID, player.PlayabilityStatus.Reason)
		}
		return nil, domain.RetrievalError(nil, "no transcript available for video %q", videoID)
	}

	tracks := player.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks
	track, ok := pickTrack(tracks, language)
	if !ok {
		return nil, domain.RetrievalError(nil, "no transcript found for video %q in language %q (available: %s)",
			videoID, language, strings.Join(trackLanguages(tracks), ", "))
	}

	segments, err := c.timedText(ctx, track.BaseURL)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, domain.RetrievalError(nil, "transcript for video %q in language %q is empty", videoID, language)
	}
	return segments, nil
}

func (c *Client) playerResponse(ctx context.Context, videoID string) (*playerResponse, error) {
	watchURL := c.baseURL + "/watch?v=" + url.QueryEscape(videoID)

	body, err := c.get(ctx, watchURL, maxWatchPageBytes)
	if err != nil {
		return nil, fetchError(ctx, err, "fetch watch page")
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, domain.RetrievalError(err, "parse watch page")
	}

	var (
		player   playerResponse
		found    bool
		parseErr error
	)
	doc.Find("script").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := sel.Text()
		idx := strings.Index(text, playerResponseMarker)
		if idx < 0 {
			return true
		}
		found = true
		// Decode reads exactly one JSON value and ignores the trailing script.
		parseErr = json.NewDecoder(strings.NewReader(text[idx+len(playerResponseMarker):])).Decode(&player)
		return false
	})

	if !found {
		return nil, domain.RetrievalError(nil, "player response not found in watch page for video %q", videoID)
	}
	if parseErr != nil {
		return nil, domain.RetrievalError(parseErr, "decode player response")
	}
	return &player, nil
}

func (c *Client) timedText(ctx context.Context, trackURL string) ([]domain.Segment, error) {
	resolved, err := c.resolve(trackURL)
	if err != nil {
		return nil, domain.RetrievalError(err, "invalid caption track url")
	}

	body, err := c.get(ctx, resolved, maxTimedTextBytes)
	if err != nil {
		return nil, fetchError(ctx, err, "fetch timedtext")
	}

	var tt timedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return nil, domain.RetrievalError(err, "parse timedtext XML")
	}

	segments := make([]domain.Segment, 0, len(tt.Lines))
	for _, line := range tt.Lines {
		text := cleanText(line.Text)
		if text == "" {
			continue
		}
		segments = append(segments, domain.Segment{
			Text:     text,
			Start:    line.Start,
			Duration: line.Duration,
		})
	}
	return segments, nil
}

func (c *Client) get(ctx context.Context, rawURL string, limit int64) ([]byte, error) {
	resp, err := c.http.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, limit))
}

// resolve makes relative caption track URLs absolute against the base URL.
func (c *Client) resolve(ref string) (string, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(u).String(), nil
}

// pickTrack prefers a manually created track in language and falls back to
// the auto-generated one.
func pickTrack(tracks []captionTrack, language string) (captionTrack, bool) {
	for _, t := range tracks {
		if t.LanguageCode == language && t.Kind != "asr" {
			return t, true
		}
	}
	for _, t := range tracks {
		if t.LanguageCode == language {
			return t, true
		}
	}
	return captionTrack{}, false
}

func trackLanguages(tracks []captionTrack) []string {
	seen := make(map[string]bool, len(tracks))
	langs := make([]string, 0, len(tracks))
	for _, t := range tracks {
		if t.LanguageCode == "" || seen[t.LanguageCode] {
			continue
		}
		seen[t.LanguageCode] = true
		langs = append(langs, t.LanguageCode)
	}
	sort.Strings(langs)
	if len(langs) == 0 {
		return []string{"none"}
	}
	return langs
}

// cleanText undoes the double HTML escaping of timedtext bodies and drops
// inline formatting tags.
func cleanText(s string) string {
	s = html.UnescapeString(s)
	s = tagRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// fetchError keeps context cancellation distinguishable from a remote failure.
func fetchError(ctx context.Context, err error, op string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return domain.RetrievalError(err, "%s", op)
}

func drainAndClose(rc io.ReadCloser) {
	if rc == nil {
		return
	}
	_, _ = io.Copy(io.Discard, rc)
	_ = rc.Close()
}
