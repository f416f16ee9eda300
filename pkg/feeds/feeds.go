// Package feeds lists recent videos of a channel from its Atom feed.
package feeds

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// Video is one entry of a channel feed.
type Video struct {
	ID        string
	Title     string
	Published *time.Time
}

// ChannelFeed reads channel feeds ("{base}/feeds/videos.xml?channel_id=...").
type ChannelFeed struct {
	feedParser *gofeed.Parser
	baseURL    string
}

// NewChannelFeed creates a feed reader. An empty baseURL means
// https://www.youtube.com; a nil client means http.DefaultClient.
func NewChannelFeed(baseURL string, client *http.Client) *ChannelFeed {
	if baseURL == "" {
		baseURL = "https://www.youtube.com"
	}
	p := gofeed.NewParser()
	if client != nil {
		p.Client = client
	}
	return &ChannelFeed{
		feedParser: p,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// FeedURL returns the feed location for a channel id. A full http(s) URL
// is returned unchanged so playlist feeds work too.
func (f *ChannelFeed) FeedURL(channel string) string {
	if strings.HasPrefix(channel, "http://") || strings.HasPrefix(channel, "https://") {
		return channel
	}
	return f.baseURL + "/feeds/videos.xml?channel_id=" + url.QueryEscape(channel)
}

// Videos fetches and parses the feed of channel, newest first as published.
func (f *ChannelFeed) Videos(ctx context.Context, channel string) ([]Video, error) {
	feed, err := f.feedParser.ParseURLWithContext(f.FeedURL(channel), ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse channel feed: %w", err)
	}

	if feed == nil || len(feed.Items) == 0 {
		return nil, fmt.Errorf("feed contains no items")
	}

	videos := make([]Video, 0, len(feed.Items))
	seen := make(map[string]bool, len(feed.Items))
	for _, item := range feed.Items {
		id := videoID(item)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		videos = append(videos, Video{
			ID:        id,
			Title:     item.Title,
			Published: item.PublishedParsed,
		})
	}

	if len(videos) == 0 {
		return nil, fmt.Errorf("no video ids found in feed items")
	}
	return videos, nil
}

// videoID prefers the yt:videoId extension and falls back to the v
// parameter of the entry link.
func videoID(item *gofeed.Item) string {
	if yt, ok := item.Extensions["yt"]; ok {
		if ids := yt["videoId"]; len(ids) > 0 && ids[0].Value != "" {
			return strings.TrimSpace(ids[0].Value)
		}
	}

	u, err := url.Parse(item.Link)
	if err != nil {
		return ""
	}
	return u.Query().Get("v")
}
