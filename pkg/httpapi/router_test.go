package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tubenote/pkg/captions"
	"tubenote/pkg/db"
	"tubenote/pkg/domain"
	"tubenote/pkg/transcriptservice"
	"tubenote/pkg/youtube"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeYouTube serves a watch page for abc123 with one English track whose
// timed text holds a single entry "Hi" at 0.0s lasting 1.0s.
func fakeYouTube(t *testing.T) *httptest.Server {
	t.Helper()
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/watch":
			if r.URL.Query().Get("v") != "abc123" {
				fmt.Fprint(w, `<html><script>var ytInitialPlayerResponse = {"playabilityStatus":{"status":"ERROR","reason":"Video unavailable"}};</script></html>`)
				return
			}
			fmt.Fprintf(w, `<html><script>var ytInitialPlayerResponse = {"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[{"baseUrl":"%s/api/timedtext?v=abc123&lang=en","languageCode":"en"}]}}};</script></html>`, server.URL)
		case "/api/timedtext":
			fmt.Fprint(w, `<transcript><text start="0.0" dur="1.0">Hi</text></transcript>`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func get(t *testing.T, h http.Handler, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return w, body
}

func TestTranscript_EndToEnd(t *testing.T) {
	yt := fakeYouTube(t)
	store := db.NewMemoryStore()
	api := transcriptservice.NewAPIFetcher(youtube.NewClient(nil, yt.URL))
	svc := transcriptservice.New(store, api, nil, transcriptservice.WithLogger(quietLogger()))
	router := NewRouter(svc, RouterConfig{Logger: quietLogger()})

	w, body := get(t, router, "/transcript/abc123?lang=en")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, map[string]any{
		"video_id":                   "abc123",
		"language":                   "en",
		"transcript":                 "Hi",
		"transcript_with_timestamps": "1\n00:00:00,000 --> 00:00:01,000\nHi",
	}, body)
	assert.Equal(t, 0, store.Len(), "query-client transcripts are not stored")
}

func TestTranscript_RetrievalFailureIs400(t *testing.T) {
	yt := fakeYouTube(t)
	api := transcriptservice.NewAPIFetcher(youtube.NewClient(nil, yt.URL))
	svc := transcriptservice.New(db.NewMemoryStore(), api, nil, transcriptservice.WithLogger(quietLogger()))
	router := NewRouter(svc, RouterConfig{Logger: quietLogger()})

	w, body := get(t, router, "/transcript/abc123?lang=de")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body["error"], `language "de"`)

	w, body = get(t, router, "/transcript/zzz999")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body["error"], "Video unavailable")
}

type vttDownloader struct{ downloads int }

func (d *vttDownloader) DownloadCaptions(context.Context, string, string, captions.Format) (string, error) {
	d.downloads++
	return "WEBVTT\n\n00:00:00.000 --> 00:00:01.000\nHello\n", nil
}

func (d *vttDownloader) Metadata(context.Context, string) (*domain.Metadata, error) {
	return &domain.Metadata{}, nil
}

func TestTranscript_FallbackIsNotAnsweredByQueryClient(t *testing.T) {
	yt := fakeYouTube(t)
	store := db.NewMemoryStore()
	downloader := &vttDownloader{}
	svc := transcriptservice.New(store,
		transcriptservice.NewAPIFetcher(youtube.NewClient(nil, yt.URL)),
		transcriptservice.NewCaptionFetcher(downloader),
		transcriptservice.WithLogger(quietLogger()),
	)
	router := NewRouter(svc, RouterConfig{Logger: quietLogger()})

	w, _ := get(t, router, "/transcript/abc123")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, body := get(t, router, "/transcript/fallback/abc123")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Hello", body["transcript"])
	assert.Equal(t, "WEBVTT\n\n00:00:00.000 --> 00:00:01.000\nHello\n", body["transcript_with_timestamps"])
	assert.Equal(t, map[string]any{}, body["metadata"])
	assert.Equal(t, 1, downloader.downloads)

	// The stored caption-download record does not leak into the live path.
	_, body = get(t, router, "/transcript/abc123?clean=strict")
	assert.Equal(t, "Hi", body["transcript"])
	assert.Equal(t, "1\n00:00:00,000 --> 00:00:01,000\nHi", body["transcript_with_timestamps"])
}

type stubService struct {
	transcript *domain.Transcript
	err        error
	lastReq    transcriptservice.Request
}

func (s *stubService) Transcript(_ context.Context, req transcriptservice.Request) (*domain.Transcript, error) {
	s.lastReq = req
	return s.transcript, s.err
}

func (s *stubService) FallbackTranscript(_ context.Context, req transcriptservice.Request) (*domain.Transcript, error) {
	s.lastReq = req
	return s.transcript, s.err
}

func TestFallbackTranscript(t *testing.T) {
	title := "A talk"
	stub := &stubService{transcript: &domain.Transcript{
		VideoID:                  "abc123",
		Language:                 "en",
		Transcript:               "Hello",
		TranscriptWithTimestamps: "WEBVTT\n\n00:00.000 --> 00:01.000\nHello",
		Metadata:                 &domain.Metadata{VideoID: "abc123", Title: &title},
		Source:                   domain.SourceCaptionDownload,
		FetchedAt:                time.Now(),
	}}
	router := NewRouter(stub, RouterConfig{Logger: quietLogger()})

	w, body := get(t, router, "/transcript/fallback/abc123?format=srt")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Hello", body["transcript"])
	assert.Equal(t, map[string]any{
		"video_id":  "abc123",
		"title":     "A talk",
		"uploader":  nil,
		"duration":  nil,
		"thumbnail": nil,
	}, body["metadata"])
	assert.Equal(t, "en", stub.lastReq.Language)
	assert.Equal(t, "srt", string(stub.lastReq.Format))
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{"invalid request", domain.InvalidRequestError("invalid video id"), http.StatusBadRequest, "invalid video id"},
		{"retrieval", domain.RetrievalError(nil, "no transcript found"), http.StatusBadRequest, "no transcript found"},
		{"not found", domain.NotFoundError("no transcript file found for language 'fr' in format 'vtt'"), http.StatusBadRequest, "no transcript file found"},
		{"tool", domain.ToolError(fmt.Errorf("exit status 1"), "yt-dlp error"), http.StatusBadRequest, "yt-dlp error: exit status 1"},
		{"timeout", fmt.Errorf("fetch watch page: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, "timed out"},
		{"store failure", fmt.Errorf("lookup transcript: connection refused"), http.StatusInternalServerError, "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := NewRouter(&stubService{err: tt.err}, RouterConfig{Logger: quietLogger()})

			w, body := get(t, router, "/transcript/fallback/abc123")
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Contains(t, body["error"], tt.wantMsg)
		})
	}
}

func TestHome(t *testing.T) {
	router := NewRouter(&stubService{}, RouterConfig{Logger: quietLogger()})

	w, body := get(t, router, "/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, HomeMessage, body["message"])
}

func TestCORSAndRequestID(t *testing.T) {
	router := NewRouter(&stubService{}, RouterConfig{Logger: quietLogger()})

	w, _ := get(t, router, "/")
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get(requestIDHeader))
}

func TestCORSRestrictedOrigins(t *testing.T) {
	router := NewRouter(&stubService{}, RouterConfig{
		AllowOrigins: []string{"https://app.example.com"},
		Logger:       quietLogger(),
	})

	w, _ := get(t, router, "/")
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
