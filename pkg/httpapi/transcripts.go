package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"tubenote/pkg/captions"
	"tubenote/pkg/domain"
	"tubenote/pkg/transcriptservice"
)

type TranscriptHandler struct {
	service TranscriptService
	logger  *slog.Logger
}

func NewTranscriptHandler(service TranscriptService, logger *slog.Logger) *TranscriptHandler {
	return &TranscriptHandler{service: service, logger: logger}
}

func (h *TranscriptHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/:video_id", h.getTranscript)
	r.GET("/fallback/:video_id", h.getFallbackTranscript)
}

type transcriptResponse struct {
	VideoID                  string `json:"video_id"`
	Language                 string `json:"language"`
	Transcript               string `json:"transcript"`
	TranscriptWithTimestamps string `json:"transcript_with_timestamps"`
}

type fallbackResponse struct {
	transcriptResponse
	Metadata *domain.Metadata `json:"metadata"`
}

func newTranscriptResponse(t *domain.Transcript) transcriptResponse {
	return transcriptResponse{
		VideoID:                  t.VideoID,
		Language:                 t.Language,
		Transcript:               t.Transcript,
		TranscriptWithTimestamps: t.TranscriptWithTimestamps,
	}
}

func (h *TranscriptHandler) getTranscript(c *gin.Context) {
	req := transcriptservice.Request{
		VideoID:  c.Param("video_id"),
		Language: c.DefaultQuery("lang", transcriptservice.DefaultLanguage),
		Clean:    captions.CleanPolicy(c.DefaultQuery("clean", string(captions.CleanRaw))),
	}

	t, err := h.service.Transcript(c.Request.Context(), req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, newTranscriptResponse(t))
}

func (h *TranscriptHandler) getFallbackTranscript(c *gin.Context) {
	req := transcriptservice.Request{
		VideoID:  c.Param("video_id"),
		Language: c.DefaultQuery("lang", transcriptservice.DefaultLanguage),
		Format:   captions.Format(c.DefaultQuery("format", string(captions.FormatVTT))),
	}

	t, err := h.service.FallbackTranscript(c.Request.Context(), req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, fallbackResponse{
		transcriptResponse: newTranscriptResponse(t),
		Metadata:           t.Metadata,
	})
}

// handleError renders expected failures as 400 with their message. Anything
// else is logged and hidden behind a generic 500.
func (h *TranscriptHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrRetrieval),
		errors.Is(err, domain.ErrTool):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "transcript fetch timed out"})
	default:
		h.logger.ErrorContext(c.Request.Context(), "transcript request failed",
			slog.String("request_id", c.GetString(requestIDKey)),
			slog.String("path", c.Request.URL.Path),
			slog.Any("error", err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
