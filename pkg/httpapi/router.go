// Package httpapi exposes the transcript service over HTTP.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"tubenote/pkg/domain"
	"tubenote/pkg/transcriptservice"
)

// HomeMessage is the body of the liveness route.
const HomeMessage = "TubeNote backend running"

// TranscriptService is what the handlers need from *transcriptservice.Service.
type TranscriptService interface {
	Transcript(ctx context.Context, req transcriptservice.Request) (*domain.Transcript, error)
	FallbackTranscript(ctx context.Context, req transcriptservice.Request) (*domain.Transcript, error)
}

// RouterConfig configures NewRouter.
type RouterConfig struct {
	// AllowOrigins lists CORS origins. Empty or "*" allows every origin.
	AllowOrigins []string
	Logger       *slog.Logger
}

func NewRouter(service TranscriptService, cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := gin.New()
	r.Use(requestID(), accessLog(logger), gin.Recovery(), cors.New(corsConfig(cfg.AllowOrigins)))

	handler := NewTranscriptHandler(service, logger)

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": HomeMessage})
	})

	handler.RegisterRoutes(r.Group("/transcript"))

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowMethods = []string{http.MethodGet, http.MethodOptions}
	cfg.ExposeHeaders = []string{requestIDHeader}

	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}
