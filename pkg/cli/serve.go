package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"tubenote/pkg/httpapi"
	"tubenote/pkg/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the transcript HTTP API.

Endpoints:
  GET /                                        liveness message
  GET /transcript/:video_id?lang=en&clean=raw  query-client strategy
  GET /transcript/fallback/:video_id?lang=en&format=vtt
                                               caption-download strategy`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServe(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address, overrides http.addr")
}

func runServe(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.close(closeCtx)
	}()

	addr := a.cfg.HTTP.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	gin.SetMode(gin.ReleaseMode)
	handler := httpapi.NewRouter(a.service, httpapi.RouterConfig{
		AllowOrigins: a.cfg.HTTP.AllowOrigins,
		Logger:       a.logger,
	})

	return server.New(addr, a.cfg.HTTP.ShutdownTimeout, handler, a.logger).Run(ctx)
}
