package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"tubenote/pkg/config"
	"tubenote/pkg/db"
	"tubenote/pkg/httpclient"
	"tubenote/pkg/logging"
	"tubenote/pkg/transcriptservice"
	"tubenote/pkg/youtube"
	"tubenote/pkg/ytdlp"
)

// app holds the long-lived dependencies shared by the commands.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   db.TranscriptStore
	service *transcriptservice.Service
	closers []func(context.Context) error
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}
	return cfg, logger, nil
}

// newApp connects the store and builds the transcript service.
func newApp(ctx context.Context) (*app, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}

	store, err := a.openStore(ctx)
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	a.store = store

	hc := httpclient.NewClient(httpclient.BrowserClient,
		httpclient.WithTimeout(cfg.YouTube.RequestTimeout),
		httpclient.WithRateLimit(cfg.YouTube.RateLimit, cfg.YouTube.Burst),
	)
	api := transcriptservice.NewAPIFetcher(youtube.NewClient(hc, cfg.YouTube.BaseURL))

	downloader, err := ytdlp.NewDownloader(cfg.YtDlp.Binary, cfg.YtDlp.CookieFile, cfg.YtDlp.ScratchDir, nil)
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("caption downloader: %w", err)
	}
	captions := transcriptservice.NewCaptionFetcher(downloader)

	a.service = transcriptservice.New(store, api, captions,
		transcriptservice.WithFetchTimeout(cfg.FetchTimeout),
		transcriptservice.WithLogger(logger),
	)
	return a, nil
}

func (a *app) openStore(ctx context.Context) (db.TranscriptStore, error) {
	sc := a.cfg.Store
	a.logger.Info("opening transcript store", "backend", sc.Backend)

	switch sc.Backend {
	case config.StoreMongo:
		mongoClient, err := a.connectMongo(ctx)
		if err != nil {
			return nil, err
		}
		return mongoClient, nil

	case config.StorePostgres:
		pg, err := a.connectPostgres(ctx)
		if err != nil {
			return nil, err
		}
		return a.sqlStore(ctx, pg)

	case config.StoreSupabase, config.StoreSupabaseREST:
		sbCfg := db.SupabaseConfig{URL: sc.SupabaseURL, Key: sc.SupabaseKey}
		if sc.Backend == config.StoreSupabase {
			sbCfg.ConnectionString = sc.SupabaseConnectionString
			sbCfg.Password = sc.SupabasePassword
		}
		sb := db.NewSupabaseClient(sbCfg)
		if err := sb.Connect(ctx); err != nil {
			return nil, fmt.Errorf("connect supabase: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return sb.Close() })

		if sb.HasDirectDB() {
			return a.sqlStore(ctx, sb)
		}
		a.logger.Info("supabase running in REST mode")
		return db.NewSupabaseRESTStore(sb.REST()), nil

	case config.StoreMemory:
		a.logger.Warn("using the in-memory store; transcripts are lost on exit")
		return db.NewMemoryStore(), nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", sc.Backend)
	}
}

func (a *app) connectMongo(ctx context.Context) (*db.Client, error) {
	sc := a.cfg.Store
	client, err := db.NewClient(sc.MongoURI, sc.MongoDatabase, sc.MongoCollection)
	if err != nil {
		return nil, err
	}
	if err := client.Connect(ctx); err != nil {
		_ = client.Close(ctx)
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	a.closers = append(a.closers, client.Close)
	return client, nil
}

func (a *app) connectPostgres(ctx context.Context) (*db.PostgresClient, error) {
	pg := db.NewPostgresClient(db.PostgresConfig{DSN: a.cfg.Store.PostgresDSN})
	if err := pg.Connect(ctx); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func(context.Context) error { return pg.Close() })
	return pg, nil
}

func (a *app) sqlStore(ctx context.Context, p db.DBProvider) (*db.SQLStore, error) {
	store := db.NewSQLStore(p)
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// close releases connections in reverse order of opening.
func (a *app) close(ctx context.Context) {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("closing connections", "error", err)
	}
}
