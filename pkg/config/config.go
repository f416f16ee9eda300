// Package config loads tubenote settings from defaults, an optional YAML
// file, a .env file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is read when no --config path is given and it exists.
const DefaultConfigFile = "tubenote.yml"

// Store backends.
const (
	StoreMongo        = "mongo"
	StorePostgres     = "postgres"
	StoreSupabase     = "supabase"
	StoreSupabaseREST = "supabase-rest"
	StoreMemory       = "memory"
)

type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Log     LogConfig     `yaml:"log"`
	Store   StoreConfig   `yaml:"store"`
	YouTube YouTubeConfig `yaml:"youtube"`
	YtDlp   YtDlpConfig   `yaml:"ytdlp"`

	// FetchTimeout bounds one transcript fetch (remote query or tool run).
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowOrigins    []string      `yaml:"allow_origins"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
}

type StoreConfig struct {
	Backend string `yaml:"backend"`

	MongoURI        string `yaml:"mongo_uri"`
	MongoDatabase   string `yaml:"mongo_database"`
	MongoCollection string `yaml:"mongo_collection"`

	PostgresDSN string `yaml:"postgres_dsn"`

	SupabaseURL              string `yaml:"supabase_url"`
	SupabaseKey              string `yaml:"supabase_key"`
	SupabasePassword         string `yaml:"supabase_password"`
	SupabaseConnectionString string `yaml:"supabase_connection_string"`
}

type YouTubeConfig struct {
	BaseURL        string        `yaml:"base_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RateLimit      float64       `yaml:"rate_limit"` // requests per second, 0 = unlimited
	Burst          int           `yaml:"burst"`
}

type YtDlpConfig struct {
	Binary string `yaml:"binary"`

	// CookieFile is passed to yt-dlp to get past bot checks. When set it
	// must exist at startup.
	CookieFile string `yaml:"cookie_file"`

	ScratchDir string `yaml:"scratch_dir"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:            ":5000",
			ShutdownTimeout: 10 * time.Second,
			AllowOrigins:    []string{"*"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Store: StoreConfig{
			Backend:         StoreMongo,
			MongoURI:        "mongodb://localhost:27017",
			MongoDatabase:   "tubenote",
			MongoCollection: "transcripts",
		},
		YouTube: YouTubeConfig{
			RequestTimeout: 30 * time.Second,
			Burst:          1,
		},
		YtDlp: YtDlpConfig{
			Binary: "yt-dlp",
		},
		FetchTimeout: 60 * time.Second,
	}
}

// Load builds the configuration. path names a YAML file; an empty path
// reads DefaultConfigFile if it exists. Variables from a .env file in the
// working directory never override ones already set in the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			path = DefaultConfigFile
		}
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("TUBENOTE_HTTP_ADDR", &c.HTTP.Addr)
	if port, ok := lookup("PORT"); ok && port != "" {
		c.HTTP.Addr = ":" + port
	}
	dur("TUBENOTE_SHUTDOWN_TIMEOUT", &c.HTTP.ShutdownTimeout)
	if v, ok := lookup("TUBENOTE_CORS_ORIGINS"); ok && v != "" {
		c.HTTP.AllowOrigins = splitList(v)
	}

	str("TUBENOTE_LOG_LEVEL", &c.Log.Level)
	str("TUBENOTE_LOG_FORMAT", &c.Log.Format)

	str("TUBENOTE_STORE", &c.Store.Backend)
	str("MONGO_URI", &c.Store.MongoURI)
	str("TUBENOTE_MONGO_DATABASE", &c.Store.MongoDatabase)
	str("TUBENOTE_MONGO_COLLECTION", &c.Store.MongoCollection)
	str("DATABASE_URL", &c.Store.PostgresDSN)
	str("SUPABASE_URL", &c.Store.SupabaseURL)
	str("SUPABASE_KEY", &c.Store.SupabaseKey)
	str("SUPABASE_DB_PASSWORD", &c.Store.SupabasePassword)
	str("SUPABASE_CONNECTION_STRING", &c.Store.SupabaseConnectionString)

	str("TUBENOTE_YOUTUBE_BASE_URL", &c.YouTube.BaseURL)
	dur("TUBENOTE_YOUTUBE_TIMEOUT", &c.YouTube.RequestTimeout)
	if v, ok := lookup("TUBENOTE_YOUTUBE_RATE_LIMIT"); ok && v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("TUBENOTE_YOUTUBE_RATE_LIMIT: %w", err))
		} else {
			c.YouTube.RateLimit = rps
		}
	}

	str("TUBENOTE_YTDLP_BINARY", &c.YtDlp.Binary)
	str("TUBENOTE_COOKIE_FILE", &c.YtDlp.CookieFile)
	str("TUBENOTE_SCRATCH_DIR", &c.YtDlp.ScratchDir)

	dur("TUBENOTE_FETCH_TIMEOUT", &c.FetchTimeout)

	return errors.Join(errs...)
}

// Validate checks the settings that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case StoreMongo:
		if c.Store.MongoURI == "" {
			return fmt.Errorf("store: mongo_uri is required for the mongo backend")
		}
	case StorePostgres:
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("store: postgres_dsn (DATABASE_URL) is required for the postgres backend")
		}
	case StoreSupabase:
		if c.Store.SupabaseConnectionString == "" && (c.Store.SupabaseURL == "" || c.Store.SupabasePassword == "") {
			return fmt.Errorf("store: supabase needs a connection string or url+password")
		}
	case StoreSupabaseREST:
		if c.Store.SupabaseURL == "" || c.Store.SupabaseKey == "" {
			return fmt.Errorf("store: supabase-rest needs supabase_url and supabase_key")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("store: unknown backend %q", c.Store.Backend)
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log: unknown format %q (use json or text)", c.Log.Format)
	}

	if c.HTTP.Addr == "" {
		return fmt.Errorf("http: addr is required")
	}
	if c.YouTube.RateLimit < 0 {
		return fmt.Errorf("youtube: rate_limit must not be negative")
	}
	return nil
}

// Warnings lists settings that are valid but likely to cause failures later.
func (c *Config) Warnings() []string {
	var w []string
	if c.YtDlp.CookieFile == "" {
		w = append(w, "ytdlp: no cookie_file configured (TUBENOTE_COOKIE_FILE); caption downloads may be blocked by bot checks")
	}
	return w
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
