// Package config provides configuration management for the diary agent.
// Configuration is loaded from DIARY_* environment variables, optionally
// seeded from a .env file, with sensible defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix is prepended to every variable name, e.g. DIARY_PORT.
	EnvPrefix = "DIARY"

	DefaultDataDir = ".clipdiary"
	DBFilename     = "diary.db"

	BackendCreatomate = "creatomate"
	BackendShotstack  = "shotstack"

	UploadDirect      = "direct"
	UploadObjectStore = "objectstore"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	Headless() bool
	DataDir() string
	DBPath() string
	DocumentsDir() string
	ThumbnailsDir() string
	CORSOrigins() []string

	RenderBackend() string
	RenderBaseURL() string
	RenderIngestURL() string
	RenderAPIKey() string
	UploadStrategy() string
	Minio() MinioConfig

	PollInterval() time.Duration
	PollMaxAttempts() int
	TransferRetries() int

	NATSURL() string
	NATSSubject() string

	FFmpegPath() string
	FFprobePath() string
}

// MinioConfig holds object storage settings for the objectstore upload strategy.
type MinioConfig struct {
	Endpoint  string        `envconfig:"ENDPOINT"`
	Bucket    string        `envconfig:"BUCKET"`
	AccessKey string        `envconfig:"ACCESS_KEY"`
	SecretKey string        `envconfig:"SECRET_KEY"`
	Region    string        `envconfig:"REGION" default:"us-east-1"`
	UseSSL    bool          `envconfig:"USE_SSL" default:"false"`
	URLExpiry time.Duration `envconfig:"URL_EXPIRY" default:"1h"`
}

type vars struct {
	Port     int    `envconfig:"PORT" default:"8797"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	DataDir  string `envconfig:"DATA_DIR"`
	Headless bool   `envconfig:"HEADLESS" default:"true"`

	CORSOrigins []string `envconfig:"CORS_ORIGINS"`

	RenderBackend   string `envconfig:"RENDER_BACKEND" default:"creatomate"`
	RenderBaseURL   string `envconfig:"RENDER_BASE_URL"`
	RenderIngestURL string `envconfig:"RENDER_INGEST_URL"`
	RenderAPIKey    string `envconfig:"RENDER_API_KEY"`
	UploadStrategy  string `envconfig:"UPLOAD_STRATEGY" default:"direct"`

	Minio MinioConfig `envconfig:"MINIO"`

	PollInterval    time.Duration `envconfig:"POLL_INTERVAL" default:"2s"`
	PollMaxAttempts int           `envconfig:"POLL_MAX_ATTEMPTS" default:"30"`
	TransferRetries int           `envconfig:"TRANSFER_RETRIES" default:"2"`

	NATSURL     string `envconfig:"NATS_URL"`
	NATSSubject string `envconfig:"NATS_SUBJECT" default:"diary.crops"`

	FFmpegPath  string `envconfig:"FFMPEG_PATH" default:"ffmpeg"`
	FFprobePath string `envconfig:"FFPROBE_PATH" default:"ffprobe"`
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	s vars
}

// New loads an optional .env file from the working directory and then
// reads DIARY_* variables over the defaults.
func New() (*EnvConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv reads configuration from the process environment only.
func FromEnv() (*EnvConfig, error) {
	var s vars
	if err := envconfig.Process(EnvPrefix, &s); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if s.DataDir == "" {
		s.DataDir = defaultDataDir()
	}

	cfg := &EnvConfig{s: s}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *EnvConfig) validate() error {
	if c.s.Port < 1 || c.s.Port > 65535 {
		return fmt.Errorf("invalid %s_PORT: port must be between 1 and 65535", EnvPrefix)
	}

	switch c.s.RenderBackend {
	case BackendCreatomate, BackendShotstack:
	default:
		return fmt.Errorf("invalid %s_RENDER_BACKEND %q: want %s or %s",
			EnvPrefix, c.s.RenderBackend, BackendCreatomate, BackendShotstack)
	}

	switch c.s.UploadStrategy {
	case UploadDirect:
	case UploadObjectStore:
		m := c.s.Minio
		if m.Endpoint == "" || m.Bucket == "" || m.AccessKey == "" || m.SecretKey == "" {
			return fmt.Errorf("%[1]s_UPLOAD_STRATEGY=objectstore requires %[1]s_MINIO_ENDPOINT, %[1]s_MINIO_BUCKET, %[1]s_MINIO_ACCESS_KEY and %[1]s_MINIO_SECRET_KEY", EnvPrefix)
		}
	default:
		return fmt.Errorf("invalid %s_UPLOAD_STRATEGY %q: want %s or %s",
			EnvPrefix, c.s.UploadStrategy, UploadDirect, UploadObjectStore)
	}

	if c.s.PollInterval <= 0 {
		return fmt.Errorf("invalid %s_POLL_INTERVAL: must be positive", EnvPrefix)
	}
	if c.s.PollMaxAttempts < 1 {
		return fmt.Errorf("invalid %s_POLL_MAX_ATTEMPTS: must be at least 1", EnvPrefix)
	}
	if c.s.TransferRetries < 0 {
		return fmt.Errorf("invalid %s_TRANSFER_RETRIES: must not be negative", EnvPrefix)
	}
	return nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.s.Port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.s.LogLevel
}

func (c *EnvConfig) Headless() bool {
	return c.s.Headless
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.s.DataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.s.DataDir, DBFilename)
}

// DocumentsDir is the app-private documents root holding crops/ and temp/.
func (c *EnvConfig) DocumentsDir() string {
	return filepath.Join(c.s.DataDir, "documents")
}

func (c *EnvConfig) ThumbnailsDir() string {
	return filepath.Join(c.s.DataDir, "thumbnails")
}

func (c *EnvConfig) CORSOrigins() []string {
	return c.s.CORSOrigins
}

func (c *EnvConfig) RenderBackend() string {
	return c.s.RenderBackend
}

func (c *EnvConfig) RenderBaseURL() string {
	return c.s.RenderBaseURL
}

func (c *EnvConfig) RenderIngestURL() string {
	return c.s.RenderIngestURL
}

func (c *EnvConfig) RenderAPIKey() string {
	return c.s.RenderAPIKey
}

func (c *EnvConfig) UploadStrategy() string {
	return c.s.UploadStrategy
}

func (c *EnvConfig) Minio() MinioConfig {
	return c.s.Minio
}

func (c *EnvConfig) PollInterval() time.Duration {
	return c.s.PollInterval
}

func (c *EnvConfig) PollMaxAttempts() int {
	return c.s.PollMaxAttempts
}

func (c *EnvConfig) TransferRetries() int {
	return c.s.TransferRetries
}

func (c *EnvConfig) NATSURL() string {
	return c.s.NATSURL
}

func (c *EnvConfig) NATSSubject() string {
	return c.s.NATSSubject
}

func (c *EnvConfig) FFmpegPath() string {
	return c.s.FFmpegPath
}

func (c *EnvConfig) FFprobePath() string {
	return c.s.FFprobePath
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
