package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the server settings read from the environment.
type Config struct {
	DatabaseURL string `env:"STORYWEB_DATABASE_URL"` // required unless Memory
	Memory      bool   `env:"STORYWEB_MEMORY"`       // in-process store, nothing persisted
	GRPCAddr    string `env:"STORYWEB_GRPC_ADDR" envDefault:":9090"`
	HTTPAddr    string `env:"STORYWEB_HTTP_ADDR" envDefault:":8080"`
	NATSURL     string `env:"STORYWEB_NATS_URL"`   // empty = in-process bus
	AuthToken   string `env:"STORYWEB_AUTH_TOKEN"` // empty = auth disabled
	LogLevel    string `env:"STORYWEB_LOG_LEVEL" envDefault:"info"`

	// PresenceIdle is how long an editor may go without saving before the
	// presence roster marks them idle.
	PresenceIdle time.Duration `env:"STORYWEB_PRESENCE_IDLE" envDefault:"15m"`

	// Sync settings
	SyncInterval   time.Duration `env:"STORYWEB_SYNC_INTERVAL" envDefault:"3m"` // 0 = disabled
	SyncS3Bucket   string        `env:"STORYWEB_SYNC_S3_BUCKET"`                // enables S3 when set
	SyncS3Endpoint string        `env:"STORYWEB_SYNC_S3_ENDPOINT"`              // custom endpoint for MinIO
	SyncS3Region   string        `env:"STORYWEB_SYNC_S3_REGION" envDefault:"us-east-1"`
	SyncS3Key      string        `env:"STORYWEB_SYNC_S3_KEY" envDefault:"storyweb/relationships.jsonl"`
	SyncS3History  bool          `env:"STORYWEB_SYNC_S3_HISTORY"` // also keep timestamped copies
	SyncGitRepo    string        `env:"STORYWEB_SYNC_GIT_REPO"`   // enables git when set; path to clone
	SyncGitFile    string        `env:"STORYWEB_SYNC_GIT_FILE" envDefault:"relationships.jsonl"`
	SyncGitBranch  string        `env:"STORYWEB_SYNC_GIT_BRANCH" envDefault:"main"`
}

// Load reads an optional .env file, then the STORYWEB_* environment.
// Variables already set in the environment win over the file.
func Load(dotenv ...string) (*Config, error) {
	if err := LoadDotEnv(dotenv...); err != nil {
		return nil, err
	}
	c := &Config{}
	if err := env.Parse(c); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if c.DatabaseURL == "" && !c.Memory {
		return nil, fmt.Errorf("STORYWEB_DATABASE_URL is required (or set STORYWEB_MEMORY=true)")
	}
	if c.PresenceIdle <= 0 {
		return nil, fmt.Errorf("STORYWEB_PRESENCE_IDLE must be positive")
	}
	if c.SyncInterval < 0 {
		return nil, fmt.Errorf("STORYWEB_SYNC_INTERVAL must not be negative")
	}
	return c, nil
}

// LoadDotEnv loads the given files (default ".env") into the environment.
// Missing files are not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}
