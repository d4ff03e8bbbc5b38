package sandbox

import (
	"time"

	"github.com/yungbote/companion-client/internal/platform/envutil"
)

// Config drives the simulated generation service.
type Config struct {
	Port string

	// DBDriver is "sqlite" or "postgres".
	DBDriver string
	DBDSN    string

	// JWTSecret enables bearer auth when set.
	JWTSecret string
	TokenTTL  time.Duration

	StartingPoints int
	PersonaCost    int
	DressCost      int
	VideoCost      int

	PersonaDuration time.Duration
	DressDuration   time.Duration
	VideoDuration   time.Duration

	// AssetBaseURL prefixes generated asset links; empty yields relative paths.
	AssetBaseURL string
	AllowOrigins []string
}

var defaultOrigins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}

func ConfigFromEnv() Config {
	return Config{
		Port:            envutil.String("SANDBOX_PORT", "8090"),
		DBDriver:        envutil.String("SANDBOX_DB_DRIVER", "sqlite"),
		DBDSN:           envutil.String("SANDBOX_DB_DSN", "file:sandbox.db?cache=shared"),
		JWTSecret:       envutil.String("SANDBOX_JWT_SECRET", ""),
		TokenTTL:        envutil.Duration("SANDBOX_TOKEN_TTL", 24*time.Hour),
		StartingPoints:  envutil.Int("SANDBOX_STARTING_POINTS", 500),
		PersonaCost:     envutil.Int("SANDBOX_PERSONA_COST", 100),
		DressCost:       envutil.Int("SANDBOX_DRESS_COST", 20),
		VideoCost:       envutil.Int("SANDBOX_VIDEO_COST", 50),
		PersonaDuration: envutil.Duration("SANDBOX_PERSONA_DURATION", 90*time.Second),
		DressDuration:   envutil.Duration("SANDBOX_DRESS_DURATION", 30*time.Second),
		VideoDuration:   envutil.Duration("SANDBOX_VIDEO_DURATION", 60*time.Second),
		AssetBaseURL:    envutil.String("SANDBOX_ASSET_BASE_URL", ""),
		AllowOrigins:    envutil.List("SANDBOX_ALLOW_ORIGINS", defaultOrigins),
	}
}

func (c Config) withDefaults() Config {
	if c.Port == "" {
		c.Port = "8090"
	}
	if c.DBDriver == "" {
		c.DBDriver = "sqlite"
	}
	if len(c.AllowOrigins) == 0 {
		c.AllowOrigins = defaultOrigins
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = 24 * time.Hour
	}
	return c
}
