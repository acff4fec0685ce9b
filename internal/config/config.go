package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"discarch/internal/constants"
	"discarch/internal/models"
	"discarch/internal/security"

	"github.com/joho/godotenv"
)

var (
	ErrMissingDiscordToken  = models.ConfigError{Message: "missing Discord token"}
	ErrMissingNotionToken   = models.ConfigError{Message: "missing Notion token"}
	ErrMissingNotionDB      = models.ConfigError{Message: "missing Notion database ID"}
	ErrMissingGuildID       = models.ConfigError{Message: "missing Discord guild ID"}
	ErrMissingDBPath        = models.ConfigError{Message: "missing database path"}
	ErrMissingBackupPath    = models.ConfigError{Message: "missing backup file path"}
	ErrInvalidBackfillStart = models.ConfigError{Message: "backfill start date must be RFC 3339"}
)

// LoadConfig reads the JSON configuration file, layers values from an
// optional .env file and environment variables on top, and fills defaults.
// Environment overrides win over file values so tokens never need to live
// in the config file.
func LoadConfig(path string) (*models.Config, error) {
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	file, err := os.ReadFile(path) // #nosec G304 - Path validated by security.ValidateFilePath above
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	// A missing .env is fine; explicit environment variables still apply.
	_ = godotenv.Load()

	applyEnvironmentOverrides(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(c *models.Config) error {
	if c.Discord.Token == "" {
		return ErrMissingDiscordToken
	}
	if c.Discord.GuildID == "" {
		return ErrMissingGuildID
	}
	// The store is optional as a whole, but a half-configured one is a
	// mistake worth surfacing.
	if c.Notion.Configured() {
		if c.Notion.Token == "" {
			return ErrMissingNotionToken
		}
		if c.Notion.DatabaseID == "" {
			return ErrMissingNotionDB
		}
	}
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}
	if c.Backup.FilePath == "" {
		return ErrMissingBackupPath
	}

	if c.Discord.APIBaseURL == "" {
		c.Discord.APIBaseURL = constants.DiscordAPIBaseURL
	}
	if c.Discord.GatewayURL == "" {
		c.Discord.GatewayURL = constants.DiscordGatewayURL
	}
	if c.Discord.TimeoutSec <= 0 {
		c.Discord.TimeoutSec = constants.DefaultHTTPTimeoutSec
	}
	if c.Notion.APIBaseURL == "" {
		c.Notion.APIBaseURL = constants.NotionAPIBaseURL
	}
	if c.Notion.TimeoutSec <= 0 {
		c.Notion.TimeoutSec = constants.DefaultHTTPTimeoutSec
	}
	if c.Storage.TimeoutSec <= 0 {
		c.Storage.TimeoutSec = constants.DefaultHTTPTimeoutSec
	}

	if c.Backup.BufferDir == "" {
		c.Backup.BufferDir = constants.DefaultDownloadBufferDir
	}
	if c.Backup.MaxContent <= 0 {
		c.Backup.MaxContent = constants.DefaultMaxContentLength
	}

	if c.Backfill.StartDate == "" {
		c.Backfill.StartDate = constants.DefaultBackfillStartDate
	}
	if _, err := time.Parse(time.RFC3339, c.Backfill.StartDate); err != nil {
		return ErrInvalidBackfillStart
	}
	if c.Backfill.HeartbeatEvery <= 0 {
		c.Backfill.HeartbeatEvery = constants.DefaultBackfillHeartbeatEvery
	}
	if c.Backfill.LingerSec <= 0 {
		c.Backfill.LingerSec = constants.DefaultBackfillLingerSec
	}

	if c.Retry.InitialBackoffSec <= 0 {
		c.Retry.InitialBackoffSec = constants.DefaultRetryInitialBackoffSec
	}
	if c.Retry.MaxBackoffSec <= 0 {
		c.Retry.MaxBackoffSec = constants.DefaultRetryMaxBackoffSec
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = constants.DefaultRetryMaxAttempts
	}

	if c.Throttle.BaseDelayMs <= 0 {
		c.Throttle.BaseDelayMs = constants.DefaultThrottleBaseDelayMs
	}
	if c.Throttle.JitterMs < 0 {
		c.Throttle.JitterMs = constants.DefaultThrottleJitterMs
	}
	if c.Throttle.MediumEvery <= 0 {
		c.Throttle.MediumEvery = constants.DefaultThrottleMediumEvery
	}
	if c.Throttle.HeavyEvery <= 0 {
		c.Throttle.HeavyEvery = constants.DefaultThrottleHeavyEvery
	}

	if c.Heartbeat.IntervalSec <= 0 {
		c.Heartbeat.IntervalSec = constants.DefaultHeartbeatIntervalSec
	}
	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = constants.DefaultRetentionDays
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	return nil
}

func applyEnvironmentOverrides(c *models.Config) {
	if token := os.Getenv("DISCORD_TOKEN"); token != "" {
		c.Discord.Token = token
	}
	if guild := os.Getenv("DISCORD_GUILD_ID"); guild != "" {
		c.Discord.GuildID = guild
	}
	if token := os.Getenv("NOTION_TOKEN"); token != "" {
		c.Notion.Token = token
	}
	if id := os.Getenv("NOTION_DATABASE_ID"); id != "" {
		c.Notion.DatabaseID = id
	}
	if url := os.Getenv("STORAGE_UPLOAD_URL"); url != "" {
		c.Storage.UploadURL = url
	}
	if token := os.Getenv("STORAGE_AUTH_TOKEN"); token != "" {
		c.Storage.AuthToken = token
	}
	if url := os.Getenv("HEARTBEAT_PING_URL"); url != "" {
		c.Heartbeat.PingURL = url
	}
	if path := os.Getenv("DB_PATH"); path != "" {
		c.Database.Path = path
	}
}
