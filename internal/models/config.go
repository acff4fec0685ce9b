package models

// Config holds the application configuration
type Config struct {
	Discord   DiscordConfig   `json:"discord"`
	Notion    NotionConfig    `json:"notion"`
	Storage   StorageConfig   `json:"storage"`
	Backup    BackupConfig    `json:"backup"`
	Backfill  BackfillConfig  `json:"backfill"`
	Retry     RetryConfig     `json:"retry"`
	Throttle  ThrottleConfig  `json:"throttle"`
	Heartbeat HeartbeatConfig `json:"heartbeat"`
	Database  DatabaseConfig  `json:"database"`
	Server    ServerConfig    `json:"server"`
	Tracing   TracingConfig   `json:"tracing"`
	LogLevel  string          `json:"log_level"`

	RetentionDays int `json:"retentionDays"`
}

// DiscordConfig holds chat source related configuration
type DiscordConfig struct {
	Token      string   `json:"token"`
	APIBaseURL string   `json:"api_base_url"`
	GatewayURL string   `json:"gateway_url"`
	GuildID    string   `json:"guild_id"`
	ChannelIDs []string `json:"channel_ids"`
	TimeoutSec int      `json:"timeoutSec"`
}

// NotionConfig holds target store related configuration. The store is
// optional: with no token and database ID, messages are archived to the
// local backup only.
type NotionConfig struct {
	Token      string `json:"token"`
	DatabaseID string `json:"database_id"`
	APIBaseURL string `json:"api_base_url"`
	TimeoutSec int    `json:"timeoutSec"`
}

// Configured reports whether a store is set up at all.
func (n NotionConfig) Configured() bool {
	return n.Token != "" || n.DatabaseID != ""
}

// StorageConfig holds the Drive-like storage backend configuration. An empty
// UploadURL disables the backend; attachments then fall back to source URLs.
type StorageConfig struct {
	UploadURL  string `json:"upload_url"`
	AuthToken  string `json:"auth_token"`
	FolderID   string `json:"folder_id"`
	TimeoutSec int    `json:"timeoutSec"`
}

// BackupConfig holds local fallback persistence configuration
type BackupConfig struct {
	FilePath    string `json:"file_path"`
	MessageLog  string `json:"message_log"`
	BufferDir   string `json:"buffer_dir"`
	MaxContent  int    `json:"maxContentLength"`
	PrettyPrint bool   `json:"prettyPrint"`
}

// BackfillConfig bounds the historical archival window
type BackfillConfig struct {
	StartDate      string `json:"start_date"`
	HeartbeatEvery int    `json:"heartbeatEvery"`
	LingerSec      int    `json:"lingerSec"`
}

// RetryConfig holds rate-limit retry configuration
type RetryConfig struct {
	InitialBackoffSec int `json:"initialBackoffSec"`
	MaxBackoffSec     int `json:"maxBackoffSec"`
	MaxAttempts       int `json:"maxAttempts"`
}

// ThrottleConfig holds the proactive smoothing-delay configuration
type ThrottleConfig struct {
	BaseDelayMs int `json:"baseDelayMs"`
	JitterMs    int `json:"jitterMs"`
	MediumEvery int `json:"mediumEvery"`
	HeavyEvery  int `json:"heavyEvery"`
}

// HeartbeatConfig holds liveness ping configuration
type HeartbeatConfig struct {
	PingURL     string `json:"ping_url"`
	IntervalSec int    `json:"intervalSec"`
}

// DatabaseConfig holds archive index configuration
type DatabaseConfig struct {
	Path string `json:"path"`
}

// ServerConfig holds status server configuration
type ServerConfig struct {
	Port int `json:"port"`
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	Enabled      bool    `json:"enabled"`
	ServiceName  string  `json:"service_name"`
	Environment  string  `json:"environment"`
	OTLPEndpoint string  `json:"otlp_endpoint"`
	SampleRate   float64 `json:"sample_rate"`
	UseStdout    bool    `json:"use_stdout"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
