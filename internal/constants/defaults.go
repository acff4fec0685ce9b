package constants

// Default retry configuration values. The backoff doubles per attempt and is
// capped, so the delay sequence is 2s, 4s, 8s ... up to the cap.
const (
	DefaultRetryInitialBackoffSec = 2
	DefaultRetryMaxBackoffSec     = 60
	DefaultRetryMaxAttempts       = 3
	DefaultDatabaseRetryAttempts  = 3
	DefaultDatabaseBackoffMs      = 500
	DefaultDatabaseMaxBackoffMs   = 5000
)

// Default smoothing-delay configuration values
const (
	DefaultThrottleBaseDelayMs = 500
	DefaultThrottleJitterMs    = 300
	DefaultThrottleMediumEvery = 50
	DefaultThrottleHeavyEvery  = 100
)

// Default backfill configuration values
const (
	DefaultBackfillStartDate      = "2024-01-01T00:00:00Z"
	DefaultBackfillHeartbeatEvery = 50
	DefaultBackfillLingerSec      = 5
)

// Default content and download limits
const (
	DefaultMaxContentLength  = 2000
	DownloadChunkSize        = 8 * 1024
	NoContentPlaceholder     = "[no text content]"
	DefaultHistoryPageSize   = 100
	DefaultDownloadBufferDir = "./buffers"
)

// Default timeout values
const (
	DefaultHTTPTimeoutSec        = 30
	DefaultGatewayTimeoutSec     = 60
	DefaultGracefulShutdownSec   = 30
	DefaultHeartbeatIntervalSec  = 60
	DefaultServerPort            = 8082
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
	DefaultRetentionDays         = 30
)

// External API constants
const (
	DiscordAPIBaseURL = "https://discord.com/api/v10"
	DiscordGatewayURL = "wss://gateway.discord.gg/?v=10&encoding=json"
	NotionAPIBaseURL  = "https://api.notion.com/v1"
	NotionAPIVersion  = "2022-06-28"
	NotionPageHost    = "https://www.notion.so"
)

// Encryption parameters for the archive index
const (
	EncryptionSalt       = "discarch-db-salt-v1"
	EncryptionLookupSalt = "discarch-lookup-v1"
	EncryptionKeySize    = 32
	EncryptionNonceSize  = 12
	EncryptionIterations = 100000
)
