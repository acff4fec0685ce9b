package discord

import (
	"fmt"
	"strconv"
	"time"
)

// discordEpochMs is the chat API's snowflake epoch (2015-01-01T00:00:00Z).
const discordEpochMs = 1420070400000

// SnowflakeFromTime builds a synthetic snowflake for a point in time, used as
// the exclusive lower bound when paginating message history.
func SnowflakeFromTime(t time.Time) string {
	ms := t.UnixMilli() - discordEpochMs
	if ms < 0 {
		ms = 0
	}
	return strconv.FormatUint(uint64(ms)<<22, 10)
}

// TimeFromSnowflake extracts the creation time encoded in a snowflake id.
func TimeFromSnowflake(id string) (time.Time, error) {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid snowflake %q: %w", id, err)
	}
	ms := int64(n>>22) + discordEpochMs
	return time.UnixMilli(ms).UTC(), nil
}

// ValidateSnowflake checks that an id looks like a snowflake: a decimal
// string that fits in 64 bits.
func ValidateSnowflake(id string) error {
	if id == "" {
		return fmt.Errorf("snowflake id cannot be empty")
	}
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		return fmt.Errorf("invalid snowflake %q: %w", id, err)
	}
	return nil
}
