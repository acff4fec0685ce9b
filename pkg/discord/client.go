package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"discarch/internal/constants"
	"discarch/internal/metrics"
	"discarch/pkg/discord/types"

	"github.com/sirupsen/logrus"
)

// Client is the subset of the chat source's REST API the archiver needs.
type Client interface {
	GetGuild(ctx context.Context, guildID string) (*types.Guild, error)
	GetGuildChannels(ctx context.Context, guildID string) ([]types.Channel, error)
	MessagesBetween(ctx context.Context, channelID string, start, end time.Time, fn func(types.Message) error) error
}

// APIError is a non-2xx response from the chat API.
type APIError struct {
	StatusCode int
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("discord API error: status %d: %s", e.StatusCode, e.Message)
}

// IsForbidden reports whether the error means the channel or guild cannot be
// read with the current token. The backfill driver skips those channels.
func IsForbidden(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusForbidden
	}
	return false
}

// DiscordClient is a REST client authenticated with a user token.
type DiscordClient struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *logrus.Logger
}

// NewClient creates a chat source client.
func NewClient(baseURL, token string, httpClient *http.Client, logger *logrus.Logger) *DiscordClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: time.Duration(constants.DefaultHTTPTimeoutSec) * time.Second}
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}
	if baseURL == "" {
		baseURL = constants.DiscordAPIBaseURL
	}

	return &DiscordClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		client:  httpClient,
		logger:  logger,
	}
}

// GetGuild resolves a server by id.
func (c *DiscordClient) GetGuild(ctx context.Context, guildID string) (*types.Guild, error) {
	var guild types.Guild
	endpoint := fmt.Sprintf("%s/guilds/%s", c.baseURL, url.PathEscape(guildID))
	if err := c.getJSON(ctx, endpoint, &guild); err != nil {
		return nil, fmt.Errorf("failed to get guild: %w", err)
	}
	return &guild, nil
}

// GetGuildChannels lists all channels of a server.
func (c *DiscordClient) GetGuildChannels(ctx context.Context, guildID string) ([]types.Channel, error) {
	var channels []types.Channel
	endpoint := fmt.Sprintf("%s/guilds/%s/channels", c.baseURL, url.PathEscape(guildID))
	if err := c.getJSON(ctx, endpoint, &channels); err != nil {
		return nil, fmt.Errorf("failed to get guild channels: %w", err)
	}
	return channels, nil
}

// ListMessages fetches one page of channel history strictly after the given
// snowflake, oldest first.
func (c *DiscordClient) ListMessages(ctx context.Context, channelID, after string, limit int) ([]types.Message, error) {
	if limit <= 0 || limit > constants.DefaultHistoryPageSize {
		limit = constants.DefaultHistoryPageSize
	}

	endpoint := fmt.Sprintf("%s/channels/%s/messages?limit=%d", c.baseURL, url.PathEscape(channelID), limit)
	if after != "" {
		endpoint += "&after=" + url.QueryEscape(after)
	}

	var page []types.Message
	if err := c.getJSON(ctx, endpoint, &page); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	// The API returns newest first; history consumers want oldest first.
	sort.Slice(page, func(i, j int) bool {
		return page[i].Timestamp.Before(page[j].Timestamp)
	})

	return page, nil
}

// MessagesBetween walks a channel's history inside [start, end] oldest-first,
// invoking fn for each message. A non-nil error from fn stops the walk.
func (c *DiscordClient) MessagesBetween(ctx context.Context, channelID string, start, end time.Time, fn func(types.Message) error) error {
	after := SnowflakeFromTime(start)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		page, err := c.ListMessages(ctx, channelID, after, constants.DefaultHistoryPageSize)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return nil
		}

		for _, msg := range page {
			if msg.Timestamp.After(end) {
				return nil
			}
			if err := fn(msg); err != nil {
				return err
			}
		}

		after = page[len(page)-1].ID
	}
}

func (c *DiscordClient) getJSON(ctx context.Context, endpoint string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", c.token)

	started := time.Now()
	resp, err := c.client.Do(req)
	metrics.RecordTimer(metrics.DiscordCallDuration, time.Since(started), nil, "chat API request duration")
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = string(body)
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
