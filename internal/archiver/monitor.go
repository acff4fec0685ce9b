package archiver

import (
	"context"
	"fmt"
	"sync"

	"discarch/internal/privacy"
	"discarch/pkg/discord"
	"discarch/pkg/discord/types"

	"github.com/sirupsen/logrus"
)

// Monitor archives live messages as they arrive on the event gateway. It
// resolves channel names once up front and filters events down to the
// configured server and channels.
type Monitor struct {
	source     discord.Client
	archiver   *Archiver
	messageLog *LogWriter
	guildID    string
	channelIDs []string
	logger     *logrus.Logger

	mu           sync.RWMutex
	guildName    string
	channelNames map[string]string
}

// NewMonitor creates a live monitor. channelIDs narrows the watched channels;
// empty watches the whole server.
func NewMonitor(source discord.Client, archiver *Archiver, messageLog *LogWriter, guildID string, channelIDs []string, logger *logrus.Logger) *Monitor {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}
	return &Monitor{
		source:     source,
		archiver:   archiver,
		messageLog: messageLog,
		guildID:    guildID,
		channelIDs: channelIDs,
		logger:     logger,
	}
}

// Prepare resolves the server and channel names the handler needs. Must be
// called before HandleMessage sees any event.
func (m *Monitor) Prepare(ctx context.Context) error {
	guild, err := m.source.GetGuild(ctx, m.guildID)
	if err != nil {
		return fmt.Errorf("failed to resolve guild: %w", err)
	}

	channels, err := m.source.GetGuildChannels(ctx, m.guildID)
	if err != nil {
		return fmt.Errorf("failed to list channels: %w", err)
	}

	names := make(map[string]string, len(channels))
	for _, ch := range channels {
		if ch.TextCapable() {
			names[ch.ID] = ch.Name
		}
	}

	m.mu.Lock()
	m.guildName = guild.Name
	m.channelNames = names
	m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"guild":    guild.Name,
		"channels": len(names),
	}).Info("Monitoring live messages")

	return nil
}

// HandleMessage is the gateway dispatch target. Events outside the watched
// server or channels are dropped silently.
func (m *Monitor) HandleMessage(ctx context.Context, wire types.Message) {
	if wire.GuildID != "" && wire.GuildID != m.guildID {
		return
	}

	m.mu.RLock()
	guildName := m.guildName
	channelName, known := m.channelNames[wire.ChannelID]
	m.mu.RUnlock()

	if !known {
		return
	}
	if !m.watched(wire.ChannelID) {
		return
	}

	msg := FromDiscord(wire, m.guildID, guildName, channelName)

	if m.messageLog != nil {
		if err := m.messageLog.Append(&msg); err != nil {
			m.logger.WithError(err).Warn("Failed to write message log")
		}
	}

	result, err := m.archiver.Archive(ctx, &msg)
	if err != nil {
		m.logger.WithError(err).WithFields(logrus.Fields(privacy.MaskSensitiveFields(map[string]interface{}{
			"message_id": msg.ID,
			"author":     msg.Author,
		}))).Error("Failed to archive live message")
		return
	}

	m.logger.WithFields(logrus.Fields(privacy.MaskSensitiveFields(map[string]interface{}{
		"message_id": msg.ID,
		"author":     msg.Author,
		"channel":    channelName,
		"state":      string(result.State),
		"backed_up":  result.BackedUp,
	}))).Info("Archived live message")
}

func (m *Monitor) watched(channelID string) bool {
	if len(m.channelIDs) == 0 {
		return true
	}
	for _, id := range m.channelIDs {
		if id == channelID {
			return true
		}
	}
	return false
}
