package archiver

import (
	"context"
	"fmt"
	"time"

	"discarch/internal/heartbeat"
	"discarch/internal/metrics"
	"discarch/internal/throttle"
	"discarch/pkg/discord"
	"discarch/pkg/discord/types"

	"github.com/sirupsen/logrus"
)

// BackfillStats summarizes one backfill run.
type BackfillStats struct {
	Channels int
	Messages int
	Archived int
	Skipped  int
	BackedUp int
	Failed   int
}

// Backfill walks a server's channel histories oldest-first from a fixed start
// date and archives every message. Channels the token cannot read are skipped
// and a message that cannot be archived is counted and left behind; only a
// failure to resolve the server itself aborts the run.
type Backfill struct {
	source         discord.Client
	archiver       *Archiver
	pacer          *throttle.Pacer
	pinger         *heartbeat.Pinger
	guildID        string
	channelIDs     []string
	start          time.Time
	heartbeatEvery int
	logger         *logrus.Logger
}

// NewBackfill creates a driver. channelIDs narrows the run to specific
// channels; empty means every text-capable channel in the server.
func NewBackfill(source discord.Client, archiver *Archiver, pacer *throttle.Pacer, pinger *heartbeat.Pinger, guildID string, channelIDs []string, start time.Time, heartbeatEvery int, logger *logrus.Logger) *Backfill {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}
	return &Backfill{
		source:         source,
		archiver:       archiver,
		pacer:          pacer,
		pinger:         pinger,
		guildID:        guildID,
		channelIDs:     channelIDs,
		start:          start,
		heartbeatEvery: heartbeatEvery,
		logger:         logger,
	}
}

// Run executes the backfill and returns its statistics.
func (b *Backfill) Run(ctx context.Context) (*BackfillStats, error) {
	stats := &BackfillStats{}

	b.pinger.Start(ctx)

	guild, err := b.source.GetGuild(ctx, b.guildID)
	if err != nil {
		b.pinger.Fail(ctx)
		return stats, fmt.Errorf("failed to resolve guild: %w", err)
	}

	channels, err := b.source.GetGuildChannels(ctx, b.guildID)
	if err != nil {
		b.pinger.Fail(ctx)
		return stats, fmt.Errorf("failed to list channels: %w", err)
	}

	end := time.Now().UTC()
	for _, channel := range b.selectChannels(channels) {
		chLogger := b.logger.WithFields(logrus.Fields{
			"guild":   guild.Name,
			"channel": channel.Name,
		})
		chLogger.Info("Backfilling channel")

		err := b.walkChannel(ctx, guild, channel, end, stats)
		if discord.IsForbidden(err) {
			chLogger.Warn("Channel not readable, skipping")
			continue
		}
		if err != nil {
			b.pinger.Fail(ctx)
			return stats, fmt.Errorf("failed to backfill channel %s: %w", channel.Name, err)
		}

		stats.Channels++
		metrics.SetGauge("backfill_channels_done", float64(stats.Channels), nil, "channels completed this run")
	}

	b.pinger.Ping(ctx)
	b.logger.WithFields(logrus.Fields{
		"channels":  stats.Channels,
		"messages":  stats.Messages,
		"archived":  stats.Archived,
		"skipped":   stats.Skipped,
		"backed_up": stats.BackedUp,
		"failed":    stats.Failed,
	}).Info("Backfill completed")

	return stats, nil
}

// walkChannel archives one channel's history. A message that fails both the
// store and the backup fallback is logged and counted, never fatal; the error
// return is reserved for history fetches and context cancellation.
func (b *Backfill) walkChannel(ctx context.Context, guild *types.Guild, channel types.Channel, end time.Time, stats *BackfillStats) error {
	return b.source.MessagesBetween(ctx, channel.ID, b.start, end, func(wire types.Message) error {
		msg := FromDiscord(wire, guild.ID, guild.Name, channel.Name)
		stats.Messages++

		result, err := b.archiver.Archive(ctx, &msg)
		if err != nil {
			stats.Failed++
			b.logger.WithError(err).WithFields(logrus.Fields{
				"channel":    channel.Name,
				"message_id": wire.ID,
			}).Error("Message could not be archived or backed up, continuing")
		} else {
			switch {
			case result.Skipped:
				stats.Skipped++
			case result.BackedUp:
				stats.BackedUp++
			default:
				stats.Archived++
			}
			// Smoothing applies after each successfully processed item;
			// skipped items are not paced.
			if !result.Skipped {
				if err := b.pacer.Wait(ctx); err != nil {
					return err
				}
			}
		}

		if b.heartbeatEvery > 0 && stats.Messages%b.heartbeatEvery == 0 {
			b.pinger.Ping(ctx)
		}
		return nil
	})
}

// selectChannels keeps text-capable channels, narrowed to the configured IDs
// when a filter is set.
func (b *Backfill) selectChannels(channels []types.Channel) []types.Channel {
	allowed := make(map[string]bool, len(b.channelIDs))
	for _, id := range b.channelIDs {
		allowed[id] = true
	}

	var out []types.Channel
	for _, ch := range channels {
		if !ch.TextCapable() {
			continue
		}
		if len(allowed) > 0 && !allowed[ch.ID] {
			continue
		}
		out = append(out, ch)
	}
	return out
}
