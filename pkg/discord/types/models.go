package types

import (
	"encoding/json"
	"time"
)

// Channel types as defined by the chat API. Only text-capable channels are
// enumerated by the backfill driver.
const (
	ChannelTypeGuildText         = 0
	ChannelTypeGuildAnnouncement = 5
)

// Guild is the wire shape of a server object.
type Guild struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MemberCount int    `json:"approximate_member_count,omitempty"`
}

// Channel is the wire shape of a channel object.
type Channel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type int    `json:"type"`
}

// TextCapable reports whether message history can be read from the channel.
func (c Channel) TextCapable() bool {
	return c.Type == ChannelTypeGuildText || c.Type == ChannelTypeGuildAnnouncement
}

// User is the wire shape of a message author.
type User struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
}

// Attachment is the wire shape of a message attachment.
type Attachment struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	URL         string `json:"url"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// MessageReference points at the message being replied to.
type MessageReference struct {
	MessageID string `json:"message_id"`
	ChannelID string `json:"channel_id,omitempty"`
	GuildID   string `json:"guild_id,omitempty"`
}

// Message is the wire shape of a channel message.
type Message struct {
	ID          string            `json:"id"`
	ChannelID   string            `json:"channel_id"`
	GuildID     string            `json:"guild_id,omitempty"`
	Author      User              `json:"author"`
	Content     string            `json:"content"`
	Timestamp   time.Time         `json:"timestamp"`
	Attachments []Attachment      `json:"attachments"`
	Embeds      []json.RawMessage `json:"embeds"`
	Reference   *MessageReference `json:"message_reference,omitempty"`
}

// PermalinkBase is the canonical message URL prefix.
const PermalinkBase = "https://discord.com/channels"
