package models

import (
	"time"
)

// ChatMessage is one inbound message from the chat source. It is owned by the
// source; the archiver never mutates it.
type ChatMessage struct {
	ID          string       `json:"id"`
	Author      string       `json:"author"`
	Content     string       `json:"content"`
	Timestamp   time.Time    `json:"timestamp"`
	GuildID     string       `json:"guildId"`
	GuildName   string       `json:"guildName"`
	ChannelID   string       `json:"channelId"`
	ChannelName string       `json:"channelName"`
	Attachments []Attachment `json:"attachments,omitempty"`
	EmbedCount  int          `json:"embedCount,omitempty"`
	ReplyToID   string       `json:"replyToId,omitempty"`
}

// Attachment describes one file attached to a ChatMessage.
type Attachment struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Size     int64  `json:"size"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// UploadMethod records how an attachment ended up referenced in the store.
type UploadMethod string

const (
	// UploadMethodRemote means the file was re-uploaded to the storage backend.
	UploadMethodRemote UploadMethod = "remote"
	// UploadMethodSource means the original source URL is referenced as-is.
	UploadMethodSource UploadMethod = "source"
)

// ProcessedFile is the result of downloading (and optionally re-uploading) one
// attachment. BufferPath points at a temp file the caller must clean up once
// every consumer has run.
type ProcessedFile struct {
	Filename     string
	BufferPath   string
	Size         int64
	MimeType     string
	FinalURL     string
	UploadMethod UploadMethod
	IsImage      bool
}

// FileRef is one attachment entry on an ArchivedRecord: either an uploaded
// file identified by the store's opaque upload id, or an external URL.
type FileRef struct {
	Name     string `json:"name"`
	UploadID string `json:"uploadId,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Uploaded reports whether the reference points at a store-side upload rather
// than an external URL.
func (f FileRef) Uploaded() bool {
	return f.UploadID != ""
}

// ArchivedRecord is the canonical persisted shape of a ChatMessage. Created
// exactly once per message; never mutated afterwards except for the
// best-effort attachment reconcile pass.
type ArchivedRecord struct {
	MessageID     string    `json:"messageId"`
	Author        string    `json:"author"`
	Timestamp     time.Time `json:"timestamp"`
	Server        string    `json:"server"`
	Channel       string    `json:"channel"`
	Content       string    `json:"content"`
	AttachedURL   string    `json:"attachedUrl,omitempty"`
	MessageURL    string    `json:"messageUrl"`
	AttachedFiles []FileRef `json:"attachedFiles"`
	PreviewFiles  []FileRef `json:"previewFiles,omitempty"`
	ReplyToPageID string    `json:"replyToPageId,omitempty"`
	ReplyToURL    string    `json:"replyToUrl,omitempty"`
	EmbedCount    int       `json:"embedCount,omitempty"`
}

// ArchiveState tracks the two-phase create: a record whose late file uploads
// have not yet been attached sits in StatePendingAttachments until the
// reconcile step patches the page.
type ArchiveState string

const (
	StateCreated            ArchiveState = "created"
	StatePendingAttachments ArchiveState = "pending_attachments"
	StateReconciled         ArchiveState = "reconciled"
	StateFailed             ArchiveState = "failed"
)

// ArchiveResult reports what happened to a single message.
type ArchiveResult struct {
	MessageID string
	PageID    string
	State     ArchiveState
	BackedUp  bool
	Skipped   bool
}

// IndexEntry is one row of the local archive index, used for fast
// reply-parent lookups without touching the store.
type IndexEntry struct {
	ID         int64     `db:"id"`
	MessageID  string    `db:"message_id"`
	PageID     string    `db:"page_id"`
	ChannelID  string    `db:"channel_id"`
	ArchivedAt time.Time `db:"archived_at"`
	CreatedAt  time.Time `db:"created_at"`
}
