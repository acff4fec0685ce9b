package archiver

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"discarch/internal/constants"
	"discarch/internal/database"
	"discarch/internal/models"
	"discarch/pkg/discord/types"
	"discarch/pkg/notion"

	"github.com/sirupsen/logrus"
)

var urlPattern = regexp.MustCompile(`https?://\S+`)

// Mapper translates chat messages into archived records: truncating content,
// resolving attachments and reply parents, and building the permalink.
type Mapper struct {
	store       notion.Client
	index       *database.Database
	attachments *AttachmentProcessor
	maxContent  int
	logger      *logrus.Logger
}

// NewMapper creates a mapper. index may be nil; reply resolution then always
// queries the store. store may also be nil, in which case attachment uploads
// are skipped and replies resolve through the index alone.
func NewMapper(store notion.Client, index *database.Database, attachments *AttachmentProcessor, maxContent int, logger *logrus.Logger) *Mapper {
	if maxContent <= 0 {
		maxContent = constants.DefaultMaxContentLength
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}
	return &Mapper{
		store:       store,
		index:       index,
		attachments: attachments,
		maxContent:  maxContent,
		logger:      logger,
	}
}

// FromDiscord converts one wire message into the archiver's message shape.
// The author is always rendered as "@name" regardless of discriminator.
func FromDiscord(msg types.Message, guildID, guildName, channelName string) models.ChatMessage {
	out := models.ChatMessage{
		ID:          msg.ID,
		Author:      "@" + msg.Author.Username,
		Content:     msg.Content,
		Timestamp:   msg.Timestamp,
		GuildID:     guildID,
		GuildName:   guildName,
		ChannelID:   msg.ChannelID,
		ChannelName: channelName,
		EmbedCount:  len(msg.Embeds),
	}
	if msg.GuildID != "" {
		out.GuildID = msg.GuildID
	}
	if msg.Reference != nil {
		out.ReplyToID = msg.Reference.MessageID
	}
	for _, att := range msg.Attachments {
		out.Attachments = append(out.Attachments, models.Attachment{
			Filename: att.Filename,
			URL:      att.URL,
			Size:     att.Size,
			Width:    att.Width,
			Height:   att.Height,
			MimeType: att.ContentType,
		})
	}
	return out
}

// Map builds the archived record for one message. It returns the processed
// attachment files, which the caller must clean up after the record has been
// persisted, and whether any attachment upload is still pending and needs the
// reconcile pass.
func (m *Mapper) Map(ctx context.Context, msg *models.ChatMessage) (*models.ArchivedRecord, []models.ProcessedFile, bool) {
	record := &models.ArchivedRecord{
		MessageID:  msg.ID,
		Author:     msg.Author,
		Timestamp:  msg.Timestamp,
		Server:     msg.GuildName,
		Channel:    msg.ChannelName,
		Content:    m.renderContent(msg.Content),
		MessageURL: fmt.Sprintf("%s/%s/%s/%s", types.PermalinkBase, msg.GuildID, msg.ChannelID, msg.ID),
		EmbedCount: msg.EmbedCount,
	}

	if url := urlPattern.FindString(msg.Content); url != "" {
		record.AttachedURL = url
	}

	files, pending := m.resolveAttachments(ctx, msg, record)

	if msg.ReplyToID != "" {
		m.resolveReply(ctx, msg.ReplyToID, record)
	}

	return record, files, pending
}

// renderContent truncates to the content limit in runes and substitutes the
// placeholder for empty content.
func (m *Mapper) renderContent(content string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return constants.NoContentPlaceholder
	}
	runes := []rune(content)
	if len(runes) > m.maxContent {
		return string(runes[:m.maxContent])
	}
	return content
}

// resolveAttachments downloads each attachment, pushes buffered content to
// the store's upload protocol, and fills the record's file references. A
// failed store upload leaves an external reference and marks the record for
// the reconcile pass.
func (m *Mapper) resolveAttachments(ctx context.Context, msg *models.ChatMessage, record *models.ArchivedRecord) ([]models.ProcessedFile, bool) {
	var files []models.ProcessedFile
	var pending bool

	for _, att := range msg.Attachments {
		file := m.attachments.Process(ctx, att)
		files = append(files, *file)

		ref := models.FileRef{Name: file.Filename, URL: file.FinalURL}
		if file.BufferPath != "" && m.store != nil {
			uploaded, err := m.store.UploadFile(ctx, file.BufferPath, file.Filename)
			if err != nil {
				m.logger.WithError(err).WithFields(logrus.Fields{
					"message_id": msg.ID,
					"filename":   file.Filename,
				}).Warn("Store upload failed, will reconcile")
				pending = true
			} else {
				ref = models.FileRef{Name: uploaded.Name, UploadID: uploaded.UploadID}
			}
		}
		record.AttachedFiles = append(record.AttachedFiles, ref)

		if file.IsImage {
			record.PreviewFiles = append(record.PreviewFiles, models.FileRef{
				Name: file.Filename,
				URL:  file.FinalURL,
			})
		}
	}

	return files, pending
}

// resolveReply finds the already-archived parent of a reply. The local index
// answers first; only a miss falls through to a store query. A parent that
// was never archived leaves the record without a reply link, which is why
// archival order matters.
func (m *Mapper) resolveReply(ctx context.Context, replyToID string, record *models.ArchivedRecord) {
	if m.index != nil {
		entry, err := m.index.GetEntryByMessageID(ctx, replyToID)
		if err != nil {
			m.logger.WithError(err).WithField("reply_to", replyToID).Warn("Index lookup failed")
		} else if entry != nil {
			record.ReplyToPageID = entry.PageID
			page := notion.Page{ID: entry.PageID}
			record.ReplyToURL = page.Permalink()
			return
		}
	}

	if m.store == nil {
		return
	}
	page, err := m.store.FindPageByMessageID(ctx, replyToID)
	if err != nil {
		m.logger.WithError(err).WithField("reply_to", replyToID).Warn("Store reply lookup failed")
		return
	}
	if page == nil {
		return
	}
	record.ReplyToPageID = page.ID
	record.ReplyToURL = page.Permalink()
}
