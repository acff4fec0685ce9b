package archiver

import (
	"context"
	"time"

	"discarch/internal/database"
	"discarch/internal/metrics"
	"discarch/internal/models"
	"discarch/internal/retry"
	"discarch/internal/tracing"
	"discarch/pkg/notion"

	"github.com/sirupsen/logrus"
)

// Archiver turns chat messages into store pages. Page creation is retried
// only on the store's throttling signal; any other store failure sends the
// record to the local backup instead of losing it.
type Archiver struct {
	store      notion.Client
	databaseID string
	index      *database.Database
	mapper     *Mapper
	backup     *BackupWriter
	backoff    *retry.Backoff
	logger     *logrus.Logger
}

// NewArchiver wires the archival pipeline. index may be nil. store may also
// be nil; every record then goes straight to the local backup.
func NewArchiver(store notion.Client, databaseID string, index *database.Database, mapper *Mapper, backup *BackupWriter, backoff *retry.Backoff, logger *logrus.Logger) *Archiver {
	if backoff == nil {
		backoff = retry.NewBackoff(retry.DefaultBackoffConfig())
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}
	return &Archiver{
		store:      store,
		databaseID: databaseID,
		index:      index,
		mapper:     mapper,
		backup:     backup,
		backoff:    backoff,
		logger:     logger,
	}
}

// Archive processes one message end to end. Already-archived messages are
// skipped via the local index. A message whose page could not be created is
// appended to the backup file and reported with State StateFailed; the error
// return is reserved for failures of the backup fallback itself.
func (a *Archiver) Archive(ctx context.Context, msg *models.ChatMessage) (*models.ArchiveResult, error) {
	ctx, span := tracing.WithOtelTracing(ctx, "archiver.Archive")
	defer span.End()

	result := &models.ArchiveResult{MessageID: msg.ID}

	if a.index != nil {
		entry, err := a.index.GetEntryByMessageID(ctx, msg.ID)
		if err != nil {
			a.logger.WithError(err).WithField("message_id", msg.ID).Warn("Index lookup failed")
		} else if entry != nil {
			result.PageID = entry.PageID
			result.State = models.StateCreated
			result.Skipped = true
			metrics.IncrementCounter(metrics.MessagesSkipped, nil, "messages already archived")
			return result, nil
		}
	}

	// An index miss is not proof the message was never archived: retention
	// cleanup drops old index rows while the store keeps its pages. Ask the
	// store before creating a duplicate.
	if a.store != nil {
		page, err := a.store.FindPageByMessageID(ctx, msg.ID)
		if err != nil {
			a.logger.WithError(err).WithField("message_id", msg.ID).Warn("Store dedupe lookup failed")
		} else if page != nil {
			result.PageID = page.ID
			result.State = models.StateCreated
			result.Skipped = true
			metrics.IncrementCounter(metrics.MessagesSkipped, nil, "messages already archived")
			a.saveIndexEntry(ctx, msg, page.ID)
			return result, nil
		}
	}

	record, files, pending := a.mapper.Map(ctx, msg)
	defer a.mapper.attachments.Cleanup(files)

	if a.store == nil {
		a.logger.WithField("message_id", msg.ID).Debug("No store configured, writing backup")
		return a.writeBackup(record, result)
	}

	page, err := a.createPage(ctx, record)
	if err != nil {
		a.logger.WithError(err).WithField("message_id", msg.ID).Error("Page creation failed, writing backup")
		tracing.RecordError(ctx, err)
		return a.writeBackup(record, result)
	}

	result.PageID = page.ID
	result.State = models.StateCreated
	if pending {
		result.State = models.StatePendingAttachments
		a.reconcile(ctx, page.ID, record, files, result)
	}

	a.saveIndexEntry(ctx, msg, page.ID)

	metrics.IncrementCounter(metrics.MessagesArchived, nil, "messages archived to store")
	return result, nil
}

func (a *Archiver) saveIndexEntry(ctx context.Context, msg *models.ChatMessage, pageID string) {
	if a.index == nil {
		return
	}
	err := a.index.SaveEntry(ctx, &models.IndexEntry{
		MessageID:  msg.ID,
		PageID:     pageID,
		ChannelID:  msg.ChannelID,
		ArchivedAt: time.Now().UTC(),
	})
	if err != nil {
		a.logger.WithError(err).WithField("message_id", msg.ID).Warn("Failed to save index entry")
	}
}

// createPage creates the store page, retrying with capped exponential
// backoff while the store answers with its throttling signal. A third
// consecutive throttle abandons the message; any other error fails fast.
func (a *Archiver) createPage(ctx context.Context, record *models.ArchivedRecord) (*notion.Page, error) {
	var page *notion.Page

	start := time.Now()
	err := a.backoff.RetryWithPredicate(ctx, func() error {
		var callErr error
		page, callErr = a.store.CreatePage(ctx, notion.BuildPageRequest(record, a.databaseID))
		if notion.IsRateLimited(callErr) {
			metrics.IncrementCounter(metrics.RateLimitHits, map[string]string{"api": "notion"}, "store throttling responses")
		}
		return callErr
	}, notion.IsRateLimited)
	metrics.RecordTimer(metrics.NotionCallDuration, time.Since(start), map[string]string{"op": "create_page"}, "")

	if err != nil {
		return nil, err
	}
	return page, nil
}

// reconcile re-attempts store uploads for buffered files that failed during
// mapping and patches the page's file properties. Best effort: the record
// stays in StatePendingAttachments when uploads keep failing.
func (a *Archiver) reconcile(ctx context.Context, pageID string, record *models.ArchivedRecord, files []models.ProcessedFile, result *models.ArchiveResult) {
	byName := make(map[string]models.ProcessedFile, len(files))
	for _, f := range files {
		byName[f.Filename] = f
	}

	resolved := true
	for i, ref := range record.AttachedFiles {
		if ref.Uploaded() {
			continue
		}
		file, ok := byName[ref.Name]
		if !ok || file.BufferPath == "" {
			continue
		}

		uploaded, err := a.store.UploadFile(ctx, file.BufferPath, file.Filename)
		if err != nil {
			a.logger.WithError(err).WithFields(logrus.Fields{
				"message_id": record.MessageID,
				"filename":   file.Filename,
			}).Warn("Reconcile upload failed")
			resolved = false
			continue
		}
		record.AttachedFiles[i] = models.FileRef{Name: uploaded.Name, UploadID: uploaded.UploadID}
	}

	if !resolved {
		return
	}

	properties := map[string]interface{}{
		notion.PropFiles: notion.FilesProperty(record.AttachedFiles),
	}
	if len(record.PreviewFiles) > 0 {
		properties[notion.PropPreview] = notion.FilesProperty(record.PreviewFiles)
	}
	if _, err := a.store.UpdatePageProperties(ctx, pageID, properties); err != nil {
		a.logger.WithError(err).WithField("message_id", record.MessageID).Warn("Reconcile patch failed")
		return
	}

	result.State = models.StateReconciled
}

// writeBackup persists the record locally after the store refused it. The
// file references are dropped: uploads tied to the failed create are not
// reachable from a backup file anyway.
func (a *Archiver) writeBackup(record *models.ArchivedRecord, result *models.ArchiveResult) (*models.ArchiveResult, error) {
	record.AttachedFiles = nil
	record.PreviewFiles = nil

	if err := a.backup.Append(record); err != nil {
		result.State = models.StateFailed
		metrics.IncrementCounter(metrics.MessagesFailed, nil, "messages lost to store and backup failures")
		return result, err
	}

	result.State = models.StateFailed
	result.BackedUp = true
	metrics.IncrementCounter(metrics.MessagesBackedUp, nil, "messages persisted to local backup")
	return result, nil
}
