package archiver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"discarch/internal/constants"
	"discarch/internal/metrics"
	"discarch/internal/models"
	"discarch/internal/security"
	"discarch/pkg/storage"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AttachmentProcessor downloads message attachments into a local buffer
// directory and optionally re-uploads them to the storage backend. Every
// failure degrades to referencing the source URL; attachment trouble never
// fails the message.
type AttachmentProcessor struct {
	bufferDir string
	uploader  storage.Uploader
	client    *http.Client
	logger    *logrus.Logger
}

// NewAttachmentProcessor creates a processor. uploader may be nil, in which
// case every attachment resolves to its source URL.
func NewAttachmentProcessor(bufferDir string, uploader storage.Uploader, httpClient *http.Client, logger *logrus.Logger) *AttachmentProcessor {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: time.Duration(constants.DefaultHTTPTimeoutSec) * time.Second}
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}
	if bufferDir == "" {
		bufferDir = constants.DefaultDownloadBufferDir
	}

	return &AttachmentProcessor{
		bufferDir: bufferDir,
		uploader:  uploader,
		client:    httpClient,
		logger:    logger,
	}
}

// Process downloads one attachment and resolves its final URL. A failed
// download or upload falls back to the source URL; the returned file then has
// no buffer path. The caller owns the buffer file and must call Cleanup once
// every consumer is done with it.
func (p *AttachmentProcessor) Process(ctx context.Context, att models.Attachment) *models.ProcessedFile {
	filename := security.SanitizeFilename(att.Filename)
	file := &models.ProcessedFile{
		Filename:     filename,
		MimeType:     resolveMimeType(filename, att.MimeType),
		FinalURL:     att.URL,
		UploadMethod: models.UploadMethodSource,
		IsImage:      IsImageFilename(filename),
	}

	bufferPath, size, err := p.download(ctx, att.URL, filename)
	if err != nil {
		p.logger.WithError(err).WithFields(logrus.Fields{
			"filename": filename,
		}).Warn("Attachment download failed, referencing source URL")
		metrics.IncrementCounter(metrics.AttachmentsFallback, nil, "attachments referenced by source URL")
		return file
	}
	file.BufferPath = bufferPath
	file.Size = size

	if p.uploader == nil {
		return file
	}

	url, err := p.uploader.Upload(ctx, bufferPath, filename)
	if err != nil {
		p.logger.WithError(err).WithFields(logrus.Fields{
			"filename": filename,
		}).Warn("Storage upload failed, referencing source URL")
		metrics.IncrementCounter(metrics.AttachmentsFallback, nil, "attachments referenced by source URL")
		return file
	}

	file.FinalURL = url
	file.UploadMethod = models.UploadMethodRemote
	metrics.IncrementCounter(metrics.AttachmentsUploaded, nil, "attachments uploaded to storage backend")
	return file
}

// Cleanup removes the buffer files behind the processed attachments.
func (p *AttachmentProcessor) Cleanup(files []models.ProcessedFile) {
	for _, f := range files {
		if f.BufferPath == "" {
			continue
		}
		if err := os.Remove(f.BufferPath); err != nil && !os.IsNotExist(err) {
			p.logger.WithError(err).WithField("path", f.BufferPath).Warn("Failed to remove buffer file")
		}
	}
}

// download streams the attachment into the buffer directory in fixed-size
// chunks. The buffer file name is unique per download so concurrent messages
// with equally named attachments never collide.
func (p *AttachmentProcessor) download(ctx context.Context, url, filename string) (string, int64, error) {
	if url == "" {
		return "", 0, fmt.Errorf("attachment has no URL")
	}

	if err := os.MkdirAll(p.bufferDir, 0750); err != nil {
		return "", 0, fmt.Errorf("failed to create buffer directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("failed to download attachment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("attachment download returned status %d", resp.StatusCode)
	}

	bufferPath := filepath.Join(p.bufferDir, uuid.NewString()+"_"+filename)
	out, err := os.OpenFile(bufferPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create buffer file: %w", err)
	}

	buf := make([]byte, constants.DownloadChunkSize)
	size, err := io.CopyBuffer(out, resp.Body, buf)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(bufferPath)
		return "", 0, fmt.Errorf("failed to write buffer file: %w", err)
	}

	return bufferPath, size, nil
}

// IsImageFilename reports whether the filename's extension marks it for the
// record's preview field.
func IsImageFilename(filename string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	for _, imageExt := range constants.ImageExtensions {
		if ext == imageExt {
			return true
		}
	}
	return false
}

func resolveMimeType(filename, reported string) string {
	if reported != "" {
		return reported
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if mime, ok := constants.ExtensionMimeTypes[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}
