package archiver

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"discarch/internal/models"

	"github.com/sirupsen/logrus"
)

// BackupWriter persists records the store rejected into a local JSON file.
// The file holds one pretty-printed array; each append re-reads and rewrites
// the whole file so the array stays valid JSON at every point in time. A
// malformed or missing file counts as empty rather than fatal: losing the old
// backup is better than losing the message that just failed.
type BackupWriter struct {
	mu          sync.Mutex
	filePath    string
	prettyPrint bool
	logger      *logrus.Logger
}

// NewBackupWriter creates a writer targeting the given file.
func NewBackupWriter(filePath string, prettyPrint bool, logger *logrus.Logger) *BackupWriter {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}
	return &BackupWriter{
		filePath:    filePath,
		prettyPrint: prettyPrint,
		logger:      logger,
	}
}

// Append adds one record to the backup file.
func (w *BackupWriter) Append(record *models.ArchivedRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	records := w.readAll()
	records = append(records, *record)

	var data []byte
	var err error
	if w.prettyPrint {
		data, err = json.MarshalIndent(records, "", "  ")
	} else {
		data, err = json.Marshal(records)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal backup records: %w", err)
	}

	if dir := filepath.Dir(w.filePath); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create backup directory: %w", err)
		}
	}
	if err := os.WriteFile(w.filePath, data, 0600); err != nil {
		return fmt.Errorf("failed to write backup file: %w", err)
	}
	return nil
}

// ReadAll returns every record currently in the backup file.
func (w *BackupWriter) ReadAll() []models.ArchivedRecord {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.readAll()
}

func (w *BackupWriter) readAll() []models.ArchivedRecord {
	data, err := os.ReadFile(w.filePath)
	if err != nil {
		if !os.IsNotExist(err) {
			w.logger.WithError(err).Warn("Failed to read backup file, starting fresh")
		}
		return nil
	}

	var records []models.ArchivedRecord
	if err := json.Unmarshal(data, &records); err != nil {
		w.logger.WithError(err).Warn("Backup file is malformed, starting fresh")
		return nil
	}
	return records
}

// LogWriter appends one human-readable line per archived message to a plain
// text log, mirroring what a reader would see in the channel.
type LogWriter struct {
	mu       sync.Mutex
	filePath string
}

// NewLogWriter creates a writer targeting the given file. An empty path
// disables logging.
func NewLogWriter(filePath string) *LogWriter {
	return &LogWriter{filePath: filePath}
}

// Append writes one line for the message.
func (w *LogWriter) Append(msg *models.ChatMessage) error {
	if w.filePath == "" {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	line := fmt.Sprintf("[%s] #%s %s: %s\n",
		msg.Timestamp.UTC().Format("2006-01-02 15:04:05"),
		msg.ChannelName,
		msg.Author,
		msg.Content,
	)

	f, err := os.OpenFile(w.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open message log: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("failed to write message log: %w", err)
	}
	return nil
}
