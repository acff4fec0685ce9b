package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"discarch/internal/migrations"
	"discarch/internal/models"
	"discarch/internal/security"

	_ "github.com/mattn/go-sqlite3"
)

// Database is the local archive index: one row per archived message, keyed by
// message id, pointing at the store page it became. Reply resolution consults
// this index before falling back to a store query.
type Database struct {
	db        *sql.DB
	encryptor *encryptor
}

func New(dbPath string) (*Database, error) {
	if len(dbPath) == 0 || dbPath[0] == '\x00' {
		return nil, fmt.Errorf("invalid database path")
	}

	if err := security.ValidateFilePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(migrations.InitialSchema()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	enc, err := newEncryptor()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	return &Database{db: db, encryptor: enc}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// SaveEntry records one archived message. Saving the same message id twice
// replaces the previous row; archival is create-once so this only happens on
// reprocessing.
func (d *Database) SaveEntry(ctx context.Context, entry *models.IndexEntry) error {
	encryptedMsgID, err := d.encryptor.Encrypt(entry.MessageID)
	if err != nil {
		return fmt.Errorf("failed to encrypt message ID: %w", err)
	}
	msgIDHash, err := d.encryptor.LookupHash(entry.MessageID)
	if err != nil {
		return fmt.Errorf("failed to hash message ID: %w", err)
	}
	encryptedPageID, err := d.encryptor.Encrypt(entry.PageID)
	if err != nil {
		return fmt.Errorf("failed to encrypt page ID: %w", err)
	}

	query := `
		INSERT OR REPLACE INTO archive_entries (
			message_id, page_id, channel_id, archived_at, message_id_hash
		) VALUES (?, ?, ?, ?, ?)
	`

	_, err = d.db.ExecContext(ctx, query,
		encryptedMsgID,
		encryptedPageID,
		entry.ChannelID,
		entry.ArchivedAt,
		msgIDHash,
	)
	if err != nil {
		return fmt.Errorf("failed to save archive entry: %w", err)
	}

	return nil
}

// GetEntryByMessageID looks up one entry by its source message id. Returns
// nil without error when the message was never archived.
func (d *Database) GetEntryByMessageID(ctx context.Context, messageID string) (*models.IndexEntry, error) {
	msgIDHash, err := d.encryptor.LookupHash(messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to hash message ID: %w", err)
	}

	query := `
		SELECT id, message_id, page_id, channel_id, archived_at, created_at
		FROM archive_entries
		WHERE message_id_hash = ?
	`

	var encryptedMsgID, encryptedPageID string
	entry := &models.IndexEntry{}

	err = d.db.QueryRowContext(ctx, query, msgIDHash).Scan(
		&entry.ID,
		&encryptedMsgID,
		&encryptedPageID,
		&entry.ChannelID,
		&entry.ArchivedAt,
		&entry.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get archive entry: %w", err)
	}

	entry.MessageID, err = d.encryptor.Decrypt(encryptedMsgID)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt message ID: %w", err)
	}
	entry.PageID, err = d.encryptor.Decrypt(encryptedPageID)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt page ID: %w", err)
	}

	return entry, nil
}

// CountEntries returns how many messages have been archived.
func (d *Database) CountEntries(ctx context.Context) (int64, error) {
	var count int64
	err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM archive_entries`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count archive entries: %w", err)
	}
	return count, nil
}

// CleanupOldEntries removes index rows older than the retention window. The
// store pages themselves are never touched.
func (d *Database) CleanupOldEntries(retentionDays int) error {
	query := `
		DELETE FROM archive_entries
		WHERE created_at < datetime('now', '-' || ? || ' days')
	`

	if _, err := d.db.Exec(query, retentionDays); err != nil {
		return fmt.Errorf("failed to cleanup old entries: %w", err)
	}

	return nil
}
