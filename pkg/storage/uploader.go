package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"discarch/internal/constants"

	"github.com/sirupsen/logrus"
)

// Uploader sends a local file to a remote storage backend and returns a
// shareable link. Implementations are optional collaborators: the attachment
// processor falls back to source URLs when no uploader is configured or an
// upload fails.
type Uploader interface {
	Upload(ctx context.Context, localPath, filename string) (string, error)
}

// HTTPUploader uploads files to a Drive-like HTTP endpoint via multipart
// form and reads the shareable URL from the JSON response.
type HTTPUploader struct {
	uploadURL string
	authToken string
	folderID  string
	client    *http.Client
	logger    *logrus.Logger
}

type uploadResponse struct {
	URL   string `json:"url"`
	Error string `json:"error,omitempty"`
}

// NewHTTPUploader creates an uploader for the given endpoint.
func NewHTTPUploader(uploadURL, authToken, folderID string, httpClient *http.Client, logger *logrus.Logger) *HTTPUploader {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: time.Duration(constants.DefaultHTTPTimeoutSec) * time.Second}
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}

	return &HTTPUploader{
		uploadURL: strings.TrimSuffix(uploadURL, "/"),
		authToken: authToken,
		folderID:  folderID,
		client:    httpClient,
		logger:    logger,
	}
}

// Upload streams the file as a multipart form and returns the backend's
// shareable URL.
func (u *HTTPUploader) Upload(ctx context.Context, localPath, filename string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("failed to copy file content: %w", err)
	}
	if u.folderID != "" {
		if err := writer.WriteField("folderId", u.folderID); err != nil {
			return "", fmt.Errorf("failed to write folder field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.uploadURL, body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if u.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+u.authToken)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var result uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if result.URL == "" {
		return "", fmt.Errorf("upload response missing url: %s", result.Error)
	}

	u.logger.WithFields(logrus.Fields{
		"filename": filename,
	}).Debug("Uploaded file to storage backend")

	return result.URL, nil
}
