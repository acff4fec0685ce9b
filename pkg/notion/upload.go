package notion

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

	"github.com/sirupsen/logrus"
)

// FileUploadRef is the opaque handle returned by the store's upload protocol.
// It is embedded verbatim into a record's files property; it is not itself a
// fetchable URL.
type FileUploadRef struct {
	UploadID string
	Name     string
}

type createUploadResponse struct {
	ID        string `json:"id"`
	UploadURL string `json:"upload_url"`
}

// UploadFile runs the store's three-step upload protocol: create an upload
// slot, stream the file content to the slot's URL as a multipart form, and
// return the reference built from the slot id. Each step is a hard failure on
// a bad response; an abandoned slot from a failed transfer is not cleaned up.
// Retries are the caller's responsibility.
func (c *NotionClient) UploadFile(ctx context.Context, localPath, filename string) (*FileUploadRef, error) {
	slot, err := c.createUploadSlot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload slot: %w", err)
	}

	if err := c.sendUploadContent(ctx, slot, localPath, filename); err != nil {
		return nil, fmt.Errorf("failed to send upload content: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"uploadID": slot.ID,
		"filename": filename,
	}).Debug("File upload completed")

	return &FileUploadRef{UploadID: slot.ID, Name: filename}, nil
}

func (c *NotionClient) createUploadSlot(ctx context.Context) (*createUploadResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/file_uploads", strings.NewReader("{}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuthHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.apiError(resp)
	}

	var slot createUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&slot); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if slot.ID == "" || slot.UploadURL == "" {
		return nil, fmt.Errorf("upload slot response missing id or upload URL")
	}

	return &slot, nil
}

func (c *NotionClient) sendUploadContent(ctx context.Context, slot *createUploadResponse, localPath, filename string) error {
	content, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return fmt.Errorf("failed to write file content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, slot.UploadURL, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.setAuthHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Message: string(bodyBytes)}
	}

	return nil
}
