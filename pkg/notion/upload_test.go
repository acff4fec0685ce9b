package notion

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "photo.png")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestUploadFile(t *testing.T) {
	var slotCreated, contentSent bool

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/file_uploads", func(w http.ResponseWriter, r *http.Request) {
		slotCreated = true
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "2022-06-28", r.Header.Get("Notion-Version"))

		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "{}", string(body))

		json.NewEncoder(w).Encode(map[string]string{
			"id":         "upload-1",
			"upload_url": server.URL + "/file_uploads/upload-1/send",
		})
	})
	mux.HandleFunc("/file_uploads/upload-1/send", func(w http.ResponseWriter, r *http.Request) {
		contentSent = true
		require.NoError(t, r.ParseMultipartForm(1<<20))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()

		assert.Equal(t, "photo.png", header.Filename)
		content, _ := io.ReadAll(file)
		assert.Equal(t, "image-bytes", string(content))

		w.WriteHeader(http.StatusOK)
	})

	client := NewClient(server.URL, "secret", "db-1", nil, newTestLogger())
	ref, err := client.UploadFile(context.Background(), writeTempFile(t, "image-bytes"), "photo.png")
	require.NoError(t, err)

	assert.True(t, slotCreated)
	assert.True(t, contentSent)
	assert.Equal(t, "upload-1", ref.UploadID)
	assert.Equal(t, "photo.png", ref.Name)
}

func TestUploadFileSlotMissingFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"id": "upload-1"})
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret", "db-1", nil, newTestLogger())
	_, err := client.UploadFile(context.Background(), writeTempFile(t, "x"), "photo.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing id or upload URL")
}

func TestUploadFileSlotRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"code": "rate_limited", "message": "slow down"}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret", "db-1", nil, newTestLogger())
	_, err := client.UploadFile(context.Background(), writeTempFile(t, "x"), "photo.png")
	require.Error(t, err)
	assert.True(t, IsRateLimited(err))
}

func TestUploadFileTransferFailure(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/file_uploads", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"id":         "upload-1",
			"upload_url": server.URL + "/send",
		})
	})
	mux.HandleFunc("/send", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	client := NewClient(server.URL, "secret", "db-1", nil, newTestLogger())
	_, err := client.UploadFile(context.Background(), writeTempFile(t, "x"), "photo.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to send upload content")
}

func TestUploadFileMissingLocalFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"id":         "upload-1",
			"upload_url": "http://127.0.0.1:1/never",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret", "db-1", nil, newTestLogger())
	_, err := client.UploadFile(context.Background(), filepath.Join(t.TempDir(), "nope.png"), "nope.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read file")
}
