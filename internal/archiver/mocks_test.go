package archiver

import (
	"context"
	"sync"
	"time"

	"discarch/pkg/discord/types"
	"discarch/pkg/notion"

	"github.com/sirupsen/logrus"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// mockStore is a scriptable notion.Client.
type mockStore struct {
	mu sync.Mutex

	findFn   func(messageID string) (*notion.Page, error)
	createFn func(req *notion.CreatePageRequest) (*notion.Page, error)
	updateFn func(pageID string, properties map[string]interface{}) (*notion.Page, error)
	uploadFn func(localPath, filename string) (*notion.FileUploadRef, error)

	findCalls   []string
	createCalls []*notion.CreatePageRequest
	updateCalls []string
	uploadCalls []string
}

func (m *mockStore) FindPageByMessageID(ctx context.Context, messageID string) (*notion.Page, error) {
	m.mu.Lock()
	m.findCalls = append(m.findCalls, messageID)
	m.mu.Unlock()
	if m.findFn != nil {
		return m.findFn(messageID)
	}
	return nil, nil
}

func (m *mockStore) CreatePage(ctx context.Context, req *notion.CreatePageRequest) (*notion.Page, error) {
	m.mu.Lock()
	m.createCalls = append(m.createCalls, req)
	m.mu.Unlock()
	if m.createFn != nil {
		return m.createFn(req)
	}
	return &notion.Page{ID: "page-1", URL: "https://www.notion.so/page1"}, nil
}

func (m *mockStore) UpdatePageProperties(ctx context.Context, pageID string, properties map[string]interface{}) (*notion.Page, error) {
	m.mu.Lock()
	m.updateCalls = append(m.updateCalls, pageID)
	m.mu.Unlock()
	if m.updateFn != nil {
		return m.updateFn(pageID, properties)
	}
	return &notion.Page{ID: pageID}, nil
}

func (m *mockStore) UploadFile(ctx context.Context, localPath, filename string) (*notion.FileUploadRef, error) {
	m.mu.Lock()
	m.uploadCalls = append(m.uploadCalls, filename)
	m.mu.Unlock()
	if m.uploadFn != nil {
		return m.uploadFn(localPath, filename)
	}
	return &notion.FileUploadRef{UploadID: "up-" + filename, Name: filename}, nil
}

func (m *mockStore) createCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.createCalls)
}

// mockSource is a scriptable discord.Client serving canned channel history.
type mockSource struct {
	guild      *types.Guild
	guildErr   error
	channels   []types.Channel
	chanErr    error
	messages   map[string][]types.Message
	channelErr map[string]error
}

func (m *mockSource) GetGuild(ctx context.Context, guildID string) (*types.Guild, error) {
	if m.guildErr != nil {
		return nil, m.guildErr
	}
	return m.guild, nil
}

func (m *mockSource) GetGuildChannels(ctx context.Context, guildID string) ([]types.Channel, error) {
	if m.chanErr != nil {
		return nil, m.chanErr
	}
	return m.channels, nil
}

func (m *mockSource) MessagesBetween(ctx context.Context, channelID string, start, end time.Time, fn func(types.Message) error) error {
	if err := m.channelErr[channelID]; err != nil {
		return err
	}
	for _, msg := range m.messages[channelID] {
		if msg.Timestamp.Before(start) || msg.Timestamp.After(end) {
			continue
		}
		if err := fn(msg); err != nil {
			return err
		}
	}
	return nil
}

// mockUploader is a scriptable storage.Uploader.
type mockUploader struct {
	uploadFn func(localPath, filename string) (string, error)
	calls    []string
}

func (m *mockUploader) Upload(ctx context.Context, localPath, filename string) (string, error) {
	m.calls = append(m.calls, filename)
	if m.uploadFn != nil {
		return m.uploadFn(localPath, filename)
	}
	return "https://drive.example.com/" + filename, nil
}
