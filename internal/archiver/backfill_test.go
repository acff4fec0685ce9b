package archiver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"discarch/internal/heartbeat"
	"discarch/internal/throttle"
	"discarch/pkg/discord"
	"discarch/pkg/discord/types"
	"discarch/pkg/notion"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingRecorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *pingRecorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	r.paths = append(r.paths, req.URL.Path)
	r.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (r *pingRecorder) count(path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.paths {
		if p == path {
			n++
		}
	}
	return n
}

func fastPacer() *throttle.Pacer {
	return throttle.NewPacer(throttle.Config{
		BaseDelay:   time.Millisecond,
		MediumEvery: 50,
		HeavyEvery:  100,
	})
}

func noopPinger() *heartbeat.Pinger {
	return heartbeat.NewPinger("", time.Second, newTestLogger())
}

func historyMessage(id string, at time.Time) types.Message {
	return types.Message{
		ID:        id,
		ChannelID: "chan-1",
		Author:    types.User{Username: "someuser"},
		Content:   "message " + id,
		Timestamp: at,
	}
}

func TestBackfillArchivesAllChannels(t *testing.T) {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	source := &mockSource{
		guild: &types.Guild{ID: "guild-1", Name: "My Server"},
		channels: []types.Channel{
			{ID: "chan-1", Name: "general", Type: types.ChannelTypeGuildText},
			{ID: "chan-2", Name: "voice", Type: 2},
			{ID: "chan-3", Name: "news", Type: types.ChannelTypeGuildAnnouncement},
		},
		messages: map[string][]types.Message{
			"chan-1": {
				historyMessage("1", base),
				historyMessage("2", base.Add(time.Minute)),
			},
			"chan-3": {
				historyMessage("3", base.Add(2 * time.Minute)),
			},
		},
	}

	store := &mockStore{}
	arch, _ := newTestArchiver(t, store, nil)

	pacer := fastPacer()
	driver := NewBackfill(source, arch, pacer, noopPinger(), "guild-1", nil, base.Add(-time.Hour), 50, newTestLogger())
	stats, err := driver.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Channels)
	assert.Equal(t, 3, stats.Messages)
	assert.Equal(t, 3, stats.Archived)
	assert.Equal(t, 0, stats.Failed)
	assert.Equal(t, 3, store.createCount())
	assert.Equal(t, 3, pacer.Processed())
}

func TestBackfillContinuesPastFailedMessage(t *testing.T) {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	calls := 0
	store := &mockStore{}
	store.createFn = func(req *notion.CreatePageRequest) (*notion.Page, error) {
		calls++
		if calls == 1 {
			return nil, &notion.APIError{StatusCode: http.StatusInternalServerError, Message: "down"}
		}
		return &notion.Page{ID: "page-1"}, nil
	}

	// The backup path is a directory, so the first message loses both the
	// store and the fallback. The run must still reach the second message.
	attachments := NewAttachmentProcessor(t.TempDir(), nil, nil, newTestLogger())
	mapper := NewMapper(store, nil, attachments, 0, newTestLogger())
	backup := NewBackupWriter(t.TempDir(), true, newTestLogger())
	arch := NewArchiver(store, "db-1", nil, mapper, backup, fastBackoff(3), newTestLogger())

	source := &mockSource{
		guild: &types.Guild{ID: "guild-1", Name: "My Server"},
		channels: []types.Channel{
			{ID: "chan-1", Name: "general", Type: types.ChannelTypeGuildText},
		},
		messages: map[string][]types.Message{
			"chan-1": {
				historyMessage("1", base),
				historyMessage("2", base.Add(time.Minute)),
			},
		},
	}

	pacer := fastPacer()
	driver := NewBackfill(source, arch, pacer, noopPinger(), "guild-1", nil, base.Add(-time.Hour), 50, newTestLogger())
	stats, err := driver.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Messages)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Archived)
	assert.Equal(t, 1, stats.Channels)
	assert.Equal(t, 2, store.createCount())
	// Only the successfully processed message is paced.
	assert.Equal(t, 1, pacer.Processed())
}

func TestBackfillSkipsForbiddenChannel(t *testing.T) {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	source := &mockSource{
		guild: &types.Guild{ID: "guild-1", Name: "My Server"},
		channels: []types.Channel{
			{ID: "chan-1", Name: "secret", Type: types.ChannelTypeGuildText},
			{ID: "chan-2", Name: "general", Type: types.ChannelTypeGuildText},
		},
		messages: map[string][]types.Message{
			"chan-2": {historyMessage("1", base)},
		},
		channelErr: map[string]error{
			"chan-1": &discord.APIError{StatusCode: http.StatusForbidden, Message: "Missing Access"},
		},
	}

	store := &mockStore{}
	arch, _ := newTestArchiver(t, store, nil)

	driver := NewBackfill(source, arch, fastPacer(), noopPinger(), "guild-1", nil, base.Add(-time.Hour), 50, newTestLogger())
	stats, err := driver.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Channels)
	assert.Equal(t, 1, stats.Archived)
}

func TestBackfillAbortsOnGuildFailure(t *testing.T) {
	source := &mockSource{
		guildErr: fmt.Errorf("guild lookup failed"),
	}

	store := &mockStore{}
	arch, _ := newTestArchiver(t, store, nil)

	driver := NewBackfill(source, arch, fastPacer(), noopPinger(), "guild-1", nil, time.Now().Add(-time.Hour), 50, newTestLogger())
	_, err := driver.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to resolve guild")
	assert.Equal(t, 0, store.createCount())
}

func TestBackfillChannelFilter(t *testing.T) {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	source := &mockSource{
		guild: &types.Guild{ID: "guild-1", Name: "My Server"},
		channels: []types.Channel{
			{ID: "chan-1", Name: "general", Type: types.ChannelTypeGuildText},
			{ID: "chan-2", Name: "random", Type: types.ChannelTypeGuildText},
		},
		messages: map[string][]types.Message{
			"chan-1": {historyMessage("1", base)},
			"chan-2": {historyMessage("2", base)},
		},
	}

	store := &mockStore{}
	arch, _ := newTestArchiver(t, store, nil)

	driver := NewBackfill(source, arch, fastPacer(), noopPinger(), "guild-1", []string{"chan-2"}, base.Add(-time.Hour), 50, newTestLogger())
	stats, err := driver.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Channels)
	assert.Equal(t, 1, stats.Messages)
}

func TestBackfillHeartbeat(t *testing.T) {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	rec := &pingRecorder{}
	server := httptest.NewServer(rec)
	defer server.Close()
	pinger := heartbeat.NewPinger(server.URL, time.Second, newTestLogger())

	source := &mockSource{
		guild: &types.Guild{ID: "guild-1", Name: "My Server"},
		channels: []types.Channel{
			{ID: "chan-1", Name: "general", Type: types.ChannelTypeGuildText},
		},
		messages: map[string][]types.Message{
			"chan-1": {
				historyMessage("1", base),
				historyMessage("2", base.Add(time.Second)),
				historyMessage("3", base.Add(2*time.Second)),
				historyMessage("4", base.Add(3*time.Second)),
			},
		},
	}

	store := &mockStore{}
	arch, _ := newTestArchiver(t, store, nil)

	driver := NewBackfill(source, arch, fastPacer(), pinger, "guild-1", nil, base.Add(-time.Hour), 2, newTestLogger())
	_, err := driver.Run(context.Background())
	require.NoError(t, err)

	// One start ping, one every second message, one final success ping.
	assert.Equal(t, 1, rec.count("/start"))
	assert.Equal(t, 3, rec.count("/"))
}

func TestBackfillWindowExcludesOldMessages(t *testing.T) {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	source := &mockSource{
		guild: &types.Guild{ID: "guild-1", Name: "My Server"},
		channels: []types.Channel{
			{ID: "chan-1", Name: "general", Type: types.ChannelTypeGuildText},
		},
		messages: map[string][]types.Message{
			"chan-1": {
				historyMessage("old", base.Add(-48 * time.Hour)),
				historyMessage("new", base),
			},
		},
	}

	store := &mockStore{}
	arch, _ := newTestArchiver(t, store, nil)

	driver := NewBackfill(source, arch, fastPacer(), noopPinger(), "guild-1", nil, base.Add(-time.Hour), 50, newTestLogger())
	stats, err := driver.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Messages)
	require.Equal(t, 1, store.createCount())

	// The page that got created is for the in-window message.
	title := store.createCalls[0].Properties[notion.PropMessageID].(map[string]interface{})["title"].([]map[string]interface{})
	assert.Equal(t, "new", title[0]["text"].(map[string]interface{})["content"])
}
