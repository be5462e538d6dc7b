package cli

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot/models"

	"github.com/neoclaw-ai/teledispatch/internal/updates"
)

func createTestHome(t *testing.T) string {
	t.Helper()
	homeDir := filepath.Join(t.TempDir(), ".teledispatch")
	t.Setenv("TELEDISPATCH_HOME", homeDir)
	return homeDir
}

func writeValidConfig(t *testing.T, homeDir string) {
	t.Helper()
	writeConfig(t, homeDir, `
[telegram]
token = "test-token"
poll_timeout = "1s"
`)
}

func writeConfig(t *testing.T, homeDir, body string) {
	t.Helper()
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(homeDir, "config.toml"), []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// fakeClient serves scripted updates once, then long-polls until canceled.
type fakeClient struct {
	mu      sync.Mutex
	pending []updates.Update
	sent    []string
}

func (c *fakeClient) Fetch(ctx context.Context, _ updates.FetchParams) ([]updates.Update, error) {
	c.mu.Lock()
	batch := c.pending
	c.pending = nil
	c.mu.Unlock()
	if len(batch) > 0 {
		return batch, nil
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func (c *fakeClient) GetMe(context.Context) (*models.User, error) {
	return &models.User{ID: 99, IsBot: true, Username: "test_bot"}, nil
}

func (c *fakeClient) SendText(_ context.Context, _ int64, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, text)
	return nil
}

func (c *fakeClient) SendHTML(ctx context.Context, chatID int64, html string) error {
	return c.SendText(ctx, chatID, html)
}

func (c *fakeClient) hasSent(text string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Contains(c.sent, text)
}

func textMessage(id int64, text string) updates.Update {
	upd, err := updates.FromPayload(&models.Update{
		ID: id,
		Message: &models.Message{
			ID:   int(id),
			Chat: models.Chat{ID: 42, Type: "private"},
			Text: text,
		},
	})
	if err != nil {
		panic(err)
	}
	return upd
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}
