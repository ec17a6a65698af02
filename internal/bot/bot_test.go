package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/go-cmp/cmp"

	"sentiment_bot/internal/cache"
	"sentiment_bot/internal/config"
	"sentiment_bot/internal/model"
	"sentiment_bot/internal/provider"
	"sentiment_bot/internal/scheduler"
	"sentiment_bot/internal/storage"
	"sentiment_bot/internal/updater"
)

// --- mocks ---

type sentMsg struct {
	ChatID int64
	Text   string
	Markup any
}

type mockAPI struct {
	mu          sync.Mutex
	sent        []sentMsg
	titles      []string
	descs       []string
	callbacks   []string
	titleErr    error
	descErr     error
	stopCounter int
}

func (m *mockAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		m.mu.Lock()
		m.sent = append(m.sent, sentMsg{ChatID: msg.ChatID, Text: msg.Text, Markup: msg.ReplyMarkup})
		m.mu.Unlock()
	}
	return tgbotapi.Message{}, nil
}

func (m *mockAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch cfg := c.(type) {
	case tgbotapi.SetChatTitleConfig:
		m.titles = append(m.titles, cfg.Title)
		return &tgbotapi.APIResponse{Ok: m.titleErr == nil}, m.titleErr
	case tgbotapi.SetChatDescriptionConfig:
		m.descs = append(m.descs, cfg.Description)
		return &tgbotapi.APIResponse{Ok: m.descErr == nil}, m.descErr
	case tgbotapi.CallbackConfig:
		m.callbacks = append(m.callbacks, cfg.CallbackQueryID)
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (m *mockAPI) GetUpdatesChan(_ tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(tgbotapi.UpdatesChannel)
}

func (m *mockAPI) StopReceivingUpdates() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopCounter++
}

func (m *mockAPI) lastText() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return ""
	}
	return m.sent[len(m.sent)-1].Text
}

func (m *mockAPI) getTitles() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.titles...)
}

func (m *mockAPI) getDescs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.descs...)
}

type stubProvider struct{}

func (stubProvider) Name() string { return "m" }
func (stubProvider) AvailableKeys() []string {
	return []string{provider.KeyIndex, provider.KeyEmotion, provider.KeyEmoji, provider.KeyTrend, provider.KeyTimestamp}
}
func (stubProvider) Fetch(_ context.Context) model.Fields {
	return model.Fields{
		provider.KeyIndex:     42,
		provider.KeyEmotion:   "Fear",
		provider.KeyEmoji:     "😨",
		provider.KeyTrend:     provider.TrendRising,
		provider.KeyTimestamp: "2025-01-01T00:00:00Z",
	}
}

type fixedSchedule scheduler.Status

func (s fixedSchedule) Status() scheduler.Status { return scheduler.Status(s) }

// --- helpers ---

const groupID = int64(-1001)

func newTestBot(t *testing.T) (*Bot, *mockAPI, *storage.SQLite) {
	t.Helper()
	store, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	providers := []provider.Provider{stubProvider{}}
	api := &mockAPI{}
	b := &Bot{
		api:       api,
		store:     store,
		cfg:       &config.Config{},
		providers: providers,
		log:       log,
	}
	u := updater.New(cache.New(providers, log), store, b, log)
	b.Wire(u, fixedSchedule{})
	return b, api, store
}

func commandMessage(chatID int64, chatType string, userID int64, text string) *tgbotapi.Message {
	cmdLen := len(text)
	if i := strings.IndexByte(text, ' '); i >= 0 {
		cmdLen = i
	}
	return &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: chatID, Type: chatType},
		From:     &tgbotapi.User{ID: userID},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}},
	}
}

func requireContains(t *testing.T, got, want string) {
	t.Helper()
	if !strings.Contains(got, want) {
		t.Errorf("reply missing %q, got:\n%s", want, got)
	}
}

// --- handler tests ---

func TestHandleStart(t *testing.T) {
	b, api, _ := newTestBot(t)
	b.handleStart(100)
	requireContains(t, api.lastText(), "Welcome to Sentiment Bot")
}

func TestHandleHelp(t *testing.T) {
	b, api, _ := newTestBot(t)
	b.handleHelp(100)
	requireContains(t, api.lastText(), "/nickname")
	requireContains(t, api.lastText(), "/keys")
}

func TestHandleAbout(t *testing.T) {
	b, api, _ := newTestBot(t)
	b.handleAbout(100)
	requireContains(t, api.lastText(), "v"+Version)
	requireContains(t, api.lastText(), "{m.*}")
}

func TestHandleKeys(t *testing.T) {
	b, api, _ := newTestBot(t)
	b.handleKeys(100)
	requireContains(t, api.lastText(), "{m.index}")
	requireContains(t, api.lastText(), "{m.timestamp}")
}

func TestHandleCommandScopes(t *testing.T) {
	tests := []struct {
		name     string
		chatType string
		text     string
		want     string
	}{
		{name: "tenant command in private chat", chatType: "private", text: "/show", want: "only works in a group"},
		{name: "unknown command", chatType: "group", text: "/bogus", want: "Unknown command"},
		{name: "info command in private chat", chatType: "private", text: "/next", want: "disabled"},
		{name: "show in group", chatType: "supergroup", text: "/show", want: "template: F/G: {m.index}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, api, _ := newTestBot(t)
			b.handleCommand(context.Background(), commandMessage(groupID, tt.chatType, 1, tt.text))
			requireContains(t, api.lastText(), tt.want)
		})
	}
}

func TestAccessDenied(t *testing.T) {
	b, api, store := newTestBot(t)
	b.cfg = &config.Config{AllowedUsers: []int64{1}}

	b.handleUpdate(context.Background(), tgbotapi.Update{
		Message: commandMessage(groupID, "group", 2, "/nickname hacked"),
	})
	requireContains(t, api.lastText(), "Access denied")

	cfg, err := store.GetTenant(context.Background(), groupID)
	if err != nil {
		t.Fatalf("get tenant: %v", err)
	}
	if diff := cmp.Diff(model.DefaultNicknameTemplate, cfg.NicknameTemplate); diff != "" {
		t.Errorf("template changed by denied user (-want +got):\n%s", diff)
	}
}

func TestHandleShow(t *testing.T) {
	ctx := context.Background()
	b, api, store := newTestBot(t)
	next := time.Date(2025, 1, 2, 8, 0, 0, 0, time.UTC)
	b.Wire(b.updater, fixedSchedule{State: scheduler.StateIdle, Next: next})
	if err := store.SetTimezone(ctx, groupID, "Europe/Berlin"); err != nil {
		t.Fatalf("set timezone: %v", err)
	}

	b.handleShow(ctx, groupID)
	reply := api.lastText()
	requireContains(t, reply, "template: F/G: {m.index}")
	requireContains(t, reply, "preview:  F/G: 42")
	requireContains(t, reply, "preview:  Fear 😨")
	requireContains(t, reply, "Placeholders: {m.index}, {m.emotion}, {m.emoji}")
	requireContains(t, reply, "Timezone: Europe/Berlin")
	requireContains(t, reply, "Last update: never")
	requireContains(t, reply, "Next scheduled update: 2025-01-02 09:00 CET")
}

func TestHandleSetTemplate(t *testing.T) {
	ctx := context.Background()

	t.Run("empty args", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		b.handleSetTemplate(ctx, groupID, model.SlotNickname, "")
		requireContains(t, api.lastText(), "Usage: /nickname")
	})

	t.Run("nickname with preview", func(t *testing.T) {
		b, api, store := newTestBot(t)
		b.handleSetTemplate(ctx, groupID, model.SlotNickname, "{m.emoji} {m.index}")
		requireContains(t, api.lastText(), "Nickname template set to: {m.emoji} {m.index}")
		requireContains(t, api.lastText(), "Preview: 😨 42")

		cfg, _ := store.GetTenant(ctx, groupID)
		if diff := cmp.Diff("{m.emoji} {m.index}", cfg.NicknameTemplate); diff != "" {
			t.Errorf("stored template (-want +got):\n%s", diff)
		}
	})

	t.Run("unknown placeholder warns", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		b.handleSetTemplate(ctx, groupID, model.SlotStatus, "{x.index} {m.nope}")
		requireContains(t, api.lastText(), "unknown placeholders {x.index}, {m.nope}")
		requireContains(t, api.lastText(), "Preview: ?x? ?nope?")
	})

	t.Run("nickname too long", func(t *testing.T) {
		b, api, store := newTestBot(t)
		b.handleSetTemplate(ctx, groupID, model.SlotNickname, strings.Repeat("a", model.MaxNameLength+1))
		requireContains(t, api.lastText(), "too long")

		cfg, _ := store.GetTenant(ctx, groupID)
		if diff := cmp.Diff(model.DefaultNicknameTemplate, cfg.NicknameTemplate); diff != "" {
			t.Errorf("store changed on rejected template (-want +got):\n%s", diff)
		}
	})
}

func TestHandleTimezone(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		args string
		want string
	}{
		{name: "usage", args: "", want: "Usage: /timezone"},
		{name: "unknown", args: "Mars/Base", want: `Unknown timezone "Mars/Base"`},
		{name: "valid", args: "Asia/Tokyo", want: "Timezone set to Asia/Tokyo."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, api, _ := newTestBot(t)
			b.handleTimezone(ctx, groupID, tt.args)
			requireContains(t, api.lastText(), tt.want)
		})
	}
}

func TestResetViaCallback(t *testing.T) {
	ctx := context.Background()
	b, api, store := newTestBot(t)
	if err := store.SetTemplate(ctx, groupID, model.SlotStatus, "custom"); err != nil {
		t.Fatalf("set template: %v", err)
	}

	b.handleCommand(ctx, commandMessage(groupID, "group", 1, "/reset"))
	requireContains(t, api.lastText(), "Reset templates")

	b.handleUpdate(ctx, tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-1",
		From:    &tgbotapi.User{ID: 1},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: groupID, Type: "group"}},
		Data:    cmdReset,
	}})
	requireContains(t, api.lastText(), "reset to defaults")

	cfg, _ := store.GetTenant(ctx, groupID)
	if diff := cmp.Diff(model.DefaultStatusTemplate, cfg.StatusTemplate); diff != "" {
		t.Errorf("status template (-want +got):\n%s", diff)
	}
	api.mu.Lock()
	defer api.mu.Unlock()
	if diff := cmp.Diff([]string{"cb-1"}, api.callbacks); diff != "" {
		t.Errorf("callback acks (-want +got):\n%s", diff)
	}
}

func TestHandleForceUpdate(t *testing.T) {
	tests := []struct {
		name     string
		titleErr error
		descErr  error
		want     string
	}{
		{name: "both applied", want: "Update succeeded."},
		{name: "title unchanged counts as applied", titleErr: errors.New("Bad Request: chat title is not modified"), want: "Update succeeded."},
		{name: "title denied", titleErr: errors.New("Bad Request: not enough rights to change chat title"), want: "Update completed with some errors"},
		{name: "description denied", descErr: errors.New("Bad Request: not enough rights"), want: "Update completed with some errors"},
		{
			name:     "both failed",
			titleErr: errors.New("Bad Request: not enough rights"),
			descErr:  errors.New("Too Many Requests: retry after 5"),
			want:     "Update failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, api, _ := newTestBot(t)
			api.titleErr = tt.titleErr
			api.descErr = tt.descErr

			b.handleForceUpdate(context.Background(), groupID)
			requireContains(t, api.lastText(), tt.want)
			if diff := cmp.Diff([]string{"F/G: 42"}, api.getTitles()); diff != "" {
				t.Errorf("titles (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff([]string{"Fear 😨"}, api.getDescs()); diff != "" {
				t.Errorf("descriptions (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTargetLimits(t *testing.T) {
	ctx := context.Background()
	b, api, _ := newTestBot(t)

	if b.SetStatus(ctx, groupID, strings.Repeat("d", maxDescriptionLength+1)) {
		t.Error("over-long description should not be applied")
	}
	if !b.SetStatus(ctx, groupID, strings.Repeat("d", maxDescriptionLength)) {
		t.Error("description at limit should be applied")
	}
	if b.Rename(ctx, groupID, "   ") {
		t.Error("blank title should not be applied")
	}

	if diff := cmp.Diff(0, len(api.getTitles())); diff != "" {
		t.Errorf("title requests (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(1, len(api.getDescs())); diff != "" {
		t.Errorf("description requests (-want +got):\n%s", diff)
	}
}

func TestHandleMembership(t *testing.T) {
	ctx := context.Background()

	membership := func(chatType, oldStatus, newStatus string) *tgbotapi.ChatMemberUpdated {
		return &tgbotapi.ChatMemberUpdated{
			Chat:          tgbotapi.Chat{ID: groupID, Type: chatType, Title: "Traders"},
			OldChatMember: tgbotapi.ChatMember{Status: oldStatus},
			NewChatMember: tgbotapi.ChatMember{Status: newStatus},
		}
	}

	t.Run("added then kicked", func(t *testing.T) {
		b, api, store := newTestBot(t)

		b.handleMembership(ctx, membership("supergroup", "left", "member"))
		requireContains(t, api.lastText(), "Change group info")
		ids, _ := store.ListTenantIDs(ctx)
		if diff := cmp.Diff([]int64{groupID}, ids); diff != "" {
			t.Errorf("tenants after join (-want +got):\n%s", diff)
		}

		b.handleMembership(ctx, membership("supergroup", "member", "kicked"))
		ids, _ = store.ListTenantIDs(ctx)
		if len(ids) != 0 {
			t.Errorf("expected no tenants after kick, got %v", ids)
		}
	})

	t.Run("promotion does not re-welcome", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		b.handleMembership(ctx, membership("group", "member", "administrator"))
		if got := api.lastText(); got != "" {
			t.Errorf("unexpected message: %s", got)
		}
	})

	t.Run("private chat ignored", func(t *testing.T) {
		b, _, store := newTestBot(t)
		b.handleMembership(ctx, membership("private", "left", "member"))
		ids, _ := store.ListTenantIDs(ctx)
		if len(ids) != 0 {
			t.Errorf("private chat became a tenant: %v", ids)
		}
	})
}

func TestRunStopsOnCancel(t *testing.T) {
	b, api, _ := newTestBot(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	api.mu.Lock()
	defer api.mu.Unlock()
	if diff := cmp.Diff(1, api.stopCounter); diff != "" {
		t.Errorf("StopReceivingUpdates calls (-want +got):\n%s", diff)
	}
}
