package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/grishabot/grisha/internal/config"
	"github.com/grishabot/grisha/internal/engine"
)

type fakeEngine struct {
	lastChatID int64
	lastText   string
	cleared    []int64
}

func (f *fakeEngine) ProduceReply(_ context.Context, chatID, _ int64, text string, _ bool) string {
	f.lastChatID = chatID
	f.lastText = text
	return "ответ на: " + text
}

func (f *fakeEngine) ClearHistory(chatID int64) {
	f.cleared = append(f.cleared, chatID)
}

func (f *fakeEngine) Stats() engine.Stats {
	return engine.Stats{Chats: 2, Users: 3}
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeEngine) {
	t.Helper()
	eng := &fakeEngine{}
	srv := New(config.Config{}, eng, nil)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, eng
}

func TestHealthEndpoints(t *testing.T) {
	ts, _ := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		res, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		res.Body.Close()
		if res.StatusCode != http.StatusOK {
			t.Fatalf("GET %s: status %d", path, res.StatusCode)
		}
	}
}

func TestStatsEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	res, err := http.Get(ts.URL + "/v1/stats")
	if err != nil {
		t.Fatalf("GET /v1/stats: %v", err)
	}
	defer res.Body.Close()

	var stats engine.Stats
	if err := json.NewDecoder(res.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Chats != 2 || stats.Users != 3 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestChatEndpoint(t *testing.T) {
	ts, eng := newTestServer(t)

	body := bytes.NewBufferString(`{"chat_id": 77, "user_id": 5, "text": "привет"}`)
	res, err := http.Post(ts.URL+"/v1/chat", "application/json", body)
	if err != nil {
		t.Fatalf("POST /v1/chat: %v", err)
	}
	defer res.Body.Close()

	var out chatResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Reply != "ответ на: привет" || out.ChatID != 77 {
		t.Fatalf("response = %+v", out)
	}
	if out.TurnID == "" {
		t.Fatal("turn id expected")
	}
	if eng.lastChatID != 77 || eng.lastText != "привет" {
		t.Fatalf("engine saw chat %d text %q", eng.lastChatID, eng.lastText)
	}
}

func TestChatEndpointAssignsDebugChat(t *testing.T) {
	ts, eng := newTestServer(t)

	body := bytes.NewBufferString(`{"text": "без чата"}`)
	res, err := http.Post(ts.URL+"/v1/chat", "application/json", body)
	if err != nil {
		t.Fatalf("POST /v1/chat: %v", err)
	}
	res.Body.Close()
	if eng.lastChatID >= 0 {
		t.Fatalf("debug chat id must be negative, got %d", eng.lastChatID)
	}
}

func TestChatEndpointRejectsEmptyText(t *testing.T) {
	ts, _ := newTestServer(t)

	res, err := http.Post(ts.URL+"/v1/chat", "application/json", bytes.NewBufferString(`{"text": "  "}`))
	if err != nil {
		t.Fatalf("POST /v1/chat: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", res.StatusCode)
	}
}

func TestClearHistoryEndpoint(t *testing.T) {
	ts, eng := newTestServer(t)

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/v1/chat/42/history", nil)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE history: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
	if len(eng.cleared) != 1 || eng.cleared[0] != 42 {
		t.Fatalf("cleared = %v", eng.cleared)
	}
}

func TestChatWebSocket(t *testing.T) {
	ts, _ := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(wsChatMessage{Text: "привет"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var out chatResponse
	if err := conn.ReadJSON(&out); err != nil {
		t.Fatalf("read: %v", err)
	}
	if out.Reply != "ответ на: привет" {
		t.Fatalf("reply = %q", out.Reply)
	}
	if out.ChatID >= 0 {
		t.Fatalf("ws chat id must be negative, got %d", out.ChatID)
	}
}
