package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClientGetUpdates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/bottoken123/getUpdates") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var params struct {
			Offset  int64 `json:"offset"`
			Timeout int   `json:"timeout"`
		}
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			t.Errorf("decode params: %v", err)
		}
		if params.Offset != 5 || params.Timeout != 30 {
			t.Errorf("params = %+v", params)
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":[{"update_id":5,"message":{"message_id":1,"text":"привет","chat":{"id":10,"type":"private"},"from":{"id":1}}}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "token123", 30*time.Second)
	updates, err := c.GetUpdates(context.Background(), 5, 30*time.Second)
	if err != nil {
		t.Fatalf("GetUpdates: %v", err)
	}
	if len(updates) != 1 || updates[0].Message.Text != "привет" {
		t.Fatalf("updates = %+v", updates)
	}
}

func TestClientAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"ok":false,"description":"Unauthorized"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bad", time.Second)
	if _, err := c.GetMe(context.Background()); err == nil || !strings.Contains(err.Error(), "Unauthorized") {
		t.Fatalf("expected Unauthorized error, got %v", err)
	}
}

func TestClientSendMessage(t *testing.T) {
	var got struct {
		ChatID  int64  `json:"chat_id"`
		Text    string `json:"text"`
		ReplyTo int64  `json:"reply_to_message_id"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode params: %v", err)
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "token123", time.Second)
	if err := c.SendMessage(context.Background(), 10, "ответ", 3); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if got.ChatID != 10 || got.Text != "ответ" || got.ReplyTo != 3 {
		t.Fatalf("params = %+v", got)
	}
}

func TestMessageChannelPostDetection(t *testing.T) {
	direct := &Message{SenderChat: &Chat{Type: "channel"}}
	if !direct.IsChannelPost() {
		t.Fatal("sender_chat channel must count as a post")
	}
	forwarded := &Message{ForwardOrigin: &ForwardOrigin{Type: "channel"}}
	if !forwarded.IsChannelPost() {
		t.Fatal("forwarded channel post must count as a post")
	}
	plain := &Message{From: &User{ID: 1}}
	if plain.IsChannelPost() {
		t.Fatal("ordinary message is not a post")
	}
}

func TestMessagePostTextAndMedia(t *testing.T) {
	m := &Message{Caption: "подпись", Photo: []PhotoSize{{FileID: "f"}}}
	if m.PostText() != "подпись" {
		t.Fatalf("PostText = %q", m.PostText())
	}
	if !m.HasMedia() {
		t.Fatal("photo counts as media")
	}
	doc := &Message{Document: &Document{FileID: "f", FileName: "отчет.pdf"}}
	if doc.PostText() != "отчет.pdf" {
		t.Fatalf("PostText = %q", doc.PostText())
	}
}
