package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/grishabot/grisha/internal/config"
	"github.com/grishabot/grisha/internal/engine"
	"github.com/grishabot/grisha/internal/observability"
)

// Engine is the reply pipeline as seen from the HTTP surface.
type Engine interface {
	ProduceReply(ctx context.Context, chatID, userID int64, text string, isGreeting bool) string
	ClearHistory(chatID int64)
	Stats() engine.Stats
}

// Server exposes health, metrics, stats and a debug chat surface. The chat
// endpoints talk to the same engine as Telegram, under synthetic chat ids,
// so behavior can be poked without a bot token.
type Server struct {
	cfg      config.Config
	engine   Engine
	metrics  *observability.Metrics
	upgrader websocket.Upgrader

	debugChatSeq atomic.Int64
}

func New(cfg config.Config, eng Engine, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:     cfg,
		engine:  eng,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only allow browser websocket connections from the same
				// origin unless explicitly opened up.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Get("/v1/stats", s.handleStats)
	r.Post("/v1/chat", s.handleChat)
	r.Delete("/v1/chat/{chatID}/history", s.handleClearHistory)
	r.Get("/v1/chat/ws", s.handleChatWS)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.engine.Stats())
}

type chatRequest struct {
	ChatID int64  `json:"chat_id"`
	UserID int64  `json:"user_id"`
	Text   string `json:"text"`
}

type chatResponse struct {
	TurnID string `json:"turn_id"`
	ChatID int64  `json:"chat_id"`
	Reply  string `json:"reply"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "missing_text", "text is required")
		return
	}
	if req.ChatID == 0 {
		req.ChatID = s.nextDebugChatID()
	}
	if req.UserID == 0 {
		req.UserID = req.ChatID
	}

	reply := s.engine.ProduceReply(r.Context(), req.ChatID, req.UserID, req.Text, false)
	respondJSON(w, http.StatusOK, chatResponse{
		TurnID: uuid.NewString(),
		ChatID: req.ChatID,
		Reply:  reply,
	})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	chatID, err := strconv.ParseInt(chi.URLParam(r, "chatID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_chat_id", err.Error())
		return
	}
	s.engine.ClearHistory(chatID)
	respondJSON(w, http.StatusOK, map[string]any{"status": "cleared", "chat_id": chatID})
}

type wsChatMessage struct {
	Text string `json:"text"`
}

// handleChatWS runs a debug conversation over a websocket: one JSON text
// message in, one reply out, all within a single synthetic chat.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	chatID := s.nextDebugChatID()
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadLimit(64 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Minute))

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		var msg wsChatMessage
		if err := json.Unmarshal(data, &msg); err != nil || strings.TrimSpace(msg.Text) == "" {
			continue
		}
		if s.metrics != nil {
			s.metrics.WSMessages.WithLabelValues("inbound").Inc()
		}

		reply := s.engine.ProduceReply(ctx, chatID, chatID, msg.Text, false)

		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(chatResponse{
			TurnID: uuid.NewString(),
			ChatID: chatID,
			Reply:  reply,
		}); err != nil {
			return
		}
		if s.metrics != nil {
			s.metrics.WSMessages.WithLabelValues("outbound").Inc()
		}
		_ = conn.SetReadDeadline(time.Now().Add(10 * time.Minute))
	}
}

// Debug chats live in the negative id space so they never collide with
// Telegram ids.
func (s *Server) nextDebugChatID() int64 {
	return -1_000_000_000 - s.debugChatSeq.Add(1)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
