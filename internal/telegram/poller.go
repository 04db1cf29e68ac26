package telegram

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/grishabot/grisha/internal/observability"
)

const retryDelay = 3 * time.Second

var mentionRe = regexp.MustCompile(`@(\w+)`)

// API is the slice of the Bot API the poller uses.
type API interface {
	GetMe(ctx context.Context) (User, error)
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error)
	SendMessage(ctx context.Context, chatID int64, text string, replyTo int64) error
	SendChatAction(ctx context.Context, chatID int64, action string) error
}

// Responder produces the bot's reply to one message.
type Responder interface {
	ProduceReply(ctx context.Context, chatID, userID int64, text string, isGreeting bool) string
}

// Commenter handles channel posts in discussion groups.
type Commenter interface {
	CommentFor(ctx context.Context, groupID, postID int64, postText string, hasMedia bool) (string, bool)
	MarkCommented(groupID, postID int64, comment string)
}

// Poller pulls updates over long polling and routes them: private messages
// and addressed group messages go to the reply engine, channel posts go to
// the commenting system. Each update is handled on its own goroutine so a
// slow generation does not stall the poll loop.
type Poller struct {
	api         API
	engine      Responder
	comments    Commenter
	metrics     *observability.Metrics
	logger      *log.Logger
	pollTimeout time.Duration

	botID       int64
	botUsername string
	offset      int64
	wg          sync.WaitGroup
}

func NewPoller(api API, engine Responder, comments Commenter, metrics *observability.Metrics, logger *log.Logger, pollTimeout time.Duration) *Poller {
	if logger == nil {
		logger = log.Default()
	}
	return &Poller{
		api:         api,
		engine:      engine,
		comments:    comments,
		metrics:     metrics,
		logger:      logger,
		pollTimeout: pollTimeout,
	}
}

// Run polls until the context is cancelled, then waits for in-flight
// handlers to finish.
func (p *Poller) Run(ctx context.Context) error {
	me, err := p.api.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("identify bot: %w", err)
	}
	p.botID = me.ID
	p.botUsername = strings.ToLower(strings.TrimPrefix(me.Username, "@"))
	p.logger.Printf("telegram: polling as @%s (id %d)", p.botUsername, p.botID)

	for {
		if ctx.Err() != nil {
			break
		}
		updates, err := p.api.GetUpdates(ctx, p.offset, p.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			p.logger.Printf("telegram: getUpdates: %v", err)
			select {
			case <-ctx.Done():
			case <-time.After(retryDelay):
			}
			continue
		}
		for _, u := range updates {
			if u.UpdateID >= p.offset {
				p.offset = u.UpdateID + 1
			}
			update := u
			p.wg.Add(1)
			go func() {
				defer p.wg.Done()
				p.handleUpdate(ctx, update)
			}()
		}
	}

	p.wg.Wait()
	return nil
}

func (p *Poller) handleUpdate(ctx context.Context, u Update) {
	msg := u.Message
	if msg == nil {
		return
	}
	if p.metrics != nil {
		p.metrics.MessagesReceived.WithLabelValues(msg.Chat.Type).Inc()
	}

	if isGroupChat(msg.Chat.Type) && msg.IsChannelPost() {
		p.handleChannelPost(ctx, msg)
		return
	}
	p.handleChatMessage(ctx, msg)
}

func (p *Poller) handleChatMessage(ctx context.Context, msg *Message) {
	text := strings.TrimSpace(msg.Text)
	if text == "" || msg.From == nil || msg.From.IsBot {
		return
	}

	isStart := strings.HasPrefix(text, "/start")
	if strings.HasPrefix(text, "/") && !isStart {
		// No other commands are handled.
		return
	}
	if !isStart && !p.shouldRespond(msg) {
		return
	}

	if err := p.api.SendChatAction(ctx, msg.Chat.ID, "typing"); err != nil {
		p.logger.Printf("telegram: sendChatAction: %v", err)
	}

	reply := p.engine.ProduceReply(ctx, msg.Chat.ID, msg.From.ID, text, isStart)
	if err := p.api.SendMessage(ctx, msg.Chat.ID, reply, msg.MessageID); err != nil {
		p.logger.Printf("telegram: sendMessage to chat %d: %v", msg.Chat.ID, err)
	}
}

func (p *Poller) handleChannelPost(ctx context.Context, msg *Message) {
	comment, ok := p.comments.CommentFor(ctx, msg.Chat.ID, msg.MessageID, msg.PostText(), msg.HasMedia())
	if !ok {
		return
	}
	if err := p.api.SendMessage(ctx, msg.Chat.ID, comment, msg.MessageID); err != nil {
		p.logger.Printf("telegram: comment on post %d: %v", msg.MessageID, err)
		return
	}
	p.comments.MarkCommented(msg.Chat.ID, msg.MessageID, comment)
	if p.metrics != nil {
		p.metrics.CommentsPosted.WithLabelValues("sent").Inc()
	}
}

// shouldRespond decides whether an ordinary message is addressed to the
// bot. Private chats always qualify; in groups the message must mention
// the bot or reply to one of its messages.
func (p *Poller) shouldRespond(msg *Message) bool {
	if msg.Chat.Type == "private" {
		return true
	}
	if !isGroupChat(msg.Chat.Type) {
		return false
	}
	for _, m := range mentionRe.FindAllStringSubmatch(msg.Text, -1) {
		if strings.ToLower(m[1]) == p.botUsername && p.botUsername != "" {
			return true
		}
	}
	if msg.ReplyTo != nil && msg.ReplyTo.From != nil && msg.ReplyTo.From.ID == p.botID {
		return true
	}
	return false
}

func isGroupChat(chatType string) bool {
	return chatType == "group" || chatType == "supergroup"
}
