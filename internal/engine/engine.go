package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/grishabot/grisha/internal/facts"
	"github.com/grishabot/grisha/internal/index"
	"github.com/grishabot/grisha/internal/learning"
	"github.com/grishabot/grisha/internal/model"
	"github.com/grishabot/grisha/internal/observability"
	"github.com/grishabot/grisha/internal/session"
)

const errorReply = "Извини, произошла ошибка. Попробуй еще раз."

// Words whose presence makes an extracted name count as a deliberate
// introduction rather than an incidental match.
var introductionMarkers = []string{"зовут", "имя", "я ", "меня"}

// Engine is the reply pipeline: it ties user facts, session history,
// retrieval, learning and the model together and turns an incoming message
// into one outgoing reply.
type Engine struct {
	facts   facts.Store
	session *session.Memory
	index   *index.Index
	learner *learning.Learner
	gen     model.Generator
	metrics *observability.Metrics
	logger  *log.Logger

	systemPrompt string
	params       model.Params
	clock        func() time.Time
}

// Options carries the engine's collaborators. Facts, Session, Index,
// Learner and Generator are required.
type Options struct {
	Facts        facts.Store
	Session      *session.Memory
	Index        *index.Index
	Learner      *learning.Learner
	Generator    model.Generator
	Metrics      *observability.Metrics
	Logger       *log.Logger
	SystemPrompt string
	Params       model.Params
	Clock        func() time.Time
}

func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		facts:        opts.Facts,
		session:      opts.Session,
		index:        opts.Index,
		learner:      opts.Learner,
		gen:          opts.Generator,
		metrics:      opts.Metrics,
		logger:       logger,
		systemPrompt: opts.SystemPrompt,
		params:       opts.Params,
		clock:        opts.Clock,
	}
}

// ProduceReply runs the whole pipeline for one incoming message and always
// returns something sendable. isGreeting marks a /start command: the user
// text is replaced by a canned opener and the turn is excluded from history
// and learning.
func (e *Engine) ProduceReply(ctx context.Context, chatID, userID int64, text string, isGreeting bool) string {
	e.facts.AddChat(ctx, userID, chatID)

	if name, ok := e.learner.ProcessIntroduction(userID, text); ok {
		e.facts.SetName(ctx, userID, name)
		if looksLikeIntroduction(text) {
			e.countReply("name_intro")
			return fmt.Sprintf("Привет, %s! Рад познакомиться. Я Гриша, чат-бот с ИИ.", name)
		}
	}

	if !isGreeting {
		if resp, ok := e.learner.FindSimilarPattern(text, learning.DefaultThreshold); ok {
			e.session.Append(chatID, session.RoleUser, text)
			e.session.Append(chatID, session.RoleAssistant, resp)
			e.countReply("fastpath")
			return resp
		}
	}

	prompt := e.buildPrompt(ctx, chatID, userID, text, isGreeting)

	start := time.Now()
	raw, err := e.gen.Generate(ctx, prompt, e.params)
	if e.metrics != nil {
		e.metrics.ObserveGenerationLatency(time.Since(start))
	}
	if err != nil {
		e.logger.Printf("engine: generation failed for chat %d: %v", chatID, err)
		e.countReply("fallback")
		return errorReply
	}

	reply := CleanResponse(raw)

	if !isGreeting {
		e.session.Append(chatID, session.RoleUser, text)
	}
	e.session.Append(chatID, session.RoleAssistant, reply)

	if !isGreeting {
		e.learner.Analyze(userID, text, reply)
		e.countReply("generated")
	} else {
		e.countReply("greeting")
	}
	return reply
}

// ClearHistory drops the session buffer for one chat.
func (e *Engine) ClearHistory(chatID int64) {
	e.session.Clear(chatID)
}

// Stats aggregates the state of the engine's collaborators for the stats
// surfaces.
type Stats struct {
	Chats    int            `json:"chats"`
	Users    int            `json:"users"`
	Index    index.Stats    `json:"index"`
	Learning learning.Stats `json:"learning"`
}

func (e *Engine) Stats() Stats {
	return Stats{
		Chats:    e.session.ChatCount(),
		Users:    e.facts.UserCount(),
		Index:    e.index.Stats(),
		Learning: e.learner.Stats(),
	}
}

func (e *Engine) countReply(path string) {
	if e.metrics != nil {
		e.metrics.RepliesSent.WithLabelValues(path).Inc()
	}
}

func looksLikeIntroduction(msg string) bool {
	lower := strings.ToLower(msg)
	for _, w := range introductionMarkers {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
