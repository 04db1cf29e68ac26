package commenting

import (
	"context"
	"log"
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/grishabot/grisha/internal/model"
	"github.com/grishabot/grisha/internal/observability"
	"github.com/grishabot/grisha/internal/patterns"
)

const (
	commentSystemPrompt = "Ты — Гриша, чат-бот. Ты видишь пост в канале.\nОтвечай коротко и естественно, как в обычном диалоге."

	minCommentRunes = 3
	maxCommentRunes = 250
)

var mediaFallbacks = []string{
	"Отличное фото!",
	"Хорошая картинка!",
	"Интересно!",
	"Класс!",
	"👍",
	"👌",
	"😊",
	"Интересный визуал!",
	"Спасибо за пост!",
}

var textFallbacks = []string{
	"Интересная мысль!",
	"Спасибо за пост!",
	"Хороший материал!",
	"Полезная информация!",
	"Заставляет задуматься!",
	"Согласен!",
	"Интересно!",
	"Хорошо сказано!",
}

// Decorative posts not worth commenting on.
var skipPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\.\.\.+$`),
	regexp.MustCompile(`^---+$`),
	regexp.MustCompile(`^\[.*\]$`),
}

var commentTagRe = regexp.MustCompile(`<\|[^>]+\|>`)
var commentSpaceRe = regexp.MustCompile(`\s+`)

// Config controls which channel posts get commented on.
type Config struct {
	EnabledGroups []int64
	MinPostLength int
	MaxPerHour    int
	MediaPosts    bool
}

// System writes one short reaction under each fresh channel post in the
// discussion groups it is enabled for.
type System struct {
	cfg     Config
	history *History
	gen     model.Generator
	params  model.Params
	metrics *observability.Metrics
	logger  *log.Logger

	mu     sync.Mutex
	recent []time.Time
	clock  func() time.Time
}

func NewSystem(cfg Config, history *History, gen model.Generator, params model.Params, metrics *observability.Metrics, logger *log.Logger) *System {
	if logger == nil {
		logger = log.Default()
	}
	return &System{
		cfg:     cfg,
		history: history,
		gen:     gen,
		params:  params,
		metrics: metrics,
		logger:  logger,
		clock:   time.Now,
	}
}

// CommentFor decides whether the post deserves a comment and produces one.
// The caller sends it and then confirms with MarkCommented.
func (s *System) CommentFor(ctx context.Context, groupID, postID int64, postText string, hasMedia bool) (string, bool) {
	if !s.groupEnabled(groupID) {
		return "", false
	}
	if s.shouldSkipPost(postText) {
		s.countOutcome("skipped")
		return "", false
	}
	if hasMedia && !s.cfg.MediaPosts {
		s.countOutcome("skipped")
		return "", false
	}
	if s.history.Contains(groupID, postID) {
		return "", false
	}
	if !s.underRateLimit() {
		s.countOutcome("rate_limited")
		return "", false
	}

	comment := s.generate(ctx, postText, hasMedia)
	if utf8.RuneCountInString(strings.TrimSpace(comment)) < 2 {
		return "", false
	}
	return comment, true
}

// MarkCommented records a successfully sent comment for dedup and the rate
// limit.
func (s *System) MarkCommented(groupID, postID int64, comment string) {
	s.history.Add(groupID, postID, comment)
	s.mu.Lock()
	s.recent = append(s.recent, s.clock())
	s.mu.Unlock()
}

func (s *System) generate(ctx context.Context, postText string, hasMedia bool) string {
	prompt := "<|im_start|>system\n" + commentSystemPrompt + "\n<|im_end|>\n\n" +
		"<|im_start|>user\n" + postText + "\n<|im_end|>\n\n" +
		"<|im_start|>assistant\n"

	raw, err := s.gen.Generate(ctx, prompt, s.params)
	if err != nil {
		s.logger.Printf("commenting: generation failed: %v", err)
		s.countOutcome("fallback")
		return s.fallbackComment(hasMedia)
	}

	comment := cleanComment(raw)
	if utf8.RuneCountInString(strings.TrimSpace(comment)) <= minCommentRunes {
		s.countOutcome("fallback")
		return s.fallbackComment(hasMedia)
	}
	s.countOutcome("generated")
	return patterns.Truncate(comment, maxCommentRunes)
}

func (s *System) fallbackComment(hasMedia bool) string {
	pool := textFallbacks
	if hasMedia {
		pool = mediaFallbacks
	}
	return pool[rand.Intn(len(pool))]
}

func (s *System) groupEnabled(groupID int64) bool {
	for _, id := range s.cfg.EnabledGroups {
		if id == groupID {
			return true
		}
	}
	return false
}

func (s *System) shouldSkipPost(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return true
	}
	if strings.HasPrefix(text, "/") {
		return true
	}
	minLen := s.cfg.MinPostLength
	if minLen <= 0 {
		minLen = minCommentRunes
	}
	if utf8.RuneCountInString(text) < minLen {
		return true
	}
	for _, re := range skipPatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// underRateLimit prunes send timestamps older than an hour and checks the
// hourly budget. Zero or negative MaxPerHour disables the limit.
func (s *System) underRateLimit() bool {
	if s.cfg.MaxPerHour <= 0 {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.clock().Add(-time.Hour)
	kept := s.recent[:0]
	for _, t := range s.recent {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	s.recent = kept
	return len(s.recent) < s.cfg.MaxPerHour
}

func (s *System) countOutcome(outcome string) {
	if s.metrics != nil {
		s.metrics.CommentsPosted.WithLabelValues(outcome).Inc()
	}
}

func cleanComment(comment string) string {
	comment = commentTagRe.ReplaceAllString(comment, "")
	comment = commentSpaceRe.ReplaceAllString(comment, " ")
	comment = strings.Trim(comment, `"'`)
	return strings.TrimSpace(comment)
}
