package engine

import (
	"context"
	"strings"
	"time"

	"github.com/grishabot/grisha/internal/index"
	"github.com/grishabot/grisha/internal/patterns"
)

const (
	historyTurns      = 6
	historyTurnRunes  = 120
	exampleRunes      = 150
	retrievedExamples = 2

	greetingProbe = "Привет! Расскажи о себе."
	timeLayout    = "02.01.2006 15:04"
)

// Words that mark the message as a question about names; they switch on the
// name instruction block.
var nameQuestionMarkers = []string{"зовут", "имя", "как меня", "мое имя"}

// buildPrompt assembles the chat-markup prompt: persona, time and user
// context, recent history, retrieved examples and the current message.
// Usage counters of pattern-sourced examples are bumped as a side effect.
func (e *Engine) buildPrompt(ctx context.Context, chatID, userID int64, userMsg string, isGreeting bool) string {
	var b strings.Builder

	b.WriteString("<|im_start|>system\n")
	b.WriteString(e.systemPrompt)
	b.WriteString("\n<|im_end|>\n")

	b.WriteString("<|im_start|>context\nСейчас: ")
	b.WriteString(e.now().Format(timeLayout))
	b.WriteString("\n<|im_end|>\n")

	userName, nameKnown := e.facts.GetName(ctx, userID)
	if nameKnown {
		b.WriteString("<|im_start|>context\nТекущий пользователь: ")
		b.WriteString(userName)
		b.WriteString("\n<|im_end|>\n")
	}

	if history := e.session.Recent(chatID, historyTurns); len(history) > 0 {
		b.WriteString("<|im_start|>history\nИстория диалога:\n")
		for _, turn := range history {
			b.WriteString(string(turn.Role))
			b.WriteString(": ")
			b.WriteString(patterns.Truncate(turn.Content, historyTurnRunes))
			b.WriteString("\n")
		}
		b.WriteString("<|im_end|>\n")
	}

	if similar := e.index.FindSimilar(userMsg, retrievedExamples); len(similar) > 0 {
		b.WriteString("<|im_start|>examples\nПример ответа:\n")
		for _, s := range similar {
			content, ok := s.Exchange.AssistantContent()
			if !ok {
				continue
			}
			content = stripPromptTags(patterns.Truncate(content, exampleRunes))
			b.WriteString(content)
			b.WriteString("\n")
			if s.Exchange.Source == index.SourcePattern {
				e.index.IncrementUsage(s.Pos)
			}
			if e.metrics != nil {
				e.metrics.RetrievedExamples.WithLabelValues(s.Exchange.Source).Inc()
			}
		}
		b.WriteString("<|im_end|>\n")
	}

	current := userMsg
	if isGreeting {
		current = greetingProbe
	}
	b.WriteString("<|im_start|>user\n")
	b.WriteString(current)
	b.WriteString("\n<|im_end|>\n")

	if asksAboutName(userMsg) {
		if nameKnown {
			b.WriteString("<|im_start|>instruction\nОтвечая, обязательно используй имя пользователя: ")
			b.WriteString(userName)
			b.WriteString("\n<|im_end|>\n")
		} else {
			b.WriteString("<|im_start|>instruction\nЕсли не знаешь имя пользователя, спроси его или признайся, что не помнишь.\n<|im_end|>\n")
		}
	}

	b.WriteString("<|im_start|>assistant\n")
	return b.String()
}

func asksAboutName(msg string) bool {
	lower := strings.ToLower(msg)
	for _, w := range nameQuestionMarkers {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func stripPromptTags(s string) string {
	s = strings.ReplaceAll(s, "<|im_start|>", "")
	return strings.ReplaceAll(s, "<|im_end|>", "")
}

// now is indirected for tests.
func (e *Engine) now() time.Time {
	if e.clock != nil {
		return e.clock()
	}
	return time.Now()
}
