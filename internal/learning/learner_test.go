package learning

import (
	"io"
	"log"
	"path/filepath"
	"testing"

	"github.com/grishabot/grisha/internal/patterns"
)

// storeSink mirrors what the example index does with new exchanges:
// write-through into the pattern store.
type storeSink struct {
	store *patterns.Store
	added int
}

func (s *storeSink) AddExchange(userText, botText string) {
	if _, ok := s.store.Append(userText, botText); ok {
		s.added++
	}
}

func newTestLearner(t *testing.T) (*Learner, *patterns.Store, *storeSink) {
	t.Helper()
	store := patterns.NewStore(filepath.Join(t.TempDir(), "patterns.json"), log.New(io.Discard, "", 0))
	sink := &storeSink{store: store}
	return New(store, sink, log.New(io.Discard, "", 0)), store, sink
}

const goodReply = "Я Гриша, чат-бот с ИИ, рад помочь тебе"

func TestAnalyzePromotesGoodReply(t *testing.T) {
	l, store, sink := newTestLearner(t)
	l.Analyze(1, "расскажи о себе", goodReply)

	if store.Len() != 1 {
		t.Fatalf("patterns = %d, want 1", store.Len())
	}
	if sink.added != 1 {
		t.Fatalf("sink.added = %d, want 1 (new pattern pushed to index)", sink.added)
	}
}

func TestAnalyzeRejectsShortAndFailureReplies(t *testing.T) {
	l, store, _ := newTestLearner(t)

	l.Analyze(1, "вопрос один", "коротко")
	l.Analyze(1, "вопрос два", "Извини, я этого совершенно не знаю")
	l.Analyze(1, "вопрос три", "Произошла ошибка, давай попробуем снова")

	if store.Len() != 0 {
		t.Fatalf("patterns = %d, want 0 (nothing promoted)", store.Len())
	}
	if st := l.Stats(); st.Interactions != 3 {
		t.Fatalf("Interactions = %d, want 3", st.Interactions)
	}
}

func TestAnalyzeUpdateInsteadOfDuplicate(t *testing.T) {
	l, store, sink := newTestLearner(t)
	const input = "расскажи о себе"

	l.Analyze(1, input, goodReply)
	if _, ok := store.IncrementUsage(input); !ok {
		t.Fatalf("IncrementUsage failed")
	}

	const newReply = "Я Гриша, отвечаю на вопросы и учусь на диалогах"
	l.Analyze(1, input, newReply)

	if store.Len() != 1 {
		t.Fatalf("patterns = %d, want exactly 1 after re-analyze", store.Len())
	}
	p := store.All()[0]
	if p.Response != newReply {
		t.Fatalf("Response = %q, want the latest reply", p.Response)
	}
	if p.UsageCount != 0 {
		t.Fatalf("UsageCount = %d, want reset to 0 on update", p.UsageCount)
	}
	if sink.added != 1 {
		t.Fatalf("sink.added = %d, update must not re-export", sink.added)
	}
}

func TestFindSimilarPatternFastPath(t *testing.T) {
	l, store, _ := newTestLearner(t)
	l.Analyze(1, "как тебя зовут", "Меня зовут Гриша, приятно познакомиться")

	reply, ok := l.FindSimilarPattern("а как тебя зовут?", DefaultThreshold)
	if !ok {
		t.Fatalf("fast path should hit")
	}
	if reply != "Меня зовут Гриша, приятно познакомиться" {
		t.Fatalf("reply = %q", reply)
	}
	if got := store.All()[0].UsageCount; got != 1 {
		t.Fatalf("UsageCount = %d, want 1 after fast-path hit", got)
	}
}

func TestFindSimilarPatternMiss(t *testing.T) {
	l, _, _ := newTestLearner(t)
	l.Analyze(1, "как тебя зовут", "Меня зовут Гриша, приятно познакомиться")

	if _, ok := l.FindSimilarPattern("сколько будет дважды два", DefaultThreshold); ok {
		t.Fatalf("fast path must miss on unrelated input")
	}
}

func TestProcessIntroduction(t *testing.T) {
	l, _, _ := newTestLearner(t)

	cases := []struct {
		message string
		want    string
		ok      bool
	}{
		{"меня зовут Саша", "Саша", true},
		{"я Гриша", "Гриша", true},
		{"моё имя Анна Петрова", "Анна Петрова", true},
		{"привет, я Оля", "Оля", true},
		{"зовут", "", false},
		{"меня зовут 12345", "", false},
		{"что ты умеешь?", "", false},
	}
	for _, tc := range cases {
		got, ok := l.ProcessIntroduction(42, tc.message)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("ProcessIntroduction(%q) = %q, %v; want %q, %v",
				tc.message, got, ok, tc.want, tc.ok)
		}
	}
}

func TestStats(t *testing.T) {
	l, _, _ := newTestLearner(t)
	l.Analyze(1, "как тебя зовут", "Меня зовут Гриша, приятно познакомиться")
	l.FindSimilarPattern("как тебя зовут?", DefaultThreshold)
	l.FindSimilarPattern("как тебя зовут?", DefaultThreshold)

	st := l.Stats()
	if st.Patterns != 1 || st.TotalPatternsUsed != 2 || st.PatternsWithUsage != 1 {
		t.Fatalf("Stats = %+v", st)
	}
	if st.MostUsedCount != 2 {
		t.Fatalf("MostUsedCount = %d, want 2", st.MostUsedCount)
	}
}
