package index

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/grishabot/grisha/internal/patterns"
)

func writeDataset(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dataset.jsonl")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write dataset: %v", err)
	}
	return path
}

func newTestIndex(t *testing.T, lines ...string) (*Index, *patterns.Store) {
	t.Helper()
	store := patterns.NewStore(filepath.Join(t.TempDir(), "patterns.json"), log.New(io.Discard, "", 0))
	idx := New(writeDataset(t, lines...), store, log.New(io.Discard, "", 0))
	return idx, store
}

const nameExchange = `{"messages":[{"role":"user","content":"как тебя зовут"},{"role":"assistant","content":"Я Гриша"}]}`

func TestFindSimilarRetrievesByKeywordOverlap(t *testing.T) {
	idx, _ := newTestIndex(t, nameExchange)

	got := idx.FindSimilar("а как тебя зовут?", 3)
	if len(got) != 1 {
		t.Fatalf("FindSimilar returned %d results, want 1", len(got))
	}
	if got[0].Score < 1 {
		t.Fatalf("Score = %d, want >= 1", got[0].Score)
	}
	reply, ok := got[0].Exchange.AssistantContent()
	if !ok || reply != "Я Гриша" {
		t.Fatalf("assistant content = %q, %v", reply, ok)
	}
}

func TestFindSimilarSkipsShortQueries(t *testing.T) {
	idx, _ := newTestIndex(t, nameExchange)
	for _, q := range []string{"", "да", "ок", "кот"} {
		if got := idx.FindSimilar(q, 3); len(got) != 0 {
			t.Fatalf("FindSimilar(%q) = %d results, want 0", q, len(got))
		}
	}
}

func TestFindSimilarSkipsMalformedDatasetLines(t *testing.T) {
	idx, _ := newTestIndex(t,
		"{broken json",
		nameExchange,
		`"just a string"`,
	)
	if st := idx.Stats(); st.Total != 1 {
		t.Fatalf("Stats.Total = %d, want 1 (malformed lines skipped)", st.Total)
	}
}

func TestPatternOutranksDatasetOnEqualScore(t *testing.T) {
	idx, _ := newTestIndex(t,
		`{"messages":[{"role":"user","content":"болит голова"},{"role":"assistant","content":"выпей воды"}]}`,
	)
	idx.AddExchange("болит голова", "отдохни немного")

	got := idx.FindSimilar("у меня болит голова", 2)
	if len(got) != 2 {
		t.Fatalf("FindSimilar returned %d results, want 2", len(got))
	}
	if got[0].Exchange.Source != SourcePattern {
		t.Fatalf("first result source = %q, want pattern", got[0].Exchange.Source)
	}
	if got[1].Exchange.Source != SourceDataset {
		t.Fatalf("second result source = %q, want dataset", got[1].Exchange.Source)
	}
}

func TestHigherUsagePatternRanksFirst(t *testing.T) {
	idx, _ := newTestIndex(t)
	idx.AddExchange("болит голова", "отдохни")
	idx.AddExchange("голова кружится", "присядь")

	// Bump the second pattern's usage.
	got := idx.FindSimilar("что делать если голова кружится?", 2)
	if len(got) == 0 {
		t.Fatalf("no results")
	}
	for _, s := range got {
		if in, _ := firstUserContent(s.Exchange); in == "голова кружится" {
			idx.IncrementUsage(s.Pos)
		}
	}

	got = idx.FindSimilar("болит и кружится голова", 2)
	if len(got) != 2 {
		t.Fatalf("FindSimilar returned %d results, want 2", len(got))
	}
	if in, _ := firstUserContent(got[0].Exchange); in != "голова кружится" {
		t.Fatalf("most used pattern should rank first, got %q", in)
	}
}

func TestAddExchangeVisibleImmediately(t *testing.T) {
	idx, store := newTestIndex(t)
	idx.AddExchange("расскажи про погоду", "сегодня солнечно")

	got := idx.FindSimilar("что там про погоду?", 1)
	if len(got) != 1 {
		t.Fatalf("new pattern not retrievable: %d results", len(got))
	}
	if store.Len() != 1 {
		t.Fatalf("pattern store Len = %d, want 1", store.Len())
	}
}

func TestIncrementUsagePersistsCounter(t *testing.T) {
	idx, store := newTestIndex(t)
	idx.AddExchange("кто ты такой", "я Гриша, чат-бот")

	got := idx.FindSimilar("кто ты такой?", 1)
	if len(got) != 1 {
		t.Fatalf("retrieval failed")
	}
	idx.IncrementUsage(got[0].Pos)

	all := store.All()
	if len(all) != 1 || all[0].UsageCount != 1 {
		t.Fatalf("persisted usage = %+v, want count 1", all)
	}
	if st := idx.Stats(); st.PatternUsage != 1 {
		t.Fatalf("Stats.PatternUsage = %d, want 1", st.PatternUsage)
	}
}

func TestIncrementUsageIgnoresDatasetEntries(t *testing.T) {
	idx, store := newTestIndex(t, nameExchange)
	got := idx.FindSimilar("а как тебя зовут?", 1)
	if len(got) != 1 {
		t.Fatalf("retrieval failed")
	}
	idx.IncrementUsage(got[0].Pos)
	if st := idx.Stats(); st.PatternUsage != 0 {
		t.Fatalf("dataset usage must stay 0, got %d", st.PatternUsage)
	}
	if store.Len() != 0 {
		t.Fatalf("pattern store should stay empty")
	}
}

func firstUserContent(ex Exchange) (string, bool) {
	for _, m := range ex.Messages {
		if m.Role == "user" {
			return m.Content, true
		}
	}
	return "", false
}
