package engine

import "testing"

func TestCleanResponse(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"привет привет привет, как дела", "привет, как дела"},
		{"Привет привет", "Привет"},
		{"да, да", "да, да"},
		{"ответ<|im_end|> хвост", "ответ хвост"},
		{"<|im_start|>assistant ответ", "assistant ответ"},
		{"Привет, [ИМЯ]!", "Привет, !"},
		{"много   пробелов\n\nи строк", "много пробелов и строк"},
		{"  ", "Я подумаю над этим..."},
		{"<|im_end|>", "Я подумаю над этим..."},
		{"нормальный ответ", "нормальный ответ"},
	}
	for _, c := range cases {
		if got := CleanResponse(c.in); got != c.want {
			t.Errorf("CleanResponse(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestCollapseRepeatedWordsKeepsPunctuatedRepeats(t *testing.T) {
	if got := collapseRepeatedWords("ну ну ну"); got != "ну" {
		t.Fatalf("got %q", got)
	}
	if got := collapseRepeatedWords("он сказал: да да"); got != "он сказал: да" {
		t.Fatalf("got %q", got)
	}
	// Repeats split by punctuation stay untouched.
	if got := collapseRepeatedWords("да. да"); got != "да. да" {
		t.Fatalf("got %q", got)
	}
}
