package engine

import (
	"regexp"
	"strings"
	"unicode"
)

const emptyReply = "Я подумаю над этим..."

var whitespaceRe = regexp.MustCompile(`\s+`)

// CleanResponse strips generation artifacts from raw model output:
// stuttered words, leftover chat-markup tags and placeholder tokens. An
// output that cleans down to nothing becomes a stock filler reply.
func CleanResponse(s string) string {
	s = collapseRepeatedWords(s)
	s = strings.ReplaceAll(s, "<|im_end|>", "")
	s = strings.ReplaceAll(s, "<|im_start|>", "")
	s = strings.ReplaceAll(s, "[ИМЯ]", "")
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return emptyReply
	}
	return s
}

// collapseRepeatedWords folds runs of the same word separated only by
// whitespace ("привет привет привет" -> "привет"), case-insensitively,
// keeping the first occurrence.
func collapseRepeatedWords(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	runes := []rune(s)

	var prevWord, pendingSep string
	for i := 0; i < len(runes); {
		if isWordRune(runes[i]) {
			j := i
			for j < len(runes) && isWordRune(runes[j]) {
				j++
			}
			word := string(runes[i:j])
			dup := strings.EqualFold(word, prevWord) &&
				pendingSep != "" && isAllSpace(pendingSep)
			if !dup {
				b.WriteString(pendingSep)
				b.WriteString(word)
				prevWord = word
			}
			pendingSep = ""
			i = j
			continue
		}
		j := i
		for j < len(runes) && !isWordRune(runes[j]) {
			j++
		}
		pendingSep = string(runes[i:j])
		i = j
	}
	b.WriteString(pendingSep)
	return b.String()
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isAllSpace(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
