package insights

import (
	"strings"
	"unicode/utf8"
)

// MaxTitleRunes caps generated titles.
const MaxTitleRunes = 60

// CleanTitle reduces a model reply to a single-line title: the first
// non-empty line without a "Title:" label, surrounding quotes or markdown
// emphasis, or trailing sentence punctuation.
func CleanTitle(s string) string {
	line := ""
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			line = l
			break
		}
	}

	if i := strings.Index(line, ":"); i >= 0 && strings.EqualFold(strings.TrimSpace(line[:i]), "title") {
		line = strings.TrimSpace(line[i+1:])
	}
	line = strings.Trim(line, "\"'`*#_“”‘’ ")
	line = strings.TrimRight(line, ".!;:, ")

	if utf8.RuneCountInString(line) > MaxTitleRunes {
		line = strings.TrimSpace(string([]rune(line)[:MaxTitleRunes]))
	}
	return line
}
