package chat

import (
	"fmt"
	"unicode/utf8"
)

const (
	titleMaxRunes = 50
	titleMaxLen   = 200
)

// TitleFromContent derives a conversation title from its first turn.
func TitleFromContent(content string) string {
	if utf8.RuneCountInString(content) <= titleMaxRunes {
		return content
	}
	runes := []rune(content)
	return string(runes[:titleMaxRunes]) + "..."
}

func placeholderTitle(existing int64) string {
	return fmt.Sprintf("Conversation %d", existing+1)
}
