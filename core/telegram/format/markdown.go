package format

import (
	"fmt"
	"strings"
)

const (
	// MarkdownV1 denotes Telegram markdown version 1.
	MarkdownV1 = 1
	// MarkdownV2 denotes Telegram markdown version 2.
	MarkdownV2 = 2
)

const (
	mdV1Specials = "\\_*`["
	mdV2Specials = "\\_*[]()~`>#+-=|{}.!"
)

// EscapeMarkdown escapes special characters so user-provided text can be
// embedded in a message sent with a Markdown parse mode. For MarkdownV2 the
// entityType narrows the escape set: inside "pre" and "code" only backslash
// and backtick are special, inside a "text_link" URL only backslash and the
// closing parenthesis.
func EscapeMarkdown(text string, version int, entityType string) (string, error) {
	var specials string
	switch version {
	case MarkdownV1:
		specials = mdV1Specials
	case MarkdownV2:
		switch entityType {
		case "pre", "code":
			specials = "\\`"
		case "text_link":
			specials = "\\)"
		default:
			specials = mdV2Specials
		}
	default:
		return "", fmt.Errorf("unsupported markdown version: %d", version)
	}

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r < 128 && strings.ContainsRune(specials, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String(), nil
}
