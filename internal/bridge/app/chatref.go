package app

import (
	"regexp"
	"strconv"
	"strings"

	"tgbridge/internal/bridge/ports"
)

const (
	// HandlePrefix marks a public handle such as "@channel".
	HandlePrefix = "@"

	// MaxSafeInteger is the largest integer a textual chat id may carry and
	// still be converted to a numeric reference (2^53 - 1).
	MaxSafeInteger int64 = 1<<53 - 1
)

var integerPattern = regexp.MustCompile(`^-?\d+$`)

// NormalizeChatRef converts a caller-supplied chat reference to canonical form.
// Numeric references and handles pass through; integer text within the safe
// integer range becomes numeric; any other text is kept (trimmed).
func NormalizeChatRef(ref ports.ChatRef) ports.ChatRef {
	if ref.IsNumeric() {
		return ref
	}
	trimmed := strings.TrimSpace(ref.Text())
	if strings.HasPrefix(trimmed, HandlePrefix) {
		return ports.TextChat(trimmed)
	}
	if integerPattern.MatchString(trimmed) {
		if id, err := strconv.ParseInt(trimmed, 10, 64); err == nil && id >= -MaxSafeInteger && id <= MaxSafeInteger {
			return ports.NumericChat(id)
		}
	}
	return ports.TextChat(trimmed)
}
