// Package character loads and serves persona profiles.
package character

import (
	"context"
	"errors"
	"strings"

	"github.com/kokoro-ai/kokoro/internal/types"
)

// ErrNotFound is returned when a character id is unknown.
var ErrNotFound = errors.New("character not found")

// Repo provides read access to character profiles.
type Repo interface {
	GetByID(ctx context.Context, id string) (*types.Character, error)
}

// ReplaceVars substitutes the {{char}} and {{user}} placeholders that
// character cards use in prompts and example dialogue.
func ReplaceVars(text, charName, userName string) string {
	replaced := strings.ReplaceAll(text, "{{char}}", charName)
	return strings.ReplaceAll(replaced, "{{user}}", userName)
}

// NormalizeCardText unescapes literal escape sequences that exported
// character cards commonly carry.
func NormalizeCardText(text string) string {
	text = strings.ReplaceAll(text, "\\r\\n", "\n")
	text = strings.ReplaceAll(text, "\\n", "\n")
	text = strings.ReplaceAll(text, "\\\"", "\"")
	return text
}
