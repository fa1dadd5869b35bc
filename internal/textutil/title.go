package textutil

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Title converts an identifier to a display label: underscores and hyphens
// become spaces, then each word is title cased.
func Title(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	value = strings.NewReplacer("_", " ", "-", " ").Replace(value)
	return cases.Title(language.Und).String(value)
}
