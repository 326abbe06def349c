// Package sanitize strips unsafe markup from client-supplied text before it
// reaches the directories or the payment mirror.
package sanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	// strict removes every tag and attribute. Used for names, venue fields,
	// category tags, and anything else that must be plain text.
	strict = bluemonday.StrictPolicy()

	// ugc permits basic formatting (<b>, <i>, <em>, lists, links). Used for
	// event descriptions only.
	ugc = bluemonday.UGCPolicy()
)

// Text returns value with all HTML removed and surrounding space trimmed.
func Text(value string) string {
	return strings.TrimSpace(strict.Sanitize(value))
}

// Description keeps safe formatting tags but drops scripts, iframes, and
// event handlers.
func Description(value string) string {
	return strings.TrimSpace(ugc.Sanitize(value))
}

// Tags sanitizes a category list in place, dropping entries that are empty
// after cleaning.
func Tags(values []string) []string {
	if values == nil {
		return nil
	}
	cleaned := make([]string, 0, len(values))
	for _, v := range values {
		if t := Text(v); t != "" {
			cleaned = append(cleaned, t)
		}
	}
	return cleaned
}
