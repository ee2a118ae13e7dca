// Package digest decides which content items match a subscriber and turns the
// matches into dispatched digest messages.
package digest

import (
	"regwatch/models"
	"strings"

	"github.com/samber/lo"
)

// Matches reports whether item is relevant to sub. A subscriber without any
// preference matches everything; otherwise a keyword hit or a sector hit is
// enough.
func Matches(sub models.Subscriber, item models.ContentItem) bool {
	if !sub.HasPreferences() {
		return true
	}
	return keywordMatch(sub.Keywords, item) || sectorMatch(sub.Sector, item)
}

func keywordMatch(keywords models.Keywords, item models.ContentItem) bool {
	if len(keywords) == 0 {
		return false
	}
	text := strings.ToLower(item.Title + " " + item.Summary)
	return lo.SomeBy(keywords, func(k string) bool {
		return strings.Contains(text, strings.ToLower(k))
	})
}

func sectorMatch(sector string, item models.ContentItem) bool {
	if sector == "" {
		return false
	}
	return lo.Contains(item.Sectors, sector)
}
