package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
)

// NotifyPreference controls whether a subscriber receives digests
type NotifyPreference string

const (
	NotifyUnset NotifyPreference = "unset"
	NotifyDaily NotifyPreference = "daily"
	NotifyNone  NotifyPreference = "none"
)

// ParseNotifyPreference accepts the stored/wire representation of a preference.
// An empty string maps to NotifyUnset.
func ParseNotifyPreference(s string) (NotifyPreference, error) {
	switch NotifyPreference(strings.ToLower(strings.TrimSpace(s))) {
	case "", NotifyUnset:
		return NotifyUnset, nil
	case NotifyDaily:
		return NotifyDaily, nil
	case NotifyNone:
		return NotifyNone, nil
	}
	return NotifyUnset, fmt.Errorf("%w: unknown notify preference %q", ErrValidation, s)
}

// Keywords is the canonical keyword set of a subscriber. Every element is a
// non-empty trimmed string. Build it with NormalizeKeywords or ParseKeywords.
type Keywords []string

// NormalizeKeywords trims, drops empties and removes duplicates, keeping the
// first occurrence.
func NormalizeKeywords(raw []string) Keywords {
	trimmed := lo.Map(raw, func(k string, _ int) string {
		return strings.TrimSpace(k)
	})
	kept := lo.Uniq(lo.Compact(trimmed))
	if len(kept) == 0 {
		return Keywords{}
	}
	return Keywords(kept)
}

// ParseKeywords splits a comma separated keyword string
func ParseKeywords(raw string) Keywords {
	return NormalizeKeywords(strings.Split(raw, ","))
}

// UnmarshalJSON accepts either a JSON array of strings or a single comma
// separated string.
func (k *Keywords) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*k = Keywords{}
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*k = NormalizeKeywords(list)
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: keywords must be a string or a list of strings", ErrValidation)
	}
	*k = ParseKeywords(raw)
	return nil
}

// Subscriber is a registered digest recipient. Email is the identity.
type Subscriber struct {
	Email            string           `json:"email"`
	Sector           string           `json:"sector,omitempty"`
	Keywords         Keywords         `json:"keywords"`
	NotifyPreference NotifyPreference `json:"notifyPreference"`
}

// HasPreferences reports whether the subscriber narrowed their interest at all
func (s Subscriber) HasPreferences() bool {
	return s.Sector != "" || len(s.Keywords) > 0
}

// SubscriberPatch carries the fields an onboarding update may change.
// Nil fields are left untouched.
type SubscriberPatch struct {
	Sector           *string           `json:"sector,omitempty"`
	Keywords         *Keywords         `json:"keywords,omitempty"`
	NotifyPreference *NotifyPreference `json:"notifyPreference,omitempty"`
}

// ContentItem is a regulatory update. The store assigns increasing ids.
type ContentItem struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Summary         string    `json:"summary,omitempty"`
	SourceReference string    `json:"sourceReference,omitempty"`
	Sectors         []string  `json:"sectors"`
	CreatedAt       time.Time `json:"createdAt,omitempty"`
}

// CreateItemEvent is sent to the Writer when a new item is ingested
type CreateItemEvent struct {
	Item ContentItem
}

// RunSummary is the outcome of one digest run
type RunSummary struct {
	RunID                 string        `json:"runId"`
	Backend               string        `json:"backend"`
	SubscribersConsidered int           `json:"subscribersConsidered"`
	Skipped               int           `json:"skipped"`
	Attempted             int           `json:"attempted"`
	Sent                  int           `json:"sent"`
	Failed                int           `json:"failed"`
	Matched               int           `json:"matched"`
	StartedAt             time.Time     `json:"startedAt"`
	Duration              time.Duration `json:"duration"`
}
