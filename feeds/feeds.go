package feeds

import (
	"context"
	"fmt"
	"regwatch/models"
	"regwatch/query"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Service answers feed reads with the same matching rules digests use
type Service struct {
	store Store
	limit int
}

func NewService(store Store, limit int) *Service {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Service{store: store, limit: limit}
}

func (s *Service) Limit() int {
	return s.limit
}

// Search treats freeText as a single keyword and sector as the sector. Either
// one matching is enough; with neither, the most recent items are returned.
func (s *Service) Search(ctx context.Context, freeText, sector string) ([]models.ContentItem, error) {
	filter := query.Filter{Sector: strings.TrimSpace(sector)}
	if text := strings.TrimSpace(freeText); text != "" {
		filter.Keywords = []string{text}
	}

	log.WithFields(log.Fields{
		"q":      freeText,
		"sector": sector,
		"limit":  s.limit,
	}).Info("Search feed")

	return s.store.SearchItems(ctx, filter, s.limit)
}

// PersonalFeed applies the subscriber's stored preferences
func (s *Service) PersonalFeed(ctx context.Context, email string) ([]models.ContentItem, error) {
	if strings.TrimSpace(email) == "" {
		return nil, fmt.Errorf("%w: email is required", models.ErrValidation)
	}

	sub, err := s.store.FindSubscriberByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"email":    sub.Email,
		"sector":   sub.Sector,
		"keywords": sub.Keywords,
		"limit":    s.limit,
	}).Info("Personal feed")

	return s.store.SearchItems(ctx, FilterFor(*sub), s.limit)
}

// FilterFor is the store filter equivalent of a subscriber's preferences
func FilterFor(sub models.Subscriber) query.Filter {
	return query.Filter{
		Keywords: []string(sub.Keywords),
		Sector:   sub.Sector,
	}
}
