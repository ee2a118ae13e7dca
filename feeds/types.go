// Package feeds serves interactive content reads: free-text/sector search and
// the personalized feed of a subscriber.
package feeds

import (
	"context"
	"regwatch/models"
	"regwatch/query"
)

const DefaultLimit = 50

// Store is the part of the subscriber and content stores that feeds read from
type Store interface {
	FindSubscriberByEmail(ctx context.Context, email string) (*models.Subscriber, error)
	SearchItems(ctx context.Context, filter query.Filter, limit int) ([]models.ContentItem, error)
}
