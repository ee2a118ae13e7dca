package db

import (
	"context"
	"database/sql"
	"fmt"
	"regwatch/models"
	"regwatch/query"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	"github.com/lib/pq"
	log "github.com/sirupsen/logrus"
)

// ListSubscribers returns every subscriber in a stable order
func (db *DB) ListSubscribers(ctx context.Context) ([]models.Subscriber, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("email", "sector", "keywords", "notify_preference").From("subscribers")
	sb.OrderBy("created_at", "email")

	sql, args := sb.Build()
	rows, err := db.db.QueryContext(ctx, sql, args...)
	if err != nil {
		return nil, &models.StoreError{Op: "list subscribers", Err: fmt.Errorf("query error: %w", err)}
	}
	defer rows.Close()

	var subscribers []models.Subscriber
	for rows.Next() {
		sub, err := scanSubscriber(rows)
		if err != nil {
			return nil, &models.StoreError{Op: "list subscribers", Err: fmt.Errorf("scan error: %w", err)}
		}
		subscribers = append(subscribers, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.StoreError{Op: "list subscribers", Err: err}
	}

	return subscribers, nil
}

// FindSubscriberByEmail looks up a subscriber by exact email
func (db *DB) FindSubscriberByEmail(ctx context.Context, email string) (*models.Subscriber, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("email", "sector", "keywords", "notify_preference").
		From("subscribers").
		Where(sb.Equal("email", email)).
		Limit(1)

	sql, args := sb.Build()
	sub, err := scanSubscriber(db.db.QueryRowContext(ctx, sql, args...))
	if isNoRows(err) {
		return nil, fmt.Errorf("subscriber %q: %w", email, models.ErrNotFound)
	}
	if err != nil {
		return nil, &models.StoreError{Op: "find subscriber", Err: err}
	}

	return sub, nil
}

// RecentItems returns the newest items first, at most limit
func (db *DB) RecentItems(ctx context.Context, limit int) ([]models.ContentItem, error) {
	return db.SearchItems(ctx, query.Filter{}, limit)
}

// SearchItems returns the newest items matching filter, at most limit
func (db *DB) SearchItems(ctx context.Context, filter query.Filter, limit int) ([]models.ContentItem, error) {
	sql, args := query.NewFeedQueryBuilder().
		AddFilter(query.Match(filter)).
		Build(limit)

	log.WithFields(log.Fields{
		"keywords": filter.Keywords,
		"sector":   filter.Sector,
		"limit":    limit,
	}).Debug("Searching content items")

	rows, err := db.db.QueryContext(ctx, sql, args...)
	if err != nil {
		return nil, &models.StoreError{Op: "search items", Err: fmt.Errorf("query error: %w", err)}
	}
	defer rows.Close()

	items := []models.ContentItem{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, &models.StoreError{Op: "search items", Err: fmt.Errorf("scan error: %w", err)}
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.StoreError{Op: "search items", Err: err}
	}

	return items, nil
}

func scanItem(row rowScanner) (models.ContentItem, error) {
	var (
		item    models.ContentItem
		summary sql.NullString
		source  sql.NullString
		sectors pq.StringArray
	)
	if err := row.Scan(&item.ID, &item.Title, &summary, &source, &sectors, &item.CreatedAt); err != nil {
		return item, err
	}

	item.Summary = summary.String
	item.SourceReference = source.String
	item.Sectors = []string(sectors)
	if item.Sectors == nil {
		item.Sectors = []string{}
	}

	return item, nil
}
