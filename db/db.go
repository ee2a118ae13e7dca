package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regwatch/models"
	"strings"
	"time"

	"github.com/lib/pq"
	log "github.com/sirupsen/logrus"
)

// DB handles all database operations with a shared connection pool
type DB struct {
	db *sql.DB
}

func NewDB(cfg ConnConfig) (*DB, error) {
	db, err := connection(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	return &DB{db: db}, nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

func (db *DB) Ping(ctx context.Context) error {
	if err := db.db.PingContext(ctx); err != nil {
		return &models.StoreError{Op: "ping", Err: err}
	}
	return nil
}

// Subscriber operations

const upsertSubscriberSQL = `
	INSERT INTO subscribers (email, sector, keywords, notify_preference)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (email) DO UPDATE SET
		sector = CASE WHEN $5 THEN EXCLUDED.sector ELSE subscribers.sector END,
		keywords = CASE WHEN $6 THEN EXCLUDED.keywords ELSE subscribers.keywords END,
		notify_preference = CASE WHEN $7 THEN EXCLUDED.notify_preference ELSE subscribers.notify_preference END,
		updated_at = NOW()
	RETURNING email, sector, keywords, notify_preference`

// UpsertSubscriber creates the subscriber or applies the non-nil patch fields
// to the existing row.
func (db *DB) UpsertSubscriber(ctx context.Context, email string, patch models.SubscriberPatch) (*models.Subscriber, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var sector sql.NullString
	if patch.Sector != nil {
		trimmed := strings.TrimSpace(*patch.Sector)
		sector = sql.NullString{String: trimmed, Valid: trimmed != ""}
	}

	keywords := models.Keywords{}
	if patch.Keywords != nil {
		keywords = models.NormalizeKeywords(*patch.Keywords)
	}

	pref := models.NotifyUnset
	if patch.NotifyPreference != nil {
		pref = *patch.NotifyPreference
	}

	log.WithFields(log.Fields{
		"email":    email,
		"sector":   sector.String,
		"keywords": keywords,
		"notify":   pref,
	}).Info("Upserting subscriber")

	row := db.db.QueryRowContext(ctx, upsertSubscriberSQL,
		email,
		sector,
		pq.Array([]string(keywords)),
		string(pref),
		patch.Sector != nil,
		patch.Keywords != nil,
		patch.NotifyPreference != nil,
	)

	sub, err := scanSubscriber(row)
	if err != nil {
		return nil, &models.StoreError{Op: "upsert subscriber", Err: err}
	}
	return sub, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanSubscriber normalizes the stored row into the canonical subscriber shape
func scanSubscriber(row rowScanner) (*models.Subscriber, error) {
	var (
		sub      models.Subscriber
		sector   sql.NullString
		keywords pq.StringArray
		pref     string
	)
	if err := row.Scan(&sub.Email, &sector, &keywords, &pref); err != nil {
		return nil, err
	}

	sub.Sector = strings.TrimSpace(sector.String)
	sub.Keywords = models.NormalizeKeywords(keywords)

	parsed, err := models.ParseNotifyPreference(pref)
	if err != nil {
		log.WithFields(log.Fields{
			"email":  sub.Email,
			"notify": pref,
		}).Warn("Unknown stored notify preference, treating as unset")
	}
	sub.NotifyPreference = parsed

	return &sub, nil
}

// Content operations

// CreateItem stores a new content item and returns its assigned id
func (db *DB) CreateItem(ctx context.Context, item models.ContentItem) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	log.WithFields(log.Fields{
		"title":   item.Title,
		"sectors": item.Sectors,
	}).Info("Creating content item")

	sectors := item.Sectors
	if sectors == nil {
		sectors = []string{}
	}

	var id int64
	err := db.db.QueryRowContext(ctx, `
		INSERT INTO content_items (title, summary, source_reference, sectors)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		item.Title,
		sql.NullString{String: item.Summary, Valid: item.Summary != ""},
		sql.NullString{String: item.SourceReference, Valid: item.SourceReference != ""},
		pq.Array(sectors),
	).Scan(&id)
	if err != nil {
		return 0, &models.StoreError{Op: "create item", Err: fmt.Errorf("insert error: %w", err)}
	}

	return id, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
