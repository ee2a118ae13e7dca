package db

import (
	"context"
	"regwatch/models"
	"time"

	sb "github.com/huandu/go-sqlbuilder"
	log "github.com/sirupsen/logrus"
)

// Tidy removes content items created before now minus retention and returns
// the number of deleted rows.
func (db *DB) Tidy(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)

	deleteItems := sb.PostgreSQL.NewDeleteBuilder()
	sql, args := deleteItems.DeleteFrom("content_items").
		Where(deleteItems.LessThan("created_at", cutoff)).
		Build()

	log.WithFields(log.Fields{
		"cutoff": cutoff.Format(time.RFC3339),
	}).Info("Tidying database")

	res, err := db.db.ExecContext(ctx, sql, args...)
	if err != nil {
		return 0, &models.StoreError{Op: "tidy", Err: err}
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, &models.StoreError{Op: "tidy", Err: err}
	}
	return deleted, nil
}
