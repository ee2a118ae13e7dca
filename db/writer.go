package db

import (
	"context"
	"regwatch/models"

	log "github.com/sirupsen/logrus"
)

// ItemCreator persists content items
type ItemCreator interface {
	CreateItem(ctx context.Context, item models.ContentItem) (int64, error)
}

// Writer drains an event channel into the content store
type Writer struct {
	store    ItemCreator
	itemChan chan interface{}
}

func NewWriter(store ItemCreator, itemChan chan interface{}) *Writer {
	return &Writer{
		store:    store,
		itemChan: itemChan,
	}
}

// Subscribe consumes events until the channel is closed or ctx is done.
// It returns the number of items written and failed.
func (writer *Writer) Subscribe(ctx context.Context) (written, failed int) {
	for {
		select {
		case <-ctx.Done():
			return written, failed

		case event, ok := <-writer.itemChan:
			if !ok {
				return written, failed
			}
			switch event := event.(type) {
			case models.CreateItemEvent:
				id, err := writer.store.CreateItem(ctx, event.Item)
				if err != nil {
					log.WithFields(log.Fields{
						"title": event.Item.Title,
						"error": err,
					}).Error("Error creating content item")
					failed++
					continue
				}
				log.WithFields(log.Fields{
					"id": id,
				}).Debug("Created content item")
				written++
			default:
				log.Info("Unknown event type")
			}
		}
	}
}
