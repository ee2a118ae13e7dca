/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"regwatch/db"
	"regwatch/models"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func ingestCmd() *cli.Command {
	return &cli.Command{
		Name:  "ingest",
		Usage: "Load content items from JSON",
		Description: `Reads content items as JSON objects from stdin, or from --file,
and stores them. One object per line works well, e.g. the output of
regwatch search.

Objects without a title are skipped. Fields: title, summary,
sourceReference and sectors.`,
		Flags: append(dbFlags(),
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "Read from this file instead of stdin",
			},
		),
		Action: func(ctx *cli.Context) error {
			var in io.Reader = os.Stdin
			if path := ctx.String("file"); path != "" {
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			database, err := db.NewDB(dbConfig(ctx))
			if err != nil {
				return err
			}
			defer database.Close()

			// Channel for content items to write to the database
			itemChan := make(chan interface{})
			writer := db.NewWriter(database, itemChan)

			type counts struct{ written, failed int }
			done := make(chan counts)
			go func() {
				written, failed := writer.Subscribe(ctx.Context)
				done <- counts{written, failed}
			}()

			skipped, readErr := decodeItems(ctx.Context, in, itemChan)
			close(itemChan)
			result := <-done

			log.WithFields(log.Fields{
				"written": result.written,
				"failed":  result.failed,
				"skipped": skipped,
			}).Info("Ingest finished")

			if readErr != nil {
				return readErr
			}
			if result.failed > 0 {
				return fmt.Errorf("%d content items could not be stored", result.failed)
			}
			return nil
		},
	}
}

// decodeItems streams JSON objects from in onto itemChan
func decodeItems(ctx context.Context, in io.Reader, itemChan chan<- interface{}) (skipped int, err error) {
	dec := json.NewDecoder(in)
	for {
		var item models.ContentItem
		err := dec.Decode(&item)
		if errors.Is(err, io.EOF) {
			return skipped, nil
		}
		if err != nil {
			return skipped, fmt.Errorf("invalid content item: %w", err)
		}

		item.Title = strings.TrimSpace(item.Title)
		if item.Title == "" {
			log.Warn("Skipping content item without title")
			skipped++
			continue
		}
		if item.Sectors == nil {
			item.Sectors = []string{}
		}
		select {
		case itemChan <- models.CreateItemEvent{Item: item}:
		case <-ctx.Done():
			return skipped, ctx.Err()
		}
	}
}
