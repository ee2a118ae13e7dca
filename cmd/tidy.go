/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"regwatch/config"
	"regwatch/db"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func tidyCmd() *cli.Command {
	return &cli.Command{
		Name:  "tidy",
		Usage: "Tidy up the database",
		Description: `Tidy up the database by removing content items that are old.

		Removes items older than retention.days (default 365) from the database.
		Subscribers are never removed.`,
		Flags: append(dbFlags(),
			configFlag(),
			&cli.IntFlag{
				Name:  "days",
				Usage: "Override retention.days from the config file",
			},
		),
		Action: func(ctx *cli.Context) error {
			cfg, err := config.LoadConfig(ctx.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			days := cfg.Retention.Days
			if ctx.IsSet("days") {
				days = ctx.Int("days")
			}
			if days < 1 {
				return fmt.Errorf("retention must be at least one day, got %d", days)
			}

			database, err := db.NewDB(dbConfig(ctx))
			if err != nil {
				return err
			}
			defer database.Close()

			removed, err := database.Tidy(ctx.Context, time.Duration(days)*24*time.Hour)
			if err != nil {
				return err
			}
			log.WithFields(log.Fields{
				"removed": removed,
				"days":    days,
			}).Info("Tidied content items")
			return nil
		},
	}
}
