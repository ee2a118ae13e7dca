/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"regwatch/db"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func migrateCmd() *cli.Command {
	return &cli.Command{
		Name:        "migrate",
		Usage:       "Run database migrations",
		Description: `Creates or upgrades the subscribers and content_items tables on the configured database.`,
		Flags:       dbFlags(),
		Action: func(ctx *cli.Context) error {
			cfg := dbConfig(ctx)
			log.WithFields(log.Fields{
				"host": cfg.Host,
				"port": cfg.Port,
				"name": cfg.Name,
			}).Info("Database configured")
			return db.Migrate(cfg)
		},
	}
}

func rollbackCmd() *cli.Command {
	return &cli.Command{
		Name:        "rollback",
		Usage:       "Rollback database migration",
		Description: `Rolls back the last database migration`,
		Flags:       dbFlags(),
		Action: func(ctx *cli.Context) error {
			cfg := dbConfig(ctx)
			log.WithFields(log.Fields{
				"host": cfg.Host,
				"port": cfg.Port,
				"name": cfg.Name,
			}).Info("Database configured")
			return db.Rollback(cfg)
		},
	}
}
