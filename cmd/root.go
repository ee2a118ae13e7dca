/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "regwatch",
		Usage: "Match regulatory updates to subscribers and send digests",
		Description: `Regwatch stores regulatory content items and subscriber
		preferences in PostgreSQL. It serves searchable and personal feeds over
		HTTP and periodically emails each subscriber a digest of the recent items
		matching their keywords or sector.

		Flags can generally be set via environment variables, e.g.:

		--db-host => REGWATCH_DB_HOST=localhost
		--port => REGWATCH_PORT=3000
		`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (trace, debug, info, warn, error)",
				EnvVars: []string{"REGWATCH_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   "text",
				Usage:   "Log format (text, json)",
				EnvVars: []string{"REGWATCH_LOG_FORMAT"},
			},
		},
		Before: func(ctx *cli.Context) error {
			level, err := log.ParseLevel(ctx.String("log-level"))
			if err != nil {
				return err
			}
			log.SetLevel(level)
			switch ctx.String("log-format") {
			case "json":
				log.SetFormatter(&log.JSONFormatter{})
			case "text":
			default:
				return fmt.Errorf("unknown log format %q", ctx.String("log-format"))
			}
			// Stdout is reserved for command output
			log.SetOutput(os.Stderr)
			return nil
		},
		Commands: []*cli.Command{
			serveCmd(),
			digestCmd(),
			searchCmd(),
			registerCmd(),
			ingestCmd(),
			migrateCmd(),
			rollbackCmd(),
			tidyCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}

func Execute() {
	if err := RootApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
