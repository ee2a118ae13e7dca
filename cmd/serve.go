/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"regwatch/config"
	"regwatch/db"
	"regwatch/feeds"
	"regwatch/scheduler"
	"regwatch/server"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the regwatch HTTP API and digest scheduler",
		Description: `Starts the regwatch HTTP server and the digest scheduler.

Serves the public and personal feeds, subscriber onboarding and the
token protected digest trigger. Digests also run on digest.schedule in
digest.timezone unless --no-schedule is given.`,
		Flags: append(append(dbFlags(), mailFlags()...),
			configFlag(),
			&cli.StringFlag{
				Name:    "hostname",
				Aliases: []string{"n"},
				Value:   "",
				Usage:   "The interface to listen on, all interfaces when empty",
				EnvVars: []string{"REGWATCH_HOSTNAME"},
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   3000,
				Usage:   "Port to listen on",
				EnvVars: []string{"REGWATCH_PORT", "PORT"},
			},
			&cli.StringFlag{
				Name:    "trigger-token",
				Usage:   "Shared secret for /digest/run. The trigger rejects every call when unset",
				EnvVars: []string{"REGWATCH_TRIGGER_TOKEN", "CRON_SECRET"},
			},
			&cli.StringFlag{
				Name:    "allow-origins",
				Usage:   "Comma separated CORS origins",
				EnvVars: []string{"REGWATCH_ALLOW_ORIGINS"},
			},
			&cli.DurationFlag{
				Name:    "feed-cache-ttl",
				Usage:   "Cache GET /feed responses for this long, 0 disables",
				EnvVars: []string{"REGWATCH_FEED_CACHE_TTL"},
			},
			&cli.BoolFlag{
				Name:    "no-schedule",
				Usage:   "Only run digests through the HTTP trigger",
				EnvVars: []string{"REGWATCH_NO_SCHEDULE"},
			},
		),
		Action: func(ctx *cli.Context) error {
			cfg, err := config.LoadConfig(ctx.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			database, err := db.NewDB(dbConfig(ctx))
			if err != nil {
				return err
			}
			defer database.Close()

			runner := newRunner(ctx, cfg, database)

			app := server.Server(&server.ServerConfig{
				Feeds:        feeds.NewService(database, cfg.Feed.Limit),
				Runner:       runner,
				Subscribers:  database,
				Health:       database,
				TriggerToken: ctx.String("trigger-token"),
				AllowOrigins: ctx.String("allow-origins"),
				FeedCacheTTL: ctx.Duration("feed-cache-ttl"),
			})

			if ctx.String("trigger-token") == "" {
				log.Warn("No trigger token configured, /digest/run will reject every call")
			}

			runCtx, cancel := context.WithCancel(ctx.Context)
			defer cancel()

			sched, err := scheduler.New(cfg.Digest.Timezone)
			if err != nil {
				return err
			}
			if !ctx.Bool("no-schedule") {
				err := sched.Schedule(cfg.Digest.Schedule, func() {
					// Failures are logged and counted by the runner
					_, _ = runner.Run(runCtx)
				})
				if err != nil {
					return err
				}
				sched.Start()
				log.WithFields(log.Fields{
					"schedule": cfg.Digest.Schedule,
					"timezone": cfg.Digest.Timezone,
					"next":     sched.Next(),
				}).Info("Digest scheduler started")
			}

			// Graceful shutdown
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigChan)

			go func() {
				<-sigChan
				log.Info("Gracefully shutting down...")
				cancel()
				sched.Stop()
				if err := app.ShutdownWithTimeout(60 * time.Second); err != nil {
					log.WithError(err).Error("Error shutting down server")
				}
			}()

			addr := fmt.Sprintf("%s:%d", ctx.String("hostname"), ctx.Int("port"))
			log.WithFields(log.Fields{
				"address": addr,
				"backend": runner.Backend(),
			}).Info("Starting server")

			if err := app.Listen(addr); err != nil {
				return err
			}

			log.Info("Done!")
			return nil
		},
	}
}
