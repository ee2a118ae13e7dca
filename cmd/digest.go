/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"regwatch/config"
	"regwatch/db"
	"regwatch/digest"
	"regwatch/dispatch"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func newRunner(ctx *cli.Context, cfg *config.TomlConfig, database *db.DB) *digest.Runner {
	client := dispatch.New(dispatch.Config{
		APIURL:         cfg.Mail.APIURL,
		APIKey:         ctx.String("mail-api-key"),
		From:           lo.Ternary(ctx.String("mail-from") != "", ctx.String("mail-from"), cfg.Mail.From),
		Timeout:        seconds(cfg.Mail.TimeoutSeconds),
		MaxElapsedTime: seconds(cfg.Mail.MaxRetrySeconds),
	})
	if client.Backend() == dispatch.BackendDryRun {
		log.Warn("Email provider not configured, digests will only be logged")
	}

	builder := digest.NewBuilder(
		digest.WithRenderCap(cfg.Digest.RenderCap),
		digest.WithSubjectPrefix(cfg.Digest.SubjectPrefix),
	)

	return digest.NewRunner(database, database, client,
		digest.WithWindow(cfg.Digest.Window),
		digest.WithWorkers(cfg.Digest.DispatchWorkers),
		digest.WithBuilder(builder),
	)
}

func digestCmd() *cli.Command {
	return &cli.Command{
		Name:  "digest",
		Usage: "Run one digest now",
		Description: `Matches the most recent content items against every subscriber
and sends one digest email per subscriber with at least one match.

Prints the run summary as a single JSON object on stdout. Without a mail
API key and sender the digests are logged instead of sent.`,
		Flags: append(append(dbFlags(), mailFlags()...), configFlag()),
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

			summary, err := newRunner(ctx, cfg, database).Run(ctx.Context)
			if err != nil {
				return err
			}

			out, err := json.Marshal(summary)
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}
