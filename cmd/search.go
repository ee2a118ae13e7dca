/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"regwatch/config"
	"regwatch/db"
	"regwatch/feeds"
	"regwatch/models"

	"github.com/urfave/cli/v2"
)

func searchCmd() *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Print matching content items to the command line",
		Description: `Searches the most recent content items with the same rules as
the digest: an item matches when the free text appears in its title or
summary, or when it is tagged with the sector. With --email the subscriber's
own preferences are used instead.

Returns each item as a JSON object on a single line. Use a tool like jq to
process the output.

Prints all other log messages to stderr.`,
		Flags: append(dbFlags(),
			configFlag(),
			&cli.StringFlag{
				Name:    "query",
				Aliases: []string{"q"},
				Usage:   "Free text to look for in titles and summaries",
			},
			&cli.StringFlag{
				Name:    "sector",
				Aliases: []string{"s"},
				Usage:   "Sector tag to match exactly",
			},
			&cli.StringFlag{
				Name:    "email",
				Aliases: []string{"e"},
				Usage:   "Show the personal feed of this subscriber",
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

			svc := feeds.NewService(database, cfg.Feed.Limit)

			var items []models.ContentItem
			if ctx.IsSet("email") {
				items, err = svc.PersonalFeed(ctx.Context, ctx.String("email"))
			} else {
				items, err = svc.Search(ctx.Context, ctx.String("query"), ctx.String("sector"))
			}
			if err != nil {
				return err
			}

			for i := range items {
				printStdout(&items[i])
			}
			return nil
		},
	}
}

// Print as single JSON string on a single line
func printStdout(item *models.ContentItem) {
	itemJson, err := json.Marshal(item)
	if err == nil {
		fmt.Println(string(itemJson))
	}
}
