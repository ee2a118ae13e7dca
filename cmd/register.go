/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"regwatch/db"
	"regwatch/models"
	"strings"

	"github.com/cqroot/prompt"
	"github.com/urfave/cli/v2"
)

// keepChoice leaves the stored preference untouched
const keepChoice = "keep current"

func registerCmd() *cli.Command {
	return &cli.Command{
		Name:  "register",
		Usage: "Register or update a subscriber",
		Description: `Creates a subscriber or updates the preferences of an existing one.

Values not given as flags are asked for interactively. Leaving a prompt
empty keeps the stored value. Keywords are comma separated.`,
		Flags: append(dbFlags(),
			&cli.StringFlag{
				Name:    "email",
				Aliases: []string{"e"},
				Usage:   "Subscriber email address",
			},
			&cli.StringFlag{
				Name:    "sector",
				Aliases: []string{"s"},
				Usage:   "Sector the subscriber follows",
			},
			&cli.StringFlag{
				Name:    "keywords",
				Aliases: []string{"k"},
				Usage:   "Comma separated keywords",
			},
			&cli.StringFlag{
				Name:  "notify",
				Usage: "Notification preference (unset, daily or none)",
			},
		),
		Action: func(ctx *cli.Context) error {
			email := ctx.String("email")
			if !ctx.IsSet("email") {
				answer, err := prompt.New().Ask("Email:").Input("name@example.com")
				if err != nil {
					return err
				}
				email = answer
			}
			email = strings.TrimSpace(email)
			if email == "" {
				return fmt.Errorf("email is required: %w", models.ErrValidation)
			}

			patch, err := registerPatch(ctx)
			if err != nil {
				return err
			}

			database, err := db.NewDB(dbConfig(ctx))
			if err != nil {
				return err
			}
			defer database.Close()

			sub, err := database.UpsertSubscriber(ctx.Context, email, patch)
			if err != nil {
				return err
			}

			out, err := json.Marshal(sub)
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}

func registerPatch(ctx *cli.Context) (models.SubscriberPatch, error) {
	var patch models.SubscriberPatch

	sector, err := flagOrAsk(ctx, "sector", "Sector:")
	if err != nil {
		return patch, err
	}
	if sector != nil {
		s := strings.TrimSpace(*sector)
		patch.Sector = &s
	}

	keywords, err := flagOrAsk(ctx, "keywords", "Keywords:")
	if err != nil {
		return patch, err
	}
	if keywords != nil {
		k := models.ParseKeywords(*keywords)
		patch.Keywords = &k
	}

	var notify string
	if ctx.IsSet("notify") {
		notify = ctx.String("notify")
	} else {
		notify, err = prompt.New().Ask("Notify:").Choose([]string{
			keepChoice,
			string(models.NotifyDaily),
			string(models.NotifyNone),
			string(models.NotifyUnset),
		})
		if err != nil {
			return patch, err
		}
	}
	if notify != keepChoice {
		pref, err := models.ParseNotifyPreference(notify)
		if err != nil {
			return patch, err
		}
		patch.NotifyPreference = &pref
	}

	return patch, nil
}

// flagOrAsk returns the flag value when set, otherwise prompts. An empty
// answer returns nil so the stored value is kept.
func flagOrAsk(ctx *cli.Context, name, question string) (*string, error) {
	if ctx.IsSet(name) {
		v := ctx.String(name)
		return &v, nil
	}
	answer, err := prompt.New().Ask(question).Input("")
	if err != nil || answer == "" {
		return nil, err
	}
	return &answer, nil
}
