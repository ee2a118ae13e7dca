/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"regwatch/db"
	"time"

	"github.com/urfave/cli/v2"
)

func dbFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "db-host",
			Usage:   "PostgreSQL host",
			EnvVars: []string{"REGWATCH_DB_HOST"},
			Value:   "localhost",
		},
		&cli.IntFlag{
			Name:    "db-port",
			Usage:   "PostgreSQL port",
			EnvVars: []string{"REGWATCH_DB_PORT"},
			Value:   5432,
		},
		&cli.StringFlag{
			Name:    "db-user",
			Usage:   "PostgreSQL user",
			EnvVars: []string{"REGWATCH_DB_USER"},
			Value:   "regwatch",
		},
		&cli.StringFlag{
			Name:    "db-password",
			Usage:   "PostgreSQL password",
			EnvVars: []string{"REGWATCH_DB_PASSWORD"},
			Value:   "regwatch",
		},
		&cli.StringFlag{
			Name:    "db-name",
			Usage:   "PostgreSQL database name",
			EnvVars: []string{"REGWATCH_DB_NAME"},
			Value:   "regwatch",
		},
		&cli.StringFlag{
			Name:    "db-sslmode",
			Usage:   "PostgreSQL sslmode",
			EnvVars: []string{"REGWATCH_DB_SSLMODE"},
			Value:   "disable",
		},
	}
}

func dbConfig(ctx *cli.Context) db.ConnConfig {
	return db.ConnConfig{
		Host:     ctx.String("db-host"),
		Port:     ctx.Int("db-port"),
		User:     ctx.String("db-user"),
		Password: ctx.String("db-password"),
		Name:     ctx.String("db-name"),
		SSLMode:  ctx.String("db-sslmode"),
	}
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Value:   "regwatch.toml",
		Usage:   "Path to the TOML configuration file",
		EnvVars: []string{"REGWATCH_CONFIG"},
	}
}

// Secrets stay out of the config file
func mailFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "mail-api-key",
			Usage:   "Email provider API key. Digests are only logged when unset",
			EnvVars: []string{"REGWATCH_MAIL_API_KEY", "RESEND_API_KEY"},
		},
		&cli.StringFlag{
			Name:    "mail-from",
			Usage:   "Sender address, overrides mail.from in the config file",
			EnvVars: []string{"REGWATCH_MAIL_FROM", "EMAIL_FROM"},
		},
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
