/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "snapboard",
		Usage: "A snap-scrolling feed and proxy for an imageboard API",
		Description: `A personal front-end for an e621-style imageboard API.

		The serve command runs a small proxy that fetches posts, relays votes
		and favorites and aggregates comments with best effort avatar lookups.
		It also serves a static page describing the API. The browse command
		runs a one-post-per-screen feed in the terminal against that proxy.

		Flags can generally be set via environment variables or a .env file in
		the working directory, e.g.:

		--login => SNAPBOARD_LOGIN=myname
		--api-key => SNAPBOARD_API_KEY=secret
		--port => SNAPBOARD_PORT=3000
		`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"SNAPBOARD_LOG_LEVEL"},
			},
		},
		Before: func(ctx *cli.Context) error {
			level, err := log.ParseLevel(ctx.String("log-level"))
			if err != nil {
				return err
			}
			log.SetLevel(level)
			return nil
		},
		Commands: []*cli.Command{
			serveCmd(),
			browseCmd(),
			verifyCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}

// LoadEnv reads a .env file from the working directory when there is one
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file loaded")
	}
}
