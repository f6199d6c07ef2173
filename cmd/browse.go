/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"snapboard/browse"
	"snapboard/config"
	"snapboard/feed"
)

func browseCmd() *cli.Command {
	return &cli.Command{
		Name:  "browse",
		Usage: "Browse the feed in the terminal",
		Description: `Runs the snap-scrolling feed in the terminal against a running
snapboard server.

One post fills the screen. j/k, the arrow keys or the mouse wheel move one
post at a time, c opens the comments, u and d vote, f toggles the favorite
and q quits.

Logging would corrupt the screen, so log output goes to --log-file or is
discarded.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "proxy",
				Aliases: []string{"u"},
				Value:   "http://localhost:3000",
				Usage:   "Base URL of the snapboard server",
				EnvVars: []string{"SNAPBOARD_PROXY"},
			},
			&cli.StringFlag{
				Name:    "tags",
				Aliases: []string{"t"},
				Usage:   "Tag query, overrides feed.tags of the config file",
				EnvVars: []string{"SNAPBOARD_TAGS"},
			},
			&cli.StringFlag{
				Name:    "login",
				Usage:   "Login sent with votes and favorites when the server has none",
				EnvVars: []string{"SNAPBOARD_LOGIN"},
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "API key sent with votes and favorites when the server has none",
				EnvVars: []string{"SNAPBOARD_API_KEY"},
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a TOML tuning file",
				EnvVars: []string{"SNAPBOARD_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-file",
				Usage:   "Write logs to this file",
				EnvVars: []string{"SNAPBOARD_LOG_FILE"},
			},
			&cli.BoolFlag{
				Name:  "click-to-close",
				Usage: "Close an open comment panel when clicking outside of it",
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := config.LoadConfig(ctx.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if path := ctx.String("log-file"); path != "" {
				f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return fmt.Errorf("could not open log file: %w", err)
				}
				defer f.Close()
				log.SetOutput(f)
			} else {
				log.SetOutput(io.Discard)
			}

			tags := cfg.Feed.Tags
			if ctx.IsSet("tags") {
				tags = ctx.String("tags")
			}

			client := feed.NewClient(ctx.String("proxy"), tags, cfg.Feed.PageLimit, feed.Credentials{
				Login:  ctx.String("login"),
				APIKey: ctx.String("api-key"),
			})

			opts := feed.OptionsFromConfig(cfg)
			opts.Touch = ctx.Bool("click-to-close")

			log.WithFields(log.Fields{
				"proxy": ctx.String("proxy"),
				"tags":  tags,
			}).Info("Starting terminal feed")

			return browse.Run(ctx.Context, client, opts)
		},
	}
}
