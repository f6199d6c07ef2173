/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"snapboard/config"
	"snapboard/server"
	"snapboard/upstream"
)

func upstreamFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "login",
			Usage:   "Upstream account name used for authenticated requests",
			EnvVars: []string{"SNAPBOARD_LOGIN"},
		},
		&cli.StringFlag{
			Name:    "api-key",
			Usage:   "Upstream API key belonging to the login",
			EnvVars: []string{"SNAPBOARD_API_KEY"},
		},
		&cli.StringFlag{
			Name:    "host",
			Usage:   "Upstream API base URL, overrides the config file",
			EnvVars: []string{"SNAPBOARD_HOST"},
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to a TOML tuning file",
			EnvVars: []string{"SNAPBOARD_CONFIG"},
		},
	}
}

func loadConfig(ctx *cli.Context) (*config.TomlConfig, error) {
	cfg, err := config.LoadConfig(ctx.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if host := ctx.String("host"); host != "" {
		cfg.Upstream.Host = host
	}
	return cfg, nil
}

func upstreamClient(cfg *config.TomlConfig, creds upstream.Credentials) *upstream.Client {
	return upstream.New(upstream.Config{
		Host:              cfg.Upstream.Host,
		UserAgent:         cfg.Upstream.UserAgent,
		Credentials:       creds,
		ExcludedExt:       cfg.Upstream.ExcludedExt,
		Timeout:           cfg.Upstream.Timeout.Duration,
		LookupTimeout:     cfg.Upstream.LookupTimeout.Duration,
		CommentsDeadline:  cfg.Upstream.CommentsDeadline.Duration,
		MaxComments:       cfg.Upstream.MaxComments,
		MaxAvatarLookups:  cfg.Upstream.MaxAvatarLookups,
		RequestsPerSecond: cfg.Upstream.RequestsPerSecond,
		Burst:             cfg.Upstream.Burst,
	})
}

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the proxy API and the static front-end",
		Description: `Starts the snapboard HTTP server.

Relays post listings, votes and favorites to the upstream API and aggregates
comments through a chain of fallback endpoints. Requests are authenticated
upstream only when both a login and an API key are configured.

Prometheus metrics are exposed on /metrics.`,
		Flags: append([]cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   3000,
				Usage:   "Port to listen on",
				EnvVars: []string{"SNAPBOARD_PORT", "PORT"},
			},
			&cli.StringFlag{
				Name:    "bind",
				Aliases: []string{"b"},
				Value:   "0.0.0.0",
				Usage:   "Address to bind the server to",
				EnvVars: []string{"SNAPBOARD_BIND"},
			},
		}, upstreamFlags()...),
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			client := upstreamClient(cfg, upstream.Credentials{
				Login:  ctx.String("login"),
				APIKey: ctx.String("api-key"),
			})

			app := server.Server(&server.ServerConfig{
				AllowOrigins: cfg.Server.AllowOrigins,
				Upstream:     client,
			})

			log.WithFields(log.Fields{
				"upstream":      client.Host(),
				"authenticated": client.Authenticated(),
			}).Info("Configured upstream")

			// Graceful shutdown
			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-sigs
				log.Info("Gracefully shutting down...")
				if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
					log.Errorf("Error during shutdown: %v", err)
				}
			}()

			addr := fmt.Sprintf("%s:%d", ctx.String("bind"), ctx.Int("port"))
			log.Infof("Starting server on %s", addr)
			if err := app.Listen(addr); err != nil {
				return fmt.Errorf("server stopped: %w", err)
			}

			log.Info("Done!")
			return nil
		},
	}
}
