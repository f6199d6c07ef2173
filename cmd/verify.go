/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/cqroot/prompt"
	"github.com/cqroot/prompt/input"
	"github.com/urfave/cli/v2"

	"snapboard/upstream"
)

func verifyCmd() *cli.Command {
	return &cli.Command{
		Name:  "verify",
		Usage: "Check upstream credentials",
		Description: `Checks a login and API key against the upstream user endpoint.

Prompts for whatever is not configured through flags, the environment or a
.env file. Prints the avatar URL of the account on success.`,
		Flags: upstreamFlags(),
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			login := ctx.String("login")
			if login == "" {
				login, err = prompt.New().Ask("Login:").Input("myname")
				if err != nil {
					return err
				}
			}

			apiKey := ctx.String("api-key")
			if apiKey == "" {
				apiKey, err = prompt.New().Ask("API key:").Input("", input.WithEchoMode(input.EchoNone))
				if err != nil {
					return err
				}
			}

			creds := upstream.Credentials{Login: login, APIKey: apiKey}
			client := upstreamClient(cfg, creds)

			avatar, err := client.Verify(ctx.Context, creds)
			if err != nil {
				return fmt.Errorf("could not verify credentials: %w", err)
			}

			fmt.Println("Credentials accepted for", login)
			if avatar != "" {
				fmt.Println("Avatar:", avatar)
			}
			return nil
		},
	}
}
