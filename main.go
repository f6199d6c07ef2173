package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	_ "golang.org/x/crypto/x509roots/fallback" // We need this to make TLS work in scratch containers

	"snapboard/cmd"
)

func main() {
	cmd.LoadEnv()

	app := cmd.RootApp()
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
