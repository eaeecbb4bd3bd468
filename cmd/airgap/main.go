package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/novasamatech/nova-spektr-sub014/config"
)

func main() {
	app := &cli.App{
		Name:  "airgap",
		Usage: "Sign Substrate transactions with an air-gapped device over QR codes",
		Description: `Builds transactions, optionally wrapped in multisig and proxy layers, shows
their signing payloads as an animated QR frame stream and reads the signatures back.

Frames are written to stdout as hex, one per line. Scanned frames are read from stdin.`,
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "YAML chains and transport configuration",
				EnvVars: []string{config.EnvConfigFile},
			},
			&cli.StringFlag{
				Name:    "chain",
				Usage:   "Configured chain name",
				Value:   "polkadot",
				EnvVars: []string{config.EnvChain},
			},
			&cli.StringFlag{
				Name:    "rpc-url",
				Aliases: []string{"rpc"},
				Usage:   "Override the chain's websocket RPC endpoint",
				EnvVars: []string{config.EnvRPCURL},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose logging",
				EnvVars: []string{config.EnvDebug},
			},
		},
		Commands: []*cli.Command{
			signCommand(),
			assembleCommand(),
			decodeCommand(),
			blockTimeCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}
