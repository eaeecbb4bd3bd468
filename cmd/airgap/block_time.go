package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/novasamatech/nova-spektr-sub014/handlers"
	"github.com/novasamatech/nova-spektr-sub014/models"
)

func blockTimeCommand() *cli.Command {
	return &cli.Command{
		Name:  "block-time",
		Usage: "Estimate the chain's block time from recent Timestamp.set inherents",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "samples",
				Usage: "Number of recent blocks to average over",
				Value: 10,
			},
		},
		Action: func(c *cli.Context) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			chain, err := handlers.NewChain(models.Client{Addr: e.chain.RPCURL, SS58Prefix: e.chain.SS58Prefix}, e.logger)
			if err != nil {
				return err
			}
			d, err := chain.EstimateBlockTime(c.Context, c.Int("samples"))
			if err != nil {
				return err
			}
			fmt.Println(d)
			return nil
		},
	}
}
