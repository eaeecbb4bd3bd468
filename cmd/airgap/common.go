package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/centrifuge/go-substrate-rpc-client/v2/types"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/novasamatech/nova-spektr-sub014/config"
	"github.com/novasamatech/nova-spektr-sub014/logger"
	"github.com/novasamatech/nova-spektr-sub014/models"
)

type env struct {
	cfg    *config.Config
	chain  *config.ChainConfig
	logger *zap.Logger
}

func setup(c *cli.Context) (*env, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}

	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("verbose") || cfg.Debug})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	chain, err := cfg.Chain(c.String("chain"))
	if err != nil {
		return nil, err
	}
	if url := c.String("rpc-url"); url != "" {
		chain.RPCURL = url
		if err := chain.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
	}
	l.Sugar().Infow("Using chain", "name", chain.Name, "rpc", chain.RPCURL)
	return &env{cfg: cfg, chain: chain, logger: l}, nil
}

func parseAccount(s string) (types.AccountID, error) {
	if strings.HasPrefix(s, "0x") {
		b, err := types.HexDecodeString(s)
		if err != nil {
			return types.AccountID{}, err
		}
		if len(b) != 32 {
			return types.AccountID{}, fmt.Errorf("account id %s must be 32 bytes", s)
		}
		return types.NewAccountID(b), nil
	}
	acc, _, err := models.DecodeSS58Address(s)
	return acc, err
}

func parseAccounts(list []string) ([]types.AccountID, error) {
	out := make([]types.AccountID, 0, len(list))
	for _, s := range list {
		for _, part := range strings.Split(s, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			acc, err := parseAccount(part)
			if err != nil {
				return nil, fmt.Errorf("invalid account %s: %w", part, err)
			}
			out = append(out, acc)
		}
	}
	return out, nil
}

// readFrames yields hex frames, one per line, until r is exhausted.
func readFrames(r io.Reader, fn func(frame []byte) (stop bool)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		line = strings.TrimPrefix(line, "frame ")
		if line == "" {
			continue
		}
		frame, err := types.HexDecodeString(line)
		if err != nil {
			return fmt.Errorf("invalid frame %q: %w", line, err)
		}
		if fn(frame) {
			return nil
		}
	}
	return scanner.Err()
}
