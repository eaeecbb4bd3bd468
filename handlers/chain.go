package handlers

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	gsrpc "github.com/centrifuge/go-substrate-rpc-client/v2"
	"github.com/centrifuge/go-substrate-rpc-client/v2/client"
	"github.com/centrifuge/go-substrate-rpc-client/v2/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/novasamatech/nova-spektr-sub014/builder"
	"github.com/novasamatech/nova-spektr-sub014/models"
)

// Chain reads signing state from a node, simulates fees and submits extrinsics.
type Chain struct {
	Client models.Client
	// WaitFinalized makes Submit wait for finality instead of block inclusion.
	WaitFinalized bool
	// PaymentRetries bounds payment_queryInfo attempts after the first one.
	PaymentRetries uint64

	cli     client.Client
	meta    *types.Metadata
	indexer builder.CallIndexer
	logger  *zap.Logger

	newBackOff func() backoff.BackOff
}

func NewChain(cli models.Client, logger *zap.Logger) (*Chain, error) {
	api, err := gsrpc.NewSubstrateAPI(cli.Addr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to %s", cli.Addr)
	}
	meta, err := api.RPC.State.GetMetadataLatest()
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch metadata")
	}
	c := newChain(cli, api.Client, meta, logger)
	c.logger.Sugar().Infow("Connected to chain", "addr", cli.Addr, "ss58Prefix", cli.SS58Prefix)
	return c, nil
}

func newChain(cli models.Client, rpc client.Client, meta *types.Metadata, logger *zap.Logger) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Chain{
		Client:         cli,
		PaymentRetries: 4,
		cli:            rpc,
		meta:           meta,
		logger:         logger,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 250 * time.Millisecond
			b.MaxElapsedTime = 15 * time.Second
			return b
		},
	}
	if meta != nil {
		c.indexer = meta
	}
	return c
}

// Metadata of the runtime at connection time. It resolves call indices for builders.
func (c *Chain) Metadata() *types.Metadata {
	return c.meta
}

// SigningInfo snapshots what a signing payload for account commits to. The era starts
// at the latest block and lasts eraPeriod blocks.
func (c *Chain) SigningInfo(ctx context.Context, account types.AccountID, eraPeriod uint64) (builder.SigningInfo, error) {
	if err := ctx.Err(); err != nil {
		return builder.SigningInfo{}, err
	}

	genesis, err := c.blockHash(0)
	if err != nil {
		return builder.SigningInfo{}, errors.Wrap(err, "failed to fetch genesis hash")
	}

	var header types.Header
	if err := c.cli.Call(&header, "chain_getHeader"); err != nil {
		return builder.SigningInfo{}, errors.Wrap(err, "failed to fetch latest header")
	}
	current := uint64(header.Number)
	era := models.NewMortalEra(current, eraPeriod)
	birth := models.MortalEraBirth(era, current)
	birthHash, err := c.blockHash(birth)
	if err != nil {
		return builder.SigningInfo{}, errors.Wrapf(err, "failed to fetch hash of block %d", birth)
	}

	var rv types.RuntimeVersion
	if err := c.cli.Call(&rv, "state_getRuntimeVersion"); err != nil {
		return builder.SigningInfo{}, errors.Wrap(err, "failed to fetch runtime version")
	}

	var nonce uint64
	address := models.SS58Addr(account, c.Client.SS58Prefix)
	if err := c.cli.Call(&nonce, "system_accountNextIndex", address); err != nil {
		return builder.SigningInfo{}, errors.Wrapf(err, "failed to fetch nonce of %s", address)
	}

	c.logger.Sugar().Debugw("Fetched signing info",
		"account", address,
		"block", current,
		"eraBirth", birth,
		"nonce", nonce,
		"specVersion", rv.SpecVersion,
	)

	return builder.SigningInfo{
		GenesisHash:        genesis,
		BlockHash:          birthHash,
		BlockNumber:        birth,
		Era:                era,
		Nonce:              nonce,
		SpecVersion:        uint32(rv.SpecVersion),
		TransactionVersion: uint32(rv.TransactionVersion),
	}, nil
}

func (c *Chain) blockHash(number uint64) (types.Hash, error) {
	var res string
	if err := c.cli.Call(&res, "chain_getBlockHash", number); err != nil {
		return types.Hash{}, err
	}
	if res == "" {
		return types.Hash{}, errors.Errorf("block %d not found", number)
	}
	return types.NewHashFromHexString(res)
}
