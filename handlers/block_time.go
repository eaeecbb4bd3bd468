package handlers

import (
	"context"
	"time"

	"github.com/centrifuge/go-substrate-rpc-client/v2/types"
	"github.com/pkg/errors"

	"github.com/novasamatech/nova-spektr-sub014/models"
)

// EstimateBlockTime averages the Timestamp.set deltas of the latest samples blocks.
func (c *Chain) EstimateBlockTime(ctx context.Context, samples int) (time.Duration, error) {
	if samples < 2 {
		return 0, errors.Errorf("need at least 2 blocks, got %d", samples)
	}
	if c.indexer == nil {
		return 0, errors.New("no metadata to resolve Timestamp.set")
	}
	setIdx, err := c.indexer.FindCallIndex("Timestamp.set")
	if err != nil {
		return 0, err
	}

	var header types.Header
	if err := c.cli.Call(&header, "chain_getHeader"); err != nil {
		return 0, errors.Wrap(err, "failed to fetch latest header")
	}
	latest := uint64(header.Number)
	if latest+1 < uint64(samples) {
		samples = int(latest + 1)
	}

	moments := make([]time.Time, 0, samples)
	for i := 0; i < samples; i++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		number := latest - uint64(i)
		hash, err := c.blockHash(number)
		if err != nil {
			return 0, errors.Wrapf(err, "failed to fetch hash of block %d", number)
		}
		block, err := ChainGetBlock(c.cli, &hash)
		if err != nil {
			return 0, errors.Wrapf(err, "failed to fetch block %d", number)
		}
		moment, ok, err := blockTimestamp(&block.Block, setIdx)
		if err != nil {
			return 0, errors.Wrapf(err, "block %d", number)
		}
		if !ok {
			continue
		}
		moments = append(moments, moment)
	}

	d, err := averageInterval(moments)
	if err != nil {
		return 0, err
	}
	c.logger.Sugar().Debugw("Estimated block time", "blocks", len(moments), "blockTime", d)
	return d, nil
}

// blockTimestamp reads the Timestamp.set inherent of block.
func blockTimestamp(block *models.Block, setIdx types.CallIndex) (time.Time, bool, error) {
	for _, xt := range block.Extrinsics {
		call, ok, err := xt.InherentCall()
		if err != nil {
			return time.Time{}, false, err
		}
		if !ok || call.CallIndex != setIdx {
			continue
		}
		var moment models.CompactMoment
		if err := types.DecodeFromBytes(call.Args, &moment); err != nil {
			return time.Time{}, false, errors.Wrap(err, "failed to decode Timestamp.set")
		}
		return moment.Time, true, nil
	}
	return time.Time{}, false, nil
}

// averageInterval of moments ordered newest first.
func averageInterval(moments []time.Time) (time.Duration, error) {
	if len(moments) < 2 {
		return 0, errors.New("not enough timestamped blocks")
	}
	span := moments[0].Sub(moments[len(moments)-1])
	if span <= 0 {
		return 0, errors.New("timestamps do not increase")
	}
	return span / time.Duration(len(moments)-1), nil
}
