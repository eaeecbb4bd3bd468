package handlers

import (
	"context"

	"github.com/centrifuge/go-substrate-rpc-client/v2/types"
	"github.com/pkg/errors"

	"github.com/novasamatech/nova-spektr-sub014/models"
	"github.com/novasamatech/nova-spektr-sub014/transport"
)

var ErrExtrinsicRejected = errors.New("extrinsic rejected by the pool")

// Submit broadcasts ext and waits until it is in a block, or finalized when
// WaitFinalized is set.
func (c *Chain) Submit(ctx context.Context, ext models.Extrinsic) (transport.Inclusion, error) {
	encoded, err := ext.Bytes()
	if err != nil {
		return transport.Inclusion{}, errors.Wrap(err, "failed to encode extrinsic")
	}
	hash, err := ext.Hash()
	if err != nil {
		return transport.Inclusion{}, err
	}

	sub, err := AuthorSubmitAndWatchExtrinsic(ctx, c.cli, ext)
	if err != nil {
		return transport.Inclusion{}, errors.Wrap(err, "failed to submit extrinsic")
	}
	defer sub.Unsubscribe()

	c.logger.Sugar().Infow("Submitted extrinsic", "hash", hash.Hex())

	blockHash, finalized, err := awaitInclusion(ctx, sub.Chan(), sub.Err(), c.WaitFinalized)
	if err != nil {
		return transport.Inclusion{}, errors.Wrapf(err, "extrinsic %s", hash.Hex())
	}
	return c.locate(blockHash, encoded, finalized)
}

// awaitInclusion follows pool statuses until the extrinsic is in a block (or
// finalized when waitFinalized is set) or cannot get there anymore.
func awaitInclusion(ctx context.Context, statuses <-chan types.ExtrinsicStatus, errs <-chan error, waitFinalized bool) (types.Hash, bool, error) {
	for {
		select {
		case <-ctx.Done():
			return types.Hash{}, false, ctx.Err()
		case err := <-errs:
			if err == nil {
				err = errors.New("subscription closed")
			}
			return types.Hash{}, false, err
		case status := <-statuses:
			switch {
			case status.IsFinalized:
				return status.AsFinalized, true, nil
			case status.IsInBlock && !waitFinalized:
				return status.AsInBlock, false, nil
			case status.IsDropped:
				return types.Hash{}, false, errors.Wrap(ErrExtrinsicRejected, "dropped")
			case status.IsInvalid:
				return types.Hash{}, false, errors.Wrap(ErrExtrinsicRejected, "invalid")
			case status.IsUsurped:
				return types.Hash{}, false, errors.Wrapf(ErrExtrinsicRejected, "usurped by %s", status.AsUsurped.Hex())
			case status.IsFinalityTimeout:
				return types.Hash{}, false, errors.Wrap(ErrExtrinsicRejected, "finality timeout")
			}
		}
	}
}

func (c *Chain) locate(blockHash types.Hash, encoded []byte, finalized bool) (transport.Inclusion, error) {
	block, err := ChainGetBlock(c.cli, &blockHash)
	if err != nil {
		return transport.Inclusion{}, errors.Wrapf(err, "failed to fetch block %s", blockHash.Hex())
	}
	idx := extrinsicIndex(&block.Block, encoded)
	if idx < 0 {
		return transport.Inclusion{}, errors.Errorf("extrinsic not found in block %s", blockHash.Hex())
	}
	return transport.Inclusion{
		BlockHash:   blockHash,
		BlockNumber: uint64(block.Block.Header.Number),
		Index:       idx,
		Finalized:   finalized,
	}, nil
}
