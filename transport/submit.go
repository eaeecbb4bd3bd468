package transport

import (
	"context"

	"github.com/centrifuge/go-substrate-rpc-client/v2/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/novasamatech/nova-spektr-sub014/models"
)

// Inclusion locates a submitted extrinsic on chain.
type Inclusion struct {
	BlockHash   types.Hash
	BlockNumber uint64
	Index       int
	Finalized   bool
}

// Submitter broadcasts a signed extrinsic and waits for its inclusion.
type Submitter interface {
	Submit(ctx context.Context, ext models.Extrinsic) (Inclusion, error)
}

type SubmissionResult struct {
	Signed    Signed
	Hash      types.Hash
	Inclusion Inclusion
	// Err wraps ErrSubmissionFailed when the item failed.
	Err error
}

// SubmissionResults is in envelope order.
type SubmissionResults []SubmissionResult

// Failed returns the items that can be retried.
func (r SubmissionResults) Failed() []Signed {
	var out []Signed
	for _, res := range r {
		if res.Err != nil {
			out = append(out, res.Signed)
		}
	}
	return out
}

// SubmitAll submits one by one in envelope order, since nonces of one signer must
// reach the pool in order. A failing item does not stop the others.
func SubmitAll(ctx context.Context, submitter Submitter, signed []Signed, logger *zap.Logger, metrics *Metrics) SubmissionResults {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	results := make(SubmissionResults, len(signed))
	for i, item := range signed {
		res := SubmissionResult{Signed: item}
		hash, err := item.Extrinsic.Hash()
		if err == nil {
			res.Hash = hash
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = ctxErr
			} else {
				res.Inclusion, err = submitter.Submit(ctx, item.Extrinsic)
			}
		}
		if err != nil {
			res.Err = errors.Wrapf(ErrSubmissionFailed, "transaction %d: %v", item.Index, err)
			metrics.SubmissionsTotal.WithLabelValues("failed").Inc()
			logger.Sugar().Warnw("Submission failed", "index", item.Index, "hash", res.Hash.Hex(), "error", err)
		} else {
			metrics.SubmissionsTotal.WithLabelValues("included").Inc()
			logger.Sugar().Infow("Extrinsic included",
				"index", item.Index,
				"hash", res.Hash.Hex(),
				"block", res.Inclusion.BlockNumber,
				"extrinsicIndex", res.Inclusion.Index,
			)
		}
		results[i] = res
	}
	return results
}
