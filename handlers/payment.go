package handlers

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/centrifuge/go-substrate-rpc-client/v2/types"
	"github.com/pkg/errors"

	"github.com/novasamatech/nova-spektr-sub014/builder"
	"github.com/novasamatech/nova-spektr-sub014/models"
)

// PaymentInfo asks the node what call costs when signer dispatches it. The extrinsic
// carries a zero signature, which payment_queryInfo does not verify.
func (c *Chain) PaymentInfo(ctx context.Context, call types.Call, signer types.AccountID) (models.PaymentInfo, error) {
	ext := models.NewExtrinsic(call)
	err := ext.AttachSignature(signer, models.EmptySignature(), models.SignatureOptions{})
	if err != nil {
		return models.PaymentInfo{}, errors.Wrap(err, "failed to build fee estimation extrinsic")
	}
	enc, err := ext.Hex()
	if err != nil {
		return models.PaymentInfo{}, errors.Wrap(err, "failed to encode fee estimation extrinsic")
	}

	var info models.PaymentInfo
	attempt := 0
	op := func() error {
		attempt++
		return c.cli.Call(&info, "payment_queryInfo", enc)
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.PaymentRetries), ctx)
	notify := func(err error, next time.Duration) {
		c.logger.Sugar().Warnw("payment_queryInfo failed, retrying", "attempt", attempt, "retryIn", next, "error", err)
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return models.PaymentInfo{}, errors.Wrapf(builder.ErrPaymentInfoUnavailable, "after %d attempts: %v", attempt, err)
	}
	return info, nil
}
