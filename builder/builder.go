package builder

import (
	"context"

	"github.com/centrifuge/go-substrate-rpc-client/v2/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/novasamatech/nova-spektr-sub014/models"
)

// Builder is one step of a transaction composition chain. Outer builders hold the
// inner builder they wrap and delegate to it for the call they authorize.
type Builder interface {
	Layer() Layer
	// Inner returns the wrapped builder, nil for Direct.
	Inner() Builder
	// Signer is the account that signs the outermost extrinsic.
	Signer() types.AccountID
	ResolveCall(ctx context.Context) (Call, error)
	EstimateWeight(ctx context.Context) (models.Weight, error)
	SubmittableExtrinsic(ctx context.Context) (Submittable, error)
	SigningPayload(ctx context.Context, info SigningInfo) (*SigningPayload, error)
}

// Submittable is a fully wrapped, not yet signed extrinsic.
type Submittable struct {
	Call      Call
	Signer    types.AccountID
	Extrinsic models.Extrinsic
}

// PaymentInfoProvider simulates fees for a call dispatched by signer.
type PaymentInfoProvider interface {
	PaymentInfo(ctx context.Context, call types.Call, signer types.AccountID) (models.PaymentInfo, error)
}

// Composer creates builders and wraps them in authorization layers.
type Composer struct {
	Indexer  CallIndexer
	Payments PaymentInfoProvider
	// Known are the accounts this wallet controls, in preference order.
	Known    []types.AccountID
	Selector SignatorySelector

	logger *zap.Logger
}

func NewComposer(indexer CallIndexer, payments PaymentInfoProvider, known []types.AccountID, logger *zap.Logger) *Composer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{
		Indexer:  indexer,
		Payments: payments,
		Known:    known,
		Selector: FirstKnown{},
		logger:   logger,
	}
}

// Direct starts a chain: call dispatched and signed by account.
func (c *Composer) Direct(account types.AccountID, call Call) Builder {
	return &Direct{
		composer: c,
		layer:    DirectLayer{Account: account},
		call:     call,
	}
}

// Build wraps inner in an outer authorization layer.
func (c *Composer) Build(inner Builder, layer Layer) (Builder, error) {
	if inner == nil {
		return nil, errors.Wrap(ErrInvalidLayer, "nothing to wrap")
	}
	switch l := layer.(type) {
	case MultisigLayer:
		return c.newMultisig(inner, l)
	case ProxyLayer:
		return c.newProxy(inner, l)
	case DirectLayer:
		return nil, errors.Wrap(ErrInvalidLayer, "direct layer can only start a chain")
	default:
		return nil, errors.Wrapf(ErrInvalidLayer, "unsupported layer %T", layer)
	}
}

// Chain builds a Direct builder for call and wraps it in layers, innermost first.
func (c *Composer) Chain(account types.AccountID, call Call, layers ...Layer) (Builder, error) {
	b := c.Direct(account, call)
	for _, layer := range layers {
		var err error
		b, err = c.Build(b, layer)
		if err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (c *Composer) paymentInfo(ctx context.Context, call Call, signer types.AccountID) (models.PaymentInfo, error) {
	if c.Payments == nil {
		return models.PaymentInfo{}, errors.Wrap(ErrPaymentInfoUnavailable, "no payment info provider")
	}
	info, err := c.Payments.PaymentInfo(ctx, call.Raw, signer)
	if err != nil {
		if errors.Is(err, ErrPaymentInfoUnavailable) {
			return models.PaymentInfo{}, err
		}
		return models.PaymentInfo{}, errors.Wrapf(ErrPaymentInfoUnavailable, "%s: %v", call.Name(), err)
	}
	return info, nil
}

// Direct dispatches a call from the account that signs it.
type Direct struct {
	composer *Composer
	layer    DirectLayer
	call     Call
}

func (d *Direct) Layer() Layer            { return d.layer }
func (d *Direct) Inner() Builder          { return nil }
func (d *Direct) Signer() types.AccountID { return d.layer.Account }

func (d *Direct) ResolveCall(_ context.Context) (Call, error) {
	return d.call, nil
}

func (d *Direct) EstimateWeight(ctx context.Context) (models.Weight, error) {
	return estimateWeight(ctx, d.composer, d)
}

func (d *Direct) SubmittableExtrinsic(_ context.Context) (Submittable, error) {
	return Submittable{
		Call:      d.call,
		Signer:    d.layer.Account,
		Extrinsic: models.NewExtrinsic(d.call.Raw),
	}, nil
}

func (d *Direct) SigningPayload(ctx context.Context, info SigningInfo) (*SigningPayload, error) {
	return buildSigningPayload(ctx, d, info)
}

func estimateWeight(ctx context.Context, c *Composer, b Builder) (models.Weight, error) {
	call, err := b.ResolveCall(ctx)
	if err != nil {
		return models.Weight{}, err
	}
	info, err := c.paymentInfo(ctx, call, b.Signer())
	if err != nil {
		return models.Weight{}, err
	}
	return info.Weight, nil
}
