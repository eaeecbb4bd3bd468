package builder

import (
	"context"

	"github.com/centrifuge/go-substrate-rpc-client/v2/scale"
	"github.com/centrifuge/go-substrate-rpc-client/v2/types"
	"github.com/pkg/errors"

	"github.com/novasamatech/nova-spektr-sub014/models"
)

// ProxyType is the index of the proxy type variant in the chain's ProxyType enum.
type ProxyType uint8

// ProxyTypeAny is variant 0 on Polkadot, Kusama and most parachains.
const ProxyTypeAny ProxyType = 0

type optionProxyType struct {
	value *ProxyType
}

func (o optionProxyType) Encode(encoder scale.Encoder) error {
	if o.value == nil {
		return encoder.PushByte(0)
	}
	if err := encoder.PushByte(1); err != nil {
		return err
	}
	return encoder.PushByte(byte(*o.value))
}

// Proxy dispatches the inner call on behalf of the inner signer.
type Proxy struct {
	composer *Composer
	inner    Builder
	layer    ProxyLayer
}

func (c *Composer) newProxy(inner Builder, layer ProxyLayer) (*Proxy, error) {
	if inner.Signer() == layer.Delegate {
		return nil, errors.Wrap(ErrInvalidLayer, "delegate proxies itself")
	}
	return &Proxy{composer: c, inner: inner, layer: layer}, nil
}

func (p *Proxy) Layer() Layer            { return p.layer }
func (p *Proxy) Inner() Builder          { return p.inner }
func (p *Proxy) Signer() types.AccountID { return p.layer.Delegate }

// Real is the proxied account the inner call is dispatched from.
func (p *Proxy) Real() types.AccountID { return p.inner.Signer() }

// Announces reports whether the layer announces the call instead of dispatching it.
func (p *Proxy) Announces() bool { return p.layer.Delay > 0 }

func (p *Proxy) ResolveCall(ctx context.Context) (Call, error) {
	sub, err := p.SubmittableExtrinsic(ctx)
	if err != nil {
		return Call{}, err
	}
	return sub.Call, nil
}

func (p *Proxy) EstimateWeight(ctx context.Context) (models.Weight, error) {
	return estimateWeight(ctx, p.composer, p)
}

func (p *Proxy) SubmittableExtrinsic(ctx context.Context) (Submittable, error) {
	inner, err := p.inner.SubmittableExtrinsic(ctx)
	if err != nil {
		return Submittable{}, err
	}
	real := p.Real()
	realAddr := models.NewMultiAddressFromAccountID(real[:])

	var call Call
	if p.Announces() {
		hash, err := inner.Call.Hash()
		if err != nil {
			return Submittable{}, errors.Wrap(err, "failed to hash announced call")
		}
		call, err = NewCall(p.composer.Indexer, "Proxy.announce", realAddr, hash)
		if err != nil {
			return Submittable{}, err
		}
		announced := inner.Call
		call.Inner = &announced
	} else {
		proxyType := p.layer.ProxyType
		call, err = NewCall(p.composer.Indexer, "Proxy.proxy",
			realAddr,
			optionProxyType{value: &proxyType},
			inner.Call,
		)
		if err != nil {
			return Submittable{}, err
		}
	}

	return Submittable{
		Call:      call,
		Signer:    p.layer.Delegate,
		Extrinsic: models.NewExtrinsic(call.Raw),
	}, nil
}

func (p *Proxy) SigningPayload(ctx context.Context, info SigningInfo) (*SigningPayload, error) {
	return buildSigningPayload(ctx, p, info)
}
