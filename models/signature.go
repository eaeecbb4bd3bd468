package models

import (
	"github.com/centrifuge/go-substrate-rpc-client/v2/types"
)

type ExtrinsicSignatureV4 struct {
	Signer    MultiAddress
	Signature types.MultiSignature
	Era       types.ExtrinsicEra // extra via system::CheckEra
	Nonce     types.UCompact     // extra via system::CheckNonce (Compact<Index> where Index is u32))
	Tip       types.UCompact     // extra via balances::TakeFees (Compact<Balance> where Balance is u128))
}

// NewSr25519Signature wraps a raw 64 byte sr25519 signature.
func NewSr25519Signature(sig []byte) types.MultiSignature {
	return types.MultiSignature{IsSr25519: true, AsSr25519: types.NewSignature(sig)}
}

// EmptySignature is the placeholder used when a node only needs the shape of a
// signed extrinsic, e.g. for payment_queryInfo.
func EmptySignature() types.MultiSignature {
	return types.MultiSignature{IsSr25519: true}
}
