package builder

import (
	"github.com/centrifuge/go-substrate-rpc-client/v2/types"
)

type LayerKind int

const (
	LayerDirect LayerKind = iota
	LayerMultisig
	LayerProxy
)

func (k LayerKind) String() string {
	switch k {
	case LayerDirect:
		return "direct"
	case LayerMultisig:
		return "multisig"
	case LayerProxy:
		return "proxy"
	default:
		return "unknown"
	}
}

// Layer is an authorization rule wrapped around a call.
type Layer interface {
	Kind() LayerKind
}

type DirectLayer struct {
	Account types.AccountID
}

func (DirectLayer) Kind() LayerKind { return LayerDirect }

// MultisigLayer dispatches the inner call from the multisig account derived from
// Signatories and Threshold.
type MultisigLayer struct {
	Threshold   uint16
	Signatories []types.AccountID
	// SelectedSignatory pins the approving signatory; otherwise the composer's
	// SignatorySelector picks one of the known accounts.
	SelectedSignatory *types.AccountID
	// Timepoint of the first approval; nil when this approval opens the operation.
	Timepoint *Timepoint
}

func (MultisigLayer) Kind() LayerKind { return LayerMultisig }

// ProxyLayer dispatches the inner call on behalf of the inner signer, signed by Delegate.
type ProxyLayer struct {
	Delegate  types.AccountID
	ProxyType ProxyType
	// Delay in blocks of a time-locked proxy. Non-zero delays announce the call instead of dispatching it.
	Delay uint32
}

func (ProxyLayer) Kind() LayerKind { return LayerProxy }
