package builder

import "github.com/pkg/errors"

var (
	// ErrNoKnownSignatory means the wallet controls none of the multisig signatories.
	// It is fatal to the flow: the user has to add a controlling account.
	ErrNoKnownSignatory = errors.New("no known signatory among multisig signatories")

	// ErrPaymentInfoUnavailable is retriable; the chain can be queried again.
	ErrPaymentInfoUnavailable = errors.New("payment info unavailable")

	// ErrOriginMismatch means an inner builder dispatches from an account the outer
	// layer cannot authorize.
	ErrOriginMismatch = errors.New("inner origin does not match authorization layer")

	ErrInvalidLayer = errors.New("invalid authorization layer")
	ErrUnknownCall  = errors.New("unknown call")
)
