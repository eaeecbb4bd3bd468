package fountain

import "github.com/pkg/errors"

var (
	ErrEmptyPayload   = errors.New("empty payload")
	ErrInvalidOptions = errors.New("invalid codec options")
	ErrInvalidFrame   = errors.New("invalid frame")
	// ErrCorrupt means the reconstructed payload does not hash to its payload id.
	ErrCorrupt = errors.New("reconstructed payload is corrupt")
)
