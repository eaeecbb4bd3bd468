package fountain

import (
	"math"

	"github.com/pkg/errors"
)

const (
	DefaultSymbolSize = 256
	// DefaultOverhead is the expected reception overhead of the RLF scheme.
	DefaultOverhead = 1.12
	maxSymbolSize   = math.MaxUint16
	// MaxSourceSymbols bounds K on both the encoding and the decoding side.
	MaxSourceSymbols = 1 << 15
)

// Options configure the encoder. Zero values take defaults.
type Options struct {
	Scheme     SchemeID
	SymbolSize int
	// FrameCapacity is the largest frame one QR code carries.
	FrameCapacity int
	Overhead      float64
}

func DefaultOptions() Options {
	return Options{
		Scheme:        SchemeRLF,
		SymbolSize:    DefaultSymbolSize,
		FrameCapacity: HeaderSize + DefaultSymbolSize,
		Overhead:      DefaultOverhead,
	}
}

func (o Options) withDefaults() Options {
	if o.Scheme == SchemeSingle {
		o.Scheme = SchemeRLF
	}
	if o.SymbolSize == 0 {
		o.SymbolSize = DefaultSymbolSize
	}
	if o.FrameCapacity == 0 {
		o.FrameCapacity = HeaderSize + o.SymbolSize
	}
	if o.Overhead == 0 {
		o.Overhead = DefaultOverhead
	}
	return o
}

func (o Options) Validate() error {
	switch {
	case o.SymbolSize <= 0 || o.SymbolSize > maxSymbolSize:
		return errors.Wrapf(ErrInvalidOptions, "symbol size %d out of range", o.SymbolSize)
	case o.FrameCapacity < HeaderSize+o.SymbolSize:
		return errors.Wrapf(ErrInvalidOptions, "frame capacity %d cannot hold a %d byte symbol", o.FrameCapacity, o.SymbolSize)
	case o.Overhead < 1:
		return errors.Wrapf(ErrInvalidOptions, "overhead %v below 1", o.Overhead)
	case o.Scheme != SchemeRLF && o.Scheme != SchemeReedSolomon:
		return errors.Wrapf(ErrInvalidOptions, "unsupported scheme %s", o.Scheme)
	}
	return nil
}

// SymbolSource yields an unbounded stream of symbols for one payload.
type SymbolSource interface {
	Next() Symbol
	PayloadID() uint32
	// SourceSymbols is K.
	SourceSymbols() int
	// RequiredSymbols estimates how many distinct symbols a receiver needs.
	RequiredSymbols() int
}

// Encode prepares payload for display. Payloads that fit one frame skip the fountain.
func Encode(payload []byte, opts Options) (SymbolSource, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}
	opts = opts.withDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if uint64(len(payload)) > math.MaxUint32 {
		return nil, errors.Wrapf(ErrInvalidOptions, "payload of %d bytes too large", len(payload))
	}
	if len(payload)+1 <= opts.FrameCapacity {
		return newSingle(payload), nil
	}

	if k := sourceSymbols(len(payload), opts.SymbolSize); k > MaxSourceSymbols {
		return nil, errors.Wrapf(ErrInvalidOptions, "payload needs %d source symbols, at most %d allowed", k, MaxSourceSymbols)
	}

	id := PayloadID(payload)
	source := split(payload, opts.SymbolSize)
	switch opts.Scheme {
	case SchemeReedSolomon:
		return newRSEncoder(id, len(payload), source, opts.Overhead)
	default:
		return newRLFEncoder(id, len(payload), source, opts.Overhead), nil
	}
}

// split cuts payload into K symbols, zero-padding the last one.
func split(payload []byte, size int) [][]byte {
	k := sourceSymbols(len(payload), size)
	buf := make([]byte, k*size)
	copy(buf, payload)
	out := make([][]byte, k)
	for i := range out {
		out[i] = buf[i*size : (i+1)*size : (i+1)*size]
	}
	return out
}

// requiredSymbols is ceil(k*overhead), tolerant of binary rounding of the overhead.
func requiredSymbols(k int, overhead float64) int {
	return int(math.Ceil(float64(k)*overhead - 1e-9))
}

type single struct {
	payload []byte
	id      uint32
}

func newSingle(payload []byte) *single {
	return &single{payload: append([]byte(nil), payload...), id: PayloadID(payload)}
}

func (s *single) Next() Symbol {
	return Symbol{
		Scheme:     SchemeSingle,
		PayloadID:  s.id,
		PayloadLen: uint32(len(s.payload)),
		Data:       s.payload,
	}
}

func (s *single) PayloadID() uint32    { return s.id }
func (s *single) SourceSymbols() int   { return 1 }
func (s *single) RequiredSymbols() int { return 1 }

// Frames marshals the next n symbols of src.
func Frames(src SymbolSource, n int) ([][]byte, error) {
	out := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		b, err := src.Next().MarshalBinary()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}
