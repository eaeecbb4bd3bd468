package fountain

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

// SchemeID is the first byte of every frame.
type SchemeID byte

const (
	// SchemeSingle frames carry the whole payload after the scheme byte.
	SchemeSingle SchemeID = 0x00
	// SchemeRLF is the systematic random linear fountain over GF(256).
	SchemeRLF SchemeID = 0x01
	// SchemeReedSolomon is the fixed-rate Reed-Solomon scheme cycled endlessly.
	SchemeReedSolomon SchemeID = 0x02
)

func (s SchemeID) String() string {
	switch s {
	case SchemeSingle:
		return "single"
	case SchemeRLF:
		return "rlf"
	case SchemeReedSolomon:
		return "reed-solomon"
	default:
		return "unknown"
	}
}

// HeaderSize is the per-frame overhead of multi-frame schemes.
const HeaderSize = 1 + 4 + 4 + 2 + 4

// Symbol is one self-describing frame.
type Symbol struct {
	Scheme     SchemeID
	PayloadID  uint32
	PayloadLen uint32
	SymbolSize uint16
	// ESI is the encoding symbol id. ESI < K are source symbols.
	ESI  uint32
	Data []byte
}

// SourceSymbols is K for the payload this symbol belongs to.
func (s Symbol) SourceSymbols() int {
	if s.Scheme == SchemeSingle {
		return 1
	}
	return sourceSymbols(int(s.PayloadLen), int(s.SymbolSize))
}

func (s Symbol) MarshalBinary() ([]byte, error) {
	if s.Scheme == SchemeSingle {
		out := make([]byte, 1+len(s.Data))
		copy(out[1:], s.Data)
		return out, nil
	}
	if len(s.Data) != int(s.SymbolSize) {
		return nil, errors.Wrapf(ErrInvalidFrame, "symbol data is %d bytes, want %d", len(s.Data), s.SymbolSize)
	}
	out := make([]byte, HeaderSize+len(s.Data))
	out[0] = byte(s.Scheme)
	binary.BigEndian.PutUint32(out[1:5], s.PayloadID)
	binary.BigEndian.PutUint32(out[5:9], s.PayloadLen)
	binary.BigEndian.PutUint16(out[9:11], s.SymbolSize)
	binary.BigEndian.PutUint32(out[11:15], s.ESI)
	copy(out[HeaderSize:], s.Data)
	return out, nil
}

// ParseSymbol decodes one frame. The returned Data does not alias frame.
func ParseSymbol(frame []byte) (Symbol, error) {
	if len(frame) == 0 {
		return Symbol{}, errors.Wrap(ErrInvalidFrame, "empty frame")
	}
	scheme := SchemeID(frame[0])
	switch scheme {
	case SchemeSingle:
		if len(frame) == 1 {
			return Symbol{}, errors.Wrap(ErrInvalidFrame, "empty single frame payload")
		}
		data := append([]byte(nil), frame[1:]...)
		return Symbol{
			Scheme:     SchemeSingle,
			PayloadID:  PayloadID(data),
			PayloadLen: uint32(len(data)),
			Data:       data,
		}, nil
	case SchemeRLF, SchemeReedSolomon:
	default:
		return Symbol{}, errors.Wrapf(ErrInvalidFrame, "unknown scheme 0x%02x", frame[0])
	}

	if len(frame) < HeaderSize {
		return Symbol{}, errors.Wrapf(ErrInvalidFrame, "frame of %d bytes is shorter than header", len(frame))
	}
	s := Symbol{
		Scheme:     scheme,
		PayloadID:  binary.BigEndian.Uint32(frame[1:5]),
		PayloadLen: binary.BigEndian.Uint32(frame[5:9]),
		SymbolSize: binary.BigEndian.Uint16(frame[9:11]),
		ESI:        binary.BigEndian.Uint32(frame[11:15]),
	}
	if s.SymbolSize == 0 || s.PayloadLen == 0 {
		return Symbol{}, errors.Wrap(ErrInvalidFrame, "zero symbol size or payload length")
	}
	if len(frame)-HeaderSize != int(s.SymbolSize) {
		return Symbol{}, errors.Wrapf(ErrInvalidFrame, "frame carries %d data bytes, header says %d", len(frame)-HeaderSize, s.SymbolSize)
	}
	s.Data = append([]byte(nil), frame[HeaderSize:]...)
	return s, nil
}

// PayloadID is the first four bytes of blake2b-256(payload), big-endian.
func PayloadID(payload []byte) uint32 {
	sum := blake2b.Sum256(payload)
	return binary.BigEndian.Uint32(sum[:4])
}

func sourceSymbols(payloadLen, symbolSize int) int {
	return (payloadLen + symbolSize - 1) / symbolSize
}
