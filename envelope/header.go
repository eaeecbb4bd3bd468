package envelope

import (
	"bytes"
	"math/big"

	"github.com/centrifuge/go-substrate-rpc-client/v2/scale"
	"github.com/centrifuge/go-substrate-rpc-client/v2/types"
	"github.com/pkg/errors"
)

// FormatVersion tags a Substrate request for the signing device.
const FormatVersion byte = 0x53

// Command tells the signing device what the payload is.
type Command byte

const (
	CommandSignTransaction        Command = 0x02
	CommandSignMessage            Command = 0x03
	CommandSignTransactionDerived Command = 0x05
)

func (c Command) String() string {
	switch c {
	case CommandSignTransaction:
		return "sign-transaction"
	case CommandSignMessage:
		return "sign-message"
	case CommandSignTransactionDerived:
		return "sign-transaction-derived"
	default:
		return "unknown"
	}
}

// Header precedes every signing payload.
type Header struct {
	Command     Command
	GenesisHash types.Hash
	// Address is the signer for CommandSignTransaction and CommandSignMessage.
	Address types.AccountID
	// DerivationPath is the signer for CommandSignTransactionDerived, e.g. "//polkadot//0".
	DerivationPath string
}

func (h Header) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	enc := scale.NewEncoder(&buf)

	buf.WriteByte(FormatVersion)
	buf.WriteByte(byte(h.Command))
	buf.Write(h.GenesisHash[:])

	switch h.Command {
	case CommandSignTransaction, CommandSignMessage:
		buf.Write(h.Address[:])
	case CommandSignTransactionDerived:
		if h.DerivationPath == "" {
			return nil, errors.New("derived signing requires a derivation path")
		}
		err := enc.EncodeUintCompact(*big.NewInt(0).SetUint64(uint64(len(h.DerivationPath))))
		if err != nil {
			return nil, err
		}
		buf.WriteString(h.DerivationPath)
	default:
		return nil, errors.Errorf("unknown command 0x%02x", byte(h.Command))
	}
	return buf.Bytes(), nil
}

func decodeHeader(r *bytes.Reader) (Header, error) {
	dec := scale.NewDecoder(r)
	var h Header

	version, err := dec.ReadOneByte()
	if err != nil {
		return h, malformed("missing header: %v", err)
	}
	if version != FormatVersion {
		return h, malformed("unknown format version 0x%02x", version)
	}
	cmd, err := dec.ReadOneByte()
	if err != nil {
		return h, malformed("missing command: %v", err)
	}
	h.Command = Command(cmd)
	if err := readFull(r, h.GenesisHash[:]); err != nil {
		return h, malformed("short genesis hash")
	}

	switch h.Command {
	case CommandSignTransaction, CommandSignMessage:
		if err := readFull(r, h.Address[:]); err != nil {
			return h, malformed("short address")
		}
	case CommandSignTransactionDerived:
		n, err := readLength(dec, r)
		if err != nil {
			return h, err
		}
		if n == 0 {
			return h, malformed("empty derivation path")
		}
		path := make([]byte, n)
		if err := readFull(r, path); err != nil {
			return h, malformed("short derivation path")
		}
		h.DerivationPath = string(path)
	default:
		return h, malformed("unknown command 0x%02x", cmd)
	}
	return h, nil
}

// Entry is one header-prefixed signing request.
type Entry struct {
	Header  Header
	Payload []byte
}

func (e Entry) MarshalBinary() ([]byte, error) {
	h, err := e.Header.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return append(h, e.Payload...), nil
}

// ParseEntry is the strict inverse of Entry.MarshalBinary.
func ParseEntry(b []byte) (Entry, error) {
	r := bytes.NewReader(b)
	h, err := decodeHeader(r)
	if err != nil {
		return Entry{}, err
	}
	payload := make([]byte, r.Len())
	if err := readFull(r, payload); err != nil {
		return Entry{}, malformed("short payload")
	}
	return Entry{Header: h, Payload: payload}, nil
}
