package models

import (
	"bytes"
	"fmt"

	"github.com/centrifuge/go-substrate-rpc-client/v2/types"
	"github.com/decred/base58"
	subkey "github.com/vedhavyas/go-subkey"
	"golang.org/x/crypto/blake2b"
)

// SubstratePrefix is the generic substrate network prefix.
const SubstratePrefix uint8 = 42

var ss58Pre = []byte("SS58PRE")

func SS58Address(addr []byte, prefix uint8) (string, error) {
	return subkey.SS58Address(addr, prefix)
}

func SS58Addr(addr types.AccountID, prefix uint8) (out string) {
	out, _ = subkey.SS58Address(addr[:], prefix)
	return
}

// DecodeSS58Address decodes a single-byte-prefix SS58 address and verifies its checksum.
func DecodeSS58Address(ss58addr string) (types.AccountID, uint8, error) {
	decoded := base58.Decode(ss58addr)
	if len(decoded) != 35 {
		return types.AccountID{}, 0, fmt.Errorf("invalid ss58 address %q: unexpected length %d", ss58addr, len(decoded))
	}
	prefix := decoded[0]
	if prefix > 63 {
		return types.AccountID{}, 0, fmt.Errorf("invalid ss58 address %q: unsupported prefix %d", ss58addr, prefix)
	}
	body, checksum := decoded[:33], decoded[33:]

	h, err := blake2b.New512(nil)
	if err != nil {
		return types.AccountID{}, 0, err
	}
	h.Write(ss58Pre)
	h.Write(body)
	if !bytes.Equal(h.Sum(nil)[:2], checksum) {
		return types.AccountID{}, 0, fmt.Errorf("invalid ss58 address %q: checksum mismatch", ss58addr)
	}
	return types.NewAccountID(body[1:]), prefix, nil
}
