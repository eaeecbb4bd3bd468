package models

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/centrifuge/go-substrate-rpc-client/v2/scale"
	"github.com/centrifuge/go-substrate-rpc-client/v2/types"
	"golang.org/x/crypto/blake2b"
)

type Extrinsic struct {
	// Version is the encoded version flag (which encodes the raw transaction version and signing information in one byte)
	Version byte
	// Signature is the ExtrinsicSignatureV4, it's presence depends on the Version flag
	Signature ExtrinsicSignatureV4
	// Method is the call this extrinsic wraps
	Method types.Call
}

// NewExtrinsic creates a new unsigned Extrinsic from the provided Call
func NewExtrinsic(c types.Call) Extrinsic {
	return Extrinsic{
		Version: types.ExtrinsicVersion4,
		Method:  c,
	}
}

// IsSigned returns true if the extrinsic is signed
func (e Extrinsic) IsSigned() bool {
	return e.Version&types.ExtrinsicBitSigned == types.ExtrinsicBitSigned
}

// Type returns the raw transaction version (not flagged with signing information)
func (e Extrinsic) Type() uint8 {
	return e.Version & types.ExtrinsicUnmaskVersion
}

// SignatureOptions are the signed extras that accompany a signature.
type SignatureOptions struct {
	Era   types.ExtrinsicEra
	Nonce uint64
	Tip   uint64
}

// AttachSignature marks the extrinsic as signed by signer with a signature that was
// produced elsewhere (an air-gapped device).
func (e *Extrinsic) AttachSignature(signer types.AccountID, sig types.MultiSignature, o SignatureOptions) error {
	if e.Type() != types.ExtrinsicVersion4 {
		return fmt.Errorf("unsupported extrinsic version: %v (isSigned: %v, type: %v)", e.Version, e.IsSigned(), e.Type())
	}

	era := o.Era
	if !o.Era.IsMortalEra {
		era = types.ExtrinsicEra{IsImmortalEra: true}
	}

	e.Signature = ExtrinsicSignatureV4{
		Signer:    NewMultiAddressFromAccountID(signer[:]),
		Signature: sig,
		Era:       era,
		Nonce:     types.NewUCompactFromUInt(o.Nonce),
		Tip:       types.NewUCompactFromUInt(o.Tip),
	}

	// mark the extrinsic as signed
	e.Version |= types.ExtrinsicBitSigned

	return nil
}

// Bytes returns the length-prefixed encoding that is broadcast to the node.
func (e Extrinsic) Bytes() ([]byte, error) {
	return types.EncodeToBytes(e)
}

// Hex returns the 0x-prefixed form accepted by author_submitExtrinsic.
func (e Extrinsic) Hex() (string, error) {
	return types.EncodeToHexString(e)
}

// Hash is the transaction hash, blake2b-256 over the encoded extrinsic.
func (e Extrinsic) Hash() (types.Hash, error) {
	b, err := e.Bytes()
	if err != nil {
		return types.Hash{}, err
	}
	return types.NewHash(blake2b256(b)), nil
}

func (e *Extrinsic) Decode(decoder scale.Decoder) error {
	// compact length encoding (1, 2, or 4 bytes)
	_, err := decoder.DecodeUintCompact()
	if err != nil {
		return err
	}

	// version, signature bitmask (1 byte)
	err = decoder.Decode(&e.Version)
	if err != nil {
		return err
	}

	// signature
	if e.IsSigned() {
		if e.Type() != types.ExtrinsicVersion4 {
			return fmt.Errorf("unsupported extrinsic version: %v (isSigned: %v, type: %v)", e.Version, e.IsSigned(),
				e.Type())
		}

		err = decoder.Decode(&e.Signature)
		if err != nil {
			return err
		}
	}

	// call
	return decoder.Decode(&e.Method)
}

func (e Extrinsic) Encode(encoder scale.Encoder) error {
	if e.Type() != types.ExtrinsicVersion4 {
		return fmt.Errorf("unsupported extrinsic version: %v (isSigned: %v, type: %v)", e.Version, e.IsSigned(),
			e.Type())
	}

	// create a temporary buffer that will receive the plain encoded transaction (version, signature (optional),
	// method/call)
	var bb = bytes.Buffer{}
	tempEnc := scale.NewEncoder(&bb)

	err := tempEnc.Encode(e.Version)
	if err != nil {
		return err
	}

	if e.IsSigned() {
		err = tempEnc.Encode(e.Signature)
		if err != nil {
			return err
		}
	}

	err = tempEnc.Encode(e.Method)
	if err != nil {
		return err
	}

	// take the temporary buffer to determine length, write that as prefix
	eb := bb.Bytes()
	err = encoder.EncodeUintCompact(*big.NewInt(0).SetUint64(uint64(len(eb))))
	if err != nil {
		return err
	}

	return encoder.Write(eb)
}

func blake2b256(b []byte) []byte {
	sum := blake2b.Sum256(b)
	return sum[:]
}
