package builder

import (
	"context"

	"github.com/centrifuge/go-substrate-rpc-client/v2/types"
	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"

	"github.com/novasamatech/nova-spektr-sub014/models"
)

// Payloads longer than this are hashed before signing.
const maxUnhashedPayload = 256

// SigningInfo is the chain state snapshot a signing payload commits to.
type SigningInfo struct {
	GenesisHash        types.Hash
	BlockHash          types.Hash
	BlockNumber        uint64
	Era                types.ExtrinsicEra
	Nonce              uint64
	Tip                uint64
	SpecVersion        uint32
	TransactionVersion uint32
}

// SigningPayload is exactly what the external signer signs, plus the descriptor needed
// to assemble the signed extrinsic afterwards.
type SigningPayload struct {
	Bytes       []byte
	Transaction UnsignedTransaction
}

// Digest returns the bytes the signature is computed over.
func (p *SigningPayload) Digest() []byte {
	if len(p.Bytes) > maxUnhashedPayload {
		sum := blake2b.Sum256(p.Bytes)
		return sum[:]
	}
	return p.Bytes
}

// UnsignedTransaction describes a transaction that waits for its signature.
type UnsignedTransaction struct {
	Signer             types.AccountID    `cbor:"signer"`
	Call               []byte             `cbor:"call"`
	Path               []string           `cbor:"path"`
	Era                types.ExtrinsicEra `cbor:"era"`
	Nonce              uint64             `cbor:"nonce"`
	Tip                uint64             `cbor:"tip"`
	SpecVersion        uint32             `cbor:"spec_version"`
	TransactionVersion uint32             `cbor:"tx_version"`
	GenesisHash        types.Hash         `cbor:"genesis_hash"`
	BlockHash          types.Hash         `cbor:"block_hash"`
	BlockNumber        uint64             `cbor:"block_number"`
}

// Assemble attaches sig and returns the broadcastable extrinsic.
func (u UnsignedTransaction) Assemble(sig types.MultiSignature) (models.Extrinsic, error) {
	var call types.Call
	if err := types.DecodeFromBytes(u.Call, &call); err != nil {
		return models.Extrinsic{}, errors.Wrap(err, "failed to decode descriptor call")
	}
	ext := models.NewExtrinsic(call)
	err := ext.AttachSignature(u.Signer, sig, models.SignatureOptions{
		Era:   u.Era,
		Nonce: u.Nonce,
		Tip:   u.Tip,
	})
	if err != nil {
		return models.Extrinsic{}, err
	}
	return ext, nil
}

// MarshalDescriptors serializes pending descriptors in envelope order.
func MarshalDescriptors(txs []UnsignedTransaction) ([]byte, error) {
	return cbor.Marshal(txs)
}

func UnmarshalDescriptors(b []byte) ([]UnsignedTransaction, error) {
	var txs []UnsignedTransaction
	if err := cbor.Unmarshal(b, &txs); err != nil {
		return nil, errors.Wrap(err, "failed to decode transaction descriptors")
	}
	return txs, nil
}

// buildSigningPayload is the single place a payload is derived from a builder; every
// layer resolves its call first and then hands it here.
func buildSigningPayload(ctx context.Context, b Builder, info SigningInfo) (*SigningPayload, error) {
	sub, err := b.SubmittableExtrinsic(ctx)
	if err != nil {
		return nil, err
	}
	method, err := sub.Call.Bytes()
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode call")
	}

	era := info.Era
	blockHash, blockNumber := info.BlockHash, info.BlockNumber
	if !era.IsMortalEra {
		// immortal transactions commit to the genesis block
		era = types.ExtrinsicEra{IsImmortalEra: true}
		blockHash, blockNumber = info.GenesisHash, 0
	}

	payload := types.ExtrinsicPayloadV4{
		ExtrinsicPayloadV3: types.ExtrinsicPayloadV3{
			Method:      method,
			Era:         era,
			Nonce:       types.NewUCompactFromUInt(info.Nonce),
			Tip:         types.NewUCompactFromUInt(info.Tip),
			SpecVersion: types.U32(info.SpecVersion),
			GenesisHash: info.GenesisHash,
			BlockHash:   blockHash,
		},
		TransactionVersion: types.U32(info.TransactionVersion),
	}
	encoded, err := types.EncodeToBytes(payload)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode signing payload")
	}

	return &SigningPayload{
		Bytes: encoded,
		Transaction: UnsignedTransaction{
			Signer:             sub.Signer,
			Call:               method,
			Path:               sub.Call.Path(),
			Era:                era,
			Nonce:              info.Nonce,
			Tip:                info.Tip,
			SpecVersion:        info.SpecVersion,
			TransactionVersion: info.TransactionVersion,
			GenesisHash:        info.GenesisHash,
			BlockHash:          blockHash,
			BlockNumber:        blockNumber,
		},
	}, nil
}
