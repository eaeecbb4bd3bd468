package envelope

import (
	"bytes"
	"io"
	"math/big"

	"github.com/centrifuge/go-substrate-rpc-client/v2/scale"
	"github.com/centrifuge/go-substrate-rpc-client/v2/types"
	"github.com/pkg/errors"
)

// Version of the batch layout.
const Version byte = 0x01

type Kind byte

const (
	KindRequests   Kind = 0x01
	KindSignatures Kind = 0x02
)

var ErrMalformedEnvelope = errors.New("malformed envelope")

func malformed(format string, args ...interface{}) error {
	return errors.Wrapf(ErrMalformedEnvelope, format, args...)
}

// Pack writes entries in order. Order is the only link between a request and its
// signature.
func Pack(entries []Entry) ([]byte, error) {
	raw := make([][]byte, len(entries))
	for i, e := range entries {
		b, err := e.MarshalBinary()
		if err != nil {
			return nil, errors.Wrapf(err, "entry %d", i)
		}
		raw[i] = b
	}
	return pack(KindRequests, raw)
}

// Unpack is the strict inverse of Pack.
func Unpack(b []byte) ([]Entry, error) {
	raw, err := unpack(b, KindRequests)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, len(raw))
	for i, r := range raw {
		e, err := ParseEntry(r)
		if err != nil {
			return nil, errors.Wrapf(err, "entry %d", i)
		}
		entries[i] = e
	}
	return entries, nil
}

// PackSignatures builds the envelope the signing device answers with.
func PackSignatures(sigs []types.MultiSignature) ([]byte, error) {
	raw := make([][]byte, len(sigs))
	for i, s := range sigs {
		b, err := types.EncodeToBytes(s)
		if err != nil {
			return nil, errors.Wrapf(err, "signature %d", i)
		}
		raw[i] = b
	}
	return pack(KindSignatures, raw)
}

func UnpackSignatures(b []byte) ([]types.MultiSignature, error) {
	raw, err := unpack(b, KindSignatures)
	if err != nil {
		return nil, err
	}
	sigs := make([]types.MultiSignature, len(raw))
	for i, r := range raw {
		if len(r) == 0 {
			return nil, malformed("empty signature %d", i)
		}
		rd := bytes.NewReader(r)
		if err := scale.NewDecoder(rd).Decode(&sigs[i]); err != nil {
			return nil, malformed("signature %d: %v", i, err)
		}
		if rd.Len() != 0 {
			return nil, malformed("signature %d has %d trailing bytes", i, rd.Len())
		}
		if !sigs[i].IsEd25519 && !sigs[i].IsSr25519 && !sigs[i].IsEcdsa {
			return nil, malformed("signature %d has unknown scheme 0x%02x", i, r[0])
		}
	}
	return sigs, nil
}

func pack(kind Kind, entries [][]byte) ([]byte, error) {
	var buf bytes.Buffer
	enc := scale.NewEncoder(&buf)

	buf.WriteByte(Version)
	buf.WriteByte(byte(kind))
	if err := enc.EncodeUintCompact(*big.NewInt(int64(len(entries)))); err != nil {
		return nil, err
	}
	for _, e := range entries {
		if err := enc.EncodeUintCompact(*big.NewInt(int64(len(e)))); err != nil {
			return nil, err
		}
		buf.Write(e)
	}
	return buf.Bytes(), nil
}

func unpack(b []byte, kind Kind) ([][]byte, error) {
	r := bytes.NewReader(b)
	dec := scale.NewDecoder(r)

	version, err := dec.ReadOneByte()
	if err != nil {
		return nil, malformed("empty envelope")
	}
	if version != Version {
		return nil, malformed("unknown version 0x%02x", version)
	}
	k, err := dec.ReadOneByte()
	if err != nil {
		return nil, malformed("missing kind")
	}
	if Kind(k) != kind {
		return nil, malformed("kind 0x%02x, want 0x%02x", k, byte(kind))
	}

	count, err := readLength(dec, r)
	if err != nil {
		return nil, err
	}
	entries := make([][]byte, 0, count)
	for i := 0; i < count; i++ {
		n, err := readLength(dec, r)
		if err != nil {
			return nil, errors.Wrapf(err, "entry %d", i)
		}
		e := make([]byte, n)
		if err := readFull(r, e); err != nil {
			return nil, malformed("entry %d is short", i)
		}
		entries = append(entries, e)
	}
	if r.Len() != 0 {
		return nil, malformed("%d trailing bytes", r.Len())
	}
	return entries, nil
}

// readLength decodes a canonical compact length that cannot exceed what is left in r.
func readLength(dec *scale.Decoder, r *bytes.Reader) (int, error) {
	before := r.Len()
	v, err := dec.DecodeUintCompact()
	if err != nil {
		return 0, malformed("bad compact length: %v", err)
	}
	if !v.IsUint64() || v.Uint64() > uint64(r.Len()) {
		return 0, malformed("length %s exceeds remaining %d bytes", v.String(), r.Len())
	}
	n := v.Uint64()
	if before-r.Len() != compactSize(n) {
		return 0, malformed("non-canonical compact length %d", n)
	}
	return int(n), nil
}

func compactSize(n uint64) int {
	switch {
	case n < 1<<6:
		return 1
	case n < 1<<14:
		return 2
	case n < 1<<30:
		return 4
	}
	size := 1
	for ; n > 0; n >>= 8 {
		size++
	}
	return size
}

func readFull(r *bytes.Reader, dst []byte) error {
	_, err := io.ReadFull(r, dst)
	return err
}
