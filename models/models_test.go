package models

import (
	"encoding/hex"
	"encoding/json"
	"testing"
	"time"

	"github.com/centrifuge/go-substrate-rpc-client/v2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const aliceSS58 = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"

func alice(t *testing.T) types.AccountID {
	b, err := hex.DecodeString("d43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d")
	require.NoError(t, err)
	return types.NewAccountID(b)
}

func TestSS58_RoundTrip(t *testing.T) {
	acc := alice(t)

	addr, err := SS58Address(acc[:], SubstratePrefix)
	require.NoError(t, err)
	assert.Equal(t, aliceSS58, addr)

	decoded, prefix, err := DecodeSS58Address(addr)
	require.NoError(t, err)
	assert.Equal(t, SubstratePrefix, prefix)
	assert.Equal(t, acc, decoded)
}

func TestSS58_BadChecksum(t *testing.T) {
	_, _, err := DecodeSS58Address("5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQZ")
	require.Error(t, err)

	_, _, err = DecodeSS58Address("abc")
	require.Error(t, err)
}

func TestNewMortalEra(t *testing.T) {
	tests := []struct {
		name    string
		current uint64
		period  uint64
		want    [2]byte
	}{
		{"period 64 phase 42", 42, 64, [2]byte{0xa5, 0x02}},
		{"quantized long period", 20000, 32768, [2]byte{0x4e, 0x9c}},
		{"period rounded up", 42 + 64*10, 50, [2]byte{0xa5, 0x02}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			era := NewMortalEra(tt.current, tt.period)
			require.True(t, era.IsMortalEra)
			assert.Equal(t, tt.want, [2]byte{era.AsMortalEra.First, era.AsMortalEra.Second})
		})
	}

	assert.Equal(t, uint64(64), MortalEraPeriod(NewMortalEra(1000, 64)))
	assert.Equal(t, uint64(4), MortalEraPeriod(NewMortalEra(1000, 1)))
}

func TestMortalEraBirth(t *testing.T) {
	assert.Equal(t, uint64(1000), MortalEraBirth(NewMortalEra(1000, 64), 1000))
	assert.Equal(t, uint64(1000), MortalEraBirth(NewMortalEra(1000, 64), 1030))
	// phase is quantized by 8 for 32768 block periods
	assert.Equal(t, uint64(20000), MortalEraBirth(NewMortalEra(20003, 32768), 20003))
	assert.Zero(t, MortalEraBirth(types.ExtrinsicEra{IsImmortalEra: true}, 1000))
}

func TestExtrinsic_UnsignedEncoding(t *testing.T) {
	ext := NewExtrinsic(types.Call{
		CallIndex: types.CallIndex{SectionIndex: 5, MethodIndex: 0},
		Args:      types.Args{1, 2, 3},
	})

	b, err := ext.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x18, 0x04, 0x05, 0x00, 0x01, 0x02, 0x03}, b)
	assert.False(t, ext.IsSigned())
}

func TestExtrinsic_AttachSignature(t *testing.T) {
	ext := NewExtrinsic(types.Call{
		CallIndex: types.CallIndex{SectionIndex: 5, MethodIndex: 3},
		Args:      types.Args{0xff},
	})
	sig := make([]byte, 64)
	for i := range sig {
		sig[i] = byte(i)
	}

	err := ext.AttachSignature(alice(t), NewSr25519Signature(sig), SignatureOptions{
		Era:   NewMortalEra(100, 64),
		Nonce: 7,
		Tip:   0,
	})
	require.NoError(t, err)
	require.True(t, ext.IsSigned())

	b, err := ext.Bytes()
	require.NoError(t, err)

	var decoded Extrinsic
	require.NoError(t, types.DecodeFromBytes(b, &decoded))
	assert.True(t, decoded.IsSigned())
	assert.True(t, decoded.Signature.Signer.IsID)
	assert.Equal(t, alice(t), decoded.Signature.Signer.AsID)
	assert.Equal(t, types.NewSignature(sig), decoded.Signature.Signature.AsSr25519)
	assert.Equal(t, ext.Method, decoded.Method)

	h1, err := ext.Hash()
	require.NoError(t, err)
	h2, err := decoded.Hash()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestOpaqueExtrinsic_InherentCall(t *testing.T) {
	moment := NewCompactMoment(time.UnixMilli(1_700_000_000_123))
	args, err := types.EncodeToBytes(moment)
	require.NoError(t, err)

	ext := NewExtrinsic(types.Call{CallIndex: types.CallIndex{SectionIndex: 3, MethodIndex: 0}, Args: args})
	b, err := ext.Bytes()
	require.NoError(t, err)

	call, ok, err := OpaqueExtrinsic(b).InherentCall()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint8(3), call.CallIndex.SectionIndex)

	var decoded CompactMoment
	require.NoError(t, types.DecodeFromBytes(call.Args, &decoded))
	assert.Equal(t, int64(1_700_000_000_123), decoded.UnixMilli())
}

func TestWeight_UnmarshalJSON(t *testing.T) {
	var info PaymentInfo
	require.NoError(t, json.Unmarshal([]byte(`{"weight":{"refTime":1000,"proofSize":20},"class":"normal","partialFee":"15"}`), &info))
	assert.Equal(t, Weight{RefTime: 1000, ProofSize: 20}, info.Weight)
	assert.Equal(t, "15", info.PartialFee)

	info = PaymentInfo{}
	require.NoError(t, json.Unmarshal([]byte(`{"weight":125000000,"class":"normal","partialFee":"1"}`), &info))
	assert.Equal(t, Weight{RefTime: 125000000}, info.Weight)
}
