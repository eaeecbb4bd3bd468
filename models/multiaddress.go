package models

import (
	"fmt"
	"math/big"

	"github.com/centrifuge/go-substrate-rpc-client/v2/scale"
	"github.com/centrifuge/go-substrate-rpc-client/v2/types"
)

// MultiAddress is sp_runtime::MultiAddress<AccountId, AccountIndex>.
type MultiAddress struct {
	IsID        bool
	AsID        types.AccountID
	IsIndex     bool
	AsIndex     uint32
	IsRaw       bool
	AsRaw       []byte
	IsAddress32 bool
	AsAddress32 [32]byte
	IsAddress20 bool
	AsAddress20 [20]byte
}

func NewMultiAddressFromAccountID(b []byte) MultiAddress {
	return MultiAddress{
		IsID: true,
		AsID: types.NewAccountID(b),
	}
}

func (m MultiAddress) Encode(encoder scale.Encoder) error {
	var err error
	switch {
	case m.IsID:
		if err = encoder.PushByte(0); err != nil {
			return err
		}
		err = encoder.Encode(m.AsID)
	case m.IsIndex:
		if err = encoder.PushByte(1); err != nil {
			return err
		}
		err = encoder.EncodeUintCompact(*big.NewInt(0).SetUint64(uint64(m.AsIndex)))
	case m.IsRaw:
		if err = encoder.PushByte(2); err != nil {
			return err
		}
		err = encoder.Encode(m.AsRaw)
	case m.IsAddress32:
		if err = encoder.PushByte(3); err != nil {
			return err
		}
		err = encoder.Write(m.AsAddress32[:])
	case m.IsAddress20:
		if err = encoder.PushByte(4); err != nil {
			return err
		}
		err = encoder.Write(m.AsAddress20[:])
	default:
		return fmt.Errorf("empty MultiAddress")
	}
	return err
}

func (m *MultiAddress) Decode(decoder scale.Decoder) error {
	b, err := decoder.ReadOneByte()
	if err != nil {
		return err
	}

	switch b {
	case 0:
		m.IsID = true
		return decoder.Decode(&m.AsID)
	case 1:
		m.IsIndex = true
		idx, err := decoder.DecodeUintCompact()
		if err != nil {
			return err
		}
		m.AsIndex = uint32(idx.Uint64())
		return nil
	case 2:
		m.IsRaw = true
		return decoder.Decode(&m.AsRaw)
	case 3:
		m.IsAddress32 = true
		return decoder.Read(m.AsAddress32[:])
	case 4:
		m.IsAddress20 = true
		return decoder.Read(m.AsAddress20[:])
	default:
		return fmt.Errorf("unknown MultiAddress variant: %d", b)
	}
}
