package models

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"

	"github.com/centrifuge/go-substrate-rpc-client/v2/scale"
)

// Weight is the two-dimensional sp_weights::Weight. Both parts are compact encoded.
type Weight struct {
	RefTime   uint64
	ProofSize uint64
}

func (w Weight) IsZero() bool {
	return w.RefTime == 0 && w.ProofSize == 0
}

func (w Weight) Encode(encoder scale.Encoder) error {
	err := encoder.EncodeUintCompact(*big.NewInt(0).SetUint64(w.RefTime))
	if err != nil {
		return err
	}
	return encoder.EncodeUintCompact(*big.NewInt(0).SetUint64(w.ProofSize))
}

func (w *Weight) Decode(decoder scale.Decoder) error {
	refTime, err := decoder.DecodeUintCompact()
	if err != nil {
		return err
	}
	proofSize, err := decoder.DecodeUintCompact()
	if err != nil {
		return err
	}
	w.RefTime = refTime.Uint64()
	w.ProofSize = proofSize.Uint64()
	return nil
}

// UnmarshalJSON accepts both the legacy scalar weight and the {refTime, proofSize} object.
func (w *Weight) UnmarshalJSON(bz []byte) error {
	var scalar json.Number
	if err := json.Unmarshal(bz, &scalar); err == nil {
		v, err := parseUint(string(scalar))
		if err != nil {
			return err
		}
		*w = Weight{RefTime: v}
		return nil
	}

	var obj struct {
		RefTime   json.Number `json:"refTime"`
		ProofSize json.Number `json:"proofSize"`
	}
	if err := json.Unmarshal(bz, &obj); err != nil {
		return fmt.Errorf("cannot decode weight %s: %w", string(bz), err)
	}
	refTime, err := parseUint(string(obj.RefTime))
	if err != nil {
		return err
	}
	proofSize, err := parseUint(string(obj.ProofSize))
	if err != nil {
		return err
	}
	*w = Weight{RefTime: refTime, ProofSize: proofSize}
	return nil
}

// PaymentInfo is the result of payment_queryInfo.
type PaymentInfo struct {
	Weight     Weight `json:"weight"`
	Class      string `json:"class"`
	PartialFee string `json:"partialFee"`
}

func parseUint(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseUint(s, 0, 64)
}
