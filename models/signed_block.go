package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/centrifuge/go-substrate-rpc-client/v2/scale"
	"github.com/centrifuge/go-substrate-rpc-client/v2/types"
)

type SignedBlock struct {
	Block         Block               `json:"block"`
	Justification types.Justification `json:"justification"`
}

// Block keeps extrinsics opaque: signed extensions differ between runtimes, so only
// unsigned (inherent) extrinsics are decoded on demand.
type Block struct {
	Header     types.Header      `json:"header"`
	Extrinsics []OpaqueExtrinsic `json:"extrinsics"`
}

// OpaqueExtrinsic is a length-prefixed encoded extrinsic as returned by chain_getBlock.
type OpaqueExtrinsic []byte

func (o *OpaqueExtrinsic) UnmarshalJSON(bz []byte) error {
	var tmp string
	if err := json.Unmarshal(bz, &tmp); err != nil {
		return err
	}
	dec, err := types.HexDecodeString(tmp)
	if err != nil {
		return err
	}
	*o = dec
	return nil
}

// InherentCall decodes the call of an unsigned extrinsic. ok is false for signed ones.
func (o OpaqueExtrinsic) InherentCall() (call types.Call, ok bool, err error) {
	decoder := scale.NewDecoder(bytes.NewReader(o))
	if _, err = decoder.DecodeUintCompact(); err != nil {
		return
	}
	var version byte
	if version, err = decoder.ReadOneByte(); err != nil {
		return
	}
	if version&types.ExtrinsicBitSigned == types.ExtrinsicBitSigned {
		return
	}
	if version&types.ExtrinsicUnmaskVersion != types.ExtrinsicVersion4 {
		err = fmt.Errorf("unsupported extrinsic version: %v", version)
		return
	}
	if err = decoder.Decode(&call); err != nil {
		return
	}
	ok = true
	return
}
