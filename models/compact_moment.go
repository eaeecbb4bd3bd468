package models

import (
	"math/big"
	"time"

	"github.com/centrifuge/go-substrate-rpc-client/v2/scale"
	"github.com/pkg/errors"
)

// CompactMoment is the Compact<Moment> argument of Timestamp.set, in milliseconds.
type CompactMoment struct {
	time.Time
}

func NewCompactMoment(t time.Time) CompactMoment {
	return CompactMoment{t}
}

func (m *CompactMoment) Decode(decoder scale.Decoder) error {
	ms, err := decoder.DecodeUintCompact()
	if err != nil {
		return err
	}
	if !ms.IsInt64() {
		return errors.Errorf("moment %s overflows time.Time", ms)
	}
	m.Time = time.UnixMilli(ms.Int64())
	return nil
}

func (m CompactMoment) Encode(encoder scale.Encoder) error {
	if m.UnixMilli() < 0 {
		return errors.Errorf("moment %s is before the epoch", m.Time)
	}
	return encoder.EncodeUintCompact(*new(big.Int).SetInt64(m.UnixMilli()))
}
