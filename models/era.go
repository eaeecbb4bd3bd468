package models

import (
	"math/bits"

	"github.com/centrifuge/go-substrate-rpc-client/v2/types"
)

const (
	minEraPeriod = 4
	maxEraPeriod = 1 << 16
)

// NewMortalEra returns the era that makes a transaction valid for period blocks
// starting at current. The period is rounded up to a power of two within [4, 65536].
func NewMortalEra(current uint64, period uint64) types.ExtrinsicEra {
	p := eraPeriod(period)
	phase := current % p
	quantizeFactor := p >> 12
	if quantizeFactor < 1 {
		quantizeFactor = 1
	}
	quantizedPhase := phase / quantizeFactor * quantizeFactor

	low := uint64(bits.TrailingZeros64(p) - 1)
	if low < 1 {
		low = 1
	}
	if low > 15 {
		low = 15
	}
	encoded := uint16(low) | uint16((quantizedPhase/quantizeFactor)<<4)

	return types.ExtrinsicEra{
		IsMortalEra: true,
		AsMortalEra: types.MortalEra{
			First:  byte(encoded & 0xff),
			Second: byte(encoded >> 8),
		},
	}
}

// MortalEraPeriod decodes the period from an encoded mortal era.
func MortalEraPeriod(era types.ExtrinsicEra) uint64 {
	if !era.IsMortalEra {
		return 0
	}
	encoded := uint16(era.AsMortalEra.First) | uint16(era.AsMortalEra.Second)<<8
	return 2 << (encoded % (1 << 4))
}

func eraPeriod(period uint64) uint64 {
	if period <= minEraPeriod {
		return minEraPeriod
	}
	if period >= maxEraPeriod {
		return maxEraPeriod
	}
	return 1 << bits.Len64(period-1)
}

// MortalEraBirth is the block a mortal era created at current starts at. Its hash is
// what the signing payload commits to.
func MortalEraBirth(era types.ExtrinsicEra, current uint64) uint64 {
	if !era.IsMortalEra {
		return 0
	}
	period := MortalEraPeriod(era)
	encoded := uint16(era.AsMortalEra.First) | uint16(era.AsMortalEra.Second)<<8
	quantizeFactor := period >> 12
	if quantizeFactor < 1 {
		quantizeFactor = 1
	}
	phase := uint64(encoded>>4) * quantizeFactor
	if current < phase {
		current = phase
	}
	return (current-phase)/period*period + phase
}
