package fountain

import (
	"bytes"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPayload(n int, seed uint64) []byte {
	r := rand.New(rand.NewPCG(seed, seed^0x5eed))
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(r.Uint32())
	}
	return b
}

func scenarioOptions(scheme SchemeID) Options {
	return Options{Scheme: scheme, SymbolSize: 200, FrameCapacity: HeaderSize + 200, Overhead: DefaultOverhead}
}

func TestGF256(t *testing.T) {
	for a := 1; a < 256; a++ {
		assert.Equal(t, byte(1), gfMul(byte(a), gfInv(byte(a))), "a=%d", a)
	}
	assert.Equal(t, byte(0), gfMul(0, 17))
	// 2 * 0x80 wraps through the polynomial
	assert.Equal(t, byte(0x1d), gfMul(2, 0x80))
}

func TestSymbol_MarshalParse(t *testing.T) {
	sym := Symbol{Scheme: SchemeRLF, PayloadID: 0xdeadbeef, PayloadLen: 5000, SymbolSize: 4, ESI: 31, Data: []byte{1, 2, 3, 4}}
	b, err := sym.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0xde, 0xad, 0xbe, 0xef, 0x00, 0x00, 0x13, 0x88, 0x00, 0x04, 0x00, 0x00, 0x00, 0x1f, 1, 2, 3, 4}, b)

	parsed, err := ParseSymbol(b)
	require.NoError(t, err)
	assert.Equal(t, sym, parsed)

	tests := []struct {
		name  string
		frame []byte
	}{
		{"empty", nil},
		{"bare single", []byte{0x00}},
		{"unknown scheme", []byte{0x07, 1, 2}},
		{"short header", b[:10]},
		{"truncated data", b[:len(b)-1]},
		{"zero symbol size", append(append([]byte{}, b[:9]...), 0, 0, 0, 0, 0, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSymbol(tt.frame)
			assert.True(t, errors.Is(err, ErrInvalidFrame), "got %v", err)
		})
	}
}

func TestEncode_SingleFrame(t *testing.T) {
	payload := []byte("short signing payload")
	src, err := Encode(payload, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, src.SourceSymbols())

	frame, err := src.Next().MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, append([]byte{0x00}, payload...), frame)

	state, err := NewDecoder(0).Absorb(frame)
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, state.Status)
	assert.Equal(t, payload, state.Payload)
}

func TestEncode_InvalidOptions(t *testing.T) {
	_, err := Encode(nil, DefaultOptions())
	assert.True(t, errors.Is(err, ErrEmptyPayload))

	_, err = Encode([]byte{1}, Options{SymbolSize: 100, FrameCapacity: 50})
	assert.True(t, errors.Is(err, ErrInvalidOptions))

	_, err = Encode([]byte{1}, Options{Overhead: 0.5})
	assert.True(t, errors.Is(err, ErrInvalidOptions))
}

func TestRLF_Scenario(t *testing.T) {
	payload := testPayload(5000, 1)
	src, err := Encode(payload, scenarioOptions(SchemeRLF))
	require.NoError(t, err)
	assert.Equal(t, 25, src.SourceSymbols())
	assert.Equal(t, 28, src.RequiredSymbols())

	frames, err := Frames(src, 60)
	require.NoError(t, err)

	t.Run("20 symbols are incomplete", func(t *testing.T) {
		dec := NewDecoder(0)
		var state DecodeState
		for _, f := range frames[10:30] {
			state, err = dec.Absorb(f)
			require.NoError(t, err)
		}
		assert.Equal(t, StatusIncomplete, state.Status)
		assert.Equal(t, 20, state.Received)
		assert.Equal(t, 28, state.Required)
		assert.Nil(t, state.Payload)
	})

	t.Run("28 symbols with most source symbols lost", func(t *testing.T) {
		// keep 3 source symbols and 25 repair symbols
		subset := append([][]byte{frames[2], frames[11], frames[24]}, frames[30:55]...)
		require.Len(t, subset, 28)

		dec := NewDecoder(0)
		var state DecodeState
		for i := len(subset) - 1; i >= 0; i-- {
			state, err = dec.Absorb(subset[i])
			require.NoError(t, err)
		}
		require.Equal(t, StatusComplete, state.Status)
		assert.Equal(t, payload, state.Payload)
	})

	t.Run("any 28 symbols", func(t *testing.T) {
		fresh, err := Encode(payload, scenarioOptions(SchemeRLF))
		require.NoError(t, err)
		pool, err := Frames(fresh, 120)
		require.NoError(t, err)
		r := rand.New(rand.NewPCG(28, 25))
		for round := 0; round < 200; round++ {
			dec := NewDecoder(0)
			var state DecodeState
			for _, i := range r.Perm(len(pool))[:28] {
				state, err = dec.Absorb(pool[i])
				require.NoError(t, err)
			}
			require.Equal(t, StatusComplete, state.Status, "round %d", round)
			require.Equal(t, payload, state.Payload, "round %d", round)
		}
	})

	t.Run("repair symbols only", func(t *testing.T) {
		dec := NewDecoder(0)
		var state DecodeState
		for _, f := range frames[25:53] {
			state, err = dec.Absorb(f)
			require.NoError(t, err)
		}
		require.Equal(t, StatusComplete, state.Status)
		assert.Equal(t, payload, state.Payload)
	})
}

func TestRLF_DuplicatesAreNoOps(t *testing.T) {
	payload := testPayload(1000, 2)
	src, err := Encode(payload, Options{SymbolSize: 100})
	require.NoError(t, err)
	frames, err := Frames(src, 5)
	require.NoError(t, err)

	dec := NewDecoder(0)
	for i := 0; i < 4; i++ {
		state, err := dec.Absorb(frames[0])
		require.NoError(t, err)
		assert.Equal(t, 1, state.Received)
		assert.Equal(t, 1, state.Rank)
		assert.Equal(t, i > 0, state.Duplicate)
	}
}

func TestRLF_CompletesAtRankK(t *testing.T) {
	payload := testPayload(1000, 3)
	src, err := Encode(payload, Options{SymbolSize: 100})
	require.NoError(t, err)
	frames, err := Frames(src, 10)
	require.NoError(t, err)

	dec := NewDecoder(0)
	var state DecodeState
	for _, f := range frames {
		state, err = dec.Absorb(f)
		require.NoError(t, err)
	}
	assert.Equal(t, 10, state.Rank)
	assert.Equal(t, 12, state.Required)
	assert.Equal(t, StatusComplete, state.Status)
	assert.Equal(t, payload, state.Payload)
}

func TestRLF_CorruptSymbol(t *testing.T) {
	payload := testPayload(800, 4)
	src, err := Encode(payload, Options{SymbolSize: 100})
	require.NoError(t, err)
	frames, err := Frames(src, 8)
	require.NoError(t, err)

	frames[3][HeaderSize+7] ^= 0xff

	dec := NewDecoder(0)
	var lastErr error
	for _, f := range frames {
		_, lastErr = dec.Absorb(f)
	}
	assert.True(t, errors.Is(lastErr, ErrCorrupt), "got %v", lastErr)
}

func TestDecoder_MismatchedParameters(t *testing.T) {
	payload := testPayload(800, 5)
	src, err := Encode(payload, Options{SymbolSize: 100})
	require.NoError(t, err)
	sym := src.Next()

	dec := NewDecoder(0)
	_, err = dec.AbsorbSymbol(sym)
	require.NoError(t, err)

	sym.PayloadLen++
	_, err = dec.AbsorbSymbol(sym)
	assert.True(t, errors.Is(err, ErrInvalidFrame))
}

func TestDecoder_Concurrent(t *testing.T) {
	payload := testPayload(4000, 6)
	src, err := Encode(payload, Options{SymbolSize: 100})
	require.NoError(t, err)
	frames, err := Frames(src, 60)
	require.NoError(t, err)

	dec := NewDecoder(0)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := w; i < len(frames); i += 4 {
				_, err := dec.Absorb(frames[i])
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	state, err := dec.Absorb(frames[0])
	require.NoError(t, err)
	require.Equal(t, StatusComplete, state.Status)
	assert.True(t, bytes.Equal(payload, state.Payload))
}

func TestReedSolomon_Scenario(t *testing.T) {
	payload := testPayload(5000, 7)
	src, err := Encode(payload, scenarioOptions(SchemeReedSolomon))
	require.NoError(t, err)
	assert.Equal(t, 25, src.SourceSymbols())

	// 25 data + 4 parity shards, cycled
	frames, err := Frames(src, 58)
	require.NoError(t, err)
	assert.Equal(t, frames[0][HeaderSize:], frames[29][HeaderSize:])

	dec := NewDecoder(0)
	var state DecodeState
	for _, f := range frames[4:29] {
		state, err = dec.Absorb(f)
		require.NoError(t, err)
	}
	require.Equal(t, StatusComplete, state.Status)
	assert.Equal(t, payload, state.Payload)

	dec = NewDecoder(0)
	for _, f := range frames[:20] {
		state, err = dec.Absorb(f)
		require.NoError(t, err)
	}
	assert.Equal(t, StatusIncomplete, state.Status)

	// repeated cycle adds nothing
	state, err = dec.Absorb(frames[29])
	require.NoError(t, err)
	assert.True(t, state.Duplicate)
	assert.Equal(t, 20, state.Received)
	assert.Equal(t, 20, state.Rank)
}
