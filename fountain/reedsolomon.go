package fountain

import (
	"sync"

	"github.com/klauspost/reedsolomon"
	"github.com/pkg/errors"
)

// parityShards is ceil(K*(overhead-1))+1.
func parityShards(k int, overhead float64) int {
	return requiredSymbols(k, overhead) - k + 1
}

type rsEncoder struct {
	mu       sync.Mutex
	id       uint32
	length   int
	k        int
	shards   [][]byte
	overhead float64
	esi      uint32
}

func newRSEncoder(id uint32, length int, source [][]byte, overhead float64) (*rsEncoder, error) {
	k := len(source)
	p := parityShards(k, overhead)
	enc, err := reedsolomon.New(k, p)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidOptions, "reed-solomon with %d+%d shards: %v", k, p, err)
	}
	size := len(source[0])
	shards := make([][]byte, k+p)
	copy(shards, source)
	for i := k; i < len(shards); i++ {
		shards[i] = make([]byte, size)
	}
	if err := enc.Encode(shards); err != nil {
		return nil, errors.Wrap(err, "failed to compute parity shards")
	}
	return &rsEncoder{id: id, length: length, k: k, shards: shards, overhead: overhead}, nil
}

// Next cycles data then parity shards. ESI keeps growing, the shard is ESI mod n.
func (e *rsEncoder) Next() Symbol {
	e.mu.Lock()
	esi := e.esi
	e.esi++
	e.mu.Unlock()

	shard := e.shards[int(esi)%len(e.shards)]
	return Symbol{
		Scheme:     SchemeReedSolomon,
		PayloadID:  e.id,
		PayloadLen: uint32(e.length),
		SymbolSize: uint16(len(shard)),
		ESI:        esi,
		Data:       append([]byte(nil), shard...),
	}
}

func (e *rsEncoder) PayloadID() uint32    { return e.id }
func (e *rsEncoder) SourceSymbols() int   { return e.k }
func (e *rsEncoder) RequiredSymbols() int { return e.k }

type rsSolver struct {
	k      int
	enc    reedsolomon.Encoder
	shards [][]byte
	have   int
}

func newRSSolver(k int, overhead float64) (*rsSolver, error) {
	p := parityShards(k, overhead)
	enc, err := reedsolomon.New(k, p)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidFrame, "reed-solomon with %d+%d shards: %v", k, p, err)
	}
	return &rsSolver{k: k, enc: enc, shards: make([][]byte, k+p)}, nil
}

func (s *rsSolver) Rank() int {
	if s.have > s.k {
		return s.k
	}
	return s.have
}

func (s *rsSolver) Add(sym Symbol) bool {
	i := int(sym.ESI) % len(s.shards)
	if s.shards[i] != nil {
		return false
	}
	s.shards[i] = append([]byte(nil), sym.Data...)
	s.have++
	return true
}

func (s *rsSolver) Solve() ([][]byte, error) {
	if err := s.enc.ReconstructData(s.shards); err != nil {
		return nil, errors.Wrap(ErrCorrupt, err.Error())
	}
	return s.shards[:s.k], nil
}
