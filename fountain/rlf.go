package fountain

import (
	"math/rand/v2"
	"sync"
)

// repairCoefficients derives the combination of source symbols that forms repair
// symbol esi. Encoder and decoder derive the same vector from (payloadID, esi).
func repairCoefficients(payloadID uint32, esi uint32, k int) []byte {
	coef := make([]byte, k)
	if int(esi) < k {
		coef[esi] = 1
		return coef
	}
	r := rand.New(rand.NewPCG(uint64(payloadID), uint64(esi)))
	nonzero := false
	for i := range coef {
		coef[i] = byte(r.Uint32())
		if coef[i] != 0 {
			nonzero = true
		}
	}
	if !nonzero {
		coef[int(esi)%k] = 1
	}
	return coef
}

type rlfEncoder struct {
	mu       sync.Mutex
	id       uint32
	length   int
	source   [][]byte
	overhead float64
	esi      uint32
}

func newRLFEncoder(id uint32, length int, source [][]byte, overhead float64) *rlfEncoder {
	return &rlfEncoder{id: id, length: length, source: source, overhead: overhead}
}

func (e *rlfEncoder) Next() Symbol {
	e.mu.Lock()
	esi := e.esi
	e.esi++
	e.mu.Unlock()

	size := len(e.source[0])
	data := make([]byte, size)
	k := len(e.source)
	if int(esi) < k {
		copy(data, e.source[esi])
	} else {
		for i, c := range repairCoefficients(e.id, esi, k) {
			mulAdd(data, e.source[i], c)
		}
	}
	return Symbol{
		Scheme:     SchemeRLF,
		PayloadID:  e.id,
		PayloadLen: uint32(e.length),
		SymbolSize: uint16(size),
		ESI:        esi,
		Data:       data,
	}
}

func (e *rlfEncoder) PayloadID() uint32    { return e.id }
func (e *rlfEncoder) SourceSymbols() int   { return len(e.source) }
func (e *rlfEncoder) RequiredSymbols() int { return requiredSymbols(len(e.source), e.overhead) }

type rlfRow struct {
	coef []byte
	data []byte
}

// rlfSolver runs Gaussian elimination one equation at a time. pivots[c], when set,
// has its first non-zero coefficient at column c and that coefficient is 1.
type rlfSolver struct {
	id     uint32
	k      int
	size   int
	pivots []*rlfRow
	rank   int
}

func newRLFSolver(id uint32, k, size int) *rlfSolver {
	return &rlfSolver{id: id, k: k, size: size, pivots: make([]*rlfRow, k)}
}

func (s *rlfSolver) Rank() int { return s.rank }

func (s *rlfSolver) Add(sym Symbol) bool {
	row := &rlfRow{
		coef: repairCoefficients(s.id, sym.ESI, s.k),
		data: append([]byte(nil), sym.Data...),
	}
	for c := 0; c < s.k; c++ {
		f := row.coef[c]
		if f == 0 {
			continue
		}
		if p := s.pivots[c]; p != nil {
			mulAdd(row.coef, p.coef, f)
			mulAdd(row.data, p.data, f)
			continue
		}
		inv := gfInv(f)
		scale(row.coef, inv)
		scale(row.data, inv)
		s.pivots[c] = row
		s.rank++
		return true
	}
	return false
}

// Solve back-substitutes the full-rank system into the source symbols.
func (s *rlfSolver) Solve() [][]byte {
	for c := s.k - 1; c >= 0; c-- {
		p := s.pivots[c]
		for j := c + 1; j < s.k; j++ {
			if f := p.coef[j]; f != 0 {
				mulAdd(p.coef, s.pivots[j].coef, f)
				mulAdd(p.data, s.pivots[j].data, f)
			}
		}
	}
	out := make([][]byte, s.k)
	for i, p := range s.pivots {
		out[i] = p.data
	}
	return out
}
