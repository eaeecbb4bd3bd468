package fountain

import (
	"bytes"
	"sync"

	"github.com/pkg/errors"
)

type Status int

const (
	// StatusIncomplete is progress, not a failure: more symbols are needed.
	StatusIncomplete Status = iota
	StatusComplete
)

func (s Status) String() string {
	if s == StatusComplete {
		return "complete"
	}
	return "incomplete"
}

// DecodeState reports progress for the payload the last absorbed symbol belongs to.
type DecodeState struct {
	Status    Status
	PayloadID uint32
	// Received counts distinct symbols, repeats excluded.
	Received int
	Rank     int
	// Required is the expected number of symbols, K times the overhead.
	Required      int
	SourceSymbols int
	// Duplicate is set when the symbol was already absorbed.
	Duplicate bool
	Payload   []byte
}

type solver interface {
	Add(sym Symbol) bool
	Rank() int
}

type assembly struct {
	scheme     SchemeID
	payloadLen uint32
	symbolSize uint16
	k          int
	seen       map[uint32]struct{}
	rlf        *rlfSolver
	rs         *rsSolver
	payload    []byte
}

func (a *assembly) solver() solver {
	if a.rs != nil {
		return a.rs
	}
	return a.rlf
}

// Decoder collects symbols of any number of payloads until each can be rebuilt.
// It is safe for concurrent use.
type Decoder struct {
	mu         sync.Mutex
	overhead   float64
	assemblies map[uint32]*assembly
}

// NewDecoder returns a decoder. overhead must match the encoder's for the
// Reed-Solomon scheme; zero means DefaultOverhead.
func NewDecoder(overhead float64) *Decoder {
	if overhead < 1 {
		overhead = DefaultOverhead
	}
	return &Decoder{overhead: overhead, assemblies: make(map[uint32]*assembly)}
}

// Absorb parses and accumulates one frame.
func (d *Decoder) Absorb(frame []byte) (DecodeState, error) {
	sym, err := ParseSymbol(frame)
	if err != nil {
		return DecodeState{}, err
	}
	return d.AbsorbSymbol(sym)
}

func (d *Decoder) AbsorbSymbol(sym Symbol) (DecodeState, error) {
	if sym.Scheme == SchemeSingle {
		return DecodeState{
			Status:        StatusComplete,
			PayloadID:     sym.PayloadID,
			Received:      1,
			Rank:          1,
			Required:      1,
			SourceSymbols: 1,
			Payload:       sym.Data,
		}, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	a, err := d.assembly(sym)
	if err != nil {
		return DecodeState{}, err
	}

	state := DecodeState{
		PayloadID:     sym.PayloadID,
		Required:      requiredSymbols(a.k, d.overhead),
		SourceSymbols: a.k,
	}
	if sym.Scheme == SchemeReedSolomon {
		state.Required = a.k
	}

	key := sym.ESI
	if a.rs != nil {
		key %= uint32(len(a.rs.shards))
	}
	_, dup := a.seen[key]
	if !dup {
		a.seen[key] = struct{}{}
		if a.payload == nil {
			a.solver().Add(sym)
		}
	}
	state.Duplicate = dup
	state.Received = len(a.seen)
	state.Rank = a.solver().Rank()

	if a.payload == nil && state.Rank == a.k {
		payload, err := a.reconstruct(sym.PayloadID)
		if err != nil {
			delete(d.assemblies, sym.PayloadID)
			return state, err
		}
		a.payload = payload
	}
	if a.payload != nil {
		state.Status = StatusComplete
		state.Payload = a.payload
	}
	return state, nil
}

func (d *Decoder) assembly(sym Symbol) (*assembly, error) {
	a, ok := d.assemblies[sym.PayloadID]
	if ok {
		if a.scheme != sym.Scheme || a.payloadLen != sym.PayloadLen || a.symbolSize != sym.SymbolSize {
			return nil, errors.Wrapf(ErrInvalidFrame, "symbol %d disagrees with payload %08x parameters", sym.ESI, sym.PayloadID)
		}
		return a, nil
	}

	k := sym.SourceSymbols()
	if k > MaxSourceSymbols {
		return nil, errors.Wrapf(ErrInvalidFrame, "payload %08x needs %d source symbols", sym.PayloadID, k)
	}
	a = &assembly{
		scheme:     sym.Scheme,
		payloadLen: sym.PayloadLen,
		symbolSize: sym.SymbolSize,
		k:          k,
		seen:       make(map[uint32]struct{}),
	}
	if sym.Scheme == SchemeReedSolomon {
		rs, err := newRSSolver(k, d.overhead)
		if err != nil {
			return nil, err
		}
		a.rs = rs
	} else {
		a.rlf = newRLFSolver(sym.PayloadID, k, int(sym.SymbolSize))
	}
	d.assemblies[sym.PayloadID] = a
	return a, nil
}

func (a *assembly) reconstruct(id uint32) ([]byte, error) {
	var source [][]byte
	if a.rs != nil {
		var err error
		source, err = a.rs.Solve()
		if err != nil {
			return nil, err
		}
	} else {
		source = a.rlf.Solve()
	}

	payload := bytes.Join(source, nil)[:a.payloadLen]
	if PayloadID(payload) != id {
		return nil, errors.Wrapf(ErrCorrupt, "payload %08x", id)
	}
	return payload, nil
}
