package transport

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/centrifuge/go-substrate-rpc-client/v2/types"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/novasamatech/nova-spektr-sub014/builder"
	"github.com/novasamatech/nova-spektr-sub014/envelope"
	"github.com/novasamatech/nova-spektr-sub014/fountain"
	"github.com/novasamatech/nova-spektr-sub014/models"
)

// FrameSink renders frames, typically as QR codes on screen.
type FrameSink interface {
	ShowFrame(frame []byte) error
}

// FrameSinkFunc adapts a function to FrameSink.
type FrameSinkFunc func(frame []byte) error

func (f FrameSinkFunc) ShowFrame(frame []byte) error { return f(frame) }

// Request is one transaction waiting for a signature.
type Request struct {
	Header  envelope.Header
	Payload *builder.SigningPayload
}

// Freshness bounds how long the displayed payloads stay valid.
type Freshness struct {
	ExpectedBlockTime time.Duration
	ToleranceBlocks   int
}

func (f Freshness) Window() time.Duration {
	return f.ExpectedBlockTime * time.Duration(f.ToleranceBlocks)
}

type Config struct {
	Codec         fountain.Options
	FrameInterval time.Duration
	// IngestRate limits scanned frames per second. Zero disables throttling.
	IngestRate  rate.Limit
	IngestBurst int
}

func DefaultConfig() Config {
	return Config{
		Codec:         fountain.DefaultOptions(),
		FrameInterval: 200 * time.Millisecond,
		IngestRate:    30,
		IngestBurst:   10,
	}
}

// Progress of the signature scan.
type Progress struct {
	Received int
	Rank     int
	Required int
}

// Signed pairs a request with the signature returned for it.
type Signed struct {
	Index       int
	Transaction builder.UnsignedTransaction
	Signature   types.MultiSignature
	Extrinsic   models.Extrinsic
}

type Option func(*Session)

func WithClock(c clock.Clock) Option {
	return func(s *Session) { s.clock = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = l }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

type absorber interface {
	Absorb(frame []byte) (fountain.DecodeState, error)
}

// Session drives one signing flow: it displays the request frames until the
// signatures are scanned back, the user cancels, or the payloads go stale.
// Sessions are single use.
type Session struct {
	mu sync.Mutex

	id      uuid.UUID
	cfg     Config
	sink    FrameSink
	clock   clock.Clock
	logger  *zap.Logger
	metrics *Metrics
	limiter *rate.Limiter

	state    State
	requests []Request
	source   fountain.SymbolSource
	decoder  absorber
	started  time.Time
	deadline time.Time
	progress Progress
	result   []Signed
	err      error

	stop chan struct{}
	done chan struct{}
}

func NewSession(cfg Config, sink FrameSink, opts ...Option) *Session {
	s := &Session{
		id:    uuid.New(),
		cfg:   cfg,
		sink:  sink,
		state: StateIdle,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = clock.New()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	if s.cfg.FrameInterval <= 0 {
		s.cfg.FrameInterval = DefaultConfig().FrameInterval
	}
	if s.cfg.IngestRate > 0 {
		burst := s.cfg.IngestBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(s.cfg.IngestRate, burst)
	}
	s.logger = s.logger.With(zap.String("session", s.id.String()))
	return s
}

func (s *Session) ID() uuid.UUID { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start encodes requests into the frame stream and begins displaying it.
func (s *Session) Start(ctx context.Context, requests []Request, freshness Freshness) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return errors.Wrapf(ErrInvalidState, "start in state %s", s.state)
	}
	if len(requests) == 0 {
		return errors.New("nothing to sign")
	}
	if freshness.Window() <= 0 {
		return errors.Errorf("freshness window %s is not positive", freshness.Window())
	}
	s.state = StateEncoding

	entries := make([]envelope.Entry, len(requests))
	for i, req := range requests {
		if req.Payload == nil {
			return s.failLocked(errors.Errorf("request %d has no signing payload", i))
		}
		entries[i] = envelope.Entry{Header: req.Header, Payload: req.Payload.Bytes}
	}
	packed, err := envelope.Pack(entries)
	if err != nil {
		return s.failLocked(errors.Wrap(err, "failed to pack envelope"))
	}
	source, err := fountain.Encode(packed, s.cfg.Codec)
	if err != nil {
		return s.failLocked(errors.Wrap(err, "failed to encode envelope"))
	}

	s.requests = requests
	s.source = source
	s.decoder = fountain.NewDecoder(s.cfg.Codec.Overhead)
	s.started = s.clock.Now()
	s.deadline = s.started.Add(freshness.Window())
	s.state = StateDisplaying

	s.logger.Sugar().Infow("Displaying signing requests",
		"requests", len(requests),
		"envelopeBytes", len(packed),
		"sourceSymbols", source.SourceSymbols(),
		"deadline", s.deadline,
	)

	ticker := s.clock.Ticker(s.cfg.FrameInterval)
	go s.display(ctx, ticker)
	return nil
}

func (s *Session) display(ctx context.Context, ticker *clock.Ticker) {
	defer ticker.Stop()

	s.showNext()
	for {
		select {
		case <-ctx.Done():
			_ = s.Cancel()
			return
		case <-s.stop:
			return
		case <-ticker.C:
			if s.checkExpired() {
				return
			}
			s.showNext()
		}
	}
}

func (s *Session) showNext() {
	s.mu.Lock()
	if s.state != StateDisplaying {
		s.mu.Unlock()
		return
	}
	sym := s.source.Next()
	s.mu.Unlock()

	frame, err := sym.MarshalBinary()
	if err == nil {
		err = s.sink.ShowFrame(frame)
	}
	if err != nil {
		s.logger.Sugar().Warnw("Failed to show frame", "esi", sym.ESI, "error", err)
		return
	}
	s.metrics.FramesDisplayedTotal.Inc()
}

func (s *Session) checkExpired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateDisplaying {
		return true
	}
	if s.clock.Now().After(s.deadline) {
		s.finishLocked(StateExpired)
		return true
	}
	return false
}

// Ingest absorbs one scanned frame of the signature response. The session lock is
// not held while the frame is decoded, so the display keeps rotating meanwhile.
func (s *Session) Ingest(frame []byte) (Progress, error) {
	dec, progress, err := s.admit()
	if err != nil {
		return progress, err
	}

	state, err := dec.Absorb(frame)
	var signed []Signed
	var assembleErr error
	if err == nil && state.Status == fountain.StatusComplete {
		signed, assembleErr = s.assemble(state.Payload)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateDisplaying || s.decoder != dec {
		if s.state == StateExpired {
			return s.progress, ErrSessionExpired
		}
		return s.progress, errors.Wrapf(ErrSessionClosed, "ingest in state %s", s.state)
	}
	if err != nil {
		s.metrics.SymbolsReceivedTotal.WithLabelValues("invalid").Inc()
		s.logger.Sugar().Debugw("Rejected scanned frame", "error", err)
		return s.progress, err
	}

	if state.Rank >= s.progress.Rank {
		s.progress = Progress{Received: state.Received, Rank: state.Rank, Required: state.Required}
	}
	if state.Duplicate {
		s.metrics.SymbolsReceivedTotal.WithLabelValues("duplicate").Inc()
	} else {
		s.metrics.SymbolsReceivedTotal.WithLabelValues("accepted").Inc()
	}

	if assembleErr != nil {
		s.logger.Sugar().Warnw("Decoded signature envelope is malformed", "payloadId", state.PayloadID, "error", assembleErr)
		return s.progress, s.failLocked(assembleErr)
	}
	if state.Status != fountain.StatusComplete {
		return s.progress, nil
	}
	s.result = signed
	s.finishLocked(StateCompleted)
	return s.progress, nil
}

// admit checks the state, the deadline and the throttle before a frame is decoded.
func (s *Session) admit() (absorber, Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateDisplaying:
	case StateExpired:
		s.metrics.SymbolsReceivedTotal.WithLabelValues("expired").Inc()
		return nil, s.progress, ErrSessionExpired
	default:
		return nil, s.progress, errors.Wrapf(ErrSessionClosed, "ingest in state %s", s.state)
	}

	now := s.clock.Now()
	if now.After(s.deadline) {
		s.finishLocked(StateExpired)
		s.metrics.SymbolsReceivedTotal.WithLabelValues("expired").Inc()
		return nil, s.progress, ErrSessionExpired
	}
	if s.limiter != nil && !s.limiter.AllowN(now, 1) {
		s.metrics.SymbolsReceivedTotal.WithLabelValues("throttled").Inc()
		return nil, s.progress, ErrThrottled
	}
	return s.decoder, s.progress, nil
}

// assemble zips signatures with requests by position.
func (s *Session) assemble(payload []byte) ([]Signed, error) {
	sigs, err := envelope.UnpackSignatures(payload)
	if err != nil {
		return nil, err
	}
	if len(sigs) != len(s.requests) {
		return nil, errors.Wrapf(envelope.ErrMalformedEnvelope, "%d signatures for %d requests", len(sigs), len(s.requests))
	}
	signed := make([]Signed, len(sigs))
	for i, sig := range sigs {
		tx := s.requests[i].Payload.Transaction
		ext, err := tx.Assemble(sig)
		if err != nil {
			return nil, errors.Wrapf(envelope.ErrMalformedEnvelope, "failed to assemble transaction %d: %v", i, err)
		}
		signed[i] = Signed{Index: i, Transaction: tx, Signature: sig, Extrinsic: ext}
	}
	return signed, nil
}

// Cancel stops the session and discards everything scanned so far.
func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return errors.Wrapf(ErrInvalidState, "cancel in state %s", s.state)
	}
	s.finishLocked(StateCancelled)
	return nil
}

// Remaining is the time left before the payloads go stale.
func (s *Session) Remaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateDisplaying {
		return 0
	}
	left := s.deadline.Sub(s.clock.Now())
	if left < 0 {
		return 0
	}
	return left
}

func (s *Session) Deadline() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deadline
}

func (s *Session) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// Done is closed once the session reaches a terminal state.
func (s *Session) Done() <-chan struct{} { return s.done }

// Result returns the signed transactions in request order.
func (s *Session) Result() ([]Signed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateCompleted:
		out := make([]Signed, len(s.result))
		copy(out, s.result)
		return out, nil
	case StateExpired:
		return nil, ErrSessionExpired
	case StateCancelled:
		return nil, ErrSessionCancelled
	case StateFailed:
		return nil, s.err
	default:
		return nil, errors.Wrapf(ErrInvalidState, "no result in state %s", s.state)
	}
}

// Wait blocks until the session finishes or ctx is done.
func (s *Session) Wait(ctx context.Context) ([]Signed, error) {
	select {
	case <-s.done:
		return s.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Session) failLocked(err error) error {
	s.err = err
	s.finishLocked(StateFailed)
	return err
}

func (s *Session) finishLocked(state State) {
	prev := s.state
	s.state = state
	s.decoder = nil
	close(s.stop)
	close(s.done)

	outcome := state.String()
	s.metrics.SessionsTotal.WithLabelValues(outcome).Inc()
	if prev == StateDisplaying {
		s.metrics.SessionDuration.WithLabelValues(outcome).Observe(s.clock.Since(s.started).Seconds())
	}
	s.logger.Sugar().Infow("Session finished", "outcome", outcome, "from", prev.String())
}
