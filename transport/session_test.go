package transport

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/centrifuge/go-substrate-rpc-client/v2/types"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/novasamatech/nova-spektr-sub014/builder"
	"github.com/novasamatech/nova-spektr-sub014/envelope"
	"github.com/novasamatech/nova-spektr-sub014/fountain"
	"github.com/novasamatech/nova-spektr-sub014/models"
)

const frameInterval = 100 * time.Millisecond

var (
	genesis   = types.NewHash(bytes.Repeat([]byte{0x91}, 32))
	freshness = Freshness{ExpectedBlockTime: 6 * time.Second, ToleranceBlocks: 10}
	codec     = fountain.Options{SymbolSize: 64}
)

type recordingSink struct {
	mu     sync.Mutex
	frames [][]byte
}

func (r *recordingSink) ShowFrame(frame []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, frame)
	return nil
}

func (r *recordingSink) snapshot() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.frames...)
}

// waitFrames advances the clock frame by frame until n frames were shown.
func (r *recordingSink) waitFrames(t *testing.T, mock *clock.Mock, n int) [][]byte {
	require.Eventually(t, func() bool {
		if len(r.snapshot()) >= n {
			return true
		}
		mock.Add(frameInterval)
		return false
	}, 5*time.Second, time.Millisecond)
	return r.snapshot()
}

func account(b byte) types.AccountID {
	return types.NewAccountID(bytes.Repeat([]byte{b}, 32))
}

func testRequests(t *testing.T, n int) []Request {
	composer := builder.NewComposer(builder.IndexTable{"System.remark": {SectionIndex: 0, MethodIndex: 1}}, nil, nil, zap.NewNop())
	requests := make([]Request, n)
	for i := range requests {
		call, err := builder.NewCall(composer.Indexer, "System.remark", bytes.Repeat([]byte{byte(i)}, 80))
		require.NoError(t, err)

		signer := account(byte(i + 1))
		payload, err := composer.Direct(signer, call).SigningPayload(context.Background(), builder.SigningInfo{
			GenesisHash:        genesis,
			BlockNumber:        100,
			Era:                models.NewMortalEra(100, 64),
			Nonce:              uint64(i),
			SpecVersion:        1,
			TransactionVersion: 1,
		})
		require.NoError(t, err)
		requests[i] = Request{
			Header:  envelope.Header{Command: envelope.CommandSignTransaction, GenesisHash: genesis, Address: signer},
			Payload: payload,
		}
	}
	return requests
}

func testSignature(i int) types.MultiSignature {
	return models.NewSr25519Signature(bytes.Repeat([]byte{byte(0xa0 + i)}, 64))
}

// device decodes the displayed request frames and answers with one signature per entry.
func device(t *testing.T, frames [][]byte, answer int) ([]envelope.Entry, [][]byte) {
	dec := fountain.NewDecoder(0)
	var payload []byte
	for _, f := range frames {
		st, err := dec.Absorb(f)
		require.NoError(t, err)
		if st.Status == fountain.StatusComplete {
			payload = st.Payload
			break
		}
	}
	require.NotNil(t, payload, "request frames did not decode")

	entries, err := envelope.Unpack(payload)
	require.NoError(t, err)

	sigs := make([]types.MultiSignature, answer)
	for i := range sigs {
		sigs[i] = testSignature(i)
	}
	packed, err := envelope.PackSignatures(sigs)
	require.NoError(t, err)
	src, err := fountain.Encode(packed, codec)
	require.NoError(t, err)
	response, err := fountain.Frames(src, src.RequiredSymbols()+2)
	require.NoError(t, err)
	return entries, response
}

func newTestSession(t *testing.T, cfg Config) (*Session, *recordingSink, *clock.Mock, *prometheus.Registry) {
	mock := clock.NewMock()
	sink := &recordingSink{}
	reg := prometheus.NewRegistry()
	cfg.Codec = codec
	cfg.FrameInterval = frameInterval
	s := NewSession(cfg, sink, WithClock(mock), WithMetrics(NewMetrics(reg)), WithLogger(zap.NewNop()))
	t.Cleanup(func() { _ = s.Cancel() })
	return s, sink, mock, reg
}

func TestSession_SignsBatchInOrder(t *testing.T) {
	s, sink, mock, reg := newTestSession(t, Config{})
	assert.Equal(t, StateIdle, s.State())

	requests := testRequests(t, 3)
	require.NoError(t, s.Start(context.Background(), requests, freshness))
	assert.Equal(t, StateDisplaying, s.State())
	deadline := s.Deadline()
	assert.Equal(t, mock.Now().Add(time.Minute), deadline)

	frames := sink.waitFrames(t, mock, 20)
	entries, response := device(t, frames, len(requests))
	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.Equal(t, requests[i].Payload.Bytes, e.Payload)
		assert.Equal(t, requests[i].Header, e.Header)
	}

	var progress Progress
	for _, f := range response {
		var err error
		progress, err = s.Ingest(f)
		require.NoError(t, err)
		if s.State() == StateCompleted {
			break
		}
	}
	assert.Equal(t, StateCompleted, s.State())
	assert.Equal(t, progress.Rank, progress.Received)
	assert.Equal(t, deadline, s.Deadline())

	select {
	case <-s.Done():
	default:
		t.Fatal("done not closed")
	}

	signed, err := s.Result()
	require.NoError(t, err)
	require.Len(t, signed, 3)
	for i, item := range signed {
		assert.Equal(t, i, item.Index)
		assert.Equal(t, testSignature(i), item.Signature)
		assert.Equal(t, account(byte(i+1)), item.Extrinsic.Signature.Signer.AsID)
		assert.True(t, item.Extrinsic.IsSigned())
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.SessionsTotal.WithLabelValues("completed")))
	assert.Positive(t, testutil.ToFloat64(s.metrics.FramesDisplayedTotal))
	n, err := testutil.GatherAndCount(reg, "airgap_symbols_received_total")
	require.NoError(t, err)
	assert.Positive(t, n)

	_, err = s.Ingest(response[0])
	assert.True(t, errors.Is(err, ErrSessionClosed))
}

func TestSession_ExpiresAndRejectsSymbols(t *testing.T) {
	s, sink, mock, _ := newTestSession(t, Config{})
	requests := testRequests(t, 2)
	require.NoError(t, s.Start(context.Background(), requests, Freshness{ExpectedBlockTime: 6 * time.Second, ToleranceBlocks: 2}))
	assert.Equal(t, 12*time.Second, s.Remaining())

	frames := sink.waitFrames(t, mock, 20)
	_, response := device(t, frames, len(requests))

	mock.Add(12 * time.Second)
	require.Eventually(t, func() bool {
		if s.State() == StateExpired {
			return true
		}
		mock.Add(frameInterval)
		return false
	}, 5*time.Second, time.Millisecond)

	progress, err := s.Ingest(response[0])
	assert.True(t, errors.Is(err, ErrSessionExpired))
	assert.Equal(t, Progress{}, progress)
	assert.Zero(t, s.Remaining())

	_, err = s.Result()
	assert.True(t, errors.Is(err, ErrSessionExpired))
	assert.True(t, errors.Is(s.Cancel(), ErrInvalidState))
}

func TestSession_IngestPastDeadline(t *testing.T) {
	// a frame interval longer than the window leaves expiry to Ingest
	mock := clock.NewMock()
	s := NewSession(Config{Codec: codec, FrameInterval: time.Hour}, &recordingSink{}, WithClock(mock))
	requests := testRequests(t, 1)
	require.NoError(t, s.Start(context.Background(), requests, Freshness{ExpectedBlockTime: time.Second, ToleranceBlocks: 3}))

	mock.Set(mock.Now().Add(3*time.Second + time.Nanosecond))
	_, err := s.Ingest([]byte{0x00, 0x01})
	assert.True(t, errors.Is(err, ErrSessionExpired))
	assert.Equal(t, StateExpired, s.State())
}

func TestSession_Cancel(t *testing.T) {
	s, _, _, _ := newTestSession(t, Config{})
	require.NoError(t, s.Start(context.Background(), testRequests(t, 1), freshness))

	require.NoError(t, s.Cancel())
	assert.Equal(t, StateCancelled, s.State())
	<-s.Done()

	_, err := s.Ingest([]byte{0x00, 0x01})
	assert.True(t, errors.Is(err, ErrSessionClosed))
	_, err = s.Result()
	assert.True(t, errors.Is(err, ErrSessionCancelled))
	assert.True(t, errors.Is(s.Cancel(), ErrInvalidState))
}

func TestSession_ContextCancelStopsDisplay(t *testing.T) {
	s, _, _, _ := newTestSession(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx, testRequests(t, 1), freshness))

	cancel()
	require.Eventually(t, func() bool { return s.State() == StateCancelled }, 5*time.Second, time.Millisecond)
}

func TestSession_InvalidTransitions(t *testing.T) {
	s, _, _, _ := newTestSession(t, Config{})

	_, err := s.Ingest([]byte{0x00, 0x01})
	assert.True(t, errors.Is(err, ErrSessionClosed))
	_, err = s.Result()
	assert.True(t, errors.Is(err, ErrInvalidState))

	assert.Error(t, s.Start(context.Background(), nil, freshness))
	assert.Error(t, s.Start(context.Background(), testRequests(t, 1), Freshness{}))

	require.NoError(t, s.Start(context.Background(), testRequests(t, 1), freshness))
	err = s.Start(context.Background(), testRequests(t, 1), freshness)
	assert.True(t, errors.Is(err, ErrInvalidState))
}

func TestSession_SignatureCountMismatch(t *testing.T) {
	s, sink, mock, _ := newTestSession(t, Config{})
	requests := testRequests(t, 3)
	require.NoError(t, s.Start(context.Background(), requests, freshness))

	frames := sink.waitFrames(t, mock, 20)
	_, short := device(t, frames, 2)
	_, full := device(t, frames, 3)

	var err error
	for _, f := range short {
		_, err = s.Ingest(f)
		if err != nil {
			break
		}
	}
	assert.True(t, errors.Is(err, envelope.ErrMalformedEnvelope), "got %v", err)
	assert.Equal(t, StateFailed, s.State())
	assert.True(t, s.State().Terminal())

	select {
	case <-s.Done():
	default:
		t.Fatal("session not finished")
	}
	_, err = s.Result()
	assert.True(t, errors.Is(err, envelope.ErrMalformedEnvelope), "got %v", err)

	// A correct answer scanned afterwards cannot revive the session.
	for _, f := range full {
		_, err = s.Ingest(f)
		assert.True(t, errors.Is(err, ErrSessionClosed), "got %v", err)
	}
	assert.Equal(t, StateFailed, s.State())
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.SessionsTotal.WithLabelValues("failed")))
}

// blockingAbsorber holds every frame until released.
type blockingAbsorber struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingAbsorber) Absorb([]byte) (fountain.DecodeState, error) {
	b.entered <- struct{}{}
	<-b.release
	return fountain.DecodeState{Status: fountain.StatusIncomplete, Received: 1, Rank: 1, Required: 3}, nil
}

func TestSession_DisplayRunsWhileDecoding(t *testing.T) {
	s, sink, mock, _ := newTestSession(t, Config{})
	require.NoError(t, s.Start(context.Background(), testRequests(t, 1), freshness))
	sink.waitFrames(t, mock, 1)

	dec := &blockingAbsorber{entered: make(chan struct{}), release: make(chan struct{})}
	s.mu.Lock()
	s.decoder = dec
	s.mu.Unlock()

	type ingested struct {
		progress Progress
		err      error
	}
	res := make(chan ingested, 1)
	go func() {
		p, err := s.Ingest([]byte{0x01})
		res <- ingested{p, err}
	}()
	<-dec.entered

	shown := len(sink.snapshot())
	sink.waitFrames(t, mock, shown+5)
	assert.Equal(t, 0, len(res), "ingest returned before the decoder was released")

	close(dec.release)
	r := <-res
	require.NoError(t, r.err)
	assert.Equal(t, Progress{Received: 1, Rank: 1, Required: 3}, r.progress)
	assert.Equal(t, StateDisplaying, s.State())
}

func TestSession_Throttle(t *testing.T) {
	s, sink, mock, _ := newTestSession(t, Config{IngestRate: 1, IngestBurst: 1})
	requests := testRequests(t, 3)
	require.NoError(t, s.Start(context.Background(), requests, freshness))

	frames := sink.waitFrames(t, mock, 20)
	_, response := device(t, frames, len(requests))

	_, err := s.Ingest(response[0])
	require.NoError(t, err)
	_, err = s.Ingest(response[1])
	assert.True(t, errors.Is(err, ErrThrottled))

	mock.Add(time.Second)
	_, err = s.Ingest(response[1])
	assert.NoError(t, err)
}
