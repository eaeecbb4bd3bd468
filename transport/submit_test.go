package transport

import (
	"bytes"
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novasamatech/nova-spektr-sub014/models"
)

type fakeSubmitter struct {
	failAt map[int]bool
	order  []models.Extrinsic
}

func (f *fakeSubmitter) Submit(_ context.Context, ext models.Extrinsic) (Inclusion, error) {
	i := len(f.order)
	f.order = append(f.order, ext)
	if f.failAt[i] {
		return Inclusion{}, errors.New("1010: Invalid Transaction")
	}
	return Inclusion{BlockNumber: 101, Index: i + 1}, nil
}

func testSigned(t *testing.T, n int) []Signed {
	requests := testRequests(t, n)
	out := make([]Signed, n)
	for i, req := range requests {
		sig := models.NewSr25519Signature(bytes.Repeat([]byte{byte(i)}, 64))
		ext, err := req.Payload.Transaction.Assemble(sig)
		require.NoError(t, err)
		out[i] = Signed{Index: i, Transaction: req.Payload.Transaction, Signature: sig, Extrinsic: ext}
	}
	return out
}

func TestSubmitAll_PerItemFailures(t *testing.T) {
	signed := testSigned(t, 3)
	submitter := &fakeSubmitter{failAt: map[int]bool{1: true}}

	results := SubmitAll(context.Background(), submitter, signed, nil, nil)
	require.Len(t, results, 3)

	require.Len(t, submitter.order, 3)
	for i, ext := range submitter.order {
		assert.Equal(t, signed[i].Extrinsic, ext)
	}

	assert.NoError(t, results[0].Err)
	assert.True(t, errors.Is(results[1].Err, ErrSubmissionFailed))
	assert.NoError(t, results[2].Err)
	assert.Equal(t, 3, results[2].Inclusion.Index)

	hash, err := signed[0].Extrinsic.Hash()
	require.NoError(t, err)
	assert.Equal(t, hash, results[0].Hash)

	failed := results.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, 1, failed[0].Index)
}

func TestSubmitAll_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	submitter := &fakeSubmitter{}
	results := SubmitAll(ctx, submitter, testSigned(t, 2), nil, nil)
	assert.Empty(t, submitter.order)
	assert.Len(t, results.Failed(), 2)
}
