package builder

import (
	"bytes"
	"context"
	"encoding/binary"
	"sort"

	"github.com/centrifuge/go-substrate-rpc-client/v2/scale"
	"github.com/centrifuge/go-substrate-rpc-client/v2/types"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"

	"github.com/novasamatech/nova-spektr-sub014/models"
)

var multisigAccountPrefix = []byte("modlpy/utilisuba")

// Timepoint identifies the extrinsic that opened a multisig operation.
type Timepoint struct {
	Height uint32
	Index  uint32
}

func (t Timepoint) Encode(encoder scale.Encoder) error {
	if err := encoder.Encode(types.U32(t.Height)); err != nil {
		return err
	}
	return encoder.Encode(types.U32(t.Index))
}

type optionTimepoint struct {
	value *Timepoint
}

func (o optionTimepoint) Encode(encoder scale.Encoder) error {
	if o.value == nil {
		return encoder.PushByte(0)
	}
	if err := encoder.PushByte(1); err != nil {
		return err
	}
	return encoder.Encode(*o.value)
}

// SignatorySelector decides which controlled account approves a multisig operation.
type SignatorySelector interface {
	Select(signatories []types.AccountID, known []types.AccountID) (types.AccountID, bool)
}

// FirstKnown picks the first known account that is a signatory, ignoring balances.
type FirstKnown struct{}

func (FirstKnown) Select(signatories []types.AccountID, known []types.AccountID) (types.AccountID, bool) {
	for _, k := range known {
		if containsAccount(signatories, k) {
			return k, true
		}
	}
	return types.AccountID{}, false
}

// SortAccounts returns a copy of accounts in ascending byte order.
func SortAccounts(accounts []types.AccountID) []types.AccountID {
	sorted := make([]types.AccountID, len(accounts))
	copy(sorted, accounts)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i][:], sorted[j][:]) < 0
	})
	return sorted
}

// DeriveMultisigAccount computes the account id pallet-multisig dispatches from.
func DeriveMultisigAccount(signatories []types.AccountID, threshold uint16) (types.AccountID, error) {
	who, err := types.EncodeToBytes(SortAccounts(signatories))
	if err != nil {
		return types.AccountID{}, err
	}
	var th [2]byte
	binary.LittleEndian.PutUint16(th[:], threshold)

	h, err := blake2b.New256(nil)
	if err != nil {
		return types.AccountID{}, err
	}
	h.Write(multisigAccountPrefix)
	h.Write(who)
	h.Write(th[:])
	return types.NewAccountID(h.Sum(nil)), nil
}

// Multisig approves the inner call as one signatory of a multisig account.
type Multisig struct {
	composer *Composer
	inner    Builder
	layer    MultisigLayer
	selected types.AccountID
	others   []types.AccountID
}

func (c *Composer) newMultisig(inner Builder, layer MultisigLayer) (*Multisig, error) {
	n := len(layer.Signatories)
	if n == 0 {
		return nil, errors.Wrap(ErrInvalidLayer, "multisig without signatories")
	}
	if layer.Threshold == 0 || int(layer.Threshold) > n {
		return nil, errors.Wrapf(ErrInvalidLayer, "threshold %d out of range for %d signatories", layer.Threshold, n)
	}
	sorted := SortAccounts(layer.Signatories)
	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1] {
			return nil, errors.Wrap(ErrInvalidLayer, "duplicate signatory")
		}
	}

	account, err := DeriveMultisigAccount(layer.Signatories, layer.Threshold)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive multisig account")
	}
	if inner.Signer() != account {
		return nil, errors.Wrapf(ErrOriginMismatch, "inner signer %x is not multisig account %x", inner.Signer(), account)
	}

	var selected types.AccountID
	if layer.SelectedSignatory != nil {
		selected = *layer.SelectedSignatory
		if !containsAccount(layer.Signatories, selected) || !containsAccount(c.Known, selected) {
			return nil, errors.Wrapf(ErrNoKnownSignatory, "selected signatory %x is not a known signatory", selected)
		}
	} else {
		var ok bool
		selected, ok = c.Selector.Select(layer.Signatories, c.Known)
		if !ok {
			return nil, ErrNoKnownSignatory
		}
	}

	others := make([]types.AccountID, 0, n-1)
	for _, s := range sorted {
		if s != selected {
			others = append(others, s)
		}
	}

	c.logger.Sugar().Debugw("Selected multisig signatory",
		"multisig", models.SS58Addr(account, models.SubstratePrefix),
		"signatory", models.SS58Addr(selected, models.SubstratePrefix),
		"threshold", layer.Threshold,
	)

	return &Multisig{
		composer: c,
		inner:    inner,
		layer:    layer,
		selected: selected,
		others:   others,
	}, nil
}

func (m *Multisig) Layer() Layer            { return m.layer }
func (m *Multisig) Inner() Builder          { return m.inner }
func (m *Multisig) Signer() types.AccountID { return m.selected }

// OtherSignatories are the signatories besides the signer, sorted ascending.
func (m *Multisig) OtherSignatories() []types.AccountID {
	out := make([]types.AccountID, len(m.others))
	copy(out, m.others)
	return out
}

func (m *Multisig) ResolveCall(ctx context.Context) (Call, error) {
	sub, err := m.SubmittableExtrinsic(ctx)
	if err != nil {
		return Call{}, err
	}
	return sub.Call, nil
}

func (m *Multisig) EstimateWeight(ctx context.Context) (models.Weight, error) {
	return estimateWeight(ctx, m.composer, m)
}

func (m *Multisig) SubmittableExtrinsic(ctx context.Context) (Submittable, error) {
	inner, err := m.inner.SubmittableExtrinsic(ctx)
	if err != nil {
		return Submittable{}, err
	}

	var call Call
	if m.layer.Threshold == 1 {
		call, err = NewCall(m.composer.Indexer, "Multisig.as_multi_threshold_1", m.others, inner.Call)
	} else {
		var info models.PaymentInfo
		info, err = m.composer.paymentInfo(ctx, inner.Call, m.selected)
		if err != nil {
			return Submittable{}, err
		}
		if info.Weight.IsZero() {
			return Submittable{}, errors.Wrapf(ErrPaymentInfoUnavailable, "zero weight estimated for %s", inner.Call.Name())
		}
		call, err = NewCall(m.composer.Indexer, "Multisig.as_multi",
			types.U16(m.layer.Threshold),
			m.others,
			optionTimepoint{value: m.layer.Timepoint},
			inner.Call,
			info.Weight,
		)
	}
	if err != nil {
		return Submittable{}, err
	}

	return Submittable{
		Call:      call,
		Signer:    m.selected,
		Extrinsic: models.NewExtrinsic(call.Raw),
	}, nil
}

func (m *Multisig) SigningPayload(ctx context.Context, info SigningInfo) (*SigningPayload, error) {
	return buildSigningPayload(ctx, m, info)
}

func containsAccount(accounts []types.AccountID, a types.AccountID) bool {
	for _, acc := range accounts {
		if acc == a {
			return true
		}
	}
	return false
}
