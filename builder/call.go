package builder

import (
	"fmt"
	"strings"

	"github.com/centrifuge/go-substrate-rpc-client/v2/types"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

// CallIndexer resolves "Pallet.method" names to call indices. *types.Metadata
// satisfies it.
type CallIndexer interface {
	FindCallIndex(call string) (types.CallIndex, error)
}

// IndexTable is a static CallIndexer, useful when metadata is not at hand.
type IndexTable map[string]types.CallIndex

func (t IndexTable) FindCallIndex(call string) (types.CallIndex, error) {
	idx, ok := t[call]
	if !ok {
		return types.CallIndex{}, errors.Wrap(ErrUnknownCall, call)
	}
	return idx, nil
}

// Call is an encoded chain call together with enough structure to describe it and to
// wrap it again.
type Call struct {
	Pallet string
	Method string
	Raw    types.Call
	// Inner is the call this one wraps (or announces), nil for leaf calls.
	Inner *Call
}

// NewCall encodes args in order and prefixes them with the call index of name.
// A Call argument is encoded as a nested call and recorded as Inner.
func NewCall(indexer CallIndexer, name string, args ...interface{}) (Call, error) {
	pallet, method, err := splitCallName(name)
	if err != nil {
		return Call{}, err
	}
	idx, err := indexer.FindCallIndex(name)
	if err != nil {
		return Call{}, errors.Wrapf(err, "failed to resolve call index for %s", name)
	}

	c := Call{Pallet: pallet, Method: method}
	var encoded []byte
	for i, arg := range args {
		if inner, ok := arg.(Call); ok {
			innerCopy := inner
			c.Inner = &innerCopy
			arg = inner.Raw
		}
		b, err := types.EncodeToBytes(arg)
		if err != nil {
			return Call{}, errors.Wrapf(err, "failed to encode argument %d of %s", i, name)
		}
		encoded = append(encoded, b...)
	}
	c.Raw = types.Call{CallIndex: idx, Args: encoded}
	return c, nil
}

// FromRaw describes an already encoded call, e.g. one produced by another tool.
func FromRaw(raw types.Call, name string) (Call, error) {
	pallet, method, err := splitCallName(name)
	if err != nil {
		return Call{}, err
	}
	return Call{Pallet: pallet, Method: method, Raw: raw}, nil
}

// DecodeCall parses SCALE call bytes.
func DecodeCall(b []byte, name string) (Call, error) {
	var raw types.Call
	if err := types.DecodeFromBytes(b, &raw); err != nil {
		return Call{}, errors.Wrap(err, "failed to decode call")
	}
	return FromRaw(raw, name)
}

func (c Call) Name() string {
	return c.Pallet + "." + c.Method
}

// Path lists call names from the outermost to the innermost call.
func (c Call) Path() []string {
	var path []string
	for cur := &c; cur != nil; cur = cur.Inner {
		path = append(path, cur.Name())
	}
	return path
}

func (c Call) Bytes() ([]byte, error) {
	return types.EncodeToBytes(c.Raw)
}

// Hash is blake2b-256 of the encoded call, as used by Multisig and Proxy announcements.
func (c Call) Hash() (types.Hash, error) {
	b, err := c.Bytes()
	if err != nil {
		return types.Hash{}, err
	}
	return types.Hash(blake2b.Sum256(b)), nil
}

func splitCallName(name string) (string, string, error) {
	parts := strings.Split(name, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("call name %q must be in the form Pallet.method", name)
	}
	return parts[0], parts[1], nil
}
