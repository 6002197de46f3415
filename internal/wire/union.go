// ABOUTME: JSON envelope helpers shared by every tagged-union message family
// ABOUTME: Encodes a union as {"id"?, "case", "value"} and decodes it through a per-family case table

package wire

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMissingCase is returned when an envelope carries no case discriminator.
var ErrMissingCase = errors.New("tagged union has no case")

// Variant is implemented by every payload that can appear inside a tagged union.
type Variant interface {
	WireCase() string
}

// Unknown holds a union case this build does not recognize. It satisfies every
// payload interface so that newer backends do not break older clients.
type Unknown struct {
	Case  string
	Value json.RawMessage
}

// WireCase returns the unrecognized discriminator.
func (u *Unknown) WireCase() string { return u.Case }

func (u *Unknown) unknown() *Unknown { return u }

func (*Unknown) isServerPayload()     {}
func (*Unknown) isClientPayload()     {}
func (*Unknown) isUpdateEvent()       {}
func (*Unknown) isExecServerControl() {}
func (*Unknown) isExecClientControl() {}
func (*Unknown) isKvServerPayload()   {}
func (*Unknown) isKvClientPayload()   {}
func (*Unknown) isActionPayload()     {}

type envelope struct {
	ID    *uint32         `json:"id,omitempty"`
	Case  string          `json:"case"`
	Value json.RawMessage `json:"value,omitempty"`
}

func marshalVariant(id *uint32, v Variant) ([]byte, error) {
	if v == nil {
		return nil, ErrMissingCase
	}
	if x, ok := v.(interface{ unknown() *Unknown }); ok {
		u := x.unknown()
		return json.Marshal(envelope{ID: id, Case: u.Case, Value: u.Value})
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", v.WireCase(), err)
	}
	return json.Marshal(envelope{ID: id, Case: v.WireCase(), Value: raw})
}

// unmarshalVariant decodes an envelope. Cases missing from the table decode to *Unknown.
func unmarshalVariant[T Variant](data []byte, cases map[string]func() T, unknown func(*Unknown) T) (*uint32, T, error) {
	var zero T
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, zero, err
	}
	if env.Case == "" {
		return env.ID, zero, ErrMissingCase
	}

	newFn, ok := cases[env.Case]
	if !ok {
		return env.ID, unknown(&Unknown{Case: env.Case, Value: env.Value}), nil
	}

	v := newFn()
	if len(env.Value) > 0 && string(env.Value) != "null" {
		if err := json.Unmarshal(env.Value, v); err != nil {
			return env.ID, zero, fmt.Errorf("decoding %s: %w", env.Case, err)
		}
	}
	return env.ID, v, nil
}

func ptr[T any](v T) *T { return &v }
