// ABOUTME: Exec client messages: tool results and the stream control frames around them
// ABOUTME: ExecOutput is the closed set of frames an exec handler may emit

package wire

import "encoding/json"

// Exec client control cases.
const (
	ControlStreamClose = "streamClose"
	ControlThrow       = "throw"
	ControlHeartbeat   = "heartbeat"
)

// ExecOutput is a frame produced on behalf of a single exec.
type ExecOutput interface {
	ClientPayload
	CorrelationID() uint32
}

// ExecClientMessage carries one result (or one streamed chunk) of an exec.
// Case names the result kind, e.g. "readResult".
type ExecClientMessage struct {
	ID     uint32          `json:"id"`
	ExecID string          `json:"execId,omitempty"`
	Case   string          `json:"case"`
	Value  json.RawMessage `json:"value,omitempty"`
}

// WireCase implements Variant.
func (*ExecClientMessage) WireCase() string { return CaseExecClientMessage }
func (*ExecClientMessage) isClientPayload() {}

// CorrelationID returns the correlation ID of the exec.
func (m *ExecClientMessage) CorrelationID() uint32 { return m.ID }

// ExecClientControl is one of the control frames sent for an exec.
type ExecClientControl interface {
	Variant
	isExecClientControl()
	execID() uint32
}

// ExecClientControlMessage wraps a control frame.
type ExecClientControlMessage struct {
	Control ExecClientControl
}

// WireCase implements Variant.
func (*ExecClientControlMessage) WireCase() string { return CaseExecClientControlMessage }
func (*ExecClientControlMessage) isClientPayload() {}

// CorrelationID returns the correlation ID of the exec the control frame belongs to.
func (m *ExecClientControlMessage) CorrelationID() uint32 {
	if m.Control == nil {
		return 0
	}
	return m.Control.execID()
}

// ExecStreamClose marks the end of an exec's output.
type ExecStreamClose struct {
	ID uint32 `json:"id"`
}

// ExecThrow reports that an exec failed.
type ExecThrow struct {
	ID         uint32 `json:"id"`
	Error      string `json:"error"`
	StackTrace string `json:"stackTrace,omitempty"`
}

// ExecHeartbeat tells the server a long running exec is still alive.
type ExecHeartbeat struct {
	ID uint32 `json:"id"`
}

func (*ExecStreamClose) WireCase() string { return ControlStreamClose }
func (*ExecThrow) WireCase() string       { return ControlThrow }
func (*ExecHeartbeat) WireCase() string   { return ControlHeartbeat }

func (*ExecStreamClose) isExecClientControl() {}
func (*ExecThrow) isExecClientControl()       {}
func (*ExecHeartbeat) isExecClientControl()   {}

func (c *ExecStreamClose) execID() uint32 { return c.ID }
func (c *ExecThrow) execID() uint32       { return c.ID }
func (c *ExecHeartbeat) execID() uint32   { return c.ID }

var execClientControlCases = map[string]func() ExecClientControl{
	ControlStreamClose: func() ExecClientControl { return &ExecStreamClose{} },
	ControlThrow:       func() ExecClientControl { return &ExecThrow{} },
	ControlHeartbeat:   func() ExecClientControl { return &ExecHeartbeat{} },
}

// MarshalJSON implements json.Marshaler.
func (m ExecClientControlMessage) MarshalJSON() ([]byte, error) {
	return marshalVariant(nil, m.Control)
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *ExecClientControlMessage) UnmarshalJSON(data []byte) error {
	_, c, err := unmarshalVariant(data, execClientControlCases, func(u *Unknown) ExecClientControl { return unknownControl{u} })
	if err != nil {
		return err
	}
	m.Control = c
	return nil
}

// unknownControl lets an unrecognized control frame flow through without an exec ID.
type unknownControl struct{ *Unknown }

func (unknownControl) execID() uint32 { return 0 }

// NewStreamClose builds the terminal frame of an exec.
func NewStreamClose(id uint32) *ExecClientControlMessage {
	return &ExecClientControlMessage{Control: &ExecStreamClose{ID: id}}
}

// NewThrow builds the failure frame of an exec.
func NewThrow(id uint32, msg, stack string) *ExecClientControlMessage {
	return &ExecClientControlMessage{Control: &ExecThrow{ID: id, Error: msg, StackTrace: stack}}
}

// NewExecHeartbeat builds a keep-alive frame for a running exec.
func NewExecHeartbeat(id uint32) *ExecClientControlMessage {
	return &ExecClientControlMessage{Control: &ExecHeartbeat{ID: id}}
}
