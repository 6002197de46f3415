// ABOUTME: Server-to-client message union and its payload types
// ABOUTME: Every inbound frame on the Run stream decodes into a ServerMessage

package wire

import "encoding/json"

// Server message cases.
const (
	CaseInteractionUpdate            = "interactionUpdate"
	CaseInteractionQuery             = "interactionQuery"
	CaseExecServerMessage            = "execServerMessage"
	CaseExecServerControlMessage     = "execServerControlMessage"
	CaseConversationCheckpointUpdate = "conversationCheckpointUpdate"
	CaseKvServerMessage              = "kvServerMessage"
)

// ServerPayload is one of the server message variants.
type ServerPayload interface {
	Variant
	isServerPayload()
}

// ServerMessage is a single inbound frame.
type ServerMessage struct {
	Payload ServerPayload
}

var serverCases = map[string]func() ServerPayload{
	CaseInteractionUpdate:            func() ServerPayload { return &InteractionUpdate{} },
	CaseInteractionQuery:             func() ServerPayload { return &InteractionQuery{} },
	CaseExecServerMessage:            func() ServerPayload { return &ExecServerMessage{} },
	CaseExecServerControlMessage:     func() ServerPayload { return &ExecServerControlMessage{} },
	CaseConversationCheckpointUpdate: func() ServerPayload { return &ConversationState{} },
	CaseKvServerMessage:              func() ServerPayload { return &KvServerMessage{} },
}

// MarshalJSON implements json.Marshaler.
func (m ServerMessage) MarshalJSON() ([]byte, error) {
	return marshalVariant(nil, m.Payload)
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *ServerMessage) UnmarshalJSON(data []byte) error {
	_, p, err := unmarshalVariant(data, serverCases, func(u *Unknown) ServerPayload { return u })
	if err != nil {
		return err
	}
	m.Payload = p
	return nil
}

// InteractionQuery asks the client to answer a question on behalf of the user.
// Case names the query kind, e.g. "webSearchRequestQuery".
type InteractionQuery struct {
	ID    uint32     `json:"id"`
	Case  string     `json:"case"`
	Value QueryValue `json:"value"`
}

// QueryValue carries the query arguments, opaque to the transport layer.
type QueryValue struct {
	Args       json.RawMessage `json:"args,omitempty"`
	ToolCallID string          `json:"toolCallId,omitempty"`
}

// WireCase implements Variant.
func (*InteractionQuery) WireCase() string { return CaseInteractionQuery }
func (*InteractionQuery) isServerPayload() {}

// ExecServerMessage asks the client to run a tool. Case names the argument
// kind (e.g. "readArgs") and selects the registered resource.
type ExecServerMessage struct {
	ID     uint32          `json:"id"`
	ExecID string          `json:"execId,omitempty"`
	Case   string          `json:"case"`
	Value  json.RawMessage `json:"value,omitempty"`
}

// WireCase implements Variant.
func (*ExecServerMessage) WireCase() string { return CaseExecServerMessage }
func (*ExecServerMessage) isServerPayload() {}

// ExecServerControl is one of the exec control variants sent by the server.
type ExecServerControl interface {
	Variant
	isExecServerControl()
}

// ExecServerControlMessage wraps a control instruction for a running exec.
type ExecServerControlMessage struct {
	Control ExecServerControl
}

// WireCase implements Variant.
func (*ExecServerControlMessage) WireCase() string { return CaseExecServerControlMessage }
func (*ExecServerControlMessage) isServerPayload() {}

// ExecAbort cancels the exec with the given ID.
type ExecAbort struct {
	ID uint32 `json:"id"`
}

// WireCase implements Variant.
func (*ExecAbort) WireCase() string   { return "abort" }
func (*ExecAbort) isExecServerControl() {}

var execServerControlCases = map[string]func() ExecServerControl{
	"abort": func() ExecServerControl { return &ExecAbort{} },
}

// MarshalJSON implements json.Marshaler.
func (m ExecServerControlMessage) MarshalJSON() ([]byte, error) {
	return marshalVariant(nil, m.Control)
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *ExecServerControlMessage) UnmarshalJSON(data []byte) error {
	_, c, err := unmarshalVariant(data, execServerControlCases, func(u *Unknown) ExecServerControl { return u })
	if err != nil {
		return err
	}
	m.Control = c
	return nil
}

// KvServerPayload is one of the blob store requests.
type KvServerPayload interface {
	Variant
	isKvServerPayload()
}

// KvServerMessage is a blob store request correlated by ID.
type KvServerMessage struct {
	ID      uint32
	Payload KvServerPayload
}

// WireCase implements Variant.
func (*KvServerMessage) WireCase() string { return CaseKvServerMessage }
func (*KvServerMessage) isServerPayload() {}

// GetBlobArgs requests the blob stored under BlobID.
type GetBlobArgs struct {
	BlobID []byte `json:"blobId"`
}

// WireCase implements Variant.
func (*GetBlobArgs) WireCase() string  { return "getBlobArgs" }
func (*GetBlobArgs) isKvServerPayload() {}

// SetBlobArgs stores BlobData under BlobID.
type SetBlobArgs struct {
	BlobID   []byte `json:"blobId"`
	BlobData []byte `json:"blobData"`
}

// WireCase implements Variant.
func (*SetBlobArgs) WireCase() string  { return "setBlobArgs" }
func (*SetBlobArgs) isKvServerPayload() {}

var kvServerCases = map[string]func() KvServerPayload{
	"getBlobArgs": func() KvServerPayload { return &GetBlobArgs{} },
	"setBlobArgs": func() KvServerPayload { return &SetBlobArgs{} },
}

// MarshalJSON implements json.Marshaler.
func (m KvServerMessage) MarshalJSON() ([]byte, error) {
	return marshalVariant(ptr(m.ID), m.Payload)
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *KvServerMessage) UnmarshalJSON(data []byte) error {
	id, p, err := unmarshalVariant(data, kvServerCases, func(u *Unknown) KvServerPayload { return u })
	if err != nil {
		return err
	}
	if id != nil {
		m.ID = *id
	}
	m.Payload = p
	return nil
}
