// ABOUTME: Client-to-server message union: run request, heartbeats, exec and kv results
// ABOUTME: Also defines the conversation actions carried by a RunRequest

package wire

import "encoding/json"

// Client message cases.
const (
	CaseRunRequest               = "runRequest"
	CaseClientHeartbeat          = "clientHeartbeat"
	CaseExecClientMessage        = "execClientMessage"
	CaseExecClientControlMessage = "execClientControlMessage"
	CaseKvClientMessage          = "kvClientMessage"
	CaseInteractionResponse      = "interactionResponse"
)

// ClientPayload is one of the client message variants.
type ClientPayload interface {
	Variant
	isClientPayload()
}

// ClientMessage is a single outbound frame.
type ClientMessage struct {
	Payload ClientPayload
}

var clientCases = map[string]func() ClientPayload{
	CaseRunRequest:               func() ClientPayload { return &RunRequest{} },
	CaseClientHeartbeat:          func() ClientPayload { return &ClientHeartbeat{} },
	CaseExecClientMessage:        func() ClientPayload { return &ExecClientMessage{} },
	CaseExecClientControlMessage: func() ClientPayload { return &ExecClientControlMessage{} },
	CaseKvClientMessage:          func() ClientPayload { return &KvClientMessage{} },
	CaseInteractionResponse:      func() ClientPayload { return &InteractionResponse{} },
}

// MarshalJSON implements json.Marshaler.
func (m ClientMessage) MarshalJSON() ([]byte, error) {
	return marshalVariant(nil, m.Payload)
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *ClientMessage) UnmarshalJSON(data []byte) error {
	_, p, err := unmarshalVariant(data, clientCases, func(u *Unknown) ClientPayload { return u })
	if err != nil {
		return err
	}
	m.Payload = p
	return nil
}

// RunRequest opens (or resumes) a turn. It is always the first frame of an attempt.
type RunRequest struct {
	ConversationState *ConversationState  `json:"conversationState,omitempty"`
	Action            *ConversationAction `json:"action,omitempty"`
	ModelDetails      *ModelDetails       `json:"modelDetails,omitempty"`
	McpTools          *McpTools           `json:"mcpTools,omitempty"`
	ConversationID    string              `json:"conversationId,omitempty"`
}

// WireCase implements Variant.
func (*RunRequest) WireCase() string { return CaseRunRequest }
func (*RunRequest) isClientPayload() {}

// ClientHeartbeat keeps the stream alive while the client is quiet.
type ClientHeartbeat struct{}

// WireCase implements Variant.
func (*ClientHeartbeat) WireCase() string { return CaseClientHeartbeat }
func (*ClientHeartbeat) isClientPayload() {}

// InteractionResponse answers an InteractionQuery with the same ID.
type InteractionResponse struct {
	ID    uint32          `json:"id"`
	Case  string          `json:"case"`
	Value json.RawMessage `json:"value,omitempty"`
}

// WireCase implements Variant.
func (*InteractionResponse) WireCase() string { return CaseInteractionResponse }
func (*InteractionResponse) isClientPayload() {}

// ModelDetails selects the model used for the turn.
type ModelDetails struct {
	ModelID        string `json:"modelId"`
	DisplayModelID string `json:"displayModelId,omitempty"`
	DisplayName    string `json:"displayName,omitempty"`
	MaxMode        bool   `json:"maxMode,omitempty"`
}

// McpTools lists the MCP tools the client exposes for this turn.
type McpTools struct {
	Tools []McpToolDefinition `json:"mcpTools,omitempty"`
}

// McpToolDefinition describes one MCP tool.
type McpToolDefinition struct {
	Name               string          `json:"name"`
	ProviderIdentifier string          `json:"providerIdentifier,omitempty"`
	ToolName           string          `json:"toolName,omitempty"`
	Description        string          `json:"description,omitempty"`
	InputSchema        json.RawMessage `json:"inputSchema,omitempty"`
}

// ActionPayload is one of the conversation action variants.
type ActionPayload interface {
	Variant
	isActionPayload()
}

// ConversationAction is what the client asks the agent to do with the conversation.
type ConversationAction struct {
	Action ActionPayload
}

// UserMessage is a message typed by the user.
type UserMessage struct {
	Text      string `json:"text"`
	MessageID string `json:"messageId"`
	Mode      string `json:"mode,omitempty"`
}

// UserMessageAction appends a user message and starts a turn.
type UserMessageAction struct {
	UserMessage UserMessage `json:"userMessage"`
}

// ResumeAction continues a turn from the supplied conversation state.
type ResumeAction struct{}

// WireCase implements Variant.
func (*UserMessageAction) WireCase() string { return "userMessageAction" }
func (*UserMessageAction) isActionPayload() {}

// WireCase implements Variant.
func (*ResumeAction) WireCase() string { return "resumeAction" }
func (*ResumeAction) isActionPayload() {}

var actionCases = map[string]func() ActionPayload{
	"userMessageAction": func() ActionPayload { return &UserMessageAction{} },
	"resumeAction":      func() ActionPayload { return &ResumeAction{} },
}

// IsResume reports whether the action continues an interrupted turn.
func (a *ConversationAction) IsResume() bool {
	if a == nil {
		return false
	}
	_, ok := a.Action.(*ResumeAction)
	return ok
}

// MarshalJSON implements json.Marshaler.
func (a ConversationAction) MarshalJSON() ([]byte, error) {
	return marshalVariant(nil, a.Action)
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *ConversationAction) UnmarshalJSON(data []byte) error {
	_, p, err := unmarshalVariant(data, actionCases, func(u *Unknown) ActionPayload { return u })
	if err != nil {
		return err
	}
	a.Action = p
	return nil
}
