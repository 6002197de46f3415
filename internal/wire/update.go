// ABOUTME: Interaction update union streamed by the server while a turn runs
// ABOUTME: Text, thinking, tool call, summary, step and heartbeat events

package wire

import "encoding/json"

// Update event cases.
const (
	UpdateTextDelta           = "textDelta"
	UpdateThinkingDelta       = "thinkingDelta"
	UpdateThinkingCompleted   = "thinkingCompleted"
	UpdateToolCallStarted     = "toolCallStarted"
	UpdateToolCallCompleted   = "toolCallCompleted"
	UpdatePartialToolCall     = "partialToolCall"
	UpdateToolCallDelta       = "toolCallDelta"
	UpdateUserMessageAppended = "userMessageAppended"
	UpdateTokenDelta          = "tokenDelta"
	UpdateSummary             = "summary"
	UpdateSummaryStarted      = "summaryStarted"
	UpdateSummaryCompleted    = "summaryCompleted"
	UpdateHeartbeat           = "heartbeat"
	UpdateShellOutputDelta    = "shellOutputDelta"
	UpdateTurnEnded           = "turnEnded"
	UpdateStepStarted         = "stepStarted"
	UpdateStepCompleted       = "stepCompleted"
)

// UpdateEvent is one of the interaction update variants.
type UpdateEvent interface {
	Variant
	isUpdateEvent()
}

// InteractionUpdate carries a single event of the running turn.
type InteractionUpdate struct {
	Event UpdateEvent
}

// WireCase implements Variant.
func (*InteractionUpdate) WireCase() string { return CaseInteractionUpdate }
func (*InteractionUpdate) isServerPayload() {}

// IsHeartbeat reports whether the update is a server keep-alive.
func (u *InteractionUpdate) IsHeartbeat() bool {
	return u != nil && u.Event != nil && u.Event.WireCase() == UpdateHeartbeat
}

type TextDelta struct {
	Text string `json:"text"`
}

type ThinkingDelta struct {
	Text          string `json:"text"`
	ThinkingStyle string `json:"thinkingStyle,omitempty"`
}

type ThinkingCompleted struct {
	ThinkingDurationMs int64 `json:"thinkingDurationMs"`
}

// ToolCallEvent is shared by the started, completed and partial tool call updates.
type ToolCallEvent struct {
	CallID      string          `json:"callId"`
	ToolCall    json.RawMessage `json:"toolCall,omitempty"`
	ModelCallID string          `json:"modelCallId,omitempty"`
}

type ToolCallStarted struct{ ToolCallEvent }
type ToolCallCompleted struct{ ToolCallEvent }
type PartialToolCall struct{ ToolCallEvent }

type ToolCallDelta struct {
	CallID        string          `json:"callId"`
	ToolCallDelta json.RawMessage `json:"toolCallDelta,omitempty"`
	ModelCallID   string          `json:"modelCallId,omitempty"`
}

type UserMessageAppended struct {
	UserMessage *UserMessage `json:"userMessage,omitempty"`
}

type TokenDelta struct {
	Tokens int64 `json:"tokens"`
}

type Summary struct {
	Summary string `json:"summary"`
}

type SummaryStarted struct{}

type SummaryCompleted struct {
	HookMessage string `json:"hookMessage,omitempty"`
}

type Heartbeat struct{}

type ShellOutputDelta struct {
	Event json.RawMessage `json:"event,omitempty"`
}

type TurnEnded struct{}

type StepStarted struct {
	StepID uint64 `json:"stepId"`
}

type StepCompleted struct {
	StepID         uint64 `json:"stepId"`
	StepDurationMs int64  `json:"stepDurationMs"`
}

func (*TextDelta) WireCase() string           { return UpdateTextDelta }
func (*ThinkingDelta) WireCase() string       { return UpdateThinkingDelta }
func (*ThinkingCompleted) WireCase() string   { return UpdateThinkingCompleted }
func (*ToolCallStarted) WireCase() string     { return UpdateToolCallStarted }
func (*ToolCallCompleted) WireCase() string   { return UpdateToolCallCompleted }
func (*PartialToolCall) WireCase() string     { return UpdatePartialToolCall }
func (*ToolCallDelta) WireCase() string       { return UpdateToolCallDelta }
func (*UserMessageAppended) WireCase() string { return UpdateUserMessageAppended }
func (*TokenDelta) WireCase() string          { return UpdateTokenDelta }
func (*Summary) WireCase() string             { return UpdateSummary }
func (*SummaryStarted) WireCase() string      { return UpdateSummaryStarted }
func (*SummaryCompleted) WireCase() string    { return UpdateSummaryCompleted }
func (*Heartbeat) WireCase() string           { return UpdateHeartbeat }
func (*ShellOutputDelta) WireCase() string    { return UpdateShellOutputDelta }
func (*TurnEnded) WireCase() string           { return UpdateTurnEnded }
func (*StepStarted) WireCase() string         { return UpdateStepStarted }
func (*StepCompleted) WireCase() string       { return UpdateStepCompleted }

func (*TextDelta) isUpdateEvent()           {}
func (*ThinkingDelta) isUpdateEvent()       {}
func (*ThinkingCompleted) isUpdateEvent()   {}
func (*ToolCallStarted) isUpdateEvent()     {}
func (*ToolCallCompleted) isUpdateEvent()   {}
func (*PartialToolCall) isUpdateEvent()     {}
func (*ToolCallDelta) isUpdateEvent()       {}
func (*UserMessageAppended) isUpdateEvent() {}
func (*TokenDelta) isUpdateEvent()          {}
func (*Summary) isUpdateEvent()             {}
func (*SummaryStarted) isUpdateEvent()      {}
func (*SummaryCompleted) isUpdateEvent()    {}
func (*Heartbeat) isUpdateEvent()           {}
func (*ShellOutputDelta) isUpdateEvent()    {}
func (*TurnEnded) isUpdateEvent()           {}
func (*StepStarted) isUpdateEvent()         {}
func (*StepCompleted) isUpdateEvent()       {}

var updateCases = map[string]func() UpdateEvent{
	UpdateTextDelta:           func() UpdateEvent { return &TextDelta{} },
	UpdateThinkingDelta:       func() UpdateEvent { return &ThinkingDelta{} },
	UpdateThinkingCompleted:   func() UpdateEvent { return &ThinkingCompleted{} },
	UpdateToolCallStarted:     func() UpdateEvent { return &ToolCallStarted{} },
	UpdateToolCallCompleted:   func() UpdateEvent { return &ToolCallCompleted{} },
	UpdatePartialToolCall:     func() UpdateEvent { return &PartialToolCall{} },
	UpdateToolCallDelta:       func() UpdateEvent { return &ToolCallDelta{} },
	UpdateUserMessageAppended: func() UpdateEvent { return &UserMessageAppended{} },
	UpdateTokenDelta:          func() UpdateEvent { return &TokenDelta{} },
	UpdateSummary:             func() UpdateEvent { return &Summary{} },
	UpdateSummaryStarted:      func() UpdateEvent { return &SummaryStarted{} },
	UpdateSummaryCompleted:    func() UpdateEvent { return &SummaryCompleted{} },
	UpdateHeartbeat:           func() UpdateEvent { return &Heartbeat{} },
	UpdateShellOutputDelta:    func() UpdateEvent { return &ShellOutputDelta{} },
	UpdateTurnEnded:           func() UpdateEvent { return &TurnEnded{} },
	UpdateStepStarted:         func() UpdateEvent { return &StepStarted{} },
	UpdateStepCompleted:       func() UpdateEvent { return &StepCompleted{} },
}

// MarshalJSON implements json.Marshaler.
func (u InteractionUpdate) MarshalJSON() ([]byte, error) {
	return marshalVariant(nil, u.Event)
}

// UnmarshalJSON implements json.Unmarshaler.
func (u *InteractionUpdate) UnmarshalJSON(data []byte) error {
	_, e, err := unmarshalVariant(data, updateCases, func(x *Unknown) UpdateEvent { return x })
	if err != nil {
		return err
	}
	u.Event = e
	return nil
}
