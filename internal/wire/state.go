// ABOUTME: Conversation state snapshot exchanged in run requests and checkpoint updates
// ABOUTME: Large items are referenced by blob ID; EncodeState produces a deterministic encoding

package wire

import (
	"encoding/json"
	"fmt"
)

// ConversationState is an opaque snapshot of a conversation. The agent owns its
// meaning; the client only persists it and hands it back on resume.
type ConversationState struct {
	RootPromptMessages [][]byte          `json:"rootPromptMessagesJson,omitempty"`
	Turns              [][]byte          `json:"turns,omitempty"`
	Todos              [][]byte          `json:"todos,omitempty"`
	PendingToolCalls   []string          `json:"pendingToolCalls,omitempty"`
	PreviousWorkspace  []string          `json:"previousWorkspaceUris,omitempty"`
	FileStates         map[string][]byte `json:"fileStates,omitempty"`
	Summary            []byte            `json:"summary,omitempty"`
	Mode               string            `json:"mode,omitempty"`
	TokenDetails       *TokenDetails     `json:"tokenDetails,omitempty"`
}

// TokenDetails tracks context window usage.
type TokenDetails struct {
	UsedTokens int64 `json:"usedTokens"`
	MaxTokens  int64 `json:"maxTokens"`
}

// WireCase implements Variant.
func (*ConversationState) WireCase() string { return CaseConversationCheckpointUpdate }
func (*ConversationState) isServerPayload() {}

// EncodeState serializes a snapshot. encoding/json sorts map keys, so equal
// states always produce equal bytes and therefore equal blob IDs.
func EncodeState(s *ConversationState) ([]byte, error) {
	if s == nil {
		s = &ConversationState{}
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encoding conversation state: %w", err)
	}
	return b, nil
}

// DecodeState parses a snapshot produced by EncodeState.
func DecodeState(b []byte) (*ConversationState, error) {
	var s ConversationState
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decoding conversation state: %w", err)
	}
	return &s, nil
}
