// ABOUTME: Converts interaction updates and queries between wire form and listener form.
// ABOUTME: Drops incomplete updates and encodes listener responses into per-kind response cases.

package interaction

import (
	"encoding/json"
	"fmt"

	"github.com/2389/coven-link/internal/wire"
)

// QueryKind names the kind of question the server is asking.
type QueryKind string

const (
	KindWebSearch          QueryKind = "web-search-request"
	KindWebFetch           QueryKind = "web-fetch-request"
	KindAskQuestion        QueryKind = "ask-question-request"
	KindSwitchMode         QueryKind = "switch-mode-request"
	KindExaSearch          QueryKind = "exa-search-request"
	KindExaFetch           QueryKind = "exa-fetch-request"
	KindCreatePlan         QueryKind = "create-plan-request"
	KindSetupVMEnvironment QueryKind = "setup-vm-environment-request"
)

// responseShape says how a Response is encoded for a query kind.
type responseShape int

const (
	shapeApproval responseShape = iota
	shapeResult
	shapeSuccess
)

type queryKindInfo struct {
	kind            QueryKind
	responseCase    string
	shape           responseShape
	needsArgs       bool
	needsToolCallID bool
}

var queryKinds = map[string]queryKindInfo{
	"webSearchRequestQuery":       {KindWebSearch, "webSearchRequestResponse", shapeApproval, true, false},
	"webFetchRequestQuery":        {KindWebFetch, "webFetchRequestResponse", shapeApproval, true, false},
	"askQuestionInteractionQuery": {KindAskQuestion, "askQuestionInteractionResponse", shapeResult, true, true},
	"switchModeRequestQuery":      {KindSwitchMode, "switchModeRequestResponse", shapeApproval, true, false},
	"exaSearchRequestQuery":       {KindExaSearch, "exaSearchRequestResponse", shapeApproval, true, false},
	"exaFetchRequestQuery":        {KindExaFetch, "exaFetchRequestResponse", shapeApproval, true, false},
	"createPlanRequestQuery":      {KindCreatePlan, "createPlanRequestResponse", shapeResult, true, true},
	"setupVmEnvironmentArgs":      {KindSetupVMEnvironment, "setupVmEnvironmentResult", shapeSuccess, false, false},
}

// Query is a server question in listener form.
type Query struct {
	ID         uint32
	Kind       QueryKind
	Args       json.RawMessage
	ToolCallID string

	info queryKindInfo
}

// Response is the listener's answer. Approval kinds read Approved and Reason;
// ask-question and create-plan read Result.
type Response struct {
	Approved bool
	Reason   string
	Result   json.RawMessage
}

// Approve returns an approving response.
func Approve() Response { return Response{Approved: true} }

// Reject returns a rejecting response with an optional reason.
func Reject(reason string) Response { return Response{Reason: reason} }

// Result returns a response carrying a structured result.
func Result(v json.RawMessage) Response { return Response{Result: v} }

// ConvertUpdate returns the event to deliver to the listener, or false when
// the update is incomplete or of a kind this build does not know.
func ConvertUpdate(u *wire.InteractionUpdate) (wire.UpdateEvent, bool) {
	if u == nil || u.Event == nil {
		return nil, false
	}
	switch e := u.Event.(type) {
	case *wire.ToolCallStarted:
		return e, completeToolCall(e.ToolCallEvent)
	case *wire.ToolCallCompleted:
		return e, completeToolCall(e.ToolCallEvent)
	case *wire.PartialToolCall:
		return e, completeToolCall(e.ToolCallEvent)
	case *wire.ToolCallDelta:
		return e, len(e.ToolCallDelta) > 0 && e.CallID != "" && e.ModelCallID != ""
	case *wire.UserMessageAppended:
		return e, e.UserMessage != nil
	case *wire.Unknown:
		return nil, false
	default:
		return e, true
	}
}

func completeToolCall(e wire.ToolCallEvent) bool {
	return len(e.ToolCall) > 0 && e.ModelCallID != ""
}

// ConvertQuery validates a wire query and returns its listener form.
func ConvertQuery(q *wire.InteractionQuery) (Query, error) {
	info, ok := queryKinds[q.Case]
	if !ok {
		return Query{}, fmt.Errorf("unhandled interaction query type %q (id %d)", q.Case, q.ID)
	}
	out := Query{ID: q.ID, Kind: info.kind, Args: q.Value.Args, ToolCallID: q.Value.ToolCallID, info: info}

	if info.needsArgs && len(out.Args) == 0 {
		return Query{}, fmt.Errorf("failed to convert interaction query %d: missing args", q.ID)
	}
	if info.needsToolCallID && out.ToolCallID == "" {
		return Query{}, fmt.Errorf("failed to convert interaction query %d: missing tool call id", q.ID)
	}
	if info.kind == KindSwitchMode && out.ToolCallID == "" {
		// switch-mode carries its tool call id inside the args
		var args struct {
			ToolCallID string `json:"toolCallId"`
		}
		if err := json.Unmarshal(out.Args, &args); err == nil {
			out.ToolCallID = args.ToolCallID
		}
	}
	return out, nil
}

type resultEnvelope struct {
	Case  string `json:"case"`
	Value any    `json:"value"`
}

type rejected struct {
	Reason string `json:"reason"`
}

// EncodeResponse builds the wire response for q.
func EncodeResponse(q Query, r Response) (*wire.InteractionResponse, error) {
	var body any
	switch q.info.shape {
	case shapeApproval:
		if r.Approved {
			body = map[string]any{"result": resultEnvelope{Case: "approved", Value: struct{}{}}}
		} else {
			body = map[string]any{"result": resultEnvelope{Case: "rejected", Value: rejected{Reason: r.Reason}}}
		}
	case shapeResult:
		result := r.Result
		if len(result) == 0 {
			result = json.RawMessage("null")
		}
		body = map[string]any{"result": result}
	case shapeSuccess:
		body = map[string]any{"result": resultEnvelope{Case: "success", Value: struct{}{}}}
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", q.info.responseCase, err)
	}
	return &wire.InteractionResponse{ID: q.ID, Case: q.info.responseCase, Value: raw}, nil
}
