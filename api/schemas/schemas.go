// File: api/schemas/schemas.go
// Description: Wire-level message schemas shared between the wayfinder service,
// the controller relay and the device-side actuator. Field names are part of
// the protocol contract and must not be renamed.

package schemas

import (
	"encoding/json"
)

// -- Message Types --

// Message type discriminators for the relay protocol. Inbound types are sent
// by the controller/device; outbound types are produced by this service.
const (
	// Inbound
	TypeVoiceCommand    = "voice_command"
	TypeGraphUpdate     = "graph_update"
	TypeUIState         = "ui_state"
	TypeActionResult    = "action_result"
	TypeExploreComplete = "explore_complete"
	TypePing            = "ping"
	TypeSolve           = "solve"

	// Outbound
	TypeIntentConfirmed = "intent_confirmed"
	TypeGraphAck        = "graph_ack"
	TypeExploreRequest  = "explore_request"
	TypeExecutePlan     = "execute_plan"
	TypePlanComplete    = "plan_complete"
	TypePlanError       = "plan_error"
	TypeStatus          = "status"
	TypePong            = "pong"
	TypeSolution        = "solution"
)

// Envelope is the outer frame of every relay message. The payload is decoded
// lazily once the type is known; the legacy solve message carries its fields
// at the top level and is re-decoded as a SolveMessage instead.
type Envelope struct {
	Type      string          `json:"type"`
	RequestID string          `json:"requestId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Outbound is the generic frame for messages produced by this service.
type Outbound struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// -- Inbound Payloads --

// VoiceCommandPayload carries a transcribed user utterance plus the app it
// should act on.
type VoiceCommandPayload struct {
	Text string `json:"text"`
	App  string `json:"app"`
}

// GraphUpdatePayload delivers a freshly explored navigation graph for one
// application package. The graph body is decoded by navgraph.Parse.
type GraphUpdatePayload struct {
	App   string          `json:"app"`
	Graph json.RawMessage `json:"graph"`
}

// UIStatePayload reports the screen the device is currently showing.
type UIStatePayload struct {
	CurrentApp        string `json:"currentApp"`
	ScreenFingerprint string `json:"screenFingerprint"`
}

// ActionResultPayload reports the outcome of a single executed plan step.
type ActionResultPayload struct {
	StepIndex            int    `json:"stepIndex"`
	Success              bool   `json:"success"`
	NewScreenFingerprint string `json:"newScreenFingerprint,omitempty"`
	Error                string `json:"error,omitempty"`
}

// ExploreCompletePayload signals that a requested graph exploration finished.
type ExploreCompletePayload struct {
	App string `json:"app"`
}

// SolveMessage is the legacy direct maze-solve request. Unlike the other
// inbound messages its fields live at the top level of the frame.
type SolveMessage struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId"`
	Grid      []int  `json:"grid"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// -- Outbound Payloads --

// IntentInfo mirrors an extracted intent on the wire.
type IntentInfo struct {
	Name       string         `json:"name"`
	Confidence float64        `json:"confidence"`
	Params     map[string]any `json:"params"`
}

// IntentConfirmedPayload echoes the recognized intent back to the controller
// for display before execution.
type IntentConfirmedPayload struct {
	Intent               string         `json:"intent"`
	Confidence           float64        `json:"confidence"`
	Params               map[string]any `json:"params"`
	Summary              string         `json:"summary"`
	RequiresConfirmation bool           `json:"requiresConfirmation"`
}

// GraphAckPayload acknowledges a graph_update with ingestion counts.
type GraphAckPayload struct {
	App   string `json:"app"`
	Nodes int    `json:"nodes"`
	Edges int    `json:"edges"`
}

// ExploreRequestPayload asks the device to explore an app whose graph is
// missing. Intent is a hint for targeted exploration.
type ExploreRequestPayload struct {
	App    string `json:"app"`
	Depth  int    `json:"depth"`
	Intent string `json:"intent,omitempty"`
}

// StepPayload is one executable UI action within an execute_plan message.
type StepPayload struct {
	Index          int               `json:"index"`
	Action         string            `json:"action"`
	Selector       map[string]string `json:"selector"`
	Value          string            `json:"value"`
	ExpectedScreen string            `json:"expectedScreen"`
	Description    string            `json:"description"`
	TimeoutMs      int               `json:"timeoutMs"`
}

// ExecutePlanPayload is the full plan handed to the actuator.
type ExecutePlanPayload struct {
	Intent               IntentInfo    `json:"intent"`
	Summary              string        `json:"summary"`
	RequiresConfirmation bool          `json:"requiresConfirmation"`
	EstimatedTimeMs      int           `json:"estimatedTimeMs"`
	Checkpoints          []string      `json:"checkpoints"`
	Steps                []StepPayload `json:"steps"`
}

// PlanCompletePayload reports successful (or abandoned) completion of a plan.
type PlanCompletePayload struct {
	Summary string `json:"summary"`
	Success bool   `json:"success"`
}

// PlanErrorPayload surfaces an execution divergence upstream. Action is the
// suggested caller policy, "retry" or "abort"; the decision stays with the
// caller.
type PlanErrorPayload struct {
	StepIndex int    `json:"stepIndex"`
	Error     string `json:"error"`
	Action    string `json:"action"`
}

// StatusMessage announces service readiness on each (re)connect.
type StatusMessage struct {
	Type           string `json:"type"`
	Service        string `json:"service"`
	ExtractorReady bool   `json:"extractorReady"`
	SolverReady    bool   `json:"solverReady"`
	Timestamp      int64  `json:"timestamp"`
}

// SolutionMessage answers a legacy solve request. Path entries are
// [row, col] pairs.
type SolutionMessage struct {
	Type            string   `json:"type"`
	RequestID       string   `json:"requestId"`
	Path            [][2]int `json:"path"`
	Success         bool     `json:"success"`
	InferenceTimeMs int64    `json:"inferenceTimeMs"`
}

// -- Intent --

// Intent is a structured user intention extracted from an utterance.
type Intent struct {
	Name       string         `json:"name"`
	Confidence float64        `json:"confidence"`
	Params     map[string]any `json:"params"`
	RawText    string         `json:"rawText,omitempty"`
}

// Param returns a string parameter, or "" when absent or non-string.
func (i Intent) Param(key string) string {
	if i.Params == nil {
		return ""
	}
	if s, ok := i.Params[key].(string); ok {
		return s
	}
	return ""
}

// AmountParam returns the numeric "amount" parameter as an int64. JSON
// decoding yields float64 for numbers; both forms are accepted.
func (i Intent) AmountParam() (int64, bool) {
	if i.Params == nil {
		return 0, false
	}
	switch v := i.Params["amount"].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	}
	return 0, false
}

// Info converts the intent to its wire representation.
func (i Intent) Info() IntentInfo {
	params := i.Params
	if params == nil {
		params = map[string]any{}
	}
	return IntentInfo{Name: i.Name, Confidence: i.Confidence, Params: params}
}
