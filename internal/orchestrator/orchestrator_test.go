// File: internal/orchestrator/orchestrator_test.go
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/config"
	"github.com/xkilldash9x/wayfinder/internal/intent"
	"github.com/xkilldash9x/wayfinder/internal/navgraph"
	"github.com/xkilldash9x/wayfinder/internal/planner"
	"github.com/xkilldash9x/wayfinder/internal/solver"
)

const testApp = "com.bancolombia.app"

const testGraphJSON = `{
	"app": "com.bancolombia.app",
	"nodes": {
		"home":      {"label": "Inicio", "edges": ["transfers", "pockets"]},
		"transfers": {"label": "Transferencias", "edges": ["send", "home"]},
		"pockets":   {"label": "Bolsillos", "edges": ["home"]},
		"send":      {"label": "Enviar", "edges": ["confirm"]},
		"confirm":   {"label": "Confirmar", "edges": ["success"]},
		"success":   {"label": "Éxito", "edges": ["home"]}
	},
	"edges": []
}`

// captureSender records every outbound message for inspection.
type captureSender struct {
	mu   sync.Mutex
	msgs []any
}

func (s *captureSender) Send(_ context.Context, msg any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return nil
}

func (s *captureSender) ofType(t string) []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []any
	for _, m := range s.msgs {
		if messageType(m) == t {
			out = append(out, m)
		}
	}
	return out
}

func messageType(msg any) string {
	switch m := msg.(type) {
	case schemas.Outbound:
		return m.Type
	case schemas.StatusMessage:
		return m.Type
	case schemas.SolutionMessage:
		return m.Type
	default:
		return ""
	}
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *captureSender) {
	t.Helper()

	store := navgraph.NewMemoryStore(nil)
	bfs := solver.NewBFS(nil)
	assembler := planner.NewAssembler(bfs, config.PlannerConfig{}, nil)
	o := New(store, intent.NewRuleExtractor(nil), bfs, assembler, nil)

	sender := &captureSender{}
	o.SetSender(sender)
	return o, sender
}

func seedGraph(t *testing.T, o *Orchestrator) {
	t.Helper()
	raw := fmt.Sprintf(`{"type":"graph_update","payload":{"app":%q,"graph":%s}}`,
		testApp, testGraphJSON)
	o.HandleRaw(context.Background(), []byte(raw))
}

func seedPlan(t *testing.T, o *Orchestrator, sender *captureSender) string {
	t.Helper()
	seedGraph(t, o)

	raw := `{"type":"voice_command","requestId":"req-1","payload":{"text":"Envía 50 mil a María","app":"com.bancolombia.app"}}`
	o.HandleRaw(context.Background(), []byte(raw))

	require.Len(t, sender.ofType(schemas.TypeExecutePlan), 1, "expected a dispatched plan")
	plan, ok := o.ActivePlan("req-1")
	require.True(t, ok)
	require.NotEmpty(t, plan.Steps)
	return "req-1"
}

func TestVoiceCommand_PlansWhenGraphKnown(t *testing.T) {
	o, sender := newTestOrchestrator(t)
	seedPlan(t, o, sender)

	confirmed := sender.ofType(schemas.TypeIntentConfirmed)
	require.Len(t, confirmed, 1)
	payload := confirmed[0].(schemas.Outbound).Payload.(schemas.IntentConfirmedPayload)
	assert.Equal(t, "send_money", payload.Intent)
	assert.True(t, payload.RequiresConfirmation)
	assert.Contains(t, payload.Summary, "María")

	planMsg := sender.ofType(schemas.TypeExecutePlan)[0].(schemas.Outbound)
	assert.Equal(t, "req-1", planMsg.RequestID)
	planPayload := planMsg.Payload.(schemas.ExecutePlanPayload)
	assert.Equal(t, []string{"home", "transfers", "send", "confirm", "success"}, planPayload.Checkpoints)
	assert.NotEmpty(t, planPayload.Steps)
}

func TestVoiceCommand_RequestsExplorationWithoutGraph(t *testing.T) {
	o, sender := newTestOrchestrator(t)

	raw := `{"type":"voice_command","requestId":"req-2","payload":{"text":"Envía 50 mil a María"}}`
	o.HandleRaw(context.Background(), []byte(raw))

	explores := sender.ofType(schemas.TypeExploreRequest)
	require.Len(t, explores, 1)
	payload := explores[0].(schemas.Outbound).Payload.(schemas.ExploreRequestPayload)
	assert.Equal(t, testApp, payload.App)
	assert.Equal(t, 4, payload.Depth)
	assert.Equal(t, "send_money", payload.Intent)

	assert.Empty(t, sender.ofType(schemas.TypeExecutePlan))
	_, ok := o.ActivePlan("req-2")
	assert.False(t, ok, "no plan should be active before exploration completes")
}

func TestGraphUpdate_ReplansPendingRequest(t *testing.T) {
	o, sender := newTestOrchestrator(t)

	// Intent arrives before any graph is known.
	raw := `{"type":"voice_command","requestId":"req-3","payload":{"text":"Envía 50 mil a María"}}`
	o.HandleRaw(context.Background(), []byte(raw))
	require.Len(t, sender.ofType(schemas.TypeExploreRequest), 1)

	// The graph arriving unblocks the parked request immediately.
	seedGraph(t, o)

	plans := sender.ofType(schemas.TypeExecutePlan)
	require.Len(t, plans, 1, "pending request should re-enter planning")
	assert.Equal(t, "req-3", plans[0].(schemas.Outbound).RequestID)

	plan, ok := o.ActivePlan("req-3")
	require.True(t, ok)
	assert.Equal(t, "send_money", plan.Intent.Name)

	// The trailing completion signal has nothing left to re-plan.
	o.HandleRaw(context.Background(), []byte(`{"type":"explore_complete","payload":{"app":"com.bancolombia.app"}}`))
	assert.Len(t, sender.ofType(schemas.TypeExecutePlan), 1)
}

func TestExploreComplete_WithoutGraphDropsRequest(t *testing.T) {
	o, sender := newTestOrchestrator(t)

	raw := `{"type":"voice_command","requestId":"req-4","payload":{"text":"Envía 50 mil a María"}}`
	o.HandleRaw(context.Background(), []byte(raw))
	require.Len(t, sender.ofType(schemas.TypeExploreRequest), 1)

	// Exploration ends without ever delivering a graph; the request must be
	// dropped rather than re-requested forever.
	o.HandleRaw(context.Background(), []byte(`{"type":"explore_complete","payload":{"app":"com.bancolombia.app"}}`))
	assert.Empty(t, sender.ofType(schemas.TypeExecutePlan))
	assert.Len(t, sender.ofType(schemas.TypeExploreRequest), 1, "no exploration loop")

	_, ok := o.ActivePlan("req-4")
	assert.False(t, ok)
}

func TestGraphUpdate_Acks(t *testing.T) {
	o, sender := newTestOrchestrator(t)
	seedGraph(t, o)

	acks := sender.ofType(schemas.TypeGraphAck)
	require.Len(t, acks, 1)
	payload := acks[0].(schemas.Outbound).Payload.(schemas.GraphAckPayload)
	assert.Equal(t, testApp, payload.App)
	assert.Equal(t, 6, payload.Nodes)
}

func TestUIState_TracksScreen(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	o.HandleRaw(context.Background(),
		[]byte(`{"type":"ui_state","payload":{"currentApp":"com.bancolombia.app","screenFingerprint":"transfers"}}`))
	assert.Equal(t, "transfers", o.CurrentScreen(testApp))

	// Missing fields leave state untouched.
	o.HandleRaw(context.Background(),
		[]byte(`{"type":"ui_state","payload":{"currentApp":"com.bancolombia.app"}}`))
	assert.Equal(t, "transfers", o.CurrentScreen(testApp))
}

func TestActionResult_FinalSuccessCompletesPlan(t *testing.T) {
	o, sender := newTestOrchestrator(t)
	requestID := seedPlan(t, o, sender)
	plan, _ := o.ActivePlan(requestID)
	lastIndex := len(plan.Steps) - 1

	raw := fmt.Sprintf(`{"type":"action_result","requestId":%q,"payload":{"stepIndex":%d,"success":true,"newScreenFingerprint":"success"}}`,
		requestID, lastIndex)
	o.HandleRaw(context.Background(), []byte(raw))

	completes := sender.ofType(schemas.TypePlanComplete)
	require.Len(t, completes, 1)
	payload := completes[0].(schemas.Outbound).Payload.(schemas.PlanCompletePayload)
	assert.True(t, payload.Success)

	_, ok := o.ActivePlan(requestID)
	assert.False(t, ok, "completed plan must leave the active table")
	assert.Equal(t, "success", o.CurrentScreen(testApp))
}

func TestActionResult_MidSuccessUpdatesScreen(t *testing.T) {
	o, sender := newTestOrchestrator(t)
	requestID := seedPlan(t, o, sender)

	raw := fmt.Sprintf(`{"type":"action_result","requestId":%q,"payload":{"stepIndex":0,"success":true,"newScreenFingerprint":"transfers"}}`, requestID)
	o.HandleRaw(context.Background(), []byte(raw))

	assert.Empty(t, sender.ofType(schemas.TypePlanComplete))
	plan, ok := o.ActivePlan(requestID)
	require.True(t, ok)
	assert.Equal(t, planner.StateExecuting, plan.State)
	assert.Equal(t, "transfers", o.CurrentScreen(testApp))
}

func TestActionResult_DivergenceEmitsPlanErrorAndKeepsPlan(t *testing.T) {
	o, sender := newTestOrchestrator(t)
	requestID := seedPlan(t, o, sender)

	raw := fmt.Sprintf(`{"type":"action_result","requestId":%q,"payload":{"stepIndex":2,"success":false,"newScreenFingerprint":"somewhere_else","error":"tap missed"}}`, requestID)
	o.HandleRaw(context.Background(), []byte(raw))

	errs := sender.ofType(schemas.TypePlanError)
	require.Len(t, errs, 1, "exactly one plan_error expected")
	payload := errs[0].(schemas.Outbound).Payload.(schemas.PlanErrorPayload)
	assert.Equal(t, 2, payload.StepIndex)
	assert.Equal(t, "tap missed", payload.Error)
	assert.Equal(t, "retry", payload.Action)

	plan, ok := o.ActivePlan(requestID)
	require.True(t, ok, "diverged plan must stay in the active table")
	assert.Equal(t, planner.StateReplanning, plan.State)
}

func TestActionResult_FailureOnExpectedScreenIsQuiet(t *testing.T) {
	o, sender := newTestOrchestrator(t)
	requestID := seedPlan(t, o, sender)
	plan, _ := o.ActivePlan(requestID)
	expected := plan.Steps[0].ExpectedScreen

	raw := fmt.Sprintf(`{"type":"action_result","requestId":%q,"payload":{"stepIndex":0,"success":false,"newScreenFingerprint":%q,"error":"transient"}}`,
		requestID, expected)
	o.HandleRaw(context.Background(), []byte(raw))

	assert.Empty(t, sender.ofType(schemas.TypePlanError),
		"failure landing on the expected screen is recoverable")
	_, ok := o.ActivePlan(requestID)
	assert.True(t, ok)
}

func TestActionResult_UnknownPlanIgnored(t *testing.T) {
	o, sender := newTestOrchestrator(t)

	o.HandleRaw(context.Background(),
		[]byte(`{"type":"action_result","requestId":"ghost","payload":{"stepIndex":0,"success":true}}`))
	assert.Empty(t, sender.msgs)
}

func TestPingPong(t *testing.T) {
	o, sender := newTestOrchestrator(t)

	o.HandleRaw(context.Background(), []byte(`{"type":"ping"}`))
	assert.Len(t, sender.ofType(schemas.TypePong), 1)
}

func TestLegacySolve(t *testing.T) {
	o, sender := newTestOrchestrator(t)

	// 3x3 field: start and target on one open row.
	raw := `{"type":"solve","requestId":"legacy-1","grid":[0,0,0,2,1,3,0,0,0],"width":3,"height":3}`
	o.HandleRaw(context.Background(), []byte(raw))

	solutions := sender.ofType(schemas.TypeSolution)
	require.Len(t, solutions, 1)
	msg := solutions[0].(schemas.SolutionMessage)
	assert.Equal(t, "legacy-1", msg.RequestID)
	assert.True(t, msg.Success)
	assert.Equal(t, [][2]int{{1, 0}, {1, 1}, {1, 2}}, msg.Path)
}

func TestMalformedAndUnknownMessages(t *testing.T) {
	o, sender := newTestOrchestrator(t)

	o.HandleRaw(context.Background(), []byte(`{not json`))
	o.HandleRaw(context.Background(), []byte(`{"type":"teleport"}`))
	o.HandleRaw(context.Background(), []byte(`{"type":"graph_update","payload":{"app":""}}`))

	assert.Empty(t, sender.msgs, "bad input must be dropped without a response")
}

func TestOnConnect_AnnouncesStatus(t *testing.T) {
	o, sender := newTestOrchestrator(t)

	o.OnConnect(context.Background())

	statuses := sender.ofType(schemas.TypeStatus)
	require.Len(t, statuses, 1)
	msg := statuses[0].(schemas.StatusMessage)
	assert.Equal(t, "wayfinder", msg.Service)
	assert.True(t, msg.SolverReady)
	assert.False(t, msg.ExtractorReady, "rule extractor reports not ready")
	assert.NotZero(t, msg.Timestamp)
}
