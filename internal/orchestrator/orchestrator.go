// File: internal/orchestrator/orchestrator.go
// Description: Message-driven core of the service. Routes every inbound relay
// frame to a handler, owns the per-application graph/screen tables and the
// per-request plan table, and drives the pipeline from intent through
// checkpoints and plan assembly to execution monitoring.

package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/intent"
	"github.com/xkilldash9x/wayfinder/internal/navgraph"
	"github.com/xkilldash9x/wayfinder/internal/planner"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// defaultApp is assumed when a voice command does not name a package.
const defaultApp = "com.bancolombia.app"

// exploreDepth is the screen depth hint sent with an explore_request.
const exploreDepth = 4

// pendingPlan remembers everything needed to re-enter planning once a missing
// graph arrives: the intent survives the exploration round-trip so
// explore_complete can re-plan deterministically.
type pendingPlan struct {
	requestID string
	app       string
	intent    schemas.Intent
}

// Orchestrator processes the inbound message stream. Handlers run one at a
// time from the relay's dispatch goroutine; the single mutex covers the three
// shared tables for callers outside that goroutine (offline tooling, tests).
type Orchestrator struct {
	store     navgraph.Store
	extractor schemas.IntentExtractor
	solver    schemas.Solver
	assembler *planner.Assembler
	logger    *zap.Logger

	mu            sync.Mutex
	sender        schemas.MessageSender
	currentScreen map[string]string                 // app: screen id
	activePlans   map[string]*planner.ExecutionPlan // requestId: plan
	pendingPlans  map[string]pendingPlan            // app: deferred planning request
}

// New wires the orchestrator. The sender is attached afterwards via
// SetSender because the relay needs the orchestrator as its handler first.
func New(store navgraph.Store, extractor schemas.IntentExtractor, solver schemas.Solver, assembler *planner.Assembler, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		store:         store,
		extractor:     extractor,
		solver:        solver,
		assembler:     assembler,
		logger:        logger.Named("orchestrator"),
		currentScreen: make(map[string]string),
		activePlans:   make(map[string]*planner.ExecutionPlan),
		pendingPlans:  make(map[string]pendingPlan),
	}
}

// SetSender attaches the outbound transport.
func (o *Orchestrator) SetSender(s schemas.MessageSender) {
	o.mu.Lock()
	o.sender = s
	o.mu.Unlock()
}

// OnConnect announces readiness each time the relay (re)establishes its
// connection. Domain state survives reconnects untouched.
func (o *Orchestrator) OnConnect(ctx context.Context) {
	o.send(ctx, schemas.StatusMessage{
		Type:           schemas.TypeStatus,
		Service:        "wayfinder",
		ExtractorReady: o.extractor.Ready(),
		SolverReady:    true,
		Timestamp:      time.Now().UnixMilli(),
	})
}

// HandleRaw routes one inbound frame. Malformed frames are logged and
// dropped; no inbound message may take the processing loop down.
func (o *Orchestrator) HandleRaw(ctx context.Context, raw []byte) {
	var env schemas.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		o.logger.Error("invalid message frame", zap.Error(err))
		return
	}

	switch env.Type {
	case schemas.TypeVoiceCommand:
		o.handleVoiceCommand(ctx, env)
	case schemas.TypeGraphUpdate:
		o.handleGraphUpdate(ctx, env)
	case schemas.TypeUIState:
		o.handleUIState(env)
	case schemas.TypeActionResult:
		o.handleActionResult(ctx, env)
	case schemas.TypeExploreComplete:
		o.handleExploreComplete(ctx, env)
	case schemas.TypePing:
		o.send(ctx, schemas.Outbound{Type: schemas.TypePong})
	case schemas.TypeSolve:
		o.handleSolve(ctx, raw)
	default:
		o.logger.Debug("unknown message type", zap.String("type", env.Type))
	}
}

// -- Voice command pipeline --

func (o *Orchestrator) handleVoiceCommand(ctx context.Context, env schemas.Envelope) {
	var payload schemas.VoiceCommandPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		o.logger.Warn("invalid voice_command payload", zap.Error(err))
		return
	}

	app := payload.App
	if app == "" {
		app = defaultApp
	}
	requestID := env.RequestID
	if requestID == "" {
		requestID = "vc-" + uuid.NewString()
	}

	o.logger.Info("voice command received",
		zap.String("text", payload.Text), zap.String("app", app))

	in, err := o.extractor.Extract(ctx, payload.Text)
	if err != nil {
		o.logger.Error("intent extraction failed", zap.Error(err))
		return
	}
	o.logger.Info("intent extracted",
		zap.String("intent", in.Name), zap.Float64("confidence", in.Confidence))

	// Echo the recognized intent for display before anything executes.
	o.send(ctx, schemas.Outbound{
		Type:      schemas.TypeIntentConfirmed,
		RequestID: requestID,
		Payload: schemas.IntentConfirmedPayload{
			Intent:               in.Name,
			Confidence:           in.Confidence,
			Params:               in.Info().Params,
			Summary:              intent.Summary(in),
			RequiresConfirmation: planner.RequiresConfirmation(in.Name),
		},
	})

	g, found, err := o.store.Get(ctx, app)
	if err != nil {
		o.logger.Error("graph lookup failed", zap.String("app", app), zap.Error(err))
		return
	}
	if !found {
		// A missing graph is a recoverable precondition, not a fault. Park
		// the request and ask the device to explore.
		o.logger.Warn("no graph for app, requesting exploration", zap.String("app", app))
		o.mu.Lock()
		o.pendingPlans[app] = pendingPlan{requestID: requestID, app: app, intent: in}
		o.mu.Unlock()

		o.send(ctx, schemas.Outbound{
			Type:      schemas.TypeExploreRequest,
			RequestID: requestID,
			Payload: schemas.ExploreRequestPayload{
				App:    app,
				Depth:  exploreDepth,
				Intent: in.Name,
			},
		})
		return
	}

	o.planAndDispatch(ctx, g, in, requestID, app)
}

// planAndDispatch resolves checkpoints, assembles the plan, registers it in
// the active table and ships it to the actuator.
func (o *Orchestrator) planAndDispatch(ctx context.Context, g *navgraph.Graph, in schemas.Intent, requestID, app string) {
	o.mu.Lock()
	current, ok := o.currentScreen[app]
	o.mu.Unlock()
	if !ok || current == "" {
		current = "home"
	}

	checkpoints := planner.ResolveCheckpoints(in, current)
	plan := o.assembler.Assemble(ctx, g, checkpoints, in)
	plan.RequestID = requestID
	plan.App = app
	plan.State = planner.StateExecuting

	o.mu.Lock()
	o.activePlans[requestID] = plan
	o.mu.Unlock()

	o.send(ctx, schemas.Outbound{
		Type:      schemas.TypeExecutePlan,
		RequestID: requestID,
		Payload:   plan.Payload(),
	})
	o.logger.Info("plan dispatched",
		zap.String("request_id", requestID), zap.Int("steps", len(plan.Steps)))
}

// -- Graph management --

func (o *Orchestrator) handleGraphUpdate(ctx context.Context, env schemas.Envelope) {
	var payload schemas.GraphUpdatePayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		o.logger.Warn("invalid graph_update payload", zap.Error(err))
		return
	}
	if payload.App == "" || len(payload.Graph) == 0 {
		o.logger.Warn("graph_update missing app or graph")
		return
	}

	g, err := navgraph.Parse(payload.App, payload.Graph)
	if err != nil {
		o.logger.Warn("unparseable graph", zap.String("app", payload.App), zap.Error(err))
		return
	}
	if err := o.store.Put(ctx, g); err != nil {
		o.logger.Error("graph store failed", zap.String("app", payload.App), zap.Error(err))
		return
	}

	o.logger.Info("graph updated",
		zap.String("app", payload.App),
		zap.Int("nodes", len(g.Nodes)), zap.Int("edges", len(g.Edges)))

	o.send(ctx, schemas.Outbound{
		Type: schemas.TypeGraphAck,
		Payload: schemas.GraphAckPayload{
			App:   payload.App,
			Nodes: len(g.Nodes),
			Edges: len(g.Edges),
		},
	})

	// A fresh graph may unblock a parked request without waiting for the
	// explore_complete signal.
	o.mu.Lock()
	pending, ok := o.pendingPlans[payload.App]
	if ok {
		delete(o.pendingPlans, payload.App)
	}
	o.mu.Unlock()
	if ok {
		o.logger.Info("re-planning with fresh graph",
			zap.String("app", payload.App), zap.String("request_id", pending.requestID))
		o.planAndDispatch(ctx, g, pending.intent, pending.requestID, pending.app)
	}
}

func (o *Orchestrator) handleUIState(env schemas.Envelope) {
	var payload schemas.UIStatePayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		o.logger.Warn("invalid ui_state payload", zap.Error(err))
		return
	}
	if payload.CurrentApp == "" || payload.ScreenFingerprint == "" {
		return
	}
	o.mu.Lock()
	o.currentScreen[payload.CurrentApp] = payload.ScreenFingerprint
	o.mu.Unlock()
	o.logger.Debug("ui state",
		zap.String("app", payload.CurrentApp),
		zap.String("screen", payload.ScreenFingerprint))
}

func (o *Orchestrator) handleExploreComplete(ctx context.Context, env schemas.Envelope) {
	var payload schemas.ExploreCompletePayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		o.logger.Warn("invalid explore_complete payload", zap.Error(err))
		return
	}
	o.logger.Info("exploration complete", zap.String("app", payload.App))

	o.mu.Lock()
	pending, ok := o.pendingPlans[payload.App]
	if ok {
		delete(o.pendingPlans, payload.App)
	}
	o.mu.Unlock()
	if !ok {
		return
	}

	g, found, err := o.store.Get(ctx, payload.App)
	if err != nil {
		o.logger.Error("graph lookup failed after explore", zap.Error(err))
		return
	}
	if !found {
		// Exploration finished without delivering a graph; do not loop.
		o.logger.Warn("explore_complete without a stored graph, dropping request",
			zap.String("app", payload.App), zap.String("request_id", pending.requestID))
		return
	}

	o.logger.Info("re-planning with fresh graph",
		zap.String("app", payload.App), zap.String("request_id", pending.requestID))
	o.planAndDispatch(ctx, g, pending.intent, pending.requestID, pending.app)
}

// -- Execution monitoring --

func (o *Orchestrator) handleActionResult(ctx context.Context, env schemas.Envelope) {
	var payload schemas.ActionResultPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		o.logger.Warn("invalid action_result payload", zap.Error(err))
		return
	}

	o.mu.Lock()
	plan, ok := o.activePlans[env.RequestID]
	o.mu.Unlock()
	if !ok {
		o.logger.Warn("action_result for unknown plan",
			zap.String("request_id", env.RequestID))
		return
	}

	if payload.Success {
		o.logger.Info("step succeeded",
			zap.Int("step", payload.StepIndex),
			zap.String("screen", payload.NewScreenFingerprint))

		o.mu.Lock()
		if payload.NewScreenFingerprint != "" {
			o.currentScreen[plan.App] = payload.NewScreenFingerprint
		}
		final := payload.StepIndex >= len(plan.Steps)-1
		if final {
			plan.State = planner.StateCompleted
			delete(o.activePlans, env.RequestID)
		} else {
			plan.State = planner.StateExecuting
		}
		o.mu.Unlock()

		if final {
			o.logger.Info("plan complete", zap.String("summary", plan.Summary))
			o.send(ctx, schemas.Outbound{
				Type:      schemas.TypePlanComplete,
				RequestID: env.RequestID,
				Payload:   schemas.PlanCompletePayload{Summary: plan.Summary, Success: true},
			})
		}
		return
	}

	o.logger.Warn("step failed",
		zap.Int("step", payload.StepIndex), zap.String("error", payload.Error))

	expected := ""
	if payload.StepIndex >= 0 && payload.StepIndex < len(plan.Steps) {
		expected = plan.Steps[payload.StepIndex].ExpectedScreen
	}

	// A failure that lands on the expected screen is recoverable and the
	// actuator may simply retry. Divergence goes upstream; the plan stays in
	// the table pending the caller's retry/abort decision.
	if payload.NewScreenFingerprint != "" && payload.NewScreenFingerprint != expected {
		o.logger.Info("execution diverged",
			zap.String("got", payload.NewScreenFingerprint),
			zap.String("expected", expected))

		o.mu.Lock()
		plan.State = planner.StateReplanning
		o.mu.Unlock()

		o.send(ctx, schemas.Outbound{
			Type:      schemas.TypePlanError,
			RequestID: env.RequestID,
			Payload: schemas.PlanErrorPayload{
				StepIndex: payload.StepIndex,
				Error:     payload.Error,
				Action:    "retry",
			},
		})
	}
}

// -- Legacy solve passthrough --

// handleSolve keeps the service usable as a bare grid-solving endpoint. The
// legacy frame carries its fields at the top level, so the raw bytes are
// decoded again.
func (o *Orchestrator) handleSolve(ctx context.Context, raw []byte) {
	var msg schemas.SolveMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		o.logger.Warn("invalid solve message", zap.Error(err))
		return
	}
	o.logger.Info("legacy solve request",
		zap.String("request_id", msg.RequestID),
		zap.Int("width", msg.Width), zap.Int("height", msg.Height))

	start := time.Now()
	path, ok, err := o.solver.Solve(ctx, msg.Grid, msg.Width, msg.Height)
	if err != nil {
		o.logger.Error("solver failed", zap.Error(err))
		ok = false
	}
	if path == nil {
		path = [][2]int{}
	}

	o.send(ctx, schemas.SolutionMessage{
		Type:            schemas.TypeSolution,
		RequestID:       msg.RequestID,
		Path:            path,
		Success:         ok,
		InferenceTimeMs: time.Since(start).Milliseconds(),
	})
}

// -- Helpers --

func (o *Orchestrator) send(ctx context.Context, msg any) {
	o.mu.Lock()
	sender := o.sender
	o.mu.Unlock()
	if sender == nil {
		o.logger.Warn("no sender attached, dropping outbound message")
		return
	}
	if err := sender.Send(ctx, msg); err != nil {
		o.logger.Error("send failed", zap.Error(err))
	}
}

// ActivePlan exposes a plan by request id for tests and tooling.
func (o *Orchestrator) ActivePlan(requestID string) (*planner.ExecutionPlan, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	plan, ok := o.activePlans[requestID]
	return plan, ok
}

// CurrentScreen reports the tracked screen for an app, or "" when unknown.
func (o *Orchestrator) CurrentScreen(app string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.currentScreen[app]
}
