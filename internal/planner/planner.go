// File: internal/planner/planner.go
// Description: Turns a resolved checkpoint sequence into a concrete
// execution plan. Each checkpoint pair is compiled into a spatial field and
// handed to the pathfinding solver; the solved cell path decodes back into
// screen transitions, which become device actions.

package planner

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/config"
	"github.com/xkilldash9x/wayfinder/internal/intent"
	"github.com/xkilldash9x/wayfinder/internal/maze"
	"github.com/xkilldash9x/wayfinder/internal/navgraph"
)

// State tracks a plan through the execution monitor.
type State int

const (
	StatePlanned State = iota
	StateExecuting
	StateCompleted
	StateFailed
	StateReplanning
)

func (s State) String() string {
	switch s {
	case StatePlanned:
		return "planned"
	case StateExecuting:
		return "executing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateReplanning:
		return "replanning"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// sensitiveIntents always require user confirmation before execution.
var sensitiveIntents = map[string]struct{}{
	"send_money":             {},
	"send_money_from_pocket": {},
	"pay_bill":               {},
	"transfer_pocket":        {},
}

// ExecutionPlan is a complete, ordered set of device actions realizing one
// intent. RequestID and App are stamped by the orchestrator when the plan
// enters the active table.
type ExecutionPlan struct {
	RequestID string
	App       string

	Intent      schemas.Intent
	Steps       []schemas.StepPayload
	Checkpoints []string
	Summary     string

	RequiresConfirmation bool
	EstimatedTimeMs      int
	State                State
}

// Payload shapes the plan for the execute_plan wire message.
func (p *ExecutionPlan) Payload() schemas.ExecutePlanPayload {
	return schemas.ExecutePlanPayload{
		Intent:               p.Intent.Info(),
		Summary:              p.Summary,
		RequiresConfirmation: p.RequiresConfirmation,
		EstimatedTimeMs:      p.EstimatedTimeMs,
		Checkpoints:          p.Checkpoints,
		Steps:                p.Steps,
	}
}

// Assembler builds execution plans over a navigation graph and a pluggable
// grid solver.
type Assembler struct {
	compiler      *maze.Compiler
	solver        schemas.Solver
	perStepMs     int
	stepTimeoutMs int
	logger        *zap.Logger
}

// NewAssembler wires the assembler. The solver is required; zero config
// values fall back to the service defaults.
func NewAssembler(solver schemas.Solver, cfg config.PlannerConfig, logger *zap.Logger) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PerStepEstimateMs <= 0 {
		cfg.PerStepEstimateMs = 2000
	}
	if cfg.StepTimeoutMs <= 0 {
		cfg.StepTimeoutMs = 5000
	}
	return &Assembler{
		compiler:      maze.NewCompiler(logger),
		solver:        solver,
		perStepMs:     cfg.PerStepEstimateMs,
		stepTimeoutMs: cfg.StepTimeoutMs,
		logger:        logger.Named("planner"),
	}
}

// Assemble produces a plan covering every solvable checkpoint hop. Hops that
// cannot be compiled or solved are skipped, so the plan may be partial; the
// caller reads the step count to judge completeness.
func (a *Assembler) Assemble(ctx context.Context, g *navgraph.Graph, checkpoints []string, in schemas.Intent) *ExecutionPlan {
	var steps []schemas.StepPayload
	index := 0

	for i := 0; i < len(checkpoints)-1; i++ {
		from, to := checkpoints[i], checkpoints[i+1]
		if from == to {
			continue
		}

		pathNodes := a.solveHop(ctx, g, from, to)
		if len(pathNodes) == 0 {
			a.logger.Warn("no path for hop, skipping",
				zap.String("from", from), zap.String("to", to))
			continue
		}

		for j := 0; j < len(pathNodes)-1; j++ {
			steps = append(steps, a.buildActionStep(g, index, pathNodes[j], pathNodes[j+1]))
			index++
		}

		param := a.paramSteps(index, to, in)
		steps = append(steps, param...)
		index += len(param)
	}

	plan := &ExecutionPlan{
		Intent:               in,
		Steps:                steps,
		Checkpoints:          checkpoints,
		Summary:              intent.Summary(in),
		RequiresConfirmation: RequiresConfirmation(in.Name),
		EstimatedTimeMs:      len(steps) * a.perStepMs,
		State:                StatePlanned,
	}

	a.logger.Info("plan assembled",
		zap.String("intent", in.Name),
		zap.Strings("checkpoints", checkpoints),
		zap.Int("steps", len(steps)),
		zap.Int("estimated_ms", plan.EstimatedTimeMs),
	)
	return plan
}

// solveHop resolves one checkpoint pair to a node sequence. The spatial
// field is tried first; when the field is unusable or the solver finds
// nothing, a breadth-first search over the graph itself is the fallback.
// A hop whose endpoint is missing from the graph entirely is unsolvable and
// returns nil.
func (a *Assembler) solveHop(ctx context.Context, g *navgraph.Graph, from, to string) []string {
	res, err := a.compiler.Compile(g, from, to)
	if err != nil {
		a.logger.Warn("field compilation failed",
			zap.String("from", from), zap.String("to", to), zap.Error(err))
		if _, ok := g.Nodes[from]; !ok {
			return nil
		}
		if _, ok := g.Nodes[to]; !ok {
			return nil
		}
		return g.ShortestPath(from, to)
	}

	cells, ok, err := a.solver.Solve(ctx, res.Grid, res.Width, res.Height)
	if err != nil {
		a.logger.Warn("solver error, falling back to graph search",
			zap.String("from", from), zap.String("to", to), zap.Error(err))
	}
	if ok && len(cells) > 0 {
		if nodes := maze.DecodePath(cells, res.NodePos); len(nodes) > 0 {
			return nodes
		}
	}

	return g.ShortestPath(from, to)
}

// buildActionStep converts one screen transition into a device action. An
// explicit edge action wins; otherwise the destination's snapshot supplies a
// selector; the last resort is a tap keyed on the destination label.
func (a *Assembler) buildActionStep(g *navgraph.Graph, index int, from, to string) schemas.StepPayload {
	if edge, ok := g.EdgeBetween(from, to); ok && hasAction(edge.Action) {
		action := edge.Action.Type
		if action == "" {
			action = "tap"
		}
		return schemas.StepPayload{
			Index:          index,
			Action:         action,
			Selector:       edge.Action.Selector,
			ExpectedScreen: to,
			Description:    fmt.Sprintf("Navigate: %s → %s", from, to),
			TimeoutMs:      a.stepTimeoutMs,
		}
	}

	target, found := g.Nodes[to]
	if found && len(target.Snapshot.KeyElements) > 0 {
		elem := target.Snapshot.KeyElements[0]
		label := elem.Text
		if label == "" {
			label = to
		}
		return schemas.StepPayload{
			Index:  index,
			Action: "tap",
			Selector: map[string]string{
				"id":           elem.ID,
				"text":         elem.Text,
				"content_desc": elem.ContentDesc,
			},
			ExpectedScreen: to,
			Description:    "Tap: " + label,
			TimeoutMs:      a.stepTimeoutMs,
		}
	}

	label := to
	if found && target.Label != "" {
		label = target.Label
	}
	return schemas.StepPayload{
		Index:          index,
		Action:         "tap",
		Selector:       map[string]string{"text": label, "content_desc": label},
		ExpectedScreen: to,
		Description:    "Navigate to: " + label,
		TimeoutMs:      a.stepTimeoutMs,
	}
}

// paramSteps yields the fill/tap actions owed to a checkpoint once reached.
// The send screen searches and selects the recipient, then enters the
// amount; the pocket detail screen selects the source pocket.
func (a *Assembler) paramSteps(start int, screen string, in schemas.Intent) []schemas.StepPayload {
	var steps []schemas.StepPayload
	idx := start

	switch screen {
	case "send":
		if recipient := in.Param("recipient"); recipient != "" {
			steps = append(steps, schemas.StepPayload{
				Index:          idx,
				Action:         "fill",
				Selector:       map[string]string{"id": "search_recipient", "class": "android.widget.EditText"},
				Value:          recipient,
				ExpectedScreen: screen,
				Description:    "Search recipient: " + recipient,
				TimeoutMs:      a.stepTimeoutMs,
			})
			idx++
			steps = append(steps, schemas.StepPayload{
				Index:          idx,
				Action:         "tap",
				Selector:       map[string]string{"text": recipient},
				ExpectedScreen: screen,
				Description:    "Select: " + recipient,
				TimeoutMs:      a.stepTimeoutMs,
			})
			idx++
		}
		if amount, ok := in.AmountParam(); ok {
			steps = append(steps, schemas.StepPayload{
				Index:          idx,
				Action:         "fill",
				Selector:       map[string]string{"id": "amount_input", "class": "android.widget.EditText"},
				Value:          fmt.Sprintf("%d", amount),
				ExpectedScreen: screen,
				Description:    fmt.Sprintf("Enter amount: $%s", intent.FormatAmount(amount)),
				TimeoutMs:      a.stepTimeoutMs,
			})
		}
	case "pocket_detail":
		if source := in.Param("source"); source != "" {
			pocket := strings.TrimPrefix(source, "bolsillo_")
			steps = append(steps, schemas.StepPayload{
				Index:          idx,
				Action:         "tap",
				Selector:       map[string]string{"text": pocket, "content_desc": pocket},
				ExpectedScreen: screen,
				Description:    "Select pocket: " + pocket,
				TimeoutMs:      a.stepTimeoutMs,
			})
		}
	}

	return steps
}

func hasAction(a navgraph.Action) bool {
	return a.Type != "" || len(a.Selector) > 0
}

// RequiresConfirmation reports whether an intent moves money and therefore
// needs explicit user approval before the plan runs.
func RequiresConfirmation(name string) bool {
	_, sensitive := sensitiveIntents[name]
	return sensitive
}
