// File: cmd/plan.go
package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/intent"
	"github.com/xkilldash9x/wayfinder/internal/maze"
	"github.com/xkilldash9x/wayfinder/internal/navgraph"
	"github.com/xkilldash9x/wayfinder/internal/observability"
	"github.com/xkilldash9x/wayfinder/internal/planner"
	"github.com/xkilldash9x/wayfinder/internal/solver"
)

// newPlanCmd creates and configures the `plan` command, an offline dry run of
// the planning pipeline against a saved navigation graph.
func newPlanCmd() *cobra.Command {
	var (
		graphFile  string
		app        string
		screen     string
		showMaze   bool
		intentName string
		params     []string
	)

	planCmd := &cobra.Command{
		Use:   "plan \"utterance\"",
		Short: "Builds an execution plan offline from a saved navigation graph",
		Long: `Plan runs the full pipeline locally: rule-based intent extraction on the
utterance, checkpoint resolution from the given current screen, and plan
assembly with the reference solver. No relay connection is made.

The utterance may be replaced with --intent and repeated --param key=value
flags to bypass extraction entirely.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			data, err := os.ReadFile(graphFile)
			if err != nil {
				return fmt.Errorf("failed to read graph file: %w", err)
			}
			g, err := navgraph.Parse(app, data)
			if err != nil {
				return fmt.Errorf("failed to parse graph file: %w", err)
			}

			var in schemas.Intent
			switch {
			case intentName != "":
				in, err = buildIntent(intentName, params)
				if err != nil {
					return err
				}
			case len(args) == 1:
				extractor := intent.NewRuleExtractor(logger)
				in, err = extractor.Extract(ctx, args[0])
				if err != nil {
					return fmt.Errorf("intent extraction failed: %w", err)
				}
			default:
				return fmt.Errorf("either an utterance or --intent is required")
			}

			checkpoints := planner.ResolveCheckpoints(in, screen)
			assembler := planner.NewAssembler(solver.NewBFS(logger), appConfig.Planner, logger)
			plan := assembler.Assemble(ctx, g, checkpoints, in)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Intent:      %s (confidence %.2f)\n", in.Name, in.Confidence)
			fmt.Fprintf(out, "Summary:     %s\n", plan.Summary)
			fmt.Fprintf(out, "Checkpoints: %s\n", strings.Join(plan.Checkpoints, " > "))
			fmt.Fprintf(out, "Confirm:     %t\n", plan.RequiresConfirmation)
			fmt.Fprintf(out, "Estimated:   %dms\n\n", plan.EstimatedTimeMs)
			for _, step := range plan.Steps {
				fmt.Fprintf(out, "  %2d. %-5s %s\n", step.Index+1, step.Action, step.Description)
			}
			if len(plan.Steps) == 0 {
				fmt.Fprintln(out, "  (no steps; the graph covers none of the route)")
			}

			if showMaze {
				fmt.Fprintln(out)
				renderHops(out, g, plan.Checkpoints)
			}
			return nil
		},
	}

	planCmd.Flags().StringVarP(&graphFile, "graph", "g", "", "Path to a navigation graph JSON file (required)")
	planCmd.Flags().StringVarP(&app, "app", "a", "com.bancolombia.app", "Application package the graph belongs to")
	planCmd.Flags().StringVarP(&screen, "screen", "s", "home", "Screen to plan from")
	planCmd.Flags().BoolVar(&showMaze, "show-maze", false, "Render the compiled field for each hop")
	planCmd.Flags().StringVar(&intentName, "intent", "", "Intent name to plan directly, skipping extraction")
	planCmd.Flags().StringArrayVar(&params, "param", nil, "Intent parameter as key=value; repeatable (amount parses numerically)")
	_ = planCmd.MarkFlagRequired("graph")

	return planCmd
}

// buildIntent assembles an Intent from --intent/--param flags.
func buildIntent(name string, pairs []string) (schemas.Intent, error) {
	in := schemas.Intent{Name: name, Confidence: 1.0, Params: map[string]any{}}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return schemas.Intent{}, fmt.Errorf("invalid --param %q, expected key=value", pair)
		}
		if key == "amount" {
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return schemas.Intent{}, fmt.Errorf("invalid amount %q: %w", value, err)
			}
			in.Params[key] = n
			continue
		}
		in.Params[key] = value
	}
	return in, nil
}

// renderHops compiles and prints the spatial field for every checkpoint pair.
func renderHops(out io.Writer, g *navgraph.Graph, checkpoints []string) {
	compiler := maze.NewCompiler(nil)
	for i := 0; i+1 < len(checkpoints); i++ {
		from, to := checkpoints[i], checkpoints[i+1]
		if from == to {
			continue
		}
		res, err := compiler.Compile(g, from, to)
		if err != nil {
			fmt.Fprintf(out, "hop %s > %s: %v\n", from, to, err)
			continue
		}
		fmt.Fprintf(out, "hop %s > %s:\n%s\n", from, to, maze.Render(res.Grid2D, res.NodePos))
	}
}
