package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	contractx "github.com/medconsult/medconsult/agent/contract"
	nodex "github.com/medconsult/medconsult/agent/nodes"
	statex "github.com/medconsult/medconsult/agent/state"
)

func (o *Orchestrator) compileStepGraph(
	ctx context.Context,
) (compose.Runnable[nodex.GraphInput, nodex.GraphOutput], error) {
	graph := compose.NewGraph[nodex.GraphInput, nodex.GraphOutput]()

	if err := graph.AddLambdaNode("validate_turn",
		compose.InvokableLambda(func(ctx context.Context, in nodex.GraphInput) (*nodex.GraphState, error) {
			return nodex.ValidateTurn(in, o.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_turn: %w", err)
	}

	if err := graph.AddLambdaNode("load_session",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.LoadSession(ctx, in, o.store)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node load_session: %w", err)
	}

	if err := graph.AddLambdaNode("intake_turn",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.IntakeTurn(ctx, in, o.models.Intake(), o.store, o.maxQuestions)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node intake_turn: %w", err)
	}

	if err := graph.AddLambdaNode("specialist_turn",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.SpecialistTurn(ctx, in, o.models, o.store)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node specialist_turn: %w", err)
	}

	if err := graph.AddLambdaNode("summary_turn",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.SummaryTurn(ctx, in, o.models.Summarizer(), o.store)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node summary_turn: %w", err)
	}

	if err := graph.AddLambdaNode("finalize_result",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (nodex.GraphOutput, error) {
			return nodex.FinalizeResult(in, o.sink, o.recorder)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize_result: %w", err)
	}

	// The loaded stage decides which turn runs; terminal stages were already
	// rejected while loading.
	branch := compose.NewGraphBranch(
		func(ctx context.Context, in *nodex.GraphState) (string, error) {
			if in == nil || in.Session == nil {
				return "", fmt.Errorf("%w: graph state is missing the session", contractx.ErrValidation)
			}
			switch in.Session.Stage {
			case statex.StageIntake:
				return "intake_turn", nil
			case statex.StageAwaitingSpecialist:
				return "specialist_turn", nil
			case statex.StageSpecialistConsulted:
				return "summary_turn", nil
			default:
				return "", fmt.Errorf("%w: stage=%s", contractx.ErrSessionTerminal, in.Session.Stage)
			}
		},
		map[string]bool{
			"intake_turn":     true,
			"specialist_turn": true,
			"summary_turn":    true,
		},
	)
	if err := graph.AddBranch("load_session", branch); err != nil {
		return nil, fmt.Errorf("add stage branch: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_turn"},
		{"validate_turn", "load_session"},
		{"intake_turn", "finalize_result"},
		{"specialist_turn", "finalize_result"},
		{"summary_turn", "finalize_result"},
		{"finalize_result", compose.END},
	}
	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("orchestrator.step"))
	if err != nil {
		return nil, fmt.Errorf("compile step graph: %w", err)
	}
	return runner, nil
}
