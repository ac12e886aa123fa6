// This file implements the agent loop: the model repeatedly picks a named
// tool and an input for it, observes the tool's output, and continues until
// it produces a final answer or hits the iteration cap.
package graphrag

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Tool is a named capability the agent can invoke. The description is shown
// to the model verbatim, so it should say when the tool is the right choice.
type Tool struct {
	Name        string
	Description string
	Func        func(ctx context.Context, input string) (string, error)
}

// AgentStep records one iteration of the loop for inspection and debugging.
type AgentStep struct {
	Thought     string
	Action      string
	ActionInput string
	Observation string
}

// AgentResult is the outcome of one agent run.
type AgentResult struct {
	// RunID uniquely identifies the run in logs.
	RunID string
	// Answer is the model's final answer; empty when the run hit the
	// iteration cap.
	Answer string
	// Steps are the intermediate tool invocations, in order.
	Steps []AgentStep
}

// Agent drives a model through the Thought/Action/Observation loop over a
// fixed set of tools. All decision logic lives in the model; the agent only
// formats the prompt, parses the model's chosen action, and runs tools.
type Agent struct {
	llm   LLM
	tools []Tool

	// MaxIterations caps the number of model calls per run. Default: 10
	MaxIterations int

	// Logger receives per-step progress messages. Defaults to slog.Default().
	Logger *slog.Logger
}

// NewAgent creates an agent over the given model and tools.
//
// Parameters:
//   - llm: The chat model that selects actions.
//   - tools: The available tools; at least one, with unique names.
//
// Returns:
//
//	A configured Agent, or an error if the tool list is empty or contains
//	duplicate names.
func NewAgent(llm LLM, tools []Tool) (*Agent, error) {
	if len(tools) == 0 {
		return nil, fmt.Errorf("agent needs at least one tool")
	}
	seen := make(map[string]bool, len(tools))
	for _, tool := range tools {
		if tool.Name == "" {
			return nil, fmt.Errorf("agent tool has an empty name")
		}
		if seen[tool.Name] {
			return nil, fmt.Errorf("duplicate agent tool name %q", tool.Name)
		}
		seen[tool.Name] = true
	}
	return &Agent{
		llm:           llm,
		tools:         tools,
		MaxIterations: 10,
		Logger:        slog.Default(),
	}, nil
}

// Run answers one question by iterating the tool-selection loop.
//
// Each iteration formats the prompt with the accumulated scratchpad, asks the
// model for the next step (stopping generation before it hallucinates an
// observation), and either returns the final answer or executes the chosen
// tool and appends the observation. Unknown tool names, unparseable output,
// and tool execution errors are all fed back to the model as observations
// rather than aborting the run.
//
// Returns:
//
//	The result with the final answer. When the iteration cap is reached, the
//	partial result (steps preserved) is returned together with ErrMaxIterations.
func (a *Agent) Run(ctx context.Context, question string) (*AgentResult, error) {
	result := &AgentResult{RunID: uuid.NewString()}
	logger := a.Logger.With("run_id", result.RunID)

	toolNames := make([]string, len(a.tools))
	toolLines := make([]string, len(a.tools))
	for i, tool := range a.tools {
		toolNames[i] = tool.Name
		toolLines[i] = fmt.Sprintf("%s: %s", tool.Name, tool.Description)
	}

	var scratchpad strings.Builder
	for i := 0; i < a.MaxIterations; i++ {
		prompt, err := agentPrompt.Format(map[string]any{
			"tools":      strings.Join(toolLines, "\n"),
			"tool_names": strings.Join(toolNames, ", "),
			"question":   question,
			"scratchpad": scratchpad.String(),
		})
		if err != nil {
			return result, fmt.Errorf("could not format agent prompt: %w", err)
		}

		output, err := a.llm.Generate(ctx, prompt, deterministic("\nObservation:"))
		if err != nil {
			return result, err
		}

		if answer, ok := parseFinalAnswer(output); ok {
			result.Answer = answer
			logger.Info("agent finished", "iterations", i+1)
			return result, nil
		}

		step := parseAgentStep(output)
		step.Observation = a.observe(ctx, step)
		result.Steps = append(result.Steps, step)
		logger.Info("agent step", "iteration", i+1, "action", step.Action)

		scratchpad.WriteString(strings.TrimSpace(output))
		scratchpad.WriteString("\nObservation: ")
		scratchpad.WriteString(step.Observation)
		scratchpad.WriteString("\nThought: ")
	}

	logger.Warn("agent hit iteration cap", "max_iterations", a.MaxIterations)
	return result, ErrMaxIterations
}

// observe executes the step's action and returns the observation text shown
// to the model. Unparseable steps, unknown tools, and tool errors all produce
// observations describing the problem.
func (a *Agent) observe(ctx context.Context, step AgentStep) string {
	if step.Action == "" {
		return "Could not parse an action. Respond with 'Action:' and 'Action Input:' lines, " +
			"or 'Final Answer:' when done."
	}
	for _, tool := range a.tools {
		if tool.Name == step.Action {
			observation, err := tool.Func(ctx, step.ActionInput)
			if err != nil {
				return fmt.Sprintf("The tool %s failed: %v", tool.Name, err)
			}
			return observation
		}
	}
	names := make([]string, len(a.tools))
	for i, tool := range a.tools {
		names[i] = tool.Name
	}
	return fmt.Sprintf("Unknown tool %q. Available tools: %s.", step.Action, strings.Join(names, ", "))
}

// actionPattern extracts the chosen tool and its input from model output.
var actionPattern = regexp.MustCompile(`(?s)Action:\s*(.+?)\s*Action Input:\s*(.+)`)

// parseFinalAnswer reports whether the output contains a final answer and
// returns it.
func parseFinalAnswer(output string) (string, bool) {
	const marker = "Final Answer:"
	idx := strings.Index(output, marker)
	if idx < 0 {
		return "", false
	}
	return strings.TrimSpace(output[idx+len(marker):]), true
}

// parseAgentStep splits model output into thought, action, and action input.
// Output without a recognizable action yields a step with an empty Action.
func parseAgentStep(output string) AgentStep {
	match := actionPattern.FindStringSubmatch(output)
	if match == nil {
		return AgentStep{Thought: strings.TrimSpace(output)}
	}

	thought := output[:strings.Index(output, "Action:")]
	thought = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(thought), "Thought:"))

	return AgentStep{
		Thought:     thought,
		Action:      strings.TrimSpace(match[1]),
		ActionInput: strings.Trim(strings.TrimSpace(match[2]), `"`),
	}
}
