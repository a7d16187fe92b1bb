package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"

	"github.com/rahul/heo/internal/observability"
	"github.com/rahul/heo/internal/tools"
	"github.com/tmc/langchaingo/llms"
)

const proposeTool = "propose_protocol"

var ErrNoPlan = errors.New("planner: model did not propose a protocol")

// Plan is a proposed step list for one program. Steps are passed to the
// program untouched, so an oversized plan is rejected at execution time.
type Plan struct {
	Program   string   `json:"program"`
	Steps     []string `json:"steps"`
	Rationale string   `json:"rationale,omitempty"`
}

// Planner turns a hypothesis into a protocol plan using a tool-calling model.
type Planner struct {
	Model    llms.Model
	Registry *tools.Registry
	Prompts  *PromptManager
	Programs []string
	Logger   *observability.Logger
	MaxTurns int
}

func NewPlanner(model llms.Model, registry *tools.Registry, prompts *PromptManager, programs []string, logger *observability.Logger) *Planner {
	return &Planner{
		Model:    model,
		Registry: registry,
		Prompts:  prompts,
		Programs: programs,
		Logger:   logger,
		MaxTurns: 8,
	}
}

// Plan asks the model for a protocol. A non-empty programName pins the
// target program; otherwise the model chooses among the deployed ones.
func (p *Planner) Plan(ctx context.Context, chatID, programName, hypothesis string) (*Plan, error) {
	if programName != "" && !slices.Contains(p.Programs, programName) {
		return nil, fmt.Errorf("unknown program %q", programName)
	}

	observability.SetStatus(observability.RolePlanner, hypothesis)
	defer observability.SetStatus(observability.RoleIdle, "")

	ctx = tools.WithChatID(ctx, chatID)

	messages, err := p.initialMessages(programName, hypothesis)
	if err != nil {
		return nil, err
	}
	llmTools := p.llmTools()

	for turn := 0; turn < p.MaxTurns; turn++ {
		resp, err := p.Model.GenerateContent(ctx, messages, llms.WithTools(llmTools))
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return nil, ErrNoPlan
		}
		choice := resp.Choices[0]

		if p.Logger != nil {
			p.Logger.LogLLM(chatID, hypothesis, choice.Content, choice.ToolCalls)
		}

		if len(choice.ToolCalls) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoPlan, strings.TrimSpace(choice.Content))
		}

		var assistantParts []llms.ContentPart
		if choice.Content != "" {
			assistantParts = append(assistantParts, llms.TextContent{Text: choice.Content})
		}
		for _, tc := range choice.ToolCalls {
			assistantParts = append(assistantParts, tc)
		}
		messages = append(messages, llms.MessageContent{
			Role:  llms.ChatMessageTypeAI,
			Parts: assistantParts,
		})

		for _, tc := range choice.ToolCalls {
			if tc.FunctionCall == nil {
				continue
			}
			if tc.FunctionCall.Name == proposeTool {
				plan, err := p.parsePlan(tc.FunctionCall.Arguments, programName)
				if err != nil {
					return nil, err
				}
				if p.Logger != nil {
					p.Logger.LogPlan(chatID, plan.Program, plan.Steps)
				}
				return plan, nil
			}

			result := p.runTool(ctx, chatID, turn, tc)
			messages = append(messages, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{
					llms.ToolCallResponse{
						ToolCallID: tc.ID,
						Name:       tc.FunctionCall.Name,
						Content:    result,
					},
				},
			})
		}
	}

	return nil, fmt.Errorf("%w within %d turns", ErrNoPlan, p.MaxTurns)
}

func (p *Planner) initialMessages(programName, hypothesis string) ([]llms.MessageContent, error) {
	plannerPrompt, err := p.Prompts.GetPlannerPrompt()
	if err != nil {
		return nil, err
	}
	contextPrompt, err := p.Prompts.GetContextPrompt()
	if err != nil {
		log.Printf("Warning: Failed to load context prompts: %v", err)
	}

	var b strings.Builder
	b.WriteString(plannerPrompt)
	if contextPrompt != "" {
		b.WriteString("\n\n---\n\n")
		b.WriteString(contextPrompt)
	}
	fmt.Fprintf(&b, "\n\n## Deployed programs\n- %s\n", strings.Join(p.Programs, "\n- "))

	task := fmt.Sprintf("HYPOTHESIS: %s", hypothesis)
	if programName != "" {
		task += fmt.Sprintf("\n\nTARGET PROGRAM: %s", programName)
	}

	return []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(b.String())},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(task)},
		},
	}, nil
}

func (p *Planner) llmTools() []llms.Tool {
	var out []llms.Tool
	if p.Registry != nil {
		for _, t := range p.Registry.Sorted() {
			out = append(out, llms.Tool{
				Type: "function",
				Function: &llms.FunctionDefinition{
					Name:        t.Name(),
					Description: t.Description(),
					Parameters:  t.Parameters(),
				},
			})
		}
	}
	return append(out, llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        proposeTool,
			Description: "Submit the final protocol: the target program and its ordered steps.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"program": map[string]any{
						"type": "string",
						"enum": p.Programs,
					},
					"steps": map[string]any{
						"type":  "array",
						"items": map[string]any{"type": "string"},
					},
					"rationale": map[string]any{
						"type": "string",
					},
				},
				"required": []string{"program", "steps"},
			},
		},
	})
}

func (p *Planner) runTool(ctx context.Context, chatID string, turn int, tc llms.ToolCall) string {
	var tool tools.Tool
	if p.Registry != nil {
		tool = p.Registry.Get(tc.FunctionCall.Name)
	}
	if tool == nil {
		return fmt.Sprintf("Error: Tool %s not found", tc.FunctionCall.Name)
	}

	log.Printf("[Turn %d] Executing tool %s with args: %s", turn+1, tool.Name(), tc.FunctionCall.Arguments)
	if p.Logger != nil {
		p.Logger.LogToolCall(chatID, tool.Name(), tc.FunctionCall.Arguments)
	}
	res, err := tool.Execute(ctx, tc.FunctionCall.Arguments)
	if err != nil {
		res = fmt.Sprintf("Error: %v", err)
	}
	return res
}

func (p *Planner) parsePlan(arguments, programName string) (*Plan, error) {
	var plan Plan
	if err := json.Unmarshal([]byte(arguments), &plan); err != nil {
		return nil, fmt.Errorf("failed to parse %s arguments: %v", proposeTool, err)
	}
	if programName != "" {
		plan.Program = programName
	}
	if !slices.Contains(p.Programs, plan.Program) {
		return nil, fmt.Errorf("planner chose unknown program %q", plan.Program)
	}
	return &plan, nil
}
