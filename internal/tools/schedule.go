package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

type RunStore interface {
	AddRun(chatID string, program string, steps []string, intervalSeconds int) error
	ClearRuns(chatID string) error
}

type ScheduleTool struct {
	Store    RunStore
	Programs func(name string) bool
}

// NewScheduleTool returns a tool that queues protocol runs. known reports
// whether a program name is deployed.
func NewScheduleTool(store RunStore, known func(name string) bool) *ScheduleTool {
	return &ScheduleTool{Store: store, Programs: known}
}

func (c *ScheduleTool) Name() string {
	return "schedule_run"
}

func (c *ScheduleTool) Description() string {
	return "Manage scheduled protocol runs: 'schedule' a run of a program with its steps, or 'clear' all runs for this chat."
}

func (c *ScheduleTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type":        "string",
				"enum":        []string{"schedule", "clear"},
				"description": "The action to perform: 'schedule' a new run or 'clear' all of them.",
			},
			"program": map[string]any{
				"type":        "string",
				"description": "Program to execute (only for 'schedule')",
			},
			"steps": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Protocol steps in order (only for 'schedule')",
			},
			"interval_seconds": map[string]any{
				"type":        "integer",
				"description": "Repeat interval in seconds, minimum 60; 0 runs once (only for 'schedule')",
			},
		},
		"required": []string{"action"},
	}
}

func (c *ScheduleTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		Action   string   `json:"action"`
		Program  string   `json:"program"`
		Steps    []string `json:"steps"`
		Interval int      `json:"interval_seconds"`
	}

	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}

	chatID, ok := ChatIDFrom(ctx)
	if !ok {
		return "", fmt.Errorf("missing chatID in context")
	}

	switch args.Action {
	case "clear":
		if err := c.Store.ClearRuns(chatID); err != nil {
			return "", fmt.Errorf("failed to clear runs: %v", err)
		}
		return "Successfully cleared all your scheduled runs.", nil

	case "schedule":
		if c.Programs != nil && !c.Programs(args.Program) {
			return fmt.Sprintf("Error: unknown program '%s'.", args.Program), nil
		}
		if args.Interval != 0 && args.Interval < 60 {
			return "Error: Minimum interval is 60 seconds to prevent spamming.", nil
		}
		if err := c.Store.AddRun(chatID, args.Program, args.Steps, args.Interval); err != nil {
			return "", fmt.Errorf("failed to schedule run: %v", err)
		}
		if args.Interval == 0 {
			return fmt.Sprintf("Scheduled a one-time run of %s with %d steps.", args.Program, len(args.Steps)), nil
		}
		return fmt.Sprintf("Scheduled %s with %d steps every %d seconds.", args.Program, len(args.Steps), args.Interval), nil

	default:
		return "Invalid action. Use 'schedule' or 'clear'.", nil
	}
}
