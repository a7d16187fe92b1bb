package gateway

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/rahul/heo/internal/agent"
	"github.com/rahul/heo/internal/keys"
	"github.com/rahul/heo/internal/program"
	"github.com/rahul/heo/internal/runtime"
	"github.com/rahul/heo/internal/store"
)

const helpText = `Commands:
/programs - list deployed programs
/execute <program> - then one step per line
/plan <program|auto> <hypothesis> - draft steps with the planner and execute them
/schedule <seconds> <program> - then one step per line; 0 seconds runs once
/runs - list your scheduled runs
/clearruns - remove your scheduled runs
/history - recent invocations by this service`

type Planner interface {
	Plan(ctx context.Context, chatID, programName, hypothesis string) (*agent.Plan, error)
}

type Ledger interface {
	ListInvocations(caller string, limit int) ([]store.Invocation, error)
	AddRun(chatID string, programName string, steps []string, intervalSeconds int) error
	ListRuns(chatID string) ([]store.Run, error)
	ClearRuns(chatID string) error
}

// Commands implements the chat command set shared by every gateway. Calls
// are signed with the service keypair.
type Commands struct {
	Runtime  agent.Invoker
	Programs *program.Registry
	Keypair  *keys.Keypair
	Ledger   Ledger
	Planner  Planner
}

func NewCommands(rt agent.Invoker, programs *program.Registry, kp *keys.Keypair, ledger Ledger, planner Planner) *Commands {
	return &Commands{
		Runtime:  rt,
		Programs: programs,
		Keypair:  kp,
		Ledger:   ledger,
		Planner:  planner,
	}
}

// Handle runs one chat message and returns the reply text.
func (c *Commands) Handle(ctx context.Context, chatID, text string) string {
	head, body, _ := strings.Cut(strings.TrimSpace(text), "\n")
	fields := strings.Fields(head)
	if len(fields) == 0 {
		return helpText
	}

	cmd := strings.ToLower(fields[0])
	// Telegram appends the bot name in groups: /execute@heo_bot
	if at := strings.Index(cmd, "@"); at > 0 {
		cmd = cmd[:at]
	}
	args := fields[1:]
	steps := parseSteps(body)

	switch cmd {
	case "/programs":
		return c.listPrograms()
	case "/execute":
		if len(args) != 1 {
			return "Usage: /execute <program>, then one step per line."
		}
		return c.execute(ctx, args[0], steps)
	case "/plan":
		if len(args) < 2 {
			return "Usage: /plan <program|auto> <hypothesis>"
		}
		return c.plan(ctx, chatID, args[0], strings.Join(args[1:], " "))
	case "/schedule":
		if len(args) != 2 {
			return "Usage: /schedule <seconds> <program>, then one step per line."
		}
		return c.schedule(chatID, args[0], args[1], steps)
	case "/runs":
		return c.listRuns(chatID)
	case "/clearruns":
		if err := c.Ledger.ClearRuns(chatID); err != nil {
			log.Printf("Error clearing runs for %s: %v", chatID, err)
			return "Could not clear your runs right now."
		}
		return "Cleared all your scheduled runs."
	case "/history":
		return c.history()
	default:
		return helpText
	}
}

func parseSteps(body string) []string {
	var steps []string
	for _, line := range strings.Split(body, "\n") {
		if s := strings.TrimSpace(line); s != "" {
			steps = append(steps, s)
		}
	}
	return steps
}

func (c *Commands) listPrograms() string {
	var b strings.Builder
	b.WriteString("Deployed programs:\n")
	for _, name := range c.Programs.Names() {
		fmt.Fprintf(&b, "- %s (%s)\n", name, c.Programs.Get(name).ID())
	}
	fmt.Fprintf(&b, "Each accepts up to %d steps.", program.MaxSteps)
	return b.String()
}

func (c *Commands) execute(ctx context.Context, programRef string, steps []string) string {
	call, err := runtime.Sign(c.Keypair, programRef, steps)
	if err != nil {
		_, report := runtime.Describe(runtime.Receipt{}, err)
		return report
	}
	rec, err := c.Runtime.Invoke(ctx, call)
	_, report := runtime.Describe(rec, err)
	return report
}

func (c *Commands) plan(ctx context.Context, chatID, programRef, hypothesis string) string {
	if c.Planner == nil {
		return "The planner is not configured."
	}
	if strings.EqualFold(programRef, "auto") {
		programRef = ""
	}

	plan, err := c.Planner.Plan(ctx, chatID, programRef, hypothesis)
	if err != nil {
		log.Printf("Error planning for %s: %v", chatID, err)
		return fmt.Sprintf("Planning failed: %v", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Proposed %s protocol (%d steps):\n", plan.Program, len(plan.Steps))
	for i, s := range plan.Steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}
	b.WriteString("\n")
	b.WriteString(c.execute(ctx, plan.Program, plan.Steps))
	return b.String()
}

func (c *Commands) schedule(chatID, rawInterval, programRef string, steps []string) string {
	interval, err := strconv.Atoi(rawInterval)
	if err != nil || interval < 0 {
		return "Interval must be a whole number of seconds."
	}
	if interval != 0 && interval < 60 {
		return "Minimum interval is 60 seconds."
	}
	p := c.Programs.Get(programRef)
	if p == nil {
		return fmt.Sprintf("Unknown program '%s'.", programRef)
	}
	if err := c.Ledger.AddRun(chatID, p.Name(), steps, interval); err != nil {
		log.Printf("Error scheduling run for %s: %v", chatID, err)
		return "Could not schedule the run right now."
	}
	if interval == 0 {
		return fmt.Sprintf("Scheduled a one-time run of %s with %d steps.", p.Name(), len(steps))
	}
	return fmt.Sprintf("Scheduled %s with %d steps every %d seconds.", p.Name(), len(steps), interval)
}

func (c *Commands) listRuns(chatID string) string {
	runs, err := c.Ledger.ListRuns(chatID)
	if err != nil {
		log.Printf("Error listing runs for %s: %v", chatID, err)
		return "Could not load your runs right now."
	}
	if len(runs) == 0 {
		return "No scheduled runs."
	}
	var b strings.Builder
	for _, r := range runs {
		every := "once"
		if r.IntervalSeconds > 0 {
			every = fmt.Sprintf("every %ds", r.IntervalSeconds)
		}
		fmt.Fprintf(&b, "#%d %s, %d steps, %s\n", r.ID, r.Program, len(r.Steps), every)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (c *Commands) history() string {
	invs, err := c.Ledger.ListInvocations(c.Keypair.Address(), 10)
	if err != nil {
		log.Printf("Error loading history: %v", err)
		return "Could not load history right now."
	}
	if len(invs) == 0 {
		return "No invocations yet."
	}
	var b strings.Builder
	for _, inv := range invs {
		line := fmt.Sprintf("%s %s %d steps: %s", inv.CreatedAt.Format("2006-01-02 15:04:05"), inv.Program, inv.StepCount, inv.Status)
		if inv.ErrorMessage != "" {
			line += " (" + inv.ErrorMessage + ")"
		}
		b.WriteString(line + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
