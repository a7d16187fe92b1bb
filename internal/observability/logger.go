package observability

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"
)

// EventType defines the category of the log event.
type EventType string

const (
	EventTypeInvoke      EventType = "invoke"
	EventTypeReject      EventType = "reject"
	EventTypePolicyCheck EventType = "policy_check"
	EventTypePlan        EventType = "plan"
	EventTypeToolCall    EventType = "tool_call"
	EventTypeRun         EventType = "run"
	EventTypeHeartbeat   EventType = "heartbeat"
	EventTypeLLM         EventType = "llm"
)

// Event represents a structured log entry.
type Event struct {
	Type      EventType `json:"type"`
	ChatID    string    `json:"chat_id,omitempty"`
	CallID    string    `json:"call_id,omitempty"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Logger handles structured logging.
type Logger struct {
	out        io.Writer
	llmLogPath string
	maxSize    int64
}

// NewLogger writes events to stdout and LLM transcripts under logDir.
func NewLogger(logDir string) *Logger {
	if logDir == "" {
		logDir = "logs"
	}
	return &Logger{
		out:        os.Stdout,
		llmLogPath: filepath.Join(logDir, "llm.jsonl"),
		maxSize:    10 * 1024 * 1024, // 10MB
	}
}

// WithOutput redirects event output, mainly for tests.
func (l *Logger) WithOutput(w io.Writer) *Logger {
	l.out = w
	return l
}

// Log emits a structured JSON event.
func (l *Logger) Log(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		fmt.Fprintf(l.out, "{\"error\": \"failed to marshal event: %v\"}\n", err)
		return
	}
	termMu.Lock()
	fmt.Fprintln(l.out, string(data))
	termMu.Unlock()

	if evt.Type == EventTypeLLM {
		l.writeToFile(data)
	}
}

func (l *Logger) writeToFile(data []byte) {
	if err := os.MkdirAll(filepath.Dir(l.llmLogPath), 0755); err != nil {
		log.Printf("failed to create log directory: %v", err)
		return
	}

	// Check size before writing
	info, err := os.Stat(l.llmLogPath)
	if err == nil && info.Size() > l.maxSize {
		l.rotateLogs()
	}

	f, err := os.OpenFile(l.llmLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("failed to open log file: %v", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		log.Printf("failed to write to log file: %v", err)
	}
}

func (l *Logger) rotateLogs() {
	// Simple rotation: keep one .old file
	oldPath := l.llmLogPath + ".old"
	_ = os.Remove(oldPath)
	_ = os.Rename(l.llmLogPath, oldPath)
}

// Helper methods for common events

func (l *Logger) LogInvoke(callID, program, caller string, stepCount int) {
	l.Log(Event{
		Type:   EventTypeInvoke,
		CallID: callID,
		Data: map[string]any{
			"program":    program,
			"caller":     caller,
			"step_count": stepCount,
		},
	})
}

func (l *Logger) LogReject(callID, program, caller string, stepCount int, reason string) {
	l.Log(Event{
		Type:   EventTypeReject,
		CallID: callID,
		Data: map[string]any{
			"program":    program,
			"caller":     caller,
			"step_count": stepCount,
			"reason":     reason,
		},
	})
}

func (l *Logger) LogPolicyCheck(callID, program, effect, reason string) {
	l.Log(Event{
		Type:   EventTypePolicyCheck,
		CallID: callID,
		Data: map[string]string{
			"program": program,
			"effect":  effect,
			"reason":  reason,
		},
	})
}

func (l *Logger) LogPlan(chatID, program string, steps []string) {
	l.Log(Event{
		Type:   EventTypePlan,
		ChatID: chatID,
		Data: map[string]any{
			"program": program,
			"steps":   steps,
		},
	})
}

func (l *Logger) LogToolCall(chatID, tool, args string) {
	l.Log(Event{
		Type:   EventTypeToolCall,
		ChatID: chatID,
		Data: map[string]string{
			"tool": tool,
			"args": args,
		},
	})
}

func (l *Logger) LogRun(chatID string, runID int, program, status string) {
	l.Log(Event{
		Type:   EventTypeRun,
		ChatID: chatID,
		Data: map[string]any{
			"run_id":  runID,
			"program": program,
			"status":  status,
		},
	})
}

func (l *Logger) LogHeartbeat() {
	l.Log(Event{
		Type: EventTypeHeartbeat,
		Data: map[string]string{"status": "alive"},
	})
}

func (l *Logger) LogLLM(chatID string, prompt any, response string, toolCalls any) {
	l.Log(Event{
		Type:   EventTypeLLM,
		ChatID: chatID,
		Data: map[string]any{
			"prompt":     prompt,
			"response":   response,
			"tool_calls": toolCalls,
		},
	})
}
