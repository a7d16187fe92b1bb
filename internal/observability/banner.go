package observability

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

var startTime = time.Now()

const (
	colorReset    = "\033[0m"
	colorPurple   = "\033[35m"
	colorNeonCyan = "\033[96m"
	colorNeonMag  = "\033[95m"
)

var radarFrames = []string{"◜", "◝", "◞", "◟"}
var radarIdx = 0

// termMu synchronizes ALL terminal output so that the cursor
// save/restore in PrintLiveStatus can never be interrupted by a log write.
var termMu sync.Mutex

// ------------------------------------------------------------
// Utility
// ------------------------------------------------------------

func termWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	return w
}

// IsTerminal reports whether stdout is attached to a terminal, which the
// banner and live status need.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// termWriter sends log output to stderr under termMu so log lines never
// land in the middle of a status redraw.

type termWriter struct{}

func (tw termWriter) Write(p []byte) (n int, err error) {
	termMu.Lock()
	defer termMu.Unlock()
	return os.Stderr.Write(p)
}

// NewTermWriter returns the writer to pass to log.SetOutput.
func NewTermWriter() *termWriter {
	return &termWriter{}
}

// ------------------------------------------------------------
// Banner
// ------------------------------------------------------------

func PrintBanner() {
	fmt.Print("\033[2J\033[H")

	banner := `
    __  __________  ____
   / / / / ____/ __ \
  / /_/ / __/ / / / /
 / __  / /___/ /_/ /
/_/ /_/_____/\____/

   >> GUARDED PROTOCOL EXECUTION <<
`

	width := termWidth()
	for _, l := range strings.Split(banner, "\n") {
		pad := clamp((width-len(l))/2, 0, width)
		fmt.Printf("%s%s%s%s\n", strings.Repeat(" ", pad), colorNeonCyan, l, colorReset)
	}
}

// InitializeTerminal reserves rows 1-11 for the banner and status line and
// scrolls log output from row 12 down.
func InitializeTerminal() {
	fmt.Print("\033[12;r\033[12;1H")
}

func CleanupTerminal() {
	fmt.Print("\033[r\033[2J\033[H")
}

// ------------------------------------------------------------
// Live Status
// ------------------------------------------------------------

// pulse grades the time since the last heartbeat.
func pulse(sinceHeartbeat time.Duration) (icon, label, color string) {
	switch {
	case sinceHeartbeat < 40*time.Second:
		return "🟢", "HEALTHY", colorNeonCyan
	case sinceHeartbeat < 90*time.Second:
		return "🟡", "LAGGING", colorPurple
	default:
		return "🔴", "OFFLINE", colorNeonMag
	}
}

func roleBadge(role Role) (icon, color string) {
	switch role {
	case RolePlanner:
		return "🧪", colorNeonCyan
	case RoleExecutor:
		return "⚙️", colorNeonMag
	default:
		return "💤", colorReset
	}
}

// taskLabel shortens the active task (a program name or hypothesis) to
// fit the status line.
func taskLabel(task string, max int) string {
	if task == "" {
		return "Waiting..."
	}
	r := []rune(task)
	if len(r) <= max {
		return task
	}
	return string(r[:max-3]) + "..."
}

// memoryBar renders heap in use as a share of memory obtained from the OS.
func memoryBar(alloc, sys uint64, width int) string {
	share := 0.0
	if sys > 0 {
		share = float64(alloc) / float64(sys)
	}
	filled := clamp(int(share*float64(width)), 0, width)
	color := colorNeonCyan
	if share > 0.7 {
		color = colorNeonMag
	}
	return color + strings.Repeat("█", filled) + strings.Repeat("▒", width-filled)
}

func PrintLiveStatus() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	role, task, lastHB := GetStatus()
	okCalls, rejected := Counters()
	pulseIcon, pulseText, pulseColor := pulse(time.Since(lastHB))
	roleIcon, roleColor := roleBadge(role)

	radar := " "
	if role != RoleIdle {
		radar = radarFrames[radarIdx]
		radarIdx = (radarIdx + 1) % len(radarFrames)
	}

	line := fmt.Sprintf(
		"[%s] %s%s %-7s%s | %s%s %-9s%s %-25s %s%s%s | ok %d rej %d | up %v | %s %.1fMB%s",
		lastHB.Format("15:04:05"),
		pulseColor, pulseIcon, pulseText, colorReset,
		roleColor, roleIcon, role, colorReset,
		taskLabel(task, 25),
		colorPurple, radar, colorReset,
		okCalls, rejected,
		time.Since(startTime).Round(time.Second),
		memoryBar(m.Alloc, m.Sys, 20), float64(m.Alloc)/1024/1024, colorReset,
	)

	// Save cursor, draw on the status row, restore; one write under termMu.
	termMu.Lock()
	fmt.Print("\033[s\033[10;1H\033[K" + line + "\033[u")
	termMu.Unlock()
}
