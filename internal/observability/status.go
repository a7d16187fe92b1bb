package observability

import (
	"sync"
	"time"
)

// Role is what the process is busy with right now.
type Role string

const (
	RoleIdle     Role = "IDLE"
	RolePlanner  Role = "PLANNING"
	RoleExecutor Role = "EXECUTING"
)

type SystemStatus struct {
	mu            sync.RWMutex
	CurrentRole   Role
	ActiveTask    string
	LastHeartbeat time.Time
	Invocations   int
	Rejections    int
}

var globalStatus = &SystemStatus{
	CurrentRole:   RoleIdle,
	LastHeartbeat: time.Now(),
}

// SetStatus updates the global system status.
func SetStatus(role Role, task string) {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.CurrentRole = role
	globalStatus.ActiveTask = task
}

// GetStatus retrieves a copy of the global system status.
func GetStatus() (Role, string, time.Time) {
	globalStatus.mu.RLock()
	defer globalStatus.mu.RUnlock()
	return globalStatus.CurrentRole, globalStatus.ActiveTask, globalStatus.LastHeartbeat
}

// CountInvocation tallies a finished call for the live status line.
func CountInvocation(ok bool) {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	if ok {
		globalStatus.Invocations++
	} else {
		globalStatus.Rejections++
	}
}

// Counters returns the successful and rejected call totals.
func Counters() (int, int) {
	globalStatus.mu.RLock()
	defer globalStatus.mu.RUnlock()
	return globalStatus.Invocations, globalStatus.Rejections
}

// Heartbeat updates the last heartbeat time.
func Heartbeat() {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.LastHeartbeat = time.Now()
}
