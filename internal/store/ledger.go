package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

type Ledger struct {
	DB *sql.DB
}

func NewLedger(dbPath string) (*Ledger, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Create tables if not exist
	queries := []string{
		`CREATE TABLE IF NOT EXISTS invocations (
			id TEXT PRIMARY KEY,
			program TEXT,
			program_id TEXT,
			caller TEXT,
			step_count INTEGER,
			status TEXT,
			error_code INTEGER DEFAULT 0,
			error_message TEXT DEFAULT '',
			created_at INTEGER
		);`,
		`CREATE INDEX IF NOT EXISTS idx_invocations_caller ON invocations (caller, created_at);`,
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_id TEXT,
			program TEXT,
			steps TEXT,
			interval_seconds INTEGER,
			last_run DATETIME,
			status TEXT DEFAULT 'active'
		);`,
	}
	for _, q := range queries {
		_, err = db.Exec(q)
		if err != nil {
			db.Close()
			return nil, err
		}
	}

	return &Ledger{DB: db}, nil
}

func (l *Ledger) Close() error {
	return l.DB.Close()
}

func (l *Ledger) RecordInvocation(inv Invocation) error {
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now()
	}
	query := `INSERT INTO invocations (id, program, program_id, caller, step_count, status, error_code, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := l.DB.Exec(query, inv.ID, inv.Program, inv.ProgramID, inv.Caller, inv.StepCount,
		inv.Status, inv.ErrorCode, inv.ErrorMessage, inv.CreatedAt.UnixNano())
	return err
}

// ListInvocations returns the newest invocations first. An empty caller
// lists every caller.
func (l *Ledger) ListInvocations(caller string, limit int) ([]Invocation, error) {
	query := `SELECT id, program, program_id, caller, step_count, status, error_code, error_message, created_at
		FROM invocations
		WHERE (? = '' OR caller = ?)
		ORDER BY created_at DESC
		LIMIT ?`
	rows, err := l.DB.Query(query, caller, caller, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Invocation
	for rows.Next() {
		var inv Invocation
		var createdAt int64
		if err := rows.Scan(&inv.ID, &inv.Program, &inv.ProgramID, &inv.Caller, &inv.StepCount,
			&inv.Status, &inv.ErrorCode, &inv.ErrorMessage, &createdAt); err != nil {
			return nil, err
		}
		inv.CreatedAt = time.Unix(0, createdAt)
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (l *Ledger) AddRun(chatID string, programName string, steps []string, intervalSeconds int) error {
	encoded, err := json.Marshal(steps)
	if err != nil {
		return err
	}
	query := `INSERT INTO runs (chat_id, program, steps, interval_seconds, last_run) VALUES (?, ?, ?, ?, datetime('now', '-365 days'))`
	_, err = l.DB.Exec(query, chatID, programName, string(encoded), intervalSeconds)
	return err
}

func (l *Ledger) GetDueRuns() ([]Run, error) {
	query := `
		SELECT id, chat_id, program, steps, interval_seconds
		FROM runs
		WHERE status = 'active'
		AND (last_run IS NULL OR (julianday('now') - julianday(last_run)) * 86400 >= interval_seconds)`
	return l.queryRuns(query)
}

func (l *Ledger) ListRuns(chatID string) ([]Run, error) {
	query := `SELECT id, chat_id, program, steps, interval_seconds FROM runs WHERE chat_id = ? AND status = 'active' ORDER BY id`
	return l.queryRuns(query, chatID)
}

func (l *Ledger) queryRuns(query string, args ...any) ([]Run, error) {
	rows, err := l.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var encoded string
		if err := rows.Scan(&r.ID, &r.ChatID, &r.Program, &encoded, &r.IntervalSeconds); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(encoded), &r.Steps); err != nil {
			return nil, fmt.Errorf("run %d has corrupt steps: %w", r.ID, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (l *Ledger) UpdateRunLastRun(id int) error {
	query := `UPDATE runs SET last_run = datetime('now') WHERE id = ?`
	_, err := l.DB.Exec(query, id)
	return err
}

func (l *Ledger) DeleteRun(chatID string, id int) error {
	query := `DELETE FROM runs WHERE chat_id = ? AND id = ?`
	_, err := l.DB.Exec(query, chatID, id)
	return err
}

func (l *Ledger) ClearRuns(chatID string) error {
	query := `DELETE FROM runs WHERE chat_id = ?`
	_, err := l.DB.Exec(query, chatID)
	return err
}
