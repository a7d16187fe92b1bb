package agent

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/rahul/heo/internal/keys"
	"github.com/rahul/heo/internal/observability"
	"github.com/rahul/heo/internal/runtime"
	"github.com/rahul/heo/internal/store"
)

type Messenger interface {
	Send(chatID string, text string) error
}

type RunStore interface {
	GetDueRuns() ([]store.Run, error)
	UpdateRunLastRun(id int) error
	DeleteRun(chatID string, id int) error
}

type Invoker interface {
	Invoke(ctx context.Context, call runtime.Call) (runtime.Receipt, error)
}

// Scheduler executes due runs with the service keypair and reports the
// outcome back to the owning chat.
type Scheduler struct {
	Store    RunStore
	Runtime  Invoker
	Keypair  *keys.Keypair
	Gateway  Messenger
	Logger   *observability.Logger
	Interval time.Duration
}

func NewScheduler(store RunStore, rt Invoker, kp *keys.Keypair, gateway Messenger, logger *observability.Logger, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Scheduler{
		Store:    store,
		Runtime:  rt,
		Keypair:  kp,
		Gateway:  gateway,
		Logger:   logger,
		Interval: interval,
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	log.Println("Run scheduler started...")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.PollAndExecute(ctx)
		}
	}
}

func (s *Scheduler) PollAndExecute(ctx context.Context) {
	runs, err := s.Store.GetDueRuns()
	if err != nil {
		log.Printf("Error polling runs: %v", err)
		return
	}

	for _, r := range runs {
		if ctx.Err() != nil {
			return
		}

		log.Printf("Executing scheduled run %d for chat %s: %s (%d steps)", r.ID, r.ChatID, r.Program, len(r.Steps))

		var rec runtime.Receipt
		call, err := runtime.Sign(s.Keypair, r.Program, r.Steps)
		if err == nil {
			rec, err = s.Runtime.Invoke(ctx, call)
		}
		status, report := runtime.Describe(rec, err)
		if s.Logger != nil {
			s.Logger.LogRun(r.ChatID, r.ID, r.Program, status)
		}

		if err := s.Store.UpdateRunLastRun(r.ID); err != nil {
			log.Printf("Error updating last run for run %d: %v", r.ID, err)
		}

		// One-time runs are removed after their first attempt.
		if r.IntervalSeconds == 0 {
			if err := s.Store.DeleteRun(r.ChatID, r.ID); err != nil {
				log.Printf("Error deleting one-time run %d: %v", r.ID, err)
			}
		}

		if s.Gateway != nil {
			msg := fmt.Sprintf("⏰ Scheduled Run #%d\n\n%s", r.ID, report)
			if err := s.Gateway.Send(r.ChatID, msg); err != nil {
				log.Printf("Error notifying chat %s: %v", r.ChatID, err)
			}
		}
	}
}
