// Package runtime hosts protocol programs: it verifies the caller's
// signature, applies host policy, dispatches to the program and records the
// outcome in the ledger.
package runtime

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"
	"github.com/rahul/heo/internal/governance"
	"github.com/rahul/heo/internal/keys"
	"github.com/rahul/heo/internal/observability"
	"github.com/rahul/heo/internal/program"
	"github.com/rahul/heo/internal/store"
)

var (
	ErrMissingSignature = errors.New("runtime: missing caller signature")
	ErrInvalidSignature = errors.New("runtime: invalid caller signature")
	ErrUnknownProgram   = errors.New("runtime: unknown program")
	ErrPolicyDenied     = errors.New("runtime: denied by policy")
	ErrMalformedCall    = errors.New("runtime: malformed call")
)

// Call is the envelope a caller submits to invoke a program.
type Call struct {
	Program   string            `json:"program"`
	Caller    ed25519.PublicKey `json:"caller"`
	Steps     []string          `json:"steps"`
	Signature []byte            `json:"signature"`
}

// Receipt describes the outcome of one invocation.
type Receipt struct {
	ID           string    `json:"id"`
	Program      string    `json:"program"`
	ProgramID    string    `json:"program_id"`
	Caller       string    `json:"caller"`
	StepCount    int       `json:"step_count"`
	Status       string    `json:"status"`
	ErrorCode    int       `json:"error_code,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type Ledger interface {
	RecordInvocation(inv store.Invocation) error
}

type callMessage struct {
	Program string   `json:"program"`
	Caller  string   `json:"caller"`
	Steps   []string `json:"steps"`
}

// CallMessage returns the bytes a caller signs to authorise a call, in
// RFC 8785 canonical JSON. The program reference and every step must be
// valid UTF-8: JSON encoding would otherwise map distinct byte strings to
// the same message.
func CallMessage(programRef string, caller ed25519.PublicKey, steps []string) ([]byte, error) {
	if !utf8.ValidString(programRef) {
		return nil, fmt.Errorf("%w: program reference is not valid UTF-8", ErrMalformedCall)
	}
	for i, s := range steps {
		if !utf8.ValidString(s) {
			return nil, fmt.Errorf("%w: step %d is not valid UTF-8", ErrMalformedCall, i+1)
		}
	}
	if steps == nil {
		steps = []string{}
	}

	data, err := json.Marshal(callMessage{
		Program: programRef,
		Caller:  keys.Address(caller),
		Steps:   steps,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode call message: %w", err)
	}
	canonical, err := jcs.Transform(data)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize call message: %w", err)
	}
	return canonical, nil
}

// Sign builds a call signed by kp.
func Sign(kp *keys.Keypair, programRef string, steps []string) (Call, error) {
	msg, err := CallMessage(programRef, kp.Public, steps)
	if err != nil {
		return Call{}, err
	}
	return Call{
		Program:   programRef,
		Caller:    kp.Public,
		Steps:     steps,
		Signature: ed25519.Sign(kp.Private, msg),
	}, nil
}

type Runtime struct {
	Programs *program.Registry
	Policy   governance.PolicyEngine
	Ledger   Ledger
	Logger   *observability.Logger
}

func New(programs *program.Registry, policy governance.PolicyEngine, ledger Ledger, logger *observability.Logger) *Runtime {
	return &Runtime{
		Programs: programs,
		Policy:   policy,
		Ledger:   ledger,
		Logger:   logger,
	}
}

// Invoke runs a signed call. Signature, lookup and policy failures are
// returned before the program runs and are not recorded; program failures
// are recorded and returned unchanged.
func (r *Runtime) Invoke(ctx context.Context, call Call) (Receipt, error) {
	if err := verify(call); err != nil {
		return Receipt{}, err
	}

	p := r.Programs.Get(call.Program)
	if p == nil {
		return Receipt{}, fmt.Errorf("%w: %s", ErrUnknownProgram, call.Program)
	}

	rec := Receipt{
		ID:        uuid.NewString(),
		Program:   p.Name(),
		ProgramID: p.ID(),
		Caller:    keys.Address(call.Caller),
		StepCount: len(call.Steps),
		CreatedAt: time.Now(),
	}

	if r.Policy != nil {
		res, err := r.Policy.Evaluate(ctx, governance.Request{
			Program: p.Name(),
			Caller:  rec.Caller,
			Steps:   call.Steps,
		})
		if err != nil {
			return Receipt{}, fmt.Errorf("policy evaluation failed: %w", err)
		}
		if r.Logger != nil {
			r.Logger.LogPolicyCheck(rec.ID, p.Name(), string(res.Effect), res.Reason)
		}
		if res.Effect == governance.EffectDeny {
			return Receipt{}, fmt.Errorf("%w: %s", ErrPolicyDenied, res.Reason)
		}
	}

	observability.SetStatus(observability.RoleExecutor, p.Name())
	defer observability.SetStatus(observability.RoleIdle, "")

	execErr := p.Execute(ctx, call.Caller, call.Steps)
	if execErr != nil {
		rec.Status = store.StatusFailed
		rec.ErrorMessage = execErr.Error()
		var perr *program.Error
		if errors.As(execErr, &perr) {
			rec.ErrorCode = int(perr.Code)
			rec.ErrorMessage = perr.Msg
		}
	} else {
		rec.Status = store.StatusSuccess
	}

	r.record(rec)
	return rec, execErr
}

func (r *Runtime) record(rec Receipt) {
	ok := rec.Status == store.StatusSuccess
	observability.CountInvocation(ok)

	if r.Logger != nil {
		if ok {
			r.Logger.LogInvoke(rec.ID, rec.Program, rec.Caller, rec.StepCount)
		} else {
			r.Logger.LogReject(rec.ID, rec.Program, rec.Caller, rec.StepCount, rec.ErrorMessage)
		}
	}

	if r.Ledger == nil {
		return
	}
	err := r.Ledger.RecordInvocation(store.Invocation{
		ID:           rec.ID,
		Program:      rec.Program,
		ProgramID:    rec.ProgramID,
		Caller:       rec.Caller,
		StepCount:    rec.StepCount,
		Status:       rec.Status,
		ErrorCode:    rec.ErrorCode,
		ErrorMessage: rec.ErrorMessage,
		CreatedAt:    rec.CreatedAt,
	})
	if err != nil {
		log.Printf("Warning: failed to record invocation %s: %v", rec.ID, err)
	}
}

func verify(call Call) error {
	if len(call.Signature) == 0 {
		return ErrMissingSignature
	}
	if len(call.Caller) != ed25519.PublicKeySize || len(call.Signature) != ed25519.SignatureSize {
		return ErrInvalidSignature
	}
	msg, err := CallMessage(call.Program, call.Caller, call.Steps)
	if err != nil {
		return err
	}
	if !ed25519.Verify(call.Caller, msg, call.Signature) {
		return ErrInvalidSignature
	}
	return nil
}
