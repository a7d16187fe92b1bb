package runtime

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/rahul/heo/internal/governance"
	"github.com/rahul/heo/internal/keys"
	"github.com/rahul/heo/internal/observability"
	"github.com/rahul/heo/internal/program"
	"github.com/rahul/heo/internal/store"
)

type memLedger struct {
	mu      sync.Mutex
	records []store.Invocation
	err     error
}

func (m *memLedger) RecordInvocation(inv store.Invocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, inv)
	return m.err
}

func newTestRuntime(t *testing.T) (*Runtime, *memLedger, *governance.DefaultPolicyEngine) {
	t.Helper()
	reg := program.NewRegistry()
	reg.Register(program.NewCrisprProtocol(""))
	reg.Register(program.NewElisaProtocol(""))
	ledger := &memLedger{}
	gov := governance.NewDefaultPolicyEngine()
	logger := observability.NewLogger(t.TempDir()).WithOutput(io.Discard)
	return New(reg, gov, ledger, logger), ledger, gov
}

func makeSteps(n int) []string {
	s := make([]string, n)
	for i := range s {
		s[i] = "a"
	}
	return s
}

func mustKeypair(t *testing.T) *keys.Keypair {
	t.Helper()
	kp, err := keys.Generate()
	if err != nil {
		t.Fatal(err)
	}
	return kp
}

func mustSign(t *testing.T, kp *keys.Keypair, programRef string, steps []string) Call {
	t.Helper()
	call, err := Sign(kp, programRef, steps)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	return call
}

func mustMessage(t *testing.T, programRef string, kp *keys.Keypair, steps []string) string {
	t.Helper()
	msg, err := CallMessage(programRef, kp.Public, steps)
	if err != nil {
		t.Fatalf("call message failed: %v", err)
	}
	return string(msg)
}

func TestRuntime_Invoke_Bounds(t *testing.T) {
	rt, ledger, _ := newTestRuntime(t)
	kp := mustKeypair(t)
	ctx := context.Background()

	for _, name := range []string{program.CrisprName, program.ElisaName} {
		for _, n := range []int{0, 50} {
			rec, err := rt.Invoke(ctx, mustSign(t, kp, name, makeSteps(n)))
			if err != nil {
				t.Fatalf("%s with %d steps: unexpected error %v", name, n, err)
			}
			if rec.Status != store.StatusSuccess || rec.StepCount != n {
				t.Errorf("unexpected receipt: %+v", rec)
			}
		}

		rec, err := rt.Invoke(ctx, mustSign(t, kp, name, makeSteps(51)))
		if !errors.Is(err, program.ErrTooManySteps) {
			t.Fatalf("%s with 51 steps: expected ErrTooManySteps, got %v", name, err)
		}
		if rec.Status != store.StatusFailed || rec.ErrorCode != 6000 || rec.ErrorMessage != "Too many steps in protocol." {
			t.Errorf("unexpected failure receipt: %+v", rec)
		}
	}

	if len(ledger.records) != 6 {
		t.Errorf("expected 6 ledger records, got %d", len(ledger.records))
	}
	if ledger.records[0].Caller != kp.Address() {
		t.Errorf("ledger caller mismatch: %s", ledger.records[0].Caller)
	}
}

func TestRuntime_Invoke_ByProgramID(t *testing.T) {
	rt, _, _ := newTestRuntime(t)
	kp := mustKeypair(t)

	rec, err := rt.Invoke(context.Background(), mustSign(t, kp, program.ElisaPlaceholderID, []string{"coat plate"}))
	if err != nil {
		t.Fatal(err)
	}
	if rec.Program != program.ElisaName {
		t.Errorf("expected %s, got %s", program.ElisaName, rec.Program)
	}
}

func TestRuntime_Invoke_Signatures(t *testing.T) {
	rt, ledger, _ := newTestRuntime(t)
	kp := mustKeypair(t)
	other := mustKeypair(t)
	ctx := context.Background()

	unsigned := Call{Program: program.CrisprName, Caller: kp.Public, Steps: makeSteps(51)}
	if _, err := rt.Invoke(ctx, unsigned); !errors.Is(err, ErrMissingSignature) {
		t.Errorf("expected ErrMissingSignature, got %v", err)
	}

	forged := mustSign(t, kp, program.CrisprName, []string{"a"})
	forged.Caller = other.Public
	if _, err := rt.Invoke(ctx, forged); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature for swapped caller, got %v", err)
	}

	tampered := mustSign(t, kp, program.CrisprName, []string{"a"})
	tampered.Steps = append(tampered.Steps, "b")
	if _, err := rt.Invoke(ctx, tampered); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature for tampered steps, got %v", err)
	}

	truncated := mustSign(t, kp, program.CrisprName, nil)
	truncated.Signature = truncated.Signature[:10]
	if _, err := rt.Invoke(ctx, truncated); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature for short signature, got %v", err)
	}

	// JSON would encode both bytes as U+FFFD, so the swap must not verify.
	swapped := mustSign(t, kp, program.CrisprName, []string{"a"})
	swapped.Steps = []string{"\xfe"}
	if _, err := rt.Invoke(ctx, swapped); !errors.Is(err, ErrMalformedCall) {
		t.Errorf("expected ErrMalformedCall for invalid UTF-8 step, got %v", err)
	}
	badProgram := mustSign(t, kp, program.CrisprName, nil)
	badProgram.Program = "crispr_protocol\xff"
	if _, err := rt.Invoke(ctx, badProgram); !errors.Is(err, ErrMalformedCall) {
		t.Errorf("expected ErrMalformedCall for invalid UTF-8 program, got %v", err)
	}

	if len(ledger.records) != 0 {
		t.Errorf("rejected envelopes must not reach the ledger, got %d records", len(ledger.records))
	}
}

func TestRuntime_Invoke_UnknownProgram(t *testing.T) {
	rt, _, _ := newTestRuntime(t)
	kp := mustKeypair(t)

	_, err := rt.Invoke(context.Background(), mustSign(t, kp, "pcr_protocol", nil))
	if !errors.Is(err, ErrUnknownProgram) {
		t.Errorf("expected ErrUnknownProgram, got %v", err)
	}
}

func TestRuntime_Invoke_PolicyDenied(t *testing.T) {
	rt, ledger, gov := newTestRuntime(t)
	kp := mustKeypair(t)

	gov.DenyCaller(kp.Address())
	_, err := rt.Invoke(context.Background(), mustSign(t, kp, program.CrisprName, nil))
	if !errors.Is(err, ErrPolicyDenied) {
		t.Errorf("expected ErrPolicyDenied, got %v", err)
	}
	if len(ledger.records) != 0 {
		t.Errorf("denied call should not be recorded")
	}
}

func TestRuntime_Invoke_LedgerFailureKeepsOutcome(t *testing.T) {
	rt, ledger, _ := newTestRuntime(t)
	ledger.err = errors.New("disk full")
	kp := mustKeypair(t)

	rec, err := rt.Invoke(context.Background(), mustSign(t, kp, program.CrisprName, []string{"a"}))
	if err != nil {
		t.Fatalf("ledger errors must not fail the call: %v", err)
	}
	if rec.Status != store.StatusSuccess {
		t.Errorf("unexpected status %s", rec.Status)
	}
}

func TestRuntime_Invoke_Concurrent(t *testing.T) {
	rt, ledger, _ := newTestRuntime(t)
	kp := mustKeypair(t)

	calls := make([]Call, 20)
	for i := range calls {
		calls[i] = mustSign(t, kp, program.CrisprName, makeSteps(i*5))
	}

	var wg sync.WaitGroup
	for _, call := range calls {
		wg.Add(1)
		go func(c Call) {
			defer wg.Done()
			_, _ = rt.Invoke(context.Background(), c)
		}(call)
	}
	wg.Wait()

	failed := 0
	for _, r := range ledger.records {
		if r.Status == store.StatusFailed {
			failed++
		}
	}
	// n*5 > 50 for n in 11..19
	if len(ledger.records) != 20 || failed != 9 {
		t.Errorf("expected 20 records with 9 failures, got %d/%d", len(ledger.records), failed)
	}
}

func TestCallMessage_NilAndEmptyStepsMatch(t *testing.T) {
	kp := mustKeypair(t)
	a := mustMessage(t, program.CrisprName, kp, nil)
	b := mustMessage(t, program.CrisprName, kp, []string{})
	if a != b {
		t.Errorf("nil and empty steps should sign identically: %s vs %s", a, b)
	}
}

func TestCallMessage_Canonical(t *testing.T) {
	kp := mustKeypair(t)
	msg := mustMessage(t, program.ElisaName, kp, []string{"coat <plate>"})
	want := `{"caller":"` + kp.Address() + `","program":"elisa_protocol","steps":["coat <plate>"]}`
	if msg != want {
		t.Errorf("expected canonical message %s, got %s", want, msg)
	}
}

func TestCallMessage_RejectsInvalidUTF8(t *testing.T) {
	kp := mustKeypair(t)
	for _, steps := range [][]string{{"\xff"}, {"ok", "\xfe"}} {
		if _, err := CallMessage(program.CrisprName, kp.Public, steps); !errors.Is(err, ErrMalformedCall) {
			t.Errorf("steps %q: expected ErrMalformedCall, got %v", steps, err)
		}
		if _, err := Sign(kp, program.CrisprName, steps); !errors.Is(err, ErrMalformedCall) {
			t.Errorf("steps %q: expected Sign to refuse, got %v", steps, err)
		}
	}
	if _, err := CallMessage("\xff", kp.Public, nil); !errors.Is(err, ErrMalformedCall) {
		t.Errorf("expected ErrMalformedCall for program reference, got %v", err)
	}
}

func TestDescribe(t *testing.T) {
	status, text := Describe(Receipt{Program: program.CrisprName, StepCount: 2, ID: "x"}, nil)
	if status != store.StatusSuccess || text != "crispr_protocol accepted 2 steps (call x)." {
		t.Errorf("unexpected success description %q %q", status, text)
	}

	status, text = Describe(Receipt{Program: program.ElisaName}, program.ErrTooManySteps)
	if status != store.StatusFailed || text != "elisa_protocol rejected the protocol: Too many steps in protocol. (error 6000)" {
		t.Errorf("unexpected failure description %q %q", status, text)
	}

	status, _ = Describe(Receipt{}, ErrMissingSignature)
	if status != store.StatusFailed {
		t.Errorf("expected failed status, got %s", status)
	}
}
