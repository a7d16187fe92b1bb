package main

import (
	"fmt"

	"github.com/rahul/heo/internal/governance"
	"github.com/rahul/heo/internal/keys"
	"github.com/rahul/heo/internal/observability"
	"github.com/rahul/heo/internal/program"
	"github.com/rahul/heo/internal/runtime"
	"github.com/rahul/heo/internal/store"
	"github.com/rahul/heo/pkg/config"
)

// app holds the pieces every command that touches programs needs.
type app struct {
	cfg      *config.Config
	programs *program.Registry
	ledger   *store.Ledger
	logger   *observability.Logger
	runtime  *runtime.Runtime
}

func newApp(cfg *config.Config) (*app, error) {
	programs := program.NewRegistry()
	for _, p := range []program.Program{
		program.NewCrisprProtocol(cfg.ProgramID(program.CrisprName)),
		program.NewElisaProtocol(cfg.ProgramID(program.ElisaName)),
	} {
		if err := programs.Register(p); err != nil {
			return nil, fmt.Errorf("config programs: %w", err)
		}
	}

	gov, err := newPolicy(cfg.Policy, programs)
	if err != nil {
		return nil, err
	}

	ledger, err := store.NewLedger(cfg.Memory.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	logger := observability.NewLogger(cfg.App.LogDir)
	return &app{
		cfg:      cfg,
		programs: programs,
		ledger:   ledger,
		logger:   logger,
		runtime:  runtime.New(programs, gov, ledger, logger),
	}, nil
}

func (a *app) Close() error {
	return a.ledger.Close()
}

// newPolicy builds the host policy. Denied programs may be given by name or
// program ID; both resolve to the name the runtime evaluates.
func newPolicy(pc config.PolicyConfig, programs *program.Registry) (*governance.DefaultPolicyEngine, error) {
	gov := governance.NewDefaultPolicyEngine()
	for _, ref := range pc.DeniedPrograms {
		p := programs.Get(ref)
		if p == nil {
			return nil, fmt.Errorf("policy: unknown denied program %q", ref)
		}
		gov.DenyProgram(p.Name())
	}
	for _, addr := range pc.DeniedCallers {
		if _, err := keys.ParseAddress(addr); err != nil {
			return nil, fmt.Errorf("policy: %w", err)
		}
		gov.DenyCaller(addr)
	}
	for _, pattern := range pc.DeniedSteps {
		if err := gov.DenySteps(pattern); err != nil {
			return nil, fmt.Errorf("policy: bad step pattern %q: %w", pattern, err)
		}
	}
	return gov, nil
}
