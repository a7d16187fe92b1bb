package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rahul/heo/internal/keys"
	"github.com/rahul/heo/internal/program"
	"github.com/rahul/heo/pkg/config"
)

func writeConfig(t *testing.T, dir, extra string) string {
	t.Helper()
	path := filepath.Join(dir, "config.json")
	data := fmt.Sprintf(`{
  "app": {"keypair_path": %q, "log_dir": %q},
  "memory": {"path": %q}%s
}`, filepath.Join(dir, "keypair.json"), filepath.Join(dir, "logs"), filepath.Join(dir, "heo.db"), extra)
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestKeygen(t *testing.T) {
	out := filepath.Join(t.TempDir(), "id.json")
	if err := runKeygen([]string{"-out", out}); err != nil {
		t.Fatalf("keygen failed: %v", err)
	}
	if _, err := keys.Load(out); err != nil {
		t.Fatalf("written keypair does not load: %v", err)
	}
	if err := runKeygen([]string{"-out", out}); err == nil {
		t.Error("expected keygen to refuse overwriting")
	}
	if err := runKeygen([]string{"-out", out, "-force"}); err != nil {
		t.Errorf("forced keygen failed: %v", err)
	}
}

func TestExecuteAndHistory(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "")
	if err := runKeygen([]string{"-out", filepath.Join(dir, "keypair.json")}); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	args := []string{"-config", cfgPath, "-program", "crispr_protocol", "design guide", "transfect"}
	if err := runExecute(args, strings.NewReader(""), &out); err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if !strings.Contains(out.String(), "2 steps accepted") {
		t.Errorf("unexpected output %q", out.String())
	}

	stdin := strings.NewReader(strings.Repeat("wash\n\n", 51))
	err := runExecute([]string{"-config", cfgPath, "-program", "elisa_protocol"}, stdin, &out)
	if err == nil || !strings.Contains(err.Error(), "Error Number: 6000") || !strings.Contains(err.Error(), "TooManySteps") {
		t.Fatalf("expected TooManySteps error, got %v", err)
	}

	out.Reset()
	if err := runHistory([]string{"-config", cfgPath}, &out); err != nil {
		t.Fatalf("history failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 history lines, got %q", out.String())
	}
	if !strings.Contains(lines[0], "elisa_protocol") || !strings.Contains(lines[0], "[6000]") {
		t.Errorf("expected newest entry first, got %q", lines[0])
	}
}

func TestExecute_Errors(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "")

	if err := runExecute([]string{"-config", cfgPath}, strings.NewReader(""), &bytes.Buffer{}); err == nil {
		t.Error("expected error without -program")
	}
	err := runExecute([]string{"-config", cfgPath, "-program", "crispr_protocol", "a"}, strings.NewReader(""), &bytes.Buffer{})
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected missing keypair error, got %v", err)
	}
}

func TestNewApp_ProgramIDCollision(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, `,
  "programs": {"crispr_protocol": "SharedPgm111", "elisa_protocol": "SharedPgm111"}`)
	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := newApp(cfg); !errors.Is(err, program.ErrDuplicateProgram) {
		t.Errorf("expected ErrDuplicateProgram, got %v", err)
	}
}

func TestNewPolicy(t *testing.T) {
	kp, err := keys.Generate()
	if err != nil {
		t.Fatal(err)
	}
	programs := program.NewRegistry()
	programs.Register(program.NewCrisprProtocol("CrisprPgm1111"))
	programs.Register(program.NewElisaProtocol(""))

	gov, err := newPolicy(config.PolicyConfig{
		DeniedPrograms: []string{"elisa_protocol", "CrisprPgm1111"},
		DeniedCallers:  []string{kp.Address()},
		DeniedSteps:    []string{`(?i)biohazard`},
	}, programs)
	if err != nil {
		t.Fatalf("newPolicy failed: %v", err)
	}
	if !gov.DeniedPrograms[program.ElisaName] || !gov.DeniedPrograms[program.CrisprName] {
		t.Errorf("denied programs should resolve to names: %v", gov.DeniedPrograms)
	}
	if len(gov.DeniedCallers) != 1 || len(gov.DeniedRegex) != 1 {
		t.Errorf("policy not populated: %+v", gov)
	}

	if _, err := newPolicy(config.PolicyConfig{DeniedPrograms: []string{"pcr_protocol"}}, programs); err == nil {
		t.Error("expected error for unknown denied program")
	}
	if _, err := newPolicy(config.PolicyConfig{DeniedCallers: []string{"not-base58-0OIl"}}, programs); err == nil {
		t.Error("expected error for bad caller address")
	}
	if _, err := newPolicy(config.PolicyConfig{DeniedSteps: []string{"("}}, programs); err == nil {
		t.Error("expected error for bad step pattern")
	}
}

func TestReadSteps(t *testing.T) {
	steps, err := readSteps(strings.NewReader("  one \n\n two\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(steps) != 2 || steps[0] != "one" || steps[1] != "two" {
		t.Errorf("unexpected steps %q", steps)
	}
}
