package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rahul/heo/internal/keys"
	"github.com/rahul/heo/internal/program"
	"github.com/rahul/heo/internal/runtime"
	"github.com/rahul/heo/pkg/config"
)

func runKeygen(args []string) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	out := fs.String("out", "keypair.json", "path of the keypair file to write")
	force := fs.Bool("force", false, "overwrite an existing keypair")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := os.Stat(*out); err == nil && !*force {
		return fmt.Errorf("%s already exists (use -force to overwrite)", *out)
	}
	kp, err := keys.Generate()
	if err != nil {
		return err
	}
	if err := kp.Save(*out); err != nil {
		return err
	}
	fmt.Println(kp.Address())
	return nil
}

func runExecute(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("execute", flag.ContinueOnError)
	cfgPath := fs.String("config", "config.json", "config file (.json or .yaml)")
	programRef := fs.String("program", "", "program name or program ID")
	keyPath := fs.String("key", "", "caller keypair (defaults to the configured keypair)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *programRef == "" {
		return errors.New("-program is required")
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	if *keyPath == "" {
		*keyPath = cfg.App.KeypairPath
	}
	kp, err := keys.Load(*keyPath)
	if err != nil {
		return err
	}

	steps := fs.Args()
	if len(steps) == 0 {
		steps, err = readSteps(stdin)
		if err != nil {
			return err
		}
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	a.logger.WithOutput(os.Stderr)

	call, err := runtime.Sign(kp, *programRef, steps)
	if err != nil {
		return err
	}
	rec, err := a.runtime.Invoke(context.Background(), call)
	var perr *program.Error
	if errors.As(err, &perr) {
		return fmt.Errorf("%s: Error Code: %s. Error Number: %d. Error Message: %s", rec.Program, perr.Name, perr.Code, perr.Msg)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s ok: %d steps accepted from %s (call %s)\n", rec.Program, rec.StepCount, rec.Caller, rec.ID)
	return nil
}

// readSteps reads one step per line, skipping blank lines.
func readSteps(r io.Reader) ([]string, error) {
	var steps []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if s := strings.TrimSpace(scanner.Text()); s != "" {
			steps = append(steps, s)
		}
	}
	return steps, scanner.Err()
}

func runHistory(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	cfgPath := fs.String("config", "config.json", "config file (.json or .yaml)")
	caller := fs.String("caller", "", "only show calls from this address")
	limit := fs.Int("limit", 20, "maximum entries to show")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	invs, err := a.ledger.ListInvocations(*caller, *limit)
	if err != nil {
		return err
	}
	for _, inv := range invs {
		fmt.Fprintf(stdout, "%s  %-16s %-8s %3d steps  %s", inv.CreatedAt.Format("2006-01-02 15:04:05"), inv.Program, inv.Status, inv.StepCount, inv.Caller)
		if inv.ErrorMessage != "" {
			fmt.Fprintf(stdout, "  [%d] %s", inv.ErrorCode, inv.ErrorMessage)
		}
		fmt.Fprintln(stdout)
	}
	return nil
}
