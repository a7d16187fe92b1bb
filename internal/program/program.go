package program

import (
	"context"
	"crypto/ed25519"
)

// MaxSteps is the largest step list a protocol program accepts.
const MaxSteps = 50

// Program defines a deployable protocol entry point.
type Program interface {
	Name() string
	ID() string
	// Execute validates the step list for a caller whose signature the
	// host has already verified.
	Execute(ctx context.Context, caller ed25519.PublicKey, steps []string) error
}

type guardedProgram struct {
	name string
	id   string
}

// NewGuarded returns a program that only enforces the step bound.
func NewGuarded(name, id string) Program {
	return &guardedProgram{name: name, id: id}
}

func (p *guardedProgram) Name() string {
	return p.name
}

func (p *guardedProgram) ID() string {
	return p.id
}

func (p *guardedProgram) Execute(ctx context.Context, caller ed25519.PublicKey, steps []string) error {
	if len(steps) > MaxSteps {
		return ErrTooManySteps
	}
	return nil
}
