// Package toolchaintest provides a scripted toolchain.Runner for tests.
package toolchaintest

import (
	"context"
	"fmt"
	"sync"

	"github.com/nexusos/nexuspkg/internal/toolchain"
)

// Handler scripts the outcome of one command.
type Handler func(cmd toolchain.Command) (*toolchain.Result, error)

// FakeRunner records commands and answers them from scripted handlers.
// Tools named in Available are reported by LookPath; a handler may add
// tools (to simulate a bootstrap) with Provide.
type FakeRunner struct {
	mu        sync.Mutex
	available map[string]bool
	handlers  map[string]Handler
	commands  []toolchain.Command
}

// NewFakeRunner creates a runner where the given tools exist.
func NewFakeRunner(tools ...string) *FakeRunner {
	f := &FakeRunner{
		available: make(map[string]bool),
		handlers:  make(map[string]Handler),
	}
	f.Provide(tools...)
	return f
}

// Provide marks tools as present on PATH.
func (f *FakeRunner) Provide(tools ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range tools {
		f.available[t] = true
	}
}

// Handle scripts the commands named name. Unscripted commands exit 0.
func (f *FakeRunner) Handle(name string, h Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[name] = h
}

// Exit scripts name to exit with code.
func (f *FakeRunner) Exit(name string, code int) {
	f.Handle(name, func(toolchain.Command) (*toolchain.Result, error) {
		return &toolchain.Result{ExitCode: code}, nil
	})
}

// Run implements toolchain.Runner.
func (f *FakeRunner) Run(ctx context.Context, cmd toolchain.Command) (*toolchain.Result, error) {
	f.mu.Lock()
	f.commands = append(f.commands, cmd)
	h := f.handlers[cmd.Name]
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if h == nil {
		return &toolchain.Result{}, nil
	}
	return h(cmd)
}

// LookPath implements toolchain.Runner.
func (f *FakeRunner) LookPath(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.available[name] {
		return "/usr/bin/" + name, nil
	}
	return "", fmt.Errorf("executable file not found in $PATH: %s", name)
}

// Commands returns every command run so far.
func (f *FakeRunner) Commands() []toolchain.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]toolchain.Command(nil), f.commands...)
}

// Ran returns the commands named name.
func (f *FakeRunner) Ran(name string) []toolchain.Command {
	var out []toolchain.Command
	for _, c := range f.Commands() {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}
