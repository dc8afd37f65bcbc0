// Package toolchain runs external package tools as typed process
// invocations. Arguments are passed as an argv vector; nothing is ever
// interpreted by a shell.
package toolchain

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/nexusos/nexuspkg/internal/models"
	"github.com/sirupsen/logrus"
)

const stage = "toolchain"

// maxOutput bounds the captured output kept for error messages
const maxOutput = 64 * 1024

// Command is one external process invocation
type Command struct {
	Name string
	Args []string
	Dir  string
	Env  []string // appended to the current environment
}

// String renders the command for logs.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result is the outcome of a process that ran
type Result struct {
	ExitCode int
	Output   string // combined stdout and stderr, truncated
}

// Runner executes commands. Run returns an error only when the process
// could not be started or was interrupted; a non-zero exit is reported in
// the Result.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
	LookPath(name string) (string, error)
}

// ExecRunner runs commands with os/exec
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, c Command) (*Result, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	out := &tailBuffer{max: maxOutput}
	cmd.Stdout = out
	cmd.Stderr = out

	err := cmd.Run()
	res := &Result{Output: out.String()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return res, nil
	case ctx.Err() != nil:
		return res, ctx.Err()
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	default:
		return nil, err
	}
}

// LookPath implements Runner.
func (ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Toolchain wraps a Runner with tool discovery and one-time bootstrap of
// missing tools through the system package manager.
type Toolchain struct {
	runner    Runner
	bootstrap []string

	mu        sync.Mutex
	attempted map[string]bool
}

// New creates a toolchain. bootstrap is the argv prefix that installs a
// missing tool package; empty disables bootstrapping.
func New(runner Runner, bootstrap []string) *Toolchain {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Toolchain{
		runner:    runner,
		bootstrap: bootstrap,
		attempted: make(map[string]bool),
	}
}

// Runner returns the underlying runner.
func (t *Toolchain) Runner() Runner {
	return t.runner
}

// Has reports whether name is on PATH.
func (t *Toolchain) Has(name string) bool {
	_, err := t.runner.LookPath(name)
	return err == nil
}

// Find returns the first candidate present on PATH.
func (t *Toolchain) Find(candidates ...string) (string, bool) {
	for _, c := range candidates {
		if t.Has(c) {
			return c, true
		}
	}
	return "", false
}

// Ensure returns the first available candidate tool. If none is present
// it installs bootstrapPkg once per process and looks again. An empty
// bootstrapPkg disables the bootstrap for this tool.
func (t *Toolchain) Ensure(ctx context.Context, bootstrapPkg string, candidates ...string) (string, error) {
	if len(candidates) == 0 {
		return "", models.NewError(models.ErrInvalidInput, stage, "", "no tool candidates given")
	}
	if name, ok := t.Find(candidates...); ok {
		return name, nil
	}

	if bootstrapPkg != "" && len(t.bootstrap) > 0 && t.markAttempted(bootstrapPkg) {
		logrus.Infof("%s not found, bootstrapping %s", candidates[0], bootstrapPkg)
		args := append(append([]string{}, t.bootstrap[1:]...), bootstrapPkg)
		res, err := t.runner.Run(ctx, Command{Name: t.bootstrap[0], Args: args})
		switch {
		case err != nil:
			logrus.Warnf("Bootstrap of %s failed: %v", bootstrapPkg, err)
		case res.ExitCode != 0:
			logrus.Warnf("Bootstrap of %s exited with code %d", bootstrapPkg, res.ExitCode)
		}
		if name, ok := t.Find(candidates...); ok {
			return name, nil
		}
	}

	return "", models.NewError(models.ErrTool, stage, "", "required tool %s is not available", candidates[0])
}

func (t *Toolchain) markAttempted(pkg string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.attempted[pkg] {
		return false
	}
	t.attempted[pkg] = true
	return true
}

// Exec runs cmd and converts a failed start or non-zero exit into a
// ToolError tagged with pkg.
func (t *Toolchain) Exec(ctx context.Context, pkg string, cmd Command) (*Result, error) {
	logrus.Debugf("Running %s", cmd)
	res, err := t.runner.Run(ctx, cmd)
	if err != nil {
		return res, models.WrapError(models.ErrTool, stage, pkg, fmt.Errorf("%s: %w", cmd.Name, err))
	}
	if res.ExitCode != 0 {
		return res, &models.PkgError{
			Type:    models.ErrTool,
			Stage:   stage,
			Package: pkg,
			Err:     fmt.Errorf("%s exited with code %d%s", cmd.Name, res.ExitCode, outputTail(res.Output)),
		}
	}
	return res, nil
}

func outputTail(out string) string {
	out = strings.TrimSpace(out)
	if out == "" {
		return ""
	}
	lines := strings.Split(out, "\n")
	if len(lines) > 3 {
		lines = lines[len(lines)-3:]
	}
	return ": " + strings.Join(lines, " | ")
}

// tailBuffer keeps the last max bytes written, where tools report the
// failure.
type tailBuffer struct {
	buf []byte
	max int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		n := copy(b.buf, b.buf[over:])
		b.buf = b.buf[:n]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	return string(b.buf)
}
