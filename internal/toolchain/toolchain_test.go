package toolchain_test

import (
	"context"
	"os/exec"
	"testing"

	"github.com/nexusos/nexuspkg/internal/models"
	"github.com/nexusos/nexuspkg/internal/toolchain"
	"github.com/nexusos/nexuspkg/internal/toolchain/toolchaintest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bootstrap = []string{"pacman", "-S", "--noconfirm"}

func TestEnsurePresentTool(t *testing.T) {
	fake := toolchaintest.NewFakeRunner("pip3")
	tc := toolchain.New(fake, bootstrap)

	name, err := tc.Ensure(context.Background(), "python-pip", "pip", "pip3")
	require.NoError(t, err)
	assert.Equal(t, "pip3", name)
	assert.Empty(t, fake.Commands())
}

func TestEnsureBootstrapsOnce(t *testing.T) {
	fake := toolchaintest.NewFakeRunner()
	fake.Handle("pacman", func(cmd toolchain.Command) (*toolchain.Result, error) {
		fake.Provide("dpkg")
		return &toolchain.Result{}, nil
	})
	tc := toolchain.New(fake, bootstrap)

	name, err := tc.Ensure(context.Background(), "dpkg", "dpkg")
	require.NoError(t, err)
	assert.Equal(t, "dpkg", name)

	ran := fake.Ran("pacman")
	require.Len(t, ran, 1)
	assert.Equal(t, []string{"-S", "--noconfirm", "dpkg"}, ran[0].Args)
}

func TestEnsureFailedBootstrapNotRetried(t *testing.T) {
	fake := toolchaintest.NewFakeRunner()
	fake.Exit("pacman", 1)
	tc := toolchain.New(fake, bootstrap)

	for i := 0; i < 3; i++ {
		_, err := tc.Ensure(context.Background(), "alien", "alien")
		require.Error(t, err)
		assert.True(t, models.IsKind(err, models.ErrTool))
	}
	assert.Len(t, fake.Ran("pacman"), 1)
}

func TestEnsureWithoutBootstrap(t *testing.T) {
	fake := toolchaintest.NewFakeRunner()
	tc := toolchain.New(fake, nil)

	_, err := tc.Ensure(context.Background(), "dpkg", "dpkg")
	assert.True(t, models.IsKind(err, models.ErrTool))
	assert.Empty(t, fake.Commands())
}

func TestExecNonZeroExit(t *testing.T) {
	fake := toolchaintest.NewFakeRunner("dpkg")
	fake.Handle("dpkg", func(cmd toolchain.Command) (*toolchain.Result, error) {
		return &toolchain.Result{ExitCode: 2, Output: "dpkg: error: dependency problems"}, nil
	})
	tc := toolchain.New(fake, bootstrap)

	res, err := tc.Exec(context.Background(), "foo", toolchain.Command{Name: "dpkg", Args: []string{"-i", "foo.deb"}})
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.ErrTool))
	assert.Contains(t, err.Error(), "dependency problems")
	assert.Equal(t, 2, res.ExitCode)
}

func TestExecRunner(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	var r toolchain.ExecRunner

	// Arguments reach the process verbatim, metacharacters included
	res, err := r.Run(context.Background(), toolchain.Command{
		Name: "sh",
		Args: []string{"-c", `printf '%s' "$0"; exit 3`, "a;b $(x)"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "a;b $(x)", res.Output)

	_, err = r.Run(context.Background(), toolchain.Command{Name: "/nonexistent/tool"})
	assert.Error(t, err)
}

func TestExecRunnerKeepsOutputTail(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	tc := toolchain.New(toolchain.ExecRunner{}, nil)

	// Far more than the captured limit precedes the actual error
	script := `i=0; while [ $i -lt 20000 ]; do echo "unpacking file $i"; i=$((i+1)); done; echo "dpkg: error: disk full" >&2; exit 1`
	res, err := tc.Exec(context.Background(), "foo", toolchain.Command{Name: "sh", Args: []string{"-c", script}})
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.ErrTool))
	assert.Contains(t, err.Error(), "disk full")
	assert.Contains(t, err.Error(), "unpacking file 19999")
	assert.LessOrEqual(t, len(res.Output), 64*1024)
}

func TestExecRunnerCanceled(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := toolchain.ExecRunner{}.Run(ctx, toolchain.Command{Name: "sleep", Args: []string{"5"}})
	assert.ErrorIs(t, err, context.Canceled)
}
