package action

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShell_Disallowed(t *testing.T) {
	for _, cmd := range []string{"rm -rf /", "uname", "ls -la", "", "whoami; id"} {
		_, err := Shell{Command: cmd}.Run(context.Background())
		assert.ErrorIs(t, err, ErrDisallowedCommand, cmd)
	}
}

func TestShell_Pwd(t *testing.T) {
	if _, err := exec.LookPath("pwd"); err != nil {
		t.Skip("pwd not available")
	}
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	res, err := Shell{Command: "pwd", Dir: dir}.Run(context.Background())
	require.NoError(t, err)

	obs, ok := res.(Observation)
	require.True(t, ok)
	assert.Equal(t, "pwd", obs.Command)
	assert.Equal(t, 0, obs.ExitCode)
	assert.Equal(t, dir, strings.TrimSpace(obs.Stdout))
	_, err = uuid.Parse(obs.CommandID)
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, obs.DurationMs, int64(0))
}

func TestShell_NormalizesWhitespace(t *testing.T) {
	if _, err := exec.LookPath("uname"); err != nil {
		t.Skip("uname not available")
	}
	res, err := Shell{Command: "  uname   -a "}.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "uname -a", res.(Observation).Command)
}

func TestAllowedCommands(t *testing.T) {
	assert.Equal(t, []string{"date", "ls", "pwd", "uname -a", "whoami"}, AllowedCommands())
	assert.Equal(t, "shell:ls", Shell{Command: "ls"}.ID())
}
