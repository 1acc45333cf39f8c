package action

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrDisallowedCommand indicates a shell command outside the whitelist.
var ErrDisallowedCommand = errors.New("command not allowed")

// shellTimeout bounds a single whitelisted command.
const shellTimeout = 10 * time.Second

// allowedCommands maps each whitelisted command line to its argv.
var allowedCommands = map[string][]string{
	"whoami":   {"whoami"},
	"uname -a": {"uname", "-a"},
	"ls":       {"ls"},
	"pwd":      {"pwd"},
	"date":     {"date"},
}

// AllowedCommands returns the whitelisted command lines, sorted.
func AllowedCommands() []string {
	out := make([]string, 0, len(allowedCommands))
	for c := range allowedCommands {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Observation is what a Shell action reports.
type Observation struct {
	CommandID  string `json:"command_id"`
	Command    string `json:"command"`
	ExitCode   int    `json:"exit_code"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	DurationMs int64  `json:"duration_ms"`
}

// Shell runs one whitelisted command. A non-zero exit is an observation,
// not a failure; only a command that cannot be run at all fails.
type Shell struct {
	Command string
	Dir     string
}

// ID returns "shell:<command>".
func (s Shell) ID() string {
	return "shell:" + s.Command
}

// Run executes the command and returns an Observation.
func (s Shell) Run(ctx context.Context) (any, error) {
	cmdline := strings.Join(strings.Fields(s.Command), " ")
	argv, ok := allowedCommands[cmdline]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrDisallowedCommand, s.Command)
	}

	ctx, cancel := context.WithTimeout(ctx, shellTimeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = s.Dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	obs := Observation{CommandID: uuid.NewString(), Command: cmdline}
	start := time.Now()
	err := cmd.Run()
	obs.DurationMs = time.Since(start).Milliseconds()
	obs.Stdout = stdout.String()
	obs.Stderr = stderr.String()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		obs.ExitCode = exitErr.ExitCode()
	default:
		return nil, fmt.Errorf("run %q: %w", cmdline, err)
	}
	return obs, nil
}
