package plan

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Architect8989/EME/internal/action"
)

func TestLoad_YAML(t *testing.T) {
	p, err := Load(filepath.Join("testdata", "smoke.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "smoke", p.Name)
	assert.Equal(t, 2, p.Count)
	assert.Equal(t, 50*time.Millisecond, p.Delay())
	require.Len(t, p.Steps, 3)
	assert.Equal(t, KindMarker, p.Steps[1].Kind)
	assert.Equal(t, []int{255, 0, 0, 255}, p.Steps[1].Color)
	assert.Equal(t, "whoami", p.Steps[2].Command)
	assert.Equal(t, 6, p.Len())
}

func TestLoad_CUE(t *testing.T) {
	p, err := Load(filepath.Join("testdata", "smoke.cue"))
	require.NoError(t, err)

	assert.Equal(t, "smoke", p.Name)
	assert.Equal(t, 1, p.Count, "count defaults to 1")
	assert.Equal(t, 0, p.DelayMs)
	require.Len(t, p.Steps, 3)
	assert.Equal(t, 640, p.Steps[2].X)
}

func TestParseYAML_Defaults(t *testing.T) {
	p, err := ParseYAML([]byte("name: one\nsteps:\n  - kind: noop\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, p.Count)
	assert.Equal(t, time.Duration(0), p.Delay())
}

func TestParseYAML_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown field", "name: x\nstep:\n  - kind: noop\n"},
		{"unknown step field", "name: x\nsteps:\n  - kind: noop\n    colour: [1,2,3,4]\n"},
		{"missing name", "steps:\n  - kind: noop\n"},
		{"no steps", "name: x\nsteps: []\n"},
		{"bad kind", "name: x\nsteps:\n  - kind: teleport\n"},
		{"negative count", "name: x\ncount: -1\nsteps:\n  - kind: noop\n"},
		{"color out of range", "name: x\nsteps:\n  - kind: marker\n    color: [0, 0, 256, 0]\n"},
		{"short color", "name: x\nsteps:\n  - kind: marker\n    color: [0, 0, 0]\n"},
		{"shell without command", "name: x\nsteps:\n  - kind: shell\n"},
		{"shell not allowed", "name: x\nsteps:\n  - kind: shell\n    command: rm -rf /\n"},
		{"command on noop", "name: x\nsteps:\n  - kind: noop\n    command: ls\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseYAML([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestParseCUE_RejectsUnknownField(t *testing.T) {
	src := "name: \"x\"\nsteps: [{kind: \"noop\"}]\nretries: 3\n"
	_, err := ParseCUE([]byte(src), "inline.cue")
	require.Error(t, err)

	var pe *PlanError
	assert.True(t, errors.As(err, &pe))
}

func TestParseCUE_SyntaxErrorHasPosition(t *testing.T) {
	_, err := ParseCUE([]byte("name: \"x\"\nsteps: [\n"), "broken.cue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.cue")
}

type fakePainter struct{ calls int }

func (f *fakePainter) Paint(x, y int, px [4]byte) error {
	f.calls++
	return nil
}

type fakePointer struct{}

func (fakePointer) ScreenSize(ctx context.Context) (int, int, error) { return 800, 600, nil }
func (fakePointer) MoveTo(ctx context.Context, x, y int) error       { return nil }

func TestActions_ExpandsCount(t *testing.T) {
	p, err := Load(filepath.Join("testdata", "smoke.yaml"))
	require.NoError(t, err)

	actions, err := p.Actions(Env{Painter: &fakePainter{}})
	require.NoError(t, err)
	require.Len(t, actions, 6)

	ids := make([]string, len(actions))
	for i, a := range actions {
		ids[i] = a.ID()
	}
	assert.Equal(t, []string{
		"noop", "marker:corner", "shell:whoami",
		"noop", "marker:corner", "shell:whoami",
	}, ids)

	m, ok := actions[1].(action.Marker)
	require.True(t, ok)
	assert.Equal(t, [4]byte{255, 0, 0, 255}, m.Color)
}

func TestActions_PointerNeedsBackend(t *testing.T) {
	p, err := Load(filepath.Join("testdata", "smoke.cue"))
	require.NoError(t, err)

	_, err = p.Actions(Env{})
	assert.ErrorContains(t, err, "pointer backend")

	actions, err := p.Actions(Env{Pointer: fakePointer{}})
	require.NoError(t, err)
	assert.Equal(t, "pointer_motion:640,480", actions[2].ID())
}

func TestStep_MarkerDefaultColor(t *testing.T) {
	a, err := Step{Kind: KindMarker, Label: "d"}.Action(Env{})
	require.NoError(t, err)
	assert.Equal(t, [4]byte{0, 0, 255, 255}, a.(action.Marker).Color)
}
