// Package plan loads experiment plans: an ordered list of action steps,
// repeated a number of times, run by `eme batch --plan`.
//
// Plans are YAML or CUE. Both are checked against the same embedded CUE
// schema, which also supplies defaults (count 1, delay_ms 0). YAML is
// decoded strictly, so a misspelled field is an error rather than a
// silently ignored key.
package plan

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/Architect8989/EME/internal/action"
)

//go:embed schema.cue
var schemaCUE string

// Step kinds.
const (
	KindNoop    = "noop"
	KindMarker  = "marker"
	KindPointer = "pointer"
	KindShell   = "shell"
)

// Plan is a batch of experiments.
type Plan struct {
	// Name identifies the plan in logs.
	Name string `yaml:"name" json:"name"`

	// Description is free text.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Count repeats the whole step list. Defaults to 1.
	Count int `yaml:"count,omitempty" json:"count,omitempty"`

	// DelayMs is the minimum spacing between experiment starts.
	DelayMs int `yaml:"delay_ms,omitempty" json:"delay_ms,omitempty"`

	// Steps are run in order, one experiment each.
	Steps []Step `yaml:"steps" json:"steps"`
}

// Step describes one action.
type Step struct {
	Kind    string `yaml:"kind" json:"kind"`
	Label   string `yaml:"label,omitempty" json:"label,omitempty"`
	X       int    `yaml:"x,omitempty" json:"x,omitempty"`
	Y       int    `yaml:"y,omitempty" json:"y,omitempty"`
	Color   []int  `yaml:"color,omitempty" json:"color,omitempty"`
	Command string `yaml:"command,omitempty" json:"command,omitempty"`
}

// Delay returns DelayMs as a duration.
func (p *Plan) Delay() time.Duration {
	return time.Duration(p.DelayMs) * time.Millisecond
}

// Len returns the number of experiments the plan runs.
func (p *Plan) Len() int {
	return p.Count * len(p.Steps)
}

// PlanError is a plan that failed to parse or validate.
type PlanError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *PlanError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Load reads a plan from path. Files ending in .cue are CUE; anything else
// is YAML.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".cue") {
		return ParseCUE(data, path)
	}
	return ParseYAML(data)
}

// ParseYAML parses and validates a YAML plan.
func ParseYAML(data []byte) (*Plan, error) {
	var p Plan
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	ctx := cuecontext.New()
	v := ctx.Encode(p)
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return finish(ctx, v)
}

// ParseCUE parses and validates a CUE plan. The plan is either the file's
// top-level struct or its "plan" field.
func ParseCUE(data []byte, filename string) (*Plan, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if pv := v.LookupPath(cue.ParsePath("plan")); pv.Exists() {
		v = pv
	}
	return finish(ctx, v)
}

// finish unifies v with the schema, decodes it and applies the checks the
// schema cannot express.
func finish(ctx *cue.Context, v cue.Value) (*Plan, error) {
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("plan schema: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Plan")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var p Plan
	if err := unified.Decode(&p); err != nil {
		return nil, formatCUEError(err)
	}
	if err := validatePlan(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// validatePlan checks per-kind requirements.
func validatePlan(p *Plan) error {
	for i, s := range p.Steps {
		field := fmt.Sprintf("steps[%d]", i)
		switch s.Kind {
		case KindShell:
			if s.Command == "" {
				return &PlanError{Field: field, Message: "shell step requires a command"}
			}
			if !isAllowed(s.Command) {
				return &PlanError{Field: field, Message: fmt.Sprintf("command %q is not allowed (allowed: %s)",
					s.Command, strings.Join(action.AllowedCommands(), ", "))}
			}
		case KindNoop, KindMarker, KindPointer:
			if s.Command != "" {
				return &PlanError{Field: field, Message: fmt.Sprintf("command is only valid for shell steps, not %s", s.Kind)}
			}
		}
	}
	return nil
}

func isAllowed(cmd string) bool {
	norm := strings.Join(strings.Fields(cmd), " ")
	for _, c := range action.AllowedCommands() {
		if c == norm {
			return true
		}
	}
	return false
}

// Env supplies the collaborators concrete actions need.
type Env struct {
	// Painter receives marker pixels. Nil makes markers no-ops.
	Painter action.Painter
	// Pointer moves the pointer. Required for pointer steps.
	Pointer action.PointerBackend
	// ShellDir is the working directory of shell steps.
	ShellDir string
}

// Actions expands the plan into its experiments: the steps, in order,
// Count times.
func (p *Plan) Actions(env Env) ([]action.Action, error) {
	steps := make([]action.Action, 0, len(p.Steps))
	for i, s := range p.Steps {
		a, err := s.Action(env)
		if err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
		steps = append(steps, a)
	}

	out := make([]action.Action, 0, p.Len())
	for n := 0; n < p.Count; n++ {
		out = append(out, steps...)
	}
	return out, nil
}

// Action builds the action for one step.
func (s Step) Action(env Env) (action.Action, error) {
	switch s.Kind {
	case KindNoop:
		return action.Noop{}, nil
	case KindMarker:
		m := action.Marker{Label: s.Label, Painter: env.Painter, X: s.X, Y: s.Y, Color: [4]byte{0, 0, 255, 255}}
		if len(s.Color) == 4 {
			m.Color = [4]byte{byte(s.Color[0]), byte(s.Color[1]), byte(s.Color[2]), byte(s.Color[3])}
		}
		return m, nil
	case KindPointer:
		if env.Pointer == nil {
			return nil, fmt.Errorf("pointer step requires a pointer backend")
		}
		return action.PointerMotion{X: s.X, Y: s.Y, Backend: env.Pointer}, nil
	case KindShell:
		return action.Shell{Command: s.Command, Dir: env.ShellDir}, nil
	}
	return nil, fmt.Errorf("unknown step kind %q", s.Kind)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	field := "plan"
	if path := first.Path(); len(path) > 0 {
		field = strings.Join(path, ".")
	}
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &PlanError{Field: field, Message: first.Error(), Pos: positions[0]}
	}
	return &PlanError{Field: field, Message: first.Error()}
}
