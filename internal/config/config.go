// Package config loads eme's configuration.
//
// Sources, later overriding earlier:
//  1. built-in defaults
//  2. a YAML file (--config, or ./eme.yaml when present)
//  3. environment variables: EME_ prefix, "__" separates levels, so
//     EME_SOURCE__KIND=fbdev sets source.kind
//
// The merged result is checked against an embedded CUE schema.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

//go:embed schema.cue
var schemaCUE string

// DefaultFile is read when no --config is given and it exists.
const DefaultFile = "eme.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "EME_"

type Config struct {
	Snapshot  SnapshotConfig  `koanf:"snapshot" json:"snapshot"`
	Log       LogConfig       `koanf:"log" json:"log"`
	Ledger    LedgerConfig    `koanf:"ledger" json:"ledger"`
	Causality CausalityConfig `koanf:"causality" json:"causality"`
	Source    SourceConfig    `koanf:"source" json:"source"`
	Metrics   MetricsConfig   `koanf:"metrics" json:"metrics"`
}

type SnapshotConfig struct {
	Dir string `koanf:"dir" json:"dir"`
}

// LogConfig names the append-only logs. File names are relative to Dir
// unless absolute.
type LogConfig struct {
	Dir     string `koanf:"dir" json:"dir"`
	Records string `koanf:"records" json:"records"`
	Events  string `koanf:"events" json:"events"`
	Crash   string `koanf:"crash" json:"crash"`
}

type LedgerConfig struct {
	Path string `koanf:"path" json:"path"`
}

type CausalityConfig struct {
	MaxExpectedChange float64 `koanf:"max_expected_change" json:"max_expected_change"`
}

type SourceConfig struct {
	Kind   string `koanf:"kind" json:"kind"`
	Width  int    `koanf:"width" json:"width"`
	Height int    `koanf:"height" json:"height"`
	Device string `koanf:"device" json:"device"`
}

type MetricsConfig struct {
	Addr string `koanf:"addr" json:"addr"`
}

var defaults = map[string]any{
	"snapshot.dir":                  "eme-data/snapshots",
	"log.dir":                       "eme-data/logs",
	"log.records":                   "experiments.jsonl",
	"log.events":                    "events.log",
	"log.crash":                     "crashes.log",
	"ledger.path":                   "eme-data/ledger.db",
	"causality.max_expected_change": 0.25,
	"source.kind":                   "synthetic",
	"source.width":                  640,
	"source.height":                 480,
	"source.device":                 "/dev/fb0",
	"metrics.addr":                  "",
}

// Load builds the configuration. An explicit path must exist; with an
// empty path DefaultFile is used only if present.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	for key, v := range defaults {
		if err := k.Set(key, v); err != nil {
			return nil, fmt.Errorf("set default %s: %w", key, err)
		}
	}

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cfg against the schema.
func (c *Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("config schema: %w", err)
	}

	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(ctx.Encode(c))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %s", cueMessage(err))
	}
	return nil
}

func cueMessage(err error) string {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err.Error()
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

func (c *Config) logPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Log.Dir, name)
}

// RecordsPath is the JSONL experiment record log.
func (c *Config) RecordsPath() string { return c.logPath(c.Log.Records) }

// EventsPath is the lifecycle event log.
func (c *Config) EventsPath() string { return c.logPath(c.Log.Events) }

// CrashPath is the crash diagnostic log.
func (c *Config) CrashPath() string { return c.logPath(c.Log.Crash) }

// EnsureDirs creates the snapshot, log and ledger directories. Failures
// are ignored; they surface when the directory is first written.
func (c *Config) EnsureDirs() {
	_ = os.MkdirAll(c.Snapshot.Dir, 0o755)
	_ = os.MkdirAll(c.Log.Dir, 0o755)
	if c.Ledger.Path != "" {
		_ = os.MkdirAll(filepath.Dir(c.Ledger.Path), 0o755)
	}
}
