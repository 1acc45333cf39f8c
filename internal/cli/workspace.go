package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/Architect8989/EME/internal/action"
	"github.com/Architect8989/EME/internal/clock"
	"github.com/Architect8989/EME/internal/config"
	"github.com/Architect8989/EME/internal/lifeloop"
	"github.com/Architect8989/EME/internal/plan"
	"github.com/Architect8989/EME/internal/record"
	"github.com/Architect8989/EME/internal/snapshot"
	"github.com/Architect8989/EME/internal/store"
)

// background is the fill of the synthetic frame.
var background = [4]byte{0, 0, 0, 255}

// setupLogging installs the process-wide slog handler on stderr.
func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// loadConfig loads the config named by --config.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}

// workspace is everything an experiment needs, opened from config.
type workspace struct {
	cfg       *config.Config
	source    snapshot.Source
	snapshots *snapshot.Store
	records   *record.JSONL
	ledger    *store.Store // nil when ledger.path is empty
	events    *record.FileLog
	crash     *record.FileLog
	loop      *lifeloop.LifeLoop
}

// openWorkspace opens the sinks and stores named in cfg and builds a
// LifeLoop over them. Close must be called on success.
func openWorkspace(cfg *config.Config) (ws *workspace, err error) {
	cfg.EnsureDirs()

	ws = &workspace{cfg: cfg}
	defer func() {
		if err != nil {
			ws.Close()
			ws = nil
		}
	}()

	switch cfg.Source.Kind {
	case "fbdev":
		ws.source = snapshot.NewFBDev(cfg.Source.Device)
	default:
		ws.source = snapshot.NewSynthetic(cfg.Source.Width, cfg.Source.Height, background)
	}

	clk := clock.NewSystem()
	if ws.snapshots, err = snapshot.New(cfg.Snapshot.Dir, ws.source, clk); err != nil {
		return ws, err
	}

	slog.Debug("opening record log", "path", cfg.RecordsPath())
	if ws.records, err = record.OpenJSONL(cfg.RecordsPath()); err != nil {
		return ws, err
	}
	logger := record.Tee{ws.records}

	if cfg.Ledger.Path != "" {
		slog.Debug("opening ledger", "path", cfg.Ledger.Path)
		if ws.ledger, err = store.Open(cfg.Ledger.Path); err != nil {
			return ws, err
		}
		logger = append(logger, ws.ledger)
	}

	if ws.events, err = record.OpenFileLog(cfg.EventsPath()); err != nil {
		return ws, err
	}
	if ws.crash, err = record.OpenFileLog(cfg.CrashPath()); err != nil {
		return ws, err
	}

	ws.loop, err = lifeloop.New(lifeloop.Options{
		Snapshots:         ws.snapshots,
		Records:           logger,
		Clock:             clk,
		Events:            ws.events,
		Crash:             ws.crash,
		MaxExpectedChange: cfg.Causality.MaxExpectedChange,
		Logger:            slog.Default(),
	})
	return ws, err
}

// env returns the collaborators concrete actions run against. Markers
// paint on the synthetic frame; with a real display they only report.
func (ws *workspace) env() plan.Env {
	env := plan.Env{Pointer: action.XdotoolBackend{}}
	if p, ok := ws.source.(action.Painter); ok {
		env.Painter = p
	}
	if dir, err := os.Getwd(); err == nil {
		env.ShellDir = dir
	}
	return env
}

func (ws *workspace) Close() error {
	var errs []error
	if ws.records != nil {
		errs = append(errs, ws.records.Close())
	}
	if ws.ledger != nil {
		errs = append(errs, ws.ledger.Close())
	}
	if ws.events != nil {
		errs = append(errs, ws.events.Close())
	}
	if ws.crash != nil {
		errs = append(errs, ws.crash.Close())
	}
	if err := errors.Join(errs...); err != nil {
		slog.Error("error closing workspace", "error", err)
		return err
	}
	return nil
}

// experimentError maps a LifeLoop error to an ExitError.
func experimentError(err error) *ExitError {
	if errors.Is(err, lifeloop.ErrRecordLost) {
		return WrapExitError(ExitFailure, "experiment record lost", err)
	}
	if stage, ok := lifeloop.FailedStage(err); ok {
		return WrapExitError(ExitFailure, fmt.Sprintf("experiment aborted at %s", stage), err)
	}
	return WrapExitError(ExitFailure, "experiment failed", err)
}

func errorCode(err error) string {
	if errors.Is(err, lifeloop.ErrRecordLost) {
		return CodeLost
	}
	return CodeAborted
}
