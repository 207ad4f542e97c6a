package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rowjay/mssql-restore/internal/config"
	"github.com/rowjay/mssql-restore/internal/lock"
	"github.com/rowjay/mssql-restore/internal/mssql"
	"github.com/rowjay/mssql-restore/internal/notify"
	"github.com/rowjay/mssql-restore/internal/restore"
	"github.com/rowjay/mssql-restore/internal/source"
	"github.com/rowjay/mssql-restore/internal/util"
)

// App wires the restore pipeline: fetch, resolve manifest, build plan,
// execute, optional post step, cleanup. Strictly sequential; nothing here
// runs concurrently with another restore.
type App struct {
	Cfg      *config.Config
	Runner   mssql.QueryRunner
	Source   source.Source
	Log      zerolog.Logger
	Notifier notify.Notifier
}

func New(cfg *config.Config, runner mssql.QueryRunner, src source.Source, log zerolog.Logger, notifier notify.Notifier) *App {
	return &App{Cfg: cfg, Runner: runner, Source: src, Log: log, Notifier: notifier}
}

// Restore runs the full pipeline against one backup reference. The returned
// result is populated for both outcomes; the error carries the failure kind
// for exit-code mapping.
func (a *App) Restore(ctx context.Context, backupRef string) (*restore.Result, error) {
	start := time.Now()
	target := a.Cfg.Restore.Database
	var opErr error
	var result *restore.Result
	defer func() {
		if a.Notifier == nil {
			return
		}
		event := notify.Event{
			Type:           "restore",
			Message:        fmt.Sprintf("restore %s as %s", backupRef, target),
			Status:         statusFromErr(opErr),
			TargetDatabase: target,
			Backup:         backupRef,
			StartedAt:      start,
			EndedAt:        time.Now(),
			Duration:       time.Since(start).String(),
		}
		if result != nil {
			event.FilesRestored = result.FilesRestored
		}
		if opErr != nil {
			event.Error = opErr.Error()
		}
		_ = a.Notifier.Notify(context.Background(), event)
	}()

	if a.Cfg.Global.LockFile != "" {
		guard, err := lock.Acquire(a.Cfg.Global.LockFile)
		if err != nil {
			opErr = err
			return nil, err
		}
		defer guard.Release()
	}

	ok, err := util.InWindow(time.Now(), a.Cfg.Schedule.WindowStart, a.Cfg.Schedule.WindowEnd, a.Cfg.Schedule.Timezone)
	if err != nil {
		opErr = err
		return nil, err
	}
	if !ok {
		opErr = fmt.Errorf("current time is outside the configured restore window")
		return nil, opErr
	}

	staged, err := a.Source.Fetch(ctx, backupRef)
	if err != nil {
		opErr = fmt.Errorf("%w: %v", restore.ErrFetchFailed, err)
		return nil, opErr
	}
	// Cleanup always runs, even after a failed restore, and its own failure
	// never changes the restore outcome.
	defer func() {
		if cerr := staged.Close(); cerr != nil {
			a.Log.Warn().Err(cerr).Str("path", staged.Path).Msg("temporary backup cleanup failed")
		}
	}()

	resolver := a.resolver()
	manifest, err := resolver.Resolve(ctx, staged.Path)
	if err != nil {
		opErr = err
		return nil, err
	}
	a.Log.Info().
		Int("files", len(manifest.Entries)).
		Str("data_dir", manifest.DataDir).
		Msg("backup manifest resolved")

	plan := restore.BuildPlan(manifest, target)
	for _, mv := range plan.Moves {
		a.Log.Debug().Str("logical", mv.LogicalName).Str("destination", mv.Destination).Msg("planned move")
	}

	policy := restore.FailIfExists
	if a.Cfg.Restore.Replace {
		policy = restore.Replace
	}

	if a.Cfg.Restore.DryRun {
		stmt := restore.Serialize(plan, staged.Path, policy)
		a.Log.Info().Str("statement", stmt).Msg("dry run, restore not executed")
		result = &restore.Result{Status: "success", TargetDatabase: target}
		return result, nil
	}

	executor := &restore.Executor{Runner: a.Runner, Log: a.Log}
	result, err = executor.Execute(ctx, plan, staged.Path, policy)
	if err != nil {
		opErr = err
		return result, err
	}
	a.Log.Info().
		Str("database", target).
		Int("files_restored", result.FilesRestored).
		Msg("restore completed")

	if a.Cfg.Restore.PostScript != "" {
		if err := executor.RunPostScript(ctx, a.Cfg.Restore.PostScript); err != nil {
			// The restore itself already succeeded; report both outcomes.
			a.Log.Warn().Err(err).Str("script", a.Cfg.Restore.PostScript).Msg("post-restore step failed")
			opErr = err
			result.ErrorDetail = err.Error()
			return result, err
		}
		a.Log.Info().Str("script", a.Cfg.Restore.PostScript).Msg("post-restore step completed")
	}

	return result, nil
}

// Inspect resolves the manifest and renders the plan plus the exact restore
// statement without executing anything.
func (a *App) Inspect(ctx context.Context, backupRef string) (*restore.Manifest, restore.Plan, string, error) {
	staged, err := a.Source.Fetch(ctx, backupRef)
	if err != nil {
		return nil, restore.Plan{}, "", fmt.Errorf("%w: %v", restore.ErrFetchFailed, err)
	}
	defer func() {
		if cerr := staged.Close(); cerr != nil {
			a.Log.Warn().Err(cerr).Str("path", staged.Path).Msg("temporary backup cleanup failed")
		}
	}()

	manifest, err := a.resolver().Resolve(ctx, staged.Path)
	if err != nil {
		return nil, restore.Plan{}, "", err
	}
	plan := restore.BuildPlan(manifest, a.Cfg.Restore.Database)
	policy := restore.FailIfExists
	if a.Cfg.Restore.Replace {
		policy = restore.Replace
	}
	return manifest, plan, restore.Serialize(plan, staged.Path, policy), nil
}

// Validate checks client tooling and engine connectivity.
func (a *App) Validate(ctx context.Context) error {
	if !a.Cfg.Global.AllowMissingTools {
		if err := util.RequireBinary(a.Cfg.Server.SqlcmdPath); err != nil {
			return err
		}
	}
	res, err := a.Runner.Run(ctx, "SELECT 1")
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("engine unreachable: %s", res.Output)
	}
	return nil
}

func (a *App) resolver() *restore.Resolver {
	return &restore.Resolver{
		Runner:          a.Runner,
		DataDirOverride: a.Cfg.Restore.DataDir,
		FallbackDataDir: config.DefaultDataDir,
	}
}

func statusFromErr(err error) string {
	if err == nil {
		return "success"
	}
	return "failed"
}
