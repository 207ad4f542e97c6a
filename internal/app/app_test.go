package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/rowjay/mssql-restore/internal/config"
	"github.com/rowjay/mssql-restore/internal/mssql"
	"github.com/rowjay/mssql-restore/internal/restore"
	"github.com/rowjay/mssql-restore/internal/source"
)

const manifestOutput = `orders|C:\Data\orders.mdf|D|PRIMARY
orders_log|C:\Data\orders_log.ldf|L|NULL
C:\SQL\DATA
`

// scriptedRunner answers introspection and restore requests differently so
// the whole pipeline can run against canned engine output.
type scriptedRunner struct {
	restoreExit   int
	restoreOutput string
	queries       []string
}

func (s *scriptedRunner) Run(ctx context.Context, query string) (mssql.QueryResult, error) {
	s.queries = append(s.queries, query)
	if strings.Contains(query, "FILELISTONLY") {
		return mssql.QueryResult{Output: manifestOutput}, nil
	}
	return mssql.QueryResult{Output: s.restoreOutput, ExitCode: s.restoreExit}, nil
}

func testConfig(t *testing.T, target string) (*config.Config, string) {
	t.Helper()
	dir := t.TempDir()
	backup := filepath.Join(dir, "orders.bak")
	if err := os.WriteFile(backup, []byte("payload"), 0o600); err != nil {
		t.Fatalf("write backup: %v", err)
	}
	cfg := &config.Config{}
	cfg.Restore.Database = target
	cfg.Source.TempDir = dir
	return cfg, backup
}

func newTestApp(cfg *config.Config, runner mssql.QueryRunner) *App {
	return New(cfg, runner, &source.Local{TempDir: cfg.Source.TempDir}, zerolog.Nop(), nil)
}

func TestRestorePipelineSuccess(t *testing.T) {
	cfg, backup := testConfig(t, "SalesDev")
	runner := &scriptedRunner{restoreOutput: "RESTORE DATABASE successfully processed"}
	a := newTestApp(cfg, runner)

	result, err := a.Restore(context.Background(), backup)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != "success" || result.FilesRestored != 2 || result.TargetDatabase != "SalesDev" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(runner.queries) != 2 {
		t.Fatalf("expected introspection + restore, got %d queries", len(runner.queries))
	}
	if !strings.Contains(runner.queries[1], `MOVE N'orders' TO N'C:\SQL\DATA\SalesDev.mdf'`) {
		t.Fatalf("relocation missing from restore statement: %s", runner.queries[1])
	}
	if strings.Contains(runner.queries[1], "REPLACE") {
		t.Fatalf("default policy must not emit REPLACE: %s", runner.queries[1])
	}
}

func TestRestorePipelineReplacePolicy(t *testing.T) {
	cfg, backup := testConfig(t, "SalesDev")
	cfg.Restore.Replace = true
	runner := &scriptedRunner{}
	a := newTestApp(cfg, runner)

	if _, err := a.Restore(context.Background(), backup); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(runner.queries[1], ", REPLACE") {
		t.Fatalf("replace policy must emit REPLACE: %s", runner.queries[1])
	}
}

func TestRestoreFailureSkipsPostStep(t *testing.T) {
	cfg, backup := testConfig(t, "SalesDev")
	dir := filepath.Dir(backup)
	script := filepath.Join(dir, "post.sql")
	if err := os.WriteFile(script, []byte("EXEC sp_change_users_login 'Auto_Fix', 'app'"), 0o600); err != nil {
		t.Fatalf("write script: %v", err)
	}
	cfg.Restore.PostScript = script

	runner := &scriptedRunner{restoreExit: 1, restoreOutput: "Msg 1802, Level 16, State 4"}
	a := newTestApp(cfg, runner)

	result, err := a.Restore(context.Background(), backup)
	if !errors.Is(err, restore.ErrRestoreFailed) {
		t.Fatalf("expected ErrRestoreFailed, got %v", err)
	}
	if result.FilesRestored != 0 {
		t.Fatalf("failed restore must report zero files, got %d", result.FilesRestored)
	}
	// Introspection and failed restore only; the post step never ran.
	if len(runner.queries) != 2 {
		t.Fatalf("post step must not run after a failed restore: %q", runner.queries)
	}
}

func TestRestorePostStepFailureIsWarningLevel(t *testing.T) {
	cfg, backup := testConfig(t, "SalesDev")
	dir := filepath.Dir(backup)
	script := filepath.Join(dir, "post.sql")
	if err := os.WriteFile(script, []byte("bogus statement"), 0o600); err != nil {
		t.Fatalf("write script: %v", err)
	}
	cfg.Restore.PostScript = script

	runner := &postFailRunner{}
	a := newTestApp(cfg, runner)

	result, err := a.Restore(context.Background(), backup)
	if !errors.Is(err, restore.ErrPostStepFailed) {
		t.Fatalf("expected ErrPostStepFailed, got %v", err)
	}
	if result == nil || result.Status != "success" || result.FilesRestored != 2 {
		t.Fatalf("restore itself succeeded, result must say so: %+v", result)
	}
	if restore.ExitCodeFor(err) != restore.ExitPostStepFailed {
		t.Fatalf("wrong exit code for post-step failure")
	}
}

// postFailRunner succeeds on introspection and restore, fails the post step.
type postFailRunner struct {
	calls int
}

func (p *postFailRunner) Run(ctx context.Context, query string) (mssql.QueryResult, error) {
	p.calls++
	if strings.Contains(query, "FILELISTONLY") {
		return mssql.QueryResult{Output: manifestOutput}, nil
	}
	if strings.HasPrefix(query, "RESTORE DATABASE") {
		return mssql.QueryResult{}, nil
	}
	return mssql.QueryResult{Output: "Msg 102, Level 15, State 1", ExitCode: 1}, nil
}

func TestRestoreFetchFailure(t *testing.T) {
	cfg, _ := testConfig(t, "SalesDev")
	runner := &scriptedRunner{}
	a := newTestApp(cfg, runner)

	_, err := a.Restore(context.Background(), filepath.Join(cfg.Source.TempDir, "missing.bak"))
	if !errors.Is(err, restore.ErrFetchFailed) {
		t.Fatalf("expected ErrFetchFailed, got %v", err)
	}
	if len(runner.queries) != 0 {
		t.Fatalf("no restore may be attempted after a fetch failure")
	}
}

func TestRestoreDryRunExecutesNothing(t *testing.T) {
	cfg, backup := testConfig(t, "SalesDev")
	cfg.Restore.DryRun = true
	runner := &scriptedRunner{}
	a := newTestApp(cfg, runner)

	result, err := a.Restore(context.Background(), backup)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != "success" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(runner.queries) != 1 {
		t.Fatalf("dry run must stop after introspection, got %q", runner.queries)
	}
}

func TestRestoreOutsideWindow(t *testing.T) {
	cfg, backup := testConfig(t, "SalesDev")
	cfg.Schedule.WindowStart = "00:00"
	cfg.Schedule.WindowEnd = "00:01"
	cfg.Schedule.Timezone = "UTC"
	runner := &scriptedRunner{}
	a := newTestApp(cfg, runner)

	if _, err := a.Restore(context.Background(), backup); err == nil {
		// The test clock could land exactly inside the one-minute window.
		t.Skip("ran inside the configured window")
	}
	if len(runner.queries) != 0 {
		t.Fatalf("no engine calls outside the restore window")
	}
}

func TestInspectRendersPlanWithoutExecuting(t *testing.T) {
	cfg, backup := testConfig(t, "SalesDev")
	runner := &scriptedRunner{}
	a := newTestApp(cfg, runner)

	manifest, plan, stmt, err := a.Inspect(context.Background(), backup)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(manifest.Entries) != 2 || len(plan.Moves) != 2 {
		t.Fatalf("unexpected inspect output: %d entries, %d moves", len(manifest.Entries), len(plan.Moves))
	}
	if !strings.HasPrefix(stmt, "RESTORE DATABASE [SalesDev]") {
		t.Fatalf("unexpected statement: %s", stmt)
	}
	if len(runner.queries) != 1 {
		t.Fatalf("inspect must only introspect, got %q", runner.queries)
	}
}
