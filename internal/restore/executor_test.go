package restore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func testPlan() Plan {
	return Plan{
		TargetDatabase: "SalesDev",
		DataDir:        `C:\Data`,
		Moves: []Move{
			{LogicalName: "orders", Destination: `C:\Data\SalesDev.mdf`},
			{LogicalName: "orders_log", Destination: `C:\Data\SalesDev_log.ldf`},
		},
	}
}

func TestSerializeFailIfExistsOmitsReplace(t *testing.T) {
	stmt := Serialize(testPlan(), `C:\backups\orders.bak`, FailIfExists)
	if strings.Contains(stmt, "REPLACE") {
		t.Fatalf("FailIfExists must not emit REPLACE: %s", stmt)
	}
	if !strings.HasPrefix(stmt, "RESTORE DATABASE [SalesDev] FROM DISK = N'C:\\backups\\orders.bak' WITH FILE = 1") {
		t.Fatalf("unexpected statement prefix: %s", stmt)
	}
}

func TestSerializeReplaceEmitsReplace(t *testing.T) {
	stmt := Serialize(testPlan(), `C:\backups\orders.bak`, Replace)
	if !strings.Contains(stmt, ", REPLACE") {
		t.Fatalf("Replace policy must emit REPLACE: %s", stmt)
	}
}

func TestSerializeMoveOrder(t *testing.T) {
	stmt := Serialize(testPlan(), "orders.bak", FailIfExists)
	first := strings.Index(stmt, `MOVE N'orders' TO N'C:\Data\SalesDev.mdf'`)
	second := strings.Index(stmt, `MOVE N'orders_log' TO N'C:\Data\SalesDev_log.ldf'`)
	if first < 0 || second < 0 || second < first {
		t.Fatalf("moves missing or out of order: %s", stmt)
	}
}

func TestExecuteSuccess(t *testing.T) {
	runner := &fakeRunner{output: "RESTORE DATABASE successfully processed 402 pages"}
	exec := &Executor{Runner: runner, Log: zerolog.Nop()}

	result, err := exec.Execute(context.Background(), testPlan(), "orders.bak", Replace)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != "success" || result.FilesRestored != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestExecuteEngineFailure(t *testing.T) {
	runner := &fakeRunner{
		output:   "Msg 3234, Level 16, State 2, Server X\nLogical file 'bad' is not part of database",
		exitCode: 1,
	}
	exec := &Executor{Runner: runner, Log: zerolog.Nop()}

	result, err := exec.Execute(context.Background(), testPlan(), "orders.bak", FailIfExists)
	if !errors.Is(err, ErrRestoreFailed) {
		t.Fatalf("expected ErrRestoreFailed, got %v", err)
	}
	if result.FilesRestored != 0 {
		t.Fatalf("failed restore must report zero files, got %d", result.FilesRestored)
	}
	if !strings.Contains(result.ErrorDetail, "Msg 3234") {
		t.Fatalf("raw diagnostic text missing: %q", result.ErrorDetail)
	}
}

func TestExecuteDetectsDiagnosticsDespiteZeroExit(t *testing.T) {
	runner := &fakeRunner{output: "Msg 5133, Level 16, State 1, Server X\nDirectory lookup failed"}
	exec := &Executor{Runner: runner, Log: zerolog.Nop()}

	_, err := exec.Execute(context.Background(), testPlan(), "orders.bak", FailIfExists)
	if !errors.Is(err, ErrRestoreFailed) {
		t.Fatalf("expected ErrRestoreFailed, got %v", err)
	}
}

func TestRunPostScript(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "post.sql")
	if err := os.WriteFile(script, []byte("ALTER DATABASE [SalesDev] SET RECOVERY SIMPLE"), 0o600); err != nil {
		t.Fatalf("write script: %v", err)
	}

	runner := &fakeRunner{}
	exec := &Executor{Runner: runner, Log: zerolog.Nop()}
	if err := exec.RunPostScript(context.Background(), script); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runner.queries) != 1 || !strings.Contains(runner.queries[0], "RECOVERY SIMPLE") {
		t.Fatalf("script content not executed: %q", runner.queries)
	}
}

func TestRunPostScriptFailure(t *testing.T) {
	runner := &fakeRunner{exitCode: 1, output: "Msg 102, Level 15, State 1"}
	exec := &Executor{Runner: runner, Log: zerolog.Nop()}

	dir := t.TempDir()
	script := filepath.Join(dir, "post.sql")
	if err := os.WriteFile(script, []byte("bogus"), 0o600); err != nil {
		t.Fatalf("write script: %v", err)
	}
	err := exec.RunPostScript(context.Background(), script)
	if !errors.Is(err, ErrPostStepFailed) {
		t.Fatalf("expected ErrPostStepFailed, got %v", err)
	}

	err = exec.RunPostScript(context.Background(), filepath.Join(dir, "missing.sql"))
	if !errors.Is(err, ErrPostStepFailed) {
		t.Fatalf("expected ErrPostStepFailed for missing script, got %v", err)
	}
}

func TestExitCodeMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{nil, ExitSuccess},
		{ErrFetchFailed, ExitFetchFailed},
		{ErrManifestUnavailable, ExitManifestUnavailable},
		{ErrManifestEmpty, ExitManifestEmpty},
		{ErrRestoreFailed, ExitRestoreFailed},
		{ErrPostStepFailed, ExitPostStepFailed},
		{errors.New("other"), ExitFailure},
	}
	for _, tc := range cases {
		if got := ExitCodeFor(tc.err); got != tc.code {
			t.Fatalf("ExitCodeFor(%v) = %d, want %d", tc.err, got, tc.code)
		}
	}
}
