package restore

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rowjay/mssql-restore/internal/mssql"
)

// Executor serializes a relocation plan into a single restore statement and
// runs it. The engine restore is atomic on its side; the executor's job is
// correct command construction and faithful result propagation, no
// compensating actions.
type Executor struct {
	Runner mssql.QueryRunner
	Log    zerolog.Logger
}

// Serialize renders the restore statement for a plan. The MOVE directives
// preserve plan order. REPLACE is emitted only under the Replace policy;
// with FailIfExists the engine itself rejects a name collision.
func Serialize(plan Plan, backupPath string, policy ExistingDatabasePolicy) string {
	var b strings.Builder
	fmt.Fprintf(&b, "RESTORE DATABASE [%s] FROM DISK = N'%s' WITH FILE = 1",
		escapeIdentifier(plan.TargetDatabase), escapeSQLString(backupPath))
	for _, mv := range plan.Moves {
		fmt.Fprintf(&b, ", MOVE N'%s' TO N'%s'",
			escapeSQLString(mv.LogicalName), escapeSQLString(mv.Destination))
	}
	b.WriteString(", NOUNLOAD")
	if policy == Replace {
		b.WriteString(", REPLACE")
	}
	b.WriteString(", STATS = 10")
	return b.String()
}

// Execute runs the serialized restore as one request. On a non-zero exit or
// error-bearing output it fails with ErrRestoreFailed carrying the engine's
// raw diagnostic text, and the result reports zero files restored.
func (e *Executor) Execute(ctx context.Context, plan Plan, backupPath string, policy ExistingDatabasePolicy) (*Result, error) {
	stmt := Serialize(plan, backupPath, policy)
	e.Log.Debug().Str("statement", stmt).Msg("executing restore")

	res, err := e.Runner.Run(ctx, stmt)
	if err != nil {
		return failure(plan.TargetDatabase, err.Error()), fmt.Errorf("%w: %v", ErrRestoreFailed, err)
	}
	if res.ExitCode != 0 || hasEngineError(res.Output) {
		detail := strings.TrimSpace(res.Output)
		return failure(plan.TargetDatabase, detail), fmt.Errorf("%w: %s", ErrRestoreFailed, detail)
	}

	return &Result{
		Status:         "success",
		TargetDatabase: plan.TargetDatabase,
		FilesRestored:  len(plan.Moves),
	}, nil
}

// RunPostScript reads a post-restore script once and executes it as a
// second, independent request. Its failure never rolls back the restore;
// callers surface it as a warning-level outcome.
func (e *Executor) RunPostScript(ctx context.Context, scriptPath string) error {
	script, err := os.ReadFile(scriptPath)
	if err != nil {
		return fmt.Errorf("%w: read script: %v", ErrPostStepFailed, err)
	}
	res, err := e.Runner.Run(ctx, string(script))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPostStepFailed, err)
	}
	if res.ExitCode != 0 || hasEngineError(res.Output) {
		return fmt.Errorf("%w: %s", ErrPostStepFailed, strings.TrimSpace(res.Output))
	}
	return nil
}

// hasEngineError spots engine diagnostics ("Msg 3234, Level 16, ...") in
// output even when the client exit code stayed zero.
func hasEngineError(output string) bool {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "Msg ") && strings.Contains(line, "Level ") {
			return true
		}
	}
	return false
}

func failure(target, detail string) *Result {
	return &Result{Status: "failure", TargetDatabase: target, ErrorDetail: detail}
}

func escapeIdentifier(name string) string {
	return strings.ReplaceAll(name, "]", "]]")
}
