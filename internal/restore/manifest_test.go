package restore

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rowjay/mssql-restore/internal/mssql"
)

type fakeRunner struct {
	output   string
	exitCode int
	err      error
	queries  []string
}

func (f *fakeRunner) Run(ctx context.Context, query string) (mssql.QueryResult, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return mssql.QueryResult{}, f.err
	}
	return mssql.QueryResult{Output: f.output, ExitCode: f.exitCode}, nil
}

const pipeOutput = `LogicalName|PhysicalName|Type|FileGroupName|Size
--------------|------------------|----|-------------|------
orders|C:\Data\orders.mdf|D|PRIMARY|8388608
orders_log|C:\Data\orders_log.ldf|L|NULL|1048576

(2 rows affected)

C:\SQL\DATA\
`

func TestResolvePipeDelimited(t *testing.T) {
	runner := &fakeRunner{output: pipeOutput}
	resolver := &Resolver{Runner: runner, FallbackDataDir: `C:\Fallback`}

	manifest, err := resolver.Resolve(context.Background(), `C:\backups\orders.bak`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(manifest.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(manifest.Entries))
	}
	if manifest.Entries[0].LogicalName != "orders" || manifest.Entries[0].Kind != Data {
		t.Fatalf("unexpected first entry: %+v", manifest.Entries[0])
	}
	if manifest.Entries[1].LogicalName != "orders_log" || manifest.Entries[1].Kind != Log {
		t.Fatalf("unexpected second entry: %+v", manifest.Entries[1])
	}
	if manifest.DataDir != `C:\SQL\DATA\` {
		t.Fatalf("unexpected data dir: %q", manifest.DataDir)
	}
	if len(runner.queries) != 1 {
		t.Fatalf("expected one batched round trip, got %d", len(runner.queries))
	}
}

func TestResolveWhitespaceDelimited(t *testing.T) {
	output := "orders    C:\\Program Files\\SQL\\orders.mdf    D    PRIMARY\n" +
		"orders_log	C:\\Data\\orders_log.ldf	L	NULL\n"
	resolver := &Resolver{Runner: &fakeRunner{output: output}, FallbackDataDir: `C:\Fallback`}

	manifest, err := resolver.Resolve(context.Background(), "orders.bak")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(manifest.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(manifest.Entries))
	}
	if manifest.Entries[0].PhysicalName != `C:\Program Files\SQL\orders.mdf` {
		t.Fatalf("path with spaces parsed wrong: %q", manifest.Entries[0].PhysicalName)
	}
}

func TestResolveEmptyOutput(t *testing.T) {
	resolver := &Resolver{Runner: &fakeRunner{output: "\n\n"}, FallbackDataDir: `C:\Fallback`}
	_, err := resolver.Resolve(context.Background(), "orders.bak")
	if !errors.Is(err, ErrManifestEmpty) {
		t.Fatalf("expected ErrManifestEmpty, got %v", err)
	}
}

func TestResolveNoDataEntry(t *testing.T) {
	output := "orders_log|C:\\Data\\orders_log.ldf|L\n"
	resolver := &Resolver{Runner: &fakeRunner{output: output}, FallbackDataDir: `C:\Fallback`}
	_, err := resolver.Resolve(context.Background(), "orders.bak")
	if !errors.Is(err, ErrManifestEmpty) {
		t.Fatalf("expected ErrManifestEmpty, got %v", err)
	}
}

func TestResolveQueryFailure(t *testing.T) {
	resolver := &Resolver{Runner: &fakeRunner{output: "Sqlcmd: Error: connection failed", exitCode: 1}}
	_, err := resolver.Resolve(context.Background(), "orders.bak")
	if !errors.Is(err, ErrManifestUnavailable) {
		t.Fatalf("expected ErrManifestUnavailable, got %v", err)
	}

	resolver = &Resolver{Runner: &fakeRunner{err: errors.New("binary not found")}}
	_, err = resolver.Resolve(context.Background(), "orders.bak")
	if !errors.Is(err, ErrManifestUnavailable) {
		t.Fatalf("expected ErrManifestUnavailable, got %v", err)
	}
}

func TestResolveDataDirFallback(t *testing.T) {
	output := "orders|C:\\Data\\orders.mdf|D\n"
	resolver := &Resolver{Runner: &fakeRunner{output: output}, FallbackDataDir: `C:\Fallback`}
	manifest, err := resolver.Resolve(context.Background(), "orders.bak")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if manifest.DataDir != `C:\Fallback` {
		t.Fatalf("expected fallback data dir, got %q", manifest.DataDir)
	}
}

func TestResolveDataDirOverrideWins(t *testing.T) {
	resolver := &Resolver{
		Runner:          &fakeRunner{output: pipeOutput},
		DataDirOverride: `D:\Override`,
		FallbackDataDir: `C:\Fallback`,
	}
	manifest, err := resolver.Resolve(context.Background(), "orders.bak")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if manifest.DataDir != `D:\Override` {
		t.Fatalf("expected override data dir, got %q", manifest.DataDir)
	}
}

func TestResolveSkipsFulltextEntries(t *testing.T) {
	output := "orders|C:\\Data\\orders.mdf|D\n" +
		"orders_ft|C:\\Data\\orders_ft|F\n" +
		"orders_log|C:\\Data\\orders_log.ldf|L\n"
	resolver := &Resolver{Runner: &fakeRunner{output: output}, FallbackDataDir: `C:\Fallback`}
	manifest, err := resolver.Resolve(context.Background(), "orders.bak")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(manifest.Entries) != 2 {
		t.Fatalf("expected fulltext entry to be skipped, got %d entries", len(manifest.Entries))
	}
}

func TestResolveEscapesBackupPath(t *testing.T) {
	runner := &fakeRunner{output: pipeOutput}
	resolver := &Resolver{Runner: runner, FallbackDataDir: `C:\Fallback`}
	if _, err := resolver.Resolve(context.Background(), `C:\it's\orders.bak`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := `N'C:\it''s\orders.bak'`; len(runner.queries) == 0 || !strings.Contains(runner.queries[0], want) {
		t.Fatalf("backup path not escaped in query: %q", runner.queries)
	}
}
