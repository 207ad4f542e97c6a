package restore

import (
	"context"
	"fmt"
	"strings"

	"github.com/rowjay/mssql-restore/internal/mssql"
)

// Resolver introspects a backup file through the engine and parses the
// resulting file inventory.
type Resolver struct {
	Runner mssql.QueryRunner

	// DataDirOverride, when set, wins over whatever the engine reports.
	DataDirOverride string

	// FallbackDataDir is used when the engine reports no usable default
	// data path and no override is configured.
	FallbackDataDir string
}

// Resolve queries the engine for the backup's file manifest and the
// instance default data path in a single batched round trip, then parses
// the tabular response. Fails with ErrManifestUnavailable when the query
// cannot execute and ErrManifestEmpty when no file entries parse; neither
// is worth retrying.
func (r *Resolver) Resolve(ctx context.Context, backupPath string) (*Manifest, error) {
	query := fmt.Sprintf(
		"RESTORE FILELISTONLY FROM DISK = N'%s'; SELECT CAST(SERVERPROPERTY('InstanceDefaultDataPath') AS nvarchar(4000));",
		escapeSQLString(backupPath),
	)
	res, err := r.Runner.Run(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifestUnavailable, err)
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("%w: introspection query exited %d: %s",
			ErrManifestUnavailable, res.ExitCode, strings.TrimSpace(res.Output))
	}

	entries, reportedDir := parseFileList(res.Output)
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no file entries in introspection output", ErrManifestEmpty)
	}
	if !hasKind(entries, Data) {
		return nil, fmt.Errorf("%w: manifest has no data file entry", ErrManifestEmpty)
	}

	dir := r.DataDirOverride
	if dir == "" {
		dir = reportedDir
	}
	if dir == "" {
		dir = r.FallbackDataDir
	}
	return &Manifest{Entries: entries, DataDir: dir}, nil
}

// parseFileList extracts file entries and the instance default data path
// from the engine's tabular output. The grammar is fixed: the first three
// columns of a file row are logical name, physical name and type code, in
// that order; the column set beyond that varies by engine version and is
// ignored. Rows may be pipe- or whitespace-delimited. Header rows,
// dash-rule separators, blank lines and row-count trailers are skipped.
// A standalone row holding a single absolute path is the default data path.
func parseFileList(output string) ([]FileEntry, string) {
	var entries []FileEntry
	var dataDir string

	for _, raw := range strings.Split(output, "\n") {
		line := strings.TrimRight(raw, "\r")
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			continue
		case strings.Contains(trimmed, "LogicalName"):
			continue
		case isRuleLine(trimmed):
			continue
		case strings.HasPrefix(trimmed, "(") && strings.Contains(trimmed, "affected"):
			continue
		}

		cols := splitColumns(trimmed)
		if len(cols) >= 3 {
			if kind, ok := kindFromTypeCode(cols[2]); ok {
				entries = append(entries, FileEntry{
					LogicalName:  cols[0],
					PhysicalName: cols[1],
					Kind:         kind,
				})
				continue
			}
		}
		if len(cols) == 1 && dataDir == "" && looksLikePath(cols[0]) {
			dataDir = cols[0]
		}
	}
	return entries, dataDir
}

func splitColumns(line string) []string {
	var parts []string
	if strings.Contains(line, "|") {
		parts = strings.Split(line, "|")
	} else {
		// Verbose mode pads columns with runs of spaces; a single space can
		// occur inside a physical path.
		parts = splitOnSpaceRuns(line)
	}
	cols := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			cols = append(cols, p)
		}
	}
	return cols
}

// splitOnSpaceRuns treats a tab or a run of two or more spaces as a column
// boundary. A single space is literal: physical paths may contain one.
func splitOnSpaceRuns(line string) []string {
	var parts []string
	var cur strings.Builder
	spaces, tabs := 0, 0
	flush := func() {
		if cur.Len() > 0 {
			parts = append(parts, cur.String())
			cur.Reset()
		}
	}
	for _, r := range line {
		if r == ' ' {
			spaces++
			continue
		}
		if r == '\t' {
			tabs++
			continue
		}
		if tabs > 0 || spaces >= 2 {
			flush()
		} else if spaces == 1 {
			cur.WriteRune(' ')
		}
		spaces, tabs = 0, 0
		cur.WriteRune(r)
	}
	flush()
	return parts
}

// kindFromTypeCode maps the engine's file type code. D is a data file, L a
// transaction log. Fulltext (F) and filestream (S) entries are outside the
// relocation model and skipped.
func kindFromTypeCode(code string) (FileKind, bool) {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "D":
		return Data, true
	case "L":
		return Log, true
	default:
		return 0, false
	}
}

func isRuleLine(line string) bool {
	seen := false
	for _, r := range line {
		switch r {
		case '-', '|', ' ', '+':
			seen = seen || r == '-'
		default:
			return false
		}
	}
	return seen
}

func looksLikePath(s string) bool {
	if strings.HasPrefix(s, "/") {
		return true
	}
	return len(s) >= 3 && s[1] == ':' && (s[2] == '\\' || s[2] == '/')
}

func hasKind(entries []FileEntry, kind FileKind) bool {
	for _, e := range entries {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

func escapeSQLString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
