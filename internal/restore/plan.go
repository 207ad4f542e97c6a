package restore

import "github.com/rowjay/mssql-restore/internal/util"

// BuildPlan maps each manifest entry to a new physical destination named
// after the target database. Pure and deterministic: the same manifest and
// name always yield the same plan, one move per entry in manifest order.
//
// Data files become {target}{ext}, log files {target}_log{ext}, where ext
// is the entry's original extension when present and the kind default
// (.mdf/.ldf) otherwise. When a backup carries more than one file of a
// kind, the sanitized logical name is folded in to keep destinations
// collision-free.
func BuildPlan(m *Manifest, targetDatabase string) Plan {
	perKind := map[FileKind]int{}
	for _, e := range m.Entries {
		perKind[e.Kind]++
	}

	moves := make([]Move, 0, len(m.Entries))
	for _, e := range m.Entries {
		name := fileName(e, targetDatabase, perKind[e.Kind] > 1)
		moves = append(moves, Move{
			LogicalName: e.LogicalName,
			Destination: util.JoinServerPath(m.DataDir, name),
		})
	}
	return Plan{TargetDatabase: targetDatabase, DataDir: m.DataDir, Moves: moves}
}

func fileName(e FileEntry, target string, disambiguate bool) string {
	ext := util.PathExt(e.PhysicalName)
	if ext == "" {
		if e.Kind == Log {
			ext = ".ldf"
		} else {
			ext = ".mdf"
		}
	}

	stem := target
	if e.Kind == Log {
		stem += "_log"
	}
	if disambiguate {
		stem += "_" + util.SanitizeFileToken(e.LogicalName)
	}
	return stem + ext
}
