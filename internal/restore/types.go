// Package restore implements backup introspection, file relocation planning,
// and restore execution for SQL Server backups.
package restore

// FileKind classifies a database file by role, which determines its default
// extension and destination naming.
type FileKind int

const (
	Data FileKind = iota
	Log
)

func (k FileKind) String() string {
	if k == Log {
		return "log"
	}
	return "data"
}

// FileEntry is one row of the engine's backup file manifest.
type FileEntry struct {
	LogicalName  string
	PhysicalName string // path at backup time; usually meaningless on the target host
	Kind         FileKind
}

// Manifest is the parsed result of introspecting one backup file. Entry
// order is the engine-reported order and is preserved into the plan.
type Manifest struct {
	Entries []FileEntry
	DataDir string // resolved destination root for relocated files
}

// Move redirects one logical file to a new physical destination.
type Move struct {
	LogicalName string
	Destination string
}

// Plan maps a manifest onto the target server's file layout, one move per
// manifest entry in manifest order.
type Plan struct {
	TargetDatabase string
	DataDir        string
	Moves          []Move
}

// ExistingDatabasePolicy controls what happens when the target database
// already exists on the server.
type ExistingDatabasePolicy int

const (
	FailIfExists ExistingDatabasePolicy = iota
	Replace
)

// Result is the structured outcome of a restore attempt.
type Result struct {
	Status         string `json:"status"` // success or failure
	TargetDatabase string `json:"target_database"`
	FilesRestored  int    `json:"files_restored"`
	ErrorDetail    string `json:"error_detail,omitempty"`
}
