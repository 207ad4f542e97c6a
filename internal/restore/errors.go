package restore

import "errors"

// Failure kinds. None of these are retried: each reflects an unreachable
// dependency or a structurally invalid input, neither of which a retry fixes.
var (
	ErrFetchFailed         = errors.New("backup source fetch failed")
	ErrManifestUnavailable = errors.New("backup manifest unavailable")
	ErrManifestEmpty       = errors.New("backup manifest empty")
	ErrRestoreFailed       = errors.New("restore failed")
	ErrPostStepFailed      = errors.New("post-restore step failed")
)

// Process exit codes, one per failure kind, so orchestration layers can
// branch on outcome without parsing log text.
const (
	ExitSuccess             = 0
	ExitFailure             = 1
	ExitFetchFailed         = 2
	ExitManifestUnavailable = 3
	ExitManifestEmpty       = 4
	ExitRestoreFailed       = 5
	ExitPostStepFailed      = 6
)

// ExitCodeFor maps an error to its process exit code.
func ExitCodeFor(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, ErrFetchFailed):
		return ExitFetchFailed
	case errors.Is(err, ErrManifestUnavailable):
		return ExitManifestUnavailable
	case errors.Is(err, ErrManifestEmpty):
		return ExitManifestEmpty
	case errors.Is(err, ErrRestoreFailed):
		return ExitRestoreFailed
	case errors.Is(err, ErrPostStepFailed):
		return ExitPostStepFailed
	default:
		return ExitFailure
	}
}
