package source

import (
	"context"
	"fmt"
	"os"
)

// Local serves backups already present on this host's filesystem. Plain
// artifacts are handed to the engine in place; encrypted or compressed ones
// are staged through a temporary copy.
type Local struct {
	TempDir       string
	DecryptionKey string
}

func (l *Local) Fetch(ctx context.Context, ref string) (Staged, error) {
	select {
	case <-ctx.Done():
		return Staged{}, ctx.Err()
	default:
	}

	info, err := os.Stat(ref)
	if err != nil {
		return Staged{}, err
	}
	if info.IsDir() {
		return Staged{}, fmt.Errorf("%s is a directory, not a backup file", ref)
	}

	if !needsStaging(ref) {
		return Staged{Path: ref}, nil
	}

	file, err := os.Open(ref)
	if err != nil {
		return Staged{}, err
	}
	defer file.Close()
	return stage(l.TempDir, ref, file, l.DecryptionKey)
}
