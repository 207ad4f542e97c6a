// Package source fetches backup artifacts to local storage. Remote
// artifacts are staged into a temp file; encrypted (.enc) and compressed
// (.gz/.zst) artifacts are unwrapped during staging so the engine always
// sees a plain backup file.
package source

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rowjay/mssql-restore/internal/compress"
	"github.com/rowjay/mssql-restore/internal/config"
	"github.com/rowjay/mssql-restore/internal/cryptoutil"
)

// Staged is a backup file ready for the engine. Cleanup removes any
// temporary copy and is nil-safe; it is never nil for remote fetches.
type Staged struct {
	Path    string
	Cleanup func() error
}

func (s Staged) Close() error {
	if s.Cleanup == nil {
		return nil
	}
	return s.Cleanup()
}

// Source resolves a backup reference to a local file. A fetch either hands
// back a complete artifact or fails; an interrupted transfer never
// surfaces as success.
type Source interface {
	Fetch(ctx context.Context, ref string) (Staged, error)
}

func New(cfg config.SourceConfig) (Source, error) {
	switch cfg.Backend {
	case "local", "":
		return &Local{TempDir: cfg.TempDir, DecryptionKey: cfg.DecryptionKey}, nil
	case "s3":
		if cfg.S3.Endpoint == "" || cfg.S3.Bucket == "" {
			return nil, fmt.Errorf("s3 endpoint and bucket are required")
		}
		return NewS3(cfg.S3, cfg.TempDir, cfg.DecryptionKey)
	default:
		return nil, fmt.Errorf("unsupported source backend: %s", cfg.Backend)
	}
}

// needsStaging reports whether the artifact name implies a transform. An
// encrypted artifact always stages, so a missing key fails loudly instead
// of handing ciphertext to the engine.
func needsStaging(name string) bool {
	if isEncryptedName(name) {
		return true
	}
	return compress.DetectKind(name) != compress.TypeNone
}

// stage copies an artifact stream into a temp file, unwrapping encryption
// and compression as indicated by the artifact name. The temp file is
// removed on any error so a partial copy is never handed back.
func stage(tempDir, name string, r io.Reader, decryptionKey string) (Staged, error) {
	payload := r
	if isEncryptedName(name) {
		if decryptionKey == "" {
			return Staged{}, fmt.Errorf("artifact %s is encrypted but no decryption key is configured", name)
		}
		key, err := cryptoutil.ParseKey(decryptionKey)
		if err != nil {
			return Staged{}, err
		}
		payload, err = cryptoutil.DecryptReader(payload, key)
		if err != nil {
			return Staged{}, err
		}
		name = trimEncSuffix(name)
	}

	kind := compress.DetectKind(name)
	reader, err := compress.WrapReader(kind, payload)
	if err != nil {
		return Staged{}, err
	}
	defer reader.Close()

	tmp, err := os.CreateTemp(tempDir, "msr-*.bak")
	if err != nil {
		return Staged{}, err
	}
	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return Staged{}, fmt.Errorf("stage %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return Staged{}, err
	}
	path := tmp.Name()
	return Staged{Path: path, Cleanup: func() error { return os.Remove(path) }}, nil
}

func isEncryptedName(name string) bool {
	return len(name) > 4 && name[len(name)-4:] == ".enc"
}

func trimEncSuffix(name string) string {
	if isEncryptedName(name) {
		return name[:len(name)-4]
	}
	return name
}
