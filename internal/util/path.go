package util

import "strings"

// PathExt returns the extension of a physical file path as reported by the
// engine, including the dot. Manifests carry paths in whatever form the
// source host used, so both backslash and slash separators are handled
// regardless of the host this tool runs on.
func PathExt(p string) string {
	base := p
	if idx := strings.LastIndexAny(base, `\/`); idx >= 0 {
		base = base[idx+1:]
	}
	if idx := strings.LastIndex(base, "."); idx > 0 {
		return base[idx:]
	}
	return ""
}

// JoinServerPath joins a filename onto a server-side directory using the
// separator style the directory itself uses. A Windows data directory must
// yield a Windows destination even when the plan is built on Linux.
func JoinServerPath(dir, name string) string {
	sep := "/"
	if strings.Contains(dir, `\`) || isDrivePath(dir) {
		sep = `\`
	}
	return strings.TrimRight(dir, `\/`) + sep + name
}

func isDrivePath(dir string) bool {
	return len(dir) >= 2 && dir[1] == ':'
}

// SanitizeFileToken reduces a logical file name to characters that are safe
// inside a derived physical filename.
func SanitizeFileToken(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
