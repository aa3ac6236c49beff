package settings

import (
	"os"
	"path/filepath"

	goeen_log "github.com/eencloud/goeen/log"
)

// ResolveDataDir returns a writable data directory, preferring the configured
// path and falling back to user-accessible locations for development boxes
// where the production path is not writable.
func ResolveDataDir(preferred string, logger *goeen_log.Logger) string {
	candidates := []string{
		preferred,
		"/var/lib/pos-terminal-session",
		filepath.Join(os.TempDir(), "pos-terminal-session"),
		"./data",
	}

	for _, path := range candidates {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			continue
		}
		testFile := filepath.Join(path, ".write_test")
		file, err := os.Create(testFile)
		if err != nil {
			continue
		}
		_ = file.Close()
		_ = os.Remove(testFile)

		if path != preferred {
			logger.Warningf("Configured data dir %q not writable, using %s", preferred, path)
		}
		return path
	}

	// Last resort - current directory
	return "."
}
