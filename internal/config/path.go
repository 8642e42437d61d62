package config

import (
	"os"
	"path/filepath"
)

// DefaultDataDir returns where an Authority keeps its file-backed locations
// when --data-dir is not given. XDG_DATA_HOME wins, then /var/lib, then the
// per-user application directory of the host OS, then ~/.gdid.
func DefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "gdid")
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "./data"
	}
	candidates := []struct{ parent, dir string }{
		{"/var/lib", "/var/lib/gdid"},
		{filepath.Join(home, "Library"), filepath.Join(home, "Library", "Application Support", "GDID")},
		{filepath.Join(home, "AppData"), filepath.Join(home, "AppData", "Local", "GDID")},
	}
	for _, c := range candidates {
		if isDir(c.parent) {
			return c.dir
		}
	}
	return filepath.Join(home, ".gdid")
}

// ResolvePath returns p joined to dataDir unless p is absolute.
func ResolvePath(dataDir, p string) string {
	if filepath.IsAbs(p) || dataDir == "" {
		return p
	}
	return filepath.Join(dataDir, p)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
