package paths

import (
	"os"
	"os/user"
	"path/filepath"
)

const appName = "wxadmin"

// HomeDir returns the real user's home directory, even when running under sudo.
func HomeDir() (string, error) {
	// SUDO_USER is set by sudo to the original invoking user.
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		u, err := user.Lookup(sudoUser)
		if err == nil {
			return u.HomeDir, nil
		}
	}
	return os.UserHomeDir()
}

// CacheDir returns ~/.cache/wxadmin, creating it if needed. Log files live here.
func CacheDir() (string, error) {
	return ensure(".cache")
}

// DataDir returns ~/.local/share/wxadmin, creating it if needed.
// The local sqlite store lives here.
func DataDir() (string, error) {
	return ensure(".local", "share")
}

// ConfigDir returns ~/.config/wxadmin, creating it if needed.
func ConfigDir() (string, error) {
	return ensure(".config")
}

func ensure(parts ...string) (string, error) {
	home, err := HomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(append(append([]string{home}, parts...), appName)...)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}
