package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const appDir = "consult"

// ResolvePath applies CLI, XDG, and home fallback rules. An implicit
// config.jsonc that does not exist yields to config.yaml beside it.
func ResolvePath(explicit string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return explicit, nil
	}

	dir, err := configDir()
	if err != nil {
		return "", err
	}
	primary := filepath.Join(dir, "config.jsonc")
	if _, err := os.Stat(primary); err == nil {
		return primary, nil
	}
	for _, name := range []string{"config.yaml", "config.yml"} {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return primary, nil
}

func configDir() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, appDir), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for config fallback")
	}
	return filepath.Join(home, ".config", appDir), nil
}
