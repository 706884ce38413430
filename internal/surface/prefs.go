package surface

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/rpggio/livesync/internal/domain/access"
)

const defaultPrefsPath = "~/.config/livesync/surface.toml"

// Prefs holds a surface's connection settings.
type Prefs struct {
	ServerURL   string `toml:"server_url"`
	WorkspaceID string `toml:"workspace_id"`
	SessionID   string `toml:"session_id"`
	UID         string `toml:"uid"`
	Email       string `toml:"email"`
	CachePath   string `toml:"cache_path"`
	// Controller makes this surface consume remote commands and heartbeat.
	Controller bool `toml:"controller"`
}

// DefaultPrefs returns the settings used when no file exists.
func DefaultPrefs() Prefs {
	return Prefs{
		ServerURL: "http://127.0.0.1:8080",
		SessionID: "main",
		CachePath: "~/.config/livesync/live.json",
	}
}

// DefaultPrefsPath returns the default preferences file path.
func DefaultPrefsPath() string {
	return defaultPrefsPath
}

// Actor is the identity the surface acts as.
func (p Prefs) Actor() access.Actor {
	return access.Actor{UID: strings.TrimSpace(p.UID), Email: strings.ToLower(strings.TrimSpace(p.Email))}
}

// LoadPrefs reads preferences from path, falling back to defaults when the
// file is missing. Missing fields keep their defaults.
func LoadPrefs(path string) (Prefs, error) {
	prefs := DefaultPrefs()
	resolved, err := expandPath(orDefault(path))
	if err != nil {
		return prefs, err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return prefs, nil
		}
		return prefs, fmt.Errorf("read prefs: %w", err)
	}
	if err := toml.Unmarshal(data, &prefs); err != nil {
		return DefaultPrefs(), fmt.Errorf("parse prefs: %w", err)
	}
	return prefs, nil
}

// SavePrefs writes preferences to path, creating directories as needed.
func SavePrefs(path string, p Prefs) error {
	resolved, err := expandPath(orDefault(path))
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}
	data, err := toml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}
	if err := os.WriteFile(resolved, data, 0o644); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	return nil
}

// ResolvedCachePath expands a leading ~ in CachePath.
func (p Prefs) ResolvedCachePath() (string, error) {
	return expandPath(p.CachePath)
}

func orDefault(path string) string {
	if strings.TrimSpace(path) == "" {
		return defaultPrefsPath
	}
	return path
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
