package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RemoteSession is the game a `tycoon remote` command continues.
type RemoteSession struct {
	BaseURL string `json:"base_url"`
	GameID  string `json:"game_id"`
	Token   string `json:"token"`
}

var ErrNoSession = errors.New("no remote game in progress")

func sessionPath(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "remote.json"), nil
}

func SaveSession(dir string, s RemoteSession) error {
	path, err := sessionPath(dir)
	if err != nil {
		return err
	}
	body, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, body, 0o600); err != nil {
		return err
	}
	return nil
}

func LoadSession(dir string) (RemoteSession, error) {
	path, err := sessionPath(dir)
	if err != nil {
		return RemoteSession{}, err
	}
	body, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return RemoteSession{}, ErrNoSession
	}
	if err != nil {
		return RemoteSession{}, err
	}
	var s RemoteSession
	if err := json.Unmarshal(body, &s); err != nil {
		return RemoteSession{}, fmt.Errorf("read %s: %w", path, err)
	}
	if strings.TrimSpace(s.GameID) == "" || strings.TrimSpace(s.Token) == "" {
		return RemoteSession{}, ErrNoSession
	}
	return s, nil
}

func ClearSession(dir string) error {
	path, err := sessionPath(dir)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	return os.Remove(path)
}
