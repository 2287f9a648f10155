// Package dotdir manages the .playbook/ and ~/.playbook directories.
//
// The dotdir holds the playbook snapshot, the delta history log, the
// fallback vector database, and the config file. A local ./.playbook/
// directory scopes learned strategies to a project; the home directory
// variant is the shared default.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// dirName is the name of the playbook directory.
	dirName = ".playbook"

	// SnapshotFileName is the playbook snapshot inside the dotdir.
	SnapshotFileName = "playbook.json"

	// HistoryFileName is the delta history log inside the dotdir.
	HistoryFileName = "delta_history.jsonl"

	// VectorDBFileName is the fallback vector database inside the dotdir.
	VectorDBFileName = "vectors.db"

	// ConfigFileName is the TOML config file inside the dotdir.
	ConfigFileName = "config.toml"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the target absolute path to a .playbook/ directory.
// Order of precedence is as follows:
//  1. Provided override
//  2. Local ./.playbook/ dir
//  3. Home ~/.playbook/ dir
//  4. If none found, attempt to create ~/.playbook/ dir
func (m *Manager) Target(overrideDir string) (string, error) {
	var dir string

	switch {
	case overrideDir != "":
		dir = overrideDir

	case m.localDirExists():
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting current directory: %w", err)
		}
		dir = filepath.Join(cwd, dirName)

	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, dirName)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating playbook directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

// SnapshotPath returns the playbook snapshot path inside the target dotdir.
func (m *Manager) SnapshotPath(overrideDir string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, SnapshotFileName), nil
}

// HistoryPath returns the delta history log path inside the target dotdir.
func (m *Manager) HistoryPath(overrideDir string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, HistoryFileName), nil
}

// VectorDBPath returns the fallback vector database path inside the target
// dotdir.
func (m *Manager) VectorDBPath(overrideDir string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, VectorDBFileName), nil
}

// localDirExists checks whether a .playbook/ directory exists in the current
// working directory.
func (m *Manager) localDirExists() bool {
	cwd, err := os.Getwd()
	if err != nil {
		return false
	}

	info, err := os.Stat(filepath.Join(cwd, dirName))
	return err == nil && info.IsDir()
}
