package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const (
	defaultDBName = "skytrack.db"
	stateDir      = ".skytrack"
)

type Config struct {
	Workspace string
	// Path overrides the workspace-derived database file.
	Path string
}

func dbPath(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, stateDir, defaultDBName)
}

// EnsureWorkspace creates the workspace state directory if missing.
func EnsureWorkspace(workspace string) (string, error) {
	path := filepath.Join(workspace, stateDir)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

// Open opens the SQLite database with foreign keys on and immediate write
// transactions. A single connection serializes writers inside the process.
func Open(cfg Config) (*sql.DB, error) {
	path := cfg.Path
	if path == "" {
		if _, err := EnsureWorkspace(cfg.Workspace); err != nil {
			return nil, err
		}
		path = dbPath(cfg.Workspace)
	}
	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(1)
	return conn, nil
}

// Path returns the db path for the workspace.
func Path(workspace string) string {
	return dbPath(workspace)
}
