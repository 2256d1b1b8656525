package app

import (
	"database/sql"
	"fmt"

	"pulseboard/internal/config"
	"pulseboard/internal/db"
	"pulseboard/internal/migrate"
)

// Open prepares a workspace for use: ensures the data directory exists,
// loads pulseboard.yml (defaults when absent), opens the database and
// applies pending migrations. The caller owns the returned connection.
func Open(workspace string) (*sql.DB, *config.Config, error) {
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(workspace)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, nil, err
	}
	return conn, cfg, nil
}
