// forgeboard/database/database.go
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"forgeboard/utils"

	_ "github.com/mattn/go-sqlite3"
)

// DatabaseService owns the SQLite handle backing durable client storage.
type DatabaseService struct {
	DB        *sql.DB
	logger    *slog.Logger
	backupDir string
}

// InitDB connects to the database and brings the schema up to date.
func InitDB(dataSourceName, backupDir string, logger *slog.Logger) (*DatabaseService, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, err
	}

	if _, err = db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to execute base schema: %w", err)
	}

	if err := runMigrations(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	logger.Info("Database initialized.")

	return &DatabaseService{DB: db, logger: logger, backupDir: backupDir}, nil
}

func (ds *DatabaseService) Close() error {
	return ds.DB.Close()
}

// GetItem reads one stored value. ok is false when the key has never been set.
func (ds *DatabaseService) GetItem(clientID, key string) (value string, ok bool, err error) {
	err = ds.DB.QueryRow("SELECT value FROM local_storage WHERE client_id = ? AND key = ?", clientID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("could not read %s for client: %w", key, err)
	}
	return value, true, nil
}

// SetItem writes or replaces a stored value.
func (ds *DatabaseService) SetItem(clientID, key, value string) error {
	_, err := ds.DB.Exec(`
		INSERT INTO local_storage (client_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(client_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		clientID, key, value, utils.GetSQLTime())
	if err != nil {
		return fmt.Errorf("could not write %s for client: %w", key, err)
	}
	return nil
}

// RemoveItem deletes a stored value. Removing a missing key is not an error.
func (ds *DatabaseService) RemoveItem(clientID, key string) error {
	if _, err := ds.DB.Exec("DELETE FROM local_storage WHERE client_id = ? AND key = ?", clientID, key); err != nil {
		return fmt.Errorf("could not remove %s for client: %w", key, err)
	}
	return nil
}

// PruneStale deletes items not written since cutoff and returns how many went.
func (ds *DatabaseService) PruneStale(cutoff time.Time) (int64, error) {
	res, err := ds.DB.Exec("DELETE FROM local_storage WHERE updated_at < ?", cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("could not prune local storage: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		ds.logger.Info("Pruned stale local storage", "rows", n, "cutoff", cutoff)
	}
	return n, nil
}

// ClientStorage is the storage of a single client. It satisfies store.Persister.
type ClientStorage struct {
	ds       *DatabaseService
	clientID string
}

func (ds *DatabaseService) ForClient(clientID string) *ClientStorage {
	return &ClientStorage{ds: ds, clientID: clientID}
}

func (c *ClientStorage) GetItem(key string) (string, bool, error) {
	return c.ds.GetItem(c.clientID, key)
}

func (c *ClientStorage) SetItem(key, value string) error {
	return c.ds.SetItem(c.clientID, key, value)
}

func (c *ClientStorage) RemoveItem(key string) error {
	return c.ds.RemoveItem(c.clientID, key)
}

// BackupDatabase performs an online backup of the live SQLite database using VACUUM INTO.
func (ds *DatabaseService) BackupDatabase() (string, error) {
	if ds.backupDir == "" {
		return "", fmt.Errorf("backup directory is not configured")
	}
	if err := os.MkdirAll(ds.backupDir, 0755); err != nil {
		return "", fmt.Errorf("could not create backup directory %s: %w", ds.backupDir, err)
	}

	timestamp := utils.BackupStamp(utils.GetSQLTime())
	backupPath := filepath.Join(ds.backupDir, fmt.Sprintf("forge_backup_%s.db", timestamp))

	ds.logger.Info("Starting database backup", "destination", backupPath)

	if _, err := ds.DB.Exec("VACUUM INTO ?", backupPath); err != nil {
		if removeErr := os.Remove(backupPath); removeErr != nil && !os.IsNotExist(removeErr) {
			ds.logger.Error("Failed to remove incomplete backup file", "path", backupPath, "error", removeErr)
		}
		return "", fmt.Errorf("VACUUM INTO command failed: %w", err)
	}

	return backupPath, nil
}

// runMigrations applies all un-applied migrations.
func runMigrations(db *sql.DB, logger *slog.Logger) error {
	var latestVersion uint
	err := db.QueryRow("SELECT version FROM schema_migrations ORDER BY version DESC LIMIT 1").Scan(&latestVersion)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("could not get db version: %w", err)
	}

	logger.Info("Current database schema version", "version", latestVersion)

	for _, m := range allMigrations {
		if m.Version <= latestVersion {
			continue
		}
		logger.Info("Applying migration", "version", m.Version)
		tx, err := db.Begin()
		if err != nil {
			return err
		}

		if _, err := tx.Exec(m.Query); err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				logger.Error("Failed to rollback migration", "version", m.Version, "error", rerr)
			}
			return fmt.Errorf("failed to apply migration v%d: %w", m.Version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)", m.Version, utils.GetSQLTime()); err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				logger.Error("Failed to rollback migration record", "version", m.Version, "error", rerr)
			}
			return fmt.Errorf("failed to record migration v%d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration v%d: %w", m.Version, err)
		}
		logger.Info("Successfully applied migration", "version", m.Version)
	}
	return nil
}
