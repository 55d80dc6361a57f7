// forgeboard/database/migrations.go
package database

// migration represents a single database schema migration.
type migration struct {
	Version uint
	Query   string
}

// allMigrations holds all schema changes in order.
var allMigrations = []migration{
	{
		Version: 1,
		Query: `
-- Retention pruning scans by age
CREATE INDEX IF NOT EXISTS idx_local_storage_updated ON local_storage(updated_at);
		`,
	},
}
