package models

import (
	"gorm.io/gorm"
)

// ActiveSessionIndexDDL enforces at most one active session per wallet at the
// storage level. Partial unique indexes work on both Postgres and SQLite, so
// the same DDL covers production and tests.
const ActiveSessionIndexDDL = `CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_one_active_per_wallet ON sessions (wallet_address) WHERE status = 'active'`

// Migrate runs AutoMigrate for all models plus the raw DDL AutoMigrate
// cannot express.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&User{},
		&Session{},
		&PointsLedgerEntry{},
		&CheckIn{},
	); err != nil {
		return err
	}
	return db.Exec(ActiveSessionIndexDDL).Error
}
