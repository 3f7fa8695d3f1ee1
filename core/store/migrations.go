package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"

	"helix-qms/core/utils"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// migrations is the sqlite schema, applied statement by statement. Postgres
// deployments go through goose instead; keep the two in sync.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS departments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT UNIQUE NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		active INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		email TEXT UNIQUE NOT NULL,
		full_name TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL,
		department_id INTEGER,
		password_hash TEXT NOT NULL,
		salt TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		FOREIGN KEY(department_id) REFERENCES departments(id) ON DELETE SET NULL
	);`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		username TEXT NOT NULL,
		role TEXT NOT NULL,
		department_id INTEGER,
		csrf_token TEXT NOT NULL,
		ip TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		last_seen_at TIMESTAMP NOT NULL,
		expires_at TIMESTAMP NOT NULL,
		FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
	);`,
	`CREATE TABLE IF NOT EXISTS asset_types (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		department_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		UNIQUE(department_id, name),
		FOREIGN KEY(department_id) REFERENCES departments(id) ON DELETE CASCADE
	);`,
	`CREATE TABLE IF NOT EXISTS assets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		asset_type_id INTEGER NOT NULL,
		department_id INTEGER NOT NULL,
		tag TEXT UNIQUE NOT NULL,
		name TEXT NOT NULL,
		location TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'active',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		FOREIGN KEY(asset_type_id) REFERENCES asset_types(id) ON DELETE CASCADE,
		FOREIGN KEY(department_id) REFERENCES departments(id) ON DELETE CASCADE
	);`,
	`CREATE TABLE IF NOT EXISTS maintenance_schedules (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		asset_id INTEGER NOT NULL,
		document_type TEXT NOT NULL,
		frequency_unit TEXT NOT NULL,
		frequency_multiplier INTEGER NOT NULL,
		next_due TIMESTAMP,
		last_done TIMESTAMP,
		active INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		FOREIGN KEY(asset_id) REFERENCES assets(id) ON DELETE CASCADE
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_schedules_active_pair
		ON maintenance_schedules(asset_id, document_type) WHERE active=1;`,
	`CREATE TABLE IF NOT EXISTS maintenance_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		asset_id INTEGER NOT NULL,
		schedule_id INTEGER,
		checklist_id INTEGER,
		record_type TEXT NOT NULL,
		performed_by INTEGER NOT NULL,
		started_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP,
		status TEXT NOT NULL DEFAULT 'completed',
		findings TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY(asset_id) REFERENCES assets(id) ON DELETE CASCADE,
		FOREIGN KEY(schedule_id) REFERENCES maintenance_schedules(id) ON DELETE SET NULL
	);`,
	`CREATE TABLE IF NOT EXISTS checklists (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		asset_id INTEGER NOT NULL,
		department_id INTEGER NOT NULL,
		title TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'draft',
		created_by INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP,
		FOREIGN KEY(asset_id) REFERENCES assets(id) ON DELETE CASCADE,
		FOREIGN KEY(department_id) REFERENCES departments(id) ON DELETE CASCADE
	);`,
	`CREATE TABLE IF NOT EXISTS checklist_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		checklist_id INTEGER NOT NULL,
		question TEXT NOT NULL,
		result TEXT NOT NULL DEFAULT 'pending',
		remarks TEXT NOT NULL DEFAULT '',
		position INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY(checklist_id) REFERENCES checklists(id) ON DELETE CASCADE
	);`,
	`CREATE TABLE IF NOT EXISTS ncrs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		number TEXT NOT NULL UNIQUE,
		checklist_item_id INTEGER,
		asset_id INTEGER,
		department_id INTEGER NOT NULL,
		description TEXT NOT NULL,
		raised_by INTEGER NOT NULL,
		assigned_to INTEGER,
		status TEXT NOT NULL DEFAULT 'open',
		severity TEXT NOT NULL,
		due_date TIMESTAMP NOT NULL,
		root_cause TEXT NOT NULL DEFAULT '',
		corrective_action TEXT NOT NULL DEFAULT '',
		preventive_action TEXT NOT NULL DEFAULT '',
		evidence TEXT NOT NULL DEFAULT '',
		completed_date TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		deleted_at TIMESTAMP,
		FOREIGN KEY(checklist_item_id) REFERENCES checklist_items(id) ON DELETE SET NULL,
		FOREIGN KEY(asset_id) REFERENCES assets(id) ON DELETE SET NULL,
		FOREIGN KEY(department_id) REFERENCES departments(id) ON DELETE CASCADE
	);`,
	`CREATE TABLE IF NOT EXISTS ncr_actions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ncr_id INTEGER NOT NULL,
		action_type TEXT NOT NULL,
		description TEXT NOT NULL,
		assigned_to INTEGER,
		due_date TIMESTAMP NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		FOREIGN KEY(ncr_id) REFERENCES ncrs(id) ON DELETE CASCADE
	);`,
	`CREATE TABLE IF NOT EXISTS ncr_counters (
		year INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		PRIMARY KEY (year)
	);`,
	`CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL,
		action TEXT NOT NULL,
		entity_type TEXT NOT NULL DEFAULT '',
		entity_id INTEGER NOT NULL DEFAULT 0,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_assets_department ON assets(department_id);`,
	`CREATE INDEX IF NOT EXISTS idx_assets_status ON assets(status);`,
	`CREATE INDEX IF NOT EXISTS idx_schedules_asset ON maintenance_schedules(asset_id);`,
	`CREATE INDEX IF NOT EXISTS idx_schedules_next_due ON maintenance_schedules(next_due);`,
	`CREATE INDEX IF NOT EXISTS idx_records_asset ON maintenance_records(asset_id);`,
	`CREATE INDEX IF NOT EXISTS idx_checklists_asset ON checklists(asset_id);`,
	`CREATE INDEX IF NOT EXISTS idx_checklists_department_created ON checklists(department_id, created_at);`,
	`CREATE INDEX IF NOT EXISTS idx_checklist_items_checklist ON checklist_items(checklist_id);`,
	`CREATE INDEX IF NOT EXISTS idx_ncrs_status ON ncrs(status);`,
	`CREATE INDEX IF NOT EXISTS idx_ncrs_department ON ncrs(department_id);`,
	`CREATE INDEX IF NOT EXISTS idx_ncrs_assigned ON ncrs(assigned_to);`,
	`CREATE INDEX IF NOT EXISTS idx_ncr_actions_ncr ON ncr_actions(ncr_id);`,
	`CREATE INDEX IF NOT EXISTS idx_audit_created ON audit_log(created_at);`,
}

func ApplyMigrations(ctx context.Context, db *sql.DB, logger *utils.Logger) error {
	isPG, err := isPostgresDB(ctx, db)
	if err != nil {
		return err
	}
	if isPG {
		return applyGooseMigrations(ctx, db, logger)
	}
	return applySQLiteMigrations(ctx, db, logger)
}

func applySQLiteMigrations(ctx context.Context, db *sql.DB, logger *utils.Logger) error {
	for i, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite migration #%d failed: %w", i+1, err)
		}
	}
	if logger != nil {
		logger.Printf("sqlite migrations applied")
	}
	return nil
}

func applyGooseMigrations(ctx context.Context, db *sql.DB, logger *utils.Logger) error {
	goose.SetBaseFS(embeddedMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	if logger != nil {
		logger.Printf("postgres migrations applied")
	}
	return nil
}
