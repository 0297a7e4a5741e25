package shared

import (
	"cmp"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"
)

//go:embed sql/*.sql
var migrationFS embed.FS

// Migration is one versioned change to the run history schema.
//
// Files are named NNNN_<name>_up.sql and NNNN_<name>_down.sql; both halves are required.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// String is the migration's file stem, e.g. "0000_create_sync_runs".
func (m Migration) String() string {
	return fmt.Sprintf("%04d_%s", m.Version, m.Name)
}

const schemaTable = `CREATE TABLE IF NOT EXISTS musync_schema (
	version INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// Migrations returns the embedded migrations in version order.
func Migrations() ([]Migration, error) {
	entries, err := fs.ReadDir(migrationFS, "sql")
	if err != nil {
		return nil, fmt.Errorf("read embedded migrations: %w", err)
	}

	byVersion := make(map[int]*Migration)
	for _, entry := range entries {
		version, name, up, ok := parseMigrationFile(entry.Name())
		if entry.IsDir() || !ok {
			continue
		}

		body, err := fs.ReadFile(migrationFS, path.Join("sql", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		m, seen := byVersion[version]
		if !seen {
			m = &Migration{Version: version, Name: name}
			byVersion[version] = m
		}
		if m.Name != name {
			return nil, fmt.Errorf("%w: version %04d is named both %q and %q", ErrInvalidMigration, version, m.Name, name)
		}
		if up {
			m.Up = string(body)
		} else {
			m.Down = string(body)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if strings.TrimSpace(m.Up) == "" || strings.TrimSpace(m.Down) == "" {
			return nil, fmt.Errorf("%w: %s needs both an up and a down script", ErrInvalidMigration, m)
		}
		migrations = append(migrations, *m)
	}
	slices.SortFunc(migrations, func(a, b Migration) int { return cmp.Compare(a.Version, b.Version) })
	return migrations, nil
}

// parseMigrationFile splits "0001_add_index_up.sql" into (1, "add_index", true).
func parseMigrationFile(file string) (version int, name string, up bool, ok bool) {
	stem, found := strings.CutSuffix(file, ".sql")
	if !found {
		return 0, "", false, false
	}

	switch {
	case strings.HasSuffix(stem, "_up"):
		stem, up = strings.TrimSuffix(stem, "_up"), true
	case strings.HasSuffix(stem, "_down"):
		stem = strings.TrimSuffix(stem, "_down")
	default:
		return 0, "", false, false
	}

	num, name, found := strings.Cut(stem, "_")
	if !found || name == "" {
		return 0, "", false, false
	}
	version, err := strconv.Atoi(num)
	if err != nil || version < 0 {
		return 0, "", false, false
	}
	return version, name, up, true
}

// SchemaVersion returns the highest applied migration version, or -1 when nothing is applied.
func SchemaVersion(db *sql.DB) (int, error) {
	if _, err := db.Exec(schemaTable); err != nil {
		return 0, fmt.Errorf("create schema table: %w", err)
	}

	var version sql.NullInt64
	if err := db.QueryRow("SELECT MAX(version) FROM musync_schema").Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if !version.Valid {
		return -1, nil
	}
	return int(version.Int64), nil
}

// RunMigrations applies every migration newer than the current schema version and returns the ones applied.
func RunMigrations(db *sql.DB) ([]Migration, error) {
	migrations, err := Migrations()
	if err != nil {
		return nil, err
	}
	current, err := SchemaVersion(db)
	if err != nil {
		return nil, err
	}

	var applied []Migration
	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		err := migrate(db, m.Up, "INSERT INTO musync_schema (version, name) VALUES (?, ?)", m.Version, m.Name)
		if err != nil {
			return applied, fmt.Errorf("apply migration %s: %w", m, err)
		}
		applied = append(applied, m)
	}
	return applied, nil
}

// RollbackMigration reverts the most recently applied migration and returns it.
func RollbackMigration(db *sql.DB) (Migration, error) {
	migrations, err := Migrations()
	if err != nil {
		return Migration{}, err
	}
	current, err := SchemaVersion(db)
	if err != nil {
		return Migration{}, err
	}
	if current < 0 {
		return Migration{}, ErrNothingApplied
	}

	i := slices.IndexFunc(migrations, func(m Migration) bool { return m.Version == current })
	if i < 0 {
		return Migration{}, fmt.Errorf("%w: applied version %04d is not embedded in this build", ErrInvalidMigration, current)
	}

	m := migrations[i]
	if err := migrate(db, m.Down, "DELETE FROM musync_schema WHERE version = ?", m.Version); err != nil {
		return Migration{}, fmt.Errorf("roll back migration %s: %w", m, err)
	}
	return m, nil
}

// migrate runs script and the bookkeeping statement in one transaction.
//
// The sqlite3 driver executes every statement of a multi-statement script.
func migrate(db *sql.DB, script, record string, args ...any) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(script); err != nil {
		return err
	}
	if _, err := tx.Exec(record, args...); err != nil {
		return err
	}
	return tx.Commit()
}
