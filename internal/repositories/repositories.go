package repositories

import (
	"database/sql"
	"fmt"
	"strings"
)

// artistSeparator joins artist names into a single column. Artist names never contain it.
const artistSeparator = "\x1f"

// scanner is satisfied by both [sql.Row] and [sql.Rows].
type scanner interface {
	Scan(dest ...any) error
}

// withTx runs fn inside a transaction, committing on success and rolling back on error.
func withTx(db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func joinArtists(artists []string) string {
	return strings.Join(artists, artistSeparator)
}

func splitArtists(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, artistSeparator)
}
