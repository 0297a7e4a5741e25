package main

import (
	"context"

	"github.com/desertthunder/musync/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the example configuration to the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	if err := shared.CreateConfigFile(r.configPath); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", r.configPath)
	r.writePlain("✓ Wrote %s\n", r.configPath)
	r.writePlain("Fill in credentials, or export CLIENT_ID, CLIENT_SECRET and SPOTIFY_REFRESH_TOKEN.\n")
	return nil
}

// SetupDatabase opens the run history database, applying pending migrations.
//
// With --rollback the most recent migration is reverted instead.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database()
	if err != nil {
		return err
	}
	path := r.config.Database.Path

	if cmd.Bool("rollback") {
		m, err := shared.RollbackMigration(db)
		if err != nil {
			return err
		}
		r.logger.Info("migration rolled back", "path", path, "migration", m.String())
		r.writePlain("✓ Rolled back %s in %s\n", m, path)
		return nil
	}

	version, err := shared.SchemaVersion(db)
	if err != nil {
		return err
	}
	r.logger.Info("database ready", "path", path, "version", version)
	r.writePlain("✓ Database initialized at %s (schema version %04d)\n", path, version)
	return nil
}
