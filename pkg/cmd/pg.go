package cmd

import (
	"context"

	"github.com/pseudomuto/pgkeeper/pkg/backup"
	"github.com/urfave/cli/v3"
	"go.uber.org/fx"
)

type pgParams struct {
	fx.In

	Backup *backup.Backup
}

func locationFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "location",
		Aliases: []string{"l"},
		Usage:   "the backup file (defaults to BACKUP_PATH)",
		Config: cli.StringConfig{
			TrimSpace: true,
		},
	}
}

// pg creates the `pg` command wrapping pg_dump and pg_restore.
//
// Both subcommands block until the client binary exits. PG_BIN_DIR selects
// the directory holding the binaries and PG_PASSWORD is passed through the
// environment.
//
// Example usage:
//
//	pgkeeper db pg dump
//	pgkeeper db pg restore -l backups/app.pg_dump
func pg(p pgParams) *cli.Command {
	return &cli.Command{
		Name:  "pg",
		Usage: "Back up and restore the database with the PostgreSQL client tools",
		Commands: []*cli.Command{
			{
				Name:  "dump",
				Usage: "Write a custom-format backup with pg_dump",
				Flags: []cli.Flag{locationFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return p.Backup.Dump(ctx, cmd.String("location"))
				},
			},
			{
				Name:  "restore",
				Usage: "Restore a backup with pg_restore, dropping existing objects first",
				Flags: []cli.Flag{locationFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return p.Backup.Restore(ctx, cmd.String("location"))
				},
			},
		},
	}
}
