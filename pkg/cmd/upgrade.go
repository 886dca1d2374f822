package cmd

import (
	"context"

	"github.com/pseudomuto/pgkeeper/pkg/migrate"
	"github.com/urfave/cli/v3"
)

// upgrade creates the `upgrade` command.
//
// Example usage:
//
//	pgkeeper db migrate upgrade
//	pgkeeper db migrate upgrade shop@head
//	pgkeeper db migrate upgrade base:head --sql > upgrade.sql
func upgrade(p migrateParams) *cli.Command {
	return &cli.Command{
		Name:      "upgrade",
		Usage:     "Upgrade the database to a later revision",
		ArgsUsage: "[REVISION]",
		Flags:     []cli.Flag{tagFlag(), sqlFlag(), xArgFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := engineConfig(p.Config, cmd)
			if err != nil {
				return err
			}

			return migrate.Upgrade(ctx, cfg, migrate.UpgradeOptions{
				Revision: revisionArg(cmd, "head"),
				SQL:      cmd.Bool("sql"),
				Tag:      cmd.String("tag"),
			})
		},
	}
}

// downgrade creates the `downgrade` command.
//
// Example usage:
//
//	pgkeeper db migrate downgrade
//	pgkeeper db migrate downgrade base
//	pgkeeper db migrate downgrade --sql
func downgrade(p migrateParams) *cli.Command {
	return &cli.Command{
		Name:      "downgrade",
		Usage:     "Revert the database to a previous revision",
		ArgsUsage: "[REVISION]",
		Flags:     []cli.Flag{tagFlag(), sqlFlag(), xArgFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := engineConfig(p.Config, cmd)
			if err != nil {
				return err
			}

			sql := cmd.Bool("sql")
			return migrate.Downgrade(ctx, cfg, migrate.DowngradeOptions{
				Revision: downgradeTarget(revisionArg(cmd, "-1"), sql),
				SQL:      sql,
				Tag:      cmd.String("tag"),
			})
		},
	}
}

// downgradeTarget maps the default relative target onto a range in offline
// mode, where there is no database to anchor "-1" on.
func downgradeTarget(revision string, sql bool) string {
	if sql && revision == "-1" {
		return "head:-1"
	}

	return revision
}

// stamp creates the `stamp` command.
//
// Example usage:
//
//	pgkeeper db migrate stamp head
//	pgkeeper db migrate stamp base
func stamp(p migrateParams) *cli.Command {
	return &cli.Command{
		Name:      "stamp",
		Usage:     "Set the revision table to a revision without running any migrations",
		ArgsUsage: "[REVISION]",
		Flags:     []cli.Flag{tagFlag(), sqlFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := engineConfig(p.Config, cmd)
			if err != nil {
				return err
			}

			return migrate.Stamp(ctx, cfg, migrate.StampOptions{
				Revision: revisionArg(cmd, "head"),
				SQL:      cmd.Bool("sql"),
				Tag:      cmd.String("tag"),
			})
		},
	}
}
