package cmd

import (
	"context"

	"github.com/pseudomuto/pgkeeper/pkg/migrate"
	"github.com/urfave/cli/v3"
)

func verboseFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "Show full revision details",
	}
}

// show creates the `show` command.
func show(p migrateParams) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show the revision denoted by the given symbol",
		ArgsUsage: "[REVISION]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := engineConfig(p.Config, cmd)
			if err != nil {
				return err
			}

			return migrate.Show(cfg, revisionArg(cmd, "head"))
		},
	}
}

// history creates the `history` command.
//
// Example usage:
//
//	pgkeeper db migrate history -r ae10:head -v
func history(p migrateParams) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List revisions in chronological order",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "rev-range",
				Aliases: []string{"r"},
				Usage:   "limit the output to `[start]:[end]`",
				Config: cli.StringConfig{
					TrimSpace: true,
				},
			},
			verboseFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := engineConfig(p.Config, cmd)
			if err != nil {
				return err
			}

			return migrate.History(cfg, migrate.HistoryOptions{
				Range:   cmd.String("rev-range"),
				Verbose: cmd.Bool("verbose"),
			})
		},
	}
}

// heads creates the `heads` command.
func heads(p migrateParams) *cli.Command {
	return &cli.Command{
		Name:  "heads",
		Usage: "Show the current available heads in the migrations directory",
		Flags: []cli.Flag{
			verboseFlag(),
			&cli.BoolFlag{
				Name:  "resolve-dependencies",
				Usage: "Treat dependency revisions as down revisions",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := engineConfig(p.Config, cmd)
			if err != nil {
				return err
			}

			return migrate.Heads(cfg, migrate.HeadsOptions{
				Verbose:             cmd.Bool("verbose"),
				ResolveDependencies: cmd.Bool("resolve-dependencies"),
			})
		},
	}
}

// branches creates the `branches` command.
func branches(p migrateParams) *cli.Command {
	return &cli.Command{
		Name:  "branches",
		Usage: "Show current branch points",
		Flags: []cli.Flag{verboseFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := engineConfig(p.Config, cmd)
			if err != nil {
				return err
			}

			return migrate.Branches(cfg, migrate.BranchesOptions{Verbose: cmd.Bool("verbose")})
		},
	}
}

// current creates the `current` command.
func current(p migrateParams) *cli.Command {
	return &cli.Command{
		Name:  "current",
		Usage: "Display the current revision(s) of the database",
		Flags: []cli.Flag{verboseFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := engineConfig(p.Config, cmd)
			if err != nil {
				return err
			}

			return migrate.Current(ctx, cfg, migrate.CurrentOptions{Verbose: cmd.Bool("verbose")})
		},
	}
}
