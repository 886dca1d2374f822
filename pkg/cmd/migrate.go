package cmd

import (
	"context"
	"slices"
	"strings"

	"github.com/pkg/errors"
	"github.com/pseudomuto/pgkeeper/pkg/config"
	"github.com/pseudomuto/pgkeeper/pkg/migrate"
	"github.com/urfave/cli/v3"
	"go.uber.org/fx"
)

type (
	migrateGroupParams struct {
		fx.In

		Commands []*cli.Command `group:"migrate"`
	}

	migrateParams struct {
		fx.In

		Config *config.Config
	}
)

// migrateCmd creates the `migrate` command grouping the revision script
// operations.
func migrateCmd(p migrateGroupParams) *cli.Command {
	commands := slices.Clone(p.Commands)
	slices.SortFunc(commands, func(a, b *cli.Command) int {
		return strings.Compare(a.Name, b.Name)
	})

	return &cli.Command{
		Name:  "migrate",
		Usage: "Manage versioned revision scripts",
		Description: `Revision scripts live in MIGRATIONS_DIR. Each script names the revision(s)
it revises, forming a graph that may branch and merge. Revisions are addressed
by id, unique id prefix, branch label or one of the symbols head, heads and
base, optionally with a relative offset (ae10+1, head-2, shop@head).`,
		Commands: commands,
	}
}

// initCmd creates the `init` command.
//
// Example usage:
//
//	pgkeeper db migrate init
func initCmd(p migrateParams) *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Create a new migrations directory",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := engineConfig(p.Config, cmd)
			if err != nil {
				return err
			}

			return migrate.Init(cfg)
		},
	}
}

// revision creates the `revision` command.
//
// Example usage:
//
//	pgkeeper db migrate revision -m "add accounts"
//	pgkeeper db migrate revision -m "shop" --head base --branch-label shop
func revision(p migrateParams) *cli.Command {
	return &cli.Command{
		Name:  "revision",
		Usage: "Create a new revision script",
		Flags: []cli.Flag{
			messageFlag(),
			&cli.BoolFlag{
				Name:  "autogenerate",
				Usage: "Populate the revision from model metadata",
			},
			&cli.BoolFlag{
				Name:  "no-autogenerate",
				Usage: "Write an empty revision (default)",
			},
			sqlFlag(),
			&cli.StringFlag{
				Name:  "head",
				Usage: "the revision the new revision revises",
				Value: "head",
				Config: cli.StringConfig{
					TrimSpace: true,
				},
			},
			&cli.BoolFlag{
				Name:  "splice",
				Usage: "Allow --head to name a revision that is not a head",
			},
			branchLabelFlag(),
			&cli.StringFlag{
				Name:  "version-path",
				Usage: "the version location to write the script to",
				Config: cli.StringConfig{
					TrimSpace: true,
				},
			},
			revIDFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := engineConfig(p.Config, cmd)
			if err != nil {
				return err
			}

			_, err = migrate.Revision(cfg, migrate.RevisionOptions{
				Message:      cmd.String("message"),
				Autogenerate: cmd.Bool("autogenerate") && !cmd.Bool("no-autogenerate"),
				SQL:          cmd.Bool("sql"),
				Head:         cmd.String("head"),
				Splice:       cmd.Bool("splice"),
				BranchLabel:  cmd.String("branch-label"),
				VersionPath:  cmd.String("version-path"),
				RevID:        cmd.String("rev-id"),
			})
			return err
		},
	}
}

// merge creates the `merge` command.
//
// Example usage:
//
//	pgkeeper db migrate merge heads -m "merge shop"
//	pgkeeper db migrate merge ae10 27c6
func merge(p migrateParams) *cli.Command {
	return &cli.Command{
		Name:      "merge",
		Usage:     "Merge two or more revisions into a new revision",
		ArgsUsage: "REVISIONS...",
		Flags: []cli.Flag{
			messageFlag(),
			branchLabelFlag(),
			revIDFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() == 0 {
				return errors.New("merge needs the revisions to merge")
			}

			cfg, err := engineConfig(p.Config, cmd)
			if err != nil {
				return err
			}

			_, err = migrate.Merge(cfg, migrate.MergeOptions{
				Revisions:   cmd.Args().Slice(),
				Message:     cmd.String("message"),
				BranchLabel: cmd.String("branch-label"),
				RevID:       cmd.String("rev-id"),
			})
			return err
		},
	}
}

// engineConfig builds the migration engine configuration for a single
// invocation from the application config and the command's -x arguments.
func engineConfig(app *config.Config, cmd *cli.Command) (*migrate.Config, error) {
	cfg, err := migrate.NewConfig(app.MigrationsDir)
	if err != nil {
		return nil, err
	}

	cfg.Driver = app.Driver
	cfg.DSN = app.DSN()
	cfg.Dialect = app.Dialect()
	cfg.Output = cmd.Root().Writer

	for _, arg := range cmd.StringSlice("x-arg") {
		cfg.AppendXArg(arg)
	}

	return cfg, nil
}

// revisionArg returns the first positional argument or def.
func revisionArg(cmd *cli.Command, def string) string {
	if rev := strings.TrimSpace(cmd.Args().First()); rev != "" {
		return rev
	}

	return def
}

func messageFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "message",
		Aliases: []string{"m"},
		Usage:   "the revision message",
	}
}

func sqlFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "sql",
		Usage: "Print the SQL instead of running it",
	}
}

func tagFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "tag",
		Usage: "an arbitrary tag echoed in logs and generated SQL",
	}
}

func xArgFlag() cli.Flag {
	return &cli.StringSliceFlag{
		Name:    "x-arg",
		Aliases: []string{"x"},
		Usage:   "extra `key=value` engine arguments (table, schema)",
	}
}

func branchLabelFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "branch-label",
		Usage: "a branch label for the new revision",
		Config: cli.StringConfig{
			TrimSpace: true,
		},
	}
}

func revIDFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "rev-id",
		Usage: "a revision id to use instead of a generated one",
		Config: cli.StringConfig{
			TrimSpace: true,
		},
	}
}
