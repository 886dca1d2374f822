package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
	"go.uber.org/fx"
)

type (
	// SchemaManager creates and drops the application's database objects.
	SchemaManager interface {
		CreateAll(ctx context.Context) error
		DropAll(ctx context.Context) error
	}

	dbParams struct {
		fx.In

		Commands []*cli.Command `group:"db"`
	}

	schemaParams struct {
		fx.In

		Schema SchemaManager
	}
)

func yesFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "yes",
		Usage: "Skip the confirmation prompt",
	}
}

// db creates the `db` command grouping every database operation.
func db(p dbParams) *cli.Command {
	commands := slices.Clone(p.Commands)
	slices.SortFunc(commands, func(a, b *cli.Command) int {
		return strings.Compare(a.Name, b.Name)
	})

	return &cli.Command{
		Name:     "db",
		Usage:    "Manage the application database",
		Commands: commands,
	}
}

// createAll creates the database objects described by SCHEMA_FILE.
//
// Example usage:
//
//	pgkeeper db create-all
func createAll(p schemaParams) *cli.Command {
	return &cli.Command{
		Name:  "create-all",
		Usage: "Create all database objects from the schema file",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return p.Schema.CreateAll(ctx)
		},
	}
}

// dropAll drops every configured schema after confirmation.
//
// Example usage:
//
//	pgkeeper db drop-all
//	pgkeeper db drop-all --yes
func dropAll(p schemaParams) *cli.Command {
	return &cli.Command{
		Name:  "drop-all",
		Usage: "Drop all database objects",
		Flags: []cli.Flag{yesFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ok, err := confirm(cmd, "This will drop all database objects. Continue?")
			if err != nil || !ok {
				return err
			}

			return p.Schema.DropAll(ctx)
		},
	}
}

// resetAll drops and then recreates all database objects after confirmation.
//
// Example usage:
//
//	pgkeeper db reset-all --yes
func resetAll(p schemaParams) *cli.Command {
	return &cli.Command{
		Name:  "reset-all",
		Usage: "Drop and recreate all database objects",
		Flags: []cli.Flag{yesFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ok, err := confirm(cmd, "This will drop and recreate all database objects. Continue?")
			if err != nil || !ok {
				return err
			}

			if err := p.Schema.DropAll(ctx); err != nil {
				return err
			}

			return p.Schema.CreateAll(ctx)
		},
	}
}

// confirm asks question on the command's writer and reads the answer from its
// reader. Only "y" and "yes" (any case) confirm; EOF declines.
func confirm(cmd *cli.Command, question string) (bool, error) {
	if cmd.Bool("yes") {
		return true, nil
	}

	root := cmd.Root()
	fmt.Fprintf(root.Writer, "%s [y/N]: ", question)

	answer, err := bufio.NewReader(root.Reader).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, errors.Wrap(err, "failed to read confirmation")
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		log.WithField("command", cmd.Name).Info("Aborted")
		return false, nil
	}
}
