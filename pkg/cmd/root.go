package cmd

import (
	"context"
	"fmt"

	"github.com/mattn/go-colorable"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
	"go.uber.org/fx"
)

type (
	Params struct {
		fx.In

		Args       []string
		Commands   []*cli.Command `group:"commands"`
		Ctx        context.Context
		Lifecycle  fx.Lifecycle
		Shutdowner fx.Shutdowner
		Version    *Version
	}

	Version struct {
		Version   string
		Commit    string
		Timestamp string
	}
)

// Run creates the pgkeeper CLI application and runs it once the fx
// application starts. The exit code handed to the Shutdowner is 1 when the
// command fails and 0 otherwise.
//
// Global Flags:
//   - --log-level: logrus level for diagnostics written to stderr (default info)
//
// Example usage:
//
//	pgkeeper db migrate upgrade
//	pgkeeper --log-level debug db pg dump -l backups/app.pg_dump
func Run(p Params) {
	cli.VersionPrinter = func(cmd *cli.Command) {
		fmt.Fprintln(cmd.Writer, "Version:", p.Version.Version)
		fmt.Fprintln(cmd.Writer, "Commit:", p.Version.Commit)
		fmt.Fprintln(cmd.Writer, "Date:", p.Version.Timestamp)
	}

	app := &cli.Command{
		Name:  "pgkeeper",
		Usage: "Manage PostgreSQL schemas, migrations and backups",
		Description: `pgkeeper bootstraps the application's PostgreSQL schema, applies
versioned revision scripts (with branches and merges) and takes or restores
backups with the native PostgreSQL client tools.`,
		Version: p.Version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "the log level (trace, debug, info, warn, error)",
				Value: log.InfoLevel.String(),
				Config: cli.StringConfig{
					TrimSpace: true,
				},
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			return ctx, setupLogging(cmd.String("log-level"))
		},
		Commands: p.Commands,
	}

	p.Lifecycle.Append(fx.StartHook(func() {
		if err := app.Run(p.Ctx, p.Args); err != nil {
			log.WithError(err).Error("Error running command")
			_ = p.Shutdowner.Shutdown(fx.ExitCode(1))
			return
		}

		_ = p.Shutdowner.Shutdown(fx.ExitCode(0))
	}))
}

func setupLogging(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return errors.Wrapf(err, "invalid log level: %s", level)
	}

	log.SetLevel(lvl)
	log.SetFormatter(&log.TextFormatter{
		ForceColors: true,
	})
	log.SetOutput(colorable.NewColorableStderr())
	return nil
}
