package backup

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/pseudomuto/pgkeeper/pkg/config"
	"github.com/pseudomuto/pgkeeper/pkg/consts"
	log "github.com/sirupsen/logrus"
)

type (
	// Runner runs an external binary to completion.
	Runner interface {
		Run(ctx context.Context, name string, args []string, env []string) error
	}

	// ExecRunner runs binaries with os/exec.
	ExecRunner struct {
		Stdout io.Writer
		Stderr io.Writer
	}

	// Backup dumps and restores the configured database with the native
	// PostgreSQL client binaries.
	Backup struct {
		cfg    *config.Config
		runner Runner
	}
)

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, name string, args []string, env []string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = env
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr

	return cmd.Run()
}

// New creates a Backup for cfg.
func New(cfg *config.Config, runner Runner) *Backup {
	return &Backup{cfg: cfg, runner: runner}
}

// DumpArgs returns the pg_dump command line writing a custom-format archive
// to location:
//
//	<PG_BIN_DIR>/pg_dump --host=H --username=U --format=c DB --file=location
func DumpArgs(cfg *config.Config, location string) []string {
	return []string{
		filepath.Join(cfg.BinDir, "pg_dump"),
		"--host=" + cfg.Host,
		"--username=" + cfg.Username,
		"--format=c",
		cfg.DBName,
		"--file=" + location,
	}
}

// RestoreArgs returns the pg_restore command line restoring location into the
// configured database, dropping existing objects first:
//
//	<PG_BIN_DIR>/pg_restore --host=H --username=U --dbname=DB --clean location
func RestoreArgs(cfg *config.Config, location string) []string {
	return []string{
		filepath.Join(cfg.BinDir, "pg_restore"),
		"--host=" + cfg.Host,
		"--username=" + cfg.Username,
		"--dbname=" + cfg.DBName,
		"--clean",
		location,
	}
}

// Location returns location, or the configured backup path when it is empty.
func (b *Backup) Location(location string) string {
	switch {
	case location != "":
		return location
	case b.cfg.BackupPath != "":
		return b.cfg.BackupPath
	default:
		return consts.DefaultBackupPath
	}
}

// Dump writes a backup of the database to location.
func (b *Backup) Dump(ctx context.Context, location string) error {
	return b.run(ctx, DumpArgs(b.cfg, b.Location(location)))
}

// Restore restores the database from the backup at location.
func (b *Backup) Restore(ctx context.Context, location string) error {
	return b.run(ctx, RestoreArgs(b.cfg, b.Location(location)))
}

// run blocks until the binary exits. A non-zero exit status is logged and
// swallowed. Failing to start the binary is returned.
func (b *Backup) run(ctx context.Context, args []string) error {
	env := os.Environ()
	if b.cfg.Password != "" {
		env = append(env, "PGPASSWORD="+b.cfg.Password)
	}

	logger := log.WithFields(log.Fields{
		"binary":   args[0],
		"database": b.cfg.DBName,
		"host":     b.cfg.Host,
	})
	logger.Debug("Running PostgreSQL client")

	err := b.runner.Run(ctx, args[0], args[1:], env)

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		logger.WithField("exit_code", exitErr.ExitCode()).Error("PostgreSQL client exited with a non-zero status")
		return nil
	}

	return errors.Wrapf(err, "failed to run %s", args[0])
}
