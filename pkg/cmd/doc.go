// Package cmd provides CLI commands for the pgkeeper tool.
//
// Every command is built by a constructor returning a *cli.Command. The
// constructors take an fx parameter struct holding their dependencies and are
// registered in Module under one of three value groups:
//   - commands: top-level commands (db)
//   - db: the database operations below `db`
//   - migrate: the revision script operations below `db migrate`
//
// # Available Commands
//
//	pgkeeper db create-all                  # run SCHEMA_FILE against the database
//	pgkeeper db drop-all [--yes]            # drop and recreate every schema in SCHEMAS
//	pgkeeper db reset-all [--yes]           # drop-all followed by create-all
//	pgkeeper db pg dump [-l PATH]           # pg_dump to PATH (default BACKUP_PATH)
//	pgkeeper db pg restore [-l PATH]        # pg_restore --clean from PATH
//	pgkeeper db migrate init                # create the migrations directory
//	pgkeeper db migrate revision -m MSG     # write a new revision script
//	pgkeeper db migrate merge heads -m MSG  # join branches into one head
//	pgkeeper db migrate upgrade [REV]       # apply revisions up to REV (head)
//	pgkeeper db migrate downgrade [REV]     # revert revisions down to REV (-1)
//	pgkeeper db migrate stamp [REV]         # record REV without running anything
//	pgkeeper db migrate show|history|heads|branches|current
//	pgkeeper db migrate rehash              # rewrite migrate.sum
//
// # Global Options
//
//   - --log-level: diagnostics level, written to stderr (default info)
//   - --help, -h: Display command help
//   - --version: Display version information
//
// drop-all and reset-all prompt for confirmation on the command's reader
// unless --yes is given. Declining is not an error.
package cmd
