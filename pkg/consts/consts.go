package consts

import "os"

const (
	// ModeDir is the standard file mode for creating directories
	ModeDir = os.FileMode(0o755)

	// ModeFile is the standard file mode for creating files
	ModeFile = os.FileMode(0o644)

	// DefaultConfigFile is the application configuration file read when
	// PGKEEPER_CONFIG is not set. The file is optional.
	DefaultConfigFile = "pgkeeper.yaml"

	// DefaultMigrationsDir is the migration-scripts directory used when none is configured.
	DefaultMigrationsDir = "migrations"

	// DefaultBackupPath is the file written by `db pg dump` and read by `db pg restore`.
	DefaultBackupPath = "db.pg_dump"

	// DefaultSchemaFile holds the DDL executed by `db create-all`.
	DefaultSchemaFile = "db/schema.sql"

	// DefaultSchema is the schema dropped and recreated by `db drop-all`.
	DefaultSchema = "public"

	// DefaultDriver is the database/sql driver used for migrations.
	DefaultDriver = "pgx"

	// DefaultPort is the PostgreSQL port used when PG_PORT is not set.
	DefaultPort = 5432

	// DefaultSSLMode is the sslmode parameter used when PG_SSLMODE is not set.
	DefaultSSLMode = "disable"

	// EngineConfigFile is the engine configuration file inside the migrations directory.
	EngineConfigFile = "migrate.yaml"

	// ScriptTemplateFile is the revision template inside the migrations directory.
	ScriptTemplateFile = "script.sql.tmpl"

	// SumFileName is the integrity file inside the migrations directory.
	SumFileName = "migrate.sum"

	// DefaultVersionLocation is the directory, relative to the migrations
	// directory, where revision scripts are written.
	DefaultVersionLocation = "versions"

	// DefaultVersionTable is the table the migration engine records applied revisions in.
	DefaultVersionTable = "pgkeeper_revisions"

	// DefaultTruncateSlugLength caps the length of the message slug in revision file names.
	DefaultTruncateSlugLength = 40
)
