package config

import (
	"io"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/pseudomuto/pgkeeper/pkg/consts"
	"github.com/spf13/viper"
)

// EnvConfigFile names the environment variable that overrides the
// configuration file location.
const EnvConfigFile = "PGKEEPER_CONFIG"

type (
	// Config represents the application settings shared by every `db` subcommand.
	//
	// Values are read from an optional YAML file and overridden by environment
	// variables of the same name. Keys are matched case-insensitively, so both
	// `PG_HOST: db1` and `pg_host: db1` are accepted in the file.
	Config struct {
		// Host is the PostgreSQL server host passed to pg_dump/pg_restore
		Host string `mapstructure:"PG_HOST"`

		// Port is the PostgreSQL server port used when building the DSN
		Port int `mapstructure:"PG_PORT"`

		// Username is the role used for connections and the backup binaries
		Username string `mapstructure:"PG_USERNAME"`

		// Password is handed to the backup binaries through PGPASSWORD
		Password string `mapstructure:"PG_PASSWORD"`

		// DBName is the database name
		DBName string `mapstructure:"PG_DB_NAME"`

		// BinDir is the directory containing pg_dump and pg_restore
		BinDir string `mapstructure:"PG_BIN_DIR"`

		// SSLMode is the sslmode query parameter of the generated DSN
		SSLMode string `mapstructure:"PG_SSLMODE"`

		// DatabaseURL overrides the DSN built from the PG_* settings
		DatabaseURL string `mapstructure:"DATABASE_URL"`

		// Driver is the database/sql driver name (pgx, postgres or sqlite3)
		Driver string `mapstructure:"DATABASE_DRIVER"`

		// MigrationsDir is the migration-scripts directory
		MigrationsDir string `mapstructure:"MIGRATIONS_DIR"`

		// SchemaFile holds the DDL executed by create-all
		SchemaFile string `mapstructure:"SCHEMA_FILE"`

		// Schemas lists the schemas dropped and recreated by drop-all
		Schemas []string `mapstructure:"SCHEMAS"`

		// BackupPath is the default location for dump and restore
		BackupPath string `mapstructure:"BACKUP_PATH"`
	}
)

var keys = []string{
	"PG_HOST",
	"PG_PORT",
	"PG_USERNAME",
	"PG_PASSWORD",
	"PG_DB_NAME",
	"PG_BIN_DIR",
	"PG_SSLMODE",
	"DATABASE_URL",
	"DATABASE_DRIVER",
	"MIGRATIONS_DIR",
	"SCHEMA_FILE",
	"SCHEMAS",
	"BACKUP_PATH",
}

// LoadConfig parses the application configuration from the provided io.Reader.
//
// The reader is expected to contain YAML. A nil reader is allowed and yields a
// configuration built from defaults and environment variables only. Every key
// can be overridden by an environment variable of the same (upper case) name.
//
// Example:
//
//	cfg, err := config.LoadConfig(strings.NewReader("PG_HOST: db1\nPG_DB_NAME: app\n"))
//	if err != nil {
//		panic(err)
//	}
//
//	fmt.Println(cfg.DSN())
func LoadConfig(r io.Reader) (*Config, error) {
	v := newViper()
	if r != nil {
		if err := v.ReadConfig(r); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal config")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}

	cfg.Schemas = splitSchemas(cfg.Schemas)
	return &cfg, nil
}

// LoadConfigFile loads the application configuration from the specified file path.
// This is a convenience function that opens the file and calls LoadConfig.
func LoadConfigFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open file: %s", path)
	}
	defer func() { _ = f.Close() }()

	return LoadConfig(f)
}

// Path returns the configuration file location, honouring PGKEEPER_CONFIG.
func Path() string {
	if p := os.Getenv(EnvConfigFile); p != "" {
		return p
	}

	return consts.DefaultConfigFile
}

// DSN returns the connection string for the configured database.
//
// DATABASE_URL wins when set. Otherwise a postgres:// URL is assembled from the
// PG_* settings. The sqlite3 driver always uses DATABASE_URL as a file path.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" || c.Driver == "sqlite3" {
		return c.DatabaseURL
	}

	host := c.Host
	if host == "" {
		host = "localhost"
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(host, strconv.Itoa(c.Port)),
		Path:   "/" + c.DBName,
	}

	switch {
	case c.Username != "" && c.Password != "":
		u.User = url.UserPassword(c.Username, c.Password)
	case c.Username != "":
		u.User = url.User(c.Username)
	}

	if c.SSLMode != "" {
		q := url.Values{}
		q.Set("sslmode", c.SSLMode)
		u.RawQuery = q.Encode()
	}

	return u.String()
}

// Dialect maps the configured driver onto the SQL dialect understood by the
// migration engine.
func (c *Config) Dialect() string {
	if c.Driver == "sqlite3" {
		return "sqlite3"
	}

	return "postgres"
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	for _, k := range keys {
		// BindEnv only fails when called without a key.
		_ = v.BindEnv(k)
	}

	v.SetDefault("PG_PORT", consts.DefaultPort)
	v.SetDefault("PG_SSLMODE", consts.DefaultSSLMode)
	v.SetDefault("DATABASE_DRIVER", consts.DefaultDriver)
	v.SetDefault("MIGRATIONS_DIR", consts.DefaultMigrationsDir)
	v.SetDefault("SCHEMA_FILE", consts.DefaultSchemaFile)
	v.SetDefault("SCHEMAS", []string{consts.DefaultSchema})
	v.SetDefault("BACKUP_PATH", consts.DefaultBackupPath)
	return v
}

func splitSchemas(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}

	if len(out) == 0 {
		return []string{consts.DefaultSchema}
	}

	return out
}
