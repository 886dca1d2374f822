package migrate

import (
	"database/sql"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/pseudomuto/pgkeeper/pkg/consts"
	"gopkg.in/yaml.v3"

	// database/sql drivers selectable through Config.Driver
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

type (
	// Config is the engine configuration for a single command invocation.
	//
	// The persisted part lives in `<dir>/migrate.yaml`. Everything tagged with
	// `yaml:"-"` is supplied at runtime by the caller.
	Config struct {
		// VersionLocations lists the directories, relative to ScriptLocation,
		// that hold revision scripts. New revisions go to the first entry.
		VersionLocations []string `yaml:"version_locations,omitempty"`

		// VersionTable is the table sql-migrate records applied revisions in
		VersionTable string `yaml:"version_table,omitempty"`

		// VersionTableSchema is the schema holding VersionTable (postgres only)
		VersionTableSchema string `yaml:"version_table_schema,omitempty"`

		// TruncateSlugLength caps the message slug in revision file names
		TruncateSlugLength int `yaml:"truncate_slug_length,omitempty"`

		// ScriptLocation is the migrations directory. Always the directory
		// NewConfig was called with.
		ScriptLocation string `yaml:"-"`

		// XArgs holds the extra `key=value` arguments given with -x
		XArgs []string `yaml:"-"`

		// Driver, DSN and Dialect describe the database connection
		Driver  string `yaml:"-"`
		DSN     string `yaml:"-"`
		Dialect string `yaml:"-"`

		// Output receives report output and generated SQL
		Output io.Writer `yaml:"-"`

		// Now returns the creation time stamped on new revisions
		Now func() time.Time `yaml:"-"`
	}
)

// NewConfig builds the engine configuration for the migrations directory.
//
// `<directory>/migrate.yaml` is read when it exists. A missing file (or a
// missing directory) is not an error here; commands that need scripts report
// it when they load the directory. ScriptLocation always equals directory.
//
// Example:
//
//	cfg, err := migrate.NewConfig("migrations")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	cfg.AppendXArg("table=schema_versions")
//	fmt.Println(cfg.ScriptLocation) // migrations
func NewConfig(directory string) (*Config, error) {
	cfg := &Config{}

	path := filepath.Join(directory, consts.EngineConfigFile)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "failed to unmarshal %s", path)
		}
	case !os.IsNotExist(err):
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}

	cfg.ScriptLocation = directory
	cfg.setDefaults()
	return cfg, nil
}

// AppendXArg adds an extra argument, creating the list when it is empty.
func (c *Config) AppendXArg(arg string) {
	c.XArgs = append(c.XArgs, arg)
}

// XArg returns the value of the `key=value` extra argument named key.
// Later arguments win over earlier ones.
func (c *Config) XArg(key string) (string, bool) {
	var (
		val   string
		found bool
	)

	for _, arg := range c.XArgs {
		k, v, ok := strings.Cut(arg, "=")
		if ok && strings.TrimSpace(k) == key {
			val, found = strings.TrimSpace(v), true
		}
	}

	return val, found
}

// Table returns the version table, honouring the `table` extra argument.
func (c *Config) Table() string {
	if t, ok := c.XArg("table"); ok && t != "" {
		return t
	}

	return c.VersionTable
}

// Schema returns the version table schema, honouring the `schema` extra argument.
func (c *Config) Schema() string {
	if s, ok := c.XArg("schema"); ok {
		return s
	}

	return c.VersionTableSchema
}

// Locations returns the version locations joined with ScriptLocation.
func (c *Config) Locations() []string {
	out := make([]string, len(c.VersionLocations))
	for i, loc := range c.VersionLocations {
		if filepath.IsAbs(loc) {
			out[i] = filepath.Clean(loc)
			continue
		}

		out[i] = filepath.Join(c.ScriptLocation, loc)
	}

	return out
}

// Open connects to the configured database.
func (c *Config) Open() (*sql.DB, error) {
	if c.Driver == "" {
		return nil, errors.New("no database driver configured")
	}

	db, err := sql.Open(c.Driver, c.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s database", c.Driver)
	}

	return db, nil
}

func (c *Config) setDefaults() {
	if len(c.VersionLocations) == 0 {
		c.VersionLocations = []string{consts.DefaultVersionLocation}
	}

	if c.VersionTable == "" {
		c.VersionTable = consts.DefaultVersionTable
	}

	if c.TruncateSlugLength <= 0 {
		c.TruncateSlugLength = consts.DefaultTruncateSlugLength
	}

	if c.Dialect == "" {
		c.Dialect = "postgres"
	}

	if c.Output == nil {
		c.Output = os.Stdout
	}

	if c.Now == nil {
		c.Now = time.Now
	}
}
