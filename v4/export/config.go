// Copyright 2021 PingCAP, Inc. Licensed under Apache-2.0.

package export

import (
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/docker/go-units"
	"github.com/go-sql-driver/mysql"
	"github.com/pingcap/errors"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	// registered drivers
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	flagDriver          = "driver"
	flagDSN             = "dsn"
	flagHost            = "host"
	flagPort            = "port"
	flagUser            = "user"
	flagPassword        = "password"
	flagDatabase        = "database"
	flagModels          = "models"
	flagModelsExclude   = "models-exclude"
	flagModelName       = "model-name"
	flagLimit           = "limit"
	flagWhere           = "where"
	flagOrderBy         = "order-by"
	flagBatchSize       = "batch-size"
	flagExclude         = "exclude"
	flagImport          = "import"
	flagImportOption    = "import-option"
	flagFile            = "file"
	flagAppend          = "append"
	flagRoot            = "root"
	flagFilesDir        = "files-dir"
	flagBlobRoot        = "blob-root"
	flagBlobStorage     = "blob-storage"
	flagHasOneAttached  = "has-one-attached"
	flagHasManyAttached = "has-many-attached"
	flagRichText        = "rich-text"
	flagConsistency     = "consistency"
	flagFlushSize       = "flush-size"
	flagStatusAddr      = "status-addr"
	flagLogLevel        = "loglevel"
	flagLogFormat       = "logfmt"
	flagLogFile         = "logfile"

	// FlagConfig names the YAML config file flag.
	FlagConfig = "config"
)

const (
	// DefaultBatchSize is the number of records fetched per batch.
	DefaultBatchSize = 1000
	// DefaultSeedsFile is where the command line tool writes seeds.
	DefaultSeedsFile = "db/seeds.rb"
	// DefaultFilesDir is the directory, relative to the application root,
	// attachment blobs are copied to.
	DefaultFilesDir = "db/seeds/files"

	defaultFlushSize = 1 << 20

	consistencyTypeAuto     = "auto"
	consistencyTypeSnapshot = "snapshot"
	consistencyTypeNone     = "none"
)

// defaultExclude are the attributes left out when Exclude is nil. An empty
// non-nil Exclude keeps every attribute.
var defaultExclude = []string{"id", "created_at", "updated_at"}

// ImportOption is one `key: value` pair appended to an import call. Value is
// written as Ruby source verbatim.
type ImportOption struct {
	Key   string
	Value string
}

// ImportMode selects `Model.import` instead of `Model.create!`.
type ImportMode struct {
	Enabled bool
	Options []ImportOption
}

// UnmarshalYAML accepts `import: true` and an ordered option mapping such as
// `import: {validate: false}`.
func (m *ImportMode) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var enabled bool
		if err := node.Decode(&enabled); err != nil {
			return err
		}
		*m = ImportMode{Enabled: enabled}
		return nil
	case yaml.MappingNode:
		opts := make([]ImportOption, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			opts = append(opts, ImportOption{Key: node.Content[i].Value, Value: node.Content[i+1].Value})
		}
		*m = ImportMode{Enabled: true, Options: opts}
		return nil
	default:
		return errors.Errorf("line %d: import must be a boolean or a mapping", node.Line)
	}
}

// Config is the configuration of a dump.
type Config struct {
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`

	// Models are table or model names to dump, empty means all tables.
	Models        []string `yaml:"models"`
	ModelsExclude []string `yaml:"models-exclude"`
	// ModelName overrides the derived model name of a single dumped table.
	ModelName string `yaml:"model-name"`
	Limit     int    `yaml:"limit"`
	Where     string `yaml:"where"`
	OrderBy   string `yaml:"order-by"`

	BatchSize int `yaml:"batch-size"`
	// Exclude lists attributes left out of the output, compared trimmed and
	// case insensitively.
	Exclude []string   `yaml:"exclude"`
	Import  ImportMode `yaml:"import"`
	// File is the output path, empty returns the seed text in memory.
	File      string `yaml:"file"`
	Append    bool   `yaml:"append"`
	FlushSize uint64 `yaml:"flush-size"`

	RootDir         string   `yaml:"root"`
	FilesDir        string   `yaml:"files-dir"`
	BlobRoot        string   `yaml:"blob-root"`
	BlobStorage     string   `yaml:"blob-storage"`
	HasOneAttached  []string `yaml:"has-one-attached"`
	HasManyAttached []string `yaml:"has-many-attached"`
	RichText        []string `yaml:"rich-text"`

	Consistency string `yaml:"consistency"`
	StatusAddr  string `yaml:"status-addr"`

	LogLevel  string `yaml:"loglevel"`
	LogFile   string `yaml:"logfile"`
	LogFormat string `yaml:"logfmt"`

	// BlobService overrides the service blobs are read from.
	BlobService BlobService `yaml:"-"`
	ServerInfo  ServerInfo  `yaml:"-"`
}

// DefaultConfig returns the default export Config for dumpling
func DefaultConfig() *Config {
	return &Config{
		Driver:      driverMySQL,
		Host:        "127.0.0.1",
		Port:        3306,
		User:        "root",
		BatchSize:   DefaultBatchSize,
		Exclude:     append([]string{}, defaultExclude...),
		FlushSize:   defaultFlushSize,
		RootDir:     ".",
		FilesDir:    DefaultFilesDir,
		BlobRoot:    "storage",
		Consistency: consistencyTypeAuto,
		LogLevel:    "info",
		LogFormat:   "text",
	}
}

// Clone returns a copy of conf which shares no slices with it.
func (conf *Config) Clone() *Config {
	clone := *conf
	clone.Models = append([]string(nil), conf.Models...)
	clone.ModelsExclude = append([]string(nil), conf.ModelsExclude...)
	if conf.Exclude != nil {
		clone.Exclude = append([]string{}, conf.Exclude...)
	}
	clone.Import.Options = append([]ImportOption(nil), conf.Import.Options...)
	clone.HasOneAttached = append([]string(nil), conf.HasOneAttached...)
	clone.HasManyAttached = append([]string(nil), conf.HasManyAttached...)
	clone.RichText = append([]string(nil), conf.RichText...)
	return &clone
}

func (conf *Config) String() string {
	cfg, err := yaml.Marshal(conf.redacted())
	if err != nil {
		return fmt.Sprintf("%+v", *conf)
	}
	return string(cfg)
}

func (conf *Config) redacted() *Config {
	c := conf.Clone()
	if c.Password != "" {
		c.Password = "******"
	}
	if c.DSN != "" {
		c.DSN = "******"
	}
	return c
}

// DefineFlags defines flags of seed-dumpling's configuration
func (conf *Config) DefineFlags(flags *pflag.FlagSet) {
	flags.String(flagDriver, conf.Driver, "Database driver: mysql, postgres or sqlite")
	flags.String(flagDSN, "", "Data source name, overrides the connection flags")
	flags.StringP(flagHost, "h", conf.Host, "The host to connect to")
	flags.IntP(flagPort, "P", conf.Port, "TCP/IP port to connect to")
	flags.StringP(flagUser, "u", conf.User, "Username with privileges to run the dump")
	flags.StringP(flagPassword, "p", "", "User password")
	flags.StringP(flagDatabase, "B", conf.Database, "Database to dump, the file path for sqlite")
	flags.StringSlice(flagModels, nil, "Comma separated models or tables to dump, wildcards allowed")
	flags.StringSlice(flagModelsExclude, nil, "Comma separated models or tables to skip")
	flags.String(flagModelName, "", "Model name used in the generated code, only with a single model")
	flags.Int(flagLimit, 0, "Dump at most this many records per model")
	flags.String(flagWhere, "", "Dump only the records matching the where condition")
	flags.String(flagOrderBy, "", "Order the records by this clause instead of the primary key")
	flags.Int(flagBatchSize, conf.BatchSize, "Number of records fetched per batch")
	flags.StringSlice(flagExclude, conf.Exclude, "Comma separated attributes left out of the seeds")
	flags.Bool(flagImport, false, "Generate Model.import calls instead of Model.create!")
	flags.StringArray(flagImportOption, nil, "Option appended to import calls as key=value, repeatable")
	flags.StringP(flagFile, "o", conf.File, "Output file, empty writes to stdout")
	flags.Bool(flagAppend, conf.Append, "Append to the output file instead of overwriting it")
	flags.String(flagRoot, conf.RootDir, "Application root the files directory is relative to")
	flags.String(flagFilesDir, conf.FilesDir, "Directory attachment blobs are copied to")
	flags.String(flagBlobRoot, conf.BlobRoot, "Root of the Active Storage disk service")
	flags.String(flagBlobStorage, "", "Blob storage URL, e.g. s3://bucket/prefix, instead of the disk service")
	flags.StringSlice(flagHasOneAttached, nil, "Single attachments to dump, as name or Model.name")
	flags.StringSlice(flagHasManyAttached, nil, "Multiple attachments to dump, as name or Model.name")
	flags.StringSlice(flagRichText, nil, "Rich text attributes to dump, as name or Model.name")
	flags.String(flagConsistency, conf.Consistency, "Consistency level: auto, snapshot or none")
	flags.String(flagFlushSize, units.BytesSize(float64(conf.FlushSize)), "Buffered output size before it is flushed, e.g. 1MiB")
	flags.String(flagStatusAddr, conf.StatusAddr, "Address the metrics server listens on, empty disables it")
	flags.String(flagLogLevel, conf.LogLevel, "Log level: {debug|info|warn|error|dpanic|panic|fatal}")
	flags.StringP(flagLogFile, "L", conf.LogFile, "Log file `path`, leave empty to write to console")
	flags.String(flagLogFormat, conf.LogFormat, "Log `format`: {text|json}")
	flags.String(FlagConfig, "", "YAML config file")
}

// ParseFromFlags applies the flags explicitly set on the command line.
func (conf *Config) ParseFromFlags(flags *pflag.FlagSet) error {
	var err error
	str := func(name string, dst *string) {
		if err == nil && flags.Changed(name) {
			*dst, err = flags.GetString(name)
		}
	}
	integer := func(name string, dst *int) {
		if err == nil && flags.Changed(name) {
			*dst, err = flags.GetInt(name)
		}
	}
	boolean := func(name string, dst *bool) {
		if err == nil && flags.Changed(name) {
			*dst, err = flags.GetBool(name)
		}
	}
	slice := func(name string, dst *[]string) {
		if err == nil && flags.Changed(name) {
			*dst, err = flags.GetStringSlice(name)
		}
	}

	str(flagDriver, &conf.Driver)
	str(flagDSN, &conf.DSN)
	str(flagHost, &conf.Host)
	integer(flagPort, &conf.Port)
	str(flagUser, &conf.User)
	str(flagPassword, &conf.Password)
	str(flagDatabase, &conf.Database)
	slice(flagModels, &conf.Models)
	slice(flagModelsExclude, &conf.ModelsExclude)
	str(flagModelName, &conf.ModelName)
	integer(flagLimit, &conf.Limit)
	str(flagWhere, &conf.Where)
	str(flagOrderBy, &conf.OrderBy)
	integer(flagBatchSize, &conf.BatchSize)
	slice(flagExclude, &conf.Exclude)
	boolean(flagImport, &conf.Import.Enabled)
	str(flagFile, &conf.File)
	boolean(flagAppend, &conf.Append)
	str(flagRoot, &conf.RootDir)
	str(flagFilesDir, &conf.FilesDir)
	str(flagBlobRoot, &conf.BlobRoot)
	str(flagBlobStorage, &conf.BlobStorage)
	slice(flagHasOneAttached, &conf.HasOneAttached)
	slice(flagHasManyAttached, &conf.HasManyAttached)
	slice(flagRichText, &conf.RichText)
	str(flagConsistency, &conf.Consistency)
	str(flagStatusAddr, &conf.StatusAddr)
	str(flagLogLevel, &conf.LogLevel)
	str(flagLogFile, &conf.LogFile)
	str(flagLogFormat, &conf.LogFormat)
	if err != nil {
		return errors.Trace(err)
	}

	if flags.Changed(flagImportOption) {
		raw, err := flags.GetStringArray(flagImportOption)
		if err != nil {
			return errors.Trace(err)
		}
		opts, err := parseImportOptions(raw)
		if err != nil {
			return err
		}
		conf.Import = ImportMode{Enabled: true, Options: opts}
	}
	if flags.Changed(flagFlushSize) {
		s, err := flags.GetString(flagFlushSize)
		if err != nil {
			return errors.Trace(err)
		}
		size, err := units.RAMInBytes(s)
		if err != nil {
			return errors.Annotatef(err, "invalid --%s", flagFlushSize)
		}
		conf.FlushSize = uint64(size)
	}
	return nil
}

// ParseFromEnv applies the rake task style environment variables found in
// environ, a list of KEY=VALUE entries like os.Environ returns.
func (conf *Config) ParseFromEnv(environ []string) error {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		if idx := strings.IndexByte(kv, '='); idx > 0 {
			env[kv[:idx]] = kv[idx+1:]
		}
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	if v, ok := lookup("APPEND"); ok {
		conf.Append = strings.EqualFold(strings.TrimSpace(v), "true")
	}
	if v, ok := lookup("BATCH_SIZE"); ok && v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.Annotate(err, "invalid BATCH_SIZE")
		}
		conf.BatchSize = n
	}
	if v, ok := lookup("EXCLUDE"); ok {
		conf.Exclude = splitList(v)
	}
	if v, ok := lookup("FILE"); ok && v != "" {
		conf.File = v
	}
	if v, ok := lookup("LIMIT"); ok && v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.Annotate(err, "invalid LIMIT")
		}
		conf.Limit = n
	}
	for _, key := range []string{"MODEL", "MODELS"} {
		if v, ok := lookup(key); ok && v != "" {
			conf.Models = splitList(v)
		}
	}
	if v, ok := lookup("MODELS_EXCLUDE"); ok && v != "" {
		conf.ModelsExclude = splitList(v)
	}
	if v, ok := lookup("IMPORT"); ok {
		conf.Import.Enabled = strings.EqualFold(strings.TrimSpace(v), "true")
	}
	if v, ok := lookup("IMPORT_OPTIONS"); ok && v != "" {
		opts, err := parseImportOptions(splitList(v))
		if err != nil {
			return err
		}
		conf.Import = ImportMode{Enabled: true, Options: opts}
	}
	return nil
}

// LoadFile merges the YAML config file at path into conf.
func (conf *Config) LoadFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return errors.Trace(err)
	}
	if err := yaml.Unmarshal(content, conf); err != nil {
		return errors.Annotatef(err, "parse config file %s", path)
	}
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	list := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			list = append(list, p)
		}
	}
	return list
}

func parseImportOptions(raw []string) ([]ImportOption, error) {
	opts := make([]ImportOption, 0, len(raw))
	for _, kv := range raw {
		idx := strings.IndexByte(kv, '=')
		if idx <= 0 {
			return nil, errors.Errorf("import option %q is not key=value", kv)
		}
		opts = append(opts, ImportOption{
			Key:   strings.TrimSpace(kv[:idx]),
			Value: strings.TrimSpace(kv[idx+1:]),
		})
	}
	return opts, nil
}

func adjustConfig(conf *Config) error {
	if conf.BatchSize < 0 {
		return errors.Errorf("batch size must be positive, got %d", conf.BatchSize)
	}
	if conf.BatchSize == 0 {
		conf.BatchSize = DefaultBatchSize
	}
	if conf.Exclude == nil {
		conf.Exclude = append([]string{}, defaultExclude...)
	}
	if conf.Limit < 0 {
		return errors.Errorf("limit must not be negative, got %d", conf.Limit)
	}
	if conf.FlushSize == 0 {
		conf.FlushSize = defaultFlushSize
	}
	if conf.FilesDir == "" {
		conf.FilesDir = DefaultFilesDir
	}
	if conf.RootDir == "" {
		conf.RootDir = "."
	}
	switch conf.Consistency {
	case "":
		conf.Consistency = consistencyTypeAuto
	case consistencyTypeAuto, consistencyTypeSnapshot, consistencyTypeNone:
	default:
		return errors.Errorf("invalid consistency option %s", conf.Consistency)
	}
	return nil
}

// GetDSN returns the data source name of the configured database.
func (conf *Config) GetDSN() (string, error) {
	if conf.DSN != "" {
		return conf.DSN, nil
	}
	d, err := dialectFor(conf.Driver)
	if err != nil {
		return "", err
	}
	addr := net.JoinHostPort(conf.Host, strconv.Itoa(conf.Port))
	switch d.(type) {
	case mysqlDialect:
		cfg := mysql.NewConfig()
		cfg.User = conf.User
		cfg.Passwd = conf.Password
		cfg.Net = "tcp"
		cfg.Addr = addr
		cfg.DBName = conf.Database
		cfg.Params = map[string]string{"charset": "utf8mb4"}
		return cfg.FormatDSN(), nil
	case postgresDialect:
		u := &url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(conf.User, conf.Password),
			Host:   addr,
			Path:   "/" + conf.Database,
		}
		return u.String(), nil
	default:
		if conf.Database == "" {
			return "", errors.New("sqlite needs --database to name the database file")
		}
		return conf.Database, nil
	}
}

// OpenDB opens the configured database.
func OpenDB(conf *Config) (*sql.DB, error) {
	d, err := dialectFor(conf.Driver)
	if err != nil {
		return nil, err
	}
	dsn, err := conf.GetDSN()
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(d.driverName(), dsn)
	return db, errors.Trace(err)
}
