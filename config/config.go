// Configuration for sacctcollapse: a YAML file, overridden by SACCTCOLLAPSE_* environment
// variables, checked by struct validation and a few cross-field rules.

package config

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"sacctcollapse/derive"
	"sacctcollapse/table"
)

const (
	EnvPrefix = "SACCTCOLLAPSE"

	DefaultVariant       = "first-pass"
	DefaultDelimiter     = "|"
	DefaultWorkers       = 4
	DefaultListen        = ":8087"
	DefaultMaxBodyBytes  = 256 << 20
	DefaultPostgresTable = "collapsed_jobs"
	DefaultServiceName   = "sacctcollapse"
	DefaultLogLevel      = "warning"
)

type Config struct {
	Variant    string             `mapstructure:"variant" validate:"oneof=first-pass analytic"`
	Delimiter  string             `mapstructure:"delimiter" validate:"delimiter"`
	NullTokens []string           `mapstructure:"null_tokens"`
	Costs      map[string]float64 `mapstructure:"costs" validate:"dive,gt=0"`
	Workers    int                `mapstructure:"workers" validate:"min=1,max=256"`
	LogLevel   string             `mapstructure:"log_level" validate:"oneof=debug info warning warn error critical"`

	Input   InputConfig   `mapstructure:"input"`
	Sinks   SinksConfig   `mapstructure:"sinks"`
	Server  ServerConfig  `mapstructure:"server"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// Partitions are read from Dir, or from S3 if it is configured.
type InputConfig struct {
	Base string    `mapstructure:"base"`
	Dir  string    `mapstructure:"dir"`
	S3   *S3Config `mapstructure:"s3" validate:"omitempty"`
}

type S3Config struct {
	Bucket          string `mapstructure:"bucket" validate:"required"`
	Prefix          string `mapstructure:"prefix"`
	Region          string `mapstructure:"region" validate:"required"`
	Endpoint        string `mapstructure:"endpoint" validate:"omitempty,url"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

// Every configured sink receives every result.
type SinksConfig struct {
	File     *FileSinkConfig `mapstructure:"file" validate:"omitempty"`
	S3       *S3Config       `mapstructure:"s3" validate:"omitempty"`
	Postgres *PostgresConfig `mapstructure:"postgres" validate:"omitempty"`
	Database *DatabaseConfig `mapstructure:"database" validate:"omitempty"`
	Kafka    *KafkaConfig    `mapstructure:"kafka" validate:"omitempty"`
}

type FileSinkConfig struct {
	Dir string `mapstructure:"dir" validate:"required"`
}

type PostgresConfig struct {
	DSN   string `mapstructure:"dsn" validate:"required"`
	Table string `mapstructure:"table" validate:"omitempty,max=63"`
}

// A job database through gorm: a local SQLite file or a PostgreSQL server.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=sqlite postgres"`
	Path   string `mapstructure:"path" validate:"required_if=Driver sqlite"`
	DSN    string `mapstructure:"dsn" validate:"required_if=Driver postgres"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers" validate:"required,min=1,dive,hostname_port"`
	Topic   string   `mapstructure:"topic" validate:"required"`
}

type ServerConfig struct {
	Listen       string   `mapstructure:"listen" validate:"required"`
	MaxBodyBytes int64    `mapstructure:"max_body_bytes" validate:"gt=0"`
	CORSOrigins  []string `mapstructure:"cors_origins"`

	// Collapse requests per second, with bursts up to Burst.  Zero means unlimited.
	RateLimit float64 `mapstructure:"rate_limit" validate:"gte=0"`
	Burst     int     `mapstructure:"burst" validate:"gte=0"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// Load reads the file at `path`, or if path is empty looks for sacctcollapse.yaml in the working
// directory and proceeds with defaults if there is none.  The result is validated.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("sacctcollapse")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Defaults is the configuration used when no file is given and no environment is set.
func Defaults() *Config {
	cfg := &Config{
		Variant:   DefaultVariant,
		Delimiter: DefaultDelimiter,
		Workers:   DefaultWorkers,
		LogLevel:  DefaultLogLevel,
		Server: ServerConfig{
			Listen:       DefaultListen,
			MaxBodyBytes: DefaultMaxBodyBytes,
		},
		Tracing: TracingConfig{ServiceName: DefaultServiceName},
	}
	cfg.applyDefaults()
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("variant", DefaultVariant)
	v.SetDefault("delimiter", DefaultDelimiter)
	v.SetDefault("workers", DefaultWorkers)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("input.base", "")
	v.SetDefault("input.dir", "")
	v.SetDefault("server.listen", DefaultListen)
	v.SetDefault("server.max_body_bytes", DefaultMaxBodyBytes)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", DefaultServiceName)
}

func (c *Config) applyDefaults() {
	if c.NullTokens == nil {
		c.NullTokens = append([]string(nil), table.DefaultNullTokens...)
	}
	if c.Sinks.Postgres != nil && c.Sinks.Postgres.Table == "" {
		c.Sinks.Postgres.Table = DefaultPostgresTable
	}
	if c.Sinks.Database != nil && c.Sinks.Database.Driver == "" {
		c.Sinks.Database.Driver = "sqlite"
	}
	if c.Server.RateLimit > 0 && c.Server.Burst == 0 {
		c.Server.Burst = int(c.Server.RateLimit) + 1
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("delimiter", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if utf8.RuneCountInString(s) != 1 {
			return false
		}
		r, _ := utf8.DecodeRuneInString(s)
		return r != '"' && r != '\r' && r != '\n' && r != utf8.RuneError
	})
	return v
}

// Validate checks field constraints and the rules that span fields.  All problems are reported.
func (c *Config) Validate() error {
	var errs []error
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Errorf("config: %s fails %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
		} else {
			errs = append(errs, err)
		}
	}
	if c.Variant == "analytic" && len(c.Costs) == 0 {
		errs = append(errs, errors.New("config: the analytic variant needs cost coefficients"))
	}
	if c.Input.S3 != nil && c.Input.Dir != "" {
		errs = append(errs, errors.New("config: input has both dir and s3"))
	}
	return errors.Join(errs...)
}

func (c *Config) DelimiterRune() rune {
	r, _ := utf8.DecodeRuneInString(c.Delimiter)
	return r
}

func (c *Config) Format() table.Format {
	return table.Format{
		Delimiter:  c.DelimiterRune(),
		NullTokens: c.NullTokens,
	}
}

func (c *Config) CostTable() (derive.CostTable, error) {
	return derive.NewCostTable(c.Costs)
}
