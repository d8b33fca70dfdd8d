package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Partition PartitionConfig `yaml:"partition" mapstructure:"partition"`
	Match     MatchConfig     `yaml:"match" mapstructure:"match"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Postgis   PostgisConfig   `yaml:"postgis" mapstructure:"postgis"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// PartitionConfig selects and tunes the demand partitioner.
type PartitionConfig struct {
	Strategy  string       `yaml:"strategy" mapstructure:"strategy"`
	Threshold float64      `yaml:"threshold" mapstructure:"threshold"`
	Workers   int          `yaml:"workers" mapstructure:"workers"`
	KMeans    KMeansConfig `yaml:"kmeans" mapstructure:"kmeans"`
}

// KMeansConfig tunes the k-means strategy.
type KMeansConfig struct {
	WeightPerCluster float64 `yaml:"weight_per_cluster" mapstructure:"weight_per_cluster"`
	MaxIterations    int     `yaml:"max_iterations" mapstructure:"max_iterations"`
	Seed             int64   `yaml:"seed" mapstructure:"seed"`
}

// MatchConfig configures facility matching.
type MatchConfig struct {
	Capacity     int      `yaml:"capacity" mapstructure:"capacity"`
	AutoCapacity bool     `yaml:"auto_capacity" mapstructure:"auto_capacity"`
	AccessValues []string `yaml:"access_values" mapstructure:"access_values"`
	SkipServed   bool     `yaml:"skip_served" mapstructure:"skip_served"`
}

// StoreConfig configures the run history database.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PostgisConfig holds the PostGIS connection settings.
type PostgisConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
	SSLMode  string `yaml:"sslmode" mapstructure:"sslmode"`
}

// DSN returns the lib/pq connection string.
func (p PostgisConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
}

// OutputConfig configures generated files.
type OutputConfig struct {
	Dir         string `yaml:"dir" mapstructure:"dir"`
	Format      string `yaml:"format" mapstructure:"format"`
	Coordinates string `yaml:"coordinates" mapstructure:"coordinates"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

var (
	strategies  = []string{"bisect", "kmeans"}
	formats     = []string{"csv", "json", "yaml"}
	coordinates = []string{"planar", "geographic"}
)

// Load reads configuration from file and environment. An empty file name
// looks for an optional planner.yaml in the working directory; a named file
// must exist.
func Load(file string) (*Config, error) {
	v := viper.New()

	// Config file
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("planner")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("PLANNER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("partition.strategy", "bisect")
	v.SetDefault("partition.threshold", 8.0)
	v.SetDefault("partition.workers", 1)
	v.SetDefault("partition.kmeans.weight_per_cluster", 10.0)
	v.SetDefault("partition.kmeans.max_iterations", 100)
	v.SetDefault("partition.kmeans.seed", 1)
	v.SetDefault("match.capacity", 10)
	v.SetDefault("match.auto_capacity", false)
	v.SetDefault("match.access_values", []string{"yes", "electric_vehicle", "customers"})
	v.SetDefault("match.skip_served", true)
	v.SetDefault("store.path", "planner.db")
	v.SetDefault("postgis.host", "localhost")
	v.SetDefault("postgis.port", 5432)
	v.SetDefault("postgis.user", "postgres")
	v.SetDefault("postgis.password", "postgres")
	v.SetDefault("postgis.database", "planner")
	v.SetDefault("postgis.sslmode", "disable")
	v.SetDefault("output.dir", "generated")
	v.SetDefault("output.format", "csv")
	v.SetDefault("output.coordinates", "planar")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional unless named)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || file != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var problems []string

	if !slices.Contains(strategies, c.Partition.Strategy) {
		problems = append(problems, fmt.Sprintf("partition.strategy must be one of %v, got %q", strategies, c.Partition.Strategy))
	}
	if c.Partition.Threshold <= 0 {
		problems = append(problems, "partition.threshold must be positive")
	}
	if c.Partition.Workers < 1 {
		problems = append(problems, "partition.workers must be at least 1")
	}
	if c.Partition.Strategy == "kmeans" && c.Partition.KMeans.WeightPerCluster <= 0 {
		problems = append(problems, "partition.kmeans.weight_per_cluster must be positive")
	}
	if c.Match.Capacity < 0 {
		problems = append(problems, "match.capacity must not be negative")
	}
	if !slices.Contains(formats, c.Output.Format) {
		problems = append(problems, fmt.Sprintf("output.format must be one of %v, got %q", formats, c.Output.Format))
	}
	if !slices.Contains(coordinates, c.Output.Coordinates) {
		problems = append(problems, fmt.Sprintf("output.coordinates must be one of %v, got %q", coordinates, c.Output.Coordinates))
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
