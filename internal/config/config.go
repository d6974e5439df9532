package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// FileName is the optional configuration file looked up in the config dir.
const FileName = "reacture.config.json"

// EnvPrefix prefixes environment overrides, e.g. REACTURE_STORAGE_TYPE.
const EnvPrefix = "REACTURE"

// SimulationConfig selects the arena of a headless run
type SimulationConfig struct {
	Environment string        `json:"environment" mapstructure:"environment"`
	Seed        int64         `json:"seed" mapstructure:"seed"`
	Duration    time.Duration `json:"duration" mapstructure:"duration"`
	TickRate    int           `json:"tickRate" mapstructure:"tickRate"`
	PlayerID    string        `json:"playerId" mapstructure:"playerId"`
	PlayerName  string        `json:"playerName" mapstructure:"playerName"`
}

// TelemetryConfig controls sampling and frame capture
type TelemetryConfig struct {
	SampleRateHz  int  `json:"sampleRateHz" mapstructure:"sampleRateHz"`
	CaptureFrames bool `json:"captureFrames" mapstructure:"captureFrames"`
	FrameSize     int  `json:"frameSize" mapstructure:"frameSize"`
}

// SamplePeriod is the interval between periodic samples.
func (c TelemetryConfig) SamplePeriod() time.Duration {
	if c.SampleRateHz <= 0 {
		return 0
	}
	return time.Second / time.Duration(c.SampleRateHz)
}

// MemoryConfig holds dataset exporter settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds sqlite backend settings
type SQLiteConfig struct {
	Path         string        `json:"path" mapstructure:"path"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// WebSocketConfig holds live stream settings
type WebSocketConfig struct {
	URL    string `json:"url" mapstructure:"url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// StorageConfig selects the storage backends
type StorageConfig struct {
	Type      string          `json:"type" mapstructure:"type"`
	Memory    MemoryConfig    `json:"memory" mapstructure:"memory"`
	SQLite    SQLiteConfig    `json:"sqlite" mapstructure:"sqlite"`
	WebSocket WebSocketConfig `json:"websocket" mapstructure:"websocket"`
}

// Types returns the configured backend types; several may be given comma separated.
func (c StorageConfig) Types() []string {
	var types []string
	for _, t := range strings.Split(c.Type, ",") {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, t)
		}
	}
	return types
}

// DBConfig holds postgres connection settings
type DBConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// InfluxConfig holds InfluxDB connection settings
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
	Bucket   string `json:"bucket" mapstructure:"bucket"`
}

// URL is the server address.
func (c InfluxConfig) URL() string {
	return fmt.Sprintf("%s://%s:%s", c.Protocol, c.Host, c.Port)
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
	Metrics      bool          `json:"metrics" mapstructure:"metrics"`
}

// GraylogConfig holds the GELF sink settings
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// ServerConfig holds the dataset server settings
type ServerConfig struct {
	Address string `json:"address" mapstructure:"address"`
	DataDir string `json:"dataDir" mapstructure:"dataDir"`
	Secret  string `json:"secret" mapstructure:"secret"`
}

// APIConfig holds the dataset collector settings
type APIConfig struct {
	ServerURL string        `json:"serverUrl" mapstructure:"serverUrl"`
	APIKey    string        `json:"apiKey" mapstructure:"apiKey"`
	Timeout   time.Duration `json:"timeout" mapstructure:"timeout"`
	Upload    bool          `json:"upload" mapstructure:"upload"`
}

// SetDefaults registers every default value.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./reacturelogs")

	viper.SetDefault("simulation.environment", "earthquake")
	viper.SetDefault("simulation.seed", 0)
	viper.SetDefault("simulation.duration", "3m")
	viper.SetDefault("simulation.tickRate", 60)
	viper.SetDefault("simulation.playerId", "anonymous")
	viper.SetDefault("simulation.playerName", "Anonymous")

	viper.SetDefault("telemetry.sampleRateHz", 10)
	viper.SetDefault("telemetry.captureFrames", true)
	viper.SetDefault("telemetry.frameSize", 128)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./datasets")
	viper.SetDefault("storage.memory.compressOutput", false)
	viper.SetDefault("storage.sqlite.path", "./reacture.db")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.websocket.url", "ws://localhost:5000/api/stream")
	viper.SetDefault("storage.websocket.secret", "")

	viper.SetDefault("api.serverUrl", "http://localhost:5000")
	viper.SetDefault("api.apiKey", "")
	viper.SetDefault("api.timeout", "30s")
	viper.SetDefault("api.upload", false)

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "reacture")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "reacture")
	viper.SetDefault("influx.bucket", "robot-telemetry")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "reacture-engine")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
	viper.SetDefault("otel.metrics", false)

	viper.SetDefault("server.address", ":5000")
	viper.SetDefault("server.dataDir", "./datasets")
	viper.SetDefault("server.secret", "")
}

// Load sets defaults, enables REACTURE_ environment overrides and reads the
// config file from configDir if there is one. A missing file is not an error.
func Load(configDir string) error {
	SetDefaults()

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(FileName)
	viper.SetConfigType("json")
	viper.AddConfigPath(configDir)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// BindFlags binds command line flags to config keys. Flags only override the
// config when set explicitly.
func BindFlags(fs *pflag.FlagSet, keys map[string]string) error {
	for key, flag := range keys {
		f := fs.Lookup(flag)
		if f == nil {
			return fmt.Errorf("unknown flag %q for key %q", flag, key)
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetSimulationConfig returns the simulation settings.
func GetSimulationConfig() SimulationConfig {
	return SimulationConfig{
		Environment: viper.GetString("simulation.environment"),
		Seed:        viper.GetInt64("simulation.seed"),
		Duration:    viper.GetDuration("simulation.duration"),
		TickRate:    viper.GetInt("simulation.tickRate"),
		PlayerID:    viper.GetString("simulation.playerId"),
		PlayerName:  viper.GetString("simulation.playerName"),
	}
}

// GetTelemetryConfig returns the sampling settings.
func GetTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		SampleRateHz:  viper.GetInt("telemetry.sampleRateHz"),
		CaptureFrames: viper.GetBool("telemetry.captureFrames"),
		FrameSize:     viper.GetInt("telemetry.frameSize"),
	}
}

// GetStorageConfig returns the storage settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			Path:         viper.GetString("storage.sqlite.path"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
		WebSocket: WebSocketConfig{
			URL:    viper.GetString("storage.websocket.url"),
			Secret: viper.GetString("storage.websocket.secret"),
		},
	}
}

// GetDBConfig returns the postgres settings.
func GetDBConfig() DBConfig {
	return DBConfig{
		Host:     viper.GetString("db.host"),
		Port:     viper.GetString("db.port"),
		Username: viper.GetString("db.username"),
		Password: viper.GetString("db.password"),
		Database: viper.GetString("db.database"),
	}
}

// GetInfluxConfig returns the InfluxDB settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
		Metrics:      viper.GetBool("otel.metrics"),
	}
}

// GetGraylogConfig returns the GELF sink settings.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

// GetServerConfig returns the dataset server settings.
func GetServerConfig() ServerConfig {
	return ServerConfig{
		Address: viper.GetString("server.address"),
		DataDir: viper.GetString("server.dataDir"),
		Secret:  viper.GetString("server.secret"),
	}
}

// GetAPIConfig returns the dataset collector settings.
func GetAPIConfig() APIConfig {
	return APIConfig{
		ServerURL: viper.GetString("api.serverUrl"),
		APIKey:    viper.GetString("api.apiKey"),
		Timeout:   viper.GetDuration("api.timeout"),
		Upload:    viper.GetBool("api.upload"),
	}
}
