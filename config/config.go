package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	DetCover DetCoverConfig `yaml:"detcover"`
}

// DetCoverConfig is the project configuration.
type DetCoverConfig struct {
	OperationStore OperationStoreConfig `yaml:"operation_store"`
	Sources        []SourceConfig       `yaml:"sources"`
	Analysis       AnalysisConfig       `yaml:"analysis"`
	Cache          CacheConfig          `yaml:"cache"`
	ReportCache    ReportCacheConfig    `yaml:"report_cache"`
	Publish        PublishConfig        `yaml:"publish"`
	Server         ServerConfig         `yaml:"server"`
	Logging        LoggingConfig        `yaml:"logging"`
}

// OperationStoreConfig controls how recorded operations are located.
type OperationStoreConfig struct {
	Mode    string        `yaml:"mode"` // http|memory
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

// SourceConfig describes one detection source. Fields beyond the common
// block only apply to specific source types.
type SourceConfig struct {
	Name        string        `yaml:"name"`
	Type        string        `yaml:"type"` // splunk|elastic|qradar|arcsight|simulated|sigma
	Enabled     bool          `yaml:"enabled"`
	APIEndpoint string        `yaml:"api_endpoint"`
	APIToken    string        `yaml:"api_token"`
	VerifyTLS   bool          `yaml:"verify_tls"`
	Timeout     time.Duration `yaml:"timeout"`

	// Simulated source knobs.
	DetectProbability float64       `yaml:"detect_probability"`
	QueryDelay        time.Duration `yaml:"query_delay"`

	// Sigma source knobs.
	EventsPath string `yaml:"events_path"`
	RulesPath  string `yaml:"rules_path"`
}

// AnalysisConfig controls analysis defaults.
type AnalysisConfig struct {
	DefaultTimeframeHours int `yaml:"default_timeframe_hours"`
}

// CacheConfig controls the in-process query cache.
type CacheConfig struct {
	Enabled    bool          `yaml:"enabled"`
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
}

// ReportCacheConfig controls the optional Redis-backed report cache.
type ReportCacheConfig struct {
	Enabled   bool          `yaml:"enabled"`
	TTL       time.Duration `yaml:"ttl"`
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	KeyPrefix string        `yaml:"key_prefix"`
}

// PublishConfig controls report publication to NATS.
type PublishConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// ServerConfig controls the HTTP API listener.
type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// LoggingConfig controls logging output.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
