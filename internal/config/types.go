// Package config provides configuration loading for HydraDNS using Viper.
// Configuration is loaded from YAML files with automatic environment variable binding.
//
// Environment variables use the HYDRADNS_ prefix and underscore-separated keys:
//   - HYDRADNS_SERVER_HOST -> server.host
//   - HYDRADNS_SERVER_PORT -> server.port
//   - HYDRADNS_UPSTREAM_ADDRESS -> upstream.address
//
// DNS_PORT is bound as an additional alias for server.port, so the
// literal environment variable named by the spec works without the
// HYDRADNS_ prefix.
package config

import (
	"os"
	"strconv"
	"strings"
)

// WorkersMode specifies how worker count is determined.
type WorkersMode int

const (
	// WorkersAuto automatically determines worker count based on available CPUs.
	WorkersAuto WorkersMode = iota
	// WorkersFixed uses a specific worker count.
	WorkersFixed
)

// WorkerSetting represents the workers configuration.
type WorkerSetting struct {
	Mode  WorkersMode
	Value int
}

// String returns the string representation of the worker setting.
func (w WorkerSetting) String() string {
	if w.Mode == WorkersAuto {
		return "auto"
	}
	return strconv.Itoa(w.Value)
}

// ServerConfig contains server-related settings.
type ServerConfig struct {
	Host           string        `yaml:"host"            mapstructure:"host"`
	Port           int           `yaml:"port"            mapstructure:"port"`
	Workers        WorkerSetting `yaml:"-"               mapstructure:"-"`
	WorkersRaw     string        `yaml:"workers"         mapstructure:"workers"`
	MaxConcurrency int           `yaml:"max_concurrency" mapstructure:"max_concurrency"`
	EnableTCP      bool          `yaml:"enable_tcp"      mapstructure:"enable_tcp"`
	TCPFallback    bool          `yaml:"tcp_fallback"    mapstructure:"tcp_fallback"`
}

// UpstreamConfig contains the single upstream DNS server's settings.
type UpstreamConfig struct {
	// Address is host:port of the single configured upstream resolver.
	Address    string `yaml:"address"     mapstructure:"address"     json:"address"`
	UDPTimeout string `yaml:"udp_timeout" mapstructure:"udp_timeout" json:"udp_timeout"` // e.g. "3s"
	TCPTimeout string `yaml:"tcp_timeout" mapstructure:"tcp_timeout" json:"tcp_timeout"` // e.g. "5s"
	// CacheMaxEntries bounds the upstream response cache's LRU size.
	CacheMaxEntries int `yaml:"cache_max_entries" mapstructure:"cache_max_entries" json:"cache_max_entries"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level            string            `yaml:"level"             mapstructure:"level"             json:"level"`
	Structured       bool              `yaml:"structured"        mapstructure:"structured"        json:"structured"`
	StructuredFormat string            `yaml:"structured_format" mapstructure:"structured_format" json:"structured_format"`
	IncludePID       bool              `yaml:"include_pid"       mapstructure:"include_pid"       json:"include_pid"`
	ExtraFields      map[string]string `yaml:"extra_fields"      mapstructure:"extra_fields"      json:"extra_fields,omitempty"`
}

// SeedStoreConfig controls persistence of local authoritative seed records.
type SeedStoreConfig struct {
	// Path is the SQLite database file. Empty disables persistence
	// (the in-memory repository still works, seeds just don't survive
	// a restart).
	Path string `yaml:"path" mapstructure:"path" json:"path"`
}

// APIConfig contains admin API settings.
//
// Note: APIKey is intentionally treated as a secret and should not be returned by API endpoints.
type APIConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Host    string `yaml:"host"    mapstructure:"host"`
	Port    int    `yaml:"port"    mapstructure:"port"`
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
}

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig    `yaml:"server"    mapstructure:"server"`
	Upstream  UpstreamConfig  `yaml:"upstream"  mapstructure:"upstream"`
	Logging   LoggingConfig   `yaml:"logging"   mapstructure:"logging"`
	SeedStore SeedStoreConfig `yaml:"seedstore" mapstructure:"seedstore"`
	API       APIConfig       `yaml:"api"       mapstructure:"api"`
}

// ResolveConfigPath determines the config file path from flag or environment.
func ResolveConfigPath(flagValue string) string {
	if strings.TrimSpace(flagValue) != "" {
		return flagValue
	}
	if v := strings.TrimSpace(os.Getenv("HYDRADNS_CONFIG")); v != "" {
		return v
	}
	return ""
}

// Load loads configuration from a YAML file with environment variable overrides.
// This is the main entry point for loading configuration.
//
// Configuration priority (highest to lowest):
//  1. Environment variables (HYDRADNS_* and the DNS_PORT alias)
//  2. Config file values
//  3. Default values
func Load(path string) (*Config, error) {
	return loadFromSource(path)
}
