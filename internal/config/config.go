package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv   = "MATCH_ENGINE_CONFIG"
	httpAddrEnv     = "MATCH_ENGINE_ADDR"
	databasePathEnv = "MATCH_ENGINE_DB"
	logLevelEnv     = "MATCH_ENGINE_LOG_LEVEL"
	seedFileEnv     = "MATCH_ENGINE_SEED_FILE"
	tunablesEnv     = "MATCH_ENGINE_TUNABLES"
	visionURLEnv    = "MATCH_ENGINE_VISION_URL"
	visionKeyEnv    = "MATCH_ENGINE_VISION_API_KEY"
)

// Config holds high-level settings required across the application.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Database    DatabaseConfig    `yaml:"database"`
	Logging     LoggingConfig     `yaml:"logging"`
	Cache       CacheConfig       `yaml:"cache"`
	Enhancement EnhancementConfig `yaml:"enhancement"`
	Vision      VisionConfig      `yaml:"vision"`
	Scoring     ScoringConfig     `yaml:"scoring"`
}

// HTTPConfig describes the API listener.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// DatabaseConfig describes the SQLite file backing listings and cached
// results. SeedFile, when set, is a JSON listings file loaded at startup.
type DatabaseConfig struct {
	Path     string `yaml:"path"`
	SeedFile string `yaml:"seedFile"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// CacheConfig controls result caching and the cleanup schedule.
type CacheConfig struct {
	TTL         time.Duration `yaml:"ttl"`
	CleanupCron string        `yaml:"cleanupCron"`
}

// EnhancementConfig bounds the visual-analysis pass.
type EnhancementConfig struct {
	MaxCandidates       int     `yaml:"maxCandidates"`
	MaxImagesPerListing int     `yaml:"maxImagesPerListing"`
	CallsPerSecond      float64 `yaml:"callsPerSecond"`
	Burst               int     `yaml:"burst"`
}

// VisionConfig wires the external visual-analysis service. An empty endpoint
// disables enhancement and the engine serves basic results only.
type VisionConfig struct {
	Endpoint string        `yaml:"endpoint"`
	APIKey   string        `yaml:"apiKey"`
	Timeout  time.Duration `yaml:"timeout"`
}

// ScoringConfig points at an optional tunables override file.
type ScoringConfig struct {
	TunablesFile string `yaml:"tunablesFile"`
	ReasonSeed   int64  `yaml:"reasonSeed"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(httpAddrEnv); v != "" {
		c.HTTP.Addr = v
	}
	if v := os.Getenv(databasePathEnv); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(seedFileEnv); v != "" {
		c.Database.SeedFile = v
	}
	if v := os.Getenv(tunablesEnv); v != "" {
		c.Scoring.TunablesFile = v
	}
	if v := os.Getenv(visionURLEnv); v != "" {
		c.Vision.Endpoint = v
	}
	if v := os.Getenv(visionKeyEnv); v != "" {
		c.Vision.APIKey = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.HTTP.Addr != "" {
		base.HTTP.Addr = override.HTTP.Addr
	}

	if override.Database.Path != "" {
		base.Database.Path = override.Database.Path
	}
	if override.Database.SeedFile != "" {
		base.Database.SeedFile = override.Database.SeedFile
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	if override.Cache.TTL > 0 {
		base.Cache.TTL = override.Cache.TTL
	}
	if override.Cache.CleanupCron != "" {
		base.Cache.CleanupCron = override.Cache.CleanupCron
	}

	if override.Enhancement.MaxCandidates > 0 {
		base.Enhancement.MaxCandidates = override.Enhancement.MaxCandidates
	}
	if override.Enhancement.MaxImagesPerListing > 0 {
		base.Enhancement.MaxImagesPerListing = override.Enhancement.MaxImagesPerListing
	}
	if override.Enhancement.CallsPerSecond > 0 {
		base.Enhancement.CallsPerSecond = override.Enhancement.CallsPerSecond
	}
	if override.Enhancement.Burst > 0 {
		base.Enhancement.Burst = override.Enhancement.Burst
	}

	if override.Vision.Endpoint != "" {
		base.Vision.Endpoint = override.Vision.Endpoint
	}
	if override.Vision.APIKey != "" {
		base.Vision.APIKey = override.Vision.APIKey
	}
	if override.Vision.Timeout > 0 {
		base.Vision.Timeout = override.Vision.Timeout
	}

	if override.Scoring.TunablesFile != "" {
		base.Scoring.TunablesFile = override.Scoring.TunablesFile
	}
	if override.Scoring.ReasonSeed != 0 {
		base.Scoring.ReasonSeed = override.Scoring.ReasonSeed
	}

	return base
}

func defaultConfig() Config {
	return Config{
		HTTP:     HTTPConfig{Addr: ":8080"},
		Database: DatabaseConfig{Path: "match-engine.db"},
		Logging:  LoggingConfig{Level: "info"},
		Cache: CacheConfig{
			TTL:         24 * time.Hour,
			CleanupCron: "17 * * * *",
		},
		Enhancement: EnhancementConfig{
			MaxCandidates:       5,
			MaxImagesPerListing: 4,
			CallsPerSecond:      0.5,
			Burst:               1,
		},
		Scoring: ScoringConfig{},
	}
}
