package domain

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete Kestrel configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server" yaml:"server"`

	// Tier determines infrastructure defaults
	Tier Tier `json:"tier" yaml:"tier"`

	// Component configurations
	Repository RepositoryConfig `json:"repository" yaml:"repository"`
	Cache      CacheConfig      `json:"cache" yaml:"cache"`
	EventBus   EventBusConfig   `json:"eventBus" yaml:"eventBus"`

	// All scoring thresholds, weights and bonus tables
	Scoring ScoringConfig `json:"scoring" yaml:"scoring"`

	// Observability
	Logging LoggingConfig `json:"logging" yaml:"logging"`
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host" yaml:"host"`
	Port         int    `json:"port" yaml:"port"`
	ReadTimeout  int    `json:"readTimeout" yaml:"readTimeout"`   // seconds
	WriteTimeout int    `json:"writeTimeout" yaml:"writeTimeout"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	ServiceName string `json:"serviceName" yaml:"serviceName"`
	Endpoint    string `json:"endpoint,omitempty" yaml:"endpoint"`
}

// Tier represents the product tier.
type Tier string

const (
	// TierCommunity is the free tier with SQLite + channels + LRU cache
	TierCommunity Tier = "community"

	// TierPro is the paid tier with PostgreSQL + NATS + Redis
	TierPro Tier = "pro"
)

// ScoringConfig consolidates every threshold the scoring components use.
// Defaults are documented product decisions; tenants tune them here
// rather than in rule bodies.
type ScoringConfig struct {
	// Engagement scorer shares (sum to 100)
	EngagementMaxLevel        int     `json:"engagementMaxLevel" yaml:"engagementMaxLevel"`
	EngagementLevelShare      float64 `json:"engagementLevelShare" yaml:"engagementLevelShare"`
	EngagementBadgeShare      float64 `json:"engagementBadgeShare" yaml:"engagementBadgeShare"`
	EngagementExperienceShare float64 `json:"engagementExperienceShare" yaml:"engagementExperienceShare"`

	// Lead scorer shares (sum to 100) and classification cutoffs
	LeadBalanceShare    float64 `json:"leadBalanceShare" yaml:"leadBalanceShare"`
	LeadEngagementShare float64 `json:"leadEngagementShare" yaml:"leadEngagementShare"`
	LeadRecencyShare    float64 `json:"leadRecencyShare" yaml:"leadRecencyShare"`
	LeadBalanceCeiling  float64 `json:"leadBalanceCeiling" yaml:"leadBalanceCeiling"` // balance earning the full share
	LeadRecencyFullDays int     `json:"leadRecencyFullDays" yaml:"leadRecencyFullDays"`
	LeadRecencyZeroDays int     `json:"leadRecencyZeroDays" yaml:"leadRecencyZeroDays"`
	HotCutoff           float64 `json:"hotCutoff" yaml:"hotCutoff"`
	WarmCutoff          float64 `json:"warmCutoff" yaml:"warmCutoff"`

	// Churn tier probability cutoffs (Low < Medium < High < Critical)
	ChurnMediumCutoff   float64 `json:"churnMediumCutoff" yaml:"churnMediumCutoff"`
	ChurnHighCutoff     float64 `json:"churnHighCutoff" yaml:"churnHighCutoff"`
	ChurnCriticalCutoff float64 `json:"churnCriticalCutoff" yaml:"churnCriticalCutoff"`

	// Inactivity contribution to churn probability
	ChurnInactivityWeight  float64 `json:"churnInactivityWeight" yaml:"churnInactivityWeight"` // points per inactive day
	ChurnInactivityCeiling float64 `json:"churnInactivityCeiling" yaml:"churnInactivityCeiling"`

	// Beyond this many inactive days a customer is considered lost
	// rather than reactivation-eligible
	ReactivationMaxDays int `json:"reactivationMaxDays" yaml:"reactivationMaxDays"`

	// KYC completeness buckets
	KYCCompleteCutoff float64 `json:"kycCompleteCutoff" yaml:"kycCompleteCutoff"`
	KYCPartialCutoff  float64 `json:"kycPartialCutoff" yaml:"kycPartialCutoff"`
	KYCPendingCutoff  float64 `json:"kycPendingCutoff" yaml:"kycPendingCutoff"`

	// Per-segment bonus tables
	SegmentServiceBonus map[Segment]float64 `json:"segmentServiceBonus" yaml:"segmentServiceBonus"`
	SegmentGrowthBase   map[Segment]float64 `json:"segmentGrowthBase" yaml:"segmentGrowthBase"`
	SegmentChurnBase    map[Segment]float64 `json:"segmentChurnBase" yaml:"segmentChurnBase"`

	// Fields counted toward profile completeness
	RequiredFields []string `json:"requiredFields" yaml:"requiredFields"`

	// Dispatch frequency cap per customer per day
	DailyDispatchCap int `json:"dailyDispatchCap" yaml:"dailyDispatchCap"`
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string `json:"driver" yaml:"driver"`

	// SQLite specific
	SQLitePath string `json:"sqlitePath" yaml:"sqlitePath"`

	// PostgreSQL specific
	PostgresHost     string `json:"postgresHost" yaml:"postgresHost"`
	PostgresPort     int    `json:"postgresPort" yaml:"postgresPort"`
	PostgresUser     string `json:"postgresUser" yaml:"postgresUser"`
	PostgresPassword string `json:"postgresPassword" yaml:"postgresPassword"`
	PostgresDB       string `json:"postgresDb" yaml:"postgresDb"`
	PostgresSSLMode  string `json:"postgresSslMode" yaml:"postgresSslMode"`

	// Connection pool settings
	MaxOpenConns    int           `json:"maxOpenConns" yaml:"maxOpenConns"`
	MaxIdleConns    int           `json:"maxIdleConns" yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime" yaml:"connMaxLifetime"`
}

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./kestrel.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     300, // 5 minutes
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Scoring: DefaultScoringConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "kestrel",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "kestrel",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}

// DefaultScoringConfig returns the documented default thresholds.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		EngagementMaxLevel:        10,
		EngagementLevelShare:      40,
		EngagementBadgeShare:      30,
		EngagementExperienceShare: 30,

		LeadBalanceShare:    40,
		LeadEngagementShare: 35,
		LeadRecencyShare:    25,
		LeadBalanceCeiling:  50000,
		LeadRecencyFullDays: 7,
		LeadRecencyZeroDays: 90,
		HotCutoff:           70,
		WarmCutoff:          40,

		ChurnMediumCutoff:   25,
		ChurnHighCutoff:     50,
		ChurnCriticalCutoff: 75,

		ChurnInactivityWeight:  0.35,
		ChurnInactivityCeiling: 35,

		ReactivationMaxDays: 180,

		KYCCompleteCutoff: 90,
		KYCPartialCutoff:  60,
		KYCPendingCutoff:  30,

		SegmentServiceBonus: map[Segment]float64{
			SegmentChampions:   20,
			SegmentLoyal:       15,
			SegmentPotential:   8,
			SegmentAtRisk:      3,
			SegmentHibernating: 0,
		},
		SegmentGrowthBase: map[Segment]float64{
			SegmentChampions:   65,
			SegmentLoyal:       55,
			SegmentPotential:   40,
			SegmentAtRisk:      20,
			SegmentHibernating: 10,
		},
		SegmentChurnBase: map[Segment]float64{
			SegmentChampions:   5,
			SegmentLoyal:       10,
			SegmentPotential:   20,
			SegmentAtRisk:      45,
			SegmentHibernating: 60,
		},

		RequiredFields: []string{
			"name", "email", "phone", "dateOfBirth",
			"address", "segment", "consent", "kyc",
		},

		DailyDispatchCap: 3,
	}
}

// LoadConfigFile reads a YAML configuration file over the given base
// config. A missing file is an error; missing keys keep base values.
func LoadConfigFile(path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := *base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &cfg, nil
}
