package domain

// Config holds the complete TenderWatch configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server" yaml:"server"`

	// Tier determines which backends are wired
	Tier Tier `json:"tier" yaml:"tier"`

	// Dataset generation and risk scoring
	Generator GeneratorConfig `json:"generator" yaml:"generator"`
	Scoring   ScoringConfig   `json:"scoring" yaml:"scoring"`
	Query     QueryConfig     `json:"query" yaml:"query"`

	// Component configurations
	Repository RepositoryConfig `json:"repository" yaml:"repository"`
	Cache      CacheConfig      `json:"cache" yaml:"cache"`
	EventBus   EventBusConfig   `json:"eventBus" yaml:"eventBus"`
	GraphDB    GraphDBConfig    `json:"graphDb" yaml:"graphDb"`
	Worker     WorkerConfig     `json:"worker" yaml:"worker"`

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

// GeneratorConfig sizes the synthetic procurement graph.
type GeneratorConfig struct {
	Seed        int64 `json:"seed" yaml:"seed"`
	Companies   int   `json:"companies" yaml:"companies"`
	Directors   int   `json:"directors" yaml:"directors"`
	Tenders     int   `json:"tenders" yaml:"tenders"`
	Departments int   `json:"departments" yaml:"departments"`

	// Labeled-entity budgets the pattern dimensions are fitted to. Zero
	// scales the 208/24/33 reference budget by the entity counts.
	FraudCompanies int `json:"fraudCompanies" yaml:"fraudCompanies"`
	FraudDirectors int `json:"fraudDirectors" yaml:"fraudDirectors"`
	FraudTenders   int `json:"fraudTenders" yaml:"fraudTenders"`

	// MaxRetries bounds candidate sampling per pattern instance.
	MaxRetries int `json:"maxRetries" yaml:"maxRetries"`

	// OutputDir is where datagen writes the CSV files.
	OutputDir string `json:"outputDir" yaml:"outputDir"`
}

// ScoringConfig holds factor weights and category thresholds.
type ScoringConfig struct {
	SharedDirectorWeight float64 `json:"sharedDirectorWeight" yaml:"sharedDirectorWeight"`
	TenderPatternWeight  float64 `json:"tenderPatternWeight" yaml:"tenderPatternWeight"`
	CentralityWeight     float64 `json:"centralityWeight" yaml:"centralityWeight"`
	ShellWeight          float64 `json:"shellWeight" yaml:"shellWeight"`

	HighThreshold   float64 `json:"highThreshold" yaml:"highThreshold"`
	MediumThreshold float64 `json:"mediumThreshold" yaml:"mediumThreshold"`

	// A tender pattern score at or above this forces the verdict to High.
	// Zero disables escalation.
	EscalationThreshold float64 `json:"escalationThreshold" yaml:"escalationThreshold"`

	// RuleWorkers bounds concurrent CEL evaluations.
	RuleWorkers int `json:"ruleWorkers" yaml:"ruleWorkers"`

	// RulesFile optionally replaces the built-in indicator rules.
	RulesFile string `json:"rulesFile,omitempty" yaml:"rulesFile"`
}

// QueryConfig bounds the read-side query operations.
type QueryConfig struct {
	DefaultDepth     int `json:"defaultDepth" yaml:"defaultDepth"`
	MaxDepth         int `json:"maxDepth" yaml:"maxDepth"`
	MaxNodes         int `json:"maxNodes" yaml:"maxNodes"`
	DefaultSeeds     int `json:"defaultSeeds" yaml:"defaultSeeds"`
	DefaultLimit     int `json:"defaultLimit" yaml:"defaultLimit"`
	MaxLimit         int `json:"maxLimit" yaml:"maxLimit"`
	MaxSuspicious    int `json:"maxSuspicious" yaml:"maxSuspicious"`
	MinClusterSize   int `json:"minClusterSize" yaml:"minClusterSize"`
	ReportCacheTTL   int `json:"reportCacheTtl" yaml:"reportCacheTtl"` // seconds
	TenderHistoryCap int `json:"tenderHistoryCap" yaml:"tenderHistoryCap"`

	// ClusterResolution is the Louvain resolution used for community detection.
	ClusterResolution float64 `json:"clusterResolution" yaml:"clusterResolution"`
}

// GraphDBConfig configures the optional Neo4j export.
type GraphDBConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	URI       string `json:"uri" yaml:"uri"`
	Username  string `json:"username" yaml:"username"`
	Password  string `json:"-" yaml:"password"`
	Database  string `json:"database" yaml:"database"`
	BatchSize int    `json:"batchSize" yaml:"batchSize"`
	Clear     bool   `json:"clear" yaml:"clear"`
}

// WorkerConfig controls the async regeneration worker.
type WorkerConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
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
}

// Tier represents the deployment tier.
type Tier string

const (
	// TierCommunity runs on SQLite + channels
	TierCommunity Tier = "community"

	// TierPro runs on PostgreSQL + NATS + Redis
	TierPro Tier = "pro"
)

// DefaultSeed is the documented reproducibility seed.
const DefaultSeed = 42

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier:      TierCommunity,
		Generator: DefaultGeneratorConfig(),
		Scoring:   DefaultScoringConfig(),
		Query:     DefaultQueryConfig(),
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./tenderwatch.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     300, // 5 minutes
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 100,
		},
		GraphDB: GraphDBConfig{
			URI:       "bolt://localhost:7687",
			Username:  "neo4j",
			Database:  "neo4j",
			BatchSize: 500,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "tenderwatch",
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
		PostgresDB:   "tenderwatch",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
		LocalTTL:       60,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Worker.Enabled = true
	cfg.Tracing.Enabled = true
	return cfg
}

// DefaultGeneratorConfig returns the reference dataset dimensions.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:           DefaultSeed,
		Companies:      500,
		Directors:      200,
		Tenders:        150,
		Departments:    20,
		FraudCompanies: 208,
		FraudDirectors: 24,
		FraudTenders:   33,
		MaxRetries:     25,
		OutputDir:      "./data",
	}
}

// DefaultScoringConfig returns the 25/30/20/25 weighting with 0.70/0.40 thresholds.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		SharedDirectorWeight: 0.25,
		TenderPatternWeight:  0.30,
		CentralityWeight:     0.20,
		ShellWeight:          0.25,
		HighThreshold:        0.70,
		MediumThreshold:      0.40,
		EscalationThreshold:  0.70,
		RuleWorkers:          16,
	}
}

// DefaultQueryConfig returns the dashboard query bounds.
func DefaultQueryConfig() QueryConfig {
	return QueryConfig{
		DefaultDepth:      2,
		MaxDepth:          4,
		MaxNodes:          50,
		DefaultSeeds:      20,
		DefaultLimit:      100,
		MaxLimit:          500,
		MaxSuspicious:     10,
		MinClusterSize:    3,
		ReportCacheTTL:    300,
		TenderHistoryCap:  50,
		ClusterResolution: 2.0,
	}
}
