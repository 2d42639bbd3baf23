package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	AWS      AWSConfig      `yaml:"aws"`
	NATS     NATSConfig     `yaml:"nats"`
	MinIO    MinIOConfig    `yaml:"minio"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Dedup    DedupConfig    `yaml:"dedup"`
	Worker   WorkerConfig   `yaml:"worker"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port        int    `yaml:"port"`
	MetricsPort int    `yaml:"metrics_port"`
	APIKey      string `yaml:"api_key"`
}

const (
	StoreDynamoDB = "dynamodb"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type StoreConfig struct {
	Type     string         `yaml:"type"`
	DynamoDB DynamoDBConfig `yaml:"dynamodb"`
	Database DatabaseConfig `yaml:"database"`
}

type DynamoDBConfig struct {
	Table          string `yaml:"table"`
	Index          string `yaml:"index"`
	SignatureTable string `yaml:"signature_table"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// AWSConfig is left mostly empty in Lambda, where the SDK default chain
// supplies region and credentials.
type AWSConfig struct {
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	// Bucket is used to resolve records that store a bare object key.
	Bucket string `yaml:"bucket"`
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
	// NotifyARN is the MinIO notification target, e.g. arn:minio:sqs::PRIMARY:nats.
	NotifyARN    string `yaml:"notify_arn"`
	NotifyPrefix string `yaml:"notify_prefix"`
}

type AnalysisConfig struct {
	MinConfidence float64 `yaml:"min_confidence"`
	MaxLabels     int     `yaml:"max_labels"`
	// InlineBytes sends image bytes to the analysis service instead of an
	// object reference.
	InlineBytes bool `yaml:"inline_bytes"`
}

const (
	DedupLookup = "lookup"
	DedupClaim  = "claim"
)

type DedupConfig struct {
	Strategy            string        `yaml:"strategy"`
	MatchEmptySignature bool          `yaml:"match_empty_signature"`
	CacheTTL            time.Duration `yaml:"cache_ttl"`
}

type WorkerConfig struct {
	Count    int    `yaml:"count"`
	Consumer string `yaml:"consumer"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a config for Lambda functions, which are configured only
// through the function environment.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Store: StoreConfig{
			Type: StoreDynamoDB,
			DynamoDB: DynamoDBConfig{
				Table: os.Getenv("DYNAMODB_TABLE"),
			},
		},
		AWS: AWSConfig{
			Region: os.Getenv("AWS_REGION"),
			Bucket: os.Getenv("S3_BUCKET"),
		},
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Store.Type {
	case StoreDynamoDB:
		if c.Store.DynamoDB.Table == "" {
			return fmt.Errorf("store.dynamodb.table is required")
		}
	case StorePostgres, StoreMemory:
	default:
		return fmt.Errorf("unknown store type %q", c.Store.Type)
	}

	switch c.Dedup.Strategy {
	case DedupLookup, DedupClaim:
	default:
		return fmt.Errorf("unknown dedup strategy %q", c.Dedup.Strategy)
	}

	if c.Analysis.MinConfidence < 0 || c.Analysis.MinConfidence > 100 {
		return fmt.Errorf("analysis.min_confidence must be within 0-100, got %v", c.Analysis.MinConfidence)
	}
	return nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MetricsPort == 0 {
		cfg.Server.MetricsPort = 8082
	}
	if cfg.Store.Type == "" {
		cfg.Store.Type = StoreDynamoDB
	}
	if cfg.Store.DynamoDB.Index == "" {
		cfg.Store.DynamoDB.Index = "SearchableTermsIndex"
	}
	if cfg.Store.Database.Port == 0 {
		cfg.Store.Database.Port = 5432
	}
	if cfg.Store.Database.MaxConns == 0 {
		cfg.Store.Database.MaxConns = 20
	}
	if cfg.AWS.Region == "" {
		cfg.AWS.Region = "us-east-1"
	}
	if cfg.MinIO.NotifyARN == "" {
		cfg.MinIO.NotifyARN = "arn:minio:sqs::PRIMARY:nats"
	}
	if cfg.Analysis.MinConfidence == 0 {
		cfg.Analysis.MinConfidence = 70
	}
	if cfg.Analysis.MaxLabels == 0 {
		cfg.Analysis.MaxLabels = 10
	}
	if cfg.Dedup.Strategy == "" {
		cfg.Dedup.Strategy = DedupLookup
	}
	if cfg.Dedup.CacheTTL == 0 {
		cfg.Dedup.CacheTTL = 10 * time.Minute
	}
	if cfg.Worker.Count == 0 {
		cfg.Worker.Count = 4
	}
	if cfg.Worker.Consumer == "" {
		cfg.Worker.Consumer = "upload-processors"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("IMGINDEX_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("IMGINDEX_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("IMGINDEX_STORE_TYPE"); v != "" {
		cfg.Store.Type = v
	}
	if v := os.Getenv("IMGINDEX_DYNAMODB_TABLE"); v != "" {
		cfg.Store.DynamoDB.Table = v
	}
	if v := os.Getenv("IMGINDEX_DYNAMODB_INDEX"); v != "" {
		cfg.Store.DynamoDB.Index = v
	}
	if v := os.Getenv("IMGINDEX_SIGNATURE_TABLE"); v != "" {
		cfg.Store.DynamoDB.SignatureTable = v
	}
	if v := os.Getenv("IMGINDEX_DB_HOST"); v != "" {
		cfg.Store.Database.Host = v
	}
	if v := os.Getenv("IMGINDEX_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Store.Database.Port = port
		}
	}
	if v := os.Getenv("IMGINDEX_DB_NAME"); v != "" {
		cfg.Store.Database.Name = v
	}
	if v := os.Getenv("IMGINDEX_DB_USER"); v != "" {
		cfg.Store.Database.User = v
	}
	if v := os.Getenv("IMGINDEX_DB_PASSWORD"); v != "" {
		cfg.Store.Database.Password = v
	}
	if v := os.Getenv("IMGINDEX_AWS_REGION"); v != "" {
		cfg.AWS.Region = v
	}
	if v := os.Getenv("IMGINDEX_AWS_ENDPOINT"); v != "" {
		cfg.AWS.Endpoint = v
	}
	if v := os.Getenv("IMGINDEX_BUCKET"); v != "" {
		cfg.AWS.Bucket = v
	}
	if v := os.Getenv("IMGINDEX_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("IMGINDEX_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("IMGINDEX_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("IMGINDEX_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("IMGINDEX_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("IMGINDEX_INLINE_BYTES"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Analysis.InlineBytes = b
		}
	}
	if v := os.Getenv("IMGINDEX_DEDUP_STRATEGY"); v != "" {
		cfg.Dedup.Strategy = v
	}
	if v := os.Getenv("IMGINDEX_MATCH_EMPTY_SIGNATURE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Dedup.MatchEmptySignature = b
		}
	}
	if v := os.Getenv("IMGINDEX_WORKER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Worker.Count = n
		}
	}
	if v := os.Getenv("IMGINDEX_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
