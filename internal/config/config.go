// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP API listens on (e.g. :5000).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the address the gRPC health server listens on (e.g. :9090).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is debug, info, warn or error.
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// LogFormat is text, json or color.
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// LedgerRPCURL is the JSON-RPC endpoint of the chain hosting the registry contract.
	LedgerRPCURL string `mapstructure:"LEDGER_RPC_URL"`
	// LedgerPrivateKey is the hex operator key that signs ledger transactions.
	LedgerPrivateKey string `mapstructure:"LEDGER_PRIVATE_KEY"`
	// LedgerContractAddress is the registry contract address; 0x is added when missing.
	LedgerContractAddress string `mapstructure:"LEDGER_CONTRACT_ADDRESS"`
	// LedgerCountTimeout bounds the device count lookup (e.g. 15s).
	LedgerCountTimeout time.Duration `mapstructure:"LEDGER_COUNT_TIMEOUT"`

	// StorePath is the JSON file holding local device records.
	StorePath string `mapstructure:"STORE_PATH"`
	// StoreDatabaseURL, when set, keeps local device records in Postgres instead of StorePath.
	StoreDatabaseURL string `mapstructure:"STORE_DATABASE_URL"`

	// FrontendURL is the allowed CORS origin.
	FrontendURL string `mapstructure:"FRONTEND_URL"`
	// LifecyclePolicyFile is an optional Rego file replacing the built-in lifecycle policy.
	LifecyclePolicyFile string `mapstructure:"LIFECYCLE_POLICY_FILE"`

	// OperatorJWTPublicKey is the PEM-encoded public key or path to file; when set, mutating routes require a token.
	OperatorJWTPublicKey string `mapstructure:"OPERATOR_JWT_PUBLIC_KEY"`
	// OperatorJWTPrivateKey is the PEM-encoded private key or path to file; used only by the token tool.
	OperatorJWTPrivateKey string `mapstructure:"OPERATOR_JWT_PRIVATE_KEY"`
	// OperatorJWTIssuer is the iss claim.
	OperatorJWTIssuer string `mapstructure:"OPERATOR_JWT_ISSUER"`
	// OperatorJWTAudience is the aud claim.
	OperatorJWTAudience string `mapstructure:"OPERATOR_JWT_AUDIENCE"`
	// OperatorTokenTTL is the lifetime of minted operator tokens.
	OperatorTokenTTL time.Duration `mapstructure:"OPERATOR_TOKEN_TTL"`

	// OTLPEndpoint is the OTLP gRPC collector; empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure disables TLS for https endpoints.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	// KafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	// When empty, lifecycle events are not written to Kafka.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// LifecycleKafkaTopic is the Kafka topic for lifecycle events.
	LifecycleKafkaTopic string `mapstructure:"LIFECYCLE_KAFKA_TOPIC"`
	// KafkaGroupID is the consumer group ID for the worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`

	// MQTTBrokerURL enables MQTT publishing of lifecycle events (e.g. mqtt://localhost:1883).
	MQTTBrokerURL string `mapstructure:"MQTT_BROKER_URL"`
	// MQTTClientID is the MQTT client id; generated when empty.
	MQTTClientID string `mapstructure:"MQTT_CLIENT_ID"`
	// MQTTTopicPrefix prefixes every lifecycle topic.
	MQTTTopicPrefix string `mapstructure:"MQTT_TOPIC_PREFIX"`

	// Worker-only: Loki URL for the worker to push events (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":5000")
	v.SetDefault("GRPC_ADDR", ":9090")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("LEDGER_RPC_URL", "")
	v.SetDefault("LEDGER_PRIVATE_KEY", "")
	v.SetDefault("LEDGER_CONTRACT_ADDRESS", "")
	v.SetDefault("LEDGER_COUNT_TIMEOUT", "15s")
	v.SetDefault("STORE_PATH", "data-store.json")
	v.SetDefault("STORE_DATABASE_URL", "")
	v.SetDefault("FRONTEND_URL", "http://localhost:3000")
	v.SetDefault("LIFECYCLE_POLICY_FILE", "")
	v.SetDefault("OPERATOR_JWT_PUBLIC_KEY", "")
	v.SetDefault("OPERATOR_JWT_PRIVATE_KEY", "")
	v.SetDefault("OPERATOR_JWT_ISSUER", "ewaste-tracker")
	v.SetDefault("OPERATOR_JWT_AUDIENCE", "ewaste-api")
	v.SetDefault("OPERATOR_TOKEN_TTL", "24h")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("LIFECYCLE_KAFKA_TOPIC", "ewaste-lifecycle")
	v.SetDefault("KAFKA_GROUP_ID", "ewaste-lifecycle-worker")
	v.SetDefault("MQTT_BROKER_URL", "")
	v.SetDefault("MQTT_CLIENT_ID", "")
	v.SetDefault("MQTT_TOPIC_PREFIX", "ewaste/devices")
	v.SetDefault("LOKI_URL", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.GRPCAddr == "" {
		return nil, errors.New("config: GRPC_ADDR must be set")
	}
	switch cfg.LogFormat {
	case "text", "json", "color":
	default:
		return nil, errors.New("config: LOG_FORMAT must be text, json or color")
	}
	if cfg.LedgerCountTimeout <= 0 {
		return nil, errors.New("config: LEDGER_COUNT_TIMEOUT must be positive")
	}
	if cfg.OperatorTokenTTL <= 0 {
		return nil, errors.New("config: OPERATOR_TOKEN_TTL must be positive")
	}
	if cfg.Env == "production" && !cfg.OperatorAuthEnabled() {
		return nil, errors.New("config: OPERATOR_JWT_PUBLIC_KEY must be set when APP_ENV=production")
	}
	if cfg.LedgerContractAddress != "" && !strings.HasPrefix(cfg.LedgerContractAddress, "0x") {
		cfg.LedgerContractAddress = "0x" + cfg.LedgerContractAddress
	}

	return &cfg, nil
}

// ValidateLedger reports missing ledger settings. Only the API server needs them.
func (c *Config) ValidateLedger() error {
	var errs []error
	if c.LedgerRPCURL == "" {
		errs = append(errs, errors.New("config: LEDGER_RPC_URL must be set"))
	}
	if c.LedgerPrivateKey == "" {
		errs = append(errs, errors.New("config: LEDGER_PRIVATE_KEY must be set"))
	}
	if c.LedgerContractAddress == "" {
		errs = append(errs, errors.New("config: LEDGER_CONTRACT_ADDRESS must be set"))
	}
	return errors.Join(errs...)
}

// OperatorAuthEnabled reports whether mutating routes require an operator token.
func (c *Config) OperatorAuthEnabled() bool {
	return c != nil && strings.TrimSpace(c.OperatorJWTPublicKey) != ""
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if the Kafka stream is enabled (non-empty list) and to create the producer.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
