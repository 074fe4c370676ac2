package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ServiceID string
	Debug     bool

	HTTPPort int
	GRPCPort int

	DatabaseURL    string
	RedisURL       string
	KafkaBrokers   []string
	KafkaTopic     string
	ChainBridgeURL string

	MaxDBConns      int32
	MaxBatchConns   int32
	MaxOpenBatches  int
	BatchStoreGrace time.Duration

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxRetries   int
	MonitorInterval    time.Duration
	ChainCacheTTL      time.Duration
	JobLockTTL         time.Duration

	EncryptionSeed    string
	OperatorJWTSecret string
	OperatorIssuer    string

	SettlementFeeMicrogons  int64
	BurnPercent             int64
	MinimumNoteMicrogons    int64
	MinimumFundingCentagons int64
	SettlementFeeAddress    string
	BurnAddress             string
	BatchOpenWindow         time.Duration
	StopNewNotesBefore      time.Duration
	MinimumOpenBatches      int
	OpenBatchSafetyMargin   time.Duration
}

type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL    string   `yaml:"postgres_url"`
		RedisURL       string   `yaml:"redis_url"`
		KafkaBrokers   []string `yaml:"kafka_brokers"`
		KafkaTopic     string   `yaml:"kafka_topic"`
		ChainBridgeURL string   `yaml:"chain_bridge_url"`
	} `yaml:"dependencies"`
	Batches struct {
		OpenWindow             string `yaml:"open_window"`
		StopNewNotesBefore     string `yaml:"stop_new_notes_before"`
		MinimumOpen            int    `yaml:"minimum_open"`
		SafetyMargin           string `yaml:"safety_margin"`
		MaxOpenStores          int    `yaml:"max_open_stores"`
		SettlementFeeMicrogons *int64 `yaml:"settlement_fee_microgons"`
		BurnPercent            *int64 `yaml:"burn_percent"`
		SettlementFeeAddress   string `yaml:"settlement_fee_address"`
		BurnAddress            string `yaml:"burn_address"`
	} `yaml:"batches"`
}

func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:               "micronote-ledger",
		HTTPPort:                8080,
		GRPCPort:                9090,
		KafkaTopic:              "micronote-batch-events",
		MaxDBConns:              20,
		MaxBatchConns:           5,
		MaxOpenBatches:          10,
		BatchStoreGrace:         5 * time.Second,
		OutboxPollInterval:      2 * time.Second,
		OutboxBatchSize:         100,
		OutboxMaxRetries:        5,
		MonitorInterval:         time.Minute,
		ChainCacheTTL:           2 * time.Second,
		JobLockTTL:              5 * time.Minute,
		EncryptionSeed:          "micronote-default-seed",
		OperatorIssuer:          "micronote-ledger",
		SettlementFeeMicrogons:  5,
		BurnPercent:             20,
		MinimumNoteMicrogons:    10,
		MinimumFundingCentagons: 1,
		BatchOpenWindow:         8 * time.Hour,
		StopNewNotesBefore:      30 * time.Minute,
		MinimumOpenBatches:      2,
		OpenBatchSafetyMargin:   time.Hour,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		if f.Dependencies.PostgresURL != "" {
			cfg.DatabaseURL = f.Dependencies.PostgresURL
		}
		if f.Dependencies.RedisURL != "" {
			cfg.RedisURL = f.Dependencies.RedisURL
		}
		if len(f.Dependencies.KafkaBrokers) > 0 {
			cfg.KafkaBrokers = trimNonEmpty(f.Dependencies.KafkaBrokers)
		}
		if f.Dependencies.KafkaTopic != "" {
			cfg.KafkaTopic = f.Dependencies.KafkaTopic
		}
		if f.Dependencies.ChainBridgeURL != "" {
			cfg.ChainBridgeURL = f.Dependencies.ChainBridgeURL
		}
		if cfg.BatchOpenWindow, err = yamlDuration("batches.open_window", f.Batches.OpenWindow, cfg.BatchOpenWindow); err != nil {
			return Config{}, err
		}
		if cfg.StopNewNotesBefore, err = yamlDuration("batches.stop_new_notes_before", f.Batches.StopNewNotesBefore, cfg.StopNewNotesBefore); err != nil {
			return Config{}, err
		}
		if cfg.OpenBatchSafetyMargin, err = yamlDuration("batches.safety_margin", f.Batches.SafetyMargin, cfg.OpenBatchSafetyMargin); err != nil {
			return Config{}, err
		}
		if f.Batches.MinimumOpen > 0 {
			cfg.MinimumOpenBatches = f.Batches.MinimumOpen
		}
		if f.Batches.MaxOpenStores > 0 {
			cfg.MaxOpenBatches = f.Batches.MaxOpenStores
		}
		if f.Batches.SettlementFeeMicrogons != nil {
			cfg.SettlementFeeMicrogons = *f.Batches.SettlementFeeMicrogons
		}
		if f.Batches.BurnPercent != nil {
			cfg.BurnPercent = *f.Batches.BurnPercent
		}
		if f.Batches.SettlementFeeAddress != "" {
			cfg.SettlementFeeAddress = f.Batches.SettlementFeeAddress
		}
		if f.Batches.BurnAddress != "" {
			cfg.BurnAddress = f.Batches.BurnAddress
		}
	}

	cfg.Debug = envBool("LOG_DEBUG", cfg.Debug)
	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaTopic = envOrDefault("KAFKA_TOPIC_BATCH_EVENTS", cfg.KafkaTopic)
	cfg.ChainBridgeURL = envOrDefault("CHAIN_BRIDGE_URL", cfg.ChainBridgeURL)
	cfg.EncryptionSeed = envOrDefault("ENCRYPTION_SEED", cfg.EncryptionSeed)
	cfg.OperatorJWTSecret = envOrDefault("OPERATOR_JWT_SECRET", cfg.OperatorJWTSecret)
	cfg.OperatorIssuer = envOrDefault("OPERATOR_JWT_ISSUER", cfg.OperatorIssuer)
	cfg.SettlementFeeAddress = envOrDefault("SETTLEMENT_FEE_ADDRESS", cfg.SettlementFeeAddress)
	cfg.BurnAddress = envOrDefault("BURN_ADDRESS", cfg.BurnAddress)
	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))
	cfg.MaxBatchConns = int32(envInt("BATCH_DB_MAX_CONNS", int(cfg.MaxBatchConns)))
	cfg.MaxOpenBatches = envInt("MAX_OPEN_BATCH_STORES", cfg.MaxOpenBatches)
	cfg.OutboxPollInterval = envDuration("OUTBOX_POLL_INTERVAL", cfg.OutboxPollInterval)
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxMaxRetries = envInt("OUTBOX_MAX_RETRIES", cfg.OutboxMaxRetries)
	cfg.MonitorInterval = envDuration("BATCH_MONITOR_INTERVAL", cfg.MonitorInterval)
	cfg.JobLockTTL = envDuration("JOB_LOCK_TTL", cfg.JobLockTTL)
	cfg.SettlementFeeMicrogons = int64(envInt("SETTLEMENT_FEE_MICROGONS", int(cfg.SettlementFeeMicrogons)))
	cfg.BurnPercent = int64(envInt("BURN_PERCENT", int(cfg.BurnPercent)))
	cfg.MinimumNoteMicrogons = int64(envInt("MINIMUM_NOTE_MICROGONS", int(cfg.MinimumNoteMicrogons)))
	cfg.MinimumFundingCentagons = int64(envInt("MINIMUM_FUNDING_CENTAGONS", int(cfg.MinimumFundingCentagons)))
	cfg.BatchOpenWindow = envDuration("BATCH_OPEN_WINDOW", cfg.BatchOpenWindow)
	cfg.StopNewNotesBefore = envDuration("BATCH_STOP_NEW_NOTES_BEFORE", cfg.StopNewNotesBefore)
	cfg.MinimumOpenBatches = envInt("BATCH_MINIMUM_OPEN", cfg.MinimumOpenBatches)

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing DB_URL/POSTGRES_URL")
	}
	if cfg.SettlementFeeAddress == "" || cfg.BurnAddress == "" {
		return Config{}, fmt.Errorf("missing SETTLEMENT_FEE_ADDRESS/BURN_ADDRESS")
	}
	if cfg.BurnPercent < 0 || cfg.BurnPercent > 100 {
		return Config{}, fmt.Errorf("BURN_PERCENT must be between 0 and 100")
	}
	if cfg.SettlementFeeMicrogons < 0 {
		return Config{}, fmt.Errorf("SETTLEMENT_FEE_MICROGONS must not be negative")
	}
	if cfg.MinimumNoteMicrogons <= cfg.SettlementFeeMicrogons {
		return Config{}, fmt.Errorf("MINIMUM_NOTE_MICROGONS must exceed SETTLEMENT_FEE_MICROGONS")
	}
	return cfg, nil
}

func yamlDuration(field, raw string, fallback time.Duration) (time.Duration, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", field, err)
	}
	return d, nil
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	switch strings.ToLower(raw) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	default:
		return fallback
	}
}

func envCSV(name string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	items := strings.Split(raw, ",")
	return trimNonEmpty(items)
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
