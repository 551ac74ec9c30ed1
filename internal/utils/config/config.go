package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/atomport/solver/internal/types/environments"
)

type AppConfig struct {
	Environment environments.Environment
	ApiServer   ApiServerConfig
	Postgres    DBConnection
	Signer      SignerConfig
	Scanner     ScannerConfig
	Executor    ExecutorConfig
	Sweeper     SweeperConfig
	Webhook     WebhookConfig
}

type WebhookConfig struct {
	// HeartbeatURL is pinged on a schedule so external uptime monitors can
	// alert when the solver stops running. Empty disables the ping.
	HeartbeatURL string
}

type ApiServerConfig struct {
	Port           string
	AllowedOrigins string
}

type DBConnection struct {
	Host string
	Port string
	User string
	Name string
	Pass string

	SSLMode string
}

type SignerConfig struct {
	// Endpoint of the remote custody service. When empty, the local dev
	// signer is used with DevKeys.
	Endpoint string
	APIToken string
	// DevKeys maps "network:address" to a hex-encoded private key.
	DevKeys map[string]string
}

type ScannerConfig struct {
	BlockBatchSize  uint64
	WaitInterval    time.Duration
	ReorgOverlap    uint64
	GroupSize       int
	RebaseAfter     int
	DedupWindowSize int
}

type ExecutorConfig struct {
	MaxAttempts    int
	ReceiptTimeout time.Duration
	PollInterval   time.Duration
	LockTTL        time.Duration
}

type SweeperConfig struct {
	Schedule string
}

func New() *AppConfig {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	// this will not override env variables if they already exist
	godotenv.Load(".env." + env)

	return &AppConfig{
		Environment: environments.Environment(env),
		ApiServer: ApiServerConfig{
			Port:           envVarWithDefault("API_PORT", "8080"),
			AllowedOrigins: os.Getenv("ALLOWED_ORIGINS"),
		},
		Postgres: DBConnection{
			Host:    os.Getenv("DB_HOST"),
			Port:    os.Getenv("DB_PORT"),
			User:    os.Getenv("DB_USER"),
			Name:    os.Getenv("DB_NAME"),
			Pass:    os.Getenv("DB_PASS"),
			SSLMode: os.Getenv("DB_SSL_MODE"),
		},
		Signer: SignerConfig{
			Endpoint: os.Getenv("SIGNER_ENDPOINT"),
			APIToken: os.Getenv("SIGNER_API_TOKEN"),
			DevKeys:  parseDevKeys(os.Getenv("SIGNER_DEV_KEYS")),
		},
		Scanner: ScannerConfig{
			BlockBatchSize:  uint64(envVarAtoiWithDefault("SCANNER_BLOCK_BATCH_SIZE", 10)),
			WaitInterval:    envVarDuration("SCANNER_WAIT_INTERVAL", 5*time.Second),
			ReorgOverlap:    uint64(envVarAtoiWithDefault("SCANNER_REORG_OVERLAP", 15)),
			GroupSize:       envVarAtoiWithDefault("SCANNER_GROUP_SIZE", 4),
			RebaseAfter:     envVarAtoiWithDefault("SCANNER_REBASE_AFTER", 200),
			DedupWindowSize: envVarAtoiWithDefault("SCANNER_DEDUP_WINDOW", 10000),
		},
		Executor: ExecutorConfig{
			MaxAttempts:    envVarAtoiWithDefault("EXECUTOR_MAX_ATTEMPTS", 5),
			ReceiptTimeout: envVarDuration("EXECUTOR_RECEIPT_TIMEOUT", 3*time.Minute),
			PollInterval:   envVarDuration("EXECUTOR_POLL_INTERVAL", 3*time.Second),
			LockTTL:        envVarDuration("EXECUTOR_LOCK_TTL", 30*time.Second),
		},
		Sweeper: SweeperConfig{
			Schedule: envVarWithDefault("SWEEPER_SCHEDULE", "@every 5m"),
		},
		Webhook: WebhookConfig{
			HeartbeatURL: os.Getenv("HEARTBEAT_WEBHOOK_URL"),
		},
	}
}

// parseDevKeys reads "network:address=key,network:address=key" pairs.
func parseDevKeys(raw string) map[string]string {
	keys := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			continue
		}
		keys[parts[0]] = parts[1]
	}
	return keys
}

func envVarWithDefault(envName, defaultValue string) string {
	value := os.Getenv(envName)
	if value == "" {
		return defaultValue
	}
	return value
}

func envVarAtoiWithDefault(envName string, defaultValue int) int {
	valueStr := os.Getenv(envName)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		panic(err)
	}
	return value
}

func envVarDuration(envName string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(envName)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		panic(err)
	}
	return value
}
