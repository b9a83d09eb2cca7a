package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config aggregates runtime configuration for the bot.
type Config struct {
	App      AppConfig
	Store    StoreConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	NATS     NATSConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Discord  DiscordConfig
	Workflow WorkflowConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver     string
	SQLitePath string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// NATSConfig configures outbound domain event forwarding.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines admin API token parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// DiscordConfig holds platform identifiers. Values may come from the YAML file.
type DiscordConfig struct {
	Token                string `yaml:"token"`
	GuildID              string `yaml:"guild_id"`
	StaffRoleID          string `yaml:"staff_role_id"`
	TicketCategoryID     string `yaml:"ticket_category_id"`
	ApprovalChannelID    string `yaml:"approval_channel_id"`
	RescueAlertChannelID string `yaml:"rescue_alert_channel_id"`
}

// WorkflowConfig tunes the delivery workflow and background jobs.
type WorkflowConfig struct {
	EvidenceTimeout       time.Duration `yaml:"evidence_timeout"`
	RescueEvidenceTimeout time.Duration `yaml:"rescue_evidence_timeout"`
	RankingInterval       time.Duration `yaml:"ranking_interval"`
	RankingSize           int           `yaml:"ranking_size"`
	HistorySize           int           `yaml:"history_size"`
	TicketCloseDelay      time.Duration `yaml:"ticket_close_delay"`
}

type fileConfig struct {
	Discord  DiscordConfig  `yaml:"discord"`
	Workflow WorkflowConfig `yaml:"workflow"`
}

// Load reads configuration from environment variables, applying defaults where possible.
// When OPSBOT_CONFIG_FILE is set, its discord and workflow sections provide
// defaults that environment variables override.
func Load() (*Config, error) {
	_ = godotenv.Load()

	file, err := loadFile(os.Getenv("OPSBOT_CONFIG_FILE"))
	if err != nil {
		return nil, err
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "opsbot"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Store: StoreConfig{
			Driver:     strings.ToLower(getEnv("STORE_DRIVER", DriverSQLite)),
			SQLitePath: getEnv("SQLITE_PATH", "opsbot.db"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		NATS: NATSConfig{
			URL:           os.Getenv("NATS_URL"),
			SubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "opsbot"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Discord: DiscordConfig{
			Token:                getEnv("DISCORD_TOKEN", file.Discord.Token),
			GuildID:              getEnv("DISCORD_GUILD_ID", file.Discord.GuildID),
			StaffRoleID:          getEnv("DISCORD_STAFF_ROLE_ID", file.Discord.StaffRoleID),
			TicketCategoryID:     getEnv("DISCORD_TICKET_CATEGORY_ID", file.Discord.TicketCategoryID),
			ApprovalChannelID:    getEnv("DISCORD_APPROVAL_CHANNEL_ID", file.Discord.ApprovalChannelID),
			RescueAlertChannelID: getEnv("DISCORD_RESCUE_ALERT_CHANNEL_ID", file.Discord.RescueAlertChannelID),
		},
		Workflow: WorkflowConfig{
			EvidenceTimeout:       getEnvAsDuration("WORKFLOW_EVIDENCE_TIMEOUT", orDuration(file.Workflow.EvidenceTimeout, 2*time.Minute)),
			RescueEvidenceTimeout: getEnvAsDuration("WORKFLOW_RESCUE_EVIDENCE_TIMEOUT", orDuration(file.Workflow.RescueEvidenceTimeout, 2*time.Minute)),
			RankingInterval:       getEnvAsDuration("WORKFLOW_RANKING_INTERVAL", orDuration(file.Workflow.RankingInterval, 10*time.Minute)),
			RankingSize:           getEnvAsInt("WORKFLOW_RANKING_SIZE", orInt(file.Workflow.RankingSize, 10)),
			HistorySize:           getEnvAsInt("WORKFLOW_HISTORY_SIZE", orInt(file.Workflow.HistorySize, 10)),
			TicketCloseDelay:      getEnvAsDuration("WORKFLOW_TICKET_CLOSE_DELAY", orDuration(file.Workflow.TicketCloseDelay, 5*time.Second)),
		},
	}

	return cfg, nil
}

// Validate reports settings the serve command cannot run without.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case DriverPostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required for the postgres driver"))
		}
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver))
	}
	if c.Discord.Token == "" {
		errs = append(errs, errors.New("DISCORD_TOKEN is required"))
	}
	if c.Discord.GuildID == "" {
		errs = append(errs, errors.New("DISCORD_GUILD_ID is required"))
	}
	if c.Workflow.EvidenceTimeout <= 0 {
		errs = append(errs, errors.New("WORKFLOW_EVIDENCE_TIMEOUT must be positive"))
	}
	if c.Workflow.RankingInterval <= 0 {
		errs = append(errs, errors.New("WORKFLOW_RANKING_INTERVAL must be positive"))
	}
	return errors.Join(errs...)
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func loadFile(path string) (fileConfig, error) {
	var fc fileConfig
	if path == "" {
		return fc, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(content, &fc); err != nil {
		return fc, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return fc, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func orDuration(val, fallback time.Duration) time.Duration {
	if val > 0 {
		return val
	}
	return fallback
}

func orInt(val, fallback int) int {
	if val > 0 {
		return val
	}
	return fallback
}
