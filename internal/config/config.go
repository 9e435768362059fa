package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"guestms/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App         AppConfig         `yaml:"app"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Backup      BackupConfig      `yaml:"backup"`
	Monitoring  MonitoringConfig  `yaml:"monitoring"`
	Logging     LoggingConfig     `yaml:"logging"`
	API         APIConfig         `yaml:"api"`
	Telegram    TelegramConfig    `yaml:"telegram"`
	Google      GoogleConfig      `yaml:"google"`
	Exports     ExportConfig      `yaml:"exports"`
	Reservation ReservationConfig `yaml:"reservation"`
	RoomsFile   string            `yaml:"rooms_file"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIGRPCConfig struct {
	Enabled    bool         `yaml:"enabled"`
	Port       int          `yaml:"port"`
	Reflection bool         `yaml:"reflection"`
	TLS        APITLSConfig `yaml:"tls"`
}

type APITLSConfig struct {
	Enabled           bool   `yaml:"enabled"`
	CertFile          string `yaml:"cert_file"`
	KeyFile           string `yaml:"key_file"`
	ClientCAFile      string `yaml:"client_ca_file"`
	RequireClientCert bool   `yaml:"require_client_cert"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type TelegramConfig struct {
	Enabled      bool    `yaml:"enabled"`
	BotToken     string  `yaml:"bot_token"`
	StaffChatIDs []int64 `yaml:"staff_chat_ids"`
	Debug        bool    `yaml:"debug"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
	// BusyTimeoutMS сколько писатель ждёт освобождения блокировки SQLite
	BusyTimeoutMS int `yaml:"busy_timeout_ms"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type GoogleConfig struct {
	CredentialsFile          string `yaml:"credentials_file"`
	ReservationSpreadsheetID string `yaml:"reservations_spreadsheet_id"`
}

// Enabled reports whether the sheets mirror is configured.
func (g GoogleConfig) Enabled() bool {
	return g.CredentialsFile != "" && g.ReservationSpreadsheetID != ""
}

type ReservationConfig struct {
	LockTTLSeconds           int `yaml:"lock_ttl_seconds"`
	LockWaitSeconds          int `yaml:"lock_wait_seconds"`
	MaxStayNights            int `yaml:"max_stay_nights"`
	MaxAdvanceDays           int `yaml:"max_advance_days"`
	CreateRateLimit          int `yaml:"create_rate_limit"`
	CreateRateWindowSeconds  int `yaml:"create_rate_window_seconds"`
	ReconcileIntervalSeconds int `yaml:"reconcile_interval_seconds"`
}

func (r ReservationConfig) LockTTL() time.Duration {
	return time.Duration(r.LockTTLSeconds) * time.Second
}

func (r ReservationConfig) LockWait() time.Duration {
	return time.Duration(r.LockWaitSeconds) * time.Second
}

func (r ReservationConfig) CreateRateWindow() time.Duration {
	return time.Duration(r.CreateRateWindowSeconds) * time.Second
}

func (r ReservationConfig) ReconcileInterval() time.Duration {
	return time.Duration(r.ReconcileIntervalSeconds) * time.Second
}

func Load(configPath string) (*Config, error) {
	// Загружаем .env файл если существует
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" || c.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
			return errors.New("telegram bot token is required when notifications are enabled")
		}
		if len(c.Telegram.StaffChatIDs) == 0 {
			return errors.New("telegram staff_chat_ids must not be empty when notifications are enabled")
		}
	}

	r := c.Reservation
	if r.MaxStayNights < 0 || r.MaxAdvanceDays < 0 {
		return errors.New("reservation stay limits must not be negative")
	}
	if r.LockTTLSeconds < 0 || r.LockWaitSeconds < 0 {
		return errors.New("reservation lock settings must not be negative")
	}

	return ValidateAPIKeys(c.API.Auth.APIKeys)
}

// ValidateAPIKeys rejects empty and duplicate keys.
func ValidateAPIKeys(keys []APIClientKey) error {
	seen := make(map[string]bool)
	for _, k := range keys {
		if k.Key == "" {
			return fmt.Errorf("api key '%s' is empty", k.Name)
		}
		if seen[k.Key] {
			return fmt.Errorf("duplicate api key for client '%s'", k.Name)
		}
		seen[k.Key] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "guestms"
	}
	if c.Database.BusyTimeoutMS == 0 {
		c.Database.BusyTimeoutMS = 5000
	}
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
	if c.RoomsFile == "" {
		c.RoomsFile = "configs/rooms.yaml"
	}

	// Reservation defaults
	if c.Reservation.LockTTLSeconds == 0 {
		c.Reservation.LockTTLSeconds = models.DefaultRoomLockTTL
	}
	if c.Reservation.LockWaitSeconds == 0 {
		c.Reservation.LockWaitSeconds = models.DefaultRoomLockWait
	}
	if c.Reservation.CreateRateLimit == 0 {
		c.Reservation.CreateRateLimit = models.DefaultCreateRateLimit
	}
	if c.Reservation.CreateRateWindowSeconds == 0 {
		c.Reservation.CreateRateWindowSeconds = models.DefaultCreateRateWindow
	}
	if c.Reservation.ReconcileIntervalSeconds == 0 {
		c.Reservation.ReconcileIntervalSeconds = models.DefaultReconcileInterval
	}
}
