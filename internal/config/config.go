package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Config holds runtime settings for the server.
type Config struct {
	ServerAddr  string   `yaml:"server_addr"`
	LogLevel    string   `yaml:"log_level"`
	LogFormat   string   `yaml:"log_format"`
	CORSOrigins []string `yaml:"cors_origins"`

	SecureCookies bool `yaml:"secure_cookies"`

	AdminUser       string `yaml:"admin_user"`
	AdminPass       string `yaml:"admin_pass"`
	SessionTTLHours int    `yaml:"session_ttl_hours"`

	QBitURL         string        `yaml:"qbit_url"`
	QBitUser        string        `yaml:"qbit_user"`
	QBitPass        string        `yaml:"qbit_pass"`
	QBitTimeout     time.Duration `yaml:"qbit_timeout"`
	QBitSessionTTL  time.Duration `yaml:"qbit_session_ttl"`
	QBitSavePath    string        `yaml:"qbit_save_path"`
	DownloadsDir    string        `yaml:"downloads_dir"`
	RemoteSavePath  string        `yaml:"remote_save_path"`
	MinReadyPercent float64       `yaml:"min_ready_percent"`
	ExpediteWindow  time.Duration `yaml:"expedite_window"`
	RetryAfter      time.Duration `yaml:"retry_after"`

	SonarrURL     string `yaml:"sonarr_url"`
	SonarrAPIKey  string `yaml:"sonarr_api_key"`
	RadarrURL     string `yaml:"radarr_url"`
	RadarrAPIKey  string `yaml:"radarr_api_key"`
	JackettURL    string `yaml:"jackett_url"`
	JackettAPIKey string `yaml:"jackett_api_key"`

	OTELEndpoint   string  `yaml:"otel_endpoint"`
	OTELSampleRate float64 `yaml:"otel_sample_rate"`
}

// Defaults returns the built-in configuration used before the file and environment are applied.
func Defaults() Config {
	return Config{
		ServerAddr:      ":8080",
		LogLevel:        "info",
		LogFormat:       "text",
		CORSOrigins:     []string{"*"},
		SessionTTLHours: 72,
		QBitURL:         "http://localhost:8081",
		QBitTimeout:     10 * time.Second,
		QBitSessionTTL:  50 * time.Minute,
		QBitSavePath:    "/downloads",
		DownloadsDir:    "/downloads",
		MinReadyPercent: 5,
		ExpediteWindow:  3 * time.Second,
		RetryAfter:      2 * time.Second,
		OTELSampleRate:  0.1,
	}
}

// Load reads the optional CONFIG_FILE and environment variables and returns normalized runtime config.
func Load() (Config, error) {
	cfg := Defaults()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	cfg.normalize()
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.ServerAddr = getEnv("SERVER_ADDR", cfg.ServerAddr)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)
	cfg.CORSOrigins = getEnvList("CORS_ORIGINS", cfg.CORSOrigins)
	cfg.SecureCookies = getEnvBool("SECURE_COOKIES", cfg.SecureCookies)

	cfg.AdminUser = getEnv("ADMIN_USER", cfg.AdminUser)
	cfg.AdminPass = getEnvRaw("ADMIN_PASS", cfg.AdminPass)
	cfg.SessionTTLHours = getEnvInt("SESSION_TTL_HOURS", cfg.SessionTTLHours)

	cfg.QBitURL = getEnv("QBIT_URL", cfg.QBitURL)
	cfg.QBitUser = getEnv("QBIT_USER", cfg.QBitUser)
	cfg.QBitPass = getEnvRaw("QBIT_PASS", cfg.QBitPass)
	cfg.QBitTimeout = getEnvDuration("QBIT_TIMEOUT", cfg.QBitTimeout)
	cfg.QBitSessionTTL = getEnvDuration("QBIT_SESSION_TTL", cfg.QBitSessionTTL)
	cfg.QBitSavePath = getEnv("QBIT_SAVE_PATH", cfg.QBitSavePath)
	cfg.DownloadsDir = getEnv("DOWNLOADS_DIR", cfg.DownloadsDir)
	cfg.RemoteSavePath = getEnv("REMOTE_SAVE_PATH", cfg.RemoteSavePath)
	cfg.MinReadyPercent = getEnvFloat("MIN_READY_PERCENT", cfg.MinReadyPercent)
	cfg.ExpediteWindow = getEnvDuration("EXPEDITE_WINDOW", cfg.ExpediteWindow)
	cfg.RetryAfter = getEnvDuration("RETRY_AFTER", cfg.RetryAfter)

	cfg.SonarrURL = getEnv("SONARR_URL", cfg.SonarrURL)
	cfg.SonarrAPIKey = getEnv("SONARR_API_KEY", cfg.SonarrAPIKey)
	cfg.RadarrURL = getEnv("RADARR_URL", cfg.RadarrURL)
	cfg.RadarrAPIKey = getEnv("RADARR_API_KEY", cfg.RadarrAPIKey)
	cfg.JackettURL = getEnv("JACKETT_URL", cfg.JackettURL)
	cfg.JackettAPIKey = getEnv("JACKETT_API_KEY", cfg.JackettAPIKey)

	cfg.OTELEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTELEndpoint)
	cfg.OTELSampleRate = getEnvFloat("OTEL_TRACE_SAMPLE_RATE", cfg.OTELSampleRate)
}

func (c *Config) normalize() {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	c.QBitURL = strings.TrimRight(strings.TrimSpace(c.QBitURL), "/")
	if c.RemoteSavePath == "" {
		c.RemoteSavePath = c.QBitSavePath
	}
	if c.MinReadyPercent < 0 || c.MinReadyPercent > 100 {
		c.MinReadyPercent = 5
	}
	if c.SessionTTLHours <= 0 {
		c.SessionTTLHours = 72
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		c.OTELSampleRate = 0.1
	}
}

// SessionTTL returns the dashboard session lifetime.
func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

// getEnvRaw keeps surrounding whitespace, which is significant in passwords.
func getEnvRaw(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	var out int
	_, err := fmt.Sscanf(value, "%d", &out)
	if err != nil || out <= 0 {
		return fallback
	}
	return out
}

func getEnvFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	out, err := strconv.ParseFloat(value, 64)
	if err != nil || out < 0 {
		return fallback
	}
	return out
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	out, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return out
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	out, err := time.ParseDuration(value)
	if err != nil || out <= 0 {
		return fallback
	}
	return out
}

func getEnvList(key string, fallback []string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
