package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PROXYBOT_"

// Config captures runtime configuration. Values come from defaults, then an
// optional YAML file, then PROXYBOT_* environment variables.
type Config struct {
	Environment string `yaml:"environment"`
	HTTPPort    string `yaml:"http_port"`
	Debug       bool   `yaml:"debug"`
	LogDir      string `yaml:"log_dir"`

	NPM NPMConfig `yaml:"npm"`

	// ServerIP is the IPv4 every managed domain must resolve to.
	ServerIP         string `yaml:"server_ip"`
	LetsEncryptEmail string `yaml:"letsencrypt_email"`
	ListCheckLimit   int    `yaml:"list_check_limit"`

	DNS     DNSConfig     `yaml:"dns"`
	Ledger  LedgerConfig  `yaml:"ledger"`
	Discord DiscordConfig `yaml:"discord"`

	NotifyURLs        []string `yaml:"notify_urls"`
	ReconcileSchedule string   `yaml:"reconcile_schedule"`
}

type NPMConfig struct {
	URL        string        `yaml:"url"`
	Email      string        `yaml:"email"`
	Password   string        `yaml:"password"`
	Timeout    time.Duration `yaml:"timeout"`
	CacheToken bool          `yaml:"cache_token"`
}

type DNSConfig struct {
	// Server is an optional host:port; empty uses the system resolver.
	Server  string        `yaml:"server"`
	Timeout time.Duration `yaml:"timeout"`
}

type LedgerConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

type DiscordConfig struct {
	ApplicationID      string `yaml:"application_id"`
	BotToken           string `yaml:"bot_token"`
	PublicKey          string `yaml:"public_key"`
	PermissionTemplate string `yaml:"permission_template"`
	APIBase            string `yaml:"api_base"`
}

const (
	LedgerDriverFile   = "file"
	LedgerDriverSQLite = "sqlite"
)

// Default returns a configuration that boots with nothing but credentials.
func Default() Config {
	return Config{
		Environment: "production",
		HTTPPort:    "8080",
		LogDir:      "logs",
		NPM: NPMConfig{
			Timeout:    10 * time.Second,
			CacheToken: true,
		},
		ListCheckLimit: 15,
		DNS:            DNSConfig{Timeout: 5 * time.Second},
		Ledger: LedgerConfig{
			Driver: LedgerDriverFile,
			Path:   filepath.Join("data", "proxies.json"),
		},
		Discord: DiscordConfig{
			APIBase: "https://discord.com/api/v10",
		},
		ReconcileSchedule: "@every 6h",
	}
}

// Load builds the configuration. An empty path falls back to
// PROXYBOT_CONFIG; with neither set no file is read.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG")
	}
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	var errs []string
	applyEnv(&cfg, &errs)
	if len(errs) > 0 {
		return Config{}, fmt.Errorf("config environment invalid:\n  %s", strings.Join(errs, "\n  "))
	}

	if cfg.Ledger.Driver == LedgerDriverFile || cfg.Ledger.Driver == LedgerDriverSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.Ledger.Path), 0o755); err != nil {
			return Config{}, fmt.Errorf("ensure ledger directory: %w", err)
		}
	}
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

func applyEnv(cfg *Config, errs *[]string) {
	cfg.Environment = getEnv("ENV", cfg.Environment)
	cfg.HTTPPort = getEnv("HTTP_PORT", cfg.HTTPPort)
	cfg.Debug = envBool("DEBUG", cfg.Debug, errs)
	cfg.LogDir = getEnv("LOG_DIR", cfg.LogDir)

	cfg.NPM.URL = getEnv("NPM_URL", cfg.NPM.URL)
	cfg.NPM.Email = getEnv("NPM_EMAIL", cfg.NPM.Email)
	cfg.NPM.Password = getEnv("NPM_PASSWORD", cfg.NPM.Password)
	cfg.NPM.Timeout = envDuration("NPM_TIMEOUT", cfg.NPM.Timeout, errs)
	cfg.NPM.CacheToken = envBool("NPM_TOKEN_CACHE", cfg.NPM.CacheToken, errs)

	cfg.ServerIP = getEnv("SERVER_IP", cfg.ServerIP)
	cfg.LetsEncryptEmail = getEnv("LETSENCRYPT_EMAIL", cfg.LetsEncryptEmail)
	cfg.ListCheckLimit = envInt("LIST_CHECK_LIMIT", cfg.ListCheckLimit, errs)

	cfg.DNS.Server = getEnv("DNS_SERVER", cfg.DNS.Server)
	cfg.DNS.Timeout = envDuration("DNS_TIMEOUT", cfg.DNS.Timeout, errs)

	cfg.Ledger.Driver = getEnv("LEDGER_DRIVER", cfg.Ledger.Driver)
	cfg.Ledger.Path = getEnv("LEDGER_PATH", cfg.Ledger.Path)

	cfg.Discord.ApplicationID = getEnv("DISCORD_APPLICATION_ID", cfg.Discord.ApplicationID)
	cfg.Discord.BotToken = getEnv("DISCORD_BOT_TOKEN", cfg.Discord.BotToken)
	cfg.Discord.PublicKey = getEnv("DISCORD_PUBLIC_KEY", cfg.Discord.PublicKey)
	cfg.Discord.PermissionTemplate = getEnv("PERMISSION_TEMPLATE", cfg.Discord.PermissionTemplate)
	cfg.Discord.APIBase = getEnv("DISCORD_API_BASE", cfg.Discord.APIBase)

	if v := os.Getenv(EnvPrefix + "NOTIFY_URLS"); v != "" {
		cfg.NotifyURLs = splitList(v)
	}
	if v, ok := os.LookupEnv(EnvPrefix + "RECONCILE_SCHEDULE"); ok {
		cfg.ReconcileSchedule = v
	}
}

// Validate reports every problem that prevents talking to the proxy manager.
func (c Config) Validate() error {
	var errs []string

	if c.NPM.URL == "" || c.NPM.Email == "" || c.NPM.Password == "" {
		errs = append(errs, "npm url, email and password are required")
	}
	if ip := net.ParseIP(c.ServerIP); ip == nil || ip.To4() == nil {
		errs = append(errs, fmt.Sprintf("server_ip must be an IPv4 address, got %q", c.ServerIP))
	}
	if port, err := strconv.Atoi(c.HTTPPort); err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("http_port must be 1-65535, got %q", c.HTTPPort))
	}
	if c.NPM.Timeout <= 0 {
		errs = append(errs, "npm timeout must be positive")
	}
	if c.DNS.Timeout <= 0 {
		errs = append(errs, "dns timeout must be positive")
	}
	if c.ListCheckLimit <= 0 {
		errs = append(errs, "list_check_limit must be positive")
	}
	switch c.Ledger.Driver {
	case LedgerDriverFile, LedgerDriverSQLite:
		if c.Ledger.Path == "" {
			errs = append(errs, "ledger path is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("ledger driver must be %q or %q, got %q", LedgerDriverFile, LedgerDriverSQLite, c.Ledger.Driver))
	}
	if c.ReconcileSchedule != "" {
		if _, err := cron.ParseStandard(c.ReconcileSchedule); err != nil {
			errs = append(errs, fmt.Sprintf("reconcile_schedule: %v", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

// ValidateServe is Validate plus what the interactions endpoint needs.
func (c Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Discord.PublicKey == "" && !c.IsDevelopment() {
		return errors.New("discord public_key is required outside development")
	}
	return nil
}

// ValidateRegistration reports what command registration needs.
func (c Config) ValidateRegistration() error {
	if c.Discord.ApplicationID == "" || c.Discord.BotToken == "" {
		return errors.New("discord application_id and bot_token are required to register commands")
	}
	return nil
}

func (c Config) IsDevelopment() bool { return c.Environment == "development" }

func getEnv(key, fallback string) string {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		return val
	}
	return fallback
}

func envBool(key string, fallback bool, errs *[]string) bool {
	v := os.Getenv(EnvPrefix + key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s%s: invalid boolean %q", EnvPrefix, key, v))
		return fallback
	}
	return b
}

func envInt(key string, fallback int, errs *[]string) int {
	v := os.Getenv(EnvPrefix + key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s%s: invalid integer %q", EnvPrefix, key, v))
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration, errs *[]string) time.Duration {
	v := os.Getenv(EnvPrefix + key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s%s: invalid duration %q", EnvPrefix, key, v))
		return fallback
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
