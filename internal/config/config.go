package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "github.com/remi-espie/AutoRenewPayByPhone/libs/config"
)

// AccountCredentials hold the PayByPhone login for one account.
type AccountCredentials struct {
	Login            string `yaml:"login"`
	Password         string `yaml:"password"`
	PaymentAccountID string `yaml:"paymentAccountId"`
}

// Account binds a vehicle to its lot and PayByPhone credentials.
type Account struct {
	Name       string             `yaml:"name"`
	Plate      string             `yaml:"plate"`
	Lot        int                `yaml:"lot"`
	PayByPhone AccountCredentials `yaml:"payByPhone"`
}

// HTTPConfig configures the listening side.
type HTTPConfig struct {
	Port string `yaml:"port" env:"HTTP_PORT"`
}

// AuthConfig configures access to the service's own API.
type AuthConfig struct {
	// Static bearer accepted as-is, for non-interactive callers.
	Bearer string `yaml:"bearer" env:"AUTH_BEARER"`
	// Bcrypt hash of the password exchanged for a JWT at /auth/token.
	PasswordHash    string `yaml:"passwordHash" env:"AUTH_PASSWORD_HASH"`
	JWTSecret       string `yaml:"jwtSecret" env:"AUTH_JWT_SECRET"`
	TokenTTLMinutes int    `yaml:"tokenTtlMinutes" env:"AUTH_TOKEN_TTL"`
}

// SweepConfig tunes the periodic renewal sweep.
type SweepConfig struct {
	IntervalSeconds int `yaml:"intervalSeconds" env:"SWEEP_INTERVAL"`
}

// ParkingConfig tunes the booking pipeline.
type ParkingConfig struct {
	// Size of the booked increment; the minimum chargeable unit upstream.
	ProbeMinutes int `yaml:"probeMinutes" env:"PARKING_PROBE_MINUTES"`
}

// DatabaseConfig enables the booking history when a DSN is set.
type DatabaseConfig struct {
	DSN string `yaml:"dsn" env:"POSTGRES_DSN"`
}

// RedisConfig enables durable renewal state when an addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
}

// PayByPhoneConfig overrides upstream base URLs, mainly for tests.
type PayByPhoneConfig struct {
	ScriptURL string `yaml:"scriptUrl" env:"PBP_SCRIPT_URL"`
	AuthURL   string `yaml:"authUrl" env:"PBP_AUTH_URL"`
	APIURL    string `yaml:"apiUrl" env:"PBP_API_URL"`
}

// Config is the whole service configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Auth       AuthConfig       `yaml:"auth"`
	Sweep      SweepConfig      `yaml:"sweep"`
	Parking    ParkingConfig    `yaml:"parking"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	PayByPhone PayByPhoneConfig `yaml:"payByPhone"`
	Accounts   []Account        `yaml:"accounts" env:"-"`
}

// Load reads configuration via the shared helper and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		HTTP:    HTTPConfig{Port: "3000"},
		Sweep:   SweepConfig{IntervalSeconds: 60},
		Parking: ParkingConfig{ProbeMinutes: 15},
	}

	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Auth.Bearer) == "" && strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return nil, errors.New("config: auth bearer or jwt secret required")
	}
	if len(cfg.Accounts) == 0 {
		return nil, errors.New("config: at least one account required")
	}

	seen := make(map[string]struct{}, len(cfg.Accounts))
	for _, account := range cfg.Accounts {
		name := strings.TrimSpace(account.Name)
		if name == "" || strings.TrimSpace(account.Plate) == "" {
			return nil, errors.New("config: account name and plate required")
		}
		if account.Lot == 0 {
			return nil, fmt.Errorf("config: account %s: lot required", name)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("config: duplicate account name %s", name)
		}
		seen[name] = struct{}{}
	}

	return cfg, nil
}

// FindAccount returns the account with the given name.
func (c *Config) FindAccount(name string) (Account, bool) {
	for _, account := range c.Accounts {
		if account.Name == name {
			return account, true
		}
	}
	return Account{}, false
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "3000"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// SweepInterval returns the sweep cadence as a duration.
func (c *Config) SweepInterval() time.Duration {
	if c.Sweep.IntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.Sweep.IntervalSeconds) * time.Second
}

// TokenTTL returns the JWT lifetime.
func (c *Config) TokenTTL() time.Duration {
	if c.Auth.TokenTTLMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.Auth.TokenTTLMinutes) * time.Minute
}
