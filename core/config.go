package core

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultRefreshMargin    = 30 * time.Second
	DefaultPollInterval     = 5 * time.Second
	DefaultPollMaxAttempts  = 12
	DefaultRequestTimeout   = 30 * time.Second
	DefaultChainsCacheTTL   = time.Hour
	DefaultMintAmount       = 50
	MinMintAmount           = 1
	MaxMintAmount           = 100
	defaultServiceName      = "mintflow"
	defaultAuthRealm        = "Arkane"
	defaultStorageDriver    = "sqlite3"
	defaultStorageDSN       = "file:mintflow.db?cache=shared&_foreign_keys=on"
	defaultContractImageURL = "https://i.ibb.co/f0ZWgzZ/100usdbill.jpg"
)

var DefaultChains = []string{"AVAC", "BSC", "ETHEREUM", "MATIC", "ARBITRUM"}

type APIConfig struct {
	BaseURL        string        `koanf:"base_url" mapstructure:"base_url"`
	AuthURL        string        `koanf:"auth_url" mapstructure:"auth_url"`
	Realm          string        `koanf:"realm" mapstructure:"realm"`
	RequestTimeout time.Duration `koanf:"request_timeout" mapstructure:"request_timeout"`
}

// TokenURL resolves the client-credentials endpoint of the configured realm.
func (c APIConfig) TokenURL() string {
	base := strings.TrimSuffix(strings.TrimSpace(c.AuthURL), "/")
	if base == "" {
		return ""
	}
	realm := strings.TrimSpace(c.Realm)
	if realm == "" {
		realm = defaultAuthRealm
	}
	return base + "/realms/" + url.PathEscape(realm) + "/protocol/openid-connect/token"
}

type TokenConfig struct {
	RefreshMargin time.Duration `koanf:"refresh_margin" mapstructure:"refresh_margin"`
}

type PollingConfig struct {
	Interval    time.Duration `koanf:"interval" mapstructure:"interval"`
	MaxAttempts int           `koanf:"max_attempts" mapstructure:"max_attempts"`
}

type ChainsConfig struct {
	Supported []string      `koanf:"supported" mapstructure:"supported"`
	CacheTTL  time.Duration `koanf:"cache_ttl" mapstructure:"cache_ttl"`
}

type StorageConfig struct {
	Driver string `koanf:"driver" mapstructure:"driver"`
	DSN    string `koanf:"dsn" mapstructure:"dsn"`
	Debug  bool   `koanf:"debug" mapstructure:"debug"`
}

type SecurityConfig struct {
	AppKey string `koanf:"app_key" mapstructure:"app_key"`
	KeyID  string `koanf:"key_id" mapstructure:"key_id"`
}

// DefaultsConfig holds the prefilled values offered for each stage.
type DefaultsConfig struct {
	ContractName        string `koanf:"contract_name" mapstructure:"contract_name"`
	ContractDescription string `koanf:"contract_description" mapstructure:"contract_description"`
	Image               string `koanf:"image" mapstructure:"image"`
	ExternalURL         string `koanf:"external_url" mapstructure:"external_url"`
	Chain               string `koanf:"chain" mapstructure:"chain"`
	MintAmount          int    `koanf:"mint_amount" mapstructure:"mint_amount"`
}

type Config struct {
	ServiceName string         `koanf:"service_name" mapstructure:"service_name"`
	API         APIConfig      `koanf:"api" mapstructure:"api"`
	Token       TokenConfig    `koanf:"token" mapstructure:"token"`
	Polling     PollingConfig  `koanf:"polling" mapstructure:"polling"`
	Chains      ChainsConfig   `koanf:"chains" mapstructure:"chains"`
	Storage     StorageConfig  `koanf:"storage" mapstructure:"storage"`
	Security    SecurityConfig `koanf:"security" mapstructure:"security"`
	Defaults    DefaultsConfig `koanf:"defaults" mapstructure:"defaults"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: defaultServiceName,
		API: APIConfig{
			BaseURL:        "https://api-business.venly.io",
			AuthURL:        "https://login.venly.io/auth",
			Realm:          defaultAuthRealm,
			RequestTimeout: DefaultRequestTimeout,
		},
		Token: TokenConfig{
			RefreshMargin: DefaultRefreshMargin,
		},
		Polling: PollingConfig{
			Interval:    DefaultPollInterval,
			MaxAttempts: DefaultPollMaxAttempts,
		},
		Chains: ChainsConfig{
			Supported: append([]string(nil), DefaultChains...),
			CacheTTL:  DefaultChainsCacheTTL,
		},
		Storage: StorageConfig{
			Driver: defaultStorageDriver,
			DSN:    defaultStorageDSN,
		},
		Security: SecurityConfig{
			KeyID: "app-key",
		},
		Defaults: DefaultsConfig{
			ContractName:        "Ekwel Cash",
			ContractDescription: "USD",
			Image:               defaultContractImageURL,
			ExternalURL:         "https://www.venly.io/",
			Chain:               "MATIC",
			MintAmount:          DefaultMintAmount,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Token.RefreshMargin < 0 {
		return fmt.Errorf("core: token.refresh_margin must not be negative")
	}
	if c.Polling.Interval < 0 {
		return fmt.Errorf("core: polling.interval must not be negative")
	}
	if c.Polling.MaxAttempts < 0 {
		return fmt.Errorf("core: polling.max_attempts must not be negative")
	}
	if raw := strings.TrimSpace(c.API.BaseURL); raw != "" {
		if _, err := url.ParseRequestURI(raw); err != nil {
			return fmt.Errorf("core: api.base_url is invalid: %w", err)
		}
	}
	if c.Defaults.MintAmount != 0 && (c.Defaults.MintAmount < MinMintAmount || c.Defaults.MintAmount > MaxMintAmount) {
		return fmt.Errorf("core: defaults.mint_amount must be between %d and %d", MinMintAmount, MaxMintAmount)
	}
	return nil
}

func (c Config) pollInterval() time.Duration {
	if c.Polling.Interval <= 0 {
		return DefaultPollInterval
	}
	return c.Polling.Interval
}

func (c Config) pollMaxAttempts() int {
	if c.Polling.MaxAttempts <= 0 {
		return DefaultPollMaxAttempts
	}
	return c.Polling.MaxAttempts
}

func (c Config) refreshMargin() time.Duration {
	if c.Token.RefreshMargin <= 0 {
		return DefaultRefreshMargin
	}
	return c.Token.RefreshMargin
}
