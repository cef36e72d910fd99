package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/goliatone/go-mintflow/core"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath   = "MINTFLOW_CONFIG"
	EnvClientID     = "MINTFLOW_CLIENT_ID"
	EnvClientSecret = "MINTFLOW_CLIENT_SECRET"
	EnvAppKey       = "MINTFLOW_APP_KEY"

	DefaultConfigPath = "mintflow.yaml"
)

// yamlConfigLoader reads the raw config map from a YAML file. A missing
// file yields an empty map so defaults apply.
type yamlConfigLoader struct {
	fs   afero.Fs
	path string
}

func (l yamlConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	path := strings.TrimSpace(l.path)
	if path == "" {
		return map[string]any{}, nil
	}
	exists, err := afero.Exists(l.fs, path)
	if err != nil {
		return nil, fmt.Errorf("cli: stat config %s: %w", path, err)
	}
	if !exists {
		return map[string]any{}, nil
	}
	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return nil, fmt.Errorf("cli: read config %s: %w", path, err)
	}
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("cli: parse config %s: %w", path, err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// Settings is the resolved configuration for one CLI invocation.
type Settings struct {
	Config       core.Config
	ClientID     string
	ClientSecret string
}

// LoadSettings layers defaults, the YAML file and environment overrides.
func LoadSettings(ctx context.Context, fs afero.Fs, path string, getenv func(string) string) (Settings, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	if strings.TrimSpace(path) == "" {
		path = strings.TrimSpace(getenv(EnvConfigPath))
	}
	if path == "" {
		path = DefaultConfigPath
	}

	provider := core.NewCfgxConfigProvider(yamlConfigLoader{fs: fs, path: path})
	cfg, err := provider.Load(ctx, core.DefaultConfig())
	if err != nil {
		return Settings{}, err
	}
	if key := strings.TrimSpace(getenv(EnvAppKey)); key != "" {
		cfg.Security.AppKey = key
	}
	return Settings{
		Config:       cfg,
		ClientID:     strings.TrimSpace(getenv(EnvClientID)),
		ClientSecret: strings.TrimSpace(getenv(EnvClientSecret)),
	}, nil
}

// WriteDefaultConfig stores the default configuration as YAML at path. It
// refuses to overwrite an existing file unless force is set.
func WriteDefaultConfig(fs afero.Fs, path string, force bool) error {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if !force {
		exists, err := afero.Exists(fs, path)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("cli: %s already exists", path)
		}
	}
	cfg := core.DefaultConfig()
	doc := map[string]any{
		"service_name": cfg.ServiceName,
		"api": map[string]any{
			"base_url": cfg.API.BaseURL,
			"auth_url": cfg.API.AuthURL,
			"realm":    cfg.API.Realm,
		},
		"polling": map[string]any{
			"max_attempts": cfg.Polling.MaxAttempts,
		},
		"chains": map[string]any{
			"supported": cfg.Chains.Supported,
		},
		"storage": map[string]any{
			"driver": cfg.Storage.Driver,
			"dsn":    cfg.Storage.DSN,
		},
		"defaults": map[string]any{
			"contract_name":        cfg.Defaults.ContractName,
			"contract_description": cfg.Defaults.ContractDescription,
			"image":                cfg.Defaults.Image,
			"external_url":         cfg.Defaults.ExternalURL,
			"chain":                cfg.Defaults.Chain,
			"mint_amount":          cfg.Defaults.MintAmount,
		},
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	return afero.WriteFile(fs, path, data, 0o600)
}
