package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// fileValues holds settings read from TVAULT_CONFIG_FILE, keyed by the
// environment variable they stand in for. Environment variables win.
var fileValues map[string]string

// FileConfig is the layout of the optional YAML configuration file.
// Every value is kept as text and parsed like the matching environment variable.
type FileConfig struct {
	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`
	Store struct {
		Driver     string `yaml:"driver"`
		Host       string `yaml:"host"`
		Port       string `yaml:"port"`
		User       string `yaml:"user"`
		Password   string `yaml:"password"`
		Name       string `yaml:"name"`
		SSLMode    string `yaml:"sslmode"`
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"store"`
	Vault struct {
		Address       string `yaml:"address"`
		Owner         string `yaml:"owner"`
		Manager       string `yaml:"manager"`
		Treasury      string `yaml:"treasury"`
		DecimalOffset string `yaml:"decimal_offset"`
	} `yaml:"vault"`
	Fees struct {
		Entry       string `yaml:"entry"`
		Exit        string `yaml:"exit"`
		Performance string `yaml:"performance"`
		Management  string `yaml:"management"`
	} `yaml:"fees"`
	Pool struct {
		Token0Decimals string `yaml:"token0_decimals"`
		Token1Decimals string `yaml:"token1_decimals"`
		Fee            string `yaml:"fee"`
		TickSpacing    string `yaml:"tick_spacing"`
		InitialTick    string `yaml:"initial_tick"`
	} `yaml:"pool"`
	Keeper struct {
		Schedule string `yaml:"schedule"`
		Address  string `yaml:"address"`
	} `yaml:"keeper"`
	Web struct {
		Host       string `yaml:"host"`
		Port       string `yaml:"port"`
		CORSOrigin string `yaml:"cors_origin"`
	} `yaml:"web"`
}

// loadConfigFile reads the YAML file at path. Unknown keys are an error.
func loadConfigFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg FileConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg.values(), nil
}

// values maps the file's settings onto environment variable names, skipping
// the ones left empty.
func (c *FileConfig) values() map[string]string {
	all := map[string]string{
		"LOG_LEVEL": c.Log.Level,
		"LOG_FILE":  c.Log.File,

		"DB_DRIVER":   c.Store.Driver,
		"DB_HOST":     c.Store.Host,
		"DB_PORT":     c.Store.Port,
		"DB_USER":     c.Store.User,
		"DB_PASSWORD": c.Store.Password,
		"DB_NAME":     c.Store.Name,
		"DB_SSLMODE":  c.Store.SSLMode,
		"SQLITE_PATH": c.Store.SQLitePath,

		"VAULT_ADDRESS":        c.Vault.Address,
		"VAULT_OWNER":          c.Vault.Owner,
		"VAULT_MANAGER":        c.Vault.Manager,
		"VAULT_TREASURY":       c.Vault.Treasury,
		"VAULT_DECIMAL_OFFSET": c.Vault.DecimalOffset,

		"FEE_ENTRY":       c.Fees.Entry,
		"FEE_EXIT":        c.Fees.Exit,
		"FEE_PERFORMANCE": c.Fees.Performance,
		"FEE_MANAGEMENT":  c.Fees.Management,

		"TOKEN0_DECIMALS":   c.Pool.Token0Decimals,
		"TOKEN1_DECIMALS":   c.Pool.Token1Decimals,
		"POOL_FEE":          c.Pool.Fee,
		"POOL_TICK_SPACING": c.Pool.TickSpacing,
		"POOL_INITIAL_TICK": c.Pool.InitialTick,

		"KEEPER_SCHEDULE": c.Keeper.Schedule,
		"KEEPER_ADDRESS":  c.Keeper.Address,

		"WEB_HOST":    c.Web.Host,
		"WEB_PORT":    c.Web.Port,
		"CORS_ORIGIN": c.Web.CORSOrigin,
	}
	out := make(map[string]string, len(all))
	for key, value := range all {
		if value != "" {
			out[key] = value
		}
	}
	return out
}
