// Package config loads the keeper's runtime configuration: a YAML file
// for the static deployment topology, environment variables (loaded via
// a .env file when present) for secrets; the CLI flags only choose the
// YAML and .env file paths.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/zo-protocol/zo-keeper-go/internal/accounts"
)

// Collateral names one State.Collaterals slot's oracle symbol, since the
// mint alone does not carry a human ticker.
type Collateral struct {
	Index  int    `yaml:"index"`
	Symbol string `yaml:"symbol"`
}

// Oracle maps a cached symbol to the on-chain account the crank reads it
// from.
type Oracle struct {
	Symbol string `yaml:"symbol"`
	Source string `yaml:"source"`
}

// Config is the keeper's full static configuration, unmarshalled from
// YAML and overlaid with environment secrets.
type Config struct {
	RPCURL      string `yaml:"rpc_url"`
	WSURL       string `yaml:"ws_url"`
	ProgramID   string `yaml:"program_id"`
	DexProgram  string `yaml:"dex_program"`
	StatePubkey string `yaml:"state"`
	CachePubkey string `yaml:"cache"`
	OracleCount int    `yaml:"oracle_count"`

	Collaterals []Collateral `yaml:"collaterals"`
	Oracles     []Oracle     `yaml:"oracles"`

	MongoURI string `yaml:"-"`
	MongoDB  string `yaml:"mongo_db"`

	PayerKeypairPath string `yaml:"payer_keypair"`

	WorkerIndex int `yaml:"worker_index"`
	WorkerCount int `yaml:"worker_count"`
}

// Load reads the YAML file at path, then overlays secrets from the
// process environment (after loading envPath via godotenv, if present).
func Load(path, envPath string) (*Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if v := os.Getenv("ZO_KEEPER_RPC_URL"); v != "" {
		cfg.RPCURL = v
	}
	if v := os.Getenv("ZO_KEEPER_WS_URL"); v != "" {
		cfg.WSURL = v
	}
	if v := os.Getenv("ZO_KEEPER_MONGO_URI"); v != "" {
		cfg.MongoURI = v
	}
	if v := os.Getenv("ZO_KEEPER_PAYER_KEYPAIR"); v != "" {
		cfg.PayerKeypairPath = v
	}

	if cfg.WorkerCount == 0 {
		cfg.WorkerCount = 1
	}
	return &cfg, nil
}

// CollateralSymbols builds the index->symbol map buildAccount needs from
// the configured collateral list.
func (c *Config) CollateralSymbols() map[int]accounts.Symbol {
	out := make(map[int]accounts.Symbol, len(c.Collaterals))
	for _, col := range c.Collaterals {
		out[col.Index] = col.Symbol
	}
	return out
}

// OracleSources builds the symbol->source-account map the crank's
// cache_oracle dispatch needs.
func (c *Config) OracleSources() map[string]string {
	out := make(map[string]string, len(c.Oracles))
	for _, o := range c.Oracles {
		out[o.Symbol] = o.Source
	}
	return out
}
