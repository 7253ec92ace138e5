package config

import (
	"github.com/kelseyhightower/envconfig"
)

// Config is used to hold all runtime configuration.
type Config struct {
	Ledger struct {
		OwnerAddress     string `envconfig:"OWNER_ADDRESS"`
		AuthorityAddress string `envconfig:"AUTHORITY_ADDRESS"`
		FeeAddress       string `envconfig:"FEE_ADDRESS"`
		FeeBps           uint32 `default:"250" envconfig:"FEE_BPS"`
	}
	Verifier struct {
		Endpoint       string `envconfig:"VERIFY_ENDPOINT"`
		Key            string `envconfig:"VERIFY_KEY"`
		PartnerID      string `envconfig:"PARTNER_ID"`
		SigningKeyFile string `envconfig:"SIGNING_KEY_FILE"`
		SigningKeyID   string `default:"data-market-key-1" envconfig:"SIGNING_KEY_ID"`
		RequestTimeout uint64 `default:"10000000000" envconfig:"VERIFY_TIMEOUT"` // Default 10 seconds
	}
	Web struct {
		Address string `default:":3000" envconfig:"WEB_ADDRESS"`
	}
	AWS struct {
		Region          string `default:"ap-southeast-2" envconfig:"AWS_REGION" json:"AWS_REGION"`
		AccessKeyID     string `envconfig:"AWS_ACCESS_KEY_ID" json:"AWS_ACCESS_KEY_ID"`
		SecretAccessKey string `envconfig:"AWS_SECRET_ACCESS_KEY" json:"AWS_SECRET_ACCESS_KEY"`
	}
	Storage struct {
		Bucket string `default:"standalone" envconfig:"ESCROW_STORAGE_BUCKET"`
		Root   string `default:"./tmp" envconfig:"ESCROW_STORAGE_ROOT"`
	}
}

// SafeConfig masks sensitive config values
func SafeConfig(cfg Config) *Config {
	cfgSafe := cfg

	if len(cfgSafe.Verifier.Key) > 0 {
		cfgSafe.Verifier.Key = "*** Masked ***"
	}
	if len(cfgSafe.AWS.AccessKeyID) > 0 {
		cfgSafe.AWS.AccessKeyID = "*** Masked ***"
	}
	if len(cfgSafe.AWS.SecretAccessKey) > 0 {
		cfgSafe.AWS.SecretAccessKey = "*** Masked ***"
	}

	return &cfgSafe
}

// Environment returns configuration sourced from environment variables
func Environment() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("NODE", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
