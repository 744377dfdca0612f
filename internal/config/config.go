package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"winsbygroup.com/keyverify/internal/canonical"
	"winsbygroup.com/keyverify/internal/license"
	"winsbygroup.com/keyverify/internal/logging"
	"winsbygroup.com/keyverify/internal/signature"
)

// EnvPrefix prefixes every environment override, e.g. KEYVERIFY_TOKEN.
const EnvPrefix = "KEYVERIFY"

// Config holds all configuration values
type Config struct {
	APIURL             string        `yaml:"api_url" envconfig:"API_URL" validate:"required,url"`
	Token              string        `yaml:"token" envconfig:"TOKEN"`
	ProductID          int64         `yaml:"product_id" envconfig:"PRODUCT_ID" validate:"gte=0"`
	PublicKey          string        `yaml:"public_key" envconfig:"PUBLIC_KEY"`
	SignMethod         int           `yaml:"sign_method" envconfig:"SIGN_METHOD" validate:"oneof=0 1"`
	MachineCodeVersion int           `yaml:"machine_code_version" envconfig:"MACHINE_CODE_VERSION" validate:"oneof=1 2"`
	RequestTimeout     time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" validate:"gt=0"`
	RateLimit          RateLimit     `yaml:"rate_limit" envconfig:"RATE_LIMIT"`

	Addr         string        `yaml:"addr" envconfig:"ADDR" validate:"required"`
	DBPath       string        `yaml:"db_path" envconfig:"DB_PATH" validate:"required"`
	APIKey       string        `yaml:"api_key" envconfig:"API_KEY"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" validate:"gt=0"`

	Floating Floating       `yaml:"floating" envconfig:"FLOATING"`
	Log      logging.Config `yaml:"log" envconfig:"LOG"`

	DBPathSource string `yaml:"-" ignored:"true"` // where DBPath was set from: "default", "yaml file", or "env var"
}

// RateLimit bounds calls to the licensing service. RPS 0 disables limiting.
type RateLimit struct {
	RPS   float64 `yaml:"rps" envconfig:"RPS" validate:"gte=0"`
	Burst int     `yaml:"burst" envconfig:"BURST" validate:"gte=1"`
}

// Floating configures floating licenses and the Mid layout they use.
type Floating struct {
	Enabled         bool `yaml:"enabled" envconfig:"ENABLED"`
	AllowOverdraft  bool `yaml:"allow_overdraft" envconfig:"ALLOW_OVERDRAFT"`
	PrimaryOffset   int  `yaml:"primary_offset" envconfig:"PRIMARY_OFFSET" validate:"gte=0"`
	OverdraftOffset int  `yaml:"overdraft_offset" envconfig:"OVERDRAFT_OFFSET" validate:"gte=0"`
	SuffixIDs       bool `yaml:"suffix_ids" envconfig:"SUFFIX_IDS"`
	TimeInterval    int  `yaml:"time_interval" envconfig:"TIME_INTERVAL" validate:"gte=0"` // seconds
	MaxOverdraft    int  `yaml:"max_overdraft" envconfig:"MAX_OVERDRAFT" validate:"gte=0"`
}

// MidLayout returns the configured floating Mid layout.
func (f Floating) MidLayout() license.MidLayout {
	return license.MidLayout{
		PrimaryOffset:   f.PrimaryOffset,
		OverdraftOffset: f.OverdraftOffset,
		Suffix:          f.SuffixIDs,
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		APIURL:             "https://api.cryptolens.io/api/",
		SignMethod:         int(canonical.SignMethodBlob),
		MachineCodeVersion: 1,
		RequestTimeout:     10 * time.Second,
		RateLimit:          RateLimit{RPS: 5, Burst: 5},
		Addr:               ":8080",
		DBPath:             "./licenses.db",
		DBPathSource:       "default",
		ReadTimeout:        5 * time.Second,
		WriteTimeout:       10 * time.Second,
		IdleTimeout:        120 * time.Second,
		Floating: Floating{
			PrimaryOffset:   license.DefaultMidLayout.PrimaryOffset,
			OverdraftOffset: license.DefaultMidLayout.OverdraftOffset,
		},
		Log: logging.Config{Level: "info"},
	}
}

// Load loads configuration from YAML file and overrides with env vars if present
func Load(path string) (*Config, error) {
	cfg := Default()

	// Load from YAML if file exists
	if f, err := os.Open(path); err == nil {
		defer f.Close()
		prevDBPath := cfg.DBPath
		decoder := yaml.NewDecoder(f)
		if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		if cfg.DBPath != prevDBPath {
			cfg.DBPathSource = "yaml file"
		}
	}

	// Override with environment variables
	prevDBPath := cfg.DBPath
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	if cfg.DBPath != prevDBPath {
		cfg.DBPathSource = "env var"
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Addr = ":" + v
	}

	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate reports every problem with cfg at once.
func (c *Config) Validate() error {
	var errs error

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = multierr.Append(errs, fmt.Errorf("%s: failed %q check", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = multierr.Append(errs, err)
		}
	}

	f := c.Floating
	if f.OverdraftOffset != 0 && f.OverdraftOffset <= f.PrimaryOffset {
		errs = multierr.Append(errs, fmt.Errorf("floating.overdraft_offset (%d) must be 0 or greater than floating.primary_offset (%d)",
			f.OverdraftOffset, f.PrimaryOffset))
	}

	if c.PublicKey != "" {
		if _, err := signature.Parse(c.PublicKey); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("public_key: %w", err))
		}
	}

	return errs
}

// VerificationKey returns the configured public key, falling back to the key
// embedded at build time.
func (c *Config) VerificationKey() (*signature.PublicKey, error) {
	if c.PublicKey != "" {
		return signature.Parse(c.PublicKey)
	}
	key, err := signature.Embedded()
	if err != nil {
		return nil, fmt.Errorf("no public_key configured: %w", err)
	}
	return key, nil
}
