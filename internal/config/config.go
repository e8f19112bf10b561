// Package config loads ledgerd settings from ledgerd.yaml and LEDGERD_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/simonvc/ledgerd/internal/logger"
)

type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Log       logger.Config
	Generator GeneratorConfig
	Resolver  ResolverConfig
	CashFlow  CashFlowConfig

	// File is the config file that was read, empty when none was found.
	File string
}

type DatabaseConfig struct {
	Path string
}

type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type GeneratorConfig struct {
	ReferencePrefix string
	DefaultTaxRate  decimal.Decimal
	AutoPost        bool
}

// ResolverConfig overlays the built-in account defaults. Keys of
// TaxRateCodes are rates ("15"), keys of the other maps are purposes.
type ResolverConfig struct {
	TaxRateCodes    map[string]string
	PurposeCodes    map[string]string
	PurposePrefixes map[string][]string
}

type CashFlowConfig struct {
	CashCodes         []string
	InvestingKeywords []string
	FinancingKeywords []string
}

// Load reads file when given, otherwise searches ./ledgerd.yaml and
// $HOME/.ledgerd/ledgerd.yaml. A missing search-path file is not an error.
// Environment variables such as LEDGERD_DATABASE_PATH override the file.
func Load(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("ledgerd")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.ledgerd")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("LEDGERD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	rate, err := decimal.NewFromString(v.GetString("generator.default_tax_rate"))
	if err != nil {
		return nil, fmt.Errorf("generator.default_tax_rate: %w", err)
	}

	cfg := &Config{
		Database: DatabaseConfig{Path: v.GetString("database.path")},
		Server: ServerConfig{
			Addr:         v.GetString("server.addr"),
			ReadTimeout:  v.GetDuration("server.read_timeout"),
			WriteTimeout: v.GetDuration("server.write_timeout"),
		},
		Log: logger.Config{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Generator: GeneratorConfig{
			ReferencePrefix: v.GetString("generator.reference_prefix"),
			DefaultTaxRate:  rate,
			AutoPost:        v.GetBool("generator.auto_post"),
		},
		Resolver: ResolverConfig{
			TaxRateCodes:    v.GetStringMapString("resolver.tax_rate_codes"),
			PurposeCodes:    v.GetStringMapString("resolver.purpose_codes"),
			PurposePrefixes: v.GetStringMapStringSlice("resolver.purpose_prefixes"),
		},
		CashFlow: CashFlowConfig{
			CashCodes:         v.GetStringSlice("cashflow.cash_codes"),
			InvestingKeywords: v.GetStringSlice("cashflow.investing_keywords"),
			FinancingKeywords: v.GetStringSlice("cashflow.financing_keywords"),
		},
		File: v.ConfigFileUsed(),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "ledgerd.db")
	v.SetDefault("server.addr", ":8888")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stderr")
	v.SetDefault("generator.reference_prefix", "INV")
	v.SetDefault("generator.default_tax_rate", "15")
	v.SetDefault("generator.auto_post", false)
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database.path is required")
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		return errors.New("server timeouts must be positive")
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	if strings.TrimSpace(c.Generator.ReferencePrefix) == "" {
		return errors.New("generator.reference_prefix is required")
	}
	if c.Generator.DefaultTaxRate.IsNegative() {
		return errors.New("generator.default_tax_rate cannot be negative")
	}
	for rate := range c.Resolver.TaxRateCodes {
		if _, err := decimal.NewFromString(rate); err != nil {
			return fmt.Errorf("resolver.tax_rate_codes: bad rate %q", rate)
		}
	}
	return nil
}
