// Package config resolves SurveyBot settings from defaults, an optional YAML
// file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"gopkg.in/yaml.v3"
)

const (
	DefaultSchemaPath = "GENAI_SURVEY_ANALYSIS.RAW"
	DefaultTableName  = "EMPLOYEES"
	DefaultAddr       = ":8080"
	DefaultDriver     = "snowflake"

	// DefaultEnrichmentColumn is the column sampled by the default enrichment query.
	DefaultEnrichmentColumn = "AGE"

	DefaultLLMProvider = "openai"

	PlaceholderQuestion = "question"
	PlaceholderDollar   = "dollar"
)

// DefaultDescription describes the survey table to the model.
const DefaultDescription = `
This table contains survey response data on a survey about wellbeing and the work place.
The respondent gives responses in various metrics such as numerical ratings and free text responses

`

// Config holds all SurveyBot settings.
type Config struct {
	Warehouse  WarehouseConfig  `yaml:"warehouse"`
	SchemaPath string           `yaml:"schema_path"`
	Table      TableConfig      `yaml:"table"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Cache      CacheConfig      `yaml:"cache"`
	LLM        LLMConfig        `yaml:"llm"`
	Addr       string           `yaml:"addr"`
}

// WarehouseConfig selects the database/sql driver and connection string.
type WarehouseConfig struct {
	Driver      string `yaml:"driver"`
	DSN         string `yaml:"dsn"`
	Placeholder string `yaml:"placeholder"`
}

// TableConfig names the table described to the model.
type TableConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// EnrichmentConfig configures the optional values sample.
type EnrichmentConfig struct {
	Query    string `yaml:"query"`
	Column   string `yaml:"column"`
	Disabled bool   `yaml:"disabled"`
}

// CacheConfig configures the table context cache. A zero TTL never expires.
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// LLMConfig selects the language model that answers questions in serve
// mode. An empty APIKey leaves SQL generation disabled.
type LLMConfig struct {
	Provider  string `yaml:"provider"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	MaxTokens int    `yaml:"max_tokens"`
}

// Enabled reports whether an LLM provider should be created.
func (l LLMConfig) Enabled() bool {
	return l.APIKey != ""
}

// Load reads the YAML file at path (if non-empty), applies environment
// overrides and fills defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Warehouse.Driver, "WAREHOUSE_DRIVER")
	setString(&c.Warehouse.DSN, "WAREHOUSE_DSN")
	setString(&c.Warehouse.Placeholder, "WAREHOUSE_PLACEHOLDER")
	setString(&c.SchemaPath, "SCHEMA_PATH")
	setString(&c.Table.Name, "TABLE_NAME")
	setString(&c.Table.Description, "TABLE_DESCRIPTION")
	setString(&c.Enrichment.Query, "ENRICHMENT_QUERY")
	setString(&c.Enrichment.Column, "ENRICHMENT_COLUMN")
	setString(&c.Addr, "ADDR")
	setString(&c.LLM.Provider, "LLM_PROVIDER")
	setString(&c.LLM.APIKey, "LLM_API_KEY")
	setString(&c.LLM.Model, "LLM_MODEL")
	setString(&c.LLM.BaseURL, "LLM_BASE_URL")

	if v := env("LLM_MAX_TOKENS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LLM_MAX_TOKENS: %w", err)
		}
		c.LLM.MaxTokens = n
	}

	if v := env("ENRICHMENT_DISABLED"); v != "" {
		disabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("ENRICHMENT_DISABLED: %w", err)
		}
		c.Enrichment.Disabled = disabled
	}
	if v := env("CONTEXT_CACHE_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("CONTEXT_CACHE_TTL: %w", err)
		}
		c.Cache.TTL = ttl
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Warehouse.Driver == "" {
		c.Warehouse.Driver = DefaultDriver
	}
	if c.Warehouse.Placeholder == "" {
		c.Warehouse.Placeholder = PlaceholderQuestion
		if c.Warehouse.Driver == "postgres" {
			c.Warehouse.Placeholder = PlaceholderDollar
		}
	}
	if c.SchemaPath == "" {
		c.SchemaPath = DefaultSchemaPath
	}
	if c.Table.Name == "" {
		c.Table.Name = DefaultTableName
	}
	if c.Table.Description == "" {
		c.Table.Description = DefaultDescription
	}
	// A custom query must name its own column; only the default query may
	// pick up the default column.
	if c.Enrichment.Query == "" {
		if c.Enrichment.Column == "" {
			c.Enrichment.Column = DefaultEnrichmentColumn
		}
		c.Enrichment.Query = fmt.Sprintf("SELECT %s FROM %s;", c.Enrichment.Column, c.QualifiedTableName())
	}
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	c.LLM.Provider = strings.ToLower(c.LLM.Provider)
	if c.LLM.Provider == "" {
		c.LLM.Provider = DefaultLLMProvider
	}
}

// Validate reports settings that cannot produce a table context.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.SchemaPath) == "" {
		errs = append(errs, errors.New("schema path is empty (set SCHEMA_PATH)"))
	}
	if strings.TrimSpace(c.Table.Name) == "" {
		errs = append(errs, errors.New("table name is empty (set TABLE_NAME)"))
	}
	if !c.Enrichment.Disabled && c.Enrichment.Column == "" {
		errs = append(errs, errors.New("enrichment column is empty (set ENRICHMENT_COLUMN or ENRICHMENT_DISABLED)"))
	}
	switch c.Warehouse.Placeholder {
	case PlaceholderQuestion, PlaceholderDollar:
	default:
		errs = append(errs, fmt.Errorf("unknown placeholder format %q (supported: question, dollar)", c.Warehouse.Placeholder))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, errors.New("cache ttl must not be negative"))
	}
	if c.LLM.MaxTokens < 0 {
		errs = append(errs, errors.New("llm max_tokens must not be negative"))
	}
	return errors.Join(errs...)
}

// QualifiedTableName returns "<schema-path>.<table-name>".
func (c *Config) QualifiedTableName() string {
	return c.SchemaPath + "." + c.Table.Name
}

// PlaceholderFormat returns the squirrel placeholder format for the driver.
func (c *Config) PlaceholderFormat() sq.PlaceholderFormat {
	if c.Warehouse.Placeholder == PlaceholderDollar {
		return sq.Dollar
	}
	return sq.Question
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func setString(dst *string, key string) {
	if v := env(key); v != "" {
		*dst = v
	}
}
