// Package config provides configuration loading and validation for AccessLens.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/joshsymonds/accesslens/internal/models"
)

// Defaults applied by LoadConfig.
const (
	DefaultAccountChunkSize = 75
	DefaultPathSeparator    = ";"
	DefaultStepSeparator    = "|"
)

// Config represents the complete AccessLens configuration.
type Config struct {
	Tenant                     Tenant                    `yaml:"tenant"`
	Reports                    Reports                   `yaml:"reports"`
	AccessPaths                AccessPaths               `yaml:"access_paths"`
	IncludedIdentityAttributes []models.AttributeMapping `yaml:"included_identity_attributes"`
	Database                   string                    `yaml:"database,omitempty"`
	AccountChunkSize           int                       `yaml:"account_chunk_size,omitempty"`
}

// Tenant contains identity-platform and CIEM endpoint configuration.
type Tenant struct {
	BaseURL      string `yaml:"base_url"`
	CiemBaseURL  string `yaml:"ciem_base_url,omitempty"`
	TokenURL     string `yaml:"token_url,omitempty"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// Reports describes the working directory layout for input and output
// report trees.
type Reports struct {
	WorkingDir            string `yaml:"working_dir,omitempty"`
	InputDir              string `yaml:"input_dir,omitempty"`
	OutputDir             string `yaml:"output_dir,omitempty"`
	ResourceAccessDir     string `yaml:"resource_access_dir,omitempty"`
	UnusedAccessDir       string `yaml:"unused_access_dir,omitempty"`
	CustomDir             string `yaml:"custom_dir,omitempty"`
	ResourceAccessArchive string `yaml:"resource_access_archive,omitempty"`
}

// AccessPaths configures the delimiters of the CIEM access path encoding.
type AccessPaths struct {
	// PathSeparator separates steps within an encoded path.
	PathSeparator string `yaml:"path_separator,omitempty"`
	// StepSeparator separates the four fields within one step.
	StepSeparator string `yaml:"step_separator,omitempty"`
}

// Environment variables overriding file-based credentials.
const (
	EnvClientID     = "ACCESSLENS_CLIENT_ID"
	EnvClientSecret = "ACCESSLENS_CLIENT_SECRET"
)

// LoadConfig reads and parses a YAML configuration file, applies defaults
// and environment overrides, and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path is from trusted source (config file)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	config.applyDefaults()

	if id := os.Getenv(EnvClientID); id != "" {
		config.Tenant.ClientID = id
	}
	if secret := os.Getenv(EnvClientSecret); secret != "" {
		config.Tenant.ClientSecret = secret
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Tenant.CiemBaseURL == "" {
		c.Tenant.CiemBaseURL = c.Tenant.BaseURL
	}
	if c.Tenant.TokenURL == "" && c.Tenant.BaseURL != "" {
		c.Tenant.TokenURL = c.Tenant.BaseURL + "/oauth/token"
	}
	if c.AccountChunkSize == 0 {
		c.AccountChunkSize = DefaultAccountChunkSize
	}
	if c.AccessPaths.PathSeparator == "" {
		c.AccessPaths.PathSeparator = DefaultPathSeparator
	}
	if c.AccessPaths.StepSeparator == "" {
		c.AccessPaths.StepSeparator = DefaultStepSeparator
	}
	if c.Reports.WorkingDir == "" {
		c.Reports.WorkingDir = "."
	}
	if c.Reports.InputDir == "" {
		c.Reports.InputDir = "input-reports"
	}
	if c.Reports.OutputDir == "" {
		c.Reports.OutputDir = "output-reports"
	}
	if c.Reports.ResourceAccessDir == "" {
		c.Reports.ResourceAccessDir = "resource-access"
	}
	if c.Reports.UnusedAccessDir == "" {
		c.Reports.UnusedAccessDir = "unused-access"
	}
	if c.Reports.CustomDir == "" {
		c.Reports.CustomDir = "custom-reports"
	}
	if c.Reports.ResourceAccessArchive == "" {
		c.Reports.ResourceAccessArchive = "resource-access-report.zip"
	}
	if c.Database == "" {
		c.Database = "accesslens.db"
	}
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.Tenant.BaseURL == "" {
		return fmt.Errorf("tenant.base_url is required")
	}
	if c.Tenant.ClientID == "" {
		return fmt.Errorf("tenant.client_id is required")
	}
	if c.Tenant.ClientSecret == "" {
		return fmt.Errorf("tenant.client_secret is required")
	}
	if c.AccountChunkSize < 1 {
		return fmt.Errorf("account_chunk_size must be positive, got %d", c.AccountChunkSize)
	}
	if c.AccessPaths.PathSeparator == c.AccessPaths.StepSeparator {
		return fmt.Errorf("access_paths separators must differ, both are %q", c.AccessPaths.PathSeparator)
	}
	for i, mapping := range c.IncludedIdentityAttributes {
		if mapping.Path == "" {
			return fmt.Errorf("included_identity_attributes[%d].path is required", i)
		}
	}
	return nil
}

// IdentityAttributePaths returns the configured attribute paths in order,
// used as the search projection for identity documents.
func (c *Config) IdentityAttributePaths() []string {
	paths := make([]string, 0, len(c.IncludedIdentityAttributes))
	for _, mapping := range c.IncludedIdentityAttributes {
		paths = append(paths, mapping.Path)
	}
	return paths
}

// IdentityAttributeColumns returns the display column names in configured
// order, used when laying out output CSV columns.
func (c *Config) IdentityAttributeColumns() []string {
	columns := make([]string, 0, len(c.IncludedIdentityAttributes))
	for _, mapping := range c.IncludedIdentityAttributes {
		columns = append(columns, mapping.DisplayName())
	}
	return columns
}
