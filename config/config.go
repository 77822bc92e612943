// Package config loads the report configuration from an optional YAML file
// with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ortelius/gitlab-vuln-report/model"
	"github.com/ortelius/gitlab-vuln-report/util"
	"gopkg.in/yaml.v2"
)

// TokenEnv is the environment variable holding the GitLab personal access token.
const TokenEnv = "GRAPHQL_API_TOKEN"

// ErrMissingToken is returned when no access token is configured.
var ErrMissingToken = errors.New(TokenEnv + " environment variable is required for authentication")

// GitLab holds the API connection settings.
type GitLab struct {
	BaseURL           string        `yaml:"base_url"`
	Token             string        `yaml:"-"`
	PerPage           int           `yaml:"per_page"`
	ConnectTimeout    time.Duration `yaml:"connect_timeout"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	MaxRetries        int           `yaml:"max_retries"`
	BackoffFactor     time.Duration `yaml:"backoff_factor"`
	RequestsPerSecond float64       `yaml:"requests_per_second"` // 0 disables client-side throttling
	MaxIdleConns      int           `yaml:"max_idle_conns"`
}

// Report holds the output settings.
type Report struct {
	Output string `yaml:"output"`
	Chart  bool   `yaml:"chart"`
}

// Logging holds the logger settings.
type Logging struct {
	Level string `yaml:"level"` // "debug"|"info"|"warn"|"error"
}

// Config is the complete run configuration.
type Config struct {
	GitLab  GitLab  `yaml:"gitlab"`
	Report  Report  `yaml:"report"`
	Logging Logging `yaml:"logging"`

	// Groups is an ordered mapping of group name to group id. Order decides sheet order.
	Groups yaml.MapSlice `yaml:"groups"`
}

// DefaultGroups is the built-in scrum to group id mapping.
var DefaultGroups = yaml.MapSlice{
	{Key: "sme-mobile", Value: "9715323"},
	{Key: "sme-online", Value: "101745074"},
	{Key: "sme-finacle", Value: "12225673"},
	{Key: "sme-report", Value: "115417730"},
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	var c Config
	c.GitLab.BaseURL = "https://gitlab.com/api/v4"
	c.GitLab.PerPage = 50
	c.GitLab.ConnectTimeout = 10 * time.Second
	c.GitLab.ReadTimeout = 60 * time.Second
	c.GitLab.MaxRetries = 5
	c.GitLab.BackoffFactor = 500 * time.Millisecond
	c.GitLab.MaxIdleConns = 50
	c.Report.Output = "gitlab_vuln.xlsx"
	c.Logging.Level = "info"
	c.Groups = append(yaml.MapSlice(nil), DefaultGroups...)
	return c
}

// Load reads the YAML file at path (if any) over the defaults, then applies
// environment overrides. A missing token is reported by Validate, not here.
func Load(path string) (Config, error) {
	c := DefaultConfig()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return c, fmt.Errorf("failed to read config file: %w", err)
		}
		fileGroups := c.Groups
		c.Groups = nil
		if err := yaml.Unmarshal(b, &c); err != nil {
			return c, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		if len(c.Groups) == 0 {
			c.Groups = fileGroups
		}
	}

	c.GitLab.Token = os.Getenv(TokenEnv)
	c.GitLab.BaseURL = util.GetEnvDefault("GITLAB_BASE_URL", c.GitLab.BaseURL)
	c.Report.Output = util.GetEnvDefault("VULN_REPORT_OUTPUT", c.Report.Output)
	c.Logging.Level = util.GetEnvDefault("VULN_REPORT_LOG_LEVEL", c.Logging.Level)
	if v := os.Getenv("VULN_REPORT_CHART"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Report.Chart = b
		}
	}
	return c, nil
}

// Validate checks the settings that would make the run fail before any request.
func (c Config) Validate() error {
	if util.IsEmpty(c.GitLab.Token) {
		return ErrMissingToken
	}
	if util.IsEmpty(c.GitLab.BaseURL) {
		return errors.New("gitlab.base_url must not be empty")
	}
	if c.GitLab.PerPage <= 0 {
		return fmt.Errorf("gitlab.per_page must be positive, got %d", c.GitLab.PerPage)
	}
	if c.GitLab.MaxRetries < 0 {
		return fmt.Errorf("gitlab.max_retries must not be negative, got %d", c.GitLab.MaxRetries)
	}
	if util.IsEmpty(c.Report.Output) {
		return errors.New("report.output must not be empty")
	}
	if _, err := c.GroupList(); err != nil {
		return err
	}
	return nil
}

// GroupList converts the ordered groups mapping to model groups.
func (c Config) GroupList() ([]model.Group, error) {
	groups := make([]model.Group, 0, len(c.Groups))
	for _, item := range c.Groups {
		name := fmt.Sprint(item.Key)
		if item.Value == nil {
			return nil, fmt.Errorf("group %q has no id", name)
		}
		id := fmt.Sprint(item.Value)
		if util.IsEmpty(name) || util.IsEmpty(id) {
			return nil, fmt.Errorf("group %q has an empty name or id", name)
		}
		groups = append(groups, model.Group{ID: id, Name: name})
	}
	return groups, nil
}
