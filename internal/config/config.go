package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"staffline/internal/domain"
	"staffline/internal/planner"
)

// Config models staffline.yml (or staffline.toml).
type Config struct {
	Planning PlanningConfig  `yaml:"planning" toml:"planning"`
	Server   ServerConfig    `yaml:"server" toml:"server"`
	Log      LogConfig       `yaml:"log" toml:"log"`
	Webhooks []WebhookConfig `yaml:"webhooks" toml:"webhooks"`
}

type PlanningConfig struct {
	MinFactor          float64           `yaml:"min_factor" toml:"min_factor"`
	MaxFactor          float64           `yaml:"max_factor" toml:"max_factor"`
	WeeklyCapacityDays float64           `yaml:"weekly_capacity_days" toml:"weekly_capacity_days"`
	SITSubFunction     string            `yaml:"sit_sub_function" toml:"sit_sub_function"`
	UATPercent         float64           `yaml:"uat_percent" toml:"uat_percent"`
	SmokePercent       float64           `yaml:"smoke_percent" toml:"smoke_percent"`
	SmokeDefaultDays   int               `yaml:"smoke_default_days" toml:"smoke_default_days"`
	PhaseSkills        map[string]string `yaml:"phase_skills" toml:"phase_skills"`
}

type ServerConfig struct {
	Addr               string  `yaml:"addr" toml:"addr"`
	BasePath           string  `yaml:"base_path" toml:"base_path"`
	RateLimitPerSecond float64 `yaml:"rate_limit_per_second" toml:"rate_limit_per_second"`
	RateBurst          int     `yaml:"rate_burst" toml:"rate_burst"`
}

type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url" toml:"url"`
	Events         []string `yaml:"events" toml:"events"`
	Secret         string   `yaml:"secret" toml:"secret"`
	TimeoutSeconds int      `yaml:"timeout_seconds" toml:"timeout_seconds"`
	Enabled        *bool    `yaml:"enabled" toml:"enabled"`
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	p := c.Planning
	if p.MinFactor <= 0 {
		return fmt.Errorf("config.planning.min_factor must be positive")
	}
	if p.MinFactor > p.MaxFactor {
		return fmt.Errorf("config.planning.min_factor %.2f exceeds max_factor %.2f", p.MinFactor, p.MaxFactor)
	}
	if p.MaxFactor > 1 {
		return fmt.Errorf("config.planning.max_factor must be at most 1")
	}
	if p.WeeklyCapacityDays <= 0 {
		return fmt.Errorf("config.planning.weekly_capacity_days must be positive")
	}
	if p.UATPercent < 0 || p.SmokePercent < 0 {
		return fmt.Errorf("config.planning percentages must not be negative")
	}
	if p.SmokeDefaultDays < 1 {
		return fmt.Errorf("config.planning.smoke_default_days must be at least 1")
	}
	if strings.TrimSpace(p.SITSubFunction) == "" {
		return fmt.Errorf("config.planning.sit_sub_function is required")
	}
	for phase, skill := range p.PhaseSkills {
		pt := domain.PhaseType(phase)
		if !pt.Valid() {
			return fmt.Errorf("config.planning.phase_skills has unknown phase type %s", phase)
		}
		if planner.IsDerived(pt) {
			return fmt.Errorf("config.planning.phase_skills cannot map derived phase %s", phase)
		}
		if !domain.SkillFunction(skill).Valid() {
			return fmt.Errorf("config.planning.phase_skills maps %s to unknown skill %s", phase, skill)
		}
	}
	if c.Server.RateLimitPerSecond < 0 || c.Server.RateBurst < 0 {
		return fmt.Errorf("config.server rate limits must not be negative")
	}
	switch c.Log.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("config.log.format must be json or console")
	}
	for i, hook := range c.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("config.webhooks[%d].timeout_seconds must not be negative", i)
		}
	}
	return nil
}

// Rules converts the planning section into allocation rules.
func (c *Config) Rules() planner.Rules {
	r := planner.Rules{
		MinFactor:        c.Planning.MinFactor,
		MaxFactor:        c.Planning.MaxFactor,
		SITSubFunction:   c.Planning.SITSubFunction,
		UATPercent:       c.Planning.UATPercent,
		SmokePercent:     c.Planning.SmokePercent,
		SmokeDefaultDays: c.Planning.SmokeDefaultDays,
		PhaseSkills:      make(map[domain.PhaseType]domain.SkillFunction, len(c.Planning.PhaseSkills)),
	}
	for phase, skill := range c.Planning.PhaseSkills {
		r.PhaseSkills[domain.PhaseType(phase)] = domain.SkillFunction(skill)
	}
	return r
}

// Path returns the YAML config path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "staffline.yml")
}

// Discover returns the first existing config file of a workspace, or "" when there is none.
func Discover(workspace string) string {
	yml := Path(workspace)
	for _, p := range []string{yml, strings.TrimSuffix(yml, ".yml") + ".toml"} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// LoadOptional reads the workspace config, falling back to defaults when no file exists.
func LoadOptional(workspace string) (*Config, error) {
	path := Discover(workspace)
	if path == "" {
		return Default(), nil
	}
	return FromFile(path)
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := FromYAML([]byte(defaultTemplate))
	if err != nil {
		panic(fmt.Sprintf("default config: %v", err))
	}
	return cfg
}

// GenerateDefault returns the default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// FromYAML parses YAML over the defaults and validates the result.
func FromYAML(data []byte) (*Config, error) {
	cfg := base()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	return finish(cfg)
}

// FromTOML parses TOML over the defaults and validates the result.
func FromTOML(data []byte) (*Config, error) {
	cfg := base()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config toml: %w", err)
	}
	return finish(cfg)
}

// FromFile reads config from the given path; the extension picks the format.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FromTOML(data)
	}
	return FromYAML(data)
}

func base() *Config {
	r := planner.DefaultRules()
	cfg := &Config{
		Planning: PlanningConfig{
			MinFactor:          r.MinFactor,
			MaxFactor:          r.MaxFactor,
			WeeklyCapacityDays: 4.5,
			SITSubFunction:     r.SITSubFunction,
			UATPercent:         r.UATPercent,
			SmokePercent:       r.SmokePercent,
			SmokeDefaultDays:   r.SmokeDefaultDays,
		},
		Server: ServerConfig{Addr: "127.0.0.1:8080", BasePath: "/v0"},
		Log:    LogConfig{Level: "info", Format: "json"},
	}
	return cfg
}

func finish(cfg *Config) (*Config, error) {
	if len(cfg.Planning.PhaseSkills) == 0 {
		cfg.Planning.PhaseSkills = map[string]string{}
		for pt, skill := range planner.DefaultRules().PhaseSkills {
			cfg.Planning.PhaseSkills[string(pt)] = string(skill)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

const defaultTemplate = `planning:
  min_factor: 0.5
  max_factor: 0.9
  weekly_capacity_days: 4.5
  sit_sub_function: Manual
  uat_percent: 30
  smoke_percent: 10
  smoke_default_days: 7
  phase_skills:
    functional_design: functional_design
    technical_design: technical_design
    build: build
    sit: test

server:
  addr: 127.0.0.1:8080
  base_path: /v0
  rate_limit_per_second: 20
  rate_burst: 40

log:
  level: info
  format: json

# webhooks:
#   - url: https://example.invalid/hooks/staffline
#     events: [allocation.generated]
#     timeout_seconds: 5
`
