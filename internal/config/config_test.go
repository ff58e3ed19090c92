package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staffline/internal/domain"
	"staffline/internal/planner"
)

func TestDefaultMatchesPlannerRules(t *testing.T) {
	cfg := Default()
	assert.Equal(t, planner.DefaultRules(), cfg.Rules())
	assert.Equal(t, 4.5, cfg.Planning.WeeklyCapacityDays)
	assert.Equal(t, "/v0", cfg.Server.BasePath)
	assert.Equal(t, 20.0, cfg.Server.RateLimitPerSecond)
}

func TestPartialYAMLKeepsDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte("planning:\n  uat_percent: 25\n"))
	require.NoError(t, err)
	assert.Equal(t, 25.0, cfg.Planning.UATPercent)
	assert.Equal(t, 0.9, cfg.Planning.MaxFactor)
	assert.Equal(t, domain.SkillTest, cfg.Rules().PhaseSkills[domain.PhaseSIT])
}

func TestValidateRejectsBadPlanning(t *testing.T) {
	cases := map[string]string{
		"inverted factors":  "planning:\n  min_factor: 0.95\n",
		"factor above one":  "planning:\n  max_factor: 1.5\n",
		"zero capacity":     "planning:\n  weekly_capacity_days: 0\n",
		"smoke days":        "planning:\n  smoke_default_days: 0\n",
		"unknown phase":     "planning:\n  phase_skills: {design: build}\n",
		"unknown skill":     "planning:\n  phase_skills: {build: devops}\n",
		"derived phase":     "planning:\n  phase_skills: {uat: test}\n",
		"webhook url":       "webhooks:\n  - events: [allocation.generated]\n",
		"bad log format":    "log:\n  format: xml\n",
		"negative percents": "planning:\n  smoke_percent: -1\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromYAML([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestFromFilePicksFormatByExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "staffline.toml")
	doc := `
[planning]
uat_percent = 20
sit_sub_function = "Exploratory"

[server]
addr = "127.0.0.1:9090"

[[webhooks]]
url = "http://127.0.0.1:1/hook"
events = ["allocation.generated"]
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	assert.Equal(t, path, Discover(dir))

	cfg, err := LoadOptional(dir)
	require.NoError(t, err)
	assert.Equal(t, 20.0, cfg.Planning.UATPercent)
	assert.Equal(t, "Exploratory", cfg.Rules().SITSubFunction)
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr)
	require.Len(t, cfg.Webhooks, 1)
	assert.Equal(t, []string{"allocation.generated"}, cfg.Webhooks[0].Events)
}

func TestLoadOptionalWithoutFile(t *testing.T) {
	cfg, err := LoadOptional(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}
