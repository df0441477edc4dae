package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("nonexistent-config.yaml")
	require.NoError(t, err)

	assert.Equal(t, 200.0, cfg.Optimizer.WasteThreshold)
	assert.Equal(t, 3, cfg.Optimizer.MaxWeldingSegments)
	assert.Equal(t, int64(300000), cfg.Optimizer.TimeLimit)
	assert.Equal(t, 50.0, cfg.Optimizer.WeldCostMM)
	assert.Equal(t, 50.0, cfg.Optimizer.WeldBenefitFloorMM)
	assert.Equal(t, 10, cfg.Optimizer.PostPassIterations)
	assert.Equal(t, "sqlite://steelcut.db", cfg.Database.URL)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "none", cfg.Storage.Type)
}

func TestLoadFromReader_YAML(t *testing.T) {
	content := []byte(`
optimizer:
  waste_threshold: 150
  max_welding_segments: 2
  time_limit: 60000
database:
  url: postgres://user:pass@db:5432/steelcut
server:
  port: 9090
`)

	cfg, err := LoadFromReader("yaml", content)
	require.NoError(t, err)

	assert.Equal(t, 150.0, cfg.Optimizer.WasteThreshold)
	assert.Equal(t, 2, cfg.Optimizer.MaxWeldingSegments)
	assert.Equal(t, int64(60000), cfg.Optimizer.TimeLimit)
	assert.Equal(t, "postgres://user:pass@db:5432/steelcut", cfg.Database.URL)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("HGJ_WASTE_THRESHOLD", "333")
	t.Setenv("HGJ_MAX_WELDING_SEGMENTS", "5")
	t.Setenv("HGJ_DATABASE_URL", "mysql://root:root@db:3306/steelcut")

	cfg, err := Load("nonexistent-config.yaml")
	require.NoError(t, err)

	assert.Equal(t, 333.0, cfg.Optimizer.WasteThreshold)
	assert.Equal(t, 5, cfg.Optimizer.MaxWeldingSegments)
	assert.Equal(t, "mysql://root:root@db:3306/steelcut", cfg.Database.URL)
}

func TestConfig_Validate(t *testing.T) {
	cfg, err := Load("nonexistent-config.yaml")
	require.NoError(t, err)

	cfg.Database.URL = ""
	assert.Error(t, cfg.Validate())

	cfg.Database.URL = "sqlite://:memory:"
	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())

	cfg.Server.Port = 8080
	cfg.Optimizer.MaxWeldingSegments = 0
	assert.Error(t, cfg.Validate())
}

func TestConfig_DefaultConstraints(t *testing.T) {
	cfg, err := Load("nonexistent-config.yaml")
	require.NoError(t, err)

	c := cfg.DefaultConstraints()
	assert.Equal(t, cfg.Optimizer.WasteThreshold, c.WasteThreshold)
	assert.Equal(t, cfg.Optimizer.MaxWeldingSegments, c.MaxWeldingSegments)
	assert.NoError(t, c.Validate())
}
