package container

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loostaar/app"
	"loostaar/internal/config"
	"loostaar/internal/errors"
	"loostaar/internal/testkit"
)

func testConfig() *config.Config {
	return &config.Config{
		Analysis: config.AnalysisConfig{
			Concurrency:          2,
			MAFCutoff:            0.01,
			RareVariantThreshold: 2,
			OmnibusPolicy:        "first",
		},
		Association: config.AssociationConfig{Backend: "http", URL: "http://localhost:9000"},
	}
}

func TestNew_BuildsConfiguredBackend(t *testing.T) {
	c, err := New(testConfig())
	require.NoError(t, err)
	assert.Equal(t, "http", c.Test.Name())
	assert.NotNil(t, c.Analysis)
	assert.NoError(t, c.Shutdown(context.Background()))
}

func TestNew_RejectsUnconfiguredBackend(t *testing.T) {
	cfg := testConfig()
	cfg.Association = config.AssociationConfig{Backend: "rscript"}
	_, err := New(cfg)
	assert.ErrorIs(t, err, errors.ErrConfigInvalid)
}

func TestNewWithTest_RunsAndStores(t *testing.T) {
	m, test := testkit.ExampleScenario()
	c, err := NewWithTest(testConfig(), test)
	require.NoError(t, err)

	ctx := context.Background()
	table, err := c.Analysis.Analyze(ctx, app.RunRequest{
		Matrix:      m,
		NullModel:   testkit.ExampleNullModel,
		MAFCutoff:   c.Config.Analysis.MAFCutoff,
		Concurrency: c.Config.Analysis.Concurrency,
	})
	require.NoError(t, err)

	stored, err := c.Runs.Get(ctx, table.RunID)
	require.NoError(t, err)
	assert.Equal(t, table.Rows, stored.Rows)
}

func TestNewWithTest_BadPolicy(t *testing.T) {
	cfg := testConfig()
	cfg.Analysis.OmnibusPolicy = "mean"
	_, test := testkit.ExampleScenario()
	_, err := NewWithTest(cfg, test)
	assert.Error(t, err)
}

func TestInitWithDatabase_Nil(t *testing.T) {
	_, test := testkit.ExampleScenario()
	c, err := NewWithTest(testConfig(), test)
	require.NoError(t, err)
	assert.Error(t, c.InitWithDatabase(context.Background(), nil))
}
