package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alejandrodnm/roundbot/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := config.Parse([]byte("chain:\n  rpc_url: http://localhost:8545\n"))
	require.NoError(t, err)

	assert.Equal(t, config.QueryModeCompetition, cfg.Bot.QueryMode)
	assert.Equal(t, 2*time.Second, cfg.PollInterval())
	assert.Equal(t, 15*time.Second, cfg.CycleInterval())
	assert.Equal(t, 10*time.Minute, cfg.Deadline())
	assert.Equal(t, 0.0001, cfg.Bot.DustThreshold)
	assert.Equal(t, 0.997, cfg.Bot.Fee)
	assert.Len(t, cfg.Bot.CandidatePcts, 8)
	assert.Equal(t, "Trading Competition", cfg.Discord.Username)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("RPC_URL", "http://rpc.example")
	t.Setenv("PRIVATE_KEY", "0xdeadbeef")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := config.Parse([]byte("chain:\n  rpc_url: http://yaml.example\nlog:\n  level: warn\n"))
	require.NoError(t, err)

	assert.Equal(t, "http://rpc.example", cfg.Chain.RPCURL)
	assert.Equal(t, "0xdeadbeef", cfg.Chain.PrivateKey)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := config.Parse([]byte("chain: [unterminated"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *config.Config {
		cfg, err := config.Parse([]byte(`
chain:
  rpc_url: http://localhost:8545
  private_key: abc
  competition: "0x0000000000000000000000000000000000000001"
`))
		require.NoError(t, err)
		return cfg
	}

	require.NoError(t, base().Validate())

	cfg := base()
	cfg.Bot.QueryMode = config.QueryModePeriphery
	assert.Error(t, cfg.Validate(), "periphery mode requires an address")

	cfg = base()
	cfg.LLM.Enabled = true
	cfg.LLM.APIKey = ""
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Bot.CandidatePcts = []float64{0, 1}
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Bot.QueryMode = "mmInfo"
	assert.Error(t, cfg.Validate())

	for _, fee := range []float64{-0.1, 1.5} {
		cfg = base()
		cfg.Bot.Fee = fee
		assert.Error(t, cfg.Validate(), "fee %v", fee)
	}
}

func TestParse_FeeOutOfRangeIsNotDefaulted(t *testing.T) {
	cfg, err := config.Parse([]byte("bot:\n  fee: 1.5\n"))
	require.NoError(t, err)
	assert.Equal(t, 1.5, cfg.Bot.Fee)
	assert.Error(t, cfg.Validate())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bot:\n  cycle_interval_seconds: 3600\n  close_rounds: true\n"), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, cfg.CycleInterval())
	assert.True(t, cfg.Bot.CloseRounds)
}
