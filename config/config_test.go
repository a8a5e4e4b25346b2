package config

import (
	"testing"
	"time"

	"github.com/KotFed0t/blu_rebalancer/internal/rebalance"
	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebalanceDefaultsMatchEngineDefaults(t *testing.T) {
	var r Rebalance
	require.NoError(t, env.Parse(&r))

	cfg := &Config{Rebalance: r}
	got := cfg.EngineConfig()
	want := rebalance.DefaultConfig()

	assert.True(t, got.MinTradeAmountIrr.Equal(want.MinTradeAmountIrr))
	assert.True(t, got.SpreadFoundation.Equal(want.SpreadFoundation))
	assert.True(t, got.SpreadGrowth.Equal(want.SpreadGrowth))
	assert.True(t, got.SpreadUpside.Equal(want.SpreadUpside))
	assert.True(t, got.DiversificationCap.Equal(want.DiversificationCap))
	assert.True(t, got.MinKeepIrr.Equal(want.MinKeepIrr))
	assert.True(t, got.OverweightGuardPct.Equal(want.OverweightGuardPct))
	assert.Equal(t, want.CooldownWindow, got.CooldownWindow)
	assert.Equal(t, "STATIC", r.WeightStrategy)
}

func TestEngineConfigFromEnv(t *testing.T) {
	t.Setenv("MIN_TRADE_AMOUNT_IRR", "100000")
	t.Setenv("SPREAD_UPSIDE_BPS", "100")
	t.Setenv("REBALANCE_COOLDOWN", "0s")

	var r Rebalance
	require.NoError(t, env.Parse(&r))

	got := (&Config{Rebalance: r}).EngineConfig()

	assert.Equal(t, "100000", got.MinTradeAmountIrr.String())
	assert.Equal(t, "0.01", got.SpreadUpside.String())
	assert.Equal(t, time.Duration(0), got.CooldownWindow)
}
