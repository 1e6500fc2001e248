package riskconfig

import (
	"errors"
	"sync"
	"testing"

	"github.com/richxcame/order-risk/internal/risk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(risk.DefaultConfig())
	require.NoError(t, err)
	return m
}

func TestNewManagerRejectsInvalidConfig(t *testing.T) {
	cfg := risk.DefaultConfig()
	cfg.HighRiskThreshold = 10

	m, err := NewManager(cfg)
	assert.Nil(t, m)
	assert.True(t, errors.Is(err, risk.ErrInvalidConfig))
}

func TestPublishKeepsPreviousSnapshotOnError(t *testing.T) {
	m := newTestManager(t)

	bad := risk.DefaultConfig()
	bad.UnusualPaymentWeight = -5
	require.Error(t, m.Publish(bad))
	assert.Equal(t, 15.0, m.Current().UnusualPaymentWeight)

	good := risk.DefaultConfig()
	good.UnusualPaymentWeight = 40
	require.NoError(t, m.Publish(good))
	assert.Equal(t, 40.0, m.Current().UnusualPaymentWeight)
}

func TestUpdateAppliesPatch(t *testing.T) {
	m := newTestManager(t)

	medium := 40.0
	high := 80.0
	cfg, err := m.Update(risk.ConfigPatch{MediumRiskThreshold: &medium, HighRiskThreshold: &high})
	require.NoError(t, err)
	assert.Equal(t, 40.0, cfg.MediumRiskThreshold)
	assert.Equal(t, 80.0, m.Current().HighRiskThreshold)

	tooLow := 10.0
	cfg, err = m.Update(risk.ConfigPatch{HighRiskThreshold: &tooLow})
	require.Error(t, err)
	assert.Equal(t, 80.0, cfg.HighRiskThreshold)
	assert.Equal(t, 80.0, m.Current().HighRiskThreshold)
}

func TestApplyProfile(t *testing.T) {
	m := newTestManager(t)

	cfg, err := m.ApplyProfile(ProfileHoliday)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MultipleOrdersThreshold)
	assert.Equal(t, 300.0, cfg.HighValuePercentage)
	assert.Equal(t, 5.0, cfg.UnusualTimeWeight)
	assert.Equal(t, 25.0, cfg.MultipleOrdersWeight)

	cfg, err = m.ApplyProfile(ProfileStandard)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.MultipleOrdersThreshold)
	assert.Equal(t, 200.0, cfg.HighValuePercentage)
	assert.Equal(t, 10.0, cfg.UnusualTimeWeight)

	_, err = m.ApplyProfile("black_friday")
	assert.True(t, errors.Is(err, ErrUnknownProfile))
}

func TestProfileNames(t *testing.T) {
	assert.Equal(t, []string{"holiday", "standard"}, ProfileNames())
}

func TestOnChangeReceivesPreviousAndCurrent(t *testing.T) {
	m := newTestManager(t)

	var calls []float64
	m.OnChange(func(previous, current risk.Config) {
		calls = append(calls, previous.HighValueWeight, current.HighValueWeight)
	})

	weight := 35.0
	_, err := m.Update(risk.ConfigPatch{HighValueWeight: &weight})
	require.NoError(t, err)

	negative := -1.0
	_, err = m.Update(risk.ConfigPatch{HighValueWeight: &negative})
	require.Error(t, err)

	assert.Equal(t, []float64{20, 35}, calls)
}

func TestConcurrentPublishAndRead(t *testing.T) {
	m := newTestManager(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			medium := float64(i)
			high := float64(50 + i)
			_, err := m.Update(risk.ConfigPatch{MediumRiskThreshold: &medium, HighRiskThreshold: &high})
			assert.NoError(t, err)
		}(i)
		go func() {
			defer wg.Done()
			cfg := m.Current()
			// Either the defaults (30/60) or one full update, never a mix.
			gap := cfg.HighRiskThreshold - cfg.MediumRiskThreshold
			assert.Contains(t, []float64{30, 50}, gap)
		}()
	}
	wg.Wait()

	cfg := m.Current()
	assert.LessOrEqual(t, cfg.MediumRiskThreshold, cfg.HighRiskThreshold)
}

func TestRebaseReappliesOverrides(t *testing.T) {
	m := newTestManager(t)

	_, err := m.ApplyProfile(ProfileHoliday)
	require.NoError(t, err)
	weight := 30.0
	_, err = m.Update(risk.ConfigPatch{UnusualAddressWeight: &weight})
	require.NoError(t, err)

	tooLow := 1.0
	_, err = m.Update(risk.ConfigPatch{HighRiskThreshold: &tooLow})
	require.Error(t, err)

	base := risk.DefaultConfig()
	base.HighValueWeight = 35
	base.HighRiskThreshold = 75
	require.NoError(t, m.Rebase(base))

	cur := m.Current()
	assert.Equal(t, 35.0, cur.HighValueWeight)
	assert.Equal(t, 75.0, cur.HighRiskThreshold, "rejected patch is not replayed")
	assert.Equal(t, 5, cur.MultipleOrdersThreshold)
	assert.Equal(t, 300.0, cur.HighValuePercentage)
	assert.Equal(t, 30.0, cur.UnusualAddressWeight)
}

func TestRebaseRejectsInvalidResult(t *testing.T) {
	m := newTestManager(t)
	medium := 50.0
	_, err := m.Update(risk.ConfigPatch{MediumRiskThreshold: &medium})
	require.NoError(t, err)

	base := risk.DefaultConfig()
	base.HighRiskThreshold = 40
	require.Error(t, m.Rebase(base))
	assert.Equal(t, 60.0, m.Current().HighRiskThreshold)
}

func TestPublishDropsOverrides(t *testing.T) {
	m := newTestManager(t)
	_, err := m.ApplyProfile(ProfileHoliday)
	require.NoError(t, err)

	require.NoError(t, m.Publish(risk.DefaultConfig()))
	require.NoError(t, m.Rebase(risk.DefaultConfig()))
	assert.Equal(t, risk.DefaultConfig().MultipleOrdersThreshold, m.Current().MultipleOrdersThreshold)
}
