// Package riskconfig owns the process-wide risk configuration. Snapshots are
// validated before they are published and swapped atomically, so every
// evaluation reads one consistent Config.
package riskconfig

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/richxcame/order-risk/internal/risk"
	"github.com/richxcame/order-risk/pkg/logger"
	"go.uber.org/zap"
)

// ErrUnknownProfile is returned when a named profile does not exist.
var ErrUnknownProfile = errors.New("unknown risk profile")

// ChangeHook is called after a new snapshot has been published.
type ChangeHook func(previous, current risk.Config)

// Manager holds the active risk configuration.
type Manager struct {
	current atomic.Pointer[risk.Config]

	// mu serializes writers; readers never take it.
	mu sync.Mutex
	// overrides accumulates the patches and profiles applied since the last
	// Publish. Rebase replays them on top of a new base.
	overrides risk.ConfigPatch
	hooks     []ChangeHook
	logger    *zap.Logger
}

// Ensure the manager can feed the engine directly.
var _ risk.ConfigSource = (*Manager)(nil)

// NewManager validates initial and makes it the active snapshot.
func NewManager(initial risk.Config) (*Manager, error) {
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	m := &Manager{logger: logger.Get()}
	m.current.Store(&initial)
	return m, nil
}

// WithLogger replaces the logger used to report configuration changes.
func (m *Manager) WithLogger(l *zap.Logger) *Manager {
	if l != nil {
		m.logger = l
	}
	return m
}

// Current returns the active snapshot.
func (m *Manager) Current() risk.Config {
	return *m.current.Load()
}

// OnChange registers a hook run after every successful publish.
func (m *Manager) OnChange(hook ChangeHook) {
	if hook == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, hook)
}

// Publish validates cfg and makes it the active snapshot, dropping any
// runtime overrides. An invalid config is rejected and the previous snapshot
// stays active.
func (m *Manager) Publish(cfg risk.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.publishLocked(cfg); err != nil {
		return err
	}
	m.overrides = risk.ConfigPatch{}
	return nil
}

// Rebase publishes base with the runtime overrides reapplied, so a reloaded
// file keeps the profile and patches applied on top of the previous one.
func (m *Manager) Rebase(base risk.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.publishLocked(base.Apply(m.overrides))
}

// Update applies patch to the active snapshot and publishes the result.
func (m *Manager) Update(patch risk.ConfigPatch) (risk.Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.Current().Apply(patch)
	if err := m.publishLocked(next); err != nil {
		return m.Current(), err
	}
	m.overrides = m.overrides.Merge(patch)
	return m.Current(), nil
}

// ApplyProfile applies a named profile on top of the active snapshot.
func (m *Manager) ApplyProfile(name string) (risk.Config, error) {
	patch, ok := Profile(name)
	if !ok {
		return m.Current(), fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
	return m.Update(patch)
}

func (m *Manager) publishLocked(cfg risk.Config) error {
	if err := cfg.Validate(); err != nil {
		m.logger.Warn("Rejected risk config", zap.Error(err))
		return err
	}

	previous := m.Current()
	m.current.Store(&cfg)
	m.logger.Info("Risk config published",
		zap.Float64("medium_risk_threshold", cfg.MediumRiskThreshold),
		zap.Float64("high_risk_threshold", cfg.HighRiskThreshold),
	)

	for _, hook := range m.hooks {
		hook(previous, cfg)
	}
	return nil
}
