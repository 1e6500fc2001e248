package riskconfig

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/richxcame/order-risk/internal/risk"
	"github.com/richxcame/order-risk/pkg/logger"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// section is the top-level key the risk tunables live under.
const section = "risk"

// ReloadHook observes the outcome of every file reload. err is nil when the
// new snapshot was published.
type ReloadHook func(err error)

// FileLoader reads risk tunables from a YAML, TOML or JSON file. The file
// format is taken from the extension.
type FileLoader struct {
	path   string
	v      *viper.Viper
	logger *zap.Logger
	hooks  []ReloadHook
}

// NewFileLoader returns a loader for path. Nothing is read until Load.
func NewFileLoader(path string) *FileLoader {
	v := viper.New()
	v.SetConfigFile(path)
	return &FileLoader{path: path, v: v, logger: logger.Get()}
}

// OnReload registers a hook run after each watched change.
func (f *FileLoader) OnReload(hook ReloadHook) {
	if hook != nil {
		f.hooks = append(f.hooks, hook)
	}
}

// Load reads the file and returns a validated Config. Keys missing from the
// file keep their default values; unknown keys under the section fail.
func (f *FileLoader) Load() (risk.Config, error) {
	if err := f.v.ReadInConfig(); err != nil {
		return risk.Config{}, fmt.Errorf("read risk config %s: %w", f.path, err)
	}
	return f.decode()
}

// decode overlays the section onto the defaults. Keys that match no tunable
// are an error.
func (f *FileLoader) decode() (risk.Config, error) {
	cfg := risk.DefaultConfig()
	if f.v.IsSet(section) {
		sub := f.v.Sub(section)
		if sub == nil {
			return risk.Config{}, fmt.Errorf("%w: %q must be a table of tunables", risk.ErrInvalidConfig, section)
		}
		if err := sub.UnmarshalExact(&cfg); err != nil {
			return risk.Config{}, fmt.Errorf("%w: %w", risk.ErrInvalidConfig, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return risk.Config{}, err
	}
	return cfg, nil
}

// Watch rebases m onto every valid change of the file; profiles and patches
// applied through m survive the reload. Invalid contents are logged and the
// active snapshot is kept. Load must have succeeded
// first.
func (f *FileLoader) Watch(m *Manager) {
	f.v.OnConfigChange(func(event fsnotify.Event) {
		f.logger.Info("Risk config file changed", zap.String("file", event.Name))

		cfg, err := f.decode()
		if err == nil {
			err = m.Rebase(cfg)
		}
		if err != nil {
			f.logger.Error("Risk config reload failed, keeping previous config",
				zap.String("file", event.Name),
				zap.Error(err),
			)
		}

		for _, hook := range f.hooks {
			hook(err)
		}
	})
	f.v.WatchConfig()
}
