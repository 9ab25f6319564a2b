package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/kiosk404/hivelink/internal/hivemind/options"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/entity"
	"github.com/kiosk404/hivelink/internal/hivemind/service/subagent"
	"github.com/kiosk404/hivelink/pkg/logger"
)

// EnvPrefix prefixes every environment override, e.g. HIVEMIND_SUBAGENTS_MAX_DEPTH.
const EnvPrefix = "HIVEMIND"

// Config is the running configuration structure of the hivemind service.
type Config struct {
	*options.Options

	limits *Limits
}

// CreateConfigFromOptions creates a running configuration instance based
// on a given hivemind command line or configuration file option.
func CreateConfigFromOptions(opts *options.Options) (*Config, error) {
	return &Config{Options: opts, limits: NewLimits(opts.Limits())}, nil
}

// Limits is the hot-reloadable sub-agent limits source handed to the coordinator.
func (c *Config) Limits() *Limits {
	return c.limits
}

// Watch re-reads the config file on every change and applies the settings that can
// change at runtime: sub-agent limits and the log level. Everything else needs a restart.
func (c *Config) Watch(v *viper.Viper) {
	if v.ConfigFileUsed() == "" {
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		logger.Info("[Config] %s changed (%s)", e.Name, e.Op)
		c.reload(v)
	})
	v.WatchConfig()
}

func (c *Config) reload(v *viper.Viper) {
	next := options.NewOptions()
	if err := v.Unmarshal(next); err != nil {
		logger.Warn("[Config] reload ignored: %v", err)
		return
	}
	if errs := next.SubAgentOptions.Validate(); len(errs) > 0 {
		logger.Warn("[Config] reload ignored: %v", errors.Join(errs...))
		return
	}
	c.limits.Store(next.Limits())
	if err := logger.SetLevel(next.LogOptions.Level); err == nil {
		c.LogOptions.Level = next.LogOptions.Level
	}
	logger.Info("[Config] sub-agent limits now max-depth=%d default-lifecycle=%s",
		next.SubAgentOptions.MaxDepth, next.SubAgentOptions.DefaultLifecycle)
}

// Load fills opts from, in increasing priority: flag defaults, the config file,
// HIVEMIND_* environment variables and explicitly set flags. A .env file in the
// working directory is loaded into the environment first. When cfgFile is empty,
// hivemind.yaml is searched in ., $HOME/.hivemind and /etc/hivemind.
func Load(v *viper.Viper, cfgFile string, opts *options.Options) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("hivemind")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.hivemind")
		}
		v.AddConfigPath("/etc/hivemind")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	} else {
		logger.Info("[Config] using config file %s", v.ConfigFileUsed())
	}

	if err := v.Unmarshal(opts); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// Limits is a subagent.ConfigProvider whose values can be swapped atomically.
type Limits struct {
	v atomic.Pointer[subagent.StaticConfig]
}

var _ subagent.ConfigProvider = (*Limits)(nil)

func NewLimits(initial subagent.StaticConfig) *Limits {
	l := &Limits{}
	l.Store(initial)
	return l
}

func (l *Limits) Store(cfg subagent.StaticConfig) {
	l.v.Store(&cfg)
}

func (l *Limits) MaxDepth() int {
	return l.v.Load().Depth
}

func (l *Limits) DefaultLifecycle() entity.Lifecycle {
	return l.v.Load().Lifecycle
}
