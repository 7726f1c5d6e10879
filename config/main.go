// Package config loads the routeman configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	. "nyiyui.ca/hato/routeman"
	"nyiyui.ca/hato/routeman/signal"
	"nyiyui.ca/hato/routeman/world"
)

const EnvPrefix = "ROUTEMAN"

type Config struct {
	Listen      string            `mapstructure:"listen"`
	Trace       string            `mapstructure:"trace"`
	CatalogPath string            `mapstructure:"catalog-path"`
	Stops       []StopID          `mapstructure:"stops"`
	Consists    []world.Formation `mapstructure:"consists"`
	Signal      Signal            `mapstructure:"signal"`
	// Patterns are extra horn patterns by name. Names are case-insensitive.
	Patterns map[string][]Step `mapstructure:"patterns"`
	Sim      Sim               `mapstructure:"sim"`
	Audio    Audio             `mapstructure:"audio"`
}

type Signal struct {
	SampleInterval   time.Duration `mapstructure:"sample-interval"`
	DeparturePattern string        `mapstructure:"departure-pattern"`
}

type Step struct {
	Intensity float64       `mapstructure:"intensity"`
	Final     *float64      `mapstructure:"final"`
	Duration  time.Duration `mapstructure:"duration"`
}

// Sim configures the line simulator. It is disabled when Loco is blank.
type Sim struct {
	Loco   string        `mapstructure:"loco"`
	Dwell  time.Duration `mapstructure:"dwell"`
	Travel time.Duration `mapstructure:"travel"`
}

// Audio configures the horn tone. It is disabled when Loco is blank.
type Audio struct {
	Loco   string        `mapstructure:"loco"`
	Attack time.Duration `mapstructure:"attack"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", "127.0.0.1:8042")
	v.SetDefault("trace", "")
	v.SetDefault("catalog-path", ":memory:")
	v.SetDefault("signal.sample-interval", signal.DefaultSampleInterval.String())
	v.SetDefault("signal.departure-pattern", signal.StandardName)
	v.SetDefault("sim.loco", "")
	v.SetDefault("sim.dwell", "5s")
	v.SetDefault("sim.travel", "10s")
	v.SetDefault("audio.loco", "")
	v.SetDefault("audio.attack", "20ms")
}

// Load reads the JSON config at path, or at $ROUTEMAN_CONFIG if path is blank.
// Without either only defaults and env overrides (ROUTEMAN_SIGNAL_SAMPLE_INTERVAL etc) apply.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// SignalPatterns converts the configured patterns.
func (c Config) SignalPatterns() (map[string]signal.Pattern, error) {
	res := make(map[string]signal.Pattern, len(c.Patterns))
	for name, steps := range c.Patterns {
		p := make(signal.Pattern, 0, len(steps))
		for i, s := range steps {
			if err := s.validate(); err != nil {
				return nil, fmt.Errorf("pattern %s step %d: %w", name, i, err)
			}
			p = append(p, signal.Step{Intensity: s.Intensity, Final: s.Final, Duration: s.Duration})
		}
		res[name] = p
	}
	return res, nil
}

func (s Step) validate() error {
	if s.Intensity < 0 || s.Intensity > 1 {
		return fmt.Errorf("intensity %g out of [0, 1]", s.Intensity)
	}
	if s.Final != nil && (*s.Final < 0 || *s.Final > 1) {
		return fmt.Errorf("final %g out of [0, 1]", *s.Final)
	}
	if s.Duration < 0 {
		return fmt.Errorf("negative duration %s", s.Duration)
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	if _, err := c.SignalPatterns(); err != nil {
		errs = append(errs, err)
	}
	if name := c.Signal.DeparturePattern; name != "" && name != signal.StandardName {
		if _, ok := c.Patterns[strings.ToLower(name)]; !ok {
			errs = append(errs, fmt.Errorf("departure pattern %q: %w", name, signal.ErrUnknownPattern))
		}
	}
	for _, s := range []struct{ key, id string }{{"sim.loco", c.Sim.Loco}, {"audio.loco", c.Audio.Loco}} {
		if s.id == "" {
			continue
		}
		if _, err := ParseCarID(s.id); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.key, err))
		}
	}
	if c.Sim.Loco != "" && len(c.Stops) < 2 {
		errs = append(errs, errors.New("sim needs at least two stops"))
	}
	return errors.Join(errs...)
}
