// config loads the dashboard's configuration from yaml.
package config

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Kind is the only configuration kind this app reads.
const Kind = "dashboard"

// ErrKind is returned when a config file declares a kind other than Kind.
var ErrKind = errors.New("unsupported config kind")

// OuterConfig is the envelope of every config file: a kind selector and its definition.
type OuterConfig struct {
	Kind string      `mapstructure:"kind"`
	Def  interface{} `mapstructure:"def"`
}

// AppConfig is the definition of a dashboard config. Keys are lower case since viper
// folds the case of every key it reads.
type AppConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Charts    []ChartConfig   `yaml:"charts"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

// Addr returns the listen address.
func (sc ServerConfig) Addr() string {
	return net.JoinHostPort(sc.Host, sc.Port)
}

type TelemetryConfig struct {
	// Interval is the time between runtime samples, e.g. "500ms".
	Interval time.Duration `yaml:"interval"`
	// Window is the number of samples charted.
	Window int `yaml:"window"`
}

// ChartConfig describes one chart of the telemetry view.
type ChartConfig struct {
	// Name identifies the chart's container; it must be unique.
	Name string `yaml:"name"`
	// Type is a chart_lib chart type, e.g. LineChart.
	Type string `yaml:"type"`
	// Metrics are the sample fields charted as series.
	Metrics []string `yaml:"metrics"`
	// Options are passed to every draw, e.g. title or smooth.
	Options map[string]interface{} `yaml:"options"`
}

// Default returns the configuration used when no file is given.
func Default() *AppConfig {
	cfg := &AppConfig{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields.
func (cfg *AppConfig) ApplyDefaults() {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Telemetry.Interval <= 0 {
		cfg.Telemetry.Interval = time.Second
	}
	if cfg.Telemetry.Window <= 0 {
		cfg.Telemetry.Window = 60
	}
	if len(cfg.Charts) == 0 {
		cfg.Charts = []ChartConfig{
			{Name: "heap", Type: "LineChart", Metrics: []string{"heap_mb"}, Options: map[string]interface{}{"title": "Heap (MB)", "smooth": true}},
			{Name: "goroutines", Type: "AreaChart", Metrics: []string{"goroutines"}, Options: map[string]interface{}{"title": "Goroutines"}},
			{Name: "gc", Type: "BarChart", Metrics: []string{"gc_pause_ms"}, Options: map[string]interface{}{"title": "GC pause (ms)"}},
		}
	}
	for i := range cfg.Charts {
		if cfg.Charts[i].Type == "" {
			cfg.Charts[i].Type = "LineChart"
		}
	}
}

// Validate reports configs that cannot be served.
func (cfg *AppConfig) Validate() error {
	names := map[string]bool{}
	for i, chart := range cfg.Charts {
		if chart.Name == "" {
			return fmt.Errorf("chart %d: name required", i)
		}
		if names[chart.Name] {
			return fmt.Errorf("chart %d: duplicate name %q", i, chart.Name)
		}
		names[chart.Name] = true
		if len(chart.Metrics) == 0 {
			return fmt.Errorf("chart %q: no metrics", chart.Name)
		}
	}
	return nil
}

// FromYaml reads the config at path. The file's def is decoded into an AppConfig,
// and unset fields take their defaults.
func FromYaml(path string) (*AppConfig, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	vp.AddConfigPath(filepath.Dir(path))
	var err error
	if err = vp.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	outerConfig := &OuterConfig{}
	if err = vp.Unmarshal(outerConfig); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if outerConfig.Kind != Kind {
		return nil, fmt.Errorf("%w: %q in %s", ErrKind, outerConfig.Kind, path)
	}

	var spec []byte
	if spec, err = yaml.Marshal(outerConfig.Def); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}

	innerConfig := &AppConfig{}
	if err = yaml.Unmarshal(spec, innerConfig); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	innerConfig.ApplyDefaults()
	if err = innerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return innerConfig, nil
}
