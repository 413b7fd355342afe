// Package config declares the typed configuration tree the Engine Bootstrap
// consumes. Loading a YAML file into this tree is a thin wrapper around
// gopkg.in/yaml.v3; the CLI that locates the file and installs signal
// handlers is an external collaborator, out of scope here.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/solomatovs/gauss/internal/perr"
)

// MiddlewareRef names one middleware in an endpoint's ordered chain.
type MiddlewareRef struct {
	Plugin string         `yaml:"plugin"`
	Config map[string]any `yaml:"config,omitempty"`
}

// FormatConfig declares one data format serializer, referenced by topics.
type FormatConfig struct {
	Name   string         `yaml:"name"`
	Plugin string         `yaml:"plugin"`
	Config map[string]any `yaml:"config,omitempty"`
}

// TopicConfig declares one topic.
type TopicConfig struct {
	Name          string         `yaml:"name"`
	Storage       string         `yaml:"storage"`
	StorageConfig map[string]any `yaml:"storage_config,omitempty"`
	Format        string         `yaml:"format"`
	Buffer        int            `yaml:"buffer,omitempty"`
	Overflow      string         `yaml:"overflow,omitempty"`
}

// ProcessorConfig declares one processor subscribed to a trigger topic.
type ProcessorConfig struct {
	Plugin   string         `yaml:"plugin"`
	Trigger  string         `yaml:"trigger"`
	Config   map[string]any `yaml:"config,omitempty"`
	Buffer   int            `yaml:"buffer,omitempty"`
	Overflow string         `yaml:"overflow,omitempty"`
}

// EndpointConfig declares one source or sink, in either plugin mode
// (Plugin set) or pipeline mode (Transport/Framing/Codec set) — the two are
// mutually exclusive.
type EndpointConfig struct {
	Name   string `yaml:"name"`
	Topic  string `yaml:"topic,omitempty"`
	Topics []string `yaml:"topics,omitempty"` // sinks only: topics subscribed to

	Plugin       string         `yaml:"plugin,omitempty"`
	PluginConfig map[string]any `yaml:"plugin_config,omitempty"`

	Transport       string          `yaml:"transport,omitempty"`
	TransportConfig map[string]any  `yaml:"transport_config,omitempty"`
	Framing         string          `yaml:"framing,omitempty"`
	FramingConfig   map[string]any  `yaml:"framing_config,omitempty"`
	Middleware      []MiddlewareRef `yaml:"middleware,omitempty"`
	Codec           string          `yaml:"codec,omitempty"`
	CodecConfig     map[string]any  `yaml:"codec_config,omitempty"`
	KeyField        string          `yaml:"key_field,omitempty"`
	TsField         string          `yaml:"ts_field,omitempty"`

	Buffer       int    `yaml:"buffer,omitempty"`
	Overflow     string `yaml:"overflow,omitempty"`
	ConnBuffer   int    `yaml:"conn_buffer,omitempty"`
	ConnOverflow string `yaml:"conn_overflow,omitempty"`
}

// IsPluginMode reports whether this endpoint is configured as a self-driven
// plugin rather than a composed pipeline.
func (e EndpointConfig) IsPluginMode() bool { return e.Plugin != "" }

// Engine is the top-level configuration document (spec.md §6).
type Engine struct {
	APIPort    int    `yaml:"api_port,omitempty"`
	WSBuffer   int    `yaml:"ws_buffer,omitempty"`
	WSOverflow string `yaml:"ws_overflow,omitempty"`

	Formats    []FormatConfig    `yaml:"formats,omitempty"`
	Topics     []TopicConfig     `yaml:"topics,omitempty"`
	Processors []ProcessorConfig `yaml:"processors,omitempty"`
	Sources    []EndpointConfig  `yaml:"sources,omitempty"`
	Sinks      []EndpointConfig  `yaml:"sinks,omitempty"`
}

// ApplyDefaults fills in every documented default that was left zero.
func (e *Engine) ApplyDefaults() {
	if e.APIPort == 0 {
		e.APIPort = 9200
	}
	if e.WSBuffer == 0 {
		e.WSBuffer = 4096
	}
	if e.WSOverflow == "" {
		e.WSOverflow = "drop"
	}
	for i := range e.Topics {
		if e.Topics[i].Buffer == 0 {
			e.Topics[i].Buffer = 4096
		}
		if e.Topics[i].Overflow == "" {
			e.Topics[i].Overflow = "back-pressure"
		}
	}
	for i := range e.Processors {
		if e.Processors[i].Buffer == 0 {
			e.Processors[i].Buffer = 4096
		}
		if e.Processors[i].Overflow == "" {
			e.Processors[i].Overflow = "back-pressure"
		}
	}
	for i := range e.Sources {
		applyEndpointDefaults(&e.Sources[i], 8192)
	}
	for i := range e.Sinks {
		applyEndpointDefaults(&e.Sinks[i], 8192)
	}
}

func applyEndpointDefaults(ep *EndpointConfig, defaultBuffer int) {
	if ep.KeyField == "" {
		ep.KeyField = "symbol"
	}
	if ep.TsField == "" {
		ep.TsField = "ts_ms"
	}
	if ep.Buffer == 0 {
		ep.Buffer = defaultBuffer
	}
	if ep.Overflow == "" {
		ep.Overflow = "back-pressure"
	}
	if ep.ConnBuffer == 0 {
		ep.ConnBuffer = 4
	}
	if ep.ConnOverflow == "" {
		ep.ConnOverflow = "back-pressure"
	}
}

// Validate enforces the rejection rules from Engine Bootstrap step 0.
func (e *Engine) Validate() error {
	if len(e.Topics) == 0 {
		return perr.Config("bootstrap", "no topics declared")
	}
	if len(e.Sources) == 0 {
		return perr.Config("bootstrap", "no sources declared")
	}

	formatNames := make(map[string]bool, len(e.Formats))
	for _, f := range e.Formats {
		formatNames[f.Name] = true
	}
	for _, t := range e.Topics {
		if !formatNames[t.Format] {
			return perr.Config("bootstrap", "topic "+t.Name+" references undeclared format "+t.Format)
		}
	}

	for _, s := range e.Sources {
		if err := validateEndpoint("source", s); err != nil {
			return err
		}
	}
	for _, s := range e.Sinks {
		if err := validateEndpoint("sink", s); err != nil {
			return err
		}
	}
	return nil
}

func validateEndpoint(kind string, ep EndpointConfig) error {
	hasPlugin := ep.Plugin != ""
	hasTransport := ep.Transport != ""
	if hasPlugin && hasTransport {
		return perr.Config("bootstrap", kind+" "+ep.Name+" has both plugin and transport set")
	}
	if !hasPlugin {
		if ep.Transport == "" || ep.Framing == "" || ep.Codec == "" {
			return perr.Config("bootstrap", kind+" "+ep.Name+" is missing transport/framing/codec for pipeline mode")
		}
	}
	return nil
}

// Load reads and parses a YAML configuration file, applies defaults, and
// validates it.
func Load(path string) (*Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, perr.Wrap(perr.KindConfig, path, "failed to read config file", err)
	}
	var e Engine
	if err := yaml.Unmarshal(data, &e); err != nil {
		return nil, perr.Wrap(perr.KindConfig, path, "failed to parse config file", err)
	}
	e.ApplyDefaults()
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}

// Settings are the handful of process-level settings read from the
// environment, following the teacher's getEnv/getEnvInt helper pattern.
type Settings struct {
	PluginDir  string
	ConfigFile string
}

// LoadSettings reads GAUSS_PLUGIN_DIR and GAUSS_CONFIG_FILE, defaulting to
// "./plugins" and "./gauss.yaml".
func LoadSettings() Settings {
	return Settings{
		PluginDir:  getEnv("GAUSS_PLUGIN_DIR", "./plugins"),
		ConfigFile: getEnv("GAUSS_CONFIG_FILE", "./gauss.yaml"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
