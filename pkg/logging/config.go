package logging

import (
	"github.com/vnykmshr/pipex/pkg/common/validation"
)

// Output formats.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Config contains logging configuration.
type Config struct {
	Level     string `yaml:"level" mapstructure:"level"`
	Format    string `yaml:"format" mapstructure:"format"`
	Output    string `yaml:"output" mapstructure:"output"`
	NoColor   bool   `yaml:"no_color" mapstructure:"no_color"`
	Timestamp bool   `yaml:"timestamp" mapstructure:"timestamp"`
	Caller    bool   `yaml:"caller" mapstructure:"caller"`
}

// DefaultConfig returns info-level JSON logging to stderr.
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		Format:    FormatJSON,
		Output:    "stderr",
		Timestamp: true,
	}
}

// ApplyDefaults fills empty fields.
func (c *Config) ApplyDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = FormatJSON
	}
	if c.Output == "" {
		c.Output = "stderr"
	}
}

var (
	validLevels  = []string{"trace", "debug", "info", "warn", "error", "disabled"}
	validFormats = []string{FormatJSON, FormatConsole}
	validOutputs = []string{"stdout", "stderr"}
)

// Validate checks level, format and output.
func (c Config) Validate() error {
	if err := validation.ValidateOneOf("logging", "level", c.Level, validLevels...); err != nil {
		return err
	}
	if err := validation.ValidateOneOf("logging", "format", c.Format, validFormats...); err != nil {
		return err
	}
	return validation.ValidateOneOf("logging", "output", c.Output, validOutputs...)
}
