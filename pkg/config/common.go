package config

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Accepted values mirror what pkg/logger understands.
var (
	logLevels  = []string{"debug", "info", "warn", "warning", "error"}
	logFormats = []string{"json", "text"}
)

// CommonConfig is the logging block every command reads before it does anything else.
type CommonConfig struct {
	LogLevel  string `env:"LOG_LEVEL" yaml:"log_level" default:"info"`
	LogFormat string `env:"LOG_FORMAT" yaml:"log_format" default:"json"`
}

// Validate rejects levels and formats the logger would silently replace with its defaults.
// An empty format is allowed and means json.
func (c CommonConfig) Validate() error {
	var result error
	if !oneOf(strings.ToLower(c.LogLevel), logLevels) {
		result = multierror.Append(result, fmt.Errorf("log_level must be one of [%s], got %q", strings.Join(logLevels, ", "), c.LogLevel))
	}
	if c.LogFormat != "" && !oneOf(strings.ToLower(c.LogFormat), logFormats) {
		result = multierror.Append(result, fmt.Errorf("log_format must be either 'json' or 'text', got %q", c.LogFormat))
	}
	return result
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
