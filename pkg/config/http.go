package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"
)

// HTTPServerConfig is the listener and timeout block of the API server.
// Write timeouts cover a full recommendation round trip, so they default well
// above the usual few seconds.
type HTTPServerConfig struct {
	// Host is the bind address; empty listens on every interface.
	Host string `env:"HTTP_HOST" yaml:"host"`
	Port int    `env:"HTTP_PORT" yaml:"http_port" default:"8080"`

	ReadHeaderTimeoutSeconds int `env:"HTTP_READ_HEADER_TIMEOUT_SECONDS" yaml:"read_header_timeout_seconds" default:"10"`
	ReadTimeoutSeconds       int `env:"HTTP_READ_TIMEOUT_SECONDS" yaml:"read_timeout_seconds" default:"15"`
	WriteTimeoutSeconds      int `env:"HTTP_WRITE_TIMEOUT_SECONDS" yaml:"write_timeout_seconds" default:"75"`
	IdleTimeoutSeconds       int `env:"HTTP_IDLE_TIMEOUT_SECONDS" yaml:"idle_timeout_seconds" default:"120"`
}

// Validate checks the port range and that every timeout is positive.
func (h HTTPServerConfig) Validate() error {
	var result error
	if h.Port < 1 || h.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("http port must be between 1-65535, got %d", h.Port))
	}
	for _, t := range []struct {
		name    string
		seconds int
	}{
		{"read_header_timeout_seconds", h.ReadHeaderTimeoutSeconds},
		{"read_timeout_seconds", h.ReadTimeoutSeconds},
		{"write_timeout_seconds", h.WriteTimeoutSeconds},
		{"idle_timeout_seconds", h.IdleTimeoutSeconds},
	} {
		if t.seconds <= 0 {
			result = multierror.Append(result, fmt.Errorf("%s must be positive, got %d", t.name, t.seconds))
		}
	}
	return result
}

// Addr is the host:port the server listens on.
func (h HTTPServerConfig) Addr() string {
	return net.JoinHostPort(h.Host, strconv.Itoa(h.Port))
}

func (h HTTPServerConfig) ReadHeaderTimeout() time.Duration {
	return time.Duration(h.ReadHeaderTimeoutSeconds) * time.Second
}

func (h HTTPServerConfig) ReadTimeout() time.Duration {
	return time.Duration(h.ReadTimeoutSeconds) * time.Second
}

func (h HTTPServerConfig) WriteTimeout() time.Duration {
	return time.Duration(h.WriteTimeoutSeconds) * time.Second
}

func (h HTTPServerConfig) IdleTimeout() time.Duration {
	return time.Duration(h.IdleTimeoutSeconds) * time.Second
}
