package madness

import (
	"log/slog"

	"github.com/ausimian/madness/config"
	"github.com/ausimian/madness/internal/netx"
	"github.com/ausimian/madness/pkg/lib/log"
)

// Option configures a Client at construction time.
type Option func(*options) error

// options is the internal accumulator Option functions write into; it is
// converted to a *config.Config once every option has been applied.
type options struct {
	family            netx.Family
	ifName            string
	interfacePrefixes []string
	timeout           config.Duration
	socket            config.SocketConfig
}

func newOptions() *options {
	return &options{
		family:  netx.FamilyAny,
		timeout: config.DefaultConfig().Timeout,
		socket:  config.DefaultSocketConfig(),
	}
}

func (o *options) toConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Family = o.family
	cfg.IfName = o.ifName
	cfg.InterfacePrefixes = o.interfacePrefixes
	cfg.Timeout = o.timeout
	return cfg
}

// WithFamily restricts a query to one address family. The default,
// FamilyAny, queries both.
func WithFamily(family netx.Family) Option {
	return func(o *options) error {
		o.family = family
		return nil
	}
}

// WithInterface restricts a query to the single named interface.
func WithInterface(name string) Option {
	return func(o *options) error {
		o.ifName = name
		return nil
	}
}

// WithInterfacePrefixes restricts a query to interfaces whose name has
// one of the given prefixes (e.g. "en", "eth"). It applies together with
// WithInterface: a named interface must also match one of the prefixes.
func WithInterfacePrefixes(prefixes ...string) Option {
	return func(o *options) error {
		o.interfacePrefixes = prefixes
		return nil
	}
}

// WithTimeout overrides the default per-query deadline.
func WithTimeout(d config.Duration) Option {
	return func(o *options) error {
		o.timeout = d
		return nil
	}
}

// WithSocketConfig overrides the default multicast socket settings
// (hop limit, loopback, read buffer size).
func WithSocketConfig(cfg config.SocketConfig) Option {
	return func(o *options) error {
		o.socket = cfg
		return nil
	}
}

// WithLogger redirects this module's component loggers to l by calling
// log.SetDefault, which also replaces slog's process-wide default logger.
// The change is global and is not scoped to the Client being built.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) error {
		log.SetDefault(l)
		return nil
	}
}
