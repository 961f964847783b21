// Package config provides the host-facing configuration surface for the
// mDNS client: query defaults and per-socket tuning, both expressible as
// JSON the way the rest of this ecosystem's config packages are.
package config

import (
	"errors"
	"time"

	"github.com/ausimian/madness/internal/netx"
)

const (
	// DefaultTimeout is the overall deadline for a Query's stream.
	DefaultTimeout = 5 * time.Second

	// DefaultServiceTag is used by the example command; library callers
	// supply their own service name via the questions they ask.
	DefaultServiceTag = "_services._dns-sd._udp.local"
)

// Config controls a Query's interface selection and lifetime.
type Config struct {
	// InterfacePrefixes restricts interface selection to names starting
	// with one of these prefixes. Empty means unrestricted.
	InterfacePrefixes []string `json:"interface_prefixes,omitempty"`

	// Timeout bounds how long the stream stays open before workers are
	// stopped and the stream closes.
	Timeout Duration `json:"timeout"`

	// Family restricts interface selection to one address family, or
	// FamilyAny for both.
	Family netx.Family `json:"family"`

	// IfName, if non-empty, restricts to a single named interface.
	IfName string `json:"if_name,omitempty"`
}

// DefaultConfig returns the config used when no options are supplied.
func DefaultConfig() *Config {
	return &Config{
		Timeout: Duration(DefaultTimeout),
		Family:  netx.FamilyAny,
	}
}

// Validate reports whether c is usable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	return nil
}

// MatchesInterfaceName reports whether name is allowed by
// InterfacePrefixes (vacuously true when the list is empty).
func (c *Config) MatchesInterfaceName(name string) bool {
	if len(c.InterfacePrefixes) == 0 {
		return true
	}
	for _, prefix := range c.InterfacePrefixes {
		if len(name) >= len(prefix) && name[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}

// SocketConfig tunes the per-interface multicast socket InterfaceWorker
// and the passive listeners open.
type SocketConfig struct {
	// MulticastHopLimit is applied as IPv4 TTL / IPv6 hop limit on
	// outgoing multicast datagrams. RFC 6762 mandates 255.
	MulticastHopLimit int

	// DisableLoopback suppresses delivery of our own multicast sends
	// back to this host. RFC 6762 mandates this for normal operation.
	DisableLoopback bool

	// ReadBufferSize is the size of the buffer used for each ReadFrom.
	// mDNS datagrams fit in a single UDP packet (<=65535 bytes); 9000
	// comfortably covers any jumbo-frame-sized response.
	ReadBufferSize int
}

// DefaultSocketConfig returns the socket tuning RFC 6762 requires.
func DefaultSocketConfig() SocketConfig {
	return SocketConfig{
		MulticastHopLimit: 255,
		DisableLoopback:   true,
		ReadBufferSize:    9000,
	}
}
