package worker

import (
	"context"
	"hash/fnv"
	"net"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ausimian/madness/config"
	"github.com/ausimian/madness/internal/cache"
	"github.com/ausimian/madness/internal/netx"
	"github.com/ausimian/madness/pkg/metrics"
)

// dedupCacheSize bounds the passive listener's duplicate-datagram guard.
// A multicast-heavy network can flood the listener with the exact same
// announcement from several peers' retransmits; without a bound the guard
// itself would grow without limit.
const dedupCacheSize = 1024

// Listener is the always-on, per-family passive collector: it binds port
// 5353, joins the mDNS group on every interface handed to it, and feeds
// the cache from any datagram it sees, never forwarding to a caller.
type Listener struct {
	family  netx.Family
	cache   *cache.Cache
	cfg     config.SocketConfig
	openFn  openSocketFunc
	metrics *metrics.Collector

	dedup *lru.Cache[uint64, struct{}]
}

// NewListener constructs a passive listener for family, backed by c. m may
// be nil.
func NewListener(family netx.Family, c *cache.Cache, cfg config.SocketConfig, m *metrics.Collector) *Listener {
	dedup, _ := lru.New[uint64, struct{}](dedupCacheSize)
	return &Listener{family: family, cache: c, cfg: cfg, openFn: openSocket, metrics: m, dedup: dedup}
}

// Run joins the group on every interface in ifaces and ingests traffic
// until ctx is cancelled. One socket per interface is opened, all bound
// to port 5353 via SO_REUSEADDR/SO_REUSEPORT so they can coexist.
func (l *Listener) Run(ctx context.Context, ifaces []net.Interface) error {
	sockets := make([]packetSocket, 0, len(ifaces))
	for _, iface := range ifaces {
		sock, err := l.openFn(iface, l.family, netx.Port, l.cfg)
		if err != nil {
			logger.Debug("passive listener failed to join interface", "interface", iface.Name, "family", l.family, "error", err)
			l.metrics.ObserveSocketError("open")
			continue
		}
		sockets = append(sockets, sock)
		go l.readLoop(ctx, sock, iface.Index)
	}

	<-ctx.Done()
	for _, sock := range sockets {
		sock.Close()
	}
	return nil
}

func (l *Listener) readLoop(ctx context.Context, sock packetSocket, ifindex int) {
	buf := make([]byte, l.cfg.ReadBufferSize)
	for {
		n, _, err := sock.ReadFrom(buf)
		if err != nil {
			return
		}

		h := fnv.New64a()
		h.Write(buf[:n])
		key := h.Sum64()
		if _, ok := l.dedup.Get(key); ok {
			continue
		}
		l.dedup.Add(key, struct{}{})

		msg, err := decode(buf[:n])
		if err != nil {
			logger.Debug("passive listener dropping malformed datagram", "error", err)
			continue
		}

		if err := l.cache.Ingest(ctx, msg, l.family, ifindex); err != nil {
			return
		}
		l.metrics.ObserveResponseIngested(l.family.String())
	}
}
