// Package query implements QueryDriver: the top-level fan-out that turns
// a set of questions into one InterfaceWorker per eligible interface,
// collects their forwarded responses, and enforces the overall deadline.
package query

import (
	"context"
	"net"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/ausimian/madness/config"
	"github.com/ausimian/madness/internal/cache"
	"github.com/ausimian/madness/internal/netx"
	"github.com/ausimian/madness/internal/wire"
	"github.com/ausimian/madness/internal/worker"
	"github.com/ausimian/madness/pkg/lib/log"
	"github.com/ausimian/madness/pkg/metrics"
)

var logger = log.Logger("query")

// Driver runs one query: it enumerates interfaces matching cfg, starts a
// worker per (interface, family), and streams their forwarded responses
// until the deadline or caller cancellation.
type Driver struct {
	cfg       *config.Config
	sockCfg   config.SocketConfig
	cache     *cache.Cache
	metrics   *metrics.Collector
	questions []wire.Question

	id string // correlation id for logs, one per Stream call

	// newWorker is overridden in tests to substitute a worker that
	// never touches a real socket.
	newWorker func(iface net.Interface, family netx.Family, c *cache.Cache, cfg config.SocketConfig, out chan<- worker.DecodedResponse) interfaceWorker

	// listTargets is overridden in tests to substitute a fixed interface
	// set instead of enumerating the host's real interfaces.
	listTargets func() ([]workerTarget, error)

	mu       sync.Mutex
	bindErrs error
}

// interfaceWorker is the subset of *worker.InterfaceWorker's API Stream
// depends on.
type interfaceWorker interface {
	Run(ctx context.Context, questions []wire.Question) error
}

// New returns a Driver ready to Stream questions against c, filtered and
// timed according to cfg. m may be nil.
func New(questions []wire.Question, cfg *config.Config, sockCfg config.SocketConfig, c *cache.Cache, m *metrics.Collector) *Driver {
	d := &Driver{
		cfg: cfg, sockCfg: sockCfg, cache: c, metrics: m, questions: questions, id: uuid.New().String(),
		newWorker: func(iface net.Interface, family netx.Family, c *cache.Cache, cfg config.SocketConfig, out chan<- worker.DecodedResponse) interfaceWorker {
			return worker.New(iface, family, c, cfg, m, out)
		},
	}
	d.listTargets = d.eligibleInterfaces
	return d
}

// Stream starts one worker per eligible interface and returns a channel
// of forwarded responses. The channel closes when ctx is cancelled, the
// configured timeout elapses, or every worker has stopped.
func (d *Driver) Stream(ctx context.Context) (<-chan worker.DecodedResponse, error) {
	ifaces, err := d.listTargets()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout.Duration())
	out := make(chan worker.DecodedResponse)

	g, gctx := errgroup.WithContext(ctx)
	errs := make(chan error, len(ifaces))

	for _, target := range ifaces {
		target := target
		g.Go(func() error {
			w := d.newWorker(target.iface, target.family, d.cache, d.sockCfg, out)
			if err := w.Run(gctx, d.questions); err != nil {
				logger.Debug("worker stopped with error", "query", d.id, "interface", target.iface.Name, "family", target.family, "error", err)
				errs <- err
				return nil // one worker's socket error never aborts its siblings
			}
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(errs)

		var merged error
		for err := range errs {
			merged = multierr.Append(merged, err)
		}
		d.mu.Lock()
		d.bindErrs = merged
		d.mu.Unlock()

		cancel()
		close(out)
	}()

	return out, nil
}

// Errs returns the merged bind/send errors from the most recently
// completed Stream call's workers, or nil if none failed. Individual
// worker failures never surface through the response channel itself
// (per the ambient error-handling contract); this is a diagnostics hook
// for callers (and metrics) that want to know why some interfaces never
// produced a response.
func (d *Driver) Errs() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bindErrs
}

type workerTarget struct {
	iface  net.Interface
	family netx.Family
}

// eligibleInterfaces applies the family/ifname/interface_prefixes filters
// from d.cfg to the host's multicast-capable interfaces.
func (d *Driver) eligibleInterfaces() ([]workerTarget, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var targets []workerTarget
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagMulticast == 0 {
			continue
		}
		if d.cfg.IfName != "" && iface.Name != d.cfg.IfName {
			continue
		}
		if !d.cfg.MatchesInterfaceName(iface.Name) {
			continue
		}

		for _, family := range d.familiesFor(iface) {
			targets = append(targets, workerTarget{iface: iface, family: family})
		}
	}
	return targets, nil
}

// familiesFor returns which address families iface actually has
// addresses for, intersected with d.cfg.Family.
func (d *Driver) familiesFor(iface net.Interface) []netx.Family {
	addrs, err := iface.Addrs()
	if err != nil {
		return nil
	}

	var hasV4, hasV6 bool
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		if ipNet.IP.To4() != nil {
			hasV4 = true
		} else {
			hasV6 = true
		}
	}

	var families []netx.Family
	if hasV4 && netx.FamilyIPv4.Matches(d.cfg.Family) {
		families = append(families, netx.FamilyIPv4)
	}
	if hasV6 && netx.FamilyIPv6.Matches(d.cfg.Family) {
		families = append(families, netx.FamilyIPv6)
	}
	return families
}
