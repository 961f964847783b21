package madness

import (
	"context"
	"net"
	"sync"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/ausimian/madness/config"
	"github.com/ausimian/madness/internal/netx"
	"github.com/ausimian/madness/internal/worker"
	"github.com/ausimian/madness/pkg/interfaces"
	"github.com/ausimian/madness/pkg/metrics"
)

// Module is the optional go.uber.org/fx wiring for host applications that
// already assemble their process with fx: it provides a *Client and, for
// the lifetime of the fx.App, keeps a passive listener running on every
// eligible interface so the Client's cache stays warm even between
// explicit Stream calls.
var Module = fx.Module("madness",
	fx.Provide(ProvideClient),
	fx.Invoke(registerLifecycle),
	fx.WithLogger(func() fxevent.Logger {
		return &fxevent.ZapLogger{Logger: zap.NewNop()}
	}),
)

// ModuleInput is the set of fx-managed values ProvideClient consumes.
// Questions is supplied by the host application, typically via
// fx.Supply; Config, Metrics, and Events are all optional.
type ModuleInput struct {
	fx.In
	Questions []Question
	Config    *config.Config         `optional:"true"`
	SockCfg   config.SocketConfig    `optional:"true"`
	Metrics   *metrics.Collector     `optional:"true"`
	Events    interfaces.EventSource `optional:"true"`
}

// ClientResult is what ProvideClient exports into the fx graph.
type ClientResult struct {
	fx.Out
	Client *Client
}

// ProvideClient builds a Client from fx-managed configuration.
func ProvideClient(input ModuleInput) (ClientResult, error) {
	cfg := input.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	sockCfg := input.SockCfg
	if sockCfg == (config.SocketConfig{}) {
		sockCfg = config.DefaultSocketConfig()
	}

	client, err := Query(input.Questions,
		WithFamily(cfg.Family),
		WithInterface(cfg.IfName),
		WithInterfacePrefixes(cfg.InterfacePrefixes...),
		WithTimeout(cfg.Timeout),
		WithSocketConfig(sockCfg),
	)
	if err != nil {
		return ClientResult{}, err
	}
	if input.Metrics != nil {
		client.WithMetrics(input.Metrics)
	}
	return ClientResult{Client: client}, nil
}

type lifecycleInput struct {
	fx.In
	LC     fx.Lifecycle
	Client *Client
	Events interfaces.EventSource `optional:"true"`
}

// registerLifecycle starts a passive listener per eligible (interface,
// family) on OnStart and tears every one of them down on OnStop. If an
// EventSource was provided, it also forwards LinkDown/DelAddr
// notifications into the Client's cache for the rest of the app's
// lifetime.
func registerLifecycle(input lifecycleInput) {
	c := input.Client
	listeners := newPassiveListenerSet(c)

	var wg sync.WaitGroup
	var cancelEvents context.CancelFunc

	input.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := listeners.start(); err != nil {
				return err
			}
			if input.Events != nil {
				evtCtx, cancel := context.WithCancel(context.Background())
				cancelEvents = cancel
				wg.Add(1)
				go func() {
					defer wg.Done()
					watchEvents(evtCtx, input.Events, c)
				}()
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancelEvents != nil {
				cancelEvents()
			}
			listeners.stop()
			wg.Wait()
			return nil
		},
	})
}

// passiveListenerSet runs one worker.Listener per address family the
// Client's configuration admits, each joined to every eligible interface
// of that family.
type passiveListenerSet struct {
	client *Client
	cancel context.CancelFunc
	done   chan struct{}
}

func newPassiveListenerSet(c *Client) *passiveListenerSet {
	return &passiveListenerSet{client: c}
}

func (s *passiveListenerSet) start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	targets, err := eligibleListenerTargets(s.client.cfg)
	if err != nil {
		cancel()
		return err
	}

	var wg sync.WaitGroup
	for family, ifaces := range targets {
		if len(ifaces) == 0 {
			continue
		}
		l := worker.NewListener(family, s.client.cache, s.client.sockCfg, s.client.metrics)
		wg.Add(1)
		go func(ifaces []net.Interface) {
			defer wg.Done()
			_ = l.Run(ctx, ifaces)
		}(ifaces)
	}

	go func() {
		wg.Wait()
		close(s.done)
	}()
	return nil
}

func (s *passiveListenerSet) stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

// eligibleListenerTargets mirrors the interface-eligibility filter
// internal/query.Driver applies to active workers, grouped by family
// instead of flattened into (interface, family) pairs, since one
// Listener serves every interface of its family at once.
func eligibleListenerTargets(cfg *config.Config) (map[netx.Family][]net.Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	targets := map[netx.Family][]net.Interface{}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagMulticast == 0 {
			continue
		}
		if cfg.IfName != "" && iface.Name != cfg.IfName {
			continue
		}
		if !cfg.MatchesInterfaceName(iface.Name) {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
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
		if hasV4 && netx.FamilyIPv4.Matches(cfg.Family) {
			targets[netx.FamilyIPv4] = append(targets[netx.FamilyIPv4], iface)
		}
		if hasV6 && netx.FamilyIPv6.Matches(cfg.Family) {
			targets[netx.FamilyIPv6] = append(targets[netx.FamilyIPv6], iface)
		}
	}
	return targets, nil
}

// watchEvents forwards LinkDown and DelAddr notifications from src into
// the Client's cache as interface withdrawals, until ctx is cancelled or
// src's channel closes. LinkDown takes the whole interface down, so it
// withdraws both families; DelAddr removes a single address, so it
// withdraws only the family that address belongs to.
func watchEvents(ctx context.Context, src interfaces.EventSource, c *Client) {
	for {
		select {
		case evt, ok := <-src.Events():
			if !ok {
				return
			}
			if evt.Kind != interfaces.LinkDown && evt.Kind != interfaces.DelAddr {
				continue
			}
			iface, err := net.InterfaceByName(evt.IfName)
			if err != nil {
				continue
			}
			families := []netx.Family{netx.FamilyIPv4, netx.FamilyIPv6}
			if evt.Kind == interfaces.DelAddr {
				ip := net.ParseIP(evt.Addr)
				if ip == nil {
					continue
				}
				if ip.To4() != nil {
					families = []netx.Family{netx.FamilyIPv4}
				} else {
					families = []netx.Family{netx.FamilyIPv6}
				}
			}
			for _, family := range families {
				_ = c.cache.WithdrawInterface(ctx, family, iface.Index)
			}
		case <-ctx.Done():
			return
		}
	}
}
