// Package worker implements the per-interface socket plumbing: the active
// InterfaceWorker that sends a query and streams back decoded responses,
// and the always-on passive listener that feeds the cache from unsolicited
// traffic. Both share one ingestion path through the cache.
package worker

import (
	"context"
	"net"

	"github.com/ausimian/madness/config"
	"github.com/ausimian/madness/internal/cache"
	"github.com/ausimian/madness/internal/netx"
	"github.com/ausimian/madness/internal/wire"
	"github.com/ausimian/madness/pkg/lib/log"
	"github.com/ausimian/madness/pkg/metrics"
)

var logger = log.Logger("worker")

// DecodedResponse is one message this package forwards to a caller,
// tagged with the interface and family it arrived on.
type DecodedResponse struct {
	Family  netx.Family
	IfIndex int
	Message wire.Message
}

// openSocketFunc is overridden in tests to substitute an in-memory fake
// socket for the real multicast-joining socket constructor.
type openSocketFunc func(iface net.Interface, family netx.Family, port int, cfg config.SocketConfig) (packetSocket, error)

// InterfaceWorker owns one socket bound to one (interface, family) for the
// lifetime of a single query. It sends a known-answer-seeded query on
// startup, then loops receiving datagrams until ctx is cancelled.
type InterfaceWorker struct {
	iface   net.Interface
	family  netx.Family
	cache   *cache.Cache
	cfg     config.SocketConfig
	openFn  openSocketFunc
	metrics *metrics.Collector

	out chan<- DecodedResponse
}

// New constructs a worker for iface/family. out receives every
// successfully decoded message this worker reads; c is consulted for
// known answers and fed every ingested message. m may be nil.
func New(iface net.Interface, family netx.Family, c *cache.Cache, cfg config.SocketConfig, m *metrics.Collector, out chan<- DecodedResponse) *InterfaceWorker {
	return &InterfaceWorker{
		iface:   iface,
		family:  family,
		cache:   c,
		cfg:     cfg,
		openFn:  openSocket,
		metrics: m,
		out:     out,
	}
}

// Run sends the seeded query and then receives until ctx is done or a
// fatal socket error occurs. A bind or initial-send failure is returned.
// A malformed datagram is logged and dropped and the loop continues (a bad
// datagram never tears down the worker); a receive error outside
// cancellation is logged and ends Run with a nil error.
func (w *InterfaceWorker) Run(ctx context.Context, questions []wire.Question) error {
	sock, err := w.openFn(w.iface, w.family, 0, w.cfg)
	if err != nil {
		w.metrics.ObserveSocketError("open")
		return err
	}
	defer sock.Close()

	go func() {
		<-ctx.Done()
		sock.Close()
	}()

	if err := w.sendQuery(ctx, sock, questions); err != nil {
		return err
	}

	buf := make([]byte, w.cfg.ReadBufferSize)
	for {
		n, _, err := sock.ReadFrom(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			logger.Debug("receive failed, stopping worker", "interface", w.iface.Name, "error", err)
			return nil
		}

		msg, err := decode(buf[:n])
		if err != nil {
			logger.Debug("dropping malformed datagram", "interface", w.iface.Name, "error", err)
			continue
		}

		if err := w.cache.Ingest(ctx, msg, w.family, w.iface.Index); err != nil {
			return nil
		}
		w.metrics.ObserveResponseIngested(w.family.String())

		select {
		case w.out <- DecodedResponse{Family: w.family, IfIndex: w.iface.Index, Message: msg}:
		case <-ctx.Done():
			return nil
		}
	}
}

func (w *InterfaceWorker) sendQuery(ctx context.Context, sock packetSocket, questions []wire.Question) error {
	known, err := w.cache.Lookup(ctx, questions, w.family, w.iface.Index)
	if err != nil {
		return err
	}

	msg := wire.Message{
		Header:    wire.DefaultQueryHeader(0),
		Questions: questions,
		Answers:   known,
	}
	buf, err := wire.EncodeMessage(msg)
	if err != nil {
		return newSocketError("encode", w.iface.Name, err)
	}

	if err := sock.WriteMulticast(buf); err != nil {
		w.metrics.ObserveSocketError("send")
		return newSocketError("send", w.iface.Name, err)
	}
	w.metrics.ObserveQuerySent(w.family.String())
	return nil
}

func decode(buf []byte) (wire.Message, error) {
	msg, _, err := wire.DecodeMessage(buf)
	return msg, err
}
