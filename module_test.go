package madness

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ausimian/madness/config"
	"github.com/ausimian/madness/internal/netx"
	"github.com/ausimian/madness/internal/wire"
	"github.com/ausimian/madness/pkg/interfaces"
)

type fakeEventSource struct {
	events chan interfaces.InterfaceEvent
}

func newFakeEventSource() *fakeEventSource {
	return &fakeEventSource{events: make(chan interfaces.InterfaceEvent, 4)}
}

func (f *fakeEventSource) Events() <-chan interfaces.InterfaceEvent { return f.events }

func TestProvideClient_BuildsFromModuleInput(t *testing.T) {
	result, err := ProvideClient(ModuleInput{
		Questions: []Question{{Name: "host.local", Type: TypeA, Class: ClassIN}},
	})
	require.NoError(t, err)
	require.NotNil(t, result.Client)
	result.Client.Close()
}

func TestWatchEvents_IgnoresUnknownInterfaceAndStopsOnCancel(t *testing.T) {
	client, err := Query([]Question{{Name: "host.local", Type: TypeA, Class: ClassIN}})
	require.NoError(t, err)
	defer client.Close()

	src := newFakeEventSource()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		watchEvents(ctx, src, client)
		close(done)
	}()

	// An event naming an interface this host doesn't have must not panic
	// or block the loop; it's simply skipped.
	src.events <- interfaces.InterfaceEvent{Kind: interfaces.LinkDown, IfName: "no-such-interface-xyz"}
	src.events <- interfaces.InterfaceEvent{Kind: interfaces.NewAddr, IfName: "no-such-interface-xyz"}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watchEvents did not stop after context cancellation")
	}
}

func TestWatchEvents_StopsWhenSourceChannelCloses(t *testing.T) {
	client, err := Query([]Question{{Name: "host.local", Type: TypeA, Class: ClassIN}})
	require.NoError(t, err)
	defer client.Close()

	src := newFakeEventSource()
	done := make(chan struct{})
	go func() {
		watchEvents(context.Background(), src, client)
		close(done)
	}()

	close(src.events)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watchEvents did not stop after its source channel closed")
	}
}

func loopbackInterface(t *testing.T) net.Interface {
	ifaces, err := net.Interfaces()
	require.NoError(t, err)
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			return iface
		}
	}
	t.Skip("host has no loopback interface")
	return net.Interface{}
}

func TestWatchEvents_DelAddrWithdrawsOnlyMatchingFamily(t *testing.T) {
	client, err := Query([]Question{{Name: "host.local", Type: TypeA, Class: ClassIN}})
	require.NoError(t, err)
	defer client.Close()

	iface := loopbackInterface(t)
	ctx := context.Background()

	v4 := wire.ResourceRecord{Name: "host.local", Type: wire.TypeA, Class: wire.ClassIN, TTL: 120, Rdata: wire.Rdata{A: [4]byte{127, 0, 0, 1}}}
	v6 := wire.ResourceRecord{Name: "host.local", Type: wire.TypeAAAA, Class: wire.ClassIN, TTL: 120, Rdata: wire.Rdata{AAAA: [8]uint16{0, 0, 0, 0, 0, 0, 0, 1}}}
	require.NoError(t, client.cache.Ingest(ctx, wire.Message{Answers: []wire.ResourceRecord{v4}}, netx.FamilyIPv4, iface.Index))
	require.NoError(t, client.cache.Ingest(ctx, wire.Message{Answers: []wire.ResourceRecord{v6}}, netx.FamilyIPv6, iface.Index))

	src := newFakeEventSource()
	evtCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		watchEvents(evtCtx, src, client)
		close(done)
	}()

	src.events <- interfaces.InterfaceEvent{Kind: interfaces.DelAddr, IfName: iface.Name, Addr: "127.0.0.1"}

	qA := []wire.Question{{Name: "host.local", Type: wire.TypeA, Class: wire.ClassIN}}
	qAAAA := []wire.Question{{Name: "host.local", Type: wire.TypeAAAA, Class: wire.ClassIN}}

	require.Eventually(t, func() bool {
		gotV4, err := client.cache.Lookup(ctx, qA, netx.FamilyIPv4, iface.Index)
		return err == nil && len(gotV4) == 0
	}, time.Second, 10*time.Millisecond, "DelAddr on an IPv4 address must withdraw the IPv4 record")

	gotV6, err := client.cache.Lookup(ctx, qAAAA, netx.FamilyIPv6, iface.Index)
	require.NoError(t, err)
	assert.Len(t, gotV6, 1, "DelAddr on an IPv4 address must not withdraw IPv6 records on the same interface")

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watchEvents did not stop after context cancellation")
	}
}

func TestEligibleListenerTargets_SmokeTest(t *testing.T) {
	targets, err := eligibleListenerTargets(config.DefaultConfig())
	require.NoError(t, err)
	assert.NotNil(t, targets)
}

