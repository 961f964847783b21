package worker

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
	"golang.org/x/sys/unix"

	"github.com/ausimian/madness/config"
	"github.com/ausimian/madness/internal/netx"
)

// packetSocket is the minimal send/receive surface InterfaceWorker and the
// passive listener need. It is an interface, rather than a concrete type,
// so tests can substitute an in-memory fake instead of joining a real
// multicast group.
type packetSocket interface {
	// WriteMulticast sends buf to this socket's mDNS group.
	WriteMulticast(buf []byte) error
	// ReadFrom blocks until a datagram arrives, returning its payload
	// length and sender.
	ReadFrom(buf []byte) (n int, from net.Addr, err error)
	Close() error
}

// reuseControl is shared by every socket this package opens: it sets
// SO_REUSEADDR and, where supported, SO_REUSEPORT, so the passive
// listener can bind port 5353 once per address family even though
// multiple interfaces each want to join the group on it.
func reuseControl(_, _ string, c syscall.RawConn) error {
	var opErr error
	err := c.Control(func(fd uintptr) {
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			opErr = fmt.Errorf("set SO_REUSEADDR: %w", err)
			return
		}
		// SO_REUSEPORT isn't available on every platform x/sys/unix
		// targets; ignore a failure here rather than fail the bind.
		_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	})
	if err != nil {
		return err
	}
	return opErr
}

type ipv4Socket struct {
	pc    *ipv4.PacketConn
	iface *net.Interface
}

func openIPv4Socket(iface net.Interface, port int, cfg config.SocketConfig) (*ipv4Socket, error) {
	lc := net.ListenConfig{Control: reuseControl}
	raw, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, newSocketError("listen", iface.Name, err)
	}

	pc := ipv4.NewPacketConn(raw)
	if err := pc.SetMulticastTTL(cfg.MulticastHopLimit); err != nil {
		pc.Close()
		return nil, newSocketError("setMulticastTTL", iface.Name, err)
	}
	if err := pc.SetMulticastLoopback(!cfg.DisableLoopback); err != nil {
		pc.Close()
		return nil, newSocketError("setMulticastLoopback", iface.Name, err)
	}
	if err := pc.SetControlMessage(ipv4.FlagInterface, true); err != nil {
		pc.Close()
		return nil, newSocketError("setControlMessage", iface.Name, err)
	}
	if err := pc.SetMulticastInterface(&iface); err != nil {
		pc.Close()
		return nil, newSocketError("setMulticastInterface", iface.Name, err)
	}
	if err := pc.JoinGroup(&iface, &net.UDPAddr{IP: net.ParseIP(netx.MulticastGroupIPv4)}); err != nil {
		pc.Close()
		return nil, newSocketError("joinGroup", iface.Name, err)
	}

	return &ipv4Socket{pc: pc, iface: &iface}, nil
}

func (s *ipv4Socket) WriteMulticast(buf []byte) error {
	dst := &net.UDPAddr{IP: net.ParseIP(netx.MulticastGroupIPv4), Port: netx.Port}
	_, err := s.pc.WriteTo(buf, nil, dst)
	return err
}

func (s *ipv4Socket) ReadFrom(buf []byte) (int, net.Addr, error) {
	n, _, from, err := s.pc.ReadFrom(buf)
	return n, from, err
}

func (s *ipv4Socket) Close() error { return s.pc.Close() }

type ipv6Socket struct {
	pc    *ipv6.PacketConn
	iface *net.Interface
}

func openIPv6Socket(iface net.Interface, port int, cfg config.SocketConfig) (*ipv6Socket, error) {
	lc := net.ListenConfig{Control: reuseControl}
	raw, err := lc.ListenPacket(context.Background(), "udp6", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, newSocketError("listen", iface.Name, err)
	}

	pc := ipv6.NewPacketConn(raw)
	if err := pc.SetMulticastHopLimit(cfg.MulticastHopLimit); err != nil {
		pc.Close()
		return nil, newSocketError("setMulticastHopLimit", iface.Name, err)
	}
	if err := pc.SetMulticastLoopback(!cfg.DisableLoopback); err != nil {
		pc.Close()
		return nil, newSocketError("setMulticastLoopback", iface.Name, err)
	}
	if err := pc.SetControlMessage(ipv6.FlagInterface, true); err != nil {
		pc.Close()
		return nil, newSocketError("setControlMessage", iface.Name, err)
	}
	if err := pc.SetMulticastInterface(&iface); err != nil {
		pc.Close()
		return nil, newSocketError("setMulticastInterface", iface.Name, err)
	}
	if err := pc.JoinGroup(&iface, &net.UDPAddr{IP: net.ParseIP(netx.MulticastGroupIPv6)}); err != nil {
		pc.Close()
		return nil, newSocketError("joinGroup", iface.Name, err)
	}

	return &ipv6Socket{pc: pc, iface: &iface}, nil
}

func (s *ipv6Socket) WriteMulticast(buf []byte) error {
	dst := &net.UDPAddr{IP: net.ParseIP(netx.MulticastGroupIPv6), Port: netx.Port, Zone: s.iface.Name}
	_, err := s.pc.WriteTo(buf, nil, dst)
	return err
}

func (s *ipv6Socket) ReadFrom(buf []byte) (int, net.Addr, error) {
	n, _, from, err := s.pc.ReadFrom(buf)
	return n, from, err
}

func (s *ipv6Socket) Close() error { return s.pc.Close() }

// openSocket dispatches to the right family-specific constructor. port 0
// binds an ephemeral port, as InterfaceWorker wants; the passive listener
// passes netx.Port to bind 5353 directly.
func openSocket(iface net.Interface, family netx.Family, port int, cfg config.SocketConfig) (packetSocket, error) {
	switch family {
	case netx.FamilyIPv4:
		return openIPv4Socket(iface, port, cfg)
	case netx.FamilyIPv6:
		return openIPv6Socket(iface, port, cfg)
	default:
		return nil, newSocketError("openSocket", iface.Name, fmt.Errorf("unsupported family %v", family))
	}
}
