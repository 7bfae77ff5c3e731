// Copyright 2019 Jigsaw Operations LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package transport

import (
	"context"
	"fmt"
	"net"
)

// PacketEndpoint represents an endpoint that can be used to establish packet
// connections (like UDP) to a fixed destination.
type PacketEndpoint interface {
	// ConnectPacket establishes a connection with the endpoint, returning the connection.
	ConnectPacket(ctx context.Context) (net.Conn, error)
}

// FuncPacketEndpoint is a [PacketEndpoint] based on a function.
type FuncPacketEndpoint func(ctx context.Context) (net.Conn, error)

var _ PacketEndpoint = FuncPacketEndpoint(nil)

// ConnectPacket implements [PacketEndpoint].ConnectPacket.
func (f FuncPacketEndpoint) ConnectPacket(ctx context.Context) (net.Conn, error) {
	return f(ctx)
}

// UDPEndpoint is a [PacketEndpoint] that connects to the given address via UDP.
type UDPEndpoint struct {
	// The Dialer used to create the net.Conn on ConnectPacket().
	Dialer net.Dialer
	// The endpoint address (host:port) to pass to Dial.
	// If the host is a domain name, consider pre-resolving it to avoid resolution calls.
	Address string
}

var _ PacketEndpoint = (*UDPEndpoint)(nil)

// ConnectPacket implements [PacketEndpoint].ConnectPacket.
func (e *UDPEndpoint) ConnectPacket(ctx context.Context) (net.Conn, error) {
	return e.Dialer.DialContext(ctx, "udp", e.Address)
}

// PacketDialer provides a way to dial a destination and establish datagram connections.
type PacketDialer interface {
	// DialPacket connects to `raddr`.
	// `raddr` has the form `host:port`, where `host` can be a domain name or IP address.
	DialPacket(ctx context.Context, raddr string) (net.Conn, error)
}

// FuncPacketDialer is a [PacketDialer] based on a function.
type FuncPacketDialer func(ctx context.Context, raddr string) (net.Conn, error)

var _ PacketDialer = FuncPacketDialer(nil)

// DialPacket implements [PacketDialer].DialPacket.
func (f FuncPacketDialer) DialPacket(ctx context.Context, raddr string) (net.Conn, error) {
	return f(ctx, raddr)
}

// UDPDialer is a [PacketDialer] that uses the standard [net.Dialer] to dial.
// It provides a convenient way to use a [net.Dialer] when you need a [PacketDialer].
type UDPDialer struct {
	Dialer net.Dialer
}

var _ PacketDialer = (*UDPDialer)(nil)

// DialPacket implements [PacketDialer].DialPacket.
func (d *UDPDialer) DialPacket(ctx context.Context, raddr string) (net.Conn, error) {
	return d.Dialer.DialContext(ctx, "udp", raddr)
}

// PacketListener provides a way to create a local unbound packet connection to
// send packets to different destinations.
type PacketListener interface {
	// ListenPacket creates a PacketConn that can be used to relay packets
	// (such as UDP) through some proxy.
	ListenPacket(ctx context.Context) (net.PacketConn, error)
}

// UDPListener is a [PacketListener] that uses the standard [net.ListenConfig].ListenPacket to listen.
type UDPListener struct {
	net.ListenConfig
	// The local address to bind to, as specified in [net.ListenPacket]. Empty binds to
	// all interfaces on an ephemeral port.
	Address string
}

var _ PacketListener = (*UDPListener)(nil)

// ListenPacket implements [PacketListener].ListenPacket.
func (l UDPListener) ListenPacket(ctx context.Context) (net.PacketConn, error) {
	return l.ListenConfig.ListenPacket(ctx, "udp", l.Address)
}

// PacketListenerDialer is a [PacketDialer] that connects to the destination
// using the given [PacketListener], binding every dial to the address the
// caller passes.
type PacketListenerDialer struct {
	// The PacketListener that is used to create the net.PacketConn to bind on DialPacket. Must be non nil.
	Listener PacketListener
}

var _ PacketDialer = (*PacketListenerDialer)(nil)

type boundPacketConn struct {
	net.PacketConn
	remoteAddr net.Addr
}

var _ net.Conn = (*boundPacketConn)(nil)

// DialPacket implements [PacketDialer].DialPacket.
// The address is a host:port and the host must be a full IP address (not [::]) or a domain.
// The address must be supported by the WriteTo call of the PacketConn
// returned by the PacketListener. For instance, a [net.UDPConn] only supports IP addresses, not domain names.
// If the host is a domain name, consider pre-resolving it to avoid resolution calls.
func (d *PacketListenerDialer) DialPacket(ctx context.Context, address string) (net.Conn, error) {
	packetConn, err := d.Listener.ListenPacket(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not create PacketConn: %w", err)
	}
	netAddr, err := MakeNetAddr("udp", address)
	if err != nil {
		packetConn.Close()
		return nil, err
	}
	return &boundPacketConn{
		PacketConn: packetConn,
		remoteAddr: netAddr,
	}, nil
}

// Read implements [net.Conn].Read, discarding any datagram not sent by RemoteAddr.
func (c *boundPacketConn) Read(packet []byte) (int, error) {
	for {
		n, remoteAddr, err := c.PacketConn.ReadFrom(packet)
		if err != nil {
			return n, err
		}
		if remoteAddr.String() != c.remoteAddr.String() {
			continue
		}
		return n, nil
	}
}

// Write implements [net.Conn].Write.
func (c *boundPacketConn) Write(packet []byte) (int, error) {
	// This may return syscall.EINVAL if remoteAddr is a name like localhost or [::].
	n, err := c.PacketConn.WriteTo(packet, c.remoteAddr)
	return n, err
}

// RemoteAddr implements [net.Conn].RemoteAddr.
func (c *boundPacketConn) RemoteAddr() net.Addr {
	return c.remoteAddr
}
