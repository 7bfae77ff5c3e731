// Copyright 2023 Jigsaw Operations LLC
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

package socks5

import (
	"context"
	"fmt"
	"net"

	"github.com/proxygrid/socks5/errs"
	"github.com/proxygrid/socks5/internal/ctxio"
	"github.com/proxygrid/socks5/transport"
)

// Datagram is a UDP ASSOCIATE endpoint: a datagram socket that relays
// encapsulated payloads to and from the SOCKS5 relay address the proxy
// published in the UDP ASSOCIATE reply, while the control stream (held in
// session) keeps the association alive. Per §5, SendTo and RecvFrom may be
// called concurrently from independent goroutines since each only touches
// its own buffer and the (immutable post-registration) relay address; the
// control stream is never touched again after registration.
type Datagram struct {
	session    *ClientSession
	packetConn net.PacketConn
	relay      net.Addr
}

// ListenDatagram opens a connection to the proxy via endpoint, issues a UDP
// ASSOCIATE request, then binds a local datagram socket via packetListener
// and registers it with the relay address the proxy returned. This is
// Datagram::bind(proxy, local) from the library surface.
func ListenDatagram(ctx context.Context, endpoint transport.StreamEndpoint, packetListener transport.PacketListener, opts ...Option) (*Datagram, error) {
	proxyConn, err := endpoint.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("socks5: connecting to proxy: %w", err)
	}
	packetConn, err := packetListener.ListenPacket(ctx)
	if err != nil {
		proxyConn.Close()
		return nil, fmt.Errorf("socks5: opening local datagram socket: %w", err)
	}
	d, err := ListenDatagramWithConns(ctx, proxyConn, packetConn, opts...)
	if err != nil {
		proxyConn.Close()
		packetConn.Close()
		return nil, err
	}
	return d, nil
}

// ListenDatagramWithConns runs the SOCKS5 greeting, handshake, and a UDP
// ASSOCIATE request over an already-open proxy stream, then registers the
// given (already bound) packetConn with the relay address from the reply.
// This is Datagram::bind_with_socket(stream, packetConn) from the library
// surface.
func ListenDatagramWithConns(ctx context.Context, proxyConn transport.StreamConn, packetConn net.PacketConn, opts ...Option) (*Datagram, error) {
	cfg := newConfig(opts)
	session, err := Connect(ctx, proxyConn, cfg.method, cfg.logger)
	if err != nil {
		return nil, err
	}
	// RFC 1928 §4 allows advertising the client's own future source
	// address/port here; 0.0.0.0:0 asks the proxy to accept from anywhere.
	relayAddr, err := session.SendRequest(ctx, CmdUDPAssociate, NewIPTargetAddress(net.IPv4zero, 0))
	if err != nil {
		return nil, err
	}
	relay, err := relayAddr.Resolve(ctx, "udp")
	if err != nil {
		return nil, fmt.Errorf("socks5: resolving relay address: %w", err)
	}
	return &Datagram{session: session, packetConn: packetConn, relay: relay}, nil
}

// SendTo wraps payload in the SOCKS5 UDP header for target and sends it to
// the registered relay. It fails with errs.ErrDatagramSocketNotRegistered
// if called before the association completed (which cannot happen through
// the constructors above, but can if a Datagram's zero value is misused).
func (d *Datagram) SendTo(ctx context.Context, payload []byte, target TargetAddress) error {
	if d.packetConn == nil || d.relay == nil {
		return errs.ErrDatagramSocketNotRegistered
	}
	packet, err := AppendUDPHeader(nil, target, payload)
	if err != nil {
		return err
	}
	_, err = ctxio.Write(ctx, sendToWriter{d.packetConn, d.relay}, packet)
	return err
}

// RecvFrom reads one datagram from the relay into buf, returning the number
// of payload bytes copied and the TargetAddress enclosed in the datagram's
// SOCKS5 UDP header (the original sender, as seen by the proxy).
func (d *Datagram) RecvFrom(ctx context.Context, buf []byte) (int, TargetAddress, error) {
	if d.packetConn == nil || d.relay == nil {
		return 0, TargetAddress{}, errs.ErrDatagramSocketNotRegistered
	}
	packet := make([]byte, len(buf)+3+1+255+2)
	n, err := ctxio.Read(ctx, recvFromReader{d.packetConn}, packet)
	if err != nil {
		return 0, TargetAddress{}, err
	}
	target, data, err := ParseUDPDatagram(packet[:n])
	if err != nil {
		return 0, TargetAddress{}, err
	}
	copied := copy(buf, data)
	return copied, target, nil
}

// Close closes both the datagram socket and the control stream, ending the
// association per RFC 1928: once the control stream closes, the proxy
// tears down the relay.
func (d *Datagram) Close() error {
	packetErr := d.packetConn.Close()
	sessionErr := d.session.Close()
	if packetErr != nil {
		return packetErr
	}
	return sessionErr
}

// sendToWriter adapts net.PacketConn.WriteTo to io.Writer for ctxio.Write.
type sendToWriter struct {
	pc   net.PacketConn
	addr net.Addr
}

func (w sendToWriter) Write(b []byte) (int, error) {
	return w.pc.WriteTo(b, w.addr)
}

// recvFromReader adapts net.PacketConn.ReadFrom to io.Reader for
// ctxio.Read, discarding the sender address; the sender is not compared
// against the registered relay.
type recvFromReader struct {
	pc net.PacketConn
}

func (r recvFromReader) Read(b []byte) (int, error) {
	n, _, err := r.pc.ReadFrom(b)
	return n, err
}
