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
	"sync"

	"github.com/proxygrid/socks5/errs"
	"github.com/proxygrid/socks5/transport"
)

// Listener is a single-use BIND acceptor: it holds a ClientSession that has
// received the first BIND reply (the address the proxy is now listening on
// on the caller's behalf) and is waiting for a second reply carrying the
// address of whatever peer connects to it.
type Listener struct {
	session  *ClientSession
	bindAddr TargetAddress

	once     sync.Once
	accepted bool
}

// BindAddr returns the address the proxy published in the first BIND
// reply: where the remote peer named in the original request should dial.
func (l *Listener) BindAddr() TargetAddress {
	return l.bindAddr
}

// BindListener opens a connection to the proxy via endpoint, then issues a
// BIND request for targetAddr. This is Listener::bind(proxy, target) from
// the library surface; per RFC 1928 §6, targetAddr filters which peer the
// proxy will accept a connection from.
func BindListener(ctx context.Context, endpoint transport.StreamEndpoint, targetAddr string, opts ...Option) (*Listener, error) {
	proxyConn, err := endpoint.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("socks5: connecting to proxy: %w", err)
	}
	listener, err := BindListenerWithConn(ctx, proxyConn, targetAddr, opts...)
	if err != nil {
		proxyConn.Close()
		return nil, err
	}
	return listener, nil
}

// BindListenerWithConn runs the SOCKS5 greeting, handshake, and a BIND
// request for targetAddr over an already-open proxy stream. This is
// Listener::bind_with_socket(stream, target) from the library surface.
func BindListenerWithConn(ctx context.Context, proxyConn transport.StreamConn, targetAddr string, opts ...Option) (*Listener, error) {
	target, err := ParseTargetAddress(targetAddr)
	if err != nil {
		return nil, err
	}
	cfg := newConfig(opts)
	session, err := Connect(ctx, proxyConn, cfg.method, cfg.logger)
	if err != nil {
		return nil, err
	}
	bindAddr, err := session.SendRequest(ctx, CmdBind, target)
	if err != nil {
		return nil, err
	}
	return &Listener{session: session, bindAddr: bindAddr}, nil
}

// Accept awaits the second BIND reply, which carries the address of the
// peer that connected to the proxy's bound port, and returns a Stream for
// the now-established tunnel. Accept consumes the Listener: calling it more
// than once returns errs.ErrSessionClosed.
func (l *Listener) Accept(ctx context.Context) (*Stream, error) {
	if l.accepted {
		return nil, errs.ErrSessionClosed
	}
	l.accepted = true
	peerAddr, err := l.session.AwaitReply(ctx)
	if err != nil {
		return nil, err
	}
	return &Stream{StreamConn: l.session.Conn(), peerAddr: peerAddr}, nil
}

// Close releases the underlying proxy stream without accepting.
func (l *Listener) Close() error {
	var err error
	l.once.Do(func() { err = l.session.Close() })
	return err
}
