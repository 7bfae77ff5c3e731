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

	"github.com/proxygrid/socks5/transport"
)

// Stream is a bidirectional byte stream to a target reached through a
// SOCKS5 CONNECT. It implements transport.StreamConn.
type Stream struct {
	transport.StreamConn
	peerAddr TargetAddress
}

var _ transport.StreamConn = (*Stream)(nil)

// PeerAddr returns the target address this Stream was connected to.
func (s *Stream) PeerAddr() TargetAddress {
	return s.peerAddr
}

// DialStream opens a connection to the proxy via endpoint, then issues a
// CONNECT request for targetAddr ("host:port"). This is
// Stream::connect(proxy, target) from the library surface.
func DialStream(ctx context.Context, endpoint transport.StreamEndpoint, targetAddr string, opts ...Option) (*Stream, error) {
	proxyConn, err := endpoint.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("socks5: connecting to proxy: %w", err)
	}
	stream, err := ConnectStream(ctx, proxyConn, targetAddr, opts...)
	if err != nil {
		proxyConn.Close()
		return nil, err
	}
	return stream, nil
}

// ConnectStream runs the SOCKS5 greeting, handshake, and a CONNECT request
// for targetAddr over an already-open proxy stream. This is
// Stream::connect_with_socket(stream, target) from the library surface.
func ConnectStream(ctx context.Context, proxyConn transport.StreamConn, targetAddr string, opts ...Option) (*Stream, error) {
	target, err := ParseTargetAddress(targetAddr)
	if err != nil {
		return nil, err
	}
	cfg := newConfig(opts)
	session, err := Connect(ctx, proxyConn, cfg.method, cfg.logger)
	if err != nil {
		return nil, err
	}
	if _, err := session.SendRequest(ctx, CmdConnect, target); err != nil {
		return nil, err
	}
	return &Stream{StreamConn: session.Conn(), peerAddr: target}, nil
}
