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
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/proxygrid/socks5/errs"
)

// TestBindListener_TwoReplies exercises the BIND sequence in full: the
// first reply carries the address the proxy is now listening on, and the
// second (sent unprompted, with no further request from the client) carries
// the address of whatever peer connected to it.
func TestBindListener_TwoReplies(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		buf := make([]byte, 3)
		io.ReadFull(server, buf)
		server.Write([]byte{Version, 0x00})

		req := make([]byte, 10)
		io.ReadFull(server, req)
		// First reply: the address the proxy is listening on.
		server.Write([]byte{Version, 0x00, 0x00, addrTypeIPv4, 10, 0, 0, 1, 0x1F, 0x90})
		// Second reply, unprompted: the peer that connected.
		server.Write([]byte{Version, 0x00, 0x00, addrTypeIPv4, 203, 0, 113, 7, 0x00, 0x50})
	}()

	listener, err := BindListenerWithConn(context.Background(), pipeConn{client}, "0.0.0.0:0")
	require.NoError(t, err)
	require.True(t, listener.BindAddr().Equal(NewIPTargetAddress(net.IPv4(10, 0, 0, 1).To4(), 8080)))

	stream, err := listener.Accept(context.Background())
	require.NoError(t, err)
	require.True(t, stream.PeerAddr().Equal(NewIPTargetAddress(net.IPv4(203, 0, 113, 7).To4(), 80)))
}

func TestBindListener_AcceptOnlyOnce(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		buf := make([]byte, 3)
		io.ReadFull(server, buf)
		server.Write([]byte{Version, 0x00})
		req := make([]byte, 10)
		io.ReadFull(server, req)
		server.Write([]byte{Version, 0x00, 0x00, addrTypeIPv4, 0, 0, 0, 0, 0, 0})
		server.Write([]byte{Version, 0x00, 0x00, addrTypeIPv4, 0, 0, 0, 0, 0, 0})
	}()

	listener, err := BindListenerWithConn(context.Background(), pipeConn{client}, "0.0.0.0:0")
	require.NoError(t, err)

	_, err = listener.Accept(context.Background())
	require.NoError(t, err)

	_, err = listener.Accept(context.Background())
	require.ErrorIs(t, err, errs.ErrSessionClosed)
}

func TestBindListener_RejectedByProxy(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		buf := make([]byte, 3)
		io.ReadFull(server, buf)
		server.Write([]byte{Version, 0x00})
		req := make([]byte, 10)
		io.ReadFull(server, req)
		server.Write([]byte{Version, byte(ReplyConnectionNotAllowed), 0x00, addrTypeIPv4, 0, 0, 0, 0, 0, 0})
	}()

	_, err := BindListenerWithConn(context.Background(), pipeConn{client}, "0.0.0.0:0")
	require.ErrorIs(t, err, ReplyConnectionNotAllowed)
}
