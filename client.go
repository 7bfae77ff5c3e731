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
	"io"
	"log/slog"

	"github.com/proxygrid/socks5/errs"
	"github.com/proxygrid/socks5/internal/ctxio"
	"github.com/proxygrid/socks5/transport"
)

// ClientSession wraps exactly one Method over one proxy stream. Its API
// shape forces the protocol ordering greet → handshake → request →
// {stream | accept | datagram}: a ClientSession only exists post-handshake,
// and SendRequest is the only way to advance it. A session that encounters
// a protocol violation becomes unusable; every later call returns
// errs.ErrSessionClosed.
type ClientSession struct {
	conn   transport.StreamConn
	logger *slog.Logger
	closed bool
}

// Connect performs the SOCKS5 greeting and method handshake on conn:
//  1. write the 3-byte greeting offering method's code;
//  2. read and validate the 2-byte greeting reply;
//  3. run method's sub-negotiation via Handshake.
//
// On success it returns a ClientSession ready for SendRequest. On failure
// conn is left in an undefined state; the caller should close it.
func Connect(ctx context.Context, conn transport.StreamConn, method Method, logger *slog.Logger) (*ClientSession, error) {
	if method == nil {
		method = NoAuth
	}
	greeting := []byte{Version, 1, method.Code()}
	if _, err := ctxio.Write(ctx, conn, greeting); err != nil {
		return nil, fmt.Errorf("socks5: writing greeting: %w", err)
	}
	var reply [2]byte
	if _, err := ctxio.ReadFull(ctx, conn, reply[:]); err != nil {
		return nil, fmt.Errorf("socks5: reading greeting reply: %w", err)
	}
	if reply[0] != Version {
		return nil, fmt.Errorf("socks5: %w: got %d", errs.ErrInvalidResponseVersion, reply[0])
	}
	if reply[1] == 0xFF {
		return nil, errs.ErrNoAcceptableMethod
	}
	// The selected method is not compared against the one offered: the
	// wire protocol only guarantees it isn't 0xFF. A stricter client could
	// reject a mismatch here, but doing so would diverge from how SOCKS5
	// clients in the wild treat this byte, so it is accepted as-is.
	wrapped, err := method.Handshake(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("socks5: method handshake: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ClientSession{conn: wrapped, logger: logger}, nil
}

// SendRequest encodes and writes a request for cmd and target, then decodes
// and returns the server's reply. A ReplyCode != 0 is returned as the typed
// error (use errors.Is/errors.As to inspect it) and transitions the session
// to closed, per §4.4's "any protocol violation is terminal".
func (s *ClientSession) SendRequest(ctx context.Context, cmd byte, target TargetAddress) (TargetAddress, error) {
	if s.closed {
		return TargetAddress{}, errs.ErrSessionClosed
	}
	if trace := ClientTraceFromContext(ctx); trace != nil && trace.RequestStarted != nil {
		trace.RequestStarted(cmd, target.String())
	}
	req, err := encodeRequest(cmd, target)
	if err != nil {
		s.closed = true
		return TargetAddress{}, err
	}
	if _, err := ctxio.Write(ctx, s.conn, req); err != nil {
		s.closed = true
		return TargetAddress{}, fmt.Errorf("socks5: writing request: %w", err)
	}
	s.logger.DebugContext(ctx, "socks5 request sent", "cmd", cmd, "target", target.String())
	bound, err := decodeReply(ctx, s.conn)
	if trace := ClientTraceFromContext(ctx); trace != nil && trace.RequestDone != nil {
		trace.RequestDone(bound.String(), err)
	}
	if err != nil {
		s.closed = true
		return TargetAddress{}, err
	}
	return bound, nil
}

// AwaitReply decodes one more reply from the session's stream without
// writing a request first. It exists for BIND's second reply (§4.4): the
// proxy sends it unprompted once a peer connects to the bound port.
func (s *ClientSession) AwaitReply(ctx context.Context) (TargetAddress, error) {
	if s.closed {
		return TargetAddress{}, errs.ErrSessionClosed
	}
	bound, err := decodeReply(ctx, s.conn)
	if err != nil {
		s.closed = true
		return TargetAddress{}, err
	}
	return bound, nil
}

// Conn returns the session's underlying (possibly method-wrapped) stream.
// Valid for tunneled CONNECT I/O once SendRequest(CmdConnect, ...) succeeds.
func (s *ClientSession) Conn() transport.StreamConn {
	return s.conn
}

// Close releases the session's stream and marks it closed. Per §5, this is
// also what ends a UDP association: the control stream must stay open for
// the association's lifetime.
func (s *ClientSession) Close() error {
	s.closed = true
	return s.conn.Close()
}
