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

	"github.com/proxygrid/socks5/transport"
)

// Method is a pluggable SOCKS5 authentication method: a 1-byte code offered
// in the greeting, plus the sub-negotiation that follows a successful
// selection. The engine is method-agnostic beyond the greeting and reply
// parsing in Connect; everything method-specific happens in Handshake.
//
// Implementations that need to layer an encrypted or authenticated framing
// on top of the raw proxy stream (for example, an AEAD-sealed channel) do so
// by returning a wrapping transport.StreamConn from Handshake — see
// auth.NewSealedChannel.
type Method interface {
	// Code returns the 1-byte method identifier offered in the greeting.
	Code() byte
	// Handshake runs the method's sub-negotiation (if any) on conn, which is
	// already past the greeting, and returns the stream subsequent protocol
	// messages and tunneled payload travel on. Methods with no
	// sub-negotiation return conn unchanged.
	Handshake(ctx context.Context, conn transport.StreamConn) (transport.StreamConn, error)
}

// noAuthMethod is the built-in "NO AUTHENTICATION REQUIRED" method
// (RFC 1928 §3, code 0x00): create/handshake are both no-ops.
type noAuthMethod struct{}

// NoAuth is the built-in method requiring no sub-negotiation
// (RFC 1928 §3, method code 0x00).
var NoAuth Method = noAuthMethod{}

func (noAuthMethod) Code() byte { return 0x00 }

func (noAuthMethod) Handshake(ctx context.Context, conn transport.StreamConn) (transport.StreamConn, error) {
	return conn, nil
}
