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

package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/proxygrid/socks5"
	"github.com/proxygrid/socks5/internal/ctxio"
	"github.com/proxygrid/socks5/transport"
)

// userPasswordMethodCode is METHOD = 0x02, per
// https://datatracker.ietf.org/doc/html/rfc1929.
const userPasswordMethodCode = 0x02

// userPassword implements the RFC 1929 USERNAME/PASSWORD sub-negotiation.
type userPassword struct {
	username, password []byte
}

var _ socks5.Method = (*userPassword)(nil)

// NewUserPassword returns a socks5.Method that authenticates with username
// and password per RFC 1929. Both must be 1..255 bytes.
func NewUserPassword(username, password []byte) (socks5.Method, error) {
	if len(username) == 0 || len(username) > 255 {
		return nil, errors.New("socks5/auth: username must be 1..255 bytes")
	}
	if len(password) == 0 || len(password) > 255 {
		return nil, errors.New("socks5/auth: password must be 1..255 bytes")
	}
	return &userPassword{username: username, password: password}, nil
}

func (m *userPassword) Code() byte { return userPasswordMethodCode }

// Handshake implements the RFC 1929 sub-negotiation:
//
//	client → server: [VER=1, ULEN, UNAME, PLEN, PASSWD]
//	server → client: [VER=1, STATUS]; STATUS != 0 is failure.
func (m *userPassword) Handshake(ctx context.Context, conn transport.StreamConn) (transport.StreamConn, error) {
	req := make([]byte, 0, 3+len(m.username)+len(m.password))
	req = append(req, 0x01, byte(len(m.username)))
	req = append(req, m.username...)
	req = append(req, byte(len(m.password)))
	req = append(req, m.password...)
	if _, err := ctxio.Write(ctx, conn, req); err != nil {
		return nil, fmt.Errorf("socks5/auth: writing userpass request: %w", err)
	}
	var reply [2]byte
	if _, err := ctxio.ReadFull(ctx, conn, reply[:]); err != nil {
		return nil, fmt.Errorf("socks5/auth: reading userpass reply: %w", err)
	}
	if reply[0] != 0x01 {
		return nil, fmt.Errorf("socks5/auth: unexpected userpass sub-negotiation version %d", reply[0])
	}
	if reply[1] != 0x00 {
		return nil, fmt.Errorf("socks5/auth: userpass authentication failed (status %d)", reply[1])
	}
	return conn, nil
}
