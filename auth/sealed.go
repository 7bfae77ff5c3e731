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
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/proxygrid/socks5"
	"github.com/proxygrid/socks5/transport"
)

// sealedChannelMethodCode is a method code in the private-use range
// (0x80-0xfe) reserved by RFC 1928 §3 for methods agreed on out of band.
const sealedChannelMethodCode = 0x80

// sealedChannelHKDFInfo binds the derived key to this method so the same
// passphrase produces a different key if reused for another purpose.
const sealedChannelHKDFInfo = "proxygrid/socks5/auth/sealed-channel"

// sealedChannel authenticates implicitly by deriving a shared AEAD key from
// a pre-shared passphrase: there is no sub-negotiation exchange, only a
// framing change. A peer without the matching passphrase will fail to
// decrypt the first sealed message the other side sends, rather than
// receiving an explicit rejection.
type sealedChannel struct {
	passphrase []byte
}

var _ socks5.Method = (*sealedChannel)(nil)

// NewSealedChannel returns a socks5.Method that, after the greeting, wraps
// the proxy stream in a chacha20poly1305 AEAD framing keyed from
// passphrase. Both ends of the connection must supply the same passphrase.
func NewSealedChannel(passphrase []byte) socks5.Method {
	return &sealedChannel{passphrase: passphrase}
}

func (m *sealedChannel) Code() byte { return sealedChannelMethodCode }

// Handshake derives the AEAD key from the passphrase and returns conn
// wrapped in a sealedConn. There is no wire exchange: both peers derive the
// same key deterministically, so the first framed message either decrypts
// or the connection is useless.
func (m *sealedChannel) Handshake(ctx context.Context, conn transport.StreamConn) (transport.StreamConn, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, m.passphrase, nil, []byte(sealedChannelHKDFInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("socks5/auth: deriving sealed-channel key: %w", err)
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("socks5/auth: constructing AEAD cipher: %w", err)
	}
	return &sealedConn{StreamConn: conn, aead: aead}, nil
}

// sealedLengthSize is the byte width of the length prefix on the wire,
// covering nonce+ciphertext+tag for one frame; this caps a frame at 65535
// bytes. Write splits a larger buffer across as many frames as it needs.
const sealedLengthSize = 2

// sealedConn wraps a transport.StreamConn in length-prefixed
// nonce+ciphertext AEAD framing. Unlike Gordafarid's CipherConn, it keeps
// no process-global nonce cache: nonces are generated fresh per Write with
// crypto/rand, which is sufficient to avoid reuse without the shared,
// leak-prone state a library has no business owning.
type sealedConn struct {
	transport.StreamConn
	aead cipher.AEAD
	buf  []byte
}

func (c *sealedConn) Read(b []byte) (int, error) {
	if len(c.buf) > 0 {
		n := copy(b, c.buf)
		c.buf = c.buf[n:]
		return n, nil
	}

	var lenBytes [sealedLengthSize]byte
	if _, err := io.ReadFull(c.StreamConn, lenBytes[:]); err != nil {
		return 0, err
	}
	frame := make([]byte, binary.BigEndian.Uint16(lenBytes[:]))
	if _, err := io.ReadFull(c.StreamConn, frame); err != nil {
		return 0, err
	}
	if len(frame) < c.aead.NonceSize() {
		return 0, fmt.Errorf("socks5/auth: sealed frame shorter than a nonce")
	}
	nonce, ciphertext := frame[:c.aead.NonceSize()], frame[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(ciphertext[:0], nonce, ciphertext, nil)
	if err != nil {
		return 0, fmt.Errorf("socks5/auth: decrypting sealed frame: %w", err)
	}
	c.buf = plaintext
	n := copy(b, c.buf)
	c.buf = c.buf[n:]
	return n, nil
}

func (c *sealedConn) Write(b []byte) (int, error) {
	maxPlaintext := 1<<(8*sealedLengthSize) - 1 - c.aead.NonceSize() - c.aead.Overhead()
	written := 0
	for {
		chunk := b
		if len(chunk) > maxPlaintext {
			chunk = chunk[:maxPlaintext]
		}
		nonce := make([]byte, c.aead.NonceSize())
		if _, err := rand.Read(nonce); err != nil {
			return written, fmt.Errorf("socks5/auth: generating nonce: %w", err)
		}
		sealed := c.aead.Seal(nonce, nonce, chunk, nil)

		var lenBytes [sealedLengthSize]byte
		binary.BigEndian.PutUint16(lenBytes[:], uint16(len(sealed)))
		if _, err := c.StreamConn.Write(lenBytes[:]); err != nil {
			return written, err
		}
		if _, err := c.StreamConn.Write(sealed); err != nil {
			return written, err
		}
		written += len(chunk)
		b = b[len(chunk):]
		if len(b) == 0 {
			return written, nil
		}
	}
}

// CloseRead and CloseWrite are inherited from the embedded StreamConn: a
// half-close tears down the framing along with the underlying socket, since
// there is no notion of a "sealed" half-close independent of the transport.
var _ net.Conn = (*sealedConn)(nil)
