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

// Package socks5 implements a SOCKS5 (RFC 1928) client: the wire codec, the
// target-address model, the pluggable method handshake, and the client
// engine driving CONNECT, BIND and UDP ASSOCIATE over a caller-supplied
// transport.StreamConn.
package socks5

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strconv"

	"github.com/proxygrid/socks5/errs"
	"github.com/proxygrid/socks5/internal/ctxio"
)

// Version is the SOCKS protocol version this package speaks.
const Version = 0x05

// SOCKS5 commands, from https://datatracker.ietf.org/doc/html/rfc1928#section-4.
const (
	CmdConnect      = byte(0x01)
	CmdBind         = byte(0x02)
	CmdUDPAssociate = byte(0x03)
)

// SOCKS5 address types, from https://datatracker.ietf.org/doc/html/rfc1928#section-5.
const (
	addrTypeIPv4       = 0x01
	addrTypeDomainName = 0x03
	addrTypeIPv6       = 0x04
)

// ReplyCode is the REP field of a SOCKS5 reply, as enumerated in
// https://datatracker.ietf.org/doc/html/rfc1928#section-6. It implements
// error so callers can errors.Is/errors.As against it directly.
type ReplyCode byte

// Known reply codes. Any rep byte outside this set decodes to Unassigned.
const (
	ReplySucceeded               = ReplyCode(0x00)
	ReplyGeneralServerFailure     = ReplyCode(0x01)
	ReplyConnectionNotAllowed     = ReplyCode(0x02)
	ReplyNetworkUnreachable       = ReplyCode(0x03)
	ReplyHostUnreachable          = ReplyCode(0x04)
	ReplyConnectionRefused        = ReplyCode(0x05)
	ReplyTTLExpired               = ReplyCode(0x06)
	ReplyCommandNotSupported      = ReplyCode(0x07)
	ReplyAddressTypeNotSupported  = ReplyCode(0x08)
	ReplyUnassigned               = ReplyCode(0xFF)
)

var _ error = ReplyCode(0)

// Error implements the error interface.
func (c ReplyCode) Error() string {
	switch c {
	case ReplyGeneralServerFailure:
		return "general SOCKS server failure"
	case ReplyConnectionNotAllowed:
		return "connection not allowed by ruleset"
	case ReplyNetworkUnreachable:
		return "network unreachable"
	case ReplyHostUnreachable:
		return "host unreachable"
	case ReplyConnectionRefused:
		return "connection refused"
	case ReplyTTLExpired:
		return "TTL expired"
	case ReplyCommandNotSupported:
		return "command not supported"
	case ReplyAddressTypeNotSupported:
		return "address type not supported"
	default:
		return "unassigned SOCKS5 reply code " + strconv.Itoa(int(c))
	}
}

// replyCodeFromRep maps a reply's REP byte to a ReplyCode, including the
// Unassigned catch-all for anything outside the RFC 1928 §6 table.
func replyCodeFromRep(rep byte) ReplyCode {
	switch rep {
	case 0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08:
		return ReplyCode(rep)
	default:
		return ReplyUnassigned
	}
}

// TargetAddress is a SOCKS5 target address: either a numeric IP endpoint or
// a domain name plus port. Exactly one of IP or Name is set.
type TargetAddress struct {
	IP   net.IP
	Name string
	Port int
}

// NewIPTargetAddress returns a TargetAddress for a numeric endpoint.
func NewIPTargetAddress(ip net.IP, port int) TargetAddress {
	return TargetAddress{IP: ip, Port: port}
}

// NewDomainTargetAddress returns a TargetAddress for a domain+port, failing
// with errs.ErrDomainTooLong if name cannot be SOCKS5-encoded.
func NewDomainTargetAddress(name string, port int) (TargetAddress, error) {
	if len(name) == 0 || len(name) > 255 {
		return TargetAddress{}, errs.ErrDomainTooLong
	}
	return TargetAddress{Name: name, Port: port}, nil
}

// ParseTargetAddress parses a "host:port" string into a TargetAddress,
// using the IP variant when host is an IP literal and the Domain variant
// otherwise.
func ParseTargetAddress(hostport string) (TargetAddress, error) {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return TargetAddress{}, fmt.Errorf("socks5: invalid address %q: %w", hostport, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return TargetAddress{}, fmt.Errorf("socks5: invalid port %q: %w", portStr, err)
	}
	if ip := net.ParseIP(host); ip != nil {
		return NewIPTargetAddress(ip, int(port)), nil
	}
	return NewDomainTargetAddress(host, int(port))
}

// IsDomain reports whether a is a domain name target.
func (a TargetAddress) IsDomain() bool {
	return a.IP == nil
}

// Network implements net.Addr.
func (TargetAddress) Network() string { return "socks5" }

// String implements net.Addr, returning "host:port".
func (a TargetAddress) String() string {
	host := a.Name
	if a.IP != nil {
		host = a.IP.String()
	}
	return net.JoinHostPort(host, strconv.Itoa(a.Port))
}

// Equal reports whether a and b denote the same target: same variant, same
// address bytes (for IP, via a 16-byte comparable form) or name, and same
// port.
func (a TargetAddress) Equal(b TargetAddress) bool {
	if a.Port != b.Port {
		return false
	}
	if a.IsDomain() != b.IsDomain() {
		return false
	}
	if a.IsDomain() {
		return a.Name == b.Name
	}
	return a.IP.Equal(b.IP)
}

// Resolve converts a to a numeric net.Addr for the given network ("tcp" or
// "udp"). IP targets convert directly; Domain targets are resolved via the
// host's name resolver, returning the first address, and fail with
// errs.ErrInvalidTargetAddress if resolution yields none.
func (a TargetAddress) Resolve(ctx context.Context, network string) (net.Addr, error) {
	if !a.IsDomain() {
		switch network {
		case "tcp":
			return &net.TCPAddr{IP: a.IP, Port: a.Port}, nil
		case "udp":
			return &net.UDPAddr{IP: a.IP, Port: a.Port}, nil
		default:
			return nil, fmt.Errorf("socks5: unsupported network %q", network)
		}
	}
	ips, err := net.DefaultResolver.LookupIPAddr(ctx, a.Name)
	if err != nil {
		return nil, fmt.Errorf("socks5: resolving %q: %w", a.Name, err)
	}
	if len(ips) == 0 {
		return nil, errs.ErrInvalidTargetAddress
	}
	return TargetAddress{IP: ips[0].IP, Port: a.Port}.Resolve(ctx, network)
}

// appendAddress appends a's SOCKS5 wire encoding (ATYP + address + port) to b.
func appendAddress(b []byte, a TargetAddress) ([]byte, error) {
	if a.IsDomain() {
		if len(a.Name) == 0 || len(a.Name) > 255 {
			return nil, errs.ErrDomainTooLong
		}
		b = append(b, addrTypeDomainName, byte(len(a.Name)))
		b = append(b, a.Name...)
	} else if ip4 := a.IP.To4(); ip4 != nil {
		b = append(b, addrTypeIPv4)
		b = append(b, ip4...)
	} else if ip6 := a.IP.To16(); ip6 != nil {
		b = append(b, addrTypeIPv6)
		b = append(b, ip6...)
	} else {
		return nil, fmt.Errorf("socks5: address %v is not IPv4 or IPv6", a.IP)
	}
	return binary.BigEndian.AppendUint16(b, uint16(a.Port)), nil
}

// readAddress reads a SOCKS5-encoded ATYP + address + port from r, failing
// with errs.ErrInvalidAddressType on an unrecognized ATYP. Nothing in this
// package or its tests calls it.
func readAddress(ctx context.Context, r io.Reader) (TargetAddress, error) {
	var atyp [1]byte
	if _, err := ctxio.ReadFull(ctx, r, atyp[:]); err != nil {
		return TargetAddress{}, err
	}
	return readAddressWithType(ctx, r, atyp[0])
}

// encodeRequest encodes a CONNECT/BIND/UDP ASSOCIATE request:
// [VERSION, cmd, RSV, ATYP, address..., port].
func encodeRequest(cmd byte, target TargetAddress) ([]byte, error) {
	b := []byte{Version, cmd, 0x00}
	return appendAddress(b, target)
}

// decodeReply reads a SOCKS5 reply [VER, REP, RSV, ATYP, address..., port]
// from r, returning the enclosed TargetAddress on success (REP == 0x00) or
// a ReplyCode/errs sentinel error otherwise.
func decodeReply(ctx context.Context, r io.Reader) (TargetAddress, error) {
	var header [4]byte
	if _, err := ctxio.ReadFull(ctx, r, header[:]); err != nil {
		return TargetAddress{}, err
	}
	if header[0] != Version {
		return TargetAddress{}, fmt.Errorf("socks5: %w: got %d", errs.ErrInvalidResponseVersion, header[0])
	}
	if header[2] != 0x00 {
		return TargetAddress{}, fmt.Errorf("socks5: %w: got %d", errs.ErrInvalidReservedByte, header[2])
	}
	if rep := header[1]; rep != 0x00 {
		// A non-zero REP is terminal for the session; the server may still
		// have written a (dummy) address after it, but nothing depends on
		// reading it, and the caller is expected to drop the connection.
		return TargetAddress{}, replyCodeFromRep(rep)
	}
	return readAddressWithType(ctx, r, header[3])
}

// readAddressWithType reads the address body for an already-consumed ATYP
// byte (atyp), used by decodeReply which reads ATYP as part of its 4-byte
// header.
func readAddressWithType(ctx context.Context, r io.Reader, atyp byte) (TargetAddress, error) {
	var addr TargetAddress
	switch atyp {
	case addrTypeIPv4:
		ip := make(net.IP, net.IPv4len)
		if _, err := ctxio.ReadFull(ctx, r, ip); err != nil {
			return TargetAddress{}, err
		}
		addr.IP = ip
	case addrTypeIPv6:
		ip := make(net.IP, net.IPv6len)
		if _, err := ctxio.ReadFull(ctx, r, ip); err != nil {
			return TargetAddress{}, err
		}
		addr.IP = ip
	case addrTypeDomainName:
		var length [1]byte
		if _, err := ctxio.ReadFull(ctx, r, length[:]); err != nil {
			return TargetAddress{}, err
		}
		name := make([]byte, length[0])
		if _, err := ctxio.ReadFull(ctx, r, name); err != nil {
			return TargetAddress{}, err
		}
		addr.Name = string(name)
	default:
		return TargetAddress{}, errs.ErrInvalidAddressType
	}
	var port [2]byte
	if _, err := ctxio.ReadFull(ctx, r, port[:]); err != nil {
		return TargetAddress{}, err
	}
	addr.Port = int(binary.BigEndian.Uint16(port[:]))
	return addr, nil
}
