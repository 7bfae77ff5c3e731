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
	"encoding/binary"
	"fmt"
	"net"

	"github.com/proxygrid/socks5/errs"
)

// AppendUDPHeader appends the SOCKS5 UDP request header (RSV, RSV, FRAG=0,
// ATYP, address..., port) for target, followed by payload, to b. This is the
// envelope every datagram sent through a UDP ASSOCIATE relay must carry, per
// https://datatracker.ietf.org/doc/html/rfc1928#section-7. Fragmentation is
// not supported: FRAG is always 0x00.
func AppendUDPHeader(b []byte, target TargetAddress, payload []byte) ([]byte, error) {
	b = append(b, 0x00, 0x00, 0x00)
	b, err := appendAddress(b, target)
	if err != nil {
		return nil, fmt.Errorf("socks5: encoding UDP header: %w", err)
	}
	return append(b, payload...), nil
}

// ParseUDPDatagram strips the SOCKS5 UDP header from packet and returns the
// enclosed TargetAddress and the remaining payload, which aliases packet.
// A non-zero FRAG byte is rejected: this package does not support
// reassembly of fragmented datagrams.
func ParseUDPDatagram(packet []byte) (TargetAddress, []byte, error) {
	if len(packet) < 4 {
		return TargetAddress{}, nil, fmt.Errorf("socks5: UDP datagram too short (%d bytes)", len(packet))
	}
	if packet[2] != 0x00 {
		return TargetAddress{}, nil, fmt.Errorf("socks5: fragmented UDP datagrams are not supported (FRAG=%d)", packet[2])
	}
	target, consumed, err := decodeAddressFromBytes(packet[3:])
	if err != nil {
		return TargetAddress{}, nil, err
	}
	return target, packet[3+consumed:], nil
}

// decodeAddressFromBytes decodes a single ATYP+address+port value from the
// start of b and reports how many bytes it consumed. Unlike readAddress, it
// operates on an in-memory buffer, since incoming UDP datagrams arrive as a
// single already-read packet rather than a stream.
func decodeAddressFromBytes(b []byte) (TargetAddress, int, error) {
	if len(b) < 1 {
		return TargetAddress{}, 0, fmt.Errorf("socks5: truncated UDP address")
	}
	var addr TargetAddress
	var addrEnd int
	switch b[0] {
	case addrTypeIPv4:
		const n = 1 + net.IPv4len
		if len(b) < n {
			return TargetAddress{}, 0, fmt.Errorf("socks5: truncated IPv4 UDP address")
		}
		addr.IP = append(net.IP(nil), b[1:n]...)
		addrEnd = n
	case addrTypeIPv6:
		const n = 1 + net.IPv6len
		if len(b) < n {
			return TargetAddress{}, 0, fmt.Errorf("socks5: truncated IPv6 UDP address")
		}
		addr.IP = append(net.IP(nil), b[1:n]...)
		addrEnd = n
	case addrTypeDomainName:
		if len(b) < 2 {
			return TargetAddress{}, 0, fmt.Errorf("socks5: truncated domain UDP address")
		}
		nameLen := int(b[1])
		n := 2 + nameLen
		if len(b) < n {
			return TargetAddress{}, 0, fmt.Errorf("socks5: truncated domain UDP address")
		}
		addr.Name = string(b[2:n])
		addrEnd = n
	default:
		return TargetAddress{}, 0, errs.ErrInvalidAddressType
	}
	if len(b) < addrEnd+2 {
		return TargetAddress{}, 0, fmt.Errorf("socks5: truncated UDP address port")
	}
	addr.Port = int(binary.BigEndian.Uint16(b[addrEnd : addrEnd+2]))
	return addr, addrEnd + 2, nil
}
