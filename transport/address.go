// Copyright 2023 The Outline Authors
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

package transport

import (
	"fmt"
	"net"
	"strconv"
)

// domainAddr is a [net.Addr] for a host:port address whose host is a domain
// name rather than an IP literal. It is returned by [MakeNetAddr] so callers
// that only need String()/Network() (for example to log or compare an
// address) don't need a resolved IP.
type domainAddr struct {
	network string
	address string
}

var _ net.Addr = (*domainAddr)(nil)

// Network implements [net.Addr].Network.
func (a *domainAddr) Network() string {
	return a.network
}

// String implements [net.Addr].String.
func (a *domainAddr) String() string {
	return a.address
}

// MakeNetAddr creates a [net.Addr] for the given network ("tcp" or "udp") and
// address (host:port). If the host is an IP literal, it returns a
// [*net.TCPAddr] or [*net.UDPAddr] as appropriate. Otherwise, it returns a
// [*domainAddr] that preserves the domain name as given, resolving only the
// port (which may be a service name like "domain").
func MakeNetAddr(network, address string) (net.Addr, error) {
	host, portText, err := net.SplitHostPort(address)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", address, err)
	}
	port, err := net.LookupPort(network, portText)
	if err != nil {
		return nil, fmt.Errorf("could not resolve port %q: %w", portText, err)
	}
	if ip := net.ParseIP(host); ip != nil {
		switch network {
		case "tcp":
			return &net.TCPAddr{IP: ip, Port: port}, nil
		case "udp":
			return &net.UDPAddr{IP: ip, Port: port}, nil
		default:
			return nil, fmt.Errorf("unsupported network %q", network)
		}
	}
	return &domainAddr{network: network, address: net.JoinHostPort(host, strconv.Itoa(port))}, nil
}
