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
	"bytes"
	"context"
	"errors"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/proxygrid/socks5/errs"
)

func TestReadAddressWithType(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		want    TargetAddress
		wantErr bool
	}{
		{
			name:  "IPv4",
			input: append([]byte{addrTypeIPv4}, append(net.IPv4(192, 168, 1, 1).To4(), 0x01, 0xF4)...),
			want:  TargetAddress{IP: net.IPv4(192, 168, 1, 1).To4(), Port: 500},
		},
		{
			name:  "IPv6",
			input: append([]byte{addrTypeIPv6}, append(net.ParseIP("2001:db8::1").To16(), 0x04, 0xD2)...),
			want:  TargetAddress{IP: net.ParseIP("2001:db8::1").To16(), Port: 1234},
		},
		{
			name:  "Domain",
			input: append([]byte{addrTypeDomainName, 0x0b}, append([]byte("example.com"), 0x23, 0x28)...),
			want:  TargetAddress{Name: "example.com", Port: 9000},
		},
		{
			name:    "Unrecognized address type",
			input:   []byte{0x00},
			wantErr: true,
		},
		{
			name:    "Short input",
			input:   []byte{addrTypeIPv4},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := bytes.NewReader(tt.input[1:])
			got, err := readAddressWithType(context.Background(), r, tt.input[0])
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.True(t, tt.want.Equal(got), "got %v, want %v", got, tt.want)
		})
	}
}

func TestAppendAddress_IPv4(t *testing.T) {
	target, err := ParseTargetAddress("8.8.8.8:853")
	require.NoError(t, err)
	b, err := appendAddress(nil, target)
	require.NoError(t, err)
	// 853 = 0x355
	require.Equal(t, []byte{addrTypeIPv4, 8, 8, 8, 8, 0x3, 0x55}, b)
}

func TestAppendAddress_IPv6(t *testing.T) {
	target, err := ParseTargetAddress("[2001:4860:4860::8888]:853")
	require.NoError(t, err)
	b, err := appendAddress(nil, target)
	require.NoError(t, err)
	require.Equal(t, []byte{addrTypeIPv6, 0x20, 0x01, 0x48, 0x60, 0x48, 0x60, 0, 0, 0, 0, 0, 0, 0, 0, 0x88, 0x88, 0x3, 0x55}, b)
}

func TestAppendAddress_DomainName(t *testing.T) {
	target, err := NewDomainTargetAddress("dns.google", 853)
	require.NoError(t, err)
	b, err := appendAddress(nil, target)
	require.NoError(t, err)
	require.Equal(t, append([]byte{addrTypeDomainName, byte(len("dns.google"))}, append([]byte("dns.google"), 0x3, 0x55)...), b)
}

func TestAppendAddress_DomainTooLong(t *testing.T) {
	_, err := NewDomainTargetAddress(strings.Repeat("1234567890", 26), 53)
	require.ErrorIs(t, err, errs.ErrDomainTooLong)

	_, err = appendAddress(nil, TargetAddress{Name: strings.Repeat("1234567890", 26), Port: 53})
	require.ErrorIs(t, err, errs.ErrDomainTooLong)
}

func TestParseTargetAddress_NotHostPort(t *testing.T) {
	_, err := ParseTargetAddress("fsdfksajdhfjk")
	require.Error(t, err)
}

func TestParseTargetAddress_BadPort(t *testing.T) {
	_, err := ParseTargetAddress("dns.google:dns")
	require.Error(t, err)
}

func TestTargetAddress_String(t *testing.T) {
	ipAddr, err := ParseTargetAddress("8.8.8.8:53")
	require.NoError(t, err)
	require.Equal(t, "8.8.8.8:53", ipAddr.String())

	domainAddr, err := NewDomainTargetAddress("example.com", 443)
	require.NoError(t, err)
	require.Equal(t, "example.com:443", domainAddr.String())
}

func TestEncodeRequest(t *testing.T) {
	target, err := ParseTargetAddress("8.8.8.8:443")
	require.NoError(t, err)
	req, err := encodeRequest(CmdConnect, target)
	require.NoError(t, err)
	require.Equal(t, []byte{Version, CmdConnect, 0x00, addrTypeIPv4, 8, 8, 8, 8, 0x01, 0xBB}, req)
}

func TestDecodeReply_Succeeded(t *testing.T) {
	reply := []byte{Version, 0x00, 0x00, addrTypeIPv4, 127, 0, 0, 1, 0x1F, 0x90}
	addr, err := decodeReply(context.Background(), bytes.NewReader(reply))
	require.NoError(t, err)
	require.True(t, addr.Equal(NewIPTargetAddress(net.IPv4(127, 0, 0, 1).To4(), 8080)))
}

func TestDecodeReply_ErrorCode(t *testing.T) {
	reply := []byte{Version, byte(ReplyHostUnreachable), 0x00, addrTypeIPv4, 0, 0, 0, 0, 0, 0}
	_, err := decodeReply(context.Background(), bytes.NewReader(reply))
	require.ErrorIs(t, err, ReplyHostUnreachable)
	var code ReplyCode
	require.True(t, errors.As(err, &code))
	require.Equal(t, ReplyHostUnreachable, code)
}

func TestDecodeReply_BadVersion(t *testing.T) {
	reply := []byte{0x04, 0x00, 0x00, addrTypeIPv4, 0, 0, 0, 0, 0, 0}
	_, err := decodeReply(context.Background(), bytes.NewReader(reply))
	require.ErrorIs(t, err, errs.ErrInvalidResponseVersion)
}

func TestDecodeReply_BadReservedByte(t *testing.T) {
	reply := []byte{Version, 0x00, 0x01, addrTypeIPv4, 0, 0, 0, 0, 0, 0}
	_, err := decodeReply(context.Background(), bytes.NewReader(reply))
	require.ErrorIs(t, err, errs.ErrInvalidReservedByte)
}

func TestDecodeReply_UnassignedCode(t *testing.T) {
	reply := []byte{Version, 0x7F, 0x00, addrTypeIPv4, 0, 0, 0, 0, 0, 0}
	_, err := decodeReply(context.Background(), bytes.NewReader(reply))
	require.ErrorIs(t, err, ReplyUnassigned)
}
