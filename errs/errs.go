// Package errs holds the sentinel errors the socks5 client engine returns
// for protocol-level failures that aren't a [ReplyCode]. Callers match them
// with errors.Is.
package errs

import "errors"

var (
	// ErrDomainTooLong is returned when a domain name passed as a target
	// address is longer than 255 bytes and cannot be SOCKS5-encoded.
	ErrDomainTooLong = errors.New("socks5: domain name exceeds 255 bytes")

	// ErrInvalidResponseVersion is returned when a greeting or request reply
	// header carries a version byte other than 0x05.
	ErrInvalidResponseVersion = errors.New("socks5: invalid response version")

	// ErrNoAcceptableMethod is returned when the server responds to the
	// greeting with method 0xFF, meaning none of the offered methods (here,
	// the single method offered) was acceptable.
	ErrNoAcceptableMethod = errors.New("socks5: no acceptable authentication method")

	// ErrInvalidReservedByte is returned when a reply's RSV field is not 0x00.
	ErrInvalidReservedByte = errors.New("socks5: invalid reserved byte in reply")

	// ErrInvalidAddressType is returned when a reply's ATYP field is outside
	// {0x01, 0x03, 0x04}.
	ErrInvalidAddressType = errors.New("socks5: invalid address type")

	// ErrInvalidTargetAddress is returned when a domain target address
	// resolves to zero numeric endpoints.
	ErrInvalidTargetAddress = errors.New("socks5: target address resolved to no addresses")

	// ErrDatagramSocketNotRegistered is returned by a UDP send/receive
	// attempted before the datagram endpoint has been associated with a
	// relay address.
	ErrDatagramSocketNotRegistered = errors.New("socks5: datagram socket not registered")

	// ErrSessionClosed is returned by ClientSession.SendRequest and
	// ClientSession.AwaitReply after the session has transitioned to a
	// terminal error state or has been closed, and by Listener.Accept after
	// the first call or after Close. Reads and writes on a closed Stream or
	// Datagram return the underlying transport's error instead.
	ErrSessionClosed = errors.New("socks5: session closed")
)
