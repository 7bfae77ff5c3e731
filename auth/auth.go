// Package auth provides SOCKS5 authentication methods beyond the built-in
// socks5.NoAuth: UserPassword (RFC 1929) and SealedChannel, a private-use
// method that layers AEAD encryption on the proxy stream. Both implement
// socks5.Method and plug into any of the Stream/Listener/Datagram
// constructors via socks5.WithMethod.
package auth
