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
)

type contextKey struct{}

// ClientTrace hooks into the phases of a single request (CONNECT, BIND, or
// UDP ASSOCIATE) for diagnostics. Either field may be nil.
type ClientTrace struct {
	// RequestStarted is called right before the request is written, with the
	// SOCKS5 command byte and the target address string.
	RequestStarted func(cmd byte, addr string)
	// RequestDone is called once the reply has been parsed, with the bound
	// address the server returned (if any) and the error (if any).
	RequestDone func(bindAddr string, err error)
}

var clientTraceKey = contextKey{}

// WithClientTrace adds a ClientTrace to the context, to be picked up by
// ClientSession.SendRequest.
func WithClientTrace(ctx context.Context, trace *ClientTrace) context.Context {
	return context.WithValue(ctx, clientTraceKey, trace)
}

// ClientTraceFromContext retrieves the ClientTrace added by WithClientTrace,
// or nil if there isn't one.
func ClientTraceFromContext(ctx context.Context) *ClientTrace {
	trace, _ := ctx.Value(clientTraceKey).(*ClientTrace)
	return trace
}
