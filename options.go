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
	"io"
	"log/slog"
)

// config holds the per-session options set via Option. There is no config
// file or environment variable reader: every knob is a Go constructor
// argument, set via the functional options below.
type config struct {
	method Method
	logger *slog.Logger
}

func newConfig(opts []Option) *config {
	cfg := &config{
		method: NoAuth,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Option configures a Stream, Listener, or Datagram front-end.
type Option func(*config)

// WithMethod selects the authentication method to offer in the greeting.
// Defaults to NoAuth.
func WithMethod(method Method) Option {
	return func(c *config) {
		c.method = method
	}
}

// WithLogger sets a logger for diagnostic messages about the handshake and
// request lifecycle. The library never constructs its own logger or writes
// to a global one; callers that don't set this get a discard logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}
