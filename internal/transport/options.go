/*
 * Copyright (c) 2022 Cisco and/or its affiliates.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at:
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package transport

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/keepalive"

	"github.com/media-streaming-mesh/msm-relay/internal/stub"
)

var errMissingServer = errors.New("transport needs a listener and an implementation")

// Option configures Run
type Option func(*options)

// options of the media engine server. Zero values fall back to the
// defaults of newOptions.
type options struct {
	ctx      context.Context
	logger   *logrus.Logger
	listener net.Listener
	engine   stub.MediaEngineServer

	// engines ping less often than this are disconnected
	minPingInterval time.Duration
	keepalive       keepalive.ServerParameters

	// GracefulStop is abandoned for Stop after this long
	stopTimeout time.Duration
}

func newOptions(opts ...Option) (*options, error) {
	o := &options{
		ctx:             context.Background(),
		logger:          logrus.StandardLogger(),
		minPingInterval: 20 * time.Second,
		keepalive: keepalive.ServerParameters{
			Time:    30 * time.Second,
			Timeout: 10 * time.Second,
		},
		stopTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.listener == nil || o.engine == nil {
		return nil, errMissingServer
	}
	return o, nil
}

// UseContext stops the server when ctx is done
func UseContext(ctx context.Context) Option {
	return func(o *options) {
		if ctx != nil {
			o.ctx = ctx
		}
	}
}

// UseLogger sets the logger
func UseLogger(log *logrus.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.logger = log
		}
	}
}

// UseListener sets the gRPC listener
func UseListener(ln net.Listener) Option {
	return func(o *options) { o.listener = ln }
}

// UseGrpcImpl sets the media engine service to serve
func UseGrpcImpl(impl stub.MediaEngineServer) Option {
	return func(o *options) { o.engine = impl }
}

// UseKeepalive sets the server pings sent to idle engines and the
// shortest ping interval engines may use.
func UseKeepalive(params keepalive.ServerParameters, minPingInterval time.Duration) Option {
	return func(o *options) {
		o.keepalive = params
		o.minPingInterval = minPingInterval
	}
}

// UseStopTimeout bounds the graceful stop.
func UseStopTimeout(d time.Duration) Option {
	return func(o *options) { o.stopTimeout = d }
}
