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
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"

	"github.com/media-streaming-mesh/msm-relay/internal/stub"
)

type grpcServer struct {
	opts *options

	server *grpc.Server
	health *health.Server
}

// newGrpcServer initializes a new gRPC server
func newGrpcServer(opts *options) (*grpcServer, error) {

	var optsArr []grpc.ServerOption
	optsArr = append(optsArr,
		grpc.ChainUnaryInterceptor(unaryLogger(opts.logger)),
		grpc.ChainStreamInterceptor(streamLogger(opts.logger)),
		grpc.KeepaliveEnforcementPolicy(
			keepalive.EnforcementPolicy{
				MinTime:             opts.minPingInterval,
				PermitWithoutStream: true,
			}),
		grpc.KeepaliveParams(opts.keepalive),
	)

	s := grpc.NewServer(optsArr...)

	return &grpcServer{
		opts:   opts,
		server: s,
		health: health.NewServer(),
	}, nil
}

func (s *grpcServer) start() error {
	stub.RegisterMediaEngineServer(s.server, s.opts.engine)
	healthpb.RegisterHealthServer(s.server, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(stub.MediaEngine_ServiceDesc.ServiceName, healthpb.HealthCheckResponse_SERVING)

	l := s.opts.listener
	s.opts.logger.Infof("starting gRPC server addr=%s", l.Addr().String())
	return s.server.Serve(l)
}

// close gracefully stops the grpc server
func (s *grpcServer) close() {
	log := s.opts.logger
	s.health.Shutdown()

	// Graceful in a goroutine so we can timeout
	graceCh := make(chan struct{})
	go func() {
		defer close(graceCh)
		log.Debug("gracefully stopping grpc server")
		s.server.GracefulStop()
	}()

	select {
	case <-graceCh:
		log.Debug("gracefully stopped grpc server")

	case <-time.After(s.opts.stopTimeout):
		log.Debugf("forcefully stopping after %s of wait", s.opts.stopTimeout)
		s.server.Stop()
	}
}
