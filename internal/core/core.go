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

package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/media-streaming-mesh/msm-relay/internal/api"
	"github.com/media-streaming-mesh/msm-relay/internal/config"
	"github.com/media-streaming-mesh/msm-relay/internal/registry"
	"github.com/media-streaming-mesh/msm-relay/internal/rtm"
	"github.com/media-streaming-mesh/msm-relay/internal/stub"
	"github.com/media-streaming-mesh/msm-relay/internal/transport"
	"github.com/media-streaming-mesh/msm-relay/pkg/source_api"
)

// App contains minimal list of dependencies to be able to start an application.
type App struct {
	cfg *config.Cfg

	registry  *registry.Registry
	protocol  rtm.API
	grpcImpl  stub.StubAPI
	apiServer *api.Server
	sourceAPI *source_api.SourceAPI
}

func NewApp(
	cfg *config.Cfg,
	reg *registry.Registry,
	protocol *rtm.Protocol,
	stubHandler *stub.StubHandler,
	apiServer *api.Server,
	sourceAPI *source_api.SourceAPI,
) *App {
	return &App{
		cfg:       cfg,
		registry:  reg,
		protocol:  protocol,
		grpcImpl:  stubHandler,
		apiServer: apiServer,
		sourceAPI: sourceAPI,
	}
}

// provideSourceAPI connects to etcd when endpoints are configured.
func provideSourceAPI(cfg *config.Cfg) (*source_api.SourceAPI, error) {
	if len(cfg.Etcd.Endpoints) == 0 {
		return nil, nil
	}
	return source_api.NewSourceAPI(cfg.Logger, cfg.Etcd.Endpoints, cfg.Etcd.DialTimeout, cfg.RTSPURL())
}

// Start, starts the MSM relay application.
// It will block until the application exits either by:
// 1. a termination signal
// 2. unrecovered error
func (a *App) Start() error {
	logger := a.cfg.Logger
	logger.Info("Starting MSM relay")

	// Capture signals and block before exit
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt,
		syscall.SIGHUP,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	defer cancel()

	return a.Run(ctx)
}

// Run starts the RTSP, gRPC and status servers, and the etcd announcer
// when configured, and returns once all of them stopped.
func (a *App) Run(ctx context.Context) error {
	logger := a.cfg.Logger

	// Listen on a port given from initial config
	grpcPort := fmt.Sprintf("0.0.0.0:%s", a.cfg.Grpc.Port)
	ln, err := net.Listen("tcp", grpcPort)
	if err != nil {
		return err
	}

	// announcements start before any engine can create a source
	if a.sourceAPI != nil {
		if n, err := a.sourceAPI.PurgeStale(ctx); err != nil {
			logger.Warnf("could not purge stale announcements: %v", err)
		} else if n > 0 {
			logger.Infof("purged %d stale announcements", n)
		}
		a.registry.AddListener(a.sourceAPI.Listen)
	}

	g, ctx := errgroup.WithContext(ctx)

	if a.sourceAPI != nil {
		g.Go(func() error {
			defer a.sourceAPI.Close()
			return a.sourceAPI.Run(ctx)
		})
	}

	g.Go(func() error {
		return a.protocol.Serve(ctx)
	})

	g.Go(func() error {
		return transport.Run(
			transport.UseContext(ctx),
			transport.UseLogger(logger),
			transport.UseListener(ln),
			transport.UseGrpcImpl(a.grpcImpl),
		)
	})

	g.Go(func() error {
		return a.apiServer.Run(ctx)
	})

	err = g.Wait()
	for _, s := range a.registry.Sources() {
		a.registry.Remove(s.ID())
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Errorf("MSM relay stopped: %v", err)
		return err
	}
	logger.Info("MSM relay stopped")
	return nil
}
