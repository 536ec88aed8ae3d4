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

package rtm

import (
	"context"
	"fmt"
	"net"

	"github.com/media-streaming-mesh/msm-relay/internal/config"
	"github.com/media-streaming-mesh/msm-relay/internal/registry"
	"github.com/media-streaming-mesh/msm-relay/internal/rtm/rtsp"
)

// API provides external access to the client facing protocol server
type API interface {
	Serve(ctx context.Context) error
	ServeListener(ctx context.Context, ln net.Listener) error
}

// Protocol holds the rtm protocol specific data structures
type Protocol struct {
	cfg *config.Cfg

	rtsp *rtsp.RTSP
}

func New(cfg *config.Cfg, reg *registry.Registry) *Protocol {
	rtspOpts := []rtsp.Option{
		rtsp.UseLogger(cfg.Logger),
		rtsp.UseMethods(cfg.SupportedMethods),
		rtsp.UseRegistry(reg),
	}

	return &Protocol{
		cfg:  cfg,
		rtsp: rtsp.NewRTSP(rtspOpts...),
	}
}

// Serve listens on the configured port of the protocol and serves it
// until ctx is done.
func (p *Protocol) Serve(ctx context.Context) error {
	var port string

	switch p.cfg.Protocol {
	case "rtsp":
		port = p.cfg.Rtsp.Port
	default:
		return fmt.Errorf("unsupported protocol '%s'", p.cfg.Protocol)
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%s", port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return p.ServeListener(ctx, ln)
}

func (p *Protocol) ServeListener(ctx context.Context, ln net.Listener) error {
	switch p.cfg.Protocol {
	case "rtsp":
		return p.rtsp.Serve(ctx, ln)
	}
	ln.Close()
	return fmt.Errorf("unsupported protocol '%s'", p.cfg.Protocol)
}
