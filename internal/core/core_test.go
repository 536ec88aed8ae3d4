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
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/media-streaming-mesh/msm-relay/internal/api"
	"github.com/media-streaming-mesh/msm-relay/internal/config"
	"github.com/media-streaming-mesh/msm-relay/internal/media"
	"github.com/media-streaming-mesh/msm-relay/internal/registry"
	"github.com/media-streaming-mesh/msm-relay/internal/rtm"
	"github.com/media-streaming-mesh/msm-relay/internal/stub"
)

func testConfig() *config.Cfg {
	cfg := config.Default()
	cfg.Host = "127.0.0.1"
	cfg.Rtsp.Port = "0"
	cfg.Grpc.Port = "0"
	cfg.Api.Port = ""
	cfg.Logger = logrus.New()
	cfg.Logger.SetLevel(logrus.WarnLevel)
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Cfg) *App {
	reg := registry.NewFromConfig(cfg)
	sourceAPI, err := provideSourceAPI(cfg)
	require.NoError(t, err)
	require.Nil(t, sourceAPI)

	return NewApp(cfg, reg,
		rtm.New(cfg, reg),
		stub.NewStubHandler(cfg, reg),
		api.NewServer(cfg, reg),
		sourceAPI,
	)
}

func TestRunStopsOnCancel(t *testing.T) {
	app := newTestApp(t, testConfig())

	s := app.registry.GetOrCreate("s1", "10.0.0.1")
	feed := media.NewFeed(media.Video, media.RTPParameters{
		MuxID:  "0",
		Codecs: []media.Codec{{PayloadType: 96, Name: "video/H264", ClockRate: 90000}},
	})
	s.AddStream(feed)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("app did not stop")
	}
	require.Zero(t, app.registry.Len())
}

func TestRunUnsupportedProtocol(t *testing.T) {
	cfg := testConfig()
	cfg.Protocol = "rist"
	app := newTestApp(t, cfg)

	err := app.Run(context.Background())
	require.Error(t, err)
}
