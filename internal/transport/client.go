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

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/media-streaming-mesh/msm-relay/internal/stub"
)

// Client holds the client specific data structures of a media engine
// connecting to the relay.
type Client struct {
	Log    *logrus.Logger
	Engine stub.MediaEngineClient

	conn   *grpc.ClientConn
	health healthpb.HealthClient
}

// SetupClient connects to the relay at target. Extra dial options are
// appended to the insecure transport credentials.
func SetupClient(log *logrus.Logger, target string, opts ...grpc.DialOption) (*Client, error) {
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)

	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, err
	}

	return &Client{
		Log:    log,
		Engine: stub.NewMediaEngineClient(conn),
		conn:   conn,
		health: healthpb.NewHealthClient(conn),
	}, nil
}

// Healthy reports whether the media engine service is serving.
func (c *Client) Healthy(ctx context.Context) (bool, error) {
	res, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{
		Service: stub.MediaEngine_ServiceDesc.ServiceName,
	})
	if err != nil {
		c.Log.Debugf("health check failed: %v", err)
		return false, err
	}
	return res.GetStatus() == healthpb.HealthCheckResponse_SERVING, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}
