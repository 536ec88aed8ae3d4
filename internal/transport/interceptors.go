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
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

func unaryLogger(log *logrus.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		res, err := handler(ctx, req)
		log.WithFields(logrus.Fields{
			"method":   info.FullMethod,
			"code":     status.Code(err).String(),
			"duration": time.Since(start),
		}).Trace("[GRPC] unary call")
		return res, err
	}
}

func streamLogger(log *logrus.Logger) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		entry := log.WithFields(logrus.Fields{
			"method":   info.FullMethod,
			"code":     status.Code(err).String(),
			"duration": time.Since(start),
		})
		if err != nil {
			entry.Warnf("[GRPC] stream ended: %v", err)
		} else {
			entry.Debug("[GRPC] stream ended")
		}
		return err
	}
}
