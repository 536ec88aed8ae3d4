/*
 * Copyright (c) 2022-2022 Cisco and/or its affiliates.
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

package rtsp

import (
	"fmt"
	"sync"

	"github.com/aler9/gortsplib/pkg/base"
	"github.com/sirupsen/logrus"

	"github.com/media-streaming-mesh/msm-relay/internal/registry"
)

type RTSP struct {
	logger   *logrus.Logger
	methods  []base.Method
	registry *registry.Registry

	rtspConn *sync.Map
	wg       sync.WaitGroup
}

// Option configures NewRTSP
type Option func(*options)

// Options configure any protocol
type options struct {
	// Logger is the logger to use.
	Logger *logrus.Logger

	// RTSP supported Methods
	SupportedMethods []base.Method

	// Registry resolves the sources named in request paths.
	Registry *registry.Registry
}

// UseLogger sets the logger
func UseLogger(log *logrus.Logger) Option {
	return func(opts *options) {
		opts.Logger = log
	}
}

// UseMethods sets the server's available methods
func UseMethods(m []base.Method) Option {
	return func(opts *options) {
		opts.SupportedMethods = m
	}
}

// UseRegistry sets the source registry
func UseRegistry(reg *registry.Registry) Option {
	return func(opts *options) {
		opts.Registry = reg
	}
}

func NewRTSP(opts ...Option) *RTSP {
	var cfg options
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if len(cfg.SupportedMethods) == 0 {
		cfg.SupportedMethods = []base.Method{
			base.Options,
			base.Describe,
			base.Setup,
			base.Play,
			base.Pause,
			base.Teardown,
		}
	}
	if cfg.Registry == nil {
		cfg.Registry = registry.New(registry.UseLogger(cfg.Logger))
	}

	return &RTSP{
		logger:   cfg.Logger,
		methods:  cfg.SupportedMethods,
		registry: cfg.Registry,
		rtspConn: new(sync.Map),
	}
}

func (r *RTSP) log(format string, args ...interface{}) {
	r.logger.Debugf("[RTSP] %s", fmt.Sprintf(format, args...))
}

func (r *RTSP) logError(format string, args ...interface{}) {
	r.logger.Errorf("[RTSP] %s", fmt.Sprintf(format, args...))
}
