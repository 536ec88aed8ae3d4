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

package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/media-streaming-mesh/msm-relay/internal/config"
	"github.com/media-streaming-mesh/msm-relay/internal/registry"
)

// Server is the read-only status API of the relay.
type Server struct {
	router   *gin.Engine
	port     string
	logger   *logrus.Logger
	registry *registry.Registry
}

func NewServer(cfg *config.Cfg, reg *registry.Registry) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(requestLogger(cfg.Logger))
	router.Use(gin.Recovery())

	s := &Server{
		router:   router,
		port:     cfg.Api.Port,
		logger:   cfg.Logger,
		registry: reg,
	}
	s.SetupRoutes()
	return s
}

// SetupRoutes configures all API routes
func (s *Server) SetupRoutes() {
	v1 := s.router.Group("/v1")
	{
		v1.GET("/sources", s.ListSources)
		v1.GET("/sources/:id", s.GetSource)
		v1.GET("/sources/:id/sdp", s.GetSourceSdp)
	}
}

// Run serves the API until ctx is done. An empty port disables it.
func (s *Server) Run(ctx context.Context) error {
	if s.port == "" {
		s.logger.Info("[API] status API disabled")
		return nil
	}

	ln, err := net.Listen("tcp", net.JoinHostPort("", s.port))
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("[API] listening on %s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// Router returns the gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

func requestLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		}).Debug("[API] request")
	}
}
