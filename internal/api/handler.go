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
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/media-streaming-mesh/msm-relay/internal/model"
)

type errorResponse struct {
	Error string `json:"error"`
}

// ListSources handles GET /v1/sources
func (s *Server) ListSources(c *gin.Context) {
	sources := s.registry.Sources()
	data := make([]model.SourceData, 0, len(sources))
	for _, src := range sources {
		data = append(data, src.Snapshot())
	}
	c.JSON(http.StatusOK, data)
}

// GetSource handles GET /v1/sources/:id
func (s *Server) GetSource(c *gin.Context) {
	src, ok := s.registry.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse{Error: "source not found"})
		return
	}
	c.JSON(http.StatusOK, src.Snapshot())
}

// GetSourceSdp handles GET /v1/sources/:id/sdp. Like DESCRIBE it only
// answers for enabled sources.
func (s *Server) GetSourceSdp(c *gin.Context) {
	src, err := s.registry.GetEnabled(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}

	body, err := src.GetSdp()
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/sdp", body)
}
