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
	"errors"
	"strconv"
	"strings"

	"github.com/aler9/gortsplib/pkg/base"

	"github.com/media-streaming-mesh/msm-relay/internal/source"
)

// called after receiving an OPTIONS request.
func (r *RTSP) OnOptions(req *base.Request, rc *RTSPConnection) (*base.Response, error) {
	r.logger.Debugf("[c->s] %+v", req)

	return &base.Response{
		StatusCode: base.StatusOK,
		Header: base.Header{
			"Public": base.HeaderValue{methodList(r.methods)},
		},
	}, nil
}

// called after receiving a DESCRIBE request.
func (r *RTSP) OnDescribe(req *base.Request, rc *RTSPConnection) (*base.Response, error) {
	r.logger.Debugf("[c->s] %+v", req)

	p, err := parsePath(req.URL.Path)
	if err != nil || p.hasStream {
		return nil, source.ErrUnknownSource
	}
	rc.sourceID = p.sourceID

	s, err := r.registry.GetEnabled(p.sourceID)
	if err != nil {
		return nil, err
	}

	body, err := s.GetSdp()
	if err != nil {
		return nil, err
	}

	res := &base.Response{
		StatusCode: base.StatusOK,
		Header: base.Header{
			"Content-Base":   base.HeaderValue{req.URL.String()},
			"Content-Type":   base.HeaderValue{"application/sdp"},
			"Content-Length": base.HeaderValue{strconv.Itoa(len(body))},
		},
		Body: body,
	}
	r.logger.Debugf("[s->c] DESCRIBE RESPONSE %s", body)
	return res, nil
}

// called after receiving a SETUP request.
func (r *RTSP) OnSetup(req *base.Request, rc *RTSPConnection) (*base.Response, error) {
	r.logger.Debugf("[c->s] %+v", req)

	p, err := parsePath(req.URL.Path)
	if err != nil {
		return nil, err
	}
	if !p.hasStream {
		return nil, ErrInvalidPath{Path: req.URL.Path}
	}

	s, err := r.bindSource(rc, p.sourceID)
	if err != nil {
		return nil, err
	}
	if !s.HasStream(p.stream) {
		return nil, source.ErrUnknownStream{Index: p.stream}
	}

	transport, ok := req.Header["Transport"]
	if !ok || len(transport) == 0 {
		return nil, errors.New("transport header missing")
	}

	for _, port := range clientPorts(strings.Join(transport, ",")) {
		if err := s.AddAddress(rc.sessionID, p.stream, rc.remoteIP, port); err != nil {
			return nil, err
		}
	}

	return &base.Response{
		StatusCode: base.StatusOK,
		Header: base.Header{
			"Transport": transport,
			"Session":   base.HeaderValue{rc.sessionID},
		},
	}, nil
}

// called after receiving a PLAY request.
func (r *RTSP) OnPlay(req *base.Request, rc *RTSPConnection) (*base.Response, error) {
	r.logger.Debugf("[c->s] %+v", req)

	s, target, err := r.resolveTarget(req, rc)
	if err != nil {
		return nil, err
	}
	if err := s.EnableAddress(rc.sessionID, target); err != nil {
		return nil, err
	}

	return &base.Response{
		StatusCode: base.StatusOK,
		Header: base.Header{
			"Session": base.HeaderValue{rc.sessionID},
		},
	}, nil
}

// called after receiving a PAUSE request.
func (r *RTSP) OnPause(req *base.Request, rc *RTSPConnection) (*base.Response, error) {
	r.logger.Debugf("[c->s] %+v", req)

	s, target, err := r.resolveTarget(req, rc)
	if err != nil {
		return nil, err
	}
	if err := s.DisableAddress(rc.sessionID, target); err != nil {
		return nil, err
	}

	return &base.Response{
		StatusCode: base.StatusOK,
		Header: base.Header{
			"Session": base.HeaderValue{rc.sessionID},
		},
	}, nil
}

// called after receiving a TEARDOWN request. Entries are kept until the
// source goes away.
func (r *RTSP) OnTeardown(req *base.Request, rc *RTSPConnection) (*base.Response, error) {
	r.logger.Debugf("[c->s] %+v", req)

	return &base.Response{
		StatusCode: base.StatusOK,
		Header: base.Header{
			"Session": base.HeaderValue{rc.sessionID},
		},
	}, nil
}

// bindSource binds the connection to id on first use. A connection never
// switches to another source outside DESCRIBE.
func (r *RTSP) bindSource(rc *RTSPConnection, id string) (*source.Source, error) {
	switch {
	case id == "":
		if rc.sourceID == "" {
			return nil, source.ErrUnknownSource
		}
	case rc.sourceID == "":
		rc.sourceID = id
	case rc.sourceID != id:
		return nil, source.ErrUnknownSource
	}
	return r.registry.GetEnabled(rc.sourceID)
}

// resolveTarget reads the PLAY/PAUSE path. A path without a stream, or one
// that names no source, targets every stream of the bound source.
func (r *RTSP) resolveTarget(req *base.Request, rc *RTSPConnection) (*source.Source, source.Target, error) {
	p, err := parsePath(req.URL.Path)
	if err != nil {
		p = requestPath{}
	}

	s, err := r.bindSource(rc, p.sourceID)
	if err != nil {
		return nil, source.Target{}, err
	}

	if p.hasStream {
		return s, source.Single(p.stream), nil
	}
	return s, source.All(), nil
}
